package chat

import (
	"errors"
	"strings"
	"unicode"

	"github.com/rickgao/chatstream/internal/message"
)

// ErrEmptyInput is returned for lines with nothing to send.
var ErrEmptyInput = errors.New("nothing to send")

const directPrefix = "/to"

// ParseInput turns a line typed by the user into an outbound message.
//
//	hello everyone      -> broadcast to all
//	/to 7 hi there      -> single message to user 7
func ParseInput(line string) (message.Outbound, error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return message.Outbound{}, ErrEmptyInput
	}

	rest, direct := strings.CutPrefix(line, directPrefix)
	if !direct {
		return message.NewOutbound(line, ""), nil
	}
	// Only a separator may follow the directive: "/today" is plain text.
	if rest != "" && !unicode.IsSpace(rune(rest[0])) {
		return message.NewOutbound(line, ""), nil
	}

	rest = strings.TrimSpace(rest)
	to, text := rest, ""
	if i := strings.IndexFunc(rest, unicode.IsSpace); i >= 0 {
		to, text = rest[:i], strings.TrimSpace(rest[i:])
	}
	if to == "" {
		return message.Outbound{}, message.ErrNoRecipient
	}
	if text == "" {
		return message.Outbound{}, ErrEmptyInput
	}
	return message.NewOutbound(text, to), nil
}
