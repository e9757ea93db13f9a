package message

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
)

// Errors
var (
	ErrUnknownEnvelope = errors.New("frame is neither a roster update nor a chat message")
	ErrNoRecipient     = errors.New("single message without recipient")
)

// envelope is the union of every inbound field we recognise.
type envelope struct {
	Users []json.RawMessage `json:"users"`
	Msg   *string           `json:"msg"`
}

// Parse decodes an inbound text frame. Any failure is returned as *ParseError.
func Parse(frame []byte) (Message, error) {
	var env envelope
	if err := json.Unmarshal(frame, &env); err != nil {
		return nil, &ParseError{Frame: frame, Err: err}
	}

	// A present (even empty) users array wins over msg.
	if env.Users != nil {
		users := make([]string, 0, len(env.Users))
		for _, raw := range env.Users {
			id, err := userID(raw)
			if err != nil {
				return nil, &ParseError{Frame: frame, Err: err}
			}
			users = append(users, id)
		}
		return RosterUpdate{Users: users}, nil
	}

	if env.Msg != nil {
		return Broadcast{Text: *env.Msg}, nil
	}

	return nil, &ParseError{Frame: frame, Err: ErrUnknownEnvelope}
}

// userID accepts both string and numeric ids; servers disagree on which to send.
func userID(raw json.RawMessage) (string, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) > 0 && raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", err
		}
		return s, nil
	}

	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return "", fmt.Errorf("user id %s: %w", raw, err)
	}
	if _, err := strconv.ParseFloat(n.String(), 64); err != nil {
		return "", fmt.Errorf("user id %s: %w", raw, err)
	}
	return n.String(), nil
}

// NewOutbound builds an outbound message. An empty recipient means "all".
func NewOutbound(text, to string) Outbound {
	if to == "" {
		return Outbound{Msg: text, Type: SendAll}
	}
	return Outbound{Msg: text, Type: SendSingle, To: to}
}

// Encode marshals the message into a text frame payload.
func (o Outbound) Encode() ([]byte, error) {
	if o.Type == "" {
		o.Type = SendAll
	}
	if o.Type == SendAll {
		o.To = ""
	}
	if o.Type == SendSingle && o.To == "" {
		return nil, ErrNoRecipient
	}
	return json.Marshal(o)
}
