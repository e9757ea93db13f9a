package message

import (
	"fmt"
)

// Kind identifies the variant of an inbound Message.
type Kind int

const (
	KindRoster Kind = iota + 1
	KindBroadcast
)

func (k Kind) String() string {
	switch k {
	case KindRoster:
		return "roster"
	case KindBroadcast:
		return "broadcast"
	default:
		return "unknown"
	}
}

// Message is a parsed inbound frame: either a RosterUpdate or a Broadcast.
type Message interface {
	Kind() Kind
}

// RosterUpdate lists the users currently connected, in server order.
type RosterUpdate struct {
	Users []string
}

// Kind implements Message.
func (RosterUpdate) Kind() Kind { return KindRoster }

// Broadcast is a chat message delivered to this client.
type Broadcast struct {
	Text string
}

// Kind implements Message.
func (Broadcast) Kind() Kind { return KindBroadcast }

// SendType is the "type" field of an outbound frame.
type SendType string

const (
	SendAll    SendType = "all"
	SendSingle SendType = "single"
)

// Outbound is a chat message sent to the server.
type Outbound struct {
	Msg  string   `json:"msg"`
	Type SendType `json:"type"`
	To   string   `json:"to,omitempty"` // Set only when Type is SendSingle
}

// ParseError reports an inbound frame that is not a valid envelope.
type ParseError struct {
	Frame []byte
	Err   error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse frame %q: %v", truncate(e.Frame, 64), e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
