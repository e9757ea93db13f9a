package message

import (
	"encoding/json"
	"fmt"
)

// Server-side half of the protocol, used by the relay.

// ParseOutbound decodes a frame written by a client.
func ParseOutbound(frame []byte) (Outbound, error) {
	var o Outbound
	if err := json.Unmarshal(frame, &o); err != nil {
		return Outbound{}, &ParseError{Frame: frame, Err: err}
	}

	switch o.Type {
	case "", SendAll:
		o.Type = SendAll
		o.To = ""
	case SendSingle:
		if o.To == "" {
			return Outbound{}, &ParseError{Frame: frame, Err: ErrNoRecipient}
		}
	default:
		return Outbound{}, &ParseError{Frame: frame, Err: fmt.Errorf("unknown send type %q", o.Type)}
	}
	return o, nil
}

// EncodeRoster builds a {"users":[...]} frame.
func EncodeRoster(users []string) ([]byte, error) {
	if users == nil {
		users = []string{}
	}
	return json.Marshal(struct {
		Users []string `json:"users"`
	}{users})
}

// EncodeBroadcast builds a {"msg":...} frame.
func EncodeBroadcast(text string) ([]byte, error) {
	return json.Marshal(struct {
		Msg string `json:"msg"`
	}{text})
}
