package relay

import (
	"errors"
	"time"
)

// Errors
var (
	ErrMissingID  = errors.New("missing id query parameter")
	ErrSendQueue  = errors.New("client send queue full")
	ErrNoSuchUser = errors.New("recipient not connected")
)

// Config configures the relay.
type Config struct {
	SendQueueSize  int           // Per-client outbound queue
	WriteTimeout   time.Duration // Per-frame write deadline
	MaxMessageSize int64         // Read limit per frame
	EchoToSender   bool          // Whether "all" frames go back to their author; "single" always do
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		SendQueueSize:  256,
		WriteTimeout:   10 * time.Second,
		MaxMessageSize: 64 * 1024,
		EchoToSender:   true,
	}
}

// Stats contains runtime statistics.
type Stats struct {
	Clients        int   `json:"clients"`
	Users          int   `json:"users"`
	FramesReceived int64 `json:"frames_received"`
	FramesRelayed  int64 `json:"frames_relayed"`
	ParseErrors    int64 `json:"parse_errors"`
	Undeliverable  int64 `json:"undeliverable"`
}
