package transport

import (
	"errors"
	"fmt"
	"time"
)

// Errors
var (
	ErrNotOpen = errors.New("transport not open")
)

// ReadyState mirrors the WebSocket readyState of a handle.
type ReadyState int32

const (
	StateConnecting ReadyState = iota
	StateOpen
	StateClosing
	StateClosed
)

func (s ReadyState) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// CloseInfo describes why a handle closed.
type CloseInfo struct {
	Code   int    // WebSocket close code (1006 when no close frame was received)
	Reason string // Close reason sent by the peer, if any
}

// Callbacks are the edge events of a handle. Nil callbacks are skipped.
type Callbacks struct {
	Open    func()
	Message func(data []byte, receivedAt time.Time)
	Error   func(err error)
	Close   func(info CloseInfo)
}

// Handle is one live duplex connection to the chat endpoint.
type Handle interface {
	// URL returns the endpoint this handle was dialed against.
	URL() string

	// ReadyState returns the handle's last known state.
	ReadyState() ReadyState

	// Send writes a text frame. Returns ErrNotOpen unless the handle is open.
	Send(data []byte) error

	// Close tears the connection down. Safe to call more than once.
	Close() error
}

// Dialer creates handles. Implementations must not block on the network.
type Dialer interface {
	Dial(url string, cb Callbacks) Handle
}

// TransportError is an unexpected dial or read failure.
type TransportError struct {
	URL string
	Op  string // "dial" or "read"
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.URL, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// Config configures the WebSocket dialer.
type Config struct {
	HandshakeTimeout time.Duration // Max time for the opening handshake
	WriteTimeout     time.Duration // Write deadline for sends
	UserAgent        string        // User-Agent header on the handshake (empty = none)
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		HandshakeTimeout: 10 * time.Second,
		WriteTimeout:     5 * time.Second,
	}
}
