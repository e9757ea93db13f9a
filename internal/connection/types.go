package connection

import (
	"errors"
	"time"
)

// Errors
var (
	ErrNotConnected      = errors.New("not connected")
	ErrNoURL             = errors.New("no endpoint URL")
	ErrNotStarted        = errors.New("manager not started")
	ErrAlreadyStarted    = errors.New("manager already started")
	ErrManagerClosed     = errors.New("manager closed")
	ErrReconnectInFlight = errors.New("reconnect already in flight")
	ErrAlreadyOpen       = errors.New("connection already open")
)

// State is the lifecycle state of the managed connection.
type State int32

const (
	StateIdle State = iota
	StateConnecting
	StateOpen
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Config configures the connection manager.
type Config struct {
	HeartbeatPeriod time.Duration // Liveness sampling interval
	ReconnectPeriod time.Duration // Fixed retry interval while disconnected
	UptimeLogPeriod time.Duration // How often the uptime of an open connection is logged
	QueueSize       int           // Event loop queue capacity
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		HeartbeatPeriod: 10 * time.Minute,
		ReconnectPeriod: 5 * time.Second,
		UptimeLogPeriod: 10 * time.Minute,
		QueueSize:       1024,
	}
}

// Stats is a point-in-time view of the manager.
type Stats struct {
	State             State     `json:"-"`
	StateName         string    `json:"state"`
	URL               string    `json:"url"`
	ConnectAttempts   uint64    `json:"connect_attempts"`
	ReconnectInFlight bool      `json:"reconnect_in_flight"`
	ReconnectTicks    int       `json:"reconnect_ticks"`
	HeartbeatActive   bool      `json:"heartbeat_active"`
	ConnectedSince    time.Time `json:"connected_since,omitempty"`
}
