// Package chat keeps the client-side view of a chat room: who is online,
// what has been said, and how the stream is doing.
package chat

import (
	"log/slog"
	"slices"
	"sync"

	"github.com/rickgao/chatstream/internal/message"
)

// DefaultHistory is the number of broadcasts a room keeps by default.
const DefaultHistory = 500

// EventKind identifies what changed in a room.
type EventKind int

const (
	EventRoster EventKind = iota
	EventMessage
	EventError
	EventComplete
)

// Event is passed to the room's change hook.
type Event struct {
	Kind  EventKind
	Users []string // EventRoster
	Text  string   // EventMessage
	Err   error    // EventError
}

// Option customizes a room.
type Option func(*Room)

// WithHistory bounds the message history. Zero or less keeps everything.
func WithHistory(n int) Option {
	return func(r *Room) { r.limit = n }
}

// WithOnChange registers a hook called after every change. It runs on the
// subscription's delivery goroutine.
func WithOnChange(fn func(Event)) Option {
	return func(r *Room) { r.onChange = fn }
}

// Room is a bus subscriber holding the state of the current chat session.
type Room struct {
	self     string
	limit    int
	onChange func(Event)
	logger   *slog.Logger

	mu        sync.RWMutex
	users     []string
	messages  []string
	lastErr   error
	errCount  int
	completed bool
}

// NewRoom creates a room for the given user.
func NewRoom(self string, logger *slog.Logger, opts ...Option) *Room {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Room{
		self:   self,
		limit:  DefaultHistory,
		logger: logger.With("component", "room"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// OnNext applies a roster update or appends a broadcast.
func (r *Room) OnNext(msg message.Message) {
	var ev Event

	r.mu.Lock()
	switch m := msg.(type) {
	case message.RosterUpdate:
		r.users = slices.Clone(m.Users)
		ev = Event{Kind: EventRoster, Users: slices.Clone(m.Users)}
	case message.Broadcast:
		r.messages = append(r.messages, m.Text)
		if r.limit > 0 && len(r.messages) > r.limit {
			r.messages = slices.Delete(r.messages, 0, len(r.messages)-r.limit)
		}
		ev = Event{Kind: EventMessage, Text: m.Text}
	default:
		r.mu.Unlock()
		r.logger.Warn("ignoring unknown message", "kind", msg.Kind())
		return
	}
	r.mu.Unlock()

	r.notify(ev)
}

// OnError records the latest stream error. The stream keeps going.
func (r *Room) OnError(err error) {
	r.mu.Lock()
	r.lastErr = err
	r.errCount++
	r.mu.Unlock()

	r.notify(Event{Kind: EventError, Err: err})
}

// OnComplete marks the session as over.
func (r *Room) OnComplete() {
	r.mu.Lock()
	r.completed = true
	r.mu.Unlock()

	r.notify(Event{Kind: EventComplete})
}

// Self returns the local user id.
func (r *Room) Self() string { return r.self }

// Users returns the current roster.
func (r *Room) Users() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.users)
}

// Online reports whether user is in the roster.
func (r *Room) Online(user string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Contains(r.users, user)
}

// Messages returns the received broadcasts, oldest first.
func (r *Room) Messages() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.messages)
}

// Err returns the most recent stream error, if any.
func (r *Room) Err() error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.lastErr
}

// ErrorCount returns how many stream errors were seen.
func (r *Room) ErrorCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.errCount
}

// Completed reports whether the stream has ended.
func (r *Room) Completed() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.completed
}

func (r *Room) notify(ev Event) {
	if r.onChange != nil {
		r.onChange(ev)
	}
}
