// Package bus fans parsed chat messages out to subscriber streams.
//
// Each subscription owns an unbounded FIFO drained by its own goroutine, so
// publishing never blocks and every subscriber sees events in publish order.
// Errors are not terminal; Complete is.
package bus

import (
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/rickgao/chatstream/internal/message"
)

// Subscriber consumes a message stream.
type Subscriber interface {
	OnNext(msg message.Message)
	OnError(err error)
	OnComplete()
}

// Funcs adapts plain functions to Subscriber. Nil fields are skipped.
type Funcs struct {
	Next     func(msg message.Message)
	Error    func(err error)
	Complete func()
}

func (f Funcs) OnNext(msg message.Message) {
	if f.Next != nil {
		f.Next(msg)
	}
}

func (f Funcs) OnError(err error) {
	if f.Error != nil {
		f.Error(err)
	}
}

func (f Funcs) OnComplete() {
	if f.Complete != nil {
		f.Complete()
	}
}

type deliveryKind int

const (
	deliverNext deliveryKind = iota
	deliverError
	deliverComplete
)

type delivery struct {
	kind deliveryKind
	msg  message.Message
	err  error
}

// Bus is the multicast point between the connection and its consumers.
type Bus struct {
	logger *slog.Logger

	mu        sync.Mutex
	subs      map[uuid.UUID]*Subscription
	completed bool
}

// New creates an empty bus.
func New(logger *slog.Logger) *Bus {
	if logger == nil {
		logger = slog.Default()
	}

	return &Bus{
		logger: logger.With("component", "bus"),
		subs:   make(map[uuid.UUID]*Subscription),
	}
}

// Subscribe registers s and starts delivering to it. Subscribing to a
// completed bus delivers OnComplete straight away.
func (b *Bus) Subscribe(s Subscriber) *Subscription {
	sub := &Subscription{
		id:   uuid.New(),
		bus:  b,
		sub:  s,
		q:    newQueue[delivery](16),
		done: make(chan struct{}),
	}

	b.mu.Lock()
	if b.completed {
		b.mu.Unlock()
		sub.q.push(delivery{kind: deliverComplete})
		sub.q.close()
	} else {
		b.subs[sub.id] = sub
		b.mu.Unlock()
	}

	go sub.deliver(b.logger.With("subscription", sub.id))

	b.logger.Debug("subscribed", "subscription", sub.id)
	return sub
}

// Next publishes a message.
func (b *Bus) Next(msg message.Message) {
	b.publish(delivery{kind: deliverNext, msg: msg})
}

// Error publishes a non-terminal error.
func (b *Bus) Error(err error) {
	b.publish(delivery{kind: deliverError, err: err})
}

// Complete ends every stream. Later publishes are dropped.
func (b *Bus) Complete() {
	b.mu.Lock()
	if b.completed {
		b.mu.Unlock()
		return
	}
	b.completed = true
	subs := b.snapshotLocked()
	b.subs = make(map[uuid.UUID]*Subscription)
	b.mu.Unlock()

	for _, s := range subs {
		s.q.push(delivery{kind: deliverComplete})
		s.q.close()
	}

	b.logger.Debug("bus completed", "subscribers", len(subs))
}

// Len returns the number of active subscriptions.
func (b *Bus) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

func (b *Bus) publish(d delivery) {
	b.mu.Lock()
	if b.completed {
		b.mu.Unlock()
		b.logger.Debug("publish after complete dropped")
		return
	}
	// Enqueue under the lock so concurrent publishers keep a single order.
	for _, s := range b.subs {
		s.q.push(d)
	}
	b.mu.Unlock()
}

func (b *Bus) snapshotLocked() []*Subscription {
	subs := make([]*Subscription, 0, len(b.subs))
	for _, s := range b.subs {
		subs = append(subs, s)
	}
	return subs
}

func (b *Bus) remove(id uuid.UUID) {
	b.mu.Lock()
	delete(b.subs, id)
	b.mu.Unlock()
}

// Subscription is the handle returned by Subscribe.
type Subscription struct {
	id       uuid.UUID
	bus      *Bus
	sub      Subscriber
	q        *queue[delivery]
	done     chan struct{}
	canceled atomic.Bool
}

// ID returns the subscription's unique id.
func (s *Subscription) ID() uuid.UUID { return s.id }

// Done is closed once the stream has ended, by Complete or Cancel.
func (s *Subscription) Done() <-chan struct{} { return s.done }

// Cancel detaches the subscriber and drops anything still queued. It may be
// called from inside a callback and more than once; a callback already
// running when Cancel is called finishes, nothing else is delivered.
func (s *Subscription) Cancel() {
	if s.canceled.Swap(true) {
		return
	}
	s.bus.remove(s.id)
	s.q.discard()
}

func (s *Subscription) deliver(logger *slog.Logger) {
	defer close(s.done)

	for {
		d, ok := s.q.pop()
		if !ok || s.canceled.Load() {
			return
		}

		s.dispatch(d, logger)

		if d.kind == deliverComplete {
			return
		}
	}
}

// dispatch runs one callback, containing subscriber panics.
func (s *Subscription) dispatch(d delivery, logger *slog.Logger) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("subscriber panicked", "panic", r)
		}
	}()

	switch d.kind {
	case deliverNext:
		s.sub.OnNext(d.msg)
	case deliverError:
		s.sub.OnError(d.err)
	case deliverComplete:
		s.sub.OnComplete()
	}
}
