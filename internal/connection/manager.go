package connection

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rickgao/chatstream/internal/bus"
	"github.com/rickgao/chatstream/internal/message"
	"github.com/rickgao/chatstream/internal/metrics"
	"github.com/rickgao/chatstream/internal/transport"
)

// Manager owns the chat connection and keeps it alive.
type Manager interface {
	// Start runs the event loop until ctx is canceled or Close is called.
	Start(ctx context.Context) error

	// Connect dials url, or the last stored URL when url is empty.
	Connect(url string) error

	// SendMessage writes payload verbatim as a text frame.
	SendMessage(payload []byte) error

	// Send encodes and writes a chat message.
	Send(msg message.Outbound) error

	// State returns the current connection state.
	State() State

	// Stats returns current connection statistics.
	Stats() Stats

	// Close ends the session: timers stop, the handle closes, the bus completes.
	Close() error
}

// Option customizes a manager.
type Option func(*manager)

// WithClock replaces the wall clock, mainly for tests.
func WithClock(c Clock) Option {
	return func(m *manager) { m.clock = c }
}

// manager implements the Manager interface.
type manager struct {
	cfg    Config
	dialer transport.Dialer
	bus    *bus.Bus
	clock  Clock
	logger *slog.Logger

	loop    *loop
	cancel  context.CancelFunc
	started atomic.Bool
	state   atomic.Int32

	closeOnce sync.Once

	// Loop-confined
	url            string
	handle         transport.Handle
	attempt        uint64 // Identifies the current handle; older callbacks are dropped
	connectSuccess bool
	closed         bool

	heartbeat *HeartbeatMonitor
	reconnect *ReconnectScheduler
	uptime    *uptimeTracker
}

// NewManager creates a connection manager publishing to b.
func NewManager(cfg Config, dialer transport.Dialer, b *bus.Bus, logger *slog.Logger, opts ...Option) Manager {
	if logger == nil {
		logger = slog.Default()
	}

	defaults := DefaultConfig()
	if cfg.HeartbeatPeriod <= 0 {
		cfg.HeartbeatPeriod = defaults.HeartbeatPeriod
	}
	if cfg.ReconnectPeriod <= 0 {
		cfg.ReconnectPeriod = defaults.ReconnectPeriod
	}
	if cfg.UptimeLogPeriod <= 0 {
		cfg.UptimeLogPeriod = defaults.UptimeLogPeriod
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = defaults.QueueSize
	}

	m := &manager{
		cfg:    cfg,
		dialer: dialer,
		bus:    b,
		clock:  realClock{},
		logger: logger.With("component", "connection"),
		loop:   newLoop(cfg.QueueSize),
	}
	for _, opt := range opts {
		opt(m)
	}

	m.heartbeat = newHeartbeatMonitor(
		cfg.HeartbeatPeriod, m.clock, m.loop.post,
		m.transportOpen, m.onHeartbeatFailure,
		m.logger.With("timer", "heartbeat"),
	)
	m.reconnect = newReconnectScheduler(
		cfg.ReconnectPeriod, m.clock, m.loop.post,
		m.transportOpen, m.retry,
		m.logger.With("timer", "reconnect"),
	)
	m.uptime = newUptimeTracker(cfg.UptimeLogPeriod, m.clock, m.loop.post, m.logger)

	m.setState(StateIdle)
	return m
}

// Start launches the event loop.
func (m *manager) Start(ctx context.Context) error {
	if !m.started.CompareAndSwap(false, true) {
		return ErrAlreadyStarted
	}

	ctx, m.cancel = context.WithCancel(ctx)
	go m.loop.run(ctx, m.shutdown)

	m.logger.Info("connection manager started",
		"heartbeat_period", m.cfg.HeartbeatPeriod,
		"reconnect_period", m.cfg.ReconnectPeriod,
	)
	return nil
}

// Connect dials the endpoint.
func (m *manager) Connect(url string) error {
	var err error
	if callErr := m.do(func() { err = m.connect(url) }); callErr != nil {
		return callErr
	}
	return err
}

// SendMessage writes payload to the open connection.
func (m *manager) SendMessage(payload []byte) error {
	var err error
	if callErr := m.do(func() { err = m.sendMessage(payload) }); callErr != nil {
		return callErr
	}
	return err
}

// Send encodes msg and writes it.
func (m *manager) Send(msg message.Outbound) error {
	payload, err := msg.Encode()
	if err != nil {
		return fmt.Errorf("encode message: %w", err)
	}
	return m.SendMessage(payload)
}

// State returns the current state.
func (m *manager) State() State {
	return State(m.state.Load())
}

// Stats returns current statistics.
func (m *manager) Stats() Stats {
	var stats Stats
	if err := m.do(func() {
		stats = Stats{
			URL:               m.url,
			ConnectAttempts:   m.attempt,
			ReconnectInFlight: m.reconnect.InFlight(),
			ReconnectTicks:    m.reconnect.Ticks(),
			HeartbeatActive:   m.heartbeat.Active(),
			ConnectedSince:    m.uptime.since,
		}
	}); err != nil {
		m.logger.Debug("stats unavailable", "error", err)
	}

	stats.State = m.State()
	stats.StateName = stats.State.String()
	return stats
}

// Close shuts the manager down and waits for the loop to exit.
func (m *manager) Close() error {
	m.closeOnce.Do(func() {
		if !m.started.Load() {
			// No loop ever ran, so nothing else can touch the state.
			m.shutdown()
			return
		}

		m.do(m.shutdown)
		m.cancel()
		<-m.loop.done
	})
	return nil
}

// do runs fn on the event loop.
func (m *manager) do(fn func()) error {
	if !m.started.Load() {
		return ErrNotStarted
	}
	if !m.loop.do(fn) {
		return ErrManagerClosed
	}
	return nil
}

// sync waits until every previously posted event has been handled.
func (m *manager) sync() error {
	return m.do(func() {})
}

func (m *manager) setState(s State) {
	m.state.Store(int32(s))
	metrics.SetConnectionState(int(s))
}

// connect replaces the handle with a fresh one bound to the stored URL.
func (m *manager) connect(url string) error {
	if m.closed {
		return ErrManagerClosed
	}
	if url != "" {
		m.url = url
	}
	if m.url == "" {
		return ErrNoURL
	}

	first := m.State() == StateIdle

	// Never hold two live handles.
	if m.handle != nil {
		m.handle.Close()
		m.handle = nil
	}

	m.attempt++
	attempt := m.attempt
	m.connectSuccess = false
	m.setState(StateConnecting)
	metrics.RecordConnectAttempt()

	m.logger.Debug("connecting", "url", m.url, "attempt", attempt)
	m.handle = m.dialer.Dial(m.url, m.callbacks(attempt))

	if first {
		m.heartbeat.Start()
	}
	return nil
}

// retry is the reconnect tick: connect again to the stored URL.
func (m *manager) retry() {
	if err := m.connect(""); err != nil {
		m.logger.Warn("reconnect attempt failed", "error", err)
	}
}

// callbacks binds transport events to this attempt.
func (m *manager) callbacks(attempt uint64) transport.Callbacks {
	return transport.Callbacks{
		Open: func() {
			m.loop.post(func() { m.onOpen(attempt) })
		},
		Message: func(data []byte, receivedAt time.Time) {
			m.loop.post(func() { m.onMessage(attempt, data, receivedAt) })
		},
		Error: func(err error) {
			m.loop.post(func() { m.onError(attempt, err) })
		},
		Close: func(info transport.CloseInfo) {
			m.loop.post(func() { m.onClose(attempt, info) })
		},
	}
}

func (m *manager) current(attempt uint64) bool {
	return !m.closed && attempt == m.attempt
}

func (m *manager) onOpen(attempt uint64) {
	if !m.current(attempt) {
		return
	}

	m.setState(StateOpen)
	m.connectSuccess = true

	if m.reconnect.InFlight() {
		m.reconnect.Stop()
		m.heartbeat.Start()
	} else if !m.heartbeat.Active() {
		m.heartbeat.Start()
	}
	m.uptime.start()

	m.logger.Info("connected", "url", m.url, "attempt", attempt)
}

func (m *manager) onMessage(attempt uint64, data []byte, receivedAt time.Time) {
	if !m.current(attempt) {
		return
	}

	msg, err := message.Parse(data)
	if err != nil {
		metrics.RecordError("parse")
		m.logger.Warn("dropping malformed frame", "error", err)
		m.bus.Error(err)
		return
	}

	metrics.RecordFrameReceived(msg.Kind().String())
	m.logger.Debug("frame received", "kind", msg.Kind(), "received_at", receivedAt)
	m.bus.Next(msg)
}

func (m *manager) onError(attempt uint64, err error) {
	if !m.current(attempt) {
		return
	}

	// Reconnect is driven by the close event that always follows.
	m.connectSuccess = false
	metrics.RecordError("transport")
	m.logger.Warn("transport error", "error", err)
	m.bus.Error(err)
}

func (m *manager) onClose(attempt uint64, info transport.CloseInfo) {
	if !m.current(attempt) {
		return
	}

	m.setState(StateClosed)
	m.connectSuccess = false
	if m.handle != nil {
		m.handle.Close()
	}

	m.logger.Info("connection closed", "code", info.Code, "reason", info.Reason)

	if err := m.reconnect.Start(); err != nil {
		m.logger.Debug("reconnect not started", "reason", err)
	}
	m.uptime.stop()
}

func (m *manager) onHeartbeatFailure() {
	if err := m.reconnect.Start(); err != nil {
		m.logger.Debug("reconnect not started", "reason", err)
	}
}

// transportOpen is the liveness probe shared by the heartbeat and reconnect.
func (m *manager) transportOpen() bool {
	return m.State() == StateOpen &&
		m.connectSuccess &&
		m.handle != nil &&
		m.handle.ReadyState() == transport.StateOpen
}

func (m *manager) sendMessage(payload []byte) error {
	if m.closed {
		return ErrManagerClosed
	}
	if m.State() != StateOpen || m.handle == nil {
		return ErrNotConnected
	}

	if err := m.handle.Send(payload); err != nil {
		metrics.RecordError("send")
		if errors.Is(err, transport.ErrNotOpen) {
			return ErrNotConnected
		}
		return fmt.Errorf("send: %w", err)
	}

	metrics.RecordFrameSent()
	return nil
}

// shutdown runs on the loop (or before it ever started).
func (m *manager) shutdown() {
	if m.closed {
		return
	}
	m.closed = true

	m.heartbeat.Stop()
	m.reconnect.Stop()
	m.uptime.stop()

	if m.handle != nil {
		m.handle.Close()
		m.handle = nil
	}
	m.connectSuccess = false
	m.setState(StateClosed)
	m.bus.Complete()

	m.logger.Info("connection manager stopped", "attempts", m.attempt)
}
