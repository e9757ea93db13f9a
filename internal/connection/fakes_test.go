package connection

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/rickgao/chatstream/internal/bus"
	"github.com/rickgao/chatstream/internal/message"
	"github.com/rickgao/chatstream/internal/transport"
)

// fakeClock fires timers only when advanced.
type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*fakeTimer
	log    []string // "start <period>" / "stop <period>" in call order

	// settle runs after every fired tick so the loop handles it before
	// the next one fires.
	settle func()
}

type fakeTimer struct {
	clock   *fakeClock
	period  time.Duration
	next    time.Time
	fn      func()
	stopped bool
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Every(d time.Duration, fn func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()

	t := &fakeTimer{clock: c, period: d, next: c.now.Add(d), fn: fn}
	c.timers = append(c.timers, t)
	c.log = append(c.log, "start "+d.String())
	return t
}

func (t *fakeTimer) Stop() {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	if t.stopped {
		return
	}
	t.stopped = true
	t.clock.log = append(t.clock.log, "stop "+t.period.String())
}

// Advance moves time forward, firing due timers in time order.
func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	target := c.now.Add(d)
	c.mu.Unlock()

	for {
		c.mu.Lock()
		var due *fakeTimer
		for _, t := range c.timers {
			if t.stopped || t.next.After(target) {
				continue
			}
			if due == nil || t.next.Before(due.next) {
				due = t
			}
		}
		if due == nil {
			c.now = target
			c.mu.Unlock()
			return
		}
		c.now = due.next
		due.next = due.next.Add(due.period)
		fn, settle := due.fn, c.settle
		c.mu.Unlock()

		fn()
		if settle != nil {
			settle()
		}
	}
}

// active counts running timers with the given period (0 = any).
func (c *fakeClock) active(period time.Duration) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, t := range c.timers {
		if !t.stopped && (period == 0 || t.period == period) {
			n++
		}
	}
	return n
}

func (c *fakeClock) events() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.log...)
}

// fakeDialer records every dial and hands out scriptable handles.
type fakeDialer struct {
	mu         sync.Mutex
	clock      Clock
	handles    []*fakeHandle
	dialTimes  []time.Time
	liveAtDial []int // Handles not yet closed when each dial happened
}

func (d *fakeDialer) Dial(url string, cb transport.Callbacks) transport.Handle {
	d.mu.Lock()
	defer d.mu.Unlock()

	live := 0
	for _, h := range d.handles {
		if !h.ownerClosed() {
			live++
		}
	}

	h := &fakeHandle{url: url, cb: cb, state: transport.StateConnecting}
	d.handles = append(d.handles, h)
	d.dialTimes = append(d.dialTimes, d.clock.Now())
	d.liveAtDial = append(d.liveAtDial, live)
	return h
}

func (d *fakeDialer) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.handles)
}

func (d *fakeDialer) handle(i int) *fakeHandle {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.handles[i]
}

func (d *fakeDialer) last() *fakeHandle {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.handles[len(d.handles)-1]
}

func (d *fakeDialer) times() []time.Time {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]time.Time(nil), d.dialTimes...)
}

// fakeHandle is driven by the test; it does not silence callbacks after Close
// so the manager's own stale-event filtering is exercised.
type fakeHandle struct {
	url string
	cb  transport.Callbacks

	mu         sync.Mutex
	state      transport.ReadyState
	sent       [][]byte
	closeCalls int
	sendErr    error
}

func (h *fakeHandle) URL() string { return h.url }

func (h *fakeHandle) ReadyState() transport.ReadyState {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state
}

func (h *fakeHandle) Send(data []byte) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.state != transport.StateOpen {
		return transport.ErrNotOpen
	}
	if h.sendErr != nil {
		return h.sendErr
	}
	h.sent = append(h.sent, append([]byte(nil), data...))
	return nil
}

func (h *fakeHandle) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closeCalls++
	h.state = transport.StateClosed
	return nil
}

func (h *fakeHandle) ownerClosed() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.closeCalls > 0
}

func (h *fakeHandle) setState(s transport.ReadyState) {
	h.mu.Lock()
	h.state = s
	h.mu.Unlock()
}

// open completes the handshake.
func (h *fakeHandle) open() {
	h.setState(transport.StateOpen)
	h.cb.Open()
}

func (h *fakeHandle) deliver(frame string) {
	h.cb.Message([]byte(frame), time.Now())
}

// fail reports an error followed by close, as a refused dial or dropped socket does.
func (h *fakeHandle) fail(err error) {
	h.setState(transport.StateClosed)
	h.cb.Error(err)
	h.cb.Close(transport.CloseInfo{Code: 1006})
}

// remoteClose is a clean close initiated by the server.
func (h *fakeHandle) remoteClose() {
	h.setState(transport.StateClosed)
	h.cb.Close(transport.CloseInfo{Code: 1000, Reason: "bye"})
}

// drop closes the socket without any callback, as when the close event is lost.
func (h *fakeHandle) drop() {
	h.setState(transport.StateClosed)
}

func (h *fakeHandle) sentFrames() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]string, len(h.sent))
	for i, b := range h.sent {
		out[i] = string(b)
	}
	return out
}

// collector records the subscriber side of the bus.
type collector struct {
	mu        sync.Mutex
	msgs      []message.Message
	errs      []error
	completed bool
}

func (c *collector) OnNext(msg message.Message) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.msgs = append(c.msgs, msg)
}

func (c *collector) OnError(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.errs = append(c.errs, err)
}

func (c *collector) OnComplete() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.completed = true
}

func (c *collector) messages() []message.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]message.Message(nil), c.msgs...)
}

func (c *collector) errors() []error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]error(nil), c.errs...)
}

func (c *collector) isCompleted() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.completed
}

const (
	testURL         = "ws://chat.test/echo?id=42"
	testHeartbeat   = 10 * time.Minute
	testReconnect   = 5 * time.Second
	testUptimeEvery = 7 * time.Minute
)

func testConfig() Config {
	return Config{
		HeartbeatPeriod: testHeartbeat,
		ReconnectPeriod: testReconnect,
		UptimeLogPeriod: testUptimeEvery,
		QueueSize:       256,
	}
}

// harness wires a manager to fakes and a recording subscriber.
type harness struct {
	t      *testing.T
	m      *manager
	clock  *fakeClock
	dialer *fakeDialer
	bus    *bus.Bus
	sub    *collector
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	clock := newFakeClock()
	dialer := &fakeDialer{clock: clock}
	b := bus.New(nil)
	col := &collector{}
	b.Subscribe(col)

	m := NewManager(testConfig(), dialer, b, nil, WithClock(clock)).(*manager)
	require.NoError(t, m.Start(context.Background()))
	clock.settle = func() { m.sync() }
	t.Cleanup(func() { m.Close() })

	return &harness{t: t, m: m, clock: clock, dialer: dialer, bus: b, sub: col}
}

// sync waits for the loop to handle every event posted so far.
func (h *harness) sync() {
	h.t.Helper()
	require.NoError(h.t, h.m.sync())
}

func (h *harness) advance(d time.Duration) {
	h.t.Helper()
	h.clock.Advance(d)
	h.sync()
}

// inspect runs fn on the event loop, where loop-confined state may be read.
func (h *harness) inspect(fn func()) {
	h.t.Helper()
	require.NoError(h.t, h.m.do(fn))
}

func (h *harness) reconnectInFlight() bool {
	var v bool
	h.inspect(func() { v = h.m.reconnect.InFlight() })
	return v
}

func (h *harness) heartbeatActive() bool {
	var v bool
	h.inspect(func() { v = h.m.heartbeat.Active() })
	return v
}

// connectOpen connects and completes the handshake.
func (h *harness) connectOpen() *fakeHandle {
	h.t.Helper()
	require.NoError(h.t, h.m.Connect(testURL))
	fh := h.dialer.last()
	fh.open()
	h.sync()
	require.Equal(h.t, StateOpen, h.m.State())
	return fh
}

// indexOf returns the position of the first entry equal to s at or after from.
func indexOf(entries []string, s string, from int) int {
	for i := from; i < len(entries); i++ {
		if entries[i] == s {
			return i
		}
	}
	return -1
}
