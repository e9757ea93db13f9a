package connection

import (
	"log/slog"
	"time"

	"github.com/rickgao/chatstream/internal/metrics"
)

// HeartbeatMonitor periodically checks that the transport still reports open.
//
// The check is passive: it reads the last known socket state and never sends
// a ping, so it catches connections whose close event was lost, not peers that
// stopped answering. On failure the monitor stops itself before handing off.
//
// Methods must be called on the manager's event loop.
type HeartbeatMonitor struct {
	period    time.Duration
	clock     Clock
	post      func(func()) bool
	isOpen    func() bool
	onFailure func()
	logger    *slog.Logger

	timer Timer
	gen   uint64 // Identifies the live timer; older ticks are dropped
	ticks int
}

func newHeartbeatMonitor(period time.Duration, clock Clock, post func(func()) bool, isOpen func() bool, onFailure func(), logger *slog.Logger) *HeartbeatMonitor {
	return &HeartbeatMonitor{
		period:    period,
		clock:     clock,
		post:      post,
		isOpen:    isOpen,
		onFailure: onFailure,
		logger:    logger,
	}
}

// Start begins sampling, replacing any running timer.
func (h *HeartbeatMonitor) Start() {
	h.Stop()

	h.gen++
	gen := h.gen
	h.timer = h.clock.Every(h.period, func() {
		h.post(func() { h.tick(gen) })
	})

	h.logger.Debug("heartbeat started", "period", h.period)
}

// Stop cancels the timer. Safe when not running.
func (h *HeartbeatMonitor) Stop() {
	if h.timer == nil {
		return
	}
	h.timer.Stop()
	h.timer = nil
	h.logger.Debug("heartbeat stopped")
}

// Active reports whether a heartbeat timer is running.
func (h *HeartbeatMonitor) Active() bool {
	return h.timer != nil
}

func (h *HeartbeatMonitor) tick(gen uint64) {
	if h.timer == nil || gen != h.gen {
		return
	}
	h.ticks++

	if h.isOpen() {
		h.logger.Debug("heartbeat ok", "tick", h.ticks)
		return
	}

	h.logger.Warn("heartbeat found connection down, reconnecting", "tick", h.ticks)
	metrics.RecordHeartbeatFailure()

	// Cancel first so this monitor never fires again until restarted.
	h.Stop()
	h.onFailure()
}
