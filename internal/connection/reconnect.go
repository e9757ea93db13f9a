package connection

import (
	"log/slog"
	"time"

	"github.com/rickgao/chatstream/internal/metrics"
)

// ReconnectScheduler retries connect on a fixed interval until the connection
// opens. At most one retry loop exists at a time; the in-flight flag is the
// only record of whether one is running.
//
// Methods must be called on the manager's event loop.
type ReconnectScheduler struct {
	period  time.Duration
	clock   Clock
	post    func(func()) bool
	isOpen  func() bool
	connect func()
	logger  *slog.Logger

	inFlight bool
	timer    Timer
	gen      uint64
	ticks    int // Retries issued by the current loop
}

func newReconnectScheduler(period time.Duration, clock Clock, post func(func()) bool, isOpen func() bool, connect func(), logger *slog.Logger) *ReconnectScheduler {
	return &ReconnectScheduler{
		period:  period,
		clock:   clock,
		post:    post,
		isOpen:  isOpen,
		connect: connect,
		logger:  logger,
	}
}

// Start begins a retry loop. Returns ErrAlreadyOpen if the connection is open
// and ErrReconnectInFlight if a loop is already running; both leave exactly
// the timers that existed before.
func (r *ReconnectScheduler) Start() error {
	if r.isOpen() {
		r.Stop()
		return ErrAlreadyOpen
	}
	if r.inFlight {
		return ErrReconnectInFlight
	}

	r.inFlight = true
	r.ticks = 0
	r.gen++
	gen := r.gen
	r.timer = r.clock.Every(r.period, func() {
		r.post(func() { r.tick(gen) })
	})

	metrics.RecordReconnectLoop()
	r.logger.Info("reconnect scheduled", "period", r.period)
	return nil
}

// Stop clears the in-flight flag and cancels the timer. Safe when idle.
func (r *ReconnectScheduler) Stop() {
	r.inFlight = false
	if r.timer == nil {
		return
	}
	r.timer.Stop()
	r.timer = nil
	r.logger.Debug("reconnect stopped", "retries", r.ticks)
}

// InFlight reports whether a retry loop is active.
func (r *ReconnectScheduler) InFlight() bool {
	return r.inFlight
}

// Ticks returns the number of retries issued by the current or last loop.
func (r *ReconnectScheduler) Ticks() int {
	return r.ticks
}

func (r *ReconnectScheduler) tick(gen uint64) {
	if !r.inFlight || gen != r.gen {
		return
	}
	r.ticks++

	r.logger.Info("attempting reconnection", "attempt", r.ticks)
	r.connect()
}
