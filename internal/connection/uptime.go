package connection

import (
	"log/slog"
	"time"
)

// uptimeTracker logs how long the current connection has been open.
type uptimeTracker struct {
	period time.Duration
	clock  Clock
	post   func(func()) bool
	logger *slog.Logger

	timer Timer
	gen   uint64
	since time.Time
	ticks int
}

func newUptimeTracker(period time.Duration, clock Clock, post func(func()) bool, logger *slog.Logger) *uptimeTracker {
	return &uptimeTracker{
		period: period,
		clock:  clock,
		post:   post,
		logger: logger,
	}
}

func (u *uptimeTracker) start() {
	u.stop()

	u.since = u.clock.Now()
	u.ticks = 0
	u.gen++
	gen := u.gen
	u.timer = u.clock.Every(u.period, func() {
		u.post(func() { u.tick(gen) })
	})
}

func (u *uptimeTracker) stop() {
	if u.timer == nil {
		return
	}
	u.timer.Stop()
	u.timer = nil
	u.logger.Info("connection uptime", "uptime", u.clock.Now().Sub(u.since).Round(time.Second))
	u.since = time.Time{}
}

func (u *uptimeTracker) tick(gen uint64) {
	if u.timer == nil || gen != u.gen {
		return
	}
	u.ticks++
	u.logger.Info("connection running", "uptime", u.clock.Now().Sub(u.since).Round(time.Second))
}
