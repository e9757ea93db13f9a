package connection

import (
	"sync"
	"time"
)

// Clock is the time source for the manager's recurring timers.
type Clock interface {
	Now() time.Time

	// Every calls fn every d until the returned Timer is stopped. fn runs on a
	// clock-owned goroutine and must hand its work to the event loop.
	Every(d time.Duration, fn func()) Timer
}

// Timer is a cancelable recurring timer.
type Timer interface {
	// Stop cancels the timer. Safe to call more than once.
	Stop()
}

// realClock is the wall clock.
type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) Every(d time.Duration, fn func()) Timer {
	t := &tickerTimer{stop: make(chan struct{})}
	ticker := time.NewTicker(d)

	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-t.stop:
				return
			case <-ticker.C:
				fn()
			}
		}
	}()

	return t
}

type tickerTimer struct {
	stop chan struct{}
	once sync.Once
}

func (t *tickerTimer) Stop() {
	t.once.Do(func() { close(t.stop) })
}
