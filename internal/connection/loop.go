package connection

import (
	"context"
)

// loop serializes every state change onto one goroutine.
type loop struct {
	tasks chan func()
	done  chan struct{} // Closed when run returns
}

func newLoop(size int) *loop {
	if size < 1 {
		size = 1
	}
	return &loop{
		tasks: make(chan func(), size),
		done:  make(chan struct{}),
	}
}

// post queues fn. Returns false if the loop has exited.
func (l *loop) post(fn func()) bool {
	select {
	case <-l.done:
		return false
	default:
	}

	select {
	case l.tasks <- fn:
		return true
	case <-l.done:
		return false
	}
}

// do runs fn on the loop and waits for it to finish.
func (l *loop) do(fn func()) bool {
	finished := make(chan struct{})
	if !l.post(func() {
		fn()
		close(finished)
	}) {
		return false
	}

	select {
	case <-finished:
		return true
	case <-l.done:
		// fn may have completed just before exit
		select {
		case <-finished:
			return true
		default:
			return false
		}
	}
}

// run executes tasks until ctx is canceled, then calls onExit on the loop.
func (l *loop) run(ctx context.Context, onExit func()) {
	defer close(l.done)

	for {
		select {
		case <-ctx.Done():
			onExit()
			return
		case fn := <-l.tasks:
			fn()
		}
	}
}
