// Package coord provides the coordination context: a single goroutine that
// runs posted functions one at a time. Everything that mutates detection or
// behavior state runs here, so that state needs no locks.
package coord

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/teslashibe/go-lookout/internal/log"
)

// ErrStopped is returned when work is posted to a loop that has exited.
var ErrStopped = errors.New("coord: loop stopped")

// Loop serializes posted functions onto one goroutine.
type Loop struct {
	tasks chan func()
	done  chan struct{}

	// deferred is only touched on the loop goroutine
	deferred []func()

	mu      sync.Mutex
	running bool
	stopped bool
}

// New creates a loop with the given task buffer.
func New(buffer int) *Loop {
	if buffer < 1 {
		buffer = 1
	}
	return &Loop{
		tasks: make(chan func(), buffer),
		done:  make(chan struct{}),
	}
}

// Run processes tasks until ctx is cancelled. It may be called once.
func (l *Loop) Run(ctx context.Context) error {
	l.mu.Lock()
	if l.running || l.stopped {
		l.mu.Unlock()
		return errors.New("coord: loop already run")
	}
	l.running = true
	l.mu.Unlock()

	logger := log.For("coord")
	logger.Debug("loop started")

	defer func() {
		l.mu.Lock()
		l.running = false
		l.stopped = true
		l.mu.Unlock()
		close(l.done)
		logger.Debug("loop stopped")
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case fn := <-l.tasks:
			l.exec(fn, logger)
			for len(l.deferred) > 0 {
				next := l.deferred[0]
				l.deferred = l.deferred[1:]
				l.exec(next, logger)
			}
		}
	}
}

func (l *Loop) exec(fn func(), logger *slog.Logger) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("task panicked", "panic", r)
		}
	}()
	fn()
}

// Post enqueues fn. It blocks while the buffer is full and returns false
// once the loop has stopped. Tasks run in the order they were posted.
func (l *Loop) Post(fn func()) bool {
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

// Defer schedules fn to run right after the current task, ahead of any
// posted work. It must only be called from a task running on the loop; it
// never blocks, so a task can use it to re-enter the loop safely.
func (l *Loop) Defer(fn func()) {
	l.deferred = append(l.deferred, fn)
}

// Do posts fn and waits until it has run.
func (l *Loop) Do(ctx context.Context, fn func()) error {
	finished := make(chan struct{})
	if !l.Post(func() {
		defer close(finished)
		fn()
	}) {
		return ErrStopped
	}
	select {
	case <-finished:
		return nil
	case <-l.done:
		select {
		case <-finished:
			return nil
		default:
			return ErrStopped
		}
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Done is closed when Run returns.
func (l *Loop) Done() <-chan struct{} { return l.done }
