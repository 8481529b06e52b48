package async

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrLoopStopped is returned by Run after Stop has been called.
var ErrLoopStopped = errors.New("event loop stopped")

// Scheduler runs posted functions one at a time, in post order, on a single
// goroutine. Post may be called from any goroutine.
type Scheduler interface {
	Post(fn func())
}

// tracker is implemented by schedulers that count operations started with Go
// so Settle can wait for them.
type tracker interface {
	track(delta int)
}

// Loop is a FIFO task queue. It is driven either by Run on a dedicated
// goroutine, or by a host event loop that calls Drain whenever Wake fires.
type Loop struct {
	mu       sync.Mutex
	queue    []func()
	inFlight int
	stopped  bool
	wake     chan struct{}
}

// NewLoop returns an idle loop
func NewLoop() *Loop {
	return &Loop{wake: make(chan struct{}, 1)}
}

// Post queues fn. Posting to a stopped loop drops fn.
func (l *Loop) Post(fn func()) {
	l.mu.Lock()
	if l.stopped {
		l.mu.Unlock()
		return
	}
	l.queue = append(l.queue, fn)
	l.mu.Unlock()
	l.signal()
}

// Wake returns a channel that receives whenever tasks become available.
func (l *Loop) Wake() <-chan struct{} {
	return l.wake
}

// Len returns the number of queued tasks
func (l *Loop) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.queue)
}

// InFlight returns the number of operations started with Go that have not
// settled yet.
func (l *Loop) InFlight() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.inFlight
}

// Drain runs queued tasks, including ones queued while draining, until the
// queue is empty. It returns the number of tasks run. Drain must only be
// called from the goroutine that owns the loop.
func (l *Loop) Drain() int {
	n := 0
	for {
		l.mu.Lock()
		if len(l.queue) == 0 {
			l.mu.Unlock()
			return n
		}
		fn := l.queue[0]
		l.queue[0] = nil
		l.queue = l.queue[1:]
		l.mu.Unlock()

		fn()
		n++
	}
}

// Settle drains the queue until it is empty and no operation started with Go
// is still running, or until timeout passes. It reports whether the loop
// became idle.
func (l *Loop) Settle(timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for {
		l.Drain()
		l.mu.Lock()
		idle := len(l.queue) == 0 && l.inFlight == 0
		l.mu.Unlock()
		if idle {
			return true
		}
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return false
		}
		select {
		case <-l.wake:
		case <-time.After(minDuration(remaining, 10*time.Millisecond)):
		}
	}
}

// Run executes tasks until ctx is done or Stop is called.
func (l *Loop) Run(ctx context.Context) error {
	for {
		l.Drain()

		l.mu.Lock()
		stopped := l.stopped
		l.mu.Unlock()
		if stopped {
			return ErrLoopStopped
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-l.wake:
		}
	}
}

// Stop makes Run return and drops any further posts
func (l *Loop) Stop() {
	l.mu.Lock()
	l.stopped = true
	l.queue = nil
	l.mu.Unlock()
	l.signal()
}

func (l *Loop) track(delta int) {
	l.mu.Lock()
	l.inFlight += delta
	l.mu.Unlock()
	if delta < 0 {
		l.signal()
	}
}

func (l *Loop) signal() {
	select {
	case l.wake <- struct{}{}:
	default:
	}
}

func minDuration(a, b time.Duration) time.Duration {
	if a < b {
		return a
	}
	return b
}
