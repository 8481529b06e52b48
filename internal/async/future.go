package async

import (
	"context"
	"fmt"
	"sync"
)

// Future is the eventual outcome of a hardware operation. Callbacks added
// with Then always run on the Scheduler, never on the goroutine that settles
// the future, and never synchronously inside Then.
type Future struct {
	sched Scheduler

	mu        sync.Mutex
	settled   bool
	err       error
	callbacks []func(error)
}

// NewFuture returns a pending future and the function that settles it.
// Only the first call to settle has any effect.
func NewFuture(s Scheduler) (*Future, func(error)) {
	f := &Future{sched: s}
	return f, f.settle
}

// Resolved returns a future already settled with err.
func Resolved(s Scheduler, err error) *Future {
	f := &Future{sched: s}
	f.settle(err)
	return f
}

// Go runs op on a new goroutine and settles the returned future with its
// result. A panic inside op rejects the future.
func Go(ctx context.Context, s Scheduler, op func(ctx context.Context) error) *Future {
	f, settle := NewFuture(s)
	t, tracked := s.(tracker)
	if tracked {
		t.track(1)
	}

	go func() {
		var err error
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("operation panicked: %v", r)
			}
			settle(err)
			if tracked {
				t.track(-1)
			}
		}()
		err = op(ctx)
	}()

	return f
}

// Then registers fn to receive the settlement error (nil on success).
// It returns f so calls can be chained.
func (f *Future) Then(fn func(err error)) *Future {
	f.mu.Lock()
	if !f.settled {
		f.callbacks = append(f.callbacks, fn)
		f.mu.Unlock()
		return f
	}
	err := f.err
	f.mu.Unlock()

	f.sched.Post(func() { fn(err) })
	return f
}

// Settled reports whether f has settled and, if so, its error.
func (f *Future) Settled() (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.settled, f.err
}

func (f *Future) settle(err error) {
	f.mu.Lock()
	if f.settled {
		f.mu.Unlock()
		return
	}
	f.settled = true
	f.err = err
	callbacks := f.callbacks
	f.callbacks = nil
	f.mu.Unlock()

	for _, cb := range callbacks {
		cb := cb
		f.sched.Post(func() { cb(err) })
	}
}
