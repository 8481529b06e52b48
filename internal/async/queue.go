package async

import (
	"context"
	"sync"
)

// Queue runs operations one at a time in the order they were submitted.
// Each operation still gets its own Future settled on the Scheduler.
type Queue struct {
	ctx   context.Context
	sched Scheduler

	mu   sync.Mutex
	tail chan struct{}
}

// NewQueue creates a queue whose operations receive ctx
func NewQueue(ctx context.Context, s Scheduler) *Queue {
	return &Queue{ctx: ctx, sched: s}
}

// Go submits op. It starts once every operation submitted before it has
// returned.
func (q *Queue) Go(op func(ctx context.Context) error) *Future {
	q.mu.Lock()
	prev := q.tail
	done := make(chan struct{})
	q.tail = done
	q.mu.Unlock()

	return Go(q.ctx, q.sched, func(ctx context.Context) error {
		defer close(done)
		if prev != nil {
			<-prev
		}
		return op(ctx)
	})
}
