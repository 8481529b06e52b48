package pubsub

import (
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/muurk/bttest/internal/logging"
)

// Handler receives the payload passed to Fire.
type Handler func(payload any)

// Subscription identifies one registration made with On.
// Go funcs are not comparable, so Off takes the token instead of the handler.
type Subscription uint64

type entry struct {
	id Subscription
	fn Handler
}

// Emitter attaches publish/subscribe capability to any component.
// The zero value is ready to use.
type Emitter struct {
	mu       sync.Mutex
	next     Subscription
	handlers map[string][]entry
}

// New returns an empty Emitter
func New() *Emitter {
	return &Emitter{}
}

// On registers fn for event. Handlers run in registration order.
func (e *Emitter) On(event string, fn Handler) Subscription {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.handlers == nil {
		e.handlers = make(map[string][]entry)
	}
	e.next++
	e.handlers[event] = append(e.handlers[event], entry{id: e.next, fn: fn})
	return e.next
}

// Off removes a registration made with On. Unknown subscriptions are ignored.
func (e *Emitter) Off(event string, sub Subscription) {
	e.mu.Lock()
	defer e.mu.Unlock()

	list := e.handlers[event]
	for i, h := range list {
		if h.id == sub {
			e.handlers[event] = append(list[:i:i], list[i+1:]...)
			if len(e.handlers[event]) == 0 {
				delete(e.handlers, event)
			}
			return
		}
	}
}

// Fire invokes every handler registered for event, synchronously and in
// registration order. A panicking handler is logged and skipped; the rest
// still run. Handlers added or removed during Fire take effect on the next call.
func (e *Emitter) Fire(event string, payload any) {
	e.mu.Lock()
	list := append([]entry(nil), e.handlers[event]...)
	e.mu.Unlock()

	for _, h := range list {
		invoke(event, h.fn, payload)
	}
}

// Count returns the number of handlers registered for event
func (e *Emitter) Count(event string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.handlers[event])
}

// Total returns the number of handlers registered across all events
func (e *Emitter) Total() int {
	e.mu.Lock()
	defer e.mu.Unlock()

	n := 0
	for _, list := range e.handlers {
		n += len(list)
	}
	return n
}

// Clear drops every registration
func (e *Emitter) Clear() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.handlers = nil
}

func invoke(event string, fn Handler, payload any) {
	defer func() {
		if r := recover(); r != nil {
			logging.Error("Event handler panicked",
				zap.String("event", event),
				zap.String("panic", fmt.Sprint(r)),
			)
		}
	}()
	fn(payload)
}
