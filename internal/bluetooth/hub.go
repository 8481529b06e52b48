package bluetooth

import (
	"errors"
	"sync"

	"github.com/muurk/bttest/internal/async"
	"github.com/muurk/bttest/internal/pubsub"
)

// Events fired by a Hub. The payload is the *Manager concerned.
const (
	EventAdapterAdded   = "adapter-added"
	EventAdapterRemoved = "adapter-removed"
)

// Hub tracks the adapters known to the harness
type Hub struct {
	sched async.Scheduler

	mu       sync.Mutex
	adapters []*Manager

	events pubsub.Emitter
}

// NewHub creates an empty hub firing its events on sched
func NewHub(sched async.Scheduler) *Hub {
	return &Hub{sched: sched}
}

// Add initializes m and announces it. Adding a manager twice is a no-op.
func (h *Hub) Add(m *Manager) error {
	h.mu.Lock()
	for _, have := range h.adapters {
		if have == m {
			h.mu.Unlock()
			return nil
		}
	}
	h.mu.Unlock()

	if err := m.Init(); err != nil {
		return err
	}

	h.mu.Lock()
	h.adapters = append(h.adapters, m)
	h.mu.Unlock()
	h.sched.Post(func() { h.events.Fire(EventAdapterAdded, m) })
	return nil
}

// Remove forgets m and announces it. It does not close m.
func (h *Hub) Remove(m *Manager) bool {
	h.mu.Lock()
	idx := -1
	for i, have := range h.adapters {
		if have == m {
			idx = i
			break
		}
	}
	if idx < 0 {
		h.mu.Unlock()
		return false
	}
	h.adapters = append(h.adapters[:idx], h.adapters[idx+1:]...)
	h.mu.Unlock()

	h.sched.Post(func() { h.events.Fire(EventAdapterRemoved, m) })
	return true
}

// Adapters returns the known managers in the order they were added
func (h *Hub) Adapters() []*Manager {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]*Manager(nil), h.adapters...)
}

// Default returns the first adapter, or nil
func (h *Hub) Default() *Manager {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.adapters) == 0 {
		return nil
	}
	return h.adapters[0]
}

// On registers fn for a Hub event
func (h *Hub) On(event string, fn pubsub.Handler) pubsub.Subscription {
	return h.events.On(event, fn)
}

// Off removes a registration made with On
func (h *Hub) Off(event string, sub pubsub.Subscription) {
	h.events.Off(event, sub)
}

// Close closes every adapter and returns their errors joined
func (h *Hub) Close() error {
	var errs []error
	for _, m := range h.Adapters() {
		if err := m.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
