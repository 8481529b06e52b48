package widget

import "github.com/muurk/bttest/internal/pubsub"

// Change is the payload fired by an observable Property
type Change[T comparable] struct {
	Old T
	New T
}

// Property is a typed value whose mutator applies a visual side effect and,
// when observable, notifies listeners of real changes.
type Property[T comparable] struct {
	value T
	apply func(old, next T)

	events *pubsub.Emitter
	event  string
}

// NewProperty returns a property holding initial. apply may be nil; it is not
// run for the initial value.
func NewProperty[T comparable](initial T, apply func(old, next T)) *Property[T] {
	return &Property[T]{value: initial, apply: apply}
}

// Observe makes Set fire event on e whenever the value changes
func (p *Property[T]) Observe(e *pubsub.Emitter, event string) *Property[T] {
	p.events = e
	p.event = event
	return p
}

// Get returns the current value
func (p *Property[T]) Get() T {
	return p.value
}

// Set stores v and runs the side effect synchronously. Redundant sets still
// run the side effect, which must be idempotent, but fire nothing. Set
// reports whether the value changed.
func (p *Property[T]) Set(v T) bool {
	old := p.value
	p.value = v
	if p.apply != nil {
		p.apply(old, v)
	}
	if old == v {
		return false
	}
	if p.events != nil {
		p.events.Fire(p.event, Change[T]{Old: old, New: v})
	}
	return true
}
