package bluetooth

import "fmt"

// Registry holds at most one Device per address, in first-seen order.
// It is not safe for concurrent use; its owner mutates it from the event loop.
type Registry struct {
	order []string
	byKey map[string]*Device
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{byKey: make(map[string]*Device)}
}

// Add records d unless its address is already known. It reports whether d
// was new. Known devices are left untouched.
func (r *Registry) Add(d Device) bool {
	key := NormalizeAddress(d.Address)
	if key == "" {
		return false
	}
	if _, ok := r.byKey[key]; ok {
		return false
	}
	stored := d
	r.byKey[key] = &stored
	r.order = append(r.order, key)
	return true
}

// Get returns the record for addr
func (r *Registry) Get(addr string) (Device, bool) {
	d, ok := r.byKey[NormalizeAddress(addr)]
	if !ok {
		return Device{}, false
	}
	return *d, true
}

// Update applies fn to the record for addr in place
func (r *Registry) Update(addr string, fn func(*Device)) error {
	d, ok := r.byKey[NormalizeAddress(addr)]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownDevice, addr)
	}
	fn(d)
	return nil
}

// SetConnected updates the connected flag of a known device
func (r *Registry) SetConnected(addr string, connected bool) error {
	return r.Update(addr, func(d *Device) { d.Connected = connected })
}

// List returns copies of every record in first-seen order
func (r *Registry) List() []Device {
	out := make([]Device, 0, len(r.order))
	for _, key := range r.order {
		out = append(out, *r.byKey[key])
	}
	return out
}

// Len returns the number of records
func (r *Registry) Len() int {
	return len(r.order)
}

// Truncate drops every record
func (r *Registry) Truncate() {
	r.order = nil
	r.byKey = make(map[string]*Device)
}
