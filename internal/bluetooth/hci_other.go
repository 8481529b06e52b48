//go:build !linux

package bluetooth

import "context"

// HCIRadio is unavailable outside Linux
type HCIRadio struct{}

// NewHCIRadio always fails outside Linux
func NewHCIRadio(name string) (*HCIRadio, error) {
	return nil, ErrUnsupportedPlatform
}

func (r *HCIRadio) Address() string { return "" }
func (r *HCIRadio) Name() string { return "" }
func (r *HCIRadio) Powered() bool { return false }
func (r *HCIRadio) Enable(context.Context) error { return ErrUnsupportedPlatform }
func (r *HCIRadio) Disable(context.Context) error { return ErrUnsupportedPlatform }
func (r *HCIRadio) SetDiscoverable(context.Context, bool) error { return ErrUnsupportedPlatform }
func (r *HCIRadio) SetName(context.Context, string) error { return ErrUnsupportedPlatform }
func (r *HCIRadio) StopScan(context.Context) error { return ErrUnsupportedPlatform }
func (r *HCIRadio) Connect(context.Context, string) error { return ErrUnsupportedPlatform }
func (r *HCIRadio) Disconnect(context.Context, string) error { return ErrUnsupportedPlatform }
func (r *HCIRadio) Close() error { return nil }
func (r *HCIRadio) StartScan(context.Context, []string, func(Device)) error {
	return ErrUnsupportedPlatform
}
