package bluetooth

import "context"

// Radio is the hardware driver behind a Manager. Every method may block and
// may be called from any goroutine, but the Manager never runs two of them
// at once. found callbacks may arrive on any goroutine until StopScan
// returns.
type Radio interface {
	Address() string
	Name() string
	Powered() bool

	Enable(ctx context.Context) error
	Disable(ctx context.Context) error
	SetDiscoverable(ctx context.Context, on bool) error
	SetName(ctx context.Context, name string) error

	StartScan(ctx context.Context, filters []string, found func(Device)) error
	StopScan(ctx context.Context) error

	Connect(ctx context.Context, address string) error
	Disconnect(ctx context.Context, address string) error

	Close() error
}

var (
	_ Radio = (*SimRadio)(nil)
	_ Radio = (*HCIRadio)(nil)
)
