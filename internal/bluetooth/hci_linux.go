//go:build linux

package bluetooth

import (
	"context"
	"fmt"
	"sync"

	"github.com/currantlabs/ble"
	"github.com/currantlabs/ble/linux"
	"go.uber.org/zap"

	"github.com/muurk/bttest/internal/logging"
)

// HCIRadio drives the default local HCI controller through currantlabs/ble.
// Enabling opens the controller and disabling releases it. Discoverable mode
// is implemented as connectable advertising of the local name.
type HCIRadio struct {
	mu         sync.Mutex
	dev        *linux.Device
	name       string
	address    string
	clients    map[string]ble.Client
	scanStop   context.CancelFunc
	scanDone   chan struct{}
	advertStop context.CancelFunc
}

// NewHCIRadio opens the default controller to learn its address. The
// controller is left open, so the radio starts powered.
func NewHCIRadio(name string) (*HCIRadio, error) {
	r := &HCIRadio{name: name, clients: make(map[string]ble.Client)}
	if err := r.open(); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *HCIRadio) open() error {
	dev, err := linux.NewDevice()
	if err != nil {
		return fmt.Errorf("open hci device: %w", err)
	}
	r.mu.Lock()
	r.dev = dev
	r.address = dev.Address().String()
	r.mu.Unlock()
	logging.Info("HCI device opened", zap.String("address", r.address))
	return nil
}

func (r *HCIRadio) Address() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.address
}

func (r *HCIRadio) Name() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.name
}

func (r *HCIRadio) Powered() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.dev != nil
}

func (r *HCIRadio) Enable(ctx context.Context) error {
	if r.Powered() {
		return nil
	}
	return r.open()
}

func (r *HCIRadio) Disable(ctx context.Context) error {
	r.stopScan()
	r.stopAdvertising()

	r.mu.Lock()
	dev := r.dev
	clients := r.clients
	r.dev = nil
	r.clients = make(map[string]ble.Client)
	r.mu.Unlock()

	for addr, c := range clients {
		if err := c.CancelConnection(); err != nil {
			logging.Warn("Failed to cancel connection", zap.String("address", addr), zap.Error(err))
		}
	}
	if dev == nil {
		return nil
	}
	if err := dev.Stop(); err != nil {
		return fmt.Errorf("close hci device: %w", err)
	}
	return nil
}

func (r *HCIRadio) SetDiscoverable(ctx context.Context, on bool) error {
	r.stopAdvertising()
	if !on {
		return nil
	}
	dev, err := r.device()
	if err != nil {
		return err
	}

	advCtx, cancel := context.WithCancel(context.Background())
	r.mu.Lock()
	r.advertStop = cancel
	name := r.name
	r.mu.Unlock()

	go func() {
		if err := dev.AdvertiseNameAndServices(advCtx, name); err != nil && advCtx.Err() == nil {
			logging.Warn("Advertising stopped", zap.Error(err))
		}
	}()
	return nil
}

func (r *HCIRadio) SetName(ctx context.Context, name string) error {
	r.mu.Lock()
	r.name = name
	advertising := r.advertStop != nil
	r.mu.Unlock()

	if advertising {
		return r.SetDiscoverable(ctx, true)
	}
	return nil
}

func (r *HCIRadio) StartScan(ctx context.Context, filters []string, found func(Device)) error {
	dev, err := r.device()
	if err != nil {
		return err
	}
	uuids, err := parseFilters(filters)
	if err != nil {
		return err
	}
	r.stopScan()

	scanCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	r.mu.Lock()
	r.scanStop = cancel
	r.scanDone = done
	r.mu.Unlock()

	handler := func(a ble.Advertisement) {
		if len(uuids) > 0 && !advertises(a, uuids) {
			return
		}
		found(Device{
			Address: a.Address().String(),
			Name:    a.LocalName(),
			Type:    DeviceTypeLE,
			RSSI:    a.RSSI(),
		})
	}

	go func() {
		defer close(done)
		if err := dev.Scan(scanCtx, true, handler); err != nil && scanCtx.Err() == nil {
			logging.Warn("Scan stopped", zap.Error(err))
		}
	}()
	return nil
}

func (r *HCIRadio) StopScan(ctx context.Context) error {
	r.stopScan()
	return nil
}

func (r *HCIRadio) Connect(ctx context.Context, address string) error {
	dev, err := r.device()
	if err != nil {
		return err
	}
	client, err := dev.Dial(ctx, ble.NewAddr(address))
	if err != nil {
		return err
	}
	r.mu.Lock()
	r.clients[NormalizeAddress(address)] = client
	r.mu.Unlock()
	return nil
}

func (r *HCIRadio) Disconnect(ctx context.Context, address string) error {
	key := NormalizeAddress(address)
	r.mu.Lock()
	client, ok := r.clients[key]
	delete(r.clients, key)
	r.mu.Unlock()

	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownDevice, address)
	}
	return client.CancelConnection()
}

func (r *HCIRadio) Close() error {
	return r.Disable(context.Background())
}

func (r *HCIRadio) device() (*linux.Device, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.dev == nil {
		return nil, ErrNotEnabled
	}
	return r.dev, nil
}

func (r *HCIRadio) stopScan() {
	r.mu.Lock()
	cancel, done := r.scanStop, r.scanDone
	r.scanStop, r.scanDone = nil, nil
	r.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

func (r *HCIRadio) stopAdvertising() {
	r.mu.Lock()
	cancel := r.advertStop
	r.advertStop = nil
	r.mu.Unlock()

	if cancel != nil {
		cancel()
	}
}

func parseFilters(filters []string) ([]ble.UUID, error) {
	uuids := make([]ble.UUID, 0, len(filters))
	for _, f := range filters {
		u, err := ble.Parse(f)
		if err != nil {
			return nil, fmt.Errorf("invalid service filter %q: %w", f, err)
		}
		uuids = append(uuids, u)
	}
	return uuids, nil
}

func advertises(a ble.Advertisement, uuids []ble.UUID) bool {
	for _, s := range a.Services() {
		for _, u := range uuids {
			if s.Equal(u) {
				return true
			}
		}
	}
	return false
}
