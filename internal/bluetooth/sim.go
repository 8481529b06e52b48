package bluetooth

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/muurk/bttest/internal/logging"
)

// SimOp names a SimRadio operation for failure injection
type SimOp string

const (
	SimEnable       SimOp = "enable"
	SimDisable      SimOp = "disable"
	SimDiscoverable SimOp = "discoverable"
	SimSetName      SimOp = "set-name"
	SimStartScan    SimOp = "start-scan"
	SimStopScan     SimOp = "stop-scan"
	SimConnect      SimOp = "connect"
	SimDisconnect   SimOp = "disconnect"
)

const defaultSimInterval = time.Second

// SimConfig describes a simulated adapter and its surroundings
type SimConfig struct {
	Address  string
	Name     string
	Powered  bool
	Devices  []Device
	Interval time.Duration // how often every device is re-advertised
	Latency  time.Duration // delay applied to each operation
}

// SimRadio is an in-memory Radio. Every scan announces each configured
// device immediately and then again on every interval, so listeners see
// duplicates the way real advertisers produce them.
type SimRadio struct {
	cfg SimConfig

	mu          sync.Mutex
	powered     bool
	name        string
	devices     []Device
	connected   map[string]bool
	failures    map[SimOp]error
	connectErrs map[string]error
	calls       map[SimOp]int
	stopScan    chan struct{}
	scanDone    chan struct{}
	closed      bool
}

// NewSimRadio creates a simulated radio from cfg
func NewSimRadio(cfg SimConfig) *SimRadio {
	if cfg.Interval <= 0 {
		cfg.Interval = defaultSimInterval
	}
	if cfg.Address == "" {
		cfg.Address = "00:1A:7D:DA:71:13"
	}
	if cfg.Name == "" {
		cfg.Name = "bttest-sim"
	}
	return &SimRadio{
		cfg:         cfg,
		powered:     cfg.Powered,
		name:        cfg.Name,
		devices:     append([]Device(nil), cfg.Devices...),
		connected:   make(map[string]bool),
		failures:    make(map[SimOp]error),
		connectErrs: make(map[string]error),
		calls:       make(map[SimOp]int),
	}
}

// Fail makes every later call of op return err. A nil err clears it.
func (r *SimRadio) Fail(op SimOp, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err == nil {
		delete(r.failures, op)
		return
	}
	r.failures[op] = err
}

// FailConnect makes connecting to address return err
func (r *SimRadio) FailConnect(address string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.connectErrs[NormalizeAddress(address)] = err
}

// AddDevice makes d visible to running and future scans
func (r *SimRadio) AddDevice(d Device) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.devices = append(r.devices, d)
}

// Calls returns how many times op was invoked
func (r *SimRadio) Calls(op SimOp) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls[op]
}

// IsConnected reports whether address has an open simulated connection
func (r *SimRadio) IsConnected(address string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.connected[NormalizeAddress(address)]
}

// Scanning reports whether a simulated scan is running
func (r *SimRadio) Scanning() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stopScan != nil
}

func (r *SimRadio) Address() string { return r.cfg.Address }

func (r *SimRadio) Name() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.name
}

func (r *SimRadio) Powered() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.powered
}

func (r *SimRadio) Enable(ctx context.Context) error {
	if err := r.begin(ctx, SimEnable); err != nil {
		return err
	}
	r.mu.Lock()
	r.powered = true
	r.mu.Unlock()
	return nil
}

func (r *SimRadio) Disable(ctx context.Context) error {
	if err := r.begin(ctx, SimDisable); err != nil {
		return err
	}
	r.halt()
	r.mu.Lock()
	r.powered = false
	r.connected = make(map[string]bool)
	r.mu.Unlock()
	return nil
}

func (r *SimRadio) SetDiscoverable(ctx context.Context, on bool) error {
	return r.begin(ctx, SimDiscoverable)
}

func (r *SimRadio) SetName(ctx context.Context, name string) error {
	if err := r.begin(ctx, SimSetName); err != nil {
		return err
	}
	r.mu.Lock()
	r.name = name
	r.mu.Unlock()
	return nil
}

// StartScan starts announcing devices. A running scan is replaced.
func (r *SimRadio) StartScan(ctx context.Context, filters []string, found func(Device)) error {
	if err := r.begin(ctx, SimStartScan); err != nil {
		return err
	}
	if !r.Powered() {
		return ErrNotEnabled
	}
	r.halt()

	stop := make(chan struct{})
	done := make(chan struct{})
	r.mu.Lock()
	r.stopScan = stop
	r.scanDone = done
	r.mu.Unlock()

	go r.advertise(ctx, filters, found, stop, done)
	return nil
}

func (r *SimRadio) StopScan(ctx context.Context) error {
	if err := r.begin(ctx, SimStopScan); err != nil {
		return err
	}
	r.halt()
	return nil
}

func (r *SimRadio) Connect(ctx context.Context, address string) error {
	if err := r.begin(ctx, SimConnect); err != nil {
		return err
	}
	key := NormalizeAddress(address)

	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.connectErrs[key]; err != nil {
		return err
	}
	if !r.known(key) {
		return ErrUnknownDevice
	}
	r.connected[key] = true
	return nil
}

func (r *SimRadio) Disconnect(ctx context.Context, address string) error {
	if err := r.begin(ctx, SimDisconnect); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.connected, NormalizeAddress(address))
	return nil
}

func (r *SimRadio) Close() error {
	r.halt()
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	return nil
}

// begin counts the call, applies latency, and returns any injected failure
func (r *SimRadio) begin(ctx context.Context, op SimOp) error {
	r.mu.Lock()
	r.calls[op]++
	closed := r.closed
	err := r.failures[op]
	r.mu.Unlock()

	if closed {
		return ErrRadioClosed
	}
	if r.cfg.Latency > 0 {
		select {
		case <-time.After(r.cfg.Latency):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return err
}

func (r *SimRadio) known(key string) bool {
	for _, d := range r.devices {
		if NormalizeAddress(d.Address) == key {
			return true
		}
	}
	return false
}

// halt stops a running scan and waits for its goroutine to exit
func (r *SimRadio) halt() {
	r.mu.Lock()
	stop, done := r.stopScan, r.scanDone
	r.stopScan, r.scanDone = nil, nil
	r.mu.Unlock()

	if stop == nil {
		return
	}
	close(stop)
	<-done
}

func (r *SimRadio) advertise(ctx context.Context, filters []string, found func(Device), stop, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(r.cfg.Interval)
	defer ticker.Stop()

	for {
		r.mu.Lock()
		devices := append([]Device(nil), r.devices...)
		r.mu.Unlock()

		for _, d := range devices {
			if !d.Advertises(filters) {
				continue
			}
			if d.Type == "" {
				d.Type = DeviceTypeLE
			}
			logging.Debug("Simulated advertisement", zap.String("address", d.Address))
			found(d)
		}

		select {
		case <-stop:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
