package bluetooth

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/muurk/bttest/internal/async"
	"github.com/muurk/bttest/internal/logging"
	"github.com/muurk/bttest/internal/pubsub"
)

// Events fired by a Manager
const (
	EventStateChanged       = "state-changed"
	EventDiscoveringChanged = "discovering-state-changed"
	EventDeviceFound        = "device-found"
	EventAttributeChanged   = "attribute-changed"
)

// Adapter attributes reported through EventAttributeChanged
const (
	AttrAddress      = "address"
	AttrName         = "name"
	AttrState        = "state"
	AttrDiscoverable = "discoverable"
	AttrDiscovering  = "discovering"
)

// AdapterState is the power state of an adapter
type AdapterState string

const (
	StateDisabled  AdapterState = "disabled"
	StateEnabling  AdapterState = "enabling"
	StateEnabled   AdapterState = "enabled"
	StateDisabling AdapterState = "disabling"
)

// AttributeChange is the payload of EventAttributeChanged
type AttributeChange struct {
	Attrs []string
}

// Has reports whether attr is among the changed attributes
func (c AttributeChange) Has(attr string) bool {
	for _, a := range c.Attrs {
		if a == attr {
			return true
		}
	}
	return false
}

// DefaultGattTimeout bounds GATT connect and disconnect when Options leaves it unset
const DefaultGattTimeout = 10 * time.Second

// Options configures a Manager
type Options struct {
	GattTimeout time.Duration
}

// Manager is the capability surface of one adapter. Operations run off the
// scheduler one at a time in request order, and return a Future whose
// callbacks run on the scheduler. Events are always fired on the scheduler.
type Manager struct {
	radio Radio
	sched async.Scheduler
	opts  Options

	ctx    context.Context
	cancel context.CancelFunc
	queue  *async.Queue
	ops    sync.Mutex

	mu           sync.Mutex
	initialized  bool
	closed       bool
	state        AdapterState
	discovering  bool
	accepting    bool
	discoverable bool
	name         string
	address      string

	events pubsub.Emitter
}

// NewManager wraps radio. Call Init before using it.
func NewManager(radio Radio, sched async.Scheduler, opts Options) *Manager {
	if opts.GattTimeout <= 0 {
		opts.GattTimeout = DefaultGattTimeout
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		radio:  radio,
		sched:  sched,
		opts:   opts,
		ctx:    ctx,
		cancel: cancel,
		queue:  async.NewQueue(ctx, sched),
		state:  StateDisabled,
	}
}

// Init reads the adapter's identity and power state and announces them.
// Calling it again is a no-op.
func (m *Manager) Init() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrRadioClosed
	}
	if m.initialized {
		m.mu.Unlock()
		return nil
	}
	m.initialized = true
	m.address = NormalizeAddress(m.radio.Address())
	m.name = m.radio.Name()
	if m.radio.Powered() {
		m.state = StateEnabled
	}
	state := m.state
	m.mu.Unlock()

	logging.Info("Adapter initialized",
		zap.String("address", m.Address()),
		zap.String("state", string(state)),
	)
	m.post(EventStateChanged, state)
	m.post(EventAttributeChanged, AttributeChange{Attrs: []string{AttrAddress, AttrName, AttrState, AttrDiscoverable}})
	return nil
}

// On registers fn for one of the Manager events
func (m *Manager) On(event string, fn pubsub.Handler) pubsub.Subscription {
	return m.events.On(event, fn)
}

// Off removes a registration made with On
func (m *Manager) Off(event string, sub pubsub.Subscription) {
	m.events.Off(event, sub)
}

// Listeners returns the number of handlers registered for event
func (m *Manager) Listeners(event string) int {
	return m.events.Count(event)
}

func (m *Manager) State() AdapterState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *Manager) Discovering() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.discovering
}

func (m *Manager) Discoverable() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.discoverable
}

func (m *Manager) Address() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.address
}

func (m *Manager) Name() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.name
}

// SafelyEnable powers the adapter on. Already enabled adapters settle at once.
func (m *Manager) SafelyEnable() *async.Future {
	return m.run(m.enable)
}

// SafelyDisable stops any scan, then powers the adapter off
func (m *Manager) SafelyDisable() *async.Future {
	return m.run(m.disable)
}

// SafelyStartLeScan enables the adapter when needed, restarts any running
// scan, and starts an LE scan restricted to the given service UUIDs.
func (m *Manager) SafelyStartLeScan(filters []string) *async.Future {
	filters = append([]string(nil), filters...)
	return m.run(func(ctx context.Context) error {
		if err := m.enable(ctx); err != nil {
			return err
		}
		if err := m.stopScan(ctx); err != nil {
			return err
		}
		m.setAccepting(true)
		if err := m.radio.StartScan(m.ctx, filters, m.deviceFound); err != nil {
			m.setAccepting(false)
			return fmt.Errorf("start le scan: %w", err)
		}
		m.setDiscovering(true)
		return nil
	})
}

// SafelyStopLeScan stops a running scan. Without one it settles at once.
func (m *Manager) SafelyStopLeScan() *async.Future {
	return m.run(m.stopScan)
}

// SetDiscoverable toggles inquiry scan on an enabled adapter
func (m *Manager) SetDiscoverable(on bool) *async.Future {
	return m.run(func(ctx context.Context) error {
		if m.State() != StateEnabled {
			return ErrNotEnabled
		}
		if err := m.radio.SetDiscoverable(ctx, on); err != nil {
			return fmt.Errorf("set discoverable: %w", err)
		}
		m.mu.Lock()
		changed := m.discoverable != on
		m.discoverable = on
		m.mu.Unlock()
		if changed {
			m.post(EventAttributeChanged, AttributeChange{Attrs: []string{AttrDiscoverable}})
		}
		return nil
	})
}

// SetName changes the adapter's local name
func (m *Manager) SetName(name string) *async.Future {
	return m.run(func(ctx context.Context) error {
		if err := m.radio.SetName(ctx, name); err != nil {
			return fmt.Errorf("set name: %w", err)
		}
		m.mu.Lock()
		changed := m.name != name
		m.name = name
		m.mu.Unlock()
		if changed {
			m.post(EventAttributeChanged, AttributeChange{Attrs: []string{AttrName}})
		}
		return nil
	})
}

// GattServerConnect opens a GATT connection to address
func (m *Manager) GattServerConnect(address string) *async.Future {
	return m.gatt("gatt connect", address, m.radio.Connect)
}

// GattServerDisconnect closes the GATT connection to address
func (m *Manager) GattServerDisconnect(address string) *async.Future {
	return m.gatt("gatt disconnect", address, m.radio.Disconnect)
}

// Close cancels pending operations and closes the radio
func (m *Manager) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	m.mu.Unlock()

	m.cancel()
	m.ops.Lock()
	defer m.ops.Unlock()
	return m.radio.Close()
}

func (m *Manager) gatt(op, address string, fn func(context.Context, string) error) *async.Future {
	return m.run(func(ctx context.Context) error {
		if m.State() != StateEnabled {
			return ErrNotEnabled
		}
		ctx, cancel := context.WithTimeout(ctx, m.opts.GattTimeout)
		defer cancel()

		err := fn(ctx, address)
		if errors.Is(err, context.DeadlineExceeded) || (err == nil && errors.Is(ctx.Err(), context.DeadlineExceeded)) {
			err = ErrTimeout
		}
		if err != nil {
			return fmt.Errorf("%s %s: %w", op, address, err)
		}
		return nil
	})
}

func (m *Manager) run(op func(ctx context.Context) error) *async.Future {
	return m.queue.Go(func(ctx context.Context) error {
		m.ops.Lock()
		defer m.ops.Unlock()
		if ctx.Err() != nil {
			return ErrRadioClosed
		}
		return op(ctx)
	})
}

func (m *Manager) enable(ctx context.Context) error {
	if m.State() == StateEnabled {
		return nil
	}
	m.setState(StateEnabling)
	if err := m.radio.Enable(ctx); err != nil {
		m.setState(StateDisabled)
		return fmt.Errorf("enable adapter: %w", err)
	}
	m.setState(StateEnabled)
	return nil
}

func (m *Manager) disable(ctx context.Context) error {
	if m.State() == StateDisabled {
		return nil
	}
	if err := m.stopScan(ctx); err != nil {
		return err
	}
	m.setState(StateDisabling)
	if err := m.radio.Disable(ctx); err != nil {
		m.setState(StateEnabled)
		return fmt.Errorf("disable adapter: %w", err)
	}

	m.mu.Lock()
	wasDiscoverable := m.discoverable
	m.discoverable = false
	m.mu.Unlock()
	m.setState(StateDisabled)
	if wasDiscoverable {
		m.post(EventAttributeChanged, AttributeChange{Attrs: []string{AttrDiscoverable}})
	}
	return nil
}

func (m *Manager) stopScan(ctx context.Context) error {
	if !m.Discovering() {
		return nil
	}
	m.setAccepting(false)
	if err := m.radio.StopScan(ctx); err != nil {
		m.setAccepting(true)
		return fmt.Errorf("stop le scan: %w", err)
	}
	m.setDiscovering(false)
	return nil
}

func (m *Manager) deviceFound(d Device) {
	m.mu.Lock()
	accepting := m.accepting
	m.mu.Unlock()
	if !accepting {
		return
	}
	d.Address = NormalizeAddress(d.Address)
	if d.DiscoveredAt.IsZero() {
		d.DiscoveredAt = time.Now()
	}
	m.post(EventDeviceFound, d)
}

func (m *Manager) setState(s AdapterState) {
	m.mu.Lock()
	changed := m.state != s
	m.state = s
	m.mu.Unlock()
	if !changed {
		return
	}
	logging.Debug("Adapter state changed",
		zap.String("address", m.Address()),
		zap.String("state", string(s)),
	)
	m.post(EventStateChanged, s)
	m.post(EventAttributeChanged, AttributeChange{Attrs: []string{AttrState}})
}

func (m *Manager) setAccepting(on bool) {
	m.mu.Lock()
	m.accepting = on
	m.mu.Unlock()
}

func (m *Manager) setDiscovering(on bool) {
	m.mu.Lock()
	changed := m.discovering != on
	m.discovering = on
	m.mu.Unlock()
	if !changed {
		return
	}
	m.post(EventDiscoveringChanged, on)
	m.post(EventAttributeChanged, AttributeChange{Attrs: []string{AttrDiscovering}})
}

func (m *Manager) post(event string, payload any) {
	m.sched.Post(func() { m.events.Fire(event, payload) })
}
