package bleserver

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/muurk/bttest/internal/app"
	"github.com/muurk/bttest/internal/async"
	"github.com/muurk/bttest/internal/bluetooth"
	"github.com/muurk/bttest/internal/logging"
	"github.com/muurk/bttest/internal/pubsub"
	"github.com/muurk/bttest/internal/widget"
)

// ErrRequestPending is returned for a GATT request on a row that is still
// waiting for the previous one
var ErrRequestPending = errors.New("gatt request pending")

// Events fired by a Server
const (
	// EventScanningChanged carries a widget.Change[bool]
	EventScanningChanged = "scanning-changed"
	// EventChanged fires whenever the device list or a row changes
	EventChanged = "changed"
)

// Adapter is the hardware capability surface the Server drives.
// *bluetooth.Manager implements it.
type Adapter interface {
	Init() error
	On(event string, fn pubsub.Handler) pubsub.Subscription
	Off(event string, sub pubsub.Subscription)
	SafelyStartLeScan(filters []string) *async.Future
	SafelyStopLeScan() *async.Future
	SafelyDisable() *async.Future
	GattServerConnect(address string) *async.Future
	GattServerDisconnect(address string) *async.Future
}

// ModeSource fires the mode switch events. *app.App implements it.
type ModeSource interface {
	On(event string, fn pubsub.Handler) pubsub.Subscription
	Off(event string, sub pubsub.Subscription)
}

// Options configures a Server
type Options struct {
	// Filters restricts scans to devices advertising these service UUIDs
	Filters []string
}

type subscription struct {
	event string
	sub   pubsub.Subscription
}

// Server ties the BLE server mode to hardware scanning. It owns the device
// registry and its rows, and mediates GATT connect and disconnect requests.
// Every method must be called from the event loop that settles the
// adapter's futures.
type Server struct {
	adapter Adapter
	opts    Options

	registry *bluetooth.Registry
	rows     map[string]*DeviceRow
	order    []*DeviceRow

	panel            *widget.Node
	adapterState     *widget.Node
	discoveringState *widget.Node
	scanButton       *widget.Node
	devicesList      *widget.Node

	ready    bool
	scanning *widget.Property[bool]

	// epoch changes on every turnOn and turnOff; continuations started in an
	// older epoch are dropped.
	epoch  uint64
	scanOp uint64
	nextOp uint64

	started     bool
	clickSub    pubsub.Subscription
	foundSub    pubsub.Subscription
	subscribed  bool
	adapterSubs []subscription
	modes       ModeSource
	modeSub     pubsub.Subscription

	events pubsub.Emitter
}

// New creates a stopped Server over adapter
func New(adapter Adapter, opts Options) *Server {
	s := &Server{
		adapter:          adapter,
		opts:             opts,
		registry:         bluetooth.NewRegistry(),
		rows:             make(map[string]*DeviceRow),
		panel:            widget.NewNode("div", "ble-server"),
		adapterState:     widget.NewNode("span", "adapter-state"),
		discoveringState: widget.NewNode("span", "discovering-state"),
		scanButton:       widget.NewNode("button", "scan-button"),
		devicesList:      widget.NewNode("div", "devices-list"),
	}
	s.adapterState.SetID("ble-server-adapter-state")
	s.discoveringState.SetID("ble-server-discovering-state")
	s.devicesList.SetID("ble-server-devices-list")

	s.scanning = widget.NewProperty(false, func(_, next bool) {
		s.scanButton.ToggleClass("scanning", next)
		if next {
			s.scanButton.SetText("Stop scan")
		} else {
			s.scanButton.SetText("Start scan")
		}
	}).Observe(&s.events, EventScanningChanged)
	s.scanning.Set(false)

	status := widget.NewNode("div", "ble-server-status")
	status.Append(s.adapterState).Append(s.discoveringState)
	s.panel.Append(status).Append(s.scanButton).Append(s.devicesList)
	s.refreshControls()
	return s
}

// Start initializes the adapter, mirrors its state into the panel, and
// follows mode switches fired by modes. Calling it again is a no-op.
func (s *Server) Start(modes ModeSource) error {
	if s.started {
		return nil
	}
	if err := s.adapter.Init(); err != nil {
		return fmt.Errorf("init adapter: %w", err)
	}
	s.started = true

	s.listen(bluetooth.EventStateChanged, func(p any) {
		if state, ok := p.(bluetooth.AdapterState); ok {
			s.adapterState.SetText(string(state))
			s.events.Fire(EventChanged, nil)
		}
	})
	s.listen(bluetooth.EventDiscoveringChanged, func(p any) {
		if discovering, ok := p.(bool); ok {
			s.discoveringState.SetText(discoveringText(discovering))
			s.events.Fire(EventChanged, nil)
		}
	})
	s.clickSub = s.scanButton.OnClick(s.ToggleScan)

	if modes != nil {
		s.modes = modes
		s.modeSub = modes.On(app.EventAfterSwitchingMode, s.onModeSwitching)
	}
	return nil
}

// Stop turns the controller off and drops every listener it registered
func (s *Server) Stop() {
	if !s.started {
		return
	}
	s.TurnOff()
	for _, sub := range s.adapterSubs {
		s.adapter.Off(sub.event, sub.sub)
	}
	s.adapterSubs = nil
	if s.modes != nil {
		s.modes.Off(app.EventAfterSwitchingMode, s.modeSub)
		s.modes = nil
	}
	s.scanButton.Off(widget.EventClick, s.clickSub)
	s.started = false
}

// TurnOn clears the device list, listens for discovered devices, and starts
// a scan. The controller counts as ready as soon as the scan is requested.
// Calling it while ready is a no-op.
func (s *Server) TurnOn() {
	if s.ready {
		return
	}
	s.epoch++
	s.truncate()
	s.foundSub = s.adapter.On(bluetooth.EventDeviceFound, s.onDeviceFound)
	s.subscribed = true
	s.ready = true
	logging.Info("BLE server ready", zap.Uint64("epoch", s.epoch))
	s.startScan()
}

// TurnOff clears the device list, stops listening, and disables the adapter
// without waiting for it. Calling it while not ready is a no-op.
func (s *Server) TurnOff() {
	if !s.ready {
		return
	}
	s.epoch++
	s.truncate()
	if s.subscribed {
		s.adapter.Off(bluetooth.EventDeviceFound, s.foundSub)
		s.subscribed = false
	}
	s.adapter.SafelyDisable().Then(func(err error) {
		if err != nil {
			logging.LogHardwareRejection("adapter-disable", "", err)
		}
	})
	s.scanOp = 0
	s.ready = false
	s.scanning.Set(false)
	s.refreshControls()
	logging.Info("BLE server stopped", zap.Uint64("epoch", s.epoch))
}

// ToggleScan stops a running scan, or clears the list and starts a new one.
// It is a no-op while not ready or while another scan request is in flight.
func (s *Server) ToggleScan() {
	if !s.ready || s.scanOp != 0 {
		logging.Debug("Ignoring scan toggle",
			zap.Bool("ready", s.ready),
			zap.Uint64("in_flight", s.scanOp),
		)
		return
	}
	if !s.Scanning() {
		s.truncate()
		s.startScan()
		return
	}

	token, epoch := s.beginScanOp(), s.epoch
	s.adapter.SafelyStopLeScan().Then(func(err error) {
		if !s.endScanOp(token, epoch, "stop-le-scan") {
			return
		}
		if err != nil {
			logging.LogHardwareRejection("stop-le-scan", "", err)
			return
		}
		s.scanning.Set(false)
	})
}

// ConnectDevice requests a GATT connection to a known device. The row only
// shows the device as connected once the request succeeds.
func (s *Server) ConnectDevice(address string) error {
	return s.gatt(address, true)
}

// DisconnectDevice requests that the GATT connection be closed
func (s *Server) DisconnectDevice(address string) error {
	return s.gatt(address, false)
}

func (s *Server) gatt(address string, connect bool) error {
	key := bluetooth.NormalizeAddress(address)
	row, ok := s.rows[key]
	if !ok {
		return fmt.Errorf("%w: %s", bluetooth.ErrUnknownDevice, address)
	}
	if row.Pending() {
		return fmt.Errorf("%w: %s", ErrRequestPending, address)
	}

	op, request := "gatt-disconnect", s.adapter.GattServerDisconnect
	if connect {
		op, request = "gatt-connect", s.adapter.GattServerConnect
	}

	epoch := s.epoch
	addr := row.Address()
	row.SetPending(true)
	s.events.Fire(EventChanged, nil)

	request(addr).Then(func(err error) {
		if epoch != s.epoch {
			logging.LogStaleSettlement(op, epoch, s.epoch)
			return
		}
		row.SetPending(false)
		if err != nil {
			logging.LogHardwareRejection(op, addr, err)
			s.events.Fire(EventChanged, nil)
			return
		}
		// A rescan may have replaced the row since the request was made.
		// The result belongs to whichever row shows the address now.
		current, ok := s.rows[key]
		if !ok {
			logging.Debug("Dropping settlement for a cleared device",
				zap.String("op", op),
				zap.String("address", addr),
			)
			return
		}
		_ = s.registry.SetConnected(addr, connect)
		current.SetConnected(connect)
		s.events.Fire(EventChanged, nil)
	})
	return nil
}

func (s *Server) startScan() {
	token, epoch := s.beginScanOp(), s.epoch
	s.adapter.SafelyStartLeScan(s.opts.Filters).Then(func(err error) {
		if !s.endScanOp(token, epoch, "start-le-scan") {
			return
		}
		if err != nil {
			logging.LogHardwareRejection("start-le-scan", "", err)
			return
		}
		s.scanning.Set(true)
	})
}

func (s *Server) beginScanOp() uint64 {
	s.nextOp++
	s.scanOp = s.nextOp
	s.refreshControls()
	return s.scanOp
}

// endScanOp releases the in-flight token and reports whether the settlement
// still belongs to the current epoch.
func (s *Server) endScanOp(token, epoch uint64, op string) bool {
	if s.scanOp == token {
		s.scanOp = 0
		s.refreshControls()
	}
	if epoch != s.epoch || !s.ready {
		logging.LogStaleSettlement(op, epoch, s.epoch)
		return false
	}
	return true
}

func (s *Server) onModeSwitching(p any) {
	ev, ok := p.(app.ModeEvent)
	if !ok {
		return
	}
	switch ev.Mode {
	case app.ModeBleServer:
		s.TurnOn()
	default:
		s.TurnOff()
	}
}

func (s *Server) onDeviceFound(p any) {
	d, ok := p.(bluetooth.Device)
	if !ok || !s.ready {
		return
	}
	if !s.registry.Add(d) {
		return
	}
	d, _ = s.registry.Get(d.Address)
	key := bluetooth.NormalizeAddress(d.Address)
	addr := d.Address

	row := newDeviceRow(d, RowHandler{
		OnConnect:    func() { _ = s.ConnectDevice(addr) },
		OnDisconnect: func() { _ = s.DisconnectDevice(addr) },
	})
	s.rows[key] = row
	s.order = append(s.order, row)
	s.devicesList.Append(row.Node())

	logging.Debug("Device found",
		zap.String("address", d.Address),
		zap.String("name", d.Name),
		zap.String("type", string(d.Type)),
	)
	s.events.Fire(EventChanged, nil)
}

func (s *Server) truncate() {
	for _, row := range s.order {
		row.Destroy()
	}
	s.order = nil
	s.rows = make(map[string]*DeviceRow)
	s.devicesList.Empty()
	s.registry.Truncate()
	s.events.Fire(EventChanged, nil)
}

func (s *Server) refreshControls() {
	s.scanButton.SetDisabled(!s.ready || s.scanOp != 0)
}

func (s *Server) listen(event string, fn pubsub.Handler) {
	sub := s.adapter.On(event, fn)
	s.adapterSubs = append(s.adapterSubs, subscription{event: event, sub: sub})
}

// Ready reports whether the controller is listening for devices
func (s *Server) Ready() bool { return s.ready }

// Scanning mirrors the hardware scan state as last confirmed by the adapter
func (s *Server) Scanning() bool { return s.scanning.Get() }

// ScanInFlight reports whether a scan start or stop request is pending
func (s *Server) ScanInFlight() bool { return s.scanOp != 0 }

// Epoch returns the current turnOn/turnOff generation
func (s *Server) Epoch() uint64 { return s.epoch }

// Devices returns the discovered devices in first-seen order
func (s *Server) Devices() []bluetooth.Device { return s.registry.List() }

// Row returns the row of address, or nil
func (s *Server) Row(address string) *DeviceRow { return s.rows[bluetooth.NormalizeAddress(address)] }

// Rows returns the device rows in display order
func (s *Server) Rows() []*DeviceRow { return append([]*DeviceRow(nil), s.order...) }

// Panel returns the root node of the BLE server panel
func (s *Server) Panel() *widget.Node { return s.panel }

// ScanButton returns the manual scan toggle
func (s *Server) ScanButton() *widget.Node { return s.scanButton }

// AdapterStateText returns the adapter state as displayed
func (s *Server) AdapterStateText() string { return s.adapterState.Text() }

// DiscoveringText returns the discovery state as displayed
func (s *Server) DiscoveringText() string { return s.discoveringState.Text() }

// On registers fn for a Server event
func (s *Server) On(event string, fn pubsub.Handler) pubsub.Subscription {
	return s.events.On(event, fn)
}

// Off removes a registration made with On
func (s *Server) Off(event string, sub pubsub.Subscription) {
	s.events.Off(event, sub)
}

func discoveringText(discovering bool) string {
	if discovering {
		return "discovering"
	}
	return "not discovering"
}

func callRow(action string, fn func()) {
	if fn == nil {
		logging.LogUnimplemented("device-row", action)
		return
	}
	fn()
}

var (
	_ Adapter    = (*bluetooth.Manager)(nil)
	_ ModeSource = (*app.App)(nil)
)
