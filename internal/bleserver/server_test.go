package bleserver

import (
	"errors"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/muurk/bttest/internal/app"
	"github.com/muurk/bttest/internal/async"
	"github.com/muurk/bttest/internal/bluetooth"
	"github.com/muurk/bttest/internal/logging"
	"github.com/muurk/bttest/internal/pubsub"
	"github.com/muurk/bttest/internal/widget"
)

// fakeAdapter hands out futures that the test settles by hand
type fakeAdapter struct {
	sched  async.Scheduler
	events pubsub.Emitter

	inits       int
	starts      []func(error)
	stops       []func(error)
	disables    []func(error)
	connects    map[string][]func(error)
	disconnects map[string][]func(error)
}

func newFakeAdapter(s async.Scheduler) *fakeAdapter {
	return &fakeAdapter{
		sched:       s,
		connects:    make(map[string][]func(error)),
		disconnects: make(map[string][]func(error)),
	}
}

func (f *fakeAdapter) pending(list *[]func(error)) *async.Future {
	fut, settle := async.NewFuture(f.sched)
	*list = append(*list, settle)
	return fut
}

func (f *fakeAdapter) Init() error {
	f.inits++
	return nil
}

func (f *fakeAdapter) On(event string, fn pubsub.Handler) pubsub.Subscription {
	return f.events.On(event, fn)
}

func (f *fakeAdapter) Off(event string, sub pubsub.Subscription) {
	f.events.Off(event, sub)
}

func (f *fakeAdapter) SafelyStartLeScan([]string) *async.Future { return f.pending(&f.starts) }
func (f *fakeAdapter) SafelyStopLeScan() *async.Future { return f.pending(&f.stops) }
func (f *fakeAdapter) SafelyDisable() *async.Future { return f.pending(&f.disables) }

func (f *fakeAdapter) GattServerConnect(address string) *async.Future {
	list := f.connects[address]
	fut := f.pending(&list)
	f.connects[address] = list
	return fut
}

func (f *fakeAdapter) GattServerDisconnect(address string) *async.Future {
	list := f.disconnects[address]
	fut := f.pending(&list)
	f.disconnects[address] = list
	return fut
}

func (f *fakeAdapter) found(d bluetooth.Device) {
	f.events.Fire(bluetooth.EventDeviceFound, d)
}

type harness struct {
	loop    *async.Loop
	adapter *fakeAdapter
	modes   *app.App
	server  *Server
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	loop := async.NewLoop()
	adapter := newFakeAdapter(loop)
	modes := app.New()
	server := New(adapter, Options{})
	if err := server.Start(modes); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if err := modes.Start(app.ModeClassic); err != nil {
		t.Fatalf("app Start() error = %v", err)
	}
	return &harness{loop: loop, adapter: adapter, modes: modes, server: server}
}

func observeLogs(t *testing.T) *observer.ObservedLogs {
	t.Helper()
	core, logs := observer.New(zapcore.DebugLevel)
	logging.SetLogger(zap.New(core))
	t.Cleanup(func() { logging.SetLogger(zap.NewNop()) })
	return logs
}

func TestServer_ModeSwitchStartsScan(t *testing.T) {
	h := newHarness(t)

	if err := h.modes.SwitchMode(app.ModeBleServer); err != nil {
		t.Fatalf("SwitchMode() error = %v", err)
	}

	if !h.server.Ready() {
		t.Fatal("server should be ready as soon as the scan is requested")
	}
	if h.server.Scanning() {
		t.Fatal("scanning should wait for the scan-start promise")
	}
	if len(h.adapter.starts) != 1 {
		t.Fatalf("scan starts = %d, want 1", len(h.adapter.starts))
	}

	var changes []widget.Change[bool]
	h.server.On(EventScanningChanged, func(p any) { changes = append(changes, p.(widget.Change[bool])) })

	h.adapter.starts[0](nil)
	h.loop.Drain()

	if !h.server.Scanning() {
		t.Error("scanning should be true once the scan start resolves")
	}
	if len(changes) != 1 || !changes[0].New {
		t.Errorf("scanning changes = %v, want one change to true", changes)
	}
	if got := h.server.ScanButton().Text(); got != "Stop scan" {
		t.Errorf("scan button = %q, want %q", got, "Stop scan")
	}
}

func TestServer_DuplicateDeviceKeepsFirstName(t *testing.T) {
	h := newHarness(t)
	_ = h.modes.SwitchMode(app.ModeBleServer)

	h.adapter.found(bluetooth.Device{Address: "AA:BB:CC:DD:EE:FF", Name: "first"})
	h.adapter.found(bluetooth.Device{Address: "AA:BB:CC:DD:EE:FF", Name: "second"})

	rows := h.server.Rows()
	if len(rows) != 1 {
		t.Fatalf("rows = %d, want 1", len(rows))
	}
	if rows[0].Name() != "first" {
		t.Errorf("row name = %q, want %q", rows[0].Name(), "first")
	}
	list := h.server.Panel().Children()[2]
	if list.Len() != 1 {
		t.Errorf("device list children = %d, want 1", list.Len())
	}
	addr := rows[0].Node().Children()[0].Text()
	if addr != "[AA:BB:CC:DD:EE:FF]" {
		t.Errorf("address text = %q, want bracketed address", addr)
	}
}

func TestServer_Dedup_ManyNotifications(t *testing.T) {
	h := newHarness(t)
	_ = h.modes.SwitchMode(app.ModeBleServer)

	seq := []string{"01", "02", "01", "03", "02", "01", "04", "03"}
	for _, suffix := range seq {
		h.adapter.found(bluetooth.Device{Address: "AA:BB:CC:DD:EE:" + suffix})
	}

	want := []string{"01", "02", "03", "04"}
	devices := h.server.Devices()
	if len(devices) != len(want) {
		t.Fatalf("devices = %d, want %d", len(devices), len(want))
	}
	for i, d := range devices {
		if d.Address != "AA:BB:CC:DD:EE:"+want[i] {
			t.Errorf("device %d = %s, want suffix %s", i, d.Address, want[i])
		}
	}
}

func TestServer_ConnectRejected(t *testing.T) {
	logs := observeLogs(t)
	h := newHarness(t)
	_ = h.modes.SwitchMode(app.ModeBleServer)
	h.adapter.found(bluetooth.Device{Address: "AA:BB:CC:DD:EE:FF", Name: "tag"})

	if err := h.server.ConnectDevice("AA:BB:CC:DD:EE:FF"); err != nil {
		t.Fatalf("ConnectDevice() error = %v", err)
	}
	row := h.server.Row("AA:BB:CC:DD:EE:FF")
	if !row.Pending() {
		t.Error("row should be pending while the request is in flight")
	}

	h.adapter.connects["AA:BB:CC:DD:EE:FF"][0](errors.New("timeout"))
	h.loop.Drain()

	if row.Connected() {
		t.Error("connected indicator should stay false after a rejection")
	}
	if got := row.Indicator().Text(); got != "disconnected" {
		t.Errorf("indicator = %q, want %q", got, "disconnected")
	}
	if row.Pending() {
		t.Error("row should leave the pending state")
	}

	entries := logs.FilterMessage("Hardware operation rejected").All()
	if len(entries) != 1 {
		t.Fatalf("rejection log entries = %d, want 1", len(entries))
	}
	fields := entries[0].ContextMap()
	if fields["error"] != "timeout" || fields["address"] != "AA:BB:CC:DD:EE:FF" {
		t.Errorf("log fields = %v, want error=timeout and the address", fields)
	}
}

func TestServer_ConnectAndDisconnect(t *testing.T) {
	h := newHarness(t)
	_ = h.modes.SwitchMode(app.ModeBleServer)
	h.adapter.found(bluetooth.Device{Address: "AA:BB:CC:DD:EE:FF"})
	row := h.server.Row("aa:bb:cc:dd:ee:ff")

	row.Button().Click()
	row.Button().Click()
	if n := len(h.adapter.connects["AA:BB:CC:DD:EE:FF"]); n != 1 {
		t.Fatalf("connect requests = %d, want 1 while pending", n)
	}
	h.adapter.connects["AA:BB:CC:DD:EE:FF"][0](nil)
	h.loop.Drain()

	if !row.Connected() || !h.server.Devices()[0].Connected {
		t.Fatal("device should be connected")
	}

	row.Button().Click()
	h.adapter.disconnects["AA:BB:CC:DD:EE:FF"][0](nil)
	h.loop.Drain()

	if row.Connected() {
		t.Error("device should be disconnected")
	}
}

func TestServer_ConnectUnknownDevice(t *testing.T) {
	h := newHarness(t)
	_ = h.modes.SwitchMode(app.ModeBleServer)

	err := h.server.ConnectDevice("00:00:00:00:00:00")

	if !errors.Is(err, bluetooth.ErrUnknownDevice) {
		t.Errorf("ConnectDevice() error = %v, want ErrUnknownDevice", err)
	}
}

func TestServer_ConnectWhilePending(t *testing.T) {
	h := newHarness(t)
	_ = h.modes.SwitchMode(app.ModeBleServer)
	h.adapter.found(bluetooth.Device{Address: "AA:BB:CC:DD:EE:FF"})

	if err := h.server.ConnectDevice("AA:BB:CC:DD:EE:FF"); err != nil {
		t.Fatalf("ConnectDevice() error = %v", err)
	}
	if err := h.server.ConnectDevice("AA:BB:CC:DD:EE:FF"); !errors.Is(err, ErrRequestPending) {
		t.Errorf("second ConnectDevice() error = %v, want ErrRequestPending", err)
	}
	if err := h.server.DisconnectDevice("AA:BB:CC:DD:EE:FF"); !errors.Is(err, ErrRequestPending) {
		t.Errorf("DisconnectDevice() error = %v, want ErrRequestPending", err)
	}
	if n := len(h.adapter.connects["AA:BB:CC:DD:EE:FF"]); n != 1 {
		t.Errorf("connect requests = %d, want 1", n)
	}
	if n := len(h.adapter.disconnects["AA:BB:CC:DD:EE:FF"]); n != 0 {
		t.Errorf("disconnect requests = %d, want 0", n)
	}
}

func TestServer_ConnectSettlesAfterRescan(t *testing.T) {
	h := newHarness(t)
	h.server.TurnOn()
	h.adapter.starts[0](nil)
	h.loop.Drain()
	h.adapter.found(bluetooth.Device{Address: "AA:BB:CC:DD:EE:FF"})
	_ = h.server.ConnectDevice("AA:BB:CC:DD:EE:FF")
	old := h.server.Row("AA:BB:CC:DD:EE:FF")

	h.server.ToggleScan()
	h.adapter.stops[0](nil)
	h.loop.Drain()
	h.server.ToggleScan()
	h.adapter.starts[1](nil)
	h.loop.Drain()
	h.adapter.found(bluetooth.Device{Address: "AA:BB:CC:DD:EE:FF"})

	current := h.server.Row("AA:BB:CC:DD:EE:FF")
	if current == nil || current == old {
		t.Fatal("rescan should create a new row")
	}

	h.adapter.connects["AA:BB:CC:DD:EE:FF"][0](nil)
	h.loop.Drain()

	if !current.Connected() {
		t.Error("current row should show the connection")
	}
	if !h.server.Devices()[0].Connected {
		t.Error("registry should record the connection")
	}
	if current.Pending() {
		t.Error("current row never sent a request and should not be pending")
	}
}

func TestServer_ConnectSettlesAfterClear(t *testing.T) {
	h := newHarness(t)
	h.server.TurnOn()
	h.adapter.starts[0](nil)
	h.loop.Drain()
	h.adapter.found(bluetooth.Device{Address: "AA:BB:CC:DD:EE:FF"})
	_ = h.server.ConnectDevice("AA:BB:CC:DD:EE:FF")

	h.server.ToggleScan()
	h.adapter.stops[0](nil)
	h.loop.Drain()
	h.server.ToggleScan()

	h.adapter.connects["AA:BB:CC:DD:EE:FF"][0](nil)
	h.loop.Drain()

	if len(h.server.Devices()) != 0 || h.server.Row("AA:BB:CC:DD:EE:FF") != nil {
		t.Error("a settlement for a cleared device should not recreate it")
	}
}

func TestServer_TurnOnIdempotent(t *testing.T) {
	h := newHarness(t)

	h.server.TurnOn()
	h.server.TurnOn()

	if len(h.adapter.starts) != 1 {
		t.Errorf("scan starts = %d, want 1", len(h.adapter.starts))
	}
	if n := h.adapter.events.Count(bluetooth.EventDeviceFound); n != 1 {
		t.Errorf("device-found listeners = %d, want 1", n)
	}
}

func TestServer_TurnOffBeforeScanResolves(t *testing.T) {
	h := newHarness(t)
	_ = h.modes.SwitchMode(app.ModeBleServer)
	h.adapter.found(bluetooth.Device{Address: "AA:BB:CC:DD:EE:FF"})

	_ = h.modes.SwitchMode(app.ModeClassic)

	if h.server.Ready() {
		t.Error("server should not be ready")
	}
	if len(h.server.Devices()) != 0 || len(h.server.Rows()) != 0 {
		t.Error("turnOff should clear the registry and rows")
	}
	if n := h.adapter.events.Count(bluetooth.EventDeviceFound); n != 0 {
		t.Errorf("device-found listeners = %d, want 0", n)
	}
	if len(h.adapter.disables) != 1 {
		t.Errorf("disable requests = %d, want 1", len(h.adapter.disables))
	}

	h.adapter.starts[0](nil)
	h.loop.Drain()

	if h.server.Scanning() {
		t.Error("a stale scan start must not flip scanning back to true")
	}
}

func TestServer_TurnOffIdempotent(t *testing.T) {
	h := newHarness(t)

	h.server.TurnOff()
	_ = h.modes.SwitchMode(app.ModeBleClient)

	if len(h.adapter.disables) != 0 {
		t.Errorf("disable requests = %d, want 0 when never turned on", len(h.adapter.disables))
	}
}

func TestServer_TurnOffRejectedDisable(t *testing.T) {
	logs := observeLogs(t)
	h := newHarness(t)
	h.server.TurnOn()
	h.server.TurnOff()

	h.adapter.disables[0](errors.New("busy"))
	h.loop.Drain()

	if logs.FilterMessage("Hardware operation rejected").Len() != 1 {
		t.Error("rejected disable should be logged")
	}
}

func TestServer_StaleScanAcrossCycles(t *testing.T) {
	h := newHarness(t)
	h.server.TurnOn()
	h.server.TurnOff()
	h.server.TurnOn()

	h.adapter.starts[0](nil)
	h.loop.Drain()
	if h.server.Scanning() {
		t.Fatal("first cycle's scan start should be ignored")
	}

	h.adapter.starts[1](nil)
	h.loop.Drain()
	if !h.server.Scanning() {
		t.Error("current cycle's scan start should set scanning")
	}
}

func TestServer_ToggleScan(t *testing.T) {
	h := newHarness(t)
	h.server.TurnOn()
	h.adapter.starts[0](nil)
	h.loop.Drain()
	h.adapter.found(bluetooth.Device{Address: "AA:BB:CC:DD:EE:FF"})

	h.server.ScanButton().Click()
	if len(h.adapter.stops) != 1 {
		t.Fatalf("scan stops = %d, want 1", len(h.adapter.stops))
	}
	if !h.server.ScanButton().Disabled() {
		t.Error("scan button should be disabled while a request is in flight")
	}

	h.server.ToggleScan()
	if len(h.adapter.stops) != 1 || len(h.adapter.starts) != 1 {
		t.Error("toggle while a scan request is in flight should be ignored")
	}

	h.adapter.stops[0](nil)
	h.loop.Drain()
	if h.server.Scanning() {
		t.Fatal("scanning should be false after the stop resolves")
	}
	if len(h.server.Devices()) != 1 {
		t.Error("stopping a scan should keep the device list")
	}

	h.server.ToggleScan()
	if len(h.server.Devices()) != 0 {
		t.Error("starting a scan should clear the device list")
	}
	h.adapter.starts[1](nil)
	h.loop.Drain()
	if !h.server.Scanning() {
		t.Error("scanning should be true after the restart resolves")
	}
}

func TestServer_ToggleScanNotReady(t *testing.T) {
	h := newHarness(t)

	h.server.ToggleScan()

	if len(h.adapter.starts) != 0 {
		t.Errorf("scan starts = %d, want 0 while not ready", len(h.adapter.starts))
	}
}

func TestServer_ScanStartRejected(t *testing.T) {
	h := newHarness(t)
	h.server.TurnOn()

	h.adapter.starts[0](errors.New("not enabled"))
	h.loop.Drain()

	if h.server.Scanning() {
		t.Error("scanning should stay false after a rejection")
	}
	if h.server.ScanInFlight() {
		t.Error("in-flight token should be released after a rejection")
	}

	h.server.ToggleScan()
	if len(h.adapter.starts) != 2 {
		t.Errorf("scan starts = %d, want a retry to be possible", len(h.adapter.starts))
	}
}

func TestServer_AdapterTexts(t *testing.T) {
	h := newHarness(t)

	h.adapter.events.Fire(bluetooth.EventStateChanged, bluetooth.StateEnabled)
	h.adapter.events.Fire(bluetooth.EventDiscoveringChanged, true)

	if got := h.server.AdapterStateText(); got != "enabled" {
		t.Errorf("adapter state = %q, want %q", got, "enabled")
	}
	if got := h.server.DiscoveringText(); got != "discovering" {
		t.Errorf("discovering = %q, want %q", got, "discovering")
	}

	h.adapter.events.Fire(bluetooth.EventDiscoveringChanged, false)
	if got := h.server.DiscoveringText(); got != "not discovering" {
		t.Errorf("discovering = %q, want %q", got, "not discovering")
	}
}

func TestServer_Stop(t *testing.T) {
	h := newHarness(t)
	_ = h.modes.SwitchMode(app.ModeBleServer)

	h.server.Stop()
	h.server.Stop()

	if h.adapter.events.Total() != 0 {
		t.Errorf("adapter listeners = %d, want 0", h.adapter.events.Total())
	}
	_ = h.modes.SwitchMode(app.ModeBleServer)
	if h.server.Ready() {
		t.Error("stopped server should ignore mode switches")
	}
}

func TestServer_StartTwice(t *testing.T) {
	h := newHarness(t)

	if err := h.server.Start(h.modes); err != nil {
		t.Fatalf("second Start() error = %v", err)
	}
	if h.adapter.inits != 1 {
		t.Errorf("Init() calls = %d, want 1", h.adapter.inits)
	}
}
