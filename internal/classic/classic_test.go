package classic

import (
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/muurk/bttest/internal/async"
	"github.com/muurk/bttest/internal/bluetooth"
	"github.com/muurk/bttest/internal/widget"
)

const settleTimeout = 2 * time.Second

type fixture struct {
	loop  *async.Loop
	hub   *bluetooth.Hub
	radio *bluetooth.SimRadio
	adapt *bluetooth.Manager
	tabs  *widget.TabsManager
}

func newFixture(t *testing.T, cfg bluetooth.SimConfig) *fixture {
	t.Helper()
	if cfg.Address == "" {
		cfg.Address = "00:1A:7D:DA:71:13"
	}
	if cfg.Interval == 0 {
		cfg.Interval = time.Hour
	}
	loop := async.NewLoop()
	radio := bluetooth.NewSimRadio(cfg)
	m := bluetooth.NewManager(radio, loop, bluetooth.Options{})
	hub := bluetooth.NewHub(loop)
	if err := hub.Add(m); err != nil {
		t.Fatalf("hub.Add() error = %v", err)
	}
	t.Cleanup(func() { _ = hub.Close() })
	f := &fixture{loop: loop, hub: hub, radio: radio, adapt: m, tabs: widget.NewTabsManager()}
	f.settle(t)
	return f
}

func (f *fixture) settle(t *testing.T) {
	t.Helper()
	if !f.loop.Settle(settleTimeout) {
		t.Fatal("loop did not settle")
	}
}

func TestManagerTab_ListsAdapters(t *testing.T) {
	f := newFixture(t, bluetooth.SimConfig{Name: "bench"})
	mt := NewManagerTab(f.tabs, f.hub, f.loop, Options{})

	blocks := mt.Blocks()
	if len(blocks) != 1 {
		t.Fatalf("blocks = %d, want 1", len(blocks))
	}
	b := blocks[0].Block()
	if b.Name() != "00:1A:7D:DA:71:13" {
		t.Errorf("block name = %q, want the adapter address", b.Name())
	}
	if !strings.Contains(b.Description(), "name: bench") || !strings.Contains(b.Description(), "state: disabled") {
		t.Errorf("description = %q, want name and state", b.Description())
	}
	if f.tabs.Len() != 1 || f.tabs.ActiveTab() != mt.Tab() {
		t.Error("manager tab should be added and selected")
	}
}

func TestManagerTab_FollowsHub(t *testing.T) {
	f := newFixture(t, bluetooth.SimConfig{})
	mt := NewManagerTab(f.tabs, f.hub, f.loop, Options{})
	mt.Open(f.adapt)

	second := bluetooth.NewManager(bluetooth.NewSimRadio(bluetooth.SimConfig{Address: "22:22:22:22:22:22"}), f.loop, bluetooth.Options{})
	_ = f.hub.Add(second)
	f.settle(t)
	if len(mt.Blocks()) != 2 {
		t.Fatalf("blocks = %d, want 2 after adapter-added", len(mt.Blocks()))
	}

	f.hub.Remove(f.adapt)
	f.settle(t)
	if len(mt.Blocks()) != 1 {
		t.Errorf("blocks = %d, want 1 after adapter-removed", len(mt.Blocks()))
	}
	if mt.OpenTabs() != 0 {
		t.Error("the removed adapter's tab should be closed")
	}
	if mt.Tab().NumBlocks() != 1 {
		t.Errorf("manager tab blocks = %d, want 1", mt.Tab().NumBlocks())
	}
}

func TestManagerTab_PlayOpensAdapterTab(t *testing.T) {
	f := newFixture(t, bluetooth.SimConfig{})
	mt := NewManagerTab(f.tabs, f.hub, f.loop, Options{})

	mt.Blocks()[0].Block().Button().Click()
	mt.Blocks()[0].Block().Play()

	if f.tabs.Len() != 2 {
		t.Fatalf("tabs = %d, want 2 (playing twice reuses the tab)", f.tabs.Len())
	}
	active := f.tabs.ActiveTab()
	if active.Name() != "00:1A:7D:DA:71:13" {
		t.Errorf("adapter tab name = %q, want the address", active.Name())
	}
	if active.NumBlocks() != 4 {
		t.Errorf("adapter tab blocks = %d, want 4", active.NumBlocks())
	}
}

func TestAdapterTab_Close(t *testing.T) {
	f := newFixture(t, bluetooth.SimConfig{})
	mt := NewManagerTab(f.tabs, f.hub, f.loop, Options{})
	at := mt.Open(f.adapt)
	before := f.adapt.Listeners(bluetooth.EventAttributeChanged)

	at.Tab().CloseNode().Click()

	if !at.Closed() || f.tabs.Len() != 1 {
		t.Fatalf("tabs = %d, want only the manager tab", f.tabs.Len())
	}
	if mt.OpenTabs() != 0 {
		t.Error("manager should forget the closed tab")
	}
	after := f.adapt.Listeners(bluetooth.EventAttributeChanged)
	if after != before-4 {
		t.Errorf("attribute listeners = %d, want %d", after, before-4)
	}
	if at.Tab().BodyNode().Listeners() != 0 {
		t.Error("closed tab should leave no listeners")
	}

	at.Close()
}

func TestEnableBlock_FollowsAdapterState(t *testing.T) {
	f := newFixture(t, bluetooth.SimConfig{})
	at := NewAdapterTab(f.tabs, f.adapt, f.loop, Options{}, nil)
	sw := at.Enable().Block()

	if sw.State() != widget.SwitchOff {
		t.Fatalf("initial state = %s, want off", sw.State().Name)
	}

	var seen []string
	f.adapt.On(bluetooth.EventAttributeChanged, func(any) { seen = append(seen, sw.State().Name) })

	sw.Button().Click()
	f.settle(t)

	if sw.State() != widget.SwitchOn {
		t.Errorf("state = %s, want on", sw.State().Name)
	}
	if len(seen) < 2 || seen[0] != widget.SwitchTurningOn.Name {
		t.Errorf("observed states = %v, want turning-on first", seen)
	}

	sw.Button().Click()
	f.settle(t)
	if sw.State() != widget.SwitchOff {
		t.Errorf("state = %s, want off", sw.State().Name)
	}
}

func TestEnableBlock_Rejected(t *testing.T) {
	f := newFixture(t, bluetooth.SimConfig{})
	f.radio.Fail(bluetooth.SimEnable, errors.New("rfkill"))
	at := NewAdapterTab(f.tabs, f.adapt, f.loop, Options{}, nil)

	at.Enable().Block().Button().Click()
	f.settle(t)

	if got := at.Enable().Block().State(); got != widget.SwitchOff {
		t.Errorf("state = %s, want off after a rejected enable", got.Name)
	}
}

func TestDiscoverableBlock(t *testing.T) {
	f := newFixture(t, bluetooth.SimConfig{Powered: true})
	at := NewAdapterTab(f.tabs, f.adapt, f.loop, Options{}, nil)
	sw := at.Discoverable().Block()

	sw.Button().Click()
	f.settle(t)
	if sw.State() != widget.SwitchOn || !f.adapt.Discoverable() {
		t.Fatalf("state = %s, want on", sw.State().Name)
	}

	sw.Button().Click()
	f.settle(t)
	if sw.State() != widget.SwitchOff {
		t.Errorf("state = %s, want off", sw.State().Name)
	}
}

func TestNameBlock(t *testing.T) {
	f := newFixture(t, bluetooth.SimConfig{Powered: true, Name: "old"})
	at := NewAdapterTab(f.tabs, f.adapt, f.loop, Options{}, nil)
	input := at.Name().Input()

	if input.Value() != "old" {
		t.Fatalf("input = %q, want %q", input.Value(), "old")
	}
	if err := input.Input("bench-2"); err != nil {
		t.Fatalf("Input() error = %v", err)
	}
	f.settle(t)

	if f.adapt.Name() != "bench-2" || f.radio.Name() != "bench-2" {
		t.Errorf("adapter name = %q, want bench-2", f.adapt.Name())
	}
	if f.radio.Calls(bluetooth.SimSetName) != 1 {
		t.Errorf("set-name calls = %d, want 1", f.radio.Calls(bluetooth.SimSetName))
	}
}

func TestNameBlock_Rejected(t *testing.T) {
	f := newFixture(t, bluetooth.SimConfig{Powered: true, Name: "old"})
	f.radio.Fail(bluetooth.SimSetName, errors.New("busy"))
	at := NewAdapterTab(f.tabs, f.adapt, f.loop, Options{}, nil)
	input := at.Name().Input()

	_ = input.Input("bench-2")
	f.settle(t)

	if input.Value() != "old" {
		t.Errorf("input = %q, want it restored to %q", input.Value(), "old")
	}
	if f.adapt.Name() != "old" {
		t.Errorf("adapter name = %q, want old", f.adapt.Name())
	}
}

func TestDiscoveryBlock_StartStop(t *testing.T) {
	f := newFixture(t, bluetooth.SimConfig{
		Powered: true,
		Devices: []bluetooth.Device{
			{Address: "AA:BB:CC:DD:EE:FF", Services: []string{"180D"}},
			{Address: "11:22:33:44:55:66", Services: []string{"1812"}},
		},
	})
	at := NewAdapterTab(f.tabs, f.adapt, f.loop, Options{}, nil)
	d := at.Discovery()
	eb := d.Block()

	eb.Button().Click()
	if eb.State() != widget.ExecutionStarting {
		t.Fatalf("state = %s, want starting", eb.State().Name)
	}
	eb.Button().Click()

	deadline := time.Now().Add(settleTimeout)
	for d.Found() < 2 && time.Now().Before(deadline) {
		f.loop.Drain()
		time.Sleep(5 * time.Millisecond)
	}
	f.settle(t)
	if eb.State() != widget.ExecutionRunning {
		t.Fatalf("state = %s, want running", eb.State().Name)
	}
	if d.Found() != 2 || eb.Status() != "2 devices found" {
		t.Errorf("status = %q, want 2 devices found", eb.Status())
	}
	if f.radio.Calls(bluetooth.SimStartScan) != 1 {
		t.Errorf("start-scan calls = %d, want 1", f.radio.Calls(bluetooth.SimStartScan))
	}

	eb.Button().Click()
	f.settle(t)
	if eb.State() != widget.ExecutionPending {
		t.Errorf("state = %s, want pending", eb.State().Name)
	}
	if f.adapt.Discovering() {
		t.Error("adapter should stop discovering")
	}
}

func TestDiscoveryBlock_Filter(t *testing.T) {
	f := newFixture(t, bluetooth.SimConfig{
		Powered: true,
		Devices: []bluetooth.Device{
			{Address: "AA:BB:CC:DD:EE:FF", Services: []string{"180D"}},
			{Address: "11:22:33:44:55:66", Services: []string{"1812"}},
		},
	})
	at := NewAdapterTab(f.tabs, f.adapt, f.loop, Options{}, nil)
	d := at.Discovery()
	if err := d.Filter().Input("hid (1812)"); err != nil {
		t.Fatalf("Filter().Input() error = %v", err)
	}

	d.Block().Click()
	deadline := time.Now().Add(settleTimeout)
	for d.Found() < 1 && time.Now().Before(deadline) {
		f.loop.Drain()
		time.Sleep(5 * time.Millisecond)
	}
	f.settle(t)

	if d.Found() != 1 {
		t.Errorf("Found() = %d, want 1 with the hid filter", d.Found())
	}
}

func TestDiscoveryBlock_Rejected(t *testing.T) {
	f := newFixture(t, bluetooth.SimConfig{Powered: true})
	f.radio.Fail(bluetooth.SimStartScan, errors.New("busy"))
	at := NewAdapterTab(f.tabs, f.adapt, f.loop, Options{}, nil)
	eb := at.Discovery().Block()

	eb.Click()
	f.settle(t)

	if eb.State() != widget.ExecutionPending {
		t.Errorf("state = %s, want pending after a rejection", eb.State().Name)
	}
	if !strings.HasPrefix(eb.Status(), "failed") {
		t.Errorf("status = %q, want failure", eb.Status())
	}
	if f.adapt.Listeners(bluetooth.EventDeviceFound) != 0 {
		t.Error("failed discovery should stop listening")
	}
}

func TestDiscoveryBlock_AutoStop(t *testing.T) {
	f := newFixture(t, bluetooth.SimConfig{Powered: true})
	at := NewAdapterTab(f.tabs, f.adapt, f.loop, Options{ScanDuration: 20 * time.Millisecond}, nil)
	eb := at.Discovery().Block()

	eb.Click()
	deadline := time.Now().Add(settleTimeout)
	for eb.State() != widget.ExecutionPending && time.Now().Before(deadline) {
		f.loop.Drain()
		time.Sleep(5 * time.Millisecond)
	}
	f.settle(t)

	if eb.State() != widget.ExecutionPending {
		t.Fatalf("state = %s, want pending after the duration", eb.State().Name)
	}
	if eb.ProgressRatio() != 1 {
		t.Errorf("ProgressRatio() = %v, want 1", eb.ProgressRatio())
	}
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func TestDiscoveryBlock_ProgressWithoutDevices(t *testing.T) {
	f := newFixture(t, bluetooth.SimConfig{Powered: true})
	at := NewAdapterTab(f.tabs, f.adapt, f.loop, Options{ScanDuration: 10 * time.Second}, nil)
	d := at.Discovery()
	clock := &fakeClock{now: time.Unix(1000, 0)}
	d.now = clock.Now
	d.interval = 5 * time.Millisecond
	t.Cleanup(d.Destroy)
	eb := d.Block()

	eb.Click()
	f.settle(t)
	if eb.State() != widget.ExecutionRunning {
		t.Fatalf("state = %s, want running", eb.State().Name)
	}
	if eb.ProgressRatio() != 0 {
		t.Errorf("ProgressRatio() = %v, want 0 at start", eb.ProgressRatio())
	}

	clock.Advance(5 * time.Second)
	deadline := time.Now().Add(settleTimeout)
	for eb.ProgressRatio() < 0.5 && time.Now().Before(deadline) {
		f.loop.Drain()
		time.Sleep(5 * time.Millisecond)
	}
	if got := eb.ProgressRatio(); got < 0.49 || got > 0.51 {
		t.Errorf("ProgressRatio() = %v, want 0.5 halfway through", got)
	}
	if eb.State() != widget.ExecutionRunning {
		t.Errorf("state = %s, want running", eb.State().Name)
	}
}

func TestDiscoveryBlock_ProgressIgnoresStaleEpoch(t *testing.T) {
	f := newFixture(t, bluetooth.SimConfig{Powered: true})
	at := NewAdapterTab(f.tabs, f.adapt, f.loop, Options{ScanDuration: 10 * time.Second}, nil)
	d := at.Discovery()
	clock := &fakeClock{now: time.Unix(1000, 0)}
	d.now = clock.Now
	t.Cleanup(d.Destroy)

	d.Block().Click()
	f.settle(t)
	clock.Advance(2 * time.Second)
	d.progress(d.epoch - 1)
	if d.Block().ProgressRatio() != 0 {
		t.Errorf("ProgressRatio() = %v, want 0 for a stale tick", d.Block().ProgressRatio())
	}
	d.progress(d.epoch)
	if got := d.Block().ProgressRatio(); got < 0.19 || got > 0.21 {
		t.Errorf("ProgressRatio() = %v, want 0.2", got)
	}
}

func TestDiscoveryBlock_StopRejected(t *testing.T) {
	f := newFixture(t, bluetooth.SimConfig{Powered: true})
	at := NewAdapterTab(f.tabs, f.adapt, f.loop, Options{ScanDuration: 10 * time.Second}, nil)
	d := at.Discovery()
	t.Cleanup(d.Destroy)
	eb := d.Block()

	eb.Click()
	f.settle(t)
	if eb.State() != widget.ExecutionRunning {
		t.Fatalf("state = %s, want running", eb.State().Name)
	}

	f.radio.Fail(bluetooth.SimStopScan, errors.New("busy"))
	eb.Click()
	f.settle(t)

	if eb.State() != widget.ExecutionRunning {
		t.Errorf("state = %s, want running after a rejected stop", eb.State().Name)
	}
	if !strings.HasPrefix(eb.Status(), "failed") {
		t.Errorf("status = %q, want failure", eb.Status())
	}
	if d.timer == nil || d.ticking == nil {
		t.Error("rejected stop should re-arm the auto-stop and progress ticker")
	}
	if !f.adapt.Discovering() {
		t.Error("adapter should still be discovering")
	}

	f.radio.Fail(bluetooth.SimStopScan, nil)
	eb.Click()
	f.settle(t)
	if eb.State() != widget.ExecutionPending {
		t.Errorf("state = %s, want pending after a retried stop", eb.State().Name)
	}
	if d.timer != nil || d.ticking != nil {
		t.Error("stopped scan should not keep timers")
	}
}
