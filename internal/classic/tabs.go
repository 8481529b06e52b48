package classic

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/muurk/bttest/internal/async"
	"github.com/muurk/bttest/internal/bluetooth"
	"github.com/muurk/bttest/internal/logging"
	"github.com/muurk/bttest/internal/pubsub"
	"github.com/muurk/bttest/internal/widget"
)

// Options configures the classic mode tabs
type Options struct {
	// ScanDuration is the initial duration of the discovery block
	ScanDuration time.Duration
	// Filters are the service filters offered by the discovery block
	Filters []ServiceFilter
}

// AdapterSource lists adapters and announces additions and removals.
// *bluetooth.Hub implements it.
type AdapterSource interface {
	Adapters() []*bluetooth.Manager
	On(event string, fn pubsub.Handler) pubsub.Subscription
	Off(event string, sub pubsub.Subscription)
}

var _ AdapterSource = (*bluetooth.Hub)(nil)

// ManagerTab lists one AdapterBlock per adapter. Playing a block opens the
// adapter's AdapterTab, or selects it when it is already open.
type ManagerTab struct {
	tabs   *widget.TabsManager
	source AdapterSource
	sched  async.Scheduler
	opts   Options

	tab     *widget.Tab
	blocks  []*AdapterBlock
	open    map[Adapter]*AdapterTab
	subs    []pubsub.Subscription
	events  []string
	removed bool
}

// NewManagerTab adds the manager tab to tabs and lists the current adapters
func NewManagerTab(tabs *widget.TabsManager, source AdapterSource, sched async.Scheduler, opts Options) *ManagerTab {
	m := &ManagerTab{
		tabs:   tabs,
		source: source,
		sched:  sched,
		opts:   opts,
		tab:    widget.NewTab("BluetoothManager", widget.TabHandler{}),
		open:   make(map[Adapter]*AdapterTab),
	}
	tabs.AddTab(m.tab)

	for _, event := range []string{bluetooth.EventAdapterAdded, bluetooth.EventAdapterRemoved} {
		m.subs = append(m.subs, source.On(event, func(any) { m.Update() }))
		m.events = append(m.events, event)
	}
	m.Update()
	return m
}

// Update rebuilds the adapter blocks. Adapter tabs of removed adapters are
// closed.
func (m *ManagerTab) Update() {
	for _, b := range m.blocks {
		b.Destroy()
	}
	m.blocks = nil

	present := make(map[Adapter]bool)
	for _, a := range m.source.Adapters() {
		present[a] = true
		m.blocks = append(m.blocks, NewAdapterBlock(m, a))
	}
	for a, t := range m.open {
		if !present[a] {
			t.Close()
		}
	}
	logging.Debug("Adapter list updated", zap.Int("adapters", len(m.blocks)))
}

// Open shows the AdapterTab of a, creating it on first use
func (m *ManagerTab) Open(a Adapter) *AdapterTab {
	if t, ok := m.open[a]; ok {
		m.tabs.Select(m.tabs.IndexOf(t.tab))
		return t
	}
	t := NewAdapterTab(m.tabs, a, m.sched, m.opts, func(t *AdapterTab) {
		delete(m.open, a)
	})
	m.open[a] = t
	return t
}

// Tab returns the manager's own tab
func (m *ManagerTab) Tab() *widget.Tab { return m.tab }

// Blocks returns the adapter blocks in adapter order
func (m *ManagerTab) Blocks() []*AdapterBlock { return append([]*AdapterBlock(nil), m.blocks...) }

// OpenTabs returns the number of open adapter tabs
func (m *ManagerTab) OpenTabs() int { return len(m.open) }

// Destroy closes every adapter tab and removes the manager tab
func (m *ManagerTab) Destroy() {
	if m.removed {
		return
	}
	m.removed = true
	for i, sub := range m.subs {
		m.source.Off(m.events[i], sub)
	}
	m.subs, m.events = nil, nil
	for _, t := range m.open {
		t.Close()
	}
	for _, b := range m.blocks {
		b.Destroy()
	}
	m.blocks = nil
	m.tabs.RemoveTab(m.tab)
	m.tab.Destroy()
}

// AdapterBlock is a play-button block titled with the adapter address and
// describing its name, state and discoverability.
type AdapterBlock struct {
	owner    *ManagerTab
	adapter  Adapter
	block    *widget.PlayButtonBlock
	listener *attributeListener
}

// NewAdapterBlock appends a block for a to the manager tab
func NewAdapterBlock(owner *ManagerTab, a Adapter) *AdapterBlock {
	b := &AdapterBlock{owner: owner, adapter: a}
	b.block = widget.NewPlayButtonBlock(widget.PlayButtonHandler{
		OnPlay: func() { owner.Open(a) },
	}, "", "", true)

	owner.tab.AddBlock(b.block, owner.tab.NumBlocks())
	b.listener = listenAttributes(a, b.onAttributeChanged)
	b.onAttributeChanged(bluetooth.AttributeChange{Attrs: []string{bluetooth.AttrAddress}})
	return b
}

func (b *AdapterBlock) onAttributeChanged(c bluetooth.AttributeChange) {
	if c.Has(bluetooth.AttrAddress) {
		b.block.SetName(b.adapter.Address())
	}
	b.block.SetDescription(describe(b.adapter))
}

func describe(a Adapter) string {
	return fmt.Sprintf("name: %s\nstate: %s\ndiscoverable: %t", a.Name(), a.State(), a.Discoverable())
}

// Block returns the play-button block
func (b *AdapterBlock) Block() *widget.PlayButtonBlock { return b.block }

// Destroy removes the block and stops following the adapter
func (b *AdapterBlock) Destroy() {
	b.owner.tab.RemoveBlock(b.block)
	b.block.Destroy()
	b.listener.release()
}

// AdapterTab holds the control blocks of one adapter. Its title follows the
// adapter address.
type AdapterTab struct {
	tabs    *widget.TabsManager
	adapter Adapter
	tab     *widget.Tab
	closed  func(*AdapterTab)

	enable       *EnableBlock
	discoverable *DiscoverableBlock
	name         *NameBlock
	discovery    *DiscoveryBlock
	listener     *attributeListener
	done         bool
}

// NewAdapterTab adds a tab for a to tabs. closed runs after the tab closes.
func NewAdapterTab(tabs *widget.TabsManager, a Adapter, sched async.Scheduler, opts Options, closed func(*AdapterTab)) *AdapterTab {
	t := &AdapterTab{tabs: tabs, adapter: a, closed: closed}
	t.tab = widget.NewTab("", widget.TabHandler{OnClose: t.Close})
	t.enable = NewEnableBlock(t.tab, a)
	t.discoverable = NewDiscoverableBlock(t.tab, a)
	t.name = NewNameBlock(t.tab, a)
	t.discovery = NewDiscoveryBlock(t.tab, a, sched, opts.ScanDuration, opts.Filters)

	tabs.AddTab(t.tab)
	t.listener = listenAttributes(a, func(c bluetooth.AttributeChange) {
		if c.Has(bluetooth.AttrAddress) {
			t.tab.SetName(a.Address())
		}
	})
	t.tab.SetName(a.Address())
	return t
}

func (t *AdapterTab) Tab() *widget.Tab { return t.tab }
func (t *AdapterTab) Enable() *EnableBlock { return t.enable }
func (t *AdapterTab) Discoverable() *DiscoverableBlock { return t.discoverable }
func (t *AdapterTab) Name() *NameBlock { return t.name }
func (t *AdapterTab) Discovery() *DiscoveryBlock { return t.discovery }
func (t *AdapterTab) Closed() bool { return t.done }

// Close destroys the blocks, removes the tab from the manager, and destroys it
func (t *AdapterTab) Close() {
	if t.done {
		return
	}
	t.done = true
	t.enable.Destroy()
	t.discoverable.Destroy()
	t.name.Destroy()
	t.discovery.Destroy()
	t.listener.release()

	t.tabs.RemoveTab(t.tab)
	t.tab.Destroy()
	if t.closed != nil {
		t.closed(t)
	}
}
