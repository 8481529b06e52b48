package classic

import (
	"github.com/muurk/bttest/internal/bluetooth"
	"github.com/muurk/bttest/internal/logging"
	"github.com/muurk/bttest/internal/widget"
)

var adapterStateToSwitch = map[bluetooth.AdapterState]widget.SwitchState{
	bluetooth.StateDisabled:  widget.SwitchOff,
	bluetooth.StateEnabled:   widget.SwitchOn,
	bluetooth.StateEnabling:  widget.SwitchTurningOn,
	bluetooth.StateDisabling: widget.SwitchTurningOff,
}

// EnableBlock powers an adapter on and off. Its switch follows the
// adapter's state attribute.
type EnableBlock struct {
	tab      *widget.Tab
	adapter  Adapter
	block    *widget.SwitchButtonBlock
	listener *attributeListener
}

// NewEnableBlock appends an enable switch to tab
func NewEnableBlock(tab *widget.Tab, adapter Adapter) *EnableBlock {
	b := &EnableBlock{tab: tab, adapter: adapter}
	enable := func() { report(adapter.SafelyEnable(), "adapter-enable", adapter.Address()) }
	disable := func() { report(adapter.SafelyDisable(), "adapter-disable", adapter.Address()) }
	b.block = widget.NewSwitchButtonBlock(widget.SwitchHandler{
		OnTurnOn:        enable,
		OnTurnOff:       disable,
		OnCancelTurnOn:  disable,
		OnCancelTurnOff: enable,
	}, "Enabling", "Power the adapter on or off", widget.SwitchOff, true)

	tab.AddBlock(b.block, tab.NumBlocks())
	b.listener = listenAttributes(adapter, b.onAttributeChanged)
	b.onAttributeChanged(bluetooth.AttributeChange{Attrs: []string{bluetooth.AttrState}})
	return b
}

func (b *EnableBlock) onAttributeChanged(c bluetooth.AttributeChange) {
	if !c.Has(bluetooth.AttrState) {
		return
	}
	if state, ok := adapterStateToSwitch[b.adapter.State()]; ok {
		b.block.SetState(state)
	}
}

// Block returns the switch block
func (b *EnableBlock) Block() *widget.SwitchButtonBlock { return b.block }

// Destroy removes the block from its tab and stops following the adapter
func (b *EnableBlock) Destroy() {
	b.tab.RemoveBlock(b.block)
	b.block.Destroy()
	b.listener.release()
}

// DiscoverableBlock toggles inquiry scan. Its switch follows the adapter's
// discoverable attribute.
type DiscoverableBlock struct {
	tab      *widget.Tab
	adapter  Adapter
	block    *widget.SwitchButtonBlock
	listener *attributeListener
}

// NewDiscoverableBlock appends a discoverable switch to tab
func NewDiscoverableBlock(tab *widget.Tab, adapter Adapter) *DiscoverableBlock {
	b := &DiscoverableBlock{tab: tab, adapter: adapter}
	set := func(on bool) func() {
		return func() { report(adapter.SetDiscoverable(on), "set-discoverable", adapter.Address()) }
	}
	b.block = widget.NewSwitchButtonBlock(widget.SwitchHandler{
		OnTurnOn:        set(true),
		OnTurnOff:       set(false),
		OnCancelTurnOn:  set(false),
		OnCancelTurnOff: set(true),
	}, "Discoverable", "Make the adapter visible to inquiries", widget.SwitchOff, true)

	tab.AddBlock(b.block, tab.NumBlocks())
	b.listener = listenAttributes(adapter, b.onAttributeChanged)
	b.onAttributeChanged(bluetooth.AttributeChange{Attrs: []string{bluetooth.AttrDiscoverable}})
	return b
}

func (b *DiscoverableBlock) onAttributeChanged(c bluetooth.AttributeChange) {
	if !c.Has(bluetooth.AttrDiscoverable) {
		return
	}
	if b.adapter.Discoverable() {
		b.block.SetState(widget.SwitchOn)
	} else {
		b.block.SetState(widget.SwitchOff)
	}
}

// Block returns the switch block
func (b *DiscoverableBlock) Block() *widget.SwitchButtonBlock { return b.block }

// Destroy removes the block from its tab and stops following the adapter
func (b *DiscoverableBlock) Destroy() {
	b.tab.RemoveBlock(b.block)
	b.block.Destroy()
	b.listener.release()
}

// NameBlock edits the adapter's local name
type NameBlock struct {
	tab      *widget.Tab
	adapter  Adapter
	input    *widget.StringInput
	block    *widget.InputBlock
	listener *attributeListener
}

// NewNameBlock appends a name editor to tab
func NewNameBlock(tab *widget.Tab, adapter Adapter) *NameBlock {
	b := &NameBlock{
		tab:     tab,
		adapter: adapter,
		input:   widget.NewStringInput("Name", adapter.Name()),
	}
	b.block = widget.NewInputBlock("Local name", b.input)
	b.input.OnChange(func(v any) {
		name, _ := v.(string)
		if name == "" || name == b.adapter.Name() {
			return
		}
		b.adapter.SetName(name).Then(func(err error) {
			if err != nil {
				logging.LogHardwareRejection("set-name", b.adapter.Address(), err)
				b.input.SetValue(b.adapter.Name())
			}
		})
	})

	tab.AddBlock(b.block, tab.NumBlocks())
	b.listener = listenAttributes(adapter, func(c bluetooth.AttributeChange) {
		if c.Has(bluetooth.AttrName) {
			b.input.SetValue(b.adapter.Name())
		}
	})
	return b
}

// Input returns the name input
func (b *NameBlock) Input() *widget.StringInput { return b.input }

// Block returns the input block
func (b *NameBlock) Block() *widget.InputBlock { return b.block }

// Destroy removes the block from its tab and stops following the adapter
func (b *NameBlock) Destroy() {
	b.tab.RemoveBlock(b.block)
	b.block.Destroy()
	b.listener.release()
}
