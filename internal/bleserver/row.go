package bleserver

import (
	"github.com/muurk/bttest/internal/bluetooth"
	"github.com/muurk/bttest/internal/widget"
)

// RowHandler receives the connect affordance clicks of a DeviceRow
type RowHandler struct {
	OnConnect    func()
	OnDisconnect func()
}

// DeviceRow is the visual row of one discovered device: "[address]", the
// name, a connected indicator, and a connect/disconnect button.
type DeviceRow struct {
	device  bluetooth.Device
	handler RowHandler

	node      *widget.Node
	address   *widget.Node
	name      *widget.Node
	indicator *widget.Node
	button    *widget.Node

	connected *widget.Property[bool]
	pending   *widget.Property[bool]
}

func newDeviceRow(d bluetooth.Device, handler RowHandler) *DeviceRow {
	r := &DeviceRow{
		device:    d,
		handler:   handler,
		node:      widget.NewNode("div", "device"),
		address:   widget.NewNode("span", "device-address"),
		name:      widget.NewNode("span", "device-name"),
		indicator: widget.NewNode("span", "device-indicator"),
		button:    widget.NewNode("button", "device-connect"),
	}
	r.node.SetID("device-" + d.Address)
	r.address.SetText("[" + d.Address + "]")
	r.name.SetText(d.Name)

	r.connected = widget.NewProperty(false, func(_, next bool) {
		r.node.ToggleClass("device-connected", next)
		if next {
			r.indicator.SetText("connected")
			r.button.SetText("Disconnect")
		} else {
			r.indicator.SetText("disconnected")
			r.button.SetText("Connect")
		}
	})
	r.pending = widget.NewProperty(false, func(_, next bool) {
		r.button.SetDisabled(next)
		r.button.ToggleClass("device-pending", next)
	})
	r.connected.Set(d.Connected)
	r.pending.Set(false)

	r.button.OnClick(r.Click)
	r.node.Append(r.address).Append(r.name).Append(r.indicator).Append(r.button)
	return r
}

// Node returns the row container
func (r *DeviceRow) Node() *widget.Node { return r.node }

// Button returns the connect toggle
func (r *DeviceRow) Button() *widget.Node { return r.button }

// Indicator returns the connection indicator
func (r *DeviceRow) Indicator() *widget.Node { return r.indicator }

// Device returns the device as last reported
func (r *DeviceRow) Device() bluetooth.Device { return r.device }

// Address returns the device address
func (r *DeviceRow) Address() string { return r.device.Address }

// Name returns the displayed name
func (r *DeviceRow) Name() string { return r.name.Text() }

// Connected reports the indicator state
func (r *DeviceRow) Connected() bool { return r.connected.Get() }

// Pending reports whether a request is outstanding
func (r *DeviceRow) Pending() bool { return r.pending.Get() }

// SetConnected updates the indicator
func (r *DeviceRow) SetConnected(connected bool) {
	r.device.Connected = connected
	r.connected.Set(connected)
}

// SetPending disables the button while a GATT request is in flight
func (r *DeviceRow) SetPending(pending bool) { r.pending.Set(pending) }

// Click requests a connect or a disconnect depending on the indicator.
// Pending rows ignore clicks.
func (r *DeviceRow) Click() {
	if r.Pending() {
		return
	}
	if r.Connected() {
		callRow("onDisconnect", r.handler.OnDisconnect)
		return
	}
	callRow("onConnect", r.handler.OnConnect)
}

// Destroy removes the row's node and listeners
func (r *DeviceRow) Destroy() { r.node.Remove() }
