package monitor

import (
	"time"

	"github.com/muurk/bttest/internal/bluetooth"
	"github.com/muurk/bttest/internal/widget"
)

// NodeSnapshot is the serialized form of one widget node and its subtree
type NodeSnapshot struct {
	Kind     string         `json:"kind"`
	ID       string         `json:"id,omitempty"`
	Text     string         `json:"text,omitempty"`
	Classes  []string       `json:"classes,omitempty"`
	Hidden   bool           `json:"hidden,omitempty"`
	Disabled bool           `json:"disabled,omitempty"`
	Children []NodeSnapshot `json:"children,omitempty"`
}

// AdapterSnapshot describes one adapter
type AdapterSnapshot struct {
	Address      string `json:"address"`
	Name         string `json:"name"`
	State        string `json:"state"`
	Discoverable bool   `json:"discoverable"`
	Discovering  bool   `json:"discovering"`
}

// DeviceSnapshot describes one discovered device
type DeviceSnapshot struct {
	Address   string `json:"address"`
	Name      string `json:"name,omitempty"`
	Type      string `json:"type"`
	Connected bool   `json:"connected"`
	RSSI      int    `json:"rssi,omitempty"`
}

// Snapshot is the visual state of the harness at one instant
type Snapshot struct {
	Mode     string            `json:"mode"`
	Adapters []AdapterSnapshot `json:"adapters"`
	Devices  []DeviceSnapshot  `json:"devices"`
	Tree     *NodeSnapshot     `json:"tree,omitempty"`
}

// Frame is what clients receive: a snapshot stamped with a sequence number
type Frame struct {
	Seq  uint64    `json:"seq"`
	Time time.Time `json:"time"`
	Snapshot
}

// CaptureNode copies the subtree rooted at n. Widget nodes are owned by the
// event loop, so it must run there.
func CaptureNode(n *widget.Node) NodeSnapshot {
	s := NodeSnapshot{
		Kind:     n.Kind(),
		ID:       n.ID(),
		Text:     n.Text(),
		Classes:  n.Classes(),
		Hidden:   n.Hidden(),
		Disabled: n.Disabled(),
	}
	for _, c := range n.Children() {
		s.Children = append(s.Children, CaptureNode(c))
	}
	return s
}

// Capture builds a snapshot. root may be nil.
func Capture(mode string, root *widget.Node, adapters []*bluetooth.Manager, devices []bluetooth.Device) Snapshot {
	s := Snapshot{
		Mode:     mode,
		Adapters: make([]AdapterSnapshot, 0, len(adapters)),
		Devices:  make([]DeviceSnapshot, 0, len(devices)),
	}
	for _, a := range adapters {
		s.Adapters = append(s.Adapters, AdapterSnapshot{
			Address:      a.Address(),
			Name:         a.Name(),
			State:        string(a.State()),
			Discoverable: a.Discoverable(),
			Discovering:  a.Discovering(),
		})
	}
	for _, d := range devices {
		s.Devices = append(s.Devices, DeviceSnapshot{
			Address:   d.Address,
			Name:      d.Name,
			Type:      string(d.Type),
			Connected: d.Connected,
			RSSI:      d.RSSI,
		})
	}
	if root != nil {
		tree := CaptureNode(root)
		s.Tree = &tree
	}
	return s
}
