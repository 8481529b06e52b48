package bluetooth

import (
	"fmt"
	"strings"
	"time"
)

// DeviceType is the transport a remote device was discovered on
type DeviceType string

const (
	DeviceTypeUnknown DeviceType = "unknown"
	DeviceTypeLE      DeviceType = "le"
	DeviceTypeClassic DeviceType = "classic"
	DeviceTypeDual    DeviceType = "dual"
)

// ParseDeviceType maps a config or driver string to a DeviceType.
// Unrecognised values map to DeviceTypeUnknown.
func ParseDeviceType(s string) DeviceType {
	switch DeviceType(strings.ToLower(strings.TrimSpace(s))) {
	case DeviceTypeLE:
		return DeviceTypeLE
	case DeviceTypeClassic:
		return DeviceTypeClassic
	case DeviceTypeDual:
		return DeviceTypeDual
	default:
		return DeviceTypeUnknown
	}
}

// Device is one remote device as seen by the harness
type Device struct {
	Address      string
	Name         string
	Type         DeviceType
	Connected    bool
	RSSI         int
	Services     []string
	DiscoveredAt time.Time
}

// Advertises reports whether d advertises any of the given service UUIDs.
// An empty filter list matches every device.
func (d Device) Advertises(filters []string) bool {
	if len(filters) == 0 {
		return true
	}
	for _, f := range filters {
		for _, s := range d.Services {
			if strings.EqualFold(f, s) {
				return true
			}
		}
	}
	return false
}

// String formats the device the way device rows display it
func (d Device) String() string {
	return fmt.Sprintf("[%s] %s (%s)", d.Address, d.Name, d.Type)
}

// NormalizeAddress returns the canonical form used as a registry key
func NormalizeAddress(addr string) string {
	return strings.ToUpper(strings.TrimSpace(addr))
}
