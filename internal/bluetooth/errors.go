package bluetooth

import "errors"

var (
	// ErrNotEnabled is returned by operations that need a powered adapter
	ErrNotEnabled = errors.New("adapter not enabled")

	// ErrUnknownDevice is returned when an address is not in the registry
	ErrUnknownDevice = errors.New("unknown device")

	// ErrRadioClosed is returned once the radio or its manager is closed
	ErrRadioClosed = errors.New("radio closed")

	// ErrTimeout is returned when a GATT operation does not finish in time
	ErrTimeout = errors.New("timeout")

	// ErrUnsupportedPlatform is returned by the HCI radio outside Linux
	ErrUnsupportedPlatform = errors.New("hci radio is only supported on linux")
)
