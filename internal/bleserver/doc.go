// Package bleserver implements the BLE server mode controller.
//
// The Server turns scanning on when the harness switches to the
// ble-server-api mode and off for any other mode. Discovered devices are
// de-duplicated by address and shown as rows in first-seen order; each row
// can request a GATT connect or disconnect.
//
// Hardware requests settle asynchronously. Every continuation carries the
// epoch it was started in and is dropped if the controller has since been
// turned off or on again, so a late scan-start can never mark a stopped
// controller as scanning. Only one scan start or stop is in flight at a time.
package bleserver
