// Package bluetooth is the hardware capability surface of the harness.
//
// A Manager wraps one Radio (the simulated radio, or the HCI radio on Linux)
// and exposes promise-style operations:
//
//	m := bluetooth.NewManager(radio, loop, bluetooth.Options{})
//	_ = m.Init()
//	m.On(bluetooth.EventDeviceFound, func(p any) { ... })
//	m.SafelyStartLeScan(nil).Then(func(err error) { ... })
//
// Operations run one at a time on their own goroutine. Their futures settle
// and their events fire on the scheduler passed to NewManager, so handlers
// never race with the UI.
//
// Registry is the de-duplicating device store owned by the controllers that
// consume device-found events.
package bluetooth
