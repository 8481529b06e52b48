// Package async provides the single-threaded execution model of the harness.
//
// All component state (widgets, the device registry, controller flags) is
// owned by one goroutine. Hardware operations run elsewhere and report back
// through a Future whose callbacks are posted to the owning Scheduler, so
// continuations interleave with user events but never run concurrently with
// them.
//
// A Loop can be driven two ways:
//
//	// Headless: dedicated goroutine.
//	go loop.Run(ctx)
//
//	// Hosted: the TUI program drains the loop whenever it wakes.
//	for range loop.Wake() {
//	    program.Send(drainMsg{})
//	}
//
// Tests drive a Loop directly with Drain and Settle.
package async
