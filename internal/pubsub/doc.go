// Package pubsub provides the publish/subscribe capability shared by every
// harness component.
//
// An Emitter is composed into a type rather than bolted on: the owner keeps an
// Emitter field and forwards On/Off, or exposes the Emitter directly.
//
//	var events pubsub.Emitter
//	sub := events.On("scanning-changed", func(p any) { ... })
//	events.Fire("scanning-changed", true)
//	events.Off("scanning-changed", sub)
//
// Delivery is synchronous, in registration order, on the caller's goroutine.
package pubsub
