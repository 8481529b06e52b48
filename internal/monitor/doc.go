// Package monitor publishes the harness's visual state to read-only
// observers.
//
// Every change to the widget tree, the adapters or the device list can be
// captured as a Snapshot and handed to Publish. Identical snapshots are
// dropped. The rest are stamped with a sequence number and streamed to
// websocket clients at most once per interval, so a burst of discovery
// events costs one frame.
//
// # Endpoints
//
//	GET /ws        stream of frames, the latest one first
//	GET /snapshot  latest frame
//	GET /healthz   liveness
//
// # Discovery
//
// A monitor may advertise itself as "_bttest._tcp" over mDNS. Browser lists
// the monitors on the local network, which lets a bench of devices under
// test be watched from one place.
package monitor
