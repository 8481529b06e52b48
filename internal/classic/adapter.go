package classic

import (
	"github.com/muurk/bttest/internal/async"
	"github.com/muurk/bttest/internal/bluetooth"
	"github.com/muurk/bttest/internal/logging"
	"github.com/muurk/bttest/internal/pubsub"
)

// Adapter is the part of *bluetooth.Manager the classic blocks drive
type Adapter interface {
	Address() string
	Name() string
	State() bluetooth.AdapterState
	Discoverable() bool

	On(event string, fn pubsub.Handler) pubsub.Subscription
	Off(event string, sub pubsub.Subscription)

	SafelyEnable() *async.Future
	SafelyDisable() *async.Future
	SetDiscoverable(on bool) *async.Future
	SetName(name string) *async.Future
	SafelyStartLeScan(filters []string) *async.Future
	SafelyStopLeScan() *async.Future
}

var _ Adapter = (*bluetooth.Manager)(nil)

// attributeListener calls fn for every attribute-changed event of an
// adapter until it is released.
type attributeListener struct {
	adapter Adapter
	sub     pubsub.Subscription
}

func listenAttributes(a Adapter, fn func(bluetooth.AttributeChange)) *attributeListener {
	sub := a.On(bluetooth.EventAttributeChanged, func(p any) {
		if c, ok := p.(bluetooth.AttributeChange); ok {
			fn(c)
		}
	})
	return &attributeListener{adapter: a, sub: sub}
}

func (l *attributeListener) release() {
	if l == nil || l.adapter == nil {
		return
	}
	l.adapter.Off(bluetooth.EventAttributeChanged, l.sub)
	l.adapter = nil
}

// report logs a rejected operation once f settles
func report(f *async.Future, op, address string) {
	f.Then(func(err error) {
		if err != nil {
			logging.LogHardwareRejection(op, address, err)
		}
	})
}
