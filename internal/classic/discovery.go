package classic

import (
	"fmt"
	"time"

	"github.com/muurk/bttest/internal/async"
	"github.com/muurk/bttest/internal/bluetooth"
	"github.com/muurk/bttest/internal/logging"
	"github.com/muurk/bttest/internal/pubsub"
	"github.com/muurk/bttest/internal/widget"
)

// ServiceFilter is one choice of the discovery filter input
type ServiceFilter struct {
	Label    string
	Services []string
}

// DefaultFilters are offered when Options.Filters is empty
var DefaultFilters = []ServiceFilter{
	{Label: "any"},
	{Label: "heart rate (180D)", Services: []string{"180D"}},
	{Label: "battery (180F)", Services: []string{"180F"}},
	{Label: "hid (1812)", Services: []string{"1812"}},
}

// DefaultProgressInterval is how often a running timed scan refreshes its
// progress ratio
const DefaultProgressInterval = 250 * time.Millisecond

// DiscoveryBlock runs a timed LE scan and counts the distinct devices it
// finds. A zero duration scans until stopped.
type DiscoveryBlock struct {
	tab     *widget.Tab
	adapter Adapter
	sched   async.Scheduler
	filters []ServiceFilter

	block    *widget.ExecutionBlock
	duration *widget.NumberInput
	filter   *widget.OptionsInput

	seen      map[string]bool
	foundSub  pubsub.Subscription
	listening bool
	epoch     uint64
	startedAt time.Time
	limit     time.Duration
	timer     *time.Timer
	ticking   chan struct{}
	interval  time.Duration
	now       func() time.Time
}

// NewDiscoveryBlock appends a discovery block to tab. Auto-stop timers post
// to sched.
func NewDiscoveryBlock(tab *widget.Tab, adapter Adapter, sched async.Scheduler, duration time.Duration, filters []ServiceFilter) *DiscoveryBlock {
	if len(filters) == 0 {
		filters = DefaultFilters
	}
	labels := make([]string, 0, len(filters))
	for _, f := range filters {
		labels = append(labels, f.Label)
	}

	b := &DiscoveryBlock{
		tab:      tab,
		adapter:  adapter,
		sched:    sched,
		filters:  filters,
		duration: widget.NewNumberInput("Duration (s)", duration.Seconds(), 0, 3600),
		filter:   widget.NewOptionsInput("Service", labels, 0),
		seen:     make(map[string]bool),
		interval: DefaultProgressInterval,
		now:      time.Now,
	}
	b.block = widget.NewExecutionBlock(widget.ExecutionHandler{
		OnStart: b.start,
		OnStop:  b.stop,
	}, "Discovery", "Scan for LE devices")
	b.block.Body().Append(b.duration.Node()).Append(b.filter.Node())
	b.block.Own(b.duration)
	b.block.Own(b.filter)
	b.block.SetStatus("idle")

	tab.AddBlock(b.block, tab.NumBlocks())
	return b
}

// Block returns the execution block
func (b *DiscoveryBlock) Block() *widget.ExecutionBlock { return b.block }

// Duration returns the scan duration input
func (b *DiscoveryBlock) Duration() *widget.NumberInput { return b.duration }

// Filter returns the service filter input
func (b *DiscoveryBlock) Filter() *widget.OptionsInput { return b.filter }

// Found returns the number of distinct devices seen by the current scan
func (b *DiscoveryBlock) Found() int { return len(b.seen) }

func (b *DiscoveryBlock) start() {
	b.epoch++
	epoch := b.epoch
	b.seen = make(map[string]bool)
	b.limit = time.Duration(b.duration.Value() * float64(time.Second))
	b.block.SetState(widget.ExecutionStarting)
	b.block.SetProgressRatio(0)
	b.block.SetStatus("starting")
	b.listen()

	b.adapter.SafelyStartLeScan(b.selectedServices()).Then(func(err error) {
		if epoch != b.epoch {
			logging.LogStaleSettlement("discovery-start", epoch, b.epoch)
			return
		}
		if err != nil {
			logging.LogHardwareRejection("discovery-start", b.adapter.Address(), err)
			b.unlisten()
			b.block.SetState(widget.ExecutionPending)
			b.block.SetStatus(fmt.Sprintf("failed: %v", err))
			return
		}
		b.startedAt = b.now()
		b.block.SetState(widget.ExecutionRunning)
		b.block.SetStatus(b.summary())
		b.arm(epoch, b.limit)
	})
}

// arm schedules the auto-stop after remaining and starts the progress
// ticker. Both post to the scheduler and are dropped once epoch is stale.
func (b *DiscoveryBlock) arm(epoch uint64, remaining time.Duration) {
	b.stopTimer()
	if b.limit <= 0 {
		return
	}
	b.timer = time.AfterFunc(remaining, func() {
		b.sched.Post(func() { b.expire(epoch) })
	})

	done := make(chan struct{})
	b.ticking = done
	go func(interval time.Duration) {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				b.sched.Post(func() { b.progress(epoch) })
			}
		}
	}(b.interval)
}

func (b *DiscoveryBlock) progress(epoch uint64) {
	if epoch != b.epoch || b.limit <= 0 || b.block.State() != widget.ExecutionRunning {
		return
	}
	b.block.SetProgressRatio(float64(b.now().Sub(b.startedAt)) / float64(b.limit))
}

func (b *DiscoveryBlock) expire(epoch uint64) {
	if epoch != b.epoch || b.block.State() != widget.ExecutionRunning {
		return
	}
	b.block.SetProgressRatio(1)
	b.stop()
}

func (b *DiscoveryBlock) stop() {
	b.epoch++
	epoch := b.epoch
	b.stopTimer()
	b.block.SetState(widget.ExecutionStopping)

	b.adapter.SafelyStopLeScan().Then(func(err error) {
		if epoch != b.epoch {
			logging.LogStaleSettlement("discovery-stop", epoch, b.epoch)
			return
		}
		if err != nil {
			logging.LogHardwareRejection("discovery-stop", b.adapter.Address(), err)
			b.block.SetState(widget.ExecutionRunning)
			b.block.SetStatus(fmt.Sprintf("failed: %v", err))
			// An expired scan retries after one progress interval.
			b.arm(epoch, max(b.limit-b.now().Sub(b.startedAt), b.interval))
			return
		}
		b.unlisten()
		b.block.SetState(widget.ExecutionPending)
		b.block.SetStatus(b.summary())
	})
}

func (b *DiscoveryBlock) onDeviceFound(p any) {
	d, ok := p.(bluetooth.Device)
	if !ok {
		return
	}
	b.seen[bluetooth.NormalizeAddress(d.Address)] = true
	b.progress(b.epoch)
	b.block.SetStatus(b.summary())
}

func (b *DiscoveryBlock) summary() string {
	if len(b.seen) == 1 {
		return "1 device found"
	}
	return fmt.Sprintf("%d devices found", len(b.seen))
}

func (b *DiscoveryBlock) selectedServices() []string {
	i := b.filter.Index()
	if i < 0 || i >= len(b.filters) {
		return nil
	}
	return b.filters[i].Services
}

func (b *DiscoveryBlock) listen() {
	if b.listening {
		return
	}
	b.foundSub = b.adapter.On(bluetooth.EventDeviceFound, b.onDeviceFound)
	b.listening = true
}

func (b *DiscoveryBlock) unlisten() {
	if !b.listening {
		return
	}
	b.adapter.Off(bluetooth.EventDeviceFound, b.foundSub)
	b.listening = false
}

func (b *DiscoveryBlock) stopTimer() {
	if b.timer != nil {
		b.timer.Stop()
		b.timer = nil
	}
	if b.ticking != nil {
		close(b.ticking)
		b.ticking = nil
	}
}

// Destroy stops a running scan, removes the block from its tab, and stops
// listening
func (b *DiscoveryBlock) Destroy() {
	if b.block.State() == widget.ExecutionRunning || b.block.State() == widget.ExecutionStarting {
		report(b.adapter.SafelyStopLeScan(), "discovery-stop", b.adapter.Address())
	}
	b.epoch++
	b.stopTimer()
	b.unlisten()
	b.tab.RemoveBlock(b.block)
	b.block.Destroy()
}
