package widget

import (
	"fmt"
	"math"
	"strconv"
)

// ExecutionState is an immutable descriptor of one execution block state.
// States without an Action are busy indicators that ignore clicks.
type ExecutionState struct {
	Name    string
	Caption string
	Action  Action
}

var (
	ExecutionPending  = ExecutionState{Name: "pending", Caption: "Start", Action: ActionStart}
	ExecutionStarting = ExecutionState{Name: "starting", Caption: "Starting..."}
	ExecutionRunning  = ExecutionState{Name: "running", Caption: "Stop", Action: ActionStop}
	ExecutionStopping = ExecutionState{Name: "stopping", Caption: "Stopping..."}
)

// ExecutionHandler holds the optional callbacks of an ExecutionBlock
type ExecutionHandler struct {
	OnStart func()
	OnStop  func()
}

func (h ExecutionHandler) lookup(a Action) func() {
	switch a {
	case ActionStart:
		return h.OnStart
	case ActionStop:
		return h.OnStop
	}
	return nil
}

// ExecutionBlock drives a start/stop operation that cannot be cancelled once
// requested. The owner moves it between states as the operation settles.
type ExecutionBlock struct {
	*Block
	handler ExecutionHandler

	title    *Node
	button   *Node
	caption  *Node
	body     *Node
	status   *Node
	progress *Node

	state         *Property[ExecutionState]
	statusText    *Property[string]
	progressRatio *Property[float64]
}

// NewExecutionBlock creates a collapsed block in the PENDING state
func NewExecutionBlock(handler ExecutionHandler, name, description string) *ExecutionBlock {
	b := &ExecutionBlock{
		Block:    NewBlock(false),
		handler:  handler,
		title:    NewNode("div", "execution-title"),
		button:   NewNode("button", "execution-button"),
		caption:  NewNode("span", "title-caption"),
		body:     NewNode("div", "execution-body"),
		status:   NewNode("span", "execution-status"),
		progress: NewNode("span", "execution-progress"),
	}

	b.state = NewProperty(ExecutionState{}, func(old, next ExecutionState) {
		b.button.RemoveClass("execution-state-" + old.Name)
		b.button.AddClass("execution-state-" + next.Name)
		b.button.SetText(next.Caption)
		b.button.ToggleClass("execution-busy", next.Action == ActionNone)
	})
	b.statusText = NewProperty("", func(_, next string) {
		b.status.SetText(next)
	})
	b.progressRatio = NewProperty(0.0, func(_, next float64) {
		pct := int(math.Round(next * 100))
		b.progress.SetAttr("value", strconv.Itoa(pct))
		b.progress.SetText(fmt.Sprintf("%d%%", pct))
	})

	b.caption.SetText(name)
	b.caption.OnClick(b.ToggleExpand)
	b.button.OnClick(b.Click)
	b.title.Append(b.button).Append(b.caption)

	desc := NewNode("div", "execution-description")
	desc.SetText(description)
	b.body.Append(desc).Append(b.status).Append(b.progress)

	b.AddChild(b.title, 0, false)
	b.AddChild(b.body, 1, true)

	b.state.Set(ExecutionPending)
	b.progressRatio.Set(0)
	return b
}

// State returns the current state descriptor
func (b *ExecutionBlock) State() ExecutionState { return b.state.Get() }

// SetState moves the block to state. Setting the current state again only
// reapplies its classes.
func (b *ExecutionBlock) SetState(s ExecutionState) bool { return b.state.Set(s) }

// Status returns the free-text status line
func (b *ExecutionBlock) Status() string { return b.statusText.Get() }

// SetStatus replaces the status line
func (b *ExecutionBlock) SetStatus(s string) { b.statusText.Set(s) }

// ProgressRatio returns the progress in [0, 1]
func (b *ExecutionBlock) ProgressRatio() float64 { return b.progressRatio.Get() }

// SetProgressRatio stores r clamped to [0, 1]; NaN is treated as 0.
func (b *ExecutionBlock) SetProgressRatio(r float64) {
	b.progressRatio.Set(ClampRatio(r))
}

// Progress returns the node showing the percentage
func (b *ExecutionBlock) Progress() *Node { return b.progress }

// Button returns the start/stop button node
func (b *ExecutionBlock) Button() *Node { return b.button }

// Body returns the collapsible body node. Owners may append input rows here.
func (b *ExecutionBlock) Body() *Node { return b.body }

// Click invokes the handler named by the current state. Busy states ignore it.
func (b *ExecutionBlock) Click() {
	action := b.State().Action
	if action == ActionNone {
		return
	}
	call("execution-block", action, b.handler.lookup(action))
}

// ClampRatio limits r to [0, 1]
func ClampRatio(r float64) float64 {
	switch {
	case math.IsNaN(r), r < 0:
		return 0
	case r > 1:
		return 1
	}
	return r
}
