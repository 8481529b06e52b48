package widget

import "strconv"

// SwitchState is an immutable descriptor of one switch state
type SwitchState struct {
	Name     string
	Class    string
	Action   Action
	Position int
}

// Switch states. Clicking invokes the handler named by the current state;
// the owner decides what the next state is.
var (
	SwitchOff        = SwitchState{Name: "off", Class: "switch-button-state-off", Action: ActionTurnOn, Position: 0}
	SwitchTurningOn  = SwitchState{Name: "turning-on", Class: "switch-button-state-turning-on", Action: ActionCancelTurnOn, Position: 1}
	SwitchTurningOff = SwitchState{Name: "turning-off", Class: "switch-button-state-turning-off", Action: ActionCancelTurnOff, Position: 1}
	SwitchOn         = SwitchState{Name: "on", Class: "switch-button-state-on", Action: ActionTurnOff, Position: 2}
)

// SwitchHandler holds the optional callbacks of a SwitchButton.
// A nil field makes the matching click a logged no-op.
type SwitchHandler struct {
	OnTurnOn        func()
	OnTurnOff       func()
	OnCancelTurnOn  func()
	OnCancelTurnOff func()
}

func (h SwitchHandler) lookup(a Action) func() {
	switch a {
	case ActionTurnOn:
		return h.OnTurnOn
	case ActionTurnOff:
		return h.OnTurnOff
	case ActionCancelTurnOn:
		return h.OnCancelTurnOn
	case ActionCancelTurnOff:
		return h.OnCancelTurnOff
	}
	return nil
}

// SwitchButton maps (current state, click) to one handler invocation.
// It never changes its own state.
type SwitchButton struct {
	node    *Node
	handler SwitchHandler
	state   *Property[SwitchState]
	enable  *Property[bool]
}

// NewSwitchButton creates a switch in the given state
func NewSwitchButton(handler SwitchHandler, initial SwitchState, enable bool) *SwitchButton {
	s := &SwitchButton{
		node:    NewNode("button", "switch-button"),
		handler: handler,
	}
	s.state = NewProperty(SwitchState{}, func(old, next SwitchState) {
		s.node.RemoveClass(old.Class)
		s.node.AddClass(next.Class)
		s.node.SetAttr("value", strconv.Itoa(next.Position))
		s.node.SetText(next.Name)
	})
	s.enable = NewProperty(false, func(_, next bool) {
		s.node.ToggleClass("switch-button-disabled", !next)
	})
	s.state.Set(initial)
	s.enable.Set(enable)
	s.node.OnClick(s.Click)
	return s
}

func (s *SwitchButton) Node() *Node { return s.node }

// State returns the current state descriptor
func (s *SwitchButton) State() SwitchState { return s.state.Get() }

// SetState moves the switch to state and reports whether it changed
func (s *SwitchButton) SetState(state SwitchState) bool { return s.state.Set(state) }

// Enabled reports whether clicks are honoured
func (s *SwitchButton) Enabled() bool { return s.enable.Get() }

// SetEnabled enables or disables the switch
func (s *SwitchButton) SetEnabled(enable bool) { s.enable.Set(enable) }

// Click invokes the handler named by the current state. Disabled switches
// ignore clicks entirely.
func (s *SwitchButton) Click() {
	if !s.Enabled() {
		return
	}
	action := s.State().Action
	call("switch-button", action, s.handler.lookup(action))
}

// Destroy removes the switch's node
func (s *SwitchButton) Destroy() { s.node.Remove() }

// SwitchButtonBlock is a Block with a switch and a name in its title and a
// collapsible description body.
type SwitchButtonBlock struct {
	*Block
	button      *SwitchButton
	title       *Node
	caption     *Node
	description *Node
}

// NewSwitchButtonBlock creates a collapsed switch block
func NewSwitchButtonBlock(handler SwitchHandler, name, description string, initial SwitchState, enable bool) *SwitchButtonBlock {
	b := &SwitchButtonBlock{
		Block:       NewBlock(false),
		button:      NewSwitchButton(handler, initial, enable),
		title:       NewNode("div", "switch-button-title"),
		caption:     NewNode("span", "title-caption"),
		description: NewNode("div", "switch-button-body"),
	}
	b.caption.SetText(name)
	b.caption.OnClick(b.ToggleExpand)
	b.description.SetText(description)
	b.title.Append(b.button.Node()).Append(b.caption)

	b.AddChild(b.title, 0, false)
	b.AddChild(b.description, 1, true)
	b.Own(b.button)
	return b
}

// Button returns the switch
func (b *SwitchButtonBlock) Button() *SwitchButton { return b.button }

// Name returns the caption
func (b *SwitchButtonBlock) Name() string { return b.caption.Text() }

// SetName replaces the caption
func (b *SwitchButtonBlock) SetName(name string) { b.caption.SetText(name) }

// Description returns the description text
func (b *SwitchButtonBlock) Description() string { return b.description.Text() }

// SetDescription replaces the description text
func (b *SwitchButtonBlock) SetDescription(desc string) { b.description.SetText(desc) }

// State returns the switch state
func (b *SwitchButtonBlock) State() SwitchState { return b.button.State() }

// SetState forwards to the switch
func (b *SwitchButtonBlock) SetState(s SwitchState) bool { return b.button.SetState(s) }

// Enabled reports whether the switch accepts clicks
func (b *SwitchButtonBlock) Enabled() bool { return b.button.Enabled() }

// SetEnabled toggles whether the switch accepts clicks
func (b *SwitchButtonBlock) SetEnabled(enable bool) { b.button.SetEnabled(enable) }
