package widget

import "testing"

type switchCalls struct {
	turnOn, turnOff, cancelOn, cancelOff int
}

func (c *switchCalls) handler() SwitchHandler {
	return SwitchHandler{
		OnTurnOn:        func() { c.turnOn++ },
		OnTurnOff:       func() { c.turnOff++ },
		OnCancelTurnOn:  func() { c.cancelOn++ },
		OnCancelTurnOff: func() { c.cancelOff++ },
	}
}

func (c *switchCalls) total() int {
	return c.turnOn + c.turnOff + c.cancelOn + c.cancelOff
}

func TestSwitchButton_Click(t *testing.T) {
	tests := []struct {
		state SwitchState
		want  switchCalls
	}{
		{SwitchOff, switchCalls{turnOn: 1}},
		{SwitchTurningOn, switchCalls{cancelOn: 1}},
		{SwitchTurningOff, switchCalls{cancelOff: 1}},
		{SwitchOn, switchCalls{turnOff: 1}},
	}

	for _, tt := range tests {
		t.Run(tt.state.Name, func(t *testing.T) {
			var calls switchCalls
			s := NewSwitchButton(calls.handler(), tt.state, true)

			s.Click()

			if calls != tt.want {
				t.Errorf("calls = %+v, want %+v", calls, tt.want)
			}
			if s.State() != tt.state {
				t.Errorf("State() = %v, want %v (switch must not self-transition)", s.State().Name, tt.state.Name)
			}
		})
	}
}

func TestSwitchButton_ClickDisabled(t *testing.T) {
	for _, state := range []SwitchState{SwitchOff, SwitchTurningOn, SwitchTurningOff, SwitchOn} {
		t.Run(state.Name, func(t *testing.T) {
			var calls switchCalls
			s := NewSwitchButton(calls.handler(), state, false)

			s.Click()
			s.Node().Click()

			if calls.total() != 0 {
				t.Errorf("disabled switch invoked handlers: %+v", calls)
			}
		})
	}
}

func TestSwitchButton_NodeClick(t *testing.T) {
	var calls switchCalls
	s := NewSwitchButton(calls.handler(), SwitchOff, true)

	s.Node().Click()

	if calls.turnOn != 1 {
		t.Errorf("turnOn = %d, want 1", calls.turnOn)
	}
}

func TestSwitchButton_MissingHandler(t *testing.T) {
	s := NewSwitchButton(SwitchHandler{}, SwitchOn, true)

	s.Click()
}

func TestSwitchButton_StateClass(t *testing.T) {
	s := NewSwitchButton(SwitchHandler{}, SwitchOff, true)

	s.SetState(SwitchTurningOn)
	s.SetState(SwitchTurningOn)
	s.SetState(SwitchOn)

	n := s.Node()
	if !n.HasClass(SwitchOn.Class) {
		t.Errorf("classes = %v, want %s", n.Classes(), SwitchOn.Class)
	}
	for _, st := range []SwitchState{SwitchOff, SwitchTurningOn, SwitchTurningOff} {
		if n.HasClass(st.Class) {
			t.Errorf("stale class %s still present", st.Class)
		}
	}
	if got := n.Attr("value"); got != "2" {
		t.Errorf("value = %q, want %q", got, "2")
	}
}

func TestSwitchButton_SetStateReportsChange(t *testing.T) {
	s := NewSwitchButton(SwitchHandler{}, SwitchOff, true)

	if s.SetState(SwitchOff) {
		t.Error("SetState() with the same state should report no change")
	}
	if !s.SetState(SwitchOn) {
		t.Error("SetState() with a new state should report a change")
	}
}

func TestSwitchButtonBlock(t *testing.T) {
	var calls switchCalls
	b := NewSwitchButtonBlock(calls.handler(), "Enable", "Turns the adapter on", SwitchOff, true)

	if b.Name() != "Enable" {
		t.Errorf("Name() = %q, want %q", b.Name(), "Enable")
	}
	if b.IsExpanded() {
		t.Error("switch block should start collapsed")
	}

	b.Button().Click()
	if calls.turnOn != 1 {
		t.Errorf("turnOn = %d, want 1", calls.turnOn)
	}

	b.SetEnabled(false)
	b.Button().Click()
	if calls.turnOn != 1 {
		t.Errorf("turnOn after disable = %d, want 1", calls.turnOn)
	}
}
