package app

import (
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/muurk/bttest/internal/logging"
	"github.com/muurk/bttest/internal/pubsub"
	"github.com/muurk/bttest/internal/widget"
)

// Harness modes. The mode id is also the id of its panel.
const (
	ModeClassic   = "classic-api"
	ModeBleServer = "ble-server-api"
	ModeBleClient = "ble-client-api"
)

// Mode switch events. The payload is a ModeEvent.
const (
	EventBeforeSwitchingMode = "before-switching-mode"
	EventAfterSwitchingMode  = "after-switching-mode"
)

const buttonSuffix = "-button"

// ErrUnknownMode is returned by SwitchMode for a mode without a panel
var ErrUnknownMode = errors.New("unknown mode")

// ModeEvent is the payload of the mode switch events
type ModeEvent struct {
	Mode string
}

// Modes lists the harness modes in display order
func Modes() []string {
	return []string{ModeClassic, ModeBleServer, ModeBleClient}
}

// App owns the mode panels and the control panel of mode buttons. Exactly
// one panel is visible at a time, and the button of the current mode is
// disabled.
type App struct {
	node         *widget.Node
	controlPanel *widget.Node
	modes        []string
	panels       map[string]*widget.Node
	buttons      map[string]*widget.Node
	mode         string
	started      bool

	events pubsub.Emitter
}

// New creates an App with one panel and one button per mode
func New(modes ...string) *App {
	if len(modes) == 0 {
		modes = Modes()
	}
	a := &App{
		node:         widget.NewNode("body", "app"),
		controlPanel: widget.NewNode("section", "control-panel"),
		modes:        append([]string(nil), modes...),
		panels:       make(map[string]*widget.Node),
		buttons:      make(map[string]*widget.Node),
	}
	a.controlPanel.SetID("control-panel")

	for _, mode := range a.modes {
		panel := widget.NewNode("section", "panel")
		panel.SetID(mode)
		panel.SetHidden(true)
		a.panels[mode] = panel
		a.node.Append(panel)

		button := widget.NewNode("button", "mode-button")
		button.SetID(mode + buttonSuffix)
		button.SetText(Title(mode))
		a.buttons[mode] = button
		a.controlPanel.Append(button)
	}
	a.node.Append(a.controlPanel)
	return a
}

// Start wires the mode buttons and switches to initial
func (a *App) Start(initial string) error {
	if !a.started {
		a.started = true
		for _, button := range a.buttons {
			button.OnClick(func() { a.handleClick(button) })
		}
	}
	return a.SwitchMode(initial)
}

func (a *App) handleClick(button *widget.Node) {
	if !button.HasClass("mode-button") {
		return
	}
	mode := strings.TrimSuffix(button.ID(), buttonSuffix)
	if err := a.SwitchMode(mode); err != nil {
		logging.Warn("Mode button failed", zap.Error(err))
	}
}

// SwitchMode shows the panel of mode, hides the others, and disables the
// mode's button. Listeners are told before and after the switch.
func (a *App) SwitchMode(mode string) error {
	if _, ok := a.panels[mode]; !ok {
		return fmt.Errorf("%w: %q", ErrUnknownMode, mode)
	}
	prev := a.mode

	a.events.Fire(EventBeforeSwitchingMode, ModeEvent{Mode: mode})

	a.mode = mode
	a.node.SetAttr("data-mode", mode)
	for id, panel := range a.panels {
		panel.SetHidden(id != mode)
	}
	for id, button := range a.buttons {
		button.SetDisabled(id == mode)
	}
	logging.LogModeSwitch(prev, mode)

	a.events.Fire(EventAfterSwitchingMode, ModeEvent{Mode: mode})
	return nil
}

// Mode returns the current mode, or "" before the first switch
func (a *App) Mode() string { return a.mode }

// Modes returns the modes this App was built with
func (a *App) Modes() []string { return append([]string(nil), a.modes...) }

// Panel returns the panel node of mode, or nil
func (a *App) Panel(mode string) *widget.Node { return a.panels[mode] }

// Button returns the control panel button of mode, or nil
func (a *App) Button(mode string) *widget.Node { return a.buttons[mode] }

// Node returns the root node holding every panel and the control panel
func (a *App) Node() *widget.Node { return a.node }

// ControlPanel returns the node holding the mode buttons
func (a *App) ControlPanel() *widget.Node { return a.controlPanel }

// On registers fn for a mode switch event
func (a *App) On(event string, fn pubsub.Handler) pubsub.Subscription {
	return a.events.On(event, fn)
}

// Off removes a registration made with On
func (a *App) Off(event string, sub pubsub.Subscription) {
	a.events.Off(event, sub)
}

// Title returns the display name of a mode
func Title(mode string) string {
	switch mode {
	case ModeClassic:
		return "Classic"
	case ModeBleServer:
		return "BLE Server"
	case ModeBleClient:
		return "BLE Client"
	default:
		return mode
	}
}
