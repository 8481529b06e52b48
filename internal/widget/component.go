package widget

import "github.com/muurk/bttest/internal/logging"

// Component is anything with a visual root that can be torn down.
// Destroy must release owned children and detach the root; calling it twice
// is a no-op.
type Component interface {
	Node() *Node
	Destroy()
}

// Action names a handler slot on a widget's handler struct
type Action string

const (
	ActionTurnOn        Action = "onTurnOn"
	ActionTurnOff       Action = "onTurnOff"
	ActionCancelTurnOn  Action = "onCancelTurnOn"
	ActionCancelTurnOff Action = "onCancelTurnOff"
	ActionStart         Action = "onStart"
	ActionStop          Action = "onStop"
	ActionPlay          Action = "onPlay"
	ActionClose         Action = "onClose"
	ActionNone          Action = ""
)

// call invokes fn when the handler slot is filled and logs otherwise.
func call(component string, action Action, fn func()) {
	if fn == nil {
		logging.LogUnimplemented(component, string(action))
		return
	}
	fn()
}
