// Package widget is a headless component framework for the harness UI.
//
// Components own a tree of Nodes. A Node carries classes, text, visibility
// and local listeners; renderers such as the TUI walk the tree and never
// mutate it, while components mutate it in response to backend events.
//
// Stateful widgets (SwitchButton, ExecutionBlock) never transition on their
// own. A click only invokes the handler named by the current state, and the
// owner sets the next state once the requested operation settles.
//
// Containers destroy what they own before removing their own node:
//
//	tab := widget.NewTab("hci0", widget.TabHandler{OnClose: closeTab})
//	tab.AddBlock(enableBlock, 0)
//	tabs.AddTab(tab)
//	...
//	tabs.RemoveTab(tab)
//	tab.Destroy()
//
// Nothing in this package is safe for concurrent use. All calls are expected
// to come from the harness event loop.
package widget
