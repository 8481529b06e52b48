package tui

import "github.com/charmbracelet/bubbles/key"

// keyMap defines the harness key bindings
type keyMap struct {
	Next     key.Binding
	Prev     key.Binding
	Activate key.Binding
	Mode1    key.Binding
	Mode2    key.Binding
	Mode3    key.Binding
	Help     key.Binding
	Quit     key.Binding
}

// ShortHelp returns keybindings to be shown in the mini help view
func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Next, k.Activate, k.Mode1, k.Help, k.Quit}
}

// FullHelp returns keybindings for the expanded help view
func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Next, k.Prev, k.Activate},
		{k.Mode1, k.Mode2, k.Mode3},
		{k.Help, k.Quit},
	}
}

func defaultKeyMap() keyMap {
	return keyMap{
		Next: key.NewBinding(
			key.WithKeys("tab", "down", "j"),
			key.WithHelp("tab/↓", "next"),
		),
		Prev: key.NewBinding(
			key.WithKeys("shift+tab", "up", "k"),
			key.WithHelp("shift+tab/↑", "previous"),
		),
		Activate: key.NewBinding(
			key.WithKeys("enter", " "),
			key.WithHelp("enter", "press/edit"),
		),
		Mode1: key.NewBinding(
			key.WithKeys("1"),
			key.WithHelp("1/2/3", "switch mode"),
		),
		Mode2: key.NewBinding(
			key.WithKeys("2"),
			key.WithHelp("2", "second mode"),
		),
		Mode3: key.NewBinding(
			key.WithKeys("3"),
			key.WithHelp("3", "third mode"),
		),
		Help: key.NewBinding(
			key.WithKeys("?"),
			key.WithHelp("?", "help"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
	}
}

// editKeyMap defines the bindings while an input is being edited
type editKeyMap struct {
	Commit key.Binding
	Cancel key.Binding
}

// ShortHelp returns keybindings to be shown in the mini help view
func (k editKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Commit, k.Cancel}
}

// FullHelp returns keybindings for the expanded help view
func (k editKeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{{k.Commit, k.Cancel}}
}

func defaultEditKeyMap() editKeyMap {
	return editKeyMap{
		Commit: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "apply"),
		),
		Cancel: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("esc", "cancel"),
		),
	}
}
