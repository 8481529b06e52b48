package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"

	"github.com/muurk/bttest/internal/app"
	"github.com/muurk/bttest/internal/async"
	"github.com/muurk/bttest/internal/logging"
	"github.com/muurk/bttest/internal/widget"
)

// wakeMsg reports that the event loop has queued work
type wakeMsg struct{}

// Options configures the model
type Options struct {
	// OnRefresh runs on the UI goroutine after every batch of loop work and
	// key press, once the widget tree is up to date.
	OnRefresh func()
}

// Model is the bubbletea model of the harness. It owns the event loop: loop
// tasks only run inside Update, so widgets are only touched from the UI
// goroutine.
type Model struct {
	loop *async.Loop
	app  *app.App
	opts Options

	focus   []*widget.Node
	cursor  int
	focused *widget.Node

	editing bool
	input   textinput.Model
	status  string
	failed  bool

	spinner  spinner.Model
	help     help.Model
	keys     keyMap
	editKeys editKeyMap

	Width  int
	Height int
}

// NewModel creates a model over a started App
func NewModel(loop *async.Loop, a *app.App, opts Options) Model {
	ti := textinput.New()
	ti.Prompt = "› "
	ti.CharLimit = 64

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(WarningColor)

	width, height := GetTerminalSize()
	m := Model{
		loop:     loop,
		app:      a,
		opts:     opts,
		input:    ti,
		spinner:  sp,
		help:     help.New(),
		keys:     defaultKeyMap(),
		editKeys: defaultEditKeyMap(),
		Width:    width,
		Height:   height,
	}
	m.refresh()
	return m
}

// Init starts the spinner and the loop pump
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, waitForWake(m.loop))
}

// waitForWake blocks until the loop has work, then reports it to Update
func waitForWake(loop *async.Loop) tea.Cmd {
	return func() tea.Msg {
		<-loop.Wake()
		return wakeMsg{}
	}
}

// Update handles key presses and loop wake-ups
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.Width = clampWidth(msg.Width)
		m.Height = msg.Height
		m.help.Width = m.Width
		return m, nil

	case wakeMsg:
		m.refresh()
		return m, waitForWake(m.loop)

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		if m.editing {
			return m.updateEditing(msg)
		}
		return m.updateBrowsing(msg)
	}
	return m, nil
}

func (m Model) updateBrowsing(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll
	case key.Matches(msg, m.keys.Next):
		m.move(1)
	case key.Matches(msg, m.keys.Prev):
		m.move(-1)
	case key.Matches(msg, m.keys.Mode1):
		m.switchMode(0)
	case key.Matches(msg, m.keys.Mode2):
		m.switchMode(1)
	case key.Matches(msg, m.keys.Mode3):
		m.switchMode(2)
	case key.Matches(msg, m.keys.Activate):
		if cmd := m.activate(); cmd != nil {
			m.refresh()
			return m, cmd
		}
	}
	m.refresh()
	return m, nil
}

func (m Model) updateEditing(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.editKeys.Cancel):
		m.stopEditing()
		m.status, m.failed = "", false
	case key.Matches(msg, m.editKeys.Commit):
		raw := m.input.Value()
		field := m.focused
		m.stopEditing()
		if field != nil {
			field.Fire(widget.EventChange, raw)
			if field.Text() != raw {
				m.status, m.failed = fmt.Sprintf("rejected %q", raw), true
			} else {
				m.status, m.failed = "", false
			}
		}
	default:
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd
	}
	m.refresh()
	return m, nil
}

// activate presses the focused button, cycles a select field, or starts
// editing a text field
func (m *Model) activate() tea.Cmd {
	n := m.focused
	if n == nil {
		return nil
	}
	if n.Kind() != "input" {
		n.Click()
		return nil
	}
	if n.Attr("type") == "select" {
		if n.Attr("options") == "" {
			return nil
		}
		opts := strings.Split(n.Attr("options"), "|")
		next := 0
		for i, o := range opts {
			if o == n.Text() {
				next = (i + 1) % len(opts)
			}
		}
		n.Fire(widget.EventChange, opts[next])
		return nil
	}
	m.editing = true
	m.input.SetValue(n.Text())
	m.input.CursorEnd()
	return m.input.Focus()
}

func (m *Model) stopEditing() {
	m.editing = false
	m.input.Blur()
	m.input.Reset()
}

func (m *Model) switchMode(i int) {
	modes := m.app.Modes()
	if i >= len(modes) {
		return
	}
	if err := m.app.SwitchMode(modes[i]); err != nil {
		logging.Warn("Mode switch failed", zap.String("mode", modes[i]), zap.Error(err))
	}
	m.cursor = 0
	m.focused = nil
}

func (m *Model) move(delta int) {
	if len(m.focus) == 0 {
		return
	}
	m.cursor = (m.cursor + delta + len(m.focus)) % len(m.focus)
	m.focused = m.focus[m.cursor]
}

// refresh runs queued loop work and recomputes the focus list, keeping the
// cursor on the same node when it is still focusable
func (m *Model) refresh() {
	m.loop.Drain()
	if m.opts.OnRefresh != nil {
		m.opts.OnRefresh()
	}

	m.focus = focusable(m.app.Node())
	for i, n := range m.focus {
		if n == m.focused {
			m.cursor = i
			return
		}
	}
	if len(m.focus) == 0 {
		m.cursor, m.focused = 0, nil
		return
	}
	m.cursor = min(m.cursor, len(m.focus)-1)
	m.focused = m.focus[m.cursor]
}

// Focused returns the node under the cursor
func (m Model) Focused() *widget.Node { return m.focused }

// Editing reports whether an input is being edited
func (m Model) Editing() bool { return m.editing }

// Status returns the status line
func (m Model) Status() string { return m.status }

// View renders the header, the widget tree and the help bar
func (m Model) View() string {
	var b strings.Builder

	mode := m.app.Mode()
	b.WriteString(HeaderTitleStyle.Render(AppName))
	b.WriteString(HeaderMetaStyle.Render(fmt.Sprintf("%s · %s", AppVersion(), app.Title(mode))))
	b.WriteString("\n")

	r := renderer{focused: m.focused, busy: m.spinner.View()}
	if m.editing {
		r.editing = m.input.View()
	}
	b.WriteString(ContentBoxStyle(m.Width).Render(r.render(m.app.Node())))
	b.WriteString("\n")

	if m.status != "" {
		if m.failed {
			b.WriteString(StatusErrorStyle.Render(m.status))
		} else {
			b.WriteString(StatusStyle.Render(m.status))
		}
		b.WriteString("\n")
	}

	if m.editing {
		b.WriteString(m.help.View(m.editKeys))
	} else {
		b.WriteString(m.help.View(m.keys))
	}
	return b.String()
}
