package tui

import (
	"os"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"

	"github.com/muurk/bttest/internal/version"
)

// AppName is shown in the header
const AppName = "BLUETOOTH TEST HARNESS"

// Layout constants
const (
	MinTerminalWidth = 60  // Minimum supported terminal width
	MaxContentWidth  = 120 // Maximum content width before capping
	DefaultHeight    = 24
	indentWidth      = 2
)

// Color palette
var (
	PrimaryColor = lipgloss.Color("#7D56F4") // Purple - headers, borders, focus
	SuccessColor = lipgloss.Color("#43BF6D") // Green - on, connected
	ErrorColor   = lipgloss.Color("#FF5555") // Red - rejected input
	WarningColor = lipgloss.Color("#FFA500") // Orange - transitions, busy
	MutedColor   = lipgloss.Color("#626262") // Gray - disabled, secondary info
	TextColor    = lipgloss.Color("#FFFFFF") // White - main content
)

var (
	// HeaderTitleStyle is for the application title
	HeaderTitleStyle = lipgloss.NewStyle().
				Foreground(TextColor).
				Bold(true).
				PaddingLeft(1)

	// HeaderMetaStyle is for the version and mode next to the title
	HeaderMetaStyle = lipgloss.NewStyle().
			Foreground(MutedColor).
			PaddingLeft(2)

	// ButtonStyle is for enabled buttons
	ButtonStyle = lipgloss.NewStyle().
			Foreground(TextColor)

	// FocusedStyle is for the node under the cursor
	FocusedStyle = lipgloss.NewStyle().
			Foreground(PrimaryColor).
			Bold(true).
			Reverse(true)

	// DisabledStyle is for disabled nodes
	DisabledStyle = lipgloss.NewStyle().
			Foreground(MutedColor).
			Strikethrough(true)

	// OnStyle is for switches that are on and connected devices
	OnStyle = lipgloss.NewStyle().
		Foreground(SuccessColor).
		Bold(true)

	// TransitionStyle is for switches turning on or off
	TransitionStyle = lipgloss.NewStyle().
			Foreground(WarningColor)

	// MutedStyle is for secondary text
	MutedStyle = lipgloss.NewStyle().
			Foreground(MutedColor)

	// CaptionStyle is for block and tab captions
	CaptionStyle = lipgloss.NewStyle().
			Foreground(TextColor).
			Bold(true)

	// ActiveTabStyle is for the selected tab title
	ActiveTabStyle = lipgloss.NewStyle().
			Foreground(PrimaryColor).
			Bold(true).
			Underline(true)

	// FieldStyle is for input values
	FieldStyle = lipgloss.NewStyle().
			Foreground(WarningColor)

	// StatusErrorStyle is for the status line after a rejected action
	StatusErrorStyle = lipgloss.NewStyle().
				Foreground(ErrorColor).
				PaddingLeft(1)

	// StatusStyle is for the status line
	StatusStyle = lipgloss.NewStyle().
			Foreground(MutedColor).
			PaddingLeft(1)
)

// classStyles maps node classes to text styles. The first matching class
// wins.
var classStyles = []struct {
	class string
	style lipgloss.Style
}{
	{"switch-button-state-on", OnStyle},
	{"switch-button-state-turning-on", TransitionStyle},
	{"switch-button-state-turning-off", TransitionStyle},
	{"execution-busy", TransitionStyle},
	{"title-caption", CaptionStyle},
	{"tab-link", CaptionStyle},
	{"execution-description", MutedStyle},
	{"switch-button-body", MutedStyle},
	{"play-button-body", MutedStyle},
	{"input-label", MutedStyle},
}

// AppVersion returns the application version
func AppVersion() string {
	return version.Version
}

// GetTerminalSize returns the current terminal width and height
func GetTerminalSize() (int, int) {
	width, height, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil {
		return MinTerminalWidth, DefaultHeight
	}
	return clampWidth(width), height
}

// IsTerminal reports whether stdout is a terminal
func IsTerminal() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}

func clampWidth(width int) int {
	if width < MinTerminalWidth {
		return MinTerminalWidth
	}
	if width > MaxContentWidth {
		return MaxContentWidth
	}
	return width
}

// ContentBoxStyle returns the border around the rendered widget tree
func ContentBoxStyle(width int) lipgloss.Style {
	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(PrimaryColor).
		Width(width-2).
		Padding(0, 1)
}
