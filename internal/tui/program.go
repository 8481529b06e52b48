package tui

import (
	"context"
	"errors"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/muurk/bttest/internal/app"
	"github.com/muurk/bttest/internal/async"
)

// ErrNotTerminal is returned by Run when stdout is not a terminal
var ErrNotTerminal = errors.New("stdout is not a terminal")

// Run shows the harness until the user quits or ctx is cancelled
func Run(ctx context.Context, loop *async.Loop, a *app.App, opts Options) error {
	if !IsTerminal() {
		return ErrNotTerminal
	}
	p := tea.NewProgram(NewModel(loop, a, opts),
		tea.WithAltScreen(),
		tea.WithContext(ctx),
	)
	if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return fmt.Errorf("terminal UI failed: %w", err)
	}
	return nil
}
