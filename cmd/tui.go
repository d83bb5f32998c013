package main

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/maestro/internal/shared"
	"github.com/desertthunder/maestro/internal/ui"
	"github.com/urfave/cli/v3"
)

// Console launches the interactive terminal console for one user.
func (r *Runner) Console(ctx context.Context, cmd *cli.Command) error {
	// Redirect logs to file to avoid interfering with console rendering
	fileLogger, f, err := shared.NewFileLogger(cmd.String("log-file"))
	if err != nil {
		return fmt.Errorf("failed to create file logger: %w", err)
	}
	defer f.Close()
	if r.app == nil {
		r.SetLogger(fileLogger)
	}

	a, err := r.open()
	if err != nil {
		return err
	}

	model := ui.NewModel(ctx, cmd.String("user"), a.player)
	p := tea.NewProgram(model, tea.WithContext(ctx))

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("error running console: %w", err)
	}

	return nil
}
