package main

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/shelf/internal/shared"
	"github.com/desertthunder/shelf/internal/ui"
	"github.com/urfave/cli/v3"
)

// TUI launches the interactive terminal UI at the root route.
func (r *Runner) TUI(ctx context.Context, cmd *cli.Command) error {
	if r.auth == nil || r.client == nil {
		return fmt.Errorf("%w: identity provider not configured", shared.ErrServiceUnavailable)
	}

	// Redirect logs to file to avoid interfering with TUI rendering
	fileLogger, err := shared.NewFileLogger(r.config.Log.TUIFile)
	if err != nil {
		return fmt.Errorf("failed to create file logger: %w", err)
	}
	shared.SetLogLevel(fileLogger, shared.ParseLogLevel(r.config.Log.Level))
	r.SetLogger(fileLogger)

	model := ui.NewModel(ctx, r.auth, r.client, fileLogger)
	defer model.Close()

	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("error running TUI: %w", err)
	}

	return nil
}
