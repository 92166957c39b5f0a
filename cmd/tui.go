package main

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/stemx/internal/shared"
	"github.com/desertthunder/stemx/internal/ui"
	"github.com/urfave/cli/v3"
)

// TUI launches the interactive separator.
func (r *Runner) TUI(ctx context.Context, cmd *cli.Command) error {
	// Redirect logs to file to avoid interfering with TUI rendering
	fileLogger, err := shared.NewFileLogger(r.config.Log.File)
	if err != nil {
		return fmt.Errorf("failed to create file logger: %w", err)
	}
	shared.SetLogLevel(fileLogger, r.logger.GetLevel())
	r.SetLogger(fileLogger)

	tracker := r.newTracker(ctx, !cmd.Bool("no-channel"))
	defer tracker.Close()

	opts := ui.Options{
		DownloadDir: r.config.UI.DownloadDir,
		Player:      r.config.UI.Player,
		Limits:      r.config.Limits,
		Logger:      fileLogger,
	}
	if jobs, err := r.history(); err == nil {
		opts.History = jobs
	}

	model := ui.NewModel(ctx, tracker, r.separator, opts)
	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("error running TUI: %w", err)
	}

	return nil
}
