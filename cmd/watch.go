package main

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/urfave/cli/v3"
	"github.com/zenithdesk/chord/internal/shared"
	"github.com/zenithdesk/chord/internal/ui"
)

// Watch launches the interactive now-playing view, polling playback state on a
// fixed interval.
func (r *Runner) Watch(ctx context.Context, cmd *cli.Command) error {
	if err := r.open(cmd.String("config")); err != nil {
		return err
	}

	// Redirect logs to a file so they don't interfere with TUI rendering
	fileLogger, err := shared.NewFileLogger("./tmp/chord-watch.log")
	if err != nil {
		return fmt.Errorf("failed to create file logger: %w", err)
	}
	r.SetLogger(fileLogger)

	model := ui.NewModel(ctx, r.player)
	p := tea.NewProgram(model)

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("error running watch view: %w", err)
	}

	return nil
}
