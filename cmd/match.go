package main

import (
	"context"
	"fmt"
	"io"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/hbarnett99/so-you-made-a-mix/internal/formatter"
	"github.com/hbarnett99/so-you-made-a-mix/internal/models"
	"github.com/hbarnett99/so-you-made-a-mix/internal/shared"
	"github.com/hbarnett99/so-you-made-a-mix/internal/tasks"
	"github.com/hbarnett99/so-you-made-a-mix/internal/ui"
	"github.com/urfave/cli/v3"
)

// Match resolves a playlist's tracks against the target catalog and prints or writes the report.
//
// On a terminal with the table format the interactive view is used; otherwise progress goes to the log.
func (r *Runner) Match(ctx context.Context, cmd *cli.Command) error {
	playlistID := cmd.StringArg("playlist-id")
	if playlistID == "" {
		return fmt.Errorf("%w: playlist-id", shared.ErrMissingArgument)
	}

	format, err := formatter.ParseFormat(cmd.String("format"))
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrInvalidArgument, err)
	}

	var playlist *models.EnhancedPlaylist
	interactive := format == formatter.FormatTable && !cmd.Bool("no-tui") && formatter.ShouldColorize(r.output)

	switch {
	case cmd.Bool("remote"):
		r.logger.Info("fetching matches from server", "playlist", playlistID)
		if playlist, err = r.apiClient(cmd).GetPlaylist(ctx, playlistID); err != nil {
			return err
		}
	case interactive:
		return r.matchInteractive(ctx, playlistID)
	default:
		if playlist, err = r.matchLocal(ctx, playlistID); err != nil {
			return err
		}
	}

	return r.writeMatchReport(playlist, format, cmd.String("output"))
}

func (r *Runner) matchLocal(ctx context.Context, playlistID string) (*models.EnhancedPlaylist, error) {
	enhancer, db, err := r.buildEnhancer(r.logger)
	if err != nil {
		return nil, err
	}
	if db != nil {
		defer db.Close()
	}

	progress := make(chan tasks.ProgressUpdate, 10)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for update := range progress {
			r.logger.Info(update.Message, "phase", update.Phase)
		}
	}()

	playlist, err := enhancer.Enhance(ctx, playlistID, progress)
	close(progress)
	<-done
	return playlist, err
}

// matchInteractive runs the match view with logging silenced so it does not tear the frame.
func (r *Runner) matchInteractive(ctx context.Context, playlistID string) error {
	enhancer, db, err := r.buildEnhancer(shared.NewLogger(io.Discard))
	if err != nil {
		return err
	}
	if db != nil {
		defer db.Close()
	}

	model := ui.NewMatchModel(ctx, enhancer, playlistID)
	if _, err := tea.NewProgram(model, tea.WithContext(ctx), tea.WithOutput(r.output)).Run(); err != nil {
		return fmt.Errorf("error running TUI: %w", err)
	}
	return model.Err()
}

func (r *Runner) writeMatchReport(p *models.EnhancedPlaylist, format formatter.Format, output string) error {
	switch format {
	case formatter.FormatJSON:
		return r.writeJSON(p, true)
	case formatter.FormatCSV, formatter.FormatMarkdown:
		path, err := formatter.WriteMatchReport(p, format, output)
		if err != nil {
			return err
		}
		r.logger.Info("report written", "path", path)
		return r.writePlain("✓ Report saved to %s\n", path)
	}

	colorize := formatter.ShouldColorize(r.output)
	if err := r.writePlain("%s\n%s\n", p.Name, formatter.MatchTable(p, colorize)); err != nil {
		return err
	}
	return r.writePlain("%s\n", formatter.SummaryTable(p.Stats))
}
