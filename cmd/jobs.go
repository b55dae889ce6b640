package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/dustin/go-humanize"
	"github.com/hbarnett99/so-you-made-a-mix/internal/formatter"
	"github.com/hbarnett99/so-you-made-a-mix/internal/models"
	"github.com/hbarnett99/so-you-made-a-mix/internal/services"
	"github.com/hbarnett99/so-you-made-a-mix/internal/shared"
	"github.com/hbarnett99/so-you-made-a-mix/internal/ui"
	"github.com/urfave/cli/v3"
)

// Status prints a job as a table or JSON.
func (r *Runner) Status(ctx context.Context, cmd *cli.Command) error {
	jobID := cmd.StringArg("job-id")
	if jobID == "" {
		return fmt.Errorf("%w: job-id", shared.ErrMissingArgument)
	}

	job, err := r.apiClient(cmd).GetJob(ctx, jobID)
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(job, true)
	}
	return r.writePlain("%s\n", formatter.JobTable(job))
}

// Watch follows a job until it reaches a terminal status.
func (r *Runner) Watch(ctx context.Context, cmd *cli.Command) error {
	jobID := cmd.StringArg("job-id")
	if jobID == "" {
		return fmt.Errorf("%w: job-id", shared.ErrMissingArgument)
	}
	return r.watch(ctx, r.apiClient(cmd), jobID, cmd.Duration("interval"))
}

func (r *Runner) watch(ctx context.Context, api *services.APIService, jobID string, interval time.Duration) error {
	if !formatter.ShouldColorize(r.output) {
		return fmt.Errorf("%w: watch needs a terminal, use status instead", shared.ErrInvalidArgument)
	}

	model := ui.NewWatchModel(ctx, api, jobID, interval)
	if _, err := tea.NewProgram(model, tea.WithContext(ctx), tea.WithOutput(r.output)).Run(); err != nil {
		return fmt.Errorf("error running TUI: %w", err)
	}

	if job := model.Job(); job != nil && job.Status == models.JobFailed {
		return fmt.Errorf("job %s failed: %s", jobID, job.Error)
	}
	return nil
}

// DownloadStart starts an archive job for a playlist.
func (r *Runner) DownloadStart(ctx context.Context, cmd *cli.Command) error {
	playlistID := cmd.StringArg("playlist-id")
	if playlistID == "" {
		return fmt.Errorf("%w: playlist-id", shared.ErrMissingArgument)
	}

	api := r.apiClient(cmd)
	resp, err := api.StartDownload(ctx, playlistID)
	if err != nil {
		return err
	}

	r.logger.Info("download job started", "job", resp.JobID, "tracks", resp.TotalTracks)
	if err := r.writePlain("✓ %s: %s (%d tracks)\n", resp.Message, resp.JobID, resp.TotalTracks); err != nil {
		return err
	}

	if cmd.Bool("watch") {
		return r.watch(ctx, api, resp.JobID, ui.DefaultPollInterval)
	}
	return nil
}

// DownloadCancel cancels a running job.
func (r *Runner) DownloadCancel(ctx context.Context, cmd *cli.Command) error {
	jobID := cmd.StringArg("job-id")
	if jobID == "" {
		return fmt.Errorf("%w: job-id", shared.ErrMissingArgument)
	}

	if err := r.apiClient(cmd).CancelJob(ctx, jobID); err != nil {
		return err
	}
	return r.writePlain("✓ Job %s cancelled\n", jobID)
}

// DownloadFetch saves a completed job's archive. The server serves each archive once.
func (r *Runner) DownloadFetch(ctx context.Context, cmd *cli.Command) error {
	jobID := cmd.StringArg("job-id")
	if jobID == "" {
		return fmt.Errorf("%w: job-id", shared.ErrMissingArgument)
	}

	output := cmd.String("output")
	dir := "."
	if output != "" {
		dir = filepath.Dir(output)
	}

	tmp, err := os.CreateTemp(dir, ".fetch-*.zip")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	filename, size, err := r.apiClient(cmd).DownloadArchive(ctx, jobID, tmp)
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return err
	}

	dest := output
	if dest == "" {
		dest = filepath.Base(filename)
	}
	if err := os.Rename(tmp.Name(), dest); err != nil {
		return fmt.Errorf("failed to save archive: %w", err)
	}

	r.logger.Info("archive saved", "path", dest, "size", humanize.Bytes(uint64(size)))
	return r.writePlain("✓ Saved %s (%s)\n", dest, humanize.Bytes(uint64(size)))
}
