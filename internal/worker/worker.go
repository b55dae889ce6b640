// Package worker downloads the matched tracks of a job, zips them into the staging directory and reports
// progress back to the API server.
//
// The server hands a job over with POST /download-playlist; from then on the worker drives the job's
// status through downloading, zipping and completed (or failed). A 409 on any progress report means the
// job was cancelled and the worker stops.
package worker

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/dustin/go-humanize"
	"github.com/hbarnett99/so-you-made-a-mix/internal/jobs"
	"github.com/hbarnett99/so-you-made-a-mix/internal/models"
	"github.com/hbarnett99/so-you-made-a-mix/internal/shared"
	"golang.org/x/time/rate"
)

const (
	DefaultTrackTimeout = 2 * time.Minute

	allTracksFailedMessage = "all tracks failed to download"
)

// JobAPI is the subset of the API server the worker talks to.
type JobAPI interface {
	GetJob(ctx context.Context, jobID string) (*models.DownloadJob, error)
	GetPlaylist(ctx context.Context, playlistID string) (*models.EnhancedPlaylist, error)
	ReportProgress(ctx context.Context, jobID string, update models.JobUpdate) error
}

// Worker runs archive jobs, one goroutine per job.
type Worker struct {
	api          JobAPI
	fetcher      Fetcher
	staging      string
	limiter      *rate.Limiter
	trackTimeout time.Duration
	logger       *log.Logger

	mu     sync.Mutex
	active map[string]context.CancelFunc
	wg     sync.WaitGroup
}

// Option configures a [Worker].
type Option func(*Worker)

// WithRateLimit caps track fetches per second. Zero or less disables the limit.
func WithRateLimit(perSecond float64) Option {
	return func(w *Worker) {
		if perSecond <= 0 {
			w.limiter = rate.NewLimiter(rate.Inf, 1)
			return
		}
		w.limiter = rate.NewLimiter(rate.Limit(perSecond), 1)
	}
}

// WithTrackTimeout bounds a single track fetch.
func WithTrackTimeout(d time.Duration) Option {
	return func(w *Worker) {
		if d > 0 {
			w.trackTimeout = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *log.Logger) Option {
	return func(w *Worker) { w.logger = l }
}

// New creates a worker that stages archives in staging.
func New(api JobAPI, fetcher Fetcher, staging string, opts ...Option) *Worker {
	w := &Worker{
		api:          api,
		fetcher:      fetcher,
		staging:      staging,
		limiter:      rate.NewLimiter(rate.Inf, 1),
		trackTimeout: DefaultTrackTimeout,
		logger:       log.Default(),
		active:       make(map[string]context.CancelFunc),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Accept starts jobID in the background. It reports false when the job is already running.
func (w *Worker) Accept(jobID string) bool {
	ctx, cancel := context.WithCancel(context.Background())

	w.mu.Lock()
	if _, running := w.active[jobID]; running {
		w.mu.Unlock()
		cancel()
		return false
	}
	w.active[jobID] = cancel
	w.mu.Unlock()

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		defer w.release(jobID)

		if err := w.Run(ctx, jobID); err != nil {
			w.logger.Warn("job ended with error", "job", jobID, "error", err)
		}
	}()
	return true
}

func (w *Worker) release(jobID string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if cancel, ok := w.active[jobID]; ok {
		cancel()
		delete(w.active, jobID)
	}
}

// Active returns the number of running jobs.
func (w *Worker) Active() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.active)
}

// Shutdown cancels every running job and waits for them to stop.
func (w *Worker) Shutdown() {
	w.mu.Lock()
	for _, cancel := range w.active {
		cancel()
	}
	w.mu.Unlock()
	w.wg.Wait()
}

// Wait blocks until every accepted job has finished.
func (w *Worker) Wait() {
	w.wg.Wait()
}

// Run processes jobID to completion. Fatal errors are reported to the server as a failed job; a cancelled
// job is left as the server recorded it.
func (w *Worker) Run(ctx context.Context, jobID string) error {
	logger := shared.WithLogger(w.logger, "job", jobID)

	err := w.run(ctx, jobID, logger)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, shared.ErrJobCancelled):
		logger.Info("job cancelled")
		return nil
	case ctx.Err() != nil:
		return err
	}

	msg := err.Error()
	if reportErr := w.api.ReportProgress(ctx, jobID, models.JobUpdate{Status: statusPtr(models.JobFailed), Error: &msg}); reportErr != nil {
		logger.Error("failed to report job failure", "error", reportErr)
	}
	return err
}

func (w *Worker) run(ctx context.Context, jobID string, logger *log.Logger) error {
	job, err := w.api.GetJob(ctx, jobID)
	if err != nil {
		return fmt.Errorf("failed to load job: %w", err)
	}
	if job.Status.IsTerminal() {
		return fmt.Errorf("%w: job is already %s", shared.ErrJobCancelled, job.Status)
	}

	playlist, err := w.api.GetPlaylist(ctx, job.PlaylistID)
	if err != nil {
		return fmt.Errorf("failed to load playlist: %w", err)
	}
	tracks := playlist.Matched()
	if len(tracks) == 0 {
		return shared.ErrNoDownloadableTracks
	}

	workDir, err := os.MkdirTemp(w.staging, "job-"+jobID+"-")
	if err != nil {
		return fmt.Errorf("failed to create work dir: %w", err)
	}
	defer os.RemoveAll(workDir)

	logger.Info("downloading", "playlist", playlist.Name, "tracks", len(tracks))

	var (
		entries []entry
		failed  []string
	)
	for i, track := range tracks {
		if err := w.limiter.Wait(ctx); err != nil {
			return err
		}

		if err := w.report(ctx, jobID, models.JobUpdate{
			Status:   statusPtr(models.JobDownloading),
			Progress: &models.Progress{Current: i, Total: len(tracks), CurrentTrack: track.Source.DisplayName()},
		}); err != nil {
			return err
		}

		files, err := w.fetch(ctx, track, filepath.Join(workDir, fmt.Sprintf("%03d", i+1)))
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			logger.Warn("track failed", "track", track.Source.DisplayName(), "error", err)
			failed = append(failed, track.Source.ID)
			continue
		}
		entries = append(entries, entryNames(i+1, track, files)...)
	}

	if len(entries) == 0 {
		msg := allTracksFailedMessage
		return w.report(ctx, jobID, models.JobUpdate{
			Status:       statusPtr(models.JobFailed),
			Progress:     &models.Progress{Current: len(tracks), Total: len(tracks)},
			Error:        &msg,
			FailedTracks: failed,
		})
	}

	if err := w.report(ctx, jobID, models.JobUpdate{
		Status:   statusPtr(models.JobZipping),
		Progress: &models.Progress{Current: len(tracks), Total: len(tracks)},
	}); err != nil {
		return err
	}

	size, err := writeArchive(jobs.ArchivePath(w.staging, jobID), entries)
	if err != nil {
		return err
	}
	logger.Info("archive ready", "files", len(entries), "failed", len(failed), "size", humanize.Bytes(uint64(size)))

	url := jobs.DownloadPath(jobID)
	if failed == nil {
		failed = []string{}
	}
	if err := w.report(ctx, jobID, models.JobUpdate{
		Status:       statusPtr(models.JobCompleted),
		DownloadURL:  &url,
		FailedTracks: failed,
	}); err != nil {
		// A cancelled job's archive is never claimed.
		os.Remove(jobs.ArchivePath(w.staging, jobID))
		return err
	}
	return nil
}

// report forwards an update. A cancelled job surfaces as [shared.ErrJobCancelled].
func (w *Worker) report(ctx context.Context, jobID string, update models.JobUpdate) error {
	if err := w.api.ReportProgress(ctx, jobID, update); err != nil {
		if errors.Is(err, shared.ErrJobCancelled) {
			return err
		}
		return fmt.Errorf("failed to report progress: %w", err)
	}
	return nil
}

func (w *Worker) fetch(ctx context.Context, track models.MatchResult, dir string) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create track dir: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, w.trackTimeout)
	defer cancel()
	return w.fetcher.Fetch(ctx, track, dir)
}

// entryNames names fetched files "<nn> - <artist - title><ext>", suffixing extra files from one track.
func entryNames(position int, track models.MatchResult, files []string) []entry {
	base := fmt.Sprintf("%02d - %s", position, shared.SanitizeFilename(track.Source.DisplayName()))
	out := make([]entry, len(files))
	for i, f := range files {
		name := base
		if i > 0 {
			name = fmt.Sprintf("%s (%d)", base, i+1)
		}
		out[i] = entry{path: f, name: name + filepath.Ext(f)}
	}
	return out
}

func statusPtr(s models.JobStatus) *models.JobStatus {
	return &s
}
