package jobs

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/hbarnett99/so-you-made-a-mix/internal/models"
	"github.com/hbarnett99/so-you-made-a-mix/internal/shared"
)

// CancelledMessage is the error recorded on a job cancelled by the user.
const CancelledMessage = "cancelled"

// PlaylistResolver produces the enhanced playlist a job is built from.
type PlaylistResolver interface {
	Resolve(ctx context.Context, playlistID string) (*models.EnhancedPlaylist, error)
}

// Dispatcher hands a job to the archive worker.
type Dispatcher interface {
	Dispatch(ctx context.Context, jobID string) error
}

// StartResult describes a newly started job.
type StartResult struct {
	JobID       string `json:"jobId"`
	TotalTracks int    `json:"totalTracks"`
}

// Orchestrator starts, dispatches, and cancels download jobs.
//
// Every dispatch runs on a goroutine the orchestrator retains until it finishes, so [Orchestrator.Cancel]
// can stop it and [Orchestrator.Wait] can drain it on shutdown.
type Orchestrator struct {
	store      Store
	resolver   PlaylistResolver
	dispatcher Dispatcher
	logger     *log.Logger

	mu      sync.Mutex
	cancels map[string]context.CancelFunc
	wg      sync.WaitGroup
}

// NewOrchestrator wires a store, resolver, and dispatcher.
func NewOrchestrator(store Store, resolver PlaylistResolver, dispatcher Dispatcher, logger *log.Logger) *Orchestrator {
	if logger == nil {
		logger = log.Default()
	}
	return &Orchestrator{
		store:      store,
		resolver:   resolver,
		dispatcher: dispatcher,
		logger:     logger,
		cancels:    make(map[string]context.CancelFunc),
	}
}

// StartJob resolves the playlist, creates a job for its matched tracks, and dispatches it in the background.
//
// Returns [shared.ErrNoDownloadableTracks] without creating a job when nothing matched.
func (o *Orchestrator) StartJob(ctx context.Context, playlistID string) (*StartResult, error) {
	if strings.TrimSpace(playlistID) == "" {
		return nil, fmt.Errorf("%w: playlistId is required", shared.ErrInvalidInput)
	}

	playlist, err := o.resolver.Resolve(ctx, playlistID)
	if err != nil {
		if errors.Is(err, shared.ErrPlaylistNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", shared.ErrPlaylistNotFound, err)
	}

	matched := playlist.Matched()
	if len(matched) == 0 {
		return nil, shared.ErrNoDownloadableTracks
	}

	job := o.store.Create(playlistID, playlist.Name, len(matched))
	if _, err := o.store.Update(job.ID, SetStatus(models.JobDownloading)); err != nil {
		return nil, err
	}

	dispatchCtx, cancel := context.WithCancel(context.Background())
	o.mu.Lock()
	o.cancels[job.ID] = cancel
	o.mu.Unlock()

	o.wg.Add(1)
	go o.dispatch(dispatchCtx, job.ID)

	o.logger.Info("job started", "job", job.ID, "playlist", playlistID, "tracks", len(matched))
	return &StartResult{JobID: job.ID, TotalTracks: len(matched)}, nil
}

// dispatch hands jobID to the worker and records a failure on the job instead of returning it.
func (o *Orchestrator) dispatch(ctx context.Context, jobID string) {
	defer o.wg.Done()
	defer o.release(jobID)

	defer func() {
		if r := recover(); r != nil {
			o.fail(jobID, fmt.Sprintf("dispatch panicked: %v", r))
		}
	}()

	err := o.dispatcher.Dispatch(ctx, jobID)
	if err == nil {
		o.logger.Debug("job dispatched", "job", jobID)
		return
	}
	if ctx.Err() != nil {
		o.logger.Debug("dispatch cancelled", "job", jobID)
		return
	}
	o.fail(jobID, err.Error())
}

func (o *Orchestrator) fail(jobID, msg string) {
	o.logger.Error("job failed", "job", jobID, "error", msg)
	if _, err := o.store.Update(jobID, SetStatus(models.JobFailed), SetError(msg)); err != nil {
		o.logger.Warn("could not record job failure", "job", jobID, "error", err)
	}
}

func (o *Orchestrator) release(jobID string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if cancel, ok := o.cancels[jobID]; ok {
		cancel()
		delete(o.cancels, jobID)
	}
}

// Cancel marks the job failed and stops a dispatch still in flight.
//
// A worker already processing the job learns of it when its next progress report is refused.
func (o *Orchestrator) Cancel(jobID string) (*models.DownloadJob, error) {
	job, err := o.store.Update(jobID, SetStatus(models.JobFailed), SetError(CancelledMessage))
	if err != nil {
		return nil, err
	}
	o.release(jobID)
	o.logger.Info("job cancelled", "job", jobID)
	return job, nil
}

// Wait blocks until all dispatches have returned.
func (o *Orchestrator) Wait() {
	o.wg.Wait()
}

// Shutdown cancels in-flight dispatches and waits for them.
func (o *Orchestrator) Shutdown() {
	o.mu.Lock()
	for _, cancel := range o.cancels {
		cancel()
	}
	o.mu.Unlock()
	o.wg.Wait()
}
