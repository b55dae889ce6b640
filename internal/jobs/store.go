// package jobs owns download job state: the store, the orchestrator that starts and cancels jobs,
// archive delivery, and the retention sweep.
package jobs

import (
	"fmt"
	"sync"
	"time"

	"github.com/hbarnett99/so-you-made-a-mix/internal/models"
	"github.com/hbarnett99/so-you-made-a-mix/internal/shared"
)

// DefaultRetention is how long a job is kept after creation.
const DefaultRetention = time.Hour

// Store holds download jobs. Implementations must be safe for concurrent use.
type Store interface {
	// Create registers a queued job sized to total tracks.
	Create(playlistID, playlistName string, total int) *models.DownloadJob
	// Get returns a snapshot of the job.
	Get(id string) (*models.DownloadJob, bool)
	// Update applies ops atomically and returns the new snapshot.
	//
	// Returns [shared.ErrJobNotFound] for unknown ids and [shared.ErrInvalidTransition] when the job is
	// terminal or a status change is illegal; the job is unchanged in both cases.
	Update(id string, ops ...Update) (*models.DownloadJob, error)
	// Cleanup removes jobs older than the retention window and returns their ids.
	Cleanup() []string
}

// Update is one field change applied by [Store.Update].
type Update struct {
	name  string
	apply func(job *models.DownloadJob) error
}

func (u Update) String() string { return u.name }

// SetStatus moves the job to s if the transition is legal.
func SetStatus(s models.JobStatus) Update {
	return Update{name: "status", apply: func(job *models.DownloadJob) error {
		if !job.Status.CanTransition(s) {
			return fmt.Errorf("%w: %s -> %s", shared.ErrInvalidTransition, job.Status, s)
		}
		job.Status = s
		return nil
	}}
}

// SetProgress replaces progress wholesale.
func SetProgress(p models.Progress) Update {
	return Update{name: "progress", apply: func(job *models.DownloadJob) error {
		if p.Current < 0 || p.Total < 0 {
			return fmt.Errorf("%w: negative progress", shared.ErrInvalidInput)
		}
		job.Progress = p
		return nil
	}}
}

// SetError records the failure message.
func SetError(msg string) Update {
	return Update{name: "error", apply: func(job *models.DownloadJob) error {
		job.Error = msg
		return nil
	}}
}

// SetDownloadURL records where the finished archive can be fetched.
func SetDownloadURL(url string) Update {
	return Update{name: "downloadUrl", apply: func(job *models.DownloadJob) error {
		job.DownloadURL = url
		return nil
	}}
}

// SetFailedTracks replaces the list of source track ids that could not be fetched.
func SetFailedTracks(ids []string) Update {
	return Update{name: "failedTracks", apply: func(job *models.DownloadJob) error {
		job.FailedTracks = append([]string{}, ids...)
		return nil
	}}
}

// UpdatesFrom converts a worker report into ops. The status change is applied first.
func UpdatesFrom(u models.JobUpdate) []Update {
	var ops []Update
	if u.Status != nil {
		ops = append(ops, SetStatus(*u.Status))
	}
	if u.Progress != nil {
		ops = append(ops, SetProgress(*u.Progress))
	}
	if u.Error != nil {
		ops = append(ops, SetError(*u.Error))
	}
	if u.DownloadURL != nil {
		ops = append(ops, SetDownloadURL(*u.DownloadURL))
	}
	if u.FailedTracks != nil {
		ops = append(ops, SetFailedTracks(u.FailedTracks))
	}
	return ops
}

// MemoryStore is a mutex-guarded in-process [Store].
type MemoryStore struct {
	mu        sync.RWMutex
	jobs      map[string]*models.DownloadJob
	now       func() time.Time
	retention time.Duration
}

// StoreOption configures a [MemoryStore].
type StoreOption func(*MemoryStore)

// WithStoreClock overrides the time source.
func WithStoreClock(now func() time.Time) StoreOption {
	return func(s *MemoryStore) { s.now = now }
}

// WithRetention sets how long jobs live before [MemoryStore.Cleanup] removes them.
func WithRetention(d time.Duration) StoreOption {
	return func(s *MemoryStore) {
		if d > 0 {
			s.retention = d
		}
	}
}

// NewMemoryStore creates an empty store.
func NewMemoryStore(opts ...StoreOption) *MemoryStore {
	s := &MemoryStore{
		jobs:      make(map[string]*models.DownloadJob),
		now:       time.Now,
		retention: DefaultRetention,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *MemoryStore) Create(playlistID, playlistName string, total int) *models.DownloadJob {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	id := shared.GenerateJobID(now)
	for _, taken := s.jobs[id]; taken; _, taken = s.jobs[id] {
		id = shared.GenerateJobID(now)
	}

	job := &models.DownloadJob{
		ID:           id,
		PlaylistID:   playlistID,
		PlaylistName: playlistName,
		Status:       models.JobQueued,
		Progress:     models.Progress{Current: 0, Total: total},
		FailedTracks: []string{},
		CreatedAt:    now,
	}
	s.jobs[id] = job
	return job.Clone()
}

func (s *MemoryStore) Get(id string) (*models.DownloadJob, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	job, ok := s.jobs[id]
	if !ok {
		return nil, false
	}
	return job.Clone(), true
}

func (s *MemoryStore) Update(id string, ops ...Update) (*models.DownloadJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.jobs[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", shared.ErrJobNotFound, id)
	}
	if current.Status.IsTerminal() {
		return nil, fmt.Errorf("%w: job %s is %s", shared.ErrInvalidTransition, id, current.Status)
	}

	next := current.Clone()
	for _, op := range ops {
		if err := op.apply(next); err != nil {
			return nil, err
		}
	}

	if next.Status.IsTerminal() && next.CompletedAt == nil {
		done := s.now()
		next.CompletedAt = &done
	}

	s.jobs[id] = next
	return next.Clone(), nil
}

func (s *MemoryStore) Cleanup() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := s.now().Add(-s.retention)
	var removed []string
	for id, job := range s.jobs {
		if job.CreatedAt.Before(cutoff) {
			delete(s.jobs, id)
			removed = append(removed, id)
		}
	}
	return removed
}

// Len returns the number of jobs held.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.jobs)
}
