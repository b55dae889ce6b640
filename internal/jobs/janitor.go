package jobs

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"time"

	"github.com/charmbracelet/log"
)

// DefaultCleanupInterval is how often the janitor sweeps when not configured.
const DefaultCleanupInterval = 5 * time.Minute

// Janitor periodically removes expired jobs from the store along with any archive still staged for them.
//
// The HTTP server owns one janitor for its lifetime; it is the only caller of [Store.Cleanup].
type Janitor struct {
	store    Store
	dir      string
	interval time.Duration
	logger   *log.Logger
}

// NewJanitor creates a janitor sweeping every interval.
func NewJanitor(store Store, dir string, interval time.Duration, logger *log.Logger) *Janitor {
	if interval <= 0 {
		interval = DefaultCleanupInterval
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Janitor{store: store, dir: dir, interval: interval, logger: logger}
}

// Run sweeps on every tick until ctx is done.
func (j *Janitor) Run(ctx context.Context) {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			j.Sweep()
		}
	}
}

// Sweep runs one cleanup pass and returns the removed job ids.
func (j *Janitor) Sweep() []string {
	removed := j.store.Cleanup()
	for _, id := range removed {
		if err := os.Remove(ArchivePath(j.dir, id)); err != nil && !errors.Is(err, fs.ErrNotExist) {
			j.logger.Warn("failed to remove expired archive", "job", id, "error", err)
		}
	}
	if len(removed) > 0 {
		j.logger.Info("expired jobs removed", "count", len(removed))
	}
	return removed
}
