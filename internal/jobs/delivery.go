package jobs

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/dustin/go-humanize"
	"github.com/hbarnett99/so-you-made-a-mix/internal/shared"
)

// ArchivePath is where the worker stages the archive for jobID.
func ArchivePath(dir, jobID string) string {
	return filepath.Join(dir, jobID+".zip")
}

// DownloadPath is the server path a finished archive is served from.
func DownloadPath(jobID string) string {
	return "/download/file/" + jobID
}

// Archive is a claimed archive file open for streaming. Close removes it from disk.
type Archive struct {
	*os.File
	Filename string
	Size     int64
	path     string
}

// Close closes and deletes the claimed file.
func (a *Archive) Close() error {
	closeErr := a.File.Close()
	if err := os.Remove(a.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to remove archive: %w", err)
	}
	return closeErr
}

// Delivery hands out staged archives exactly once.
type Delivery struct {
	store  Store
	dir    string
	logger *log.Logger
}

// NewDelivery serves archives staged in dir for jobs known to store.
func NewDelivery(store Store, dir string, logger *log.Logger) *Delivery {
	if logger == nil {
		logger = log.Default()
	}
	return &Delivery{store: store, dir: dir, logger: logger}
}

// Stat reports the served filename and size of the staged archive for jobID without claiming it.
func (d *Delivery) Stat(jobID string) (string, int64, error) {
	job, ok := d.store.Get(jobID)
	if !ok {
		return "", 0, fmt.Errorf("%w: %s", shared.ErrJobNotFound, jobID)
	}

	info, err := os.Stat(ArchivePath(d.dir, job.ID))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", 0, fmt.Errorf("%w: %s", shared.ErrArchiveNotFound, jobID)
		}
		return "", 0, fmt.Errorf("failed to stat archive: %w", err)
	}
	return archiveFilename(job.PlaylistName), info.Size(), nil
}

// Open claims the archive for jobID by renaming it away from its staged path, so a concurrent or repeated
// request sees [shared.ErrArchiveNotFound]. The caller must Close the archive, which deletes it whether or
// not the stream completed.
func (d *Delivery) Open(jobID string) (*Archive, error) {
	job, ok := d.store.Get(jobID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", shared.ErrJobNotFound, jobID)
	}

	staged := ArchivePath(d.dir, job.ID)
	claimed := staged + ".sending-" + shared.GenerateID()
	if err := os.Rename(staged, claimed); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", shared.ErrArchiveNotFound, jobID)
		}
		return nil, fmt.Errorf("failed to claim archive: %w", err)
	}

	f, err := os.Open(claimed)
	if err != nil {
		os.Remove(claimed)
		return nil, fmt.Errorf("failed to open archive: %w", err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		os.Remove(claimed)
		return nil, fmt.Errorf("failed to stat archive: %w", err)
	}

	d.logger.Info("serving archive", "job", jobID, "size", humanize.Bytes(uint64(info.Size())))
	return &Archive{
		File:     f,
		Filename: archiveFilename(job.PlaylistName),
		Size:     info.Size(),
		path:     claimed,
	}, nil
}

func archiveFilename(playlistName string) string {
	return shared.SanitizeFilename(playlistName) + ".zip"
}
