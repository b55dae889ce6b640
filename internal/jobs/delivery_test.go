package jobs

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/hbarnett99/so-you-made-a-mix/internal/shared"
	tu "github.com/hbarnett99/so-you-made-a-mix/internal/testing"
)

func TestDelivery(t *testing.T) {
	t.Run("Stream Once Then 404", func(t *testing.T) {
		dir := t.TempDir()
		store := NewMemoryStore()
		job := store.Create("pl", "Beyoncé: Greatest Hits!", 1)
		delivery := NewDelivery(store, dir, quietLogger())

		if _, err := delivery.Open(job.ID); !errors.Is(err, shared.ErrArchiveNotFound) {
			t.Fatalf("expected ErrArchiveNotFound before staging, got %v", err)
		}

		content := []byte("PK\x03\x04 fake zip")
		tu.MustWriteFile(t, ArchivePath(dir, job.ID), content)

		archive, err := delivery.Open(job.ID)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if archive.Filename != "Beyonce_Greatest_Hits.zip" {
			t.Errorf("unexpected filename %q", archive.Filename)
		}
		if archive.Size != int64(len(content)) {
			t.Errorf("expected size %d, got %d", len(content), archive.Size)
		}

		if _, err := delivery.Open(job.ID); !errors.Is(err, shared.ErrArchiveNotFound) {
			t.Errorf("expected claimed archive to be unavailable, got %v", err)
		}

		got, err := io.ReadAll(archive)
		if err != nil {
			t.Fatalf("failed to read archive: %v", err)
		}
		if string(got) != string(content) {
			t.Errorf("unexpected content %q", got)
		}
		if err := archive.Close(); err != nil {
			t.Fatalf("close failed: %v", err)
		}

		entries, _ := os.ReadDir(dir)
		if len(entries) != 0 {
			t.Errorf("expected staging dir to be empty, got %d entries", len(entries))
		}
		if _, err := delivery.Open(job.ID); !errors.Is(err, shared.ErrArchiveNotFound) {
			t.Errorf("expected ErrArchiveNotFound after delivery, got %v", err)
		}
	})

	t.Run("Stat Does Not Claim", func(t *testing.T) {
		dir := t.TempDir()
		store := NewMemoryStore()
		job := store.Create("pl", "Road Trip", 1)
		delivery := NewDelivery(store, dir, quietLogger())

		if _, _, err := delivery.Stat(job.ID); !errors.Is(err, shared.ErrArchiveNotFound) {
			t.Fatalf("expected ErrArchiveNotFound before staging, got %v", err)
		}
		if _, _, err := delivery.Stat("unknown"); !errors.Is(err, shared.ErrJobNotFound) {
			t.Errorf("expected ErrJobNotFound, got %v", err)
		}

		tu.MustWriteFile(t, ArchivePath(dir, job.ID), []byte("zipdata"))

		filename, size, err := delivery.Stat(job.ID)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if filename != "Road_Trip.zip" || size != 7 {
			t.Errorf("unexpected stat %q / %d", filename, size)
		}
		tu.AssertFileExists(t, ArchivePath(dir, job.ID))

		archive, err := delivery.Open(job.ID)
		if err != nil {
			t.Fatalf("expected archive to still be served, got %v", err)
		}
		archive.Close()
	})

	t.Run("Close Removes Partially Read Archive", func(t *testing.T) {
		dir := t.TempDir()
		store := NewMemoryStore()
		job := store.Create("pl", "", 1)
		tu.MustWriteFile(t, ArchivePath(dir, job.ID), []byte("data"))

		archive, err := NewDelivery(store, dir, quietLogger()).Open(job.ID)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if archive.Filename != "playlist.zip" {
			t.Errorf("expected fallback filename, got %q", archive.Filename)
		}
		archive.Close()

		entries, _ := os.ReadDir(dir)
		if len(entries) != 0 {
			t.Errorf("expected claimed file removed, got %d entries", len(entries))
		}
	})

	t.Run("Unknown Job", func(t *testing.T) {
		dir := t.TempDir()
		tu.MustWriteFile(t, filepath.Join(dir, "job_x.zip"), []byte("data"))

		_, err := NewDelivery(NewMemoryStore(), dir, quietLogger()).Open("job_x")
		if !errors.Is(err, shared.ErrJobNotFound) {
			t.Errorf("expected ErrJobNotFound, got %v", err)
		}
		tu.AssertFileExists(t, filepath.Join(dir, "job_x.zip"))
	})

	t.Run("Paths", func(t *testing.T) {
		if got := ArchivePath("/tmp", "job_1"); got != filepath.Join("/tmp", "job_1.zip") {
			t.Errorf("unexpected archive path %s", got)
		}
		if got := DownloadPath("job_1"); got != "/download/file/job_1" {
			t.Errorf("unexpected download path %s", got)
		}
	})
}

func TestJanitor(t *testing.T) {
	t.Run("Sweep Removes Expired Jobs And Archives", func(t *testing.T) {
		dir := t.TempDir()
		clock := newClock()
		store := NewMemoryStore(WithStoreClock(clock.Now))

		old := store.Create("pl", "old", 1)
		tu.MustWriteFile(t, ArchivePath(dir, old.ID), []byte("old"))
		clock.Advance(90 * time.Minute)
		fresh := store.Create("pl", "fresh", 1)
		tu.MustWriteFile(t, ArchivePath(dir, fresh.ID), []byte("fresh"))

		removed := NewJanitor(store, dir, time.Minute, quietLogger()).Sweep()

		if len(removed) != 1 || removed[0] != old.ID {
			t.Errorf("expected %s removed, got %v", old.ID, removed)
		}
		tu.AssertFileMissing(t, ArchivePath(dir, old.ID))
		tu.AssertFileExists(t, ArchivePath(dir, fresh.ID))
	})

	t.Run("Run Stops With Context", func(t *testing.T) {
		j := NewJanitor(NewMemoryStore(), t.TempDir(), time.Millisecond, quietLogger())
		ctx, cancel := context.WithCancel(context.Background())

		done := make(chan struct{})
		go func() { j.Run(ctx); close(done) }()
		time.Sleep(5 * time.Millisecond)
		cancel()

		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatal("janitor did not stop")
		}
	})

	t.Run("Default Interval", func(t *testing.T) {
		if j := NewJanitor(NewMemoryStore(), "", 0, nil); j.interval != DefaultCleanupInterval {
			t.Errorf("expected default interval, got %v", j.interval)
		}
	})
}
