package worker

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// entry is one file to place in the archive.
type entry struct {
	path string
	name string
}

// writeArchive zips entries into a temporary file next to dest and renames it into place, so the server
// never observes a partial archive.
func writeArchive(dest string, entries []entry) (int64, error) {
	tmp, err := os.CreateTemp(filepath.Dir(dest), ".partial-*.zip")
	if err != nil {
		return 0, fmt.Errorf("failed to create archive: %w", err)
	}
	defer os.Remove(tmp.Name())

	zw := zip.NewWriter(tmp)
	for _, e := range entries {
		if err := addFile(zw, e); err != nil {
			zw.Close()
			tmp.Close()
			return 0, err
		}
	}
	if err := zw.Close(); err != nil {
		tmp.Close()
		return 0, fmt.Errorf("failed to finish archive: %w", err)
	}

	info, err := tmp.Stat()
	if err != nil {
		tmp.Close()
		return 0, fmt.Errorf("failed to stat archive: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return 0, fmt.Errorf("failed to close archive: %w", err)
	}

	if err := os.Rename(tmp.Name(), dest); err != nil {
		return 0, fmt.Errorf("failed to publish archive: %w", err)
	}
	return info.Size(), nil
}

func addFile(zw *zip.Writer, e entry) error {
	src, err := os.Open(e.path)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", e.path, err)
	}
	defer src.Close()

	info, err := src.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat %s: %w", e.path, err)
	}

	header, err := zip.FileInfoHeader(info)
	if err != nil {
		return fmt.Errorf("failed to build header for %s: %w", e.path, err)
	}
	header.Name = e.name
	// Audio is already compressed.
	header.Method = zip.Store

	w, err := zw.CreateHeader(header)
	if err != nil {
		return fmt.Errorf("failed to add %s: %w", e.name, err)
	}
	if _, err := io.Copy(w, src); err != nil {
		return fmt.Errorf("failed to write %s: %w", e.name, err)
	}
	return nil
}
