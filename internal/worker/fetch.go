package worker

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/hbarnett99/so-you-made-a-mix/internal/models"
)

// Fetcher downloads one matched track into dir and returns the files it produced.
type Fetcher interface {
	Fetch(ctx context.Context, track models.MatchResult, dir string) ([]string, error)
}

// CommandFetcher runs an external downloader with the candidate's catalog URL appended as the last
// argument. The command runs inside dir and every regular file left there counts as output.
type CommandFetcher struct {
	command []string
}

// NewCommandFetcher returns a fetcher for command, e.g. ["python", "-m", "orpheus"].
func NewCommandFetcher(command []string) (*CommandFetcher, error) {
	if len(command) == 0 || strings.TrimSpace(command[0]) == "" {
		return nil, errors.New("fetch command is empty")
	}
	return &CommandFetcher{command: append([]string{}, command...)}, nil
}

func (f *CommandFetcher) Fetch(ctx context.Context, track models.MatchResult, dir string) ([]string, error) {
	if track.Candidate == nil || track.Candidate.URL == "" {
		return nil, fmt.Errorf("track %s has no catalog url", track.Source.ID)
	}

	args := append(append([]string{}, f.command[1:]...), track.Candidate.URL)
	cmd := exec.CommandContext(ctx, f.command[0], args...)
	cmd.Dir = dir

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("fetch %s: %w", track.Candidate.URL, ctx.Err())
		}
		msg := strings.TrimSpace(stderr.String())
		if len(msg) > 200 {
			msg = msg[len(msg)-200:]
		}
		return nil, fmt.Errorf("fetch %s: %w: %s", track.Candidate.URL, err, msg)
	}

	files, err := collectFiles(dir)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("fetch %s produced no files", track.Candidate.URL)
	}
	return files, nil
}

// collectFiles lists regular files under dir in lexical order.
func collectFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.Type().IsRegular() {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list fetched files: %w", err)
	}
	return files, nil
}
