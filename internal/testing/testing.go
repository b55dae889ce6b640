// package testing contains shared testing utilities
package testing

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"sync"
	"testing"

	"github.com/hbarnett99/so-you-made-a-mix/internal/models"
)

// MockSource is a test double for [services.PlaylistSource]
type MockSource struct {
	Playlists map[string]*models.PlaylistExport
	Err       error
}

func (m *MockSource) ExportPlaylist(ctx context.Context, playlistID string) (*models.PlaylistExport, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	p, ok := m.Playlists[playlistID]
	if !ok {
		return nil, ErrMockNotFound
	}
	return p, nil
}

func (m *MockSource) Name() string { return "mock" }

// ErrMockNotFound is returned by [MockSource] for unknown ids unless a test swaps it.
var ErrMockNotFound = errors.New("mock: not found")

// MockMatcher is a test double for [services.CatalogMatcher] backed by a code -> candidate map.
//
// CodeErrs fails single lookups for specific codes; BatchErr fails every batched query.
type MockMatcher struct {
	Catalog   map[string]models.CandidateTrack
	CodeErrs  map[string]error
	BatchErr  error
	BatchSize int

	mu          sync.Mutex
	SingleCalls []string
	BatchCalls  [][]string
}

func (m *MockMatcher) LookupByCode(ctx context.Context, code string) (*models.CandidateTrack, error) {
	m.mu.Lock()
	m.SingleCalls = append(m.SingleCalls, code)
	m.mu.Unlock()

	if err, ok := m.CodeErrs[code]; ok {
		return nil, err
	}
	c, ok := m.Catalog[code]
	if !ok {
		return nil, nil
	}
	return &c, nil
}

func (m *MockMatcher) LookupByCodes(ctx context.Context, codes []string) (map[string]*models.CandidateTrack, error) {
	m.mu.Lock()
	m.BatchCalls = append(m.BatchCalls, append([]string{}, codes...))
	m.mu.Unlock()

	if m.BatchErr != nil {
		return nil, m.BatchErr
	}
	out := make(map[string]*models.CandidateTrack)
	for _, code := range codes {
		if c, ok := m.Catalog[code]; ok {
			out[code] = &c
		}
	}
	return out, nil
}

func (m *MockMatcher) MaxBatchSize() int {
	if m.BatchSize == 0 {
		return 20
	}
	return m.BatchSize
}

// Calls returns the number of single and batched lookups made so far.
func (m *MockMatcher) Calls() (single, batch int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.SingleCalls), len(m.BatchCalls)
}

// NewTrack builds a source track; an empty code yields a track without a recording code.
func NewTrack(id, name, code string) models.Track {
	return models.Track{
		ID:         id,
		Name:       name,
		ISRC:       code,
		Artists:    []models.Artist{{ID: "artist-" + id, Name: "Artist " + id}},
		DurationMS: 180000,
	}
}

// NewCandidate builds a target catalog track for code.
func NewCandidate(id, code string) models.CandidateTrack {
	return models.CandidateTrack{
		ID:           id,
		Title:        "Candidate " + id,
		ISRC:         code,
		Duration:     180,
		AudioQuality: "LOSSLESS",
		URL:          "https://tidal.com/browse/track/" + id,
	}
}

// NewExport wraps tracks in a playlist export.
func NewExport(id, name string, tracks ...models.Track) *models.PlaylistExport {
	items := make([]models.PlaylistItem, len(tracks))
	for i, t := range tracks {
		items[i] = models.PlaylistItem{AddedAt: "2024-01-01T00:00:00Z", Track: t}
	}
	return &models.PlaylistExport{
		Playlist: models.Playlist{ID: id, Name: name, TrackCount: len(tracks)},
		Items:    items,
	}
}

// FWriter always returns an error on Write
type FWriter struct{}

func (f *FWriter) Write(p []byte) (n int, err error) {
	return 0, errors.New("write failed")
}

// MockRoundTripper allows custom HTTP responses for testing
type MockRoundTripper struct {
	response *http.Response
	err      error
}

func NewMockRoundTripper(r *http.Response, e error) *MockRoundTripper {
	return &MockRoundTripper{response: r, err: e}
}

func (m *MockRoundTripper) RoundTrip(*http.Request) (*http.Response, error) {
	return m.response, m.err
}

// FCloser simulates a failure when reading response body
type FCloser struct{}

func (f *FCloser) Read(p []byte) (n int, err error) {
	return 0, errors.New("read failed")
}

func (f *FCloser) Close() error {
	return nil
}

var _ io.ReadCloser = (*FCloser)(nil)

func AssertFileExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Errorf("File does not exist: %s", path)
	}
}

func AssertFileMissing(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("File should not exist: %s", path)
	}
}

func MustWriteFile(t *testing.T, path string, content []byte) {
	t.Helper()
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatalf("Failed to write file %s: %v", path, err)
	}
}

func MustReadFile(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file %s: %v", path, err)
	}
	return string(content)
}
