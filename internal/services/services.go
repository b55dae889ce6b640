// package services defines the catalog clients used by the matching engine
package services

import (
	"context"
	"fmt"
	"net/http"

	"github.com/hbarnett99/so-you-made-a-mix/internal/models"
	"github.com/hbarnett99/so-you-made-a-mix/internal/shared"
)

// PlaylistSource loads playlists from the source catalog.
type PlaylistSource interface {
	// ExportPlaylist returns playlist metadata with every track, in playlist order.
	// Returns [shared.ErrPlaylistNotFound] when the catalog does not know the id.
	ExportPlaylist(ctx context.Context, playlistID string) (*models.PlaylistExport, error)

	// Name returns the name of the service (e.g., "Spotify")
	Name() string
}

// CatalogMatcher resolves recording codes to target catalog tracks.
type CatalogMatcher interface {
	// LookupByCode returns the first candidate for code, or nil when the catalog has none.
	LookupByCode(ctx context.Context, code string) (*models.CandidateTrack, error)

	// LookupByCodes resolves up to [CatalogMatcher.MaxBatchSize] codes in one query.
	// The result is keyed by each candidate's own normalized code; codes without a candidate are absent.
	LookupByCodes(ctx context.Context, codes []string) (map[string]*models.CandidateTrack, error)

	// MaxBatchSize is the largest code set LookupByCodes accepts.
	MaxBatchSize() int
}

// TokenProvider returns a bearer token for the target catalog.
type TokenProvider interface {
	Token(ctx context.Context) (string, error)
}

// AuthError reports a credential problem or a rejected token exchange.
type AuthError struct {
	Status  int // upstream HTTP status, 0 when no request was made
	Message string
}

func (e *AuthError) Error() string {
	if e.Status == 0 {
		return fmt.Sprintf("%v: %s", shared.ErrAuthFailed, e.Message)
	}
	return fmt.Sprintf("%v: status %d: %s", shared.ErrAuthFailed, e.Status, e.Message)
}

func (e *AuthError) Unwrap() error { return shared.ErrAuthFailed }

// LookupError reports a catalog query that failed for a reason other than "not found".
type LookupError struct {
	Status  int
	Message string
}

func (e *LookupError) Error() string {
	return fmt.Sprintf("%v: status %d: %s", shared.ErrLookupFailed, e.Status, e.Message)
}

func (e *LookupError) Unwrap() error { return shared.ErrLookupFailed }

// retryable reports whether a response status is worth another attempt.
func retryable(status int) bool {
	return status == http.StatusRequestTimeout || status == http.StatusTooManyRequests || status >= 500
}
