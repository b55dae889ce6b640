package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hbarnett99/so-you-made-a-mix/internal/models"
	"github.com/hbarnett99/so-you-made-a-mix/internal/shared"
)

const candidateColumns = `id, sequence, catalog_id, isrc, title, artists, duration, audio_quality, explicit, popularity, url, album, created_at, updated_at`

// CachedCandidate is a stored candidate with its bookkeeping columns.
type CachedCandidate struct {
	models.CandidateTrack
	RowID     string
	Sequence  int
	CreatedAt time.Time
	UpdatedAt time.Time
}

// CandidateRepository caches target-catalog tracks keyed by normalized recording code.
//
// It implements the match engine's candidate cache: misses are reported by absence from the result map,
// never as errors.
type CandidateRepository struct {
	db  *sql.DB
	now func() time.Time
}

// NewCandidateRepository creates a new CandidateRepository with the given database connection
func NewCandidateRepository(db *sql.DB) *CandidateRepository {
	return &CandidateRepository{db: db, now: time.Now}
}

// Put inserts or refreshes a candidate. A soft-deleted row with the same code is revived.
func (r *CandidateRepository) Put(ctx context.Context, c models.CandidateTrack) error {
	code := models.NormalizeCode(c.ISRC)
	if code == "" {
		return fmt.Errorf("%w: candidate %s has no recording code", shared.ErrInvalidInput, c.ID)
	}
	if c.ID == "" {
		return fmt.Errorf("%w: candidate for %s has no catalog id", shared.ErrInvalidInput, code)
	}

	artists, err := json.Marshal(c.Artists)
	if err != nil {
		return fmt.Errorf("failed to encode artists: %w", err)
	}
	album, err := json.Marshal(c.Album)
	if err != nil {
		return fmt.Errorf("failed to encode album: %w", err)
	}

	sequence, err := NextSequence(ctx, r.db, "candidate_tracks")
	if err != nil {
		return fmt.Errorf("failed to generate sequence: %w", err)
	}

	now := r.now()
	query := `
		INSERT INTO candidate_tracks (` + candidateColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(isrc) DO UPDATE SET
			catalog_id = excluded.catalog_id,
			title = excluded.title,
			artists = excluded.artists,
			duration = excluded.duration,
			audio_quality = excluded.audio_quality,
			explicit = excluded.explicit,
			popularity = excluded.popularity,
			url = excluded.url,
			album = excluded.album,
			updated_at = excluded.updated_at,
			deleted_at = NULL
	`

	_, err = r.db.ExecContext(ctx, query,
		shared.GenerateID(),
		sequence,
		c.ID,
		code,
		c.Title,
		string(artists),
		c.Duration,
		c.AudioQuality,
		c.Explicit,
		c.Popularity,
		c.URL,
		string(album),
		now,
		now,
	)
	if err != nil {
		return fmt.Errorf("failed to store candidate %s: %w", code, err)
	}
	return nil
}

// PutCandidates stores every candidate, stopping at the first failure.
func (r *CandidateRepository) PutCandidates(ctx context.Context, candidates []models.CandidateTrack) error {
	for _, c := range candidates {
		if err := r.Put(ctx, c); err != nil {
			return err
		}
	}
	return nil
}

// Get returns the live candidate for code, or [shared.ErrTrackNotFound].
func (r *CandidateRepository) Get(ctx context.Context, code string) (*CachedCandidate, error) {
	query := `SELECT ` + candidateColumns + ` FROM candidate_tracks WHERE isrc = ? AND deleted_at IS NULL`

	c, err := scanCandidate(r.db.QueryRowContext(ctx, query, models.NormalizeCode(code)))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", shared.ErrTrackNotFound, code)
	}
	return c, err
}

// GetByCodes returns the cached candidates for codes keyed by normalized code. Unknown codes are absent.
func (r *CandidateRepository) GetByCodes(ctx context.Context, codes []string) (map[string]models.CandidateTrack, error) {
	out := make(map[string]models.CandidateTrack)

	args := make([]any, 0, len(codes))
	seen := make(map[string]bool, len(codes))
	for _, code := range codes {
		code = models.NormalizeCode(code)
		if code == "" || seen[code] {
			continue
		}
		seen[code] = true
		args = append(args, code)
	}
	if len(args) == 0 {
		return out, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(args)), ",")
	query := `SELECT ` + candidateColumns + ` FROM candidate_tracks WHERE deleted_at IS NULL AND isrc IN (` + placeholders + `)`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query candidates: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		c, err := scanCandidate(rows)
		if err != nil {
			return nil, err
		}
		out[c.ISRC] = c.CandidateTrack
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating candidates: %w", err)
	}
	return out, nil
}

// List returns live candidates in sequence order. A limit of zero or less returns all of them.
func (r *CandidateRepository) List(ctx context.Context, limit int) ([]*CachedCandidate, error) {
	query := `SELECT ` + candidateColumns + ` FROM candidate_tracks WHERE deleted_at IS NULL ORDER BY sequence`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list candidates: %w", err)
	}
	defer rows.Close()

	var candidates []*CachedCandidate
	for rows.Next() {
		c, err := scanCandidate(rows)
		if err != nil {
			return nil, err
		}
		candidates = append(candidates, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating candidates: %w", err)
	}
	return candidates, nil
}

// Count returns the number of live candidates.
func (r *CandidateRepository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM candidate_tracks WHERE deleted_at IS NULL`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count candidates: %w", err)
	}
	return n, nil
}

// Delete soft-deletes the candidate for code
func (r *CandidateRepository) Delete(ctx context.Context, code string) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE candidate_tracks SET deleted_at = ? WHERE isrc = ? AND deleted_at IS NULL`,
		r.now(), models.NormalizeCode(code),
	)
	if err != nil {
		return fmt.Errorf("failed to delete candidate: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: %s", shared.ErrTrackNotFound, code)
	}
	return nil
}

// Clear soft-deletes every live candidate and returns how many were removed.
func (r *CandidateRepository) Clear(ctx context.Context) (int64, error) {
	result, err := r.db.ExecContext(ctx, `UPDATE candidate_tracks SET deleted_at = ? WHERE deleted_at IS NULL`, r.now())
	if err != nil {
		return 0, fmt.Errorf("failed to clear candidates: %w", err)
	}
	return result.RowsAffected()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanCandidate(row scanner) (*CachedCandidate, error) {
	var (
		c       CachedCandidate
		artists string
		album   string
	)

	err := row.Scan(
		&c.RowID,
		&c.Sequence,
		&c.ID,
		&c.ISRC,
		&c.Title,
		&artists,
		&c.Duration,
		&c.AudioQuality,
		&c.Explicit,
		&c.Popularity,
		&c.URL,
		&album,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan candidate: %w", err)
	}

	if err := json.Unmarshal([]byte(artists), &c.Artists); err != nil {
		return nil, fmt.Errorf("failed to decode artists for %s: %w", c.ISRC, err)
	}
	if err := json.Unmarshal([]byte(album), &c.Album); err != nil {
		return nil, fmt.Errorf("failed to decode album for %s: %w", c.ISRC, err)
	}
	return &c, nil
}
