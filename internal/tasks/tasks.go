package tasks

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/hbarnett99/so-you-made-a-mix/internal/models"
	"github.com/hbarnett99/so-you-made-a-mix/internal/services"
	"github.com/hbarnett99/so-you-made-a-mix/internal/shared"
)

const (
	defaultBatchSize       = 20
	defaultInterChunkDelay = 100 * time.Millisecond
)

// CandidateCache persists candidates by normalized recording code.
//
// Implemented by repositories.CandidateRepository.
type CandidateCache interface {
	// GetByCodes returns the cached candidates for codes; missing codes are absent from the map.
	GetByCodes(ctx context.Context, codes []string) (map[string]models.CandidateTrack, error)
	// PutCandidates stores or refreshes candidates keyed by their own code.
	PutCandidates(ctx context.Context, candidates []models.CandidateTrack) error
}

// MatchEngine resolves source tracks to target catalog candidates.
type MatchEngine struct {
	matcher   services.CatalogMatcher
	cache     CandidateCache
	batchSize int
	delay     time.Duration
	logger    *log.Logger
}

// EngineOption configures a [MatchEngine].
type EngineOption func(*MatchEngine)

// WithCache enables read-through caching of candidates.
func WithCache(c CandidateCache) EngineOption {
	return func(e *MatchEngine) { e.cache = c }
}

// WithBatchSize sets the chunk size. It is clamped to the matcher's maximum.
func WithBatchSize(n int) EngineOption {
	return func(e *MatchEngine) {
		if n > 0 {
			e.batchSize = n
		}
	}
}

// WithInterChunkDelay sets the pause between chunks. Zero disables it.
func WithInterChunkDelay(d time.Duration) EngineOption {
	return func(e *MatchEngine) {
		if d >= 0 {
			e.delay = d
		}
	}
}

// WithEngineLogger sets the logger.
func WithEngineLogger(l *log.Logger) EngineOption {
	return func(e *MatchEngine) { e.logger = l }
}

// NewMatchEngine creates an engine that queries matcher.
func NewMatchEngine(matcher services.CatalogMatcher, opts ...EngineOption) *MatchEngine {
	e := &MatchEngine{
		matcher:   matcher,
		batchSize: defaultBatchSize,
		delay:     defaultInterChunkDelay,
		logger:    log.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if limit := matcher.MaxBatchSize(); limit > 0 && e.batchSize > limit {
		e.batchSize = limit
	}
	return e
}

// NewMatchEngineFromConfig applies [shared.MatchingConfig] on top of the defaults.
func NewMatchEngineFromConfig(matcher services.CatalogMatcher, cfg shared.MatchingConfig, opts ...EngineOption) *MatchEngine {
	opts = append([]EngineOption{WithBatchSize(cfg.BatchSize), WithInterChunkDelay(cfg.InterChunkDelay)}, opts...)
	return NewMatchEngine(matcher, opts...)
}

// sendProgress sends a progress update through the channel without blocking.
func sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
	default:
	}
}

// MatchAll returns exactly one result per input track, at the same index.
//
// Tracks without a code become no_code with no lookup. The remaining tracks are chunked, one batched query
// per chunk. When the batched query fails, the chunk falls back to concurrent single lookups so a bad code
// only fails its own track. If ctx ends, unprocessed tracks become error results.
func (e *MatchEngine) MatchAll(ctx context.Context, tracks []models.Track, progress chan<- ProgressUpdate) []models.MatchResult {
	results := make([]models.MatchResult, len(tracks))

	var pending []int
	for i, t := range tracks {
		if !t.HasCode() {
			results[i] = models.NewNoCodeResult(t)
			continue
		}
		pending = append(pending, i)
	}

	chunks := chunkIndices(pending, e.batchSize)
	for n, chunk := range chunks {
		if n > 0 && !e.pause(ctx) {
			e.failRemaining(tracks, results, chunks[n:], ctx.Err())
			break
		}
		if err := ctx.Err(); err != nil {
			e.failRemaining(tracks, results, chunks[n:], err)
			break
		}

		e.matchChunk(ctx, tracks, results, chunk)
		sendProgress(progress, matchChunkUpdate(n+1, len(chunks)))
	}

	return results
}

func (e *MatchEngine) pause(ctx context.Context) bool {
	if e.delay <= 0 {
		return true
	}
	timer := time.NewTimer(e.delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

func (e *MatchEngine) failRemaining(tracks []models.Track, results []models.MatchResult, chunks [][]int, err error) {
	for _, chunk := range chunks {
		for _, i := range chunk {
			results[i] = models.NewErrorResult(tracks[i], err)
		}
	}
}

// matchChunk fills results for the given indices.
func (e *MatchEngine) matchChunk(ctx context.Context, tracks []models.Track, results []models.MatchResult, chunk []int) {
	lookup := chunk
	if e.cache != nil {
		lookup = e.fromCache(ctx, tracks, results, chunk)
		if len(lookup) == 0 {
			return
		}
	}

	codes := make([]string, len(lookup))
	for j, i := range lookup {
		codes[j] = models.NormalizeCode(tracks[i].ISRC)
	}

	found, err := e.matcher.LookupByCodes(ctx, codes)
	if err != nil {
		e.logger.Warn("batch lookup failed, falling back to single lookups", "codes", len(codes), "error", err)
		e.matchEach(ctx, tracks, results, lookup)
		return
	}

	var fresh []models.CandidateTrack
	for j, i := range lookup {
		c, ok := found[codes[j]]
		if !ok || c == nil {
			results[i] = models.NewNotFoundResult(tracks[i])
			continue
		}
		results[i] = models.NewMatchedResult(tracks[i], *c)
		fresh = append(fresh, *c)
	}
	e.storeCandidates(ctx, fresh)
}

// matchEach looks up each index on its own goroutine.
func (e *MatchEngine) matchEach(ctx context.Context, tracks []models.Track, results []models.MatchResult, indices []int) {
	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		fresh []models.CandidateTrack
	)

	for _, i := range indices {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()

			c, err := e.matcher.LookupByCode(ctx, models.NormalizeCode(tracks[i].ISRC))
			switch {
			case err != nil:
				results[i] = models.NewErrorResult(tracks[i], err)
			case c == nil:
				results[i] = models.NewNotFoundResult(tracks[i])
			default:
				results[i] = models.NewMatchedResult(tracks[i], *c)
				mu.Lock()
				fresh = append(fresh, *c)
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()

	e.storeCandidates(ctx, fresh)
}

// fromCache fills results for cached codes and returns the indices still needing a lookup.
func (e *MatchEngine) fromCache(ctx context.Context, tracks []models.Track, results []models.MatchResult, chunk []int) []int {
	codes := make([]string, len(chunk))
	for j, i := range chunk {
		codes[j] = models.NormalizeCode(tracks[i].ISRC)
	}

	cached, err := e.cache.GetByCodes(ctx, codes)
	if err != nil {
		e.logger.Warn("candidate cache read failed", "error", err)
		return chunk
	}

	var rest []int
	for j, i := range chunk {
		if c, ok := cached[codes[j]]; ok {
			results[i] = models.NewMatchedResult(tracks[i], c)
			continue
		}
		rest = append(rest, i)
	}
	return rest
}

func (e *MatchEngine) storeCandidates(ctx context.Context, candidates []models.CandidateTrack) {
	if e.cache == nil || len(candidates) == 0 {
		return
	}
	if err := e.cache.PutCandidates(ctx, candidates); err != nil {
		e.logger.Warn("candidate cache write failed", "count", len(candidates), "error", err)
	}
}

func chunkIndices(indices []int, size int) [][]int {
	if size <= 0 {
		size = defaultBatchSize
	}
	var chunks [][]int
	for start := 0; start < len(indices); start += size {
		end := min(start+size, len(indices))
		chunks = append(chunks, indices[start:end])
	}
	return chunks
}

// PlaylistEnhancer exports a source playlist and annotates it with match results.
type PlaylistEnhancer struct {
	source services.PlaylistSource
	engine *MatchEngine
}

// NewPlaylistEnhancer creates an enhancer reading from source.
func NewPlaylistEnhancer(source services.PlaylistSource, engine *MatchEngine) *PlaylistEnhancer {
	return &PlaylistEnhancer{source: source, engine: engine}
}

// Enhance exports playlistID, matches every track, and attaches the summary.
func (p *PlaylistEnhancer) Enhance(ctx context.Context, playlistID string, progress chan<- ProgressUpdate) (*models.EnhancedPlaylist, error) {
	if p.source == nil || p.engine == nil {
		return nil, fmt.Errorf("%w: playlist enhancer not initialized", shared.ErrServiceUnavailable)
	}

	sendProgress(progress, fetchSourceUpdate(p.source.Name()))
	export, err := p.source.ExportPlaylist(ctx, playlistID)
	if err != nil {
		return nil, err
	}
	sendProgress(progress, foundPlaylistUpdate(export))

	results := p.engine.MatchAll(ctx, export.Tracks(), progress)

	items := make([]models.EnhancedItem, len(results))
	for i, r := range results {
		items[i] = models.EnhancedItem{AddedAt: export.Items[i].AddedAt, Track: r}
	}

	summary := Summarize(results)
	sendProgress(progress, summaryUpdate(summary))

	return &models.EnhancedPlaylist{
		Playlist: export.Playlist,
		Tracks:   models.EnhancedTracks{Total: len(items), Items: items},
		Stats:    summary,
	}, nil
}

// Resolve implements the orchestrator's playlist resolver without progress reporting.
func (p *PlaylistEnhancer) Resolve(ctx context.Context, playlistID string) (*models.EnhancedPlaylist, error) {
	return p.Enhance(ctx, playlistID, nil)
}
