package models

// MatchStatus is the outcome of matching one source track.
type MatchStatus string

const (
	MatchStatusMatched  MatchStatus = "matched"
	MatchStatusNoCode   MatchStatus = "no_code"
	MatchStatusNotFound MatchStatus = "not_found"
	MatchStatusError    MatchStatus = "error"
)

// MatchResult pairs a source track with its candidate, if any.
//
// Status is matched exactly when Candidate is set, and no_code exactly when the source has no code.
type MatchResult struct {
	ISRC      *string         `json:"isrc"`
	Source    Track           `json:"spotify"`
	Candidate *CandidateTrack `json:"tidal"`
	Status    MatchStatus     `json:"matchStatus"`
	Error     string          `json:"error,omitempty"`
}

func codeOf(t Track) *string {
	code := NormalizeCode(t.ISRC)
	return &code
}

// NewMatchedResult records a successful match.
func NewMatchedResult(t Track, c CandidateTrack) MatchResult {
	return MatchResult{ISRC: codeOf(t), Source: t, Candidate: &c, Status: MatchStatusMatched}
}

// NewNoCodeResult records a track that could not be looked up because it has no code.
func NewNoCodeResult(t Track) MatchResult {
	return MatchResult{Source: t, Status: MatchStatusNoCode}
}

// NewNotFoundResult records a code with no candidate in the target catalog.
func NewNotFoundResult(t Track) MatchResult {
	return MatchResult{ISRC: codeOf(t), Source: t, Status: MatchStatusNotFound}
}

// NewErrorResult records a lookup failure for this track only.
func NewErrorResult(t Track, err error) MatchResult {
	r := MatchResult{ISRC: codeOf(t), Source: t, Status: MatchStatusError}
	if err != nil {
		r.Error = err.Error()
	}
	return r
}

// MatchSummary aggregates a matching pass. Rates are percentages with one decimal place.
type MatchSummary struct {
	Total                int     `json:"total"`
	Matched              int     `json:"matched"`
	NoCode               int     `json:"noCode"`
	NotFound             int     `json:"notFound"`
	Errors               int     `json:"errors"`
	MatchRate            float64 `json:"matchRate"`
	CodeAvailabilityRate float64 `json:"codeAvailabilityRate"`
}

// Playlist is source playlist metadata.
type Playlist struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Owner       string `json:"owner"`
	Public      bool   `json:"public"`
	Image       string `json:"image,omitempty"`
	URL         string `json:"url,omitempty"`
	TrackCount  int    `json:"trackCount"`
}

// PlaylistItem is one entry of a source playlist.
type PlaylistItem struct {
	AddedAt string `json:"added_at"`
	Track   Track  `json:"track"`
}

// PlaylistExport is a source playlist with every track.
type PlaylistExport struct {
	Playlist Playlist       `json:"playlist"`
	Items    []PlaylistItem `json:"items"`
}

// Tracks returns the playlist's tracks in order.
func (p *PlaylistExport) Tracks() []Track {
	tracks := make([]Track, len(p.Items))
	for i, item := range p.Items {
		tracks[i] = item.Track
	}
	return tracks
}

// EnhancedItem is a playlist entry annotated with its match result.
type EnhancedItem struct {
	AddedAt string      `json:"added_at"`
	Track   MatchResult `json:"track"`
}

// EnhancedTracks mirrors the source catalog's paging envelope.
type EnhancedTracks struct {
	Total int            `json:"total"`
	Items []EnhancedItem `json:"items"`
}

// EnhancedPlaylist is a playlist with per-track match results and summary statistics.
type EnhancedPlaylist struct {
	Playlist
	Tracks EnhancedTracks `json:"tracks"`
	Stats  MatchSummary   `json:"tidalMatchingStats"`
}

// Matched returns the results whose status is matched, in playlist order.
func (p *EnhancedPlaylist) Matched() []MatchResult {
	var out []MatchResult
	for _, item := range p.Tracks.Items {
		if item.Track.Status == MatchStatusMatched && item.Track.Candidate != nil {
			out = append(out, item.Track)
		}
	}
	return out
}
