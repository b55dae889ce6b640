package models

import "strings"

// Artist is a credited artist on either catalog.
type Artist struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Album is the parent release summary of a track.
type Album struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	ReleaseDate string `json:"releaseDate,omitempty"`
	Cover       string `json:"cover,omitempty"`
}

// Track represents a source catalog track. ISRC is empty when the catalog reports none.
type Track struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	Artists    []Artist `json:"artists"`
	Album      Album    `json:"album"`
	ISRC       string   `json:"isrc,omitempty"`
	DurationMS int      `json:"durationMs"`
	Explicit   bool     `json:"explicit"`
	Popularity int      `json:"popularity"`
	URL        string   `json:"url,omitempty"`
}

// HasCode reports whether the track carries a usable recording code.
func (t Track) HasCode() bool {
	return NormalizeCode(t.ISRC) != ""
}

// DisplayName renders "Artist - Title", or just the title when no artist is credited.
func (t Track) DisplayName() string {
	if len(t.Artists) == 0 {
		return t.Name
	}
	return t.Artists[0].Name + " - " + t.Name
}

// CandidateTrack represents a target catalog track matched by recording code.
type CandidateTrack struct {
	ID           string   `json:"id"`
	Title        string   `json:"title"`
	Artists      []Artist `json:"artists"`
	ISRC         string   `json:"isrc"`
	Duration     int      `json:"duration"` // seconds
	AudioQuality string   `json:"audioQuality,omitempty"`
	URL          string   `json:"url"`
	Explicit     bool     `json:"explicit"`
	Popularity   float64  `json:"popularity"`
	Album        Album    `json:"album"`
}

// NormalizeCode trims and upper-cases a recording code so codes from both catalogs compare equal.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
