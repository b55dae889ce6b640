package tasks

import (
	"fmt"

	"github.com/hbarnett99/so-you-made-a-mix/internal/models"
)

// ProgressUpdate represents a progress event during a long-running operation.
//
// Used to send real-time updates to the CLI or UI layer for display.
type ProgressUpdate struct {
	Phase   Phase  // Operation phase
	Step    int    // Current step number within phase
	Total   int    // Total steps in this phase
	Message string // Human-readable message for display
	Data    any    // Optional phase-specific data for advanced UIs
}

// Operation phase enumeration
type Phase int

const (
	FetchSource Phase = iota
	MatchTracks
	SummarizeResults
)

func (p Phase) String() string {
	switch p {
	case FetchSource:
		return "fetch_source"
	case MatchTracks:
		return "match_tracks"
	case SummarizeResults:
		return "summarize"
	default:
		return ""
	}
}

func fetchSourceUpdate(name string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   FetchSource,
		Step:    0,
		Total:   1,
		Message: fmt.Sprintf("Fetching source playlist from %s...", name),
	}
}

func foundPlaylistUpdate(export *models.PlaylistExport) ProgressUpdate {
	return ProgressUpdate{
		Phase:   FetchSource,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Found playlist: %s (%d tracks)", export.Playlist.Name, len(export.Items)),
		Data:    export,
	}
}

func matchChunkUpdate(step, total int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   MatchTracks,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] Matching tracks...", step, total),
	}
}

func summaryUpdate(s models.MatchSummary) ProgressUpdate {
	return ProgressUpdate{
		Phase:   SummarizeResults,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Matched %d of %d tracks (%.1f%%)", s.Matched, s.Total, s.MatchRate),
		Data:    s,
	}
}
