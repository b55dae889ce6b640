package tasks

import (
	"math"

	"github.com/hbarnett99/so-you-made-a-mix/internal/models"
)

// Summarize counts results by status and derives the match and code availability rates.
//
// Rates are percentages rounded to one decimal place and are 0 for an empty input.
func Summarize(results []models.MatchResult) models.MatchSummary {
	s := models.MatchSummary{Total: len(results)}
	for _, r := range results {
		switch r.Status {
		case models.MatchStatusMatched:
			s.Matched++
		case models.MatchStatusNoCode:
			s.NoCode++
		case models.MatchStatusNotFound:
			s.NotFound++
		case models.MatchStatusError:
			s.Errors++
		}
	}

	if s.Total > 0 {
		s.MatchRate = percent(s.Matched, s.Total)
		s.CodeAvailabilityRate = percent(s.Total-s.NoCode, s.Total)
	}
	return s
}

func percent(n, total int) float64 {
	return math.Round(float64(n)/float64(total)*1000) / 10
}
