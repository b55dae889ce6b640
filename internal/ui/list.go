package ui

import (
	"fmt"

	"github.com/charmbracelet/bubbles/list"
	"github.com/hbarnett99/so-you-made-a-mix/internal/models"
)

var _ list.Item = matchItem{}

// matchItem wraps [models.MatchResult] to implement [list.Item].
type matchItem struct {
	result models.MatchResult
}

func (i matchItem) FilterValue() string { return i.result.Source.DisplayName() }
func (i matchItem) Title() string       { return i.result.Source.DisplayName() }
func (i matchItem) Description() string {
	desc := styles.matchStatus(i.result.Status)
	if c := i.result.Candidate; c != nil {
		desc = fmt.Sprintf("%s • %s", desc, c.Title)
		if c.AudioQuality != "" {
			desc = fmt.Sprintf("%s • %s", desc, c.AudioQuality)
		}
	} else if i.result.Error != "" {
		desc = fmt.Sprintf("%s • %s", desc, i.result.Error)
	}
	return desc
}

func matchItems(p *models.EnhancedPlaylist) []list.Item {
	items := make([]list.Item, len(p.Tracks.Items))
	for i, item := range p.Tracks.Items {
		items[i] = matchItem{result: item.Track}
	}
	return items
}
