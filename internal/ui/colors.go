package ui

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/hbarnett99/so-you-made-a-mix/internal/models"
)

var styles = NewPalette("#7D56F4", "#04B575", "#FF4672", "#FFA500", "#626262")

// struct Palette is a simple stylesheet built with named [lipgloss.Style] fields
type Palette struct {
	title lipgloss.Style
	ok    lipgloss.Style
	err   lipgloss.Style
	warn  lipgloss.Style
	help  lipgloss.Style
	box   lipgloss.Style
}

func NewPalette(t, s, e, w, h string) *Palette {
	return &Palette{
		title: NewBold(t).MarginBottom(1),
		ok:    NewBold(s),
		err:   NewBold(e),
		warn:  NewStyle(w),
		help:  NewEm(h),
		box:   lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color(h)).Padding(0, 1),
	}
}

func NewStyle(fg string) lipgloss.Style {
	return lipgloss.NewStyle().Foreground(lipgloss.Color(fg))
}

func NewBold(fg string) lipgloss.Style {
	return NewStyle(fg).Bold(true)
}

func NewEm(fg string) lipgloss.Style {
	return NewStyle(fg).Italic(true)
}

// jobStatus renders a job status in its state color.
func (p *Palette) jobStatus(s models.JobStatus) string {
	switch s {
	case models.JobCompleted:
		return p.ok.Render(string(s))
	case models.JobFailed:
		return p.err.Render(string(s))
	case models.JobZipping:
		return p.warn.Render(string(s))
	default:
		return p.title.UnsetMarginBottom().Render(string(s))
	}
}

// matchStatus renders a match outcome in its color.
func (p *Palette) matchStatus(s models.MatchStatus) string {
	switch s {
	case models.MatchStatusMatched:
		return p.ok.Render("✓ matched")
	case models.MatchStatusNotFound:
		return p.warn.Render("✗ not found")
	case models.MatchStatusError:
		return p.err.Render("! error")
	default:
		return p.help.Render("– no isrc")
	}
}
