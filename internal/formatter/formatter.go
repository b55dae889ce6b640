// package formatter renders match reports, jobs and cached candidates as terminal tables, CSV and Markdown
package formatter

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/hbarnett99/so-you-made-a-mix/internal/models"
	"github.com/hbarnett99/so-you-made-a-mix/internal/repositories"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/mattn/go-isatty"
)

// ShouldColorize reports whether w is a terminal.
func ShouldColorize(w io.Writer) bool {
	file, ok := w.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

func newTable(headers []string, rightAligned ...int) table.Writer {
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)

	header := make(table.Row, len(headers))
	for i, h := range headers {
		header[i] = h
	}
	tw.AppendHeader(header)

	configs := make([]table.ColumnConfig, len(headers))
	for i := range headers {
		configs[i] = table.ColumnConfig{Number: i + 1, Align: text.AlignLeft, AlignHeader: text.AlignLeft}
	}
	for _, n := range rightAligned {
		if n >= 1 && n <= len(configs) {
			configs[n-1].Align = text.AlignRight
		}
	}
	tw.SetColumnConfigs(configs)
	return tw
}

func statusColor(s models.MatchStatus) text.Colors {
	switch s {
	case models.MatchStatusMatched:
		return text.Colors{text.FgGreen}
	case models.MatchStatusNotFound:
		return text.Colors{text.FgYellow}
	case models.MatchStatusError:
		return text.Colors{text.FgRed}
	default:
		return text.Colors{text.FgHiBlack}
	}
}

func truncate(s string, n int) string {
	if len([]rune(s)) <= n {
		return s
	}
	return string([]rune(s)[:n-1]) + "…"
}

// MatchTable renders one row per playlist entry with its match outcome.
func MatchTable(p *models.EnhancedPlaylist, colorize bool) string {
	tw := newTable([]string{"#", "Track", "ISRC", "Status", "Target", "Quality"}, 1)

	for i, item := range p.Tracks.Items {
		r := item.Track
		status := string(r.Status)
		if colorize {
			status = statusColor(r.Status).Sprint(status)
		}

		target, quality := "", ""
		if r.Candidate != nil {
			target = r.Candidate.ID
			quality = r.Candidate.AudioQuality
		} else if r.Error != "" {
			target = truncate(r.Error, 40)
		}

		tw.AppendRow(table.Row{i + 1, truncate(r.Source.DisplayName(), 48), r.Source.ISRC, status, target, quality})
	}
	return tw.Render()
}

// SummaryTable renders the aggregate match statistics.
func SummaryTable(s models.MatchSummary) string {
	tw := newTable([]string{"Metric", "Value"}, 2)
	tw.AppendRows([]table.Row{
		{"Total", s.Total},
		{"Matched", s.Matched},
		{"No code", s.NoCode},
		{"Not found", s.NotFound},
		{"Errors", s.Errors},
		{"Match rate", fmt.Sprintf("%.1f%%", s.MatchRate)},
		{"Code availability", fmt.Sprintf("%.1f%%", s.CodeAvailabilityRate)},
	})
	return tw.Render()
}

// JobTable renders a job as key/value rows.
func JobTable(job *models.DownloadJob) string {
	tw := newTable([]string{"Field", "Value"})
	tw.AppendRows([]table.Row{
		{"Job", job.ID},
		{"Playlist", fmt.Sprintf("%s (%s)", job.PlaylistName, job.PlaylistID)},
		{"Status", job.Status},
		{"Progress", fmt.Sprintf("%d/%d", job.Progress.Current, job.Progress.Total)},
		{"Created", humanize.Time(job.CreatedAt)},
	})
	if job.Progress.CurrentTrack != "" && !job.Status.IsTerminal() {
		tw.AppendRow(table.Row{"Current track", job.Progress.CurrentTrack})
	}
	if job.CompletedAt != nil {
		tw.AppendRow(table.Row{"Finished", job.CompletedAt.Format(time.RFC3339)})
	}
	if job.DownloadURL != "" {
		tw.AppendRow(table.Row{"Download", job.DownloadURL})
	}
	if job.Error != "" {
		tw.AppendRow(table.Row{"Error", job.Error})
	}
	if len(job.FailedTracks) > 0 {
		tw.AppendRow(table.Row{"Failed tracks", strings.Join(job.FailedTracks, ", ")})
	}
	return tw.Render()
}

// CandidateTable renders cached candidates in sequence order.
func CandidateTable(candidates []*repositories.CachedCandidate) string {
	tw := newTable([]string{"#", "ISRC", "Title", "Artist", "Target", "Cached"}, 1)
	for _, c := range candidates {
		artist := ""
		if len(c.Artists) > 0 {
			artist = c.Artists[0].Name
		}
		tw.AppendRow(table.Row{c.Sequence, c.ISRC, truncate(c.Title, 40), truncate(artist, 24), c.ID, humanize.Time(c.UpdatedAt)})
	}
	return tw.Render()
}

// MatchesToCSV converts match results to CSV with one row per playlist entry.
func MatchesToCSV(p *models.EnhancedPlaylist) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	headers := []string{"Position", "Source ID", "Title", "Artist", "ISRC", "Status", "Target ID", "Target URL", "Quality", "Error"}
	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for i, item := range p.Tracks.Items {
		r := item.Track
		artist := ""
		if len(r.Source.Artists) > 0 {
			artist = r.Source.Artists[0].Name
		}
		record := []string{
			strconv.Itoa(i + 1),
			r.Source.ID,
			r.Source.Name,
			artist,
			r.Source.ISRC,
			string(r.Status),
			"", "", "",
			r.Error,
		}
		if r.Candidate != nil {
			record[6], record[7], record[8] = r.Candidate.ID, r.Candidate.URL, r.Candidate.AudioQuality
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}
	return buf.Bytes(), nil
}

// MatchesToMarkdown renders a match report with the summary and a per-track list.
func MatchesToMarkdown(p *models.EnhancedPlaylist) []byte {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "# %s\n\n", p.Name)
	if p.Description != "" {
		fmt.Fprintf(&buf, "**Description**: %s\n\n", p.Description)
	}
	s := p.Stats
	fmt.Fprintf(&buf, "**Tracks**: %d\n", s.Total)
	fmt.Fprintf(&buf, "**Matched**: %d (%.1f%%)\n", s.Matched, s.MatchRate)
	fmt.Fprintf(&buf, "**With ISRC**: %.1f%%\n\n", s.CodeAvailabilityRate)

	buf.WriteString("## Tracks\n\n")
	for i, item := range p.Tracks.Items {
		r := item.Track
		mark := "[ ]"
		if r.Status == models.MatchStatusMatched {
			mark = "[x]"
		}
		fmt.Fprintf(&buf, "%d. %s %s", i+1, mark, r.Source.DisplayName())
		if r.Candidate != nil && r.Candidate.URL != "" {
			fmt.Fprintf(&buf, " ([%s](%s))", r.Candidate.AudioQuality, r.Candidate.URL)
		} else if r.Status != models.MatchStatusMatched {
			fmt.Fprintf(&buf, " _%s_", strings.ReplaceAll(string(r.Status), "_", " "))
		}
		buf.WriteString("\n")
	}
	return buf.Bytes()
}

// Format names an export format.
type Format string

const (
	FormatTable    Format = "table"
	FormatCSV      Format = "csv"
	FormatMarkdown Format = "markdown"
	FormatJSON     Format = "json"
)

// ParseFormat validates a --format flag value.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case "", FormatTable:
		return FormatTable, nil
	case FormatCSV, FormatMarkdown, FormatJSON:
		return f, nil
	case "md":
		return FormatMarkdown, nil
	default:
		return "", fmt.Errorf("unknown format %q (want table, csv, markdown or json)", s)
	}
}

// WriteMatchReport writes p to path in the given file format.
//
// Defaults to {playlist.ID}_matches.{ext} when path is empty.
func WriteMatchReport(p *models.EnhancedPlaylist, format Format, path string) (string, error) {
	var (
		data []byte
		ext  string
		err  error
	)
	switch format {
	case FormatCSV:
		data, err = MatchesToCSV(p)
		ext = "csv"
	case FormatMarkdown:
		data = MatchesToMarkdown(p)
		ext = "md"
	default:
		return "", fmt.Errorf("format %q cannot be written to a file", format)
	}
	if err != nil {
		return "", err
	}

	if path == "" {
		path = fmt.Sprintf("%s_matches.%s", p.ID, ext)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write report: %w", err)
	}
	return path, nil
}
