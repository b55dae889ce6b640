package ui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/dustin/go-humanize"
	"github.com/hbarnett99/so-you-made-a-mix/internal/models"
)

// DefaultPollInterval is how often the watcher asks for a job's status.
const DefaultPollInterval = time.Second

// JobClient reads and cancels jobs on the API server.
type JobClient interface {
	GetJob(ctx context.Context, jobID string) (*models.DownloadJob, error)
	CancelJob(ctx context.Context, jobID string) error
}

// WatchModel polls a download job and renders its progress until it finishes.
type WatchModel struct {
	ctx      context.Context
	client   JobClient
	jobID    string
	interval time.Duration

	job        *models.DownloadJob
	err        error
	cancelling bool
	spinner    spinner.Model
	bar        progress.Model
	help       help.Model
	keys       keyMap
}

// NewWatchModel creates a watcher for jobID. A non-positive interval uses [DefaultPollInterval].
func NewWatchModel(ctx context.Context, client JobClient, jobID string, interval time.Duration) *WatchModel {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &WatchModel{
		ctx:      ctx,
		client:   client,
		jobID:    jobID,
		interval: interval,
		spinner:  spinner.New(spinner.WithSpinner(spinner.MiniDot)),
		bar:      progress.New(progress.WithDefaultGradient()),
		help:     help.New(),
		keys:     newKeyMap(),
	}
}

// Job returns the last polled job.
func (m *WatchModel) Job() *models.DownloadJob { return m.job }

// Err returns the last polling error.
func (m *WatchModel) Err() error { return m.err }

// Init polls immediately and starts the spinner.
func (m *WatchModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.poll())
}

// Update handles incoming messages and updates the model state.
func (m *WatchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.bar.Width = max(msg.Width-8, 10)
		return m, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.quit):
			return m, tea.Quit
		case key.Matches(msg, m.keys.cancel):
			if m.finished() || m.cancelling {
				return m, nil
			}
			m.cancelling = true
			return m, m.cancelJob()
		}

	case spinner.TickMsg:
		if m.finished() {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case pollTickMsg:
		return m, m.poll()

	case jobPolledMsg:
		m.err = msg.err
		if msg.job != nil {
			m.job = msg.job
		}
		if m.finished() {
			return m, tea.Quit
		}
		return m, m.tick()

	case jobCancelledMsg:
		m.cancelling = false
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		return m, m.poll()
	}

	return m, nil
}

// View renders the job status, progress bar and outcome.
func (m *WatchModel) View() string {
	var b strings.Builder
	b.WriteString(styles.title.Render("Job " + m.jobID))
	b.WriteString("\n")

	if m.job == nil {
		if m.err != nil {
			b.WriteString(styles.err.Render(m.err.Error()))
		} else {
			fmt.Fprintf(&b, "%s waiting for status...", m.spinner.View())
		}
		b.WriteString("\n\n" + m.help.ShortHelpView([]key.Binding{m.keys.quit}))
		return b.String()
	}

	j := m.job
	fmt.Fprintf(&b, "%s • %s\n", j.PlaylistName, styles.jobStatus(j.Status))
	if !m.finished() {
		track := j.Progress.CurrentTrack
		if track == "" {
			track = "starting"
		}
		fmt.Fprintf(&b, "%s %s\n", m.spinner.View(), track)
	}
	fmt.Fprintf(&b, "\n%s %d/%d\n", m.bar.ViewAs(fraction(j.Progress)), j.Progress.Current, j.Progress.Total)

	switch j.Status {
	case models.JobCompleted:
		b.WriteString("\n" + styles.ok.Render("✓ Archive ready: "+j.DownloadURL))
		if n := len(j.FailedTracks); n > 0 {
			b.WriteString("\n" + styles.warn.Render(fmt.Sprintf("%d track(s) could not be downloaded", n)))
		}
	case models.JobFailed:
		b.WriteString("\n" + styles.err.Render("✗ "+j.Error))
	}
	if m.err != nil {
		b.WriteString("\n" + styles.warn.Render(m.err.Error()))
	}
	if m.cancelling {
		b.WriteString("\n" + styles.help.Render("cancelling..."))
	}

	b.WriteString("\n" + styles.help.Render("started "+humanize.Time(j.CreatedAt)))
	keys := []key.Binding{m.keys.quit}
	if !m.finished() {
		keys = []key.Binding{m.keys.cancel, m.keys.quit}
	}
	b.WriteString("\n\n" + m.help.ShortHelpView(keys))
	return b.String()
}

func (m *WatchModel) finished() bool {
	return m.job != nil && m.job.Status.IsTerminal()
}

func (m *WatchModel) poll() tea.Cmd {
	return func() tea.Msg {
		job, err := m.client.GetJob(m.ctx, m.jobID)
		return jobPolledMsg{job: job, err: err}
	}
}

func (m *WatchModel) tick() tea.Cmd {
	return tea.Tick(m.interval, func(t time.Time) tea.Msg { return pollTickMsg(t) })
}

func (m *WatchModel) cancelJob() tea.Cmd {
	return func() tea.Msg {
		return jobCancelledMsg{err: m.client.CancelJob(m.ctx, m.jobID)}
	}
}

func fraction(p models.Progress) float64 {
	if p.Total <= 0 {
		return 0
	}
	return min(float64(p.Current)/float64(p.Total), 1)
}
