package ui

import (
	"context"
	"fmt"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/hbarnett99/so-you-made-a-mix/internal/models"
	"github.com/hbarnett99/so-you-made-a-mix/internal/tasks"
)

// Enhancer matches a playlist while streaming progress.
type Enhancer interface {
	Enhance(ctx context.Context, playlistID string, progress chan<- tasks.ProgressUpdate) (*models.EnhancedPlaylist, error)
}

// MatchModel runs a matching pass with live progress, then lists every track with its outcome.
type MatchModel struct {
	ctx        context.Context
	enhancer   Enhancer
	playlistID string

	width, height int
	progressChan  chan tasks.ProgressUpdate
	resultChan    chan matchCompleteMsg
	update        tasks.ProgressUpdate
	spinner       spinner.Model
	bar           progress.Model
	results       list.Model
	playlist      *models.EnhancedPlaylist
	done          bool
	err           error
	help          help.Model
	keys          keyMap
}

// NewMatchModel creates a model that matches playlistID once started.
func NewMatchModel(ctx context.Context, enhancer Enhancer, playlistID string) *MatchModel {
	return &MatchModel{
		ctx:        ctx,
		enhancer:   enhancer,
		playlistID: playlistID,
		spinner:    spinner.New(spinner.WithSpinner(spinner.Dot), spinner.WithStyle(styles.title.UnsetMarginBottom())),
		bar:        progress.New(progress.WithDefaultGradient()),
		help:       help.New(),
		keys:       newKeyMap(),
	}
}

// Playlist returns the matched playlist once the pass finished.
func (m *MatchModel) Playlist() *models.EnhancedPlaylist { return m.playlist }

// Err returns the error that ended the pass, if any.
func (m *MatchModel) Err() error { return m.err }

// Init starts matching and the spinner.
func (m *MatchModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.start())
}

// Update handles incoming messages and updates the model state.
func (m *MatchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.bar.Width = max(msg.Width-8, 10)
		if m.done && m.playlist != nil {
			m.results.SetSize(msg.Width-4, msg.Height-8)
		}
		return m, nil

	case tea.KeyMsg:
		if m.done && m.playlist != nil && m.results.FilterState() == list.Filtering {
			break
		}
		if key.Matches(msg, m.keys.quit) {
			return m, tea.Quit
		}

	case spinner.TickMsg:
		if m.done {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case progressUpdateMsg:
		m.update = tasks.ProgressUpdate(msg)
		return m, m.waitForProgress()

	case matchCompleteMsg:
		m.done = true
		m.playlist = msg.playlist
		m.err = msg.err
		if m.playlist != nil {
			m.results = list.New(matchItems(m.playlist), list.NewDefaultDelegate(), m.width-4, m.height-8)
			m.results.Title = fmt.Sprintf("%s • %d/%d matched (%.1f%%)",
				m.playlist.Name, m.playlist.Stats.Matched, m.playlist.Stats.Total, m.playlist.Stats.MatchRate)
		}
		return m, nil
	}

	if m.done && m.playlist != nil {
		var cmd tea.Cmd
		m.results, cmd = m.results.Update(msg)
		return m, cmd
	}
	return m, nil
}

// View renders progress while matching and the result list afterwards.
func (m *MatchModel) View() string {
	if m.err != nil {
		return styles.err.Render(fmt.Sprintf("Matching failed: %v", m.err)) + "\n\n" + m.help.ShortHelpView([]key.Binding{m.keys.quit})
	}
	if m.done && m.playlist != nil {
		return fmt.Sprintf("%s\n%s", m.results.View(), m.help.ShortHelpView([]key.Binding{m.keys.filter, m.keys.quit}))
	}

	title := styles.title.Render("Matching playlist " + m.playlistID)
	line := fmt.Sprintf("%s %s", m.spinner.View(), m.update.Message)
	if m.update.Phase == tasks.MatchTracks && m.update.Total > 0 {
		return fmt.Sprintf("%s\n%s\n\n%s", title, line, m.bar.ViewAs(float64(m.update.Step)/float64(m.update.Total)))
	}
	return fmt.Sprintf("%s\n%s", title, line)
}

func (m *MatchModel) start() tea.Cmd {
	m.progressChan = make(chan tasks.ProgressUpdate, 50)
	m.resultChan = make(chan matchCompleteMsg, 1)
	ch, results := m.progressChan, m.resultChan

	go func() {
		playlist, err := m.enhancer.Enhance(m.ctx, m.playlistID, ch)
		results <- matchCompleteMsg{playlist: playlist, err: err}
		close(ch)
	}()

	return m.waitForProgress()
}

func (m *MatchModel) waitForProgress() tea.Cmd {
	ch, results := m.progressChan, m.resultChan
	return func() tea.Msg {
		update, ok := <-ch
		if !ok {
			return <-results
		}
		return progressUpdateMsg(update)
	}
}
