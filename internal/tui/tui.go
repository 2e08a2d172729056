// Package tui provides a Bubble Tea terminal user interface for wfmu-downloader.
package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"github.com/handiism/wfmu-downloader/internal/config"
	"github.com/handiism/wfmu-downloader/internal/download"
	"github.com/handiism/wfmu-downloader/internal/model"
	"github.com/mattn/go-runewidth"
)

// Styles for the TUI
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FF6B6B")).
			MarginBottom(1)

	subtitleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#4ECDC4"))

	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#95E1A3"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	warningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFE66D"))

	infoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#A8DADC"))

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#6C757D"))

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#4ECDC4")).
			Padding(1, 2)

	workerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#F8B500"))
)

// ErrCancelled is reported when the user stops a run.
var ErrCancelled = errors.New("cancelled by user")

// State represents the current UI state.
type State int

const (
	StateInput State = iota
	StateListing
	StateDownloading
	StateComplete
	StateError
)

// LogEntry represents a log message in the UI.
type LogEntry struct {
	Message string
	Level   download.ProgressLevel
}

// Model is the Bubble Tea model for the TUI.
type Model struct {
	state     State
	textInput textinput.Model
	spinner   spinner.Model
	progress  progress.Model
	settings  *config.Settings
	workers   int
	logs      []LogEntry
	err       error

	// Run context
	ctx    context.Context
	cancel context.CancelFunc

	manager  *download.Manager
	episodes []model.Episode
	observer *runObserver
	events   eventQueue
	summary  *download.Summary

	// onEvent also receives every progress event (file logging).
	onEvent func(download.ProgressEvent)

	// Download progress
	filesDone     int32
	filesFailed   int32
	filesTotal    int32
	receivedBytes int64

	// Options
	browser  bool
	playlist bool
	tags     bool
	verbose  bool

	width  int
	height int
}

// NewModel creates a new TUI model. onEvent may be nil.
func NewModel(settings *config.Settings, workers int, onEvent func(download.ProgressEvent)) Model {
	if settings == nil {
		settings = config.DefaultSettings()
	}

	ti := textinput.New()
	ti.Placeholder = settings.ArchiveURL
	ti.SetValue(settings.ArchiveURL)
	ti.Focus()
	ti.CharLimit = 500
	ti.Width = 60

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF6B6B"))

	prog := progress.New(progress.WithDefaultGradient())
	prog.Width = 50

	ctx, cancel := context.WithCancel(context.Background())

	return Model{
		state:     StateInput,
		textInput: ti,
		spinner:   sp,
		progress:  prog,
		settings:  settings,
		workers:   workers,
		logs:      make([]LogEntry, 0),
		ctx:       ctx,
		cancel:    cancel,
		onEvent:   onEvent,
		browser:   settings.UseBrowser,
		playlist:  settings.CreatePlaylist,
		tags:      settings.ModifyTags,
	}
}

// Init initializes the model.
func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.spinner.Tick)
}

// Message types
type (
	// ProgressMsg is sent when the pipeline reports an event.
	ProgressMsg struct {
		Event download.ProgressEvent
	}

	// ListDoneMsg is sent when the archive page has been read.
	ListDoneMsg struct {
		Episodes []model.Episode
		Manager  *download.Manager
		Observer *runObserver
		Events   eventQueue
		Err      error
	}

	// DownloadDoneMsg is sent when all workers are done.
	DownloadDoneMsg struct {
		Summary *download.Summary
		Err     error
	}

	// TickMsg is for periodic progress updates.
	TickMsg struct{}
)

// Update handles messages and updates the model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.progress.Width = min(max(msg.Width-20, 20), 80)
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			m.cancel()
			return m, tea.Quit

		case "esc":
			if m.state == StateInput {
				return m, tea.Quit
			}
			if m.state == StateDownloading || m.state == StateListing {
				m.cancel()
				m.state = StateError
				m.err = ErrCancelled
			}

		case "enter":
			if m.state == StateInput && strings.TrimSpace(m.textInput.Value()) != "" {
				m.state = StateListing
				return m, tea.Batch(m.listEpisodes(), m.spinner.Tick)
			}

		case "ctrl+b":
			if m.state == StateInput {
				m.browser = !m.browser
			}

		case "ctrl+p":
			if m.state == StateInput {
				m.playlist = !m.playlist
			}

		case "ctrl+t":
			if m.state == StateInput {
				m.tags = !m.tags
			}

		case "ctrl+o":
			if m.state == StateInput {
				m.verbose = !m.verbose
			}

		case "q":
			if m.state == StateComplete || m.state == StateError {
				return m, tea.Quit
			}

		case "r":
			if m.state == StateComplete || m.state == StateError {
				return m.reset(), textinput.Blink
			}
		}

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		cmds = append(cmds, cmd)

	case ProgressMsg:
		cmds = append(cmds, waitForEvent(m.events))
		if msg.Event.Level == download.LevelVerbose && !m.verbose {
			break
		}
		m.logs = append(m.logs, LogEntry{
			Message: msg.Event.Message,
			Level:   msg.Event.Level,
		})
		// Keep only last 10 logs
		if len(m.logs) > 10 {
			m.logs = m.logs[len(m.logs)-10:]
		}

	case ListDoneMsg:
		if m.state != StateListing {
			break
		}
		switch {
		case msg.Err != nil:
			m.state = StateError
			m.err = msg.Err
		case len(msg.Episodes) == 0:
			m.state = StateError
			m.err = fmt.Errorf("no episodes found at %s", m.textInput.Value())
		default:
			m.episodes = msg.Episodes
			m.manager = msg.Manager
			m.observer = msg.Observer
			m.events = msg.Events
			m.state = StateDownloading
			cmds = append(cmds, m.startDownload(), m.tickProgress(), waitForEvent(m.events))
		}

	case DownloadDoneMsg:
		m.summary = msg.Summary
		m.refreshProgress()
		switch {
		case m.ctx.Err() != nil:
			m.state = StateError
			m.err = ErrCancelled
		case msg.Err != nil:
			m.state = StateError
			m.err = msg.Err
		default:
			m.state = StateComplete
		}

	case TickMsg:
		if m.manager != nil && m.state == StateDownloading {
			m.refreshProgress()
			cmds = append(cmds, m.progress.SetPercent(m.percent()), m.tickProgress())
		}

	case progress.FrameMsg:
		progressModel, cmd := m.progress.Update(msg)
		m.progress = progressModel.(progress.Model)
		cmds = append(cmds, cmd)
	}

	// Update text input
	if m.state == StateInput {
		var cmd tea.Cmd
		m.textInput, cmd = m.textInput.Update(msg)
		cmds = append(cmds, cmd)
	}

	return m, tea.Batch(cmds...)
}

// reset prepares the model for another run.
func (m Model) reset() Model {
	m.state = StateInput
	m.logs = nil
	m.err = nil
	m.manager = nil
	m.episodes = nil
	m.observer = nil
	m.events = nil
	m.summary = nil
	m.filesDone, m.filesFailed, m.filesTotal = 0, 0, 0
	m.receivedBytes = 0
	m.ctx, m.cancel = context.WithCancel(context.Background())
	m.textInput.Focus()
	return m
}

func (m *Model) refreshProgress() {
	if m.manager == nil {
		return
	}
	m.receivedBytes, m.filesDone, m.filesFailed, m.filesTotal = m.manager.GetProgress()
}

// percent is the share of episodes that finished, successfully or not.
func (m Model) percent() float64 {
	if m.filesTotal == 0 {
		return 0
	}
	return float64(m.filesDone+m.filesFailed) / float64(m.filesTotal)
}

// tickProgress returns a command to tick progress updates.
func (m Model) tickProgress() tea.Cmd {
	return tea.Tick(200*time.Millisecond, func(_ time.Time) tea.Msg {
		return TickMsg{}
	})
}

// waitForEvent delivers the next pipeline event. It returns nil once the
// run is over and the queue is closed.
func waitForEvent(events eventQueue) tea.Cmd {
	if events == nil {
		return nil
	}
	return func() tea.Msg {
		event, ok := <-events
		if !ok {
			return nil
		}
		return ProgressMsg{Event: event}
	}
}

// View renders the UI.
func (m Model) View() string {
	var b strings.Builder

	// Header
	b.WriteString(titleStyle.Render("WFMU Archive Downloader"))
	b.WriteString("\n")
	b.WriteString(dimStyle.Render("Download every episode of a WFMU playlist archive"))
	b.WriteString("\n\n")

	switch m.state {
	case StateInput:
		b.WriteString(m.viewInput())
	case StateListing:
		b.WriteString(m.viewListing())
	case StateDownloading:
		b.WriteString(m.viewDownloading())
	case StateComplete:
		b.WriteString(m.viewComplete())
	case StateError:
		b.WriteString(m.viewError())
	}

	// Footer
	b.WriteString("\n")
	b.WriteString(dimStyle.Render(m.getHelpText()))

	return b.String()
}

func (m Model) viewInput() string {
	var b strings.Builder

	b.WriteString(subtitleStyle.Render("Archive page URL:"))
	b.WriteString("\n\n")
	b.WriteString(m.textInput.View())
	b.WriteString("\n\n")

	b.WriteString(infoStyle.Render("Options:"))
	b.WriteString("\n")
	b.WriteString(fmt.Sprintf("  %s Render page in headless browser (ctrl+b)\n", check(m.browser)))
	b.WriteString(fmt.Sprintf("  %s Create playlist (ctrl+p)\n", check(m.playlist)))
	b.WriteString(fmt.Sprintf("  %s Write ID3 tags (ctrl+t)\n", check(m.tags)))
	b.WriteString(fmt.Sprintf("  %s Verbose/debug output (ctrl+o)\n", check(m.verbose)))
	b.WriteString("\n")
	b.WriteString(dimStyle.Render(fmt.Sprintf("Download path: %s/%s | Workers: %d",
		m.settings.DownloadsPath, m.settings.PodcastName, m.workers)))
	b.WriteString("\n")

	return b.String()
}

func check(on bool) string {
	if on {
		return "[x]"
	}
	return "[ ]"
}

func (m Model) viewListing() string {
	var b strings.Builder

	b.WriteString(m.spinner.View())
	b.WriteString(" ")
	b.WriteString(subtitleStyle.Render("Reading archive page..."))
	b.WriteString("\n\n")

	b.WriteString(m.renderLogs())

	return b.String()
}

func (m Model) viewDownloading() string {
	var b strings.Builder

	if m.observer != nil {
		b.WriteString(successStyle.Render(fmt.Sprintf("Updating %s (%d episodes)", m.observer.name(), len(m.episodes))))
		b.WriteString("\n")
		b.WriteString(m.renderWorkers())
		b.WriteString("\n")
	}

	b.WriteString(m.progress.View())
	b.WriteString("\n")

	b.WriteString(infoStyle.Render(fmt.Sprintf(
		"Episodes: %d/%d | Failed: %d | Downloaded: %s",
		m.filesDone,
		m.filesTotal,
		m.filesFailed,
		humanize.IBytes(uint64(m.receivedBytes)),
	)))
	b.WriteString("\n\n")

	b.WriteString(m.renderLogs())

	return b.String()
}

func (m Model) renderWorkers() string {
	var b strings.Builder

	width := m.width
	if width <= 0 {
		width = 80
	}

	for _, line := range m.observer.lines() {
		prefix := "  "
		style := workerStyle
		switch {
		case strings.HasPrefix(line, "Error "):
			prefix = "✗ "
			style = errorStyle
		case strings.HasPrefix(line, "Finished "), strings.HasPrefix(line, "Cached "):
			prefix = "✓ "
			style = successStyle
		case line == "":
			line = "idle"
			style = dimStyle
		default:
			prefix = m.spinner.View() + " "
		}
		b.WriteString(style.Render(prefix + runewidth.Truncate(line, width-4, "...")))
		b.WriteString("\n")
	}

	return b.String()
}

func (m Model) viewComplete() string {
	var b strings.Builder

	var done, failed int
	var total int64
	if m.summary != nil {
		done = len(m.summary.Episodes)
		failed = m.summary.Failed
		total = m.summary.TotalBytes
	}

	box := boxStyle.Render(fmt.Sprintf(
		"Download Complete!\n\n"+
			"Episodes: %d\n"+
			"Failed: %d\n"+
			"Total size: %s",
		done,
		failed,
		humanize.IBytes(uint64(total)),
	))
	b.WriteString(box)

	return b.String()
}

func (m Model) viewError() string {
	var b strings.Builder

	b.WriteString(errorStyle.Render("Error occurred:"))
	b.WriteString("\n\n")
	if m.err != nil {
		b.WriteString(fmt.Sprintf("  %s", m.err.Error()))
	}

	return b.String()
}

func (m Model) renderLogs() string {
	var b strings.Builder

	for _, log := range m.logs {
		var style lipgloss.Style
		prefix := "•"
		switch log.Level {
		case download.LevelError:
			style = errorStyle
			prefix = "✗"
		case download.LevelWarning:
			style = warningStyle
			prefix = "!"
		case download.LevelSuccess:
			style = successStyle
			prefix = "✓"
		case download.LevelInfo:
			style = infoStyle
			prefix = "›"
		default:
			style = dimStyle
		}
		b.WriteString(style.Render(prefix + " " + log.Message))
		b.WriteString("\n")
	}

	return b.String()
}

func (m Model) getHelpText() string {
	switch m.state {
	case StateInput:
		return "enter: start • ctrl+b: browser • ctrl+p: playlist • ctrl+t: tags • ctrl+o: verbose • esc: quit"
	case StateListing, StateDownloading:
		return "esc: cancel"
	case StateComplete, StateError:
		return "r: new download • q: quit"
	}
	return ""
}

// runSettings copies the settings with the options chosen on screen.
func (m Model) runSettings() *config.Settings {
	settings := *m.settings
	settings.ArchiveURL = strings.TrimSpace(m.textInput.Value())
	settings.UseBrowser = m.browser
	settings.CreatePlaylist = m.playlist
	settings.ModifyTags = m.tags
	return &settings
}

// listEpisodes reads the archive page and prepares the manager.
func (m Model) listEpisodes() tea.Cmd {
	settings := m.runSettings()
	ctx := m.ctx
	onEvent := m.onEvent

	return func() tea.Msg {
		events := newEventQueue()
		observer := &runObserver{}

		manager, err := download.NewManagerFromSettings(settings, m.workers, observer, func(event download.ProgressEvent) {
			events.send(event)
			if onEvent != nil {
				onEvent(event)
			}
		})
		if err != nil {
			return ListDoneMsg{Err: err}
		}

		episodes, err := settings.ToLister().List(ctx, settings.ArchiveURL)
		if err != nil {
			return ListDoneMsg{Err: err}
		}

		return ListDoneMsg{
			Episodes: episodes,
			Manager:  manager,
			Observer: observer,
			Events:   events,
		}
	}
}

// startDownload runs the pipeline in the background.
func (m Model) startDownload() tea.Cmd {
	manager := m.manager
	episodes := m.episodes
	events := m.events
	ctx := m.ctx

	return func() tea.Msg {
		summary, err := manager.Run(ctx, episodes)
		close(events)
		return DownloadDoneMsg{Summary: summary, Err: err}
	}
}

// Run starts the TUI application.
func Run(settings *config.Settings, workers int, onEvent func(download.ProgressEvent)) error {
	p := tea.NewProgram(NewModel(settings, workers, onEvent), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
