package tui

import (
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"forkcrawl/pkg/crawler"
)

// ProjectRow is the dashboard's view of one project
type ProjectRow struct {
	Project   string
	State     crawler.State
	Skipped   bool
	StartPage int
	Page      int
	InRange   int
	AllTime   int
	Err       error
}

// Quota is the last known quota of the active credential
type Quota struct {
	Credential string
	Remaining  int
	Limit      int
	ResetAt    time.Time
}

// Model represents the TUI model
type Model struct {
	// UI components
	spinner     spinner.Model
	progressBar progress.Model

	// Crawl state
	rows    map[string]*ProjectRow
	order   []string
	total   int
	current string
	pages   int
	summary *crawler.Summary

	quota Quota

	sessionStartTime time.Time

	// UI state
	width          int
	height         int
	showHelp       bool
	logMessages    []LogMessage
	maxLogMessages int

	// onQuit runs when the user quits, typically cancelling the crawl
	onQuit func()

	mu sync.RWMutex
}

// LogMessage represents a log entry
type LogMessage struct {
	Time    time.Time
	Level   string
	Message string
	Color   lipgloss.Color
}

// NewModel creates a model for a run over total projects
func NewModel(total int, onQuit func()) *Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(neonCyan)

	p := progress.New(progress.WithDefaultGradient())
	p.Width = 40

	return &Model{
		spinner:          s,
		progressBar:      p,
		rows:             make(map[string]*ProjectRow),
		total:            total,
		quota:            Quota{Remaining: -1},
		sessionStartTime: time.Now(),
		maxLogMessages:   50,
		onQuit:           onQuit,
	}
}

// Init initializes the model
func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, tickCmd())
}

// StartProject marks a project as in progress
func (m *Model) StartProject(project string, index, total, startPage int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	row, ok := m.rows[project]
	if !ok {
		row = &ProjectRow{Project: project}
		m.rows[project] = row
		m.order = append(m.order, project)
	}
	row.State = crawler.StateInProgress
	row.StartPage = startPage
	row.Page = startPage - 1
	row.Err = nil

	m.current = project
	if total > m.total {
		m.total = total
	}
}

// RecordPage applies a page event to its project row and the quota panel
func (m *Model) RecordPage(ev crawler.PageEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if row, ok := m.rows[ev.Project]; ok {
		row.Page = ev.Page
		row.InRange = ev.InRange
		row.AllTime = ev.AllTime
	}
	m.pages++

	if ev.Credential != "" {
		m.quota = Quota{
			Credential: ev.Credential,
			Remaining:  ev.Remaining,
			Limit:      ev.Limit,
			ResetAt:    ev.ResetAt,
		}
	}
}

// FinishProject records the final state of a project
func (m *Model) FinishProject(out crawler.Outcome) {
	m.mu.Lock()
	defer m.mu.Unlock()

	row, ok := m.rows[out.Project]
	if !ok {
		row = &ProjectRow{Project: out.Project}
		m.rows[out.Project] = row
		m.order = append(m.order, out.Project)
	}
	row.State = out.State
	row.Skipped = out.Skipped
	row.Page = out.LastPage
	row.InRange = out.InRange
	row.AllTime = out.AllTime
	row.Err = out.Err

	if m.current == out.Project {
		m.current = ""
	}
}

// SetSummary stores the run summary once the crawl returns
func (m *Model) SetSummary(s crawler.Summary) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.summary = &s
}

// AddLogMessage adds a log message
func (m *Model) AddLogMessage(level, message string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	color := dimWhite
	switch level {
	case "ERROR":
		color = lipgloss.Color("#FF0000")
	case "WARN":
		color = neonOrange
	case "SUCCESS":
		color = neonGreen
	case "INFO":
		color = neonCyan
	}

	m.logMessages = append(m.logMessages, LogMessage{
		Time:    time.Now(),
		Level:   level,
		Message: message,
		Color:   color,
	})

	if len(m.logMessages) > m.maxLogMessages {
		m.logMessages = m.logMessages[len(m.logMessages)-m.maxLogMessages:]
	}
}

// Rows returns copies of the project rows in the order they were first seen
func (m *Model) Rows() []ProjectRow {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.rowsLocked()
}

func (m *Model) rowsLocked() []ProjectRow {
	rows := make([]ProjectRow, 0, len(m.order))
	for _, project := range m.order {
		rows = append(rows, *m.rows[project])
	}
	return rows
}

// Counts holds per-state project counts
type Counts struct {
	Completed int
	Skipped   int
	Deferred  int
	Active    int
}

// Counts tallies projects by state
func (m *Model) Counts() Counts {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.countsLocked()
}

func (m *Model) countsLocked() Counts {
	var c Counts
	for _, row := range m.rows {
		switch {
		case row.Skipped:
			c.Skipped++
		case row.State == crawler.StateCompleted:
			c.Completed++
		case row.State == crawler.StateDeferred:
			c.Deferred++
		case row.State == crawler.StateInProgress:
			c.Active++
		}
	}
	return c
}

// Quota returns the last known quota of the active credential
func (m *Model) Quota() Quota {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.quota
}

// FormatCount formats large counts compactly (1.2k, 3.4M)
func FormatCount(n int) string {
	switch {
	case n < 1000:
		return fmt.Sprintf("%d", n)
	case n < 1000000:
		return fmt.Sprintf("%.1fk", float64(n)/1000)
	default:
		return fmt.Sprintf("%.1fM", float64(n)/1000000)
	}
}
