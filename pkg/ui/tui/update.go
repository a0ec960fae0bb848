package tui

import (
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"forkcrawl/pkg/crawler"
)

// Message types for the TUI

// ProjectStartedMsg is sent when the crawler begins a project
type ProjectStartedMsg struct {
	Project   string
	Index     int
	Total     int
	StartPage int
}

// PageFetchedMsg is sent for every recorded page
type PageFetchedMsg crawler.PageEvent

// ProjectFinishedMsg is sent when a project reaches a final state
type ProjectFinishedMsg crawler.Outcome

// RunFinishedMsg is sent once the whole run returns
type RunFinishedMsg struct {
	Summary crawler.Summary
	Err     error
}

// LogMsg is sent to add a log message
type LogMsg struct {
	Level   string
	Message string
}

// TickMsg is sent periodically to update the UI
type TickMsg time.Time

// Update handles all messages and updates the model
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKeyPress(msg)

	case tea.WindowSizeMsg:
		m.mu.Lock()
		m.width = msg.Width
		m.height = msg.Height
		m.mu.Unlock()
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case progress.FrameMsg:
		updated, cmd := m.progressBar.Update(msg)
		if bar, ok := updated.(progress.Model); ok {
			m.progressBar = bar
		}
		return m, cmd

	case TickMsg:
		return m, tickCmd()

	case ProjectStartedMsg:
		m.StartProject(msg.Project, msg.Index, msg.Total, msg.StartPage)
		if msg.StartPage > 1 {
			m.AddLogMessage("INFO", fmt.Sprintf("%s: resuming at page %d", msg.Project, msg.StartPage))
		} else {
			m.AddLogMessage("INFO", fmt.Sprintf("%s: started", msg.Project))
		}
		return m, nil

	case PageFetchedMsg:
		m.RecordPage(crawler.PageEvent(msg))
		return m, nil

	case ProjectFinishedMsg:
		out := crawler.Outcome(msg)
		m.FinishProject(out)
		m.AddLogMessage(outcomeLog(out))
		return m, m.progressCmd()

	case RunFinishedMsg:
		m.SetSummary(msg.Summary)
		level, text := "SUCCESS", fmt.Sprintf("run finished: %d succeeded, %d skipped, %d failed",
			msg.Summary.Succeeded, msg.Summary.Skipped, msg.Summary.Failed)
		if msg.Err != nil {
			level = "WARN"
			text = fmt.Sprintf("run stopped: %v", msg.Err)
		}
		m.AddLogMessage(level, text)
		return m, nil

	case LogMsg:
		m.AddLogMessage(msg.Level, msg.Message)
		return m, nil
	}

	return m, nil
}

func outcomeLog(out crawler.Outcome) (string, string) {
	switch {
	case out.Skipped:
		return "INFO", out.Project + ": already complete"
	case out.State == crawler.StateCompleted:
		return "SUCCESS", fmt.Sprintf("%s: %d in window, %d all time", out.Project, out.InRange, out.AllTime)
	case out.State == crawler.StateDeferred:
		return "ERROR", fmt.Sprintf("%s: deferred at page %d: %v", out.Project, out.LastPage, out.Err)
	default:
		return "WARN", fmt.Sprintf("%s: interrupted at page %d", out.Project, out.LastPage)
	}
}

// progressCmd animates the overall progress bar to the finished share
func (m *Model) progressCmd() tea.Cmd {
	m.mu.RLock()
	c := m.countsLocked()
	total := m.total
	m.mu.RUnlock()

	if total == 0 {
		return nil
	}
	return m.progressBar.SetPercent(float64(c.Completed+c.Skipped+c.Deferred) / float64(total))
}

func (m *Model) handleKeyPress(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "Q", "ctrl+c":
		if m.onQuit != nil {
			m.onQuit()
		}
		return m, tea.Quit

	case "?":
		m.mu.Lock()
		m.showHelp = !m.showHelp
		m.mu.Unlock()
		return m, nil

	case "ctrl+l":
		m.mu.Lock()
		m.logMessages = nil
		m.mu.Unlock()
		return m, nil
	}

	return m, nil
}

func tickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return TickMsg(t)
	})
}
