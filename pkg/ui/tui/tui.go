package tui

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"

	"forkcrawl/pkg/crawler"
)

// TUI is the full-screen crawl dashboard. It implements crawler.Observer;
// events are forwarded to the bubbletea program as messages.
type TUI struct {
	program *tea.Program
	model   *Model
}

// NewTUI creates a dashboard for a run over total projects. onQuit runs
// when the user presses q, and should cancel the crawl context.
func NewTUI(total int, onQuit func(), opts ...tea.ProgramOption) *TUI {
	model := NewModel(total, onQuit)
	if len(opts) == 0 {
		opts = []tea.ProgramOption{tea.WithAltScreen()}
	}
	program := tea.NewProgram(model, opts...)

	return &TUI{
		program: program,
		model:   model,
	}
}

// Start runs the program until the user quits
func (t *TUI) Start() error {
	_, err := t.program.Run()
	return err
}

// Stop stops the TUI
func (t *TUI) Stop() {
	t.program.Quit()
}

// Send sends a message to the TUI
func (t *TUI) Send(msg tea.Msg) {
	if t.program != nil {
		t.program.Send(msg)
	}
}

// Model exposes the dashboard state
func (t *TUI) Model() *Model {
	return t.model
}

// ProjectStarted implements crawler.Observer
func (t *TUI) ProjectStarted(project string, index, total, startPage int) {
	t.Send(ProjectStartedMsg{Project: project, Index: index, Total: total, StartPage: startPage})
}

// PageFetched implements crawler.Observer
func (t *TUI) PageFetched(ev crawler.PageEvent) {
	t.Send(PageFetchedMsg(ev))
}

// ProjectFinished implements crawler.Observer
func (t *TUI) ProjectFinished(out crawler.Outcome) {
	t.Send(ProjectFinishedMsg(out))
}

// RunFinished reports the end of the run to the log panel
func (t *TUI) RunFinished(s crawler.Summary, err error) {
	t.Send(RunFinishedMsg{Summary: s, Err: err})
}

// Log sends a log message to the TUI
func (t *TUI) Log(level, format string, args ...interface{}) {
	t.Send(LogMsg{Level: level, Message: fmt.Sprintf(format, args...)})
}

// LogInfo logs an info message
func (t *TUI) LogInfo(format string, args ...interface{}) {
	t.Log("INFO", format, args...)
}

// LogWarning logs a warning message
func (t *TUI) LogWarning(format string, args ...interface{}) {
	t.Log("WARN", format, args...)
}
