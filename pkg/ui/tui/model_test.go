package tui

import (
	"errors"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"forkcrawl/pkg/crawler"
)

func TestModelTracksProjects(t *testing.T) {
	m := NewModel(3, nil)

	m.StartProject("octo/a", 1, 3, 1)
	m.RecordPage(crawler.PageEvent{
		Project: "octo/a", Page: 1, InRange: 40, AllTime: 100,
		Credential: "GITHUB_TOKEN_1", Remaining: 4000, Limit: 5000,
	})
	m.FinishProject(crawler.Outcome{Project: "octo/a", State: crawler.StateCompleted, LastPage: 2, InRange: 40, AllTime: 137})

	m.FinishProject(crawler.Outcome{Project: "octo/b", State: crawler.StateCompleted, Skipped: true})

	m.StartProject("octo/c", 3, 3, 11)
	m.FinishProject(crawler.Outcome{Project: "octo/c", State: crawler.StateDeferred, LastPage: 11, Err: errors.New("gone")})

	rows := m.Rows()
	require.Len(t, rows, 3)
	assert.Equal(t, "octo/a", rows[0].Project)
	assert.Equal(t, 137, rows[0].AllTime)
	assert.Equal(t, 2, rows[0].Page)
	assert.True(t, rows[1].Skipped)
	assert.Equal(t, 11, rows[2].StartPage)
	assert.EqualError(t, rows[2].Err, "gone")

	assert.Equal(t, Counts{Completed: 1, Skipped: 1, Deferred: 1}, m.Counts())
	assert.Equal(t, Quota{Credential: "GITHUB_TOKEN_1", Remaining: 4000, Limit: 5000}, m.Quota())
}

func TestModelKeepsQuotaWhenEventHasNoCredential(t *testing.T) {
	m := NewModel(1, nil)
	m.StartProject("octo/a", 1, 1, 1)
	m.RecordPage(crawler.PageEvent{Project: "octo/a", Page: 1, Credential: "GITHUB_TOKEN_2", Remaining: 10, Limit: 60})
	m.RecordPage(crawler.PageEvent{Project: "octo/a", Page: 2, Remaining: -1})

	assert.Equal(t, "GITHUB_TOKEN_2", m.Quota().Credential)
	assert.Equal(t, 10, m.Quota().Remaining)
}

func TestModelLogMessagesAreBounded(t *testing.T) {
	m := NewModel(1, nil)
	for i := 0; i < 60; i++ {
		m.AddLogMessage("INFO", "message")
	}
	assert.Len(t, m.logMessages, 50)
	assert.Equal(t, neonCyan, m.logMessages[0].Color)
}

func TestUpdateHandlesCrawlerMessages(t *testing.T) {
	m := NewModel(2, nil)

	m.Update(ProjectStartedMsg{Project: "octo/a", Index: 1, Total: 2, StartPage: 5})
	m.Update(PageFetchedMsg{Project: "octo/a", Page: 5, InRange: 7, AllTime: 9, Remaining: -1})
	_, cmd := m.Update(ProjectFinishedMsg{Project: "octo/a", State: crawler.StateCompleted, LastPage: 5, InRange: 7, AllTime: 9})
	assert.NotNil(t, cmd, "finishing a project animates the progress bar")

	m.Update(RunFinishedMsg{Summary: crawler.Summary{Total: 2, Succeeded: 1, Failed: 1}})
	m.Update(LogMsg{Level: "WARN", Message: "could not read rate limit"})

	rows := m.Rows()
	require.Len(t, rows, 1)
	assert.Equal(t, crawler.StateCompleted, rows[0].State)

	var texts []string
	for _, msg := range m.logMessages {
		texts = append(texts, msg.Message)
	}
	assert.Contains(t, texts, "octo/a: resuming at page 5")
	assert.Contains(t, texts, "octo/a: 7 in window, 9 all time")
	assert.Contains(t, texts, "run finished: 1 succeeded, 0 skipped, 1 failed")
	last := m.logMessages[len(m.logMessages)-1]
	assert.Equal(t, "WARN", last.Level)
	assert.Equal(t, "could not read rate limit", last.Message)
	require.NotNil(t, m.summary)
}

func TestQuitCancelsCrawl(t *testing.T) {
	cancelled := false
	m := NewModel(1, func() { cancelled = true })

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})

	assert.True(t, cancelled)
	require.NotNil(t, cmd)
	assert.Equal(t, tea.Quit(), cmd())
}

func TestViewRendersPanels(t *testing.T) {
	m := NewModel(2, nil)
	assert.Equal(t, "Initializing...", m.View())

	m.Update(tea.WindowSizeMsg{Width: 160, Height: 50})
	m.StartProject("octo/a", 1, 2, 1)
	m.RecordPage(crawler.PageEvent{
		Project: "octo/a", Page: 3, InRange: 1200, AllTime: 2500,
		Credential: "GITHUB_TOKEN_1", Remaining: 100, Limit: 5000, ResetAt: time.Now().Add(time.Minute),
	})
	m.AddLogMessage("WARN", "rotating credential")

	view := m.View()
	assert.Contains(t, view, "PROJECTS")
	assert.Contains(t, view, "octo/a")
	assert.Contains(t, view, "1.2k")
	assert.Contains(t, view, "GITHUB_TOKEN_1")
	assert.Contains(t, view, "100/5000")
	assert.Contains(t, view, "rotating credential")
}

func TestFormatCount(t *testing.T) {
	tests := []struct {
		n        int
		expected string
	}{
		{0, "0"},
		{999, "999"},
		{1000, "1.0k"},
		{1536, "1.5k"},
		{2500000, "2.5M"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, FormatCount(tt.n))
	}
}

func TestGetRateLimitStyle(t *testing.T) {
	assert.Equal(t, rateLimitNormalStyle, GetRateLimitStyle(10))
	assert.Equal(t, rateLimitWarningStyle, GetRateLimitStyle(75))
	assert.Equal(t, rateLimitCriticalStyle, GetRateLimitStyle(95))
}
