package ui

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"forkcrawl/pkg/config"
	"forkcrawl/pkg/crawler"
)

func TestBar(t *testing.T) {
	assert.Equal(t, "░░░░", Bar(0, 10, 4))
	assert.Equal(t, "██░░", Bar(5, 10, 4))
	assert.Equal(t, "████", Bar(10, 10, 4))
	assert.Equal(t, "████", Bar(25, 10, 4), "overflow is clamped")
	assert.Equal(t, "░░░░", Bar(3, 0, 4), "zero max renders empty")
}

func TestQuotaBar(t *testing.T) {
	assert.Equal(t, "[?]", QuotaBar(-1, 5000))
	assert.Equal(t, "[?]", QuotaBar(10, 0))
	assert.Equal(t, "[█████░░░░░] 2500/5000", QuotaBar(2500, 5000))
}

func TestStatusTrackerFinish(t *testing.T) {
	st := NewStatusTracker(4)
	st.Finish(crawler.Outcome{State: crawler.StateCompleted})
	st.Finish(crawler.Outcome{State: crawler.StateCompleted, Skipped: true})
	st.Finish(crawler.Outcome{State: crawler.StateDeferred})
	st.Finish(crawler.Outcome{State: crawler.StateInterrupted})

	assert.Equal(t, 1, st.Completed)
	assert.Equal(t, 1, st.Skipped)
	assert.Equal(t, 1, st.Deferred)
	assert.Equal(t, 3, st.Done())
	assert.Contains(t, st.ProjectBar(), "3/4")
}

func TestProgressDisplayLifecycle(t *testing.T) {
	var buf bytes.Buffer
	p := NewProgressDisplay(&buf, 2, false)

	p.ProjectStarted("octo/hello", 1, 2, 1)
	p.PageFetched(crawler.PageEvent{
		Project: "octo/hello", Page: 1, Records: 100, HasNext: true,
		InRange: 40, AllTime: 100, Credential: "GITHUB_TOKEN_1", Remaining: 4999, Limit: 5000,
	})

	out := buf.String()
	assert.Contains(t, out, "page 1")
	assert.Contains(t, out, "40 in window")
	assert.Contains(t, out, "GITHUB_TOKEN_1")
	assert.Contains(t, out, "4999/5000")

	p.ProjectFinished(crawler.Outcome{
		Project: "octo/hello", State: crawler.StateCompleted, LastPage: 2, InRange: 40, AllTime: 137,
	})
	p.ProjectStarted("octo/world", 2, 2, 11)
	p.ProjectFinished(crawler.Outcome{
		Project: "octo/world", State: crawler.StateDeferred, LastPage: 11, Err: errors.New("not found"),
	})

	out = buf.String()
	assert.Contains(t, out, "octo/hello • 40 in window • 137 all time")
	assert.Contains(t, out, "octo/world resuming at page 11")
	assert.Contains(t, out, "octo/world deferred at page 11: not found")
	assert.Equal(t, 2, p.status.Done())
}

func TestProgressDisplayDebugPrintsEveryPage(t *testing.T) {
	var buf bytes.Buffer
	p := NewProgressDisplay(&buf, 1, true)

	p.ProjectStarted("octo/hello", 1, 1, 1)
	for page := 1; page <= 3; page++ {
		p.PageFetched(crawler.PageEvent{Project: "octo/hello", Page: page, Records: 100, Remaining: -1})
	}

	assert.Equal(t, 3, bytes.Count(buf.Bytes(), []byte("\n")))
	assert.Contains(t, buf.String(), "page 3 • 100 records • [?]")
}

func TestProgressDisplayComplete(t *testing.T) {
	var buf bytes.Buffer
	p := NewProgressDisplay(&buf, 3, false)

	p.Complete(crawler.Summary{
		Total: 3, Succeeded: 1, Skipped: 1, Failed: 1,
		Deferred:    []string{"octo/gone"},
		Interrupted: "octo/slow",
		Duration:    90 * time.Second,
	})

	out := buf.String()
	assert.Contains(t, out, "Crawled 3 projects in 1m30s")
	assert.Contains(t, out, "1 succeeded, 1 skipped, 1 failed")
	assert.Contains(t, out, "deferred: octo/gone")
	assert.Contains(t, out, "interrupted during octo/slow")
}

type recordingSender struct {
	titles   []string
	messages []string
	err      error
}

func (r *recordingSender) Send(title, message string) error {
	r.titles = append(r.titles, title)
	r.messages = append(r.messages, message)
	return r.err
}

func TestNotifierRunFinished(t *testing.T) {
	all := config.NotificationConfig{Enabled: true, OnComplete: true, OnError: true}

	tests := []struct {
		name    string
		cfg     config.NotificationConfig
		summary crawler.Summary
		runErr  error
		sent    bool
		title   string
		message string
	}{
		{
			name:    "complete",
			cfg:     all,
			summary: crawler.Summary{Total: 2, Succeeded: 1, Skipped: 1},
			sent:    true,
			title:   "forkcrawl: crawl complete",
			message: "1 succeeded, 1 skipped",
		},
		{
			name:    "failures",
			cfg:     all,
			summary: crawler.Summary{Total: 2, Succeeded: 1, Failed: 1, Deferred: []string{"octo/gone"}},
			sent:    true,
			title:   "forkcrawl: crawl incomplete",
			message: "1 of 2 projects failed: octo/gone",
		},
		{
			name:    "interrupted",
			cfg:     all,
			summary: crawler.Summary{Total: 2, Interrupted: "octo/slow"},
			runErr:  errors.New("context canceled"),
			sent:    true,
			title:   "forkcrawl: crawl incomplete",
			message: "interrupted during octo/slow",
		},
		{
			name:    "disabled",
			cfg:     config.NotificationConfig{OnComplete: true, OnError: true},
			summary: crawler.Summary{Total: 1, Succeeded: 1},
		},
		{
			name:    "complete not wanted",
			cfg:     config.NotificationConfig{Enabled: true, OnError: true},
			summary: crawler.Summary{Total: 1, Succeeded: 1},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sender := &recordingSender{}
			n := NewNotifierWithSender(tt.cfg, sender)

			assert.Equal(t, tt.sent, n.RunFinished(tt.summary, tt.runErr))
			if !tt.sent {
				assert.Empty(t, sender.titles)
				return
			}
			require.Len(t, sender.titles, 1)
			assert.Equal(t, tt.title, sender.titles[0])
			assert.Equal(t, tt.message, sender.messages[0])
		})
	}
}

func TestNotifierSendFailureIsReported(t *testing.T) {
	sender := &recordingSender{err: errors.New("no notify-send")}
	n := NewNotifierWithSender(config.NotificationConfig{Enabled: true, OnComplete: true}, sender)

	assert.False(t, n.RunFinished(crawler.Summary{Total: 1, Succeeded: 1}, nil))
	assert.Len(t, sender.titles, 1)
}

func TestPrintHelpersWriteToOutput(t *testing.T) {
	var buf bytes.Buffer
	old := Output
	Output = &buf
	defer func() { Output = old }()

	PrintInfo("Projects", "300")
	PrintError("failed to open list", errors.New("missing"))
	PrintWarning("no credentials")

	out := buf.String()
	assert.Contains(t, out, "Projects")
	assert.Contains(t, out, "failed to open list: missing")
	assert.Contains(t, out, "no credentials")
}
