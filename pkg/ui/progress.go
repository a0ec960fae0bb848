package ui

import (
	"fmt"
	"strings"
	"time"

	"forkcrawl/pkg/crawler"
)

const (
	ProgressBar   = "█"
	ProgressEmpty = "░"
	barWidth      = 20
)

// StatusTracker keeps run-level counters across projects
type StatusTracker struct {
	Total     int
	Completed int
	Skipped   int
	Deferred  int
	Pages     int
	StartTime time.Time
}

// NewStatusTracker creates a tracker for a run over total projects
func NewStatusTracker(total int) *StatusTracker {
	return &StatusTracker{
		Total:     total,
		StartTime: time.Now(),
	}
}

// Finish counts a finished project
func (st *StatusTracker) Finish(out crawler.Outcome) {
	switch {
	case out.Skipped:
		st.Skipped++
	case out.State == crawler.StateCompleted:
		st.Completed++
	case out.State == crawler.StateDeferred:
		st.Deferred++
	}
}

// Done is the number of projects that reached a final state
func (st *StatusTracker) Done() int {
	return st.Completed + st.Skipped + st.Deferred
}

// ProjectBar renders the share of finished projects
func (st *StatusTracker) ProjectBar() string {
	return fmt.Sprintf("[%s] %d/%d", Bar(st.Done(), st.Total, barWidth), st.Done(), st.Total)
}

// PageRate returns pages fetched per minute
func (st *StatusTracker) PageRate() float64 {
	elapsed := time.Since(st.StartTime).Minutes()
	if elapsed == 0 {
		return 0
	}
	return float64(st.Pages) / elapsed
}

// Bar renders value/total as a fixed-width bar
func Bar(value, total, width int) string {
	filled := 0
	if total > 0 {
		filled = value * width / total
	}
	if filled < 0 {
		filled = 0
	}
	if filled > width {
		filled = width
	}
	return strings.Repeat(ProgressBar, filled) + strings.Repeat(ProgressEmpty, width-filled)
}

// QuotaBar renders the remaining request quota of a credential.
// An unknown quota (remaining < 0) renders as "?".
func QuotaBar(remaining, limit int) string {
	if remaining < 0 || limit <= 0 {
		return "[?]"
	}
	return fmt.Sprintf("[%s] %d/%d", Bar(remaining, limit, 10), remaining, limit)
}
