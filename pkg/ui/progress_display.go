package ui

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"forkcrawl/pkg/crawler"
)

// ProgressDisplay prints a single rewriting progress line for plain
// terminal runs. It implements crawler.Observer.
type ProgressDisplay struct {
	mu         sync.Mutex
	out        io.Writer
	status     *StatusTracker
	project    string
	page       int
	inRange    int
	allTime    int
	credential string
	remaining  int
	limit      int
	isDebug    bool
}

// NewProgressDisplay creates a display for a run over total projects
func NewProgressDisplay(out io.Writer, total int, debug bool) *ProgressDisplay {
	return &ProgressDisplay{
		out:       out,
		status:    NewStatusTracker(total),
		remaining: -1,
		isDebug:   debug,
	}
}

// ProjectStarted implements crawler.Observer
func (p *ProgressDisplay) ProjectStarted(project string, index, total, startPage int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.project = project
	p.status.Total = total
	p.page = startPage - 1
	p.inRange, p.allTime = 0, 0

	if startPage > 1 {
		fmt.Fprintf(p.out, "\n%s %s resuming at page %d\n", Magenta("→"), project, startPage)
	}
}

// PageFetched implements crawler.Observer
func (p *ProgressDisplay) PageFetched(ev crawler.PageEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.page = ev.Page
	p.inRange = ev.InRange
	p.allTime = ev.AllTime
	p.credential = ev.Credential
	p.remaining = ev.Remaining
	p.limit = ev.Limit
	p.status.Pages++

	if p.isDebug {
		fmt.Fprintf(p.out, "%s %s page %d • %d records • %s\n",
			Dim("·"), ev.Project, ev.Page, ev.Records, QuotaBar(ev.Remaining, ev.Limit))
		return
	}
	p.printProgress()
}

// ProjectFinished implements crawler.Observer
func (p *ProgressDisplay) ProjectFinished(out crawler.Outcome) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.status.Finish(out)

	switch {
	case out.Skipped:
		fmt.Fprintf(p.out, "\n%s %s already complete\n", Dim("•"), out.Project)
	case out.State == crawler.StateCompleted:
		fmt.Fprintf(p.out, "\n%s %s • %d in window • %d all time • %d pages\n",
			Green("✓"), out.Project, out.InRange, out.AllTime, out.LastPage)
	case out.State == crawler.StateDeferred:
		fmt.Fprintf(p.out, "\n%s %s deferred at page %d: %v\n",
			Red("✗"), out.Project, out.LastPage, out.Err)
	case out.State == crawler.StateInterrupted:
		fmt.Fprintf(p.out, "\n%s %s interrupted at page %d\n",
			Yellow("⏸"), out.Project, out.LastPage)
	}
}

func (p *ProgressDisplay) printProgress() {
	line := fmt.Sprintf("\r%s %s • page %d • %d in window • %d all time • %.1f pages/min",
		p.status.ProjectBar(),
		Cyan(p.project),
		p.page,
		p.inRange,
		p.allTime,
		p.status.PageRate(),
	)
	if p.credential != "" {
		line += fmt.Sprintf(" • %s %s", p.credential, QuotaBar(p.remaining, p.limit))
	}

	fmt.Fprintf(p.out, "\r%s\r%s", strings.Repeat(" ", 120), line)
}

// Complete prints the run summary
func (p *ProgressDisplay) Complete(s crawler.Summary) {
	p.mu.Lock()
	defer p.mu.Unlock()

	fmt.Fprintf(p.out, "\n\n%s Crawled %d projects in %s\n",
		Green("✓"), s.Total, formatDuration(s.Duration))
	fmt.Fprintf(p.out, "  %s %d succeeded, %d skipped, %d failed\n",
		Dim("•"), s.Succeeded, s.Skipped, s.Failed)
	if len(s.Deferred) > 0 {
		fmt.Fprintf(p.out, "  %s deferred: %s\n", Dim("•"), strings.Join(s.Deferred, ", "))
	}
	if s.Interrupted != "" {
		fmt.Fprintf(p.out, "  %s interrupted during %s; rerun to resume\n", Yellow("⏸"), s.Interrupted)
	}
}

func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	} else if d < time.Hour {
		return fmt.Sprintf("%dm%ds", int(d.Minutes()), int(d.Seconds())%60)
	}
	return fmt.Sprintf("%dh%dm", int(d.Hours()), int(d.Minutes())%60)
}
