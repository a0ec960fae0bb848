package crawler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"forkcrawl/pkg/aggregate"
	"forkcrawl/pkg/auth"
	"forkcrawl/pkg/checkpoint"
	"forkcrawl/pkg/config"
	"forkcrawl/pkg/github"
	"forkcrawl/pkg/logger"
	"forkcrawl/pkg/metrics"
	"forkcrawl/pkg/projects"
	"forkcrawl/pkg/ratelimit"
	"forkcrawl/pkg/storage"
)

// State is where a project ended up after a crawl attempt
type State string

const (
	StateNotStarted  State = "not_started"
	StateInProgress  State = "in_progress"
	StateCompleted   State = "completed"
	StateDeferred    State = "deferred"
	StateInterrupted State = "interrupted"
)

// Outcome describes one CrawlProject call
type Outcome struct {
	Project string
	State   State
	// Skipped is set when the project was already complete and no request was made
	Skipped bool
	// StartPage is the first page requested in this run
	StartPage int
	// LastPage is the highest recorded page
	LastPage     int
	PagesFetched int
	InRange      int
	AllTime      int
	Err          error
}

// PageEvent reports one recorded page
type PageEvent struct {
	Project string
	Page    int
	Records int
	HasNext bool
	// InRange and AllTime are running totals for the project
	InRange int
	AllTime int
	// Credential is the active credential after the fetch; Remaining is -1 when unknown
	Credential string
	Remaining  int
	Limit      int
	ResetAt    time.Time
}

// Summary is the result of a multi-project run
type Summary struct {
	Total     int
	Succeeded int
	Skipped   int
	Failed    int
	Deferred  []string
	// Interrupted names the project that was running when the run was cancelled
	Interrupted string
	Duration    time.Duration
}

// Crawler drives projects through fetch, fold and checkpoint until their
// fork listing is exhausted.
type Crawler struct {
	fetcher PageFetcher
	store   CheckpointStore
	results ResultWriter
	sinks   []storage.Sink

	window             aggregate.Window
	pageSize           int
	checkpointInterval int
	pacer              *ratelimit.Interval
	forceRestart       bool

	pool     *auth.Pool
	tracker  ratelimit.Tracker
	observer Observer
	logger   logger.Logger
	now      func() time.Time

	// position of the current project within Run
	index, total int
}

// New creates a crawler from the crawl and GitHub configuration
func New(cfg *config.Config, fetcher PageFetcher, store CheckpointStore, results ResultWriter, log logger.Logger) *Crawler {
	if log == nil {
		log = logger.GetLogger()
	}
	interval := cfg.Crawl.CheckpointInterval
	if interval < 1 {
		interval = 1
	}
	return &Crawler{
		fetcher:            fetcher,
		store:              store,
		results:            results,
		window:             aggregate.NewWindow(&cfg.Crawl),
		pageSize:           cfg.GitHub.PageSize,
		checkpointInterval: interval,
		pacer:              ratelimit.NewInterval(cfg.Crawl.PageDelay),
		logger:             log,
		now:                time.Now,
	}
}

// SetObserver registers a progress observer
func (c *Crawler) SetObserver(o Observer) {
	c.observer = o
}

// AddSink adds a result mirror
func (c *Crawler) AddSink(s storage.Sink) {
	c.sinks = append(c.sinks, s)
}

// SetPool sets the credential pool rotated after a deferred project and
// reported in page events
func (c *Crawler) SetPool(pool *auth.Pool) {
	c.pool = pool
}

// SetTracker sets the quota source for page events
func (c *Crawler) SetTracker(t ratelimit.Tracker) {
	c.tracker = t
}

// SetForceRestart makes CrawlProject delete existing checkpoints first
func (c *Crawler) SetForceRestart(force bool) {
	c.forceRestart = force
}

// Window returns the aggregation window
func (c *Crawler) Window() aggregate.Window {
	return c.window
}

// Run crawls projects in order. A deferred project does not stop the run;
// cancellation does, after the running project's checkpoint is flushed.
func (c *Crawler) Run(ctx context.Context, list []string) (*Summary, error) {
	started := c.now()
	summary := &Summary{Total: len(list)}

	logger.LogComponentStart(c.logger, "crawler", map[string]interface{}{
		"projects":     len(list),
		"window_start": c.window.Start,
		"window_end":   c.window.End,
		"page_size":    c.pageSize,
	})

	for i, project := range list {
		if err := ctx.Err(); err != nil {
			summary.Duration = c.now().Sub(started)
			return summary, err
		}

		c.index, c.total = i+1, len(list)
		out, err := c.CrawlProject(ctx, project)

		switch {
		case out.State == StateCompleted && out.Skipped:
			summary.Skipped++
		case out.State == StateCompleted:
			summary.Succeeded++
		case out.State == StateDeferred:
			summary.Failed++
			summary.Deferred = append(summary.Deferred, project)
			if c.pool != nil {
				c.pool.Rotate()
				metrics.CredentialRotations.Inc()
			}
		case out.State == StateInterrupted:
			summary.Interrupted = project
		}

		if err != nil {
			summary.Duration = c.now().Sub(started)
			logger.LogComponentStop(c.logger, "crawler", "interrupted")
			return summary, err
		}
	}

	c.index, c.total = 0, 0
	summary.Duration = c.now().Sub(started)
	c.logger.InfoWithFields("crawl run finished", map[string]interface{}{
		"total":     summary.Total,
		"succeeded": summary.Succeeded,
		"skipped":   summary.Skipped,
		"failed":    summary.Failed,
		"duration":  summary.Duration,
	})
	logger.LogComponentStop(c.logger, "crawler", "finished")
	return summary, nil
}

// CrawlProject crawls one project from its checkpoint to the end of its
// fork listing. The returned error is non-nil only when ctx was cancelled;
// every other failure leaves the project Deferred.
func (c *Crawler) CrawlProject(ctx context.Context, project string) (out Outcome, err error) {
	out = Outcome{Project: project, State: StateNotStarted}
	defer func() {
		metrics.ProjectsTotal.WithLabelValues(string(out.State)).Inc()
		if c.observer != nil {
			c.observer.ProjectFinished(out)
		}
	}()

	if verr := projects.Validate(project); verr != nil {
		c.logger.WarnWithFields("skipping invalid project id", map[string]interface{}{
			"project": project,
			"error":   verr.Error(),
		})
		out.State = StateDeferred
		out.Err = verr
		return out, nil
	}

	if c.forceRestart {
		if derr := c.store.Delete(project); derr != nil {
			c.logger.WarnWithFields("failed to delete existing checkpoint", map[string]interface{}{
				"project": project,
				"error":   derr.Error(),
			})
		}
	}

	cp := c.store.Load(project)
	if cp.Completed {
		c.logger.InfoWithFields("project already completed, skipping", map[string]interface{}{
			"project": project,
		})
		out.State = StateCompleted
		out.Skipped = true
		out.LastPage = cp.LastPage
		out.InRange = cp.InRangeTotal()
		out.AllTime = cp.TotalRecordsSeen
		return out, nil
	}

	resumed := cp.LastPage > 0
	page := cp.Resume()
	out.State = StateInProgress
	out.StartPage = page

	fields := map[string]interface{}{
		"project":    project,
		"start_page": page,
	}
	if resumed {
		fields["total_records_seen"] = cp.TotalRecordsSeen
		c.logger.InfoWithFields("resuming project, refetching last recorded page", fields)
	} else {
		c.logger.InfoWithFields("starting project", fields)
	}
	if c.observer != nil {
		index, total := c.index, c.total
		if total == 0 {
			index, total = 1, 1
		}
		c.observer.ProjectStarted(project, index, total, page)
	}

	for {
		if werr := c.pacer.Wait(ctx); werr != nil {
			return c.interrupt(cp, out, werr)
		}

		res, ferr := c.fetcher.FetchPage(ctx, project, page, c.pageSize)
		if ferr != nil {
			if ctx.Err() != nil || errors.Is(ferr, context.Canceled) {
				return c.interrupt(cp, out, ferr)
			}
			return c.deferProject(cp, out, fmt.Errorf("page %d: %w", page, ferr))
		}
		if res.Terminal {
			return c.deferProject(cp, out, fmt.Errorf("page %d: project unavailable (HTTP %d)", page, res.Status))
		}
		if len(res.Records) == 0 {
			break
		}

		counts := aggregate.Fold(github.Timestamps(res.Records), c.window)
		cp.Record(page, counts)
		out.PagesFetched++
		out.LastPage = cp.LastPage

		metrics.RecordsSeen.Add(float64(counts.Total))
		metrics.RecordsSkipped.Add(float64(counts.Skipped))
		if counts.Skipped > 0 {
			c.logger.DebugWithFields("records without usable timestamp", map[string]interface{}{
				"project": project,
				"page":    page,
				"skipped": counts.Skipped,
			})
		}

		inRange := cp.InRangeTotal()
		logger.LogCrawlProgress(c.logger, project, page, len(res.Records), counts.InRange())
		c.notifyPage(ctx, project, page, len(res.Records), res.HasNext, inRange, cp.TotalRecordsSeen)

		if !res.HasNext {
			break
		}

		if page%c.checkpointInterval == 0 {
			c.save(cp, "periodic")
		}
		page++
	}

	return c.complete(ctx, cp, out)
}

func (c *Crawler) complete(ctx context.Context, cp *checkpoint.Checkpoint, out Outcome) (Outcome, error) {
	result := storage.NewResult(cp, c.window, c.now())
	if err := c.results.Save(result); err != nil {
		return c.deferProject(cp, out, fmt.Errorf("failed to write result: %w", err))
	}

	cp.Completed = true
	if err := c.save(cp, "completed"); err != nil {
		// the next run redoes the project and rewrites the same result
		return c.deferProject(cp, out, err)
	}

	for _, sink := range c.sinks {
		if err := sink.Publish(ctx, result); err != nil {
			c.logger.WarnWithFields("failed to publish result", map[string]interface{}{
				"project": cp.Project,
				"sink":    sink.Name(),
				"error":   err.Error(),
			})
		}
	}

	out.State = StateCompleted
	out.LastPage = cp.LastPage
	out.InRange = result.TotalForksInRange
	out.AllTime = result.TotalForksAllTime

	c.logger.InfoWithFields("project completed", map[string]interface{}{
		"project":   cp.Project,
		"pages":     cp.LastPage,
		"in_range":  out.InRange,
		"all_time":  out.AllTime,
		"new_pages": out.PagesFetched,
	})
	return out, nil
}

// deferProject persists progress and leaves the project for a later run
func (c *Crawler) deferProject(cp *checkpoint.Checkpoint, out Outcome, cause error) (Outcome, error) {
	c.save(cp, "deferred")

	out.State = StateDeferred
	out.Err = cause
	out.LastPage = cp.LastPage
	out.InRange = cp.InRangeTotal()
	out.AllTime = cp.TotalRecordsSeen

	c.logger.ErrorWithFields("project deferred", map[string]interface{}{
		"project":   cp.Project,
		"last_page": cp.LastPage,
		"error":     cause.Error(),
	})
	return out, nil
}

// interrupt flushes progress and propagates the cancellation
func (c *Crawler) interrupt(cp *checkpoint.Checkpoint, out Outcome, cause error) (Outcome, error) {
	c.save(cp, "interrupted")

	out.State = StateInterrupted
	out.Err = cause
	out.LastPage = cp.LastPage
	out.InRange = cp.InRangeTotal()
	out.AllTime = cp.TotalRecordsSeen

	c.logger.WarnWithFields("project interrupted, progress saved", map[string]interface{}{
		"project":   cp.Project,
		"last_page": cp.LastPage,
	})
	return out, cause
}

func (c *Crawler) save(cp *checkpoint.Checkpoint, reason string) error {
	if err := c.store.Save(cp); err != nil {
		c.logger.ErrorWithFields("failed to save checkpoint", map[string]interface{}{
			"project": cp.Project,
			"reason":  reason,
			"error":   err.Error(),
		})
		return fmt.Errorf("failed to save checkpoint: %w", err)
	}
	metrics.CheckpointSaves.WithLabelValues(reason).Inc()
	logger.LogCheckpoint(c.logger, cp.Project, cp.LastPage, reason)
	return nil
}

func (c *Crawler) notifyPage(ctx context.Context, project string, page, records int, hasNext bool, inRange, allTime int) {
	if c.observer == nil {
		return
	}

	ev := PageEvent{
		Project:   project,
		Page:      page,
		Records:   records,
		HasNext:   hasNext,
		InRange:   inRange,
		AllTime:   allTime,
		Remaining: -1,
	}
	if c.pool != nil {
		ev.Credential = c.pool.Current().Name
		if c.tracker != nil {
			if state, ok, err := c.tracker.Get(ctx, ev.Credential); err == nil && ok {
				ev.Remaining = state.Remaining
				ev.Limit = state.Limit
				ev.ResetAt = state.ResetAt
			}
		}
	}
	c.observer.PageFetched(ev)
}
