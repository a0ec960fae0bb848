package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"forkcrawl/pkg/auth"
	"forkcrawl/pkg/checkpoint"
	"forkcrawl/pkg/config"
	"forkcrawl/pkg/crawler"
	"forkcrawl/pkg/github"
	"forkcrawl/pkg/logger"
	"forkcrawl/pkg/metrics"
	"forkcrawl/pkg/projects"
	"forkcrawl/pkg/ratelimit"
	"forkcrawl/pkg/retry"
	"forkcrawl/pkg/storage"
	"forkcrawl/pkg/ui"
	"forkcrawl/pkg/ui/tui"
)

var (
	// Crawl command flags
	listPath      string
	resultDir     string
	checkpointDir string
	windowStart   string
	windowEnd     string
	pageSize      int
	forceRestart  bool
	useTUI        bool
	metricsAddr   string
)

// crawlCmd represents the crawl command
var crawlCmd = &cobra.Command{
	Use:   "crawl [owner/name]",
	Short: "Crawl fork events for the project list or a single project",
	Long: `Crawl the fork listing of every project in the project list, oldest forks
first, and write per-day fork counts inside the window to the result directory.

Progress is checkpointed every few pages. Interrupting the crawl (Ctrl+C)
flushes the checkpoint of the running project; the next run resumes there.
Projects that already have a completed checkpoint are skipped.

Tokens are read from the keyring, the encrypted credential file and the
GITHUB_TOKEN_1..N environment variables (see 'forkcrawl auth').`,
	Example: `  # Crawl the configured project list
  forkcrawl crawl

  # Crawl a single project
  forkcrawl crawl kubernetes/kubernetes

  # Use another list and window
  forkcrawl crawl --list top300_projects_list.txt --window-start 2022-03-01 --window-end 2023-03-31

  # Start a project over, ignoring its checkpoint
  forkcrawl crawl golang/go --force-restart

  # Live dashboard with Prometheus metrics
  forkcrawl crawl --tui --metrics-addr :9090`,
	Args: cobra.MaximumNArgs(1),
	RunE: runCrawl,
}

func init() {
	rootCmd.AddCommand(crawlCmd)

	crawlCmd.Flags().StringVarP(&listPath, "list", "l", "", "project list file, one owner/name per line")
	crawlCmd.Flags().StringVar(&resultDir, "result-dir", "", "directory for result files (default data/fork)")
	crawlCmd.Flags().StringVar(&checkpointDir, "checkpoint-dir", "", "directory for checkpoints (default data/fork_checkpoint)")
	crawlCmd.Flags().StringVar(&windowStart, "window-start", "", "first day counted, RFC3339 or YYYY-MM-DD")
	crawlCmd.Flags().StringVar(&windowEnd, "window-end", "", "last day counted, RFC3339 or YYYY-MM-DD (inclusive)")
	crawlCmd.Flags().IntVar(&pageSize, "page-size", 0, "forks per page, 1-100 (default 100)")
	crawlCmd.Flags().BoolVar(&forceRestart, "force-restart", false, "delete existing checkpoints before crawling")
	crawlCmd.Flags().BoolVar(&useTUI, "tui", false, "show the interactive dashboard")
	crawlCmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address, e.g. :9090")
}

func crawlFlags() map[string]interface{} {
	flags := map[string]interface{}{
		"project-list":   listPath,
		"result-dir":     resultDir,
		"checkpoint-dir": checkpointDir,
		"window-start":   windowStart,
		"window-end":     windowEnd,
		"metrics-addr":   metricsAddr,
	}
	if pageSize != 0 {
		flags["page-size"] = pageSize
	}
	return flags
}

func runCrawl(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd, crawlFlags(), useTUI)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	log := logger.GetLogger()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	list, err := projectList(cfg, args, log)
	if err != nil {
		return err
	}
	if len(list) == 0 {
		ui.PrintWarning("No projects to crawl")
		return nil
	}

	store, err := checkpoint.NewFileStore(cfg.Crawl.CheckpointDir, log)
	if err != nil {
		return err
	}
	results, err := storage.NewManager(cfg.Crawl.ResultDir)
	if err != nil {
		return err
	}

	credManager, err := auth.NewManager(&cfg.Credentials)
	if err != nil {
		return fmt.Errorf("failed to initialize credential manager: %w", err)
	}
	pool, err := credManager.Pool()
	if err != nil {
		if errors.Is(err, auth.ErrEmptyPool) {
			auth.ShowTokenGuide(os.Stderr)
		}
		return err
	}

	tracker, closeTracker, err := ratelimit.NewTracker(ctx, &cfg.RateLimitState, log)
	if err != nil {
		return err
	}
	defer closeTracker()

	sinks, err := storage.OpenSinks(ctx, &cfg.Sinks, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := storage.CloseSinks(sinks); err != nil {
			log.WithError(err).Warn("failed to close result sinks")
		}
	}()

	if cfg.Metrics.Addr != "" {
		go func() {
			if err := metrics.Serve(ctx, cfg.Metrics.Addr); err != nil {
				log.WithError(err).Error("metrics server stopped")
			}
		}()
	}

	client := github.NewClient(&cfg.GitHub, log)
	quota, quotaErr := logInitialQuota(ctx, client, pool, log)

	fetcher := github.NewFetcher(client, pool, retry.NewPolicy(&cfg.Retry), tracker, log)
	c := crawler.New(cfg, fetcher, store, results, log)
	c.SetPool(pool)
	c.SetTracker(tracker)
	c.SetForceRestart(forceRestart)
	for _, s := range sinks {
		c.AddSink(s)
	}

	brief := briefing{
		Projects:    len(list),
		Window:      fmt.Sprintf("%s .. %s", c.Window().Start.Format(time.DateOnly), c.Window().End.Format(time.DateOnly)),
		Credentials: pool.Size(),
		Quota:       quota,
		QuotaErr:    quotaErr,
	}

	var summary *crawler.Summary
	var runErr error
	if useTUI {
		summary, runErr = crawlWithTUI(ctx, cancel, c, list, brief)
	} else {
		brief.print()
		display := ui.NewProgressDisplay(os.Stdout, len(list), verbose)
		c.SetObserver(display)
		summary, runErr = c.Run(ctx, list)
	}

	ui.NewProgressDisplay(os.Stdout, len(list), false).Complete(*summary)
	ui.NewNotifier(cfg.Notifications).RunFinished(*summary, runErr)

	switch {
	case errors.Is(runErr, context.Canceled):
		ui.PrintWarning("Crawl interrupted; progress is checkpointed")
		return nil
	case runErr != nil:
		return runErr
	case summary.Failed > 0:
		return fmt.Errorf("%d of %d projects deferred; rerun to retry them", summary.Failed, summary.Total)
	}
	return nil
}

// crawlWithTUI runs the crawl behind the dashboard. Quitting the dashboard
// cancels the crawl; a finished crawl closes the dashboard.
func crawlWithTUI(ctx context.Context, cancel context.CancelFunc, c *crawler.Crawler, list []string, brief briefing) (*crawler.Summary, error) {
	terminal := tui.NewTUI(len(list), cancel)
	c.SetObserver(terminal)

	tuiDone := make(chan error, 1)
	go func() {
		tuiDone <- terminal.Start()
	}()
	brief.logTo(terminal)

	type result struct {
		summary *crawler.Summary
		err     error
	}
	crawlDone := make(chan result, 1)
	go func() {
		s, err := c.Run(ctx, list)
		crawlDone <- result{s, err}
	}()

	select {
	case r := <-crawlDone:
		terminal.RunFinished(*r.summary, r.err)
		terminal.Stop()
		if err := <-tuiDone; err != nil {
			logger.GetLogger().WithError(err).Error("dashboard failed")
		}
		return r.summary, r.err
	case err := <-tuiDone:
		if err != nil {
			logger.GetLogger().WithError(err).Error("dashboard failed")
		}
		cancel()
		r := <-crawlDone
		return r.summary, r.err
	}
}

// projectList returns the single project given on the command line, or the
// configured list file. Invalid list entries are logged and skipped.
func projectList(cfg *config.Config, args []string, log logger.Logger) ([]string, error) {
	if len(args) == 1 {
		if err := projects.Validate(args[0]); err != nil {
			return nil, err
		}
		return []string{args[0]}, nil
	}

	pl, err := projects.LoadFile(cfg.Crawl.ProjectList)
	if err != nil {
		return nil, err
	}
	for _, r := range pl.Rejected {
		log.WarnWithFields("skipping invalid project entry", map[string]interface{}{
			"line":  r.Line,
			"entry": r.Text,
			"error": r.Err.Error(),
		})
	}
	if pl.Duplicates > 0 {
		log.InfoWithFields("dropped duplicate project entries", map[string]interface{}{"count": pl.Duplicates})
	}
	return pl.Projects, nil
}

// logInitialQuota logs the quota of the active credential before crawling
// and returns it as "name remaining/limit"
func logInitialQuota(ctx context.Context, client *github.Client, pool *auth.Pool, log logger.Logger) (string, error) {
	cred := pool.Current()
	rl, err := client.RateLimit(ctx, cred.Token)
	if err != nil {
		log.WithError(err).WithField("credential", cred.Name).Warn("failed to read initial rate limit")
		return "", fmt.Errorf("%s: %w", cred.Name, err)
	}

	core := rl.Resources.Core
	log.InfoWithFields("initial rate limit", map[string]interface{}{
		"credential": cred.Name,
		"limit":      core.Limit,
		"remaining":  core.Remaining,
		"reset":      time.Unix(core.Reset, 0).UTC(),
	})
	return fmt.Sprintf("%s %d/%d", cred.Name, core.Remaining, core.Limit), nil
}

// briefing describes the run before the first project starts
type briefing struct {
	Projects    int
	Window      string
	Credentials int
	Quota       string
	QuotaErr    error
}

// runLog is the part of the dashboard that takes free-form log lines
type runLog interface {
	LogInfo(format string, args ...interface{})
	LogWarning(format string, args ...interface{})
}

func (b briefing) print() {
	ui.PrintInfo("Projects", fmt.Sprintf("%d", b.Projects))
	ui.PrintInfo("Window", b.Window)
	ui.PrintInfo("Credentials", fmt.Sprintf("%d", b.Credentials))
	if b.QuotaErr != nil {
		ui.PrintWarning("Could not read rate limit", b.QuotaErr)
		return
	}
	ui.PrintInfo("Quota", b.Quota)
}

func (b briefing) logTo(l runLog) {
	l.LogInfo("crawling %d projects, window %s, %d credentials", b.Projects, b.Window, b.Credentials)
	if b.QuotaErr != nil {
		l.LogWarning("could not read rate limit for %v", b.QuotaErr)
		return
	}
	l.LogInfo("quota %s", b.Quota)
}
