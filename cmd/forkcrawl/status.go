package main

import (
	"context"
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"forkcrawl/pkg/checkpoint"
	"forkcrawl/pkg/config"
	"forkcrawl/pkg/logger"
	"forkcrawl/pkg/storage"
	"forkcrawl/pkg/ui"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show crawl progress and completed results",
	Long: `Show projects with a checkpoint in progress and projects with a completed
result. Completed results come from the SQLite index when sinks.sqlite_path
is set, otherwise from the result directory.`,
	Args: cobra.NoArgs,
	RunE: runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

// statusRow is one line of the status table
type statusRow struct {
	Project  string
	State    string
	LastPage int
	InRange  int
	AllTime  int
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd, nil, false)
	if err != nil {
		return err
	}
	log := logger.GetLogger()

	store, err := checkpoint.NewFileStore(cfg.Crawl.CheckpointDir, log)
	if err != nil {
		return err
	}
	checkpoints, err := store.List()
	if err != nil {
		return err
	}

	completed, source, err := completedResults(cmd.Context(), cfg)
	if err != nil {
		return err
	}

	rows := statusRows(completed, checkpoints)
	if len(rows) == 0 {
		ui.PrintInfo("Nothing crawled yet", "run 'forkcrawl crawl'")
		return nil
	}

	var done, active int
	ui.PrintHighlight("Projects")
	for _, r := range rows {
		switch r.State {
		case "completed":
			done++
			fmt.Printf("  %s %-40s %8d in window %8d total\n", ui.Green("✓"), r.Project, r.InRange, r.AllTime)
		default:
			active++
			fmt.Printf("  %s %-40s %8d in window  page %d\n", ui.Yellow("›"), r.Project, r.InRange, r.LastPage)
		}
	}
	fmt.Println()
	ui.PrintInfo("Completed", fmt.Sprintf("%d", done))
	ui.PrintInfo("In progress", fmt.Sprintf("%d", active))
	ui.PrintInfo("Results", source)
	return nil
}

// completedResults reads summaries from the SQLite index when configured,
// otherwise from the result files. source describes where they came from.
func completedResults(ctx context.Context, cfg *config.Config) (summaries []storage.Summary, source string, err error) {
	if cfg.Sinks.SQLitePath != "" {
		idx, err := storage.NewSQLiteIndex(cfg.Sinks.SQLitePath)
		if err != nil {
			return nil, "", err
		}
		defer idx.Close()
		summaries, err = idx.Summaries(ctx)
		return summaries, "sqlite " + cfg.Sinks.SQLitePath, err
	}

	results, err := storage.NewManager(cfg.Crawl.ResultDir)
	if err != nil {
		return nil, "", err
	}
	list, err := results.List()
	if err != nil {
		return nil, "", err
	}
	source = fmt.Sprintf("%s (%d files)", results.GetOutputDir(), results.Count())

	summaries = make([]storage.Summary, 0, len(list))
	for _, r := range list {
		summaries = append(summaries, storage.Summary{
			Project:   r.Project,
			InRange:   r.TotalForksInRange,
			AllTime:   r.TotalForksAllTime,
			StartDate: r.StartDate,
			EndDate:   r.EndDate,
			CrawledAt: r.CrawledAt,
			Days:      len(r.DailyForks),
		})
	}
	return summaries, source, nil
}

// statusRows merges completed results with checkpoints. A project with a
// result is completed; a checkpoint without one is in progress. Rows are
// sorted by project.
func statusRows(completed []storage.Summary, checkpoints []*checkpoint.Checkpoint) []statusRow {
	byProject := make(map[string]statusRow)

	for _, cp := range checkpoints {
		state := "in_progress"
		if cp.Completed {
			state = "completed"
		}
		byProject[cp.Project] = statusRow{
			Project:  cp.Project,
			State:    state,
			LastPage: cp.LastPage,
			InRange:  cp.InRangeTotal(),
			AllTime:  cp.TotalRecordsSeen,
		}
	}
	for _, s := range completed {
		row := byProject[s.Project]
		row.Project = s.Project
		row.State = "completed"
		row.InRange = s.InRange
		row.AllTime = s.AllTime
		byProject[s.Project] = row
	}

	rows := make([]statusRow, 0, len(byProject))
	for _, r := range byProject {
		rows = append(rows, r)
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Project < rows[j].Project })
	return rows
}
