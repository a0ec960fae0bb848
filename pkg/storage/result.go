package storage

import (
	"time"

	"forkcrawl/pkg/aggregate"
	"forkcrawl/pkg/checkpoint"
)

// Result is the final per-project output read by downstream consumers.
// DailyForks is encoded with keys in ascending date order.
type Result struct {
	Project           string         `json:"project" bson:"project"`
	TotalForksInRange int            `json:"total_forks_in_range" bson:"total_forks_in_range"`
	TotalForksAllTime int            `json:"total_forks_all_time" bson:"total_forks_all_time"`
	StartDate         string         `json:"start_date" bson:"start_date"`
	EndDate           string         `json:"end_date" bson:"end_date"`
	CrawledAt         time.Time      `json:"crawled_at" bson:"crawled_at"`
	DailyForks        map[string]int `json:"daily_forks" bson:"daily_forks"`
}

// NewResult builds the result of a fully crawled checkpoint
func NewResult(cp *checkpoint.Checkpoint, w aggregate.Window, crawledAt time.Time) *Result {
	days := cp.DayTotals()
	return &Result{
		Project:           cp.Project,
		TotalForksInRange: cp.InRangeTotal(),
		TotalForksAllTime: cp.TotalRecordsSeen,
		StartDate:         w.Start.UTC().Format(aggregate.DateLayout),
		EndDate:           w.End.UTC().Format(aggregate.DateLayout),
		CrawledAt:         crawledAt.UTC(),
		DailyForks:        days,
	}
}
