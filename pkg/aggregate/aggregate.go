// Package aggregate folds fork creation timestamps into per-day counts.
package aggregate

import (
	"sort"
	"time"

	"forkcrawl/pkg/config"
)

// DateLayout is the bucket key format
const DateLayout = "2006-01-02"

// Window is an inclusive time range
type Window struct {
	Start time.Time
	End   time.Time
}

// DefaultWindow is 2022-03-01T00:00:00Z through 2023-03-31T23:59:59Z
func DefaultWindow() Window {
	return Window{Start: config.DefaultWindowStart, End: config.DefaultWindowEnd}
}

// NewWindow builds a window from the crawl configuration
func NewWindow(cfg *config.CrawlConfig) Window {
	return Window{Start: cfg.WindowStart.UTC(), End: cfg.WindowEnd.UTC()}
}

// Contains reports whether t lies inside the window, bounds included
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Start) && !t.After(w.End)
}

// PageCounts is the contribution of a single page
type PageCounts struct {
	// Days maps UTC date to the number of in-window records created that day
	Days map[string]int
	// Total counts every record with a usable timestamp, in window or not
	Total int
	// Skipped counts records with a missing or unparseable timestamp
	Skipped int
}

// InRange returns the number of in-window records
func (p PageCounts) InRange() int {
	n := 0
	for _, c := range p.Days {
		n += c
	}
	return n
}

// Fold aggregates the created_at values of one page. Timestamps are RFC 3339;
// anything else is skipped and counted in neither total.
func Fold(timestamps []string, w Window) PageCounts {
	out := PageCounts{Days: make(map[string]int)}

	for _, raw := range timestamps {
		if raw == "" {
			out.Skipped++
			continue
		}
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			out.Skipped++
			continue
		}

		out.Total++
		if w.Contains(t) {
			out.Days[t.UTC().Format(DateLayout)]++
		}
	}
	return out
}

// Merge adds the day counts of src into dst
func Merge(dst, src map[string]int) {
	for day, c := range src {
		dst[day] += c
	}
}

// SortedDays returns the keys of days in ascending date order
func SortedDays(days map[string]int) []string {
	keys := make([]string, 0, len(days))
	for k := range days {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
