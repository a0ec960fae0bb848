package checkpoint

import (
	"fmt"
	"sort"
	"time"

	"forkcrawl/pkg/aggregate"
)

// CurrentVersion is the checkpoint format written by this build
const CurrentVersion = 2

// Checkpoint is the durable progress of one project.
//
// PageContributions is the source of truth: for every date, the sum over
// pages equals DailyForks[date]. DailyForks is rebuilt on load and never
// trusted on its own.
type Checkpoint struct {
	Project           string                 `json:"project"`
	LastPage          int                    `json:"last_page"`
	PageContributions map[int]map[string]int `json:"page_contributions"`
	// PageRecords is the number of timestamped records on each page, in
	// window or not. Absent in checkpoints written by older crawlers.
	PageRecords      map[int]int    `json:"page_records,omitempty"`
	DailyForks       map[string]int `json:"daily_forks"`
	TotalRecordsSeen int            `json:"total_records_seen"`
	Completed        bool           `json:"completed"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
	Version          int            `json:"version"`
}

// New returns the zero checkpoint for project
func New(project string) *Checkpoint {
	now := time.Now().UTC()
	return &Checkpoint{
		Project:           project,
		PageContributions: make(map[int]map[string]int),
		PageRecords:       make(map[int]int),
		DailyForks:        make(map[string]int),
		CreatedAt:         now,
		UpdatedAt:         now,
		Version:           CurrentVersion,
	}
}

// Resume prepares the checkpoint for another pass and returns the page to
// fetch next. The last recorded page may have been cut short, so its
// contribution is removed and it is fetched again.
func (c *Checkpoint) Resume() int {
	if c.LastPage <= 0 {
		c.rebuild()
		return 1
	}

	page := c.LastPage
	if days, ok := c.PageContributions[page]; ok {
		removed := sum(days)
		if n, ok := c.PageRecords[page]; ok {
			removed = n
		}
		c.TotalRecordsSeen -= removed
		if c.TotalRecordsSeen < 0 {
			c.TotalRecordsSeen = 0
		}
		delete(c.PageContributions, page)
		delete(c.PageRecords, page)
	}

	c.rebuild()
	return page
}

// Record stores the contribution of page, replacing any earlier one
func (c *Checkpoint) Record(page int, counts aggregate.PageCounts) {
	if c.PageContributions == nil {
		c.PageContributions = make(map[int]map[string]int)
	}
	if c.PageRecords == nil {
		c.PageRecords = make(map[int]int)
	}
	if c.DailyForks == nil {
		c.DailyForks = make(map[string]int)
	}

	if old, ok := c.PageContributions[page]; ok {
		for day, n := range old {
			c.DailyForks[day] -= n
			if c.DailyForks[day] <= 0 {
				delete(c.DailyForks, day)
			}
		}
		if n, ok := c.PageRecords[page]; ok {
			c.TotalRecordsSeen -= n
		} else {
			c.TotalRecordsSeen -= sum(old)
		}
	}

	days := make(map[string]int, len(counts.Days))
	for day, n := range counts.Days {
		if n > 0 {
			days[day] = n
		}
	}
	c.PageContributions[page] = days
	c.PageRecords[page] = counts.Total
	c.TotalRecordsSeen += counts.Total
	aggregate.Merge(c.DailyForks, days)

	if page > c.LastPage {
		c.LastPage = page
	}
}

// InRangeTotal is the number of in-window records across all pages
func (c *Checkpoint) InRangeTotal() int {
	n := 0
	for _, days := range c.PageContributions {
		n += sum(days)
	}
	return n
}

// DayTotals returns a fresh day -> count map summed from page contributions
func (c *Checkpoint) DayTotals() map[string]int {
	totals := make(map[string]int)
	for _, days := range c.PageContributions {
		aggregate.Merge(totals, days)
	}
	return totals
}

// Pages returns the recorded page numbers in ascending order
func (c *Checkpoint) Pages() []int {
	pages := make([]int, 0, len(c.PageContributions))
	for p := range c.PageContributions {
		pages = append(pages, p)
	}
	sort.Ints(pages)
	return pages
}

// Validate checks a decoded checkpoint. Violations that can be derived from
// page contributions are repaired and described in the returned list;
// anything else is an error and the checkpoint must be discarded.
func (c *Checkpoint) Validate(project string) ([]string, error) {
	var repairs []string

	if c.Project == "" {
		c.Project = project
	} else if c.Project != project {
		return nil, fmt.Errorf("checkpoint belongs to %q, not %q", c.Project, project)
	}
	if c.Version > CurrentVersion {
		return nil, fmt.Errorf("unsupported checkpoint version %d", c.Version)
	}
	if c.LastPage < 0 {
		return nil, fmt.Errorf("negative last_page %d", c.LastPage)
	}
	if c.TotalRecordsSeen < 0 {
		return nil, fmt.Errorf("negative total_records_seen %d", c.TotalRecordsSeen)
	}

	if c.PageContributions == nil {
		c.PageContributions = make(map[int]map[string]int)
	}
	for page, days := range c.PageContributions {
		if page < 1 {
			return nil, fmt.Errorf("invalid page %d", page)
		}
		for day, n := range days {
			if _, err := time.Parse(aggregate.DateLayout, day); err != nil {
				return nil, fmt.Errorf("page %d: invalid date %q", page, day)
			}
			if n < 0 {
				return nil, fmt.Errorf("page %d: negative count for %s", page, day)
			}
		}
		if days == nil {
			c.PageContributions[page] = make(map[string]int)
		}
	}

	if c.PageRecords == nil {
		c.PageRecords = make(map[int]int)
	}
	for page, n := range c.PageRecords {
		days, ok := c.PageContributions[page]
		if !ok {
			delete(c.PageRecords, page)
			repairs = append(repairs, fmt.Sprintf("dropped record count of unrecorded page %d", page))
			continue
		}
		if in := sum(days); n < in {
			c.PageRecords[page] = in
			repairs = append(repairs, fmt.Sprintf("raised record count of page %d from %d to %d", page, n, in))
		}
	}

	if highest := maxPage(c.PageContributions); highest > c.LastPage {
		repairs = append(repairs, fmt.Sprintf("raised last_page from %d to %d", c.LastPage, highest))
		c.LastPage = highest
	}

	if in := c.InRangeTotal(); c.TotalRecordsSeen < in {
		repairs = append(repairs, fmt.Sprintf("raised total_records_seen from %d to %d", c.TotalRecordsSeen, in))
		c.TotalRecordsSeen = in
	}

	totals := c.DayTotals()
	if !equalCounts(totals, c.DailyForks) {
		repairs = append(repairs, "rebuilt daily_forks from page contributions")
	}
	c.DailyForks = totals

	if c.Version == 0 {
		c.Version = CurrentVersion
	}
	return repairs, nil
}

func (c *Checkpoint) rebuild() {
	c.DailyForks = c.DayTotals()
}

func sum(days map[string]int) int {
	n := 0
	for _, c := range days {
		n += c
	}
	return n
}

func maxPage(pages map[int]map[string]int) int {
	highest := 0
	for p := range pages {
		if p > highest {
			highest = p
		}
	}
	return highest
}

func equalCounts(a, b map[string]int) bool {
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		if b[k] != v {
			return false
		}
	}
	return true
}
