package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Summary is one row of the projects table
type Summary struct {
	Project   string
	InRange   int
	AllTime   int
	StartDate string
	EndDate   string
	CrawledAt time.Time
	Days      int
}

// SQLiteIndex keeps completed results queryable in a local database
type SQLiteIndex struct {
	db *sql.DB
}

// NewSQLiteIndex opens or creates the database at path
func NewSQLiteIndex(path string) (*SQLiteIndex, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	idx := &SQLiteIndex{db: db}
	if err := idx.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return idx, nil
}

func (s *SQLiteIndex) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS projects (
		project TEXT PRIMARY KEY,
		total_in_range INTEGER NOT NULL,
		total_all_time INTEGER NOT NULL,
		start_date TEXT NOT NULL,
		end_date TEXT NOT NULL,
		crawled_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS daily_forks (
		project TEXT NOT NULL,
		day TEXT NOT NULL,
		count INTEGER NOT NULL,
		PRIMARY KEY (project, day),
		FOREIGN KEY (project) REFERENCES projects(project)
	);

	CREATE INDEX IF NOT EXISTS idx_daily_forks_day ON daily_forks(day);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Name implements Sink
func (s *SQLiteIndex) Name() string { return "sqlite" }

// Publish upserts r and replaces its day rows in one transaction
func (s *SQLiteIndex) Publish(ctx context.Context, r *Result) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO projects (project, total_in_range, total_all_time, start_date, end_date, crawled_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(project) DO UPDATE SET
			total_in_range = EXCLUDED.total_in_range,
			total_all_time = EXCLUDED.total_all_time,
			start_date = EXCLUDED.start_date,
			end_date = EXCLUDED.end_date,
			crawled_at = EXCLUDED.crawled_at
	`, r.Project, r.TotalForksInRange, r.TotalForksAllTime, r.StartDate, r.EndDate, r.CrawledAt.UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("failed to upsert project: %w", err)
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM daily_forks WHERE project = ?", r.Project); err != nil {
		return fmt.Errorf("failed to clear daily forks: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, "INSERT INTO daily_forks (project, day, count) VALUES (?, ?, ?)")
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for day, n := range r.DailyForks {
		if _, err := stmt.ExecContext(ctx, r.Project, day, n); err != nil {
			return fmt.Errorf("failed to insert daily forks: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}
	return nil
}

// Summaries lists all indexed projects, ordered by project
func (s *SQLiteIndex) Summaries(ctx context.Context) ([]Summary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT p.project, p.total_in_range, p.total_all_time, p.start_date, p.end_date, p.crawled_at,
			(SELECT COUNT(*) FROM daily_forks d WHERE d.project = p.project)
		FROM projects p
		ORDER BY p.project
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query projects: %w", err)
	}
	defer rows.Close()

	var out []Summary
	for rows.Next() {
		var sum Summary
		var crawledAt string
		if err := rows.Scan(&sum.Project, &sum.InRange, &sum.AllTime, &sum.StartDate, &sum.EndDate, &crawledAt, &sum.Days); err != nil {
			return nil, fmt.Errorf("failed to scan project: %w", err)
		}
		sum.CrawledAt, _ = time.Parse(time.RFC3339, crawledAt)
		out = append(out, sum)
	}
	return out, rows.Err()
}

// DailyForks returns the indexed day counts of project
func (s *SQLiteIndex) DailyForks(ctx context.Context, project string) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT day, count FROM daily_forks WHERE project = ?", project)
	if err != nil {
		return nil, fmt.Errorf("failed to query daily forks: %w", err)
	}
	defer rows.Close()

	out := make(map[string]int)
	for rows.Next() {
		var day string
		var n int
		if err := rows.Scan(&day, &n); err != nil {
			return nil, fmt.Errorf("failed to scan daily forks: %w", err)
		}
		out[day] = n
	}
	return out, rows.Err()
}

// Close closes the database
func (s *SQLiteIndex) Close() error {
	return s.db.Close()
}
