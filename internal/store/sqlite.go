package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/amishk599/jobsift/internal/model"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// SQLiteStore persists jobs, runs and run logs in a SQLite database.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS search_groups (
		id             TEXT PRIMARY KEY,
		name           TEXT NOT NULL,
		active         INTEGER NOT NULL,
		system_prompt  TEXT NOT NULL,
		no_match_max   INTEGER NOT NULL,
		weak_match_max INTEGER NOT NULL,
		updated_at     TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS jobs (
		external_id        TEXT PRIMARY KEY,
		group_id           TEXT NOT NULL,
		title              TEXT NOT NULL,
		company            TEXT NOT NULL,
		location           TEXT NOT NULL,
		work_mode          TEXT NOT NULL,
		description        TEXT NOT NULL,
		description_length INTEGER NOT NULL,
		url                TEXT NOT NULL,
		apply_url          TEXT,
		posted_at          TEXT,
		date_confidence    TEXT NOT NULL,
		score              INTEGER NOT NULL,
		verdict            TEXT NOT NULL,
		rationale          TEXT NOT NULL,
		rejection_category TEXT,
		summary            TEXT,
		is_duplicate       INTEGER,
		duplicate_of_id    TEXT,
		seen               INTEGER NOT NULL DEFAULT 0,
		applied            INTEGER NOT NULL DEFAULT 0,
		user_notes         TEXT NOT NULL DEFAULT '',
		fetched_at         TEXT NOT NULL,
		company_key        TEXT NOT NULL,
		title_key          TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_jobs_company_title ON jobs (company_key, title_key)`,
	`CREATE INDEX IF NOT EXISTS idx_jobs_verdict_fetched ON jobs (verdict, fetched_at)`,
	`CREATE TABLE IF NOT EXISTS runs (
		id           TEXT PRIMARY KEY,
		ran_at       TEXT NOT NULL,
		run_trigger  TEXT NOT NULL,
		status       TEXT NOT NULL,
		jobs_fetched INTEGER NOT NULL DEFAULT 0,
		jobs_scored  INTEGER NOT NULL DEFAULT 0,
		strong       INTEGER NOT NULL DEFAULT 0,
		weak         INTEGER NOT NULL DEFAULT 0,
		no_match     INTEGER NOT NULL DEFAULT 0,
		duplicate    INTEGER NOT NULL DEFAULT 0,
		error_log    TEXT NOT NULL DEFAULT '',
		duration_ms  INTEGER NOT NULL DEFAULT 0
	)`,
	`CREATE INDEX IF NOT EXISTS idx_runs_ran_at ON runs (ran_at)`,
	`CREATE TABLE IF NOT EXISTS run_job_logs (
		id                 INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id             TEXT NOT NULL REFERENCES runs (id),
		group_id           TEXT NOT NULL,
		external_id        TEXT NOT NULL,
		title              TEXT NOT NULL,
		company            TEXT NOT NULL,
		location           TEXT NOT NULL,
		url                TEXT NOT NULL,
		outcome            TEXT NOT NULL,
		score              INTEGER,
		rejection_category TEXT,
		rationale          TEXT NOT NULL DEFAULT '',
		duplicate_of_id    TEXT,
		reason             TEXT NOT NULL DEFAULT '',
		logged_at          TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_run_job_logs_run ON run_job_logs (run_id)`,
}

// NewSQLiteStore opens (or creates) a SQLite database at dbPath and ensures
// the schema exists.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	dsn := dbPath + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}

	// Verify the connection is alive.
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging sqlite db: %w", err)
	}

	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("creating schema: %w", err)
		}
	}

	return &SQLiteStore{db: db, now: time.Now}, nil
}

// SyncGroups upserts the configured search groups so stored rows can be
// joined to group names.
func (s *SQLiteStore) SyncGroups(ctx context.Context, groups []model.SearchGroup) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("syncing groups: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO search_groups
		(id, name, active, system_prompt, no_match_max, weak_match_max, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			name = excluded.name,
			active = excluded.active,
			system_prompt = excluded.system_prompt,
			no_match_max = excluded.no_match_max,
			weak_match_max = excluded.weak_match_max,
			updated_at = excluded.updated_at`)
	if err != nil {
		return fmt.Errorf("syncing groups: %w", err)
	}
	defer stmt.Close()

	now := formatTime(s.now())
	for _, g := range groups {
		if _, err := stmt.ExecContext(ctx, g.ID, g.Name, g.Active, g.SystemPrompt,
			g.Thresholds.NoMatchMax, g.Thresholds.WeakMatchMax, now); err != nil {
			return fmt.Errorf("syncing group %s: %w", g.ID, err)
		}
	}
	return tx.Commit()
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Times are stored as RFC 3339 text in UTC so they sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing stored time %q: %w", s, err)
	}
	return t, nil
}

func nullString(p *string) sql.NullString {
	if p == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *p, Valid: true}
}

func stringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

func nullTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(*t), Valid: true}
}
