package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/amishk599/jobsift/internal/model"
)

const runColumns = `id, ran_at, run_trigger, status, jobs_fetched, jobs_scored,
	strong, weak, no_match, duplicate, error_log, duration_ms`

// InsertRun creates a run row.
func (s *SQLiteStore) InsertRun(ctx context.Context, r model.Run) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO runs (`+runColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, formatTime(r.RanAt), string(r.Trigger), string(r.Status),
		r.Stats.Fetched, r.Stats.Scored, r.Stats.Strong, r.Stats.Weak, r.Stats.NoMatch, r.Stats.Duplicate,
		r.ErrorLog, r.DurationMs,
	)
	if err != nil {
		return fmt.Errorf("inserting run %s: %w", r.ID, err)
	}
	return nil
}

// UpdateRun writes the aggregates, status, error log and duration of an
// existing run. ErrNotFound if the run does not exist.
func (s *SQLiteStore) UpdateRun(ctx context.Context, r model.Run) error {
	res, err := s.db.ExecContext(ctx, `UPDATE runs SET
		status = ?, jobs_fetched = ?, jobs_scored = ?, strong = ?, weak = ?,
		no_match = ?, duplicate = ?, error_log = ?, duration_ms = ?
		WHERE id = ?`,
		string(r.Status), r.Stats.Fetched, r.Stats.Scored, r.Stats.Strong, r.Stats.Weak,
		r.Stats.NoMatch, r.Stats.Duplicate, r.ErrorLog, r.DurationMs,
		r.ID,
	)
	if err != nil {
		return fmt.Errorf("updating run %s: %w", r.ID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("updating run %s: %w", r.ID, ErrNotFound)
	}
	return nil
}

// GetRun loads one run.
func (s *SQLiteStore) GetRun(ctx context.Context, id string) (model.Run, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id)
	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Run{}, fmt.Errorf("run %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return model.Run{}, fmt.Errorf("loading run %s: %w", id, err)
	}
	return r, nil
}

// RecentRuns returns up to limit runs, newest first.
func (s *SQLiteStore) RecentRuns(ctx context.Context, limit int) ([]model.Run, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+runColumns+` FROM runs ORDER BY ran_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}
	defer rows.Close()

	var runs []model.Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning run: %w", err)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(sc scanner) (model.Run, error) {
	var (
		r                      model.Run
		ranAt, trigger, status string
	)
	err := sc.Scan(&r.ID, &ranAt, &trigger, &status,
		&r.Stats.Fetched, &r.Stats.Scored, &r.Stats.Strong, &r.Stats.Weak, &r.Stats.NoMatch, &r.Stats.Duplicate,
		&r.ErrorLog, &r.DurationMs,
	)
	if err != nil {
		return model.Run{}, err
	}
	r.Trigger = model.Trigger(trigger)
	r.Status = model.RunStatus(status)
	if r.RanAt, err = parseTime(ranAt); err != nil {
		return model.Run{}, err
	}
	return r, nil
}

const entryColumns = `run_id, group_id, external_id, title, company, location, url,
	outcome, score, rejection_category, rationale, duplicate_of_id, reason, logged_at`

func insertEntries(ctx context.Context, tx *sql.Tx, entries []model.RunJobLogEntry) error {
	if len(entries) == 0 {
		return nil
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO run_job_logs (`+entryColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare log insert: %w", err)
	}
	defer stmt.Close()

	for _, e := range entries {
		var score sql.NullInt64
		if e.Score != nil {
			score = sql.NullInt64{Int64: int64(*e.Score), Valid: true}
		}
		var category sql.NullString
		if e.RejectionCategory != nil {
			category = sql.NullString{String: string(*e.RejectionCategory), Valid: true}
		}

		_, err := stmt.ExecContext(ctx,
			e.RunID, e.GroupID, e.ExternalID, e.Title, e.Company, e.Location, e.URL,
			string(e.Outcome), score, category, e.Rationale, nullString(e.DuplicateOfID), e.Reason, formatTime(e.LoggedAt),
		)
		if err != nil {
			return fmt.Errorf("inserting log entry for %s: %w", e.ExternalID, err)
		}
	}
	return nil
}

// RunLog returns every log entry of a run in insertion order.
func (s *SQLiteStore) RunLog(ctx context.Context, runID string) ([]model.RunJobLogEntry, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+entryColumns+` FROM run_job_logs WHERE run_id = ? ORDER BY id`, runID)
	if err != nil {
		return nil, fmt.Errorf("loading log for run %s: %w", runID, err)
	}
	defer rows.Close()

	var entries []model.RunJobLogEntry
	for rows.Next() {
		var (
			e                 model.RunJobLogEntry
			outcome, loggedAt string
			score             sql.NullInt64
			category, dupOf   sql.NullString
		)
		err := rows.Scan(&e.RunID, &e.GroupID, &e.ExternalID, &e.Title, &e.Company, &e.Location, &e.URL,
			&outcome, &score, &category, &e.Rationale, &dupOf, &e.Reason, &loggedAt)
		if err != nil {
			return nil, fmt.Errorf("scanning log entry: %w", err)
		}

		e.Outcome = model.Outcome(outcome)
		if score.Valid {
			v := int(score.Int64)
			e.Score = &v
		}
		if category.Valid {
			c := model.RejectionCategory(category.String)
			e.RejectionCategory = &c
		}
		e.DuplicateOfID = stringPtr(dupOf)
		if e.LoggedAt, err = parseTime(loggedAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
