package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/amishk599/jobsift/internal/model"
)

// existingIDsChunk keeps IN lists below SQLite's bound variable limit.
const existingIDsChunk = 500

const jobColumns = `external_id, group_id, title, company, location, work_mode,
	description, description_length, url, apply_url, posted_at, date_confidence,
	score, verdict, rationale, rejection_category, summary, is_duplicate,
	duplicate_of_id, seen, applied, user_notes, fetched_at`

// CommitGroup writes one group's scored jobs and log entries in a single
// transaction. Jobs use INSERT OR IGNORE so the first writer of an external
// id wins. It returns how many job rows were actually inserted.
func (s *SQLiteStore) CommitGroup(ctx context.Context, jobs []model.StoredJob, entries []model.RunJobLogEntry) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin group commit: %w", err)
	}
	defer tx.Rollback()

	inserted := 0
	if len(jobs) > 0 {
		stmt, err := tx.PrepareContext(ctx, `INSERT OR IGNORE INTO jobs (`+jobColumns+`, company_key, title_key)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return 0, fmt.Errorf("prepare job insert: %w", err)
		}
		defer stmt.Close()

		for _, j := range jobs {
			res, err := stmt.ExecContext(ctx, jobArgs(j)...)
			if err != nil {
				return 0, fmt.Errorf("inserting job %s: %w", j.ExternalID, err)
			}
			n, _ := res.RowsAffected()
			inserted += int(n)
		}
	}

	if err := insertEntries(ctx, tx, entries); err != nil {
		return 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit group: %w", err)
	}
	return inserted, nil
}

func jobArgs(j model.StoredJob) []any {
	var category sql.NullString
	if j.RejectionCategory != nil {
		category = sql.NullString{String: string(*j.RejectionCategory), Valid: true}
	}
	var isDup sql.NullBool
	var dupOf sql.NullString
	if j.Dedup != nil {
		isDup = sql.NullBool{Bool: j.Dedup.IsDuplicate, Valid: true}
		dupOf = nullString(j.Dedup.DuplicateOfID)
	}
	var applyURL sql.NullString
	if j.ApplyURL != "" {
		applyURL = sql.NullString{String: j.ApplyURL, Valid: true}
	}

	return []any{
		j.ExternalID, j.GroupID, j.Title, j.Company, j.Location, string(j.WorkMode),
		j.Description, j.DescriptionLength, j.URL, applyURL, nullTime(j.PostedAt), string(j.DateConfidence),
		j.Score, string(j.Verdict), j.Rationale, category, nullString(j.Summary), isDup,
		dupOf, j.Seen, j.Applied, j.UserNotes, formatTime(j.FetchedAt),
		strings.ToLower(strings.TrimSpace(j.Company)), strings.ToLower(strings.TrimSpace(j.Title)),
	}
}

// ExistingIDs reports which of ids are already stored. The lookup runs in one
// read transaction, chunked to stay under the bound variable limit.
func (s *SQLiteStore) ExistingIDs(ctx context.Context, ids []string) (map[string]bool, error) {
	found := make(map[string]bool)
	if len(ids) == 0 {
		return found, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("existing ids: %w", err)
	}
	defer tx.Rollback()

	for start := 0; start < len(ids); start += existingIDsChunk {
		end := min(start+existingIDsChunk, len(ids))
		chunk := ids[start:end]

		args := make([]any, len(chunk))
		for i, id := range chunk {
			args[i] = id
		}
		query := `SELECT external_id FROM jobs WHERE external_id IN (` + placeholders(len(chunk)) + `)`

		rows, err := tx.QueryContext(ctx, query, args...)
		if err != nil {
			return nil, fmt.Errorf("existing ids: %w", err)
		}
		for rows.Next() {
			var id string
			if err := rows.Scan(&id); err != nil {
				rows.Close()
				return nil, fmt.Errorf("existing ids: %w", err)
			}
			found[id] = true
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return nil, fmt.Errorf("existing ids: %w", err)
		}
		rows.Close()
	}

	return found, tx.Commit()
}

// PriorStrongMatches returns up to limit stored, non-duplicate strong matches
// with the same lowercased company and title, newest first.
func (s *SQLiteStore) PriorStrongMatches(ctx context.Context, company, title string, limit int) ([]model.StoredJob, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+jobColumns+` FROM jobs
		WHERE company_key = ? AND title_key = ? AND verdict = ?
			AND COALESCE(is_duplicate, 0) = 0
		ORDER BY fetched_at DESC
		LIMIT ?`,
		strings.ToLower(strings.TrimSpace(company)),
		strings.ToLower(strings.TrimSpace(title)),
		string(model.VerdictStrongMatch),
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("prior strong matches: %w", err)
	}
	return scanJobs(rows)
}

// UnseenStrongMatches returns non-duplicate strong matches not yet sent in a
// digest, oldest first.
func (s *SQLiteStore) UnseenStrongMatches(ctx context.Context) ([]model.StoredJob, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+jobColumns+` FROM jobs
		WHERE verdict = ? AND COALESCE(is_duplicate, 0) = 0 AND seen = 0
		ORDER BY fetched_at ASC`,
		string(model.VerdictStrongMatch),
	)
	if err != nil {
		return nil, fmt.Errorf("unseen strong matches: %w", err)
	}
	return scanJobs(rows)
}

// MarkSeen flags the given jobs as seen. Unknown ids are ignored.
func (s *SQLiteStore) MarkSeen(ctx context.Context, ids []string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("marking jobs seen: %w", err)
	}
	defer tx.Rollback()

	for _, id := range ids {
		if _, err := tx.ExecContext(ctx, `UPDATE jobs SET seen = 1 WHERE external_id = ?`, id); err != nil {
			return fmt.Errorf("marking job %s as seen: %w", id, err)
		}
	}
	return tx.Commit()
}

// QueryJobs returns stored jobs matching q, newest first.
func (s *SQLiteStore) QueryJobs(ctx context.Context, q model.JobQuery) ([]model.StoredJob, error) {
	var where []string
	var args []any

	if q.Verdict != "" {
		where = append(where, "verdict = ?")
		args = append(args, string(q.Verdict))
	}
	if q.GroupID != "" {
		where = append(where, "group_id = ?")
		args = append(args, q.GroupID)
	}
	if q.Company != "" {
		where = append(where, "company_key = ?")
		args = append(args, strings.ToLower(strings.TrimSpace(q.Company)))
	}
	if !q.From.IsZero() {
		where = append(where, "fetched_at >= ?")
		args = append(args, formatTime(q.From))
	}
	if !q.To.IsZero() {
		where = append(where, "fetched_at < ?")
		args = append(args, formatTime(q.To))
	}

	query := `SELECT ` + jobColumns + ` FROM jobs`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY fetched_at DESC`
	if q.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, q.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying jobs: %w", err)
	}
	return scanJobs(rows)
}

func scanJobs(rows *sql.Rows) ([]model.StoredJob, error) {
	defer rows.Close()

	var jobs []model.StoredJob
	for rows.Next() {
		var (
			j                        model.StoredJob
			workMode, verdict, conf  string
			applyURL, postedAt       sql.NullString
			category, summary, dupOf sql.NullString
			isDup                    sql.NullBool
			fetchedAt                string
		)
		err := rows.Scan(
			&j.ExternalID, &j.GroupID, &j.Title, &j.Company, &j.Location, &workMode,
			&j.Description, &j.DescriptionLength, &j.URL, &applyURL, &postedAt, &conf,
			&j.Score, &verdict, &j.Rationale, &category, &summary, &isDup,
			&dupOf, &j.Seen, &j.Applied, &j.UserNotes, &fetchedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scanning job: %w", err)
		}

		j.WorkMode = model.WorkMode(workMode)
		j.Verdict = model.Verdict(verdict)
		j.DateConfidence = model.DateConfidence(conf)
		j.ApplyURL = applyURL.String
		j.Summary = stringPtr(summary)
		if category.Valid {
			c := model.RejectionCategory(category.String)
			j.RejectionCategory = &c
		}
		if isDup.Valid {
			j.Dedup = &model.DedupOutcome{IsDuplicate: isDup.Bool, DuplicateOfID: stringPtr(dupOf)}
		}
		if postedAt.Valid {
			t, err := parseTime(postedAt.String)
			if err != nil {
				return nil, err
			}
			j.PostedAt = &t
		}
		if j.FetchedAt, err = parseTime(fetchedAt); err != nil {
			return nil, err
		}

		jobs = append(jobs, j)
	}
	return jobs, rows.Err()
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}
