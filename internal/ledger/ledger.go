// Package ledger keeps the audit record of a single pipeline run: the run row
// itself, the per-posting log entries and the accumulated error log.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/amishk599/jobsift/internal/model"
)

// RunStore persists run rows.
type RunStore interface {
	InsertRun(ctx context.Context, r model.Run) error
	UpdateRun(ctx context.Context, r model.Run) error
}

// Ledger records one run. Create a new Ledger per run; it is not safe for
// concurrent use.
type Ledger struct {
	store   RunStore
	trigger model.Trigger
	logger  *slog.Logger
	now     func() time.Time
	newID   func() string

	run      *model.Run
	started  time.Time
	pending  []model.RunJobLogEntry
	errs     []string
	failures int
}

// New creates a Ledger for a run started by trigger. now may be nil to use
// the wall clock.
func New(store RunStore, trigger model.Trigger, now func() time.Time, logger *slog.Logger) *Ledger {
	if now == nil {
		now = time.Now
	}
	return &Ledger{
		store:   store,
		trigger: trigger,
		logger:  logger,
		now:     now,
		newID:   uuid.NewString,
		started: now(),
	}
}

// Begin inserts the run row in running status and returns its id.
func (l *Ledger) Begin(ctx context.Context) (string, error) {
	if l.run != nil {
		return "", fmt.Errorf("run %s already started", l.run.ID)
	}

	l.started = l.now()
	r := model.Run{
		ID:      l.newID(),
		RanAt:   l.started,
		Trigger: l.trigger,
		Status:  model.RunStatusRunning,
	}
	if err := l.store.InsertRun(ctx, r); err != nil {
		return "", fmt.Errorf("begin run: %w", err)
	}
	l.run = &r
	l.logger.Info("run started", "run_id", r.ID, "trigger", l.trigger)
	return r.ID, nil
}

// RunID is the id of the current run, empty before Begin succeeds.
func (l *Ledger) RunID() string {
	if l.run == nil {
		return ""
	}
	return l.run.ID
}

// Record buffers a log entry for the current run. Entries are written by the
// group commit together with the group's jobs.
func (l *Ledger) Record(e model.RunJobLogEntry) {
	e.RunID = l.RunID()
	if e.LoggedAt.IsZero() {
		e.LoggedAt = l.now()
	}
	l.pending = append(l.pending, e)
}

// Drain returns the buffered entries and clears the buffer.
func (l *Ledger) Drain() []model.RunJobLogEntry {
	out := l.pending
	l.pending = nil
	return out
}

// RecordError appends an error to the run's error log. A completed run with
// any recorded error finishes as partial_error.
func (l *Ledger) RecordError(err error) {
	l.errs = append(l.errs, err.Error())
	l.failures++
}

// Note appends a line to the error log without affecting the final status.
func (l *Ledger) Note(msg string) {
	l.errs = append(l.errs, msg)
}

// Errors returns the error log lines recorded so far.
func (l *Ledger) Errors() []string {
	return append([]string(nil), l.errs...)
}

// Finish writes the aggregates and the final status.
func (l *Ledger) Finish(ctx context.Context, stats model.RunStats) (model.Run, error) {
	if l.run == nil {
		return model.Run{}, errors.New("finish: run not started")
	}

	status := model.RunStatusSuccess
	if l.failures > 0 {
		status = model.RunStatusPartialError
	}
	r := l.complete(stats, status)
	if err := l.store.UpdateRun(ctx, r); err != nil {
		return r, fmt.Errorf("finish run %s: %w", r.ID, err)
	}

	l.logger.Info("run finished",
		"run_id", r.ID,
		"status", r.Status,
		"fetched", stats.Fetched,
		"scored", stats.Scored,
		"strong", stats.Strong,
		"weak", stats.Weak,
		"no_match", stats.NoMatch,
		"duplicate", stats.Duplicate,
		"duration_ms", r.DurationMs,
	)
	return r, nil
}

// Fail marks the run failed. If Begin never succeeded a failed row is
// inserted instead, so every attempted run leaves exactly one record.
func (l *Ledger) Fail(ctx context.Context, stats model.RunStats, cause error) (model.Run, error) {
	l.errs = append(l.errs, cause.Error())

	if l.run == nil {
		l.run = &model.Run{ID: l.newID(), RanAt: l.started, Trigger: l.trigger}
		r := l.complete(stats, model.RunStatusFailed)
		if err := l.store.InsertRun(ctx, r); err != nil {
			return r, fmt.Errorf("record failed run: %w", err)
		}
		l.logger.Error("run failed before start", "run_id", r.ID, "error", cause)
		return r, nil
	}

	r := l.complete(stats, model.RunStatusFailed)
	if err := l.store.UpdateRun(ctx, r); err != nil {
		return r, fmt.Errorf("record failed run %s: %w", r.ID, err)
	}
	l.logger.Error("run failed", "run_id", r.ID, "error", cause)
	return r, nil
}

func (l *Ledger) complete(stats model.RunStats, status model.RunStatus) model.Run {
	l.run.Stats = stats
	l.run.Status = status
	l.run.ErrorLog = strings.Join(l.errs, "\n")
	l.run.DurationMs = l.now().Sub(l.started).Milliseconds()
	return *l.run
}
