package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/amishk599/jobsift/internal/model"
	"github.com/amishk599/jobsift/internal/pipeline"
)

// Runner starts a pipeline run in the background.
type Runner interface {
	Trigger(ctx context.Context, trigger model.Trigger) error
}

// Scheduler fires scheduled runs on a cron spec. It never queues: a tick that
// lands while a run is in flight is skipped.
type Scheduler struct {
	cron       *cron.Cron
	spec       string
	runner     Runner
	runOnStart bool
	logger     *slog.Logger
}

// NewScheduler validates spec (standard 5-field cron or a descriptor such as
// "@every 6h") and returns a scheduler for runner.
func NewScheduler(spec string, runner Runner, runOnStart bool, logger *slog.Logger) (*Scheduler, error) {
	if _, err := cron.ParseStandard(spec); err != nil {
		return nil, fmt.Errorf("invalid schedule %q: %w", spec, err)
	}
	return &Scheduler{
		cron:       cron.New(cron.WithLogger(cronLogger{logger})),
		spec:       spec,
		runner:     runner,
		runOnStart: runOnStart,
		logger:     logger,
	}, nil
}

// Run starts the cron loop and blocks until ctx is cancelled. It returns nil
// on graceful shutdown, after any tick in progress has returned.
func (s *Scheduler) Run(ctx context.Context) error {
	if _, err := s.cron.AddFunc(s.spec, func() { s.fire(ctx) }); err != nil {
		return fmt.Errorf("cron.AddFunc: %w", err)
	}
	s.cron.Start()
	s.logger.Info("starting scheduler", "schedule", s.spec, "next", s.Next())

	if s.runOnStart {
		s.fire(ctx)
	}

	<-ctx.Done()
	s.logger.Info("shutting down scheduler")
	<-s.cron.Stop().Done()
	return nil
}

// Next is the time of the next scheduled tick, zero before Run.
func (s *Scheduler) Next() time.Time {
	entries := s.cron.Entries()
	if len(entries) == 0 {
		return time.Time{}
	}
	return entries[0].Next
}

func (s *Scheduler) fire(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	err := s.runner.Trigger(ctx, model.TriggerScheduled)
	switch {
	case err == nil:
		s.logger.Info("scheduled run started")
	case errors.Is(err, pipeline.ErrRunInProgress):
		s.logger.Info("skipping scheduled run, another run is in progress")
	default:
		s.logger.Error("scheduled run not started", "error", err)
	}
}

// cronLogger routes robfig/cron's internal logging through slog.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}
