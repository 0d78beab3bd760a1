// Package pipeline runs the whole ingestion pipeline across every active
// search group: fetch, filter, dedup, judge, persist, then send the digest.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/amishk599/jobsift/internal/ai"
	"github.com/amishk599/jobsift/internal/dedup"
	"github.com/amishk599/jobsift/internal/filter"
	"github.com/amishk599/jobsift/internal/ledger"
	"github.com/amishk599/jobsift/internal/model"
)

var (
	// ErrRunInProgress is returned when a trigger arrives while a run is in
	// flight. No run row is created for the rejected trigger.
	ErrRunInProgress = errors.New("a run is already in progress")
	// ErrNoActiveGroups fails a run when configuration has nothing to search.
	ErrNoActiveGroups = errors.New("no active search groups configured")
	// ErrMissingCredentials fails a run when a provider or AI key is empty.
	ErrMissingCredentials = errors.New("missing credentials")
)

// Store is the persistence the pipeline needs.
type Store interface {
	dedup.IDLookup
	ledger.RunStore
	SyncGroups(ctx context.Context, groups []model.SearchGroup) error
	CommitGroup(ctx context.Context, jobs []model.StoredJob, entries []model.RunJobLogEntry) (int, error)
	PriorStrongMatches(ctx context.Context, company, title string, limit int) ([]model.StoredJob, error)
	UnseenStrongMatches(ctx context.Context) ([]model.StoredJob, error)
	MarkSeen(ctx context.Context, ids []string) error
}

// Judge scores postings and checks strong matches for semantic duplicates.
type Judge interface {
	Score(ctx context.Context, group model.SearchGroup, p model.CanonicalPosting) ai.ScoreResult
	CheckDuplicate(ctx context.Context, sp model.ScoredPosting, priors []model.StoredJob) ai.DedupResult
}

// Config is the run-time configuration read once at construction.
type Config struct {
	Groups        []model.SearchGroup
	Blacklist     []string
	MaxResults    int
	SourceTimeout time.Duration

	DigestEnabled   bool
	DigestRecipient string
	DigestTimeout   time.Duration

	// Credentials maps a setting name to its value; any empty value fails
	// the run before it starts.
	Credentials map[string]string
}

// Orchestrator owns one pipeline run at a time.
type Orchestrator struct {
	cfg    Config
	source model.PostingSource
	judge  Judge
	store  Store
	sender model.DigestSender
	state  *RunState
	logger *slog.Logger
	now    func() time.Time

	wg sync.WaitGroup
}

// NewOrchestrator wires the pipeline. sender may be nil when the digest is
// disabled. state may be nil to create a fresh gate on the wall clock.
func NewOrchestrator(
	cfg Config,
	source model.PostingSource,
	judge Judge,
	store Store,
	sender model.DigestSender,
	state *RunState,
	logger *slog.Logger,
) *Orchestrator {
	if state == nil {
		state = NewRunState(nil)
	}
	return &Orchestrator{
		cfg:    cfg,
		source: source,
		judge:  judge,
		store:  store,
		sender: sender,
		state:  state,
		logger: logger,
		now:    state.now,
	}
}

// State exposes the run gate for status reporting.
func (o *Orchestrator) State() *RunState {
	return o.state
}

// Run executes one run synchronously and returns its final record.
func (o *Orchestrator) Run(ctx context.Context, trigger model.Trigger) (model.Run, error) {
	if !o.state.TryAcquire() {
		return model.Run{}, ErrRunInProgress
	}
	return o.execute(ctx, trigger)
}

// Trigger starts a run in the background and returns immediately. ctx must
// be the long-lived process context, not a request context.
func (o *Orchestrator) Trigger(ctx context.Context, trigger model.Trigger) error {
	if !o.state.TryAcquire() {
		return ErrRunInProgress
	}
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		if _, err := o.execute(ctx, trigger); err != nil {
			o.logger.Error("background run failed", "trigger", trigger, "error", err)
		}
	}()
	return nil
}

// Wait blocks until every background run started by Trigger has returned.
func (o *Orchestrator) Wait() {
	o.wg.Wait()
}

// execute assumes the gate is held and always releases it.
func (o *Orchestrator) execute(ctx context.Context, trigger model.Trigger) (run model.Run, err error) {
	l := ledger.New(o.store, trigger, o.now, o.logger)
	var stats model.RunStats
	// Ledger writes must land even if ctx was cancelled for shutdown.
	writeCtx := context.WithoutCancel(ctx)

	defer func() {
		if r := recover(); r != nil {
			cause := fmt.Errorf("panic during run: %v", r)
			run, _ = l.Fail(writeCtx, stats, cause)
			err = cause
		}
		o.state.Release(&run)
	}()

	groups, err := o.preflight()
	if err != nil {
		return o.fail(writeCtx, l, stats, err)
	}

	runID, err := l.Begin(writeCtx)
	if err != nil {
		return o.fail(writeCtx, l, stats, err)
	}
	log := o.logger.With("run_id", runID)

	if err := o.store.SyncGroups(ctx, groups); err != nil {
		return o.fail(writeCtx, l, stats, fmt.Errorf("sync search groups: %w", err))
	}

	rd := dedup.NewRunDedup()
	pd := dedup.NewProviderDedup(o.store)
	blacklist := filter.NewBlacklist(o.cfg.Blacklist)
	log.Debug("run started", "groups", len(groups), "blacklisted_companies", blacklist.Len())

	for _, g := range groups {
		if ctx.Err() != nil {
			l.RecordError(fmt.Errorf("run interrupted before group %s: %w", g.ID, ctx.Err()))
			break
		}
		gr := &groupRun{
			o:         o,
			group:     g,
			ledger:    l,
			runDedup:  rd,
			provider:  pd,
			blacklist: blacklist,
			logger:    log.With("group", g.ID),
		}
		gs, gerr := gr.process(ctx)
		stats.Add(gs)
		if gerr != nil {
			l.RecordError(gerr)
			log.Error("group failed", "group", g.ID, "error", gerr)
		}
	}

	if o.cfg.DigestEnabled {
		if derr := o.sendDigest(ctx, groups); derr != nil {
			l.RecordError(fmt.Errorf("digest: %w", derr))
			log.Error("digest failed", "error", derr)
		}
	}

	return l.Finish(writeCtx, stats)
}

// fail finalizes the run as failed and returns cause, joined with any error
// from writing the failed record.
func (o *Orchestrator) fail(ctx context.Context, l *ledger.Ledger, stats model.RunStats, cause error) (model.Run, error) {
	run, err := l.Fail(ctx, stats, cause)
	return run, errors.Join(cause, err)
}

// preflight validates configuration and returns a frozen, ordered copy of
// the active groups. The run uses only that copy.
func (o *Orchestrator) preflight() ([]model.SearchGroup, error) {
	var missing []string
	for name, value := range o.cfg.Credentials {
		if strings.TrimSpace(value) == "" {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return nil, fmt.Errorf("%w: %s", ErrMissingCredentials, strings.Join(missing, ", "))
	}

	groups := ActiveGroups(o.cfg.Groups)
	if len(groups) == 0 {
		return nil, ErrNoActiveGroups
	}
	return groups, nil
}

// ActiveGroups returns frozen copies of the active groups in configuration
// order.
func ActiveGroups(all []model.SearchGroup) []model.SearchGroup {
	var out []model.SearchGroup
	for _, g := range all {
		if g.Active {
			out = append(out, g.Freeze())
		}
	}
	return out
}
