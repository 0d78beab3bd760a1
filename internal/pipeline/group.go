package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/amishk599/jobsift/internal/ai"
	"github.com/amishk599/jobsift/internal/dedup"
	"github.com/amishk599/jobsift/internal/filter"
	"github.com/amishk599/jobsift/internal/ledger"
	"github.com/amishk599/jobsift/internal/model"
)

// groupRun processes one search group inside a run:
// fetch → filter → run dedup → provider dedup → score → strong-match dedup → commit.
type groupRun struct {
	o         *Orchestrator
	group     model.SearchGroup
	ledger    *ledger.Ledger
	runDedup  *dedup.RunDedup
	provider  *dedup.ProviderDedup
	blacklist *filter.Blacklist
	logger    *slog.Logger

	jobs []model.StoredJob
}

// process runs the group and commits whatever it produced in one
// transaction. The returned error is group-scoped; the run carries on.
func (g *groupRun) process(ctx context.Context) (model.RunStats, error) {
	stats, err := g.collect(ctx)

	entries := g.ledger.Drain()
	if len(g.jobs) == 0 && len(entries) == 0 {
		g.settleRunDedup(err)
		return stats, err
	}
	inserted, cerr := g.o.store.CommitGroup(ctx, g.jobs, entries)
	if cerr != nil {
		// The batch rolled back: nothing scored in this group was kept, and
		// later groups must not treat its postings as taken.
		g.runDedup.Discard()
		lost := model.RunStats{Fetched: stats.Fetched}
		if err != nil {
			return lost, fmt.Errorf("group %s: %w (commit also failed: %v)", g.group.ID, err, cerr)
		}
		return lost, fmt.Errorf("group %s: commit: %w", g.group.ID, cerr)
	}
	g.settleRunDedup(err)

	g.logger.Info("group processed",
		"fetched", stats.Fetched,
		"scored", stats.Scored,
		"strong", stats.Strong,
		"weak", stats.Weak,
		"no_match", stats.NoMatch,
		"duplicate", stats.Duplicate,
		"stored", inserted,
		"run_accepted", g.runDedup.AcceptedCount(),
	)
	return stats, err
}

// settleRunDedup publishes the group's admissions and claims to later groups
// once its batch is stored. A group that failed before scoring anything
// releases them so another group can still score those postings.
func (g *groupRun) settleRunDedup(collectErr error) {
	if collectErr != nil && len(g.jobs) == 0 {
		g.runDedup.Discard()
		return
	}
	g.runDedup.Commit()
}

func (g *groupRun) collect(ctx context.Context) (model.RunStats, error) {
	var stats model.RunStats

	postings, err := g.fetch(ctx)
	if err != nil {
		return stats, fmt.Errorf("group %s: fetch: %w", g.group.ID, err)
	}
	stats.Fetched = len(postings)

	titles := filter.NewTitleFilter(g.group.TitleFilter)
	if titles.Empty() {
		g.logger.Debug("no title filter, every title passes")
	}
	filtered := filter.Apply(postings, g.group.ID, g.blacklist, titles)
	for _, e := range filtered.Removed {
		g.ledger.Record(e)
	}

	admitted := g.runDedup.Admit(g.group.ID, filtered.Kept)
	for _, p := range admitted.Repeats {
		e := model.EntryFor(p, g.group.ID, model.OutcomeDuplicate)
		e.Reason = "external id repeated in the same fetch"
		g.ledger.Record(e)
		stats.Duplicate++
	}
	if n := len(admitted.CrossGroup); n > 0 {
		g.logger.Debug("dropped postings accepted by an earlier group", "count", n)
	}

	part, err := g.provider.Split(ctx, admitted.Kept)
	if err != nil {
		return stats, fmt.Errorf("group %s: provider dedup: %w", g.group.ID, err)
	}
	if n := len(part.ProviderDupes); n > 0 {
		g.logger.Debug("skipped already stored postings", "count", n)
	}

	for _, p := range part.New {
		if ctx.Err() != nil {
			return stats, fmt.Errorf("group %s: interrupted: %w", g.group.ID, ctx.Err())
		}
		g.judgePosting(ctx, p, &stats)
	}
	return stats, nil
}

func (g *groupRun) fetch(ctx context.Context) ([]model.CanonicalPosting, error) {
	if g.o.cfg.SourceTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.o.cfg.SourceTimeout)
		defer cancel()
	}
	return g.o.source.Search(ctx, g.group.Query(g.o.cfg.MaxResults))
}

// judgePosting runs Call 1 and, for strong matches, the duplicate checks.
// Postings that cannot be scored are skipped, never stored.
func (g *groupRun) judgePosting(ctx context.Context, p model.CanonicalPosting, stats *model.RunStats) {
	res := g.o.judge.Score(ctx, g.group, p)
	if res.Outcome != ai.OutcomeOK {
		g.ledger.Note(fmt.Sprintf("group %s: skipped %s (%s at %s): scoring failed: %v",
			g.group.ID, p.ExternalID, p.Title, p.Company, res.Failure))
		return
	}
	stats.Scored++

	sp := res.Scored
	job := model.StoredJob{
		ScoredPosting: sp,
		GroupID:       g.group.ID,
		FetchedAt:     g.o.now(),
	}
	entry := model.EntryFor(p, g.group.ID, model.OutcomeForVerdict(sp.Verdict))
	score := sp.Score
	entry.Score = &score
	entry.Rationale = sp.Rationale
	entry.RejectionCategory = sp.RejectionCategory

	switch sp.Verdict {
	case model.VerdictStrongMatch:
		outcome, reason := g.strongMatchDedup(ctx, sp)
		job.Dedup = &outcome
		if outcome.IsDuplicate {
			job.Summary = nil
			entry.Outcome = model.OutcomeDuplicate
			entry.DuplicateOfID = outcome.DuplicateOfID
			entry.Reason = reason
			stats.Duplicate++
		} else {
			stats.Strong++
		}
	case model.VerdictWeakMatch:
		stats.Weak++
	default:
		stats.NoMatch++
	}

	g.jobs = append(g.jobs, job)
	g.ledger.Record(entry)
}

// strongMatchDedup decides whether a strong match repeats a role already
// confirmed this run or already stored. The run-scoped company|title claim
// is checked first and costs no AI call.
func (g *groupRun) strongMatchDedup(ctx context.Context, sp model.ScoredPosting) (model.DedupOutcome, string) {
	key := sp.Key()
	if id, ok := g.runDedup.Claimed(key); ok {
		return model.DedupOutcome{IsDuplicate: true, DuplicateOfID: &id},
			"same company and title already matched in this run"
	}

	priors, err := g.o.store.PriorStrongMatches(ctx, sp.Company, sp.Title, ai.MaxPriors)
	if err != nil {
		g.logger.Warn("prior lookup failed, treating as non-duplicate", "external_id", sp.ExternalID, "error", err)
		g.ledger.Note(fmt.Sprintf("group %s: prior lookup for %s failed: %v", g.group.ID, sp.ExternalID, err))
		priors = nil
	}

	res := g.o.judge.CheckDuplicate(ctx, sp, priors)
	if res.Outcome == ai.OutcomeFailed {
		g.ledger.Note(fmt.Sprintf("group %s: duplicate check for %s failed, kept as new: %v", g.group.ID, sp.ExternalID, res.Failure))
	}
	if res.Dedup.IsDuplicate {
		return res.Dedup, "judged a repost of a stored strong match"
	}

	g.runDedup.Claim(key, sp.ExternalID)
	return res.Dedup, ""
}
