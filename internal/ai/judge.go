package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"text/template"
	"time"

	"github.com/amishk599/jobsift/internal/model"
)

const (
	// ScoreDescriptionCap bounds the description sent with Call 1.
	ScoreDescriptionCap = 6000
	// RetryDescriptionCap bounds the description on the Call 1 retry.
	RetryDescriptionCap = 1500
	// MaxPriors is the most prior postings Call 2 compares against.
	MaxPriors = 5
	// DuplicatePromptLimit is the size Call 2 prompts are kept under.
	DuplicatePromptLimit = 12000
)

// priorDescriptionSteps are the successive caps applied to prior
// descriptions until the Call 2 prompt fits DuplicatePromptLimit.
var priorDescriptionSteps = []int{1500, 600, 200}

// FailureKind classifies why a judge call produced no usable result.
type FailureKind string

const (
	FailureTransport  FailureKind = "transport"  // provider unreachable, timed out or returned an error
	FailureSchema     FailureKind = "schema"     // reply was not the expected JSON shape
	FailureValidation FailureKind = "validation" // shape was right, values were not
)

// Failure is the failed arm of a judge result.
type Failure struct {
	Kind FailureKind
	Err  error
}

func (f *Failure) Error() string {
	return fmt.Sprintf("%s failure: %v", f.Kind, f.Err)
}

func (f *Failure) Unwrap() error {
	return f.Err
}

// Outcome tags a judge result.
type Outcome string

const (
	OutcomeOK     Outcome = "ok"
	OutcomeFailed Outcome = "failed"
)

// ScoreResult is the tagged result of Call 1. Scored is only meaningful when
// Outcome is OutcomeOK; Failure is only set when it is OutcomeFailed.
type ScoreResult struct {
	Outcome  Outcome
	Scored   model.ScoredPosting
	Failure  *Failure
	Attempts int
}

// DedupResult is the tagged result of Call 2. Dedup is always usable: on
// failure, or when no call was needed, it says non-duplicate.
type DedupResult struct {
	Outcome Outcome
	Dedup   model.DedupOutcome
	Called  bool
	Failure *Failure
}

// NeedsDuplicateCheck decides whether Call 2 is worth making: only strong
// matches that have at least one stored prior with the same company and
// title are compared.
func NeedsDuplicateCheck(verdict model.Verdict, priorCount int) bool {
	return verdict == model.VerdictStrongMatch && priorCount > 0
}

// Judge runs the two-call scoring and duplicate protocol against an LLM.
type Judge struct {
	provider LLMProvider
	timeout  time.Duration
	logger   *slog.Logger
}

// NewJudge creates a Judge. timeout bounds every single provider call.
func NewJudge(provider LLMProvider, timeout time.Duration, logger *slog.Logger) *Judge {
	return &Judge{
		provider: provider,
		timeout:  timeout,
		logger:   logger,
	}
}

// Score runs Call 1 for a posting. A failed first attempt is retried once
// with a much shorter description; if that fails too the result is
// OutcomeFailed and the posting must be skipped.
func (j *Judge) Score(ctx context.Context, group model.SearchGroup, p model.CanonicalPosting) ScoreResult {
	description := StripBoilerplate(p.Description)

	res := j.scoreOnce(ctx, group, p, description, ScoreDescriptionCap)
	res.Attempts = 1
	if res.Outcome == OutcomeOK {
		return res
	}

	j.logger.Debug("score attempt failed, retrying with truncated description",
		"group", group.ID,
		"external_id", p.ExternalID,
		"error", res.Failure,
	)

	res = j.scoreOnce(ctx, group, p, description, RetryDescriptionCap)
	res.Attempts = 2
	if res.Outcome == OutcomeFailed {
		j.logger.Warn("skipping posting, scoring failed twice",
			"group", group.ID,
			"external_id", p.ExternalID,
			"company", p.Company,
			"title", p.Title,
			"error", res.Failure,
		)
	}
	return res
}

// scoreView feeds the score template.
type scoreView struct {
	SystemPrompt string
	StrongMin    int
	WeakMin      int
	WeakMax      int
	NoMatchMax   int
	Categories   string
}

// postingView feeds the posting template.
type postingView struct {
	Title       string
	Company     string
	Location    string
	WorkMode    model.WorkMode
	Description string
}

// rawScore is the JSON shape returned for Call 1 (matches scoreSchema).
// Pointers tell missing fields apart from zero values.
type rawScore struct {
	Score             *int    `json:"score"`
	Verdict           *string `json:"verdict"`
	Rationale         *string `json:"rationale"`
	RejectionCategory *string `json:"rejection_category"`
	Summary           *string `json:"summary"`
}

func (j *Judge) scoreOnce(ctx context.Context, group model.SearchGroup, p model.CanonicalPosting, description string, limit int) ScoreResult {
	t := group.Thresholds
	system, err := render(scoreTemplate, scoreView{
		SystemPrompt: strings.TrimSpace(group.SystemPrompt),
		StrongMin:    t.StrongMatchMin(),
		WeakMin:      t.NoMatchMax + 1,
		WeakMax:      t.WeakMatchMax,
		NoMatchMax:   t.NoMatchMax,
		Categories:   strings.Join(rejectionCategoryEnum(), ", "),
	})
	if err != nil {
		return failed(FailureValidation, fmt.Errorf("render score prompt: %w", err))
	}

	user, err := render(postingTemplate, postingView{
		Title:       p.Title,
		Company:     p.Company,
		Location:    p.Location,
		WorkMode:    p.WorkMode,
		Description: truncate(description, limit),
	})
	if err != nil {
		return failed(FailureValidation, fmt.Errorf("render posting prompt: %w", err))
	}

	raw, err := j.complete(ctx, Request{
		System:     system,
		User:       user,
		SchemaName: "posting_score",
		Schema:     scoreSchema,
	})
	if err != nil {
		return failed(FailureTransport, err)
	}

	var rs rawScore
	if err := json.Unmarshal([]byte(raw), &rs); err != nil {
		return failed(FailureSchema, fmt.Errorf("unmarshal score JSON: %w", err))
	}
	if rs.Score == nil || rs.Rationale == nil || rs.RejectionCategory == nil {
		return failed(FailureSchema, fmt.Errorf("score reply missing required fields"))
	}

	category := model.RejectionCategory(*rs.RejectionCategory)
	if !category.Valid() {
		return failed(FailureValidation, fmt.Errorf("unknown rejection category %q", category))
	}

	score := model.ClampScore(*rs.Score)
	verdict := model.VerdictFor(score, t)
	if rs.Verdict != nil && model.Verdict(*rs.Verdict) != verdict {
		j.logger.Debug("model verdict disagrees with thresholds, using thresholds",
			"external_id", p.ExternalID,
			"score", score,
			"model_verdict", *rs.Verdict,
			"verdict", verdict,
		)
	}

	scored := model.ScoredPosting{
		CanonicalPosting: p,
		Score:            score,
		Verdict:          verdict,
		Rationale:        truncate(strings.TrimSpace(*rs.Rationale), model.MaxRationaleLength),
	}

	switch verdict {
	case model.VerdictNoMatch:
		if category == model.RejectionNone {
			category = model.RejectionOther
		}
		scored.RejectionCategory = &category
	case model.VerdictStrongMatch:
		if rs.Summary != nil {
			if s := strings.TrimSpace(*rs.Summary); s != "" {
				scored.Summary = &s
			}
		}
	}

	return ScoreResult{Outcome: OutcomeOK, Scored: scored}
}

// priorView feeds the duplicate template.
type priorView struct {
	ID          string
	Location    string
	FetchedAt   string
	Description string
}

// rawDuplicate is the JSON shape returned for Call 2 (matches duplicateSchema).
type rawDuplicate struct {
	IsDuplicate   *bool   `json:"is_duplicate"`
	DuplicateOfID *string `json:"duplicate_of_id"`
}

// CheckDuplicate runs Call 2 for a strong match against stored priors with the
// same company and title. When NeedsDuplicateCheck says no, no call is made.
// Any failure yields a non-duplicate outcome.
func (j *Judge) CheckDuplicate(ctx context.Context, sp model.ScoredPosting, priors []model.StoredJob) DedupResult {
	if !NeedsDuplicateCheck(sp.Verdict, len(priors)) {
		return DedupResult{Outcome: OutcomeOK}
	}
	if len(priors) > MaxPriors {
		priors = priors[:MaxPriors]
	}

	res := j.checkDuplicate(ctx, sp, priors)
	res.Called = true
	if res.Outcome == OutcomeFailed {
		j.logger.Warn("duplicate check failed, treating as non-duplicate",
			"external_id", sp.ExternalID,
			"priors", len(priors),
			"error", res.Failure,
		)
		res.Dedup = model.DedupOutcome{}
	}
	return res
}

func (j *Judge) checkDuplicate(ctx context.Context, sp model.ScoredPosting, priors []model.StoredJob) DedupResult {
	user, err := buildDuplicatePrompt(sp.CanonicalPosting, priors)
	if err != nil {
		return DedupResult{Outcome: OutcomeFailed, Failure: &Failure{Kind: FailureValidation, Err: err}}
	}

	raw, err := j.complete(ctx, Request{
		System:     duplicatePromptRaw,
		User:       user,
		SchemaName: "duplicate_check",
		Schema:     duplicateSchema,
	})
	if err != nil {
		return DedupResult{Outcome: OutcomeFailed, Failure: &Failure{Kind: FailureTransport, Err: err}}
	}

	var rd rawDuplicate
	if err := json.Unmarshal([]byte(raw), &rd); err != nil {
		return DedupResult{Outcome: OutcomeFailed, Failure: &Failure{Kind: FailureSchema, Err: fmt.Errorf("unmarshal duplicate JSON: %w", err)}}
	}
	if rd.IsDuplicate == nil {
		return DedupResult{Outcome: OutcomeFailed, Failure: &Failure{Kind: FailureSchema, Err: fmt.Errorf("duplicate reply missing is_duplicate")}}
	}
	if !*rd.IsDuplicate {
		return DedupResult{Outcome: OutcomeOK}
	}

	id := ""
	if rd.DuplicateOfID != nil {
		id = strings.TrimSpace(*rd.DuplicateOfID)
	}
	for _, prior := range priors {
		if prior.ExternalID == id {
			return DedupResult{
				Outcome: OutcomeOK,
				Dedup:   model.DedupOutcome{IsDuplicate: true, DuplicateOfID: &id},
			}
		}
	}
	return DedupResult{Outcome: OutcomeFailed, Failure: &Failure{
		Kind: FailureValidation,
		Err:  fmt.Errorf("duplicate_of_id %q is not one of the supplied priors", id),
	}}
}

// buildDuplicatePrompt renders the Call 2 user prompt, shrinking prior
// descriptions step by step until the whole request fits the limit. The
// smallest step is used even if it still does not fit.
func buildDuplicatePrompt(p model.CanonicalPosting, priors []model.StoredJob) (string, error) {
	candidate := truncate(StripBoilerplate(p.Description), ScoreDescriptionCap)

	var prompt string
	for _, limit := range priorDescriptionSteps {
		views := make([]priorView, len(priors))
		for i, prior := range priors {
			views[i] = priorView{
				ID:          prior.ExternalID,
				Location:    prior.Location,
				FetchedAt:   prior.FetchedAt.Format("2006-01-02"),
				Description: truncate(StripBoilerplate(prior.Description), limit),
			}
		}

		var err error
		prompt, err = render(duplicateUserTemplate, struct {
			Posting     model.CanonicalPosting
			Description string
			Priors      []priorView
		}{p, candidate, views})
		if err != nil {
			return "", fmt.Errorf("render duplicate prompt: %w", err)
		}
		if len(duplicatePromptRaw)+len(prompt) <= DuplicatePromptLimit {
			break
		}
	}
	return prompt, nil
}

// complete bounds a provider call by the judge timeout.
func (j *Judge) complete(ctx context.Context, req Request) (string, error) {
	if j.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, j.timeout)
		defer cancel()
	}
	return j.provider.Complete(ctx, req)
}

func failed(kind FailureKind, err error) ScoreResult {
	return ScoreResult{Outcome: OutcomeFailed, Failure: &Failure{Kind: kind, Err: err}}
}

func render(tmpl *template.Template, data any) (string, error) {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// truncate cuts s to at most n runes.
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
