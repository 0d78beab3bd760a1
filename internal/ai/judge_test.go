package ai

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/amishk599/jobsift/internal/model"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type reply struct {
	text string
	err  error
}

// fakeProvider returns queued replies in order and records every request.
type fakeProvider struct {
	replies  []reply
	requests []Request
}

func (f *fakeProvider) Complete(_ context.Context, req Request) (string, error) {
	f.requests = append(f.requests, req)
	if len(f.replies) == 0 {
		return "", errors.New("no reply queued")
	}
	r := f.replies[0]
	f.replies = f.replies[1:]
	return r.text, r.err
}

var testGroup = model.SearchGroup{
	ID:           "backend",
	Name:         "Backend",
	SystemPrompt: "Senior Go backend engineer, EU remote.",
	Thresholds:   model.Thresholds{NoMatchMax: 50, WeakMatchMax: 70},
}

func testPosting(id string) model.CanonicalPosting {
	return model.CanonicalPosting{
		ExternalID:  id,
		Title:       "Senior Backend Engineer",
		Company:     "Acme",
		Location:    "Remote, EU",
		WorkMode:    model.WorkModeRemote,
		Description: "Build services in Go.",
	}
}

func TestScore_VerdictFromThresholds(t *testing.T) {
	tests := []struct {
		name     string
		reply    string
		verdict  model.Verdict
		category *model.RejectionCategory
		summary  bool
	}{
		{
			name:    "85 is strong",
			reply:   `{"score":85,"verdict":"STRONG_MATCH","rationale":"Great fit.","rejection_category":"NONE","summary":"Go backend role."}`,
			verdict: model.VerdictStrongMatch,
			summary: true,
		},
		{
			name:    "70 is weak",
			reply:   `{"score":70,"verdict":"WEAK_MATCH","rationale":"Partial.","rejection_category":"NONE","summary":"ignored"}`,
			verdict: model.VerdictWeakMatch,
		},
		{
			name:     "40 keeps the model's rejection category",
			reply:    `{"score":40,"verdict":"NO_MATCH","rationale":"Wrong stack.","rejection_category":"SKILLS_MISMATCH","summary":""}`,
			verdict:  model.VerdictNoMatch,
			category: ptr(model.RejectionSkills),
		},
		{
			name:    "model verdict disagreeing with score is overridden",
			reply:   `{"score":85,"verdict":"NO_MATCH","rationale":"x","rejection_category":"NONE","summary":"s"}`,
			verdict: model.VerdictStrongMatch,
			summary: true,
		},
		{
			name:     "out-of-range score is clamped",
			reply:    `{"score":-20,"verdict":"NO_MATCH","rationale":"x","rejection_category":"NONE","summary":""}`,
			verdict:  model.VerdictNoMatch,
			category: ptr(model.RejectionOther),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			provider := &fakeProvider{replies: []reply{{text: tt.reply}}}
			judge := NewJudge(provider, time.Second, discardLogger())

			res := judge.Score(context.Background(), testGroup, testPosting("1"))
			if res.Outcome != OutcomeOK {
				t.Fatalf("expected ok, got failure %v", res.Failure)
			}
			if res.Scored.Verdict != tt.verdict {
				t.Errorf("verdict = %s, want %s", res.Scored.Verdict, tt.verdict)
			}
			if tt.category == nil && res.Scored.RejectionCategory != nil {
				t.Errorf("expected no rejection category, got %s", *res.Scored.RejectionCategory)
			}
			if tt.category != nil && (res.Scored.RejectionCategory == nil || *res.Scored.RejectionCategory != *tt.category) {
				t.Errorf("rejection category = %v, want %s", res.Scored.RejectionCategory, *tt.category)
			}
			if tt.summary != (res.Scored.Summary != nil) {
				t.Errorf("summary presence = %v, want %v", res.Scored.Summary != nil, tt.summary)
			}
			if res.Scored.Score < 0 || res.Scored.Score > 100 {
				t.Errorf("score %d out of range", res.Scored.Score)
			}
		})
	}
}

func TestScore_PromptContents(t *testing.T) {
	provider := &fakeProvider{replies: []reply{{text: `{"score":10,"verdict":"NO_MATCH","rationale":"x","rejection_category":"OTHER","summary":""}`}}}
	judge := NewJudge(provider, time.Second, discardLogger())

	p := testPosting("1")
	p.Description = "Write Go.\n\nEqual Opportunity Employer: we do not discriminate."
	judge.Score(context.Background(), testGroup, p)

	if len(provider.requests) != 1 {
		t.Fatalf("expected 1 request, got %d", len(provider.requests))
	}
	req := provider.requests[0]
	if !strings.Contains(req.System, testGroup.SystemPrompt) {
		t.Error("system prompt should include the group prompt")
	}
	if !strings.Contains(req.System, "71 and above") {
		t.Errorf("system prompt should state the strong threshold, got:\n%s", req.System)
	}
	if !strings.Contains(req.User, "Write Go.") || strings.Contains(req.User, "discriminate") {
		t.Errorf("user prompt should carry stripped description, got:\n%s", req.User)
	}
	if req.SchemaName != "posting_score" {
		t.Errorf("schema name = %q", req.SchemaName)
	}
}

func TestScore_RetriesOnceWithShorterDescription(t *testing.T) {
	provider := &fakeProvider{replies: []reply{
		{err: errors.New("timeout")},
		{text: `{"score":75,"verdict":"STRONG_MATCH","rationale":"ok","rejection_category":"NONE","summary":"s"}`},
	}}
	judge := NewJudge(provider, time.Second, discardLogger())

	p := testPosting("1")
	p.Description = strings.Repeat("x", 8000)

	res := judge.Score(context.Background(), testGroup, p)
	if res.Outcome != OutcomeOK {
		t.Fatalf("expected ok after retry, got %v", res.Failure)
	}
	if res.Attempts != 2 {
		t.Errorf("attempts = %d, want 2", res.Attempts)
	}
	if len(provider.requests) != 2 {
		t.Fatalf("expected 2 requests, got %d", len(provider.requests))
	}
	first := strings.Count(provider.requests[0].User, "x")
	second := strings.Count(provider.requests[1].User, "x")
	if first != ScoreDescriptionCap {
		t.Errorf("first attempt description = %d chars, want %d", first, ScoreDescriptionCap)
	}
	if second != RetryDescriptionCap {
		t.Errorf("retry description = %d chars, want %d", second, RetryDescriptionCap)
	}
}

func TestScore_TwoFailuresSkipPosting(t *testing.T) {
	tests := []struct {
		name    string
		replies []reply
		kind    FailureKind
	}{
		{"transport", []reply{{err: errors.New("boom")}, {err: errors.New("boom")}}, FailureTransport},
		{"schema", []reply{{text: "not json"}, {text: `{"verdict":"NO_MATCH"}`}}, FailureSchema},
		{"validation", []reply{{text: "{}"}, {text: `{"score":10,"verdict":"NO_MATCH","rationale":"x","rejection_category":"BAD_VIBES","summary":""}`}}, FailureValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			provider := &fakeProvider{replies: tt.replies}
			judge := NewJudge(provider, time.Second, discardLogger())

			res := judge.Score(context.Background(), testGroup, testPosting("1"))
			if res.Outcome != OutcomeFailed {
				t.Fatal("expected failed outcome")
			}
			if res.Failure == nil || res.Failure.Kind != tt.kind {
				t.Errorf("failure = %v, want kind %s", res.Failure, tt.kind)
			}
			if len(provider.requests) != 2 {
				t.Errorf("expected exactly 2 attempts, got %d", len(provider.requests))
			}
		})
	}
}

func TestScore_RationaleBounded(t *testing.T) {
	long := strings.Repeat("r", 900)
	provider := &fakeProvider{replies: []reply{{text: `{"score":60,"verdict":"WEAK_MATCH","rationale":"` + long + `","rejection_category":"NONE","summary":""}`}}}
	judge := NewJudge(provider, time.Second, discardLogger())

	res := judge.Score(context.Background(), testGroup, testPosting("1"))
	if len(res.Scored.Rationale) != model.MaxRationaleLength {
		t.Errorf("rationale length = %d, want %d", len(res.Scored.Rationale), model.MaxRationaleLength)
	}
}

func TestNeedsDuplicateCheck(t *testing.T) {
	tests := []struct {
		verdict model.Verdict
		priors  int
		want    bool
	}{
		{model.VerdictStrongMatch, 0, false},
		{model.VerdictStrongMatch, 1, true},
		{model.VerdictStrongMatch, 5, true},
		{model.VerdictWeakMatch, 3, false},
		{model.VerdictNoMatch, 3, false},
	}
	for _, tt := range tests {
		if got := NeedsDuplicateCheck(tt.verdict, tt.priors); got != tt.want {
			t.Errorf("NeedsDuplicateCheck(%s, %d) = %v, want %v", tt.verdict, tt.priors, got, tt.want)
		}
	}
}

func strong(id string) model.ScoredPosting {
	return model.ScoredPosting{CanonicalPosting: testPosting(id), Score: 90, Verdict: model.VerdictStrongMatch}
}

func prior(id, description string) model.StoredJob {
	p := testPosting(id)
	p.Description = description
	return model.StoredJob{
		ScoredPosting: model.ScoredPosting{CanonicalPosting: p, Score: 88, Verdict: model.VerdictStrongMatch},
		FetchedAt:     time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestCheckDuplicate_NoPriorsSkipsCall(t *testing.T) {
	provider := &fakeProvider{}
	judge := NewJudge(provider, time.Second, discardLogger())

	res := judge.CheckDuplicate(context.Background(), strong("new"), nil)
	if res.Called || len(provider.requests) != 0 {
		t.Fatal("no call should be made without priors")
	}
	if res.Dedup.IsDuplicate {
		t.Error("expected non-duplicate")
	}
}

func TestCheckDuplicate_Duplicate(t *testing.T) {
	provider := &fakeProvider{replies: []reply{{text: `{"is_duplicate":true,"duplicate_of_id":"old-2"}`}}}
	judge := NewJudge(provider, time.Second, discardLogger())

	res := judge.CheckDuplicate(context.Background(), strong("new"), []model.StoredJob{prior("old-1", "a"), prior("old-2", "b")})
	if res.Outcome != OutcomeOK || !res.Called {
		t.Fatalf("unexpected result %+v", res)
	}
	if !res.Dedup.IsDuplicate || res.Dedup.DuplicateOfID == nil || *res.Dedup.DuplicateOfID != "old-2" {
		t.Errorf("expected duplicate of old-2, got %+v", res.Dedup)
	}
	if !strings.Contains(provider.requests[0].User, "id=old-1") {
		t.Error("prompt should list the priors")
	}
}

func TestCheckDuplicate_FailuresDefaultToNonDuplicate(t *testing.T) {
	tests := []struct {
		name  string
		reply reply
		kind  FailureKind
	}{
		{"transport", reply{err: errors.New("timeout")}, FailureTransport},
		{"schema", reply{text: `{"duplicate_of_id":"old-1"}`}, FailureSchema},
		{"unknown prior", reply{text: `{"is_duplicate":true,"duplicate_of_id":"invented"}`}, FailureValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			provider := &fakeProvider{replies: []reply{tt.reply}}
			judge := NewJudge(provider, time.Second, discardLogger())

			res := judge.CheckDuplicate(context.Background(), strong("new"), []model.StoredJob{prior("old-1", "a")})
			if res.Outcome != OutcomeFailed || res.Failure.Kind != tt.kind {
				t.Fatalf("expected %s failure, got %+v", tt.kind, res)
			}
			if res.Dedup.IsDuplicate {
				t.Error("failure must default to non-duplicate")
			}
		})
	}
}

func TestBuildDuplicatePrompt_StepsDownPriorDescriptions(t *testing.T) {
	var priors []model.StoredJob
	for _, id := range []string{"p1", "p2", "p3", "p4", "p5"} {
		priors = append(priors, prior(id, strings.Repeat("b", 5000)))
	}
	p := testPosting("new")
	p.Description = strings.Repeat("a", 5000)

	prompt, err := buildDuplicatePrompt(p, priors)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(duplicatePromptRaw)+len(prompt) > DuplicatePromptLimit {
		t.Errorf("prompt is %d chars, over the limit", len(duplicatePromptRaw)+len(prompt))
	}
	if strings.Contains(prompt, strings.Repeat("b", 601)) {
		t.Error("prior descriptions should have been cut to 600")
	}
	if !strings.Contains(prompt, strings.Repeat("b", 600)) {
		t.Error("prior descriptions should keep 600 chars")
	}
	if !strings.Contains(prompt, strings.Repeat("a", 5000)) {
		t.Error("candidate description should be sent whole")
	}
}

func TestBuildDuplicatePrompt_ShortPriorsUntouched(t *testing.T) {
	prompt, err := buildDuplicatePrompt(testPosting("new"), []model.StoredJob{prior("p1", "Short prior text.")})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(prompt, "Short prior text.") {
		t.Error("short prior description should be sent whole")
	}
}

func TestCheckDuplicate_BoundsPriors(t *testing.T) {
	provider := &fakeProvider{replies: []reply{{text: `{"is_duplicate":false,"duplicate_of_id":""}`}}}
	judge := NewJudge(provider, time.Second, discardLogger())

	var priors []model.StoredJob
	for _, id := range []string{"p1", "p2", "p3", "p4", "p5", "p6", "p7"} {
		priors = append(priors, prior(id, "d"))
	}
	judge.CheckDuplicate(context.Background(), strong("new"), priors)

	user := provider.requests[0].User
	if got := strings.Count(user, "PREVIOUS POSTING"); got != MaxPriors {
		t.Errorf("expected %d priors in prompt, got %d", MaxPriors, got)
	}
	if strings.Contains(user, "id=p6") {
		t.Error("priors beyond the bound should be dropped")
	}
}

func ptr[T any](v T) *T { return &v }
