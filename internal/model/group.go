package model

import "fmt"

// Verdict is the three-way classification derived from score and thresholds.
type Verdict string

const (
	VerdictStrongMatch Verdict = "STRONG_MATCH"
	VerdictWeakMatch   Verdict = "WEAK_MATCH"
	VerdictNoMatch     Verdict = "NO_MATCH"
)

// Valid reports whether v is one of the three known verdicts.
func (v Verdict) Valid() bool {
	switch v {
	case VerdictStrongMatch, VerdictWeakMatch, VerdictNoMatch:
		return true
	}
	return false
}

// Thresholds are the score boundaries of a search group.
// Invariant: 0 <= NoMatchMax < WeakMatchMax < 100.
type Thresholds struct {
	NoMatchMax   int
	WeakMatchMax int
}

// StrongMatchMin is the lowest score that is a strong match.
func (t Thresholds) StrongMatchMin() int {
	return t.WeakMatchMax + 1
}

// Validate checks the ordering invariant.
func (t Thresholds) Validate() error {
	if t.NoMatchMax < 0 {
		return fmt.Errorf("no_match_max must be >= 0, got %d", t.NoMatchMax)
	}
	if t.NoMatchMax >= t.WeakMatchMax {
		return fmt.Errorf("no_match_max (%d) must be below weak_match_max (%d)", t.NoMatchMax, t.WeakMatchMax)
	}
	if t.WeakMatchMax >= 100 {
		return fmt.Errorf("weak_match_max must be below 100, got %d", t.WeakMatchMax)
	}
	return nil
}

// ClampScore forces score into [0, 100].
func ClampScore(score int) int {
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}

// VerdictFor derives the verdict from a score and a group's thresholds.
// The model's own verdict is never consulted.
func VerdictFor(score int, t Thresholds) Verdict {
	score = ClampScore(score)
	switch {
	case score >= t.StrongMatchMin():
		return VerdictStrongMatch
	case score > t.NoMatchMax:
		return VerdictWeakMatch
	default:
		return VerdictNoMatch
	}
}

// SearchGroup is a named bundle of search parameters, AI prompt and
// thresholds. Owned by configuration; the pipeline only reads it.
type SearchGroup struct {
	ID           string
	Name         string
	Active       bool
	Keywords     []string
	Locations    []string
	WorkModes    []WorkMode
	JobType      string
	TitleFilter  string // one phrase pattern per line
	SystemPrompt string
	Thresholds   Thresholds
}

// Freeze returns a deep copy so a run works on config that cannot change
// underneath it.
func (g SearchGroup) Freeze() SearchGroup {
	g.Keywords = append([]string(nil), g.Keywords...)
	g.Locations = append([]string(nil), g.Locations...)
	g.WorkModes = append([]WorkMode(nil), g.WorkModes...)
	return g
}

// SearchQuery is what the posting source needs from a group.
type SearchQuery struct {
	GroupID    string
	Keywords   []string
	Locations  []string
	WorkModes  []WorkMode
	JobType    string
	MaxResults int
}

// Query builds the provider query for this group.
func (g SearchGroup) Query(maxResults int) SearchQuery {
	return SearchQuery{
		GroupID:    g.ID,
		Keywords:   g.Keywords,
		Locations:  g.Locations,
		WorkModes:  g.WorkModes,
		JobType:    g.JobType,
		MaxResults: maxResults,
	}
}
