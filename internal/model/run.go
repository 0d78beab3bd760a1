package model

import "time"

// RunStatus is the lifecycle state of a Run. Everything but running is terminal.
type RunStatus string

const (
	RunStatusRunning      RunStatus = "running"
	RunStatusSuccess      RunStatus = "success"
	RunStatusPartialError RunStatus = "partial_error"
	RunStatusFailed       RunStatus = "failed"
)

// Terminal reports whether the status can no longer change.
func (s RunStatus) Terminal() bool {
	return s != RunStatusRunning
}

// Trigger says what started a run.
type Trigger string

const (
	TriggerScheduled Trigger = "scheduled"
	TriggerManual    Trigger = "manual"
)

// RunStats are the aggregate counts written back when a run finishes.
type RunStats struct {
	Fetched   int
	Scored    int
	Strong    int
	Weak      int
	NoMatch   int
	Duplicate int
}

// Add accumulates other into s.
func (s *RunStats) Add(other RunStats) {
	s.Fetched += other.Fetched
	s.Scored += other.Scored
	s.Strong += other.Strong
	s.Weak += other.Weak
	s.NoMatch += other.NoMatch
	s.Duplicate += other.Duplicate
}

// Run is one pipeline execution.
type Run struct {
	ID         string
	RanAt      time.Time
	Trigger    Trigger
	Stats      RunStats
	Status     RunStatus
	ErrorLog   string
	DurationMs int64
}

// Outcome labels what happened to a posting in a run.
type Outcome string

const (
	OutcomeFiltered    Outcome = "FILTERED"
	OutcomeBlacklisted Outcome = "BLACKLISTED"
	OutcomeDuplicate   Outcome = "DUPLICATE"
	OutcomeStrongMatch Outcome = "STRONG_MATCH"
	OutcomeWeakMatch   Outcome = "WEAK_MATCH"
	OutcomeNoMatch     Outcome = "NO_MATCH"
)

// OutcomeForVerdict maps a verdict onto its log label.
func OutcomeForVerdict(v Verdict) Outcome {
	switch v {
	case VerdictStrongMatch:
		return OutcomeStrongMatch
	case VerdictWeakMatch:
		return OutcomeWeakMatch
	default:
		return OutcomeNoMatch
	}
}

// RunJobLogEntry records one posting touched during a run. Append-only.
type RunJobLogEntry struct {
	RunID             string
	GroupID           string
	ExternalID        string
	Title             string
	Company           string
	Location          string
	URL               string
	Outcome           Outcome
	Score             *int
	RejectionCategory *RejectionCategory
	Rationale         string
	DuplicateOfID     *string
	Reason            string
	LoggedAt          time.Time
}

// EntryFor starts a log entry from a posting's identifying fields.
func EntryFor(p CanonicalPosting, groupID string, outcome Outcome) RunJobLogEntry {
	return RunJobLogEntry{
		GroupID:    groupID,
		ExternalID: p.ExternalID,
		Title:      p.Title,
		Company:    p.Company,
		Location:   p.Location,
		URL:        p.URL,
		Outcome:    outcome,
	}
}
