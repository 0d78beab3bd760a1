package model

import (
	"context"
	"time"
)

// RejectionCategory explains a NO_MATCH. The model must always send one,
// using RejectionNone when nothing applies.
type RejectionCategory string

const (
	RejectionNone         RejectionCategory = "NONE"
	RejectionSeniority    RejectionCategory = "SENIORITY_MISMATCH"
	RejectionSkills       RejectionCategory = "SKILLS_MISMATCH"
	RejectionLocation     RejectionCategory = "LOCATION_MISMATCH"
	RejectionVisa         RejectionCategory = "VISA_SPONSORSHIP"
	RejectionCompensation RejectionCategory = "COMPENSATION"
	RejectionRoleType     RejectionCategory = "ROLE_TYPE_MISMATCH"
	RejectionIndustry     RejectionCategory = "INDUSTRY"
	RejectionContract     RejectionCategory = "CONTRACT_TYPE"
	RejectionOther        RejectionCategory = "OTHER"
)

// RejectionCategories lists every accepted value, in schema order.
var RejectionCategories = []RejectionCategory{
	RejectionNone,
	RejectionSeniority,
	RejectionSkills,
	RejectionLocation,
	RejectionVisa,
	RejectionCompensation,
	RejectionRoleType,
	RejectionIndustry,
	RejectionContract,
	RejectionOther,
}

// Valid reports whether c is a known category.
func (c RejectionCategory) Valid() bool {
	for _, known := range RejectionCategories {
		if c == known {
			return true
		}
	}
	return false
}

// MaxRationaleLength bounds ScoredPosting.Rationale.
const MaxRationaleLength = 500

// ScoredPosting is a posting after AI Judge Call 1.
type ScoredPosting struct {
	CanonicalPosting
	Score             int
	Verdict           Verdict
	Rationale         string
	RejectionCategory *RejectionCategory // only for NO_MATCH
	Summary           *string            // only for non-duplicate STRONG_MATCH
}

// DedupOutcome is attached to STRONG_MATCH postings only.
type DedupOutcome struct {
	IsDuplicate   bool
	DuplicateOfID *string
}

// StoredJob is the durable record. ExternalID is globally unique.
type StoredJob struct {
	ScoredPosting
	Dedup     *DedupOutcome
	GroupID   string
	Seen      bool
	Applied   bool
	UserNotes string
	FetchedAt time.Time
}

// IsDuplicate reports whether the job was judged a duplicate strong match.
func (j StoredJob) IsDuplicate() bool {
	return j.Dedup != nil && j.Dedup.IsDuplicate
}

// JobQuery filters stored jobs. Zero values mean "any".
type JobQuery struct {
	Verdict Verdict
	GroupID string
	Company string // case-insensitive exact match
	From    time.Time
	To      time.Time
	Limit   int
}

// PostingSource fetches postings for one search group.
type PostingSource interface {
	Search(ctx context.Context, q SearchQuery) ([]CanonicalPosting, error)
}

// Digest is one outbound summary of strong matches.
type Digest struct {
	Recipient string
	Subject   string
	HTML      string
	Jobs      []StoredJob
}

// DigestSender delivers a digest. A nil error means it was delivered.
type DigestSender interface {
	Send(ctx context.Context, d Digest) error
}
