package model

import (
	"strings"
	"time"
)

// WorkMode is where the work happens. Empty means the provider did not say.
type WorkMode string

const (
	WorkModeRemote WorkMode = "remote"
	WorkModeHybrid WorkMode = "hybrid"
	WorkModeOnsite WorkMode = "onsite"
)

// ParseWorkMode maps loose provider/config spellings onto a WorkMode.
func ParseWorkMode(s string) WorkMode {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "remote", "fully remote", "work from home", "wfh":
		return WorkModeRemote
	case "hybrid":
		return WorkModeHybrid
	case "onsite", "on-site", "on site", "office", "in office", "in-office":
		return WorkModeOnsite
	default:
		return ""
	}
}

// DateConfidence says whether PostedAt came from a parseable provider date.
type DateConfidence string

const (
	DateConfidenceHigh DateConfidence = "HIGH"
	DateConfidenceLow  DateConfidence = "LOW"
)

// MaxDescriptionLength bounds CanonicalPosting.Description.
const MaxDescriptionLength = 20000

// CanonicalPosting is a provider-agnostic job ad. Immutable once fetched.
type CanonicalPosting struct {
	ExternalID        string // provider-stable, natural dedup key
	Title             string
	Company           string
	Location          string
	WorkMode          WorkMode
	Description       string // plain text, at most MaxDescriptionLength
	URL               string
	ApplyURL          string     // empty when the provider has none
	PostedAt          *time.Time // nil when no parseable date
	DateConfidence    DateConfidence
	DescriptionLength int // length of the description before truncation
}

// CompanyTitleKey is the run-scoped key used to spot the same role issued
// under different external identifiers.
func CompanyTitleKey(company, title string) string {
	return strings.ToLower(strings.TrimSpace(company)) + "|" + strings.ToLower(strings.TrimSpace(title))
}

// Key returns CompanyTitleKey for the posting.
func (p CanonicalPosting) Key() string {
	return CompanyTitleKey(p.Company, p.Title)
}
