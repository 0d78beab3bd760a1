package server

import (
	"time"

	"github.com/amishk599/jobsift/internal/model"
)

type statusResponse struct {
	Running bool       `json:"running"`
	Since   *time.Time `json:"since,omitempty"`
	LastRun *runView   `json:"last_run,omitempty"`
}

type runView struct {
	ID         string    `json:"id"`
	RanAt      time.Time `json:"ran_at"`
	Trigger    string    `json:"trigger"`
	Status     string    `json:"status"`
	Fetched    int       `json:"jobs_fetched"`
	Scored     int       `json:"jobs_scored"`
	Strong     int       `json:"strong"`
	Weak       int       `json:"weak"`
	NoMatch    int       `json:"no_match"`
	Duplicate  int       `json:"duplicate"`
	ErrorLog   string    `json:"error_log,omitempty"`
	DurationMs int64     `json:"duration_ms"`
}

type entryView struct {
	GroupID           string    `json:"group_id"`
	ExternalID        string    `json:"external_id"`
	Title             string    `json:"title"`
	Company           string    `json:"company"`
	Location          string    `json:"location"`
	URL               string    `json:"url"`
	Outcome           string    `json:"outcome"`
	Score             *int      `json:"score,omitempty"`
	RejectionCategory *string   `json:"rejection_category,omitempty"`
	Rationale         string    `json:"rationale,omitempty"`
	DuplicateOfID     *string   `json:"duplicate_of_id,omitempty"`
	Reason            string    `json:"reason,omitempty"`
	LoggedAt          time.Time `json:"logged_at"`
}

type jobView struct {
	ExternalID        string     `json:"external_id"`
	GroupID           string     `json:"group_id"`
	Title             string     `json:"title"`
	Company           string     `json:"company"`
	Location          string     `json:"location"`
	WorkMode          string     `json:"work_mode,omitempty"`
	URL               string     `json:"url"`
	ApplyURL          string     `json:"apply_url,omitempty"`
	PostedAt          *time.Time `json:"posted_at,omitempty"`
	Score             int        `json:"score"`
	Verdict           string     `json:"verdict"`
	Rationale         string     `json:"rationale"`
	RejectionCategory *string    `json:"rejection_category,omitempty"`
	Summary           *string    `json:"summary,omitempty"`
	IsDuplicate       bool       `json:"is_duplicate"`
	DuplicateOfID     *string    `json:"duplicate_of_id,omitempty"`
	Seen              bool       `json:"seen"`
	FetchedAt         time.Time  `json:"fetched_at"`
}

type runDetail struct {
	Run runView     `json:"run"`
	Log []entryView `json:"log"`
}

func toRunView(r model.Run) runView {
	return runView{
		ID:         r.ID,
		RanAt:      r.RanAt,
		Trigger:    string(r.Trigger),
		Status:     string(r.Status),
		Fetched:    r.Stats.Fetched,
		Scored:     r.Stats.Scored,
		Strong:     r.Stats.Strong,
		Weak:       r.Stats.Weak,
		NoMatch:    r.Stats.NoMatch,
		Duplicate:  r.Stats.Duplicate,
		ErrorLog:   r.ErrorLog,
		DurationMs: r.DurationMs,
	}
}

func toEntryView(e model.RunJobLogEntry) entryView {
	v := entryView{
		GroupID:       e.GroupID,
		ExternalID:    e.ExternalID,
		Title:         e.Title,
		Company:       e.Company,
		Location:      e.Location,
		URL:           e.URL,
		Outcome:       string(e.Outcome),
		Score:         e.Score,
		Rationale:     e.Rationale,
		DuplicateOfID: e.DuplicateOfID,
		Reason:        e.Reason,
		LoggedAt:      e.LoggedAt,
	}
	if e.RejectionCategory != nil {
		c := string(*e.RejectionCategory)
		v.RejectionCategory = &c
	}
	return v
}

func toJobView(j model.StoredJob) jobView {
	v := jobView{
		ExternalID: j.ExternalID,
		GroupID:    j.GroupID,
		Title:      j.Title,
		Company:    j.Company,
		Location:   j.Location,
		WorkMode:   string(j.WorkMode),
		URL:        j.URL,
		ApplyURL:   j.ApplyURL,
		PostedAt:   j.PostedAt,
		Score:      j.Score,
		Verdict:    string(j.Verdict),
		Rationale:  j.Rationale,
		Summary:    j.Summary,
		Seen:       j.Seen,
		FetchedAt:  j.FetchedAt,
	}
	if j.RejectionCategory != nil {
		c := string(*j.RejectionCategory)
		v.RejectionCategory = &c
	}
	if j.Dedup != nil {
		v.IsDuplicate = j.Dedup.IsDuplicate
		v.DuplicateOfID = j.Dedup.DuplicateOfID
	}
	return v
}
