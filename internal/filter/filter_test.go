package filter

import (
	"testing"

	"github.com/amishk599/jobsift/internal/model"
)

func TestTitleFilter_Match(t *testing.T) {
	tests := []struct {
		name      string
		filter    string
		title     string
		wantMatch bool
	}{
		{
			name:      "single line all words present",
			filter:    "senior backend engineer",
			title:     "Senior Backend Engineer (Go)",
			wantMatch: true,
		},
		{
			name:      "word order does not matter",
			filter:    "engineer backend",
			title:     "Backend Engineer",
			wantMatch: true,
		},
		{
			name:      "missing one word fails the line",
			filter:    "staff backend engineer",
			title:     "Backend Engineer",
			wantMatch: false,
		},
		{
			name:      "punctuation stays attached to the token",
			filter:    "data scientist\nplatform engineer",
			title:     "Platform Engineer, Infrastructure",
			wantMatch: false,
		},
		{
			name:      "second line matches with clean tokens",
			filter:    "data scientist\nplatform engineer",
			title:     "Senior Platform Engineer",
			wantMatch: true,
		},
		{
			name:      "case insensitive",
			filter:    "SRE",
			title:     "sre - remote",
			wantMatch: true,
		},
		{
			name:      "duplicate words in pattern behave as a set",
			filter:    "go go developer",
			title:     "Go Developer",
			wantMatch: true,
		},
		{
			name:      "empty filter passes everything",
			filter:    "",
			title:     "Anything At All",
			wantMatch: true,
		},
		{
			name:      "blank lines only is empty",
			filter:    "\n   \n",
			title:     "Anything",
			wantMatch: true,
		},
		{
			name:      "partial word is not a match",
			filter:    "engineer",
			title:     "Engineering Manager",
			wantMatch: false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := NewTitleFilter(tt.filter)
			if got := f.Match(tt.title); got != tt.wantMatch {
				t.Errorf("Match(%q) = %v, want %v", tt.title, got, tt.wantMatch)
			}
		})
	}
}

func TestTitleFilter_Empty(t *testing.T) {
	for text, want := range map[string]bool{"": true, "\n  \n": true, "backend engineer": false} {
		if got := NewTitleFilter(text).Empty(); got != want {
			t.Errorf("NewTitleFilter(%q).Empty() = %v, want %v", text, got, want)
		}
	}
}

func TestBlacklist_Blocked(t *testing.T) {
	b := NewBlacklist([]string{"  Acme Corp ", "Globex", ""})

	tests := []struct {
		company string
		want    bool
	}{
		{"Acme Corp", true},
		{"acme corp", true},
		{"  ACME CORP  ", true},
		{"Acme", false},
		{"Acme Corporation", false},
		{"globex", true},
		{"", false},
	}
	for _, tt := range tests {
		if got := b.Blocked(tt.company); got != tt.want {
			t.Errorf("Blocked(%q) = %v, want %v", tt.company, got, tt.want)
		}
	}
	if b.Len() != 2 {
		t.Errorf("Len() = %d, want 2", b.Len())
	}
}

func TestApply_LogsRemovedPostings(t *testing.T) {
	postings := []model.CanonicalPosting{
		{ExternalID: "1", Title: "Backend Engineer", Company: "Acme Corp"},
		{ExternalID: "2", Title: "Backend Engineer", Company: "Initech"},
		{ExternalID: "3", Title: "Sales Manager", Company: "Initech"},
		{ExternalID: "4", Title: "Sales Manager", Company: "acme corp"},
	}

	res := Apply(postings, "g1", NewBlacklist([]string{"Acme Corp"}), NewTitleFilter("backend engineer"))

	if len(res.Kept) != 1 || res.Kept[0].ExternalID != "2" {
		t.Fatalf("Kept = %+v, want only posting 2", res.Kept)
	}
	if len(res.Removed) != 3 {
		t.Fatalf("Removed = %d, want 3", len(res.Removed))
	}

	want := map[string]model.Outcome{
		"1": model.OutcomeBlacklisted,
		"3": model.OutcomeFiltered,
		"4": model.OutcomeBlacklisted, // blacklist wins over title filter
	}
	for _, e := range res.Removed {
		if e.Outcome != want[e.ExternalID] {
			t.Errorf("posting %s outcome = %s, want %s", e.ExternalID, e.Outcome, want[e.ExternalID])
		}
		if e.GroupID != "g1" {
			t.Errorf("posting %s group = %q, want g1", e.ExternalID, e.GroupID)
		}
	}
}

func TestApply_NilFiltersKeepEverything(t *testing.T) {
	postings := []model.CanonicalPosting{{ExternalID: "1"}, {ExternalID: "2"}}
	res := Apply(postings, "g", nil, nil)
	if len(res.Kept) != 2 || len(res.Removed) != 0 {
		t.Errorf("Apply with nil filters = %d kept, %d removed", len(res.Kept), len(res.Removed))
	}
}
