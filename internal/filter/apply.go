package filter

import (
	"github.com/amishk599/jobsift/internal/model"
)

// Result partitions a batch after static filtering. Removed postings keep
// their log entries so the caller can record them.
type Result struct {
	Kept    []model.CanonicalPosting
	Removed []model.RunJobLogEntry
}

// Apply runs the blacklist and then the title filter over postings for one
// group. Input order is preserved in Kept.
func Apply(postings []model.CanonicalPosting, groupID string, blacklist *Blacklist, title *TitleFilter) Result {
	var res Result
	for _, p := range postings {
		if blacklist != nil && blacklist.Blocked(p.Company) {
			e := model.EntryFor(p, groupID, model.OutcomeBlacklisted)
			e.Reason = "company is blacklisted"
			res.Removed = append(res.Removed, e)
			continue
		}
		if title != nil && !title.Match(p.Title) {
			e := model.EntryFor(p, groupID, model.OutcomeFiltered)
			e.Reason = "title did not match any filter line"
			res.Removed = append(res.Removed, e)
			continue
		}
		res.Kept = append(res.Kept, p)
	}
	return res
}
