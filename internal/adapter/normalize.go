package adapter

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/amishk599/jobsift/internal/model"
)

// rawItem is one provider result. Field names differ between actors, so
// items are decoded loosely and mapped key by key.
type rawItem map[string]any

var (
	idKeys          = []string{"id", "jobId", "job_id", "externalId", "jobPostingId"}
	titleKeys       = []string{"title", "jobTitle", "positionName", "position"}
	companyKeys     = []string{"company", "companyName", "company_name", "employer"}
	locationKeys    = []string{"location", "jobLocation", "formattedLocation", "place"}
	workModeKeys    = []string{"workType", "workplaceType", "workMode", "remoteType"}
	descriptionKeys = []string{"descriptionText", "description", "descriptionHtml", "jobDescription"}
	urlKeys         = []string{"url", "jobUrl", "link", "externalUrl"}
	applyURLKeys    = []string{"applyUrl", "applyLink", "apply_url"}
	postedAtKeys    = []string{"postedAt", "publishedAt", "postedDate", "listedAt", "datePosted", "created"}
	postedTextKeys  = []string{"postedTime", "postedAgo", "timeAgo"}
)

// normalize maps a raw item into a CanonicalPosting. ok is false when the
// item has no usable identifier.
func normalize(item rawItem, now time.Time) (model.CanonicalPosting, bool) {
	id := item.str(idKeys...)
	if id == "" {
		return model.CanonicalPosting{}, false
	}

	desc := item.str(descriptionKeys...)
	if strings.Contains(desc, "<") || strings.Contains(desc, "&lt;") {
		desc = extractText(desc)
	}
	descLen := len([]rune(desc))

	p := model.CanonicalPosting{
		ExternalID:        id,
		Title:             strings.TrimSpace(item.str(titleKeys...)),
		Company:           strings.TrimSpace(item.str(companyKeys...)),
		Location:          strings.TrimSpace(item.str(locationKeys...)),
		Description:       truncateRunes(desc, model.MaxDescriptionLength),
		URL:               item.str(urlKeys...),
		ApplyURL:          item.str(applyURLKeys...),
		DescriptionLength: descLen,
		DateConfidence:    model.DateConfidenceLow,
	}
	p.WorkMode = inferWorkMode(item, p.Location)

	if t := parsePostedAt(item.value(postedAtKeys...)); t != nil {
		p.PostedAt = t
		p.DateConfidence = model.DateConfidenceHigh
	} else if t := parseRelative(item.str(postedTextKeys...), now); t != nil {
		p.PostedAt = t
		p.DateConfidence = model.DateConfidenceHigh
	}

	return p, true
}

// value returns the first non-nil value among keys.
func (r rawItem) value(keys ...string) any {
	for _, k := range keys {
		if v, ok := r[k]; ok && v != nil {
			return v
		}
	}
	return nil
}

// str returns the first non-empty string among keys. Numbers are formatted,
// and objects with a "name" field (e.g. company: {name: ...}) are unwrapped.
func (r rawItem) str(keys ...string) string {
	for _, k := range keys {
		if s := asString(r[k]); s != "" {
			return s
		}
	}
	return ""
}

func asString(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	case map[string]any:
		for _, k := range []string{"name", "displayName", "display_name", "text"} {
			if s := asString(t[k]); s != "" {
				return s
			}
		}
	}
	return ""
}

func inferWorkMode(item rawItem, location string) model.WorkMode {
	if m := model.ParseWorkMode(item.str(workModeKeys...)); m != "" {
		return m
	}
	if remote, ok := item["remote"].(bool); ok && remote {
		return model.WorkModeRemote
	}
	loc := strings.ToLower(location)
	switch {
	case strings.Contains(loc, "remote"):
		return model.WorkModeRemote
	case strings.Contains(loc, "hybrid"):
		return model.WorkModeHybrid
	case strings.Contains(loc, "on-site"), strings.Contains(loc, "onsite"):
		return model.WorkModeOnsite
	}
	return ""
}

var dateLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// parsePostedAt accepts RFC3339-ish strings, plain dates and epoch
// milliseconds (or seconds).
func parsePostedAt(v any) *time.Time {
	switch t := v.(type) {
	case float64:
		return fromEpoch(int64(t))
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return nil
		}
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return fromEpoch(n)
		}
		for _, layout := range dateLayouts {
			if parsed, err := time.Parse(layout, s); err == nil {
				parsed = parsed.UTC()
				return &parsed
			}
		}
	}
	return nil
}

func fromEpoch(n int64) *time.Time {
	if n <= 0 {
		return nil
	}
	var t time.Time
	if n > 1e12 {
		t = time.UnixMilli(n).UTC()
	} else {
		t = time.Unix(n, 0).UTC()
	}
	return &t
}

var relativeRegex = regexp.MustCompile(`(?i)^(?:posted\s+|reposted\s+)?(\d+|an?|one)\+?\s+(minute|hour|day|week|month)s?\s+ago$`)

// parseRelative understands "3 hours ago", "Posted 2 days ago", "a day ago",
// "just now", "today" and "yesterday".
func parseRelative(s string, now time.Time) *time.Time {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return nil
	}
	switch s {
	case "just now", "now", "today", "posted today":
		t := now.UTC()
		return &t
	case "yesterday", "posted yesterday":
		t := now.UTC().Add(-24 * time.Hour)
		return &t
	}

	m := relativeRegex.FindStringSubmatch(s)
	if m == nil {
		return nil
	}
	n := 1
	if v, err := strconv.Atoi(m[1]); err == nil {
		n = v
	}

	var unit time.Duration
	switch m[2] {
	case "minute":
		unit = time.Minute
	case "hour":
		unit = time.Hour
	case "day":
		unit = 24 * time.Hour
	case "week":
		unit = 7 * 24 * time.Hour
	case "month":
		unit = 30 * 24 * time.Hour
	default:
		return nil
	}
	t := now.UTC().Add(-time.Duration(n) * unit)
	return &t
}

// withinWindow applies the recency rule: dated postings must be inside the
// window; undated ones are kept (flagged LOW by normalize).
func withinWindow(p model.CanonicalPosting, now time.Time, window time.Duration) bool {
	if p.PostedAt == nil {
		return true
	}
	return now.Sub(*p.PostedAt) <= window
}

func describeItem(item rawItem) string {
	if t := item.str(titleKeys...); t != "" {
		return fmt.Sprintf("%q", t)
	}
	return "<untitled>"
}
