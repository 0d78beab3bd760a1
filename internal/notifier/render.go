package notifier

import (
	"bytes"
	_ "embed"
	"fmt"
	"html/template"
	"sort"
	"time"

	"github.com/amishk599/jobsift/internal/model"
)

//go:embed templates/digest.html
var digestTemplateRaw string

var digestTemplate = template.Must(template.New("digest").Parse(digestTemplateRaw))

type digestView struct {
	Subject   string
	Count     int
	Generated string
	Groups    []groupView
}

type groupView struct {
	Name string
	Jobs []jobView
}

type jobView struct {
	Title     string
	Company   string
	Location  string
	WorkMode  string
	Score     int
	Posted    string
	Summary   string
	Rationale string
	Link      string
}

// BuildDigest renders jobs into an HTML digest addressed to recipient.
// groupNames maps group ids to display names; unknown ids are shown as-is.
func BuildDigest(recipient string, jobs []model.StoredJob, groupNames map[string]string, now time.Time) (model.Digest, error) {
	subject := fmt.Sprintf("jobsift: %d new strong %s", len(jobs), plural(len(jobs), "match", "matches"))

	byGroup := make(map[string][]jobView)
	var order []string
	for _, j := range jobs {
		if _, ok := byGroup[j.GroupID]; !ok {
			order = append(order, j.GroupID)
		}
		byGroup[j.GroupID] = append(byGroup[j.GroupID], toJobView(j))
	}
	sort.SliceStable(order, func(a, b int) bool {
		return displayName(order[a], groupNames) < displayName(order[b], groupNames)
	})

	view := digestView{
		Subject:   subject,
		Count:     len(jobs),
		Generated: now.Format("Mon, 02 Jan 2006 15:04 MST"),
	}
	for _, id := range order {
		view.Groups = append(view.Groups, groupView{Name: displayName(id, groupNames), Jobs: byGroup[id]})
	}

	var buf bytes.Buffer
	if err := digestTemplate.Execute(&buf, view); err != nil {
		return model.Digest{}, fmt.Errorf("render digest: %w", err)
	}

	return model.Digest{
		Recipient: recipient,
		Subject:   subject,
		HTML:      buf.String(),
		Jobs:      jobs,
	}, nil
}

func toJobView(j model.StoredJob) jobView {
	v := jobView{
		Title:     j.Title,
		Company:   j.Company,
		Location:  j.Location,
		WorkMode:  string(j.WorkMode),
		Score:     j.Score,
		Rationale: j.Rationale,
		Link:      applyLink(j),
	}
	if j.Summary != nil {
		v.Summary = *j.Summary
	}
	if j.PostedAt != nil {
		v.Posted = j.PostedAt.Format("Jan 2")
	}
	return v
}

// applyLink prefers the direct apply URL over the listing URL.
func applyLink(j model.StoredJob) string {
	if j.ApplyURL != "" {
		return j.ApplyURL
	}
	return j.URL
}

func displayName(id string, names map[string]string) string {
	if n, ok := names[id]; ok && n != "" {
		return n
	}
	return id
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
