package notifier

import (
	"io"
	"log/slog"
	"time"

	"github.com/amishk599/jobsift/internal/model"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func timePtr(t time.Time) *time.Time { return &t }

func sampleJob(id, title, company, group string) model.StoredJob {
	summary := "Builds payment APIs in Go."
	return model.StoredJob{
		ScoredPosting: model.ScoredPosting{
			CanonicalPosting: model.CanonicalPosting{
				ExternalID: id,
				Company:    company,
				Title:      title,
				Location:   "Remote, US",
				WorkMode:   model.WorkModeRemote,
				URL:        "https://example.com/jobs/" + id,
				PostedAt:   timePtr(time.Date(2026, 1, 15, 10, 0, 0, 0, time.UTC)),
			},
			Score:     88,
			Verdict:   model.VerdictStrongMatch,
			Rationale: "Strong Go background required.",
			Summary:   &summary,
		},
		GroupID: group,
	}
}

func sampleDigest(jobs ...model.StoredJob) model.Digest {
	d, err := BuildDigest("me@example.com", jobs, map[string]string{"be": "Backend"}, time.Date(2026, 1, 16, 8, 0, 0, 0, time.UTC))
	if err != nil {
		panic(err)
	}
	return d
}
