package notifier

import (
	"context"
	"time"

	"github.com/amishk599/jobsift/internal/model"
)

// SendTestDigest sends a one-job digest to verify the integration works.
func SendTestDigest(ctx context.Context, sender model.DigestSender, recipient string) error {
	now := time.Now()
	summary := "Sample strong match used to check digest delivery."
	job := model.StoredJob{
		ScoredPosting: model.ScoredPosting{
			CanonicalPosting: model.CanonicalPosting{
				ExternalID: "test-001",
				Company:    "jobsift",
				Title:      "Test Digest - Integration Verified",
				Location:   "Everywhere",
				WorkMode:   model.WorkModeRemote,
				URL:        "https://example.com/jobs/test-001",
				PostedAt:   &now,
			},
			Score:     99,
			Verdict:   model.VerdictStrongMatch,
			Rationale: "This is a test message.",
			Summary:   &summary,
		},
		GroupID:   "test",
		FetchedAt: now,
	}

	d, err := BuildDigest(recipient, []model.StoredJob{job}, map[string]string{"test": "Test group"}, now)
	if err != nil {
		return err
	}
	return sender.Send(ctx, d)
}
