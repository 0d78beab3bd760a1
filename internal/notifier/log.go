package notifier

import (
	"context"
	"log/slog"

	"github.com/amishk599/jobsift/internal/model"
)

// Ensure LogSender implements model.DigestSender.
var _ model.DigestSender = (*LogSender)(nil)

// LogSender writes digests to the given logger as structured messages.
type LogSender struct {
	logger *slog.Logger
}

// NewLogSender returns a sender that logs each digest job via slog.
func NewLogSender(logger *slog.Logger) *LogSender {
	return &LogSender{logger: logger}
}

// Send logs each job with company, title, location, score and URL.
// Returns nil (stdout logging does not fail).
func (n *LogSender) Send(_ context.Context, d model.Digest) error {
	n.logger.Info("digest", "subject", d.Subject, "jobs", len(d.Jobs))
	for _, j := range d.Jobs {
		args := []any{"company", j.Company, "title", j.Title, "location", j.Location, "score", j.Score, "url", applyLink(j)}
		if j.Summary != nil {
			args = append(args, "summary", *j.Summary)
		}
		n.logger.Info("strong match", args...)
	}
	return nil
}
