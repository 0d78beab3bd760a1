package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/amishk599/jobsift/internal/model"
	"github.com/amishk599/jobsift/internal/notifier"
)

// sendDigest mails every unseen, non-duplicate strong match and marks them
// seen once the sender reports success. Nothing is sent when there are none.
func (o *Orchestrator) sendDigest(ctx context.Context, groups []model.SearchGroup) error {
	if o.sender == nil {
		return errors.New("digest enabled but no sender configured")
	}

	jobs, err := o.store.UnseenStrongMatches(ctx)
	if err != nil {
		return err
	}
	if len(jobs) == 0 {
		o.logger.Debug("no unseen strong matches, skipping digest")
		return nil
	}

	names := make(map[string]string, len(groups))
	for _, g := range groups {
		names[g.ID] = g.Name
	}
	d, err := notifier.BuildDigest(o.cfg.DigestRecipient, jobs, names, o.now())
	if err != nil {
		return err
	}

	sendCtx := ctx
	if o.cfg.DigestTimeout > 0 {
		var cancel context.CancelFunc
		sendCtx, cancel = context.WithTimeout(ctx, o.cfg.DigestTimeout)
		defer cancel()
	}
	if err := o.sender.Send(sendCtx, d); err != nil {
		return fmt.Errorf("send %d jobs: %w", len(jobs), err)
	}

	ids := make([]string, len(jobs))
	for i, j := range jobs {
		ids[i] = j.ExternalID
	}
	if err := o.store.MarkSeen(ctx, ids); err != nil {
		return fmt.Errorf("mark %d jobs seen: %w", len(ids), err)
	}

	o.logger.Info("digest sent", "jobs", len(jobs), "recipient", o.cfg.DigestRecipient)
	return nil
}
