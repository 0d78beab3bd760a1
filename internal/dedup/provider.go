package dedup

import (
	"context"
	"fmt"

	"github.com/amishk599/jobsift/internal/model"
)

// IDLookup reports which of the given external IDs are already stored.
type IDLookup interface {
	ExistingIDs(ctx context.Context, ids []string) (map[string]bool, error)
}

// Partition splits a batch into postings never seen before and postings the
// store already holds.
type Partition struct {
	New           []model.CanonicalPosting
	ProviderDupes []model.CanonicalPosting
}

// ProviderDedup filters out postings already persisted by any earlier run.
type ProviderDedup struct {
	lookup IDLookup
}

// NewProviderDedup creates a ProviderDedup backed by lookup.
func NewProviderDedup(lookup IDLookup) *ProviderDedup {
	return &ProviderDedup{lookup: lookup}
}

// Split performs one batched lookup for the whole batch.
func (d *ProviderDedup) Split(ctx context.Context, batch []model.CanonicalPosting) (Partition, error) {
	if len(batch) == 0 {
		return Partition{}, nil
	}

	ids := make([]string, len(batch))
	for i, p := range batch {
		ids[i] = p.ExternalID
	}

	existing, err := d.lookup.ExistingIDs(ctx, ids)
	if err != nil {
		return Partition{}, fmt.Errorf("provider dedup lookup: %w", err)
	}

	var part Partition
	for _, p := range batch {
		if existing[p.ExternalID] {
			part.ProviderDupes = append(part.ProviderDupes, p)
		} else {
			part.New = append(part.New, p)
		}
	}
	return part, nil
}
