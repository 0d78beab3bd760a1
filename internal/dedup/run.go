// Package dedup removes repeated postings before they reach the AI judge.
//
// Three layers exist: intra-batch collapse and cross-group suppression
// (RunDedup), a company+title guard for strong matches (also RunDedup), and
// the persistent lookup against already stored jobs (ProviderDedup).
package dedup

import (
	"github.com/amishk599/jobsift/internal/model"
)

// BatchResult is the outcome of Admit for one group's batch.
type BatchResult struct {
	Kept []model.CanonicalPosting
	// Repeats are later copies of an ID already present in the same batch.
	Repeats []model.CanonicalPosting
	// CrossGroup holds postings an earlier group in this run already accepted.
	CrossGroup []model.CanonicalPosting
}

// RunDedup holds the run-scoped dedup state. One instance per run; not safe
// for concurrent use, the pipeline is sequential.
//
// What the group in progress admits or claims stays pending until Commit,
// so a group whose batch rolls back leaves nothing behind for later groups.
type RunDedup struct {
	accepted map[string]string // external id -> group that accepted it
	claimed  map[string]string // company|title -> external id of the strong match

	pendingAccepted map[string]string
	pendingClaimed  map[string]string
}

// NewRunDedup returns empty state for a new run.
func NewRunDedup() *RunDedup {
	return &RunDedup{
		accepted:        make(map[string]string),
		claimed:         make(map[string]string),
		pendingAccepted: make(map[string]string),
		pendingClaimed:  make(map[string]string),
	}
}

// Admit collapses repeated IDs inside the batch (first wins) and drops IDs
// that an earlier group already committed. Kept IDs are held as pending for
// groupID until Commit.
func (d *RunDedup) Admit(groupID string, batch []model.CanonicalPosting) BatchResult {
	var res BatchResult
	inBatch := make(map[string]struct{}, len(batch))

	for _, p := range batch {
		if _, dup := inBatch[p.ExternalID]; dup {
			res.Repeats = append(res.Repeats, p)
			continue
		}
		inBatch[p.ExternalID] = struct{}{}

		if owner, seen := d.accepted[p.ExternalID]; seen && owner != groupID {
			res.CrossGroup = append(res.CrossGroup, p)
			continue
		}
		d.pendingAccepted[p.ExternalID] = groupID
		res.Kept = append(res.Kept, p)
	}
	return res
}

// Claimed reports whether a non-duplicate strong match with this
// company|title key was already confirmed in the run, and its external id.
// Pending claims of the group in progress count.
func (d *RunDedup) Claimed(key string) (string, bool) {
	if id, ok := d.claimed[key]; ok {
		return id, true
	}
	id, ok := d.pendingClaimed[key]
	return id, ok
}

// Claim records key as taken by externalID. The first claim wins.
func (d *RunDedup) Claim(key, externalID string) {
	if _, ok := d.Claimed(key); ok {
		return
	}
	d.pendingClaimed[key] = externalID
}

// Commit makes the pending admissions and claims visible to later groups.
// Call it once the group's batch is durably stored.
func (d *RunDedup) Commit() {
	for id, g := range d.pendingAccepted {
		d.accepted[id] = g
	}
	for k, id := range d.pendingClaimed {
		d.claimed[k] = id
	}
	d.Discard()
}

// Discard drops the pending admissions and claims, as after a rolled-back
// batch.
func (d *RunDedup) Discard() {
	clear(d.pendingAccepted)
	clear(d.pendingClaimed)
}

// AcceptedCount is the number of distinct IDs committed so far in the run.
func (d *RunDedup) AcceptedCount() int {
	return len(d.accepted)
}
