package dedup

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amishk599/jobsift/internal/model"
)

func posting(id, company, title string) model.CanonicalPosting {
	return model.CanonicalPosting{ExternalID: id, Company: company, Title: title}
}

func ids(ps []model.CanonicalPosting) []string {
	out := make([]string, 0, len(ps))
	for _, p := range ps {
		out = append(out, p.ExternalID)
	}
	return out
}

func TestAdmit_CollapsesRepeatedIDs(t *testing.T) {
	d := NewRunDedup()
	batch := []model.CanonicalPosting{
		posting("X", "Acme", "Engineer"),
		posting("Y", "Acme", "Designer"),
		posting("X", "Acme", "Engineer"),
		posting("X", "Acme", "Engineer"),
	}

	res := d.Admit("g1", batch)

	assert.Equal(t, []string{"X", "Y"}, ids(res.Kept))
	assert.Len(t, res.Repeats, 2)
	assert.Empty(t, res.CrossGroup)
	assert.Zero(t, d.AcceptedCount(), "admissions stay pending until Commit")

	d.Commit()
	assert.Equal(t, 2, d.AcceptedCount())
}

func TestAdmit_DropsIDsAcceptedByEarlierGroup(t *testing.T) {
	d := NewRunDedup()
	d.Admit("g1", []model.CanonicalPosting{posting("X", "Acme", "Engineer")})
	d.Commit()

	res := d.Admit("g2", []model.CanonicalPosting{
		posting("X", "Acme", "Engineer"),
		posting("Z", "Globex", "SRE"),
	})

	assert.Equal(t, []string{"Z"}, ids(res.Kept))
	assert.Equal(t, []string{"X"}, ids(res.CrossGroup))
	assert.Empty(t, res.Repeats)
}

func TestClaim_FirstWins(t *testing.T) {
	d := NewRunDedup()
	key := model.CompanyTitleKey("Acme ", "Senior Engineer")

	_, ok := d.Claimed(key)
	require.False(t, ok)

	d.Claim(key, "A")
	d.Claim(key, "B")

	id, ok := d.Claimed(model.CompanyTitleKey("acme", "senior engineer"))
	require.True(t, ok)
	assert.Equal(t, "A", id)

	d.Commit()
	d.Claim(key, "C")
	id, _ = d.Claimed(key)
	assert.Equal(t, "A", id)
}

func TestDiscard_ReleasesRolledBackGroup(t *testing.T) {
	d := NewRunDedup()
	key := model.CompanyTitleKey("Acme", "Go Engineer")

	d.Admit("g1", []model.CanonicalPosting{posting("a1", "Acme", "Go Engineer")})
	d.Claim(key, "a1")
	d.Discard()

	_, ok := d.Claimed(key)
	assert.False(t, ok, "claim of a rolled-back group must not survive")

	res := d.Admit("g2", []model.CanonicalPosting{posting("a1", "Acme", "Go Engineer")})
	assert.Equal(t, []string{"a1"}, ids(res.Kept))
	assert.Empty(t, res.CrossGroup)

	d.Claim(key, "a1")
	d.Commit()
	id, ok := d.Claimed(key)
	require.True(t, ok)
	assert.Equal(t, "a1", id)
	assert.Equal(t, 1, d.AcceptedCount())
}

type fakeLookup struct {
	existing map[string]bool
	calls    int
	gotIDs   []string
	err      error
}

func (f *fakeLookup) ExistingIDs(_ context.Context, ids []string) (map[string]bool, error) {
	f.calls++
	f.gotIDs = ids
	if f.err != nil {
		return nil, f.err
	}
	out := make(map[string]bool)
	for _, id := range ids {
		if f.existing[id] {
			out[id] = true
		}
	}
	return out, nil
}

func TestProviderDedup_Split(t *testing.T) {
	lookup := &fakeLookup{existing: map[string]bool{"old-1": true, "old-2": true}}
	d := NewProviderDedup(lookup)

	part, err := d.Split(context.Background(), []model.CanonicalPosting{
		posting("old-1", "A", "a"),
		posting("new-1", "B", "b"),
		posting("old-2", "C", "c"),
	})
	require.NoError(t, err)

	assert.Equal(t, 1, lookup.calls, "lookup must be a single batched call")
	assert.Equal(t, []string{"old-1", "new-1", "old-2"}, lookup.gotIDs)
	assert.Equal(t, []string{"new-1"}, ids(part.New))
	assert.Equal(t, []string{"old-1", "old-2"}, ids(part.ProviderDupes))
}

func TestProviderDedup_EmptyBatchSkipsLookup(t *testing.T) {
	lookup := &fakeLookup{}
	d := NewProviderDedup(lookup)

	part, err := d.Split(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, part.New)
	assert.Zero(t, lookup.calls)
}

func TestProviderDedup_LookupError(t *testing.T) {
	d := NewProviderDedup(&fakeLookup{err: errors.New("db locked")})

	_, err := d.Split(context.Background(), []model.CanonicalPosting{posting("x", "A", "a")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "db locked")
}
