package ledger

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amishk599/jobsift/internal/model"
)

type fakeRunStore struct {
	runs      map[string]model.Run
	inserts   int
	updates   int
	insertErr error
}

func newFakeRunStore() *fakeRunStore {
	return &fakeRunStore{runs: make(map[string]model.Run)}
}

func (f *fakeRunStore) InsertRun(_ context.Context, r model.Run) error {
	if f.insertErr != nil {
		return f.insertErr
	}
	f.inserts++
	f.runs[r.ID] = r
	return nil
}

func (f *fakeRunStore) UpdateRun(_ context.Context, r model.Run) error {
	if _, ok := f.runs[r.ID]; !ok {
		return errors.New("no such run")
	}
	f.updates++
	f.runs[r.ID] = r
	return nil
}

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time { return c.t }

func newLedger(store RunStore, clock *fakeClock) *Ledger {
	return New(store, model.TriggerScheduled, clock.Now, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestLedger_SuccessfulRun(t *testing.T) {
	store := newFakeRunStore()
	clock := &fakeClock{t: time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC)}
	l := newLedger(store, clock)
	ctx := context.Background()

	id, err := l.Begin(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, id)
	assert.Equal(t, model.RunStatusRunning, store.runs[id].Status)
	assert.Equal(t, model.TriggerScheduled, store.runs[id].Trigger)

	l.Record(model.RunJobLogEntry{ExternalID: "a", Outcome: model.OutcomeFiltered})
	l.Record(model.RunJobLogEntry{ExternalID: "b", Outcome: model.OutcomeStrongMatch})
	entries := l.Drain()
	require.Len(t, entries, 2)
	assert.Equal(t, id, entries[0].RunID)
	assert.Equal(t, clock.t, entries[0].LoggedAt)
	assert.Empty(t, l.Drain(), "drain clears the buffer")

	clock.t = clock.t.Add(1500 * time.Millisecond)
	stats := model.RunStats{Fetched: 4, Scored: 2, Strong: 1, NoMatch: 1}
	r, err := l.Finish(ctx, stats)
	require.NoError(t, err)

	assert.Equal(t, model.RunStatusSuccess, r.Status)
	assert.Equal(t, int64(1500), r.DurationMs)
	assert.Equal(t, stats, store.runs[id].Stats)
	assert.Equal(t, 1, store.inserts)
}

func TestLedger_GroupErrorsMakePartial(t *testing.T) {
	store := newFakeRunStore()
	l := newLedger(store, &fakeClock{t: time.Now()})
	ctx := context.Background()

	_, err := l.Begin(ctx)
	require.NoError(t, err)

	l.Note("posting a skipped: scoring failed")
	l.RecordError(errors.New("group g2: provider returned 503"))

	r, err := l.Finish(ctx, model.RunStats{})
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusPartialError, r.Status)
	assert.Equal(t, "posting a skipped: scoring failed\ngroup g2: provider returned 503", r.ErrorLog)
}

func TestLedger_NotesAloneKeepSuccess(t *testing.T) {
	store := newFakeRunStore()
	l := newLedger(store, &fakeClock{t: time.Now()})
	ctx := context.Background()

	_, err := l.Begin(ctx)
	require.NoError(t, err)
	l.Note("posting a skipped: scoring failed")

	r, err := l.Finish(ctx, model.RunStats{})
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusSuccess, r.Status)
	assert.NotEmpty(t, r.ErrorLog)
}

func TestLedger_FailBeforeBeginInsertsOneRow(t *testing.T) {
	store := newFakeRunStore()
	l := newLedger(store, &fakeClock{t: time.Now()})

	r, err := l.Fail(context.Background(), model.RunStats{}, errors.New("no active search groups"))
	require.NoError(t, err)

	assert.Equal(t, 1, store.inserts)
	assert.Equal(t, 0, store.updates)
	require.Len(t, store.runs, 1)
	assert.Equal(t, model.RunStatusFailed, store.runs[r.ID].Status)
	assert.Equal(t, "no active search groups", store.runs[r.ID].ErrorLog)
	assert.Equal(t, model.TriggerScheduled, store.runs[r.ID].Trigger)
}

func TestLedger_FailAfterBeginUpdatesSameRow(t *testing.T) {
	store := newFakeRunStore()
	l := newLedger(store, &fakeClock{t: time.Now()})
	ctx := context.Background()

	id, err := l.Begin(ctx)
	require.NoError(t, err)

	r, err := l.Fail(ctx, model.RunStats{Fetched: 3}, errors.New("database is locked"))
	require.NoError(t, err)

	assert.Equal(t, id, r.ID)
	assert.Equal(t, 1, store.inserts)
	assert.Equal(t, 1, store.updates)
	require.Len(t, store.runs, 1)
	assert.Equal(t, model.RunStatusFailed, store.runs[id].Status)
	assert.Equal(t, 3, store.runs[id].Stats.Fetched)
}

func TestLedger_FinishBeforeBegin(t *testing.T) {
	l := newLedger(newFakeRunStore(), &fakeClock{t: time.Now()})
	_, err := l.Finish(context.Background(), model.RunStats{})
	assert.Error(t, err)
}

func TestLedger_BeginTwice(t *testing.T) {
	l := newLedger(newFakeRunStore(), &fakeClock{t: time.Now()})
	_, err := l.Begin(context.Background())
	require.NoError(t, err)
	_, err = l.Begin(context.Background())
	assert.Error(t, err)
}
