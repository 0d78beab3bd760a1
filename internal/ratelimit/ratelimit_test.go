package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/amishk599/jobsift/internal/ai"
	"github.com/amishk599/jobsift/internal/model"
)

type countingProvider struct{ calls int }

func (c *countingProvider) Complete(_ context.Context, _ ai.Request) (string, error) {
	c.calls++
	return "{}", nil
}

type countingSource struct{ calls int }

func (c *countingSource) Search(_ context.Context, _ model.SearchQuery) ([]model.CanonicalPosting, error) {
	c.calls++
	return nil, nil
}

func TestLimitedProvider_EnforcesInterval(t *testing.T) {
	inner := &countingProvider{}
	p := NewLimitedProvider(inner, PerMinute(600)) // one every 100ms
	ctx := context.Background()

	// First call should return immediately.
	if _, err := p.Complete(ctx, ai.Request{}); err != nil {
		t.Fatalf("first call: %v", err)
	}

	start := time.Now()
	if _, err := p.Complete(ctx, ai.Request{}); err != nil {
		t.Fatalf("second call: %v", err)
	}
	elapsed := time.Since(start)

	// Should have waited at least ~100ms (allow 80ms for timer jitter).
	if elapsed < 80*time.Millisecond {
		t.Errorf("expected >= 80ms wait, got %v", elapsed)
	}
	if inner.calls != 2 {
		t.Errorf("expected 2 calls, got %d", inner.calls)
	}
}

func TestLimitedProvider_ZeroIsUnlimited(t *testing.T) {
	inner := &countingProvider{}
	p := NewLimitedProvider(inner, PerMinute(0))

	start := time.Now()
	for i := 0; i < 20; i++ {
		if _, err := p.Complete(context.Background(), ai.Request{}); err != nil {
			t.Fatalf("call %d: %v", i, err)
		}
	}
	if elapsed := time.Since(start); elapsed > 50*time.Millisecond {
		t.Errorf("expected near-instant calls, got %v", elapsed)
	}
}

func TestLimitedSource_ContextCancellation(t *testing.T) {
	inner := &countingSource{}
	s := NewLimitedSource(inner, MinInterval(5*time.Second)) // long delay

	// First call to consume the burst.
	if _, err := s.Search(context.Background(), model.SearchQuery{GroupID: "g"}); err != nil {
		t.Fatalf("first search: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := s.Search(ctx, model.SearchQuery{GroupID: "g"})
	if err == nil {
		t.Fatal("expected error from cancelled context")
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("expected fast return on cancellation, got %v", elapsed)
	}
	if inner.calls != 1 {
		t.Errorf("expected inner source to be called once, got %d", inner.calls)
	}
}
