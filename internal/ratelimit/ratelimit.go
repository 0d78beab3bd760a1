package ratelimit

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"github.com/amishk599/jobsift/internal/ai"
	"github.com/amishk599/jobsift/internal/model"
)

// PerMinute returns a limiter allowing n calls per minute with a burst of
// one. n <= 0 means unlimited.
func PerMinute(n int) *rate.Limiter {
	if n <= 0 {
		return rate.NewLimiter(rate.Inf, 0)
	}
	return rate.NewLimiter(rate.Every(time.Minute/time.Duration(n)), 1)
}

// MinInterval returns a limiter enforcing d between consecutive calls.
// d <= 0 means unlimited.
func MinInterval(d time.Duration) *rate.Limiter {
	if d <= 0 {
		return rate.NewLimiter(rate.Inf, 0)
	}
	return rate.NewLimiter(rate.Every(d), 1)
}

// LimitedProvider is a decorator that paces LLM calls before delegating to
// the wrapped provider.
type LimitedProvider struct {
	inner   ai.LLMProvider
	limiter *rate.Limiter
}

// NewLimitedProvider wraps an LLMProvider with limiter.
func NewLimitedProvider(inner ai.LLMProvider, limiter *rate.Limiter) *LimitedProvider {
	return &LimitedProvider{inner: inner, limiter: limiter}
}

// Complete waits for the limiter, then delegates.
func (p *LimitedProvider) Complete(ctx context.Context, req ai.Request) (string, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("llm rate limiter wait: %w", err)
	}
	return p.inner.Complete(ctx, req)
}

// LimitedSource is a decorator that spaces out provider searches. Retries
// should sit inside it so every attempt is paced.
type LimitedSource struct {
	inner   model.PostingSource
	limiter *rate.Limiter
}

// NewLimitedSource wraps a PostingSource with limiter.
func NewLimitedSource(inner model.PostingSource, limiter *rate.Limiter) *LimitedSource {
	return &LimitedSource{inner: inner, limiter: limiter}
}

// Search waits for the limiter, then delegates.
func (s *LimitedSource) Search(ctx context.Context, q model.SearchQuery) ([]model.CanonicalPosting, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("search rate limiter wait for %s: %w", q.GroupID, err)
	}
	return s.inner.Search(ctx, q)
}
