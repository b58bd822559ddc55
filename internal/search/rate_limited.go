package search

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"
)

// RateLimited throttles an upstream provider with a token bucket so bursts
// of agent searches stay within the API plan.
type RateLimited struct {
	next    Provider
	limiter *rate.Limiter
}

// NewRateLimited allows perSecond requests with the given burst.
func NewRateLimited(next Provider, perSecond float64, burst int) *RateLimited {
	if burst < 1 {
		burst = 1
	}
	return &RateLimited{next: next, limiter: rate.NewLimiter(rate.Limit(perSecond), burst)}
}

func (r *RateLimited) Search(ctx context.Context, query string, numResults int) ([]Result, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("search rate limit: %w", err)
	}
	return r.next.Search(ctx, query, numResults)
}

func (r *RateLimited) Name() string {
	return r.next.Name()
}
