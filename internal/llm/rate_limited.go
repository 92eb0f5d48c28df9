package llm

import (
	"context"

	"golang.org/x/time/rate"
)

// RateLimited wraps an Adapter so that every call — Normalize and Arbitrate
// alike — waits on a shared token bucket before it submits. The bucket is
// shared across all workers, so the instantaneous request rate stays smooth
// rather than bursty even though each worker calls independently — the one
// wrapper cmd/resolver hands to every worker, not any single worker, owns
// the spacing.
type RateLimited struct {
	inner   Adapter
	limiter *rate.Limiter
}

// NewRateLimited builds a shared-limiter wrapper. minIntervalMs is the
// minimum spacing between requests across the whole fleet; a burst of 1
// keeps submission strictly paced rather than allowing catch-up spikes.
func NewRateLimited(inner Adapter, minIntervalMs int) *RateLimited {
	var limit rate.Limit
	if minIntervalMs <= 0 {
		limit = rate.Inf
	} else {
		limit = rate.Every(durationMs(minIntervalMs))
	}
	return &RateLimited{inner: inner, limiter: rate.NewLimiter(limit, 1)}
}

func (r *RateLimited) Normalize(ctx context.Context, req NormalizeRequest) (NormalizeResponse, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return NormalizeResponse{}, Unavailable{Cause: err}
	}
	return r.inner.Normalize(ctx, req)
}

func (r *RateLimited) Arbitrate(ctx context.Context, req ArbitrateRequest) (Choice, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return ChoiceNone, Unavailable{Cause: err}
	}
	return r.inner.Arbitrate(ctx, req)
}

var _ Adapter = (*RateLimited)(nil)
