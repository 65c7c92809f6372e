package llm

import (
	"context"

	"golang.org/x/time/rate"
)

// RateLimitConfig configures request rate limiting for a provider.
type RateLimitConfig struct {
	RequestsPerMinute int // 0 = unlimited
	BurstSize         int
}

// RateLimitProvider delays calls so the inner provider sees at most the
// configured request rate.
type RateLimitProvider struct {
	inner   Provider
	limiter *rate.Limiter
}

// NewRateLimitProvider wraps inner with a token bucket limiter.
func NewRateLimitProvider(inner Provider, cfg RateLimitConfig) *RateLimitProvider {
	limit := rate.Inf
	if cfg.RequestsPerMinute > 0 {
		limit = rate.Limit(float64(cfg.RequestsPerMinute) / 60)
	}
	burst := cfg.BurstSize
	if burst <= 0 {
		burst = 1
	}
	return &RateLimitProvider{inner: inner, limiter: rate.NewLimiter(limit, burst)}
}

func (r *RateLimitProvider) Name() string { return r.inner.Name() }

func (r *RateLimitProvider) Complete(ctx context.Context, prompt *Prompt, opts *RequestOptions) (*Response, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return r.inner.Complete(ctx, prompt, opts)
}
