package modules

import (
	"context"
	"sync"

	"golang.org/x/time/rate"

	"github.com/seanmmay/b0t-sub000/pkg/schema"
)

// RateLimiter throttles calls per category.module key.
type RateLimiter interface {
	Wait(ctx context.Context, key string) error
}

// TokenBucketLimiter keeps one token bucket per key, created on first use.
type TokenBucketLimiter struct {
	mu       sync.Mutex
	limit    rate.Limit
	burst    int
	limiters map[string]*rate.Limiter
}

// NewTokenBucketLimiter allows perSecond calls per key with the given burst.
// A non-positive perSecond disables throttling.
func NewTokenBucketLimiter(perSecond float64, burst int) *TokenBucketLimiter {
	limit := rate.Limit(perSecond)
	if perSecond <= 0 {
		limit = rate.Inf
	}
	if burst < 1 {
		burst = 1
	}
	return &TokenBucketLimiter{
		limit:    limit,
		burst:    burst,
		limiters: make(map[string]*rate.Limiter),
	}
}

// Wait blocks until key has a token or ctx is done.
func (l *TokenBucketLimiter) Wait(ctx context.Context, key string) error {
	if err := l.get(key).Wait(ctx); err != nil {
		return schema.NewErrorf(schema.ErrCodeRateLimited, "rate limit wait for %s: %s", key, err.Error()).
			WithCause(err)
	}
	return nil
}

// Allow reports whether key may proceed right now, consuming a token if so.
func (l *TokenBucketLimiter) Allow(key string) bool {
	return l.get(key).Allow()
}

func (l *TokenBucketLimiter) get(key string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	lim, ok := l.limiters[key]
	if !ok {
		lim = rate.NewLimiter(l.limit, l.burst)
		l.limiters[key] = lim
	}
	return lim
}

var _ RateLimiter = (*TokenBucketLimiter)(nil)
