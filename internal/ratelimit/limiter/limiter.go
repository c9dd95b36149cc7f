// Package limiter admits or rejects requests against a counter in the shared
// key-value store.
//
// Fixed windows count in a key suffixed with the window index, so a counter is
// never reset in place and expires on its own. Token buckets run as a single
// store-side script. Sliding windows are approximated by fixed windows on the
// shared store: a burst of up to twice the limit across one window boundary is
// possible. A Limiter built WithExactSlidingWindow keeps an exact request log in
// process memory instead; that is only suitable for a single instance.
package limiter

import (
	"context"
	"fmt"
	"time"

	"siaga/internal/platform/kvstore"
	"siaga/internal/ratelimit/metrics"
	"siaga/internal/ratelimit/models"
	dErrors "siaga/pkg/domain-errors"
	"siaga/pkg/requestcontext"
)

const keyPrefix = "ratelimit:"

type Limiter struct {
	kv      kvstore.Store
	log     *slidingLog
	metrics *metrics.Metrics
}

type Option func(*Limiter)

// WithExactSlidingWindow evaluates sliding windows against an in-process request log.
func WithExactSlidingWindow() Option {
	return func(l *Limiter) {
		l.log = newSlidingLog()
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(l *Limiter) {
		l.metrics = m
	}
}

func New(kv kvstore.Store, opts ...Option) (*Limiter, error) {
	if kv == nil {
		return nil, dErrors.New(dErrors.CodeConfiguration, "rate limiter requires a key-value store")
	}
	l := &Limiter{kv: kv}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

// Check consumes one unit of key's quota under strategy. Store failures are
// returned wrapping sentinel.ErrUnavailable; the caller decides whether to fail open.
func (l *Limiter) Check(ctx context.Context, key models.Key, strategy models.Strategy) (*models.RateLimitResult, error) {
	if err := strategy.Validate(); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeConfiguration, "invalid rate limit strategy")
	}
	now := requestcontext.Now(ctx)
	storeKey := keyPrefix + key.String()

	var (
		result *models.RateLimitResult
		err    error
	)
	switch strategy.Kind {
	case models.KindSlidingWindow:
		if l.log != nil {
			result = l.log.allow(storeKey, strategy.Requests, strategy.Window, now)
			break
		}
		result, err = l.fixedWindow(ctx, storeKey, strategy, now)
	case models.KindFixedWindow:
		result, err = l.fixedWindow(ctx, storeKey, strategy, now)
	case models.KindTokenBucket:
		result, err = l.tokenBucket(ctx, storeKey, strategy, now)
	}
	if err != nil {
		l.metrics.IncStoreError()
		return nil, fmt.Errorf("rate limit check %s: %w", key, err)
	}
	l.metrics.IncDecision(key.Action, string(strategy.Kind), result.Allowed)
	return result, nil
}

func (l *Limiter) fixedWindow(ctx context.Context, storeKey string, strategy models.Strategy, now time.Time) (*models.RateLimitResult, error) {
	window := int64(strategy.Window)
	index := now.UnixNano() / window
	resetAt := time.Unix(0, (index+1)*window).In(now.Location())

	count, _, err := l.kv.IncrWithExpiry(ctx, fmt.Sprintf("%s:%d", storeKey, index), strategy.Window)
	if err != nil {
		return nil, err
	}

	result := &models.RateLimitResult{
		Allowed:   count <= int64(strategy.Requests),
		Limit:     strategy.Requests,
		Remaining: max(strategy.Requests-int(count), 0),
		ResetAt:   resetAt,
	}
	if !result.Allowed {
		result.RetryAfter = resetAt.Sub(now)
	}
	return result, nil
}

func (l *Limiter) tokenBucket(ctx context.Context, storeKey string, strategy models.Strategy, now time.Time) (*models.RateLimitResult, error) {
	res, err := l.kv.TakeToken(ctx, storeKey, kvstore.Bucket{
		Capacity: strategy.Capacity,
		Refill:   strategy.RefillRate,
		Interval: strategy.RefillInterval,
	}, now)
	if err != nil {
		return nil, err
	}

	result := &models.RateLimitResult{
		Allowed:   res.Allowed,
		Limit:     strategy.Capacity,
		Remaining: res.Remaining,
		ResetAt:   now.Add(strategy.RefillInterval),
	}
	if !res.Allowed {
		result.RetryAfter = res.RetryAfter
		result.ResetAt = now.Add(res.RetryAfter)
	}
	return result, nil
}
