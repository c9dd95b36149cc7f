package middleware

import (
	"log/slog"

	"siaga/internal/platform/config"
	"siaga/internal/platform/kvstore"
	"siaga/internal/ratelimit/limiter"
	"siaga/internal/ratelimit/service/requestlimit"
)

// NewFallbackLimiter builds an in-memory limiter over the same strategy table,
// used while the shared store is unavailable. Its counters are per instance.
func NewFallbackLimiter(cfg config.RateLimitConfig, logger *slog.Logger) (RateLimiter, error) {
	policy, err := requestlimit.NewPolicy(cfg)
	if err != nil {
		return nil, err
	}
	l, err := limiter.New(kvstore.NewLocal(), limiter.WithExactSlidingWindow())
	if err != nil {
		return nil, err
	}
	return requestlimit.New(l, policy, requestlimit.WithLogger(logger))
}
