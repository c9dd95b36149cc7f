package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"siaga/internal/ratelimit/metrics"
	"siaga/internal/ratelimit/models"
	"siaga/pkg/platform/audit"
	"siaga/pkg/platform/circuit"
	"siaga/pkg/platform/httputil"
	"siaga/pkg/platform/privacy"
	"siaga/pkg/requestcontext"
)

// RateLimiter is implemented by requestlimit.Service.
type RateLimiter interface {
	CheckIP(ctx context.Context, ip, endpoint string) (*models.RateLimitResult, error)
	CheckUser(ctx context.Context, userID, role, endpoint string) (*models.RateLimitResult, error)
	CheckBoth(ctx context.Context, ip, userID, role, endpoint string) (*models.RateLimitResult, error)
}

// Middleware enforces per-endpoint quotas. When the primary limiter keeps failing
// the breaker opens and checks run against the in-memory fallback, flagged to the
// client with X-RateLimit-Status: degraded. Before the breaker opens, and when no
// fallback is configured, a failing check lets the request through.
type Middleware struct {
	limiter        RateLimiter
	fallback       RateLimiter
	breaker        *circuit.Breaker
	logger         *slog.Logger
	auditPublisher audit.Publisher
	metrics        *metrics.Metrics
	disabled       bool
}

type Option func(*Middleware)

// WithDisabled disables rate limiting entirely (for testing/demo mode).
func WithDisabled(disabled bool) Option {
	return func(m *Middleware) {
		m.disabled = disabled
	}
}

func WithFallback(fallback RateLimiter) Option {
	return func(m *Middleware) {
		m.fallback = fallback
	}
}

func WithBreaker(b *circuit.Breaker) Option {
	return func(m *Middleware) {
		if b != nil {
			m.breaker = b
		}
	}
}

func WithAuditPublisher(publisher audit.Publisher) Option {
	return func(m *Middleware) {
		m.auditPublisher = publisher
	}
}

func WithMetrics(mt *metrics.Metrics) Option {
	return func(m *Middleware) {
		m.metrics = mt
	}
}

func New(limiter RateLimiter, logger *slog.Logger, opts ...Option) *Middleware {
	m := &Middleware{
		limiter: limiter,
		logger:  logger,
		breaker: circuit.New("ratelimit"),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.disabled {
		logger.Info("rate limiting disabled")
	}
	return m
}

// RateLimit counts requests to endpoint against the client address.
func (m *Middleware) RateLimit(endpoint string) func(http.Handler) http.Handler {
	return m.handler(func(ctx context.Context, l RateLimiter) (*models.RateLimitResult, error) {
		return l.CheckIP(ctx, requestcontext.ClientIP(ctx), endpoint)
	})
}

// RateLimitAuthenticated counts requests to endpoint against both the client
// address and the authenticated principal, using the principal's role quota.
// It must run after authentication; anonymous requests fall back to the address.
func (m *Middleware) RateLimitAuthenticated(endpoint string) func(http.Handler) http.Handler {
	return m.handler(func(ctx context.Context, l RateLimiter) (*models.RateLimitResult, error) {
		ip := requestcontext.ClientIP(ctx)
		userID := requestcontext.UserID(ctx)
		if userID.IsNil() {
			return l.CheckIP(ctx, ip, endpoint)
		}
		return l.CheckBoth(ctx, ip, userID.String(), requestcontext.Role(ctx), endpoint)
	})
}

// RateLimitUser counts requests to endpoint against the authenticated principal
// only. It pairs with a RateLimit gate placed before authentication, so the
// address is not counted twice. Anonymous requests pass through.
func (m *Middleware) RateLimitUser(endpoint string) func(http.Handler) http.Handler {
	return m.handler(func(ctx context.Context, l RateLimiter) (*models.RateLimitResult, error) {
		userID := requestcontext.UserID(ctx)
		if userID.IsNil() {
			return nil, nil
		}
		return l.CheckUser(ctx, userID.String(), requestcontext.Role(ctx), endpoint)
	})
}

type checkFunc func(ctx context.Context, l RateLimiter) (*models.RateLimitResult, error)

func (m *Middleware) handler(check checkFunc) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if m.disabled {
				next.ServeHTTP(w, r)
				return
			}

			ctx := r.Context()
			result, degraded, err := m.check(ctx, check)
			if err != nil {
				m.logger.ErrorContext(ctx, "failed to check rate limit", "error", err,
					"ip_prefix", privacy.AnonymizeIP(requestcontext.ClientIP(ctx)))
				next.ServeHTTP(w, r)
				return
			}

			if result == nil {
				next.ServeHTTP(w, r)
				return
			}
			if degraded {
				w.Header().Set("X-RateLimit-Status", "degraded")
			}
			addRateLimitHeaders(w, result)

			if !result.Allowed {
				writeRateLimitExceeded(w, result)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func (m *Middleware) check(ctx context.Context, check checkFunc) (*models.RateLimitResult, bool, error) {
	result, err := check(ctx, m.limiter)
	if err == nil {
		if _, change := m.breaker.RecordSuccess(); change.Closed {
			m.metrics.SetDegraded(false)
			m.logger.InfoContext(ctx, "rate limit store recovered, leaving fallback mode")
		}
		return result, false, nil
	}

	useFallback, change := m.breaker.RecordFailure()
	if change.Opened {
		m.metrics.SetDegraded(true)
		audit.LogAudit(ctx, m.logger, m.auditPublisher, audit.EventRateLimitDegraded,
			"reason", err.Error(),
		)
	}
	if !useFallback || m.fallback == nil {
		return nil, false, err
	}
	result, fbErr := check(ctx, m.fallback)
	if fbErr != nil {
		return nil, false, fbErr
	}
	return result, true, nil
}

func addRateLimitHeaders(w http.ResponseWriter, result *models.RateLimitResult) {
	if result == nil {
		return
	}
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(result.Limit))
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
	w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(result.ResetAt.Unix(), 10))
}

func writeRateLimitExceeded(w http.ResponseWriter, result *models.RateLimitResult) {
	retryAfter := result.RetryAfterSeconds()
	w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
	httputil.WriteJSON(w, http.StatusTooManyRequests, &models.RateLimitExceededResponse{
		Error:      "rate_limit_exceeded",
		Message:    "Too many requests. Please try again later.",
		RetryAfter: retryAfter,
	})
}
