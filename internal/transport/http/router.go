package httptransport

import (
	"context"
	"log/slog"
	"net/http"
	"net/netip"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"

	"siaga/internal/auth/models"
	"siaga/internal/platform/metrics"
	ratelimitmw "siaga/internal/ratelimit/middleware"
	"siaga/pkg/platform/httputil"
	"siaga/pkg/platform/middleware/admin"
	"siaga/pkg/platform/middleware/auth"
	"siaga/pkg/platform/middleware/metadata"
	"siaga/pkg/platform/middleware/requestid"
	"siaga/pkg/platform/middleware/requesttime"
)

// Rate limit endpoint names, matched against the strategy table.
const (
	EndpointRefresh       = "auth_refresh"
	EndpointLogout        = "auth_logout"
	EndpointPasswordReset = "auth_password_reset"
	EndpointVerify        = "auth_verify"
	EndpointElevate       = "auth_elevate"
	EndpointSession       = "auth_session"
	EndpointAdmin         = "admin"
)

// HealthCheck reports whether a dependency is usable.
type HealthCheck func(ctx context.Context) error

type RouterConfig struct {
	Auth          *AuthHandler
	Authenticator auth.Authenticator
	RateLimit     *ratelimitmw.Middleware
	Metrics       *metrics.Metrics
	Gatherer      prometheus.Gatherer
	Health        map[string]HealthCheck
	OperatorToken string
	Logger        *slog.Logger

	// TrustedProxies may set the client address through forwarding headers.
	TrustedProxies []netip.Prefix
}

// NewRouter wires the auth endpoints. Login is limited inside the façade, which
// checks the caller's address and the submitted identity together. Protected
// routes count the address before authentication and the principal after it.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Use(requestid.Middleware)
	r.Use(requesttime.Middleware)
	r.Use(metadata.ClientMetadata(cfg.TrustedProxies))
	if cfg.Metrics != nil {
		r.Use(cfg.Metrics.Instrument)
	}

	r.Get("/health", healthHandler(cfg.Health))
	r.With(admin.RequireOperatorToken(cfg.OperatorToken, cfg.Logger)).
		Handle("/metrics", metrics.Handler(cfg.Gatherer))

	h := cfg.Auth
	rl := cfg.RateLimit
	authenticated := auth.RequireAuth(cfg.Authenticator, models.Requirements{}, cfg.Logger)

	r.Route("/auth", func(r chi.Router) {
		r.Use(chimw.Timeout(30 * time.Second))
		r.Post("/login", h.handleLogin)
		r.With(rl.RateLimit(EndpointRefresh)).Post("/refresh", h.handleRefresh)
		r.With(rl.RateLimit(EndpointLogout)).Post("/logout", h.handleLogout)
		r.With(rl.RateLimit(EndpointPasswordReset)).Post("/password-reset/request", h.handlePasswordResetRequest)
		r.With(rl.RateLimit(EndpointPasswordReset)).Post("/password-reset/confirm", h.handlePasswordResetConfirm)
		r.With(rl.RateLimit(EndpointVerify)).Post("/verify", h.handleVerifyIdentity)

		r.Group(func(r chi.Router) {
			r.Use(rl.RateLimit(EndpointSession))
			r.Use(authenticated)
			r.Use(rl.RateLimitUser(EndpointSession))
			r.Get("/me", h.handleMe)
			r.Get("/sessions", h.handleSessions)
			r.Post("/logout-all", h.handleLogoutAll)
			r.With(rl.RateLimitAuthenticated(EndpointElevate)).Post("/elevate", h.handleElevate)
		})
	})

	r.Route("/admin", func(r chi.Router) {
		r.Use(rl.RateLimit(EndpointAdmin))
		r.Use(auth.RequireAuth(cfg.Authenticator, models.Requirements{
			Role:             models.RoleAdmin,
			RequireElevation: true,
		}, cfg.Logger))
		r.Use(rl.RateLimitUser(EndpointAdmin))
		r.Get("/ping", h.handleAdminPing)
	})

	return r
}

func healthHandler(checks map[string]HealthCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		status := http.StatusOK
		body := map[string]string{"status": "ok"}
		for name, check := range checks {
			if err := check(ctx); err != nil {
				status = http.StatusServiceUnavailable
				body["status"] = "degraded"
				body[name] = "unavailable"
				continue
			}
			body[name] = "ok"
		}
		httputil.WriteJSON(w, status, body)
	}
}
