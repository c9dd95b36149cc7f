// Package service is the authentication façade the transport layer calls: login,
// refresh, per-request validation, logout, elevation and the single-use reset
// and verify flows. The session store is authoritative over token claims.
package service

import (
	"context"
	"io"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"siaga/internal/auth/device"
	"siaga/internal/auth/metrics"
	"siaga/internal/auth/models"
	"siaga/internal/auth/token"
	ratelimit "siaga/internal/ratelimit/models"
	id "siaga/pkg/domain"
	dErrors "siaga/pkg/domain-errors"
	"siaga/pkg/platform/audit"
)

var (
	// ErrInvalidCredentials is the single answer to a failed login, whatever the cause.
	ErrInvalidCredentials = dErrors.New(dErrors.CodeUnauthorized, "invalid credentials")
	// ErrSessionInactive covers absent, expired and revoked sessions. Callers see
	// the same answer as for a bad token; the cause goes to the audit log.
	ErrSessionInactive = token.ErrInvalidToken
	// ErrBindingMismatch is returned when a bound session is used from another device or address.
	ErrBindingMismatch = token.ErrInvalidToken
)

type UserStore interface {
	FindByID(ctx context.Context, userID id.UserID) (*models.User, error)
	FindByIdentity(ctx context.Context, identity string) (*models.User, error)
	UpdatePasswordHash(ctx context.Context, userID id.UserID, hash string) error
	MarkVerified(ctx context.Context, userID id.UserID) error
}

// SessionManager is implemented by session.Service.
type SessionManager interface {
	Timeout() time.Duration
	Create(ctx context.Context, session *models.Session) error
	Get(ctx context.Context, sessionID id.SessionID) (*models.Session, error)
	Touch(ctx context.Context, sessionID id.SessionID)
	Elevate(ctx context.Context, sessionID id.SessionID, mfaProof string) (*models.Session, error)
	Revoke(ctx context.Context, sessionID id.SessionID) error
	RevokeAllForUser(ctx context.Context, userID id.UserID) (*models.RevokeAllResult, error)
	Rotate(ctx context.Context, old *models.Session) (*models.Session, error)
	ListForUser(ctx context.Context, userID id.UserID) ([]*models.Session, error)
}

// CredentialGuard is implemented by credential.Guard.
type CredentialGuard interface {
	Hash(ctx context.Context, plain string) (string, error)
	Verify(ctx context.Context, plain, hash string) (bool, error)
	VerifyDummy(ctx context.Context, plain string)
	NeedsRehash(hash string) bool
	CheckLocked(ctx context.Context, identity, ip string) error
	TrackFailedLogin(ctx context.Context, identity, ip string) (bool, error)
	ClearFailedAttempts(ctx context.Context, identity string) error
}

// LoginLimiter is implemented by requestlimit.Service.
type LoginLimiter interface {
	CheckLogin(ctx context.Context, identity, ip string) (*ratelimit.RateLimitResult, error)
}

// TokenConsumer records single-use token ids; implemented by revocation.List.
type TokenConsumer interface {
	Consume(ctx context.Context, tokenID string, ttl time.Duration) (bool, error)
}

// ResetNotifier delivers a password reset token to the account holder.
type ResetNotifier interface {
	NotifyPasswordReset(ctx context.Context, user *models.User, resetToken string) error
}

// Config selects which request attributes a new session is bound to.
type Config struct {
	BindDevice bool
	BindIP     bool
}

type Service struct {
	users          UserStore
	sessions       SessionManager
	tokens         *token.Service
	credentials    CredentialGuard
	consumed       TokenConsumer
	roles          *models.RoleTable
	limiter        LoginLimiter
	notifier       ResetNotifier
	devices        *device.Service
	cfg            Config
	logger         *slog.Logger
	auditPublisher audit.Publisher
	metrics        *metrics.Metrics
	tracer         trace.Tracer
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func WithAuditPublisher(publisher audit.Publisher) Option {
	return func(s *Service) {
		s.auditPublisher = publisher
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithTracer(t trace.Tracer) Option {
	return func(s *Service) {
		if t != nil {
			s.tracer = t
		}
	}
}

// WithLoginLimiter enforces the login quota before credentials are checked.
func WithLoginLimiter(l LoginLimiter) Option {
	return func(s *Service) {
		s.limiter = l
	}
}

func WithResetNotifier(n ResetNotifier) Option {
	return func(s *Service) {
		s.notifier = n
	}
}

func New(
	users UserStore,
	sessions SessionManager,
	tokens *token.Service,
	credentials CredentialGuard,
	consumed TokenConsumer,
	roles *models.RoleTable,
	cfg Config,
	opts ...Option,
) (*Service, error) {
	switch {
	case users == nil:
		return nil, dErrors.New(dErrors.CodeConfiguration, "user store is required")
	case sessions == nil:
		return nil, dErrors.New(dErrors.CodeConfiguration, "session manager is required")
	case tokens == nil:
		return nil, dErrors.New(dErrors.CodeConfiguration, "token service is required")
	case credentials == nil:
		return nil, dErrors.New(dErrors.CodeConfiguration, "credential guard is required")
	case consumed == nil:
		return nil, dErrors.New(dErrors.CodeConfiguration, "token consumer is required")
	case roles == nil:
		return nil, dErrors.New(dErrors.CodeConfiguration, "role table is required")
	}
	s := &Service{
		users:       users,
		sessions:    sessions,
		tokens:      tokens,
		credentials: credentials,
		consumed:    consumed,
		roles:       roles,
		devices:     device.NewService(cfg.BindDevice),
		cfg:         cfg,
		logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
		tracer:      otel.Tracer("siaga/internal/auth/service"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *Service) start(ctx context.Context, name string) (context.Context, trace.Span) {
	return s.tracer.Start(ctx, name)
}

// finish records err on span and ends it.
func finish(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, string(dErrors.CodeOf(err)))
	}
	span.End()
}

func (s *Service) logAudit(ctx context.Context, event audit.AuditEvent, attrs ...any) {
	audit.LogAudit(ctx, s.logger, s.auditPublisher, event, attrs...)
}

// ttlUntil is the time left before exp, never below a second.
func ttlUntil(now, exp time.Time) time.Duration {
	return max(exp.Sub(now), time.Second)
}
