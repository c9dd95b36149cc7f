// Package authlockout tracks failed logins and locks an identity, and optionally
// the client address, once a threshold is reached inside the counting window.
//
// Counters and flags live in the shared key-value store:
//
//	lockout:count:<identity>  failed attempts, expires one window after the first failure
//	lockout:<identity>        lock flag, expires after the lockout duration
//	lockout:ip:<ip>           address lock flag, left to expire on its own
package authlockout

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"siaga/internal/platform/kvstore"
	"siaga/internal/ratelimit/metrics"
	"siaga/internal/ratelimit/models"
	dErrors "siaga/pkg/domain-errors"
	"siaga/pkg/platform/audit"
	"siaga/pkg/platform/privacy"
)

type Config struct {
	Threshold int
	Window    time.Duration
	Duration  time.Duration
	TrackIP   bool
}

func DefaultConfig() Config {
	return Config{
		Threshold: 5,
		Window:    30 * time.Minute,
		Duration:  30 * time.Minute,
		TrackIP:   true,
	}
}

type Service struct {
	kv             kvstore.Store
	config         Config
	auditPublisher audit.Publisher
	logger         *slog.Logger
	metrics        *metrics.Metrics
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithAuditPublisher(publisher audit.Publisher) Option {
	return func(s *Service) {
		s.auditPublisher = publisher
	}
}

func WithConfig(cfg Config) Option {
	return func(s *Service) {
		s.config = cfg
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func New(kv kvstore.Store, opts ...Option) (*Service, error) {
	if kv == nil {
		return nil, dErrors.New(dErrors.CodeConfiguration, "auth lockout store is required")
	}
	svc := &Service{
		kv:     kv,
		config: DefaultConfig(),
	}
	for _, opt := range opts {
		opt(svc)
	}
	if svc.config.Threshold < 1 || svc.config.Window <= 0 || svc.config.Duration <= 0 {
		return nil, dErrors.New(dErrors.CodeConfiguration, "lockout threshold, window and duration must be positive")
	}
	return svc, nil
}

// Duration is how long a triggered lockout lasts.
func (s *Service) Duration() time.Duration {
	return s.config.Duration
}

// TrackFailedLogin records one failure for identity and reports whether further
// attempts are still allowed. Reaching the threshold sets the lock flags; every
// failure past it refreshes them.
func (s *Service) TrackFailedLogin(ctx context.Context, identity, ip string) (bool, error) {
	identity = normalize(identity)
	count, _, err := s.kv.IncrWithExpiry(ctx, countKey(identity), s.config.Window)
	if err != nil {
		return false, fmt.Errorf("record failed login: %w", err)
	}
	s.metrics.IncrementAuthFailures()

	if count < int64(s.config.Threshold) {
		return true, nil
	}

	if err := s.kv.Set(ctx, lockKey(identity), "1", s.config.Duration); err != nil {
		return false, fmt.Errorf("set identity lockout: %w", err)
	}
	if ip != "" && s.config.TrackIP {
		if err := s.kv.Set(ctx, ipLockKey(ip), "1", s.config.Duration); err != nil {
			return false, fmt.Errorf("set address lockout: %w", err)
		}
	}

	if count == int64(s.config.Threshold) {
		s.metrics.IncrementAuthLockouts("identity")
		if ip != "" && s.config.TrackIP {
			s.metrics.IncrementAuthLockouts("ip")
		}
		audit.LogAudit(ctx, s.logger, s.auditPublisher, audit.EventAuthLockoutTriggered,
			"identifier", privacy.HashIdentifier(identity),
			"ip", privacy.AnonymizeIP(ip),
			"reason", fmt.Sprintf("%d failed attempts", count),
		)
	}
	return false, nil
}

// IsLocked reports whether identity, or ip when given, is currently locked out.
func (s *Service) IsLocked(ctx context.Context, identity, ip string) (bool, error) {
	locked, err := s.kv.Exists(ctx, lockKey(normalize(identity)))
	if err != nil {
		return false, fmt.Errorf("check identity lockout: %w", err)
	}
	if locked || ip == "" || !s.config.TrackIP {
		return locked, nil
	}
	locked, err = s.kv.Exists(ctx, ipLockKey(ip))
	if err != nil {
		return false, fmt.Errorf("check address lockout: %w", err)
	}
	return locked, nil
}

// ClearFailedAttempts resets the counter and lock flag for identity. Address
// locks are left to expire because an address may be shared.
func (s *Service) ClearFailedAttempts(ctx context.Context, identity string) error {
	identity = normalize(identity)
	locked, err := s.kv.Exists(ctx, lockKey(identity))
	if err != nil {
		return fmt.Errorf("check identity lockout: %w", err)
	}
	if err := s.kv.Delete(ctx, countKey(identity), lockKey(identity)); err != nil {
		return fmt.Errorf("clear failed attempts: %w", err)
	}
	if locked {
		s.metrics.IncrementLockoutsCleared()
		audit.LogAudit(ctx, s.logger, s.auditPublisher, audit.EventAuthLockoutCleared,
			"identifier", privacy.HashIdentifier(identity),
		)
	}
	return nil
}

func normalize(identity string) string {
	return strings.ToLower(strings.TrimSpace(identity))
}

func countKey(identity string) string {
	return "lockout:count:" + models.SanitizeKeySegment(identity)
}

func lockKey(identity string) string {
	return "lockout:" + models.SanitizeKeySegment(identity)
}

func ipLockKey(ip string) string {
	return "lockout:ip:" + models.SanitizeKeySegment(ip)
}
