package requestlimit

import (
	"context"
	"log/slog"
	"strings"

	"golang.org/x/sync/errgroup"

	"siaga/internal/ratelimit/models"
	dErrors "siaga/pkg/domain-errors"
	"siaga/pkg/platform/audit"
	"siaga/pkg/platform/privacy"
)

// LoginAction is the endpoint key the login flow is counted under.
const LoginAction = "auth_login"

// Limiter is implemented by limiter.Limiter.
type Limiter interface {
	Check(ctx context.Context, key models.Key, strategy models.Strategy) (*models.RateLimitResult, error)
}

type Service struct {
	limiter        Limiter
	policy         *Policy
	auditPublisher audit.Publisher
	logger         *slog.Logger
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

func New(limiter Limiter, policy *Policy, opts ...Option) (*Service, error) {
	if limiter == nil {
		return nil, dErrors.New(dErrors.CodeConfiguration, "limiter is required")
	}
	if policy == nil {
		return nil, dErrors.New(dErrors.CodeConfiguration, "rate limit policy is required")
	}
	svc := &Service{
		limiter: limiter,
		policy:  policy,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// Resolve returns the strategy that applies to endpoint for a caller holding role.
func (s *Service) Resolve(endpoint, role string) models.Strategy {
	return s.policy.Resolve(endpoint, role)
}

// CheckIP counts an anonymous request against its client address.
func (s *Service) CheckIP(ctx context.Context, ip, endpoint string) (*models.RateLimitResult, error) {
	return s.check(ctx, models.IPKey(ip, endpoint), s.policy.Resolve(endpoint, ""), privacy.AnonymizeIP(ip))
}

// CheckUser counts an authenticated request against its principal.
func (s *Service) CheckUser(ctx context.Context, userID, role, endpoint string) (*models.RateLimitResult, error) {
	return s.check(ctx, models.UserKey(userID, endpoint), s.policy.Resolve(endpoint, role), userID)
}

// CheckBoth runs the address and principal checks concurrently and returns the
// more restrictive outcome.
func (s *Service) CheckBoth(ctx context.Context, ip, userID, role, endpoint string) (*models.RateLimitResult, error) {
	var ipResult, userResult *models.RateLimitResult
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		ipResult, err = s.CheckIP(gctx, ip, endpoint)
		return err
	})
	g.Go(func() error {
		var err error
		userResult, err = s.CheckUser(gctx, userID, role, endpoint)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return models.MoreRestrictive(ipResult, userResult), nil
}

// CheckLogin counts a login attempt against both the client address and the
// claimed identity, so neither spraying one account from many addresses nor
// many accounts from one address escapes the quota.
func (s *Service) CheckLogin(ctx context.Context, identity, ip string) (*models.RateLimitResult, error) {
	identity = strings.ToLower(strings.TrimSpace(identity))
	strategy := s.policy.Resolve(LoginAction, "")
	var ipResult, idResult *models.RateLimitResult
	g, gctx := errgroup.WithContext(ctx)
	if ip != "" {
		g.Go(func() error {
			var err error
			ipResult, err = s.check(gctx, models.IPKey(ip, LoginAction), strategy, privacy.AnonymizeIP(ip))
			return err
		})
	}
	g.Go(func() error {
		var err error
		idResult, err = s.check(gctx, models.UserKey(identity, LoginAction), strategy, privacy.HashIdentifier(identity))
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return models.MoreRestrictive(ipResult, idResult), nil
}

func (s *Service) check(ctx context.Context, key models.Key, strategy models.Strategy, logIdentifier string) (*models.RateLimitResult, error) {
	result, err := s.limiter.Check(ctx, key, strategy)
	if err != nil {
		return nil, err
	}
	if !result.Allowed {
		audit.LogAudit(ctx, s.logger, s.auditPublisher, audit.EventRateLimitExceeded,
			"identifier", logIdentifier,
			"scope", string(key.Scope),
			"action", key.Action,
			"strategy", string(strategy.Kind),
		)
	}
	return result, nil
}
