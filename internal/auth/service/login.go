package service

import (
	"context"
	"errors"
	"strings"

	"go.opentelemetry.io/otel/attribute"

	"siaga/internal/auth/device"
	"siaga/internal/auth/models"
	"siaga/internal/auth/token"
	id "siaga/pkg/domain"
	dErrors "siaga/pkg/domain-errors"
	"siaga/pkg/platform/audit"
	"siaga/pkg/platform/privacy"
	"siaga/pkg/platform/sentinel"
	"siaga/pkg/requestcontext"
)

type LoginRequest struct {
	Identity string `json:"identity"`
	Password string `json:"password"`
}

// Login checks the login quota and lockout, verifies the password and opens a
// new session. Unknown identities, disabled accounts and wrong passwords all
// fail the same way after the same hashing work.
func (s *Service) Login(ctx context.Context, req LoginRequest) (resp *models.TokenResponse, err error) {
	ctx, span := s.start(ctx, "auth.Login")
	defer func() { finish(span, err) }()

	identity := strings.TrimSpace(req.Identity)
	if identity == "" || req.Password == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "identity and password are required")
	}
	ip := requestcontext.ClientIP(ctx)

	if s.limiter != nil {
		result, err := s.limiter.CheckLogin(ctx, identity, ip)
		switch {
		case err != nil:
			s.logger.WarnContext(ctx, "login rate limit unavailable", "error", err)
		case !result.Allowed:
			s.metrics.IncLoginAttempt("rate_limited")
			return nil, dErrors.RateLimited("too many login attempts", result.RetryAfter)
		}
	}

	if err := s.credentials.CheckLocked(ctx, identity, ip); err != nil {
		if !dErrors.HasCode(err, dErrors.CodeUnauthorized) {
			return nil, err
		}
		s.metrics.IncLoginAttempt("locked")
		s.logAudit(ctx, audit.EventLoginFailed,
			"identifier", privacy.HashIdentifier(identity),
			"ip", privacy.AnonymizeIP(ip),
			"reason", "locked",
		)
		return nil, ErrInvalidCredentials
	}

	user, err := s.users.FindByIdentity(ctx, identity)
	if err != nil && !errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load user")
	}
	if user == nil || user.Disabled {
		s.credentials.VerifyDummy(ctx, req.Password)
		return nil, s.loginFailed(ctx, identity, ip, "unknown_identity")
	}

	ok, err := s.credentials.Verify(ctx, req.Password, user.PasswordHash)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, s.loginFailed(ctx, identity, ip, "bad_password")
	}

	// a stale counter only delays the next lockout
	_ = s.credentials.ClearFailedAttempts(ctx, identity)
	s.rehashIfNeeded(ctx, user, req.Password)

	session := s.newSession(ctx, user)
	if err := s.sessions.Create(ctx, session); err != nil {
		return nil, err
	}
	pair, err := s.issuePair(ctx, session)
	if err != nil {
		_ = s.sessions.Revoke(ctx, session.ID)
		return nil, err
	}

	span.SetAttributes(attribute.String("session.id", session.ID.String()))
	s.metrics.IncLoginAttempt("success")
	s.logAudit(ctx, audit.EventLoginSucceeded,
		"user_id", user.ID.String(),
		"session_id", session.ID.String(),
		"ip", privacy.AnonymizeIP(ip),
	)
	return pair.Response(), nil
}

func (s *Service) loginFailed(ctx context.Context, identity, ip, reason string) error {
	allowed, err := s.credentials.TrackFailedLogin(ctx, identity, ip)
	if err != nil {
		return err
	}
	outcome := "failure"
	if !allowed {
		outcome = "locked"
	}
	s.metrics.IncLoginAttempt(outcome)
	s.logAudit(ctx, audit.EventLoginFailed,
		"identifier", privacy.HashIdentifier(identity),
		"ip", privacy.AnonymizeIP(ip),
		"reason", reason,
	)
	return ErrInvalidCredentials
}

// rehashIfNeeded upgrades a hash made with older parameters while the plain
// password is at hand. A password that no longer meets the policy keeps its hash.
func (s *Service) rehashIfNeeded(ctx context.Context, user *models.User, plain string) {
	if !s.credentials.NeedsRehash(user.PasswordHash) {
		return
	}
	hash, err := s.credentials.Hash(ctx, plain)
	if err != nil {
		s.logger.DebugContext(ctx, "password rehash skipped", "user_id", user.ID.String(), "error", err)
		return
	}
	if err := s.users.UpdatePasswordHash(ctx, user.ID, hash); err != nil {
		s.logger.WarnContext(ctx, "password rehash not stored", "user_id", user.ID.String(), "error", err)
	}
}

// newSession builds an unelevated session carrying the role's permission snapshot
// and, when binding is enabled, the request's device fingerprint and address.
func (s *Service) newSession(ctx context.Context, user *models.User) *models.Session {
	ua := requestcontext.UserAgent(ctx)
	session := &models.Session{
		ID:          id.NewSessionID(),
		UserID:      user.ID,
		Role:        user.Role,
		Permissions: s.roles.Permissions(user.Role),
		IP:          requestcontext.ClientIP(ctx),
		UserAgent:   ua,
		DeviceLabel: device.ParseUserAgent(ua),
	}
	if s.cfg.BindDevice {
		session.DeviceFingerprint = s.currentFingerprint(ctx)
	}
	return session
}

func (s *Service) issuePair(ctx context.Context, session *models.Session) (*models.TokenPair, error) {
	req := token.PairRequest{
		UserID:            session.UserID,
		Role:              session.Role,
		Permissions:       session.Permissions,
		SessionID:         session.ID,
		DeviceFingerprint: session.DeviceFingerprint,
	}
	if s.cfg.BindIP {
		req.IP = session.IP
	}
	return s.tokens.IssuePair(ctx, req)
}

// currentFingerprint prefers the client-supplied fingerprint and falls back to
// one derived from the User-Agent.
func (s *Service) currentFingerprint(ctx context.Context) string {
	if fp := requestcontext.DeviceFingerprint(ctx); fp != "" {
		return fp
	}
	return s.devices.ComputeFingerprint(requestcontext.UserAgent(ctx))
}
