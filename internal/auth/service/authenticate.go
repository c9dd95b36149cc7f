package service

import (
	"context"
	"crypto/subtle"
	"errors"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"siaga/internal/auth/models"
	"siaga/internal/auth/token"
	id "siaga/pkg/domain"
	dErrors "siaga/pkg/domain-errors"
	"siaga/pkg/platform/audit"
	"siaga/pkg/platform/privacy"
	"siaga/pkg/platform/sentinel"
	"siaga/pkg/requestcontext"
)

// Authenticate validates an access token against its session and the caller's
// requirements. Authorization failures (Forbidden) are only reported once the
// token and session are known to be valid. A successful check extends the
// session; that write never fails the request.
func (s *Service) Authenticate(ctx context.Context, accessToken string, req models.Requirements) (principal *models.Principal, err error) {
	ctx, span := s.start(ctx, "auth.Authenticate")
	defer func() { finish(span, err) }()

	claims, err := s.tokens.VerifyKind(ctx, accessToken, models.TokenKindAccess)
	if err != nil {
		return nil, err
	}
	session, err := s.liveSession(ctx, claims)
	if err != nil {
		return nil, err
	}
	if err := s.checkBinding(ctx, claims, session, req.ExpectedDevice, req.ExpectedIP); err != nil {
		return nil, err
	}

	now := requestcontext.Now(ctx)
	if err := s.authorize(ctx, session, req, now); err != nil {
		return nil, err
	}

	s.sessions.Touch(ctx, session.ID)
	span.SetAttributes(
		attribute.String("session.id", session.ID.String()),
		attribute.String("user.role", session.Role.String()),
	)
	return &models.Principal{
		UserID:      session.UserID,
		SessionID:   session.ID,
		Role:        session.Role,
		Permissions: session.Permissions,
		Elevated:    session.IsElevated(now),
		MFAVerified: session.MFAVerified,
		TokenID:     claims.ID,
		ExpiresAt:   claims.ExpiresAt.Time,
	}, nil
}

// liveSession loads the session a verified token points to. The session must
// exist, be unrevoked and unexpired, and belong to the token's subject.
func (s *Service) liveSession(ctx context.Context, claims *models.Claims) (*models.Session, error) {
	sessionID, err := id.ParseSessionID(claims.SessionID)
	if err != nil {
		return nil, token.ErrInvalidToken
	}
	session, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		if !errors.Is(err, sentinel.ErrNotFound) {
			s.logger.ErrorContext(ctx, "session lookup failed, rejecting token",
				"session_id", sessionID.String(),
				"error", err,
			)
		}
		return nil, ErrSessionInactive
	}
	if session.UserID.String() != claims.Subject {
		s.logger.WarnContext(ctx, "token subject does not own session",
			"session_id", session.ID.String(),
		)
		return nil, token.ErrInvalidToken
	}
	return session, nil
}

// checkBinding enforces the device and address a session was bound to at login,
// and any exact values the caller expects.
func (s *Service) checkBinding(ctx context.Context, claims *models.Claims, session *models.Session, expectedDevice, expectedIP string) error {
	if claims.DeviceFingerprint != "" {
		matched, drift := s.devices.CompareFingerprints(claims.DeviceFingerprint, s.currentFingerprint(ctx))
		if drift {
			return s.bindingMismatch(ctx, session, "device")
		}
		if !matched {
			return s.bindingMismatch(ctx, session, "device_missing")
		}
	}
	if expectedDevice != "" && !equal(expectedDevice, session.DeviceFingerprint) {
		return s.bindingMismatch(ctx, session, "device")
	}
	ip := requestcontext.ClientIP(ctx)
	if claims.IP != "" && claims.IP != ip {
		return s.bindingMismatch(ctx, session, "ip")
	}
	if expectedIP != "" && expectedIP != session.IP {
		return s.bindingMismatch(ctx, session, "ip")
	}
	return nil
}

func (s *Service) bindingMismatch(ctx context.Context, session *models.Session, kind string) error {
	s.logAudit(ctx, audit.EventDeviceMismatch,
		"user_id", session.UserID.String(),
		"session_id", session.ID.String(),
		"ip", privacy.AnonymizeIP(requestcontext.ClientIP(ctx)),
		"reason", kind,
	)
	return ErrBindingMismatch
}

// authorize checks role rank, permissions and elevation. SuperAdmin passes the
// role and permission checks but still needs an open elevation when one is required.
func (s *Service) authorize(ctx context.Context, session *models.Session, req models.Requirements, now time.Time) error {
	var denied error
	switch {
	case req.Role != "" && session.Role != models.RoleSuperAdmin && !session.Role.AtLeast(req.Role):
		denied = dErrors.New(dErrors.CodeForbidden, "insufficient role")
	case !models.HasAll(session.Role, session.Permissions, req.Permissions):
		denied = dErrors.WithDetails(dErrors.CodeForbidden, "missing permissions",
			models.Missing(session.Role, session.Permissions, req.Permissions))
	case req.RequireElevation && !session.IsElevated(now):
		denied = dErrors.New(dErrors.CodeForbidden, "elevation required")
	}
	if denied != nil {
		s.logAudit(ctx, audit.EventAccessDenied,
			"user_id", session.UserID.String(),
			"session_id", session.ID.String(),
			"reason", dErrors.MessageOf(denied),
		)
	}
	return denied
}

func equal(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
