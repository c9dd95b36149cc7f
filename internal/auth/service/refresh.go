package service

import (
	"context"
	"errors"
	"strconv"

	"siaga/internal/auth/models"
	"siaga/internal/auth/token"
	id "siaga/pkg/domain"
	dErrors "siaga/pkg/domain-errors"
	"siaga/pkg/platform/audit"
	"siaga/pkg/platform/privacy"
	"siaga/pkg/platform/sentinel"
	"siaga/pkg/requestcontext"
)

// Refresh exchanges a refresh token for a new pair on a rotated session. Each
// refresh token is accepted once. A replayed token means it leaked, so every
// session of its subject is revoked.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (resp *models.TokenResponse, err error) {
	ctx, span := s.start(ctx, "auth.Refresh")
	defer func() { finish(span, err) }()

	claims, err := s.tokens.VerifyKind(ctx, refreshToken, models.TokenKindRefresh)
	if err != nil {
		return nil, err
	}

	now := requestcontext.Now(ctx)
	first, err := s.consumed.Consume(ctx, "refresh:"+claims.ID, ttlUntil(now, claims.ExpiresAt.Time))
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to record refresh token use")
	}
	if !first {
		s.refreshReplayed(ctx, claims)
		return nil, token.ErrInvalidToken
	}

	session, err := s.liveSession(ctx, claims)
	if err != nil {
		return nil, err
	}
	if err := s.checkBinding(ctx, claims, session, "", ""); err != nil {
		return nil, err
	}

	user, err := s.users.FindByID(ctx, session.UserID)
	if err != nil && !errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load user")
	}
	if user == nil || user.Disabled {
		_ = s.sessions.Revoke(ctx, session.ID)
		return nil, ErrSessionInactive
	}

	next, err := s.sessions.Rotate(ctx, session)
	if err != nil {
		return nil, err
	}
	pair, err := s.issuePair(ctx, next)
	if err != nil {
		_ = s.sessions.Revoke(ctx, next.ID)
		return nil, err
	}

	s.logAudit(ctx, audit.EventTokenRefreshed,
		"user_id", next.UserID.String(),
		"session_id", next.ID.String(),
		"previous_session_id", session.ID.String(),
	)
	return pair.Response(), nil
}

func (s *Service) refreshReplayed(ctx context.Context, claims *models.Claims) {
	s.logAudit(ctx, audit.EventRefreshReplayed,
		"user_id", claims.Subject,
		"session_id", claims.SessionID,
		"ip", privacy.AnonymizeIP(requestcontext.ClientIP(ctx)),
	)
	userID, err := id.ParseUserID(claims.Subject)
	if err != nil {
		return
	}
	result, err := s.sessions.RevokeAllForUser(ctx, userID)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to revoke sessions after refresh replay",
			"user_id", claims.Subject,
			"error", err,
		)
		return
	}
	s.logAudit(ctx, audit.EventSessionsRevoked,
		"user_id", claims.Subject,
		"reason", "refresh_replay",
		"revoked", strconv.Itoa(result.Revoked),
	)
}
