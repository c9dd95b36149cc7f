package service

import (
	"context"
	"errors"

	"siaga/internal/auth/models"
	"siaga/internal/auth/token"
	id "siaga/pkg/domain"
	dErrors "siaga/pkg/domain-errors"
	"siaga/pkg/platform/audit"
	"siaga/pkg/platform/privacy"
	"siaga/pkg/platform/sentinel"
	"siaga/pkg/requestcontext"
)

// IssueResetToken mints a password reset token for identity. An unknown or
// disabled identity yields sentinel.ErrNotFound, which callers facing the
// public must not reveal.
func (s *Service) IssueResetToken(ctx context.Context, identity string) (string, *models.User, error) {
	user, err := s.users.FindByIdentity(ctx, identity)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return "", nil, err
		}
		return "", nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load user")
	}
	if user.Disabled {
		return "", nil, sentinel.ErrNotFound
	}
	tok, err := s.tokens.IssueSpecial(ctx, user.ID, models.TokenKindReset)
	if err != nil {
		return "", nil, err
	}
	return tok, user, nil
}

// IssueVerifyToken mints an identity verification token for userID.
func (s *Service) IssueVerifyToken(ctx context.Context, userID id.UserID) (string, error) {
	return s.tokens.IssueSpecial(ctx, userID, models.TokenKindVerify)
}

// ConsumeSpecial verifies a reset or verify token and marks it used. A second
// presentation is rejected like any invalid token.
func (s *Service) ConsumeSpecial(ctx context.Context, specialToken string, kind models.TokenKind) (*models.Claims, error) {
	if !kind.IsSpecial() {
		return nil, dErrors.New(dErrors.CodeValidation, "special token kind must be reset or verify")
	}
	claims, err := s.tokens.VerifyKind(ctx, specialToken, kind)
	if err != nil {
		return nil, err
	}
	if err := s.consume(ctx, claims); err != nil {
		return nil, err
	}
	return claims, nil
}

func (s *Service) consume(ctx context.Context, claims *models.Claims) error {
	now := requestcontext.Now(ctx)
	first, err := s.consumed.Consume(ctx, string(claims.Kind)+":"+claims.ID, ttlUntil(now, claims.ExpiresAt.Time))
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to record token use")
	}
	if !first {
		return token.ErrInvalidToken
	}
	return nil
}

// RequestPasswordReset issues a reset token and hands it to the notifier. It
// succeeds silently for unknown identities.
func (s *Service) RequestPasswordReset(ctx context.Context, identity string) (err error) {
	ctx, span := s.start(ctx, "auth.RequestPasswordReset")
	defer func() { finish(span, err) }()

	tok, user, err := s.IssueResetToken(ctx, identity)
	if errors.Is(err, sentinel.ErrNotFound) {
		s.logger.InfoContext(ctx, "password reset requested for unknown identity",
			"identifier", privacy.HashIdentifier(identity),
		)
		return nil
	}
	if err != nil {
		return err
	}
	if s.notifier == nil {
		s.logger.WarnContext(ctx, "password reset issued without a notifier", "user_id", user.ID.String())
		return nil
	}
	if err := s.notifier.NotifyPasswordReset(ctx, user, tok); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to deliver password reset")
	}
	return nil
}

// ResetPassword sets a new password with a reset token, then revokes every
// session of the account and clears its lockout. The token is only spent once
// the new password passes the policy.
func (s *Service) ResetPassword(ctx context.Context, resetToken, newPassword string) (err error) {
	ctx, span := s.start(ctx, "auth.ResetPassword")
	defer func() { finish(span, err) }()

	claims, err := s.tokens.VerifyKind(ctx, resetToken, models.TokenKindReset)
	if err != nil {
		return err
	}
	userID, err := id.ParseUserID(claims.Subject)
	if err != nil {
		return token.ErrInvalidToken
	}
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return token.ErrInvalidToken
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load user")
	}

	hash, err := s.credentials.Hash(ctx, newPassword)
	if err != nil {
		return err
	}
	if err := s.consume(ctx, claims); err != nil {
		return err
	}
	if err := s.users.UpdatePasswordHash(ctx, user.ID, hash); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to store password")
	}

	if _, err := s.sessions.RevokeAllForUser(ctx, user.ID); err != nil {
		s.logger.ErrorContext(ctx, "failed to revoke sessions after password reset",
			"user_id", user.ID.String(),
			"error", err,
		)
	}
	_ = s.credentials.ClearFailedAttempts(ctx, user.Identity)
	s.logAudit(ctx, audit.EventPasswordReset, "user_id", user.ID.String())
	return nil
}

// VerifyIdentity spends a verify token and marks its subject verified.
func (s *Service) VerifyIdentity(ctx context.Context, verifyToken string) error {
	claims, err := s.ConsumeSpecial(ctx, verifyToken, models.TokenKindVerify)
	if err != nil {
		return err
	}
	userID, err := id.ParseUserID(claims.Subject)
	if err != nil {
		return token.ErrInvalidToken
	}
	if err := s.users.MarkVerified(ctx, userID); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return token.ErrInvalidToken
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to mark user verified")
	}
	return nil
}
