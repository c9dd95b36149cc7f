package service

import (
	"context"
	"strconv"

	"siaga/internal/auth/models"
	id "siaga/pkg/domain"
	dErrors "siaga/pkg/domain-errors"
	"siaga/pkg/platform/audit"
	"siaga/pkg/requestcontext"
)

// Logout revokes the session behind an access or refresh token. An invalid
// token is a no-op and a repeated logout succeeds.
func (s *Service) Logout(ctx context.Context, accessToken string) (err error) {
	ctx, span := s.start(ctx, "auth.Logout")
	defer func() { finish(span, err) }()

	claims, verr := s.tokens.Verify(ctx, accessToken)
	if verr != nil || claims.Kind.IsSpecial() {
		return nil
	}
	sessionID, perr := id.ParseSessionID(claims.SessionID)
	if perr != nil {
		return nil
	}
	if err := s.sessions.Revoke(ctx, sessionID); err != nil {
		return err
	}
	s.logAudit(ctx, audit.EventSessionRevoked,
		"user_id", claims.Subject,
		"session_id", sessionID.String(),
		"reason", "logout",
	)
	return nil
}

// LogoutAll revokes every session of userID.
func (s *Service) LogoutAll(ctx context.Context, userID id.UserID) (result *models.RevokeAllResult, err error) {
	ctx, span := s.start(ctx, "auth.LogoutAll")
	defer func() { finish(span, err) }()

	result, err = s.sessions.RevokeAllForUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	s.logAudit(ctx, audit.EventSessionsRevoked,
		"user_id", userID.String(),
		"reason", "logout_all",
		"revoked", strconv.Itoa(result.Revoked),
		"failed", strconv.Itoa(len(result.Failed)),
	)
	return result, nil
}

// Elevate opens the elevation window on the principal's session after checking
// the MFA proof, and returns the updated principal.
func (s *Service) Elevate(ctx context.Context, principal *models.Principal, mfaProof string) (updated *models.Principal, err error) {
	ctx, span := s.start(ctx, "auth.Elevate")
	defer func() { finish(span, err) }()

	if principal == nil || principal.SessionID.IsNil() {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "authentication required")
	}
	session, err := s.sessions.Elevate(ctx, principal.SessionID, mfaProof)
	if err != nil {
		return nil, err
	}
	if session.UserID != principal.UserID {
		return nil, ErrSessionInactive
	}

	s.logAudit(ctx, audit.EventSessionElevated,
		"user_id", session.UserID.String(),
		"session_id", session.ID.String(),
	)
	out := *principal
	out.Elevated = session.IsElevated(requestcontext.Now(ctx))
	out.MFAVerified = session.MFAVerified
	return &out, nil
}

// Sessions lists the user's live sessions, marking the one the caller is using.
func (s *Service) Sessions(ctx context.Context, principal *models.Principal) (*models.SessionsResult, error) {
	sessions, err := s.sessions.ListForUser(ctx, principal.UserID)
	if err != nil {
		return nil, err
	}
	now := requestcontext.Now(ctx)
	out := &models.SessionsResult{Sessions: make([]models.SessionSummary, 0, len(sessions))}
	for _, sess := range sessions {
		out.Sessions = append(out.Sessions, models.SessionSummary{
			SessionID:    sess.ID.String(),
			Device:       sess.DeviceLabel,
			IPAddress:    sess.IP,
			CreatedAt:    sess.CreatedAt,
			LastActivity: sess.LastActivityAt,
			Elevated:     sess.IsElevated(now),
			IsCurrent:    sess.ID == principal.SessionID,
		})
	}
	return out, nil
}
