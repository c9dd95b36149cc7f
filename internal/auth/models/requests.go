package models

import "time"

type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type LogoutRequest struct {
	// RefreshToken is optional; the bearer access token identifies the session.
	RefreshToken string `json:"refresh_token,omitempty"`
}

type ElevateRequest struct {
	MFACode string `json:"mfa_code"`
}

type PasswordResetRequest struct {
	Identity string `json:"identity"`
}

type PasswordResetConfirmRequest struct {
	Token       string `json:"token"`
	NewPassword string `json:"new_password"`
}

type VerifyIdentityRequest struct {
	Token string `json:"token"`
}

// PrincipalResponse is the body of GET /auth/me and POST /auth/elevate.
type PrincipalResponse struct {
	UserID      string    `json:"user_id"`
	SessionID   string    `json:"session_id"`
	Role        Role      `json:"role"`
	Permissions []string  `json:"permissions"`
	Elevated    bool      `json:"elevated"`
	MFAVerified bool      `json:"mfa_verified"`
	ExpiresAt   time.Time `json:"expires_at"`
}

func (p *Principal) Response() *PrincipalResponse {
	return &PrincipalResponse{
		UserID:      p.UserID.String(),
		SessionID:   p.SessionID.String(),
		Role:        p.Role,
		Permissions: p.Permissions,
		Elevated:    p.Elevated,
		MFAVerified: p.MFAVerified,
		ExpiresAt:   p.ExpiresAt,
	}
}
