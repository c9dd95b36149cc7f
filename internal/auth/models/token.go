package models

import (
	"github.com/golang-jwt/jwt/v5"
)

// TokenKind separates token purposes. A token is only accepted where its kind is expected.
type TokenKind string

const (
	TokenKindAccess  TokenKind = "access"
	TokenKindRefresh TokenKind = "refresh"
	TokenKindReset   TokenKind = "reset"
	TokenKindVerify  TokenKind = "verify"
)

func (k TokenKind) IsValid() bool {
	switch k {
	case TokenKindAccess, TokenKindRefresh, TokenKindReset, TokenKindVerify:
		return true
	}
	return false
}

// IsSpecial reports single-purpose kinds that carry no permissions or session.
func (k TokenKind) IsSpecial() bool {
	return k == TokenKindReset || k == TokenKindVerify
}

// Claims is the sealed token payload. Registered claims carry sub, iat, nbf, exp,
// jti, iss and aud; the rest is copied from the session at issuance and never
// re-derived per request.
type Claims struct {
	jwt.RegisteredClaims
	Role              Role      `json:"role,omitempty"`
	Permissions       []string  `json:"permissions,omitempty"`
	SessionID         string    `json:"session_id,omitempty"`
	Kind              TokenKind `json:"kind"`
	DeviceFingerprint string    `json:"device_fingerprint,omitempty"`
	IP                string    `json:"ip,omitempty"`
}

// TokenPair is an access and refresh token bound to the same session.
type TokenPair struct {
	AccessToken      string
	RefreshToken     string
	AccessExpiresIn  int64
	RefreshExpiresIn int64
	SessionID        string
}

// TokenResponse is the login and refresh response body.
type TokenResponse struct {
	AccessToken      string `json:"access_token"`
	RefreshToken     string `json:"refresh_token"`
	TokenType        string `json:"token_type"`
	ExpiresIn        int64  `json:"expires_in"`
	RefreshExpiresIn int64  `json:"refresh_expires_in"`
}

func (p *TokenPair) Response() *TokenResponse {
	return &TokenResponse{
		AccessToken:      p.AccessToken,
		RefreshToken:     p.RefreshToken,
		TokenType:        "Bearer",
		ExpiresIn:        p.AccessExpiresIn,
		RefreshExpiresIn: p.RefreshExpiresIn,
	}
}
