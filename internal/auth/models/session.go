package models

import (
	"time"

	id "siaga/pkg/domain"
)

// SessionStatus is derived from a record and a point in time; it is never stored.
type SessionStatus string

const (
	SessionStatusActive   SessionStatus = "active"
	SessionStatusElevated SessionStatus = "elevated"
	SessionStatusExpired  SessionStatus = "expired"
)

// Session is the server-side record a token's session_id points to. It is the
// authority for revocation, elevation and device binding.
type Session struct {
	ID                id.SessionID `json:"id"`
	UserID            id.UserID    `json:"user_id"`
	Role              Role         `json:"role"`
	Permissions       []string     `json:"permissions"`
	CreatedAt         time.Time    `json:"created_at"`
	ExpiresAt         time.Time    `json:"expires_at"`
	LastActivityAt    time.Time    `json:"last_activity_at"`
	IP                string       `json:"ip,omitempty"`
	UserAgent         string       `json:"user_agent,omitempty"`
	DeviceFingerprint string       `json:"device_fingerprint,omitempty"`
	DeviceLabel       string       `json:"device_label,omitempty"`
	Elevated          bool         `json:"elevated"`
	ElevatedUntil     time.Time    `json:"elevated_until,omitzero"`
	MFAVerified       bool         `json:"mfa_verified"`
	// Generation counts refresh rotations that produced this record.
	Generation int `json:"generation"`
}

// IsExpired compares the record's own expiry, independent of any store TTL.
func (s *Session) IsExpired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// IsElevated reports whether the elevation window is still open at now.
func (s *Session) IsElevated(now time.Time) bool {
	return s.Elevated && now.Before(s.ElevatedUntil)
}

func (s *Session) Status(now time.Time) SessionStatus {
	switch {
	case s.IsExpired(now):
		return SessionStatusExpired
	case s.IsElevated(now):
		return SessionStatusElevated
	default:
		return SessionStatusActive
	}
}

// LapseElevation clears an elevation whose window has closed. It reports whether
// the record changed.
func (s *Session) LapseElevation(now time.Time) bool {
	if s.Elevated && !s.IsElevated(now) {
		s.Elevated = false
		s.ElevatedUntil = time.Time{}
		return true
	}
	return false
}

// TTL is the time left before the record expires, for store-level expiry.
func (s *Session) TTL(now time.Time) time.Duration {
	return s.ExpiresAt.Sub(now)
}

// SessionSummary is the caller-facing view of an active session.
type SessionSummary struct {
	SessionID    string    `json:"session_id"`
	Device       string    `json:"device"`
	IPAddress    string    `json:"ip_address,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	LastActivity time.Time `json:"last_activity"`
	Elevated     bool      `json:"elevated"`
	IsCurrent    bool      `json:"is_current"`
}

type SessionsResult struct {
	Sessions []SessionSummary `json:"sessions"`
}

// RevokeAllResult reports a logout-all.
type RevokeAllResult struct {
	Revoked int      `json:"revoked"`
	Failed  []string `json:"failed,omitempty"`
}
