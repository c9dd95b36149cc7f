package models

import (
	"time"

	id "siaga/pkg/domain"
)

// Principal is what a validated request acts as.
type Principal struct {
	UserID      id.UserID
	SessionID   id.SessionID
	Role        Role
	Permissions []string
	Elevated    bool
	MFAVerified bool
	TokenID     string
	ExpiresAt   time.Time
}

// Requirements are checked after the token and its session are known to be valid.
// Zero values mean "no requirement".
type Requirements struct {
	Permissions      []string
	Role             Role
	RequireElevation bool
	// ExpectedDevice and ExpectedIP must match the session exactly when set.
	ExpectedDevice string
	ExpectedIP     string
}

// User is the slice of the account record this core reads and writes.
type User struct {
	ID           id.UserID
	Identity     string
	PasswordHash string
	Role         Role
	// MFASecret is the base32 TOTP secret; empty when MFA is not enrolled.
	MFASecret string
	Verified  bool
	Disabled  bool
}
