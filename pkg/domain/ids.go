// Package domain holds the typed identifiers shared across bounded contexts.
//
// Identifiers wrap uuid.UUID so the compiler rejects passing a SessionID where
// a UserID is expected. Parsing happens once, at the trust boundary.
package domain

import (
	"github.com/google/uuid"

	dErrors "siaga/pkg/domain-errors"
)

type (
	UserID    uuid.UUID
	SessionID uuid.UUID
	TokenID   uuid.UUID
)

func NewUserID() UserID       { return UserID(uuid.New()) }
func NewSessionID() SessionID { return SessionID(uuid.New()) }
func NewTokenID() TokenID     { return TokenID(uuid.New()) }

func (id UserID) String() string    { return uuid.UUID(id).String() }
func (id SessionID) String() string { return uuid.UUID(id).String() }
func (id TokenID) String() string   { return uuid.UUID(id).String() }

func (id UserID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }
func (id SessionID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }
func (id TokenID) IsNil() bool   { return uuid.UUID(id) == uuid.Nil }

// MarshalText lets typed ids serialize as canonical UUID strings in JSON records.
func (id UserID) MarshalText() ([]byte, error)    { return uuid.UUID(id).MarshalText() }
func (id SessionID) MarshalText() ([]byte, error) { return uuid.UUID(id).MarshalText() }
func (id TokenID) MarshalText() ([]byte, error)   { return uuid.UUID(id).MarshalText() }

func (id *UserID) UnmarshalText(b []byte) error    { return (*uuid.UUID)(id).UnmarshalText(b) }
func (id *SessionID) UnmarshalText(b []byte) error { return (*uuid.UUID)(id).UnmarshalText(b) }
func (id *TokenID) UnmarshalText(b []byte) error   { return (*uuid.UUID)(id).UnmarshalText(b) }

// ParseUserID parses s and rejects empty, malformed, and nil UUIDs.
func ParseUserID(s string) (UserID, error) {
	u, err := parseUUID(s, "user ID")
	return UserID(u), err
}

// ParseSessionID parses s and rejects empty, malformed, and nil UUIDs.
func ParseSessionID(s string) (SessionID, error) {
	u, err := parseUUID(s, "session ID")
	return SessionID(u), err
}

// ParseTokenID parses s and rejects empty, malformed, and nil UUIDs.
func ParseTokenID(s string) (TokenID, error) {
	u, err := parseUUID(s, "token ID")
	return TokenID(u), err
}

func parseUUID(s, label string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, label+" cannot be empty")
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "invalid "+label)
	}
	if u == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, label+" cannot be nil")
	}
	return u, nil
}
