package sentinel

import "errors"

// Sentinel errors for storage facts. Stores return these (optionally wrapped);
// services translate them into coded errors from pkg/domain-errors.
//
//   - ErrNotFound: record absent, including records the store already expired
//   - ErrExpired: record present but past its own expiry timestamp
//   - ErrRevoked: a revocation tombstone exists for the record
//   - ErrAlreadyUsed: single-use value already consumed
//   - ErrInvalidState: record in the wrong state for the operation
//   - ErrUnavailable: backing store unreachable or timed out
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrExpired      = errors.New("expired")
	ErrRevoked      = errors.New("revoked")
	ErrAlreadyUsed  = errors.New("already used")
	ErrInvalidState = errors.New("invalid state")
	ErrUnavailable  = errors.New("unavailable")
)
