// Package revocation keeps tombstones for revoked sessions and consumed
// single-use tokens.
package revocation

import (
	"context"
	"fmt"
	"time"

	"siaga/internal/auth/metrics"
	"siaga/internal/platform/kvstore"
	id "siaga/pkg/domain"
	"siaga/pkg/platform/sentinel"
)

const (
	revokedSessionPrefix = "revoked:session:"
	consumedTokenPrefix  = "consumed:token:"
)

// List stores tombstones in the shared key-value store. With the Redis backend
// every instance sees the same tombstones; with the local backend they are
// process-scoped.
type List struct {
	kv      kvstore.Store
	metrics *metrics.Metrics
}

type Option func(*List)

func WithMetrics(m *metrics.Metrics) Option {
	return func(l *List) {
		l.metrics = m
	}
}

func NewList(kv kvstore.Store, opts ...Option) *List {
	l := &List{kv: kv}
	for _, opt := range opts {
		if opt != nil {
			opt(l)
		}
	}
	return l
}

// RevokeSession writes the tombstone for sessionID. Rewriting an existing
// tombstone only refreshes its TTL.
func (l *List) RevokeSession(ctx context.Context, sessionID id.SessionID, ttl time.Duration) error {
	if err := validateTTL(ttl); err != nil {
		return err
	}
	if err := l.kv.Set(ctx, revokedSessionPrefix+sessionID.String(), "1", ttl); err != nil {
		return fmt.Errorf("revoke session: %w", err)
	}
	return nil
}

// IsRevoked reports whether a tombstone exists for sessionID.
func (l *List) IsRevoked(ctx context.Context, sessionID id.SessionID) (bool, error) {
	defer l.metrics.ObserveRevocationCheck(time.Now())

	ok, err := l.kv.Exists(ctx, revokedSessionPrefix+sessionID.String())
	if err != nil {
		return false, fmt.Errorf("check session revocation: %w", err)
	}
	return ok, nil
}

// Consume marks a single-use token id as spent. It reports true only for the
// first caller; the marker lives for ttl, which should cover the token's lifetime.
func (l *List) Consume(ctx context.Context, tokenID string, ttl time.Duration) (bool, error) {
	if err := validateTTL(ttl); err != nil {
		return false, err
	}
	if tokenID == "" {
		return false, nil
	}
	n, _, err := l.kv.IncrWithExpiry(ctx, consumedTokenPrefix+tokenID, ttl)
	if err != nil {
		return false, fmt.Errorf("consume token: %w", err)
	}
	return n == 1, nil
}

// validateTTL rejects entries that would never expire or expire immediately.
func validateTTL(ttl time.Duration) error {
	if ttl <= 0 {
		return fmt.Errorf("revocation ttl %s: %w", ttl, sentinel.ErrInvalidState)
	}
	return nil
}
