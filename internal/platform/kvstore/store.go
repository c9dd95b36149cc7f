// Package kvstore is the narrow key-value contract the security core needs from its
// shared store: flags and tombstones with TTL, atomic windowed counters and token buckets.
//
// Redis is the production backend. Local backs single-process deployments and tests;
// its state is advisory and never shared across instances.
package kvstore

import (
	"context"
	"time"
)

// Store is implemented by Redis and Local.
type Store interface {
	// Get returns sentinel.ErrNotFound for absent or expired keys.
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	Exists(ctx context.Context, key string) (bool, error)
	// IncrWithExpiry increments key and sets ttl on the first write, atomically.
	// It returns the new count and the time left before the counter expires.
	IncrWithExpiry(ctx context.Context, key string, ttl time.Duration) (int64, time.Duration, error)
	// TakeToken removes one token from the bucket at key if one is available.
	TakeToken(ctx context.Context, key string, bucket Bucket, now time.Time) (*BucketResult, error)
}

// Bucket describes a token bucket: Capacity tokens, refilled by Refill every Interval.
type Bucket struct {
	Capacity int
	Refill   int
	Interval time.Duration
}

// ttl is how long an idle bucket is kept: long enough to refill completely.
func (b Bucket) ttl() time.Duration {
	if b.Refill <= 0 {
		return b.Interval
	}
	intervals := (b.Capacity + b.Refill - 1) / b.Refill
	return time.Duration(intervals+1) * b.Interval
}

type BucketResult struct {
	Allowed    bool
	Remaining  int
	RetryAfter time.Duration
}
