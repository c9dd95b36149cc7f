package testutil

import (
	"context"
	"time"

	"siaga/pkg/requestcontext"
)

// WithClient sets the client IP, User-Agent and device fingerprint the metadata
// middleware would otherwise derive from headers.
func WithClient(ctx context.Context, ip, userAgent, fingerprint string) context.Context {
	ctx = requestcontext.WithClientMetadata(ctx, ip, userAgent)
	return requestcontext.WithDeviceFingerprint(ctx, fingerprint)
}

// FixedClock is a settable clock for services that take a func() time.Time.
type FixedClock struct {
	T time.Time
}

func NewFixedClock(t time.Time) *FixedClock { return &FixedClock{T: t} }

func (c *FixedClock) Now() time.Time { return c.T }

func (c *FixedClock) Advance(d time.Duration) { c.T = c.T.Add(d) }
