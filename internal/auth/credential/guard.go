// Package credential guards password logins: strength policy and hashing on the
// bounded pool, plus failed-attempt tracking and lockout.
package credential

import (
	"context"
	"log/slog"

	"siaga/internal/auth/password"
	dErrors "siaga/pkg/domain-errors"
	"siaga/pkg/platform/privacy"
)

// ErrLocked is returned while an identity or address is locked out.
var ErrLocked = dErrors.New(dErrors.CodeUnauthorized, "too many failed attempts, try again later")

// Lockout is implemented by authlockout.Service.
type Lockout interface {
	TrackFailedLogin(ctx context.Context, identity, ip string) (bool, error)
	IsLocked(ctx context.Context, identity, ip string) (bool, error)
	ClearFailedAttempts(ctx context.Context, identity string) error
}

type Guard struct {
	hasher  *password.Hasher
	lockout Lockout
	logger  *slog.Logger
}

type Option func(*Guard)

func WithLogger(logger *slog.Logger) Option {
	return func(g *Guard) {
		if logger != nil {
			g.logger = logger
		}
	}
}

func New(hasher *password.Hasher, lockout Lockout, opts ...Option) (*Guard, error) {
	if hasher == nil {
		return nil, dErrors.New(dErrors.CodeConfiguration, "password hasher is required")
	}
	if lockout == nil {
		return nil, dErrors.New(dErrors.CodeConfiguration, "lockout tracker is required")
	}
	g := &Guard{hasher: hasher, lockout: lockout, logger: slog.Default()}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

// Hash validates plain against the strength policy and hashes it.
func (g *Guard) Hash(ctx context.Context, plain string) (string, error) {
	return g.hasher.Hash(ctx, plain)
}

// Verify compares plain with a stored hash. A mismatch is (false, nil).
func (g *Guard) Verify(ctx context.Context, plain, hash string) (bool, error) {
	return g.hasher.Verify(ctx, plain, hash)
}

// VerifyDummy spends a verification's worth of work for an unknown identity.
func (g *Guard) VerifyDummy(ctx context.Context, plain string) {
	g.hasher.VerifyDummy(ctx, plain)
}

func (g *Guard) NeedsRehash(hash string) bool {
	return g.hasher.NeedsRehash(hash)
}

// IsLocked reports whether identity, or ip when given, is locked out.
func (g *Guard) IsLocked(ctx context.Context, identity, ip string) (bool, error) {
	locked, err := g.lockout.IsLocked(ctx, identity, ip)
	if err != nil {
		return false, dErrors.Wrap(err, dErrors.CodeInternal, "failed to check lockout")
	}
	return locked, nil
}

// CheckLocked returns ErrLocked while identity or ip is locked out. A lockout
// store failure fails closed.
func (g *Guard) CheckLocked(ctx context.Context, identity, ip string) error {
	locked, err := g.IsLocked(ctx, identity, ip)
	if err != nil {
		return err
	}
	if locked {
		return ErrLocked
	}
	return nil
}

// TrackFailedLogin counts a failed login. It reports false once the identity is locked.
func (g *Guard) TrackFailedLogin(ctx context.Context, identity, ip string) (bool, error) {
	allowed, err := g.lockout.TrackFailedLogin(ctx, identity, ip)
	if err != nil {
		g.logger.ErrorContext(ctx, "failed to record failed login",
			"error", err,
			"identifier", privacy.HashIdentifier(identity),
			"ip_prefix", privacy.AnonymizeIP(ip),
		)
		return false, dErrors.Wrap(err, dErrors.CodeInternal, "failed to record failed login")
	}
	return allowed, nil
}

// ClearFailedAttempts resets the identity's failure count and lock after a
// successful login. Address locks are left to expire.
func (g *Guard) ClearFailedAttempts(ctx context.Context, identity string) error {
	if err := g.lockout.ClearFailedAttempts(ctx, identity); err != nil {
		g.logger.WarnContext(ctx, "failed to clear failed attempts",
			"error", err,
			"identifier", privacy.HashIdentifier(identity),
		)
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to clear failed attempts")
	}
	return nil
}
