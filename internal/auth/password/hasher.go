// Package password hashes and verifies passwords with argon2id and enforces the
// strength policy. Hashing runs on a bounded pool.
package password

import (
	"context"
	"errors"
	"sync"
	"time"

	"siaga/internal/auth/metrics"
	dErrors "siaga/pkg/domain-errors"
)

// Hasher applies the policy and runs argon2id on its pool.
type Hasher struct {
	params  Params
	policy  Policy
	pool    *Pool
	metrics *metrics.Metrics

	dummyOnce sync.Once
	dummy     string
}

type Option func(*Hasher)

func WithMetrics(m *metrics.Metrics) Option {
	return func(h *Hasher) {
		h.metrics = m
	}
}

func WithPool(p *Pool) Option {
	return func(h *Hasher) {
		if p != nil {
			h.pool = p
		}
	}
}

func NewHasher(params Params, policy Policy, opts ...Option) *Hasher {
	h := &Hasher{params: params, policy: policy}
	for _, opt := range opts {
		opt(h)
	}
	if h.pool == nil {
		h.pool = NewPool(1, h.metrics)
	}
	return h
}

// Hash validates plain against the policy and returns an argon2id PHC string.
// Policy failures are CodeWeakPassword with every reason attached.
func (h *Hasher) Hash(ctx context.Context, plain string) (string, error) {
	if reasons := h.policy.Validate(plain); len(reasons) > 0 {
		return "", dErrors.WithDetails(dErrors.CodeWeakPassword, "password does not meet policy", reasons)
	}
	var (
		phc     string
		hashErr error
	)
	start := time.Now()
	if err := h.pool.Do(ctx, func() { phc, hashErr = hashPHC(h.params, plain) }); err != nil {
		return "", err
	}
	h.metrics.ObserveHash("hash", start)
	if hashErr != nil {
		return "", dErrors.Wrap(hashErr, dErrors.CodeInternal, "failed to hash password")
	}
	return phc, nil
}

// Verify is false on a wrong password. It errors only for a malformed stored hash
// or when ctx ends while waiting for the pool.
func (h *Hasher) Verify(ctx context.Context, plain, phc string) (bool, error) {
	var (
		ok        bool
		verifyErr error
	)
	start := time.Now()
	if err := h.pool.Do(ctx, func() { ok, verifyErr = verifyPHC(plain, phc) }); err != nil {
		return false, err
	}
	h.metrics.ObserveHash("verify", start)
	if errors.Is(verifyErr, ErrMalformedHash) {
		return false, dErrors.Wrap(verifyErr, dErrors.CodeInternal, "stored password hash is invalid")
	}
	return ok, verifyErr
}

// VerifyDummy burns the same work as a real Verify. Login calls it for unknown
// identities so response time does not reveal whether an account exists.
func (h *Hasher) VerifyDummy(ctx context.Context, plain string) {
	h.dummyOnce.Do(func() {
		h.dummy, _ = hashPHC(h.params, "siaga-dummy-password")
	})
	if h.dummy == "" {
		return
	}
	_, _ = h.Verify(ctx, plain, h.dummy)
}

// NeedsRehash reports whether phc was produced with parameters other than the
// configured ones. Malformed hashes always need a rehash.
func (h *Hasher) NeedsRehash(phc string) bool {
	p, _, _, err := decodePHC(phc)
	if err != nil {
		return true
	}
	return p != h.params
}

// Policy exposes the configured strength rules for pre-flight validation.
func (h *Hasher) Policy() Policy { return h.policy }
