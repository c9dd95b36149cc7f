// Package mfa verifies TOTP codes presented as elevation proofs.
package mfa

import (
	"context"
	"errors"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"

	"siaga/internal/platform/kvstore"
	id "siaga/pkg/domain"
	dErrors "siaga/pkg/domain-errors"
	"siaga/pkg/platform/sentinel"
)

const period = 30

// ErrInvalidProof is returned for a wrong, replayed or unusable code.
var ErrInvalidProof = dErrors.New(dErrors.CodeUnauthorized, "invalid MFA proof")

// Verifier validates six-digit SHA1 TOTP codes. When a store is configured,
// each accepted code is remembered until it can no longer validate, so it
// cannot be replayed.
type Verifier struct {
	issuer string
	skew   uint
	used   kvstore.Store
}

func NewVerifier(issuer string, skew uint, used kvstore.Store) *Verifier {
	return &Verifier{issuer: issuer, skew: skew, used: used}
}

func (v *Verifier) opts() totp.ValidateOpts {
	return totp.ValidateOpts{
		Period:    period,
		Skew:      v.skew,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	}
}

// Verify checks code against secret at now.
func (v *Verifier) Verify(ctx context.Context, userID id.UserID, secret, code string, now time.Time) error {
	if secret == "" || code == "" {
		return ErrInvalidProof
	}
	ok, err := totp.ValidateCustom(code, secret, now, v.opts())
	if err != nil || !ok {
		return ErrInvalidProof
	}
	if v.used == nil {
		return nil
	}
	key := "mfa:used:" + userID.String() + ":" + code
	window := time.Duration(2*v.skew+1) * period * time.Second
	n, _, err := v.used.IncrWithExpiry(ctx, key, window)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "mfa replay check failed")
	}
	if n != 1 {
		return ErrInvalidProof
	}
	return nil
}

// Enroll generates a new secret and its otpauth:// URL for account.
func (v *Verifier) Enroll(account string) (secret, url string, err error) {
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      v.issuer,
		AccountName: account,
		Period:      period,
		Digits:      otp.DigitsSix,
		Algorithm:   otp.AlgorithmSHA1,
	})
	if err != nil {
		return "", "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to generate MFA secret")
	}
	return key.Secret(), key.URL(), nil
}

// Code returns the current code for secret. Used by tooling and tests.
func (v *Verifier) Code(secret string, now time.Time) (string, error) {
	return totp.GenerateCodeCustom(secret, now, v.opts())
}

// SecretSource returns a user's enrolled TOTP secret, or "" when none is enrolled.
type SecretSource interface {
	MFASecret(ctx context.Context, userID id.UserID) (string, error)
}

// Checker verifies a proof for a user by resolving their secret first.
type Checker struct {
	verifier *Verifier
	secrets  SecretSource
}

func NewChecker(verifier *Verifier, secrets SecretSource) *Checker {
	return &Checker{verifier: verifier, secrets: secrets}
}

func (c *Checker) VerifyProof(ctx context.Context, userID id.UserID, proof string, now time.Time) error {
	secret, err := c.secrets.MFASecret(ctx, userID)
	if errors.Is(err, sentinel.ErrNotFound) {
		return ErrInvalidProof
	}
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load MFA secret")
	}
	return c.verifier.Verify(ctx, userID, secret, proof, now)
}
