package mfa

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"siaga/internal/platform/kvstore"
	id "siaga/pkg/domain"
	dErrors "siaga/pkg/domain-errors"
)

func TestVerifier(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 6, 1, 8, 0, 0, 0, time.UTC)
	v := NewVerifier("Siaga", 1, kvstore.NewLocal(kvstore.WithClock(func() time.Time { return now })))
	user := id.NewUserID()

	secret, url, err := v.Enroll("responder@siaga.test")
	require.NoError(t, err)
	assert.Contains(t, url, "otpauth://totp/Siaga")

	code, err := v.Code(secret, now)
	require.NoError(t, err)

	t.Run("current code is accepted once", func(t *testing.T) {
		require.NoError(t, v.Verify(ctx, user, secret, code, now))
		err := v.Verify(ctx, user, secret, code, now)
		assert.ErrorIs(t, err, ErrInvalidProof, "replayed code")
	})

	t.Run("previous step is accepted within skew", func(t *testing.T) {
		prev, err := v.Code(secret, now.Add(-30*time.Second))
		require.NoError(t, err)
		if prev != code {
			assert.NoError(t, v.Verify(ctx, user, secret, prev, now))
		}
	})

	t.Run("stale code is rejected", func(t *testing.T) {
		old, err := v.Code(secret, now.Add(-5*time.Minute))
		require.NoError(t, err)
		err = v.Verify(ctx, user, secret, old, now)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})

	t.Run("concurrent use of one code admits a single caller", func(t *testing.T) {
		other := id.NewUserID()
		var accepted atomic.Int32
		var wg sync.WaitGroup
		for range 16 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if v.Verify(ctx, other, secret, code, now) == nil {
					accepted.Add(1)
				}
			}()
		}
		wg.Wait()
		assert.Equal(t, int32(1), accepted.Load())
	})

	t.Run("missing secret or code", func(t *testing.T) {
		assert.ErrorIs(t, v.Verify(ctx, user, "", code, now), ErrInvalidProof)
		assert.ErrorIs(t, v.Verify(ctx, user, secret, "", now), ErrInvalidProof)
	})
}

type staticSecrets map[id.UserID]string

func (s staticSecrets) MFASecret(_ context.Context, userID id.UserID) (string, error) {
	return s[userID], nil
}

func TestChecker(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 6, 1, 8, 0, 0, 0, time.UTC)
	v := NewVerifier("Siaga", 1, nil)
	enrolled, unenrolled := id.NewUserID(), id.NewUserID()

	secret, _, err := v.Enroll("admin@siaga.test")
	require.NoError(t, err)
	checker := NewChecker(v, staticSecrets{enrolled: secret})

	code, err := v.Code(secret, now)
	require.NoError(t, err)

	assert.NoError(t, checker.VerifyProof(ctx, enrolled, code, now))
	assert.ErrorIs(t, checker.VerifyProof(ctx, unenrolled, code, now), ErrInvalidProof)
}
