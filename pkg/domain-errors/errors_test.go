package domainerrors

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorMatching(t *testing.T) {
	t.Run("same code and message match", func(t *testing.T) {
		err := New(CodeUnauthorized, "invalid or expired token")
		require.ErrorIs(t, err, New(CodeUnauthorized, "invalid or expired token"))
	})

	t.Run("different message does not match", func(t *testing.T) {
		err := New(CodeUnauthorized, "invalid or expired token")
		assert.NotErrorIs(t, err, New(CodeUnauthorized, "something else"))
	})

	t.Run("wrapped cause stays reachable", func(t *testing.T) {
		cause := errors.New("dial tcp: timeout")
		err := Wrap(cause, CodeInternal, "session store unavailable")
		assert.ErrorIs(t, err, cause)
		assert.True(t, HasCode(err, CodeInternal))
	})

	t.Run("code survives fmt wrapping", func(t *testing.T) {
		err := fmt.Errorf("login: %w", New(CodeForbidden, "forbidden"))
		assert.True(t, HasCode(err, CodeForbidden))
		assert.Equal(t, "forbidden", MessageOf(err))
	})

	t.Run("plain errors carry no code", func(t *testing.T) {
		assert.Equal(t, Code(""), CodeOf(errors.New("x")))
	})
}

func TestRateLimitedCarriesRetryAfter(t *testing.T) {
	err := RateLimited("too many requests", 42*time.Second)

	retry, ok := RetryAfterOf(err)
	require.True(t, ok)
	assert.Equal(t, 42*time.Second, retry)

	_, ok = RetryAfterOf(New(CodeUnauthorized, "nope"))
	assert.False(t, ok)
}

func TestDetails(t *testing.T) {
	err := WithDetails(CodeWeakPassword, "password does not meet policy", []string{"too_short", "missing_digit"})
	assert.Equal(t, []string{"too_short", "missing_digit"}, DetailsOf(err))
	assert.True(t, HasCode(err, CodeWeakPassword))
}
