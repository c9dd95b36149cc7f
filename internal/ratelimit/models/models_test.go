package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestKeyString(t *testing.T) {
	assert.Equal(t, "ip:10.0.0.1:auth_login", IPKey("10.0.0.1", "auth_login").String())
	assert.Equal(t, "user:user_admin:read", UserKey("user:admin", "read").String())
	assert.Equal(t, "ip:__1:auth_login", IPKey("::1", "auth_login").String())
}

func TestStrategyValidate(t *testing.T) {
	assert.NoError(t, FixedWindow(5, time.Minute).Validate())
	assert.NoError(t, SlidingWindow(5, time.Minute).Validate())
	assert.NoError(t, TokenBucket(10, 1, time.Second).Validate())
	assert.Error(t, FixedWindow(0, time.Minute).Validate())
	assert.Error(t, TokenBucket(10, 0, time.Second).Validate())
	assert.Error(t, Strategy{Kind: "leaky"}.Validate())
	assert.Equal(t, 10, TokenBucket(10, 1, time.Second).Limit())
}

func TestMoreRestrictive(t *testing.T) {
	allowedFew := &RateLimitResult{Allowed: true, Remaining: 1}
	allowedMany := &RateLimitResult{Allowed: true, Remaining: 9}
	deniedShort := &RateLimitResult{Allowed: false, RetryAfter: time.Second}
	deniedLong := &RateLimitResult{Allowed: false, RetryAfter: time.Minute}

	assert.Same(t, allowedFew, MoreRestrictive(allowedMany, allowedFew))
	assert.Same(t, deniedShort, MoreRestrictive(allowedFew, deniedShort))
	assert.Same(t, deniedLong, MoreRestrictive(deniedShort, deniedLong))
	assert.Same(t, allowedMany, MoreRestrictive(nil, allowedMany))
}

func TestRetryAfterSeconds(t *testing.T) {
	r := &RateLimitResult{RetryAfter: 1500 * time.Millisecond}
	assert.Equal(t, 2, r.RetryAfterSeconds())
	assert.Zero(t, (&RateLimitResult{}).RetryAfterSeconds())
}
