package models

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// StrategyKind names an admission algorithm.
type StrategyKind string

const (
	KindFixedWindow   StrategyKind = "fixed_window"
	KindSlidingWindow StrategyKind = "sliding_window"
	KindTokenBucket   StrategyKind = "token_bucket"
)

func (k StrategyKind) IsValid() bool {
	switch k {
	case KindFixedWindow, KindSlidingWindow, KindTokenBucket:
		return true
	}
	return false
}

// Strategy is one admission policy. Window strategies use Requests and Window;
// token buckets use Capacity, RefillRate and RefillInterval.
type Strategy struct {
	Kind           StrategyKind
	Requests       int
	Window         time.Duration
	Capacity       int
	RefillRate     int
	RefillInterval time.Duration
}

func FixedWindow(requests int, window time.Duration) Strategy {
	return Strategy{Kind: KindFixedWindow, Requests: requests, Window: window}
}

// SlidingWindow smooths the boundary burst of a fixed window. Shared stores
// approximate it with a fixed window; see limiter.Limiter.
func SlidingWindow(requests int, window time.Duration) Strategy {
	return Strategy{Kind: KindSlidingWindow, Requests: requests, Window: window}
}

func TokenBucket(capacity, refillRate int, refillInterval time.Duration) Strategy {
	return Strategy{Kind: KindTokenBucket, Capacity: capacity, RefillRate: refillRate, RefillInterval: refillInterval}
}

// Limit is the burst size the strategy admits.
func (s Strategy) Limit() int {
	if s.Kind == KindTokenBucket {
		return s.Capacity
	}
	return s.Requests
}

func (s Strategy) Validate() error {
	switch s.Kind {
	case KindFixedWindow, KindSlidingWindow:
		if s.Requests < 1 || s.Window <= 0 {
			return fmt.Errorf("%s strategy needs positive requests and window", s.Kind)
		}
	case KindTokenBucket:
		if s.Capacity < 1 || s.RefillRate < 1 || s.RefillInterval <= 0 {
			return errors.New("token_bucket strategy needs positive capacity, refill rate and refill interval")
		}
	default:
		return fmt.Errorf("unknown rate limit strategy %q", s.Kind)
	}
	return nil
}

// RateLimitResult is the outcome of one admission check.
type RateLimitResult struct {
	Allowed    bool
	Limit      int
	Remaining  int
	ResetAt    time.Time
	RetryAfter time.Duration
}

// RetryAfterSeconds rounds RetryAfter up to whole seconds for the Retry-After header.
func (r *RateLimitResult) RetryAfterSeconds() int {
	if r == nil || r.RetryAfter <= 0 {
		return 0
	}
	return int(math.Ceil(r.RetryAfter.Seconds()))
}

// MoreRestrictive picks the result a caller should honour when two checks apply.
// A denial beats an admission; between admissions the lower remaining count wins.
func MoreRestrictive(a, b *RateLimitResult) *RateLimitResult {
	switch {
	case a == nil:
		return b
	case b == nil:
		return a
	case !a.Allowed && !b.Allowed:
		if a.RetryAfter >= b.RetryAfter {
			return a
		}
		return b
	case !a.Allowed:
		return a
	case !b.Allowed:
		return b
	case a.Remaining <= b.Remaining:
		return a
	default:
		return b
	}
}
