package limiter

import (
	"sync"
	"time"

	"github.com/patrickmn/go-cache"

	"siaga/internal/ratelimit/models"
)

const slidingCleanupInterval = time.Minute

// slidingLog is an exact sliding window over request timestamps. Idle keys
// expire one window after their last admitted request.
type slidingLog struct {
	mu      sync.Mutex
	windows *cache.Cache
}

type slidingWindow struct {
	timestamps []time.Time
}

func newSlidingLog() *slidingLog {
	return &slidingLog{windows: cache.New(cache.NoExpiration, slidingCleanupInterval)}
}

func (s *slidingLog) allow(key string, limit int, window time.Duration, now time.Time) *models.RateLimitResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	sw := &slidingWindow{}
	if v, ok := s.windows.Get(key); ok {
		sw = v.(*slidingWindow)
	}
	sw.cleanup(now, window)

	if len(sw.timestamps) >= limit {
		resetAt := sw.timestamps[0].Add(window)
		return &models.RateLimitResult{
			Allowed:    false,
			Limit:      limit,
			Remaining:  0,
			ResetAt:    resetAt,
			RetryAfter: resetAt.Sub(now),
		}
	}

	sw.timestamps = append(sw.timestamps, now)
	s.windows.Set(key, sw, window)
	return &models.RateLimitResult{
		Allowed:   true,
		Limit:     limit,
		Remaining: limit - len(sw.timestamps),
		ResetAt:   sw.timestamps[0].Add(window),
	}
}

// cleanup drops timestamps that have left the window ending at now.
func (sw *slidingWindow) cleanup(now time.Time, window time.Duration) {
	cutoff := now.Add(-window)
	i := 0
	for ; i < len(sw.timestamps); i++ {
		if sw.timestamps[i].After(cutoff) {
			break
		}
	}
	sw.timestamps = sw.timestamps[i:]
}
