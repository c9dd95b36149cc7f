package kvstore

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"

	"siaga/pkg/platform/sentinel"
)

const localCleanupInterval = time.Minute

// Local implements Store in process memory on go-cache. Entries carry their own
// expiry so an injected clock is honoured alongside go-cache's native expiration.
type Local struct {
	mu      sync.Mutex
	items   *cache.Cache
	buckets *cache.Cache
	now     func() time.Time
}

type entry struct {
	value     string
	expiresAt time.Time
}

type LocalOption func(*Local)

// WithClock sets the clock used for expiry decisions.
func WithClock(now func() time.Time) LocalOption {
	return func(l *Local) {
		if now != nil {
			l.now = now
		}
	}
}

func NewLocal(opts ...LocalOption) *Local {
	l := &Local{
		items:   cache.New(cache.NoExpiration, localCleanupInterval),
		buckets: cache.New(cache.NoExpiration, localCleanupInterval),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// load returns the live entry at key. Caller holds mu.
func (l *Local) load(key string) (entry, bool) {
	v, ok := l.items.Get(key)
	if !ok {
		return entry{}, false
	}
	e := v.(entry)
	if !e.expiresAt.IsZero() && !l.now().Before(e.expiresAt) {
		l.items.Delete(key)
		return entry{}, false
	}
	return e, true
}

// store writes e with a go-cache TTL matching its expiry. Caller holds mu.
func (l *Local) store(key string, e entry) {
	ttl := cache.NoExpiration
	if !e.expiresAt.IsZero() {
		ttl = e.expiresAt.Sub(l.now())
	}
	l.items.Set(key, e, ttl)
}

func (l *Local) Get(ctx context.Context, key string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	e, ok := l.load(key)
	if !ok {
		return "", sentinel.ErrNotFound
	}
	return e.value, nil
}

func (l *Local) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	e := entry{value: value}
	if ttl > 0 {
		e.expiresAt = l.now().Add(ttl)
	}
	l.store(key, e)
	return nil
}

func (l *Local) Delete(ctx context.Context, keys ...string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, k := range keys {
		l.items.Delete(k)
		l.buckets.Delete(k)
	}
	return nil
}

func (l *Local) Exists(ctx context.Context, key string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.load(key)
	return ok, nil
}

func (l *Local) IncrWithExpiry(ctx context.Context, key string, ttl time.Duration) (int64, time.Duration, error) {
	if err := ctx.Err(); err != nil {
		return 0, 0, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	e, ok := l.load(key)
	if !ok {
		e = entry{value: "0", expiresAt: now.Add(ttl)}
	}
	n, err := strconv.ParseInt(e.value, 10, 64)
	if err != nil {
		return 0, 0, err
	}
	n++
	e.value = strconv.FormatInt(n, 10)
	l.store(key, e)
	return n, e.expiresAt.Sub(now), nil
}

func (l *Local) TakeToken(ctx context.Context, key string, b Bucket, now time.Time) (*BucketResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if b.Capacity <= 0 || b.Refill <= 0 || b.Interval <= 0 {
		return nil, sentinel.ErrInvalidState
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	var limiter *rate.Limiter
	if v, ok := l.buckets.Get(key); ok {
		limiter = v.(*rate.Limiter)
	} else {
		limiter = rate.NewLimiter(rate.Every(b.Interval/time.Duration(b.Refill)), b.Capacity)
	}
	l.buckets.Set(key, limiter, b.ttl())

	r := limiter.ReserveN(now, 1)
	if !r.OK() {
		return &BucketResult{Allowed: false, RetryAfter: b.Interval}, nil
	}
	if delay := r.DelayFrom(now); delay > 0 {
		r.CancelAt(now)
		return &BucketResult{Allowed: false, Remaining: 0, RetryAfter: delay}, nil
	}
	remaining := int(limiter.TokensAt(now))
	if remaining < 0 {
		remaining = 0
	}
	return &BucketResult{Allowed: true, Remaining: remaining}, nil
}
