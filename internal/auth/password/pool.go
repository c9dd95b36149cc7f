package password

import (
	"context"

	"golang.org/x/sync/semaphore"

	"siaga/internal/auth/metrics"
)

// Pool bounds how many argon2id computations run at once, so slow hashing
// cannot starve request handling.
type Pool struct {
	sem     *semaphore.Weighted
	metrics *metrics.Metrics
}

func NewPool(size int, m *metrics.Metrics) *Pool {
	if size < 1 {
		size = 1
	}
	return &Pool{sem: semaphore.NewWeighted(int64(size)), metrics: m}
}

// Do runs fn once a slot is free. It returns ctx.Err() if the caller gives up first.
func (p *Pool) Do(ctx context.Context, fn func()) error {
	p.metrics.AddHashWaiting(1)
	err := p.sem.Acquire(ctx, 1)
	p.metrics.AddHashWaiting(-1)
	if err != nil {
		return err
	}
	defer p.sem.Release(1)
	fn()
	return nil
}
