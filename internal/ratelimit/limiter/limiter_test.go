package limiter

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"siaga/internal/platform/kvstore"
	"siaga/internal/ratelimit/models"
	"siaga/pkg/platform/sentinel"
	"siaga/pkg/requestcontext"
)

type LimiterSuite struct {
	suite.Suite
	limiter *Limiter
	now     time.Time
}

func TestLimiterSuite(t *testing.T) {
	suite.Run(t, new(LimiterSuite))
}

func (s *LimiterSuite) SetupTest() {
	l, err := New(kvstore.NewLocal())
	s.Require().NoError(err)
	s.limiter = l
	s.now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
}

func (s *LimiterSuite) at(t time.Time) context.Context {
	return requestcontext.WithTime(context.Background(), t)
}

func (s *LimiterSuite) TestFixedWindow() {
	strategy := models.FixedWindow(3, time.Minute)
	key := models.IPKey("10.0.0.1", "auth_login")

	s.Run("exactly the limit is admitted", func() {
		for i := range 3 {
			res, err := s.limiter.Check(s.at(s.now), key, strategy)
			s.Require().NoError(err)
			s.True(res.Allowed)
			s.Equal(2-i, res.Remaining)
			s.Equal(3, res.Limit)
		}
		res, err := s.limiter.Check(s.at(s.now.Add(10*time.Second)), key, strategy)
		s.Require().NoError(err)
		s.False(res.Allowed)
		s.Zero(res.Remaining)
		s.Equal(50*time.Second, res.RetryAfter)
		s.Equal(s.now.Add(time.Minute), res.ResetAt)
		s.Equal(s.now.Location(), res.ResetAt.Location(), "reset time keeps the caller's zone")
	})

	s.Run("next window starts over", func() {
		for range 3 {
			res, err := s.limiter.Check(s.at(s.now.Add(time.Minute)), key, strategy)
			s.Require().NoError(err)
			s.True(res.Allowed)
		}
	})

	s.Run("keys are independent", func() {
		res, err := s.limiter.Check(s.at(s.now), models.IPKey("10.0.0.2", "auth_login"), strategy)
		s.Require().NoError(err)
		s.True(res.Allowed)
	})
}

func (s *LimiterSuite) TestSlidingWindowApproximatedOnSharedStore() {
	strategy := models.SlidingWindow(2, time.Minute)
	key := models.UserKey("u1", "read")

	_, err := s.limiter.Check(s.at(s.now.Add(59*time.Second)), key, strategy)
	s.Require().NoError(err)
	_, err = s.limiter.Check(s.at(s.now.Add(59*time.Second)), key, strategy)
	s.Require().NoError(err)

	res, err := s.limiter.Check(s.at(s.now.Add(61*time.Second)), key, strategy)
	s.Require().NoError(err)
	s.True(res.Allowed, "fixed window approximation admits across the boundary")
}

func (s *LimiterSuite) TestExactSlidingWindow() {
	l, err := New(kvstore.NewLocal(), WithExactSlidingWindow())
	s.Require().NoError(err)
	strategy := models.SlidingWindow(2, time.Minute)
	key := models.UserKey("u1", "read")

	for range 2 {
		res, err := l.Check(s.at(s.now.Add(59*time.Second)), key, strategy)
		s.Require().NoError(err)
		s.True(res.Allowed)
	}

	res, err := l.Check(s.at(s.now.Add(61*time.Second)), key, strategy)
	s.Require().NoError(err)
	s.False(res.Allowed)
	s.Equal(58*time.Second, res.RetryAfter)

	res, err = l.Check(s.at(s.now.Add(120*time.Second)), key, strategy)
	s.Require().NoError(err)
	s.True(res.Allowed)
}

func (s *LimiterSuite) TestTokenBucket() {
	strategy := models.TokenBucket(2, 1, time.Second)
	key := models.IPKey("10.0.0.9", "burst")

	for range 2 {
		res, err := s.limiter.Check(s.at(s.now), key, strategy)
		s.Require().NoError(err)
		s.True(res.Allowed)
	}
	res, err := s.limiter.Check(s.at(s.now), key, strategy)
	s.Require().NoError(err)
	s.False(res.Allowed)
	s.Positive(res.RetryAfter)

	res, err = s.limiter.Check(s.at(s.now.Add(time.Second)), key, strategy)
	s.Require().NoError(err)
	s.True(res.Allowed)
}

func (s *LimiterSuite) TestInvalidStrategy() {
	_, err := s.limiter.Check(s.at(s.now), models.IPKey("x", "y"), models.FixedWindow(0, time.Minute))
	s.Error(err)
}

func (s *LimiterSuite) TestStoreFailureIsReported() {
	l, err := New(failingStore{Store: kvstore.NewLocal()})
	s.Require().NoError(err)

	_, err = l.Check(s.at(s.now), models.IPKey("x", "y"), models.FixedWindow(1, time.Minute))
	s.ErrorIs(err, sentinel.ErrUnavailable)
}

type failingStore struct {
	kvstore.Store
}

func (failingStore) IncrWithExpiry(context.Context, string, time.Duration) (int64, time.Duration, error) {
	return 0, 0, errors.Join(sentinel.ErrUnavailable, errors.New("connection refused"))
}
