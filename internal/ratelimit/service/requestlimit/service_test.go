package requestlimit

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"siaga/internal/platform/config"
	"siaga/internal/platform/kvstore"
	"siaga/internal/ratelimit/limiter"
	"siaga/internal/ratelimit/models"
	dErrors "siaga/pkg/domain-errors"
	"siaga/pkg/platform/audit"
	"siaga/pkg/requestcontext"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []audit.Event
}

func (p *recordingPublisher) Emit(_ context.Context, e audit.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
}

type RequestLimitSuite struct {
	suite.Suite
	svc       *Service
	publisher *recordingPublisher
	ctx       context.Context
}

func TestRequestLimitSuite(t *testing.T) {
	suite.Run(t, new(RequestLimitSuite))
}

func testPolicyConfig() config.RateLimitConfig {
	return config.RateLimitConfig{
		Default: config.StrategySpec{Strategy: "fixed_window", Requests: 10, Window: time.Minute},
		Roles: map[string]config.StrategySpec{
			"Admin": {Strategy: "fixed_window", Requests: 100, Window: time.Minute},
		},
		Endpoints: map[string]config.StrategySpec{
			LoginAction: {Strategy: "fixed_window", Requests: 2, Window: time.Minute},
			"reports":   {Strategy: "token_bucket", Capacity: 3, RefillRate: 1, RefillInterval: time.Second},
		},
	}
}

func (s *RequestLimitSuite) SetupTest() {
	policy, err := NewPolicy(testPolicyConfig())
	s.Require().NoError(err)
	l, err := limiter.New(kvstore.NewLocal())
	s.Require().NoError(err)
	s.publisher = &recordingPublisher{}
	s.svc, err = New(l, policy, WithAuditPublisher(s.publisher))
	s.Require().NoError(err)
	s.ctx = requestcontext.WithTime(context.Background(), time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
}

func (s *RequestLimitSuite) TestResolvePrecedence() {
	s.Run("endpoint override beats role", func() {
		st := s.svc.Resolve(LoginAction, "admin")
		s.Equal(2, st.Requests)
	})
	s.Run("role override beats default", func() {
		st := s.svc.Resolve("profile", "admin")
		s.Equal(100, st.Requests)
	})
	s.Run("default applies otherwise", func() {
		st := s.svc.Resolve("profile", "citizen")
		s.Equal(10, st.Requests)
		s.Equal(models.KindFixedWindow, st.Kind)
	})
	s.Run("token bucket endpoint", func() {
		st := s.svc.Resolve("reports", "")
		s.Equal(models.KindTokenBucket, st.Kind)
		s.Equal(3, st.Capacity)
	})
}

func (s *RequestLimitSuite) TestCheckLogin() {
	for range 2 {
		res, err := s.svc.CheckLogin(s.ctx, "alice@example.com", "10.0.0.1")
		s.Require().NoError(err)
		s.True(res.Allowed)
	}

	res, err := s.svc.CheckLogin(s.ctx, "alice@example.com", "10.0.0.2")
	s.Require().NoError(err)
	s.False(res.Allowed, "identity quota follows the account across addresses")
	s.Positive(res.RetryAfter)

	res, err = s.svc.CheckLogin(s.ctx, "bob@example.com", "10.0.0.1")
	s.Require().NoError(err)
	s.False(res.Allowed, "address quota spans accounts")

	s.NotEmpty(s.publisher.events)
	s.Equal(string(audit.EventRateLimitExceeded), s.publisher.events[0].Action)
}

func (s *RequestLimitSuite) TestCheckLoginIdentityIgnoresCase() {
	for range 2 {
		res, err := s.svc.CheckLogin(s.ctx, "Carol@Example.com", "10.0.1.1")
		s.Require().NoError(err)
		s.True(res.Allowed)
	}

	res, err := s.svc.CheckLogin(s.ctx, " carol@example.com", "10.0.1.2")
	s.Require().NoError(err)
	s.False(res.Allowed, "case and padding do not open a new identity quota")
}

func (s *RequestLimitSuite) TestCheckBothReturnsMoreRestrictive() {
	for range 10 {
		_, err := s.svc.CheckIP(s.ctx, "10.0.0.5", "profile")
		s.Require().NoError(err)
	}
	res, err := s.svc.CheckBoth(s.ctx, "10.0.0.5", "user-1", "citizen", "profile")
	s.Require().NoError(err)
	s.False(res.Allowed)
}

func (s *RequestLimitSuite) TestNewPolicyRejectsInvalidStrategy() {
	cfg := testPolicyConfig()
	cfg.Endpoints["broken"] = config.StrategySpec{Strategy: "leaky", Requests: 1, Window: time.Second}
	_, err := NewPolicy(cfg)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeConfiguration))
}
