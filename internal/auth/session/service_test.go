package session

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"siaga/internal/auth/models"
	"siaga/internal/auth/store/revocation"
	sessionstore "siaga/internal/auth/store/session"
	"siaga/internal/platform/kvstore"
	id "siaga/pkg/domain"
	dErrors "siaga/pkg/domain-errors"
	"siaga/pkg/platform/sentinel"
	"siaga/pkg/requestcontext"
	"siaga/pkg/testutil"
)

type stubProofs struct {
	valid string
	calls int
}

func (p *stubProofs) VerifyProof(_ context.Context, _ id.UserID, proof string, _ time.Time) error {
	p.calls++
	if proof != p.valid {
		return dErrors.New(dErrors.CodeUnauthorized, "invalid MFA proof")
	}
	return nil
}

// hangingStore blocks every call until the context is done.
type hangingStore struct {
	Store
}

func (hangingStore) Create(ctx context.Context, _ *models.Session) error {
	<-ctx.Done()
	return ctx.Err()
}

func (hangingStore) Execute(ctx context.Context, _ id.SessionID, _ func(*models.Session) error, _ func(*models.Session)) (*models.Session, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

type ServiceSuite struct {
	suite.Suite
	clock   *testutil.FixedClock
	store   *sessionstore.InMemoryStore
	proofs  *stubProofs
	logs    *bytes.Buffer
	service *Service
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.clock = testutil.NewFixedClock(time.Now().UTC())
	s.store = sessionstore.New()
	s.proofs = &stubProofs{valid: "123456"}
	s.logs = &bytes.Buffer{}
	tombstones := revocation.NewList(kvstore.NewLocal(kvstore.WithClock(s.clock.Now)))

	svc, err := New(s.store, tombstones, Config{
		Timeout:         24 * time.Hour,
		ElevationWindow: 15 * time.Minute,
		StoreTimeout:    500 * time.Millisecond,
	},
		WithProofVerifier(s.proofs),
		WithLogger(slog.New(slog.NewTextHandler(s.logs, &slog.HandlerOptions{Level: slog.LevelDebug}))),
	)
	s.Require().NoError(err)
	s.service = svc
}

func (s *ServiceSuite) ctx() context.Context {
	return requestcontext.WithTime(context.Background(), s.clock.Now())
}

func (s *ServiceSuite) create(userID id.UserID) *models.Session {
	sess := &models.Session{
		ID:          id.NewSessionID(),
		UserID:      userID,
		Role:        models.RoleResponder,
		Permissions: []string{"incident:read"},
	}
	s.Require().NoError(s.service.Create(s.ctx(), sess))
	return sess
}

func (s *ServiceSuite) TestCreateAndGet() {
	sess := s.create(id.NewUserID())
	s.Equal(s.clock.Now().Add(24*time.Hour), sess.ExpiresAt, "expiry defaults to the session timeout")

	got, err := s.service.Get(s.ctx(), sess.ID)
	s.Require().NoError(err)
	s.Equal(sess.UserID, got.UserID)
	s.Equal(models.SessionStatusActive, got.Status(s.clock.Now()))

	s.Run("rejects records without ids", func() {
		err := s.service.Create(s.ctx(), &models.Session{})
		s.True(dErrors.HasCode(err, dErrors.CodeInvariantViolation))
	})
}

func (s *ServiceSuite) TestGetHidesExpiredAndRevoked() {
	expiring := s.create(id.NewUserID())
	revoked := s.create(id.NewUserID())

	s.Require().NoError(s.service.Revoke(s.ctx(), revoked.ID))
	_, err := s.service.Get(s.ctx(), revoked.ID)
	s.ErrorIs(err, sentinel.ErrNotFound)

	s.clock.Advance(24 * time.Hour)
	_, err = s.service.Get(s.ctx(), expiring.ID)
	s.ErrorIs(err, sentinel.ErrNotFound, "expired is indistinguishable from revoked")

	_, err = s.service.Get(s.ctx(), id.NewSessionID())
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *ServiceSuite) TestRevokeIsIdempotent() {
	sess := s.create(id.NewUserID())

	s.Require().NoError(s.service.Revoke(s.ctx(), sess.ID))
	s.Require().NoError(s.service.Revoke(s.ctx(), sess.ID))
	s.Require().NoError(s.service.Revoke(s.ctx(), id.NewSessionID()), "unknown session")

	revoked, err := s.service.IsRevoked(s.ctx(), sess.ID)
	s.Require().NoError(err)
	s.True(revoked)

	_, err = s.store.FindByID(s.ctx(), sess.ID)
	s.ErrorIs(err, sentinel.ErrNotFound, "record is deleted after the tombstone is written")
}

func (s *ServiceSuite) TestTouchExtendsLifetime() {
	sess := s.create(id.NewUserID())

	s.clock.Advance(20 * time.Hour)
	s.service.Touch(s.ctx(), sess.ID)

	s.clock.Advance(10 * time.Hour)
	got, err := s.service.Get(s.ctx(), sess.ID)
	s.Require().NoError(err, "activity moved the expiry")
	s.Equal(s.clock.Now().Add(-10*time.Hour), got.LastActivityAt)
}

func (s *ServiceSuite) TestTouchFailsOpen() {
	svc, err := New(hangingStore{}, revocation.NewList(kvstore.NewLocal()), Config{
		Timeout:         time.Hour,
		ElevationWindow: time.Minute,
		StoreTimeout:    10 * time.Millisecond,
	}, WithLogger(slog.New(slog.NewTextHandler(s.logs, nil))))
	s.Require().NoError(err)

	start := time.Now()
	svc.Touch(context.Background(), id.NewSessionID())
	s.Less(time.Since(start), time.Second, "store call is bounded")
	s.Contains(s.logs.String(), "session touch failed")
}

func (s *ServiceSuite) TestCreateIsBounded() {
	svc, err := New(hangingStore{}, revocation.NewList(kvstore.NewLocal()), Config{
		Timeout:         time.Hour,
		ElevationWindow: time.Minute,
		StoreTimeout:    10 * time.Millisecond,
	})
	s.Require().NoError(err)

	err = svc.Create(context.Background(), &models.Session{ID: id.NewSessionID(), UserID: id.NewUserID()})
	s.True(dErrors.HasCode(err, dErrors.CodeInternal))
	s.ErrorIs(err, context.DeadlineExceeded)
}

func (s *ServiceSuite) TestElevation() {
	s.Run("without proof elevates but is not MFA verified", func() {
		sess := s.create(id.NewUserID())
		elevated, err := s.service.Elevate(s.ctx(), sess.ID, "")
		s.Require().NoError(err)
		s.True(elevated.IsElevated(s.clock.Now()))
		s.False(elevated.MFAVerified)
		s.Equal(s.clock.Now().Add(15*time.Minute), elevated.ElevatedUntil)
	})

	s.Run("valid proof marks MFA verified", func() {
		sess := s.create(id.NewUserID())
		elevated, err := s.service.Elevate(s.ctx(), sess.ID, "123456")
		s.Require().NoError(err)
		s.True(elevated.MFAVerified)
	})

	s.Run("invalid proof is unauthorized and changes nothing", func() {
		sess := s.create(id.NewUserID())
		_, err := s.service.Elevate(s.ctx(), sess.ID, "000000")
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))

		got, err := s.service.Get(s.ctx(), sess.ID)
		s.Require().NoError(err)
		s.False(got.Elevated)
	})

	s.Run("revoked session cannot elevate", func() {
		sess := s.create(id.NewUserID())
		s.Require().NoError(s.service.Revoke(s.ctx(), sess.ID))
		_, err := s.service.Elevate(s.ctx(), sess.ID, "")
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})
}

func (s *ServiceSuite) TestElevationLapsesBackToActive() {
	sess := s.create(id.NewUserID())
	_, err := s.service.Elevate(s.ctx(), sess.ID, "")
	s.Require().NoError(err)

	s.clock.Advance(10 * time.Minute)
	s.service.Touch(s.ctx(), sess.ID)
	got, err := s.service.Get(s.ctx(), sess.ID)
	s.Require().NoError(err)
	s.Equal(models.SessionStatusElevated, got.Status(s.clock.Now()), "touch keeps the elevation expiry")

	s.clock.Advance(6 * time.Minute)
	got, err = s.service.Get(s.ctx(), sess.ID)
	s.Require().NoError(err, "session outlives its elevation")
	s.False(got.Elevated)
	s.Equal(models.SessionStatusActive, got.Status(s.clock.Now()))
}

func (s *ServiceSuite) TestRevokeAllForUser() {
	userID := id.NewUserID()
	for range 5 {
		s.create(userID)
	}
	bystander := s.create(id.NewUserID())

	result, err := s.service.RevokeAllForUser(s.ctx(), userID)
	s.Require().NoError(err)
	s.Equal(5, result.Revoked)
	s.Empty(result.Failed)

	remaining, err := s.service.ListForUser(s.ctx(), userID)
	s.Require().NoError(err)
	s.Empty(remaining)

	_, err = s.service.Get(s.ctx(), bystander.ID)
	s.NoError(err)

	_, err = s.service.RevokeAllForUser(s.ctx(), id.UserID{})
	s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
}

func (s *ServiceSuite) TestRotate() {
	old := s.create(id.NewUserID())
	_, err := s.service.Elevate(s.ctx(), old.ID, "")
	s.Require().NoError(err)
	current, err := s.service.Get(s.ctx(), old.ID)
	s.Require().NoError(err)

	next, err := s.service.Rotate(s.ctx(), current)
	s.Require().NoError(err)
	s.NotEqual(old.ID, next.ID)
	s.Equal(old.UserID, next.UserID)
	s.Equal(old.Permissions, next.Permissions)
	s.Equal(1, next.Generation)
	s.False(next.Elevated, "elevation does not survive rotation")

	_, err = s.service.Get(s.ctx(), old.ID)
	s.ErrorIs(err, sentinel.ErrNotFound, "old id is tombstoned")
	_, err = s.service.Get(s.ctx(), next.ID)
	s.NoError(err)
}

func TestNewRequiresDependencies(t *testing.T) {
	_, err := New(nil, nil, Config{Timeout: time.Hour, ElevationWindow: time.Minute, StoreTimeout: time.Second})
	if !dErrors.HasCode(err, dErrors.CodeConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
	_, err = New(sessionstore.New(), revocation.NewList(kvstore.NewLocal()), Config{})
	if !errors.Is(err, dErrors.New(dErrors.CodeConfiguration, "session timeouts must be positive")) {
		t.Fatalf("expected timeout error, got %v", err)
	}
}
