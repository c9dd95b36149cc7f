//go:build integration

package session_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"siaga/internal/auth/models"
	"siaga/internal/auth/store/session"
	id "siaga/pkg/domain"
	"siaga/pkg/platform/sentinel"
	"siaga/pkg/testutil/containers"
)

type RedisStoreSuite struct {
	suite.Suite
	redis *containers.RedisContainer
	store *session.RedisStore
}

func TestRedisStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(RedisStoreSuite))
}

func (s *RedisStoreSuite) SetupSuite() {
	mgr := containers.GetManager()
	s.redis = mgr.GetRedis(s.T())
	s.store = session.NewRedis(s.redis.Client)
}

func (s *RedisStoreSuite) SetupTest() {
	s.Require().NoError(s.redis.FlushAll(context.Background()))
}

func makeSession(userID id.UserID) *models.Session {
	now := time.Now()
	return &models.Session{
		ID:                id.NewSessionID(),
		UserID:            userID,
		Role:              models.RoleVolunteer,
		Permissions:       []string{"shelter:read", "incident:read"},
		CreatedAt:         now,
		ExpiresAt:         now.Add(24 * time.Hour),
		LastActivityAt:    now,
		IP:                "203.0.113.9",
		UserAgent:         "Mozilla/5.0",
		DeviceFingerprint: "fp-hash-456",
		DeviceLabel:       "Firefox on Linux",
	}
}

// TestWATCHConflictDetection verifies that concurrent modifications of one
// record surface as sentinel.ErrConflict and never lose a committed write.
func (s *RedisStoreSuite) TestWATCHConflictDetection() {
	ctx := context.Background()
	sess := makeSession(id.NewUserID())
	s.Require().NoError(s.store.Create(ctx, sess))

	const goroutines = 20
	var wg sync.WaitGroup
	var successCount atomic.Int32
	var conflictCount atomic.Int32
	var otherErrors atomic.Int32

	for range goroutines {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.store.Execute(ctx, sess.ID,
				func(*models.Session) error { return nil },
				func(sess *models.Session) { sess.Generation++ },
			)
			switch {
			case err == nil:
				successCount.Add(1)
			case errors.Is(err, sentinel.ErrConflict):
				conflictCount.Add(1)
			default:
				otherErrors.Add(1)
			}
		}()
	}
	wg.Wait()

	s.Equal(int32(0), otherErrors.Load(), "no unexpected errors")
	s.Equal(int32(goroutines), successCount.Load()+conflictCount.Load())

	found, err := s.store.FindByID(ctx, sess.ID)
	s.Require().NoError(err)
	s.Equal(int(successCount.Load()), found.Generation, "every committed increment is kept")
}

// TestTTLPreservation verifies that updates keep the key's TTL unless the
// mutation moves ExpiresAt.
func (s *RedisStoreSuite) TestTTLPreservation() {
	ctx := context.Background()
	sess := makeSession(id.NewUserID())
	sess.ExpiresAt = time.Now().Add(time.Hour)
	s.Require().NoError(s.store.Create(ctx, sess))

	key := "session:" + sess.ID.String()
	initialTTL, err := s.redis.Client.TTL(ctx, key).Result()
	s.Require().NoError(err)
	s.Greater(initialTTL, time.Duration(0))

	_, err = s.store.Execute(ctx, sess.ID,
		func(*models.Session) error { return nil },
		func(sess *models.Session) { sess.DeviceLabel = "Chrome on Android" },
	)
	s.Require().NoError(err)

	keptTTL, err := s.redis.Client.TTL(ctx, key).Result()
	s.Require().NoError(err)
	s.InDelta(initialTTL.Seconds(), keptTTL.Seconds(), 5.0, "TTL should be preserved")

	_, err = s.store.Execute(ctx, sess.ID,
		func(*models.Session) error { return nil },
		func(sess *models.Session) { sess.ExpiresAt = time.Now().Add(3 * time.Hour) },
	)
	s.Require().NoError(err)

	extendedTTL, err := s.redis.Client.TTL(ctx, key).Result()
	s.Require().NoError(err)
	s.InDelta((3 * time.Hour).Seconds(), extendedTTL.Seconds(), 5.0, "TTL follows a moved expiry")

	indexTTL, err := s.redis.Client.TTL(ctx, "user_sessions:"+sess.UserID.String()).Result()
	s.Require().NoError(err)
	s.InDelta((3 * time.Hour).Seconds(), indexTTL.Seconds(), 5.0, "the user index outlives its longest session")
}

// TestPipelineAtomicity verifies that concurrent creates all land in the index.
func (s *RedisStoreSuite) TestPipelineAtomicity() {
	ctx := context.Background()
	userID := id.NewUserID()

	const goroutines = 30
	sessions := make([]*models.Session, goroutines)
	for i := range goroutines {
		sessions[i] = makeSession(userID)
	}

	var wg sync.WaitGroup
	var successCount atomic.Int32
	for i := range goroutines {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			if err := s.store.Create(ctx, sessions[idx]); err == nil {
				successCount.Add(1)
			}
		}(i)
	}
	wg.Wait()

	s.Equal(int32(goroutines), successCount.Load(), "all creates should succeed")

	members, err := s.redis.Client.SMembers(ctx, "user_sessions:"+userID.String()).Result()
	s.Require().NoError(err)
	s.Len(members, goroutines)

	listed, err := s.store.ListByUser(ctx, userID)
	s.Require().NoError(err)
	s.Len(listed, goroutines)
}

// TestExecuteValidationRollback verifies that a validation error persists nothing.
func (s *RedisStoreSuite) TestExecuteValidationRollback() {
	ctx := context.Background()
	sess := makeSession(id.NewUserID())
	s.Require().NoError(s.store.Create(ctx, sess))

	validationErr := errors.New("validation failed")
	_, err := s.store.Execute(ctx, sess.ID,
		func(*models.Session) error { return validationErr },
		func(sess *models.Session) { sess.Elevated = true },
	)
	s.ErrorIs(err, validationErr)

	found, err := s.store.FindByID(ctx, sess.ID)
	s.Require().NoError(err)
	s.False(found.Elevated, "session should be unchanged after validation error")
}

// TestDeleteDropsIndexEntry verifies Delete is idempotent and keeps the index in step.
func (s *RedisStoreSuite) TestDeleteDropsIndexEntry() {
	ctx := context.Background()
	userID := id.NewUserID()
	keep := makeSession(userID)
	drop := makeSession(userID)
	s.Require().NoError(s.store.Create(ctx, keep))
	s.Require().NoError(s.store.Create(ctx, drop))

	s.Require().NoError(s.store.Delete(ctx, drop.ID))
	s.Require().NoError(s.store.Delete(ctx, drop.ID))

	_, err := s.store.FindByID(ctx, drop.ID)
	s.ErrorIs(err, sentinel.ErrNotFound)

	isMember, err := s.redis.Client.SIsMember(ctx, "user_sessions:"+userID.String(), drop.ID.String()).Result()
	s.Require().NoError(err)
	s.False(isMember)

	listed, err := s.store.ListByUser(ctx, userID)
	s.Require().NoError(err)
	s.Require().Len(listed, 1)
	s.Equal(keep.ID, listed[0].ID)
}

// TestListPrunesExpiredMembers verifies dangling index ids are removed on read.
func (s *RedisStoreSuite) TestListPrunesExpiredMembers() {
	ctx := context.Background()
	userID := id.NewUserID()
	sess := makeSession(userID)
	s.Require().NoError(s.store.Create(ctx, sess))
	s.Require().NoError(s.redis.Client.Del(ctx, "session:"+sess.ID.String()).Err())

	listed, err := s.store.ListByUser(ctx, userID)
	s.Require().NoError(err)
	s.Empty(listed)

	count, err := s.redis.Client.SCard(ctx, "user_sessions:"+userID.String()).Result()
	s.Require().NoError(err)
	s.Zero(count)
}

func (s *RedisStoreSuite) TestSessionJSONRoundTrip() {
	ctx := context.Background()
	sess := makeSession(id.NewUserID())
	sess.Elevated = true
	sess.ElevatedUntil = time.Now().Add(15 * time.Minute)
	sess.MFAVerified = true
	sess.Generation = 3
	s.Require().NoError(s.store.Create(ctx, sess))

	found, err := s.store.FindByID(ctx, sess.ID)
	s.Require().NoError(err)

	s.Equal(sess.ID, found.ID)
	s.Equal(sess.UserID, found.UserID)
	s.Equal(sess.Role, found.Role)
	s.Equal(sess.Permissions, found.Permissions)
	s.Equal(sess.DeviceFingerprint, found.DeviceFingerprint)
	s.Equal(sess.DeviceLabel, found.DeviceLabel)
	s.Equal(sess.IP, found.IP)
	s.True(found.Elevated)
	s.True(found.MFAVerified)
	s.Equal(3, found.Generation)
	s.True(sess.ExpiresAt.Equal(found.ExpiresAt))
	s.True(sess.ElevatedUntil.Equal(found.ElevatedUntil))
}
