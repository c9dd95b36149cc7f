// Package session persists session records.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"siaga/internal/auth/models"
	id "siaga/pkg/domain"
	"siaga/pkg/platform/sentinel"
	"siaga/pkg/requestcontext"
)

const (
	sessionKeyPrefix      = "session:"
	userSessionsKeyPrefix = "user_sessions:"
)

func sessionKey(sessionID id.SessionID) string { return sessionKeyPrefix + sessionID.String() }
func userSessionsKey(userID id.UserID) string  { return userSessionsKeyPrefix + userID.String() }

// RedisStore keeps each session as JSON under session:<id> with a TTL matching
// its expiry, and indexes ids per user in a set.
type RedisStore struct {
	client *redis.Client
}

func NewRedis(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

// Create writes the record and its index entry in one MULTI block.
func (s *RedisStore) Create(ctx context.Context, session *models.Session) error {
	ttl := session.TTL(requestcontext.Now(ctx))
	if ttl <= 0 {
		return fmt.Errorf("create session: %w", sentinel.ErrExpired)
	}
	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}

	userKey := userSessionsKey(session.UserID)
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, sessionKey(session.ID), data, ttl)
		pipe.SAdd(ctx, userKey, session.ID.String())
		pipe.ExpireGT(ctx, userKey, ttl)
		pipe.ExpireNX(ctx, userKey, ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("create session: %w: %w", sentinel.ErrUnavailable, err)
	}
	return nil
}

func (s *RedisStore) FindByID(ctx context.Context, sessionID id.SessionID) (*models.Session, error) {
	data, err := s.client.Get(ctx, sessionKey(sessionID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("session not found: %w", sentinel.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("find session: %w: %w", sentinel.ErrUnavailable, err)
	}
	return decode(data)
}

// Execute loads the record under WATCH, runs validate then mutate, and writes
// it back only if nobody else changed it meanwhile. A concurrent write yields
// sentinel.ErrConflict. The key's TTL is kept unless mutate moves ExpiresAt.
func (s *RedisStore) Execute(ctx context.Context, sessionID id.SessionID, validate func(*models.Session) error, mutate func(*models.Session)) (*models.Session, error) {
	key := sessionKey(sessionID)
	var result *models.Session

	err := s.client.Watch(ctx, func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return fmt.Errorf("session not found: %w", sentinel.ErrNotFound)
		}
		if err != nil {
			return fmt.Errorf("%w: %w", sentinel.ErrUnavailable, err)
		}
		session, err := decode(data)
		if err != nil {
			return err
		}
		if err := validate(session); err != nil {
			return err
		}
		expiresAt := session.ExpiresAt
		mutate(session)

		updated, err := json.Marshal(session)
		if err != nil {
			return fmt.Errorf("marshal session: %w", err)
		}
		var ttl time.Duration = redis.KeepTTL
		if !session.ExpiresAt.Equal(expiresAt) {
			ttl = session.TTL(requestcontext.Now(ctx))
			if ttl <= 0 {
				return fmt.Errorf("update session: %w", sentinel.ErrExpired)
			}
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, updated, ttl)
			if ttl != redis.KeepTTL {
				pipe.ExpireGT(ctx, userSessionsKey(session.UserID), ttl)
			}
			return nil
		})
		if err != nil {
			return err
		}
		result = session
		return nil
	}, key)

	if errors.Is(err, redis.TxFailedErr) {
		return nil, fmt.Errorf("update session: %w: %w", sentinel.ErrConflict, err)
	}
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Delete removes the record and its index entry. Deleting an absent session is
// not an error.
func (s *RedisStore) Delete(ctx context.Context, sessionID id.SessionID) error {
	session, err := s.FindByID(ctx, sessionID)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, sessionKey(sessionID))
		pipe.SRem(ctx, userSessionsKey(session.UserID), sessionID.String())
		return nil
	})
	if err != nil {
		return fmt.Errorf("delete session: %w: %w", sentinel.ErrUnavailable, err)
	}
	return nil
}

// ListByUser returns the user's live sessions. Index entries whose record has
// expired are dropped from the set as a side effect.
func (s *RedisStore) ListByUser(ctx context.Context, userID id.UserID) ([]*models.Session, error) {
	userKey := userSessionsKey(userID)
	members, err := s.client.SMembers(ctx, userKey).Result()
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w: %w", sentinel.ErrUnavailable, err)
	}
	if len(members) == 0 {
		return []*models.Session{}, nil
	}

	keys := make([]string, len(members))
	for i, m := range members {
		keys[i] = sessionKeyPrefix + m
	}
	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w: %w", sentinel.ErrUnavailable, err)
	}

	sessions := make([]*models.Session, 0, len(values))
	var stale []any
	for i, v := range values {
		raw, ok := v.(string)
		if !ok {
			stale = append(stale, members[i])
			continue
		}
		session, err := decode([]byte(raw))
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, session)
	}
	if len(stale) > 0 {
		// best effort; a failure only leaves dangling ids for the next call
		_ = s.client.SRem(ctx, userKey, stale...).Err()
	}
	return sessions, nil
}

func decode(data []byte) (*models.Session, error) {
	var session models.Session
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, fmt.Errorf("unmarshal session: %w", err)
	}
	return &session, nil
}
