package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"

	"siaga/internal/auth/models"
	id "siaga/pkg/domain"
	"siaga/pkg/platform/sentinel"
	"siaga/pkg/requestcontext"
)

const memoryCleanupInterval = time.Minute

// InMemoryStore keeps sessions in go-cache with per-item expiry. It serves
// single-instance deployments and tests.
type InMemoryStore struct {
	mu     sync.Mutex
	items  *cache.Cache
	byUser map[id.UserID]map[id.SessionID]struct{}
}

func New() *InMemoryStore {
	return &InMemoryStore{
		items:  cache.New(cache.NoExpiration, memoryCleanupInterval),
		byUser: make(map[id.UserID]map[id.SessionID]struct{}),
	}
}

func (s *InMemoryStore) Create(ctx context.Context, session *models.Session) error {
	ttl := session.TTL(requestcontext.Now(ctx))
	if ttl <= 0 {
		return fmt.Errorf("create session: %w", sentinel.ErrExpired)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.items.Set(session.ID.String(), clone(session), ttl)
	ids, ok := s.byUser[session.UserID]
	if !ok {
		ids = make(map[id.SessionID]struct{})
		s.byUser[session.UserID] = ids
	}
	ids[session.ID] = struct{}{}
	return nil
}

func (s *InMemoryStore) FindByID(_ context.Context, sessionID id.SessionID) (*models.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load(sessionID)
}

// load returns a copy of the stored record. Caller holds mu.
func (s *InMemoryStore) load(sessionID id.SessionID) (*models.Session, error) {
	v, ok := s.items.Get(sessionID.String())
	if !ok {
		return nil, fmt.Errorf("session not found: %w", sentinel.ErrNotFound)
	}
	return clone(v.(*models.Session)), nil
}

func (s *InMemoryStore) Execute(ctx context.Context, sessionID id.SessionID, validate func(*models.Session) error, mutate func(*models.Session)) (*models.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := sessionID.String()
	v, expiration, ok := s.items.GetWithExpiration(key)
	if !ok {
		return nil, fmt.Errorf("session not found: %w", sentinel.ErrNotFound)
	}
	session := clone(v.(*models.Session))
	if err := validate(session); err != nil {
		return nil, err
	}
	expiresAt := session.ExpiresAt
	mutate(session)

	ttl := time.Until(expiration)
	if !session.ExpiresAt.Equal(expiresAt) {
		ttl = session.TTL(requestcontext.Now(ctx))
	}
	if ttl <= 0 {
		return nil, fmt.Errorf("update session: %w", sentinel.ErrExpired)
	}
	s.items.Set(key, clone(session), ttl)
	return session, nil
}

func (s *InMemoryStore) Delete(_ context.Context, sessionID id.SessionID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, err := s.load(sessionID)
	if err != nil {
		return nil
	}
	s.items.Delete(sessionID.String())
	s.unindex(session.UserID, sessionID)
	return nil
}

func (s *InMemoryStore) ListByUser(_ context.Context, userID id.UserID) ([]*models.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sessions := make([]*models.Session, 0, len(s.byUser[userID]))
	for sessionID := range s.byUser[userID] {
		session, err := s.load(sessionID)
		if err != nil {
			s.unindex(userID, sessionID)
			continue
		}
		sessions = append(sessions, session)
	}
	return sessions, nil
}

func (s *InMemoryStore) unindex(userID id.UserID, sessionID id.SessionID) {
	ids := s.byUser[userID]
	delete(ids, sessionID)
	if len(ids) == 0 {
		delete(s.byUser, userID)
	}
}

func clone(s *models.Session) *models.Session {
	c := *s
	c.Permissions = append([]string(nil), s.Permissions...)
	return &c
}
