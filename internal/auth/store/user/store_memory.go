// Package user holds the account records the security core reads for login,
// elevation and password reset.
package user

import (
	"context"
	"strings"
	"sync"

	"siaga/internal/auth/models"
	id "siaga/pkg/domain"
	"siaga/pkg/platform/sentinel"
)

// InMemoryUserStore keeps accounts in process memory, indexed by id and by
// normalized identity. Records are copied in and out.
type InMemoryUserStore struct {
	mu         sync.RWMutex
	users      map[id.UserID]*models.User
	byIdentity map[string]id.UserID
}

func New() *InMemoryUserStore {
	return &InMemoryUserStore{
		users:      make(map[id.UserID]*models.User),
		byIdentity: make(map[string]id.UserID),
	}
}

// NormalizeIdentity is the lookup form of a login identity.
func NormalizeIdentity(identity string) string {
	return strings.ToLower(strings.TrimSpace(identity))
}

// Save inserts or replaces user. An identity already held by another account is a conflict.
func (s *InMemoryUserStore) Save(_ context.Context, user *models.User) error {
	if user == nil || user.ID.IsNil() {
		return sentinel.ErrInvalidState
	}
	key := NormalizeIdentity(user.Identity)
	s.mu.Lock()
	defer s.mu.Unlock()
	if owner, ok := s.byIdentity[key]; ok && owner != user.ID {
		return sentinel.ErrConflict
	}
	if prev, ok := s.users[user.ID]; ok {
		delete(s.byIdentity, NormalizeIdentity(prev.Identity))
	}
	clone := *user
	s.users[user.ID] = &clone
	s.byIdentity[key] = user.ID
	return nil
}

func (s *InMemoryUserStore) FindByID(_ context.Context, userID id.UserID) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[userID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	clone := *u
	return &clone, nil
}

func (s *InMemoryUserStore) FindByIdentity(_ context.Context, identity string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	userID, ok := s.byIdentity[NormalizeIdentity(identity)]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	clone := *s.users[userID]
	return &clone, nil
}

func (s *InMemoryUserStore) UpdatePasswordHash(_ context.Context, userID id.UserID, hash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return sentinel.ErrNotFound
	}
	u.PasswordHash = hash
	return nil
}

// MarkVerified records that the account's identity was confirmed.
func (s *InMemoryUserStore) MarkVerified(_ context.Context, userID id.UserID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return sentinel.ErrNotFound
	}
	u.Verified = true
	return nil
}

// MFASecret returns the enrolled TOTP secret, or sentinel.ErrNotFound when the
// user has none.
func (s *InMemoryUserStore) MFASecret(_ context.Context, userID id.UserID) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[userID]
	if !ok || u.MFASecret == "" {
		return "", sentinel.ErrNotFound
	}
	return u.MFASecret, nil
}

func (s *InMemoryUserStore) Delete(_ context.Context, userID id.UserID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return sentinel.ErrNotFound
	}
	delete(s.byIdentity, NormalizeIdentity(u.Identity))
	delete(s.users, userID)
	return nil
}
