package user

import (
	"context"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"siaga/internal/auth/models"
	id "siaga/pkg/domain"
	dErrors "siaga/pkg/domain-errors"
)

// SeedRecord is one account in a seed file. Passwords are stored as argon2id
// PHC strings; siagactl hash-password produces them.
type SeedRecord struct {
	ID           string `yaml:"id,omitempty"`
	Identity     string `yaml:"identity"`
	PasswordHash string `yaml:"password_hash"`
	Role         string `yaml:"role"`
	MFASecret    string `yaml:"mfa_secret,omitempty"`
	Verified     bool   `yaml:"verified,omitempty"`
	Disabled     bool   `yaml:"disabled,omitempty"`
}

type seedFile struct {
	Users []SeedRecord `yaml:"users"`
}

// LoadSeedFile parses a YAML account list.
func LoadSeedFile(path string) ([]*models.User, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeConfiguration, "read user seed file")
	}
	return ParseSeed(raw)
}

func ParseSeed(raw []byte) ([]*models.User, error) {
	var f seedFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeConfiguration, "parse user seed file")
	}
	users := make([]*models.User, 0, len(f.Users))
	for i, rec := range f.Users {
		u, err := rec.toUser()
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeConfiguration, fmt.Sprintf("user seed entry %d", i))
		}
		users = append(users, u)
	}
	return users, nil
}

func (r SeedRecord) toUser() (*models.User, error) {
	if strings.TrimSpace(r.Identity) == "" {
		return nil, fmt.Errorf("identity is required")
	}
	if !strings.HasPrefix(r.PasswordHash, "$argon2id$") {
		return nil, fmt.Errorf("password_hash for %q is not an argon2id hash", r.Identity)
	}
	role, err := models.ParseRole(r.Role)
	if err != nil {
		return nil, err
	}
	userID := id.NewUserID()
	if r.ID != "" {
		if userID, err = id.ParseUserID(r.ID); err != nil {
			return nil, err
		}
	}
	return &models.User{
		ID:           userID,
		Identity:     strings.TrimSpace(r.Identity),
		PasswordHash: r.PasswordHash,
		Role:         role,
		MFASecret:    r.MFASecret,
		Verified:     r.Verified,
		Disabled:     r.Disabled,
	}, nil
}

// Seed saves every user, stopping at the first conflict.
func (s *InMemoryUserStore) Seed(ctx context.Context, users []*models.User) error {
	for _, u := range users {
		if err := s.Save(ctx, u); err != nil {
			return fmt.Errorf("seed %s: %w", u.Identity, err)
		}
	}
	return nil
}
