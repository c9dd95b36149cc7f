package config

import (
	"encoding/base64"
	"net/netip"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	dErrors "siaga/pkg/domain-errors"
)

type ConfigSuite struct {
	suite.Suite
	key string
}

func TestConfigSuite(t *testing.T) {
	suite.Run(t, new(ConfigSuite))
}

func (s *ConfigSuite) SetupTest() {
	s.key = base64.StdEncoding.EncodeToString(make([]byte, TokenKeySize))
	s.T().Setenv("SIAGA_ENV_FILE", "")
	s.T().Setenv("SIAGA_POLICY_FILE", "")
	s.T().Setenv("SIAGA_TOKEN_KEY", "")
	s.T().Setenv("SIAGA_TOKEN_KEY_FILE", "")
	s.T().Setenv("SIAGA_TOKEN_PREVIOUS_KEYS", "")
	s.T().Setenv("SIAGA_TRUSTED_PROXIES", "")
	// Keep the test independent of any .env in the working directory.
	s.T().Chdir(s.T().TempDir())
}

func (s *ConfigSuite) TestKeyMaterial() {
	s.Run("missing key is a configuration error", func() {
		_, err := FromEnv()
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeConfiguration))
	})

	s.Run("key from environment", func() {
		s.T().Setenv("SIAGA_TOKEN_KEY", s.key)
		cfg, err := FromEnv()
		s.Require().NoError(err)
		s.Len(cfg.Token.Key, TokenKeySize)
	})

	s.Run("key from file", func() {
		s.T().Setenv("SIAGA_TOKEN_KEY", "")
		path := filepath.Join(s.T().TempDir(), "token.key")
		s.Require().NoError(os.WriteFile(path, []byte(s.key+"\n"), 0o600))
		s.T().Setenv("SIAGA_TOKEN_KEY_FILE", path)

		cfg, err := FromEnv()
		s.Require().NoError(err)
		s.Len(cfg.Token.Key, TokenKeySize)
	})

	s.Run("short key is rejected", func() {
		s.T().Setenv("SIAGA_TOKEN_KEY", base64.StdEncoding.EncodeToString([]byte("short")))
		_, err := FromEnv()
		s.True(dErrors.HasCode(err, dErrors.CodeConfiguration))
	})

	s.Run("previous keys are decoded for rotation", func() {
		s.T().Setenv("SIAGA_TOKEN_KEY", s.key)
		prev := base64.RawURLEncoding.EncodeToString(make([]byte, TokenKeySize))
		s.T().Setenv("SIAGA_TOKEN_PREVIOUS_KEYS", prev+", "+prev)
		cfg, err := FromEnv()
		s.Require().NoError(err)
		s.Len(cfg.Token.PreviousKeys, 2)
	})
}

func (s *ConfigSuite) TestDefaults() {
	s.T().Setenv("SIAGA_TOKEN_KEY", s.key)
	cfg, err := FromEnv()
	s.Require().NoError(err)

	s.Equal(15*time.Minute, cfg.Token.AccessTTL)
	s.Equal(24*time.Hour, cfg.Token.RefreshTTL)
	s.Equal(15*time.Minute, cfg.Session.ElevationWindow)
	s.Equal(5, cfg.Lockout.Threshold)
	s.Equal(8, cfg.Password.MinLength)
	s.Contains(cfg.Roles, "super_admin")
	s.Equal(5, cfg.RateLimit.Endpoints["auth_login"].Requests)
}

func (s *ConfigSuite) TestInvalidValuesAreReportedTogether() {
	s.T().Setenv("SIAGA_TOKEN_KEY", s.key)
	s.T().Setenv("SIAGA_LOCKOUT_THRESHOLD", "many")
	s.T().Setenv("SIAGA_SESSION_TIMEOUT", "forever")

	_, err := FromEnv()
	s.Require().Error(err)
	s.Contains(err.Error(), "SIAGA_LOCKOUT_THRESHOLD")
	s.Contains(err.Error(), "SIAGA_SESSION_TIMEOUT")
}

func (s *ConfigSuite) TestCrossFieldValidation() {
	s.T().Setenv("SIAGA_TOKEN_KEY", s.key)
	s.T().Setenv("SIAGA_ACCESS_TOKEN_TTL", "48h")

	_, err := FromEnv()
	s.Require().Error(err)
	s.Contains(err.Error(), "access token TTL")
}

func (s *ConfigSuite) TestDotEnvFile() {
	path := filepath.Join(s.T().TempDir(), "test.env")
	s.Require().NoError(os.WriteFile(path, []byte("SIAGA_TOKEN_KEY="+s.key+"\nSIAGA_ADDR=:9999\n"), 0o600))
	s.T().Setenv("SIAGA_ENV_FILE", path)
	// godotenv does not override variables that are already set, so clear them.
	os.Unsetenv("SIAGA_TOKEN_KEY")
	s.T().Cleanup(func() { os.Unsetenv("SIAGA_ADDR") })

	cfg, err := FromEnv()
	s.Require().NoError(err)
	s.Equal(":9999", cfg.Server.Addr)
}

func (s *ConfigSuite) TestTrustedProxies() {
	s.T().Setenv("SIAGA_TOKEN_KEY", s.key)

	s.Run("none by default", func() {
		cfg, err := FromEnv()
		s.Require().NoError(err)
		s.Empty(cfg.Server.TrustedProxies)
	})

	s.Run("cidrs and addresses", func() {
		s.T().Setenv("SIAGA_TRUSTED_PROXIES", "10.0.0.0/8, 192.0.2.1")
		cfg, err := FromEnv()
		s.Require().NoError(err)
		s.Require().Len(cfg.Server.TrustedProxies, 2)
		s.True(cfg.Server.TrustedProxies[0].Contains(netip.MustParseAddr("10.1.2.3")))
		s.Equal(32, cfg.Server.TrustedProxies[1].Bits())
	})

	s.Run("invalid entry is a configuration error", func() {
		s.T().Setenv("SIAGA_TRUSTED_PROXIES", "lb.internal")
		_, err := FromEnv()
		s.True(dErrors.HasCode(err, dErrors.CodeConfiguration))
	})
}

func TestParsePolicy(t *testing.T) {
	t.Run("overrides tables from yaml", func(t *testing.T) {
		p, err := ParsePolicy([]byte(`
roles:
  citizen: [view_disasters]
  super_admin: [all_permissions]
rate_limits:
  default: {strategy: sliding_window, requests: 10, window: 30s}
  endpoints:
    auth_login: {strategy: token_bucket, capacity: 3, refill_rate: 1, refill_interval: 1m}
`))
		require.NoError(t, err)

		merged := DefaultPolicy().Merge(p)
		assert.Equal(t, []string{"view_disasters"}, merged.Roles["citizen"])
		assert.Equal(t, 30*time.Second, merged.RateLimits.Default.Window)
		assert.Equal(t, "token_bucket", merged.RateLimits.Endpoints["auth_login"].Strategy)
		assert.NotEmpty(t, merged.RateLimits.Roles, "sections absent from the file keep their defaults")
	})

	t.Run("rejects unknown strategy", func(t *testing.T) {
		_, err := ParsePolicy([]byte(`
rate_limits:
  endpoints:
    auth_login: {strategy: leaky, requests: 1, window: 1s}
`))
		assert.True(t, dErrors.HasCode(err, dErrors.CodeConfiguration))
	})

	t.Run("rejects unknown keys", func(t *testing.T) {
		_, err := ParsePolicy([]byte("rolez: {}\n"))
		assert.Error(t, err)
	})
}
