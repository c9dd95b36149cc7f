// Package config loads process configuration from the environment.
//
// Secrets (token key material) are read from the environment or from a file path
// named by the environment; there is no built-in fallback key.
package config

import (
	"encoding/base64"
	"errors"
	"fmt"
	"net/netip"
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	dErrors "siaga/pkg/domain-errors"
	"siaga/pkg/platform/middleware/metadata"
)

// TokenKeySize is the symmetric key length required by the token codec.
const TokenKeySize = 32

// Config is the full process configuration.
type Config struct {
	Server    ServerConfig
	Redis     RedisConfig
	Postgres  PostgresConfig
	Kafka     KafkaConfig
	Token     TokenConfig
	Session   SessionConfig
	Password  PasswordConfig
	Lockout   LockoutConfig
	RateLimit RateLimitConfig
	MFA       MFAConfig
	// Roles maps a role name to its permission strings.
	Roles map[string][]string
	// UsersFile is an optional YAML account list loaded into the in-memory user store.
	UsersFile string
	LogLevel  string
}

// ServerConfig captures HTTP server level configuration.
type ServerConfig struct {
	Addr            string
	ShutdownTimeout time.Duration
	MaxBodyBytes    int64

	// OperatorToken guards /metrics when set.
	OperatorToken string

	// TrustedProxies lists the peers whose X-Forwarded-For and X-Real-IP
	// headers are honoured. Empty means the direct peer is the client.
	TrustedProxies []netip.Prefix
}

// RedisConfig configures the shared store. An empty URL selects in-process stores.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// PostgresConfig configures the durable revocation ledger. Optional.
type PostgresConfig struct {
	DSN string
}

// KafkaConfig configures the audit sink. Optional.
type KafkaConfig struct {
	Brokers    []string
	AuditTopic string
}

// TokenConfig holds token lifetimes and key material.
type TokenConfig struct {
	Key          []byte
	PreviousKeys [][]byte
	Issuer       string
	Audience     string
	AccessTTL    time.Duration
	RefreshTTL   time.Duration
	ResetTTL     time.Duration
	VerifyTTL    time.Duration
	Leeway       time.Duration
}

// SessionConfig holds session lifetimes and binding rules.
type SessionConfig struct {
	Timeout         time.Duration
	ElevationWindow time.Duration
	StoreTimeout    time.Duration
	BindDevice      bool
	BindIP          bool
}

// PasswordConfig holds the strength policy and argon2id cost parameters.
type PasswordConfig struct {
	MinLength           int
	RequireUpper        bool
	RequireLower        bool
	RequireDigit        bool
	RequireSymbol       bool
	ForbiddenSubstrings []string
	BlacklistFile       string
	ArgonMemoryKiB      uint32
	ArgonIterations     uint32
	ArgonParallelism    uint8
	ArgonKeyLen         uint32
	HashWorkers         int
}

// LockoutConfig holds brute-force lockout thresholds.
type LockoutConfig struct {
	Threshold int
	Window    time.Duration
	Duration  time.Duration
	TrackIP   bool
}

// StrategySpec is the configuration form of a rate limit strategy.
type StrategySpec struct {
	Strategy       string        `yaml:"strategy"`
	Requests       int           `yaml:"requests,omitempty"`
	Window         time.Duration `yaml:"window,omitempty"`
	Capacity       int           `yaml:"capacity,omitempty"`
	RefillRate     int           `yaml:"refill_rate,omitempty"`
	RefillInterval time.Duration `yaml:"refill_interval,omitempty"`
}

// RateLimitConfig is the strategy table: endpoint overrides beat role overrides beat the default.
type RateLimitConfig struct {
	Disabled  bool                    `yaml:"-"`
	Default   StrategySpec            `yaml:"default"`
	Roles     map[string]StrategySpec `yaml:"roles"`
	Endpoints map[string]StrategySpec `yaml:"endpoints"`
}

// MFAConfig configures TOTP verification for session elevation.
type MFAConfig struct {
	Issuer string
	Skew   uint
}

// FromEnv builds the configuration. A .env file is loaded first when present
// (SIAGA_ENV_FILE overrides the path); real environment variables win.
func FromEnv() (*Config, error) {
	if err := loadDotEnv(); err != nil {
		return nil, err
	}

	e := &envReader{}
	cfg := &Config{
		Server: ServerConfig{
			Addr:            e.str("SIAGA_ADDR", ":8080"),
			ShutdownTimeout: e.duration("SIAGA_SHUTDOWN_TIMEOUT", 10*time.Second),
			MaxBodyBytes:    int64(e.integer("SIAGA_MAX_BODY_BYTES", 1<<16)),
			OperatorToken:   e.str("SIAGA_OPERATOR_TOKEN", ""),
		},
		Redis: RedisConfig{
			URL:          e.str("SIAGA_REDIS_URL", ""),
			PoolSize:     e.integer("SIAGA_REDIS_POOL_SIZE", 20),
			MinIdleConns: e.integer("SIAGA_REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  e.duration("SIAGA_REDIS_DIAL_TIMEOUT", 2*time.Second),
			ReadTimeout:  e.duration("SIAGA_REDIS_READ_TIMEOUT", 500*time.Millisecond),
			WriteTimeout: e.duration("SIAGA_REDIS_WRITE_TIMEOUT", 500*time.Millisecond),
		},
		Postgres: PostgresConfig{DSN: e.str("SIAGA_POSTGRES_DSN", "")},
		Kafka: KafkaConfig{
			Brokers:    e.list("SIAGA_KAFKA_BROKERS"),
			AuditTopic: e.str("SIAGA_KAFKA_AUDIT_TOPIC", "siaga.audit.security"),
		},
		Token: TokenConfig{
			Issuer:     e.str("SIAGA_TOKEN_ISSUER", "siaga-auth"),
			Audience:   e.str("SIAGA_TOKEN_AUDIENCE", "siaga"),
			AccessTTL:  e.duration("SIAGA_ACCESS_TOKEN_TTL", 15*time.Minute),
			RefreshTTL: e.duration("SIAGA_REFRESH_TOKEN_TTL", 24*time.Hour),
			ResetTTL:   e.duration("SIAGA_RESET_TOKEN_TTL", time.Hour),
			VerifyTTL:  e.duration("SIAGA_VERIFY_TOKEN_TTL", 24*time.Hour),
			Leeway:     e.duration("SIAGA_TOKEN_LEEWAY", 0),
		},
		Session: SessionConfig{
			Timeout:         e.duration("SIAGA_SESSION_TIMEOUT", 24*time.Hour),
			ElevationWindow: e.duration("SIAGA_ELEVATION_WINDOW", 15*time.Minute),
			StoreTimeout:    e.duration("SIAGA_SESSION_STORE_TIMEOUT", 500*time.Millisecond),
			BindDevice:      e.boolean("SIAGA_SESSION_BIND_DEVICE", true),
			BindIP:          e.boolean("SIAGA_SESSION_BIND_IP", false),
		},
		Password: PasswordConfig{
			MinLength:        e.integer("SIAGA_PASSWORD_MIN_LENGTH", 8),
			RequireUpper:     e.boolean("SIAGA_PASSWORD_REQUIRE_UPPER", true),
			RequireLower:     e.boolean("SIAGA_PASSWORD_REQUIRE_LOWER", true),
			RequireDigit:     e.boolean("SIAGA_PASSWORD_REQUIRE_DIGIT", true),
			RequireSymbol:    e.boolean("SIAGA_PASSWORD_REQUIRE_SYMBOL", true),
			BlacklistFile:    e.str("SIAGA_PASSWORD_BLACKLIST_FILE", ""),
			ArgonMemoryKiB:   uint32(e.integer("SIAGA_ARGON2_MEMORY_KIB", 64*1024)),
			ArgonIterations:  uint32(e.integer("SIAGA_ARGON2_ITERATIONS", 3)),
			ArgonParallelism: uint8(e.integer("SIAGA_ARGON2_PARALLELISM", 1)),
			ArgonKeyLen:      uint32(e.integer("SIAGA_ARGON2_KEY_LEN", 32)),
			HashWorkers:      e.integer("SIAGA_HASH_WORKERS", runtime.GOMAXPROCS(0)),
		},
		Lockout: LockoutConfig{
			Threshold: e.integer("SIAGA_LOCKOUT_THRESHOLD", 5),
			Window:    e.duration("SIAGA_LOCKOUT_WINDOW", 30*time.Minute),
			Duration:  e.duration("SIAGA_LOCKOUT_DURATION", 30*time.Minute),
			TrackIP:   e.boolean("SIAGA_LOCKOUT_TRACK_IP", true),
		},
		MFA: MFAConfig{
			Issuer: e.str("SIAGA_MFA_ISSUER", "Siaga"),
			Skew:   uint(e.integer("SIAGA_MFA_SKEW", 1)),
		},
		UsersFile: e.str("SIAGA_USERS_FILE", ""),
		LogLevel:  e.str("SIAGA_LOG_LEVEL", "info"),
	}
	cfg.RateLimit.Disabled = e.boolean("SIAGA_RATE_LIMIT_DISABLED", false)
	proxies, err := metadata.ParseTrustedProxies(e.list("SIAGA_TRUSTED_PROXIES"))
	if err != nil {
		e.fail(fmt.Errorf("SIAGA_TRUSTED_PROXIES: %w", err))
	}
	cfg.Server.TrustedProxies = proxies

	cfg.Token.Key = e.key("SIAGA_TOKEN_KEY", "SIAGA_TOKEN_KEY_FILE")
	for i, raw := range e.list("SIAGA_TOKEN_PREVIOUS_KEYS") {
		k, err := decodeKey(raw)
		if err != nil {
			e.fail(fmt.Errorf("SIAGA_TOKEN_PREVIOUS_KEYS[%d]: %w", i, err))
			continue
		}
		cfg.Token.PreviousKeys = append(cfg.Token.PreviousKeys, k)
	}
	if err := e.err(); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeConfiguration, "invalid configuration")
	}

	policy := DefaultPolicy()
	if path := os.Getenv("SIAGA_POLICY_FILE"); path != "" {
		loaded, err := LoadPolicyFile(path)
		if err != nil {
			return nil, err
		}
		policy = policy.Merge(loaded)
	}
	cfg.ApplyPolicy(policy)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyPolicy copies the file-backed tables into cfg.
func (c *Config) ApplyPolicy(p *Policy) {
	c.Roles = p.Roles
	c.RateLimit.Default = p.RateLimits.Default
	c.RateLimit.Roles = p.RateLimits.Roles
	c.RateLimit.Endpoints = p.RateLimits.Endpoints
	c.Password.ForbiddenSubstrings = p.Password.ForbiddenSubstrings
}

// Validate checks cross-field invariants.
func (c *Config) Validate() error {
	var errs []error
	if len(c.Token.Key) != TokenKeySize {
		errs = append(errs, fmt.Errorf("token key must be %d bytes", TokenKeySize))
	}
	if c.Token.AccessTTL <= 0 || c.Token.AccessTTL >= c.Token.RefreshTTL {
		errs = append(errs, errors.New("access token TTL must be positive and shorter than the refresh TTL"))
	}
	for name, ttl := range map[string]time.Duration{"reset": c.Token.ResetTTL, "verify": c.Token.VerifyTTL} {
		if ttl < time.Hour || ttl > 24*time.Hour {
			errs = append(errs, fmt.Errorf("%s token TTL must be between 1h and 24h", name))
		}
	}
	if c.Session.ElevationWindow <= 0 || c.Session.ElevationWindow >= c.Session.Timeout {
		errs = append(errs, errors.New("elevation window must be positive and shorter than the session timeout"))
	}
	if c.Session.StoreTimeout <= 0 {
		errs = append(errs, errors.New("session store timeout must be positive"))
	}
	if c.Password.MinLength < 1 {
		errs = append(errs, errors.New("password minimum length must be at least 1"))
	}
	if c.Password.HashWorkers < 1 {
		errs = append(errs, errors.New("hash workers must be at least 1"))
	}
	if c.Lockout.Threshold < 1 || c.Lockout.Window <= 0 || c.Lockout.Duration <= 0 {
		errs = append(errs, errors.New("lockout threshold, window and duration must be positive"))
	}
	if len(c.Roles) == 0 {
		errs = append(errs, errors.New("role table is empty"))
	}
	if err := errors.Join(errs...); err != nil {
		return dErrors.Wrap(err, dErrors.CodeConfiguration, "invalid configuration")
	}
	return nil
}

func loadDotEnv() error {
	path := os.Getenv("SIAGA_ENV_FILE")
	explicit := path != ""
	if !explicit {
		path = ".env"
	}
	if err := godotenv.Load(path); err != nil {
		if !explicit && errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return dErrors.Wrap(err, dErrors.CodeConfiguration, "load env file")
	}
	return nil
}

// decodeKey accepts standard or URL-safe base64, padded or not.
func decodeKey(raw string) ([]byte, error) {
	raw = strings.TrimSpace(raw)
	for _, enc := range []*base64.Encoding{base64.StdEncoding, base64.RawStdEncoding, base64.URLEncoding, base64.RawURLEncoding} {
		if k, err := enc.DecodeString(raw); err == nil {
			if len(k) != TokenKeySize {
				return nil, fmt.Errorf("key must decode to %d bytes, got %d", TokenKeySize, len(k))
			}
			return k, nil
		}
	}
	return nil, errors.New("key is not valid base64")
}

// envReader collects parse errors so every bad variable is reported at once.
type envReader struct {
	errs []error
}

func (e *envReader) fail(err error) { e.errs = append(e.errs, err) }
func (e *envReader) err() error     { return errors.Join(e.errs...) }

func (e *envReader) str(name, def string) string {
	if v, ok := os.LookupEnv(name); ok && v != "" {
		return v
	}
	return def
}

func (e *envReader) integer(name string, def int) int {
	v := os.Getenv(name)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		e.fail(fmt.Errorf("%s: %w", name, err))
		return def
	}
	return n
}

func (e *envReader) duration(name string, def time.Duration) time.Duration {
	v := os.Getenv(name)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		e.fail(fmt.Errorf("%s: %w", name, err))
		return def
	}
	return d
}

func (e *envReader) boolean(name string, def bool) bool {
	v := os.Getenv(name)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		e.fail(fmt.Errorf("%s: %w", name, err))
		return def
	}
	return b
}

func (e *envReader) list(name string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(name), ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// key reads key material from the named variable, or from the file the second variable names.
func (e *envReader) key(envName, fileEnvName string) []byte {
	raw := os.Getenv(envName)
	if raw == "" {
		if path := os.Getenv(fileEnvName); path != "" {
			b, err := os.ReadFile(path)
			if err != nil {
				e.fail(fmt.Errorf("%s: %w", fileEnvName, err))
				return nil
			}
			raw = string(b)
		}
	}
	if raw == "" {
		e.fail(fmt.Errorf("%s or %s must be set", envName, fileEnvName))
		return nil
	}
	k, err := decodeKey(raw)
	if err != nil {
		e.fail(fmt.Errorf("%s: %w", envName, err))
		return nil
	}
	return k
}
