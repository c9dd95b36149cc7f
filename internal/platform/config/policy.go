package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	dErrors "siaga/pkg/domain-errors"
)

// Policy is the file-backed part of the configuration: the role table, the
// rate limit strategy table and password blacklist entries.
//
//	roles:
//	  citizen: [report_disaster, view_disasters]
//	rate_limits:
//	  default: {strategy: fixed_window, requests: 60, window: 1m}
//	  endpoints:
//	    auth_login: {strategy: fixed_window, requests: 5, window: 5m}
//	password:
//	  forbidden_substrings: [password, siaga]
type Policy struct {
	Roles      map[string][]string `yaml:"roles"`
	RateLimits struct {
		Default   StrategySpec            `yaml:"default"`
		Roles     map[string]StrategySpec `yaml:"roles"`
		Endpoints map[string]StrategySpec `yaml:"endpoints"`
	} `yaml:"rate_limits"`
	Password struct {
		ForbiddenSubstrings []string `yaml:"forbidden_substrings"`
	} `yaml:"password"`
}

// DefaultPolicy mirrors the permission table and quotas the platform shipped with.
func DefaultPolicy() *Policy {
	base := []string{"report_disaster", "view_disasters", "receive_notifications"}
	responder := append(append([]string{}, base...), "respond_to_disaster", "update_disaster_status")

	p := &Policy{
		Roles: map[string][]string{
			"citizen":     base,
			"volunteer":   append(append([]string{}, base...), "volunteer_response"),
			"responder":   responder,
			"admin":       append(append([]string{}, responder...), "manage_users", "manage_disasters", "send_emergency_alerts"),
			"super_admin": {"all_permissions"},
		},
	}
	p.RateLimits.Default = StrategySpec{Strategy: "fixed_window", Requests: 60, Window: time.Minute}
	p.RateLimits.Roles = map[string]StrategySpec{
		"citizen":     {Strategy: "fixed_window", Requests: 100, Window: time.Hour},
		"volunteer":   {Strategy: "fixed_window", Requests: 300, Window: time.Hour},
		"responder":   {Strategy: "fixed_window", Requests: 1000, Window: time.Hour},
		"admin":       {Strategy: "fixed_window", Requests: 5000, Window: time.Hour},
		"super_admin": {Strategy: "fixed_window", Requests: 10000, Window: time.Hour},
	}
	p.RateLimits.Endpoints = map[string]StrategySpec{
		"auth_login":          {Strategy: "fixed_window", Requests: 5, Window: 5 * time.Minute},
		"auth_refresh":        {Strategy: "sliding_window", Requests: 30, Window: time.Minute},
		"auth_password_reset": {Strategy: "fixed_window", Requests: 3, Window: time.Hour},
		"disaster_report":     {Strategy: "token_bucket", Capacity: 10, RefillRate: 1, RefillInterval: time.Minute},
		"auth_elevate":        {Strategy: "fixed_window", Requests: 5, Window: 15 * time.Minute},
	}
	p.Password.ForbiddenSubstrings = []string{"password", "qwerty", "123456", "siaga"}
	return p
}

// LoadPolicyFile reads a YAML policy file.
func LoadPolicyFile(path string) (*Policy, error) {
	raw, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeConfiguration, "read policy file")
	}
	return ParsePolicy(raw)
}

// ParsePolicy decodes a YAML policy document, rejecting unknown keys.
func ParsePolicy(raw []byte) (*Policy, error) {
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	var p Policy
	if err := dec.Decode(&p); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeConfiguration, "parse policy file")
	}
	for name, spec := range p.RateLimits.Endpoints {
		if err := spec.validate(); err != nil {
			return nil, dErrors.Wrap(fmt.Errorf("endpoint %q: %w", name, err), dErrors.CodeConfiguration, "invalid rate limit")
		}
	}
	for name, spec := range p.RateLimits.Roles {
		if err := spec.validate(); err != nil {
			return nil, dErrors.Wrap(fmt.Errorf("role %q: %w", name, err), dErrors.CodeConfiguration, "invalid rate limit")
		}
	}
	if p.RateLimits.Default.Strategy != "" {
		if err := p.RateLimits.Default.validate(); err != nil {
			return nil, dErrors.Wrap(fmt.Errorf("default: %w", err), dErrors.CodeConfiguration, "invalid rate limit")
		}
	}
	return &p, nil
}

// Merge overlays non-empty sections of other onto a copy of p.
func (p *Policy) Merge(other *Policy) *Policy {
	out := *p
	if len(other.Roles) > 0 {
		out.Roles = other.Roles
	}
	if other.RateLimits.Default.Strategy != "" {
		out.RateLimits.Default = other.RateLimits.Default
	}
	if len(other.RateLimits.Roles) > 0 {
		out.RateLimits.Roles = other.RateLimits.Roles
	}
	if len(other.RateLimits.Endpoints) > 0 {
		out.RateLimits.Endpoints = other.RateLimits.Endpoints
	}
	if len(other.Password.ForbiddenSubstrings) > 0 {
		out.Password.ForbiddenSubstrings = other.Password.ForbiddenSubstrings
	}
	return &out
}

func (s StrategySpec) validate() error {
	switch s.Strategy {
	case "fixed_window", "sliding_window":
		if s.Requests <= 0 || s.Window <= 0 {
			return fmt.Errorf("%s requires positive requests and window", s.Strategy)
		}
	case "token_bucket":
		if s.Capacity <= 0 || s.RefillRate <= 0 || s.RefillInterval <= 0 {
			return fmt.Errorf("token_bucket requires positive capacity, refill_rate and refill_interval")
		}
	default:
		return fmt.Errorf("unknown strategy %q", s.Strategy)
	}
	return nil
}
