package requestlimit

import (
	"errors"
	"fmt"
	"strings"

	"siaga/internal/platform/config"
	"siaga/internal/ratelimit/models"
	dErrors "siaga/pkg/domain-errors"
)

// Policy is the resolved strategy table.
type Policy struct {
	def       models.Strategy
	roles     map[string]models.Strategy
	endpoints map[string]models.Strategy
}

// NewPolicy validates every configured strategy up front so a bad table fails at startup.
func NewPolicy(cfg config.RateLimitConfig) (*Policy, error) {
	var errs []error
	def, err := strategyFrom(cfg.Default)
	if err != nil {
		errs = append(errs, fmt.Errorf("default: %w", err))
	}
	p := &Policy{
		def:       def,
		roles:     make(map[string]models.Strategy, len(cfg.Roles)),
		endpoints: make(map[string]models.Strategy, len(cfg.Endpoints)),
	}
	for role, spec := range cfg.Roles {
		st, err := strategyFrom(spec)
		if err != nil {
			errs = append(errs, fmt.Errorf("role %s: %w", role, err))
			continue
		}
		p.roles[strings.ToLower(role)] = st
	}
	for endpoint, spec := range cfg.Endpoints {
		st, err := strategyFrom(spec)
		if err != nil {
			errs = append(errs, fmt.Errorf("endpoint %s: %w", endpoint, err))
			continue
		}
		p.endpoints[endpoint] = st
	}
	if err := errors.Join(errs...); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeConfiguration, "invalid rate limit policy")
	}
	return p, nil
}

// Resolve returns the endpoint override, else the role override, else the default.
func (p *Policy) Resolve(endpoint, role string) models.Strategy {
	if st, ok := p.endpoints[endpoint]; ok {
		return st
	}
	if st, ok := p.roles[strings.ToLower(role)]; ok {
		return st
	}
	return p.def
}

func strategyFrom(spec config.StrategySpec) (models.Strategy, error) {
	st := models.Strategy{
		Kind:           models.StrategyKind(spec.Strategy),
		Requests:       spec.Requests,
		Window:         spec.Window,
		Capacity:       spec.Capacity,
		RefillRate:     spec.RefillRate,
		RefillInterval: spec.RefillInterval,
	}
	return st, st.Validate()
}
