package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	Decisions           *prometheus.CounterVec
	StoreErrors         prometheus.Counter
	Degraded            prometheus.Gauge
	AuthFailures        prometheus.Counter
	AuthLockoutsTotal   *prometheus.CounterVec
	AuthLockoutsCleared prometheus.Counter
}

// New registers the rate limit metrics on reg. A nil reg uses the default registerer.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)
	return &Metrics{
		Decisions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "siaga_ratelimit_decisions_total",
			Help: "Rate limit decisions by action, strategy and outcome",
		}, []string{"action", "strategy", "outcome"}),
		StoreErrors: f.NewCounter(prometheus.CounterOpts{
			Name: "siaga_ratelimit_store_errors_total",
			Help: "Rate limit checks that failed against the shared store",
		}),
		Degraded: f.NewGauge(prometheus.GaugeOpts{
			Name: "siaga_ratelimit_degraded",
			Help: "1 while rate limiting runs on the in-memory fallback",
		}),
		AuthFailures: f.NewCounter(prometheus.CounterOpts{
			Name: "siaga_ratelimit_auth_failures_recorded_total",
			Help: "Total number of auth failures recorded for lockout",
		}),
		AuthLockoutsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "siaga_ratelimit_auth_lockouts_total",
			Help: "Total number of lockouts triggered, by scope",
		}, []string{"scope"}),
		AuthLockoutsCleared: f.NewCounter(prometheus.CounterOpts{
			Name: "siaga_ratelimit_auth_lockouts_cleared_total",
			Help: "Lockouts cleared by a successful login",
		}),
	}
}

func (m *Metrics) IncDecision(action, strategy string, allowed bool) {
	if m == nil {
		return
	}
	outcome := "allowed"
	if !allowed {
		outcome = "denied"
	}
	m.Decisions.WithLabelValues(action, strategy, outcome).Inc()
}

func (m *Metrics) IncStoreError() {
	if m == nil {
		return
	}
	m.StoreErrors.Inc()
}

func (m *Metrics) SetDegraded(degraded bool) {
	if m == nil {
		return
	}
	if degraded {
		m.Degraded.Set(1)
		return
	}
	m.Degraded.Set(0)
}

func (m *Metrics) IncrementAuthFailures() {
	if m == nil {
		return
	}
	m.AuthFailures.Inc()
}

func (m *Metrics) IncrementAuthLockouts(scope string) {
	if m == nil {
		return
	}
	m.AuthLockoutsTotal.WithLabelValues(scope).Inc()
}

func (m *Metrics) IncrementLockoutsCleared() {
	if m == nil {
		return
	}
	m.AuthLockoutsCleared.Inc()
}
