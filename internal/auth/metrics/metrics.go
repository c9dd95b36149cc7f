package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the auth context's Prometheus metrics. A nil *Metrics records nothing.
type Metrics struct {
	TokensIssued            *prometheus.CounterVec
	TokenRejections         *prometheus.CounterVec
	SessionOps              *prometheus.CounterVec
	RevocationCheckDuration prometheus.Histogram
	LoginAttempts           *prometheus.CounterVec
	HashDuration            *prometheus.HistogramVec
	HashPoolWaiting         prometheus.Gauge
}

// New registers the auth metrics on reg. A nil reg uses the default registerer.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)
	return &Metrics{
		TokensIssued: f.NewCounterVec(prometheus.CounterOpts{
			Name: "siaga_auth_tokens_issued_total",
			Help: "Tokens minted by kind",
		}, []string{"kind"}),
		TokenRejections: f.NewCounterVec(prometheus.CounterOpts{
			Name: "siaga_auth_token_rejections_total",
			Help: "Token verifications that failed, by internal reason",
		}, []string{"reason"}),
		SessionOps: f.NewCounterVec(prometheus.CounterOpts{
			Name: "siaga_auth_session_operations_total",
			Help: "Session store operations by operation and outcome",
		}, []string{"op", "outcome"}),
		RevocationCheckDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "siaga_auth_revocation_check_duration_ms",
			Help:    "Latency of session tombstone checks in milliseconds",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 25, 100, 500},
		}),
		LoginAttempts: f.NewCounterVec(prometheus.CounterOpts{
			Name: "siaga_auth_login_attempts_total",
			Help: "Login attempts by outcome",
		}, []string{"outcome"}),
		HashDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "siaga_auth_password_hash_duration_seconds",
			Help:    "Time spent in argon2id, by operation",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2},
		}, []string{"op"}),
		HashPoolWaiting: f.NewGauge(prometheus.GaugeOpts{
			Name: "siaga_auth_hash_pool_waiting",
			Help: "Requests waiting for a hashing slot",
		}),
	}
}

func (m *Metrics) IncTokensIssued(kind string) {
	if m == nil {
		return
	}
	m.TokensIssued.WithLabelValues(kind).Inc()
}

func (m *Metrics) IncTokenRejection(reason string) {
	if m == nil {
		return
	}
	m.TokenRejections.WithLabelValues(reason).Inc()
}

func (m *Metrics) IncSessionOp(op, outcome string) {
	if m == nil {
		return
	}
	m.SessionOps.WithLabelValues(op, outcome).Inc()
}

func (m *Metrics) ObserveRevocationCheck(start time.Time) {
	if m == nil {
		return
	}
	m.RevocationCheckDuration.Observe(float64(time.Since(start).Microseconds()) / 1000.0)
}

func (m *Metrics) IncLoginAttempt(outcome string) {
	if m == nil {
		return
	}
	m.LoginAttempts.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObserveHash(op string, start time.Time) {
	if m == nil {
		return
	}
	m.HashDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
}

func (m *Metrics) AddHashWaiting(delta float64) {
	if m == nil {
		return
	}
	m.HashPoolWaiting.Add(delta)
}
