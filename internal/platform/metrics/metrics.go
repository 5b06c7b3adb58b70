package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the process-wide Prometheus metrics that do not belong to a
// single feature package: collaborator breakers, retries and background jobs.
type Metrics struct {
	// Breaker state per collaborator: 0 closed, 1 open, 2 half-open
	BreakerState *prometheus.GaugeVec

	// Breaker transitions by collaborator and target state
	BreakerTransitions *prometheus.CounterVec

	// Retries of collaborator calls (attempts after the first)
	RetryAttempts *prometheus.CounterVec

	// Jobs currently in each status
	Jobs *prometheus.GaugeVec

	// Requests refused by the rate limiter
	RateLimited prometheus.Counter
}

// New creates and registers all Prometheus metrics on the default registry.
func New() *Metrics {
	return NewWith(prometheus.DefaultRegisterer)
}

func NewWith(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		BreakerState: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "docverify_breaker_state",
			Help: "Circuit breaker state per collaborator (0 closed, 1 open, 2 half-open)",
		}, []string{"name"}),
		BreakerTransitions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "docverify_breaker_transitions_total",
			Help: "Circuit breaker state transitions by collaborator and target state",
		}, []string{"name", "to"}),
		RetryAttempts: f.NewCounterVec(prometheus.CounterOpts{
			Name: "docverify_retry_attempts_total",
			Help: "Collaborator call retries by collaborator",
		}, []string{"name"}),
		Jobs: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "docverify_jobs",
			Help: "Background verification jobs by status",
		}, []string{"status"}),
		RateLimited: f.NewCounter(prometheus.CounterOpts{
			Name: "docverify_rate_limited_total",
			Help: "API requests refused by the rate limiter",
		}),
	}
}

// ObserveBreaker records a transition. state is the numeric value of
// circuit.State.
func (m *Metrics) ObserveBreaker(name, to string, state int) {
	if m == nil {
		return
	}
	m.BreakerState.WithLabelValues(name).Set(float64(state))
	m.BreakerTransitions.WithLabelValues(name, to).Inc()
}

func (m *Metrics) IncrementRetry(name string) {
	if m != nil {
		m.RetryAttempts.WithLabelValues(name).Inc()
	}
}

// MoveJob shifts one job from one status to another. An empty from only
// increments.
func (m *Metrics) MoveJob(from, to string) {
	if m == nil {
		return
	}
	if from != "" {
		m.Jobs.WithLabelValues(from).Dec()
	}
	m.Jobs.WithLabelValues(to).Inc()
}

func (m *Metrics) IncrementRateLimited() {
	if m != nil {
		m.RateLimited.Inc()
	}
}
