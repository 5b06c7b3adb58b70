package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the verification pipeline.
type Metrics struct {
	// Stage latencies by stage and outcome ("continue", "abort", "panic")
	StageLatency *prometheus.HistogramVec

	// Run outcomes: "pass", "fail", "abort"
	RunOutcome *prometheus.CounterVec

	// Error codes recorded on runs
	ErrorCodes *prometheus.CounterVec

	// Whole-run latency
	RunLatency prometheus.Histogram

	// Artifact write failures
	ArtifactWriteFailures prometheus.Counter
}

// New creates a Metrics instance registered on the default registry.
func New() *Metrics {
	return NewWith(prometheus.DefaultRegisterer)
}

// NewWith registers the metrics on reg. Tests pass a fresh registry so
// repeated construction does not panic.
func NewWith(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		StageLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "docverify_stage_duration_seconds",
			Help:    "Duration of pipeline stages by stage and outcome",
			Buckets: []float64{0.001, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"stage", "outcome"}),

		RunOutcome: f.NewCounterVec(prometheus.CounterOpts{
			Name: "docverify_runs_total",
			Help: "Completed verification runs by outcome",
		}, []string{"outcome"}),

		ErrorCodes: f.NewCounterVec(prometheus.CounterOpts{
			Name: "docverify_run_errors_total",
			Help: "Errors recorded on verification runs by code",
		}, []string{"code"}),

		RunLatency: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "docverify_run_duration_seconds",
			Help:    "Duration of a full verification run including artifact write",
			Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}),

		ArtifactWriteFailures: f.NewCounter(prometheus.CounterOpts{
			Name: "docverify_artifact_write_failures_total",
			Help: "Final artifacts that could not be stored",
		}),
	}
}

func (m *Metrics) ObserveStage(stage, outcome string, d time.Duration) {
	if m != nil {
		m.StageLatency.WithLabelValues(stage, outcome).Observe(d.Seconds())
	}
}

func (m *Metrics) IncrementOutcome(outcome string) {
	if m != nil {
		m.RunOutcome.WithLabelValues(outcome).Inc()
	}
}

func (m *Metrics) IncrementErrorCode(code string) {
	if m != nil {
		m.ErrorCodes.WithLabelValues(code).Inc()
	}
}

func (m *Metrics) ObserveRun(d time.Duration) {
	if m != nil {
		m.RunLatency.Observe(d.Seconds())
	}
}

func (m *Metrics) IncrementArtifactWriteFailure() {
	if m != nil {
		m.ArtifactWriteFailures.Inc()
	}
}
