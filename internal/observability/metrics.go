// Package observability holds the service's Prometheus instruments.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups all Prometheus instruments used by the service.
type Metrics struct {
	SessionsStarted   prometheus.Counter
	SessionsCompleted *prometheus.CounterVec
	Verdicts          *prometheus.CounterVec
	ReportsGenerated  prometheus.Counter
	ReportFailures    prometheus.Counter
	SweepRuns         *prometheus.CounterVec
	LLMLatency        *prometheus.HistogramVec
}

// NewMetrics registers the instruments with reg. A nil reg uses the default
// registerer; tests pass their own registry to avoid duplicate registration.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		SessionsStarted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_started_total",
			Help:      "Tutoring sessions started.",
		}),
		SessionsCompleted: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_completed_total",
			Help:      "Tutoring sessions completed, by cause.",
		}, []string{"cause"}),
		Verdicts: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "answer_verdicts_total",
			Help:      "Answer evaluations by outcome.",
		}, []string{"outcome"}),
		ReportsGenerated: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reports_generated_total",
			Help:      "Feedback reports persisted.",
		}),
		ReportFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "report_failures_total",
			Help:      "Report pipeline invocations that failed.",
		}),
		SweepRuns: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sweep_runs_total",
			Help:      "Reconciliation sweep runs, by kind.",
		}, []string{"kind"}),
		LLMLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "llm_request_seconds",
			Help:      "LLM request latency in seconds, by purpose.",
			Buckets:   []float64{0.25, 0.5, 1, 2, 4, 8, 16, 32},
		}, []string{"purpose"}),
	}
}

// MetricsHandler serves the default registry's metrics.
func MetricsHandler() http.Handler {
	return promhttp.Handler()
}
