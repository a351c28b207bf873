// Package telemetry exports Prometheus metrics and OpenTelemetry traces
// for pipeline runs and generation calls.
package telemetry

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ShayCichocki/sprintguardian/internal/api"
	"github.com/ShayCichocki/sprintguardian/internal/notify"
	"github.com/ShayCichocki/sprintguardian/internal/orchestrator"
)

const namespace = "guardian"

// Metrics records generation and pipeline metrics. It implements
// api.Observer, orchestrator.EventSink and notify.Publisher.
type Metrics struct {
	registry *prometheus.Registry

	GenerationCalls    *prometheus.CounterVec
	GenerationAttempts *prometheus.CounterVec
	GenerationLatency  *prometheus.HistogramVec
	Tokens             *prometheus.CounterVec

	Runs           *prometheus.CounterVec
	RunDuration    prometheus.Histogram
	StageDuration  *prometheus.HistogramVec
	StageFailures  *prometheus.CounterVec
	PolicyRepairs  prometheus.Counter
	TicketsStored  prometheus.Counter
	TicketsDeleted prometheus.Counter
}

// NewMetrics registers every metric on a fresh registry, together with the
// Go runtime and process collectors.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,

		GenerationCalls: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "generation",
				Name:      "calls_total",
				Help:      "Total number of generation calls by outcome",
			},
			[]string{"backend", "schema", "outcome"},
		),
		GenerationAttempts: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "generation",
				Name:      "attempts_total",
				Help:      "Total number of backend attempts, including retries",
			},
			[]string{"backend", "schema"},
		),
		GenerationLatency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "generation",
				Name:      "latency_seconds",
				Help:      "Generation call latency in seconds",
				Buckets:   prometheus.ExponentialBuckets(0.25, 2, 10), // 250ms to ~2m
			},
			[]string{"schema"},
		),
		Tokens: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "generation",
				Name:      "tokens_total",
				Help:      "Tokens consumed by direction",
			},
			[]string{"backend", "direction"},
		),

		Runs: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "pipeline",
				Name:      "runs_total",
				Help:      "Total number of pipeline runs by outcome",
			},
			[]string{"outcome"},
		),
		RunDuration: f.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "pipeline",
				Name:      "run_duration_seconds",
				Help:      "End-to-end run duration in seconds",
				Buckets:   prometheus.ExponentialBuckets(1, 2, 9), // 1s to ~4m
			},
		),
		StageDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "pipeline",
				Name:      "stage_duration_seconds",
				Help:      "Stage duration in seconds",
				Buckets:   prometheus.ExponentialBuckets(0.25, 2, 10),
			},
			[]string{"stage"},
		),
		StageFailures: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "pipeline",
				Name:      "stage_failures_total",
				Help:      "Total number of failed stages",
			},
			[]string{"stage"},
		),
		PolicyRepairs: f.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "pipeline",
				Name:      "policy_repairs_total",
				Help:      "Gatekeeper rule violations repaired in enforce mode",
			},
		),
		TicketsStored: f.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "tickets",
				Name:      "stored_total",
				Help:      "Tickets written to the store",
			},
		),
		TicketsDeleted: f.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "tickets",
				Name:      "deleted_total",
				Help:      "Tickets removed from the store",
			},
		),
	}
}

// Handler serves the metrics in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveGeneration implements api.Observer.
func (m *Metrics) ObserveGeneration(backend, schema string, kind api.FailureKind, attempts int, d time.Duration, inputTokens, outputTokens int64) {
	outcome := "ok"
	if kind != "" {
		outcome = string(kind)
	}
	m.GenerationCalls.WithLabelValues(backend, schema, outcome).Inc()
	m.GenerationAttempts.WithLabelValues(backend, schema).Add(float64(attempts))
	m.GenerationLatency.WithLabelValues(schema).Observe(d.Seconds())
	m.Tokens.WithLabelValues(backend, "input").Add(float64(inputTokens))
	m.Tokens.WithLabelValues(backend, "output").Add(float64(outputTokens))
}

// Emit implements orchestrator.EventSink.
func (m *Metrics) Emit(e orchestrator.Event) {
	switch e.Type {
	case orchestrator.EventStageCompleted:
		m.StageDuration.WithLabelValues(string(e.Stage)).Observe(e.Duration.Seconds())
	case orchestrator.EventStageFailed:
		m.StageDuration.WithLabelValues(string(e.Stage)).Observe(e.Duration.Seconds())
		m.StageFailures.WithLabelValues(string(e.Stage)).Inc()
	case orchestrator.EventPolicyRepaired:
		m.PolicyRepairs.Inc()
	case orchestrator.EventRunCompleted:
		m.Runs.WithLabelValues("succeeded").Inc()
		m.RunDuration.Observe(e.Duration.Seconds())
	case orchestrator.EventRunFailed:
		m.Runs.WithLabelValues("failed").Inc()
		m.RunDuration.Observe(e.Duration.Seconds())
	}
}

// Publish implements notify.Publisher by counting ticket events.
func (m *Metrics) Publish(_ context.Context, e *notify.TicketEvent) error {
	switch e.Type {
	case notify.EventCreated:
		m.TicketsStored.Inc()
	case notify.EventDeleted:
		m.TicketsDeleted.Inc()
	}
	return nil
}

// Close implements notify.Publisher.
func (m *Metrics) Close() error { return nil }

var (
	_ api.Observer           = (*Metrics)(nil)
	_ orchestrator.EventSink = (*Metrics)(nil)
	_ notify.Publisher       = (*Metrics)(nil)
)
