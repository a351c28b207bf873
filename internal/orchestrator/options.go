package orchestrator

import (
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/ShayCichocki/sprintguardian/internal/orchestrator/policy"
)

// Option configures an Orchestrator. Use With* functions to create Options.
type Option func(*orchestratorOptions)

// orchestratorOptions holds all optional configuration.
type orchestratorOptions struct {
	policyConfig *policy.Config
	logger       *DebugLogger
	sinks        []EventSink
	tracer       trace.Tracer
	now          func() time.Time
	newRunID     func() string
}

// WithPolicy sets the policy configuration.
func WithPolicy(p *policy.Config) Option {
	return func(o *orchestratorOptions) { o.policyConfig = p }
}

// WithLogger sets the debug logger. Every event is also written to it.
func WithLogger(l *DebugLogger) Option {
	return func(o *orchestratorOptions) { o.logger = l }
}

// WithEventSink adds a receiver for run events. May be given more than once.
func WithEventSink(s EventSink) Option {
	return func(o *orchestratorOptions) {
		if s != nil {
			o.sinks = append(o.sinks, s)
		}
	}
}

// WithTracer sets the tracer used for run and stage spans.
func WithTracer(t trace.Tracer) Option {
	return func(o *orchestratorOptions) { o.tracer = t }
}

// WithClock overrides time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(o *orchestratorOptions) { o.now = now }
}

// WithRunIDGenerator overrides how run IDs are created, for tests.
func WithRunIDGenerator(fn func() string) Option {
	return func(o *orchestratorOptions) { o.newRunID = fn }
}
