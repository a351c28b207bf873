package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"github.com/ShayCichocki/sprintguardian/pkg/models"
)

// Request is one schema-constrained generation call.
type Request struct {
	// Instruction is the role's system instruction.
	Instruction string
	Schema      models.Schema
	// Input is rendered into the prompt by RenderPrompt.
	Input any
	// Decode validates the structured output. A non-nil error is reported
	// as a schema violation and is never retried.
	Decode func(raw json.RawMessage) error
}

// Invoker performs generation calls. Adapter is the production implementation.
type Invoker interface {
	Invoke(ctx context.Context, req Request) (json.RawMessage, error)
}

// Observer receives one notification per finished Invoke.
type Observer interface {
	ObserveGeneration(backend, schema string, kind FailureKind, attempts int, d time.Duration, inputTokens, outputTokens int64)
}

// Options tunes an Adapter.
type Options struct {
	// Timeout bounds each attempt. Zero means DefaultTimeout.
	Timeout   time.Duration
	MaxTokens int64
	Retry     RetryConfig
	// RateLimit is the sustained calls per second; zero disables limiting.
	RateLimit float64
	Burst     int
	Observer  Observer
	Tracer    trace.Tracer
}

// DefaultTimeout bounds a single backend call when Options.Timeout is zero.
const DefaultTimeout = 60 * time.Second

// Adapter turns a Backend into validated, structured generation calls with
// timeouts, retries and rate limiting. It is safe for concurrent use.
type Adapter struct {
	backend Backend
	opts    Options
	limiter *rate.Limiter
	tracker *TokenTracker
	tracer  trace.Tracer
}

// NewAdapter wraps backend.
func NewAdapter(backend Backend, opts Options) *Adapter {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = defaultMaxTokens
	}
	opts.Retry = opts.Retry.normalized()

	limit := rate.Inf
	burst := opts.Burst
	if opts.RateLimit > 0 {
		limit = rate.Limit(opts.RateLimit)
		if burst < 1 {
			burst = 1
		}
	}

	tracer := opts.Tracer
	if tracer == nil {
		tracer = otel.Tracer("github.com/ShayCichocki/sprintguardian/internal/api")
	}

	return &Adapter{
		backend: backend,
		opts:    opts,
		limiter: rate.NewLimiter(limit, burst),
		tracker: NewTokenTracker(),
		tracer:  tracer,
	}
}

// Backend returns the wrapped backend.
func (a *Adapter) Backend() Backend {
	return a.backend
}

// Tracker returns the token usage shared by every call through this adapter.
func (a *Adapter) Tracker() *TokenTracker {
	return a.tracker
}

// Invoke renders the input, calls the backend and validates the result.
// Every error it returns is a *GenerationFailure.
func (a *Adapter) Invoke(ctx context.Context, req Request) (json.RawMessage, error) {
	start := time.Now()
	ctx, span := a.tracer.Start(ctx, "generate "+req.Schema.Name,
		trace.WithAttributes(
			attribute.String("backend", a.backend.Name()),
			attribute.String("schema", req.Schema.Name),
		))
	defer span.End()

	raw, attempts, usage, err := a.invoke(ctx, req)

	var kind FailureKind
	if err != nil {
		kind = err.Kind
		span.RecordError(err)
		span.SetStatus(codes.Error, string(kind))
	}
	span.SetAttributes(attribute.Int("attempts", attempts))
	if a.opts.Observer != nil {
		a.opts.Observer.ObserveGeneration(a.backend.Name(), req.Schema.Name, kind, attempts, time.Since(start), usage.in, usage.out)
	}
	if err != nil {
		return nil, err
	}
	return raw, nil
}

type tokenUsage struct {
	in, out int64
}

func (a *Adapter) invoke(ctx context.Context, req Request) (json.RawMessage, int, tokenUsage, *GenerationFailure) {
	var usage tokenUsage
	fail := func(kind FailureKind, attempts int, raw string, err error) *GenerationFailure {
		return &GenerationFailure{
			Kind:     kind,
			Backend:  a.backend.Name(),
			Schema:   req.Schema.Name,
			Attempts: attempts,
			Raw:      raw,
			Err:      err,
		}
	}

	prompt, err := RenderPrompt(req.Input)
	if err != nil {
		return nil, 0, usage, fail(KindInput, 0, "", err)
	}

	genReq := GenerateRequest{
		SystemInstruction: req.Instruction,
		Prompt:            prompt,
		Schema:            req.Schema,
		MaxTokens:         a.opts.MaxTokens,
	}

	retry := a.opts.Retry
	var lastErr error
	var lastKind FailureKind
	for attempt := 1; attempt <= retry.MaxAttempts; attempt++ {
		if err := a.limiter.Wait(ctx); err != nil {
			return nil, attempt - 1, usage, fail(contextKind(ctx), attempt-1, "", err)
		}

		resp, err := a.call(ctx, genReq)
		if resp != nil {
			usage.in += resp.InputTokens
			usage.out += resp.OutputTokens
			a.tracker.Add(resp.InputTokens, resp.OutputTokens)
		}

		if err == nil {
			if !json.Valid(resp.Raw) {
				return nil, attempt, usage, fail(KindSchemaViolation, attempt, string(resp.Raw), errors.New("structured output is not valid JSON"))
			}
			if req.Decode != nil {
				if derr := req.Decode(resp.Raw); derr != nil {
					return nil, attempt, usage, fail(KindSchemaViolation, attempt, string(resp.Raw), derr)
				}
			}
			return resp.Raw, attempt, usage, nil
		}

		kind, retryable := classify(ctx, err)
		if kind == KindSchemaViolation {
			raw := ""
			if resp != nil {
				raw = string(resp.Raw)
			}
			return nil, attempt, usage, fail(kind, attempt, raw, err)
		}
		lastErr, lastKind = err, kind
		if !retryable || attempt == retry.MaxAttempts || ctx.Err() != nil {
			return nil, attempt, usage, fail(kind, attempt, "", err)
		}

		delay := retry.backoff(attempt - 1)
		log.Printf("[api] %s %s attempt %d/%d failed (%s): %v; retrying in %s",
			a.backend.Name(), req.Schema.Name, attempt, retry.MaxAttempts, kind, err, delay.Round(time.Millisecond))
		if err := sleep(ctx, delay); err != nil {
			return nil, attempt, usage, fail(lastKind, attempt, "", lastErr)
		}
	}
	return nil, retry.MaxAttempts, usage, fail(lastKind, retry.MaxAttempts, "", lastErr)
}

// call runs one attempt under the per-call timeout.
func (a *Adapter) call(ctx context.Context, req GenerateRequest) (*GenerateResponse, error) {
	callCtx, cancel := context.WithTimeout(ctx, a.opts.Timeout)
	defer cancel()

	resp, err := a.backend.Generate(callCtx, req)
	if err != nil && callCtx.Err() == context.DeadlineExceeded && ctx.Err() == nil {
		return resp, fmt.Errorf("no response within %s: %w", a.opts.Timeout, context.DeadlineExceeded)
	}
	return resp, err
}

// classify maps a backend error to a failure kind and whether another
// attempt may succeed.
func classify(ctx context.Context, err error) (FailureKind, bool) {
	if errors.Is(err, errNoStructuredOutput) {
		return KindSchemaViolation, false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout, ctx.Err() == nil
	}
	if errors.Is(err, context.Canceled) {
		return KindTransport, false
	}

	status := 0
	var apiErr *anthropic.Error
	var statusErr *StatusError
	switch {
	case errors.As(err, &apiErr):
		status = apiErr.StatusCode
	case errors.As(err, &statusErr):
		status = statusErr.StatusCode
	}

	switch {
	case status == 0:
		return KindTransport, true
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return KindConfiguration, false
	case status == http.StatusTooManyRequests || status == http.StatusRequestTimeout || status >= 500:
		return KindTransport, true
	default:
		return KindTransport, false
	}
}

func contextKind(ctx context.Context) FailureKind {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return KindTimeout
	}
	return KindTransport
}

// InvokeAs performs a call whose output must decode into record type T.
func InvokeAs[T models.Record](ctx context.Context, inv Invoker, instruction string, input any) (T, error) {
	var out T
	_, err := inv.Invoke(ctx, Request{
		Instruction: instruction,
		Schema:      models.SchemaFor[T](),
		Input:       input,
		Decode: func(raw json.RawMessage) error {
			v, err := models.Decode[T](raw)
			if err != nil {
				return err
			}
			out = v
			return nil
		},
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return out, nil
}

// RenderPrompt serialises an agent input into a single prompt. Strings are
// used verbatim; anything else is rendered as indented JSON.
func RenderPrompt(input any) (string, error) {
	switch v := input.(type) {
	case nil:
		return "", errors.New("input is nil")
	case string:
		return v, nil
	case []byte:
		return string(v), nil
	}
	data, err := json.MarshalIndent(input, "", "  ")
	if err != nil {
		return "", fmt.Errorf("render %T: %w", input, err)
	}
	return string(data), nil
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
