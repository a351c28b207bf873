package api

import (
	"errors"
	"fmt"
)

// ErrConfiguration is returned at construction time when a backend cannot
// be built from the supplied settings.
var ErrConfiguration = errors.New("backend configuration error")

// FailureKind classifies why a generation call did not produce a record.
type FailureKind string

const (
	// KindSchemaViolation means the backend answered but the output was
	// missing, malformed, or failed validation.
	KindSchemaViolation FailureKind = "schema_violation"
	// KindTransport means the backend could not be reached or returned an error.
	KindTransport FailureKind = "transport"
	// KindTimeout means the per-call deadline expired.
	KindTimeout FailureKind = "timeout"
	// KindInput means the input could not be rendered into a prompt.
	KindInput FailureKind = "input"
	// KindConfiguration means the backend rejected the credentials or model.
	KindConfiguration FailureKind = "configuration"
)

// Retryable reports whether another attempt may succeed.
func (k FailureKind) Retryable() bool {
	return k == KindTransport || k == KindTimeout
}

// GenerationFailure is the error returned by every failed Invoke.
type GenerationFailure struct {
	Kind     FailureKind
	Backend  string
	Schema   string
	Attempts int
	// Raw holds the backend output for schema violations.
	Raw string
	Err error
}

func (e *GenerationFailure) Error() string {
	msg := "generate " + e.Schema
	if e.Backend != "" {
		msg += " via " + e.Backend
	}
	msg += ": " + string(e.Kind)
	if e.Attempts > 1 {
		msg += fmt.Sprintf(" after %d attempts", e.Attempts)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *GenerationFailure) Unwrap() error {
	return e.Err
}

func kindOf(err error) (FailureKind, bool) {
	var gf *GenerationFailure
	if errors.As(err, &gf) {
		return gf.Kind, true
	}
	return "", false
}

// IsSchemaViolation reports whether err is a schema violation.
func IsSchemaViolation(err error) bool {
	k, ok := kindOf(err)
	return ok && k == KindSchemaViolation
}

// IsTimeout reports whether err is a generation timeout.
func IsTimeout(err error) bool {
	k, ok := kindOf(err)
	return ok && k == KindTimeout
}

// IsTransport reports whether err is a transport failure.
func IsTransport(err error) bool {
	k, ok := kindOf(err)
	return ok && k == KindTransport
}

// StatusError is returned by backends for non-success HTTP responses.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("backend returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("backend returned status %d: %s", e.StatusCode, truncate(e.Body, 200))
}

// errNoStructuredOutput is returned by a backend that answered without the
// forced structured output.
var errNoStructuredOutput = errors.New("response contained no structured output")
