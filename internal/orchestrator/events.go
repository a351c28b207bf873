package orchestrator

import (
	"time"
)

// EventType represents the type of orchestrator event.
type EventType string

const (
	// EventRunStarted is emitted once a run has an ID and accepted input.
	EventRunStarted EventType = "run_started"
	// EventStageStarted indicates a stage has started.
	EventStageStarted EventType = "stage_started"
	// EventStageCompleted indicates a stage completed successfully.
	EventStageCompleted EventType = "stage_completed"
	// EventStageFailed indicates a stage failed; the run fails with it.
	EventStageFailed EventType = "stage_failed"
	// EventPolicyRepaired indicates the gatekeeper ticket was repaired.
	EventPolicyRepaired EventType = "policy_repaired"
	// EventRunCompleted indicates the run produced a ticket.
	EventRunCompleted EventType = "run_completed"
	// EventRunFailed indicates the run produced no ticket.
	EventRunFailed EventType = "run_failed"
)

// Event represents an event emitted by the orchestrator.
// These events drive logging, metrics and the progress view.
type Event struct {
	Type  EventType
	RunID string
	// Stage is the stage the event relates to, if any.
	Stage   State
	Message string
	// Error contains error details for failure events.
	Error     error
	Timestamp time.Time
	// Duration is the stage or run duration for completion events.
	Duration time.Duration
}

// EventSink receives orchestrator events. Implementations must not block
// for long since events are delivered on the run's goroutine.
type EventSink interface {
	Emit(Event)
}

// EventSinkFunc adapts a function to an EventSink.
type EventSinkFunc func(Event)

// Emit implements EventSink.
func (f EventSinkFunc) Emit(e Event) {
	f(e)
}
