// Package notify publishes ticket lifecycle events to other systems.
package notify

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/ShayCichocki/sprintguardian/pkg/models"
)

// EventType defines the kind of ticket event.
type EventType string

const (
	// EventCreated is sent when a ticket is saved.
	EventCreated EventType = "created"

	// EventDeleted is sent when a ticket is removed.
	EventDeleted EventType = "deleted"
)

// TicketEvent is published for every ticket change.
type TicketEvent struct {
	// ID is unique per event; consumers use it to drop redeliveries.
	ID      string    `json:"id"`
	Type    EventType `json:"type"`
	Slug    string    `json:"slug"`
	Summary string    `json:"summary,omitempty"`
	Labels  []string  `json:"labels,omitempty"`
	// RunID is the pipeline run that produced the ticket, if any.
	RunID string    `json:"run_id,omitempty"`
	At    time.Time `json:"at"`
}

// NewCreated builds the event for a freshly saved ticket.
func NewCreated(runID, slug string, t models.FinalTicket) *TicketEvent {
	return &TicketEvent{
		ID:      ulid.Make().String(),
		Type:    EventCreated,
		Slug:    slug,
		Summary: t.Summary,
		Labels:  t.Labels,
		RunID:   runID,
		At:      time.Now().UTC(),
	}
}

// NewDeleted builds the event for a removed ticket.
func NewDeleted(slug string) *TicketEvent {
	return &TicketEvent{ID: ulid.Make().String(), Type: EventDeleted, Slug: slug, At: time.Now().UTC()}
}

// JSON returns the event as JSON.
func (e *TicketEvent) JSON() []byte {
	data, _ := json.Marshal(e)
	return data
}

// ParseEvent parses an event from JSON.
func ParseEvent(data []byte) (*TicketEvent, error) {
	var e TicketEvent
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, err
	}
	return &e, nil
}

// Publisher delivers ticket events.
type Publisher interface {
	Publish(ctx context.Context, event *TicketEvent) error
	Close() error
}

// Nop discards every event. It is used when no broker is configured.
type Nop struct{}

// Publish implements Publisher.
func (Nop) Publish(context.Context, *TicketEvent) error { return nil }

// Close implements Publisher.
func (Nop) Close() error { return nil }

// Multi publishes every event to each publisher in turn and joins their errors.
type Multi []Publisher

// Publish implements Publisher.
func (m Multi) Publish(ctx context.Context, event *TicketEvent) error {
	var errs []error
	for _, p := range m {
		if err := p.Publish(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close implements Publisher.
func (m Multi) Close() error {
	var errs []error
	for _, p := range m {
		if err := p.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
