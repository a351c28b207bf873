package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
)

// DefaultSubject is the base subject when none is configured.
const DefaultSubject = "guardian.tickets"

// natsConn is the part of *nats.Conn the publisher needs.
type natsConn interface {
	Publish(subject string, data []byte) error
	Close()
}

// NATSPublisher publishes events to <subject>.<type>.
type NATSPublisher struct {
	conn    natsConn
	subject string
}

// NATSConfig configures the NATS connection.
type NATSConfig struct {
	// URL is the NATS server URL
	URL string

	// Subject is the base subject for events
	Subject string

	// ConnectTimeout is the connection timeout
	ConnectTimeout time.Duration
}

// NewNATSPublisher connects to NATS and returns a publisher.
func NewNATSPublisher(cfg NATSConfig) (*NATSPublisher, error) {
	if cfg.URL == "" {
		cfg.URL = nats.DefaultURL
	}
	if cfg.ConnectTimeout == 0 {
		cfg.ConnectTimeout = 5 * time.Second
	}

	conn, err := nats.Connect(cfg.URL,
		nats.Name("sprint-guardian"),
		nats.Timeout(cfg.ConnectTimeout),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}
	return newNATSPublisher(conn, cfg.Subject), nil
}

func newNATSPublisher(conn natsConn, subject string) *NATSPublisher {
	if subject == "" {
		subject = DefaultSubject
	}
	return &NATSPublisher{conn: conn, subject: subject}
}

// Subject returns the subject an event of the given type is published on.
func (p *NATSPublisher) Subject(t EventType) string {
	return fmt.Sprintf("%s.%s", p.subject, t)
}

// Publish publishes an event to NATS.
func (p *NATSPublisher) Publish(ctx context.Context, event *TicketEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := p.conn.Publish(p.Subject(event.Type), event.JSON()); err != nil {
		return fmt.Errorf("publish %s: %w", event.Type, err)
	}
	return nil
}

// Close closes the NATS connection.
func (p *NATSPublisher) Close() error {
	p.conn.Close()
	return nil
}

// New returns a NATS publisher when url is set and Nop otherwise.
func New(url, subject string) (Publisher, error) {
	if url == "" {
		return Nop{}, nil
	}
	return NewNATSPublisher(NATSConfig{URL: url, Subject: subject})
}
