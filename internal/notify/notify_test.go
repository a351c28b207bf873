package notify

import (
	"context"
	"errors"
	"testing"

	"github.com/ShayCichocki/sprintguardian/pkg/models"
)

type published struct {
	subject string
	data    []byte
}

type mockConn struct {
	msgs   []published
	err    error
	closed bool
}

func (m *mockConn) Publish(subject string, data []byte) error {
	if m.err != nil {
		return m.err
	}
	m.msgs = append(m.msgs, published{subject, data})
	return nil
}

func (m *mockConn) Close() { m.closed = true }

func TestEventJSON(t *testing.T) {
	ticket := models.FinalTicket{Summary: "Login page", Labels: []string{"BLOCKED"}}
	event := NewCreated("run-1", "login_page", ticket)

	parsed, err := ParseEvent(event.JSON())
	if err != nil {
		t.Fatalf("ParseEvent: %v", err)
	}
	if parsed.Type != EventCreated || parsed.Slug != "login_page" || parsed.RunID != "run-1" {
		t.Errorf("parsed = %+v", parsed)
	}
	if len(parsed.Labels) != 1 || parsed.Labels[0] != "BLOCKED" {
		t.Errorf("Labels = %v", parsed.Labels)
	}
	if parsed.At.IsZero() {
		t.Error("At should be set")
	}
	if parsed.ID == "" || parsed.ID != event.ID {
		t.Errorf("ID = %q, want %q", parsed.ID, event.ID)
	}
	if other := NewDeleted("login_page"); other.ID == event.ID {
		t.Error("event IDs must be unique")
	}
}

func TestNATSPublisher_Subjects(t *testing.T) {
	conn := &mockConn{}
	p := newNATSPublisher(conn, "")

	ctx := context.Background()
	if err := p.Publish(ctx, NewCreated("r", "a", models.FinalTicket{Summary: "A"})); err != nil {
		t.Fatal(err)
	}
	if err := p.Publish(ctx, NewDeleted("a")); err != nil {
		t.Fatal(err)
	}

	want := []string{"guardian.tickets.created", "guardian.tickets.deleted"}
	if len(conn.msgs) != len(want) {
		t.Fatalf("published %d messages, want %d", len(conn.msgs), len(want))
	}
	for i, w := range want {
		if conn.msgs[i].subject != w {
			t.Errorf("subject[%d] = %q, want %q", i, conn.msgs[i].subject, w)
		}
	}

	p.Close()
	if !conn.closed {
		t.Error("Close should close the connection")
	}
}

func TestNATSPublisher_Errors(t *testing.T) {
	conn := &mockConn{err: errors.New("nats: connection closed")}
	p := newNATSPublisher(conn, "team.tickets")

	if err := p.Publish(context.Background(), NewDeleted("a")); err == nil {
		t.Error("expected publish error")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	conn.err = nil
	if err := p.Publish(ctx, NewDeleted("a")); !errors.Is(err, context.Canceled) {
		t.Errorf("Publish with cancelled ctx = %v", err)
	}
	if len(conn.msgs) != 0 {
		t.Error("nothing should be published")
	}
	if got := p.Subject(EventCreated); got != "team.tickets.created" {
		t.Errorf("Subject = %q", got)
	}
}

func TestNew_NopWithoutURL(t *testing.T) {
	p, err := New("", "")
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := p.(Nop); !ok {
		t.Errorf("New(\"\") = %T, want Nop", p)
	}
	if err := p.Publish(context.Background(), NewDeleted("x")); err != nil {
		t.Error(err)
	}
}

func TestMulti(t *testing.T) {
	ok := &mockConn{}
	bad := &mockConn{err: errors.New("down")}
	m := Multi{newNATSPublisher(bad, "a"), newNATSPublisher(ok, "b")}

	if err := m.Publish(context.Background(), NewDeleted("x")); err == nil {
		t.Error("expected joined error")
	}
	if len(ok.msgs) != 1 {
		t.Error("healthy publisher should still receive the event")
	}
	if err := m.Close(); err != nil {
		t.Errorf("Close = %v", err)
	}
	if !ok.closed || !bad.closed {
		t.Error("Close should close every publisher")
	}
}
