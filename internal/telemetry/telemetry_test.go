package telemetry

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/ShayCichocki/sprintguardian/internal/api"
	"github.com/ShayCichocki/sprintguardian/internal/notify"
	"github.com/ShayCichocki/sprintguardian/internal/orchestrator"
	"github.com/ShayCichocki/sprintguardian/pkg/models"
)

func TestObserveGeneration(t *testing.T) {
	m := NewMetrics()

	m.ObserveGeneration("anthropic", "user_story", "", 1, time.Second, 120, 40)
	m.ObserveGeneration("anthropic", "user_story", api.KindTimeout, 3, 2*time.Second, 0, 0)

	if got := testutil.ToFloat64(m.GenerationCalls.WithLabelValues("anthropic", "user_story", "ok")); got != 1 {
		t.Errorf("ok calls = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.GenerationCalls.WithLabelValues("anthropic", "user_story", "timeout")); got != 1 {
		t.Errorf("timeout calls = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.GenerationAttempts.WithLabelValues("anthropic", "user_story")); got != 4 {
		t.Errorf("attempts = %v, want 4", got)
	}
	if got := testutil.ToFloat64(m.Tokens.WithLabelValues("anthropic", "input")); got != 120 {
		t.Errorf("input tokens = %v, want 120", got)
	}
}

func TestEmit(t *testing.T) {
	m := NewMetrics()
	events := []orchestrator.Event{
		{Type: orchestrator.EventStageCompleted, Stage: orchestrator.StatePO, Duration: time.Second},
		{Type: orchestrator.EventStageFailed, Stage: orchestrator.StateSpecialist, Duration: time.Second},
		{Type: orchestrator.EventPolicyRepaired, Stage: orchestrator.StateGatekeeper},
		{Type: orchestrator.EventRunFailed, Duration: 3 * time.Second},
		{Type: orchestrator.EventRunCompleted, Duration: 5 * time.Second},
		{Type: orchestrator.EventRunCompleted, Duration: 5 * time.Second},
	}
	for _, e := range events {
		m.Emit(e)
	}

	if got := testutil.ToFloat64(m.Runs.WithLabelValues("succeeded")); got != 2 {
		t.Errorf("succeeded runs = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.Runs.WithLabelValues("failed")); got != 1 {
		t.Errorf("failed runs = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.StageFailures.WithLabelValues("specialists")); got != 1 {
		t.Errorf("stage failures = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.PolicyRepairs); got != 1 {
		t.Errorf("policy repairs = %v, want 1", got)
	}
}

func TestPublishCountsTickets(t *testing.T) {
	m := NewMetrics()
	ctx := context.Background()
	m.Publish(ctx, notify.NewCreated("r", "a", models.FinalTicket{Summary: "A"}))
	m.Publish(ctx, notify.NewCreated("r", "b", models.FinalTicket{Summary: "B"}))
	m.Publish(ctx, notify.NewDeleted("a"))

	if got := testutil.ToFloat64(m.TicketsStored); got != 2 {
		t.Errorf("stored = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.TicketsDeleted); got != 1 {
		t.Errorf("deleted = %v, want 1", got)
	}
}

func TestHandler(t *testing.T) {
	m := NewMetrics()
	m.TicketsStored.Inc()

	srv := httptest.NewServer(m.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)

	for _, want := range []string{"guardian_tickets_stored_total 1", "go_goroutines"} {
		if !strings.Contains(string(body), want) {
			t.Errorf("metrics output missing %q", want)
		}
	}
}

func TestTracerProvider(t *testing.T) {
	var buf bytes.Buffer
	tp, err := NewTracerProvider("guardian-test", "dev", &buf)
	if err != nil {
		t.Fatalf("NewTracerProvider: %v", err)
	}

	_, span := tp.Tracer("test").Start(context.Background(), "pipeline.run")
	span.End()

	if err := tp.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
	if !strings.Contains(buf.String(), "pipeline.run") {
		t.Errorf("exported spans missing span name:\n%s", buf.String())
	}
	if !strings.Contains(buf.String(), "guardian-test") {
		t.Error("exported spans missing service name")
	}
}
