package orchestrator

import (
	"context"
	"encoding/json"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ShayCichocki/sprintguardian/internal/agent"
	"github.com/ShayCichocki/sprintguardian/internal/api"
	"github.com/ShayCichocki/sprintguardian/pkg/models"
)

// loginBackend plays every role for the login-page scenario. The first
// tech estimate call fails with a 503 so the adapter has to retry.
type loginBackend struct {
	mu       sync.Mutex
	calls    map[string]int
	prompts  map[string]string
	unstable bool
}

func (b *loginBackend) Name() string { return "scripted" }

func (b *loginBackend) Generate(_ context.Context, req api.GenerateRequest) (*api.GenerateResponse, error) {
	b.mu.Lock()
	b.calls[req.Schema.Name]++
	n := b.calls[req.Schema.Name]
	b.prompts[req.Schema.Name] = req.Prompt
	b.mu.Unlock()

	if b.unstable && req.Schema.Name == models.SchemaTechEstimate && n == 1 {
		return nil, &api.StatusError{StatusCode: 503, Body: "overloaded"}
	}
	if req.SystemInstruction == "" {
		return nil, &api.StatusError{StatusCode: 400, Body: "missing system instruction"}
	}
	return &api.GenerateResponse{
		Raw:          json.RawMessage(loginReplies()[req.Schema.Name]),
		InputTokens:  100,
		OutputTokens: 50,
	}, nil
}

func TestScenario_LoginPage(t *testing.T) {
	backend := &loginBackend{calls: map[string]int{}, prompts: map[string]string{}, unstable: true}
	adapter := api.NewAdapter(backend, api.Options{
		Timeout: time.Second,
		Retry: api.RetryConfig{
			MaxAttempts:     3,
			InitialInterval: time.Millisecond,
			MaxInterval:     5 * time.Millisecond,
			Multiplier:      2,
		},
	})

	emitter := NewEventEmitter(64, 10*time.Millisecond)
	o, err := New(agent.NewRoles(agent.DefaultPrompts(), adapter), WithEventSink(emitter))
	require.NoError(t, err)

	result, err := o.Run(context.Background(), "We need a login page. Users sign in with email + password, and we should throttle brute force attempts.")
	require.NoError(t, err)
	emitter.Close()

	wc := result.Context
	assert.True(t, slices.ContainsFunc(wc.UserStory.AcceptanceCriteria, func(c string) bool {
		return strings.Contains(strings.ToLower(c), "rate limit")
	}), "a criterion must mention rate limiting")
	assert.NotEmpty(t, wc.SecurityReview.OWASPRisks)
	assert.Equal(t, wc.TechEstimate.StoryPoints, result.Ticket.StoryPoints)

	ticket := result.Ticket
	assert.Equal(t, "Login page", ticket.Summary)
	assert.Equal(t, 5, ticket.StoryPoints)
	assert.True(t, models.IsFibonacciPoint(ticket.StoryPoints))
	assert.Equal(t, models.PriorityHigh, ticket.Priority)
	assert.False(t, ticket.HasLabel("BLOCKED"))

	assert.Equal(t, 2, backend.calls[models.SchemaTechEstimate], "503 is retried once")
	assert.Equal(t, 1, backend.calls[models.SchemaFinalTicket])

	// The specialists see the story, not the brain dump.
	assert.Contains(t, backend.prompts[models.SchemaSecurityReview], `"title": "Login page"`)
	assert.NotContains(t, backend.prompts[models.SchemaSecurityReview], "brute force")
	// The gatekeeper sees every specialist output.
	gk := backend.prompts[models.SchemaFinalTicket]
	for _, want := range []string{"user_story", "tech_estimate", "security_review", "test_plan", "A07"} {
		assert.True(t, strings.Contains(gk, want), "gatekeeper prompt missing %q", want)
	}

	in, out := adapter.Tracker().Total()
	assert.Equal(t, int64(500), in)
	assert.Equal(t, int64(250), out)

	var stages []State
	for e := range emitter.Events() {
		if e.Type == EventStageCompleted {
			stages = append(stages, e.Stage)
		}
	}
	assert.Equal(t, Stages, stages)
	assert.Zero(t, emitter.DroppedCount())
}

func TestScenario_BackendRejectsRequest(t *testing.T) {
	backend := &loginBackend{calls: map[string]int{}, prompts: map[string]string{}}
	adapter := api.NewAdapter(backend, api.Options{Timeout: time.Second})

	prompts := agent.DefaultPrompts()
	prompts.QA = ""

	o, err := New(agent.NewRoles(prompts, adapter))
	require.NoError(t, err)

	_, err = o.Run(context.Background(), "login page")
	require.Error(t, err)
	stage, _ := FailedStage(err)
	assert.Equal(t, StateSpecialist, stage)
	assert.True(t, api.IsTransport(err))
	assert.Equal(t, 1, backend.calls[models.SchemaTestPlan], "4xx is not retried")
	assert.Zero(t, backend.calls[models.SchemaFinalTicket])
}
