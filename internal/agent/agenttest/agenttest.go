// Package agenttest provides a scripted generation backend and canned
// login-page stage outputs for tests of packages built on the pipeline.
package agenttest

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/ShayCichocki/sprintguardian/internal/agent"
	"github.com/ShayCichocki/sprintguardian/internal/api"
)

// Scripted answers each schema with a canned document, an error, or both
// after a delay. It records every input it was given.
//
// Replies, Errs and Delays may be edited before the first Invoke.
type Scripted struct {
	Replies map[string]string
	Errs    map[string]error
	Delays  map[string]time.Duration

	mu     sync.Mutex
	calls  map[string]int
	inputs map[string][]any
}

// NewScripted returns an invoker that answers with replies keyed by schema name.
func NewScripted(replies map[string]string) *Scripted {
	if replies == nil {
		replies = map[string]string{}
	}
	return &Scripted{
		Replies: replies,
		Errs:    map[string]error{},
		Delays:  map[string]time.Duration{},
		calls:   map[string]int{},
		inputs:  map[string][]any{},
	}
}

// Invoke implements api.Invoker.
func (s *Scripted) Invoke(ctx context.Context, req api.Request) (json.RawMessage, error) {
	name := req.Schema.Name
	s.mu.Lock()
	s.calls[name]++
	s.inputs[name] = append(s.inputs[name], req.Input)
	reply, err, delay := s.Replies[name], s.Errs[name], s.Delays[name]
	s.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, &api.GenerationFailure{Kind: api.KindTimeout, Schema: name, Err: ctx.Err()}
		}
	}
	if err != nil {
		return nil, err
	}
	raw := json.RawMessage(reply)
	if req.Decode != nil {
		if derr := req.Decode(raw); derr != nil {
			return nil, &api.GenerationFailure{Kind: api.KindSchemaViolation, Schema: name, Raw: reply, Err: derr}
		}
	}
	return raw, nil
}

// Calls returns how many times schema was requested.
func (s *Scripted) Calls(schema string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[schema]
}

// LastInput returns the most recent input sent for schema.
func (s *Scripted) LastInput(schema string) any {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := s.inputs[schema]
	if len(p) == 0 {
		return nil
	}
	return p[len(p)-1]
}

// Roles builds the default roles on top of s.
func (s *Scripted) Roles() *agent.Roles {
	return agent.NewRoles(agent.DefaultPrompts(), s)
}

// Stage outputs for a "users need a login page" brain dump.
const (
	LoginStory = `{
		"title": "Login page",
		"description": "As a registered user, I want to log in with email and password, so that I can reach my dashboard.",
		"acceptance_criteria": ["Users can log in with email and password", "Login attempts are rate limited"],
		"priority": "High"
	}`
	LoginEstimate = `{
		"story_points": 5,
		"complexity": "Medium",
		"technical_notes": "Use bcrypt for password hashing and the existing session middleware.",
		"dependencies": ["auth-service"]
	}`
	LoginReviewApproved = `{
		"owasp_risks": ["A07: Identification and Authentication Failures"],
		"mitigation_strategies": ["Rate limit login attempts", "Hash passwords with bcrypt"],
		"approval_status": "Approved",
		"comments": "Acceptable with rate limiting."
	}`
	LoginReviewRejected = `{
		"owasp_risks": ["A02: Cryptographic Failures"],
		"mitigation_strategies": ["Never store plaintext passwords"],
		"approval_status": "Rejected",
		"comments": "The story stores passwords in plaintext."
	}`
	LoginPlan = `{
		"scenarios": ["Given a registered user, When they submit valid credentials, Then they see the dashboard"],
		"edge_cases": ["Five failed attempts in a minute"]
	}`
	LoginTicket = `{
		"summary": "Login page",
		"description": "Implement email/password login with rate limiting.",
		"story_points": 5,
		"labels": ["auth", "frontend"],
		"priority": "High"
	}`
)

// LoginReplies returns a fresh reply set for a successful login-page run.
func LoginReplies() map[string]string {
	return map[string]string{
		"user_story":      LoginStory,
		"tech_estimate":   LoginEstimate,
		"security_review": LoginReviewApproved,
		"test_plan":       LoginPlan,
		"final_ticket":    LoginTicket,
	}
}
