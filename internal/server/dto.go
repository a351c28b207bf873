package server

import (
	"encoding/json"
	"time"

	"github.com/ShayCichocki/sprintguardian/internal/state"
	"github.com/ShayCichocki/sprintguardian/pkg/models"
)

// Request payloads

type GenerateRequest struct {
	BrainDump string `json:"brain_dump" minLength:"1" doc:"Unstructured feature request text"`
	// Save defaults to true.
	Save *bool `json:"save,omitempty" doc:"Persist the ticket (default true)"`
}

// Response payloads

type GenerateResponse struct {
	RunID string             `header:"X-Run-Id"`
	Slug  string             `header:"X-Ticket-Slug"`
	Body  models.FinalTicket `json:"body"`
}

type MessageResponse struct {
	Message string `json:"message"`
	Slug    string `json:"slug"`
}

type RunResponse struct {
	ID          string                     `json:"id"`
	BrainDump   string                     `json:"brain_dump"`
	Status      string                     `json:"status" enum:"succeeded,failed"`
	FailedStage string                     `json:"failed_stage,omitempty"`
	Error       string                     `json:"error,omitempty"`
	TicketSlug  string                     `json:"ticket_slug,omitempty"`
	StartedAt   time.Time                  `json:"started_at"`
	FinishedAt  time.Time                  `json:"finished_at"`
	DurationMS  int64                      `json:"duration_ms"`
	Outputs     map[string]json.RawMessage `json:"outputs,omitempty"`
}

func runResponse(r state.Run, withOutputs bool) RunResponse {
	resp := RunResponse{
		ID:          r.ID,
		BrainDump:   r.BrainDump,
		Status:      string(r.Status),
		FailedStage: r.FailedStage,
		Error:       r.Error,
		TicketSlug:  r.TicketSlug,
		StartedAt:   r.StartedAt,
		FinishedAt:  r.FinishedAt,
		DurationMS:  r.Duration.Milliseconds(),
	}
	if withOutputs {
		resp.Outputs = r.Outputs
	}
	return resp
}

func mapRuns(runs []state.Run) []RunResponse {
	out := make([]RunResponse, 0, len(runs))
	for _, r := range runs {
		out = append(out, runResponse(r, false))
	}
	return out
}
