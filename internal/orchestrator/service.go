package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/ShayCichocki/sprintguardian/internal/notify"
	"github.com/ShayCichocki/sprintguardian/internal/state"
	"github.com/ShayCichocki/sprintguardian/pkg/models"
)

// TicketStore persists final tickets.
type TicketStore interface {
	Save(t models.FinalTicket) (string, error)
	List() ([]models.FinalTicket, error)
	Get(slug string) (models.FinalTicket, error)
	Delete(key string) (string, error)
}

// RunRecorder keeps the history of runs.
type RunRecorder interface {
	RecordRun(r *state.Run) error
	GetRun(id string) (*state.Run, error)
	ListRuns(limit int) ([]state.Run, error)
}

// ServiceConfig holds the collaborators of a Service. Runs and Publisher
// are optional.
type ServiceConfig struct {
	Tickets   TicketStore
	Runs      RunRecorder
	Publisher notify.Publisher
}

// saveStage is recorded as the failed stage when the pipeline succeeded but
// the ticket could not be stored.
const saveStage = "save"

// ErrNoHistory is returned by history queries when no recorder is set.
var ErrNoHistory = errors.New("run history is not configured")

// Service is what the CLI, HTTP and MCP surfaces call. It runs the
// pipeline, stores the ticket, records the run and publishes events.
// It is built once and is safe for concurrent use.
type Service struct {
	orch      *Orchestrator
	tickets   TicketStore
	runs      RunRecorder
	publisher notify.Publisher
}

// NewService creates a Service around o.
func NewService(o *Orchestrator, cfg ServiceConfig) (*Service, error) {
	if o == nil {
		return nil, errors.New("orchestrator is required")
	}
	if cfg.Tickets == nil {
		return nil, errors.New("ticket store is required")
	}
	pub := cfg.Publisher
	if pub == nil {
		pub = notify.Nop{}
	}
	return &Service{orch: o, tickets: cfg.Tickets, runs: cfg.Runs, publisher: pub}, nil
}

// Orchestrator returns the wrapped orchestrator.
func (s *Service) Orchestrator() *Orchestrator {
	return s.orch
}

// Generate runs the pipeline over brainDump. When save is set the ticket is
// written to the store and a created event is published.
func (s *Service) Generate(ctx context.Context, brainDump string, save bool) (*Result, error) {
	started := time.Now()
	result, err := s.orch.Run(ctx, brainDump)
	if err != nil {
		s.recordFailure(brainDump, started, err)
		return nil, err
	}

	if save {
		slug, err := s.tickets.Save(result.Ticket)
		if err != nil {
			err = fmt.Errorf("save ticket: %w", err)
			run := runFromResult(brainDump, started, result)
			run.Status = state.RunFailed
			run.FailedStage = saveStage
			run.Error = err.Error()
			s.record(run)
			return nil, err
		}
		result.Slug = slug
		s.publish(ctx, notify.NewCreated(result.RunID, slug, result.Ticket))
	}

	s.record(runFromResult(brainDump, started, result))
	return result, nil
}

// ListTickets returns every saved ticket.
func (s *Service) ListTickets() ([]models.FinalTicket, error) {
	return s.tickets.List()
}

// GetTicket returns one saved ticket by slug.
func (s *Service) GetTicket(slug string) (models.FinalTicket, error) {
	return s.tickets.Get(slug)
}

// DeleteTicket removes a ticket by slug or summary and returns its slug.
func (s *Service) DeleteTicket(ctx context.Context, key string) (string, error) {
	slug, err := s.tickets.Delete(key)
	if err != nil {
		return "", err
	}
	s.publish(ctx, notify.NewDeleted(slug))
	return slug, nil
}

// RecentRuns returns up to limit runs, newest first.
func (s *Service) RecentRuns(limit int) ([]state.Run, error) {
	if s.runs == nil {
		return nil, ErrNoHistory
	}
	return s.runs.ListRuns(limit)
}

// GetRun returns one recorded run.
func (s *Service) GetRun(id string) (*state.Run, error) {
	if s.runs == nil {
		return nil, ErrNoHistory
	}
	return s.runs.GetRun(id)
}

func (s *Service) publish(ctx context.Context, e *notify.TicketEvent) {
	// A dead broker must not fail a request whose ticket is already saved.
	if err := s.publisher.Publish(ctx, e); err != nil {
		log.Printf("[service] publish %s %s: %v", e.Type, e.Slug, err)
	}
}

func (s *Service) record(r *state.Run) {
	if s.runs == nil {
		return
	}
	if err := s.runs.RecordRun(r); err != nil {
		log.Printf("[service] record run %s: %v", r.ID, err)
	}
}

func (s *Service) recordFailure(brainDump string, started time.Time, err error) {
	var se *StageError
	if !errors.As(err, &se) || errors.Is(err, ErrEmptyInput) {
		return
	}
	finished := time.Now()
	s.record(&state.Run{
		ID:          se.RunID,
		BrainDump:   brainDump,
		Status:      state.RunFailed,
		FailedStage: string(se.Stage),
		Error:       err.Error(),
		StartedAt:   started,
		FinishedAt:  finished,
		Duration:    finished.Sub(started),
	})
}

func runFromResult(brainDump string, started time.Time, result *Result) *state.Run {
	outputs := make(map[string]json.RawMessage)
	for name, v := range result.Context.Outputs() {
		data, err := json.Marshal(v)
		if err != nil {
			continue
		}
		outputs[name] = data
	}
	return &state.Run{
		ID:         result.RunID,
		BrainDump:  brainDump,
		Status:     state.RunSucceeded,
		TicketSlug: result.Slug,
		Outputs:    outputs,
		StartedAt:  started,
		FinishedAt: started.Add(result.Duration),
		Duration:   result.Duration,
	}
}
