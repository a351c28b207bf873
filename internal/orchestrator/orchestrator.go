package orchestrator

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/ShayCichocki/sprintguardian/internal/agent"
	"github.com/ShayCichocki/sprintguardian/internal/orchestrator/policy"
	"github.com/ShayCichocki/sprintguardian/pkg/models"
)

// Result is the outcome of a successful run.
type Result struct {
	RunID  string             `json:"run_id"`
	Ticket models.FinalTicket `json:"ticket"`
	// Slug is set once the ticket has been saved.
	Slug    string           `json:"slug,omitempty"`
	Context *WorkflowContext `json:"context"`
	// Violations lists gatekeeper rules the ticket broke and that were repaired.
	Violations []policy.Violation `json:"violations"`
	Duration   time.Duration      `json:"duration"`
}

// Orchestrator runs the ticket pipeline. It holds only immutable
// collaborators, so Run may be called concurrently.
type Orchestrator struct {
	roles       *agent.Roles
	specialists *agent.Parallel
	policy      policy.Config
	logger      *DebugLogger
	sink        EventSink
	tracer      trace.Tracer
	now         func() time.Time
	newRunID    func() string
}

// New creates an orchestrator over the given roles.
func New(roles *agent.Roles, opts ...Option) (*Orchestrator, error) {
	o := &orchestratorOptions{}
	for _, opt := range opts {
		opt(o)
	}

	pc := policy.Default()
	if o.policyConfig != nil {
		copied := *o.policyConfig
		pc = &copied
	}
	if err := pc.Validate(); err != nil {
		return nil, err
	}

	logger := o.logger
	if logger == nil {
		logger = NopLogger()
	}
	sinks := append(multiSink{logger}, o.sinks...)

	tracer := o.tracer
	if tracer == nil {
		tracer = otel.Tracer("github.com/ShayCichocki/sprintguardian/internal/orchestrator")
	}
	now := o.now
	if now == nil {
		now = time.Now
	}
	newRunID := o.newRunID
	if newRunID == nil {
		newRunID = uuid.NewString
	}

	return &Orchestrator{
		roles:       roles,
		specialists: roles.Specialists(),
		policy:      *pc,
		logger:      logger,
		sink:        sinks,
		tracer:      tracer,
		now:         now,
		newRunID:    newRunID,
	}, nil
}

// Policy returns the effective policy configuration.
func (o *Orchestrator) Policy() policy.Config {
	return o.policy
}

func (o *Orchestrator) emit(e Event) {
	if e.Timestamp.IsZero() {
		e.Timestamp = o.now()
	}
	o.sink.Emit(e)
}

// Run drives raw through every stage and returns the final ticket. On
// failure the returned error is a *StageError and no result is returned.
func (o *Orchestrator) Run(ctx context.Context, raw string) (*Result, error) {
	start := o.now()
	wc := newWorkflowContext(o.newRunID(), raw)

	ctx, span := o.tracer.Start(ctx, "pipeline.run", trace.WithAttributes(attribute.String("run_id", wc.RunID)))
	defer span.End()

	result, err := o.run(ctx, wc)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "run failed")
		wc.State = StateFailed
		log.Printf("[pipeline] run %s failed: %v", wc.RunID, err)
		o.emit(Event{Type: EventRunFailed, RunID: wc.RunID, Stage: wc.FailedStage, Error: err, Duration: o.now().Sub(start)})
		return nil, err
	}

	wc.State = StateDone
	result.Duration = o.now().Sub(start)
	log.Printf("[pipeline] run %s completed in %s: %q", wc.RunID, result.Duration.Round(time.Millisecond), result.Ticket.Summary)
	o.emit(Event{Type: EventRunCompleted, RunID: wc.RunID, Stage: StateDone, Message: result.Ticket.Summary, Duration: result.Duration})
	return result, nil
}

func (o *Orchestrator) run(ctx context.Context, wc *WorkflowContext) (*Result, error) {
	raw := strings.TrimSpace(wc.BrainDump)
	if raw == "" {
		wc.FailedStage = StateStart
		return nil, &StageError{RunID: wc.RunID, Stage: StateStart, Err: ErrEmptyInput}
	}
	o.emit(Event{Type: EventRunStarted, RunID: wc.RunID, Stage: StateStart, Message: fmt.Sprintf("%d characters", len(raw))})

	err := o.stage(ctx, wc, StatePO, func(ctx context.Context) error {
		story, err := o.roles.ProductOwner.Run(ctx, raw)
		if err != nil {
			return err
		}
		wc.UserStory = &story
		return nil
	})
	if err != nil {
		return nil, err
	}

	err = o.stage(ctx, wc, StateSpecialist, func(ctx context.Context) error {
		results, err := o.specialists.Run(ctx, *wc.UserStory)
		if err != nil {
			return err
		}
		name := o.specialists.Name()
		est, err := agent.As[models.TechEstimate](name, results, 0)
		if err != nil {
			return err
		}
		rev, err := agent.As[models.SecurityReview](name, results, 1)
		if err != nil {
			return err
		}
		plan, err := agent.As[models.TestPlan](name, results, 2)
		if err != nil {
			return err
		}
		wc.TechEstimate, wc.SecurityReview, wc.TestPlan = &est, &rev, &plan
		return nil
	})
	if err != nil {
		return nil, err
	}

	var composite models.GatekeeperInput
	err = o.stage(ctx, wc, StateAggregate, func(context.Context) error {
		in, err := wc.GatekeeperInput()
		if err != nil {
			return err
		}
		composite = in
		return nil
	})
	if err != nil {
		return nil, err
	}

	var violations []policy.Violation
	err = o.stage(ctx, wc, StateGatekeeper, func(ctx context.Context) error {
		ticket, err := o.roles.Gatekeeper.Run(ctx, composite)
		if err != nil {
			return err
		}
		ticket, violations, err = o.applyPolicy(wc, composite, ticket)
		if err != nil {
			return err
		}
		wc.FinalTicket = &ticket
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &Result{
		RunID:      wc.RunID,
		Ticket:     *wc.FinalTicket,
		Context:    wc,
		Violations: violations,
	}, nil
}

// stage runs fn as the given state, recording duration, events and spans.
func (o *Orchestrator) stage(ctx context.Context, wc *WorkflowContext, state State, fn func(context.Context) error) error {
	wc.State = state
	start := o.now()
	o.emit(Event{Type: EventStageStarted, RunID: wc.RunID, Stage: state})

	ctx, span := o.tracer.Start(ctx, "pipeline.stage."+string(state))
	defer span.End()

	err := fn(ctx)
	if err == nil {
		err = ctx.Err()
	}
	elapsed := o.now().Sub(start)
	wc.StageDurations[state] = elapsed

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		wc.FailedStage = state
		o.emit(Event{Type: EventStageFailed, RunID: wc.RunID, Stage: state, Error: err, Duration: elapsed})
		return &StageError{RunID: wc.RunID, Stage: state, Err: err}
	}

	o.emit(Event{Type: EventStageCompleted, RunID: wc.RunID, Stage: state, Duration: elapsed})
	return nil
}

// applyPolicy checks the gatekeeper ticket and, in enforce mode, repairs it.
func (o *Orchestrator) applyPolicy(wc *WorkflowContext, in models.GatekeeperInput, ticket models.FinalTicket) (models.FinalTicket, []policy.Violation, error) {
	gp := o.policy.Gatekeeper
	violations := gp.Check(in, ticket)
	if len(violations) == 0 {
		return ticket, nil, nil
	}

	if gp.Mode == policy.ModeStrict {
		return ticket, violations, &PolicyViolation{Violations: violations}
	}

	fixed := gp.Repair(in, ticket)
	if err := fixed.Validate(); err != nil {
		return ticket, violations, fmt.Errorf("repair final ticket: %w", err)
	}
	for _, v := range violations {
		log.Printf("[pipeline] run %s: repaired %s", wc.RunID, v)
		o.emit(Event{Type: EventPolicyRepaired, RunID: wc.RunID, Stage: StateGatekeeper, Message: v.String()})
	}
	return fixed, violations, nil
}
