package orchestrator

import (
	"errors"
	"fmt"
	"time"

	"github.com/ShayCichocki/sprintguardian/internal/agent"
	"github.com/ShayCichocki/sprintguardian/internal/orchestrator/policy"
	"github.com/ShayCichocki/sprintguardian/pkg/models"
)

// State is a position in the workflow state machine.
type State string

const (
	StateStart      State = "start"
	StatePO         State = "po"
	StateSpecialist State = "specialists"
	StateAggregate  State = "aggregate"
	StateGatekeeper State = "gatekeeper"
	StateDone       State = "done"
	StateFailed     State = "failed"
)

// Stages lists the working stages in execution order.
var Stages = []State{StatePO, StateSpecialist, StateAggregate, StateGatekeeper}

// Valid returns true if the state is a known value.
func (s State) Valid() bool {
	switch s {
	case StateStart, StatePO, StateSpecialist, StateAggregate, StateGatekeeper, StateDone, StateFailed:
		return true
	default:
		return false
	}
}

// ErrEmptyInput is returned when the brain dump is blank.
var ErrEmptyInput = errors.New("brain dump is empty")

// StageError reports the stage a run failed in.
type StageError struct {
	RunID string
	Stage State
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("workflow failed in %s stage: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// FailedStage returns the stage of a *StageError in err's chain.
func FailedStage(err error) (State, bool) {
	var se *StageError
	if errors.As(err, &se) {
		return se.Stage, true
	}
	return "", false
}

// PolicyViolation is returned in strict mode when the ticket breaks rules.
type PolicyViolation struct {
	Violations []policy.Violation
}

func (e *PolicyViolation) Error() string {
	return fmt.Sprintf("final ticket violates %d gatekeeper rule(s): %v", len(e.Violations), e.Violations)
}

// WorkflowContext carries every stage output of one run under a stable
// name. Later stages read only what they declare.
type WorkflowContext struct {
	RunID       string `json:"run_id"`
	BrainDump   string `json:"brain_dump"`
	State       State  `json:"state"`
	FailedStage State  `json:"failed_stage,omitempty"`

	UserStory      *models.UserStory      `json:"user_story,omitempty"`
	TechEstimate   *models.TechEstimate   `json:"tech_estimate,omitempty"`
	SecurityReview *models.SecurityReview `json:"security_review,omitempty"`
	TestPlan       *models.TestPlan       `json:"test_plan,omitempty"`
	FinalTicket    *models.FinalTicket    `json:"final_ticket,omitempty"`

	StageDurations map[State]time.Duration `json:"stage_durations"`
}

func newWorkflowContext(runID, brainDump string) *WorkflowContext {
	return &WorkflowContext{
		RunID:          runID,
		BrainDump:      brainDump,
		State:          StateStart,
		StageDurations: make(map[State]time.Duration),
	}
}

// Outputs returns the stage outputs produced so far keyed by schema name.
func (w *WorkflowContext) Outputs() map[string]any {
	out := make(map[string]any)
	if w.UserStory != nil {
		out[models.SchemaUserStory] = *w.UserStory
	}
	if w.TechEstimate != nil {
		out[models.SchemaTechEstimate] = *w.TechEstimate
	}
	if w.SecurityReview != nil {
		out[models.SchemaSecurityReview] = *w.SecurityReview
	}
	if w.TestPlan != nil {
		out[models.SchemaTestPlan] = *w.TestPlan
	}
	if w.FinalTicket != nil {
		out[models.SchemaFinalTicket] = *w.FinalTicket
	}
	return out
}

// GatekeeperInput merges the story and the three specialist outputs. It is
// a pure function of the context.
func (w *WorkflowContext) GatekeeperInput() (models.GatekeeperInput, error) {
	in := models.GatekeeperInput{
		UserStory:      w.UserStory,
		TechEstimate:   w.TechEstimate,
		SecurityReview: w.SecurityReview,
		TestPlan:       w.TestPlan,
	}
	if err := in.Validate(); err != nil {
		return in, &agent.AggregationFailure{Runner: string(StateAggregate), Reason: err.Error()}
	}
	return in, nil
}
