// Package agent provides the role agents of the ticket pipeline and the
// runners that compose them.
package agent

import (
	"context"
	"fmt"

	"github.com/ShayCichocki/sprintguardian/internal/api"
	"github.com/ShayCichocki/sprintguardian/pkg/models"
)

// Executor is a unit a runner can schedule: an Agent or another runner.
type Executor interface {
	Name() string
	Execute(ctx context.Context, input any) (any, error)
}

// Agent is a role bound to an instruction and an output record type. It
// holds no per-call state, so a single Agent may run concurrently.
type Agent[T models.Record] struct {
	name        string
	instruction string
	invoker     api.Invoker
}

// New creates an agent producing records of type T.
func New[T models.Record](name, instruction string, invoker api.Invoker) *Agent[T] {
	return &Agent[T]{name: name, instruction: instruction, invoker: invoker}
}

// Name returns the role name.
func (a *Agent[T]) Name() string {
	return a.name
}

// Instruction returns the role's system instruction.
func (a *Agent[T]) Instruction() string {
	return a.instruction
}

// Schema returns the output schema of the agent.
func (a *Agent[T]) Schema() models.Schema {
	return models.SchemaFor[T]()
}

// Run produces a validated T for input.
func (a *Agent[T]) Run(ctx context.Context, input any) (T, error) {
	out, err := api.InvokeAs[T](ctx, a.invoker, a.instruction, input)
	if err != nil {
		var zero T
		return zero, fmt.Errorf("agent %s: %w", a.name, err)
	}
	return out, nil
}

// Execute implements Executor.
func (a *Agent[T]) Execute(ctx context.Context, input any) (any, error) {
	out, err := a.Run(ctx, input)
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Role names.
const (
	RoleProductOwner = "product_owner"
	RoleTechLead     = "tech_lead"
	RoleSecOps       = "secops"
	RoleQA           = "qa"
	RoleGatekeeper   = "gatekeeper"
)

// NewProductOwner creates the agent that writes user stories.
func NewProductOwner(instruction string, inv api.Invoker) *Agent[models.UserStory] {
	return New[models.UserStory](RoleProductOwner, instruction, inv)
}

// NewTechLead creates the agent that estimates stories.
func NewTechLead(instruction string, inv api.Invoker) *Agent[models.TechEstimate] {
	return New[models.TechEstimate](RoleTechLead, instruction, inv)
}

// NewSecOps creates the agent that reviews stories for security risks.
func NewSecOps(instruction string, inv api.Invoker) *Agent[models.SecurityReview] {
	return New[models.SecurityReview](RoleSecOps, instruction, inv)
}

// NewQA creates the agent that writes test plans.
func NewQA(instruction string, inv api.Invoker) *Agent[models.TestPlan] {
	return New[models.TestPlan](RoleQA, instruction, inv)
}

// NewGatekeeper creates the agent that writes the final ticket.
func NewGatekeeper(instruction string, inv api.Invoker) *Agent[models.FinalTicket] {
	return New[models.FinalTicket](RoleGatekeeper, instruction, inv)
}

// Roles bundles the five pipeline agents. Build it once at start-up.
type Roles struct {
	ProductOwner *Agent[models.UserStory]
	TechLead     *Agent[models.TechEstimate]
	SecOps       *Agent[models.SecurityReview]
	QA           *Agent[models.TestPlan]
	Gatekeeper   *Agent[models.FinalTicket]
}

// NewRoles builds every role against the same invoker.
func NewRoles(p Prompts, inv api.Invoker) *Roles {
	return &Roles{
		ProductOwner: NewProductOwner(p.ProductOwner, inv),
		TechLead:     NewTechLead(p.TechLead, inv),
		SecOps:       NewSecOps(p.SecOps, inv),
		QA:           NewQA(p.QA, inv),
		Gatekeeper:   NewGatekeeper(p.Gatekeeper, inv),
	}
}

// Specialists returns the parallel specialist group in its fixed order:
// tech lead, secops, QA.
func (r *Roles) Specialists() *Parallel {
	return NewParallel("specialists", r.TechLead, r.SecOps, r.QA)
}
