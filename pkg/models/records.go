package models

import (
	"strings"
)

// Record is implemented by every structured output a pipeline role can produce.
type Record interface {
	// SchemaName is the registry key of the record's output schema.
	SchemaName() string
	// Validate checks every field constraint and reports all violations.
	Validate() error
}

// Schema names used as registry keys and as structured-output tool names.
const (
	SchemaUserStory      = "user_story"
	SchemaTechEstimate   = "tech_estimate"
	SchemaSecurityReview = "security_review"
	SchemaTestPlan       = "test_plan"
	SchemaFinalTicket    = "final_ticket"
)

// UserStory is the product owner's structured rendering of a brain dump.
type UserStory struct {
	// Title is a short name for the story.
	Title string `json:"title"`
	// Description follows "As a <role>, I want <feature>, so that <benefit>".
	Description string `json:"description"`
	// AcceptanceCriteria lists the conditions that make the story done.
	AcceptanceCriteria []string `json:"acceptance_criteria"`
	// Priority is the business priority.
	Priority Priority `json:"priority"`
}

func (UserStory) SchemaName() string { return SchemaUserStory }

// Validate implements Record.
func (s UserStory) Validate() error {
	v := newValidator(SchemaUserStory)
	v.notBlank("title", s.Title)
	v.notBlank("description", s.Description)
	v.nonEmptyList("acceptance_criteria", s.AcceptanceCriteria)
	v.noBlankItems("acceptance_criteria", s.AcceptanceCriteria)
	if !s.Priority.Valid() {
		v.addf("priority", "must be one of High, Medium, Low (got %q)", s.Priority)
	}
	return v.err()
}

func (s *UserStory) normalize() {
	s.AcceptanceCriteria = emptyIfNil(s.AcceptanceCriteria)
}

// TechEstimate is the tech lead's sizing of a story.
type TechEstimate struct {
	StoryPoints    int        `json:"story_points"`
	Complexity     Complexity `json:"complexity"`
	TechnicalNotes string     `json:"technical_notes"`
	Dependencies   []string   `json:"dependencies"`
}

func (TechEstimate) SchemaName() string { return SchemaTechEstimate }

// Validate implements Record.
func (e TechEstimate) Validate() error {
	v := newValidator(SchemaTechEstimate)
	if !IsFibonacciPoint(e.StoryPoints) {
		v.addf("story_points", "must be one of %v (got %d)", FibonacciPoints, e.StoryPoints)
	}
	if !e.Complexity.Valid() {
		v.addf("complexity", "must be one of Low, Medium, High (got %q)", e.Complexity)
	}
	v.notBlank("technical_notes", e.TechnicalNotes)
	v.noBlankItems("dependencies", e.Dependencies)
	return v.err()
}

func (e *TechEstimate) normalize() {
	e.Dependencies = emptyIfNil(e.Dependencies)
}

// SecurityReview is the security reviewer's assessment of a story.
type SecurityReview struct {
	OWASPRisks           []string       `json:"owasp_risks"`
	MitigationStrategies []string       `json:"mitigation_strategies"`
	ApprovalStatus       ApprovalStatus `json:"approval_status"`
	Comments             string         `json:"comments"`
}

func (SecurityReview) SchemaName() string { return SchemaSecurityReview }

// Validate implements Record.
func (r SecurityReview) Validate() error {
	v := newValidator(SchemaSecurityReview)
	if !r.ApprovalStatus.Valid() {
		v.addf("approval_status", "must be one of Approved, Rejected, Needs Revision (got %q)", r.ApprovalStatus)
	}
	v.notBlank("comments", r.Comments)
	v.noBlankItems("owasp_risks", r.OWASPRisks)
	v.noBlankItems("mitigation_strategies", r.MitigationStrategies)
	return v.err()
}

// Rejected reports whether the review blocks the story.
func (r SecurityReview) Rejected() bool {
	return r.ApprovalStatus == ApprovalRejected
}

func (r *SecurityReview) normalize() {
	r.OWASPRisks = emptyIfNil(r.OWASPRisks)
	r.MitigationStrategies = emptyIfNil(r.MitigationStrategies)
}

// TestPlan is the QA engineer's Gherkin-style plan for a story.
type TestPlan struct {
	Scenarios []string `json:"scenarios"`
	EdgeCases []string `json:"edge_cases"`
}

func (TestPlan) SchemaName() string { return SchemaTestPlan }

// Validate implements Record.
func (p TestPlan) Validate() error {
	v := newValidator(SchemaTestPlan)
	v.nonEmptyList("scenarios", p.Scenarios)
	for i, s := range p.Scenarios {
		if !isGherkin(s) {
			v.addf("scenarios", "item %d must use Given/When/Then", i)
		}
	}
	v.noBlankItems("edge_cases", p.EdgeCases)
	return v.err()
}

func (p *TestPlan) normalize() {
	p.Scenarios = emptyIfNil(p.Scenarios)
	p.EdgeCases = emptyIfNil(p.EdgeCases)
}

func isGherkin(s string) bool {
	lower := strings.ToLower(s)
	return strings.Contains(lower, "given") &&
		strings.Contains(lower, "when") &&
		strings.Contains(lower, "then")
}

// FinalTicket is the gatekeeper's consolidated, ready-to-file ticket.
type FinalTicket struct {
	Summary     string   `json:"summary" yaml:"summary"`
	Description string   `json:"description" yaml:"description"`
	StoryPoints int      `json:"story_points" yaml:"story_points"`
	Labels      []string `json:"labels" yaml:"labels"`
	Priority    Priority `json:"priority" yaml:"priority"`
}

func (FinalTicket) SchemaName() string { return SchemaFinalTicket }

// Validate implements Record.
func (t FinalTicket) Validate() error {
	v := newValidator(SchemaFinalTicket)
	v.notBlank("summary", t.Summary)
	v.notBlank("description", t.Description)
	if t.StoryPoints <= 0 {
		v.addf("story_points", "must be positive (got %d)", t.StoryPoints)
	}
	v.noBlankItems("labels", t.Labels)
	if !t.Priority.Valid() {
		v.addf("priority", "must be one of High, Medium, Low (got %q)", t.Priority)
	}
	return v.err()
}

// HasLabel reports whether the ticket carries label, ignoring case.
func (t FinalTicket) HasLabel(label string) bool {
	for _, l := range t.Labels {
		if strings.EqualFold(l, label) {
			return true
		}
	}
	return false
}

// Slug returns the storage key for the ticket.
func (t FinalTicket) Slug() string {
	return Slug(t.Summary)
}

func (t *FinalTicket) normalize() {
	t.Labels = emptyIfNil(t.Labels)
}

// GatekeeperInput is the composite handed to the gatekeeper. It carries
// every upstream output so no specialist's findings are lost.
type GatekeeperInput struct {
	UserStory      *UserStory      `json:"user_story"`
	TechEstimate   *TechEstimate   `json:"tech_estimate"`
	SecurityReview *SecurityReview `json:"security_review"`
	TestPlan       *TestPlan       `json:"test_plan"`
}

// Validate checks that every member is present and valid.
func (g GatekeeperInput) Validate() error {
	v := newValidator("gatekeeper_input")
	if g.UserStory == nil {
		v.add("user_story", "missing")
	} else if err := g.UserStory.Validate(); err != nil {
		v.add("user_story", err.Error())
	}
	if g.TechEstimate == nil {
		v.add("tech_estimate", "missing")
	} else if err := g.TechEstimate.Validate(); err != nil {
		v.add("tech_estimate", err.Error())
	}
	if g.SecurityReview == nil {
		v.add("security_review", "missing")
	} else if err := g.SecurityReview.Validate(); err != nil {
		v.add("security_review", err.Error())
	}
	if g.TestPlan == nil {
		v.add("test_plan", "missing")
	} else if err := g.TestPlan.Validate(); err != nil {
		v.add("test_plan", err.Error())
	}
	return v.err()
}

func emptyIfNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
