// Package policy defines the configurable rules the orchestrator applies to
// the gatekeeper's ticket, along with event delivery limits.
package policy

import (
	"fmt"
	"strings"
	"time"

	"github.com/ShayCichocki/sprintguardian/pkg/models"
)

// Mode selects what happens when the gatekeeper's ticket breaks a rule.
type Mode string

const (
	// ModeEnforce repairs the ticket deterministically and records the violation.
	ModeEnforce Mode = "enforce"
	// ModeStrict fails the run.
	ModeStrict Mode = "strict"
)

// Valid returns true if the mode is a known value.
func (m Mode) Valid() bool {
	return m == ModeEnforce || m == ModeStrict
}

// Config contains all configurable policy parameters for the orchestrator.
type Config struct {
	Gatekeeper GatekeeperPolicy
	Events     EventPolicy
}

// GatekeeperPolicy controls the checks applied to the final ticket.
type GatekeeperPolicy struct {
	Mode Mode
	// BlockingLabel is required on tickets whose security review was rejected.
	BlockingLabel string
	// AlignStoryPoints requires the ticket to carry the tech lead's estimate.
	AlignStoryPoints bool
}

// EventPolicy controls orchestrator event delivery.
type EventPolicy struct {
	// BufferSize is the capacity of the event channel.
	BufferSize int
	// DropTimeout is how long Emit waits on a full channel before dropping.
	DropTimeout time.Duration
}

// Default returns the default policy configuration.
func Default() *Config {
	return &Config{
		Gatekeeper: GatekeeperPolicy{
			Mode:             ModeEnforce,
			BlockingLabel:    "BLOCKED",
			AlignStoryPoints: true,
		},
		Events: EventPolicy{
			BufferSize:  64,
			DropTimeout: 100 * time.Millisecond,
		},
	}
}

// Validate fills unusable values with defaults and rejects unknown modes.
func (c *Config) Validate() error {
	if c.Gatekeeper.Mode == "" {
		c.Gatekeeper.Mode = ModeEnforce
	}
	if !c.Gatekeeper.Mode.Valid() {
		return fmt.Errorf("invalid gatekeeper policy mode %q (want %q or %q)", c.Gatekeeper.Mode, ModeEnforce, ModeStrict)
	}
	if strings.TrimSpace(c.Gatekeeper.BlockingLabel) == "" {
		c.Gatekeeper.BlockingLabel = "BLOCKED"
	}
	if c.Events.BufferSize < 1 {
		c.Events.BufferSize = 64
	}
	if c.Events.DropTimeout <= 0 {
		c.Events.DropTimeout = 100 * time.Millisecond
	}
	return nil
}

// Rule names reported in violations.
const (
	RuleBlockingLabel      = "blocking_label"
	RuleSecurityHighlights = "security_highlighted"
	RuleStoryPoints        = "story_points_consistent"
)

// Violation is one broken gatekeeper rule.
type Violation struct {
	Rule    string `json:"rule"`
	Message string `json:"message"`
}

func (v Violation) String() string {
	return v.Rule + ": " + v.Message
}

// Check returns every rule the ticket breaks given the gatekeeper's inputs.
func (p GatekeeperPolicy) Check(in models.GatekeeperInput, t models.FinalTicket) []Violation {
	var out []Violation

	if in.SecurityReview != nil && in.SecurityReview.Rejected() {
		if !t.HasLabel(p.BlockingLabel) {
			out = append(out, Violation{
				Rule:    RuleBlockingLabel,
				Message: fmt.Sprintf("security review rejected but ticket lacks the %q label", p.BlockingLabel),
			})
		}
		if !highlightsSecurity(*in.SecurityReview, t.Description) {
			out = append(out, Violation{
				Rule:    RuleSecurityHighlights,
				Message: "security review rejected but the description does not mention its issues",
			})
		}
	}

	if p.AlignStoryPoints && in.TechEstimate != nil && t.StoryPoints != in.TechEstimate.StoryPoints {
		out = append(out, Violation{
			Rule:    RuleStoryPoints,
			Message: fmt.Sprintf("ticket has %d story points, tech estimate has %d", t.StoryPoints, in.TechEstimate.StoryPoints),
		})
	}

	return out
}

// Repair returns a copy of t that satisfies every rule Check enforces.
func (p GatekeeperPolicy) Repair(in models.GatekeeperInput, t models.FinalTicket) models.FinalTicket {
	fixed := t
	fixed.Labels = append([]string{}, t.Labels...)

	if in.SecurityReview != nil && in.SecurityReview.Rejected() {
		if !fixed.HasLabel(p.BlockingLabel) {
			fixed.Labels = append(fixed.Labels, p.BlockingLabel)
		}
		if !highlightsSecurity(*in.SecurityReview, fixed.Description) {
			fixed.Description = strings.TrimRight(fixed.Description, "\n") + "\n\n" + SecuritySection(*in.SecurityReview)
		}
	}

	if p.AlignStoryPoints && in.TechEstimate != nil {
		fixed.StoryPoints = in.TechEstimate.StoryPoints
	}
	return fixed
}

// SecuritySection renders a security review as a ticket description section.
func SecuritySection(r models.SecurityReview) string {
	var b strings.Builder
	fmt.Fprintf(&b, "## Security Review (%s)\n\n", r.ApprovalStatus)
	b.WriteString(strings.TrimSpace(r.Comments))
	b.WriteString("\n")
	if len(r.OWASPRisks) > 0 {
		b.WriteString("\nRisks:\n")
		for _, risk := range r.OWASPRisks {
			fmt.Fprintf(&b, "- %s\n", risk)
		}
	}
	if len(r.MitigationStrategies) > 0 {
		b.WriteString("\nMitigations:\n")
		for _, m := range r.MitigationStrategies {
			fmt.Fprintf(&b, "- %s\n", m)
		}
	}
	return b.String()
}

// highlightsSecurity reports whether description mentions at least one of
// the review's risks, or its comments when no risks were listed.
func highlightsSecurity(r models.SecurityReview, description string) bool {
	desc := strings.ToLower(description)
	for _, risk := range r.OWASPRisks {
		if risk = strings.TrimSpace(risk); risk != "" && strings.Contains(desc, strings.ToLower(risk)) {
			return true
		}
	}
	comments := strings.ToLower(strings.TrimSpace(r.Comments))
	return comments != "" && strings.Contains(desc, comments)
}
