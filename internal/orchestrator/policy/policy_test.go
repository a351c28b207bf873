package policy

import (
	"strings"
	"testing"
	"time"

	"github.com/ShayCichocki/sprintguardian/pkg/models"
)

func gatekeeperInput(status models.ApprovalStatus, points int) models.GatekeeperInput {
	story := models.UserStory{Title: "Login", Description: "d", AcceptanceCriteria: []string{"a"}, Priority: models.PriorityHigh}
	est := models.TechEstimate{StoryPoints: points, Complexity: models.ComplexityMedium, TechnicalNotes: "n", Dependencies: []string{}}
	rev := models.SecurityReview{
		OWASPRisks:           []string{"A07: Identification and Authentication Failures"},
		MitigationStrategies: []string{"Rate limit login attempts"},
		ApprovalStatus:       status,
		Comments:             "Plaintext passwords are stored.",
	}
	plan := models.TestPlan{Scenarios: []string{"Given x When y Then z"}, EdgeCases: []string{}}
	return models.GatekeeperInput{UserStory: &story, TechEstimate: &est, SecurityReview: &rev, TestPlan: &plan}
}

func ticket(points int, labels ...string) models.FinalTicket {
	return models.FinalTicket{
		Summary:     "Login page",
		Description: "Build the login page.",
		StoryPoints: points,
		Labels:      labels,
		Priority:    models.PriorityHigh,
	}
}

func rules(vs []Violation) []string {
	out := make([]string, len(vs))
	for i, v := range vs {
		out[i] = v.Rule
	}
	return out
}

func TestDefault(t *testing.T) {
	cfg := Default()
	if cfg.Gatekeeper.Mode != ModeEnforce {
		t.Errorf("Mode = %q, want %q", cfg.Gatekeeper.Mode, ModeEnforce)
	}
	if cfg.Gatekeeper.BlockingLabel != "BLOCKED" {
		t.Errorf("BlockingLabel = %q", cfg.Gatekeeper.BlockingLabel)
	}
	if !cfg.Gatekeeper.AlignStoryPoints {
		t.Error("AlignStoryPoints should default to true")
	}
}

func TestValidate(t *testing.T) {
	cfg := &Config{}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if cfg.Gatekeeper.Mode != ModeEnforce || cfg.Gatekeeper.BlockingLabel != "BLOCKED" {
		t.Errorf("defaults not filled: %+v", cfg.Gatekeeper)
	}
	if cfg.Events.BufferSize != 64 || cfg.Events.DropTimeout != 100*time.Millisecond {
		t.Errorf("event defaults not filled: %+v", cfg.Events)
	}

	bad := &Config{Gatekeeper: GatekeeperPolicy{Mode: "lenient"}}
	if err := bad.Validate(); err == nil {
		t.Error("expected error for unknown mode")
	}
}

func TestCheck(t *testing.T) {
	p := Default().Gatekeeper

	tests := []struct {
		name   string
		in     models.GatekeeperInput
		ticket models.FinalTicket
		want   []string
	}{
		{
			name:   "approved and consistent",
			in:     gatekeeperInput(models.ApprovalApproved, 5),
			ticket: ticket(5, "auth"),
			want:   []string{},
		},
		{
			name:   "rejected without label or highlights",
			in:     gatekeeperInput(models.ApprovalRejected, 5),
			ticket: ticket(5, "auth"),
			want:   []string{RuleBlockingLabel, RuleSecurityHighlights},
		},
		{
			name: "rejected and handled",
			in:   gatekeeperInput(models.ApprovalRejected, 5),
			ticket: func() models.FinalTicket {
				tk := ticket(5, "blocked")
				tk.Description += " Security: a07: identification and authentication failures."
				return tk
			}(),
			want: []string{},
		},
		{
			name:   "needs revision is not blocking",
			in:     gatekeeperInput(models.ApprovalNeedsRevision, 5),
			ticket: ticket(5),
			want:   []string{},
		},
		{
			name:   "story points drift",
			in:     gatekeeperInput(models.ApprovalApproved, 8),
			ticket: ticket(5),
			want:   []string{RuleStoryPoints},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := rules(p.Check(tt.in, tt.ticket))
			if strings.Join(got, ",") != strings.Join(tt.want, ",") {
				t.Errorf("Check() rules = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCheck_StoryPointsRuleDisabled(t *testing.T) {
	p := Default().Gatekeeper
	p.AlignStoryPoints = false
	if v := p.Check(gatekeeperInput(models.ApprovalApproved, 8), ticket(5)); len(v) != 0 {
		t.Errorf("expected no violations, got %v", v)
	}
}

func TestRepair_SatisfiesCheck(t *testing.T) {
	p := Default().Gatekeeper
	in := gatekeeperInput(models.ApprovalRejected, 13)
	original := ticket(5, "auth")

	fixed := p.Repair(in, original)

	if v := p.Check(in, fixed); len(v) != 0 {
		t.Fatalf("repaired ticket still violates: %v", v)
	}
	if !fixed.HasLabel("BLOCKED") {
		t.Error("BLOCKED label missing")
	}
	if fixed.StoryPoints != 13 {
		t.Errorf("StoryPoints = %d, want 13", fixed.StoryPoints)
	}
	if !strings.Contains(fixed.Description, "Plaintext passwords are stored.") {
		t.Error("description should carry the security comments")
	}
	if err := fixed.Validate(); err != nil {
		t.Errorf("repaired ticket invalid: %v", err)
	}

	// The input ticket must not be modified.
	if len(original.Labels) != 1 || original.StoryPoints != 5 {
		t.Errorf("Repair mutated its input: %+v", original)
	}
}

func TestRepair_Idempotent(t *testing.T) {
	p := Default().Gatekeeper
	in := gatekeeperInput(models.ApprovalRejected, 5)
	once := p.Repair(in, ticket(5))
	twice := p.Repair(in, once)
	if once.Description != twice.Description || len(once.Labels) != len(twice.Labels) {
		t.Errorf("Repair is not idempotent:\n%+v\n%+v", once, twice)
	}
}

func TestSecuritySection(t *testing.T) {
	r := gatekeeperInput(models.ApprovalRejected, 5).SecurityReview
	s := SecuritySection(*r)
	for _, want := range []string{"## Security Review (Rejected)", "A07", "Rate limit login attempts"} {
		if !strings.Contains(s, want) {
			t.Errorf("section missing %q:\n%s", want, s)
		}
	}
}
