package models

import (
	"errors"
	"testing"
)

func validStory() UserStory {
	return UserStory{
		Title:              "Login page",
		Description:        "As a user, I want to log in, so that I can see my dashboard.",
		AcceptanceCriteria: []string{"Users can log in with email and password", "Login is rate limited"},
		Priority:           PriorityHigh,
	}
}

func validEstimate() TechEstimate {
	return TechEstimate{
		StoryPoints:    5,
		Complexity:     ComplexityMedium,
		TechnicalNotes: "Use the existing session middleware.",
		Dependencies:   []string{"auth-service"},
	}
}

func validReview() SecurityReview {
	return SecurityReview{
		OWASPRisks:           []string{"A07: Identification and Authentication Failures"},
		MitigationStrategies: []string{"Rate limit login attempts"},
		ApprovalStatus:       ApprovalApproved,
		Comments:             "Looks fine with rate limiting.",
	}
}

func validPlan() TestPlan {
	return TestPlan{
		Scenarios: []string{"Given a registered user, When they submit valid credentials, Then they see the dashboard"},
		EdgeCases: []string{"Password with unicode characters"},
	}
}

func validTicket() FinalTicket {
	return FinalTicket{
		Summary:     "Login page",
		Description: "Implement the login page.",
		StoryPoints: 5,
		Labels:      []string{"auth"},
		Priority:    PriorityHigh,
	}
}

func fieldsOf(t *testing.T, err error) *ValidationError {
	t.Helper()
	var ve *ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected *ValidationError, got %T: %v", err, err)
	}
	return ve
}

func TestRecords_ValidInstancesPass(t *testing.T) {
	records := []Record{validStory(), validEstimate(), validReview(), validPlan(), validTicket()}
	for _, r := range records {
		if err := r.Validate(); err != nil {
			t.Errorf("%s.Validate() = %v, want nil", r.SchemaName(), err)
		}
	}
}

func TestUserStory_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*UserStory)
		field  string
	}{
		{"blank title", func(s *UserStory) { s.Title = "  " }, "title"},
		{"blank description", func(s *UserStory) { s.Description = "" }, "description"},
		{"no criteria", func(s *UserStory) { s.AcceptanceCriteria = []string{} }, "acceptance_criteria"},
		{"blank criterion", func(s *UserStory) { s.AcceptanceCriteria = []string{"ok", ""} }, "acceptance_criteria"},
		{"bad priority", func(s *UserStory) { s.Priority = "Urgent" }, "priority"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := validStory()
			tt.mutate(&s)
			ve := fieldsOf(t, s.Validate())
			if !ve.HasField(tt.field) {
				t.Errorf("expected violation on %q, got %v", tt.field, ve)
			}
		})
	}
}

func TestUserStory_ReportsEveryViolation(t *testing.T) {
	ve := fieldsOf(t, UserStory{}.Validate())
	for _, f := range []string{"title", "description", "acceptance_criteria", "priority"} {
		if !ve.HasField(f) {
			t.Errorf("missing violation for %q in %v", f, ve)
		}
	}
}

func TestTechEstimate_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*TechEstimate)
		field  string
	}{
		{"non fibonacci points", func(e *TechEstimate) { e.StoryPoints = 4 }, "story_points"},
		{"zero points", func(e *TechEstimate) { e.StoryPoints = 0 }, "story_points"},
		{"too many points", func(e *TechEstimate) { e.StoryPoints = 34 }, "story_points"},
		{"bad complexity", func(e *TechEstimate) { e.Complexity = "Huge" }, "complexity"},
		{"blank notes", func(e *TechEstimate) { e.TechnicalNotes = "" }, "technical_notes"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := validEstimate()
			tt.mutate(&e)
			ve := fieldsOf(t, e.Validate())
			if !ve.HasField(tt.field) {
				t.Errorf("expected violation on %q, got %v", tt.field, ve)
			}
		})
	}
}

func TestTechEstimate_EmptyDependenciesAllowed(t *testing.T) {
	e := validEstimate()
	e.Dependencies = []string{}
	if err := e.Validate(); err != nil {
		t.Errorf("Validate() = %v, want nil", err)
	}
}

func TestSecurityReview_Validate(t *testing.T) {
	r := validReview()
	r.ApprovalStatus = "Maybe"
	r.Comments = ""
	ve := fieldsOf(t, r.Validate())
	if !ve.HasField("approval_status") || !ve.HasField("comments") {
		t.Errorf("expected approval_status and comments violations, got %v", ve)
	}

	r = validReview()
	r.OWASPRisks = []string{}
	r.MitigationStrategies = []string{}
	if err := r.Validate(); err != nil {
		t.Errorf("empty lists should be allowed, got %v", err)
	}
}

func TestSecurityReview_Rejected(t *testing.T) {
	r := validReview()
	if r.Rejected() {
		t.Error("Approved review reported as rejected")
	}
	r.ApprovalStatus = ApprovalRejected
	if !r.Rejected() {
		t.Error("Rejected review not reported as rejected")
	}
}

func TestTestPlan_Validate(t *testing.T) {
	tests := []struct {
		name    string
		plan    TestPlan
		wantErr bool
	}{
		{"valid", validPlan(), false},
		{"no scenarios", TestPlan{Scenarios: []string{}, EdgeCases: []string{}}, true},
		{"scenario without gherkin", TestPlan{Scenarios: []string{"check login works"}}, true},
		{"lowercase gherkin accepted", TestPlan{Scenarios: []string{"given x when y then z"}}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.plan.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestFinalTicket_Validate(t *testing.T) {
	tk := validTicket()
	tk.StoryPoints = 0
	tk.Summary = ""
	ve := fieldsOf(t, tk.Validate())
	if !ve.HasField("story_points") || !ve.HasField("summary") {
		t.Errorf("expected story_points and summary violations, got %v", ve)
	}

	tk = validTicket()
	tk.StoryPoints = 40
	if err := tk.Validate(); err != nil {
		t.Errorf("final ticket points only need to be positive, got %v", err)
	}
}

func TestFinalTicket_HasLabel(t *testing.T) {
	tk := validTicket()
	tk.Labels = []string{"auth", "BLOCKED"}
	if !tk.HasLabel("blocked") {
		t.Error("HasLabel should ignore case")
	}
	if tk.HasLabel("security") {
		t.Error("HasLabel reported a label that is not present")
	}
}

func TestGatekeeperInput_Validate(t *testing.T) {
	story, est, rev, plan := validStory(), validEstimate(), validReview(), validPlan()
	full := GatekeeperInput{UserStory: &story, TechEstimate: &est, SecurityReview: &rev, TestPlan: &plan}
	if err := full.Validate(); err != nil {
		t.Fatalf("Validate() = %v, want nil", err)
	}

	partial := full
	partial.SecurityReview = nil
	ve := fieldsOf(t, partial.Validate())
	if !ve.HasField("security_review") {
		t.Errorf("expected missing security_review, got %v", ve)
	}
}
