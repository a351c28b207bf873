package models

import (
	"encoding/json"
	"errors"
	"reflect"
	"testing"
)

func roundTrip[T Record](t *testing.T, in T) {
	t.Helper()
	raw, err := json.Marshal(in)
	if err != nil {
		t.Fatalf("marshal %s: %v", in.SchemaName(), err)
	}
	out, err := Decode[T](raw)
	if err != nil {
		t.Fatalf("Decode %s: %v", in.SchemaName(), err)
	}
	if !reflect.DeepEqual(in, out) {
		t.Errorf("round trip %s mismatch:\n in: %+v\nout: %+v", in.SchemaName(), in, out)
	}
}

// The round trip holds for normalised values: a nil list marshals to null and
// comes back as an empty slice. The fixtures below use non-nil lists.
func TestDecode_RoundTripNormalizedValues(t *testing.T) {
	roundTrip(t, validStory())
	roundTrip(t, validEstimate())
	roundTrip(t, validReview())
	roundTrip(t, validPlan())
	roundTrip(t, validTicket())
}

func TestDecode_RoundTripAfterNormalization(t *testing.T) {
	// A decoded value with defaulted lists must survive another round trip.
	est, err := Decode[TechEstimate]([]byte(`{"story_points":3,"complexity":"Low","technical_notes":"n"}`))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if est.Dependencies == nil || len(est.Dependencies) != 0 {
		t.Errorf("Dependencies = %#v, want empty slice", est.Dependencies)
	}
	roundTrip(t, est)
}

func TestDecode_NullListsBecomeEmpty(t *testing.T) {
	raw := []byte(`{"owasp_risks":null,"mitigation_strategies":null,"approval_status":"Approved","comments":"ok"}`)
	rev, err := Decode[SecurityReview](raw)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if rev.OWASPRisks == nil || rev.MitigationStrategies == nil {
		t.Errorf("lists not normalised: %+v", rev)
	}
}

func TestDecode_RequiredKeys(t *testing.T) {
	tests := []struct {
		schema string
		doc    map[string]any
		decode func([]byte) error
	}{
		{
			schema: SchemaUserStory,
			doc:    map[string]any{"title": "t", "description": "d", "acceptance_criteria": []string{"a"}, "priority": "High"},
			decode: func(b []byte) error { _, err := Decode[UserStory](b); return err },
		},
		{
			schema: SchemaTechEstimate,
			doc:    map[string]any{"story_points": 3, "complexity": "Low", "technical_notes": "n"},
			decode: func(b []byte) error { _, err := Decode[TechEstimate](b); return err },
		},
		{
			schema: SchemaSecurityReview,
			doc:    map[string]any{"approval_status": "Approved", "comments": "ok"},
			decode: func(b []byte) error { _, err := Decode[SecurityReview](b); return err },
		},
		{
			schema: SchemaTestPlan,
			doc:    map[string]any{"scenarios": []string{"Given a user When they log in Then they see the dashboard"}},
			decode: func(b []byte) error { _, err := Decode[TestPlan](b); return err },
		},
		{
			schema: SchemaFinalTicket,
			doc:    map[string]any{"summary": "s", "description": "d", "story_points": 5, "priority": "Low"},
			decode: func(b []byte) error { _, err := Decode[FinalTicket](b); return err },
		},
	}

	for _, tt := range tests {
		t.Run(tt.schema, func(t *testing.T) {
			s, err := LookupSchema(tt.schema)
			if err != nil {
				t.Fatalf("LookupSchema: %v", err)
			}
			if len(s.Required) != len(tt.doc) {
				t.Errorf("Required = %v, fixture has %d keys", s.Required, len(tt.doc))
			}

			// Exactly the required keys are enough.
			raw, _ := json.Marshal(tt.doc)
			if err := tt.decode(raw); err != nil {
				t.Fatalf("Decode with required keys only: %v", err)
			}

			// Dropping any one of them fails.
			for _, key := range s.Required {
				partial := make(map[string]any, len(tt.doc))
				for k, v := range tt.doc {
					if k != key {
						partial[k] = v
					}
				}
				raw, _ := json.Marshal(partial)
				if err := tt.decode(raw); err == nil {
					t.Errorf("Decode without %q succeeded, want error", key)
				}
			}
		})
	}
}

func TestDecode_Rejects(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"malformed json", `{"title": "x"`},
		{"unknown field", `{"title":"t","description":"d","acceptance_criteria":["a"],"priority":"High","extra":1}`},
		{"trailing data", `{"title":"t","description":"d","acceptance_criteria":["a"],"priority":"High"} {}`},
		{"wrong type", `{"title":1,"description":"d","acceptance_criteria":["a"],"priority":"High"}`},
		{"invalid enum", `{"title":"t","description":"d","acceptance_criteria":["a"],"priority":"Urgent"}`},
		{"missing required", `{"title":"t"}`},
		{"null document", `null`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Decode[UserStory]([]byte(tt.raw)); err == nil {
				t.Errorf("Decode(%s) succeeded, want error", tt.raw)
			}
		})
	}
}

func TestDecode_ValidationErrorIsTyped(t *testing.T) {
	_, err := Decode[TechEstimate]([]byte(`{"story_points":4,"complexity":"Low","technical_notes":"n","dependencies":[]}`))
	var ve *ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected *ValidationError, got %T: %v", err, err)
	}
	if !ve.HasField("story_points") {
		t.Errorf("expected story_points violation, got %v", ve)
	}
}

func TestSlug(t *testing.T) {
	tests := []struct {
		summary string
		want    string
	}{
		{"Login Page", "login_page"},
		{"  Add OAuth login  ", "add_oauth_login"},
		{"Fix ../../etc/passwd", "fix_etcpasswd"},
		{"Already_slugged-name", "already_slugged-name"},
		{"Café menu", "café_menu"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.summary, func(t *testing.T) {
			if got := Slug(tt.summary); got != tt.want {
				t.Errorf("Slug(%q) = %q, want %q", tt.summary, got, tt.want)
			}
		})
	}
}

func TestSchemaFor(t *testing.T) {
	if got := SchemaFor[UserStory]().Name; got != SchemaUserStory {
		t.Errorf("SchemaFor[UserStory]().Name = %q", got)
	}
	for _, name := range SchemaNames() {
		s, err := LookupSchema(name)
		if err != nil {
			t.Fatalf("LookupSchema(%q): %v", name, err)
		}
		for _, req := range s.Required {
			if _, ok := s.Properties[req]; !ok {
				t.Errorf("schema %s requires %q but does not define it", name, req)
			}
		}
		js := s.JSONSchema()
		if js["type"] != "object" {
			t.Errorf("schema %s JSONSchema type = %v", name, js["type"])
		}
	}
	if _, err := LookupSchema("nope"); err == nil {
		t.Error("LookupSchema(nope) succeeded, want error")
	}
}
