package models

import "fmt"

// Schema describes the JSON shape a generation backend must produce.
// Properties uses JSON Schema vocabulary so it can be handed directly to
// tool-input or response-schema parameters. Required lists exactly the keys
// Decode insists on; lists that may be empty are left out and default to
// empty slices.
type Schema struct {
	Name        string
	Description string
	Properties  map[string]any
	Required    []string
}

// JSONSchema returns the schema as a JSON Schema object.
func (s Schema) JSONSchema() map[string]any {
	return map[string]any{
		"type":                 "object",
		"properties":           s.Properties,
		"required":             s.Required,
		"additionalProperties": false,
	}
}

func stringProp(desc string) map[string]any {
	return map[string]any{"type": "string", "description": desc}
}

func enumProp(desc string, values ...string) map[string]any {
	return map[string]any{"type": "string", "description": desc, "enum": values}
}

func listProp(desc string) map[string]any {
	return map[string]any{
		"type":        "array",
		"description": desc,
		"items":       map[string]any{"type": "string"},
	}
}

func priorityProp() map[string]any {
	return enumProp("Business priority",
		string(PriorityHigh), string(PriorityMedium), string(PriorityLow))
}

var registry = map[string]Schema{
	SchemaUserStory: {
		Name:        SchemaUserStory,
		Description: "A user story with acceptance criteria and priority.",
		Properties: map[string]any{
			"title":               stringProp("Short title of the story"),
			"description":         stringProp("As a <role>, I want <feature>, so that <benefit>."),
			"acceptance_criteria": listProp("Concrete, testable acceptance criteria"),
			"priority":            priorityProp(),
		},
		Required: []string{"title", "description", "acceptance_criteria", "priority"},
	},
	SchemaTechEstimate: {
		Name:        SchemaTechEstimate,
		Description: "A technical estimate for a user story.",
		Properties: map[string]any{
			"story_points": map[string]any{
				"type":        "integer",
				"description": "Fibonacci story point estimate",
				"enum":        FibonacciPoints,
			},
			"complexity": enumProp("Overall technical complexity",
				string(ComplexityLow), string(ComplexityMedium), string(ComplexityHigh)),
			"technical_notes": stringProp("Implementation notes and risks"),
			"dependencies":    listProp("Systems, services or libraries the work depends on"),
		},
		Required: []string{"story_points", "complexity", "technical_notes"},
	},
	SchemaSecurityReview: {
		Name:        SchemaSecurityReview,
		Description: "An OWASP-oriented security review of a user story.",
		Properties: map[string]any{
			"owasp_risks":           listProp("Applicable OWASP Top 10 risks"),
			"mitigation_strategies": listProp("Mitigations for the identified risks"),
			"approval_status": enumProp("Security verdict",
				string(ApprovalApproved), string(ApprovalRejected), string(ApprovalNeedsRevision)),
			"comments": stringProp("Reviewer comments"),
		},
		Required: []string{"approval_status", "comments"},
	},
	SchemaTestPlan: {
		Name:        SchemaTestPlan,
		Description: "A Gherkin test plan for a user story.",
		Properties: map[string]any{
			"scenarios":  listProp("Test scenarios written as Given/When/Then"),
			"edge_cases": listProp("Edge cases worth testing"),
		},
		Required: []string{"scenarios"},
	},
	SchemaFinalTicket: {
		Name:        SchemaFinalTicket,
		Description: "The consolidated, ready-to-file ticket.",
		Properties: map[string]any{
			"summary":      stringProp("One-line ticket summary"),
			"description":  stringProp("Full ticket description including story, acceptance criteria, technical notes, security notes and test plan"),
			"story_points": map[string]any{"type": "integer", "description": "Story points", "minimum": 1},
			"labels":       listProp("Ticket labels"),
			"priority":     priorityProp(),
		},
		Required: []string{"summary", "description", "story_points", "priority"},
	},
}

// LookupSchema returns the registered schema by name.
func LookupSchema(name string) (Schema, error) {
	s, ok := registry[name]
	if !ok {
		return Schema{}, fmt.Errorf("unknown schema %q", name)
	}
	return s, nil
}

// SchemaFor returns the registered schema of record type T.
func SchemaFor[T Record]() Schema {
	var zero T
	return registry[zero.SchemaName()]
}

// SchemaNames lists every registered schema name in pipeline order.
func SchemaNames() []string {
	return []string{SchemaUserStory, SchemaTechEstimate, SchemaSecurityReview, SchemaTestPlan, SchemaFinalTicket}
}
