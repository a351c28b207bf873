package agent

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ProductOwnerInstruction turns a raw brain dump into a user story.
const ProductOwnerInstruction = `You are an expert Product Owner. You receive raw, unstructured "brain dumps" of product requirements and turn them into clear, concise, actionable user stories.

Produce a user story with:
1. A clear title.
2. A description in the form "As a <role>, I want <feature>, so that <benefit>".
3. A list of specific, testable acceptance criteria.
4. A priority: High, Medium or Low.

Focus on user value and clarity. Keep technical jargon out of the description.`

// TechLeadInstruction sizes a user story.
const TechLeadInstruction = `You are a Senior Technical Lead. Estimate the effort and identify the technical implications of the user story you receive.

Provide:
1. Story points on the Fibonacci scale: 1, 2, 3, 5, 8, 13 or 21.
2. A complexity level: Low, Medium or High.
3. Technical notes covering implementation details, likely challenges and architectural considerations.
4. Dependencies: libraries, services or other tickets the story depends on. Use an empty list if there are none.

Be realistic and conservative.`

// SecOpsInstruction reviews a user story for OWASP Top 10 risks.
const SecOpsInstruction = `You are a Security Operations expert. Review the user story you receive for security risks, in particular the OWASP Top 10.

Provide:
1. The OWASP risks that apply.
2. A mitigation strategy for each risk.
3. An approval status: Approved, Rejected or Needs Revision.
4. General security comments.

Be extra vigilant when the story involves user input, authentication or data storage.`

// QAInstruction writes a Gherkin test plan for a user story.
const QAInstruction = `You are an expert QA Automation Engineer. Write a comprehensive test plan for the user story you receive.

Focus on:
1. Gherkin syntax: every scenario uses Given/When/Then.
2. Edge cases: failure points and boundary conditions.
3. Coverage: every acceptance criterion is exercised by at least one scenario.`

// GatekeeperInstruction consolidates every upstream output into the final ticket.
const GatekeeperInstruction = `You are the Gatekeeper and Scrum Master. Synthesise the work of the Product Owner, Tech Lead, SecOps expert and QA engineer into one production-ready ticket.

You receive:
1. A user story (Product Owner).
2. A technical estimate (Tech Lead).
3. A security review (SecOps).
4. A test plan (QA).

Your task:
1. Write a concise summary.
2. Write a description that combines the user story, acceptance criteria, technical notes, security review and test plan in a readable format.
3. Keep priority and story points consistent with the inputs: use the Tech Lead's story points.
4. Add labels that fit the content.

If the security review is "Rejected", still create the ticket, but add the label "BLOCKED" and highlight the security issues in the description.`

// Prompts holds the instruction of every pipeline role.
type Prompts struct {
	ProductOwner string `yaml:"product_owner"`
	TechLead     string `yaml:"tech_lead"`
	SecOps       string `yaml:"secops"`
	QA           string `yaml:"qa"`
	Gatekeeper   string `yaml:"gatekeeper"`
}

// DefaultPrompts returns the built-in role instructions.
func DefaultPrompts() Prompts {
	return Prompts{
		ProductOwner: ProductOwnerInstruction,
		TechLead:     TechLeadInstruction,
		SecOps:       SecOpsInstruction,
		QA:           QAInstruction,
		Gatekeeper:   GatekeeperInstruction,
	}
}

// LoadPrompts reads role instruction overrides from a YAML file. Roles the
// file leaves blank keep their built-in instruction. An empty path returns
// the defaults.
func LoadPrompts(path string) (Prompts, error) {
	p := DefaultPrompts()
	if path == "" {
		return p, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return p, fmt.Errorf("read prompts file: %w", err)
	}

	var override Prompts
	if err := yaml.Unmarshal(data, &override); err != nil {
		return p, fmt.Errorf("parse prompts file %s: %w", path, err)
	}

	p.ProductOwner = pick(override.ProductOwner, p.ProductOwner)
	p.TechLead = pick(override.TechLead, p.TechLead)
	p.SecOps = pick(override.SecOps, p.SecOps)
	p.QA = pick(override.QA, p.QA)
	p.Gatekeeper = pick(override.Gatekeeper, p.Gatekeeper)
	return p, nil
}

func pick(override, fallback string) string {
	if override != "" {
		return override
	}
	return fallback
}
