// Package orchestrator drives a brain dump through the ticket pipeline.
//
// A run moves through a fixed sequence of stages:
//   - POStage: the product owner turns the raw text into a user story
//   - SpecialistStage: tech lead, secops and QA review the story in parallel
//   - AggregateStage: the four records are merged into the gatekeeper input
//   - GatekeeperStage: the gatekeeper writes the final ticket, which is then
//     checked against the gatekeeper policy
//
// Any failure stops the run in Failed(stage) and no ticket is produced.
// Every stage output is kept in the run's WorkflowContext.
//
// Example usage:
//
//	roles := agent.NewRoles(agent.DefaultPrompts(), adapter)
//	orch := orchestrator.New(roles, orchestrator.WithPolicy(policy.Default()))
//	result, err := orch.Run(ctx, "users need to log in with email and password")
package orchestrator
