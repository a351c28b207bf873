package agent

import (
	"context"
	"fmt"
	"log"
	"time"

	"golang.org/x/sync/errgroup"
)

// AggregationFailure reports that a runner could not assemble its result:
// a missing or mistyped member, a wrong result count, or nothing to run.
type AggregationFailure struct {
	Runner   string
	Expected int
	Got      int
	Reason   string
}

func (e *AggregationFailure) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("aggregate %s: %s", e.Runner, e.Reason)
	}
	return fmt.Sprintf("aggregate %s: expected %d results, got %d", e.Runner, e.Expected, e.Got)
}

// StepError identifies which step of a runner failed.
type StepError struct {
	Runner string
	Step   string
	Index  int
	Err    error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("%s step %d (%s): %v", e.Runner, e.Index, e.Step, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}

// Sequential runs steps one after another, feeding each output into the
// next step. The first failure stops the run.
type Sequential struct {
	name  string
	steps []Executor
}

// NewSequential creates a sequential runner.
func NewSequential(name string, steps ...Executor) *Sequential {
	return &Sequential{name: name, steps: steps}
}

// Name implements Executor.
func (s *Sequential) Name() string {
	return s.name
}

// Run returns the output of the last step.
func (s *Sequential) Run(ctx context.Context, input any) (any, error) {
	if len(s.steps) == 0 {
		return nil, &AggregationFailure{Runner: s.name, Reason: "no steps to run"}
	}

	current := input
	for i, step := range s.steps {
		if err := ctx.Err(); err != nil {
			return nil, &StepError{Runner: s.name, Step: step.Name(), Index: i, Err: err}
		}
		log.Printf("[%s] running %s", s.name, step.Name())
		out, err := step.Execute(ctx, current)
		if err != nil {
			return nil, &StepError{Runner: s.name, Step: step.Name(), Index: i, Err: err}
		}
		current = out
	}
	return current, nil
}

// Execute implements Executor.
func (s *Sequential) Execute(ctx context.Context, input any) (any, error) {
	return s.Run(ctx, input)
}

// Parallel runs every step concurrently on the same input. Results come
// back in step order whatever the completion order. If any step fails the
// whole group fails and no partial results are returned; the remaining
// steps are allowed to finish so in-flight calls are not abandoned.
type Parallel struct {
	name  string
	steps []Executor
}

// NewParallel creates a parallel runner.
func NewParallel(name string, steps ...Executor) *Parallel {
	return &Parallel{name: name, steps: steps}
}

// Name implements Executor.
func (p *Parallel) Name() string {
	return p.name
}

// Len returns the number of steps.
func (p *Parallel) Len() int {
	return len(p.steps)
}

// Run returns one result per step, in step order.
func (p *Parallel) Run(ctx context.Context, input any) ([]any, error) {
	if len(p.steps) == 0 {
		return nil, &AggregationFailure{Runner: p.name, Reason: "no steps to run"}
	}

	log.Printf("[%s] running %d steps in parallel", p.name, len(p.steps))
	start := time.Now()

	results := make([]any, len(p.steps))
	var g errgroup.Group
	for i, step := range p.steps {
		g.Go(func() error {
			out, err := step.Execute(ctx, input)
			if err != nil {
				return &StepError{Runner: p.name, Step: step.Name(), Index: i, Err: err}
			}
			results[i] = out
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	got := 0
	for _, r := range results {
		if r != nil {
			got++
		}
	}
	if got != len(p.steps) {
		return nil, &AggregationFailure{Runner: p.name, Expected: len(p.steps), Got: got}
	}

	log.Printf("[%s] %d steps completed in %s", p.name, len(p.steps), time.Since(start).Round(time.Millisecond))
	return results, nil
}

// Execute implements Executor.
func (p *Parallel) Execute(ctx context.Context, input any) (any, error) {
	return p.Run(ctx, input)
}

// As unpacks a positional runner result into its concrete type.
func As[T any](runner string, results []any, index int) (T, error) {
	var zero T
	if index < 0 || index >= len(results) {
		return zero, &AggregationFailure{Runner: runner, Reason: fmt.Sprintf("no result at position %d", index)}
	}
	v, ok := results[index].(T)
	if !ok {
		return zero, &AggregationFailure{
			Runner: runner,
			Reason: fmt.Sprintf("result %d is %T, want %T", index, results[index], zero),
		}
	}
	return v, nil
}
