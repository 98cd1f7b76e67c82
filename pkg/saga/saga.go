// Package saga runs a sequence of steps and undoes the completed ones when a later step fails.
package saga

import (
	"context"
	"errors"
	"fmt"
)

type Step struct {
	Name       string
	Execute    func(ctx context.Context) error
	Compensate func(ctx context.Context) error // optional
}

// StepError reports which step failed and whether undoing the earlier steps worked.
type StepError struct {
	Saga            string
	Step            string
	Index           int
	Err             error
	CompensationErr error
}

func (e *StepError) Error() string {
	if e.CompensationErr != nil {
		return fmt.Sprintf("saga %s: step %q failed (%v), compensation also failed: %v", e.Saga, e.Step, e.Err, e.CompensationErr)
	}
	return fmt.Sprintf("saga %s: step %q failed: %v", e.Saga, e.Step, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}

type Saga struct {
	name  string
	steps []Step
}

func New(name string) *Saga {
	return &Saga{name: name}
}

func (s *Saga) AddStep(step Step) *Saga {
	s.steps = append(s.steps, step)
	return s
}

// Run executes the steps in order. On the first failure the completed steps are
// compensated in reverse order and a *StepError is returned.
// Compensation runs on a context that outlives cancellation of ctx.
func (s *Saga) Run(ctx context.Context) error {
	for i, step := range s.steps {
		err := step.Execute(ctx)
		if err == nil {
			continue
		}
		return &StepError{
			Saga:            s.name,
			Step:            step.Name,
			Index:           i,
			Err:             err,
			CompensationErr: s.compensate(context.WithoutCancel(ctx), i),
		}
	}
	return nil
}

// compensate undoes steps[0:failed] from last to first.
func (s *Saga) compensate(ctx context.Context, failed int) error {
	var errs []error
	for i := failed - 1; i >= 0; i-- {
		step := s.steps[i]
		if step.Compensate == nil {
			continue
		}
		if err := step.Compensate(ctx); err != nil {
			errs = append(errs, fmt.Errorf("compensate step %q: %w", step.Name, err))
		}
	}
	return errors.Join(errs...)
}
