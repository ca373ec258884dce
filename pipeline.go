package podsite

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// ErrSkipStep may be returned (wrapped) by a step to report that it chose
// not to run. The plan logs the reason and continues.
var ErrSkipStep = errors.New("step skipped")

// Step is one stage of a build.
type Step struct {
	Name string
	// Requires names steps that must complete earlier in the same plan.
	Requires []string
	// Check verifies preconditions on disk before Run starts.
	Check func(ctx context.Context) error
	Run   func(ctx context.Context) error
}

// Plan runs steps in order. Dependencies are validated when the plan is
// built, so a step can never start before the steps it requires.
type Plan struct {
	steps []Step
	Log   *zap.Logger
}

// NewPlan validates that step names are unique and that every requirement
// names a step listed before it.
func NewPlan(steps ...Step) (*Plan, error) {
	seen := make(map[string]bool, len(steps))
	for i, s := range steps {
		if s.Name == "" {
			return nil, fmt.Errorf("step %d has no name", i)
		}
		if s.Run == nil {
			return nil, fmt.Errorf("step %s has no run function", s.Name)
		}
		if seen[s.Name] {
			return nil, fmt.Errorf("duplicate step %s", s.Name)
		}
		for _, req := range s.Requires {
			if !seen[req] {
				return nil, fmt.Errorf("step %s requires %s, which does not run before it", s.Name, req)
			}
		}
		seen[s.Name] = true
	}
	return &Plan{steps: steps, Log: zap.NewNop()}, nil
}

// Names returns the step names in run order.
func (p *Plan) Names() []string {
	names := make([]string, len(p.steps))
	for i, s := range p.steps {
		names[i] = s.Name
	}
	return names
}

// Run executes the steps in order and stops at the first failure.
func (p *Plan) Run(ctx context.Context) error {
	log := p.Log
	if log == nil {
		log = zap.NewNop()
	}
	start := time.Now()
	for _, s := range p.steps {
		if err := ctx.Err(); err != nil {
			return err
		}
		stepLog := log.With(zap.String("step", s.Name))
		stepStart := time.Now()
		stepLog.Debug("step started")

		if s.Check != nil {
			if err := s.Check(ctx); err != nil {
				stepLog.Error("step precondition failed", zap.Error(err))
				return fmt.Errorf("step %s: precondition: %w", s.Name, err)
			}
		}
		err := s.Run(ctx)
		switch {
		case errors.Is(err, ErrSkipStep):
			stepLog.Warn("step skipped", zap.String("reason", err.Error()))
		case err != nil:
			stepLog.Error("step failed", zap.Duration("duration", time.Since(stepStart)), zap.Error(err))
			return fmt.Errorf("step %s: %w", s.Name, err)
		default:
			stepLog.Info("step completed", zap.Duration("duration", time.Since(stepStart)))
		}
	}
	log.Info("plan completed", zap.Int("steps", len(p.steps)), zap.Duration("duration", time.Since(start)))
	return nil
}
