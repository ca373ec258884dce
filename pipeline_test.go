package podsite

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func recordStep(name string, ran *[]string, requires ...string) Step {
	return Step{
		Name:     name,
		Requires: requires,
		Run: func(context.Context) error {
			*ran = append(*ran, name)
			return nil
		},
	}
}

func TestNewPlanValidatesOrder(t *testing.T) {
	var ran []string
	tests := []struct {
		name    string
		steps   []Step
		wantErr string
	}{
		{"unnamed", []Step{{Run: func(context.Context) error { return nil }}}, "has no name"},
		{"no run", []Step{{Name: "a"}}, "no run function"},
		{"duplicate", []Step{recordStep("a", &ran), recordStep("a", &ran)}, "duplicate step a"},
		{"unknown requirement", []Step{recordStep("upload", &ran, "bundle")}, "requires bundle"},
		{"requirement after", []Step{recordStep("upload", &ran, "bundle"), recordStep("bundle", &ran)}, "requires bundle"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewPlan(tt.steps...)
			require.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestPlanRunsInOrder(t *testing.T) {
	var ran []string
	plan, err := NewPlan(
		recordStep("clean", &ran),
		recordStep("scripts", &ran, "clean"),
		recordStep("pages", &ran, "scripts"),
		recordStep("upload", &ran, "scripts", "pages"),
	)
	require.NoError(t, err)
	require.Equal(t, []string{"clean", "scripts", "pages", "upload"}, plan.Names())
	require.NoError(t, plan.Run(context.Background()))
	require.Equal(t, plan.Names(), ran)
}

func TestPlanStopsAtFailure(t *testing.T) {
	var ran []string
	boom := errors.New("boom")
	plan, err := NewPlan(
		recordStep("clean", &ran),
		Step{Name: "pages", Run: func(context.Context) error { return boom }},
		recordStep("upload", &ran, "pages"),
	)
	require.NoError(t, err)
	err = plan.Run(context.Background())
	require.ErrorIs(t, err, boom)
	require.ErrorContains(t, err, "step pages")
	require.Equal(t, []string{"clean"}, ran)
}

func TestPlanCheckFailureSkipsRun(t *testing.T) {
	var ran []string
	step := recordStep("upload", &ran)
	step.Check = func(context.Context) error { return errors.New("bundle missing") }
	plan, err := NewPlan(step)
	require.NoError(t, err)
	err = plan.Run(context.Background())
	require.ErrorContains(t, err, "precondition: bundle missing")
	require.Empty(t, ran)
}

func TestPlanSkippedStepContinues(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	var ran []string
	plan, err := NewPlan(
		Step{Name: "upload", Run: func(context.Context) error {
			return fmt.Errorf("%w: no credentials", ErrSkipStep)
		}},
		recordStep("after", &ran),
	)
	require.NoError(t, err)
	plan.Log = zap.New(core)
	require.NoError(t, plan.Run(context.Background()))
	require.Equal(t, []string{"after"}, ran)
	require.Equal(t, 1, logs.FilterMessage("step skipped").Len())
	require.Equal(t, 1, logs.FilterMessage("step completed").Len())
}

func TestPlanHonoursCancellation(t *testing.T) {
	var ran []string
	plan, err := NewPlan(recordStep("clean", &ran))
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.ErrorIs(t, plan.Run(ctx), context.Canceled)
	require.Empty(t, ran)
}
