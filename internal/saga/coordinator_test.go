package saga

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func recordingStep(name string, order *[]string, fail bool) Step {
	return Step{
		Name: name,
		Execute: func(ctx context.Context, sctx *Context) error {
			*order = append(*order, "execute:"+name)
			if fail {
				return errors.New(name + " failed")
			}
			return nil
		},
		Compensate: func(ctx context.Context, sctx *Context) error {
			*order = append(*order, "compensate:"+name)
			return nil
		},
	}
}

func TestRunCompletesAllStepsInOrder(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)
	coord := NewCoordinator(store)

	var order []string
	steps := []Step{
		recordingStep("Pay", &order, false),
		recordingStep("Reserve", &order, false),
		recordingStep("Ship", &order, false),
	}

	err := coord.Run(ctx, "saga-ok", steps)
	require.NoError(t, err)
	require.Equal(t, []string{"execute:Pay", "execute:Reserve", "execute:Ship"}, order)

	st, _, err := store.Load(ctx, "saga-ok")
	require.NoError(t, err)
	require.Equal(t, Completed, st.Status)
	require.Equal(t, []string{"Pay", "Reserve", "Ship"}, st.CompletedSteps)
}

func TestRunCompensatesInReverseOrderOnFailure(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)
	coord := NewCoordinator(store)

	var order []string
	steps := []Step{
		recordingStep("Pay", &order, false),
		recordingStep("Reserve", &order, false),
		recordingStep("Ship", &order, true),
	}

	err := coord.Run(ctx, "saga-fail", steps)
	require.Error(t, err)

	require.Equal(t, []string{
		"execute:Pay", "execute:Reserve", "execute:Ship",
		"compensate:Reserve", "compensate:Pay",
	}, order)

	st, _, loadErr := store.Load(ctx, "saga-fail")
	require.NoError(t, loadErr)
	require.Equal(t, Failed, st.Status)
	require.Equal(t, []string{"Reserve", "Pay"}, st.CompensatedSteps)
}

func TestCompensationFailureIsBestEffortAndContinues(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)
	coord := NewCoordinator(store)

	var order []string
	reserveFailsCompensate := recordingStep("Reserve", &order, false)
	reserveFailsCompensate.Compensate = func(ctx context.Context, sctx *Context) error {
		order = append(order, "compensate:Reserve")
		return errors.New("compensation unavailable")
	}

	steps := []Step{
		recordingStep("Pay", &order, false),
		reserveFailsCompensate,
		recordingStep("Ship", &order, true),
	}

	err := coord.Run(ctx, "saga-partial-comp", steps)
	require.Error(t, err)

	require.Equal(t, []string{
		"execute:Pay", "execute:Reserve", "execute:Ship",
		"compensate:Reserve", "compensate:Pay",
	}, order)

	st, _, loadErr := store.Load(ctx, "saga-partial-comp")
	require.NoError(t, loadErr)
	require.Equal(t, Failed, st.Status)
}

func TestResumeRunningContinuesFromNextUncompletedStep(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)
	coord := NewCoordinator(store)

	st := State{
		SagaID:         "saga-resume",
		CompletedSteps: []string{"Pay"},
		Context:        NewContext(),
		Status:         Running,
	}
	_, err := store.Save(ctx, st, 0)
	require.NoError(t, err)

	var order []string
	steps := []Step{
		recordingStep("Pay", &order, false),
		recordingStep("Reserve", &order, false),
		recordingStep("Ship", &order, false),
	}

	err = coord.Resume(ctx, "saga-resume", steps)
	require.NoError(t, err)
	require.Equal(t, []string{"execute:Reserve", "execute:Ship"}, order,
		"Pay already completed before the crash, so it must not re-execute")

	loaded, _, err := store.Load(ctx, "saga-resume")
	require.NoError(t, err)
	require.Equal(t, Completed, loaded.Status)
}

func TestResumeCompensatingContinuesReverseCompensation(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)
	coord := NewCoordinator(store)

	st := State{
		SagaID:           "saga-resume-comp",
		CompletedSteps:   []string{"Pay", "Reserve", "Ship"},
		CompensatedSteps: []string{"Ship"},
		Context:          NewContext(),
		Status:           Compensating,
		FailureReason:    "downstream unavailable",
	}
	_, err := store.Save(ctx, st, 0)
	require.NoError(t, err)

	var order []string
	steps := []Step{
		recordingStep("Pay", &order, false),
		recordingStep("Reserve", &order, false),
		recordingStep("Ship", &order, false),
	}

	err = coord.Resume(ctx, "saga-resume-comp", steps)
	require.Error(t, err)
	require.Equal(t, []string{"compensate:Reserve", "compensate:Pay"}, order,
		"Ship was already compensated before the crash")

	loaded, _, err := store.Load(ctx, "saga-resume-comp")
	require.NoError(t, err)
	require.Equal(t, Failed, loaded.Status)
}

func TestResumeTerminalStatusIsNoOp(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)
	coord := NewCoordinator(store)

	st := State{SagaID: "saga-done", Context: NewContext(), Status: Completed}
	_, err := store.Save(ctx, st, 0)
	require.NoError(t, err)

	err = coord.Resume(ctx, "saga-done", nil)
	require.NoError(t, err)
}
