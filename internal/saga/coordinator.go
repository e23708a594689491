package saga

import (
	"context"
	"fmt"

	"github.com/oklog/ulid/v2"
	"github.com/quark-run/quark/internal/statestore"
)

// Coordinator runs ordered-step sagas to completion, persisting progress
// after every successful step and reverse-compensating on failure.
type Coordinator struct {
	store *Store
}

// NewCoordinator constructs a Coordinator persisting through store.
func NewCoordinator(store *Store) *Coordinator {
	return &Coordinator{store: store}
}

// NewSagaID returns a fresh, chronologically sortable saga identifier.
func NewSagaID() string {
	return ulid.Make().String()
}

// Run executes steps in order against a fresh Context, persisting State
// after each successful step. On a step failure it compensates every
// completed step in reverse and returns an error naming the saga and
// carrying the failed step's error message (the step error itself is not
// wrapped); on full success it returns nil.
func (c *Coordinator) Run(ctx context.Context, sagaID string, steps []Step) error {
	st := State{
		SagaID:  sagaID,
		Context: NewContext(),
		Status:  Running,
	}

	version, err := c.store.Save(ctx, st, 0)
	if err != nil {
		return fmt.Errorf("persist initial saga state: %w", err)
	}

	return c.runFrom(ctx, steps, st, version, 0)
}

// Resume reloads sagaID's persisted State and continues it: a Running saga
// resumes forward execution from its next uncompleted step; a Compensating
// saga resumes reverse compensation from its last-recorded compensated
// step. It is a no-op (returning nil) if the saga already reached a
// terminal Status.
func (c *Coordinator) Resume(ctx context.Context, sagaID string, steps []Step) error {
	st, version, err := c.store.Load(ctx, sagaID)
	if err != nil {
		return err
	}

	switch st.Status {
	case Completed, Failed:
		return nil

	case Running:
		return c.runFrom(ctx, steps, st, version, len(st.CompletedSteps))

	case Compensating:
		return c.compensateFrom(ctx, steps, st, version)

	default:
		return fmt.Errorf("saga %s: unknown status %q", sagaID, st.Status)
	}
}

// runFrom executes steps[fromIdx:] forward, persisting after each success.
// On failure it transitions to Compensating (persisting that transition
// atomically with the CompletedSteps recorded so far) and compensates.
func (c *Coordinator) runFrom(ctx context.Context, steps []Step, st State,
	version statestore.Version, fromIdx int) error {

	for i := fromIdx; i < len(steps); i++ {
		step := steps[i]

		if err := step.Execute(ctx, st.Context); err != nil {
			log.WarnS(ctx, "saga step failed, compensating",
				"saga_id", st.SagaID, "step", step.Name, "err", err)

			st.Status = Compensating
			st.FailureReason = err.Error()

			newVersion, saveErr := c.store.Save(ctx, st, version)
			if saveErr != nil {
				return fmt.Errorf("persist compensating transition: %w", saveErr)
			}

			return c.compensateFrom(ctx, steps, st, newVersion)
		}

		st.CompletedSteps = append(st.CompletedSteps, step.Name)

		newVersion, err := c.store.Save(ctx, st, version)
		if err != nil {
			return fmt.Errorf("persist step %q completion: %w", step.Name, err)
		}
		version = newVersion
	}

	st.Status = Completed
	if _, err := c.store.Save(ctx, st, version); err != nil {
		return fmt.Errorf("persist completed saga: %w", err)
	}

	return nil
}

// compensateFrom replays CompletedSteps in reverse, skipping any step named
// in CompensatedSteps already (the Resume-after-crash case), invoking
// Compensate for the rest. Compensation failures are logged and compensation
// continues (best-effort); the saga always ends Failed once every completed
// step has had a compensation attempt.
func (c *Coordinator) compensateFrom(ctx context.Context, steps []Step, st State,
	version statestore.Version) error {

	byName := make(map[string]Step, len(steps))
	for _, s := range steps {
		byName[s.Name] = s
	}

	alreadyDone := make(map[string]bool, len(st.CompensatedSteps))
	for _, name := range st.CompensatedSteps {
		alreadyDone[name] = true
	}

	for i := len(st.CompletedSteps) - 1; i >= 0; i-- {
		name := st.CompletedSteps[i]
		if alreadyDone[name] {
			continue
		}

		step, ok := byName[name]
		if !ok || step.Compensate == nil {
			continue
		}

		if err := step.Compensate(ctx, st.Context); err != nil {
			log.WarnS(ctx, "saga compensation failed, continuing best-effort",
				"saga_id", st.SagaID, "step", name, "err", err)
		}

		st.CompensatedSteps = append(st.CompensatedSteps, name)

		newVersion, err := c.store.Save(ctx, st, version)
		if err != nil {
			return fmt.Errorf("persist compensation of step %q: %w", name, err)
		}
		version = newVersion
	}

	st.Status = Failed
	if _, err := c.store.Save(ctx, st, version); err != nil {
		return fmt.Errorf("persist failed saga: %w", err)
	}

	return fmt.Errorf("saga %s failed: %s", st.SagaID, st.FailureReason)
}
