// Package saga implements the ordered-step saga coordinator: a sequence of
// (Execute, Compensate) steps sharing a context, persisted after every
// successful step so a crash can resume from where it left off. Adapted
// from the teacher's internal/review FSM (ReviewState/ReviewTransition plus
// its PersistReviewState outbox event) generalized from a fixed 8-state
// code-review workflow to an arbitrary ordered list of caller-supplied
// steps.
package saga

import (
	"context"
	"errors"
)

// Status is the lifecycle state of a saga run.
type Status string

const (
	// Running means steps are still being executed forward.
	Running Status = "running"

	// Compensating means a step failed and Compensate is being replayed
	// in reverse over the completed steps.
	Compensating Status = "compensating"

	// Completed means every step executed successfully.
	Completed Status = "completed"

	// Failed means compensation finished (successfully or not) after a
	// step failure.
	Failed Status = "failed"
)

// ErrNotFound is returned by Resume when no persisted state exists for a
// saga ID.
var ErrNotFound = errors.New("saga: not found")

// StepFunc performs one half of a Step against the shared Context, either
// forward (Execute) or in reverse (Compensate).
type StepFunc func(ctx context.Context, sctx *Context) error

// Step is one named unit of saga work.
type Step struct {
	Name       string
	Execute    StepFunc
	Compensate StepFunc
}

// Context is the mutable state threaded through every step of one saga run.
// Steps communicate with each other only through it; the coordinator never
// inspects its contents. Values is gob-encoded on every persisted Save, so
// any concrete type a step stores here must be registered with gob.Register
// once at startup, the same requirement internal/transport's frame codec
// places on dispatched argument types.
type Context struct {
	Values map[string]any
}

// NewContext returns an empty Context.
func NewContext() *Context {
	return &Context{Values: make(map[string]any)}
}

// State is the durable record of one saga run: which steps have completed
// and the run's current Status. It is gob-encoded and persisted via
// internal/statestore's optimistic-concurrency ActorStateStore, reusing the
// same Load/Save/Version machinery the host uses for actor state, keyed by
// (actorType="saga", actorID=SagaID, slot="state").
type State struct {
	SagaID         string
	CompletedSteps []string

	// CompensatedSteps names the steps whose Compensate has already run,
	// in the order they were compensated, so Resume can pick up reverse
	// compensation without redoing work.
	CompensatedSteps []string

	Context *Context
	Status  Status

	// FailureReason records why the saga entered Compensating, for
	// diagnostics.
	FailureReason string
}
