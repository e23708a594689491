// Package supervisor implements the parent->child failure-directive protocol
// that sits above internal/host's activation layer: when a child actor's
// turn panics or returns an error, its supervisor decides whether to resume,
// restart, stop, or escalate the failure to its own parent.
//
// The shape is generalized from the teacher's Stoppable/OnStop shutdown
// hook (internal/baselib/actor.Stoppable, Actor.stop) into a decision point
// invoked on failure rather than only on intentional shutdown.
package supervisor

import (
	"context"

	"github.com/quark-run/quark/internal/identity"
)

// Directive is the action a Supervisor chooses in response to a child's
// failure.
type Directive int

const (
	// Resume leaves the child's state untouched and lets it keep
	// processing subsequent messages.
	Resume Directive = iota

	// Restart discards the child's state, reruns its activation hook,
	// and resumes processing.
	Restart

	// Stop deactivates the child and does not restart it.
	Stop

	// Escalate reports the failure to the supervisor's own parent,
	// treating it as though this supervisor itself had failed.
	Escalate
)

// String implements fmt.Stringer.
func (d Directive) String() string {
	switch d {
	case Resume:
		return "resume"
	case Restart:
		return "restart"
	case Stop:
		return "stop"
	case Escalate:
		return "escalate"
	default:
		return "unknown"
	}
}

// FailureContext describes one child failure a Supervisor must rule on.
type FailureContext struct {
	// Child identifies the actor that failed.
	Child identity.Key

	// Err is the error the child's turn returned, or the recovered
	// panic value wrapped as an error.
	Err error

	// Attempt is the 1-indexed count of consecutive failures observed
	// for this child since its last clean turn or Resume directive.
	Attempt int
}

// Supervisor decides what should happen to a child actor after it fails.
type Supervisor interface {
	OnChildFailure(ctx context.Context, fc FailureContext) Directive
}

// SupervisorFunc adapts a plain function to the Supervisor interface.
type SupervisorFunc func(ctx context.Context, fc FailureContext) Directive

// OnChildFailure implements Supervisor.
func (f SupervisorFunc) OnChildFailure(ctx context.Context, fc FailureContext) Directive {
	return f(ctx, fc)
}
