package supervisor

import (
	"sync"
	"time"

	"github.com/quark-run/quark/internal/identity"
)

// RestartGuard tracks how many times each child has restarted within a
// trailing window and promotes a Restart directive to Stop once a child
// crosses MaxRestarts, to keep a crash-looping actor from spinning forever.
type RestartGuard struct {
	// Window is the trailing duration over which restarts are counted.
	Window time.Duration

	// MaxRestarts is the number of restarts tolerated within Window
	// before further restarts are promoted to Stop.
	MaxRestarts int

	mu       sync.Mutex
	failures map[identity.Key][]time.Time
}

// NewRestartGuard constructs a RestartGuard with the given window and
// threshold.
func NewRestartGuard(window time.Duration, maxRestarts int) *RestartGuard {
	return &RestartGuard{
		Window:      window,
		MaxRestarts: maxRestarts,
		failures:    make(map[identity.Key][]time.Time),
	}
}

// Allow records a restart attempt for child at now and reports whether it
// should proceed as Restart (true) or be promoted to Stop (false).
func (g *RestartGuard) Allow(child identity.Key, now time.Time) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	cutoff := now.Add(-g.Window)
	times := g.failures[child]

	kept := times[:0]
	for _, t := range times {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	kept = append(kept, now)
	g.failures[child] = kept

	return len(kept) <= g.MaxRestarts
}

// Reset clears the recorded restart history for child, e.g. after it
// resumes cleanly and runs long enough to no longer be considered
// crash-looping.
func (g *RestartGuard) Reset(child identity.Key) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.failures, child)
}

// Apply wraps directive, downgrading Restart to Stop if child has exceeded
// MaxRestarts within Window as of now. Non-Restart directives pass through
// unchanged.
func (g *RestartGuard) Apply(child identity.Key, directive Directive, now time.Time) Directive {
	if directive != Restart {
		return directive
	}
	if g.Allow(child, now) {
		return Restart
	}
	return Stop
}
