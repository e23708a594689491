package supervisor

import (
	"sync"

	"github.com/quark-run/quark/internal/identity"
)

// ChildSet tracks the ordered set of children a single supervisor owns, so a
// strategy can turn "child N failed with directive D" into the full set of
// directives to apply across siblings.
type ChildSet struct {
	mu       sync.Mutex
	children []identity.Key
	index    map[identity.Key]int
}

// NewChildSet returns an empty ChildSet.
func NewChildSet() *ChildSet {
	return &ChildSet{index: make(map[identity.Key]int)}
}

// Add registers a child, appending it to spawn order. A child already
// present is left at its original position.
func (s *ChildSet) Add(child identity.Key) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.index[child]; ok {
		return
	}
	s.index[child] = len(s.children)
	s.children = append(s.children, child)
}

// Remove drops a child from the set entirely, e.g. after it is Stopped.
func (s *ChildSet) Remove(child identity.Key) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx, ok := s.index[child]
	if !ok {
		return
	}
	s.children = append(s.children[:idx], s.children[idx+1:]...)
	delete(s.index, child)
	for i := idx; i < len(s.children); i++ {
		s.index[s.children[i]] = i
	}
}

// Children returns a snapshot of the children in spawn order.
func (s *ChildSet) Children() []identity.Key {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]identity.Key, len(s.children))
	copy(out, s.children)
	return out
}

// Decision pairs a child with the directive a strategy chose for it.
type Decision struct {
	Child     identity.Key
	Directive Directive
}

// Strategy turns the directive chosen for one failed child into the full
// set of directives to apply, given that child's position among its
// siblings in spawn order.
type Strategy func(children []identity.Key, failedIdx int, directive Directive) []Decision

// OneForOne applies the chosen directive only to the child that failed;
// siblings are left running untouched. This is the default and cheapest
// strategy for independent children.
func OneForOne(children []identity.Key, failedIdx int, directive Directive) []Decision {
	return []Decision{{Child: children[failedIdx], Directive: directive}}
}

// AllForOne applies the chosen directive to every child, for groups whose
// members depend on each other closely enough that one failing means all
// must be restarted (or stopped) together.
func AllForOne(children []identity.Key, _ int, directive Directive) []Decision {
	decisions := make([]Decision, len(children))
	for i, child := range children {
		decisions[i] = Decision{Child: child, Directive: directive}
	}
	return decisions
}

// RestForOne applies the chosen directive to the failed child and every
// child started after it, for groups where later children depend on
// earlier ones but not vice versa.
func RestForOne(children []identity.Key, failedIdx int, directive Directive) []Decision {
	decisions := make([]Decision, 0, len(children)-failedIdx)
	for i := failedIdx; i < len(children); i++ {
		decisions = append(decisions, Decision{Child: children[i], Directive: directive})
	}
	return decisions
}

// Apply locates child in the set and runs strategy against the current
// spawn-order snapshot. It returns nil if child isn't a member.
func (s *ChildSet) Apply(strategy Strategy, child identity.Key, directive Directive) []Decision {
	s.mu.Lock()
	idx, ok := s.index[child]
	children := make([]identity.Key, len(s.children))
	copy(children, s.children)
	s.mu.Unlock()

	if !ok {
		return nil
	}
	return strategy(children, idx, directive)
}
