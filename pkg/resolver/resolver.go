// Package resolver implements the satisfiability core of the keel toolchain:
// a depth-first, backtracking search that assigns one concrete package to
// every dependency atom reachable from a set of root requirements.
//
// The engine is deliberately passive. It never looks up packages itself;
// instead it runs as an explicit state machine that the caller drives:
//
//	r := resolver.New()
//	r.AddRoot(rootAtom)
//	for {
//	    step := r.Next()
//	    switch step.Kind {
//	    case resolver.StepNeedsCandidates:
//	        r.Satisfy(step.Atom, repositoryMatches(step.Atom))
//	    case resolver.StepBreakCycle:
//	        r.Satisfy(step.Atom, matchesExcluding(step.Atom, step.Exclude))
//	    case resolver.StepDone:
//	        return r.Choices(), nil
//	    case resolver.StepFailed:
//	        return nil, step.Err
//	    }
//	}
//
// Between steps the engine owns all mutable state: a collection of
// depth-first search stacks, a map from atom to its choice point and the
// search paths that reference it, a by-key index of live choice points for
// blocker checking, and the set of atoms proven permanently unsatisfiable.
// Backtracking walks the referencing paths to retract a failed choice and
// every transitive consequence of it (see unsat.go).
package resolver

import (
	"slices"
	"strings"

	"github.com/keelpm/keel/pkg/atom"
)

// DefaultMaxSteps bounds the number of traversal steps in one session.
const DefaultMaxSteps = 1_000_000

// refStack is a recorded search path that depends on an atom being
// resolved. Invariant: the last element is the referenced atom itself and
// the second-to-last element, when present, is the atom whose current
// candidate required it.
type refStack []atom.Atom

// hasPrefix reports whether s starts with prefix.
func (s refStack) hasPrefix(prefix []atom.Atom) bool {
	if len(s) < len(prefix) {
		return false
	}
	for i, a := range prefix {
		if s[i] != a {
			return false
		}
	}
	return true
}

// entry is the resolution bookkeeping for one atom: its live choice point
// and every search path that currently needs it.
type entry struct {
	cp   *ChoicePoint
	refs []refStack
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithMaxSteps overrides the traversal step budget.
func WithMaxSteps(n int) Option {
	return func(r *Resolver) {
		if n > 0 {
			r.maxSteps = n
		}
	}
}

// Resolver is the resolution engine. It is single-threaded: the caller
// drives it through Next, Satisfy and Fail, and must not interleave calls
// from multiple goroutines.
type Resolver struct {
	// stacks is the collection of independent DFS stacks. The last stack is
	// current; new stacks are spawned for roots and during backtracking
	// when a partially satisfied choice point must be re-explored.
	stacks [][]atom.Atom

	atoms      map[atom.Atom]*entry
	byKey      map[string][]*ChoicePoint
	falseAtoms map[atom.Atom]bool
	roots      map[atom.Atom]bool

	// blockers indexes the registered blocker atoms by the key they forbid,
	// so Satisfy can reject candidates a live blocker matches.
	blockers map[string][]atom.Atom

	// focus is the atom most recently yielded to the caller; Satisfy and
	// Fail must target it.
	focus    atom.Atom
	hasFocus bool

	// failure is the recorded terminal no-solution outcome; broken is a
	// detected internal defect. Either one ends the session.
	failure *NoSolutionError
	broken  error

	steps    int
	maxSteps int
}

// New creates an empty resolver.
func New(opts ...Option) *Resolver {
	r := &Resolver{
		atoms:      make(map[atom.Atom]*entry),
		byKey:      make(map[string][]*ChoicePoint),
		falseAtoms: make(map[atom.Atom]bool),
		roots:      make(map[atom.Atom]bool),
		blockers:   make(map[string][]atom.Atom),
		maxSteps:   DefaultMaxSteps,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	return r
}

// AddRoot registers a as a root-level requirement.
//
// If the atom is already tracked, only a root-level reference is added so
// it can never be released by backtracking. Otherwise a new search stack is
// spawned for it.
func (r *Resolver) AddRoot(a atom.Atom) {
	r.roots[a] = true
	if _, ok := r.atoms[a]; ok {
		r.ref(a, nil)
		return
	}
	r.stacks = append(r.stacks, []atom.Atom{a})
}

// Roots returns the registered root atoms.
func (r *Resolver) Roots() []atom.Atom {
	roots := make([]atom.Atom, 0, len(r.roots))
	for a := range r.roots {
		roots = append(roots, a)
	}
	slices.SortFunc(roots, compareAtoms)
	return roots
}

// ChoiceFor returns the currently chosen candidate for a, or nil if the
// atom is not tracked or its choice point is exhausted (blockers register
// empty choice points).
func (r *Resolver) ChoiceFor(a atom.Atom) Candidate {
	if e, ok := r.atoms[a]; ok {
		return e.cp.Current()
	}
	return nil
}

// Choices returns the chosen candidate of every live choice point,
// deduplicated by candidate ID and sorted by key then version. After a
// StepDone this is the complete, consistent assignment.
func (r *Resolver) Choices() []Candidate {
	seen := make(map[string]bool)
	var out []Candidate
	for _, e := range r.atoms {
		cur := e.cp.Current()
		if cur == nil || seen[cur.ID()] {
			continue
		}
		seen[cur.ID()] = true
		out = append(out, cur)
	}
	slices.SortFunc(out, func(x, y Candidate) int {
		if c := strings.Compare(x.Key(), y.Key()); c != 0 {
			return c
		}
		return strings.Compare(x.Version(), y.Version())
	})
	return out
}

// FalseAtoms returns the atoms proven permanently unsatisfiable in this
// session.
func (r *Resolver) FalseAtoms() []atom.Atom {
	out := make([]atom.Atom, 0, len(r.falseAtoms))
	for a := range r.falseAtoms {
		out = append(out, a)
	}
	slices.SortFunc(out, compareAtoms)
	return out
}

// ref records stack as a referencing path of a. The stack is cloned;
// duplicate paths are ignored. A nil/empty stack is the permanent
// root-level reference.
func (r *Resolver) ref(a atom.Atom, stack []atom.Atom) error {
	e, ok := r.atoms[a]
	if !ok {
		return invariantf("ref of untracked atom %s", a)
	}
	for _, existing := range e.refs {
		if slices.Equal(existing, stack) {
			return nil
		}
	}
	e.refs = append(e.refs, refStack(slices.Clone(stack)))
	return nil
}

// deref removes every referencing path of a that starts with prefix. When
// the last reference goes away the atom is no longer needed anywhere: its
// entry is deleted and its choice points leave the by-key index. Root-level
// references have no prefix in common with any non-empty path, so roots
// survive every deref.
func (r *Resolver) deref(a atom.Atom, prefix []atom.Atom) error {
	e, ok := r.atoms[a]
	if !ok {
		return invariantf("deref of untracked atom %s", a)
	}
	kept := e.refs[:0:0]
	for _, s := range e.refs {
		if !s.hasPrefix(prefix) {
			kept = append(kept, s)
		}
	}
	if len(kept) > 0 {
		e.refs = kept
		return nil
	}

	if cps, ok := r.byKey[a.Key]; ok {
		live := cps[:0:0]
		for _, cp := range cps {
			if cp.Atom() != a {
				live = append(live, cp)
			}
		}
		if len(live) == 0 {
			delete(r.byKey, a.Key)
		} else {
			r.byKey[a.Key] = live
		}
	}
	if a.Blocks {
		r.dropBlocker(a)
	}
	delete(r.atoms, a)
	return nil
}

// addBlocker records a registered blocker in the blocker index.
func (r *Resolver) addBlocker(a atom.Atom) {
	if !slices.Contains(r.blockers[a.Key], a) {
		r.blockers[a.Key] = append(r.blockers[a.Key], a)
	}
}

// dropBlocker removes a released blocker from the blocker index.
func (r *Resolver) dropBlocker(a atom.Atom) {
	bs := r.blockers[a.Key]
	for i, b := range bs {
		if b == a {
			r.blockers[a.Key] = slices.Delete(bs, i, i+1)
			break
		}
	}
	if len(r.blockers[a.Key]) == 0 {
		delete(r.blockers, a.Key)
	}
}

// dropFromByKey removes one specific choice point from the by-key index,
// deleting the key when it was the last.
func (r *Resolver) dropFromByKey(key string, cp *ChoicePoint) {
	cps := r.byKey[key]
	for i, c := range cps {
		if c == cp {
			r.byKey[key] = slices.Delete(cps, i, i+1)
			break
		}
	}
	if len(r.byKey[key]) == 0 {
		delete(r.byKey, key)
	}
}

// complete reports whether every dependency and runtime-dependency atom of
// the choice point's current candidate already has a resolution entry. An
// exhausted choice point is never complete.
func (r *Resolver) complete(c *ChoicePoint) bool {
	if c.Empty() {
		return false
	}
	for _, x := range c.Depends() {
		if _, ok := r.atoms[x]; !ok {
			return false
		}
	}
	for _, x := range c.RDepends() {
		if _, ok := r.atoms[x]; !ok {
			return false
		}
	}
	return true
}

func compareAtoms(x, y atom.Atom) int {
	return strings.Compare(x.String(), y.String())
}
