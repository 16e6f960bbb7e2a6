package resolver

import "github.com/keelpm/keel/pkg/atom"

// ChoicePoint is the live, ordered candidate list for one atom.
//
// The head of the remaining candidates is the "current" choice: the package
// the resolver has tentatively committed to for this atom. Backtracking
// removes candidates via Reduce; a choice point that runs out of candidates
// marks its atom unsatisfiable.
//
// A ChoicePoint is owned by exactly one resolution entry and is only mutated
// by the unsatisfiability protocol. It is not safe for concurrent use.
type ChoicePoint struct {
	atom       atom.Atom
	candidates []Candidate
}

// NewChoicePoint builds a choice point over an ordered candidate list.
// Candidate order is preserved: the first candidate is tried first.
func NewChoicePoint(a atom.Atom, candidates []Candidate) *ChoicePoint {
	cp := &ChoicePoint{atom: a}
	cp.candidates = append(cp.candidates, candidates...)
	return cp
}

// Atom returns the atom this choice point satisfies.
func (c *ChoicePoint) Atom() atom.Atom { return c.atom }

// Empty reports whether all candidates have been exhausted.
func (c *ChoicePoint) Empty() bool { return len(c.candidates) == 0 }

// Len returns the number of remaining candidates.
func (c *ChoicePoint) Len() int { return len(c.candidates) }

// Current returns the currently chosen candidate, or nil if exhausted.
func (c *ChoicePoint) Current() Candidate {
	if len(c.candidates) == 0 {
		return nil
	}
	return c.candidates[0]
}

// Depends returns the dependency atoms of the current candidate.
func (c *ChoicePoint) Depends() []atom.Atom {
	if cur := c.Current(); cur != nil {
		return cur.Depends()
	}
	return nil
}

// RDepends returns the runtime dependency atoms of the current candidate.
func (c *ChoicePoint) RDepends() []atom.Atom {
	if cur := c.Current(); cur != nil {
		return cur.RDepends()
	}
	return nil
}

// Reduce removes every remaining candidate that requires dep and reports
// what the removal released: the atoms and provided capabilities that were
// required or supplied by a removed candidate and are no longer required or
// supplied by any remaining one.
//
// The caller uses the released atoms to dereference paths that are no longer
// needed. Released provides are informational; they feed diagnostics only.
func (c *ChoicePoint) Reduce(dep atom.Atom) (releasedAtoms, releasedProvides []atom.Atom) {
	return c.reduce(func(cand Candidate) bool { return requires(cand, dep) })
}

// ReduceMatching removes every remaining candidate that a matches. Blocker
// enforcement uses it with the blocker's unblocked form to retract a choice
// that a blocker forbids. Release reporting works as in Reduce.
func (c *ChoicePoint) ReduceMatching(a atom.Atom) (releasedAtoms, releasedProvides []atom.Atom) {
	return c.reduce(func(cand Candidate) bool { return matches(a, cand) })
}

func (c *ChoicePoint) reduce(drop func(Candidate) bool) (releasedAtoms, releasedProvides []atom.Atom) {
	var kept, removed []Candidate
	for _, cand := range c.candidates {
		if drop(cand) {
			removed = append(removed, cand)
		} else {
			kept = append(kept, cand)
		}
	}
	if len(removed) == 0 {
		return nil, nil
	}
	c.candidates = kept

	still := make(map[atom.Atom]bool)
	stillProvides := make(map[atom.Atom]bool)
	for _, cand := range kept {
		for _, x := range cand.Depends() {
			still[x] = true
		}
		for _, x := range cand.RDepends() {
			still[x] = true
		}
		for _, x := range cand.Provides() {
			stillProvides[x] = true
		}
	}

	seen := make(map[atom.Atom]bool)
	for _, cand := range removed {
		for _, x := range cand.Depends() {
			if !still[x] && !seen[x] {
				seen[x] = true
				releasedAtoms = append(releasedAtoms, x)
			}
		}
		for _, x := range cand.RDepends() {
			if !still[x] && !seen[x] {
				seen[x] = true
				releasedAtoms = append(releasedAtoms, x)
			}
		}
		for _, x := range cand.Provides() {
			if !stillProvides[x] && !seen[x] {
				seen[x] = true
				releasedProvides = append(releasedProvides, x)
			}
		}
	}
	return releasedAtoms, releasedProvides
}
