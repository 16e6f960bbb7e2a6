package resolver

import (
	"slices"

	"github.com/keelpm/keel/pkg/atom"
	"github.com/keelpm/keel/pkg/observability"
)

// Satisfy supplies the ordered candidates matched for the most recently
// yielded atom. It installs a choice point for the atom, indexes it by key,
// and records the path that led to it as a referencing stack.
//
// Candidates a registered blocker forbids are dropped before the choice
// point is installed, so a blocker enforced earlier keeps holding against
// packages that only show up later.
//
// Answering a StepBreakCycle re-satisfies an atom that already has an
// entry: the choice point is swapped for one over the narrowed candidates
// while the referencing paths that already need the atom are kept.
//
// An empty candidate list triggers the backtracking protocol immediately:
// the choice that required this atom is retracted. That alone does not mark
// the atom permanently unsatisfiable; only Fail with permanent=true does.
//
// The atom stays on top of its stack on success so the next traversal step
// descends into its dependencies.
func (r *Resolver) Satisfy(a atom.Atom, candidates []Candidate) error {
	if r.broken != nil {
		return r.broken
	}
	if len(r.stacks) == 0 || r.top(len(r.stacks)-1) != a {
		r.broken = invariantf("satisfy of %s which is not the current stack top", a)
		return r.broken
	}

	matched := candidates
	if bs := r.blockers[a.Key]; len(bs) > 0 {
		matched = matched[:0:0]
		for _, cand := range candidates {
			blocked := false
			for _, b := range bs {
				if matches(b.Unblocked(), cand) {
					observability.Resolver().OnBlockerConflict(b, cand.ID())
					blocked = true
					break
				}
			}
			if !blocked {
				matched = append(matched, cand)
			}
		}
	}

	cp := NewChoicePoint(a, matched)
	if old, ok := r.atoms[a]; ok {
		r.dropFromByKey(a.Key, old.cp)
		old.cp = cp
	} else {
		r.atoms[a] = &entry{cp: cp}
	}
	r.byKey[a.Key] = append(r.byKey[a.Key], cp)

	cur := len(r.stacks) - 1
	if err := r.ref(a, r.stacks[cur]); err != nil {
		r.broken = err
		return err
	}
	if r.roots[a] {
		// The permanent root-level reference: an empty path that no deref
		// prefix can ever match.
		if err := r.ref(a, nil); err != nil {
			r.broken = err
			return err
		}
	}

	if cp.Empty() {
		reason := "no candidates matched"
		if len(candidates) > 0 {
			reason = "all candidates blocked"
		}
		if err := r.unsatisfiable(a, reason, false); err != nil {
			r.broken = err
			return err
		}
		r.popIfTop(cur, a)
	}
	return nil
}

// Fail reports that the caller could not (or refused to) supply candidates
// for the most recently yielded atom: a caller-initiated unsatisfiability.
// With permanent=true the atom is memoized as false for the rest of the
// session and never yielded again.
func (r *Resolver) Fail(a atom.Atom, reason string, permanent bool) error {
	if r.broken != nil {
		return r.broken
	}
	if len(r.stacks) == 0 || r.top(len(r.stacks)-1) != a {
		r.broken = invariantf("fail of %s which is not the current stack top", a)
		return r.broken
	}
	cur := len(r.stacks) - 1
	if err := r.unsatisfiable(a, reason, permanent); err != nil {
		r.broken = err
		return err
	}
	r.popIfTop(cur, a)
	return nil
}

// Failure returns the recorded no-solution outcome, or nil. It is set as
// soon as a retraction reaches a root-level requirement; Next surfaces it
// as a StepFailed after cleanup has finished.
func (r *Resolver) Failure() *NoSolutionError { return r.failure }

// unsatisfiable retracts the choice that required a and ripples the
// retraction through every search path depending on it.
//
// The protocol is a breadth-first drain of an expandable work queue seeded
// with a's referencing stacks. For each path s:
//
//   - A path shorter than two atoms is a root-level requirement: the whole
//     problem is unsatisfiable. The failure is recorded and the queue keeps
//     draining so the graph ends up consistent for diagnostics.
//   - Otherwise s[-2] is the parent whose current candidate required a.
//     Its choice point is reduced: candidates requiring s[-1] are removed,
//     and atoms only those candidates needed are dereferenced from the
//     parent's path, cascading further releases.
//   - If the reduction exhausted the parent's choice point, the parent is
//     itself unsatisfiable: its derived referencing path s[:-1] joins the
//     queue.
//   - If the reduction turned a previously complete choice point (all its
//     dependencies had entries) into an incomplete one, the parent's path
//     is scheduled as a fresh search stack so traversal re-explores it.
//
// The atom passed must be the traversal's current focus. When a has no
// resolution entry (blockers and memoized failures are enforced before
// candidates are ever requested), the only path that needs it is the
// current search stack, which seeds the queue instead.
func (r *Resolver) unsatisfiable(a atom.Atom, reason string, permanent bool) error {
	if !r.hasFocus || r.focus != a {
		return invariantf("unsatisfiable(%s) does not match current focus", a)
	}
	if permanent {
		r.falseAtoms[a] = true
	}

	var queue []refStack
	if e, ok := r.atoms[a]; ok {
		for _, s := range e.refs {
			queue = append(queue, refStack(slices.Clone(s)))
		}
	} else if n := len(r.stacks); n > 0 {
		queue = append(queue, refStack(slices.Clone(r.stacks[n-1])))
	}
	return r.retract(queue, a, reason)
}

// retract drains the retraction work queue. The fallback atom names the
// failed requirement when a queued path is too short to name one itself.
func (r *Resolver) retract(queue []refStack, fallback atom.Atom, reason string) error {
	for i := 0; i < len(queue); i++ {
		s := queue[i]
		if len(s) < 2 {
			// Root-level requirement reached: remember the terminal outcome
			// but keep draining so cleanup completes.
			failed := fallback
			if len(s) == 1 {
				failed = s[0]
			}
			observability.Resolver().OnRootFailure(failed, reason)
			if r.failure == nil {
				r.failure = &NoSolutionError{Atom: failed, Reason: reason}
			}
			continue
		}

		parent := s[len(s)-2]
		dep := s[len(s)-1]
		pe, ok := r.atoms[parent]
		if !ok {
			// Already released by an earlier cascade on another path.
			continue
		}
		c := pe.cp
		wasComplete := r.complete(c)

		releasedAtoms, _ := c.Reduce(dep)
		observability.Resolver().OnChoiceReduced(parent, dep, c.Len())

		prefix := s[:len(s)-1]
		for _, x := range releasedAtoms {
			if _, ok := r.atoms[x]; !ok {
				continue
			}
			if err := r.deref(x, prefix); err != nil {
				return err
			}
		}

		if c.Empty() {
			// The parent has no candidates left: cascade the retraction to
			// whatever required it along this path.
			queue = append(queue, refStack(slices.Clone(prefix)))
		} else if wasComplete && !r.complete(c) {
			// The reduction exposed a previously satisfied dependency as
			// unsatisfied: re-explore from the parent.
			r.stacks = append(r.stacks, slices.Clone(prefix))
		}
	}
	return nil
}

// retractBlocked backs a conflicting choice point out of blocker b's way:
// every candidate the blocker forbids is removed, along with candidates any
// other registered blocker of the same key forbids, and the consequences
// ripple as in a reduction. Dependency atoms only the removed candidates
// needed are dereferenced from the paths that reference the choice point's
// atom. An exhausted choice point cascades the retraction to whatever
// required it; one left on a fresh candidate with unresolved dependencies is
// rescheduled for traversal.
//
// Root-level blocker enforcement uses this instead of the unsatisfiability
// protocol: the blocker itself has no parent choice to retract, so the
// conflicting choice must give way.
func (r *Resolver) retractBlocked(cp *ChoicePoint, b atom.Atom) error {
	v := cp.Atom()
	e, ok := r.atoms[v]
	if !ok {
		return invariantf("blocker retraction of untracked atom %s", v)
	}
	wasComplete := r.complete(cp)

	released, _ := cp.ReduceMatching(b.Unblocked())
	for _, other := range r.blockers[v.Key] {
		more, _ := cp.ReduceMatching(other.Unblocked())
		released = append(released, more...)
	}
	observability.Resolver().OnChoiceReduced(v, b, cp.Len())

	refs := make([]refStack, 0, len(e.refs))
	for _, s := range e.refs {
		refs = append(refs, refStack(slices.Clone(s)))
	}
	for _, s := range refs {
		if len(s) == 0 {
			// The root marker: no dependency was referenced through it.
			continue
		}
		for _, x := range released {
			if _, ok := r.atoms[x]; !ok {
				continue
			}
			if err := r.deref(x, s); err != nil {
				return err
			}
		}
	}

	if cp.Empty() {
		return r.retract(refs, v, "blocked by "+b.String())
	}
	if wasComplete && !r.complete(cp) {
		for _, s := range refs {
			if len(s) > 0 {
				r.stacks = append(r.stacks, slices.Clone(s))
			}
		}
	}
	return nil
}
