package resolver

import (
	"slices"

	"github.com/keelpm/keel/pkg/atom"
	"github.com/keelpm/keel/pkg/observability"
)

// StepKind tags the outcome of one traversal step.
type StepKind int

const (
	// StepNeedsCandidates means Step.Atom has no resolution entry yet; the
	// caller must answer with Satisfy or Fail before pulling the next step.
	StepNeedsCandidates StepKind = iota

	// StepBreakCycle means a dependency cycle was detected: the current
	// candidate for Step.Atom requires Step.Exclude, an atom still being
	// resolved further down the search path (so it transitively requires
	// Step.Atom back). The caller must answer with candidates for Step.Atom
	// whose dependency and runtime-dependency sets do not contain
	// Step.Exclude, or Fail.
	StepBreakCycle

	// StepDone means every stack drained: all atoms are satisfied.
	StepDone

	// StepFailed means the session is over: Step.Err is either a
	// *NoSolutionError, an *InvariantError, or ErrStepLimit.
	StepFailed
)

// String returns the step kind name for logs and errors.
func (k StepKind) String() string {
	switch k {
	case StepNeedsCandidates:
		return "needs-candidates"
	case StepBreakCycle:
		return "break-cycle"
	case StepDone:
		return "done"
	case StepFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Step is one suspension point of the traversal.
type Step struct {
	Kind StepKind

	// Atom is the atom requiring a caller decision. Valid for
	// StepNeedsCandidates and StepBreakCycle.
	Atom atom.Atom

	// Exclude is the dependency atom that candidates for Atom must not
	// require. Valid for StepBreakCycle only. The same (Atom, Exclude)
	// cycle always produces an identical constraint value.
	Exclude atom.Atom

	// Err is the terminal error. Valid for StepFailed only.
	Err error
}

// Next advances the traversal to the next suspension point.
//
// It expands the top atom of the current stack depth-first until it finds an
// atom that needs a caller decision (missing entry or cycle), a blocker to
// enforce, or runs out of work. Blockers and memoized failures are handled
// internally; only missing atoms and cycles are yielded.
func (r *Resolver) Next() Step {
	if r.broken != nil {
		return Step{Kind: StepFailed, Err: r.broken}
	}
	if r.failure != nil {
		return Step{Kind: StepFailed, Err: r.failure}
	}

	for len(r.stacks) > 0 {
		r.steps++
		if r.steps > r.maxSteps {
			r.broken = ErrStepLimit
			return Step{Kind: StepFailed, Err: r.broken}
		}

		cur := len(r.stacks) - 1
		if len(r.stacks[cur]) == 0 {
			r.stacks = r.stacks[:cur]
			continue
		}
		if err := r.checkStackInvariant(cur); err != nil {
			r.broken = err
			return Step{Kind: StepFailed, Err: err}
		}

		a := r.top(cur)
		missing := false
		if e, ok := r.atoms[a]; !ok {
			missing = true
		} else {
			t := slices.Clone(r.stacks[cur])
			for _, x := range depAtoms(e.cp) {
				if _, ok := r.atoms[x]; !ok {
					// Depth-first: satisfy x before continuing a's scan.
					r.stacks[cur] = append(r.stacks[cur], x)
					missing = true
					break
				}
				if slices.Contains(r.stacks[cur], x) {
					// x is an ancestor still being resolved on this path: a's
					// candidate loops back into it. Ask the caller to re-choose
					// a with candidates that do not require x.
					r.focus, r.hasFocus = a, true
					observability.Resolver().OnCycleDetected(a, x)
					return Step{Kind: StepBreakCycle, Atom: a, Exclude: x}
				}
				if err := r.ref(x, append(t, x)); err != nil {
					r.broken = err
					return Step{Kind: StepFailed, Err: err}
				}
			}
		}

		if !missing {
			// Fully satisfied at this depth.
			r.pop(cur)
			continue
		}

		m := r.top(cur)
		r.focus, r.hasFocus = m, true

		stack := r.stacks[cur]
		if slices.Contains(stack[:len(stack)-1], m) {
			observability.Resolver().OnCycleDetected(m, a)
			return Step{Kind: StepBreakCycle, Atom: m, Exclude: a}
		}

		if m.Blocks {
			if err := r.enforceBlocker(m, cur); err != nil {
				r.broken = err
				return Step{Kind: StepFailed, Err: err}
			}
			if r.failure != nil {
				return Step{Kind: StepFailed, Err: r.failure}
			}
			continue
		}

		if r.falseAtoms[m] {
			// Memoized failure: never offer this atom again.
			if err := r.unsatisfiable(m, "previously proven unsatisfiable", false); err != nil {
				r.broken = err
				return Step{Kind: StepFailed, Err: err}
			}
			r.popIfTop(cur, m)
			if r.failure != nil {
				return Step{Kind: StepFailed, Err: r.failure}
			}
			continue
		}

		observability.Resolver().OnAtomMissing(m)
		return Step{Kind: StepNeedsCandidates, Atom: m}
	}
	return Step{Kind: StepDone}
}

// enforceBlocker resolves blocker a against the live choice points sharing
// its key. A matched currently-chosen candidate is a real conflict. When a
// parent choice demanded the blocker, that choice is retracted through the
// unsatisfiability protocol; a root-level blocker has no choice to retract,
// so the conflicting choice point gives way instead. Without a conflict the
// blocker is satisfied by the current state and registered with an empty
// choice point so the graph remembers it.
func (r *Resolver) enforceBlocker(a atom.Atom, cur int) error {
	rootLevel := len(r.stacks[cur]) < 2
	for _, cp := range slices.Clone(r.byKey[a.Key]) {
		if cp.Empty() {
			// An exhausted choice point should have been released; it can
			// linger when its atom is still referenced as a blocker anchor.
			observability.Resolver().OnStaleChoicePoint(cp.Atom())
			continue
		}
		chosen := cp.Current()
		if !matches(a.Unblocked(), chosen) {
			continue
		}
		observability.Resolver().OnBlockerConflict(a, chosen.ID())
		if !rootLevel {
			if err := r.unsatisfiable(a, "blocked by "+chosen.ID(), false); err != nil {
				return err
			}
			r.popIfTop(cur, a)
			return nil
		}
		if err := r.retractBlocked(cp, a); err != nil {
			return err
		}
		if r.failure != nil {
			r.popIfTop(cur, a)
			return nil
		}
	}

	// No live candidate conflicts anymore. Register the blocker with an
	// empty choice point so later reductions can dereference it like any
	// other atom and later candidate additions can detect the conflict,
	// and move on.
	r.atoms[a] = &entry{cp: NewChoicePoint(a, nil)}
	r.addBlocker(a)
	if err := r.ref(a, r.stacks[cur]); err != nil {
		return err
	}
	if r.roots[a] {
		if err := r.ref(a, nil); err != nil {
			return err
		}
	}
	r.pop(cur)
	return nil
}

// checkStackInvariant verifies that no blocker sits below the top of the
// stack. Blockers are enforced the moment they surface and are never
// expanded, so one mid-stack indicates an engine defect.
func (r *Resolver) checkStackInvariant(cur int) error {
	stack := r.stacks[cur]
	for _, x := range stack[:len(stack)-1] {
		if x.Blocks {
			return invariantf("blocker %s below top of search stack", x)
		}
	}
	return nil
}

func (r *Resolver) top(cur int) atom.Atom {
	s := r.stacks[cur]
	return s[len(s)-1]
}

func (r *Resolver) pop(cur int) {
	s := r.stacks[cur]
	r.stacks[cur] = s[:len(s)-1]
}

// popIfTop pops a from stack cur if it is still its top element. Used after
// the unsatisfiability protocol, which may already have rewritten the stack
// collection around index cur.
func (r *Resolver) popIfTop(cur int, a atom.Atom) {
	if cur >= len(r.stacks) {
		return
	}
	s := r.stacks[cur]
	if len(s) > 0 && s[len(s)-1] == a {
		r.stacks[cur] = s[:len(s)-1]
	}
}

// depAtoms returns the concatenated dependency and runtime-dependency atoms
// of the choice point's current candidate. Duplicates are fine: the ref
// bookkeeping deduplicates paths.
func depAtoms(c *ChoicePoint) []atom.Atom {
	d, rd := c.Depends(), c.RDepends()
	if len(rd) == 0 {
		return d
	}
	out := make([]atom.Atom, 0, len(d)+len(rd))
	out = append(out, d...)
	out = append(out, rd...)
	return out
}
