package resolver

import (
	"errors"
	"fmt"

	"github.com/keelpm/keel/pkg/atom"
)

// ErrStepLimit is returned when a resolution exceeds the configured step
// budget. The algorithm has no intrinsic termination bound for adversarial
// inputs with large candidate sets, so the budget is the backstop.
var ErrStepLimit = errors.New("resolution step limit exceeded")

// NoSolutionError reports that a root-level requirement was proven
// unsatisfiable after exhausting all backtracking avenues.
//
// When it is returned, the resolution graph has been fully cleaned up and
// can be inspected for diagnostics.
type NoSolutionError struct {
	// Atom is the atom whose failure reached a root requirement.
	Atom atom.Atom

	// Reason is the human-readable cause chain.
	Reason string
}

// Error implements the error interface.
func (e *NoSolutionError) Error() string {
	return fmt.Sprintf("no solution: root requirement %s is unsatisfiable: %s", e.Atom, e.Reason)
}

// InvariantError reports a broken internal invariant: a defect in the engine
// or its driver, not a resolvable domain condition. Once raised, the
// resolution session is aborted and every subsequent call fails with the
// same error.
type InvariantError struct {
	Msg string
}

// Error implements the error interface.
func (e *InvariantError) Error() string {
	return "internal invariant violated: " + e.Msg
}

func invariantf(format string, args ...any) *InvariantError {
	return &InvariantError{Msg: fmt.Sprintf(format, args...)}
}
