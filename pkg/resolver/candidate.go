package resolver

import "github.com/keelpm/keel/pkg/atom"

// Candidate is one concrete package that can satisfy an atom.
//
// The resolver treats candidates as opaque: it only walks their dependency
// atoms and compares identity. Concrete package types live in the repository
// layer (see pkg/repo); anything implementing this interface can be fed to
// Satisfy.
type Candidate interface {
	// ID uniquely identifies the candidate within a resolution session,
	// e.g. "dev-libs/openssl-3.0.1".
	ID() string

	// Key is the grouping identity shared with the atoms this candidate
	// can satisfy.
	Key() string

	// Version is the concrete version string.
	Version() string

	// Slot is the slot the candidate occupies, or "" if unslotted.
	Slot() string

	// Depends returns the build-time dependency atoms.
	Depends() []atom.Atom

	// RDepends returns the runtime dependency atoms.
	RDepends() []atom.Atom

	// Provides returns virtual capabilities this candidate supplies.
	Provides() []atom.Atom
}

// matches reports whether a restricts to c.
func matches(a atom.Atom, c Candidate) bool {
	return a.Matches(c.Key(), c.Version(), c.Slot())
}

// requires reports whether c's dependency or runtime-dependency atoms
// include dep.
func requires(c Candidate, dep atom.Atom) bool {
	for _, x := range c.Depends() {
		if x == dep {
			return true
		}
	}
	for _, x := range c.RDepends() {
		if x == dep {
			return true
		}
	}
	return false
}
