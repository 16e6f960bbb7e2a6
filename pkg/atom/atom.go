// Package atom defines the dependency requirement descriptor used throughout
// the resolver.
//
// An Atom names a package group (its Key) together with an optional version
// constraint and slot, and may be a blocker: a requirement that is satisfied
// by the *absence* of a matching package rather than by its presence.
//
// Atoms are immutable values with structural equality. The type is a plain
// comparable struct, so two atoms with identical content are the same key in
// every map — the resolver relies on this for its bookkeeping.
//
// # Text form
//
// Atoms are written the way package managers write them:
//
//	net-misc/curl           any version
//	=net-misc/curl-8.5.0    exactly version 8.5.0
//	net-misc/curl:3         any version in slot 3
//	!net-misc/curl          blocker: no curl may be chosen
//	!=net-misc/curl-8.5.0   blocker on exactly 8.5.0
//
// Version ordering is intentionally out of scope: the only constraint
// operator is exact equality. Richer constraints belong to the candidate
// repository, which decides the ordered candidate list for an atom.
package atom

import "strings"

// Op is a version constraint operator.
type Op string

// Supported constraint operators.
const (
	// OpAny places no constraint on the version.
	OpAny Op = ""

	// OpEqual requires the exact version string.
	OpEqual Op = "="
)

// Atom is an immutable package requirement.
//
// The zero value is not a valid atom; use Parse or construct one with a
// non-empty Key.
type Atom struct {
	// Key is the grouping identity, e.g. "dev-libs/openssl". Two atoms with
	// the same Key constrain the same package group regardless of version.
	Key string

	// Op and Version express the version constraint. Op is OpAny when
	// Version is empty.
	Op      Op
	Version string

	// Slot restricts the match to a named slot. Empty means any slot.
	Slot string

	// Blocks marks this atom as a blocker: it is satisfied when no chosen
	// package matches it.
	Blocks bool
}

// Matches reports whether a package with the given key, version and slot
// satisfies this atom's restriction. For blockers this is the conflict test:
// a blocker "matches" the package it forbids.
func (a Atom) Matches(key, version, slot string) bool {
	if a.Key != key {
		return false
	}
	if a.Slot != "" && a.Slot != slot {
		return false
	}
	if a.Op == OpEqual && a.Version != version {
		return false
	}
	return true
}

// Unblocked returns the positive form of a blocker: the same restriction with
// Blocks cleared. For non-blockers it returns the atom unchanged.
func (a Atom) Unblocked() Atom {
	a.Blocks = false
	return a
}

// String renders the atom in its text form.
func (a Atom) String() string {
	var b strings.Builder
	if a.Blocks {
		b.WriteByte('!')
	}
	b.WriteString(string(a.Op))
	b.WriteString(a.Key)
	if a.Version != "" {
		b.WriteByte('-')
		b.WriteString(a.Version)
	}
	if a.Slot != "" {
		b.WriteByte(':')
		b.WriteString(a.Slot)
	}
	return b.String()
}
