// Package repo implements the candidate repository consumed by the resolver:
// concrete package metadata, an in-memory index that matches atoms to ordered
// candidate lists, a TOML index file format, and a caching source wrapper.
//
// The resolver core only sees the resolver.Candidate interface; this package
// supplies the concrete packages behind it and the Source abstraction the
// driver uses to look candidates up.
package repo

import (
	"fmt"

	"github.com/keelpm/keel/pkg/atom"
	"github.com/keelpm/keel/pkg/errors"
	"github.com/keelpm/keel/pkg/resolver"
)

// Package is one concrete, immutable package version with its dependency
// metadata. It implements resolver.Candidate.
type Package struct {
	key      string
	version  string
	slot     string
	depends  []atom.Atom
	rdepends []atom.Atom
	provides []atom.Atom
}

// Spec is the plain serializable form of a Package, used by the TOML index
// format, the cache encoding, and the HTTP API. Dependency atoms are kept in
// their text form.
type Spec struct {
	Key      string   `toml:"key" json:"key"`
	Version  string   `toml:"version" json:"version"`
	Slot     string   `toml:"slot,omitempty" json:"slot,omitempty"`
	Depends  []string `toml:"depends,omitempty" json:"depends,omitempty"`
	RDepends []string `toml:"rdepends,omitempty" json:"rdepends,omitempty"`
	Provides []string `toml:"provides,omitempty" json:"provides,omitempty"`
}

// FromSpec validates a Spec and builds the immutable Package for it.
func FromSpec(s Spec) (*Package, error) {
	if s.Key == "" || s.Version == "" {
		return nil, errors.New(errors.ErrCodeInvalidIndex, "package needs key and version, got %q/%q", s.Key, s.Version)
	}
	depends, err := atom.ParseAll(s.Depends)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidIndex, err, "package %s-%s: bad depends", s.Key, s.Version)
	}
	rdepends, err := atom.ParseAll(s.RDepends)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidIndex, err, "package %s-%s: bad rdepends", s.Key, s.Version)
	}
	provides, err := atom.ParseAll(s.Provides)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidIndex, err, "package %s-%s: bad provides", s.Key, s.Version)
	}
	return &Package{
		key:      s.Key,
		version:  s.Version,
		slot:     s.Slot,
		depends:  depends,
		rdepends: rdepends,
		provides: provides,
	}, nil
}

// Spec returns the serializable form of the package.
func (p *Package) Spec() Spec {
	return Spec{
		Key:      p.key,
		Version:  p.version,
		Slot:     p.slot,
		Depends:  atomStrings(p.depends),
		RDepends: atomStrings(p.rdepends),
		Provides: atomStrings(p.provides),
	}
}

// ID returns the unique "key-version" identity of the package.
func (p *Package) ID() string { return fmt.Sprintf("%s-%s", p.key, p.version) }

// Key returns the package's grouping identity.
func (p *Package) Key() string { return p.key }

// Version returns the concrete version string.
func (p *Package) Version() string { return p.version }

// Slot returns the slot the package occupies, or "".
func (p *Package) Slot() string { return p.slot }

// Depends returns the build-time dependency atoms.
func (p *Package) Depends() []atom.Atom { return p.depends }

// RDepends returns the runtime dependency atoms.
func (p *Package) RDepends() []atom.Atom { return p.rdepends }

// Provides returns the virtual capabilities the package supplies.
func (p *Package) Provides() []atom.Atom { return p.provides }

// String returns the package ID.
func (p *Package) String() string { return p.ID() }

// requiresAtom reports whether dep occurs in the package's dependency or
// runtime-dependency atoms.
func (p *Package) requiresAtom(dep atom.Atom) bool {
	for _, x := range p.depends {
		if x == dep {
			return true
		}
	}
	for _, x := range p.rdepends {
		if x == dep {
			return true
		}
	}
	return false
}

// AsCandidates widens a package slice to the resolver's candidate interface.
func AsCandidates(pkgs []*Package) []resolver.Candidate {
	out := make([]resolver.Candidate, len(pkgs))
	for i, p := range pkgs {
		out[i] = p
	}
	return out
}

// Excluding filters out packages whose dependency sets contain excl. It
// answers the resolver's cycle-breaking constraint: candidates for an atom
// that must not loop back into the excluded dependency.
func Excluding(pkgs []*Package, excl atom.Atom) []*Package {
	var out []*Package
	for _, p := range pkgs {
		if !p.requiresAtom(excl) {
			out = append(out, p)
		}
	}
	return out
}

func atomStrings(atoms []atom.Atom) []string {
	if len(atoms) == 0 {
		return nil
	}
	out := make([]string, len(atoms))
	for i, a := range atoms {
		out[i] = a.String()
	}
	return out
}

var _ resolver.Candidate = (*Package)(nil)
