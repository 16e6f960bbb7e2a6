package atom

import (
	"strings"

	"github.com/keelpm/keel/pkg/errors"
)

// Parse converts the text form of an atom into an Atom value.
//
// Grammar (see the package comment for examples):
//
//	atom    := ["!"] [op] key ["-" version] [":" slot]
//	op      := "="
//	key     := category "/" name
//
// A version may only be given together with the "=" operator, and "=" always
// requires a version. The version is split off at the last "-" that is
// followed by a digit, matching the common category/name-1.2.3 convention.
func Parse(s string) (Atom, error) {
	orig := s
	var a Atom

	if strings.HasPrefix(s, "!") {
		a.Blocks = true
		s = s[1:]
	}
	if strings.HasPrefix(s, "=") {
		a.Op = OpEqual
		s = s[1:]
	}

	if i := strings.LastIndexByte(s, ':'); i >= 0 {
		a.Slot = s[i+1:]
		s = s[:i]
		if a.Slot == "" {
			return Atom{}, errors.New(errors.ErrCodeInvalidAtom, "empty slot in atom %q", orig)
		}
	}

	if a.Op == OpEqual {
		i := versionSplit(s)
		if i < 0 {
			return Atom{}, errors.New(errors.ErrCodeInvalidAtom, "atom %q has '=' but no version", orig)
		}
		a.Key, a.Version = s[:i], s[i+1:]
	} else {
		if versionSplit(s) >= 0 {
			return Atom{}, errors.New(errors.ErrCodeInvalidAtom, "atom %q has a version but no operator", orig)
		}
		a.Key = s
	}

	if !validKey(a.Key) {
		return Atom{}, errors.New(errors.ErrCodeInvalidAtom, "atom %q: key must be category/name", orig)
	}
	return a, nil
}

// MustParse is Parse for static atom literals in tests and examples.
// It panics on invalid input.
func MustParse(s string) Atom {
	a, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return a
}

// ParseAll parses a list of atom strings, failing on the first invalid one.
func ParseAll(ss []string) ([]Atom, error) {
	atoms := make([]Atom, 0, len(ss))
	for _, s := range ss {
		a, err := Parse(s)
		if err != nil {
			return nil, err
		}
		atoms = append(atoms, a)
	}
	return atoms, nil
}

// versionSplit returns the index of the "-" separating name from version, or
// -1 if the string has no version suffix. The version starts at the last
// hyphen followed by a digit.
func versionSplit(s string) int {
	for i := len(s) - 2; i > 0; i-- {
		if s[i] == '-' && s[i+1] >= '0' && s[i+1] <= '9' {
			return i
		}
	}
	return -1
}

func validKey(key string) bool {
	cat, name, ok := strings.Cut(key, "/")
	return ok && cat != "" && name != "" && !strings.Contains(name, "/")
}
