package repo

import (
	"context"
	"io"
	"os"

	"github.com/BurntSushi/toml"

	"github.com/keelpm/keel/pkg/atom"
	"github.com/keelpm/keel/pkg/errors"
)

// Source produces the ordered candidate packages satisfying an atom.
// Order matters: the resolver commits to the first candidate and backtracks
// through the rest, so sources should return their preferred choice first.
type Source interface {
	Match(ctx context.Context, a atom.Atom) ([]*Package, error)
}

// Index is an in-memory Source. Packages are matched in insertion order per
// key, so the index file (or whoever populates the index) controls candidate
// preference.
//
// Index is safe for concurrent reads after population; Add must not race
// with Match.
type Index struct {
	byKey map[string][]*Package
	count int
}

// NewIndex creates an empty index.
func NewIndex() *Index {
	return &Index{byKey: make(map[string][]*Package)}
}

// Add inserts a package, preserving insertion order within its key.
func (ix *Index) Add(p *Package) {
	ix.byKey[p.Key()] = append(ix.byKey[p.Key()], p)
	ix.count++
}

// Len returns the number of packages in the index.
func (ix *Index) Len() int { return ix.count }

// Match returns the packages satisfying a, in insertion order. Blocker
// atoms match the packages they forbid (the positive form of the
// restriction); the resolver never asks for blocker candidates, but
// diagnostics may.
func (ix *Index) Match(ctx context.Context, a atom.Atom) ([]*Package, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var out []*Package
	for _, p := range ix.byKey[a.Key] {
		if a.Unblocked().Matches(p.Key(), p.Version(), p.Slot()) {
			out = append(out, p)
		}
	}
	return out, nil
}

// indexFile is the on-disk TOML shape:
//
//	roots = ["www-servers/nginx"]
//
//	[[package]]
//	key = "www-servers/nginx"
//	version = "1.25.3"
//	depends = ["dev-libs/openssl", "!www-servers/apache"]
type indexFile struct {
	Roots    []string `toml:"roots"`
	Packages []Spec   `toml:"package"`
}

// DecodeIndex reads a TOML package index. It returns the populated index
// and the root atoms declared in the file, if any.
func DecodeIndex(r io.Reader) (*Index, []atom.Atom, error) {
	var file indexFile
	if _, err := toml.NewDecoder(r).Decode(&file); err != nil {
		return nil, nil, errors.Wrap(errors.ErrCodeInvalidIndex, err, "malformed index")
	}
	ix := NewIndex()
	for _, spec := range file.Packages {
		p, err := FromSpec(spec)
		if err != nil {
			return nil, nil, err
		}
		ix.Add(p)
	}
	roots, err := atom.ParseAll(file.Roots)
	if err != nil {
		return nil, nil, err
	}
	return ix, roots, nil
}

// LoadIndex reads a TOML package index from disk.
func LoadIndex(path string) (*Index, []atom.Atom, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil, errors.Wrap(errors.ErrCodeFileNotFound, err, "index %s", path)
		}
		return nil, nil, errors.Wrap(errors.ErrCodeInvalidIndex, err, "open index %s", path)
	}
	defer f.Close()
	return DecodeIndex(f)
}
