package repo

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/keelpm/keel/pkg/atom"
	"github.com/keelpm/keel/pkg/errors"
)

func mustPkg(t *testing.T, s Spec) *Package {
	t.Helper()
	p, err := FromSpec(s)
	if err != nil {
		t.Fatalf("FromSpec(%+v): %v", s, err)
	}
	return p
}

func matchIDs(t *testing.T, ix *Index, a string) []string {
	t.Helper()
	pkgs, err := ix.Match(context.Background(), atom.MustParse(a))
	if err != nil {
		t.Fatalf("Match(%s): %v", a, err)
	}
	ids := make([]string, len(pkgs))
	for i, p := range pkgs {
		ids[i] = p.ID()
	}
	return ids
}

func TestIndexMatchOrder(t *testing.T) {
	ix := NewIndex()
	ix.Add(mustPkg(t, Spec{Key: "net-misc/curl", Version: "8.5.0"}))
	ix.Add(mustPkg(t, Spec{Key: "net-misc/curl", Version: "8.4.0"}))
	ix.Add(mustPkg(t, Spec{Key: "net-misc/wget", Version: "1.21"}))

	if ix.Len() != 3 {
		t.Errorf("Len() = %d, want 3", ix.Len())
	}

	got := matchIDs(t, ix, "net-misc/curl")
	want := []string{"net-misc/curl-8.5.0", "net-misc/curl-8.4.0"}
	if len(got) != 2 || got[0] != want[0] || got[1] != want[1] {
		t.Errorf("Match order = %v, want %v (insertion order)", got, want)
	}
}

func TestIndexMatchFilters(t *testing.T) {
	ix := NewIndex()
	ix.Add(mustPkg(t, Spec{Key: "dev-libs/ssl", Version: "3", Slot: "3"}))
	ix.Add(mustPkg(t, Spec{Key: "dev-libs/ssl", Version: "1.1", Slot: "1"}))

	if got := matchIDs(t, ix, "=dev-libs/ssl-1.1"); len(got) != 1 || got[0] != "dev-libs/ssl-1.1" {
		t.Errorf("version match = %v", got)
	}
	if got := matchIDs(t, ix, "dev-libs/ssl:3"); len(got) != 1 || got[0] != "dev-libs/ssl-3" {
		t.Errorf("slot match = %v", got)
	}
	if got := matchIDs(t, ix, "dev-libs/ssl"); len(got) != 2 {
		t.Errorf("unconstrained match = %v", got)
	}
	if got := matchIDs(t, ix, "dev-libs/missing"); got != nil && len(got) != 0 {
		t.Errorf("unknown key match = %v", got)
	}
}

func TestIndexMatchBlockerUsesPositiveForm(t *testing.T) {
	ix := NewIndex()
	ix.Add(mustPkg(t, Spec{Key: "www-servers/apache", Version: "2.4"}))

	got := matchIDs(t, ix, "!www-servers/apache")
	if len(got) != 1 {
		t.Errorf("blocker match = %v, want the forbidden package", got)
	}
}

func TestIndexMatchCancelled(t *testing.T) {
	ix := NewIndex()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := ix.Match(ctx, atom.MustParse("a/b")); err == nil {
		t.Error("Match with cancelled context: want error")
	}
}

func TestFromSpecValidation(t *testing.T) {
	tests := []Spec{
		{},
		{Key: "a/b"},
		{Version: "1"},
		{Key: "a/b", Version: "1", Depends: []string{"not-an-atom"}},
		{Key: "a/b", Version: "1", RDepends: []string{"="}},
		{Key: "a/b", Version: "1", Provides: []string{"x"}},
	}
	for _, s := range tests {
		if _, err := FromSpec(s); err == nil {
			t.Errorf("FromSpec(%+v): want error", s)
		} else if !errors.Is(err, errors.ErrCodeInvalidIndex) {
			t.Errorf("FromSpec(%+v): code = %v, want INVALID_INDEX", s, err)
		}
	}
}

func TestSpecRoundTrip(t *testing.T) {
	s := Spec{
		Key:      "www-servers/nginx",
		Version:  "1.25.3",
		Slot:     "0",
		Depends:  []string{"dev-libs/openssl", "!www-servers/apache"},
		RDepends: []string{"=sys-libs/zlib-1.3"},
		Provides: []string{"virtual/httpd"},
	}
	p := mustPkg(t, s)
	got := p.Spec()
	if got.Key != s.Key || got.Version != s.Version || got.Slot != s.Slot {
		t.Errorf("Spec() = %+v", got)
	}
	if len(got.Depends) != 2 || got.Depends[1] != "!www-servers/apache" {
		t.Errorf("Spec().Depends = %v", got.Depends)
	}
	if len(got.RDepends) != 1 || got.RDepends[0] != "=sys-libs/zlib-1.3" {
		t.Errorf("Spec().RDepends = %v", got.RDepends)
	}
	if len(got.Provides) != 1 || got.Provides[0] != "virtual/httpd" {
		t.Errorf("Spec().Provides = %v", got.Provides)
	}
}

func TestExcluding(t *testing.T) {
	ssl := atom.MustParse("dev-libs/openssl")
	withSSL := mustPkg(t, Spec{Key: "a/b", Version: "2", Depends: []string{"dev-libs/openssl"}})
	withSSLRT := mustPkg(t, Spec{Key: "a/b", Version: "3", RDepends: []string{"dev-libs/openssl"}})
	clean := mustPkg(t, Spec{Key: "a/b", Version: "1"})

	got := Excluding([]*Package{withSSL, withSSLRT, clean}, ssl)
	if len(got) != 1 || got[0] != clean {
		t.Errorf("Excluding = %v, want only the candidate without the dep", got)
	}
}

func TestAsCandidates(t *testing.T) {
	p := mustPkg(t, Spec{Key: "a/b", Version: "1"})
	cands := AsCandidates([]*Package{p})
	if len(cands) != 1 || cands[0].ID() != "a/b-1" {
		t.Errorf("AsCandidates = %v", cands)
	}
}

const sampleIndex = `
roots = ["www-servers/nginx"]

[[package]]
key = "www-servers/nginx"
version = "1.25.3"
depends = ["dev-libs/openssl", "!www-servers/apache"]

[[package]]
key = "dev-libs/openssl"
version = "3.2.1"
slot = "0"
provides = ["virtual/ssl"]
`

func TestDecodeIndex(t *testing.T) {
	ix, roots, err := DecodeIndex(strings.NewReader(sampleIndex))
	if err != nil {
		t.Fatalf("DecodeIndex: %v", err)
	}
	if ix.Len() != 2 {
		t.Errorf("Len() = %d, want 2", ix.Len())
	}
	if len(roots) != 1 || roots[0].Key != "www-servers/nginx" {
		t.Errorf("roots = %v", roots)
	}
	nginx := matchIDs(t, ix, "www-servers/nginx")
	if len(nginx) != 1 || nginx[0] != "www-servers/nginx-1.25.3" {
		t.Errorf("nginx match = %v", nginx)
	}
}

func TestDecodeIndexErrors(t *testing.T) {
	cases := map[string]string{
		"malformed toml": `roots = [`,
		"bad package":    "[[package]]\nversion = \"1\"\n",
		"bad root":       `roots = ["nope"]`,
	}
	for name, body := range cases {
		if _, _, err := DecodeIndex(strings.NewReader(body)); err == nil {
			t.Errorf("%s: want error", name)
		}
	}
}

func TestLoadIndex(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "index.toml")
	if err := os.WriteFile(path, []byte(sampleIndex), 0o644); err != nil {
		t.Fatal(err)
	}

	ix, roots, err := LoadIndex(path)
	if err != nil {
		t.Fatalf("LoadIndex: %v", err)
	}
	if ix.Len() != 2 || len(roots) != 1 {
		t.Errorf("Len() = %d, roots = %v", ix.Len(), roots)
	}

	_, _, err = LoadIndex(filepath.Join(dir, "missing.toml"))
	if !errors.Is(err, errors.ErrCodeFileNotFound) {
		t.Errorf("missing index: err = %v, want FILE_NOT_FOUND", err)
	}
}
