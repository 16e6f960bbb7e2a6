package atom

import (
	"testing"

	"github.com/keelpm/keel/pkg/errors"
)

func TestParse(t *testing.T) {
	tests := []struct {
		in   string
		want Atom
	}{
		{"net-misc/curl", Atom{Key: "net-misc/curl"}},
		{"=net-misc/curl-8.5.0", Atom{Key: "net-misc/curl", Op: OpEqual, Version: "8.5.0"}},
		{"net-misc/curl:3", Atom{Key: "net-misc/curl", Slot: "3"}},
		{"!net-misc/curl", Atom{Key: "net-misc/curl", Blocks: true}},
		{"!=net-misc/curl-8.5.0", Atom{Key: "net-misc/curl", Op: OpEqual, Version: "8.5.0", Blocks: true}},
		{"=dev-libs/openssl-3.2.1:0", Atom{Key: "dev-libs/openssl", Op: OpEqual, Version: "3.2.1", Slot: "0"}},
		{"=app-misc/pkg-config-0.29", Atom{Key: "app-misc/pkg-config", Op: OpEqual, Version: "0.29"}},
		{"app-misc/pkg-config", Atom{Key: "app-misc/pkg-config"}},
	}
	for _, tt := range tests {
		got, err := Parse(tt.in)
		if err != nil {
			t.Errorf("Parse(%q): unexpected error: %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("Parse(%q) = %+v, want %+v", tt.in, got, tt.want)
		}
	}
}

func TestParseInvalid(t *testing.T) {
	tests := []string{
		"",
		"curl",
		"net-misc/",
		"/curl",
		"net-misc/curl-8.5.0", // version without operator
		"=net-misc/curl",      // operator without version
		"net-misc/curl:",      // empty slot
		"a/b/c",               // nested key
		"=net-misc/curl-8.5:", // version with empty slot
	}
	for _, in := range tests {
		a, err := Parse(in)
		if err == nil {
			t.Errorf("Parse(%q) = %+v, want error", in, a)
			continue
		}
		if !errors.Is(err, errors.ErrCodeInvalidAtom) {
			t.Errorf("Parse(%q): error code = %v, want %v", in, err, errors.ErrCodeInvalidAtom)
		}
	}
}

func TestParseRoundTrip(t *testing.T) {
	tests := []string{
		"net-misc/curl",
		"=net-misc/curl-8.5.0",
		"net-misc/curl:3",
		"!net-misc/curl",
		"!=dev-libs/openssl-3.2.1:0",
	}
	for _, in := range tests {
		a := MustParse(in)
		if got := a.String(); got != in {
			t.Errorf("MustParse(%q).String() = %q", in, got)
		}
		again, err := Parse(a.String())
		if err != nil {
			t.Fatalf("reparse %q: %v", a, err)
		}
		if again != a {
			t.Errorf("reparse %q = %+v, want %+v", a, again, a)
		}
	}
}

func TestParseAll(t *testing.T) {
	atoms, err := ParseAll([]string{"a/b", "=c/d-1"})
	if err != nil {
		t.Fatalf("ParseAll: %v", err)
	}
	if len(atoms) != 2 || atoms[0].Key != "a/b" || atoms[1].Version != "1" {
		t.Errorf("ParseAll = %+v", atoms)
	}
	if _, err := ParseAll([]string{"a/b", "broken"}); err == nil {
		t.Error("ParseAll with invalid atom: want error")
	}
}

func TestMatches(t *testing.T) {
	tests := []struct {
		atom               string
		key, version, slot string
		want               bool
	}{
		{"net-misc/curl", "net-misc/curl", "8.5.0", "0", true},
		{"net-misc/curl", "net-misc/wget", "8.5.0", "0", false},
		{"=net-misc/curl-8.5.0", "net-misc/curl", "8.5.0", "0", true},
		{"=net-misc/curl-8.5.0", "net-misc/curl", "8.4.0", "0", false},
		{"net-misc/curl:3", "net-misc/curl", "8.5.0", "3", true},
		{"net-misc/curl:3", "net-misc/curl", "8.5.0", "0", false},
		{"!net-misc/curl", "net-misc/curl", "8.5.0", "0", true}, // conflict test
		{"=net-misc/curl-8.5.0:3", "net-misc/curl", "8.5.0", "3", true},
		{"=net-misc/curl-8.5.0:3", "net-misc/curl", "8.5.0", "0", false},
	}
	for _, tt := range tests {
		a := MustParse(tt.atom)
		if got := a.Matches(tt.key, tt.version, tt.slot); got != tt.want {
			t.Errorf("%q.Matches(%q, %q, %q) = %v, want %v",
				tt.atom, tt.key, tt.version, tt.slot, got, tt.want)
		}
	}
}

func TestUnblocked(t *testing.T) {
	b := MustParse("!=net-misc/curl-8.5.0")
	u := b.Unblocked()
	if u.Blocks {
		t.Error("Unblocked atom still blocks")
	}
	if u.Key != b.Key || u.Op != b.Op || u.Version != b.Version {
		t.Errorf("Unblocked changed restriction: %+v", u)
	}
	p := MustParse("net-misc/curl")
	if p.Unblocked() != p {
		t.Error("Unblocked changed a non-blocker")
	}
}

func TestVersionSplit(t *testing.T) {
	tests := []struct {
		in   string
		want int
	}{
		{"net-misc/curl-8.5.0", 13},
		{"net-misc/curl", -1},
		{"app-misc/pkg-config", -1}, // hyphen not followed by digit
		{"a/b-1", 3},
		{"a/b-c-2", 5}, // last hyphen before a digit wins
		{"-1", -1},     // hyphen at index 0 is never a version split
	}
	for _, tt := range tests {
		if got := versionSplit(tt.in); got != tt.want {
			t.Errorf("versionSplit(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestMustParsePanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("MustParse on invalid input did not panic")
		}
	}()
	MustParse("not-an-atom")
}
