package resolver

import (
	"errors"
	"strings"
	"testing"

	"github.com/keelpm/keel/pkg/atom"
	"github.com/keelpm/keel/pkg/observability"
)

// testPkg is a minimal in-memory candidate.
type testPkg struct {
	key     string
	version string
	slot    string
	deps    []atom.Atom
	rdeps   []atom.Atom
}

func (p *testPkg) ID() string            { return p.key + "-" + p.version }
func (p *testPkg) Key() string           { return p.key }
func (p *testPkg) Version() string       { return p.version }
func (p *testPkg) Slot() string          { return p.slot }
func (p *testPkg) Depends() []atom.Atom  { return p.deps }
func (p *testPkg) RDepends() []atom.Atom { return p.rdeps }
func (p *testPkg) Provides() []atom.Atom { return nil }

func tp(key, version string, deps ...string) *testPkg {
	p := &testPkg{key: key, version: version}
	for _, d := range deps {
		p.deps = append(p.deps, atom.MustParse(d))
	}
	return p
}

// testRepo maps a package key to its ordered candidates.
type testRepo map[string][]*testPkg

func (tr testRepo) match(a atom.Atom) []Candidate {
	var out []Candidate
	for _, p := range tr[a.Key] {
		if a.Unblocked().Matches(p.key, p.version, p.slot) {
			out = append(out, p)
		}
	}
	return out
}

func (tr testRepo) matchExcluding(a, excl atom.Atom) []Candidate {
	var out []Candidate
	for _, p := range tr[a.Key] {
		if a.Unblocked().Matches(p.key, p.version, p.slot) && !requires(p, excl) {
			out = append(out, p)
		}
	}
	return out
}

// drive pulls steps and answers them from the repo until the session ends.
// Atoms with no candidates are failed permanently, unbreakable cycles
// non-permanently, mirroring a real driver. It returns the terminal step
// and how often each atom (and each cycle constraint) was requested.
func drive(t *testing.T, r *Resolver, repo testRepo) (Step, map[string]int) {
	t.Helper()
	asks := make(map[string]int)
	for i := 0; i < 10_000; i++ {
		step := r.Next()
		switch step.Kind {
		case StepNeedsCandidates:
			asks[step.Atom.String()]++
			cands := repo.match(step.Atom)
			if len(cands) == 0 {
				if err := r.Fail(step.Atom, "no matching packages", true); err != nil {
					t.Fatalf("Fail(%s): %v", step.Atom, err)
				}
				continue
			}
			if err := r.Satisfy(step.Atom, cands); err != nil {
				t.Fatalf("Satisfy(%s): %v", step.Atom, err)
			}
		case StepBreakCycle:
			asks["cycle:"+step.Atom.String()]++
			cands := repo.matchExcluding(step.Atom, step.Exclude)
			if len(cands) == 0 {
				if err := r.Fail(step.Atom, "no candidate breaks cycle", false); err != nil {
					t.Fatalf("Fail(%s): %v", step.Atom, err)
				}
				continue
			}
			if err := r.Satisfy(step.Atom, cands); err != nil {
				t.Fatalf("Satisfy(%s): %v", step.Atom, err)
			}
		default:
			return step, asks
		}
	}
	t.Fatal("resolution did not terminate")
	return Step{}, nil
}

func chosenIDs(r *Resolver) []string {
	var out []string
	for _, c := range r.Choices() {
		out = append(out, c.ID())
	}
	return out
}

func wantChoices(t *testing.T, r *Resolver, want ...string) {
	t.Helper()
	got := chosenIDs(r)
	if len(got) != len(want) {
		t.Fatalf("choices = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("choices = %v, want %v", got, want)
		}
	}
}

func TestLinearChain(t *testing.T) {
	repo := testRepo{
		"app/a": {tp("app/a", "1", "lib/b")},
		"lib/b": {tp("lib/b", "2", "lib/c")},
		"lib/c": {tp("lib/c", "3")},
	}
	r := New()
	r.AddRoot(atom.MustParse("app/a"))

	step, _ := drive(t, r, repo)
	if step.Kind != StepDone {
		t.Fatalf("terminal step = %v, want done", step.Kind)
	}
	wantChoices(t, r, "app/a-1", "lib/b-2", "lib/c-3")
}

func TestSharedDependency(t *testing.T) {
	repo := testRepo{
		"app/top":   {tp("app/top", "1", "lib/left", "lib/right")},
		"lib/left":  {tp("lib/left", "1", "lib/base")},
		"lib/right": {tp("lib/right", "1", "lib/base")},
		"lib/base":  {tp("lib/base", "9")},
	}
	r := New()
	r.AddRoot(atom.MustParse("app/top"))

	step, asks := drive(t, r, repo)
	if step.Kind != StepDone {
		t.Fatalf("terminal step = %v, want done", step.Kind)
	}
	if asks["lib/base"] != 1 {
		t.Errorf("lib/base requested %d times, want 1", asks["lib/base"])
	}
	wantChoices(t, r, "app/top-1", "lib/base-9", "lib/left-1", "lib/right-1")
}

func TestVersionRestriction(t *testing.T) {
	repo := testRepo{
		"app/a": {tp("app/a", "1", "=lib/b-2")},
		"lib/b": {tp("lib/b", "1"), tp("lib/b", "2"), tp("lib/b", "3")},
	}
	r := New()
	r.AddRoot(atom.MustParse("app/a"))

	step, _ := drive(t, r, repo)
	if step.Kind != StepDone {
		t.Fatalf("terminal step = %v, want done", step.Kind)
	}
	wantChoices(t, r, "app/a-1", "lib/b-2")
}

func TestCycleBreak(t *testing.T) {
	// a needs b; b's preferred candidate needs a back, but an alternative
	// configuration of b does not.
	repo := testRepo{
		"app/a": {tp("app/a", "1", "lib/b")},
		"lib/b": {
			tp("lib/b", "2", "app/a"),
			tp("lib/b", "1"),
		},
	}
	r := New()
	r.AddRoot(atom.MustParse("app/a"))

	step, asks := drive(t, r, repo)
	if step.Kind != StepDone {
		t.Fatalf("terminal step = %v, want done", step.Kind)
	}
	if asks["cycle:lib/b"] != 1 {
		t.Errorf("cycle constraint for lib/b requested %d times, want 1", asks["cycle:lib/b"])
	}
	wantChoices(t, r, "app/a-1", "lib/b-1")
}

func TestCycleUnbreakable(t *testing.T) {
	repo := testRepo{
		"app/a": {tp("app/a", "1", "lib/b")},
		"lib/b": {tp("lib/b", "1", "app/a")},
	}
	r := New()
	r.AddRoot(atom.MustParse("app/a"))

	step, _ := drive(t, r, repo)
	if step.Kind != StepFailed {
		t.Fatalf("terminal step = %v, want failed", step.Kind)
	}
	var noSol *NoSolutionError
	if !errors.As(step.Err, &noSol) {
		t.Fatalf("terminal error = %v, want *NoSolutionError", step.Err)
	}
	if noSol.Atom != atom.MustParse("app/a") {
		t.Errorf("failed atom = %s, want app/a", noSol.Atom)
	}
}

func TestBacktrackToAlternative(t *testing.T) {
	// app's preferred candidate needs an unsatisfiable lib; backtracking
	// must fall back to the alternative candidate and finish.
	repo := testRepo{
		"app/a": {
			tp("app/a", "2", "lib/missing"),
			tp("app/a", "1", "lib/present"),
		},
		"lib/present": {tp("lib/present", "1")},
	}
	r := New()
	r.AddRoot(atom.MustParse("app/a"))

	step, _ := drive(t, r, repo)
	if step.Kind != StepDone {
		t.Fatalf("terminal step = %v, want done", step.Kind)
	}
	wantChoices(t, r, "app/a-1", "lib/present-1")

	false_ := r.FalseAtoms()
	if len(false_) != 1 || false_[0] != atom.MustParse("lib/missing") {
		t.Errorf("false atoms = %v, want [lib/missing]", false_)
	}
}

func TestBacktrackCascade(t *testing.T) {
	// The failure of lib/deep retracts lib/mid entirely, which in turn
	// forces app onto its alternative candidate.
	repo := testRepo{
		"app/a": {
			tp("app/a", "2", "lib/mid"),
			tp("app/a", "1", "lib/other"),
		},
		"lib/mid":   {tp("lib/mid", "1", "lib/deep")},
		"lib/other": {tp("lib/other", "1")},
	}
	r := New()
	r.AddRoot(atom.MustParse("app/a"))

	step, _ := drive(t, r, repo)
	if step.Kind != StepDone {
		t.Fatalf("terminal step = %v, want done", step.Kind)
	}
	wantChoices(t, r, "app/a-1", "lib/other-1")
}

func TestPermanentFailureMemoized(t *testing.T) {
	// Both roots prefer a candidate needing lib/cursed. After the first
	// permanent failure the atom must never be offered again.
	repo := testRepo{
		"app/one": {
			tp("app/one", "2", "lib/cursed"),
			tp("app/one", "1"),
		},
		"app/two": {
			tp("app/two", "2", "lib/cursed"),
			tp("app/two", "1"),
		},
	}
	r := New()
	r.AddRoot(atom.MustParse("app/one"))
	r.AddRoot(atom.MustParse("app/two"))

	step, asks := drive(t, r, repo)
	if step.Kind != StepDone {
		t.Fatalf("terminal step = %v, want done", step.Kind)
	}
	if asks["lib/cursed"] != 1 {
		t.Errorf("lib/cursed requested %d times, want 1", asks["lib/cursed"])
	}
	wantChoices(t, r, "app/one-1", "app/two-1")
}

func TestRootUnsatisfiable(t *testing.T) {
	repo := testRepo{}
	r := New()
	r.AddRoot(atom.MustParse("app/ghost"))

	step, _ := drive(t, r, repo)
	if step.Kind != StepFailed {
		t.Fatalf("terminal step = %v, want failed", step.Kind)
	}
	var noSol *NoSolutionError
	if !errors.As(step.Err, &noSol) {
		t.Fatalf("terminal error = %v, want *NoSolutionError", step.Err)
	}
	if noSol.Atom != atom.MustParse("app/ghost") {
		t.Errorf("failed atom = %s, want app/ghost", noSol.Atom)
	}
	if r.Failure() == nil {
		t.Error("Failure() = nil after root failure")
	}
}

func TestBlockerConflictBacktracks(t *testing.T) {
	// app's preferred candidate both requires lib/x and blocks it; the
	// conflict must push app onto its blocker-free alternative.
	repo := testRepo{
		"app/a": {
			tp("app/a", "2", "lib/x", "!lib/x"),
			tp("app/a", "1", "lib/y"),
		},
		"lib/x": {tp("lib/x", "1")},
		"lib/y": {tp("lib/y", "1")},
	}
	r := New()
	r.AddRoot(atom.MustParse("app/a"))

	step, _ := drive(t, r, repo)
	if step.Kind != StepDone {
		t.Fatalf("terminal step = %v, want done", step.Kind)
	}
	wantChoices(t, r, "app/a-1", "lib/y-1")
}

func TestBlockerHarmless(t *testing.T) {
	// The blocked package is never chosen, so the blocker is satisfied by
	// absence and resolution completes.
	repo := testRepo{
		"app/a":    {tp("app/a", "1", "!lib/evil", "lib/good")},
		"lib/good": {tp("lib/good", "1")},
	}
	r := New()
	r.AddRoot(atom.MustParse("app/a"))

	step, _ := drive(t, r, repo)
	if step.Kind != StepDone {
		t.Fatalf("terminal step = %v, want done", step.Kind)
	}
	wantChoices(t, r, "app/a-1", "lib/good-1")
}

func TestBlockerNeverYielded(t *testing.T) {
	repo := testRepo{
		"app/a":    {tp("app/a", "1", "!lib/evil")},
		"lib/evil": {tp("lib/evil", "1")},
	}
	r := New()
	r.AddRoot(atom.MustParse("app/a"))

	step, asks := drive(t, r, repo)
	if step.Kind != StepDone {
		t.Fatalf("terminal step = %v, want done", step.Kind)
	}
	for k := range asks {
		if strings.HasPrefix(k, "!") {
			t.Errorf("blocker %s was yielded to the caller", k)
		}
	}
}

func TestRootBlockerRegisteredFirst(t *testing.T) {
	// The root blocker is enforced before app/p has any candidates. The
	// blocked version must still be rejected when the candidates arrive.
	repo := testRepo{
		"app/p": {tp("app/p", "2"), tp("app/p", "1")},
	}
	r := New()
	r.AddRoot(atom.MustParse("app/p"))
	r.AddRoot(atom.MustParse("!=app/p-2"))

	step, asks := drive(t, r, repo)
	if step.Kind != StepDone {
		t.Fatalf("terminal step = %v, want done", step.Kind)
	}
	if asks["app/p"] != 1 {
		t.Errorf("app/p requested %d times, want 1", asks["app/p"])
	}
	wantChoices(t, r, "app/p-1")
}

func TestRootBlockerAgainstChosenPackage(t *testing.T) {
	// app/p-2 is already chosen when the root blocker surfaces. The blocked
	// choice must give way to p-1, whose dependencies then get explored.
	repo := testRepo{
		"app/p": {tp("app/p", "2"), tp("app/p", "1", "lib/q")},
		"lib/q": {tp("lib/q", "1")},
	}
	r := New()
	r.AddRoot(atom.MustParse("!=app/p-2"))
	r.AddRoot(atom.MustParse("app/p"))

	step, _ := drive(t, r, repo)
	if step.Kind != StepDone {
		t.Fatalf("terminal step = %v, want done", step.Kind)
	}
	wantChoices(t, r, "app/p-1", "lib/q-1")
}

func TestRootBlockerUnsatisfiable(t *testing.T) {
	// Every candidate for app/p is forbidden by the root blocker.
	repo := testRepo{
		"app/p": {tp("app/p", "2")},
	}
	r := New()
	r.AddRoot(atom.MustParse("!=app/p-2"))
	r.AddRoot(atom.MustParse("app/p"))

	step, _ := drive(t, r, repo)
	if step.Kind != StepFailed {
		t.Fatalf("terminal step = %v, want failed", step.Kind)
	}
	var noSol *NoSolutionError
	if !errors.As(step.Err, &noSol) {
		t.Fatalf("terminal error = %v, want *NoSolutionError", step.Err)
	}
	if noSol.Atom != atom.MustParse("app/p") {
		t.Errorf("failed atom = %s, want app/p", noSol.Atom)
	}
	if !strings.Contains(noSol.Reason, "blocked by") {
		t.Errorf("reason = %q, want blocker mention", noSol.Reason)
	}
}

func TestBlockerHoldsAgainstLaterPackage(t *testing.T) {
	// app/a registers a blocker for lib/evil before app/b asks for it. The
	// blocked candidate must be rejected, forcing app/b onto b-1.
	repo := testRepo{
		"app/a": {tp("app/a", "1", "!lib/evil")},
		"app/b": {
			tp("app/b", "2", "lib/evil"),
			tp("app/b", "1"),
		},
		"lib/evil": {tp("lib/evil", "1")},
	}
	r := New()
	r.AddRoot(atom.MustParse("app/b"))
	r.AddRoot(atom.MustParse("app/a"))

	step, asks := drive(t, r, repo)
	if step.Kind != StepDone {
		t.Fatalf("terminal step = %v, want done", step.Kind)
	}
	if asks["lib/evil"] != 1 {
		t.Errorf("lib/evil requested %d times, want 1", asks["lib/evil"])
	}
	wantChoices(t, r, "app/a-1", "app/b-1")
}

func TestStepLimit(t *testing.T) {
	repo := testRepo{
		"app/a": {tp("app/a", "1", "lib/b")},
		"lib/b": {tp("lib/b", "1", "lib/c")},
		"lib/c": {tp("lib/c", "1", "lib/d")},
		"lib/d": {tp("lib/d", "1")},
	}
	r := New(WithMaxSteps(3))
	r.AddRoot(atom.MustParse("app/a"))

	step, _ := drive(t, r, repo)
	if step.Kind != StepFailed {
		t.Fatalf("terminal step = %v, want failed", step.Kind)
	}
	if !errors.Is(step.Err, ErrStepLimit) {
		t.Fatalf("terminal error = %v, want ErrStepLimit", step.Err)
	}
}

func TestSatisfyWrongAtomIsInvariantViolation(t *testing.T) {
	r := New()
	r.AddRoot(atom.MustParse("app/a"))

	step := r.Next()
	if step.Kind != StepNeedsCandidates {
		t.Fatalf("first step = %v, want needs-candidates", step.Kind)
	}
	err := r.Satisfy(atom.MustParse("app/other"), []Candidate{tp("app/other", "1")})
	if err == nil {
		t.Fatal("Satisfy of non-top atom succeeded")
	}
	var inv *InvariantError
	if !errors.As(err, &inv) {
		t.Fatalf("error = %v, want *InvariantError", err)
	}

	// The session is poisoned: every subsequent step fails the same way.
	step = r.Next()
	if step.Kind != StepFailed || !errors.As(step.Err, &inv) {
		t.Fatalf("step after invariant violation = %v (%v)", step.Kind, step.Err)
	}
}

func TestSharedRootSurvivesBacktrack(t *testing.T) {
	// lib/shared is both a root and a dependency of app's preferred
	// candidate. Retracting that candidate must not release the root.
	repo := testRepo{
		"app/a": {
			tp("app/a", "2", "lib/shared", "lib/missing"),
			tp("app/a", "1"),
		},
		"lib/shared": {tp("lib/shared", "1")},
	}
	r := New()
	r.AddRoot(atom.MustParse("lib/shared"))
	r.AddRoot(atom.MustParse("app/a"))

	step, _ := drive(t, r, repo)
	if step.Kind != StepDone {
		t.Fatalf("terminal step = %v, want done", step.Kind)
	}
	wantChoices(t, r, "app/a-1", "lib/shared-1")
}

func TestRootsAccessor(t *testing.T) {
	r := New()
	r.AddRoot(atom.MustParse("app/b"))
	r.AddRoot(atom.MustParse("app/a"))

	roots := r.Roots()
	if len(roots) != 2 || roots[0].Key != "app/a" || roots[1].Key != "app/b" {
		t.Fatalf("roots = %v, want sorted [app/a app/b]", roots)
	}
}

func TestChoiceFor(t *testing.T) {
	repo := testRepo{"app/a": {tp("app/a", "1")}}
	r := New()
	root := atom.MustParse("app/a")
	r.AddRoot(root)

	if r.ChoiceFor(root) != nil {
		t.Error("ChoiceFor before satisfy should be nil")
	}
	step, _ := drive(t, r, repo)
	if step.Kind != StepDone {
		t.Fatalf("terminal step = %v, want done", step.Kind)
	}
	if c := r.ChoiceFor(root); c == nil || c.ID() != "app/a-1" {
		t.Errorf("ChoiceFor(app/a) = %v, want app/a-1", c)
	}
}

// recordingHooks counts the diagnostic events the engine emits.
type recordingHooks struct {
	observability.NoopResolverHooks
	missing, cycles, conflicts, reductions, rootFailures int
}

func (h *recordingHooks) OnAtomMissing(atom.Atom)               { h.missing++ }
func (h *recordingHooks) OnCycleDetected(_, _ atom.Atom)        { h.cycles++ }
func (h *recordingHooks) OnBlockerConflict(atom.Atom, string)   { h.conflicts++ }
func (h *recordingHooks) OnChoiceReduced(_, _ atom.Atom, _ int) { h.reductions++ }
func (h *recordingHooks) OnRootFailure(atom.Atom, string)       { h.rootFailures++ }

func TestDiagnosticEvents(t *testing.T) {
	t.Cleanup(observability.Reset)
	hooks := &recordingHooks{}
	observability.SetResolverHooks(hooks)

	// Cycle scenario: lib/b-2 loops back into app/a.
	repo := testRepo{
		"app/a": {tp("app/a", "1", "lib/b")},
		"lib/b": {tp("lib/b", "2", "app/a"), tp("lib/b", "1")},
	}
	r := New()
	r.AddRoot(atom.MustParse("app/a"))
	if step, _ := drive(t, r, repo); step.Kind != StepDone {
		t.Fatalf("terminal step = %v, want done", step.Kind)
	}
	if hooks.missing != 2 {
		t.Errorf("missing events = %d, want 2", hooks.missing)
	}
	if hooks.cycles != 1 {
		t.Errorf("cycle events = %d, want 1", hooks.cycles)
	}

	repo = testRepo{
		"app/r": {tp("app/r", "2", "lib/x", "!lib/x"), tp("app/r", "1")},
		"lib/x": {tp("lib/x", "1")},
	}
	r = New()
	r.AddRoot(atom.MustParse("app/r"))
	if step, _ := drive(t, r, repo); step.Kind != StepDone {
		t.Fatalf("terminal step = %v, want done", step.Kind)
	}
	if hooks.conflicts != 1 {
		t.Errorf("blocker conflict events = %d, want 1", hooks.conflicts)
	}
	if hooks.reductions == 0 {
		t.Error("no choice reduction events")
	}

	repo = testRepo{"app/r": nil}
	r = New()
	r.AddRoot(atom.MustParse("app/r"))
	if step, _ := drive(t, r, repo); step.Kind != StepFailed {
		t.Fatalf("terminal step = %v, want failed", step.Kind)
	}
	if hooks.rootFailures != 1 {
		t.Errorf("root failure events = %d, want 1", hooks.rootFailures)
	}
}
