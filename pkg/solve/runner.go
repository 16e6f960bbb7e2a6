package solve

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/log"

	"github.com/keelpm/keel/pkg/atom"
	"github.com/keelpm/keel/pkg/repo"
	"github.com/keelpm/keel/pkg/resolver"
)

// Runner drives a resolution session: it pulls steps from the resolver and
// answers them with repository lookups until the session finishes.
//
// The Runner is stateless between Resolve calls; the same Runner can run
// any number of resolutions sequentially.
type Runner struct {
	src      repo.Source
	logger   *log.Logger
	maxSteps int
}

// NewRunner creates a runner over the given candidate source.
// A nil logger falls back to the default logger.
func NewRunner(src repo.Source, logger *log.Logger) *Runner {
	if logger == nil {
		logger = log.Default()
	}
	return &Runner{src: src, logger: logger}
}

// WithMaxSteps caps the resolver's traversal steps.
func (r *Runner) WithMaxSteps(n int) *Runner {
	r.maxSteps = n
	return r
}

// Resolve resolves the root atoms into a Plan.
//
// The context is checked between resolver steps; all candidate lookups run
// with it. A *resolver.NoSolutionError is returned as-is so callers can
// inspect the failing atom and reason.
func (r *Runner) Resolve(ctx context.Context, roots []atom.Atom) (*Plan, error) {
	if len(roots) == 0 {
		return nil, fmt.Errorf("no root atoms given")
	}

	var opts []resolver.Option
	if r.maxSteps > 0 {
		opts = append(opts, resolver.WithMaxSteps(r.maxSteps))
	}
	res := resolver.New(opts...)
	for _, a := range roots {
		res.AddRoot(a)
	}

	start := time.Now()
	var stats PlanStats
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		step := res.Next()
		switch step.Kind {
		case resolver.StepNeedsCandidates:
			stats.Lookups++
			if err := r.supply(ctx, res, step.Atom, atom.Atom{}, &stats); err != nil {
				return nil, err
			}

		case resolver.StepBreakCycle:
			stats.Cycles++
			r.logger.Debug("breaking dependency cycle", "atom", step.Atom, "exclude", step.Exclude)
			if err := r.supply(ctx, res, step.Atom, step.Exclude, &stats); err != nil {
				return nil, err
			}

		case resolver.StepDone:
			stats.Duration = time.Since(start)
			r.logger.Debug("resolution finished",
				"packages", len(res.Choices()),
				"lookups", stats.Lookups,
				"duration", stats.Duration)
			return newPlan(res.Roots(), res.Choices(), stats), nil

		case resolver.StepFailed:
			return nil, step.Err

		default:
			return nil, fmt.Errorf("unexpected resolver step %v", step.Kind)
		}
	}
}

// supply answers one candidate request. A non-zero exclude narrows the
// candidates to those not requiring it (cycle breaking). Lookup errors and
// empty matches are reported back to the resolver as unsatisfiable rather
// than aborting: backtracking may still find a plan without this atom.
func (r *Runner) supply(ctx context.Context, res *resolver.Resolver, a, exclude atom.Atom, stats *PlanStats) error {
	pkgs, err := r.src.Match(ctx, a)
	if err != nil {
		if ctx.Err() != nil {
			return err
		}
		stats.Failures++
		r.logger.Warn("candidate lookup failed", "atom", a, "err", err)
		return res.Fail(a, fmt.Sprintf("repository lookup failed: %v", err), false)
	}

	excluded := exclude != atom.Atom{}
	if excluded {
		pkgs = repo.Excluding(pkgs, exclude)
	}

	if len(pkgs) == 0 {
		stats.Failures++
		if excluded {
			// The cycle constraint is contextual, so the atom itself is not
			// permanently false.
			return res.Fail(a, fmt.Sprintf("no candidate breaks cycle with %s", exclude), false)
		}
		// Nothing in the repository can ever satisfy this atom.
		return res.Fail(a, "no matching packages", true)
	}

	r.logger.Debug("satisfying atom", "atom", a, "candidates", len(pkgs))
	return res.Satisfy(a, repo.AsCandidates(pkgs))
}
