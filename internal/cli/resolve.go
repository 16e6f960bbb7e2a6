package cli

import (
	"context"
	stderrors "errors"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/keelpm/keel/pkg/atom"
	"github.com/keelpm/keel/pkg/render"
	"github.com/keelpm/keel/pkg/repo"
	"github.com/keelpm/keel/pkg/resolver"
	"github.com/keelpm/keel/pkg/solve"
)

// newResolveCmd creates the "resolve" command.
func newResolveCmd() *cobra.Command {
	var (
		indexPath   string
		format      string
		output      string
		maxSteps    int
		noCache     bool
		cacheDirF   string
		redisAddr   string
		save        bool
		mongoURI    string
		interactive bool
		detailed    bool
	)

	cmd := &cobra.Command{
		Use:   "resolve [atoms...]",
		Short: "Resolve root atoms against a package index",
		Long: `Resolve searches the package index for a consistent set of concrete
packages satisfying the given root atoms. Roots may be passed as arguments
or declared in the index file itself.

Atoms use the form [!][=]category/name[-version][:slot], e.g.
"www-servers/nginx", "=dev-libs/openssl-3.2.1", "dev-lang/python:3.12".`,
		Example: `  keel resolve --index world.toml
  keel resolve --index world.toml www-servers/nginx
  keel resolve --index world.toml --format dot -o plan.dot
  keel resolve --index world.toml --format svg -o plan.svg
  keel resolve --index world.toml --save`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := loggerFromContext(ctx)
			prog := newProgress(logger)

			ix, fileRoots, err := repo.LoadIndex(indexPath)
			if err != nil {
				return err
			}
			logger.Debug("loaded index", "path", indexPath, "packages", ix.Len())

			roots := fileRoots
			if len(args) > 0 {
				roots, err = atom.ParseAll(args)
				if err != nil {
					return err
				}
			}
			if len(roots) == 0 {
				return fmt.Errorf("no roots: pass atoms as arguments or declare them in %s", indexPath)
			}

			var src repo.Source = ix
			if !noCache {
				c, err := openCache(ctx, redisAddr, cacheDirF)
				if err != nil {
					printWarning("cache unavailable, resolving uncached: %v", err)
				} else {
					defer c.Close()
					src = repo.NewCachedSource(ix, c, nil, indexPath)
				}
			}

			spinner := newSpinnerWithContext(ctx, "Resolving dependencies...")
			spinner.Start()

			runner := solve.NewRunner(src, logger)
			if maxSteps > 0 {
				runner = runner.WithMaxSteps(maxSteps)
			}
			plan, err := runner.Resolve(ctx, roots)
			if err != nil {
				var noSol *resolver.NoSolutionError
				if stderrors.As(err, &noSol) {
					spinner.StopWithError(fmt.Sprintf("No solution for %s", noSol.Atom))
					printDetail("%s", noSol.Reason)
					return err
				}
				spinner.StopWithError("Resolution failed")
				return err
			}
			spinner.StopWithSuccess(fmt.Sprintf("Resolved %d packages", len(plan.Packages)))
			printStats(len(plan.Packages), plan.Stats.Lookups, plan.Stats.Cycles)

			if save {
				st, err := openStore(ctx, mongoURI)
				if err != nil {
					return err
				}
				defer st.Close(ctx)
				if err := st.Save(ctx, plan); err != nil {
					return err
				}
				printDetail("Saved plan %s", plan.ID)
			}

			if interactive {
				model := NewPlanModel(plan)
				if _, err := tea.NewProgram(model, tea.WithContext(ctx)).Run(); err != nil {
					return err
				}
				prog.done("Done")
				return nil
			}

			if err := writePlan(ctx, plan, format, output, detailed); err != nil {
				return err
			}
			prog.done("Done")
			return nil
		},
	}

	cmd.Flags().StringVarP(&indexPath, "index", "i", "", "path to the TOML package index (required)")
	cmd.Flags().StringVarP(&format, "format", "f", "text", "output format: text, dot, or svg")
	cmd.Flags().StringVarP(&output, "output", "o", "", "write output to file instead of stdout")
	cmd.Flags().IntVar(&maxSteps, "max-steps", 0, "cap resolver traversal steps (0 = default)")
	cmd.Flags().BoolVar(&noCache, "no-cache", false, "bypass the candidate cache")
	cmd.Flags().StringVar(&cacheDirF, "cache-dir", "", "candidate cache directory (default $KEEL_CACHE_DIR or ~/.cache/keel)")
	cmd.Flags().StringVar(&redisAddr, "redis", "", "redis address for the candidate cache (default $KEEL_REDIS_ADDR)")
	cmd.Flags().BoolVar(&save, "save", false, "persist the plan to the plan store")
	cmd.Flags().StringVar(&mongoURI, "mongo", "", "mongodb URI for the plan store (default $KEEL_MONGO_URI, else file store)")
	cmd.Flags().BoolVar(&interactive, "interactive", false, "browse the plan in an interactive viewer")
	cmd.Flags().BoolVar(&detailed, "detailed", false, "include versions and slots in graph labels")
	_ = cmd.MarkFlagRequired("index")

	return cmd
}

// writePlan emits the plan in the requested format. Text goes to the
// terminal; dot and svg go to the output file, or stdout for dot.
func writePlan(ctx context.Context, plan *solve.Plan, format, output string, detailed bool) error {
	switch format {
	case "text":
		printPlan(plan)
		return nil

	case "dot":
		dot := render.ToDOT(plan, render.Options{Detailed: detailed})
		if output == "" {
			fmt.Print(dot)
			return nil
		}
		if err := os.WriteFile(output, []byte(dot), 0644); err != nil {
			return err
		}
		printFile(output)
		return nil

	case "svg":
		if output == "" {
			output = "plan.svg"
		}
		dot := render.ToDOT(plan, render.Options{Detailed: detailed})
		svg, err := render.RenderSVG(ctx, dot)
		if err != nil {
			return err
		}
		if err := os.WriteFile(output, svg, 0644); err != nil {
			return err
		}
		printFile(output)
		return nil

	default:
		return fmt.Errorf("unknown format %q (want text, dot, or svg)", format)
	}
}

// printPlan prints the chosen packages as a simple table.
func printPlan(plan *solve.Plan) {
	fmt.Println()
	for i := range plan.Packages {
		pkg := &plan.Packages[i]
		name := pkg.Key
		if pkg.Slot != "" {
			name += ":" + pkg.Slot
		}
		fmt.Println("  " + StyleValue.Render(name) + " " + StyleHighlight.Render(pkg.Version))
	}
}
