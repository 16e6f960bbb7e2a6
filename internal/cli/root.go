package cli

import (
	"context"
	"os"

	charmlog "github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/keelpm/keel/pkg/buildinfo"
)

// Execute runs the keel CLI and returns an error if any command fails.
//
// The function sets up the root command with all subcommands, configures
// logging based on the --verbose flag, and executes the command tree. The
// logger is attached to the context and accessible to all commands via
// loggerFromContext. Cancelling ctx stops long-running commands such as
// serve.
func Execute(ctx context.Context) error {
	var verbose bool

	root := &cobra.Command{
		Use:          "keel",
		Short:        "Keel resolves package dependency graphs",
		Long:         `Keel is a backtracking dependency resolver: given root atoms and a package index it searches for a consistent set of concrete packages, breaking cycles and honoring blockers along the way.`,
		Version:      buildinfo.Version,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level := charmlog.InfoLevel
			if verbose {
				level = charmlog.DebugLevel
			}
			ctx := withLogger(cmd.Context(), newLogger(os.Stderr, level))
			cmd.SetContext(ctx)
		},
	}

	root.SetVersionTemplate(buildinfo.Template())
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose logging")

	root.AddCommand(newResolveCmd())
	root.AddCommand(newPlansCmd())
	root.AddCommand(newServeCmd())
	root.AddCommand(newCacheCmd())

	return root.ExecuteContext(ctx)
}
