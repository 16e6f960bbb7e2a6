package cli

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
)

// newPlansCmd creates the "plans" command group.
func newPlansCmd() *cobra.Command {
	var mongoURI string

	cmd := &cobra.Command{
		Use:   "plans",
		Short: "Manage stored resolution plans",
	}
	cmd.PersistentFlags().StringVar(&mongoURI, "mongo", "", "mongodb URI for the plan store (default $KEEL_MONGO_URI, else file store)")

	cmd.AddCommand(newPlansListCmd(&mongoURI))
	cmd.AddCommand(newPlansShowCmd(&mongoURI))
	cmd.AddCommand(newPlansDeleteCmd(&mongoURI))

	return cmd
}

func newPlansListCmd(mongoURI *string) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List stored plans",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			st, err := openStore(ctx, *mongoURI)
			if err != nil {
				return err
			}
			defer st.Close(ctx)

			summaries, err := st.List(ctx)
			if err != nil {
				return err
			}
			if len(summaries) == 0 {
				printInfo("No stored plans")
				return nil
			}
			for _, s := range summaries {
				fmt.Println(StyleHighlight.Render(s.ID) + " " +
					StyleDim.Render(fmt.Sprintf("%d packages · %s · %s",
						s.Packages,
						strings.Join(s.Roots, " "),
						s.CreatedAt.Local().Format("2006-01-02 15:04"))))
			}
			return nil
		},
	}
}

func newPlansShowCmd(mongoURI *string) *cobra.Command {
	var interactive bool

	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show a stored plan",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			st, err := openStore(ctx, *mongoURI)
			if err != nil {
				return err
			}
			defer st.Close(ctx)

			plan, err := st.Get(ctx, args[0])
			if err != nil {
				return err
			}

			if interactive {
				_, err := tea.NewProgram(NewPlanModel(plan), tea.WithContext(ctx)).Run()
				return err
			}

			printKeyValue("id", plan.ID)
			printKeyValue("roots", strings.Join(plan.Roots, " "))
			printKeyValue("created", plan.CreatedAt.Local().Format("2006-01-02 15:04:05"))
			printPlan(plan)
			return nil
		},
	}
	cmd.Flags().BoolVar(&interactive, "interactive", false, "browse the plan in an interactive viewer")
	return cmd
}

func newPlansDeleteCmd(mongoURI *string) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a stored plan",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			st, err := openStore(ctx, *mongoURI)
			if err != nil {
				return err
			}
			defer st.Close(ctx)

			if err := st.Delete(ctx, args[0]); err != nil {
				return err
			}
			printSuccess("Deleted plan %s", args[0])
			return nil
		},
	}
}
