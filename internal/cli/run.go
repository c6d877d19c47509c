package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var runCommand = &cobra.Command{
	Use:     "run",
	GroupID: "snapsentry",
	Short:   "Run one reconciliation tick",
	Long:    `Loads the policy document, then for every volume creates a snapshot when one is due, replicates the newest completed snapshot when a replica region is configured, and prunes snapshots beyond retention. Exits non-zero if any volume failed.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Println(headerStyle.Render("Snapsentry - Reconciliation"))

		rt, err := newRuntime(cmd.Context(), cfg)
		if err != nil {
			return err
		}

		summary := rt.tick(cmd.Context(), cfg)
		if summary.Failed+summary.Invalid > 0 {
			return fmt.Errorf("%d of %d volumes failed (%d invalid policies)",
				summary.Failed+summary.Invalid, summary.Volumes, summary.Invalid)
		}
		return nil
	},
}

func init() {
	rootCommand.AddCommand(runCommand)
}
