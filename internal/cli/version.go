package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"mandi-pricecheck/internal/version"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print build information",
	// no config needed
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "%s\ncommit: %s\nbuilt: %s\n", version.UserAgent(), version.Commit, version.BuildDate)
	},
}
