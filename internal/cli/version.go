package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/getpup/pupsourcing-replay/pkg/version"
)

func init() {
	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show the replay version",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", boldText.Render("replay"), version.Version)
		return nil
	},
}
