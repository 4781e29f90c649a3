package cmd

import (
	"github.com/spf13/cobra"

	"github.com/oneconcern/globalrefdb/pkg/config"
)

// configCmd represents the config related commands
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Commands to manage a config",
	Long: `Commands to manage the refdb config.

The config describes the global ref database backend, the policy applying to each project,
and the refs which are never checked.`,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the current config",
	Long:  "Show the config in use, once defaults and environment overrides are applied",
	Run: func(cmd *cobra.Command, args []string) {
		if err := config.Generate(cmd.OutOrStdout(), settings); err != nil {
			wrapFatalln("render config", err)
			return
		}
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	rootCmd.AddCommand(configCmd)
}
