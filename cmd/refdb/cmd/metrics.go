package cmd

import (
	"github.com/spf13/cobra"
)

var metricsCmd = &cobra.Command{
	Use:   "metrics",
	Short: "Print the metrics of this process",
	Long: `Print the metrics of this process, in the prometheus text format.

Metrics of global ref database operations are only available once some operation has run:
use --print-metrics with other commands to print them once the command is done.`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		if refdbFlags.root.printMetrics {
			// printed once done
			return
		}
		if err := writeMetrics(cmd.OutOrStdout()); err != nil {
			wrapFatalln("dump metrics", err)
			return
		}
	},
}

func init() {
	rootCmd.AddCommand(metricsCmd)
}
