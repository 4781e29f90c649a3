package cmd

import (
	"context"

	"github.com/spf13/cobra"
)

var projectCmd = &cobra.Command{
	Use:   "project",
	Short: "Commands to manage the records of projects",
}

var projectRemoveCmd = &cobra.Command{
	Use:   "remove <project>",
	Short: "Remove all the records of a project",
	Long: `Remove all the records of a project from the global ref database.

This is needed once a project is deleted from all the nodes of the cluster.
Records of a project which still exists are recreated by the next updates,
but refs which are not updated again are no longer protected.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		if !refdbFlags.project.force {
			wrapFatalln("removing the records of project "+args[0]+" requires --force", nil)
			return
		}

		db, closer := mustOpenRefDatabase()
		defer closer()

		if err := db.Remove(context.Background(), args[0]); err != nil {
			wrapFatalln("remove project records", err)
			return
		}
		infoLogger.Printf("records of project %s removed", args[0])
	},
}

func init() {
	addForceRemoveFlag(projectRemoveCmd)

	projectCmd.AddCommand(projectRemoveCmd)
	rootCmd.AddCommand(projectCmd)
}
