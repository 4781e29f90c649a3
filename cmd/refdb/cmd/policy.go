package cmd

import (
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/oneconcern/globalrefdb/pkg/enforcement"
	"github.com/oneconcern/globalrefdb/pkg/refdb"
	"github.com/oneconcern/globalrefdb/pkg/validation"
)

var policyCmd = &cobra.Command{
	Use:   "policy <project> [ref]",
	Short: "Show the policy applying to a project or a ref",
	Long: `Show the policy applying to a project, or to a ref of a project.

Policies are:
  EXCLUDE          refs are neither checked nor recorded
  INCLUDE_MUTABLE  all refs are checked and recorded, except immutable refs such as patch sets
  INCLUDE          all refs are checked and recorded
`,
	Example: `refdb policy my-project
refdb policy my-project refs/heads/main`,
	Args: cobra.RangeArgs(1, 2),
	Run: func(cmd *cobra.Command, args []string) {
		project := args[0]
		opts, err := settings.ValidatorOptions()
		if err != nil {
			wrapFatalln("configure validation", err)
			return
		}
		filter, err := settings.ProjectsFilter()
		if err != nil {
			wrapFatalln("build projects filter", err)
			return
		}
		// policies do not depend on the global ref database
		v := validation.NewRefUpdateValidator(
			validation.NewSharedRefDatabase(refdb.Noop, validation.Logger(zap.NewNop())), project, nil, opts...,
		)

		if !filter.Matches(project) {
			infoLogger.Printf("project %s: %s (not matched by %s)",
				project, colorPolicy(enforcement.Exclude), strings.Join(filter.Patterns(), ", "))
			return
		}
		infoLogger.Printf("project %s: %s", project, colorPolicy(v.ProjectPolicy()))

		if len(args) < 2 {
			return
		}
		refName := args[1]
		if prefix, ignored := v.IgnoredBy(refName); ignored {
			infoLogger.Printf("ref %s: %s (ignored prefix %s)", refName, colorPolicy(enforcement.Exclude), prefix)
			return
		}
		infoLogger.Printf("ref %s: %s", refName, colorPolicy(v.RefPolicy(refName)))
	},
}

func colorPolicy(p enforcement.Policy) string {
	switch p {
	case enforcement.Exclude:
		return color.RedString(p.String())
	case enforcement.IncludeMutable:
		return color.YellowString(p.String())
	default:
		return color.GreenString(p.String())
	}
}

func init() {
	rootCmd.AddCommand(policyCmd)
}
