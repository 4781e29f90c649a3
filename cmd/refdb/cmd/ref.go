package cmd

import (
	"context"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/oneconcern/globalrefdb/pkg/model"
)

var refCmd = &cobra.Command{
	Use:   "ref",
	Short: "Commands to inspect and repair the records of refs",
	Long: `Commands to inspect and repair the records of refs in the global ref database.

Refs are identified by a project and a ref name, e.g. "my-project refs/heads/main".`,
}

var refCheckCmd = &cobra.Command{
	Use:   "check <project> <ref> <id>",
	Short: "Check a local ref against the global ref database",
	Long: `Check a local ref against the global ref database.

The command exits with status 1 when the ref is out of sync.`,
	Example: `refdb ref check my-project refs/heads/main 3b18e512dba79e4c8300dd08aeb37f8e728b8dad
refdb ref check my-project HEAD refs/heads/main --symbolic`,
	Args: cobra.ExactArgs(3),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		project, refName := args[0], args[1]

		ref, err := parseRef(refName, args[2], refdbFlags.ref.symbolic)
		if err != nil {
			wrapFatalln("invalid ref", err)
			return
		}

		db, closer := mustOpenRefDatabase()
		defer closer()

		upToDate, err := db.IsUpToDate(ctx, project, ref)
		if err != nil {
			wrapFatalln("check ref", err)
			return
		}
		if upToDate {
			infoLogger.Printf("%s %s", ref, color.GreenString("up to date"))
			return
		}

		recorded, found, err := db.Get(ctx, project, refName)
		if err != nil {
			wrapFatalln("get recorded value", err)
			return
		}
		if !found {
			wrapFatalWithCodef(1, "%s %s: no record", ref, color.RedString("out of sync"))
			return
		}
		wrapFatalWithCodef(1, "%s %s: recorded value is %s", ref, color.RedString("out of sync"), recorded)
	},
}

var refExistsCmd = &cobra.Command{
	Use:   "exists <project> <ref>",
	Short: "Tell if the global ref database holds a record for a ref",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		db, closer := mustOpenRefDatabase()
		defer closer()

		exists, err := db.Exists(context.Background(), args[0], args[1])
		if err != nil {
			wrapFatalln("check ref record", err)
			return
		}
		infoLogger.Println(exists)
	},
}

var refUpdateCmd = &cobra.Command{
	Use:   "update <project> <ref> <old id> <new id>",
	Short: "Update the record of a ref, provided it holds the old id",
	Long: `Update the record of a ref in the global ref database, provided it currently holds the old id.

Use the zero id (40 zeros) as the old id to create a record.
The command exits with status 1 when the recorded value is not the old id.`,
	Args: cobra.ExactArgs(4),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		project, refName := args[0], args[1]

		current, err := parseRef(refName, args[2], false)
		if err != nil {
			wrapFatalln("invalid old id", err)
			return
		}
		newID, err := model.ParseObjectID(args[3])
		if err != nil {
			wrapFatalln("invalid new id", err)
			return
		}

		db, closer := mustOpenRefDatabase()
		defer closer()

		lctx, cancel := context.WithTimeout(ctx, settings.RefDatabase.LockTimeout)
		defer cancel()
		lock, err := db.LockRef(lctx, project, refName)
		if err != nil {
			wrapFatalln("lock ref", err)
			return
		}
		defer func() {
			if err := lock.Release(); err != nil {
				wrapFatalln("release ref lock", err)
			}
		}()

		succeeded, err := db.CompareAndPut(ctx, project, current, newID)
		if err != nil {
			wrapFatalln("update ref record", err)
			return
		}
		if !succeeded {
			wrapFatalWithCodef(1, "%s %s: the recorded value is not %s", refName, color.RedString("not updated"), current.ObjectID)
			return
		}
		infoLogger.Printf("%s %s", model.NewRef(refName, newID), color.GreenString("updated"))
	},
}

func parseRef(refName, value string, symbolic bool) (model.Ref, error) {
	if symbolic {
		return model.NewSymbolicRef(refName, value), nil
	}
	id, err := model.ParseObjectID(value)
	if err != nil {
		return model.Ref{}, err
	}
	return model.NewRef(refName, id), nil
}

func init() {
	addSymbolicFlag(refCheckCmd)

	refCmd.AddCommand(refCheckCmd)
	refCmd.AddCommand(refExistsCmd)
	refCmd.AddCommand(refUpdateCmd)
	rootCmd.AddCommand(refCmd)
}
