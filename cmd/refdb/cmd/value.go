package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/oneconcern/globalrefdb/pkg/refdb"
)

var valueCmd = &cobra.Command{
	Use:   "value",
	Short: "Commands to manage typed values recorded along refs",
	Long: `Commands to manage typed values recorded in the global ref database.

Besides the object ids of refs, nodes may record other values under a project and a key,
such as version counters. Values are an object id, a string or a 64-bit integer.`,
}

var valueGetCmd = &cobra.Command{
	Use:   "get <project> <key>",
	Short: "Get the value recorded for a key",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		db, closer := mustOpenRefDatabase()
		defer closer()

		v, found, err := db.Get(context.Background(), args[0], args[1])
		if err != nil {
			wrapFatalln("get value", err)
			return
		}
		if !found {
			wrapFatalWithCodef(1, "no value recorded for %s", refdb.Key(args[0], args[1]))
			return
		}
		infoLogger.Printf("%s (%s)", v, v.Kind())
	},
}

var valueSetCmd = &cobra.Command{
	Use:   "set <project> <key> <value>",
	Short: "Record a value for a key",
	Example: `refdb value set my-project refs/version 42 --kind int64
refdb value set my-project refs/version 43 --kind int64 --expected 42`,
	Args: cobra.ExactArgs(3),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		project, key := args[0], args[1]

		kind, err := refdb.ParseKind(refdbFlags.value.kind)
		if err != nil {
			wrapFatalln("invalid kind", err)
			return
		}
		value, err := refdb.ParseValue(kind, args[2])
		if err != nil {
			wrapFatalln("invalid value", err)
			return
		}

		db, closer := mustOpenRefDatabase()
		defer closer()

		if !cmd.Flags().Changed(addExpectedValueFlag(nil)) {
			if err = db.Put(ctx, project, key, value); err != nil {
				wrapFatalln("set value", err)
				return
			}
			infoLogger.Printf("%s = %s", refdb.Key(project, key), value)
			return
		}

		expected, err := refdb.ParseValue(kind, refdbFlags.value.expected)
		if err != nil {
			wrapFatalln("invalid expected value", err)
			return
		}
		succeeded, err := db.CompareAndPutValue(ctx, project, key, expected, value)
		if err != nil {
			wrapFatalln("set value", err)
			return
		}
		if !succeeded {
			wrapFatalWithCodef(1, "%s not updated: the recorded value is not %s", refdb.Key(project, key), expected)
			return
		}
		infoLogger.Printf("%s = %s", refdb.Key(project, key), value)
	},
}

func init() {
	addValueKindFlag(valueSetCmd)
	addExpectedValueFlag(valueSetCmd)

	valueCmd.AddCommand(valueGetCmd)
	valueCmd.AddCommand(valueSetCmd)
	rootCmd.AddCommand(valueCmd)
}
