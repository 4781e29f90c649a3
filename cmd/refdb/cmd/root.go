package cmd

import (
	"fmt"
	"log"
	"os"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/oneconcern/globalrefdb/internal"
	"github.com/oneconcern/globalrefdb/pkg/config"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "refdb",
	Short: "refdb inspects and repairs the global ref database of a cluster",
	Long: `refdb inspects and repairs the global ref database shared by the nodes of a replicated cluster.

The global ref database records the last known good value of every ref of every project.
Nodes check their local refs against it before accepting an update, so that a node which is out of sync
never overwrites changes made elsewhere.

Use refdb to check which policy applies to a project, to compare a local ref with its recorded value,
or to clean up the records of a project after a split brain.
`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		stop, err := internal.StartCPUProfile(refdbFlags.root.cpuProf)
		if err != nil {
			wrapFatalln("start cpu profile", err)
			return
		}
		stopCPUProfile = stop
	},
	// upstream api note:  *PostRun functions aren't called in case of a panic() in Run
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if err := stopCPUProfile(); err != nil {
			wrapFatalln("stop cpu profile", err)
		}
		if err := internal.WriteMemProfile(refdbFlags.root.memProf, nil); err != nil {
			wrapFatalln("write memory profile", err)
		}
		if refdbFlags.root.printMetrics {
			if err := writeMetrics(cmd.OutOrStdout()); err != nil {
				wrapFatalln("dump metrics", err)
			}
		}
	},
}

var (
	settings *config.Config

	// fs holds configuration files, and may be patched during tests
	fs = afero.NewOsFs()

	stopCPUProfile = func() error { return nil }
)

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	log.SetFlags(0)
	cobra.OnInitialize(initConfig)

	addConfigFlag(rootCmd)
	addLogLevelFlag(rootCmd)
	addPrintMetricsFlag(rootCmd)
	addCPUProfFlag(rootCmd)
	addMemProfFlag(rootCmd)
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	file := refdbFlags.root.config
	if file == "" {
		file = os.Getenv("REFDB_CONFIG")
	}

	var err error
	settings, err = config.Load(file, config.WithFs(fs))
	if err != nil {
		logFatalln(err)
		return
	}
	if refdbFlags.root.logLevel != "" {
		settings.Log.Level = refdbFlags.root.logLevel
	}
}
