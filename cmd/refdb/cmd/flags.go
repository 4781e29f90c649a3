package cmd

import (
	"github.com/spf13/cobra"

	"github.com/oneconcern/globalrefdb/pkg/config"
	"github.com/oneconcern/globalrefdb/pkg/refdb"
)

type flagsT struct {
	root struct {
		config       string
		logLevel     string
		printMetrics bool
		cpuProf      string
		memProf      string
	}
	config struct {
		file        string
		backend     string
		path        string
		lockTimeout string
		force       bool
	}
	value struct {
		kind     string
		expected string
	}
	ref struct {
		symbolic bool
	}
	project struct {
		force bool
	}
}

var refdbFlags = flagsT{}

func addConfigFlag(cmd *cobra.Command) string {
	c := "config"
	cmd.PersistentFlags().StringVar(&refdbFlags.root.config, c, "",
		"Path to the configuration file. Defaults to refdb.yaml in the current folder, $HOME/.refdb or /etc/refdb")
	return c
}

func addLogLevelFlag(cmd *cobra.Command) string {
	logLevel := "loglevel"
	cmd.PersistentFlags().StringVar(&refdbFlags.root.logLevel, logLevel, "", "The logging level, overriding the configuration: info, debug or none")
	return logLevel
}

func addPrintMetricsFlag(cmd *cobra.Command) string {
	printMetrics := "print-metrics"
	cmd.PersistentFlags().BoolVar(&refdbFlags.root.printMetrics, printMetrics, false, "Print metrics once the command is done")
	return printMetrics
}

func addCPUProfFlag(cmd *cobra.Command) string {
	cpuProf := "cpuprof"
	cmd.PersistentFlags().StringVar(&refdbFlags.root.cpuProf, cpuProf, "", "Write a CPU profile of the command to this file")
	return cpuProf
}

func addMemProfFlag(cmd *cobra.Command) string {
	memProf := "memprof"
	cmd.PersistentFlags().StringVar(&refdbFlags.root.memProf, memProf, "",
		"Write heap and allocs profiles once the command is done, to files prefixed by this path")
	return memProf
}

func addConfigFileFlag(cmd *cobra.Command) string {
	file := "file"
	cmd.Flags().StringVar(&refdbFlags.config.file, file, "", "The configuration file to create. Defaults to $HOME/.refdb/refdb.yaml")
	return file
}

func addBackendFlag(cmd *cobra.Command) string {
	backend := "backend"
	cmd.Flags().StringVar(&refdbFlags.config.backend, backend, config.BackendBadger,
		"The type of global ref database: "+config.BackendNoop+", "+config.BackendMemory+" or "+config.BackendBadger)
	return backend
}

func addBackendPathFlag(cmd *cobra.Command) string {
	path := "path"
	cmd.Flags().StringVar(&refdbFlags.config.path, path, "", "The folder of the badger global ref database")
	return path
}

func addLockTimeoutFlag(cmd *cobra.Command) string {
	lockTimeout := "lock-timeout"
	cmd.Flags().StringVar(&refdbFlags.config.lockTimeout, lockTimeout, config.DefaultLockTimeout.String(), "The maximum time spent waiting for a ref lock")
	return lockTimeout
}

func addForceConfigFlag(cmd *cobra.Command) string {
	force := "force"
	cmd.Flags().BoolVar(&refdbFlags.config.force, force, false, "Overwrite an existing configuration file")
	return force
}

func addValueKindFlag(cmd *cobra.Command) string {
	kind := "kind"
	cmd.Flags().StringVar(&refdbFlags.value.kind, kind, refdb.KindString.String(),
		"The kind of value: "+refdb.KindObjectID.String()+", "+refdb.KindString.String()+" or "+refdb.KindInt64.String())
	return kind
}

func addExpectedValueFlag(cmd *cobra.Command) string {
	expected := "expected"
	if cmd != nil {
		cmd.Flags().StringVar(&refdbFlags.value.expected, expected, "",
			"Only set the value if the currently recorded value is this one. Without this flag, the value is set unconditionally")
	}
	return expected
}

func addSymbolicFlag(cmd *cobra.Command) string {
	symbolic := "symbolic"
	cmd.Flags().BoolVar(&refdbFlags.ref.symbolic, symbolic, false, "The ref is symbolic: its value is the name of a target ref")
	return symbolic
}

func addForceRemoveFlag(cmd *cobra.Command) string {
	force := "force"
	cmd.Flags().BoolVar(&refdbFlags.project.force, force, false, "Confirm the removal of all the records of the project")
	return force
}
