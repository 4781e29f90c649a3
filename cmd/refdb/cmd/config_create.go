package cmd

import (
	"os/user"
	"path/filepath"
	"time"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/oneconcern/globalrefdb/pkg/config"
)

var configCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a config",
	Long:  "Create a config to use for refdb. Config file will be placed in $HOME/.refdb/refdb.yaml unless --file is specified",
	Run: func(cmd *cobra.Command, args []string) {
		file := refdbFlags.config.file
		if file == "" {
			u, err := user.Current()
			if u == nil || err != nil {
				wrapFatalln("could not get home directory for user", err)
				return
			}
			file = filepath.Join(u.HomeDir, ".refdb", "refdb.yaml")
		}

		exists, err := afero.Exists(fs, file)
		if err != nil {
			wrapFatalln("check config file", err)
			return
		}
		if exists && !refdbFlags.config.force {
			wrapFatalln("config file "+file+" already exists: use --force to overwrite it", nil)
			return
		}

		lockTimeout, err := time.ParseDuration(refdbFlags.config.lockTimeout)
		if err != nil {
			wrapFatalln("parse lock timeout", err)
			return
		}

		c := config.Default()
		c.RefDatabase.LockTimeout = lockTimeout
		c.RefDatabase.Backend.Type = refdbFlags.config.backend
		c.RefDatabase.Backend.Path = refdbFlags.config.path
		if err = c.Validate(); err != nil {
			wrapFatalln("invalid config", err)
			return
		}

		if err = config.Write(fs, file, c); err != nil {
			wrapFatalln("write config file", err)
			return
		}
		infoLogger.Printf("config written to %s", file)
	},
}

func init() {
	addConfigFileFlag(configCreateCmd)
	addBackendFlag(configCreateCmd)
	addBackendPathFlag(configCreateCmd)
	addLockTimeoutFlag(configCreateCmd)
	addForceConfigFlag(configCreateCmd)

	configCmd.AddCommand(configCreateCmd)
}
