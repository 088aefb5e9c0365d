package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/thyholm1234/DOF.not/cmd/config"
	"github.com/thyholm1234/DOF.not/cmd/notify"
	"github.com/thyholm1234/DOF.not/cmd/parse"
	"github.com/thyholm1234/DOF.not/cmd/prefs"
	"github.com/thyholm1234/DOF.not/cmd/watch"
	"github.com/thyholm1234/DOF.not/internal/conf"
	"github.com/thyholm1234/DOF.not/internal/logger"
)

// flagKeys binds command line flags to configuration keys. Flags that a
// command does not define are ignored.
var flagKeys = map[string]string{
	"debug":       "debug",
	"regions":     "fetch.regions",
	"logdir":      "fetch.logdir",
	"mode":        "pipeline.mode",
	"max":         "pipeline.maxperbatch",
	"schedule":    "watch.schedule",
	"listen":      "watch.listen",
	"lockfile":    "watch.lockfile",
	"store":       "store.path",
	"classes":     "classification.path",
	"today":       "fetch.todayonly",
	"withdrawals": "pipeline.withdrawals",
}

// RootCommand creates and returns the root command
func RootCommand() *cobra.Command {
	settings := &conf.Settings{}
	var configFile string

	rootCmd := &cobra.Command{
		Use:           "dofnot",
		Short:         "DOF observation notifier",
		Long:          "Parse DOFbasen region feeds, group observations into threads and push notifications per user preferences.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "Path to config file")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "Enable debug output")

	rootCmd.AddCommand(
		parse.Command(settings),
		notify.Command(settings),
		watch.Command(settings),
		prefs.Command(settings),
		config.Command(settings),
	)

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		for c := cmd; c != nil; c = c.Parent() {
			if c.Annotations[config.SkipSetup] == "true" {
				return nil
			}
		}
		return initialize(cmd, configFile, settings)
	}

	return rootCmd
}

// initialize loads the configuration into settings and installs the global
// logger. It runs before any subcommand.
func initialize(cmd *cobra.Command, configFile string, settings *conf.Settings) error {
	loaded, err := conf.Load(conf.LoadOptions{
		ConfigFile: configFile,
		Flags:      cmd.Flags(),
		FlagKeys:   flagKeys,
	})
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	*settings = *loaded

	logCfg := settings.Logging
	if settings.Debug {
		logCfg.DefaultLevel = "debug"
		if logCfg.Console != nil {
			console := *logCfg.Console
			console.Level = "debug"
			logCfg.Console = &console
		}
	}
	cl, err := logger.NewCentralLogger(&logCfg)
	if err != nil {
		return fmt.Errorf("failed to set up logging: %w", err)
	}
	logger.SetGlobal(cl)
	return nil
}
