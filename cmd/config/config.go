package config

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/thyholm1234/DOF.not/internal/conf"
)

// SkipSetup is the annotation of commands that run before a configuration
// exists
const SkipSetup = "skip-setup"

// Command creates the config command
func Command(settings *conf.Settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Create or inspect the configuration",
	}

	initCmd := &cobra.Command{
		Use:         "init [path]",
		Short:       "Write the default configuration file",
		Args:        cobra.MaximumNArgs(1),
		Annotations: map[string]string{SkipSetup: "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "config.yaml"
			if len(args) == 1 {
				path = args[0]
			}
			if err := conf.WriteDefaultConfig(path); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", path)
			return nil
		},
	}

	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			enc := yaml.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent(2)
			if err := enc.Encode(redacted(settings)); err != nil {
				return err
			}
			return enc.Close()
		},
	}

	cmd.AddCommand(initCmd, showCmd)
	return cmd
}

// redacted returns a copy of settings without credentials
func redacted(s *conf.Settings) conf.Settings {
	out := *s
	const mask = "********"
	if out.Delivery.Webhook.Token != "" {
		out.Delivery.Webhook.Token = mask
	}
	if out.Delivery.MQTT.Password != "" {
		out.Delivery.MQTT.Password = mask
	}
	if out.Store.DSN != "" {
		out.Store.DSN = mask
	}
	if len(out.Delivery.Shoutrrr.URLs) > 0 {
		out.Delivery.Shoutrrr.URLs = []string{mask}
	}
	return out
}
