package prefs

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/thyholm1234/DOF.not/internal/app"
	"github.com/thyholm1234/DOF.not/internal/conf"
	"github.com/thyholm1234/DOF.not/internal/preferences"
)

// Command creates the prefs command for inspecting and editing user
// preferences in the configured store.
func Command(settings *conf.Settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "prefs",
		Short: "Show and edit user preferences",
	}

	cmd.AddCommand(
		getCommand(settings),
		setCommand(settings),
		excludeCommand(settings),
		thresholdCommand(settings),
	)
	return cmd
}

func getCommand(settings *conf.Settings) *cobra.Command {
	return &cobra.Command{
		Use:   "get USER",
		Short: "Print the region matrix and species overrides of a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd.Context(), settings, func(ctx context.Context, store preferences.Store) error {
				m, err := preferences.LoadMatrix(ctx, store, args[0])
				if err != nil {
					return err
				}
				o, ok := preferences.LoadOverrides(ctx, store, args[0], settings.Pipeline.OverrideTimeout)
				if !ok {
					return fmt.Errorf("overrides of %s are unavailable", args[0])
				}
				return writeJSON(cmd, map[string]any{
					"prefs":     m.Raw(),
					"usable":    m.Usable(),
					"overrides": o.Record(),
				})
			})
		},
	}
}

func setCommand(settings *conf.Settings) *cobra.Command {
	var replace bool
	cmd := &cobra.Command{
		Use:   "set USER REGION=SELECTION...",
		Short: "Set region selections (none, su, sub, alle)",
		Long: `Set the selection for one or more regions. Regions may be slugs or branch
names. Without --replace the given regions are merged into the stored matrix.

Example:
  dofnot prefs set u1 kobenhavn=alle "DOF Fyn=su"`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			updates := make(map[string]string, len(args)-1)
			for _, arg := range args[1:] {
				region, selection, ok := strings.Cut(arg, "=")
				if !ok {
					return fmt.Errorf("expected REGION=SELECTION, got %q", arg)
				}
				updates[strings.TrimSpace(region)] = strings.TrimSpace(selection)
			}

			return withStore(cmd.Context(), settings, func(ctx context.Context, store preferences.Store) error {
				raw := map[string]string{}
				if !replace {
					current, err := preferences.LoadMatrix(ctx, store, args[0])
					if err != nil {
						return err
					}
					raw = current.Raw()
				}
				for k, v := range updates {
					raw[k] = v
				}
				m, err := preferences.ParseMatrix(raw)
				if err != nil {
					return err
				}
				if err := preferences.SaveMatrix(ctx, store, args[0], m); err != nil {
					return err
				}
				return writeJSON(cmd, m.Raw())
			})
		},
	}
	cmd.Flags().BoolVar(&replace, "replace", false, "Replace the stored matrix instead of merging")
	return cmd
}

func excludeCommand(settings *conf.Settings) *cobra.Command {
	var remove bool
	cmd := &cobra.Command{
		Use:   "exclude USER SPECIES...",
		Short: "Exclude species from a user's notifications",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return updateOverrides(cmd, settings, args[0], func(o *preferences.Overrides) {
				for _, name := range args[1:] {
					o.SetExcluded(name, !remove)
				}
			})
		},
	}
	cmd.Flags().BoolVar(&remove, "remove", false, "Include the species again")
	return cmd
}

func thresholdCommand(settings *conf.Settings) *cobra.Command {
	return &cobra.Command{
		Use:   "threshold USER SPECIES gte|eq COUNT",
		Short: "Require a minimum or exact count for a species",
		Args:  cobra.ExactArgs(4),
		RunE: func(cmd *cobra.Command, args []string) error {
			mode := preferences.ThresholdMode(strings.ToLower(args[2]))
			if mode != preferences.ModeGTE && mode != preferences.ModeEq {
				return fmt.Errorf("mode must be gte or eq, got %q", args[2])
			}
			value, err := strconv.Atoi(args[3])
			if err != nil {
				return fmt.Errorf("count must be a number: %w", err)
			}
			return updateOverrides(cmd, settings, args[0], func(o *preferences.Overrides) {
				o.SetThreshold(args[1], mode, value)
			})
		},
	}
}

func updateOverrides(cmd *cobra.Command, settings *conf.Settings, user string, edit func(*preferences.Overrides)) error {
	return withStore(cmd.Context(), settings, func(ctx context.Context, store preferences.Store) error {
		o, ok := preferences.LoadOverrides(ctx, store, user, settings.Pipeline.OverrideTimeout)
		if !ok {
			return fmt.Errorf("overrides of %s are unavailable", user)
		}
		edit(&o)
		if err := preferences.SaveOverrides(ctx, store, user, o); err != nil {
			return err
		}
		return writeJSON(cmd, o.Record())
	})
}

func withStore(ctx context.Context, settings *conf.Settings, fn func(context.Context, preferences.Store) error) error {
	store, err := app.OpenStore(settings.Store)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()
	return fn(ctx, store)
}

func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
