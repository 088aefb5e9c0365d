package notify

import (
	"errors"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/thyholm1234/DOF.not/internal/app"
	"github.com/thyholm1234/DOF.not/internal/batch"
	"github.com/thyholm1234/DOF.not/internal/conf"
	"github.com/thyholm1234/DOF.not/internal/output"
)

// Command returns a cobra command that runs a single notification batch
func Command(settings *conf.Settings) *cobra.Command {
	var (
		users  []string
		dryRun bool
		format string
	)

	cmd := &cobra.Command{
		Use:   "notify",
		Short: "Run one notification batch",
		Long: `Fetch the configured regions, filter them for each user and push the planned notifications.

Examples:
  # Show what user u1 would receive, without sending anything
  dofnot notify --user=u1 --dry-run

  # One batch for the configured users, limited to two regions
  dofnot notify --regions=kobenhavn,fyn`,
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := output.ParseFormat(format)
			if err != nil {
				return err
			}
			if len(users) == 0 {
				users = settings.Delivery.Users
			}
			if len(users) == 0 {
				return errors.New("no users given, use --user or delivery.users")
			}

			a, err := app.New(settings, app.Options{SkipDelivery: dryRun})
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			plans, runErr := a.RunBatch(cmd.Context(), users, dryRun)
			if err := output.Write(cmd.OutOrStdout(), f, plans, planTable(plans)); err != nil {
				return err
			}
			return runErr
		},
	}

	cmd.Flags().StringSliceVarP(&users, "user", "u", nil, "User to notify, repeatable (default delivery.users)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Plan only, deliver nothing")
	cmd.Flags().StringVarP(&format, "output", "o", "table", "Output format: table, json, yaml")
	cmd.Flags().StringSlice("regions", nil, "Regions to fetch, slugs or branch names (default fetch.regions)")
	cmd.Flags().String("mode", "", "Candidates: threads or observations (default pipeline.mode)")
	cmd.Flags().Int("max", 0, "Notifications per user and batch (default pipeline.maxperbatch)")
	cmd.Flags().Bool("withdrawals", true, "Notify about withdrawn threads")

	return cmd
}

func planTable(plans []batch.Plan) output.Table {
	tbl := output.Table{
		Headers: []string{"User", "Kind", "Title", "Body", "URL", "Sent"},
	}
	for _, p := range plans {
		sent := strconv.FormatBool(p.Delivered)
		for _, d := range p.Withdrawals {
			tbl.Rows = append(tbl.Rows, []string{p.UserID, batch.KindWithdrawal, d.Title, d.Body, d.TargetURL, sent})
		}
		for _, d := range p.Descriptors {
			tbl.Rows = append(tbl.Rows, []string{p.UserID, batch.KindObservation, d.Title, d.Body, d.TargetURL, sent})
		}
		if len(p.Withdrawals)+len(p.Descriptors) == 0 {
			tbl.Rows = append(tbl.Rows, []string{p.UserID, "-", "nothing new", "", "", sent})
		}
	}
	return tbl
}
