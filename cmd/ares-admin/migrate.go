package main

import (
	"context"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/VihangaMunasinghe/ares-sub001/internal/bootstrap"
	"github.com/VihangaMunasinghe/ares-sub001/internal/migrate"
)

const defaultMigrationTimeout = 5 * time.Minute

func newMigrateCmd(cmdCtx *commandContext) *cobra.Command {
	var timeout time.Duration
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			db, _, err := connectInfra(&connectInfraOptions{Logger: cmdCtx.Logger, Config: &cmdCtx.Config})
			if err != nil {
				return err
			}
			defer closeInfra(db, nil) //nolint:errcheck // best effort on exit

			if err := bootstrap.RunMigrations(ctx, db, cmdCtx.Logger); err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
			return err
		},
	}
	cmd.Flags().DurationVar(&timeout, "timeout", defaultMigrationTimeout, "Maximum time to spend applying migrations")

	status := &cobra.Command{
		Use:   "status",
		Short: "List embedded migrations and whether they have been applied",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			db, _, err := connectInfra(&connectInfraOptions{Logger: cmdCtx.Logger, Config: &cmdCtx.Config})
			if err != nil {
				return err
			}
			defer closeInfra(db, nil) //nolint:errcheck // best effort on exit

			migrations, err := migrate.Status(cmd.Context(), db)
			if err != nil {
				return fmt.Errorf("migration status: %w", err)
			}
			return printMigrations(cmd, migrations)
		},
	}
	cmd.AddCommand(status)
	return cmd
}

func printMigrations(cmd *cobra.Command, migrations []migrate.Migration) error {
	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	if _, err := fmt.Fprintln(tw, "VERSION\tAPPLIED"); err != nil {
		return err
	}
	for _, m := range migrations {
		if _, err := fmt.Fprintf(tw, "%s\t%t\n", m.Version, m.Applied); err != nil {
			return err
		}
	}
	return tw.Flush()
}
