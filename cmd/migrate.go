package cmd

import (
	"fmt"

	"miniature_creator/databases/sqlite"

	"github.com/spf13/cobra"
)

func (c *cli) newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Bring the database schema up to date and report the bootstrap pass",
		Args:  cobra.NoArgs,
		RunE: c.run(func(cmd *cobra.Command, args []string) error {
			store, err := c.app.Store.Open(cmd.Context())
			if err != nil {
				return err
			}

			version, err := sqlite.CurrentVersion(cmd.Context(), store.DB)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			report := store.Bootstrap

			headerColor.Fprintf(out, "schema version %d of %d\n", version, sqlite.RequiredVersion())
			fmt.Fprintf(out, "descriptions backfilled: %d\n", report.DescriptionsBackfilled)
			fmt.Fprintf(out, "default collection created: %t\n", report.DefaultCollectionCreated)
			fmt.Fprintf(out, "miniatures reassigned: %d\n", report.MiniaturesReassigned)
			fmt.Fprintf(out, "miniatures renamed: %d\n", report.MiniaturesRenamed)

			return nil
		}),
	}
}
