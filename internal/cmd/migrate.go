package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dukerupert/authd/internal/database"
)

func newMigrateCmd(load loader) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending schema migrations and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := load()
			if err != nil {
				return err
			}

			// Opening the database applies migrations.
			db, err := openDB(cfg)
			if err != nil {
				return err
			}
			defer db.Close()

			v, err := database.Version(cmd.Context(), db)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "schema at version %d\n", v)
			return nil
		},
	}
}
