package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ariefcatur/go-agro-market/internal/postgres"
)

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the database schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			db, err := postgres.Connect(ctx, cfg.PostgresDSN)
			if err != nil {
				return fmt.Errorf("db connect: %w", err)
			}
			defer db.Close()

			if err := postgres.Migrate(ctx, db); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "schema applied")
			return nil
		},
	}
}
