package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/at-ishikawa/owl/internal/database"
)

func newMigrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			db, err := database.Open(cfg.Storage)
			if err != nil {
				return fmt.Errorf("database.Open > %w", err)
			}
			defer func() {
				_ = db.Close()
			}()

			if err := database.Migrate(db); err != nil {
				return fmt.Errorf("database.Migrate > %w", err)
			}
			version, dirty, _, err := database.Version(db)
			if err != nil {
				return fmt.Errorf("database.Version > %w", err)
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s database is at version %d (dirty: %t)\n", cfg.Storage.Driver, version, dirty)
			return err
		},
	}
}
