// cmd/api/migrate.go

package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/imadgeboyega/tutormatch-backend/internal/common/database"
)

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the database schema",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply all pending migrations",
			RunE: func(cmd *cobra.Command, _ []string) error {
				migrator, closeDB, err := openMigrator(cmd)
				if err != nil {
					return err
				}
				defer closeDB()
				return migrator.Up(cmd.Context())
			},
		},
		&cobra.Command{
			Use:   "down",
			Short: "Roll back the most recent migration",
			RunE: func(cmd *cobra.Command, _ []string) error {
				migrator, closeDB, err := openMigrator(cmd)
				if err != nil {
					return err
				}
				defer closeDB()
				return migrator.Down(cmd.Context())
			},
		},
		&cobra.Command{
			Use:   "version",
			Short: "Print the current schema version",
			RunE: func(cmd *cobra.Command, _ []string) error {
				migrator, closeDB, err := openMigrator(cmd)
				if err != nil {
					return err
				}
				defer closeDB()

				v, err := migrator.Version(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), v)
				return nil
			},
		},
	)
	return cmd
}

func openMigrator(cmd *cobra.Command) (*database.Migrator, func(), error) {
	if cfg.StoreDriver != "postgres" {
		return nil, nil, fmt.Errorf("migrations need the postgres store driver, got %q", cfg.StoreDriver)
	}

	db, err := database.NewPostgresDBFromURL(cmd.Context(), cfg.DatabaseURL, database.DefaultPoolConfig())
	if err != nil {
		return nil, nil, fmt.Errorf("connect postgres: %w", err)
	}

	migrator, err := database.NewMigrator(db.DB, log.Named("migrate"))
	if err != nil {
		_ = db.Close()
		return nil, nil, err
	}

	return migrator, func() {
		if err := db.Close(); err != nil {
			log.Warn("close database", zap.Error(err))
		}
	}, nil
}
