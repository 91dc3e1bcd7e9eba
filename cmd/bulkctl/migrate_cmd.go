package main

import (
	"fmt"
	"strconv"

	"github.com/erp/bulkops/internal/infrastructure/config"
	"github.com/erp/bulkops/internal/infrastructure/logger"
	"github.com/erp/bulkops/internal/infrastructure/migration"
	"github.com/erp/bulkops/internal/infrastructure/persistence"
	"github.com/erp/bulkops/migrations"
	"github.com/spf13/cobra"
)

func newMigrateCmd(root *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply or inspect the postgres schema",
	}

	var steps int
	down := &cobra.Command{
		Use:   "down",
		Short: "Roll back migrations (all unless --steps is set)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMigrator(root, func(m *migration.Migrator) error {
				if steps > 0 {
					return m.Steps(-steps)
				}
				return m.Down()
			})
		},
	}
	down.Flags().IntVar(&steps, "steps", 0, "Number of migrations to roll back")

	var dir string
	create := &cobra.Command{
		Use:   "create NAME",
		Short: "Create an empty up/down migration pair",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mf, err := migration.CreateMigration(dir, args[0])
			if err != nil {
				return withCode(exitUsage, err)
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s\n%s\n", mf.UpPath, mf.DownPath)
			return err
		},
	}
	create.Flags().StringVar(&dir, "dir", "migrations", "Migrations directory")

	cmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply all pending migrations",
			RunE: func(cmd *cobra.Command, args []string) error {
				return withMigrator(root, func(m *migration.Migrator) error {
					return m.Up()
				})
			},
		},
		down,
		&cobra.Command{
			Use:   "version",
			Short: "Print the applied schema version",
			RunE: func(cmd *cobra.Command, args []string) error {
				return withMigrator(root, func(m *migration.Migrator) error {
					version, dirty, err := m.Version()
					if err != nil {
						return err
					}
					_, err = fmt.Fprintf(cmd.OutOrStdout(), "version=%d dirty=%t\n", version, dirty)
					return err
				})
			},
		},
		&cobra.Command{
			Use:   "force VERSION",
			Short: "Set the schema version without running migrations",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				version, err := strconv.Atoi(args[0])
				if err != nil {
					return withCode(exitUsage, fmt.Errorf("invalid version: %w", err))
				}
				return withMigrator(root, func(m *migration.Migrator) error {
					return m.Force(version)
				})
			},
		},
		create,
	)
	return cmd
}

// withMigrator opens the configured postgres database and runs fn against the
// embedded migrations.
func withMigrator(root *rootOptions, fn func(*migration.Migrator) error) error {
	cfg, err := loadConfig(root)
	if err != nil {
		return withCode(exitUsage, fmt.Errorf("load config: %w", err))
	}
	if cfg.Database.Driver != config.DriverPostgres {
		return withCode(exitUsage, fmt.Errorf("migrations target postgres; %s schemas are created automatically", cfg.Database.Driver))
	}
	log, err := newLogger(cfg)
	if err != nil {
		return withCode(exitUsage, err)
	}
	defer logger.Sync(log)

	db, err := persistence.NewDatabase(&cfg.Database, log)
	if err != nil {
		return withCode(exitStore, err)
	}
	defer func() { _ = db.Close() }()

	sqlDB, err := db.DB.DB()
	if err != nil {
		return withCode(exitStore, err)
	}
	m, err := migration.New(sqlDB, migrations.FS, log)
	if err != nil {
		return withCode(exitStore, err)
	}
	defer func() { _ = m.Close() }()

	if err := fn(m); err != nil {
		return withCode(exitStore, err)
	}
	return nil
}
