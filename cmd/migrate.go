package cmd

import (
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/spf13/cobra"
)

// defaultMigrationsPath is relative to the working directory.
const defaultMigrationsPath = "file://migrations"

func migrateCommand() *cobra.Command {
	var path string

	cmd := &cobra.Command{
		Use:       "migrate <up|down>",
		Short:     "Apply or roll back database migrations",
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{"up", "down"},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			m, err := migrate.New(path, cfg.Database.URL())
			if err != nil {
				return fmt.Errorf("create migrate instance: %w", err)
			}
			defer func() { _, _ = m.Close() }()

			applied, err := runMigration(m, args[0])
			if err != nil {
				return fmt.Errorf("migration %s failed: %w", args[0], err)
			}

			out := cmd.OutOrStdout()
			if !applied {
				_, err = fmt.Fprintln(out, "No migrations to apply")
				return err
			}
			_, err = fmt.Fprintf(out, "Migration %s completed successfully\n", args[0])
			return err
		},
	}

	cmd.Flags().StringVar(&path, "path", defaultMigrationsPath, "migrations source URL")
	return cmd
}

// runMigration reports false when there was nothing to apply.
func runMigration(m *migrate.Migrate, direction string) (bool, error) {
	var err error
	switch direction {
	case "up":
		err = m.Up()
	case "down":
		err = m.Down()
	default:
		return false, fmt.Errorf("invalid direction %q", direction)
	}

	if errors.Is(err, migrate.ErrNoChange) {
		return false, nil
	}
	return err == nil, err
}
