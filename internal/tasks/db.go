package tasks

import (
	"errors"
	"fmt"
	"io"
	"io/fs"

	"github.com/spf13/cobra"
	"github.com/suteetoe/thing-service/internal/migrations"
	"github.com/suteetoe/thing-service/internal/model"
	"github.com/suteetoe/thing-service/internal/repository"
	"github.com/suteetoe/thing-service/pkg/config"
	"github.com/suteetoe/thing-service/pkg/database"
	"go.uber.org/zap"
)

func (r *runner) dbCommands() []*cobra.Command {
	create := &cobra.Command{
		Use:   "db:create",
		Short: "Create the database from the configuration for the current environment",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			settings, err := r.databaseSettings()
			if err != nil {
				return err
			}
			return r.createDatabase(cmd.OutOrStdout(), settings)
		},
	}

	drop := &cobra.Command{
		Use:   "db:drop",
		Short: "Drop the database for the current environment",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			settings, err := r.databaseSettings()
			if err != nil {
				return err
			}
			if err := database.Drop(settings); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Dropped database '%s'\n", settings.Database)
			return nil
		},
	}

	var migrateSteps int
	migrate := &cobra.Command{
		Use:   "db:migrate",
		Short: "Migrate the database (options: --steps N to apply only N migrations)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			settings, err := r.databaseSettings()
			if err != nil {
				return err
			}
			return r.migrate(cmd.OutOrStdout(), settings, func(m *migrations.Migrator) error {
				if migrateSteps > 0 {
					return m.Steps(migrateSteps)
				}
				return m.Up()
			})
		},
	}
	migrate.Flags().IntVar(&migrateSteps, "steps", 0, "number of pending migrations to apply (default: all)")

	var rollbackSteps int
	rollback := &cobra.Command{
		Use:   "db:rollback",
		Short: "Roll the schema back to the previous version (specify steps w/ --steps N)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			settings, err := r.databaseSettings()
			if err != nil {
				return err
			}
			return r.migrate(cmd.OutOrStdout(), settings, func(m *migrations.Migrator) error {
				return m.Rollback(rollbackSteps)
			})
		},
	}
	rollback.Flags().IntVar(&rollbackSteps, "steps", 1, "number of migrations to revert")

	status := &cobra.Command{
		Use:   "db:migrate:status",
		Short: "Display status of migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			settings, err := r.databaseSettings()
			if err != nil {
				return err
			}
			return r.migrationStatus(cmd.OutOrStdout(), settings)
		},
	}

	version := &cobra.Command{
		Use:   "db:version",
		Short: "Retrieve the current schema version number",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			settings, err := r.databaseSettings()
			if err != nil {
				return err
			}
			m, err := migrations.Open(settings, r.log)
			if err != nil {
				return err
			}
			defer m.Close()

			v, dirty, err := m.Version()
			if err != nil {
				return err
			}
			if dirty {
				fmt.Fprintf(cmd.OutOrStdout(), "Current version: %d (dirty)\n", v)
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "Current version: %d\n", v)
			}
			return nil
		},
	}

	var seedFile string
	seed := &cobra.Command{
		Use:   "db:seed",
		Short: "Load the seed data from db/seeds.yml (options: --file PATH)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			settings, err := r.databaseSettings()
			if err != nil {
				return err
			}
			return r.seed(cmd, settings, seedFile)
		},
	}
	seed.Flags().StringVar(&seedFile, "file", defaultSeedsPath, "seed file to load")

	var setupSeedFile string
	setup := &cobra.Command{
		Use:   "db:setup",
		Short: "Create the database, load the schema, and initialize with the seed data",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()
			settings, err := r.databaseSettings()
			if err != nil {
				return err
			}
			if err := r.createDatabase(out, settings); err != nil {
				return err
			}
			if err := r.migrate(out, settings, func(m *migrations.Migrator) error { return m.Up() }); err != nil {
				return err
			}

			err = r.seed(cmd, settings, setupSeedFile)
			if errors.Is(err, fs.ErrNotExist) {
				fmt.Fprintf(out, "No seed file at %s, skipping\n", setupSeedFile)
				return nil
			}
			return err
		},
	}
	setup.Flags().StringVar(&setupSeedFile, "file", defaultSeedsPath, "seed file to load")

	return []*cobra.Command{create, drop, migrate, rollback, status, version, seed, setup}
}

func (r *runner) createDatabase(out io.Writer, settings *config.DatabaseSettings) error {
	created, err := database.Create(settings)
	if err != nil {
		return err
	}
	if created {
		fmt.Fprintf(out, "Created database '%s'\n", settings.Database)
	} else {
		fmt.Fprintf(out, "Database '%s' already exists\n", settings.Database)
	}
	return nil
}

// migrate runs change and reports every migration whose state it flipped
func (r *runner) migrate(out io.Writer, settings *config.DatabaseSettings, change func(*migrations.Migrator) error) error {
	m, err := migrations.Open(settings, r.log)
	if err != nil {
		return err
	}
	defer m.Close()

	before, err := m.Status()
	if err != nil {
		return err
	}
	if err := change(m); err != nil {
		return err
	}
	after, err := m.Status()
	if err != nil {
		return err
	}

	for i := range after {
		switch {
		case !before[i].Applied && after[i].Applied:
			fmt.Fprintf(out, "== %d %s: migrated\n", after[i].Version, after[i].Name)
		case before[i].Applied && !after[i].Applied:
			fmt.Fprintf(out, "== %d %s: reverted\n", after[i].Version, after[i].Name)
		}
	}

	version, _, err := m.Version()
	if err != nil {
		return err
	}
	r.log.Info("Schema migrated", zap.Uint("version", version), zap.String("database", settings.String()))
	fmt.Fprintf(out, "Schema version: %d\n", version)
	return nil
}

func (r *runner) migrationStatus(out io.Writer, settings *config.DatabaseSettings) error {
	m, err := migrations.Open(settings, r.log)
	if err != nil {
		return err
	}
	defer m.Close()

	status, err := m.Status()
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "\ndatabase: %s\n\n", settings.String())
	fmt.Fprintf(out, " %-8s %-15s %s\n", "Status", "Migration ID", "Migration Name")
	fmt.Fprintln(out, "--------------------------------------------------")
	for _, s := range status {
		state := "down"
		if s.Applied {
			state = "up"
		}
		fmt.Fprintf(out, " %-8s %-15d %s\n", state, s.Version, model.Humanize(s.Name))
	}
	fmt.Fprintln(out)
	return nil
}

func (r *runner) seed(cmd *cobra.Command, settings *config.DatabaseSettings, path string) error {
	seeds, err := LoadSeeds(path)
	if err != nil {
		return err
	}

	db, err := database.Open(settings, r.log)
	if err != nil {
		return err
	}
	defer database.Close(db)

	created, existing, err := seeds.Apply(cmd.Context(), repository.NewGormThingRepository(db, nil))
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Seeded %s (%d already present)\n", pluralize(int64(created), "thing"), existing)
	return nil
}
