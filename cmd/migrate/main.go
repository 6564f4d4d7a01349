// Command migrate manages the PostgreSQL schema for the demo store that
// backs the filtering examples: stores, branches, shrubberies, users and
// their profiles.
package main

import (
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"

	"github.com/golang-migrate/migrate/v4"
	"github.com/spf13/cobra"

	"github.com/daisylb/bridgekeeper/internal/infrastructure/config"
	"github.com/daisylb/bridgekeeper/internal/infrastructure/database"
)

// The migration files live alongside the database layer they shape.
const migrationsDir = "internal/infrastructure/database/migrations/postgres"

var envFlag string

var rootCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Manage the demo store database schema",
	Long: `Manage the PostgreSQL schema for the demo store the filtering
examples query against. Connection settings come from .env.<env> in the
project root and from the environment (see --env).`,
}

var upCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply every pending migration",
	Run: func(cmd *cobra.Command, args []string) {
		withMigrate(func(m *migrate.Migrate) {
			err := m.Up()
			switch {
			case errors.Is(err, migrate.ErrNoChange):
				log.Println("Schema already up to date")
			case err != nil:
				log.Fatalf("Migration up failed: %v", err)
			default:
				log.Println("Schema migrated up")
			}
		})
	},
}

var downCmd = &cobra.Command{
	Use:   "down [steps]",
	Short: "Roll back migrations (one by default)",
	Args:  cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		steps := 1
		if len(args) > 0 {
			n, err := strconv.Atoi(args[0])
			if err != nil || n < 1 {
				log.Fatalf("Invalid step count %q", args[0])
			}
			steps = n
		}
		withMigrate(func(m *migrate.Migrate) {
			err := m.Steps(-steps)
			switch {
			case errors.Is(err, migrate.ErrNoChange):
				log.Println("Nothing to roll back")
			case err != nil:
				log.Fatalf("Migration down failed: %v", err)
			default:
				log.Printf("Rolled back %d migration(s)", steps)
			}
		})
	},
}

var gotoCmd = &cobra.Command{
	Use:   "goto <version>",
	Short: "Migrate up or down to a specific schema version",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		version := parseVersion(args[0])
		withMigrate(func(m *migrate.Migrate) {
			err := m.Migrate(uint(version))
			switch {
			case errors.Is(err, migrate.ErrNoChange):
				log.Printf("Schema already at version %d", version)
			case err != nil:
				log.Fatalf("Migration to version %d failed: %v", version, err)
			default:
				log.Printf("Schema migrated to version %d", version)
			}
		})
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show the current schema version",
	Run: func(cmd *cobra.Command, args []string) {
		withMigrate(func(m *migrate.Migrate) {
			version, dirty, err := m.Version()
			if errors.Is(err, migrate.ErrNilVersion) {
				log.Println("No migrations applied yet")
				return
			}
			if err != nil {
				log.Fatalf("Failed to read schema version: %v", err)
			}
			if dirty {
				log.Printf("Schema version: %d (dirty, last migration did not finish)", version)
				return
			}
			log.Printf("Schema version: %d", version)
		})
	},
}

var forceCmd = &cobra.Command{
	Use:   "force <version>",
	Short: "Overwrite the recorded schema version without migrating",
	Long: `Overwrite the recorded schema version without running any
migration. Only needed to recover from a dirty state after a failed
migration.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		version := parseVersion(args[0])
		withMigrate(func(m *migrate.Migrate) {
			if err := m.Force(version); err != nil {
				log.Fatalf("Forcing version %d failed: %v", version, err)
			}
			log.Printf("Schema version forced to %d", version)
		})
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&envFlag, "env", "e", "dev", "environment to load .env.<env> for (dev, test, prod)")
	rootCmd.AddCommand(upCmd, downCmd, gotoCmd, versionCmd, forceCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatalf("Failed to execute command: %v", err)
	}
}

func parseVersion(arg string) int {
	version, err := strconv.Atoi(arg)
	if err != nil || version < 0 {
		log.Fatalf("Invalid schema version %q", arg)
	}
	return version
}

// withMigrate connects to the configured database, builds a migrate
// instance over the project's migration files and hands it to fn.
func withMigrate(fn func(m *migrate.Migrate)) {
	if err := config.InitConfig(envFlag); err != nil {
		log.Fatalf("Failed to initialize config: %v", err)
	}
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	pg, err := database.NewPostgres(&cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer pg.Close()

	log.Printf("Connected to %s@%s:%d/%s",
		cfg.Database.User, cfg.Database.Host, cfg.Database.Port, cfg.Database.Database)

	driver, err := database.NewMigrateDriver(pg.DB)
	if err != nil {
		log.Fatalf("Failed to create migration driver: %v", err)
	}

	path, err := migrationsPath()
	if err != nil {
		log.Fatalf("Failed to locate migrations: %v", err)
	}
	m, err := migrate.NewWithDatabaseInstance(fmt.Sprintf("file://%s", path), "postgres", driver)
	if err != nil {
		log.Fatalf("Failed to create migrate instance: %v", err)
	}
	defer m.Close()

	fn(m)
}

// migrationsPath finds the migration directory relative to the project
// root, so the tool works from any working directory inside the module.
func migrationsPath() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return filepath.Join(dir, migrationsDir), nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("go.mod not found in any parent directory")
		}
		dir = parent
	}
}
