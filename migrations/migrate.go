// Package migrations holds the PostgreSQL schema and applies it with
// golang-migrate. The SQL files are embedded so the binary does not depend on
// the working directory.
package migrations

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"log/slog"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/lib/pq"
)

//go:embed *.sql
var files embed.FS

// withMigrate opens dbURL and runs fn against a migrate instance backed by the
// embedded SQL files.
func withMigrate(dbURL string, fn func(m *migrate.Migrate) error) error {
	db, err := sql.Open("postgres", dbURL)
	if err != nil {
		return fmt.Errorf("opening database connection: %w", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("creating migrate driver: %w", err)
	}

	src, err := iofs.New(files, ".")
	if err != nil {
		return fmt.Errorf("opening embedded migrations: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, "postgres", driver)
	if err != nil {
		return fmt.Errorf("creating migrate instance: %w", err)
	}
	return fn(m)
}

// Apply brings the schema up to the latest version. An up-to-date database is
// not an error.
func Apply(log *slog.Logger, dbURL string) error {
	return withMigrate(dbURL, func(m *migrate.Migrate) error {
		version, dirty, err := m.Version()
		if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
			return fmt.Errorf("checking migration version: %w", err)
		}
		if dirty {
			return fmt.Errorf("database is in a dirty state (version %d). Manual intervention required", version)
		}

		if err := m.Up(); err != nil {
			if errors.Is(err, migrate.ErrNoChange) {
				log.Info("database is up to date", "version", version)
				return nil
			}
			return fmt.Errorf("applying migrations: %w", err)
		}

		newVersion, _, _ := m.Version()
		if newVersion != version {
			log.Info("database migrated", "from", version, "to", newVersion)
		}
		return nil
	})
}

// Steps migrates n steps up (n > 0) or down (n < 0). Zero means all the way
// in the given direction.
func Steps(dbURL string, up bool, n int) error {
	return withMigrate(dbURL, func(m *migrate.Migrate) error {
		var err error
		switch {
		case n > 0 && up:
			err = m.Steps(n)
		case n > 0:
			err = m.Steps(-n)
		case up:
			err = m.Up()
		default:
			err = m.Down()
		}
		if errors.Is(err, migrate.ErrNoChange) {
			return nil
		}
		return err
	})
}

// Version returns the current migration version. A database with no
// migrations applied reports version 0.
func Version(dbURL string) (uint, bool, error) {
	var (
		version uint
		dirty   bool
	)
	err := withMigrate(dbURL, func(m *migrate.Migrate) error {
		var err error
		version, dirty, err = m.Version()
		if errors.Is(err, migrate.ErrNilVersion) {
			return nil
		}
		return err
	})
	return version, dirty, err
}

// Force sets the migration version without running any migration, clearing
// the dirty flag.
func Force(dbURL string, version int) error {
	return withMigrate(dbURL, func(m *migrate.Migrate) error {
		return m.Force(version)
	})
}
