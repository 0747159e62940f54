package database

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	migratedb "github.com/golang-migrate/migrate/v4/database"
	migratemysql "github.com/golang-migrate/migrate/v4/database/mysql"
	migratepg "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
)

// MigrationsDir maps a driver name to its directory under migrations/.
func MigrationsDir(driver string) (string, error) {
	switch driver {
	case "postgres":
		return "postgresql", nil
	case "mysql":
		return "mysql", nil
	}
	return "", fmt.Errorf("unsupported database driver: %s", driver)
}

// MigrateUp applies the pending migrations in dir and returns the resulting
// schema version. db is left open: closing the migrate instance would close it.
func MigrateUp(db *sql.DB, driver, dir string) (uint, error) {
	var (
		instance migratedb.Driver
		err      error
	)
	switch driver {
	case "postgres":
		instance, err = migratepg.WithInstance(db, &migratepg.Config{})
	case "mysql":
		instance, err = migratemysql.WithInstance(db, &migratemysql.Config{})
	default:
		return 0, fmt.Errorf("unsupported database driver: %s", driver)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to create migration driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance("file://"+dir, driver, instance)
	if err != nil {
		return 0, fmt.Errorf("failed to create migrate instance: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return 0, fmt.Errorf("failed to run migrations: %w", err)
	}

	version, dirty, err := m.Version()
	if err != nil {
		return 0, fmt.Errorf("failed to read schema version: %w", err)
	}
	if dirty {
		return version, fmt.Errorf("schema version %d is dirty", version)
	}
	return version, nil
}
