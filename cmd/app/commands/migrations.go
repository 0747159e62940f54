package commands

import (
	"database/sql"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/allisson/tenantkeys/internal/database"
)

// RunMigrations applies every pending migration under migrationsRoot for
// driver. A schema that is already current is not an error.
func RunMigrations(logger *slog.Logger, db *sql.DB, driver, migrationsRoot string) error {
	dir, err := database.MigrationsDir(driver)
	if err != nil {
		return err
	}
	path := filepath.Join(migrationsRoot, dir)

	logger.Info("running database migrations", slog.String("driver", driver), slog.String("path", path))

	version, err := database.MigrateUp(db, driver, path)
	if err != nil {
		return fmt.Errorf("migrate %s: %w", driver, err)
	}

	logger.Info("database schema is current", slog.Uint64("version", uint64(version)))
	return nil
}
