package statestore

import (
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed migrations/*.sql
var sqlSchemas embed.FS

// MigrationTarget is a function that carries out the actual migration given
// a *migrate.Migrate handle, the database's current version, and the
// highest version known to the embedded migration set. Callers use this to
// inject pre-migration steps such as backups.
type MigrationTarget func(mig *migrate.Migrate, currentDBVersion int,
	maxMigrationVersion uint) error

type migrateOptions struct {
	// placeholder for future knobs (e.g. target a specific version
	// instead of latest); kept as a struct so new options don't change
	// the applyMigrations signature.
}

// MigrateOpt is a functional option for ExecuteMigrations.
type MigrateOpt func(*migrateOptions)

func defaultMigrateOptions() *migrateOptions {
	return &migrateOptions{}
}

var migrationFileRe = regexp.MustCompile(`^(\d+)_`)

// latestMigrationVersion scans the embedded migration directory and returns
// the highest migration version present.
func latestMigrationVersion(fs embed.FS, path string) (uint, error) {
	entries, err := fs.ReadDir(path)
	if err != nil {
		return 0, fmt.Errorf("failed to read migrations dir: %w", err)
	}

	var max uint
	for _, entry := range entries {
		matches := migrationFileRe.FindStringSubmatch(entry.Name())
		if matches == nil {
			continue
		}

		version, err := strconv.ParseUint(matches[1], 10, 64)
		if err != nil {
			continue
		}

		if uint(version) > max {
			max = uint(version)
		}
	}

	return max, nil
}

// applyMigrations wires the embedded SQL migration set to the given
// database driver, determines the current and max versions, and hands
// control to target to decide whether/how to proceed.
func applyMigrations(fs embed.FS, driver database.Driver, path, name string,
	target MigrationTarget, _ *migrateOptions, log *slog.Logger) error {

	src, err := iofs.New(fs, path)
	if err != nil {
		return fmt.Errorf("failed to create migration source: %w", err)
	}

	mig, err := migrate.NewWithInstance("iofs", src, name, driver)
	if err != nil {
		return fmt.Errorf("failed to create migration instance: %w", err)
	}

	currentVersion, dirty, err := mig.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return fmt.Errorf("failed to read migration version: %w", err)
	}
	if dirty {
		return fmt.Errorf("database is in a dirty migration state at "+
			"version %d, manual intervention required", currentVersion)
	}

	maxVersion, err := latestMigrationVersion(fs, path)
	if err != nil {
		return err
	}

	log.Debug("resolved migration versions",
		"current_version", currentVersion, "max_version", maxVersion)

	return target(mig, int(currentVersion), maxVersion)
}
