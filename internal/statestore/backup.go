package statestore

import (
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"
)

// backupSqliteDatabase makes a timestamped copy of the sqlite file next to
// the original before migrations run, so an operator can roll back a bad
// upgrade by restoring the copy.
func backupSqliteDatabase(_ *sql.DB, dbPath string, log *slog.Logger) error {
	backupPath := fmt.Sprintf("%s.%d.bak", dbPath, time.Now().Unix())

	src, err := os.Open(dbPath)
	if err != nil {
		// A missing source file means this is a brand new database;
		// nothing to back up.
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to open database for backup: %w", err)
	}
	defer src.Close()

	dst, err := os.OpenFile(backupPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("failed to create backup file: %w", err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		return fmt.Errorf("failed to copy database to backup: %w", err)
	}

	log.Info("database backup created", "backup_path", backupPath)

	return nil
}
