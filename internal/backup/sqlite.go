package backup

import (
	"database/sql"
	"fmt"
	"io"
	"os"

	_ "modernc.org/sqlite"
)

// snapshotSQLite writes a consistent copy of the database at sourcePath to
// destPath. VACUUM INTO produces a compacted point-in-time snapshot and
// works correctly with WAL mode, so the review store can keep writing while
// the backup runs.
func snapshotSQLite(sourcePath, destPath string) error {
	sourceDB, err := sql.Open("sqlite", fmt.Sprintf("file:%s?mode=ro", sourcePath))
	if err != nil {
		return fmt.Errorf("opening source database: %w", err)
	}
	defer func() { _ = sourceDB.Close() }()

	if err := sourceDB.Ping(); err != nil {
		return fmt.Errorf("pinging source database: %w", err)
	}

	if _, err := sourceDB.Exec(fmt.Sprintf("VACUUM INTO '%s'", destPath)); err != nil {
		return fmt.Errorf("vacuuming into backup: %w", err)
	}
	return nil
}

// verifySnapshot opens a backup read-only and runs sqlite's integrity check.
func verifySnapshot(path string) error {
	db, err := sql.Open("sqlite", fmt.Sprintf("file:%s?mode=ro", path))
	if err != nil {
		return fmt.Errorf("opening backup: %w", err)
	}
	defer func() { _ = db.Close() }()

	var result string
	if err := db.QueryRow("PRAGMA integrity_check").Scan(&result); err != nil {
		return fmt.Errorf("running integrity check: %w", err)
	}
	if result != "ok" {
		return fmt.Errorf("integrity check failed: %s", result)
	}
	return nil
}

// restoreSnapshot copies a verified backup over the database at targetPath.
// The review store must be closed before calling this.
func restoreSnapshot(backupPath, targetPath string) error {
	if err := verifySnapshot(backupPath); err != nil {
		return fmt.Errorf("backup verification failed: %w", err)
	}

	src, err := os.Open(backupPath)
	if err != nil {
		return fmt.Errorf("opening backup: %w", err)
	}
	defer func() { _ = src.Close() }()

	dst, err := os.Create(targetPath)
	if err != nil {
		return fmt.Errorf("creating target file: %w", err)
	}
	defer func() { _ = dst.Close() }()

	if _, err := io.Copy(dst, src); err != nil {
		return fmt.Errorf("copying backup: %w", err)
	}
	if err := dst.Sync(); err != nil {
		return fmt.Errorf("syncing target file: %w", err)
	}

	if err := verifySnapshot(targetPath); err != nil {
		return fmt.Errorf("restored database verification failed: %w", err)
	}
	return nil
}
