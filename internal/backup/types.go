// Package backup provides automated, verified backups of the sqlite review
// database with tiered retention. Backups use VACUUM INTO, so they are
// consistent point-in-time snapshots even under WAL mode with a live writer.
//
// Postgres deployments do not use this package; backups there belong to the
// platform (pg_dump, WAL archiving).
package backup

import "time"

// Config configures a Service.
type Config struct {
	// DBPath is the path to the sqlite database file to back up.
	DBPath string

	// Dir is the directory backups are written to. Created if missing.
	Dir string

	// Interval between automatic backups. Defaults to 24h.
	Interval time.Duration

	// Verify runs an integrity check on every backup after writing it.
	Verify bool

	// Retention controls how many backups each age tier keeps.
	Retention RetentionPolicy
}

// RetentionPolicy sets per-tier backup counts. Backups younger than 24h
// compete for the Hourly slots, younger than 7 days for Daily, younger than
// 30 days for Weekly. Anything older is deleted.
type RetentionPolicy struct {
	Hourly int // default 24
	Daily  int // default 7
	Weekly int // default 4
}

// Result describes one completed (or failed) backup run.
type Result struct {
	Path     string
	Size     int64
	Duration time.Duration
	Verified bool
	Err      error
}

// Info describes one backup file on disk.
type Info struct {
	Path      string
	Timestamp time.Time
	Size      int64
}
