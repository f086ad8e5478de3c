package backup

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Service performs periodic verified backups of the review database.
type Service struct {
	dbPath    string
	dir       string
	interval  time.Duration
	retention RetentionPolicy
	verify    bool

	mu         sync.Mutex
	lastBackup time.Time
}

// NewService creates a backup service and ensures the backup directory
// exists.
func NewService(cfg Config) (*Service, error) {
	if cfg.DBPath == "" {
		return nil, fmt.Errorf("backup: database path is required")
	}
	if cfg.Dir == "" {
		return nil, fmt.Errorf("backup: backup directory is required")
	}
	if cfg.Interval <= 0 {
		cfg.Interval = 24 * time.Hour
	}
	if cfg.Retention.Hourly == 0 {
		cfg.Retention.Hourly = 24
	}
	if cfg.Retention.Daily == 0 {
		cfg.Retention.Daily = 7
	}
	if cfg.Retention.Weekly == 0 {
		cfg.Retention.Weekly = 4
	}

	if err := os.MkdirAll(cfg.Dir, 0755); err != nil {
		return nil, fmt.Errorf("backup: creating backup directory: %w", err)
	}

	return &Service{
		dbPath:    cfg.DBPath,
		dir:       cfg.Dir,
		interval:  cfg.Interval,
		retention: cfg.Retention,
		verify:    cfg.Verify,
	}, nil
}

// Run performs backups at the configured interval until ctx is cancelled.
func (s *Service) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	log.Printf("backup: service started, interval=%v dir=%s", s.interval, s.dir)

	for {
		select {
		case <-ctx.Done():
			log.Println("backup: service stopping")
			return
		case <-ticker.C:
			result := s.BackupNow()
			if result.Err != nil {
				log.Printf("backup: scheduled backup failed: %v", result.Err)
			} else {
				log.Printf("backup: wrote %s (%d bytes, %v, verified=%v)",
					result.Path, result.Size, result.Duration, result.Verified)
			}
		}
	}
}

// BackupNow writes one timestamped backup, optionally verifies it, and
// applies the retention policy.
func (s *Service) BackupNow() *Result {
	start := time.Now()
	result := &Result{}

	if _, err := os.Stat(s.dbPath); err != nil {
		result.Err = fmt.Errorf("backup: database not found: %w", err)
		return result
	}

	// Microseconds in the name keep rapid successive backups distinct.
	name := fmt.Sprintf("mnemik-backup-%s.db", start.Format("20060102-150405.000000"))
	result.Path = filepath.Join(s.dir, name)

	if err := snapshotSQLite(s.dbPath, result.Path); err != nil {
		result.Duration = time.Since(start)
		result.Err = err
		return result
	}

	if info, err := os.Stat(result.Path); err == nil {
		result.Size = info.Size()
	}

	if s.verify {
		if err := verifySnapshot(result.Path); err != nil {
			result.Duration = time.Since(start)
			result.Err = fmt.Errorf("backup: verification failed: %w", err)
			return result
		}
		result.Verified = true
	}

	s.mu.Lock()
	s.lastBackup = time.Now()
	s.mu.Unlock()

	if err := applyRetention(s.dir, s.retention, time.Now()); err != nil {
		// Retention failure never fails the backup itself.
		log.Printf("backup: retention pruning failed: %v", err)
	}

	result.Duration = time.Since(start)
	return result
}

// List returns the backups on disk, newest first.
func (s *Service) List() ([]Info, error) {
	return listBackups(s.dir)
}

// Restore replaces the database with a verified backup. The review store
// must be closed; the previous database is snapshotted first and rolled
// back to if the restore fails.
func (s *Service) Restore(backupPath string) error {
	if _, err := os.Stat(backupPath); err != nil {
		return fmt.Errorf("backup: backup not found: %w", err)
	}

	preRestore := s.dbPath + ".pre-restore"
	if _, err := os.Stat(s.dbPath); err == nil {
		if err := snapshotSQLite(s.dbPath, preRestore); err != nil {
			return fmt.Errorf("backup: creating pre-restore snapshot: %w", err)
		}
		defer os.Remove(preRestore)
	}

	if err := restoreSnapshot(backupPath, s.dbPath); err != nil {
		if _, statErr := os.Stat(preRestore); statErr == nil {
			if rollbackErr := restoreSnapshot(preRestore, s.dbPath); rollbackErr != nil {
				return fmt.Errorf("backup: restore and rollback both failed: %v (restore error: %w)", rollbackErr, err)
			}
			return fmt.Errorf("backup: restore failed, rolled back: %w", err)
		}
		return err
	}

	log.Printf("backup: database restored from %s", backupPath)
	return nil
}
