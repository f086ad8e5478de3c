// Command mnemik-backup runs the automated review-database backup service.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/mnemik/mnemik/internal/backup"
	"github.com/mnemik/mnemik/internal/config"
)

var (
	dbPath    = flag.String("db", "", "Path to database file (overrides config)")
	backupDir = flag.String("backup-dir", "", "Backup directory path (overrides config)")
	interval  = flag.Duration("interval", 0, "Backup interval (overrides config)")
	verify    = flag.Bool("verify", true, "Verify backups after creation")
	oneshot   = flag.Bool("oneshot", false, "Perform a single backup and exit")
	restore   = flag.String("restore", "", "Restore database from backup file and exit")
	listCmd   = flag.Bool("list", false, "List all available backups and exit")
)

func main() {
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if cfg.Storage.StorageEngine != "sqlite" {
		log.Fatal("mnemik-backup only supports the sqlite engine; use platform tooling for postgres")
	}

	dbPathFinal := cfg.Storage.DataPath + "/mnemik.db"
	if *dbPath != "" {
		dbPathFinal = *dbPath
	}

	backupDirFinal := cfg.Backup.BackupPath
	if *backupDir != "" {
		backupDirFinal = *backupDir
	}

	intervalFinal, _ := time.ParseDuration(cfg.Backup.BackupInterval)
	if *interval > 0 {
		intervalFinal = *interval
	}

	service, err := backup.NewService(backup.Config{
		DBPath:   dbPathFinal,
		Dir:      backupDirFinal,
		Interval: intervalFinal,
		Verify:   *verify,
		Retention: backup.RetentionPolicy{
			Hourly: cfg.Backup.BackupRetentionHourly,
			Daily:  cfg.Backup.BackupRetentionDaily,
			Weekly: cfg.Backup.BackupRetentionWeekly,
		},
	})
	if err != nil {
		log.Fatalf("Failed to create backup service: %v", err)
	}

	switch {
	case *restore != "":
		if err := service.Restore(*restore); err != nil {
			log.Fatalf("Restore failed: %v", err)
		}
		fmt.Println("Restore completed")

	case *listCmd:
		backups, err := service.List()
		if err != nil {
			log.Fatalf("Failed to list backups: %v", err)
		}
		if len(backups) == 0 {
			fmt.Println("No backups found")
			return
		}
		for _, b := range backups {
			fmt.Printf("%s  %10d bytes  %s\n",
				b.Timestamp.Format(time.RFC3339), b.Size, b.Path)
		}

	case *oneshot:
		result := service.BackupNow()
		if result.Err != nil {
			log.Fatalf("Backup failed: %v", result.Err)
		}
		fmt.Printf("Backup written: %s (%d bytes, verified=%v)\n",
			result.Path, result.Size, result.Verified)

	default:
		service.Run(context.Background())
	}
}
