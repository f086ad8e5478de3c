// Command mnemik-server runs the spaced-repetition review scheduler service.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mnemik/mnemik/internal/backup"
	"github.com/mnemik/mnemik/internal/config"
	"github.com/mnemik/mnemik/internal/content"
	"github.com/mnemik/mnemik/internal/scheduler"
	"github.com/mnemik/mnemik/internal/server"
	"github.com/mnemik/mnemik/internal/storage"
	"github.com/mnemik/mnemik/internal/storage/postgres"
	"github.com/mnemik/mnemik/internal/storage/sqlite"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	store, dbPath, err := openStore(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize storage: %v", err)
	}
	defer store.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	addr, _, err := server.Start(ctx, cfg, store)
	if err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
	log.Printf("mnemik review API listening at http://%s", addr)

	// Content sync: schedule items the content subsystem produces.
	if cfg.Content.SyncEnabled {
		if cfg.Content.ServiceURL == "" {
			log.Fatal("MNEMIK_CONTENT_SERVICE_URL is required when content sync is enabled")
		}
		interval, _ := time.ParseDuration(cfg.Content.SyncInterval)
		sched := scheduler.NewServiceWithConfig(store, scheduler.Config{
			ReplayWindow: cfg.ReplayWindow(),
		})
		syncer := content.NewSyncer(content.NewClient(cfg.Content.ServiceURL), sched, interval)
		go syncer.Run(ctx)
		log.Printf("Content sync enabled: %s every %v", cfg.Content.ServiceURL, interval)
	}

	// Automatic backups (sqlite only; postgres backups belong to the platform).
	if cfg.Backup.BackupEnabled {
		if dbPath == "" {
			log.Println("Backups are only supported for the sqlite engine, skipping")
		} else {
			interval, _ := time.ParseDuration(cfg.Backup.BackupInterval)
			backupSvc, err := backup.NewService(backup.Config{
				DBPath:   dbPath,
				Dir:      cfg.Backup.BackupPath,
				Interval: interval,
				Verify:   true,
				Retention: backup.RetentionPolicy{
					Hourly: cfg.Backup.BackupRetentionHourly,
					Daily:  cfg.Backup.BackupRetentionDaily,
					Weekly: cfg.Backup.BackupRetentionWeekly,
				},
			})
			if err != nil {
				log.Fatalf("Failed to create backup service: %v", err)
			}
			go backupSvc.Run(ctx)
		}
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	log.Println("Shutting down gracefully...")
	cancel()
	time.Sleep(1 * time.Second) // Give time for connections to close
}

// openStore opens the configured storage backend. The second return value is
// the sqlite database file path, empty for postgres.
func openStore(cfg *config.Config) (storage.ReviewStore, string, error) {
	switch cfg.Storage.StorageEngine {
	case "postgres":
		store, err := postgres.NewReviewStore(cfg.Storage.PostgresDSN)
		return store, "", err
	default:
		if err := os.MkdirAll(cfg.Storage.DataPath, 0755); err != nil {
			return nil, "", err
		}
		dbPath := cfg.Storage.DataPath + "/mnemik.db"
		store, err := sqlite.NewReviewStore(dbPath)
		return store, dbPath, err
	}
}
