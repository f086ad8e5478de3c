// Package config provides configuration for mnemik.
// Settings come from three layers, lowest precedence first: built-in
// defaults, an optional YAML file (path in MNEMIK_CONFIG), and environment
// variables with the MNEMIK_ prefix.
//
// Per-user settings (currently the timezone used for day-boundary
// statistics) are persisted to the settings table in the database under
// "timezone:<user>" keys.
package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/mnemik/mnemik/internal/storage"
)

// Config holds all configuration settings for the mnemik server.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Storage   StorageConfig   `yaml:"storage"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Security  SecurityConfig  `yaml:"security"`
	Backup    BackupConfig    `yaml:"backup"`
	Content   ContentConfig   `yaml:"content"`
}

// ServerConfig contains HTTP server configuration.
type ServerConfig struct {
	Port int    `yaml:"port"` // Server port (default: 6464)
	Host string `yaml:"host"` // Server host (default: 127.0.0.1)
}

// StorageConfig contains database configuration.
type StorageConfig struct {
	StorageEngine string `yaml:"storage_engine"` // sqlite or postgres (default: sqlite)
	DataPath      string `yaml:"data_path"`      // sqlite data directory (default: ./data)
	PostgresDSN   string `yaml:"postgres_dsn"`   // connection string when engine is postgres
}

// SchedulerConfig contains review scheduling configuration.
type SchedulerConfig struct {
	// Timezone is the IANA zone name used for day-boundary statistics when a
	// user has no persisted override (default: UTC).
	Timezone string `yaml:"timezone"`

	// DueLimit is the default page size for due lists (default: 50, max 500).
	DueLimit int `yaml:"due_limit"`

	// ReplayWindowSeconds is how long a duplicate same-quality completion is
	// treated as a client retry rather than a conflict (default: 30).
	ReplayWindowSeconds int `yaml:"replay_window_seconds"`
}

// SecurityConfig contains security and authentication settings.
type SecurityConfig struct {
	SecurityMode string `yaml:"security_mode"` // development or production (default: development)
	APIToken     string `yaml:"api_token"`     // bearer token required in production mode
}

// BackupConfig contains backup configuration for the sqlite engine.
type BackupConfig struct {
	BackupEnabled         bool   `yaml:"backup_enabled"`          // default: false
	BackupInterval        string `yaml:"backup_interval"`         // duration string (default: 24h)
	BackupPath            string `yaml:"backup_path"`             // default: ./backups
	BackupRetentionHourly int    `yaml:"backup_retention_hourly"` // default: 24
	BackupRetentionDaily  int    `yaml:"backup_retention_daily"`  // default: 7
	BackupRetentionWeekly int    `yaml:"backup_retention_weekly"` // default: 4
}

// ContentConfig configures polling of the upstream content subsystem.
type ContentConfig struct {
	SyncEnabled  bool   `yaml:"sync_enabled"`  // default: false
	ServiceURL   string `yaml:"service_url"`   // content service base URL
	SyncInterval string `yaml:"sync_interval"` // duration string (default: 5m)
}

// LoadConfig builds the configuration from defaults, the optional YAML file
// named by MNEMIK_CONFIG, and MNEMIK_* environment variables, in that order
// of precedence.
func LoadConfig() (*Config, error) {
	cfg := defaultConfig()

	if path := os.Getenv("MNEMIK_CONFIG"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: reading %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config: parsing %s: %w", path, err)
		}
	}

	applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks cross-field constraints that a typo would otherwise only
// surface at first use.
func (c *Config) Validate() error {
	switch c.Storage.StorageEngine {
	case "sqlite":
	case "postgres":
		if c.Storage.PostgresDSN == "" {
			return errors.New("config: postgres engine requires MNEMIK_POSTGRES_DSN")
		}
	default:
		return fmt.Errorf("config: unknown storage engine %q", c.Storage.StorageEngine)
	}

	if _, err := time.LoadLocation(c.Scheduler.Timezone); err != nil {
		return fmt.Errorf("config: invalid timezone %q: %w", c.Scheduler.Timezone, err)
	}
	if _, err := time.ParseDuration(c.Backup.BackupInterval); err != nil {
		return fmt.Errorf("config: invalid backup interval %q: %w", c.Backup.BackupInterval, err)
	}
	if _, err := time.ParseDuration(c.Content.SyncInterval); err != nil {
		return fmt.Errorf("config: invalid content sync interval %q: %w", c.Content.SyncInterval, err)
	}
	if c.Security.SecurityMode == "production" && c.Security.APIToken == "" {
		return errors.New("config: production mode requires MNEMIK_API_TOKEN")
	}
	return nil
}

// Location returns the server-default timezone. Call Validate first; an
// invalid name falls back to UTC here.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Scheduler.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// ReplayWindow returns the scheduler replay window as a duration.
func (c *Config) ReplayWindow() time.Duration {
	return time.Duration(c.Scheduler.ReplayWindowSeconds) * time.Second
}

// UserTimezone returns the user's persisted timezone override, falling back
// to the server default when none is stored or the stored name is invalid.
func (c *Config) UserTimezone(ctx context.Context, store storage.ReviewStore, userID string) *time.Location {
	value, err := store.GetSetting(ctx, "timezone:"+userID)
	if err != nil {
		return c.Location()
	}
	loc, err := time.LoadLocation(value)
	if err != nil {
		return c.Location()
	}
	return loc
}

// SaveUserTimezone validates and persists a user's timezone override.
func SaveUserTimezone(ctx context.Context, store storage.ReviewStore, userID, zone string) error {
	if _, err := time.LoadLocation(zone); err != nil {
		return fmt.Errorf("config: invalid timezone %q: %w", zone, err)
	}
	return store.SetSetting(ctx, "timezone:"+userID, zone)
}

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port: 6464,
			Host: "127.0.0.1",
		},
		Storage: StorageConfig{
			StorageEngine: "sqlite",
			DataPath:      "./data",
		},
		Scheduler: SchedulerConfig{
			Timezone:            "UTC",
			DueLimit:            storage.DefaultDueLimit,
			ReplayWindowSeconds: 30,
		},
		Security: SecurityConfig{
			SecurityMode: "development",
		},
		Backup: BackupConfig{
			BackupInterval:        "24h",
			BackupPath:            "./backups",
			BackupRetentionHourly: 24,
			BackupRetentionDaily:  7,
			BackupRetentionWeekly: 4,
		},
		Content: ContentConfig{
			SyncInterval: "5m",
		},
	}
}

// applyEnv overlays MNEMIK_* environment variables on cfg. The current
// value acts as the default, so unset variables leave the YAML/default
// layer untouched.
func applyEnv(cfg *Config) {
	cfg.Server.Port = getEnvInt("MNEMIK_PORT", cfg.Server.Port)
	cfg.Server.Host = getEnv("MNEMIK_HOST", cfg.Server.Host)

	cfg.Storage.StorageEngine = getEnv("MNEMIK_STORAGE_ENGINE", cfg.Storage.StorageEngine)
	cfg.Storage.DataPath = getEnv("MNEMIK_DATA_PATH", cfg.Storage.DataPath)
	cfg.Storage.PostgresDSN = getEnv("MNEMIK_POSTGRES_DSN", cfg.Storage.PostgresDSN)

	cfg.Scheduler.Timezone = getEnv("MNEMIK_TIMEZONE", cfg.Scheduler.Timezone)
	cfg.Scheduler.DueLimit = getEnvInt("MNEMIK_DUE_LIMIT", cfg.Scheduler.DueLimit)
	cfg.Scheduler.ReplayWindowSeconds = getEnvInt("MNEMIK_REPLAY_WINDOW_SECONDS", cfg.Scheduler.ReplayWindowSeconds)

	cfg.Security.SecurityMode = getEnv("MNEMIK_SECURITY_MODE", cfg.Security.SecurityMode)
	cfg.Security.APIToken = getEnv("MNEMIK_API_TOKEN", cfg.Security.APIToken)

	cfg.Backup.BackupEnabled = getEnvBool("MNEMIK_BACKUP_ENABLED", cfg.Backup.BackupEnabled)
	cfg.Backup.BackupInterval = getEnv("MNEMIK_BACKUP_INTERVAL", cfg.Backup.BackupInterval)
	cfg.Backup.BackupPath = getEnv("MNEMIK_BACKUP_PATH", cfg.Backup.BackupPath)
	cfg.Backup.BackupRetentionHourly = getEnvInt("MNEMIK_BACKUP_RETENTION_HOURLY", cfg.Backup.BackupRetentionHourly)
	cfg.Backup.BackupRetentionDaily = getEnvInt("MNEMIK_BACKUP_RETENTION_DAILY", cfg.Backup.BackupRetentionDaily)
	cfg.Backup.BackupRetentionWeekly = getEnvInt("MNEMIK_BACKUP_RETENTION_WEEKLY", cfg.Backup.BackupRetentionWeekly)

	cfg.Content.SyncEnabled = getEnvBool("MNEMIK_CONTENT_SYNC_ENABLED", cfg.Content.SyncEnabled)
	cfg.Content.ServiceURL = getEnv("MNEMIK_CONTENT_SERVICE_URL", cfg.Content.ServiceURL)
	cfg.Content.SyncInterval = getEnv("MNEMIK_CONTENT_SYNC_INTERVAL", cfg.Content.SyncInterval)
}

// getEnv retrieves a string environment variable or returns a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt retrieves an integer environment variable or returns a default
// value. Unparseable values fall back to the default.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvBool retrieves a boolean environment variable or returns a default
// value. It recognizes "true", "1", "yes" and "false", "0", "no".
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		switch value {
		case "true", "1", "yes", "True", "TRUE", "Yes", "YES":
			return true
		case "false", "0", "no", "False", "FALSE", "No", "NO":
			return false
		}
	}
	return defaultValue
}
