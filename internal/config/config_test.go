package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mnemik/mnemik/internal/storage/sqlite"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, 6464, cfg.Server.Port)
	assert.Equal(t, "127.0.0.1", cfg.Server.Host)
	assert.Equal(t, "sqlite", cfg.Storage.StorageEngine)
	assert.Equal(t, "UTC", cfg.Scheduler.Timezone)
	assert.Equal(t, 50, cfg.Scheduler.DueLimit)
	assert.Equal(t, 30*time.Second, cfg.ReplayWindow())
	assert.Equal(t, "development", cfg.Security.SecurityMode)
	assert.False(t, cfg.Backup.BackupEnabled)
	assert.Equal(t, time.UTC, cfg.Location())
}

func TestLoadConfigEnvOverrides(t *testing.T) {
	t.Setenv("MNEMIK_PORT", "9090")
	t.Setenv("MNEMIK_TIMEZONE", "Asia/Tokyo")
	t.Setenv("MNEMIK_BACKUP_ENABLED", "true")
	t.Setenv("MNEMIK_DUE_LIMIT", "not-a-number")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "Asia/Tokyo", cfg.Scheduler.Timezone)
	assert.True(t, cfg.Backup.BackupEnabled)
	assert.Equal(t, 50, cfg.Scheduler.DueLimit, "unparseable int keeps the default")
}

func TestLoadConfigYAMLFileAndPrecedence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mnemik.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  port: 7001
scheduler:
  timezone: Europe/Berlin
  due_limit: 100
`), 0o644))

	t.Setenv("MNEMIK_CONFIG", path)
	t.Setenv("MNEMIK_PORT", "7002")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, 7002, cfg.Server.Port, "env overrides file")
	assert.Equal(t, "Europe/Berlin", cfg.Scheduler.Timezone, "file overrides default")
	assert.Equal(t, 100, cfg.Scheduler.DueLimit)
	assert.Equal(t, "127.0.0.1", cfg.Server.Host, "untouched default survives")
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unknown engine", func(c *Config) { c.Storage.StorageEngine = "oracle" }},
		{"postgres without dsn", func(c *Config) { c.Storage.StorageEngine = "postgres" }},
		{"bad timezone", func(c *Config) { c.Scheduler.Timezone = "Mars/Olympus" }},
		{"bad backup interval", func(c *Config) { c.Backup.BackupInterval = "daily" }},
		{"production without token", func(c *Config) { c.Security.SecurityMode = "production" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := defaultConfig()
			tc.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestUserTimezoneOverride(t *testing.T) {
	store, err := sqlite.NewReviewStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	ctx := context.Background()
	cfg := defaultConfig()

	assert.Equal(t, time.UTC, cfg.UserTimezone(ctx, store, "alice"), "no override yet")

	require.NoError(t, SaveUserTimezone(ctx, store, "alice", "Asia/Tokyo"))
	loc := cfg.UserTimezone(ctx, store, "alice")
	assert.Equal(t, "Asia/Tokyo", loc.String())

	assert.Error(t, SaveUserTimezone(ctx, store, "alice", "Not/AZone"))
}
