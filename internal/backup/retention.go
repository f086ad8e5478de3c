package backup

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// listBackups returns the backup files in dir, newest first.
func listBackups(dir string) ([]Info, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("backup: reading backup directory: %w", err)
	}

	var backups []Info
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".db") {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		backups = append(backups, Info{
			Path:      filepath.Join(dir, entry.Name()),
			Timestamp: info.ModTime(),
			Size:      info.Size(),
		})
	}

	sort.Slice(backups, func(i, j int) bool {
		return backups[i].Timestamp.After(backups[j].Timestamp)
	})
	return backups, nil
}

// applyRetention prunes backups beyond the per-tier limits. Each backup
// lands in exactly one tier by age: under 24h hourly, under 7 days daily,
// under 30 days weekly. Older backups are always removed.
func applyRetention(dir string, policy RetentionPolicy, now time.Time) error {
	backups, err := listBackups(dir)
	if err != nil {
		return err
	}
	if len(backups) == 0 {
		return nil
	}

	var hourly, daily, weekly []Info
	var toDelete []string

	for _, b := range backups {
		age := now.Sub(b.Timestamp)
		switch {
		case age < 24*time.Hour:
			hourly = append(hourly, b)
		case age < 7*24*time.Hour:
			daily = append(daily, b)
		case age < 30*24*time.Hour:
			weekly = append(weekly, b)
		default:
			toDelete = append(toDelete, b.Path)
		}
	}

	// Within each tier backups are newest-first; keep the head, drop the rest.
	for _, tier := range []struct {
		backups []Info
		keep    int
	}{
		{hourly, policy.Hourly},
		{daily, policy.Daily},
		{weekly, policy.Weekly},
	} {
		if len(tier.backups) > tier.keep {
			for _, b := range tier.backups[tier.keep:] {
				toDelete = append(toDelete, b.Path)
			}
		}
	}

	var lastErr error
	for _, path := range toDelete {
		if err := os.Remove(path); err != nil {
			lastErr = err
		}
	}
	if lastErr != nil {
		return fmt.Errorf("backup: deleting expired backups: %w", lastErr)
	}
	return nil
}
