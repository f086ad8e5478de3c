package content

import (
	"context"
	"log"
	"time"

	"github.com/mnemik/mnemik/internal/scheduler"
)

// Syncer polls the content service and schedules every new item for review.
// Scheduling is idempotent, so seeing the same item twice (overlapping polls,
// restarts) is harmless.
type Syncer struct {
	client    *Client
	scheduler *scheduler.Service
	interval  time.Duration
	lastSync  time.Time
}

// NewSyncer creates a Syncer polling at the given interval.
func NewSyncer(client *Client, sched *scheduler.Service, interval time.Duration) *Syncer {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &Syncer{
		client:    client,
		scheduler: sched,
		interval:  interval,
	}
}

// Run polls until the context is cancelled. Poll failures are logged and
// retried on the next tick; a single bad item never aborts the batch.
func (s *Syncer) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.SyncOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.SyncOnce(ctx)
		}
	}
}

// SyncOnce fetches items produced since the previous sync and schedules
// them. Returns the number of items scheduled.
func (s *Syncer) SyncOnce(ctx context.Context) int {
	start := time.Now()
	items, err := s.client.ItemsSince(ctx, s.lastSync)
	if err != nil {
		log.Printf("content: sync failed: %v", err)
		return 0
	}

	scheduled := 0
	for _, item := range items {
		if _, _, err := s.scheduler.Schedule(ctx, item.UserID, item.ID, item.Type); err != nil {
			log.Printf("content: scheduling item %s for user %s: %v", item.ID, item.UserID, err)
			continue
		}
		scheduled++
	}

	// Overlap the next window with this poll's start so items produced while
	// the poll ran are picked up again rather than missed.
	s.lastSync = start
	if scheduled > 0 {
		log.Printf("content: scheduled %d new items", scheduled)
	}
	return scheduled
}
