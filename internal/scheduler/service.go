// Package scheduler orchestrates the review lifecycle: idempotent scheduling
// of content items, ordered due lists, the atomic complete-review write path,
// and record deletion. It owns the ownership checks and the duplicate-
// submission replay window; the SM-2 arithmetic itself lives in the sm2
// package.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/mnemik/mnemik/internal/sm2"
	"github.com/mnemik/mnemik/internal/storage"
	"github.com/mnemik/mnemik/pkg/types"
)

// ErrForbidden is returned when a caller acts on another user's record.
// It is distinct from storage.ErrNotFound so handlers can map it to 403.
var ErrForbidden = errors.New("scheduler: record belongs to another user")

// DefaultReplayWindow is how long after a completion an identical
// resubmission (same record, same quality) is treated as a client retry and
// answered with the current state instead of a conflict.
const DefaultReplayWindow = 30 * time.Second

// Config tunes a Service. Zero values produce defaults.
type Config struct {
	// ReplayWindow overrides DefaultReplayWindow when positive.
	ReplayWindow time.Duration

	// Now overrides the clock; nil means time.Now. Tests inject a fixed
	// clock here so scheduling arithmetic is deterministic.
	Now func() time.Time
}

// Service implements the scheduler operations over a ReviewStore.
// It is stateless between requests: all coordination happens through the
// store's per-record version check.
type Service struct {
	store        storage.ReviewStore
	now          func() time.Time
	replayWindow time.Duration
}

// NewService creates a Service with default configuration.
func NewService(store storage.ReviewStore) *Service {
	return NewServiceWithConfig(store, Config{})
}

// NewServiceWithConfig creates a Service with the given configuration.
func NewServiceWithConfig(store storage.ReviewStore, cfg Config) *Service {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	window := cfg.ReplayWindow
	if window <= 0 {
		window = DefaultReplayWindow
	}
	return &Service{
		store:        store,
		now:          now,
		replayWindow: window,
	}
}

// Schedule creates a review record for a content item, due immediately.
// Scheduling is idempotent: if the (user, content) pair is already scheduled
// the existing record is returned unchanged with created=false and no error.
func (s *Service) Schedule(ctx context.Context, userID, contentID string, contentType types.ContentType) (*types.ReviewRecord, bool, error) {
	if userID == "" || contentID == "" {
		return nil, false, fmt.Errorf("%w: user ID and content ID are required", storage.ErrInvalidInput)
	}
	if !contentType.Valid() {
		return nil, false, fmt.Errorf("%w: unknown content type %q", storage.ErrInvalidInput, contentType)
	}

	existing, err := s.store.GetByContent(ctx, userID, contentID, contentType)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return nil, false, err
	}

	rec := types.NewReviewRecord(userID, contentID, contentType, s.now())
	err = s.store.Create(ctx, rec)
	if errors.Is(err, storage.ErrAlreadyExists) {
		// Lost a creation race; the winner's record is the canonical one.
		existing, err = s.store.GetByContent(ctx, userID, contentID, contentType)
		return existing, false, err
	}
	if err != nil {
		return nil, false, err
	}
	return rec, true, nil
}

// ListDue returns the user's due records ordered most-overdue first, capped
// at limit (default 50, max 500). The ordering is deterministic so repeated
// calls without intervening writes page stably through a review session.
func (s *Service) ListDue(ctx context.Context, userID string, limit int) ([]*types.ReviewRecord, error) {
	return s.store.ListDue(ctx, userID, s.now(), limit)
}

// Get returns one record after verifying ownership.
func (s *Service) Get(ctx context.Context, userID, recordID string) (*types.ReviewRecord, error) {
	rec, err := s.store.GetByID(ctx, recordID)
	if err != nil {
		return nil, err
	}
	if rec.UserID != userID {
		return nil, ErrForbidden
	}
	return rec, nil
}

// CompleteReview applies one quality rating to a record: it validates the
// rating, runs the SM-2 update, persists the new state with an optimistic
// version check, and appends the immutable review event.
//
// Two concurrent completions for the same record cannot both apply. The
// loser of the version race re-reads the record; if the winning completion
// happened within the replay window and carried the same quality, the call
// is treated as a client retry and returns the current state. Anything else
// fails with storage.ErrConflict rather than silently advancing twice.
func (s *Service) CompleteReview(ctx context.Context, userID, recordID string, quality types.Quality) (*types.ReviewRecord, error) {
	if !quality.Valid() {
		return nil, sm2.ErrInvalidQuality
	}

	rec, err := s.Get(ctx, userID, recordID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	updated, err := sm2.Update(*rec, quality, now)
	if err != nil {
		return nil, err
	}

	if err := s.store.Update(ctx, &updated); err != nil {
		if errors.Is(err, storage.ErrConflict) {
			return s.resolveConflict(ctx, userID, recordID, quality, now)
		}
		return nil, err
	}

	ev := types.NewReviewEvent(&updated, quality, now)
	if err := s.store.AppendEvent(ctx, ev); err != nil {
		// The record state has already advanced; surface the failure rather
		// than retry so the caller knows the event log may lag.
		return nil, fmt.Errorf("review applied but event log write failed: %w", err)
	}

	return &updated, nil
}

// resolveConflict decides whether a lost completion race is a harmless
// client retry. Ambiguous cases fail safe with ErrConflict.
func (s *Service) resolveConflict(ctx context.Context, userID, recordID string, quality types.Quality, now time.Time) (*types.ReviewRecord, error) {
	current, err := s.Get(ctx, userID, recordID)
	if err != nil {
		return nil, err
	}

	last, err := s.store.LastEventForRecord(ctx, recordID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, storage.ErrConflict
		}
		return nil, err
	}

	if last.Quality == quality && now.Sub(last.CreatedAt) <= s.replayWindow {
		log.Printf("scheduler: duplicate completion for record %s within replay window, returning current state", recordID)
		return current, nil
	}
	return nil, storage.ErrConflict
}

// Delete permanently removes a record and its event history after verifying
// ownership. Deleted records disappear from all due and statistics views.
func (s *Service) Delete(ctx context.Context, userID, recordID string) error {
	if _, err := s.Get(ctx, userID, recordID); err != nil {
		return err
	}
	return s.store.Delete(ctx, recordID)
}
