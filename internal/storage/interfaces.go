// Package storage defines the persistence interface for review records and
// review events, plus the sentinel errors shared by all backends.
//
// Backends live in the sqlite and postgres subpackages. Both implement
// ReviewStore; the sqlite backend is the default single-node engine, the
// postgres backend serves multi-instance deployments.
package storage

import (
	"context"
	"time"

	"github.com/mnemik/mnemik/pkg/types"
)

// ReviewStore provides persistence for review records, the append-only
// review event log, and the key/value settings table.
type ReviewStore interface {
	// Create inserts a new record. Returns ErrAlreadyExists when a record for
	// the same (user_id, content_id, content_type) pair is already present.
	Create(ctx context.Context, rec *types.ReviewRecord) error

	// GetByID retrieves a record by its ID regardless of owner; callers are
	// responsible for the ownership check. Returns ErrNotFound if absent.
	GetByID(ctx context.Context, id string) (*types.ReviewRecord, error)

	// GetByContent retrieves the record for a (user, content) pair.
	// Returns ErrNotFound if absent.
	GetByContent(ctx context.Context, userID, contentID string, contentType types.ContentType) (*types.ReviewRecord, error)

	// ListDue returns the user's records with next_review <= now, ordered
	// most-overdue first (descending days overdue, then next_review ascending,
	// then id ascending as a deterministic tiebreak), capped at limit.
	ListDue(ctx context.Context, userID string, now time.Time, limit int) ([]*types.ReviewRecord, error)

	// ListByUser returns all of the user's records, ordered by next_review
	// ascending then id ascending.
	ListByUser(ctx context.Context, userID string) ([]*types.ReviewRecord, error)

	// Update persists a mutated record using an optimistic concurrency check:
	// the write only applies when the stored version still equals rec.Version.
	// On success the record's Version is incremented in place. Returns
	// ErrConflict when the version check fails and ErrNotFound when the
	// record no longer exists.
	Update(ctx context.Context, rec *types.ReviewRecord) error

	// Delete permanently removes a record and its event history.
	// Returns ErrNotFound if the record does not exist.
	Delete(ctx context.Context, id string) error

	// AppendEvent writes one immutable review event.
	AppendEvent(ctx context.Context, ev *types.ReviewEvent) error

	// LastEventForRecord returns the most recent event for a record, or
	// ErrNotFound when the record has no events yet.
	LastEventForRecord(ctx context.Context, recordID string) (*types.ReviewEvent, error)

	// EventsBetween returns the user's events with from <= created_at < to,
	// ordered by created_at ascending. A zero from means no lower bound.
	EventsBetween(ctx context.Context, userID string, from, to time.Time) ([]*types.ReviewEvent, error)

	// GetSetting retrieves a settings value by key. Returns ErrNotFound when
	// the key has never been set.
	GetSetting(ctx context.Context, key string) (string, error)

	// SetSetting writes a settings key with upsert semantics.
	SetSetting(ctx context.Context, key, value string) error

	// Close releases any resources held by the store.
	Close() error
}
