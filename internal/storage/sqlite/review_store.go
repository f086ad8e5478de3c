// Package sqlite implements storage.ReviewStore on SQLite via the CGO-free
// modernc.org/sqlite driver.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/mnemik/mnemik/internal/storage"
	"github.com/mnemik/mnemik/pkg/types"
)

// ReviewStore implements storage.ReviewStore using SQLite.
type ReviewStore struct {
	db *sql.DB
}

// NewReviewStore opens (or creates) a SQLite database at dsn, configures WAL
// mode, and applies the embedded schema. Use ":memory:" for tests.
func NewReviewStore(dsn string) (*ReviewStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite: failed to open database: %w", err)
	}

	// SQLite only supports one concurrent writer. A single open connection
	// serialises writes and avoids SQLITE_BUSY errors under concurrent load;
	// WAL mode lets readers proceed without blocking the writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("sqlite: %q failed: %w", pragma, err)
		}
	}

	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: failed to create schema: %w", err)
	}

	return &ReviewStore{db: db}, nil
}

// GetDB exposes the underlying connection for maintenance tooling (backups).
func (s *ReviewStore) GetDB() *sql.DB {
	return s.db
}

// Close closes the underlying database connection.
func (s *ReviewStore) Close() error {
	return s.db.Close()
}

const recordColumns = `id, user_id, content_id, content_type, review_count,
	ease_factor, interval_days, last_reviewed, next_review, version,
	created_at, updated_at`

// Create inserts a new review record. The unique index on
// (user_id, content_id, content_type) enforces one record per pair.
func (s *ReviewStore) Create(ctx context.Context, rec *types.ReviewRecord) error {
	if rec == nil || rec.ID == "" || rec.UserID == "" || rec.ContentID == "" {
		return fmt.Errorf("%w: record id, user id and content id are required", storage.ErrInvalidInput)
	}
	if !rec.ContentType.Valid() {
		return fmt.Errorf("%w: unknown content type %q", storage.ErrInvalidInput, rec.ContentType)
	}

	query := `
		INSERT INTO review_records (` + recordColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id, content_id, content_type) DO NOTHING
	`

	res, err := s.db.ExecContext(ctx, query,
		rec.ID,
		rec.UserID,
		rec.ContentID,
		string(rec.ContentType),
		rec.ReviewCount,
		rec.EaseFactor,
		rec.IntervalDays,
		nullableTime(rec.LastReviewed),
		rec.NextReview,
		rec.Version,
		rec.CreatedAt,
		rec.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: failed to create review record: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: failed to read rows affected: %w", err)
	}
	if rows == 0 {
		return storage.ErrAlreadyExists
	}

	return nil
}

// GetByID retrieves a record by its ID.
func (s *ReviewStore) GetByID(ctx context.Context, id string) (*types.ReviewRecord, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: record ID is required", storage.ErrInvalidInput)
	}

	row := s.db.QueryRowContext(ctx,
		`SELECT `+recordColumns+` FROM review_records WHERE id = ?`, id)
	return scanRecord(row)
}

// GetByContent retrieves the record for a (user, content) pair.
func (s *ReviewStore) GetByContent(ctx context.Context, userID, contentID string, contentType types.ContentType) (*types.ReviewRecord, error) {
	if userID == "" || contentID == "" {
		return nil, fmt.Errorf("%w: user ID and content ID are required", storage.ErrInvalidInput)
	}

	row := s.db.QueryRowContext(ctx,
		`SELECT `+recordColumns+` FROM review_records
		 WHERE user_id = ? AND content_id = ? AND content_type = ?`,
		userID, contentID, string(contentType))
	return scanRecord(row)
}

// ListDue returns due records ordered most-overdue first. Ordering by
// next_review ascending produces the same total order as descending whole
// days overdue refined by next_review ascending, because days overdue is a
// monotone function of next_review at a fixed reference time.
func (s *ReviewStore) ListDue(ctx context.Context, userID string, now time.Time, limit int) ([]*types.ReviewRecord, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: user ID is required", storage.ErrInvalidInput)
	}
	limit = storage.ClampDueLimit(limit)

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+recordColumns+` FROM review_records
		 WHERE user_id = ? AND next_review <= ?
		 ORDER BY next_review ASC, id ASC
		 LIMIT ?`,
		userID, now, limit)
	if err != nil {
		return nil, fmt.Errorf("sqlite: failed to list due records: %w", err)
	}
	defer rows.Close()

	return collectRecords(rows)
}

// ListByUser returns all of the user's records.
func (s *ReviewStore) ListByUser(ctx context.Context, userID string) ([]*types.ReviewRecord, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: user ID is required", storage.ErrInvalidInput)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+recordColumns+` FROM review_records
		 WHERE user_id = ?
		 ORDER BY next_review ASC, id ASC`,
		userID)
	if err != nil {
		return nil, fmt.Errorf("sqlite: failed to list records: %w", err)
	}
	defer rows.Close()

	return collectRecords(rows)
}

// Update applies an optimistic write: it only succeeds when the stored
// version still matches rec.Version, and bumps the version on success.
func (s *ReviewStore) Update(ctx context.Context, rec *types.ReviewRecord) error {
	if rec == nil || rec.ID == "" {
		return fmt.Errorf("%w: record ID is required", storage.ErrInvalidInput)
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE review_records SET
			review_count = ?,
			ease_factor = ?,
			interval_days = ?,
			last_reviewed = ?,
			next_review = ?,
			version = version + 1,
			updated_at = ?
		WHERE id = ? AND version = ?`,
		rec.ReviewCount,
		rec.EaseFactor,
		rec.IntervalDays,
		nullableTime(rec.LastReviewed),
		rec.NextReview,
		rec.UpdatedAt,
		rec.ID,
		rec.Version,
	)
	if err != nil {
		return fmt.Errorf("sqlite: failed to update review record: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: failed to read rows affected: %w", err)
	}
	if rows == 0 {
		// Distinguish a vanished record from a concurrent writer.
		var exists int
		err := s.db.QueryRowContext(ctx,
			`SELECT 1 FROM review_records WHERE id = ?`, rec.ID).Scan(&exists)
		if errors.Is(err, sql.ErrNoRows) {
			return storage.ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("sqlite: failed to check record existence: %w", err)
		}
		return storage.ErrConflict
	}

	rec.Version++
	return nil
}

// Delete permanently removes a record and its events.
func (s *ReviewStore) Delete(ctx context.Context, id string) error {
	if id == "" {
		return fmt.Errorf("%w: record ID is required", storage.ErrInvalidInput)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `DELETE FROM review_records WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("sqlite: failed to delete review record: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: failed to read rows affected: %w", err)
	}
	if rows == 0 {
		return storage.ErrNotFound
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM review_events WHERE record_id = ?`, id); err != nil {
		return fmt.Errorf("sqlite: failed to delete review events: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: failed to commit delete: %w", err)
	}
	return nil
}

// AppendEvent writes one immutable review event.
func (s *ReviewStore) AppendEvent(ctx context.Context, ev *types.ReviewEvent) error {
	if ev == nil || ev.ID == "" || ev.RecordID == "" {
		return fmt.Errorf("%w: event id and record id are required", storage.ErrInvalidInput)
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO review_events
			(id, record_id, user_id, quality, ease_factor, interval_days, review_count, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		ev.ID,
		ev.RecordID,
		ev.UserID,
		int(ev.Quality),
		ev.EaseFactor,
		ev.IntervalDays,
		ev.ReviewCount,
		ev.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: failed to append review event: %w", err)
	}
	return nil
}

// LastEventForRecord returns the most recent event for a record.
func (s *ReviewStore) LastEventForRecord(ctx context.Context, recordID string) (*types.ReviewEvent, error) {
	if recordID == "" {
		return nil, fmt.Errorf("%w: record ID is required", storage.ErrInvalidInput)
	}

	row := s.db.QueryRowContext(ctx, `
		SELECT id, record_id, user_id, quality, ease_factor, interval_days, review_count, created_at
		FROM review_events
		WHERE record_id = ?
		ORDER BY created_at DESC, review_count DESC
		LIMIT 1`, recordID)
	return scanEvent(row)
}

// EventsBetween returns the user's events within [from, to).
func (s *ReviewStore) EventsBetween(ctx context.Context, userID string, from, to time.Time) ([]*types.ReviewEvent, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: user ID is required", storage.ErrInvalidInput)
	}

	query := `
		SELECT id, record_id, user_id, quality, ease_factor, interval_days, review_count, created_at
		FROM review_events
		WHERE user_id = ? AND created_at < ?`
	args := []interface{}{userID, to}
	if !from.IsZero() {
		query += ` AND created_at >= ?`
		args = append(args, from)
	}
	query += ` ORDER BY created_at ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: failed to list review events: %w", err)
	}
	defer rows.Close()

	var events []*types.ReviewEvent
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: failed to iterate review events: %w", err)
	}
	return events, nil
}

// GetSetting retrieves a settings value by key.
func (s *ReviewStore) GetSetting(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM settings WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", storage.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("sqlite: failed to get setting %q: %w", key, err)
	}
	return value, nil
}

// SetSetting writes a settings key with upsert semantics.
func (s *ReviewStore) SetSetting(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO settings (key, value)
		VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET
			value = excluded.value,
			updated_at = CURRENT_TIMESTAMP`,
		key, value)
	if err != nil {
		return fmt.Errorf("sqlite: failed to set setting %q: %w", key, err)
	}
	return nil
}

// scanner abstracts *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanRecord(row scanner) (*types.ReviewRecord, error) {
	var rec types.ReviewRecord
	var contentType string
	var lastReviewed sql.NullTime

	err := row.Scan(
		&rec.ID,
		&rec.UserID,
		&rec.ContentID,
		&contentType,
		&rec.ReviewCount,
		&rec.EaseFactor,
		&rec.IntervalDays,
		&lastReviewed,
		&rec.NextReview,
		&rec.Version,
		&rec.CreatedAt,
		&rec.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: failed to scan review record: %w", err)
	}

	rec.ContentType = types.ContentType(contentType)
	if lastReviewed.Valid {
		t := lastReviewed.Time
		rec.LastReviewed = &t
	}
	return &rec, nil
}

func scanEvent(row scanner) (*types.ReviewEvent, error) {
	var ev types.ReviewEvent
	var quality int

	err := row.Scan(
		&ev.ID,
		&ev.RecordID,
		&ev.UserID,
		&quality,
		&ev.EaseFactor,
		&ev.IntervalDays,
		&ev.ReviewCount,
		&ev.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: failed to scan review event: %w", err)
	}

	ev.Quality = types.Quality(quality)
	return &ev, nil
}

func collectRecords(rows *sql.Rows) ([]*types.ReviewRecord, error) {
	var records []*types.ReviewRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: failed to iterate review records: %w", err)
	}
	return records, nil
}

func nullableTime(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return *t
}
