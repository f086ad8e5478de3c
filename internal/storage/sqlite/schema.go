package sqlite

// Schema is the embedded SQLite schema for the review scheduler. Every
// statement is idempotent (IF NOT EXISTS) so opening an existing database
// is safe.
const Schema = `
CREATE TABLE IF NOT EXISTS review_records (
	id            TEXT PRIMARY KEY,
	user_id       TEXT NOT NULL,
	content_id    TEXT NOT NULL,
	content_type  TEXT NOT NULL,
	review_count  INTEGER NOT NULL DEFAULT 0,
	ease_factor   REAL NOT NULL DEFAULT 2.5,
	interval_days INTEGER NOT NULL DEFAULT 0,
	last_reviewed TIMESTAMP,
	next_review   TIMESTAMP NOT NULL,
	version       INTEGER NOT NULL DEFAULT 1,
	created_at    TIMESTAMP NOT NULL,
	updated_at    TIMESTAMP NOT NULL
);

-- One record per (user, content) pair; creation is idempotent on this index.
CREATE UNIQUE INDEX IF NOT EXISTS idx_review_records_user_content
	ON review_records(user_id, content_id, content_type);

-- Due-set queries filter on user and next_review.
CREATE INDEX IF NOT EXISTS idx_review_records_user_next
	ON review_records(user_id, next_review);

CREATE TABLE IF NOT EXISTS review_events (
	id            TEXT PRIMARY KEY,
	record_id     TEXT NOT NULL,
	user_id       TEXT NOT NULL,
	quality       INTEGER NOT NULL,
	ease_factor   REAL NOT NULL,
	interval_days INTEGER NOT NULL,
	review_count  INTEGER NOT NULL,
	created_at    TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_review_events_record
	ON review_events(record_id, created_at);

CREATE INDEX IF NOT EXISTS idx_review_events_user_created
	ON review_events(user_id, created_at);

CREATE TABLE IF NOT EXISTS settings (
	key        TEXT PRIMARY KEY,
	value      TEXT NOT NULL,
	updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`
