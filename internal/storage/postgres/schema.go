// Package postgres provides a PostgreSQL implementation of storage.ReviewStore.
package postgres

// Schema contains the SQL statements to create the review scheduler schema
// for PostgreSQL. All statements are idempotent.
const Schema = `
CREATE TABLE IF NOT EXISTS review_records (
    id            TEXT PRIMARY KEY,
    user_id       TEXT NOT NULL,
    content_id    TEXT NOT NULL,
    content_type  TEXT NOT NULL,
    review_count  INTEGER NOT NULL DEFAULT 0,
    ease_factor   DOUBLE PRECISION NOT NULL DEFAULT 2.5,
    interval_days INTEGER NOT NULL DEFAULT 0,
    last_reviewed TIMESTAMPTZ,
    next_review   TIMESTAMPTZ NOT NULL,
    version       BIGINT NOT NULL DEFAULT 1,
    created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_review_records_user_content
    ON review_records(user_id, content_id, content_type);

CREATE INDEX IF NOT EXISTS idx_review_records_user_next
    ON review_records(user_id, next_review);

CREATE TABLE IF NOT EXISTS review_events (
    id            TEXT PRIMARY KEY,
    record_id     TEXT NOT NULL,
    user_id       TEXT NOT NULL,
    quality       INTEGER NOT NULL,
    ease_factor   DOUBLE PRECISION NOT NULL,
    interval_days INTEGER NOT NULL,
    review_count  INTEGER NOT NULL,
    created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_review_events_record
    ON review_events(record_id, created_at);

CREATE INDEX IF NOT EXISTS idx_review_events_user_created
    ON review_events(user_id, created_at);

CREATE TABLE IF NOT EXISTS settings (
    key        TEXT PRIMARY KEY,
    value      TEXT NOT NULL,
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
`
