// Package types defines the core domain types for the mnemik review
// scheduler. A ReviewRecord tracks the spaced-repetition state of one
// content item for one user; a ReviewEvent is the immutable log entry
// written each time a review is completed.
package types

import (
	"time"

	"github.com/google/uuid"
)

// ContentType identifies the kind of reviewable item a record points at.
// The scheduler treats content as an opaque reference and never reads the
// content body.
type ContentType string

const (
	// ContentTypeQuestion is a generated question to be answered from recall.
	ContentTypeQuestion ContentType = "question"

	// ContentTypeKnowledgePoint is an extracted knowledge point to be recalled.
	ContentTypeKnowledgePoint ContentType = "knowledge_point"
)

// Valid reports whether the content type is one of the known values.
func (c ContentType) Valid() bool {
	return c == ContentTypeQuestion || c == ContentTypeKnowledgePoint
}

// Quality is a 0-5 self-assessment of recall difficulty submitted when a
// review is completed. Values 3 and above count as a successful recall.
type Quality int

const (
	// QualityBlackout: complete blackout, unable to recall.
	QualityBlackout Quality = iota
	// QualityIncorrect: incorrect, but remembered once the answer was shown.
	QualityIncorrect
	// QualityIncorrectEasy: incorrect, but the answer felt easy on disclosure.
	QualityIncorrectEasy
	// QualityCorrectHard: correct, with serious difficulty.
	QualityCorrectHard
	// QualityCorrectHesitant: correct, after hesitation.
	QualityCorrectHesitant
	// QualityPerfect: perfect recall.
	QualityPerfect
)

// Valid reports whether the quality value is within [0, 5].
func (q Quality) Valid() bool {
	return q >= QualityBlackout && q <= QualityPerfect
}

// Successful reports whether the quality counts as a successful recall
// (quality >= 3). Anything below is a lapse.
func (q Quality) Successful() bool {
	return q >= QualityCorrectHard
}

// Spaced-repetition defaults for freshly created records.
const (
	// InitialEaseFactor is the ease factor assigned at record creation.
	InitialEaseFactor = 2.5

	// MinEaseFactor is the floor the ease factor can never drop below.
	MinEaseFactor = 1.3
)

// ReviewRecord is the spaced-repetition state for one (user, content) pair.
// There is exactly one record per pair; it is created the first time the item
// is scheduled and mutated only by the scheduler's complete-review operation.
type ReviewRecord struct {
	ID          string      `json:"id"`
	UserID      string      `json:"user_id"`
	ContentID   string      `json:"content_id"`
	ContentType ContentType `json:"content_type"`

	// ReviewCount is incremented on every completed review, lapses included.
	ReviewCount int `json:"review_count"`

	// EaseFactor is the multiplicative interval growth rate; never below 1.3.
	EaseFactor float64 `json:"ease_factor"`

	// IntervalDays is the number of days until the item is due again.
	// Zero until the first review (a new record is due immediately).
	IntervalDays int `json:"interval_days"`

	// LastReviewed is nil until the first review is completed.
	LastReviewed *time.Time `json:"last_reviewed,omitempty"`

	// NextReview is always set; at creation it equals CreatedAt.
	NextReview time.Time `json:"next_review"`

	// Version is bumped on every persisted mutation and backs the optimistic
	// concurrency check in the store.
	Version int64 `json:"version"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewReviewRecord creates a record for a content item scheduled at now.
// The record is due immediately: NextReview == CreatedAt, IntervalDays == 0.
func NewReviewRecord(userID, contentID string, contentType ContentType, now time.Time) *ReviewRecord {
	return &ReviewRecord{
		ID:           uuid.NewString(),
		UserID:       userID,
		ContentID:    contentID,
		ContentType:  contentType,
		ReviewCount:  0,
		EaseFactor:   InitialEaseFactor,
		IntervalDays: 0,
		NextReview:   now,
		Version:      1,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// Clone returns a deep copy of the record. The SM-2 update engine operates on
// copies so callers keep an unmodified view of the prior state.
func (r *ReviewRecord) Clone() *ReviewRecord {
	out := *r
	if r.LastReviewed != nil {
		t := *r.LastReviewed
		out.LastReviewed = &t
	}
	return &out
}

// ReviewEvent is an immutable log entry for one completed review. Events feed
// the statistics aggregator (average quality, streaks, daily summaries) and
// the scheduler's duplicate-submission replay window.
type ReviewEvent struct {
	ID       string `json:"id"`
	RecordID string `json:"record_id"`
	UserID   string `json:"user_id"`

	// Quality is the rating submitted for this completion.
	Quality Quality `json:"quality"`

	// EaseFactor, IntervalDays and ReviewCount capture the record state that
	// resulted from applying this review.
	EaseFactor   float64 `json:"ease_factor"`
	IntervalDays int     `json:"interval_days"`
	ReviewCount  int     `json:"review_count"`

	CreatedAt time.Time `json:"created_at"`
}

// NewReviewEvent builds the event corresponding to an updated record.
func NewReviewEvent(rec *ReviewRecord, quality Quality, now time.Time) *ReviewEvent {
	return &ReviewEvent{
		ID:           uuid.NewString(),
		RecordID:     rec.ID,
		UserID:       rec.UserID,
		Quality:      quality,
		EaseFactor:   rec.EaseFactor,
		IntervalDays: rec.IntervalDays,
		ReviewCount:  rec.ReviewCount,
		CreatedAt:    now,
	}
}
