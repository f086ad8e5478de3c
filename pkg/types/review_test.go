package types

import (
	"testing"
	"time"
)

func TestNewReviewRecordDueImmediately(t *testing.T) {
	now := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	rec := NewReviewRecord("user-1", "content-1", ContentTypeQuestion, now)

	if rec.ID == "" {
		t.Fatal("expected a generated ID")
	}
	if !rec.NextReview.Equal(now) {
		t.Errorf("NextReview: got %v, want %v", rec.NextReview, now)
	}
	if rec.IntervalDays != 0 {
		t.Errorf("IntervalDays: got %d, want 0", rec.IntervalDays)
	}
	if rec.EaseFactor != InitialEaseFactor {
		t.Errorf("EaseFactor: got %v, want %v", rec.EaseFactor, InitialEaseFactor)
	}
	if rec.LastReviewed != nil {
		t.Error("LastReviewed: expected nil before first review")
	}
	if rec.Version != 1 {
		t.Errorf("Version: got %d, want 1", rec.Version)
	}
}

func TestCloneIsDeep(t *testing.T) {
	now := time.Now()
	rec := NewReviewRecord("user-1", "content-1", ContentTypeKnowledgePoint, now)
	rec.LastReviewed = &now

	clone := rec.Clone()
	later := now.Add(time.Hour)
	*clone.LastReviewed = later

	if rec.LastReviewed.Equal(later) {
		t.Error("mutating the clone's LastReviewed changed the original")
	}
}

func TestQualityValid(t *testing.T) {
	for q := QualityBlackout; q <= QualityPerfect; q++ {
		if !q.Valid() {
			t.Errorf("Quality(%d).Valid() = false, want true", q)
		}
	}
	for _, q := range []Quality{-1, 6, 100} {
		if q.Valid() {
			t.Errorf("Quality(%d).Valid() = true, want false", q)
		}
	}
}

func TestQualitySuccessful(t *testing.T) {
	cases := map[Quality]bool{
		QualityBlackout:        false,
		QualityIncorrect:       false,
		QualityIncorrectEasy:   false,
		QualityCorrectHard:     true,
		QualityCorrectHesitant: true,
		QualityPerfect:         true,
	}
	for q, want := range cases {
		if got := q.Successful(); got != want {
			t.Errorf("Quality(%d).Successful() = %v, want %v", q, got, want)
		}
	}
}

func TestContentTypeValid(t *testing.T) {
	if !ContentTypeQuestion.Valid() || !ContentTypeKnowledgePoint.Valid() {
		t.Error("known content types must be valid")
	}
	if ContentType("document").Valid() {
		t.Error("unknown content type must be invalid")
	}
}
