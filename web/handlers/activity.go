package handlers

import (
	"net/http"
	"time"

	"github.com/mnemik/mnemik/internal/storage"
)

// ActivityHandler handles the /api/activity endpoint.
type ActivityHandler struct {
	store storage.ReviewStore
	now   func() time.Time
}

// NewActivityHandler creates a new ActivityHandler.
func NewActivityHandler(store storage.ReviewStore) *ActivityHandler {
	return &ActivityHandler{
		store: store,
		now:   time.Now,
	}
}

// ActivityPoint represents a single data point in the activity time series.
type ActivityPoint struct {
	Time  string `json:"time"`  // ISO-8601 timestamp (bucket start)
	Count int    `json:"count"` // Number of reviews completed in this bucket
}

// ActivityResponse is the JSON response for GET /api/activity.
type ActivityResponse struct {
	Points    []ActivityPoint `json:"points"`
	Range     string          `json:"range"`
	BucketSec int             `json:"bucket_sec"`
}

// GetActivity handles GET /api/activity?range={5min|1hour|24hour|week}
// It returns a time series of review completion counts bucketed by an
// appropriate interval for the requested range. Counts come from the event
// log, so they are identical across storage backends.
func (h *ActivityHandler) GetActivity(w http.ResponseWriter, r *http.Request) {
	userID, ok := userFromRequest(w, r)
	if !ok {
		return
	}

	rangeParam := r.URL.Query().Get("range")

	var windowDur time.Duration
	var bucketSec int
	switch rangeParam {
	case "5min":
		windowDur = 5 * time.Minute
		bucketSec = 10 // 10-second buckets → 30 points
	case "1hour":
		windowDur = time.Hour
		bucketSec = 120 // 2-minute buckets → 30 points
	case "week":
		windowDur = 7 * 24 * time.Hour
		bucketSec = 4 * 3600 // 4-hour buckets → 42 points
	default: // "24hour"
		rangeParam = "24hour"
		windowDur = 24 * time.Hour
		bucketSec = 3600 // 1-hour buckets → 24 points
	}

	now := h.now().UTC()
	since := now.Add(-windowDur)

	events, err := h.store.EventsBetween(r.Context(), userID, since, now.Add(time.Nanosecond))
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to query activity", err)
		return
	}

	// bucket = (epoch_seconds / bucketSec) * bucketSec
	counts := make(map[int64]int)
	for _, ev := range events {
		bucket := (ev.CreatedAt.Unix() / int64(bucketSec)) * int64(bucketSec)
		counts[bucket]++
	}

	points := generateBuckets(since, now, bucketSec, counts)

	respondJSON(w, http.StatusOK, ActivityResponse{
		Points:    points,
		Range:     rangeParam,
		BucketSec: bucketSec,
	})
}

// generateBuckets creates a complete slice of ActivityPoints for every bucket
// between since and now, filling in zero counts for buckets with no data.
func generateBuckets(since, now time.Time, bucketSec int, counts map[int64]int) []ActivityPoint {
	// Align since to bucket boundary.
	startEpoch := (since.Unix() / int64(bucketSec)) * int64(bucketSec)

	var points []ActivityPoint
	for t := startEpoch; t <= now.Unix(); t += int64(bucketSec) {
		points = append(points, ActivityPoint{
			Time:  time.Unix(t, 0).UTC().Format(time.RFC3339),
			Count: counts[t],
		})
	}
	return points
}
