// Package handlers provides the HTTP handlers and middleware for the mnemik
// REST API.
package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/mnemik/mnemik/internal/config"
	"github.com/mnemik/mnemik/internal/scheduler"
	"github.com/mnemik/mnemik/internal/sm2"
	"github.com/mnemik/mnemik/internal/storage"
	"github.com/mnemik/mnemik/pkg/types"
)

// ReviewHandlers contains the HTTP handlers for the review API.
type ReviewHandlers struct {
	scheduler *scheduler.Service
	store     storage.ReviewStore
	config    *config.Config
	hub       *WebSocketHub
	now       func() time.Time
}

// NewReviewHandlers creates a ReviewHandlers instance. hub may be nil when
// no websocket broadcasting is wanted (tests, embedded use).
func NewReviewHandlers(sched *scheduler.Service, store storage.ReviewStore, cfg *config.Config, hub *WebSocketHub) *ReviewHandlers {
	return &ReviewHandlers{
		scheduler: sched,
		store:     store,
		config:    cfg,
		hub:       hub,
		now:       time.Now,
	}
}

// ScheduleReview handles POST /api/reviews - schedule a content item.
// Returns 201 with the new record, or 200 with the existing record when the
// item was already scheduled.
func (h *ReviewHandlers) ScheduleReview(w http.ResponseWriter, r *http.Request) {
	userID, ok := userFromRequest(w, r)
	if !ok {
		return
	}

	var req ScheduleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	rec, created, err := h.scheduler.Schedule(r.Context(), userID, req.ContentID, req.ContentType)
	if err != nil {
		respondStorageError(w, err, "failed to schedule review")
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	respondJSON(w, status, toReviewView(rec, h.now()))
}

// ListDue handles GET /api/reviews/due - the user's due queue, most overdue
// first. Supports ?limit= (default 50, max 500).
func (h *ReviewHandlers) ListDue(w http.ResponseWriter, r *http.Request) {
	userID, ok := userFromRequest(w, r)
	if !ok {
		return
	}

	limit := parseInt(r.URL.Query().Get("limit"), h.config.Scheduler.DueLimit)
	records, err := h.scheduler.ListDue(r.Context(), userID, limit)
	if err != nil {
		respondStorageError(w, err, "failed to list due reviews")
		return
	}

	now := h.now()
	views := make([]ReviewView, 0, len(records))
	for _, rec := range records {
		views = append(views, toReviewView(rec, now))
	}
	respondJSON(w, http.StatusOK, DueListResponse{Reviews: views, Total: len(views)})
}

// GetReview handles GET /api/reviews/{id}.
func (h *ReviewHandlers) GetReview(w http.ResponseWriter, r *http.Request) {
	userID, ok := userFromRequest(w, r)
	if !ok {
		return
	}
	id := extractID(r, "id")
	if id == "" {
		respondError(w, http.StatusBadRequest, "review ID is required", nil)
		return
	}

	rec, err := h.scheduler.Get(r.Context(), userID, id)
	if err != nil {
		respondStorageError(w, err, "failed to get review")
		return
	}
	respondJSON(w, http.StatusOK, toReviewView(rec, h.now()))
}

// CompleteReview handles POST /api/reviews/{id}/complete - apply a quality
// rating and advance the schedule.
func (h *ReviewHandlers) CompleteReview(w http.ResponseWriter, r *http.Request) {
	userID, ok := userFromRequest(w, r)
	if !ok {
		return
	}
	id := extractID(r, "id")
	if id == "" {
		respondError(w, http.StatusBadRequest, "review ID is required", nil)
		return
	}

	var req CompleteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	if req.Quality == nil {
		respondError(w, http.StatusBadRequest, "quality is required", nil)
		return
	}

	rec, err := h.scheduler.CompleteReview(r.Context(), userID, id, types.Quality(*req.Quality))
	if err != nil {
		respondStorageError(w, err, "failed to complete review")
		return
	}

	if h.hub != nil {
		h.hub.Broadcast(ReviewCompletedEvent{
			Type:       "review_completed",
			RecordID:   rec.ID,
			UserID:     rec.UserID,
			Quality:    *req.Quality,
			NextReview: rec.NextReview,
		})
	}

	respondJSON(w, http.StatusOK, toReviewView(rec, h.now()))
}

// DeleteReview handles DELETE /api/reviews/{id}.
func (h *ReviewHandlers) DeleteReview(w http.ResponseWriter, r *http.Request) {
	userID, ok := userFromRequest(w, r)
	if !ok {
		return
	}
	id := extractID(r, "id")
	if id == "" {
		respondError(w, http.StatusBadRequest, "review ID is required", nil)
		return
	}

	if err := h.scheduler.Delete(r.Context(), userID, id); err != nil {
		respondStorageError(w, err, "failed to delete review")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetUserConfig handles GET /api/config/user - the user's persisted settings.
func (h *ReviewHandlers) GetUserConfig(w http.ResponseWriter, r *http.Request) {
	userID, ok := userFromRequest(w, r)
	if !ok {
		return
	}
	loc := h.config.UserTimezone(r.Context(), h.store, userID)
	respondJSON(w, http.StatusOK, UserConfigResponse{Timezone: loc.String()})
}

// PostUserConfig handles POST /api/config/user - persist user settings.
func (h *ReviewHandlers) PostUserConfig(w http.ResponseWriter, r *http.Request) {
	userID, ok := userFromRequest(w, r)
	if !ok {
		return
	}

	var req UserConfigRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	if req.Timezone == "" {
		respondError(w, http.StatusBadRequest, "timezone is required", nil)
		return
	}

	if err := config.SaveUserTimezone(r.Context(), h.store, userID, req.Timezone); err != nil {
		respondError(w, http.StatusBadRequest, "invalid timezone", err)
		return
	}
	respondJSON(w, http.StatusOK, UserConfigResponse{Timezone: req.Timezone})
}

// userFromRequest extracts the acting user from the X-User-ID header.
// Identity is asserted by the platform in front of this service; requests
// without it are rejected.
func userFromRequest(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID := r.Header.Get("X-User-ID")
	if userID == "" {
		respondError(w, http.StatusBadRequest, "X-User-ID header is required", nil)
		return "", false
	}
	return userID, true
}

// respondStorageError maps service and storage errors to HTTP status codes.
func respondStorageError(w http.ResponseWriter, err error, message string) {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		respondError(w, http.StatusNotFound, "review not found", err)
	case errors.Is(err, scheduler.ErrForbidden):
		respondError(w, http.StatusForbidden, "review belongs to another user", err)
	case errors.Is(err, storage.ErrConflict):
		respondError(w, http.StatusConflict, "review was modified concurrently", err)
	case errors.Is(err, storage.ErrInvalidInput), errors.Is(err, sm2.ErrInvalidQuality):
		respondError(w, http.StatusBadRequest, err.Error(), nil)
	default:
		respondError(w, http.StatusInternalServerError, message, err)
	}
}

// extractID extracts a path parameter from the request using Go 1.22+ path patterns.
func extractID(r *http.Request, key string) string {
	return r.PathValue(key)
}

// parseInt parses an integer from a string, returning defaultValue if parsing fails.
func parseInt(s string, defaultValue int) int {
	if s == "" {
		return defaultValue
	}
	val, err := strconv.Atoi(s)
	if err != nil {
		return defaultValue
	}
	return val
}

// respondJSON writes a JSON response with the given status code.
func respondJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		// Headers already sent; nothing to do but note it.
		fmt.Printf("failed to encode JSON response: %v\n", err)
	}
}

// respondError writes an error response with the given status code.
func respondError(w http.ResponseWriter, statusCode int, message string, err error) {
	errResp := ErrorResponse{
		Error: message,
		Code:  http.StatusText(statusCode),
	}

	if err != nil {
		errResp.Details = map[string]interface{}{
			"error": err.Error(),
		}
	}

	respondJSON(w, statusCode, errResp)
}
