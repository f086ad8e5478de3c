package handlers

import (
	"time"

	"github.com/mnemik/mnemik/internal/sm2"
	"github.com/mnemik/mnemik/pkg/types"
)

// ErrorResponse is the standard error response format for the API.
type ErrorResponse struct {
	Error   string                 `json:"error"`
	Code    string                 `json:"code"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// ScheduleRequest is the request body for POST /api/reviews.
type ScheduleRequest struct {
	ContentID   string            `json:"content_id"`
	ContentType types.ContentType `json:"content_type"`
}

// CompleteRequest is the request body for POST /api/reviews/{id}/complete.
// Quality is a pointer so an omitted field is distinguishable from 0.
type CompleteRequest struct {
	Quality *int `json:"quality"`
}

// ReviewView is a review record decorated with its due classification at the
// time of the request.
type ReviewView struct {
	types.ReviewRecord
	Status      sm2.Status `json:"status"`
	DaysOverdue int        `json:"days_overdue,omitempty"`
	DaysUntil   int        `json:"days_until,omitempty"`
}

// DueListResponse is the response for GET /api/reviews/due.
type DueListResponse struct {
	Reviews []ReviewView `json:"reviews"`
	Total   int          `json:"total"`
}

// UserConfigResponse is the response for GET /api/config/user.
type UserConfigResponse struct {
	Timezone string `json:"timezone"`
}

// UserConfigRequest is the request body for POST /api/config/user.
type UserConfigRequest struct {
	Timezone string `json:"timezone"`
}

// toReviewView classifies a record against now and wraps it for the API.
func toReviewView(rec *types.ReviewRecord, now time.Time) ReviewView {
	c := sm2.Classify(rec, now)
	return ReviewView{
		ReviewRecord: *rec,
		Status:       c.Status,
		DaysOverdue:  c.DaysOverdue,
		DaysUntil:    c.DaysUntil,
	}
}
