package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mnemik/mnemik/internal/config"
	"github.com/mnemik/mnemik/internal/scheduler"
	"github.com/mnemik/mnemik/internal/stats"
	"github.com/mnemik/mnemik/internal/storage"
	"github.com/mnemik/mnemik/internal/storage/sqlite"
)

type testAPI struct {
	mux   *http.ServeMux
	store storage.ReviewStore
	hub   *WebSocketHub
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()

	store, err := sqlite.NewReviewStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	cfg := &config.Config{
		Scheduler: config.SchedulerConfig{
			Timezone:            "UTC",
			DueLimit:            storage.DefaultDueLimit,
			ReplayWindowSeconds: 30,
		},
		Security: config.SecurityConfig{SecurityMode: "development"},
	}

	sched := scheduler.NewService(store)
	hub := NewWebSocketHub()
	go hub.Run()
	t.Cleanup(hub.Stop)

	api := NewReviewHandlers(sched, store, cfg, hub)
	statsHandlers := NewStatsHandlers(stats.NewAggregator(store), store, cfg)
	activityHandler := NewActivityHandler(store)

	mux := http.NewServeMux()
	mux.HandleFunc("/api/reviews", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			api.ScheduleReview(w, r)
		} else {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	})
	mux.HandleFunc("/api/reviews/due", api.ListDue)
	mux.HandleFunc("/api/reviews/{id}", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			api.GetReview(w, r)
		case http.MethodDelete:
			api.DeleteReview(w, r)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	})
	mux.HandleFunc("/api/reviews/{id}/complete", api.CompleteReview)
	mux.HandleFunc("/api/stats/overview", statsHandlers.GetOverview)
	mux.HandleFunc("/api/stats/upcoming", statsHandlers.GetUpcoming)
	mux.HandleFunc("/api/stats/daily", statsHandlers.GetDaily)
	mux.HandleFunc("/api/stats/weekly", statsHandlers.GetWeekly)
	mux.HandleFunc("/api/activity", activityHandler.GetActivity)
	mux.HandleFunc("/api/config/user", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			api.GetUserConfig(w, r)
		case http.MethodPost:
			api.PostUserConfig(w, r)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	})

	return &testAPI{mux: mux, store: store, hub: hub}
}

func (a *testAPI) do(t *testing.T, method, path, userID string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if userID != "" {
		req.Header.Set("X-User-ID", userID)
	}
	w := httptest.NewRecorder()
	a.mux.ServeHTTP(w, req)
	return w
}

func decodeView(t *testing.T, w *httptest.ResponseRecorder) ReviewView {
	t.Helper()
	var view ReviewView
	require.NoError(t, json.NewDecoder(w.Body).Decode(&view))
	return view
}

func TestScheduleReviewLifecycle(t *testing.T) {
	api := newTestAPI(t)

	// Schedule a new item: 201, due immediately.
	w := api.do(t, http.MethodPost, "/api/reviews", "alice",
		ScheduleRequest{ContentID: "doc-1", ContentType: "question"})
	require.Equal(t, http.StatusCreated, w.Code)
	created := decodeView(t, w)
	assert.Equal(t, "due", string(created.Status))
	assert.Equal(t, 0, created.ReviewCount)

	// Scheduling the same item again: 200 with the existing record.
	w = api.do(t, http.MethodPost, "/api/reviews", "alice",
		ScheduleRequest{ContentID: "doc-1", ContentType: "question"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, created.ID, decodeView(t, w).ID)

	// It shows up in the due queue.
	w = api.do(t, http.MethodGet, "/api/reviews/due", "alice", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var due DueListResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&due))
	require.Equal(t, 1, due.Total)
	assert.Equal(t, created.ID, due.Reviews[0].ID)

	// Complete it.
	q := 4
	w = api.do(t, http.MethodPost, fmt.Sprintf("/api/reviews/%s/complete", created.ID), "alice",
		CompleteRequest{Quality: &q})
	require.Equal(t, http.StatusOK, w.Code)
	completed := decodeView(t, w)
	assert.Equal(t, 1, completed.ReviewCount)
	assert.Equal(t, 1, completed.IntervalDays)
	assert.Equal(t, "upcoming", string(completed.Status))

	// The queue is now empty.
	w = api.do(t, http.MethodGet, "/api/reviews/due", "alice", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.NewDecoder(w.Body).Decode(&due))
	assert.Equal(t, 0, due.Total)

	// Fetch and delete.
	w = api.do(t, http.MethodGet, "/api/reviews/"+created.ID, "alice", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = api.do(t, http.MethodDelete, "/api/reviews/"+created.ID, "alice", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = api.do(t, http.MethodGet, "/api/reviews/"+created.ID, "alice", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestScheduleReviewValidation(t *testing.T) {
	api := newTestAPI(t)

	w := api.do(t, http.MethodPost, "/api/reviews", "alice",
		ScheduleRequest{ContentID: "", ContentType: "question"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = api.do(t, http.MethodPost, "/api/reviews", "alice",
		ScheduleRequest{ContentID: "doc-1", ContentType: "essay"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// Missing user header.
	w = api.do(t, http.MethodPost, "/api/reviews", "",
		ScheduleRequest{ContentID: "doc-1", ContentType: "question"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCompleteReviewValidation(t *testing.T) {
	api := newTestAPI(t)

	w := api.do(t, http.MethodPost, "/api/reviews", "alice",
		ScheduleRequest{ContentID: "doc-1", ContentType: "question"})
	require.Equal(t, http.StatusCreated, w.Code)
	id := decodeView(t, w).ID

	// Missing quality.
	w = api.do(t, http.MethodPost, "/api/reviews/"+id+"/complete", "alice", CompleteRequest{})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// Out-of-range quality.
	q := 6
	w = api.do(t, http.MethodPost, "/api/reviews/"+id+"/complete", "alice", CompleteRequest{Quality: &q})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// Unknown record.
	q = 4
	w = api.do(t, http.MethodPost, "/api/reviews/nope/complete", "alice", CompleteRequest{Quality: &q})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCrossUserAccessIsForbidden(t *testing.T) {
	api := newTestAPI(t)

	w := api.do(t, http.MethodPost, "/api/reviews", "alice",
		ScheduleRequest{ContentID: "doc-1", ContentType: "question"})
	require.Equal(t, http.StatusCreated, w.Code)
	id := decodeView(t, w).ID

	w = api.do(t, http.MethodGet, "/api/reviews/"+id, "bob", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	q := 5
	w = api.do(t, http.MethodPost, "/api/reviews/"+id+"/complete", "bob", CompleteRequest{Quality: &q})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = api.do(t, http.MethodDelete, "/api/reviews/"+id, "bob", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	// Alice still owns an untouched record.
	w = api.do(t, http.MethodGet, "/api/reviews/"+id, "alice", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 0, decodeView(t, w).ReviewCount)
}

func TestUserConfigRoundTrip(t *testing.T) {
	api := newTestAPI(t)

	w := api.do(t, http.MethodGet, "/api/config/user", "alice", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var cfg UserConfigResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&cfg))
	assert.Equal(t, "UTC", cfg.Timezone)

	w = api.do(t, http.MethodPost, "/api/config/user", "alice",
		UserConfigRequest{Timezone: "Asia/Tokyo"})
	require.Equal(t, http.StatusOK, w.Code)

	w = api.do(t, http.MethodGet, "/api/config/user", "alice", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.NewDecoder(w.Body).Decode(&cfg))
	assert.Equal(t, "Asia/Tokyo", cfg.Timezone)

	w = api.do(t, http.MethodPost, "/api/config/user", "alice",
		UserConfigRequest{Timezone: "Not/AZone"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestStatsOverviewEndpoint(t *testing.T) {
	api := newTestAPI(t)

	w := api.do(t, http.MethodPost, "/api/reviews", "alice",
		ScheduleRequest{ContentID: "doc-1", ContentType: "question"})
	require.Equal(t, http.StatusCreated, w.Code)
	id := decodeView(t, w).ID
	w = api.do(t, http.MethodPost, "/api/reviews", "alice",
		ScheduleRequest{ContentID: "doc-2", ContentType: "knowledge_point"})
	require.Equal(t, http.StatusCreated, w.Code)

	q := 5
	w = api.do(t, http.MethodPost, "/api/reviews/"+id+"/complete", "alice", CompleteRequest{Quality: &q})
	require.Equal(t, http.StatusOK, w.Code)

	w = api.do(t, http.MethodGet, "/api/stats/overview", "alice", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var ov stats.Overview
	require.NoError(t, json.NewDecoder(w.Body).Decode(&ov))
	assert.Equal(t, 2, ov.TotalItems)
	assert.Equal(t, 1, ov.DueToday)
	assert.Equal(t, 1, ov.CompletedToday)
	assert.Equal(t, 1, ov.LearningStreak)
}

func TestActivityEndpoint(t *testing.T) {
	api := newTestAPI(t)

	w := api.do(t, http.MethodPost, "/api/reviews", "alice",
		ScheduleRequest{ContentID: "doc-1", ContentType: "question"})
	require.Equal(t, http.StatusCreated, w.Code)
	id := decodeView(t, w).ID
	q := 4
	w = api.do(t, http.MethodPost, "/api/reviews/"+id+"/complete", "alice", CompleteRequest{Quality: &q})
	require.Equal(t, http.StatusOK, w.Code)

	w = api.do(t, http.MethodGet, "/api/activity?range=1hour", "alice", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var resp ActivityResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Equal(t, "1hour", resp.Range)
	assert.Equal(t, 120, resp.BucketSec)

	total := 0
	for _, p := range resp.Points {
		total += p.Count
	}
	assert.Equal(t, 1, total)

	// Unknown range falls back to 24hour.
	w = api.do(t, http.MethodGet, "/api/activity?range=bogus", "alice", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Equal(t, "24hour", resp.Range)
}

func TestCompletionBroadcastsToWebSocketClients(t *testing.T) {
	api := newTestAPI(t)

	mock := &MockClient{SendChan: make(chan []byte, 8)}
	api.hub.Register(mock)

	w := api.do(t, http.MethodPost, "/api/reviews", "alice",
		ScheduleRequest{ContentID: "doc-1", ContentType: "question"})
	require.Equal(t, http.StatusCreated, w.Code)
	id := decodeView(t, w).ID

	q := 5
	w = api.do(t, http.MethodPost, "/api/reviews/"+id+"/complete", "alice", CompleteRequest{Quality: &q})
	require.Equal(t, http.StatusOK, w.Code)

	select {
	case msg := <-mock.SendChan:
		var ev ReviewCompletedEvent
		require.NoError(t, json.Unmarshal(msg, &ev))
		assert.Equal(t, "review_completed", ev.Type)
		assert.Equal(t, id, ev.RecordID)
		assert.Equal(t, "alice", ev.UserID)
		assert.Equal(t, 5, ev.Quality)
	case <-time.After(2 * time.Second):
		t.Fatal("expected a review_completed broadcast")
	}
}
