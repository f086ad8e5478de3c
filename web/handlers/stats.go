package handlers

import (
	"net/http"
	"time"

	"github.com/mnemik/mnemik/internal/config"
	"github.com/mnemik/mnemik/internal/stats"
	"github.com/mnemik/mnemik/internal/storage"
)

// StatsHandlers serves the statistics endpoints. Day boundaries follow the
// user's persisted timezone, falling back to the server default.
type StatsHandlers struct {
	aggregator *stats.Aggregator
	store      storage.ReviewStore
	config     *config.Config
	now        func() time.Time
}

// NewStatsHandlers creates a StatsHandlers instance.
func NewStatsHandlers(agg *stats.Aggregator, store storage.ReviewStore, cfg *config.Config) *StatsHandlers {
	return &StatsHandlers{
		aggregator: agg,
		store:      store,
		config:     cfg,
		now:        time.Now,
	}
}

// GetOverview handles GET /api/stats/overview.
func (h *StatsHandlers) GetOverview(w http.ResponseWriter, r *http.Request) {
	userID, ok := userFromRequest(w, r)
	if !ok {
		return
	}
	loc := h.config.UserTimezone(r.Context(), h.store, userID)

	overview, err := h.aggregator.Overview(r.Context(), userID, h.now(), loc)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to compute overview", err)
		return
	}
	respondJSON(w, http.StatusOK, overview)
}

// GetUpcoming handles GET /api/stats/upcoming?days=N (default 7).
func (h *StatsHandlers) GetUpcoming(w http.ResponseWriter, r *http.Request) {
	userID, ok := userFromRequest(w, r)
	if !ok {
		return
	}
	loc := h.config.UserTimezone(r.Context(), h.store, userID)
	days := parseInt(r.URL.Query().Get("days"), 7)

	groups, err := h.aggregator.Upcoming(r.Context(), userID, days, h.now(), loc)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to compute upcoming schedule", err)
		return
	}
	respondJSON(w, http.StatusOK, groups)
}

// GetDaily handles GET /api/stats/daily?date=YYYY-MM-DD (default today).
func (h *StatsHandlers) GetDaily(w http.ResponseWriter, r *http.Request) {
	userID, ok := userFromRequest(w, r)
	if !ok {
		return
	}
	loc := h.config.UserTimezone(r.Context(), h.store, userID)

	date := h.now().In(loc)
	if s := r.URL.Query().Get("date"); s != "" {
		parsed, err := time.ParseInLocation("2006-01-02", s, loc)
		if err != nil {
			respondError(w, http.StatusBadRequest, "invalid date, expected YYYY-MM-DD", err)
			return
		}
		date = parsed
	}

	summary, err := h.aggregator.Daily(r.Context(), userID, date, loc)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to compute daily summary", err)
		return
	}
	respondJSON(w, http.StatusOK, summary)
}

// GetWeekly handles GET /api/stats/weekly?start=YYYY-MM-DD. Without a start
// parameter it reports the trailing seven days ending today.
func (h *StatsHandlers) GetWeekly(w http.ResponseWriter, r *http.Request) {
	userID, ok := userFromRequest(w, r)
	if !ok {
		return
	}
	loc := h.config.UserTimezone(r.Context(), h.store, userID)

	start := h.now().In(loc).AddDate(0, 0, -6)
	if s := r.URL.Query().Get("start"); s != "" {
		parsed, err := time.ParseInLocation("2006-01-02", s, loc)
		if err != nil {
			respondError(w, http.StatusBadRequest, "invalid start, expected YYYY-MM-DD", err)
			return
		}
		start = parsed
	}

	summary, err := h.aggregator.Weekly(r.Context(), userID, start, loc)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to compute weekly summary", err)
		return
	}
	respondJSON(w, http.StatusOK, summary)
}
