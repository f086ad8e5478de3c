// Package stats computes read-side aggregates over review records and the
// review event log: the dashboard overview, upcoming schedules, and daily
// and weekly summaries.
//
// All day-bucketed arithmetic takes an explicit time.Location so the caller
// decides where the day boundary falls; the aggregator never consults the
// server's local zone on its own.
package stats

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/mnemik/mnemik/internal/sm2"
	"github.com/mnemik/mnemik/internal/storage"
	"github.com/mnemik/mnemik/pkg/types"
)

const dateLayout = "2006-01-02"

// streakHorizonDays bounds the event scan behind the dashboard overview. The
// streak reported on the overview caps at this many days; without the bound
// every overview call would read the user's full event history.
const streakHorizonDays = 365

// Overview is the dashboard summary for one user.
type Overview struct {
	DueToday          int     `json:"due_today"`
	Overdue           int     `json:"overdue"`
	CompletedToday    int     `json:"completed_today"`
	DueThisWeek       int     `json:"due_this_week"`
	AverageEaseFactor float64 `json:"average_ease_factor"`
	LearningStreak    int     `json:"learning_streak"`
	TotalItems        int     `json:"total_items"`
}

// UpcomingGroup is one calendar day's worth of scheduled records.
// Overdue items are grouped under today's date.
type UpcomingGroup struct {
	Date    string                `json:"date"`
	Records []*types.ReviewRecord `json:"records"`
}

// DailySummary describes one calendar day of review activity.
type DailySummary struct {
	Date             string  `json:"date"`
	ReviewsCompleted int     `json:"reviews_completed"`
	ReviewsDue       int     `json:"reviews_due"`
	AverageQuality   float64 `json:"average_quality"`
	NewItemsLearned  int     `json:"new_items_learned"`
}

// WeeklySummary is seven consecutive daily summaries plus week-level rollups.
type WeeklySummary struct {
	WeekStart           string         `json:"week_start"`
	Days                []DailySummary `json:"days"`
	TotalReviews        int            `json:"total_reviews"`
	DaysActive          int            `json:"days_active"`
	AverageDailyReviews float64        `json:"average_daily_reviews"`
}

// Aggregator computes statistics from a ReviewStore. It holds no state and
// is safe for concurrent use.
type Aggregator struct {
	store storage.ReviewStore
}

func NewAggregator(store storage.ReviewStore) *Aggregator {
	return &Aggregator{store: store}
}

// Overview computes the user's dashboard summary at the given instant.
func (a *Aggregator) Overview(ctx context.Context, userID string, now time.Time, loc *time.Location) (*Overview, error) {
	records, err := a.store.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("loading records: %w", err)
	}
	dayStart := startOfDay(now, loc)
	weekEnd := dayStart.AddDate(0, 0, 7)

	eventsFrom := dayStart.AddDate(0, 0, -streakHorizonDays)
	events, err := a.store.EventsBetween(ctx, userID, eventsFrom, now.Add(time.Nanosecond))
	if err != nil {
		return nil, fmt.Errorf("loading events: %w", err)
	}

	ov := &Overview{TotalItems: len(records)}
	var efSum float64
	for _, rec := range records {
		efSum += rec.EaseFactor
		c := sm2.Classify(rec, now)
		if c.Status == sm2.StatusDue {
			ov.DueToday++
			if c.DaysOverdue > 0 {
				ov.Overdue++
			}
		}
		if rec.NextReview.Before(weekEnd) {
			ov.DueThisWeek++
		}
	}
	if len(records) > 0 {
		ov.AverageEaseFactor = efSum / float64(len(records))
	}

	for _, ev := range events {
		if !ev.CreatedAt.Before(dayStart) {
			ov.CompletedToday++
		}
	}
	ov.LearningStreak = streak(events, now, loc)

	return ov, nil
}

// Upcoming groups the user's scheduled records by calendar day over the next
// `days` days. Records already due are grouped under today so a client can
// render the full queue with one call.
func (a *Aggregator) Upcoming(ctx context.Context, userID string, days int, now time.Time, loc *time.Location) ([]UpcomingGroup, error) {
	if days <= 0 {
		days = 7
	}
	records, err := a.store.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("loading records: %w", err)
	}

	today := startOfDay(now, loc)
	horizon := today.AddDate(0, 0, days)

	groups := make(map[string][]*types.ReviewRecord)
	for _, rec := range records {
		var key string
		if sm2.IsDue(rec, now) {
			key = today.Format(dateLayout)
		} else {
			day := startOfDay(rec.NextReview, loc)
			if !day.Before(horizon) {
				continue
			}
			key = day.Format(dateLayout)
		}
		groups[key] = append(groups[key], rec)
	}

	dates := make([]string, 0, len(groups))
	for d := range groups {
		dates = append(dates, d)
	}
	sort.Strings(dates)

	out := make([]UpcomingGroup, 0, len(dates))
	for _, d := range dates {
		out = append(out, UpcomingGroup{Date: d, Records: groups[d]})
	}
	return out, nil
}

// Daily summarises one calendar day. For past days, reviews_due counts items
// whose schedule still points at that day, not what was due back then.
func (a *Aggregator) Daily(ctx context.Context, userID string, date time.Time, loc *time.Location) (*DailySummary, error) {
	dayStart := startOfDay(date, loc)
	dayEnd := dayStart.AddDate(0, 0, 1)

	events, err := a.store.EventsBetween(ctx, userID, dayStart, dayEnd)
	if err != nil {
		return nil, fmt.Errorf("loading events: %w", err)
	}
	records, err := a.store.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("loading records: %w", err)
	}

	sum := &DailySummary{Date: dayStart.Format(dateLayout)}

	var qualitySum int
	for _, ev := range events {
		sum.ReviewsCompleted++
		qualitySum += int(ev.Quality)
		if ev.ReviewCount == 1 {
			sum.NewItemsLearned++
		}
	}
	if sum.ReviewsCompleted > 0 {
		sum.AverageQuality = float64(qualitySum) / float64(sum.ReviewsCompleted)
	}

	for _, rec := range records {
		if !rec.NextReview.Before(dayStart) && rec.NextReview.Before(dayEnd) {
			sum.ReviewsDue++
		}
	}

	return sum, nil
}

// Weekly summarises the seven days starting at weekStart.
func (a *Aggregator) Weekly(ctx context.Context, userID string, weekStart time.Time, loc *time.Location) (*WeeklySummary, error) {
	start := startOfDay(weekStart, loc)

	week := &WeeklySummary{
		WeekStart: start.Format(dateLayout),
		Days:      make([]DailySummary, 0, 7),
	}
	for i := 0; i < 7; i++ {
		day, err := a.Daily(ctx, userID, start.AddDate(0, 0, i), loc)
		if err != nil {
			return nil, err
		}
		week.Days = append(week.Days, *day)
		week.TotalReviews += day.ReviewsCompleted
		if day.ReviewsCompleted > 0 {
			week.DaysActive++
		}
	}
	week.AverageDailyReviews = float64(week.TotalReviews) / 7

	return week, nil
}

// streak counts the maximal run of consecutive active calendar days ending
// today or yesterday. Reviewing yesterday but not yet today keeps the streak
// alive; a full inactive day breaks it.
func streak(events []*types.ReviewEvent, now time.Time, loc *time.Location) int {
	if len(events) == 0 {
		return 0
	}
	active := make(map[string]bool, len(events))
	for _, ev := range events {
		active[startOfDay(ev.CreatedAt, loc).Format(dateLayout)] = true
	}

	day := startOfDay(now, loc)
	if !active[day.Format(dateLayout)] {
		day = day.AddDate(0, 0, -1)
	}

	n := 0
	for active[day.Format(dateLayout)] {
		n++
		day = day.AddDate(0, 0, -1)
	}
	return n
}

func startOfDay(t time.Time, loc *time.Location) time.Time {
	local := t.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
}
