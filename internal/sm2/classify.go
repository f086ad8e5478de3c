package sm2

import (
	"math"
	"time"

	"github.com/mnemik/mnemik/pkg/types"
)

// Status is the due-set membership of a record at a reference time.
type Status string

const (
	// StatusDue means the scheduled review time has passed (next_review <= now).
	StatusDue Status = "due"

	// StatusUpcoming means the record is not yet due.
	StatusUpcoming Status = "upcoming"
)

// Classification is the result of classifying one record against a reference
// time. DaysOverdue is populated for due records (0 means due today, not yet
// overdue in the stricter reminder-severity sense); DaysUntil for upcoming.
type Classification struct {
	Status      Status `json:"status"`
	DaysOverdue int    `json:"days_overdue,omitempty"`
	DaysUntil   int    `json:"days_until,omitempty"`
}

// Classify decides due-set membership for a record at the given time.
// A record is due when next_review <= now. Day arithmetic uses 24-hour
// periods: days overdue floors, days until ceils.
func Classify(rec *types.ReviewRecord, now time.Time) Classification {
	if !rec.NextReview.After(now) {
		overdue := int(now.Sub(rec.NextReview).Hours() / 24)
		if overdue < 0 {
			overdue = 0
		}
		return Classification{Status: StatusDue, DaysOverdue: overdue}
	}

	until := int(math.Ceil(rec.NextReview.Sub(now).Hours() / 24))
	return Classification{Status: StatusUpcoming, DaysUntil: until}
}

// IsDue reports whether the record's scheduled review time has passed.
func IsDue(rec *types.ReviewRecord, now time.Time) bool {
	return !rec.NextReview.After(now)
}
