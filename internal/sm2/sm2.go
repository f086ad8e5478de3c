// Package sm2 implements the SM-2 spaced-repetition update algorithm and the
// due/overdue classifier. Both are pure: time is always an explicit argument,
// never an ambient clock read, so every computation is deterministic and
// testable.
package sm2

import (
	"errors"
	"math"
	"time"

	"github.com/mnemik/mnemik/pkg/types"
)

// ErrInvalidQuality is returned when a quality rating falls outside [0, 5].
// Use errors.Is to check.
var ErrInvalidQuality = errors.New("sm2: quality rating out of range [0, 5]")

// Interval ramp for the first two successful reviews. After the second
// success the interval grows multiplicatively by the updated ease factor.
const (
	firstInterval  = 1
	secondInterval = 6
)

// Update applies one completed review with the given quality rating to the
// record and returns the new record state. The input record is not mutated.
//
// The algorithm is canonical SM-2:
//
//	Δ   = 0.1 − (5 − q) × (0.08 + (5 − q) × 0.02)
//	EF' = max(1.3, EF + Δ)
//
// A lapse (q < 3) resets the interval to 1 day but still counts as a
// completed review; a success follows the 1 day → 6 days → round(I × EF')
// ramp keyed off the pre-update review count.
func Update(rec types.ReviewRecord, quality types.Quality, now time.Time) (types.ReviewRecord, error) {
	if !quality.Valid() {
		return types.ReviewRecord{}, ErrInvalidQuality
	}

	out := *rec.Clone()

	miss := float64(types.QualityPerfect - quality)
	delta := 0.1 - miss*(0.08+miss*0.02)

	ef := rec.EaseFactor + delta
	if ef < types.MinEaseFactor {
		ef = types.MinEaseFactor
	}
	out.EaseFactor = ef

	if !quality.Successful() {
		// A lapse resets the learning curve without discarding history.
		out.IntervalDays = firstInterval
	} else {
		switch rec.ReviewCount {
		case 0:
			out.IntervalDays = firstInterval
		case 1:
			out.IntervalDays = secondInterval
		default:
			out.IntervalDays = int(math.Round(float64(rec.IntervalDays) * ef))
		}
	}
	if out.IntervalDays < 1 {
		out.IntervalDays = 1
	}

	out.ReviewCount = rec.ReviewCount + 1

	reviewed := now
	out.LastReviewed = &reviewed
	out.NextReview = now.AddDate(0, 0, out.IntervalDays)
	out.UpdatedAt = now

	return out, nil
}
