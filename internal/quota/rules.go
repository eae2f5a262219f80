// Package quota maintains the per-user daily usage counter with atomic
// consume and refund operations and day-rollover reset.
package quota

import (
	"errors"
	"time"
)

// ErrLimitExceeded is returned by Consume when the user has exhausted
// their daily budget. No usage is recorded in that case.
var ErrLimitExceeded = errors.New("user limit exceeded")

// record holds the quota fields of a user profile as seen inside a
// ledger transaction. LastUsageDate is a UTC day key (YYYY-MM-DD), empty
// when no usage was ever recorded.
type record struct {
	DailyLimit    int
	UsedToday     int
	LastUsageDate string
}

// dayKey returns the UTC calendar-day key for t.
func dayKey(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

// effectiveUsed returns the counter value that is valid for today. A
// stored counter from a previous day is logically zero regardless of the
// stored integer.
func effectiveUsed(rec record, today string) int {
	if rec.LastUsageDate != today {
		return 0
	}
	return rec.UsedToday
}

// applyConsume computes the record state after consuming one unit for
// today. A DailyLimit of 0 means unlimited. Returns ErrLimitExceeded
// without mutation when the budget is exhausted.
func applyConsume(rec record, today string) (record, error) {
	used := effectiveUsed(rec, today)

	if rec.DailyLimit > 0 && used >= rec.DailyLimit {
		return rec, ErrLimitExceeded
	}

	rec.UsedToday = used + 1
	rec.LastUsageDate = today
	return rec, nil
}

// applyRefund computes the record state after refunding one unit. A
// refund never restores a prior day's counter and never drives the
// counter negative; the second return value reports whether anything
// changed.
func applyRefund(rec record, today string) (record, bool) {
	if rec.LastUsageDate != today {
		return rec, false
	}
	if rec.UsedToday <= 0 {
		return rec, false
	}

	rec.UsedToday--
	return rec, true
}
