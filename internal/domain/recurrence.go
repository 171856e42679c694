package domain

import "time"

// RecurrenceRule is the cadence at which a completed recurring task spawns
// a new instance.
type RecurrenceRule string

// Supported recurrence rules
const (
	RecurrenceDaily   RecurrenceRule = "daily"
	RecurrenceWeekly  RecurrenceRule = "weekly"
	RecurrenceMonthly RecurrenceRule = "monthly"
)

// ParseRecurrenceRule maps a stored rule string to its cadence. Matching is
// exact; unrecognized values, including other spellings such as "Weekly",
// fall back to daily rather than failing.
func ParseRecurrenceRule(s string) RecurrenceRule {
	switch RecurrenceRule(s) {
	case RecurrenceWeekly:
		return RecurrenceWeekly
	case RecurrenceMonthly:
		return RecurrenceMonthly
	default:
		return RecurrenceDaily
	}
}

// NextDue returns the due date of the next instance spawned at now.
// Monthly advances one calendar month with time.AddDate normalization
// (Jan 31 + 1 month lands in early March).
func (r RecurrenceRule) NextDue(now time.Time) time.Time {
	switch r {
	case RecurrenceWeekly:
		return now.Add(7 * 24 * time.Hour)
	case RecurrenceMonthly:
		return now.AddDate(0, 1, 0)
	default:
		return now.Add(24 * time.Hour)
	}
}
