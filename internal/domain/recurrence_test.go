package domain

import (
	"testing"
	"time"
)

func TestParseRecurrenceRule(t *testing.T) {
	t.Parallel()
	tests := map[string]RecurrenceRule{
		"daily":     RecurrenceDaily,
		"weekly":    RecurrenceWeekly,
		"monthly":   RecurrenceMonthly,
		"Weekly":    RecurrenceDaily,
		" monthly ": RecurrenceDaily,
		"":          RecurrenceDaily,
		"yearly":    RecurrenceDaily,
		"every-2d":  RecurrenceDaily,
	}
	for in, want := range tests {
		if got := ParseRecurrenceRule(in); got != want {
			t.Errorf("ParseRecurrenceRule(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestRecurrenceNextDue(t *testing.T) {
	t.Parallel()
	run := time.Date(2024, 1, 8, 0, 0, 0, 0, time.UTC)

	if got, want := RecurrenceWeekly.NextDue(run), time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC); !got.Equal(want) {
		t.Errorf("weekly: got %v, want %v", got, want)
	}
	if got, want := RecurrenceDaily.NextDue(run), time.Date(2024, 1, 9, 0, 0, 0, 0, time.UTC); !got.Equal(want) {
		t.Errorf("daily: got %v, want %v", got, want)
	}
	if got, want := RecurrenceMonthly.NextDue(run), time.Date(2024, 2, 8, 0, 0, 0, 0, time.UTC); !got.Equal(want) {
		t.Errorf("monthly: got %v, want %v", got, want)
	}

	// Calendar month normalization: Jan 31 + 1 month = Mar 2 in a leap year.
	endOfJan := time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC)
	if got, want := RecurrenceMonthly.NextDue(endOfJan), time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC); !got.Equal(want) {
		t.Errorf("monthly end of month: got %v, want %v", got, want)
	}
}
