package reminder

import (
	"fmt"
	"time"
)

// Recurrence is the repeat rule of a reminder.
type Recurrence string

const (
	RecurrenceNone    Recurrence = "none"
	RecurrenceDaily   Recurrence = "daily"
	RecurrenceWeekly  Recurrence = "weekly"
	RecurrenceMonthly Recurrence = "monthly"
)

// ParseRecurrence accepts the known rules. An empty string means none.
func ParseRecurrence(s string) (Recurrence, error) {
	switch r := Recurrence(s); r {
	case "":
		return RecurrenceNone, nil
	case RecurrenceNone, RecurrenceDaily, RecurrenceWeekly, RecurrenceMonthly:
		return r, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownRecurrence, s)
}

// Next returns the occurrence following t.
//
// Monthly recurrence keeps the day of month, clamped to the last day of a
// shorter month: Jan 31 is followed by Feb 28 (or 29).
func (r Recurrence) Next(t time.Time) (time.Time, error) {
	switch r {
	case RecurrenceDaily:
		return t.AddDate(0, 0, 1), nil
	case RecurrenceWeekly:
		return t.AddDate(0, 0, 7), nil
	case RecurrenceMonthly:
		return addMonth(t), nil
	case RecurrenceNone, "":
		return time.Time{}, fmt.Errorf("%w: %q does not repeat", ErrUnknownRecurrence, r)
	}
	return time.Time{}, fmt.Errorf("%w: %q", ErrUnknownRecurrence, r)
}

func addMonth(t time.Time) time.Time {
	year, month, day := t.Date()
	hour, minute, sec := t.Clock()

	first := time.Date(year, month+1, 1, hour, minute, sec, t.Nanosecond(), t.Location())
	last := first.AddDate(0, 1, -1).Day()
	return time.Date(first.Year(), first.Month(), min(day, last), hour, minute, sec, t.Nanosecond(), t.Location())
}
