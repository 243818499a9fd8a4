// Package schedule implements the occurrence calendar for recurring rules.
// It is pure date arithmetic: given a cadence and a window it computes the
// due dates, without touching the database or the rule cursor.
package schedule

import (
	"fmt"
	"time"
)

// Frequency is the cadence unit of a schedule.
type Frequency string

const (
	Daily   Frequency = "daily"
	Weekly  Frequency = "weekly"
	Monthly Frequency = "monthly"
	Yearly  Frequency = "yearly"
)

// Schedule describes a recurrence cadence anchored at a start date.
//
// Interval means "every N units" counted from the anchor: a weekly schedule
// with Interval=2 fires on matching weekdays of every second week relative
// to the anchor's week, not every second matching date. End, when set, is an
// inclusive hard stop.
type Schedule struct {
	Frequency Frequency
	Interval  int
	Weekdays  []time.Weekday // required for Weekly
	MonthDays []int          // required for Monthly, values 1-31
	Anchor    time.Time
	End       *time.Time
}

// Day normalizes t to midnight UTC. All schedule arithmetic operates on
// normalized days so that wall-clock time and zone never affect matching.
func Day(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// Validate reports whether the schedule is structurally sound. Malformed
// schedules are rejected at rule creation/update time and never reach the
// generator.
func (s Schedule) Validate() error {
	switch s.Frequency {
	case Daily, Weekly, Monthly, Yearly:
	default:
		return fmt.Errorf("unknown frequency %q", s.Frequency)
	}
	if s.Interval < 1 {
		return fmt.Errorf("interval must be at least 1, got %d", s.Interval)
	}
	if s.Frequency == Weekly {
		if len(s.Weekdays) == 0 {
			return fmt.Errorf("weekly schedule requires at least one weekday")
		}
		for _, wd := range s.Weekdays {
			if wd < time.Sunday || wd > time.Saturday {
				return fmt.Errorf("invalid weekday %d", wd)
			}
		}
	}
	if s.Frequency == Monthly {
		if len(s.MonthDays) == 0 {
			return fmt.Errorf("monthly schedule requires at least one day of month")
		}
		for _, d := range s.MonthDays {
			if d < 1 || d > 31 {
				return fmt.Errorf("invalid day of month %d", d)
			}
		}
	}
	if s.Anchor.IsZero() {
		return fmt.Errorf("anchor date is required")
	}
	if s.End != nil && Day(*s.End).Before(Day(s.Anchor)) {
		return fmt.Errorf("end date precedes start date")
	}
	return nil
}

// Occurrences returns every due date in [from, through], both bounds
// inclusive, in strictly increasing order. The result is empty when the
// window is inverted, precedes the anchor entirely, or starts past End.
func (s Schedule) Occurrences(from, through time.Time) []time.Time {
	lower := Day(from)
	upper := Day(through)

	if anchor := Day(s.Anchor); lower.Before(anchor) {
		lower = anchor
	}
	if s.End != nil {
		if end := Day(*s.End); upper.After(end) {
			upper = end
		}
	}

	var out []time.Time
	for d := lower; !d.After(upper); d = d.AddDate(0, 0, 1) {
		if s.matches(d) {
			out = append(out, d)
		}
	}
	return out
}

// Next returns the first due date on or after at, or false when the
// schedule is exhausted (past End, or no date can ever satisfy the cadence,
// e.g. a monthly day-31 rule whose interval only ever lands on February).
func (s Schedule) Next(at time.Time) (time.Time, bool) {
	lower := Day(at)
	if anchor := Day(s.Anchor); lower.Before(anchor) {
		lower = anchor
	}

	if s.Frequency == Yearly {
		return s.nextYearly(lower)
	}

	// A monthly cadence can go years between hits when the requested days
	// don't exist in the eligible months, so bound the scan generously
	// relative to the interval before declaring the schedule dead.
	horizon := lower.AddDate(4*s.Interval+4, 0, 0)
	for d := lower; !d.After(horizon); d = d.AddDate(0, 0, 1) {
		if s.End != nil && d.After(Day(*s.End)) {
			return time.Time{}, false
		}
		if s.matches(d) {
			return d, true
		}
	}
	return time.Time{}, false
}

// nextYearly walks candidate years directly instead of day-stepping, since
// a Feb 29 anchor can skip several non-leap years in a row.
func (s Schedule) nextYearly(lower time.Time) (time.Time, bool) {
	anchor := Day(s.Anchor)
	for y := lower.Year(); y <= lower.Year()+8*s.Interval+8; y++ {
		if (y-anchor.Year())%s.Interval != 0 || y < anchor.Year() {
			continue
		}
		d := time.Date(y, anchor.Month(), anchor.Day(), 0, 0, 0, 0, time.UTC)
		// time.Date rolls Feb 29 over to Mar 1 in non-leap years; the
		// cadence skips those years rather than shifting the day.
		if d.Month() != anchor.Month() || d.Day() != anchor.Day() {
			continue
		}
		if d.Before(lower) {
			continue
		}
		if s.End != nil && d.After(Day(*s.End)) {
			return time.Time{}, false
		}
		return d, true
	}
	return time.Time{}, false
}

// matches reports whether d (a normalized day on or after the anchor)
// satisfies the cadence predicate.
func (s Schedule) matches(d time.Time) bool {
	anchor := Day(s.Anchor)
	if d.Before(anchor) {
		return false
	}

	switch s.Frequency {
	case Daily:
		return daysBetween(anchor, d)%s.Interval == 0

	case Weekly:
		if !containsWeekday(s.Weekdays, d.Weekday()) {
			return false
		}
		weeks := daysBetween(weekStart(anchor), weekStart(d)) / 7
		return weeks%s.Interval == 0

	case Monthly:
		if !containsInt(s.MonthDays, d.Day()) {
			return false
		}
		months := (d.Year()-anchor.Year())*12 + int(d.Month()) - int(anchor.Month())
		return months%s.Interval == 0

	case Yearly:
		if d.Month() != anchor.Month() || d.Day() != anchor.Day() {
			return false
		}
		return (d.Year()-anchor.Year())%s.Interval == 0
	}
	return false
}

// weekStart returns the Monday beginning d's week.
func weekStart(d time.Time) time.Time {
	offset := (int(d.Weekday()) + 6) % 7
	return d.AddDate(0, 0, -offset)
}

// daysBetween returns the whole days from a to b. Both must be normalized
// UTC days, so the division is exact.
func daysBetween(a, b time.Time) int {
	return int(b.Sub(a) / (24 * time.Hour))
}

func containsWeekday(set []time.Weekday, wd time.Weekday) bool {
	for _, v := range set {
		if v == wd {
			return true
		}
	}
	return false
}

func containsInt(set []int, n int) bool {
	for _, v := range set {
		if v == n {
			return true
		}
	}
	return false
}
