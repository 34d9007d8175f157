package period

import (
	"strings"
	"time"
)

// Cycle is a budget reset cycle.
type Cycle string

const (
	// Weekly periods start on Monday.
	Weekly Cycle = "weekly"
	// Monthly periods start on the first day of the month.
	Monthly Cycle = "monthly"
	// Yearly periods start on January 1.
	Yearly Cycle = "yearly"
)

// Display is a fixed reporting period shown alongside the budget.
type Display string

const (
	// Week is the range from Monday of the current week to now.
	Week Display = "week"
	// Month is the range from the 1st of the current month to now.
	Month Display = "month"
	// Year is the range from January 1 of the current year to now.
	Year Display = "year"
)

// KeyLayout is the layout of a period key.
const KeyLayout = "2006-01-02"

// Range is a half-open time range. End is the evaluation instant for
// current-period ranges.
type Range struct {
	Start time.Time
	End   time.Time
}

// Contains reports whether t falls inside [Start, End].
func (r Range) Contains(t time.Time) bool {
	return !t.Before(r.Start) && !t.After(r.End)
}

// ParseCycle converts s to a Cycle. Unknown values map to Monthly.
func ParseCycle(s string) Cycle {
	switch Cycle(strings.ToLower(strings.TrimSpace(s))) {
	case Weekly:
		return Weekly
	case Yearly:
		return Yearly
	default:
		return Monthly
	}
}

// Valid reports whether c is one of the known cycles.
func (c Cycle) Valid() bool {
	return c == Weekly || c == Monthly || c == Yearly
}

// Normalize returns c or Monthly when c is unknown.
func (c Cycle) Normalize() Cycle {
	return ParseCycle(string(c))
}

// Title returns the cycle with an upper-case first letter.
func (c Cycle) Title() string {
	s := string(c.Normalize())
	return strings.ToUpper(s[:1]) + s[1:]
}

// Start returns the start of the cycle's period containing now, in now's location.
func Start(c Cycle, now time.Time) time.Time {
	y, m, d := now.Date()
	loc := now.Location()

	switch c.Normalize() {
	case Weekly:
		// time.Weekday counts Sunday as 0; weeks start on Monday.
		offset := (int(now.Weekday()) + 6) % 7
		return time.Date(y, m, d-offset, 0, 0, 0, 0, loc)
	case Yearly:
		return time.Date(y, time.January, 1, 0, 0, 0, 0, loc)
	default:
		return time.Date(y, m, 1, 0, 0, 0, 0, loc)
	}
}

// CurrentRange returns the current budget period for cycle c.
func CurrentRange(c Cycle, now time.Time) Range {
	return Range{Start: Start(c, now), End: now}
}

// DisplayRange returns the fixed display period d relative to now.
func DisplayRange(d Display, now time.Time) Range {
	return CurrentRange(d.cycle(), now)
}

// EndOfDay returns the last millisecond of t's calendar day in t's location.
func EndOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d+1, 0, 0, 0, 0, t.Location()).Add(-time.Millisecond)
}

// NaturalEnd returns the last millisecond of the period that begins at start.
func NaturalEnd(c Cycle, start time.Time) time.Time {
	var next time.Time
	switch c.Normalize() {
	case Weekly:
		next = start.AddDate(0, 0, 7)
	case Yearly:
		next = start.AddDate(1, 0, 0)
	default:
		next = start.AddDate(0, 1, 0)
	}
	return next.Add(-time.Millisecond)
}

// Key returns the period key for a period start.
func Key(start time.Time) string {
	return start.Format(KeyLayout)
}

// CurrentKey returns the key of the current period for cycle c.
func CurrentKey(c Cycle, now time.Time) string {
	return Key(Start(c, now))
}

// Describe returns a human label for the cycle's current period.
func Describe(c Cycle) string {
	switch c.Normalize() {
	case Weekly:
		return "This Week"
	case Yearly:
		return "This Year"
	default:
		return "This Month"
	}
}

// Label returns a human label for a display period.
func (d Display) Label() string {
	return Describe(d.cycle())
}

func (d Display) cycle() Cycle {
	switch d {
	case Week:
		return Weekly
	case Year:
		return Yearly
	default:
		return Monthly
	}
}
