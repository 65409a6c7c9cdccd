// Package dategrid computes the day cells shown by each calendar view.
//
// Everything here is a pure function of its inputs. The current instant is
// passed in explicitly so "today" is recomputed on every call and tests can
// use a fixed clock.
package dategrid

import (
	"strings"
	"time"
)

// MonthCells is the fixed size of a month grid: six full weeks.
const MonthCells = 42

// ViewMode selects the layout of the calendar.
type ViewMode int

const (
	ViewMonth ViewMode = iota
	ViewWeek
	ViewDay
	ViewAgenda
)

func (m ViewMode) String() string {
	switch m {
	case ViewWeek:
		return "week"
	case ViewDay:
		return "day"
	case ViewAgenda:
		return "agenda"
	default:
		return "month"
	}
}

// ParseViewMode maps a name to a ViewMode; unknown names yield month.
func ParseViewMode(s string) (ViewMode, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "month":
		return ViewMonth, true
	case "week":
		return ViewWeek, true
	case "day":
		return ViewDay, true
	case "agenda":
		return ViewAgenda, true
	}
	return ViewMonth, false
}

// ParseWeekStart accepts "monday" or "sunday"; anything else is Monday.
func ParseWeekStart(s string) time.Weekday {
	if strings.EqualFold(strings.TrimSpace(s), "sunday") {
		return time.Sunday
	}
	return time.Monday
}

// Cell is one day of a rendered grid. It has no identity beyond Date.
type Cell struct {
	Date            time.Time
	IsCurrentPeriod bool
	IsToday         bool
	IsSelected      bool
}

// Params are the inputs of Cells.
type Params struct {
	Anchor    time.Time
	Mode      ViewMode
	WeekStart time.Weekday
	// Now decides which cell is today.
	Now time.Time
	// Selected is optional; the zero time selects nothing.
	Selected time.Time
}

// Cells returns the ordered day cells for p.Mode around p.Anchor.
//
//   - month: 42 days starting at the week boundary on or before the first
//     of the anchor's month; days outside that month are not current.
//   - week: the 7 days of the week containing the anchor.
//   - day: the anchor day.
//   - agenda: every day of the anchor's month.
func Cells(p Params) []Cell {
	first, n := span(p.Anchor, p.Mode, p.WeekStart)
	out := make([]Cell, 0, n)
	for i := 0; i < n; i++ {
		d := AddDays(first, i)
		c := Cell{
			Date:            d,
			IsCurrentPeriod: true,
			IsToday:         SameDay(d, p.Now),
			IsSelected:      !p.Selected.IsZero() && SameDay(d, p.Selected),
		}
		if p.Mode == ViewMonth {
			c.IsCurrentPeriod = d.Month() == p.Anchor.Month() && d.Year() == p.Anchor.Year()
		}
		out = append(out, c)
	}
	return out
}

// Range returns the first instant of the first cell and the last instant
// of the last cell for the given view.
func Range(anchor time.Time, mode ViewMode, weekStart time.Weekday) (time.Time, time.Time) {
	first, n := span(anchor, mode, weekStart)
	end := AddDays(first, n).Add(-time.Nanosecond)
	return first, end
}

func span(anchor time.Time, mode ViewMode, weekStart time.Weekday) (time.Time, int) {
	switch mode {
	case ViewWeek:
		return StartOfWeek(anchor, weekStart), 7
	case ViewDay:
		return StartOfDay(anchor), 1
	case ViewAgenda:
		first := StartOfMonth(anchor)
		return first, DaysInMonth(anchor.Year(), anchor.Month())
	default:
		return StartOfWeek(StartOfMonth(anchor), weekStart), MonthCells
	}
}

// Shift moves anchor by n periods of mode. Month shifts keep the day of
// month but clamp it to the target month's length, so Jan 31 + 1 month is
// the last day of February rather than early March.
func Shift(anchor time.Time, mode ViewMode, n int) time.Time {
	switch mode {
	case ViewWeek:
		return AddDays(StartOfDay(anchor), 7*n)
	case ViewDay:
		return AddDays(StartOfDay(anchor), n)
	default:
		y, m, d := anchor.Date()
		target := time.Date(y, m+time.Month(n), 1, 0, 0, 0, 0, anchor.Location())
		if last := DaysInMonth(target.Year(), target.Month()); d > last {
			d = last
		}
		return time.Date(target.Year(), target.Month(), d, 0, 0, 0, 0, anchor.Location())
	}
}

// StartOfDay truncates t to local midnight in t's location.
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// StartOfMonth returns midnight of the first day of t's month.
func StartOfMonth(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
}

// StartOfWeek walks back from t to the nearest weekStart day.
func StartOfWeek(t time.Time, weekStart time.Weekday) time.Time {
	day := StartOfDay(t)
	back := (int(day.Weekday()) - int(weekStart) + 7) % 7
	return AddDays(day, -back)
}

// AddDays adds calendar days. It goes through time.Date so days that are
// 23 or 25 hours long (DST) still land on midnight.
func AddDays(t time.Time, n int) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d+n, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}

// SameDay reports whether a and b fall on the same calendar day. b is
// viewed in a's location.
func SameDay(a, b time.Time) bool {
	if a.IsZero() || b.IsZero() {
		return false
	}
	b = b.In(a.Location())
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// DaysInMonth returns the number of days in the given month.
func DaysInMonth(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// Weekdays returns the seven weekday headers starting at weekStart.
func Weekdays(weekStart time.Weekday) []time.Weekday {
	out := make([]time.Weekday, 7)
	for i := range out {
		out[i] = time.Weekday((int(weekStart) + i) % 7)
	}
	return out
}
