// Package eventindex answers membership queries over a snapshot of events.
package eventindex

import (
	"sort"
	"strings"
	"time"

	"sessioncal/internal/dategrid"
	"sessioncal/internal/model"
)

// SearchFields documents what Filter matches against, in order.
var SearchFields = []string{
	"title",
	"description",
	"location",
	"study_name",
	"status",
	"attendee.name",
	"attendee.email",
	"attendee.id",
}

// Index groups a snapshot of events by calendar day and date range.
//
// Events without a start cannot be placed on a grid. They stay in All()
// and are counted by Unplaceable() so the caller can report them.
type Index struct {
	all         []model.CalendarEvent
	placed      []model.CalendarEvent // sorted by Start
	unplaceable int
}

// New builds an Index. The input slice is not retained or modified.
func New(events []model.CalendarEvent) *Index {
	idx := &Index{
		all: append([]model.CalendarEvent(nil), events...),
	}
	for _, ev := range events {
		if !ev.Placeable() {
			idx.unplaceable++
			continue
		}
		idx.placed = append(idx.placed, ev)
	}
	sort.SliceStable(idx.placed, func(i, j int) bool {
		return idx.placed[i].Start.Before(idx.placed[j].Start)
	})
	return idx
}

// All returns every event, placeable or not, in input order.
func (x *Index) All() []model.CalendarEvent {
	return append([]model.CalendarEvent(nil), x.all...)
}

// Placed returns the placeable events sorted by start.
func (x *Index) Placed() []model.CalendarEvent {
	return append([]model.CalendarEvent(nil), x.placed...)
}

// Unplaceable is the number of events excluded from day/range buckets.
func (x *Index) Unplaceable() int {
	return x.unplaceable
}

// OnDate returns the events whose start is on the same calendar day as date,
// ordered by start. The day is evaluated in date's location.
func (x *Index) OnDate(date time.Time) []model.CalendarEvent {
	if date.IsZero() {
		return nil
	}
	from := dategrid.StartOfDay(date)
	to := dategrid.AddDays(from, 1)
	i := sort.Search(len(x.placed), func(i int) bool {
		return !x.placed[i].Start.Before(from)
	})
	var out []model.CalendarEvent
	for ; i < len(x.placed) && x.placed[i].Start.Before(to); i++ {
		out = append(out, x.placed[i])
	}
	return out
}

// ByDay buckets the placeable events onto days. The result is parallel to
// days, one start-ordered slice per day.
func (x *Index) ByDay(days []time.Time) [][]model.CalendarEvent {
	out := make([][]model.CalendarEvent, len(days))
	for i, d := range days {
		out[i] = x.OnDate(d)
	}
	return out
}

// InRange returns events whose closed interval [Start, End] overlaps
// [start, end]. A missing End is treated as Start.
func (x *Index) InRange(start, end time.Time) []model.CalendarEvent {
	var out []model.CalendarEvent
	for _, ev := range x.placed {
		if Overlaps(ev, start, end) {
			out = append(out, ev)
		}
	}
	return out
}

// Overlaps is the range test used by InRange.
func Overlaps(ev model.CalendarEvent, start, end time.Time) bool {
	if !ev.Placeable() {
		return false
	}
	return !ev.Start.After(end) && !ev.EffectiveEnd().Before(start)
}

// Filter returns the events matching term, case-insensitively, on any of
// SearchFields. A blank term returns a copy of events unchanged. The input
// is never modified.
func Filter(events []model.CalendarEvent, term string) []model.CalendarEvent {
	needle := strings.ToLower(strings.TrimSpace(term))
	if needle == "" {
		return append(make([]model.CalendarEvent, 0, len(events)), events...)
	}
	out := make([]model.CalendarEvent, 0)
	for _, ev := range events {
		if Matches(ev, needle) {
			out = append(out, ev)
		}
	}
	return out
}

// Matches reports whether ev matches an already lower-cased needle.
func Matches(ev model.CalendarEvent, needle string) bool {
	fields := []string{
		ev.Title,
		ev.Description,
		ev.Location,
		ev.StudyName,
		ev.Status.Label(),
		string(ev.Status),
	}
	for _, f := range fields {
		if containsFold(f, needle) {
			return true
		}
	}
	for _, a := range ev.Attendees {
		if containsFold(a.Name, needle) || containsFold(a.Email, needle) || containsFold(a.ID, needle) {
			return true
		}
	}
	return false
}

func containsFold(s, lowerNeedle string) bool {
	return s != "" && strings.Contains(strings.ToLower(s), lowerNeedle)
}
