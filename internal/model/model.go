package model

import (
	"errors"
	"strings"
	"time"
)

// ErrInvalidEvent is wrapped by every CalendarEvent validation failure.
var ErrInvalidEvent = errors.New("invalid calendar event")

// Edge names the side of an event that a resize operates on.
type Edge int

const (
	EdgeStart Edge = iota
	EdgeEnd
)

func (e Edge) String() string {
	if e == EdgeStart {
		return "start"
	}
	return "end"
}

// ParseEdge accepts "start" or "end" (case-insensitive).
func ParseEdge(s string) (Edge, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "start":
		return EdgeStart, true
	case "end":
		return EdgeEnd, true
	}
	return EdgeEnd, false
}

// SessionStatus is the lifecycle label of a research session.
type SessionStatus string

const (
	StatusScheduled SessionStatus = "scheduled"
	StatusConfirmed SessionStatus = "confirmed"
	StatusCompleted SessionStatus = "completed"
	StatusCancelled SessionStatus = "cancelled"
	StatusNoShow    SessionStatus = "no_show"
)

// Label returns the human readable status used in lists and search.
func (s SessionStatus) Label() string {
	switch s {
	case StatusScheduled:
		return "Scheduled"
	case StatusConfirmed:
		return "Confirmed"
	case StatusCompleted:
		return "Completed"
	case StatusCancelled:
		return "Cancelled"
	case StatusNoShow:
		return "No show"
	case "":
		return ""
	default:
		return string(s)
	}
}

// Attendee is a lightweight reference to a session participant.
type Attendee struct {
	ID    string
	Name  string
	Email string
}

// DisplayName returns the best available label for the attendee.
func (a Attendee) DisplayName() string {
	switch {
	case a.Name != "":
		return a.Name
	case a.Email != "":
		return a.Email
	default:
		return a.ID
	}
}

// CalendarEvent is a research session as seen by the calendar.
//
// The calendar only ever receives snapshots of these values and proposes
// changes through callbacks; it never edits one in place. The With* helpers
// return modified copies for the store side.
type CalendarEvent struct {
	ID          string
	Title       string
	Description string
	Location    string

	// StudyName is the denormalized name of the study the session belongs to.
	StudyName string
	Status    SessionStatus
	Category  Category

	// Start is zero when the source record had no usable start.
	Start time.Time
	End   time.Time

	Attendees []Attendee
}

// DurationMinutes is derived from Start/End so the two can never disagree.
func (e CalendarEvent) DurationMinutes() int {
	if e.Start.IsZero() || e.End.IsZero() {
		return 0
	}
	return int(e.End.Sub(e.Start) / time.Minute)
}

// Placeable reports whether the event can be put on a date grid.
func (e CalendarEvent) Placeable() bool {
	return !e.Start.IsZero()
}

// EffectiveEnd returns End, or Start when End is missing.
func (e CalendarEvent) EffectiveEnd() time.Time {
	if e.End.IsZero() || e.End.Before(e.Start) {
		return e.Start
	}
	return e.End
}

// Validate checks the invariants a committed event must satisfy.
// PRE: none
// POST: returns nil if valid, an error wrapping ErrInvalidEvent otherwise
func (e CalendarEvent) Validate() error {
	if strings.TrimSpace(e.Title) == "" {
		return invalid("title is required")
	}
	if e.Start.IsZero() {
		return invalid("start is required")
	}
	if !e.End.After(e.Start) {
		return invalid("end must be after start")
	}
	if !e.Category.Valid() {
		return invalid("unknown category")
	}
	return nil
}

// WithStart returns a copy moved to start, keeping the duration.
func (e CalendarEvent) WithStart(start time.Time) CalendarEvent {
	d := e.End.Sub(e.Start)
	out := e.clone()
	out.Start = start
	out.End = start.Add(d)
	return out
}

// WithDuration returns a copy with the given duration. The edge names the
// side that moved: resizing the start edge keeps End fixed, resizing the
// end edge keeps Start fixed.
func (e CalendarEvent) WithDuration(minutes int, edge Edge) CalendarEvent {
	d := time.Duration(minutes) * time.Minute
	out := e.clone()
	if edge == EdgeStart {
		out.Start = e.End.Add(-d)
	} else {
		out.End = e.Start.Add(d)
	}
	return out
}

func (e CalendarEvent) clone() CalendarEvent {
	out := e
	if e.Attendees != nil {
		out.Attendees = append([]Attendee(nil), e.Attendees...)
	}
	return out
}

func invalid(msg string) error {
	return &validationError{msg: msg}
}

type validationError struct{ msg string }

func (v *validationError) Error() string { return "calendar event: " + v.msg }
func (v *validationError) Unwrap() error { return ErrInvalidEvent }
