// Package calview ties the date grid, the event index and the pointer
// controllers into one calendar instance that a host (web page, terminal
// UI) renders and feeds pointer input into.
//
// A View is single-threaded: the host calls it from its UI loop only.
package calview

import (
	"time"

	"sessioncal/internal/dategrid"
	"sessioncal/internal/eventindex"
	"sessioncal/internal/interact"
	appLog "sessioncal/internal/log"
	"sessioncal/internal/model"
)

// Geometry holds the pointer and time-axis constants shared by all views.
type Geometry struct {
	DragThreshold   float64
	PixelsPerMinute float64
	MinMinutes      int
	MaxMinutes      int
	SnapMinutes     int
}

// Callbacks are the intents a View emits. Every field is optional.
//
// OnEventMove and OnEventResize may start asynchronous work; the view
// does not wait and expects a fresh SetEvents once the store has settled.
type Callbacks struct {
	OnEventMove       interact.MoveFunc
	OnEventResize     interact.ResizeFunc
	OnEventClick      func(ev model.CalendarEvent)
	OnDateClick       func(date time.Time)
	OnViewChange      func(mode dategrid.ViewMode)
	OnDateRangeChange func(anchor, start, end time.Time)
	OnSearchChange    func(term string)
}

// Options configure a View.
type Options struct {
	EnableDragDrop bool
	EnableResize   bool
	WeekStart      time.Weekday
	Mode           dategrid.ViewMode
	// Anchor defaults to today.
	Anchor time.Time
	// Location is the display zone; defaults to Now().Location().
	Location  *time.Location
	Geometry  Geometry
	Callbacks Callbacks
	// Now defaults to time.Now.
	Now func() time.Time
}

// View is one interactive calendar instance.
type View struct {
	opts Options
	now  func() time.Time
	loc  *time.Location

	anchor         time.Time
	selected       time.Time
	mode           dategrid.ViewMode
	search         string
	searchExpanded bool

	events   []model.CalendarEvent
	byID     map[string]model.CalendarEvent
	all      *eventindex.Index
	filtered *eventindex.Index

	hits   *HitMap
	drag   *interact.DragController
	resize *interact.ResizeController

	// pointer capture: at most one subscriber at a time.
	capture    interact.PointerHandler
	captureSeq int
	pending    *press
}

// press is a pointer-down that no controller claimed. It turns into a
// click on release.
type press struct {
	eventID string
	date    time.Time
	pos     interact.Point
}

// New returns a View with no events.
func New(opts Options) *View {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	loc := opts.Location
	if loc == nil {
		loc = opts.Now().Location()
	}
	v := &View{
		opts: opts,
		now:  opts.Now,
		loc:  loc,
		mode: opts.Mode,
		hits: NewHitMap(),
	}
	anchor := opts.Anchor
	if anchor.IsZero() {
		anchor = v.now()
	}
	v.anchor = dategrid.StartOfDay(anchor.In(loc))

	g := opts.Geometry
	v.drag = interact.NewDragController(interact.DragOptions{
		Enabled:   opts.EnableDragDrop,
		Threshold: g.DragThreshold,
		Lookup:    v.hits,
		Source:    v,
		OnMove:    opts.Callbacks.OnEventMove,
	})
	v.resize = interact.NewResizeController(interact.ResizeOptions{
		Enabled:         opts.EnableResize,
		PixelsPerMinute: g.PixelsPerMinute,
		MinMinutes:      g.MinMinutes,
		MaxMinutes:      g.MaxMinutes,
		SnapMinutes:     g.SnapMinutes,
		Source:          v,
		OnResize:        opts.Callbacks.OnEventResize,
	})
	v.SetEvents(nil)
	return v
}

// SetEvents replaces the event snapshot. Instants are viewed in the
// display location so day placement and drag commits agree on what "the
// same day" means. An active drag or resize keeps its origin snapshot.
func (v *View) SetEvents(events []model.CalendarEvent) {
	v.events = make([]model.CalendarEvent, 0, len(events))
	v.byID = make(map[string]model.CalendarEvent, len(events))
	for _, ev := range events {
		if !ev.Start.IsZero() {
			ev.Start = ev.Start.In(v.loc)
		}
		if !ev.End.IsZero() {
			ev.End = ev.End.In(v.loc)
		}
		v.events = append(v.events, ev)
		v.byID[ev.ID] = ev
	}
	v.all = eventindex.New(v.events)
	v.refilter()
	if n := v.all.Unplaceable(); n > 0 {
		appLog.Info("events without a usable start hidden from grid", "count", n)
	}
}

func (v *View) refilter() {
	v.filtered = eventindex.New(eventindex.Filter(v.events, v.search))
}

// Event returns the event with id from the current snapshot.
func (v *View) Event(id string) (model.CalendarEvent, bool) {
	ev, ok := v.byID[id]
	return ev, ok
}

func (v *View) Mode() dategrid.ViewMode { return v.mode }
func (v *View) Anchor() time.Time        { return v.anchor }
func (v *View) Selected() time.Time      { return v.selected }
func (v *View) Search() string           { return v.search }
func (v *View) SearchExpanded() bool     { return v.searchExpanded }
func (v *View) Location() *time.Location { return v.loc }

// HitMap is where the renderer registers cell and event regions.
func (v *View) HitMap() *HitMap { return v.hits }

// Range is the visible interval of the current view.
func (v *View) Range() (time.Time, time.Time) {
	return dategrid.Range(v.anchor, v.mode, v.opts.WeekStart)
}

// DragAllowed reports whether a press on an event may start a drag in the
// current view mode.
func (v *View) DragAllowed() bool {
	return v.drag.Enabled() && v.mode != dategrid.ViewAgenda
}

// ResizeAllowed reports whether resize handles are live. Only the
// time-axis views have a vertical scale to resize against.
func (v *View) ResizeAllowed() bool {
	return v.resize.Enabled() && (v.mode == dategrid.ViewWeek || v.mode == dategrid.ViewDay)
}

// SetDragDrop toggles drag support at runtime.
func (v *View) SetDragDrop(on bool) { v.drag.SetEnabled(on) }

// SetResize toggles resize support at runtime.
func (v *View) SetResize(on bool) { v.resize.SetEnabled(on) }

// Next moves forward one period.
func (v *View) Next() { v.setAnchor(dategrid.Shift(v.anchor, v.mode, 1)) }

// Prev moves back one period.
func (v *View) Prev() { v.setAnchor(dategrid.Shift(v.anchor, v.mode, -1)) }

// Today jumps to the period containing the current date.
func (v *View) Today() { v.setAnchor(dategrid.StartOfDay(v.now().In(v.loc))) }

// GoTo jumps to the period containing date.
func (v *View) GoTo(date time.Time) { v.setAnchor(dategrid.StartOfDay(date.In(v.loc))) }

func (v *View) setAnchor(anchor time.Time) {
	if anchor.Equal(v.anchor) {
		return
	}
	v.CancelInteraction()
	v.anchor = anchor
	v.fireRange()
}

func (v *View) fireRange() {
	if cb := v.opts.Callbacks.OnDateRangeChange; cb != nil {
		start, end := v.Range()
		cb(v.anchor, start, end)
	}
}

// SetViewMode switches the layout. Sessions that the new mode does not
// support are cancelled.
func (v *View) SetViewMode(mode dategrid.ViewMode) {
	if mode == v.mode {
		return
	}
	v.CancelInteraction()
	v.mode = mode
	if cb := v.opts.Callbacks.OnViewChange; cb != nil {
		cb(mode)
	}
	v.fireRange()
}

// SelectDate marks date as selected and reports it as a date click.
func (v *View) SelectDate(date time.Time) {
	v.selected = dategrid.StartOfDay(date.In(v.loc))
	if cb := v.opts.Callbacks.OnDateClick; cb != nil {
		cb(v.selected)
	}
}

// SetSearch replaces the search term. The index is refiltered only when
// the term actually changes.
func (v *View) SetSearch(term string) {
	if term == v.search {
		return
	}
	v.search = term
	v.refilter()
	if cb := v.opts.Callbacks.OnSearchChange; cb != nil {
		cb(term)
	}
}

// ToggleSearch expands or collapses the search box. Collapsing keeps the
// term.
func (v *View) ToggleSearch() {
	v.searchExpanded = !v.searchExpanded
}

// ClearSearch empties the term and collapses the box.
func (v *View) ClearSearch() {
	v.searchExpanded = false
	v.SetSearch("")
}

// CancelInteraction discards any pending press, drag or resize.
func (v *View) CancelInteraction() {
	v.pending = nil
	v.drag.Cancel()
	v.resize.Cancel()
}
