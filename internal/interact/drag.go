package interact

import (
	"time"

	appLog "sessioncal/internal/log"
	"sessioncal/internal/model"
)

// DragState is the state of a DragController.
type DragState int

const (
	DragIdle DragState = iota
	// DragArmed: pointer pressed on an event, threshold not yet crossed.
	DragArmed
	DragDragging
)

func (s DragState) String() string {
	switch s {
	case DragArmed:
		return "armed"
	case DragDragging:
		return "dragging"
	default:
		return "idle"
	}
}

// MoveFunc asks the owner of the data to move an event. It may start
// asynchronous work; the controller does not wait for it and ignores the
// outcome beyond logging an error.
type MoveFunc func(eventID string, newStart time.Time) error

// DragSession is the transient state of one drag.
type DragSession struct {
	EventID        string
	Origin         model.CalendarEvent
	PointerOrigin  Point
	PointerCurrent Point
	// DropTarget is the day under the pointer; zero when nothing resolves.
	DropTarget time.Time
}

// Offset is the visual displacement of the dragged event.
func (s DragSession) Offset() Point {
	return s.PointerCurrent.Sub(s.PointerOrigin)
}

// DragResult reports how a drag ended.
type DragResult struct {
	Outcome  Outcome
	EventID  string
	Event    model.CalendarEvent
	NewStart time.Time
}

// DragOptions configure a DragController.
type DragOptions struct {
	Enabled bool
	// Threshold defaults to DefaultDragThreshold when <= 0.
	Threshold float64
	Lookup    PositionLookup
	// Source, when set, is subscribed on Armed -> Dragging so moves outside
	// the grid still reach the controller.
	Source PointerSource
	OnMove MoveFunc
	// OnSettle, when set, observes every transition back to idle,
	// including ones driven by captured pointer events.
	OnSettle func(DragResult)
}

// DragController converts pointer input into a committed move of an event
// to another day, preserving its time of day.
//
//	Idle -> Armed -> Dragging -> (commit | cancel) -> Idle
//
// It is not safe for concurrent use; all input arrives on the host's UI
// thread.
type DragController struct {
	opts     DragOptions
	state    DragState
	session  DragSession
	teardown func()
}

// NewDragController returns an idle controller.
func NewDragController(opts DragOptions) *DragController {
	if opts.Threshold <= 0 {
		opts.Threshold = DefaultDragThreshold
	}
	return &DragController{opts: opts}
}

// SetEnabled toggles drag support. Disabling cancels an active session.
func (d *DragController) SetEnabled(on bool) {
	if !on && d.state != DragIdle {
		d.Cancel()
	}
	d.opts.Enabled = on
}

func (d *DragController) Enabled() bool   { return d.opts.Enabled }
func (d *DragController) State() DragState { return d.state }

// Session returns the active session, if any.
func (d *DragController) Session() (DragSession, bool) {
	if d.state == DragIdle {
		return DragSession{}, false
	}
	return d.session, true
}

// Dragging reports whether the threshold has been crossed.
func (d *DragController) Dragging() bool {
	return d.state == DragDragging
}

// Press arms the controller on ev. It returns false, and does nothing,
// when drag is disabled or a session is already active.
func (d *DragController) Press(ev model.CalendarEvent, p Point) bool {
	if !d.opts.Enabled || d.state != DragIdle {
		return false
	}
	d.session = DragSession{
		EventID:        ev.ID,
		Origin:         ev,
		PointerOrigin:  p,
		PointerCurrent: p,
	}
	d.state = DragArmed
	return true
}

// Move feeds a pointer position. Only the session is touched; the event
// list is never modified here.
func (d *DragController) Move(p Point) {
	switch d.state {
	case DragArmed:
		d.session.PointerCurrent = p
		if !p.Sub(d.session.PointerOrigin).exceeds(d.opts.Threshold) {
			return
		}
		d.state = DragDragging
		if d.opts.Source != nil {
			d.teardown = d.opts.Source.Subscribe(d.handleCaptured)
		}
		d.track(p)
	case DragDragging:
		d.track(p)
	}
}

func (d *DragController) track(p Point) {
	d.session.PointerCurrent = p
	d.session.DropTarget = time.Time{}
	if d.opts.Lookup == nil {
		return
	}
	if day, ok := d.opts.Lookup.PositionToDate(p.X, p.Y); ok {
		d.session.DropTarget = day
	}
}

// Release ends the gesture at p.
//
// Released while armed it is a click. Released while dragging it commits
// unless the drop target is missing or on the original day. The session
// is cleared before the move callback runs.
func (d *DragController) Release(p Point) DragResult {
	switch d.state {
	case DragArmed:
		res := DragResult{Outcome: OutcomeClick, EventID: d.session.EventID, Event: d.session.Origin}
		d.reset()
		return d.settle(res)
	case DragDragging:
		d.track(p)
		sess := d.session
		d.reset()
		return d.settle(d.commit(sess))
	default:
		return DragResult{Outcome: OutcomeNone}
	}
}

func (d *DragController) commit(sess DragSession) DragResult {
	res := DragResult{Outcome: OutcomeNoop, EventID: sess.EventID, Event: sess.Origin}
	origin := sess.Origin
	if sess.DropTarget.IsZero() || sameDay(sess.DropTarget, origin.Start) {
		return res
	}

	newStart := CombineDateAndClock(sess.DropTarget, origin.Start)
	newEnd := newStart.Add(origin.End.Sub(origin.Start))
	if !newEnd.After(newStart) {
		appLog.Error("drag commit rejected", model.ErrInvalidEvent, "id", sess.EventID, "start", newStart)
		res.Outcome = OutcomeRejected
		return res
	}

	res.Outcome = OutcomeCommitted
	res.NewStart = newStart
	appLog.Debug("drag commit", "id", sess.EventID, "from", origin.Start, "to", newStart)
	if d.opts.OnMove != nil {
		if err := d.opts.OnMove(sess.EventID, newStart); err != nil {
			appLog.Error("event move callback failed", err, "id", sess.EventID)
		}
	}
	return res
}

// Cancel discards the session without invoking the move callback.
func (d *DragController) Cancel() DragResult {
	if d.state == DragIdle {
		return DragResult{Outcome: OutcomeNone}
	}
	res := DragResult{Outcome: OutcomeCancelled, EventID: d.session.EventID, Event: d.session.Origin}
	d.reset()
	return d.settle(res)
}

func (d *DragController) handleCaptured(pe PointerEvent) {
	switch pe.Kind {
	case PointerMove:
		d.Move(pe.Pos)
	case PointerUp:
		d.Release(pe.Pos)
	case PointerCancel:
		d.Cancel()
	}
}

func (d *DragController) reset() {
	if d.teardown != nil {
		td := d.teardown
		d.teardown = nil
		td()
	}
	d.session = DragSession{}
	d.state = DragIdle
}

func (d *DragController) settle(res DragResult) DragResult {
	if d.opts.OnSettle != nil {
		d.opts.OnSettle(res)
	}
	return res
}

// CombineDateAndClock returns day's calendar date at clock's hour, minute,
// second and nanosecond, in clock's location.
func CombineDateAndClock(day, clock time.Time) time.Time {
	y, m, dd := day.Date()
	return time.Date(y, m, dd, clock.Hour(), clock.Minute(), clock.Second(), clock.Nanosecond(), clock.Location())
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
