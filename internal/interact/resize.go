package interact

import (
	"math"

	appLog "sessioncal/internal/log"
	"sessioncal/internal/model"
)

// Default resize geometry.
const (
	DefaultMinEventMinutes = 15
	DefaultMaxEventMinutes = 480
	DefaultPixelsPerMinute = 1.0
	DefaultSnapMinutes     = 15
)

// ResizeFunc asks the owner of the data to change an event's duration.
// edge is the side that moved; the other one stays fixed. Instants are
// recomputed by the caller.
type ResizeFunc func(eventID string, newDurationMinutes int, edge model.Edge) error

// ResizeSession is the transient state of one resize.
type ResizeSession struct {
	EventID               string
	Origin                model.CalendarEvent
	Edge                  model.Edge
	OriginDurationMinutes int
	PointerOriginY        float64
	// LiveMinutes is the clamped preview duration.
	LiveMinutes int
}

// ResizeResult reports how a resize ended.
type ResizeResult struct {
	Outcome Outcome
	EventID string
	Edge    model.Edge
	Minutes int
}

// ResizeOptions configure a ResizeController.
type ResizeOptions struct {
	Enabled         bool
	PixelsPerMinute float64
	MinMinutes      int
	MaxMinutes      int
	// SnapMinutes rounds the delta to a multiple; 0 disables snapping.
	SnapMinutes int
	Source      PointerSource
	OnResize    ResizeFunc
	OnSettle    func(ResizeResult)
}

// ResizeController converts vertical pointer movement on one edge of an
// event into a committed duration change.
//
//	Idle -> Resizing -> (commit | cancel) -> Idle
type ResizeController struct {
	opts     ResizeOptions
	active   bool
	session  ResizeSession
	teardown func()
}

// NewResizeController returns an idle controller, filling zero geometry
// with the defaults.
func NewResizeController(opts ResizeOptions) *ResizeController {
	if opts.PixelsPerMinute <= 0 {
		opts.PixelsPerMinute = DefaultPixelsPerMinute
	}
	if opts.MinMinutes <= 0 {
		opts.MinMinutes = DefaultMinEventMinutes
	}
	if opts.MaxMinutes <= 0 {
		opts.MaxMinutes = DefaultMaxEventMinutes
	}
	if opts.MaxMinutes < opts.MinMinutes {
		opts.MaxMinutes = opts.MinMinutes
	}
	if opts.SnapMinutes < 0 {
		opts.SnapMinutes = 0
	}
	return &ResizeController{opts: opts}
}

// SetEnabled toggles resize support. Disabling cancels an active session.
func (r *ResizeController) SetEnabled(on bool) {
	if !on && r.active {
		r.Cancel()
	}
	r.opts.Enabled = on
}

func (r *ResizeController) Enabled() bool { return r.opts.Enabled }
func (r *ResizeController) Active() bool  { return r.active }

// Session returns the active session, if any.
func (r *ResizeController) Session() (ResizeSession, bool) {
	return r.session, r.active
}

// Begin starts resizing ev from edge at pointer height y.
func (r *ResizeController) Begin(ev model.CalendarEvent, edge model.Edge, y float64) bool {
	if !r.opts.Enabled || r.active || !ev.Placeable() {
		return false
	}
	d := ev.DurationMinutes()
	r.session = ResizeSession{
		EventID:               ev.ID,
		Origin:                ev,
		Edge:                  edge,
		OriginDurationMinutes: d,
		PointerOriginY:        y,
		LiveMinutes:           d,
	}
	r.active = true
	if r.opts.Source != nil {
		r.teardown = r.opts.Source.Subscribe(r.handleCaptured)
	}
	return true
}

// Move updates the live, clamped duration from pointer height y.
func (r *ResizeController) Move(y float64) {
	if !r.active {
		return
	}
	r.session.LiveMinutes = r.durationAt(y)
}

// durationAt converts the vertical displacement to a duration. Dragging
// the end edge down grows the event; dragging the start edge down shrinks
// it. A displacement that rounds to zero keeps the original duration.
func (r *ResizeController) durationAt(y float64) int {
	delta := r.deltaMinutes(y - r.session.PointerOriginY)
	if delta == 0 {
		return r.session.OriginDurationMinutes
	}
	if r.session.Edge == model.EdgeStart {
		delta = -delta
	}
	return r.clamp(r.session.OriginDurationMinutes + delta)
}

func (r *ResizeController) deltaMinutes(dy float64) int {
	minutes := dy / r.opts.PixelsPerMinute
	if s := r.opts.SnapMinutes; s > 0 {
		return int(math.Round(minutes/float64(s))) * s
	}
	return int(math.Round(minutes))
}

func (r *ResizeController) clamp(m int) int {
	if m < r.opts.MinMinutes {
		return r.opts.MinMinutes
	}
	if m > r.opts.MaxMinutes {
		return r.opts.MaxMinutes
	}
	return m
}

// Release commits the resize at pointer height y. An unchanged duration is
// a no-op; otherwise the resize callback fires after the session is
// cleared.
func (r *ResizeController) Release(y float64) ResizeResult {
	if !r.active {
		return ResizeResult{Outcome: OutcomeNone}
	}
	r.Move(y)
	sess := r.session
	r.reset()

	res := ResizeResult{Outcome: OutcomeNoop, EventID: sess.EventID, Edge: sess.Edge, Minutes: sess.LiveMinutes}
	switch {
	case sess.LiveMinutes == sess.OriginDurationMinutes:
	case sess.LiveMinutes <= 0:
		appLog.Error("resize commit rejected", model.ErrInvalidEvent, "id", sess.EventID, "minutes", sess.LiveMinutes)
		res.Outcome = OutcomeRejected
	default:
		res.Outcome = OutcomeCommitted
		appLog.Debug("resize commit", "id", sess.EventID, "edge", sess.Edge, "from", sess.OriginDurationMinutes, "to", sess.LiveMinutes)
		if r.opts.OnResize != nil {
			if err := r.opts.OnResize(sess.EventID, sess.LiveMinutes, sess.Edge); err != nil {
				appLog.Error("event resize callback failed", err, "id", sess.EventID)
			}
		}
	}
	return r.settle(res)
}

// Cancel discards the session without invoking the resize callback.
func (r *ResizeController) Cancel() ResizeResult {
	if !r.active {
		return ResizeResult{Outcome: OutcomeNone}
	}
	res := ResizeResult{Outcome: OutcomeCancelled, EventID: r.session.EventID, Edge: r.session.Edge, Minutes: r.session.OriginDurationMinutes}
	r.reset()
	return r.settle(res)
}

func (r *ResizeController) handleCaptured(pe PointerEvent) {
	switch pe.Kind {
	case PointerMove:
		r.Move(pe.Pos.Y)
	case PointerUp:
		r.Release(pe.Pos.Y)
	case PointerCancel:
		r.Cancel()
	}
}

func (r *ResizeController) reset() {
	if r.teardown != nil {
		td := r.teardown
		r.teardown = nil
		td()
	}
	r.session = ResizeSession{}
	r.active = false
}

func (r *ResizeController) settle(res ResizeResult) ResizeResult {
	if r.opts.OnSettle != nil {
		r.opts.OnSettle(res)
	}
	return res
}
