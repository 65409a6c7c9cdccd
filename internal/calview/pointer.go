package calview

import (
	"sessioncal/internal/interact"
	appLog "sessioncal/internal/log"
)

// Subscribe grants pointer capture to h. While captured, every pointer
// event the host feeds the view goes to h. The returned teardown releases
// capture; a stale teardown is ignored.
func (v *View) Subscribe(h interact.PointerHandler) func() {
	if v.capture != nil {
		appLog.Debug("pointer capture replaced")
	}
	v.captureSeq++
	seq := v.captureSeq
	v.capture = h
	return func() {
		if v.captureSeq == seq {
			v.capture = nil
		}
	}
}

// Captured reports whether a controller holds pointer capture.
func (v *View) Captured() bool { return v.capture != nil }

// Busy reports whether a drag or resize session is active.
func (v *View) Busy() bool {
	return v.drag.State() != interact.DragIdle || v.resize.Active()
}

// PointerDown starts a gesture at (x, y). A resize handle begins a
// resize, an event body arms a drag, and anything else is remembered as a
// potential click. A press while another gesture is active is ignored.
func (v *View) PointerDown(x, y float64) {
	if v.Busy() {
		return
	}
	p := interact.Point{X: x, Y: y}
	v.pending = nil

	if hit, ok := v.hits.EventAt(x, y); ok {
		ev, known := v.byID[hit.EventID]
		if !known {
			appLog.Debug("pointer on unknown event", "id", hit.EventID)
			return
		}
		if hit.Handle && v.ResizeAllowed() && v.resize.Begin(ev, hit.Edge, y) {
			return
		}
		if v.DragAllowed() && v.drag.Press(ev, p) {
			return
		}
		v.pending = &press{eventID: ev.ID, pos: p}
		return
	}
	if date, ok := v.hits.PositionToDate(x, y); ok {
		v.pending = &press{date: date, pos: p}
	}
}

// PointerMove feeds a move. Captured moves go to the capturing
// controller; an armed drag gets the move directly so it can cross the
// threshold.
func (v *View) PointerMove(x, y float64) {
	p := interact.Point{X: x, Y: y}
	if v.capture != nil {
		v.capture(interact.PointerEvent{Kind: interact.PointerMove, Pos: p})
		return
	}
	if v.drag.State() == interact.DragArmed {
		v.drag.Move(p)
	}
}

// PointerUp ends the gesture at (x, y) and emits the resulting intent.
func (v *View) PointerUp(x, y float64) {
	p := interact.Point{X: x, Y: y}
	if v.capture != nil {
		v.capture(interact.PointerEvent{Kind: interact.PointerUp, Pos: p})
		return
	}
	if v.drag.State() == interact.DragArmed {
		if res := v.drag.Release(p); res.Outcome == interact.OutcomeClick {
			v.clickEvent(res.EventID)
		}
		return
	}
	pending := v.pending
	v.pending = nil
	if pending == nil {
		return
	}
	if pending.eventID != "" {
		v.clickEvent(pending.eventID)
		return
	}
	v.SelectDate(pending.date)
}

// PointerCancel is the host's cancel or capture-loss signal.
func (v *View) PointerCancel() {
	v.pending = nil
	if v.capture != nil {
		v.capture(interact.PointerEvent{Kind: interact.PointerCancel})
	}
	v.drag.Cancel()
	v.resize.Cancel()
}

func (v *View) clickEvent(id string) {
	ev, ok := v.byID[id]
	if !ok {
		return
	}
	if cb := v.opts.Callbacks.OnEventClick; cb != nil {
		cb(ev)
	}
}
