// Package interact holds the pointer state machines that turn raw pointer
// movement into "move event to day X" and "change duration by N minutes"
// requests.
//
// The controllers never see a renderer. They get dates through a
// PositionLookup and extra pointer events through a PointerSource, both of
// which tests replace with small fakes.
package interact

import (
	"math"
	"time"
)

// DefaultDragThreshold is the distance, in logical pixels along either
// axis, a pressed pointer must travel before a press becomes a drag.
// Every view uses this one value unless configuration overrides it.
const DefaultDragThreshold = 8

// Point is a pointer position in logical pixels (or terminal cells).
type Point struct {
	X, Y float64
}

// Sub returns p - q.
func (p Point) Sub(q Point) Point {
	return Point{X: p.X - q.X, Y: p.Y - q.Y}
}

// exceeds reports whether either axis of the displacement is beyond limit.
func (p Point) exceeds(limit float64) bool {
	return math.Abs(p.X) > limit || math.Abs(p.Y) > limit
}

// PositionLookup resolves a screen position to the calendar day rendered
// there. ok is false when nothing date-like is under the position.
type PositionLookup interface {
	PositionToDate(x, y float64) (time.Time, bool)
}

// LookupFunc adapts a function to PositionLookup.
type LookupFunc func(x, y float64) (time.Time, bool)

func (f LookupFunc) PositionToDate(x, y float64) (time.Time, bool) { return f(x, y) }

// PointerKind is the type of a captured pointer event.
type PointerKind int

const (
	PointerMove PointerKind = iota
	PointerUp
	// PointerCancel covers both an explicit cancel and loss of pointer
	// capture (focus lost, window hidden).
	PointerCancel
)

// PointerEvent is delivered to a subscribed handler while a session holds
// pointer capture.
type PointerEvent struct {
	Kind PointerKind
	Pos  Point
}

// PointerHandler receives captured pointer events.
type PointerHandler func(PointerEvent)

// PointerSource grants pointer capture. Subscribe returns the teardown
// that releases it; controllers call it on every exit transition.
type PointerSource interface {
	Subscribe(h PointerHandler) (teardown func())
}

// Outcome is the result of ending a drag or resize.
type Outcome int

const (
	// OutcomeNone: the controller was idle; the input was ignored.
	OutcomeNone Outcome = iota
	// OutcomeClick: released before the drag threshold was crossed.
	OutcomeClick
	// OutcomeNoop: the gesture ended where it started (no target, same
	// day, same duration). No callback fired.
	OutcomeNoop
	// OutcomeRejected: the result would violate end > start.
	OutcomeRejected
	// OutcomeCommitted: the callback was invoked.
	OutcomeCommitted
	// OutcomeCancelled: discarded by Cancel or capture loss.
	OutcomeCancelled
)

func (o Outcome) String() string {
	switch o {
	case OutcomeClick:
		return "click"
	case OutcomeNoop:
		return "noop"
	case OutcomeRejected:
		return "rejected"
	case OutcomeCommitted:
		return "committed"
	case OutcomeCancelled:
		return "cancelled"
	default:
		return "none"
	}
}
