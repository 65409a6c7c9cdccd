package calview

import (
	"time"

	"sessioncal/internal/model"
)

// Rect is an axis-aligned region in the host's coordinate space (pixels
// for the web page, cells for the terminal).
type Rect struct {
	X, Y, W, H float64
}

// Contains reports whether (x, y) lies inside r. The right and bottom
// edges are exclusive so adjacent rects never both match.
func (r Rect) Contains(x, y float64) bool {
	return x >= r.X && x < r.X+r.W && y >= r.Y && y < r.Y+r.H
}

// CellID is the stable identifier of the grid cell for date.
func CellID(date time.Time) string {
	return date.Format(time.DateOnly)
}

// EventHit describes the event region under a position.
type EventHit struct {
	EventID string
	// Handle is set when the position is on a resize handle; Edge is then
	// the edge it drags.
	Handle bool
	Edge   model.Edge
}

type cellRegion struct {
	id   string
	rect Rect
	date time.Time
}

type eventRegion struct {
	rect Rect
	hit  EventHit
}

// HitMap maps screen regions to dates and events. The renderer fills it
// on every layout pass; the controllers only ever see PositionToDate.
type HitMap struct {
	cells  []cellRegion
	byID   map[string]time.Time
	events []eventRegion
}

func NewHitMap() *HitMap {
	return &HitMap{byID: map[string]time.Time{}}
}

// Reset drops every region. Call it before laying out a new frame.
func (h *HitMap) Reset() {
	h.cells = h.cells[:0]
	h.events = h.events[:0]
	clear(h.byID)
}

// RegisterCell records that the cell for date occupies r.
func (h *HitMap) RegisterCell(r Rect, date time.Time) string {
	id := CellID(date)
	h.cells = append(h.cells, cellRegion{id: id, rect: r, date: date})
	h.byID[id] = date
	return id
}

// RegisterEvent records an event body region.
func (h *HitMap) RegisterEvent(r Rect, eventID string) {
	h.events = append(h.events, eventRegion{rect: r, hit: EventHit{EventID: eventID}})
}

// RegisterHandle records a resize handle for one edge of an event.
func (h *HitMap) RegisterHandle(r Rect, eventID string, edge model.Edge) {
	h.events = append(h.events, eventRegion{rect: r, hit: EventHit{EventID: eventID, Handle: true, Edge: edge}})
}

// DateOf resolves a cell id.
func (h *HitMap) DateOf(id string) (time.Time, bool) {
	d, ok := h.byID[id]
	return d, ok
}

// PositionToDate returns the date of the cell under (x, y).
func (h *HitMap) PositionToDate(x, y float64) (time.Time, bool) {
	for i := len(h.cells) - 1; i >= 0; i-- {
		if h.cells[i].rect.Contains(x, y) {
			return h.cells[i].date, true
		}
	}
	return time.Time{}, false
}

// EventAt returns the topmost event region under (x, y). Handles win over
// bodies; among equals the last registered wins.
func (h *HitMap) EventAt(x, y float64) (EventHit, bool) {
	var (
		body  EventHit
		found bool
	)
	for i := len(h.events) - 1; i >= 0; i-- {
		r := h.events[i]
		if !r.rect.Contains(x, y) {
			continue
		}
		if r.hit.Handle {
			return r.hit, true
		}
		if !found {
			body, found = r.hit, true
		}
	}
	return body, found
}

// Len is the number of registered cells and event regions.
func (h *HitMap) Len() (cells, events int) {
	return len(h.cells), len(h.events)
}
