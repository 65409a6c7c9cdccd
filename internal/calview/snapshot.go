package calview

import (
	"fmt"
	"time"

	"sessioncal/internal/dategrid"
	"sessioncal/internal/interact"
	"sessioncal/internal/model"
)

// DayCell is a grid cell with the events that start on it.
type DayCell struct {
	dategrid.Cell
	ID     string
	Events []model.CalendarEvent
}

// DragPreview is the visual state of an active drag.
type DragPreview struct {
	EventID    string
	Offset     interact.Point
	DropTarget time.Time
	Dragging   bool
}

// ResizePreview is the visual state of an active resize.
type ResizePreview struct {
	EventID     string
	Edge        model.Edge
	LiveMinutes int
}

// Snapshot is everything a renderer needs for one frame.
type Snapshot struct {
	Mode       dategrid.ViewMode
	Anchor     time.Time
	Selected   time.Time
	RangeStart time.Time
	RangeEnd   time.Time
	Weekdays   []time.Weekday

	// Cells holds the grid cells in order. In agenda mode only days with
	// at least one event are kept.
	Cells []DayCell

	Search         string
	SearchExpanded bool
	// Matched is the number of placeable events in range after filtering.
	Matched int
	// Unplaceable counts events of the whole snapshot that have no usable
	// start and so appear on no cell.
	Unplaceable int

	CanDrag   bool
	CanResize bool
	Drag      *DragPreview
	Resize    *ResizePreview
}

// Render builds the current frame. "Today" is re-read from the clock on
// every call.
func (v *View) Render() Snapshot {
	cells := dategrid.Cells(dategrid.Params{
		Anchor:    v.anchor,
		Mode:      v.mode,
		WeekStart: v.opts.WeekStart,
		Now:       v.now().In(v.loc),
		Selected:  v.selected,
	})
	start, end := v.Range()
	s := Snapshot{
		Mode:           v.mode,
		Anchor:         v.anchor,
		Selected:       v.selected,
		RangeStart:     start,
		RangeEnd:       end,
		Weekdays:       dategrid.Weekdays(v.opts.WeekStart),
		Cells:          make([]DayCell, 0, len(cells)),
		Search:         v.search,
		SearchExpanded: v.searchExpanded,
		Unplaceable:    v.all.Unplaceable(),
		CanDrag:        v.DragAllowed(),
		CanResize:      v.ResizeAllowed(),
	}
	days := make([]time.Time, len(cells))
	for i, c := range cells {
		days[i] = c.Date
	}
	buckets := v.filtered.ByDay(days)
	for i, c := range cells {
		events := buckets[i]
		if v.mode == dategrid.ViewAgenda && len(events) == 0 {
			continue
		}
		s.Matched += len(events)
		s.Cells = append(s.Cells, DayCell{Cell: c, ID: CellID(c.Date), Events: events})
	}
	if sess, ok := v.drag.Session(); ok {
		s.Drag = &DragPreview{
			EventID:    sess.EventID,
			Offset:     sess.Offset(),
			DropTarget: sess.DropTarget,
			Dragging:   v.drag.Dragging(),
		}
	}
	if sess, ok := v.resize.Session(); ok {
		s.Resize = &ResizePreview{EventID: sess.EventID, Edge: sess.Edge, LiveMinutes: sess.LiveMinutes}
	}
	return s
}

// Title is a human heading for the visible period.
func (s Snapshot) Title() string {
	switch s.Mode {
	case dategrid.ViewWeek:
		if s.RangeStart.Year() != s.RangeEnd.Year() {
			return fmt.Sprintf("%s - %s", s.RangeStart.Format("Jan 2, 2006"), s.RangeEnd.Format("Jan 2, 2006"))
		}
		return fmt.Sprintf("%s - %s", s.RangeStart.Format("Jan 2"), s.RangeEnd.Format("Jan 2, 2006"))
	case dategrid.ViewDay:
		return s.Anchor.Format("Monday, January 2, 2006")
	default:
		return s.Anchor.Format("January 2006")
	}
}

// Rows splits month and week cells into weeks of seven.
func (s Snapshot) Rows() [][]DayCell {
	if s.Mode == dategrid.ViewAgenda || s.Mode == dategrid.ViewDay {
		return [][]DayCell{s.Cells}
	}
	var rows [][]DayCell
	for i := 0; i < len(s.Cells); i += 7 {
		end := min(i+7, len(s.Cells))
		rows = append(rows, s.Cells[i:end])
	}
	return rows
}
