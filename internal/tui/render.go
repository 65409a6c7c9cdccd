package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"sessioncal/internal/calview"
	"sessioncal/internal/dategrid"
	"sessioncal/internal/model"
)

var modeTabs = []dategrid.ViewMode{dategrid.ViewMonth, dategrid.ViewWeek, dategrid.ViewDay, dategrid.ViewAgenda}

// View lays out the frame and registers every cell and event region with
// the view's hit map, so the pointer always resolves against what is on
// screen.
func (m *Model) View() string {
	snap := m.cal.Render()
	hits := m.cal.HitMap()
	hits.Reset()

	lines := m.header(snap)
	switch snap.Mode {
	case dategrid.ViewMonth:
		lines = append(lines, m.month(snap, hits)...)
	case dategrid.ViewWeek, dategrid.ViewDay:
		lines = append(lines, m.timeline(snap, hits)...)
	default:
		lines = append(lines, m.agenda(snap, hits)...)
	}
	lines = append(lines, m.styles.Help.Render("←/→ period · t today · m/w/d/a view · / search · D drag · R resize · q quit"))
	return strings.Join(lines, "\n")
}

func (m *Model) dims() (int, int) {
	w, h := m.width, m.height
	if w <= 0 {
		w = defaultWidth
	}
	if h <= 0 {
		h = defaultHeight
	}
	return w, h
}

func (m *Model) header(snap calview.Snapshot) []string {
	st := m.styles
	tabs := make([]string, 0, len(modeTabs))
	for _, mode := range modeTabs {
		label := strings.ToUpper(mode.String()[:1]) + mode.String()[1:]
		if mode == snap.Mode {
			tabs = append(tabs, st.ActiveTab.Render(label))
		} else {
			tabs = append(tabs, st.Tab.Render(label))
		}
	}
	title := st.Title.Render(snap.Title()) + "   " + strings.Join(tabs, " ")
	if snap.Unplaceable > 0 {
		title += st.Status.Render(fmt.Sprintf("   %d without start", snap.Unplaceable))
	}

	var info string
	switch {
	case snap.Drag != nil && snap.Drag.Dragging:
		target := "no day"
		if !snap.Drag.DropTarget.IsZero() {
			target = snap.Drag.DropTarget.Format("Mon Jan 2")
		}
		ev, _ := m.cal.Event(snap.Drag.EventID)
		info = st.Status.Render(fmt.Sprintf("Moving %q to %s", ev.Title, target))
	case snap.Resize != nil:
		ev, _ := m.cal.Event(snap.Resize.EventID)
		info = st.Status.Render(fmt.Sprintf("Resizing %q from the %s: %d min", ev.Title, snap.Resize.Edge, snap.Resize.LiveMinutes))
	case snap.SearchExpanded:
		info = st.Search.Render("Search: " + snap.Search + "█")
	case m.err != nil:
		info = st.Error.Render(m.err.Error())
	case snap.Search != "":
		info = st.Search.Render(fmt.Sprintf("Filter %q: %d session(s)", snap.Search, snap.Matched))
	default:
		info = st.Status.Render(m.status)
	}

	var weekdays string
	w, _ := m.dims()
	switch snap.Mode {
	case dategrid.ViewMonth:
		cw := max(minCellWidth, w/7)
		for _, wd := range snap.Weekdays {
			weekdays += st.Weekday.Render(fit(wd.String()[:3], cw))
		}
	case dategrid.ViewWeek:
		cw := max(minCellWidth, (w-gutterWidth)/7)
		weekdays = strings.Repeat(" ", gutterWidth)
		for _, c := range snap.Cells {
			weekdays += st.Weekday.Render(fit(c.Date.Format("Mon 2"), cw))
		}
	case dategrid.ViewDay:
		weekdays = strings.Repeat(" ", gutterWidth) + st.Weekday.Render(snap.Anchor.Format("Monday"))
	}
	return []string{title, info, weekdays}
}

func (m *Model) dayStyle(c dategrid.Cell) lipgloss.Style {
	switch {
	case c.IsToday:
		return m.styles.Today
	case c.IsSelected:
		return m.styles.Selected
	case !c.IsCurrentPeriod:
		return m.styles.Outside
	default:
		return m.styles.Day
	}
}

func (m *Model) eventStyle(snap calview.Snapshot, ev model.CalendarEvent) lipgloss.Style {
	if snap.Drag != nil && snap.Drag.Dragging && snap.Drag.EventID == ev.ID {
		return m.styles.Dragged
	}
	return m.styles.event(ev.Category)
}

func isDropTarget(snap calview.Snapshot, date time.Time) bool {
	return snap.Drag != nil && snap.Drag.Dragging && !snap.Drag.DropTarget.IsZero() &&
		dategrid.SameDay(snap.Drag.DropTarget, date)
}

// month draws six rows of seven cells. The first line of a cell is its
// day number, the rest list the sessions starting that day.
func (m *Model) month(snap calview.Snapshot, hits *calview.HitMap) []string {
	w, h := m.dims()
	cw := max(minCellWidth, w/7)
	ch := max(minCellHeight, (h-headerLines-footerLines)/6)

	var lines []string
	for r, row := range snap.Rows() {
		block := make([]string, ch)
		for c, cell := range row {
			x, y := c*cw, headerLines+r*ch
			hits.RegisterCell(calview.Rect{X: float64(x), Y: float64(y), W: float64(cw), H: float64(ch)}, cell.Date)

			blank := lipgloss.NewStyle()
			if isDropTarget(snap, cell.Date) {
				blank = m.styles.DropTarget
			}
			label := fmt.Sprintf("%2d", cell.Date.Day())
			if cell.Date.Day() == 1 {
				label = cell.Date.Format("Jan 2")
			}
			block[0] += m.dayStyle(cell.Cell).Render(fit(label, 5)) + blank.Render(fit("", cw-5))

			slots := ch - 1
			for i := 0; i < slots; i++ {
				switch {
				case i < len(cell.Events) && (i < slots-1 || len(cell.Events) <= slots):
					ev := cell.Events[i]
					hits.RegisterEvent(calview.Rect{X: float64(x), Y: float64(y + 1 + i), W: float64(cw), H: 1}, ev.ID)
					block[1+i] += m.eventStyle(snap, ev).Render(fit(ev.Start.Format("15:04")+" "+ev.Title, cw-1)) + " "
				case i == slots-1 && len(cell.Events) > slots:
					block[1+i] += m.styles.Status.Render(fit(fmt.Sprintf("+%d more", len(cell.Events)-i), cw))
				default:
					block[1+i] += blank.Render(fit("", cw))
				}
			}
		}
		lines = append(lines, block...)
	}
	return lines
}

type block struct {
	ev         model.CalendarEvent
	start, end int
}

// placeBlock maps ev to timeline rows [start, end] of a day, clamped to
// the visible hours. ok is false when nothing of it is visible.
func placeBlock(ev model.CalendarEvent, snap calview.Snapshot, rows int) (block, bool) {
	start, end := ev.Start, ev.EffectiveEnd()
	if r := snap.Resize; r != nil && r.EventID == ev.ID {
		if r.Edge == model.EdgeStart {
			start = end.Add(-time.Duration(r.LiveMinutes) * time.Minute)
		} else {
			end = start.Add(time.Duration(r.LiveMinutes) * time.Minute)
		}
	}
	dayStart := time.Date(ev.Start.Year(), ev.Start.Month(), ev.Start.Day(), firstHour, 0, 0, 0, ev.Start.Location())
	from := int(start.Sub(dayStart) / time.Minute)
	to := int(end.Sub(dayStart) / time.Minute)
	if to <= from {
		to = from + 1
	}
	b := block{ev: ev, start: from / slotMinutes, end: (to+slotMinutes-1)/slotMinutes - 1}
	if from < 0 {
		b.start = 0
	}
	if b.end >= rows {
		b.end = rows - 1
	}
	return b, b.start < rows && b.end >= 0 && b.start <= b.end
}

// timeline draws the week and day views: one column per day, one row per
// slot. Block edges carry the resize handles.
func (m *Model) timeline(snap calview.Snapshot, hits *calview.HitMap) []string {
	w, _ := m.dims()
	cols := len(snap.Cells)
	cw := max(minCellWidth, (w-gutterWidth)/max(cols, 1))
	rows := (lastHour - firstHour) * 60 / slotMinutes
	st := m.styles

	grid := make([][]string, rows)
	for r := range grid {
		grid[r] = make([]string, cols)
	}
	for c, cell := range snap.Cells {
		x := gutterWidth + c*cw
		hits.RegisterCell(calview.Rect{X: float64(x), Y: headerLines, W: float64(cw), H: float64(rows)}, cell.Date)

		blank := lipgloss.NewStyle()
		if isDropTarget(snap, cell.Date) {
			blank = st.DropTarget
		}
		for r := range rows {
			fill := ""
			if r*slotMinutes%60 == 0 {
				fill = "·"
			}
			grid[r][c] = blank.Render(fit(fill, cw))
		}

		for _, ev := range cell.Events {
			b, ok := placeBlock(ev, snap, rows)
			if !ok {
				continue
			}
			y := headerLines + b.start
			height := b.end - b.start + 1
			hits.RegisterEvent(calview.Rect{X: float64(x), Y: float64(y), W: float64(cw), H: float64(height)}, ev.ID)

			style := m.eventStyle(snap, ev)
			title := ev.Start.Format("15:04") + " " + ev.Title
			if height == 1 {
				hits.RegisterHandle(calview.Rect{X: float64(x + cw - 2), Y: float64(y), W: 2, H: 1}, ev.ID, model.EdgeEnd)
				grid[b.start][c] = style.Render(fit(title, cw-2)) + st.Handle.Render("▾ ")
				continue
			}
			hits.RegisterHandle(calview.Rect{X: float64(x), Y: float64(y), W: 2, H: 1}, ev.ID, model.EdgeStart)
			hits.RegisterHandle(calview.Rect{X: float64(x), Y: float64(y + height - 1), W: float64(cw), H: 1}, ev.ID, model.EdgeEnd)
			grid[b.start][c] = st.Handle.Render("▴ ") + style.Render(fit(title, cw-2))
			for r := b.start + 1; r < b.end; r++ {
				text := ""
				if r == b.start+1 {
					text = firstNonEmpty(ev.Location, ev.StudyName)
				}
				grid[r][c] = style.Render(fit("  "+text, cw))
			}
			grid[b.end][c] = st.Handle.Render("▾") + style.Render(fit(strings.Repeat("▁", cw-1), cw-1))
		}
	}

	lines := make([]string, rows)
	for r := range rows {
		label := ""
		if r*slotMinutes%60 == 0 {
			label = fmt.Sprintf("%02d:00", firstHour+r*slotMinutes/60)
		}
		lines[r] = st.Gutter.Render(fit(label, gutterWidth)) + strings.Join(grid[r], "")
	}
	return lines
}

// agenda lists the days of the month that have sessions. Only clicks are
// supported here.
func (m *Model) agenda(snap calview.Snapshot, hits *calview.HitMap) []string {
	w, _ := m.dims()
	if len(snap.Cells) == 0 {
		return []string{m.styles.Status.Render("No sessions this month.")}
	}
	var lines []string
	for _, cell := range snap.Cells {
		y := headerLines + len(lines)
		hits.RegisterCell(calview.Rect{X: 0, Y: float64(y), W: float64(w), H: 1}, cell.Date)
		lines = append(lines, m.dayStyle(cell.Cell).Render(cell.Date.Format("Mon Jan 2")))
		for _, ev := range cell.Events {
			y := headerLines + len(lines)
			hits.RegisterEvent(calview.Rect{X: 0, Y: float64(y), W: float64(w), H: 1}, ev.ID)
			text := fmt.Sprintf("  %s-%s  %s", ev.Start.Format("15:04"), ev.EffectiveEnd().Format("15:04"), ev.Title)
			for _, extra := range []string{ev.Location, ev.StudyName, ev.Status.Label()} {
				if extra != "" {
					text += " · " + extra
				}
			}
			lines = append(lines, m.styles.event(ev.Category).Render(fit(text, w)))
		}
	}
	return lines
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
