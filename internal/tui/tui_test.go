package tui

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"sessioncal/internal/config"
	"sessioncal/internal/dategrid"
	"sessioncal/internal/model"
)

var fixedNow = time.Date(2026, 10, 14, 12, 0, 0, 0, time.UTC)

type moveCall struct {
	id    string
	start time.Time
}

type resizeCall struct {
	id      string
	minutes int
	edge    model.Edge
}

type fakeStore struct {
	events  []model.CalendarEvent
	moves   []moveCall
	resizes []resizeCall
	failErr error
}

func (f *fakeStore) List(context.Context) ([]model.CalendarEvent, error) {
	return f.events, nil
}

func (f *fakeStore) Move(_ context.Context, id string, start time.Time) (model.CalendarEvent, error) {
	f.moves = append(f.moves, moveCall{id, start})
	if f.failErr != nil {
		return model.CalendarEvent{}, f.failErr
	}
	for i, ev := range f.events {
		if ev.ID == id {
			f.events[i] = ev.WithStart(start)
			return f.events[i], nil
		}
	}
	return model.CalendarEvent{}, errors.New("not found")
}

func (f *fakeStore) Resize(_ context.Context, id string, minutes int, edge model.Edge) (model.CalendarEvent, error) {
	f.resizes = append(f.resizes, resizeCall{id, minutes, edge})
	for i, ev := range f.events {
		if ev.ID == id {
			f.events[i] = ev.WithDuration(minutes, edge)
			return f.events[i], nil
		}
	}
	return model.CalendarEvent{}, errors.New("not found")
}

func at(day, h, min int) time.Time {
	return time.Date(2026, 10, day, h, min, 0, 0, time.UTC)
}

// newModel returns a 140x40 model loaded with two sessions. With that
// size month cells are 20x6 and the grid starts Mon Sep 28.
func newModel(t *testing.T) (*Model, *fakeStore) {
	t.Helper()
	st := &fakeStore{events: []model.CalendarEvent{
		{ID: "iv", Title: "Participant interview", Location: "Lab 2", Start: at(14, 10, 30), End: at(14, 11, 30),
			Attendees: []model.Attendee{{Name: "Ines Ortega"}}},
		{ID: "fg", Title: "Focus group", Start: at(16, 15, 0), End: at(16, 16, 30)},
	}}
	cfg := config.DefaultConfig()
	m := New(context.Background(), st, cfg, func() time.Time { return fixedNow })
	update(t, m, tea.WindowSizeMsg{Width: 140, Height: 40})
	update(t, m, m.Init()())
	m.View()
	return m, st
}

func update(t *testing.T, m *Model, msg tea.Msg) tea.Cmd {
	t.Helper()
	_, cmd := m.Update(msg)
	m.View()
	return cmd
}

func mouse(action tea.MouseAction, x, y int) tea.MouseMsg {
	return tea.MouseMsg{X: x, Y: y, Action: action, Button: tea.MouseButtonLeft}
}

func key(s string) tea.KeyMsg {
	switch s {
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "backspace":
		return tea.KeyMsg{Type: tea.KeyBackspace}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestMonthRenderAndHits(t *testing.T) {
	m, _ := newModel(t)
	out := m.View()
	for _, want := range []string{"October 2026", "Participant", "Focus group"} {
		if !strings.Contains(out, want) {
			t.Errorf("frame missing %q", want)
		}
	}
	hits := m.cal.HitMap()
	if cells, events := hits.Len(); cells != 42 || events != 2 {
		t.Fatalf("hit map: %d cells, %d events", cells, events)
	}
	if d, ok := hits.PositionToDate(65, 22); !ok || !dategrid.SameDay(d, at(22, 0, 0)) {
		t.Fatalf("PositionToDate: %v %v", d, ok)
	}
	if hit, ok := hits.EventAt(45, 16); !ok || hit.EventID != "iv" {
		t.Fatalf("EventAt: %+v %v", hit, ok)
	}
}

func TestDragMovesSession(t *testing.T) {
	m, st := newModel(t)

	update(t, m, mouse(tea.MouseActionPress, 45, 16))
	update(t, m, mouse(tea.MouseActionMotion, 55, 19))
	update(t, m, mouse(tea.MouseActionMotion, 65, 22))
	if !strings.Contains(m.View(), "to Thu Oct 22") {
		t.Fatalf("drag preview missing:\n%s", m.View())
	}
	cmd := update(t, m, mouse(tea.MouseActionRelease, 65, 22))
	if cmd == nil {
		t.Fatal("release did not schedule a store write")
	}
	saved := cmd()
	if len(st.moves) != 1 || st.moves[0].id != "iv" || !st.moves[0].start.Equal(at(22, 10, 30)) {
		t.Fatalf("moves: %+v", st.moves)
	}

	reload := update(t, m, saved)
	if reload == nil || !strings.Contains(m.status, "Moved") {
		t.Fatalf("status %q, reload %v", m.status, reload)
	}
	update(t, m, reload())
	if ev, _ := m.cal.Event("iv"); !ev.Start.Equal(at(22, 10, 30)) {
		t.Fatalf("view not refreshed: %s", ev.Start)
	}
}

func TestClickShowsDetails(t *testing.T) {
	m, st := newModel(t)
	update(t, m, mouse(tea.MouseActionPress, 45, 16))
	if cmd := update(t, m, mouse(tea.MouseActionRelease, 45, 16)); cmd != nil {
		t.Fatal("click scheduled a command")
	}
	if !strings.Contains(m.status, "Participant interview") || !strings.Contains(m.status, "Ines Ortega") {
		t.Fatalf("status: %q", m.status)
	}
	if len(st.moves) != 0 {
		t.Fatal("click moved the session")
	}

	update(t, m, mouse(tea.MouseActionPress, 85, 25))
	update(t, m, mouse(tea.MouseActionRelease, 85, 25))
	if !strings.Contains(m.status, "Fri Oct 23, 2026") {
		t.Fatalf("date click status: %q", m.status)
	}
}

func TestBlurCancelsDrag(t *testing.T) {
	m, st := newModel(t)
	update(t, m, mouse(tea.MouseActionPress, 45, 16))
	update(t, m, mouse(tea.MouseActionMotion, 65, 22))
	update(t, m, tea.BlurMsg{})
	if m.cal.Busy() {
		t.Fatal("blur left a drag active")
	}
	if cmd := update(t, m, mouse(tea.MouseActionRelease, 65, 22)); cmd != nil {
		t.Fatal("release after blur scheduled a command")
	}
	if len(st.moves) != 0 {
		t.Fatalf("moves: %+v", st.moves)
	}
}

func TestWeekResize(t *testing.T) {
	m, st := newModel(t)
	update(t, m, key("w"))
	if !strings.Contains(m.View(), "Oct 12 - Oct 18, 2026") {
		t.Fatalf("week title missing:\n%s", m.View())
	}

	// Wed is column 2 of 19 wide after the gutter; 10:30-11:30 covers
	// rows 7 and 8 under the header.
	update(t, m, mouse(tea.MouseActionPress, 50, 11))
	if !m.cal.Busy() {
		t.Fatal("end handle did not start a resize")
	}
	update(t, m, mouse(tea.MouseActionMotion, 50, 13))
	if !strings.Contains(m.View(), "120 min") {
		t.Fatalf("resize preview missing:\n%s", m.View())
	}
	cmd := update(t, m, mouse(tea.MouseActionRelease, 50, 13))
	if cmd == nil {
		t.Fatal("resize did not schedule a store write")
	}
	cmd()
	if len(st.resizes) != 1 || st.resizes[0] != (resizeCall{"iv", 120, model.EdgeEnd}) {
		t.Fatalf("resizes: %+v", st.resizes)
	}
}

func TestDragThresholdInCells(t *testing.T) {
	tests := []struct {
		name     string
		dx, dy   int
		dragging bool
	}{
		{"same cell", 0, 0, false},
		{"one column", 1, 0, false},
		{"one row", 0, 1, false},
		{"two columns", 2, 0, true},
		{"two rows", 0, -2, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, _ := newModel(t)
			update(t, m, mouse(tea.MouseActionPress, 45, 16))
			update(t, m, mouse(tea.MouseActionMotion, 45+tt.dx, 16+tt.dy))
			drag := m.cal.Render().Drag
			if drag == nil {
				t.Fatal("press on an event did not arm a drag")
			}
			if drag.Dragging != tt.dragging {
				t.Fatalf("dragging: got %v, want %v", drag.Dragging, tt.dragging)
			}
		})
	}
}

func TestMonthHasNoResizeHandles(t *testing.T) {
	m, st := newModel(t)
	if hit, _ := m.cal.HitMap().EventAt(45, 16); hit.Handle {
		t.Fatal("month view registered a handle")
	}
	update(t, m, mouse(tea.MouseActionPress, 45, 16))
	update(t, m, mouse(tea.MouseActionRelease, 45, 18))
	if len(st.resizes) != 0 || len(st.moves) != 0 {
		t.Fatal("small wiggle changed the session")
	}
}

func TestKeys(t *testing.T) {
	m, _ := newModel(t)

	update(t, m, key("n"))
	if !strings.Contains(m.View(), "November 2026") {
		t.Fatal("next did not advance")
	}
	update(t, m, key("t"))
	if !m.cal.Anchor().Equal(at(14, 0, 0)) {
		t.Fatalf("today: %s", m.cal.Anchor())
	}

	update(t, m, key("/"))
	for _, r := range "ortegx" {
		update(t, m, key(string(r)))
	}
	update(t, m, key("backspace"))
	update(t, m, key("a"))
	if m.cal.Search() != "ortega" || m.cal.Mode() != dategrid.ViewMonth {
		t.Fatalf("search %q, mode %s", m.cal.Search(), m.cal.Mode())
	}
	update(t, m, key("enter"))
	if _, events := m.cal.HitMap().Len(); events != 1 {
		t.Fatalf("filtered events: %d", events)
	}
	update(t, m, key("esc"))
	if m.cal.Search() != "" {
		t.Fatal("esc did not clear the search")
	}

	update(t, m, key("a"))
	if m.cal.Mode() != dategrid.ViewAgenda {
		t.Fatalf("mode: %s", m.cal.Mode())
	}
	if cmd := update(t, m, key("q")); cmd == nil {
		t.Fatal("q did not quit")
	}
}

func TestAgendaClickOnly(t *testing.T) {
	m, st := newModel(t)
	update(t, m, key("a"))
	// header, then "Wed Oct 14" and its session line
	update(t, m, mouse(tea.MouseActionPress, 10, 4))
	update(t, m, mouse(tea.MouseActionMotion, 10, 9))
	update(t, m, mouse(tea.MouseActionRelease, 10, 9))
	if len(st.moves) != 0 {
		t.Fatal("agenda allowed a drag")
	}
	if !strings.Contains(m.status, "Participant interview") {
		t.Fatalf("status: %q", m.status)
	}
}

func TestStoreErrorIsShownAndReloads(t *testing.T) {
	m, st := newModel(t)
	st.failErr = errors.New("database is locked")

	update(t, m, mouse(tea.MouseActionPress, 45, 16))
	update(t, m, mouse(tea.MouseActionMotion, 65, 22))
	cmd := update(t, m, mouse(tea.MouseActionRelease, 65, 22))
	if reload := update(t, m, cmd()); reload == nil {
		t.Fatal("failed write did not trigger a reload")
	}
	if !strings.Contains(m.View(), "database is locked") {
		t.Fatalf("error not shown:\n%s", m.View())
	}
}

func TestDragToggle(t *testing.T) {
	m, st := newModel(t)
	update(t, m, key("D"))
	update(t, m, mouse(tea.MouseActionPress, 45, 16))
	update(t, m, mouse(tea.MouseActionMotion, 65, 22))
	update(t, m, mouse(tea.MouseActionRelease, 65, 22))
	if len(st.moves) != 0 {
		t.Fatal("drag disabled but session moved")
	}
	if !strings.Contains(m.status, "Participant interview") {
		t.Fatalf("press on event should still click: %q", m.status)
	}
}
