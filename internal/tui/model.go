// Package tui is the terminal host of the calendar: a bubbletea program
// that renders a calview.View with lipgloss and feeds it mouse input.
package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"sessioncal/internal/calview"
	"sessioncal/internal/config"
	"sessioncal/internal/dategrid"
	appLog "sessioncal/internal/log"
	"sessioncal/internal/model"
)

// SessionStore is the part of the session store the terminal UI uses.
type SessionStore interface {
	List(ctx context.Context) ([]model.CalendarEvent, error)
	Move(ctx context.Context, id string, newStart time.Time) (model.CalendarEvent, error)
	Resize(ctx context.Context, id string, minutes int, edge model.Edge) (model.CalendarEvent, error)
}

// Terminal geometry. One row of the week and day views is slotMinutes
// long. A press becomes a drag once the pointer is more than
// dragThreshold cells away from it along either axis.
const (
	slotMinutes    = 30
	dragThreshold  = 1
	headerLines    = 3
	footerLines    = 1
	gutterWidth    = 6
	minCellWidth   = 12
	minCellHeight  = 3
	defaultWidth   = 112
	defaultHeight  = 40
	firstHour      = 7
	lastHour       = 21
	maxSearchRunes = 64
)

type sessionsLoadedMsg struct {
	events []model.CalendarEvent
}

type sessionSavedMsg struct {
	ev   model.CalendarEvent
	verb string
}

type errMsg struct {
	err error
}

// Model is the bubbletea model. It must be used through a pointer since
// the view's callbacks close over it.
type Model struct {
	ctx    context.Context
	store  SessionStore
	cal    *calview.View
	styles styles

	dragOn, resizeOn bool

	width, height int
	status        string
	err           error

	// commands queued by view callbacks during one Update
	pending []tea.Cmd
}

// New builds the terminal model. now may be nil.
func New(ctx context.Context, store SessionStore, cfg *config.Config, now func() time.Time) *Model {
	m := &Model{
		ctx:      ctx,
		store:    store,
		styles:   defaultStyles(),
		dragOn:   cfg.Calendar.EnableDragDrop,
		resizeOn: cfg.Calendar.EnableResize,
	}
	mode, _ := dategrid.ParseViewMode(cfg.Calendar.DefaultView)
	m.cal = calview.New(calview.Options{
		EnableDragDrop: cfg.Calendar.EnableDragDrop,
		EnableResize:   cfg.Calendar.EnableResize,
		WeekStart:      cfg.FirstWeekday(),
		Mode:           mode,
		Location:       cfg.Location(),
		Now:            now,
		Geometry: calview.Geometry{
			DragThreshold:   dragThreshold,
			PixelsPerMinute: 1.0 / slotMinutes,
			MinMinutes:      cfg.Calendar.MinEventMinutes,
			MaxMinutes:      cfg.Calendar.MaxEventMinutes,
			SnapMinutes:     cfg.Calendar.SnapMinutes,
		},
		Callbacks: calview.Callbacks{
			OnEventMove: func(id string, start time.Time) error {
				m.queue(m.moveCmd(id, start))
				return nil
			},
			OnEventResize: func(id string, minutes int, edge model.Edge) error {
				m.queue(m.resizeCmd(id, minutes, edge))
				return nil
			},
			OnEventClick: func(ev model.CalendarEvent) { m.status = describe(ev) },
			OnDateClick: func(date time.Time) {
				m.status = "Selected " + date.Format("Mon Jan 2, 2006")
			},
			OnViewChange: func(mode dategrid.ViewMode) { m.status = "" },
		},
	})
	return m
}

// Run starts the program on the alternate screen with mouse and focus
// reporting and blocks until it exits.
func Run(ctx context.Context, m *Model) error {
	p := tea.NewProgram(m,
		tea.WithContext(ctx),
		tea.WithAltScreen(),
		tea.WithMouseCellMotion(),
		tea.WithReportFocus(),
	)
	_, err := p.Run()
	if err != nil && ctx.Err() != nil {
		return nil
	}
	return err
}

func (m *Model) Init() tea.Cmd {
	return m.load()
}

func (m *Model) queue(cmd tea.Cmd) {
	m.pending = append(m.pending, cmd)
}

func (m *Model) flush() tea.Cmd {
	cmds := m.pending
	m.pending = nil
	switch len(cmds) {
	case 0:
		return nil
	case 1:
		return cmds[0]
	default:
		return tea.Batch(cmds...)
	}
}

func (m *Model) load() tea.Cmd {
	return func() tea.Msg {
		events, err := m.store.List(m.ctx)
		if err != nil {
			return errMsg{fmt.Errorf("load sessions: %w", err)}
		}
		return sessionsLoadedMsg{events: events}
	}
}

func (m *Model) moveCmd(id string, start time.Time) tea.Cmd {
	return func() tea.Msg {
		ev, err := m.store.Move(m.ctx, id, start)
		if err != nil {
			return errMsg{fmt.Errorf("move session: %w", err)}
		}
		return sessionSavedMsg{ev: ev, verb: "Moved"}
	}
}

func (m *Model) resizeCmd(id string, minutes int, edge model.Edge) tea.Cmd {
	return func() tea.Msg {
		ev, err := m.store.Resize(m.ctx, id, minutes, edge)
		if err != nil {
			return errMsg{fmt.Errorf("resize session: %w", err)}
		}
		return sessionSavedMsg{ev: ev, verb: "Resized"}
	}
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height

	case sessionsLoadedMsg:
		m.cal.SetEvents(msg.events)

	case sessionSavedMsg:
		m.err = nil
		m.status = fmt.Sprintf("%s %q", msg.verb, msg.ev.Title)
		return m, m.load()

	case errMsg:
		appLog.Error("terminal UI operation failed", msg.err)
		m.err = msg.err
		// Resync with the store: a failed write leaves it untouched.
		return m, m.load()

	case tea.BlurMsg:
		m.cal.PointerCancel()

	case tea.MouseMsg:
		m.handleMouse(msg)

	case tea.KeyMsg:
		if cmd := m.handleKey(msg); cmd != nil {
			return m, cmd
		}
	}
	return m, m.flush()
}

func (m *Model) handleMouse(msg tea.MouseMsg) {
	x, y := float64(msg.X), float64(msg.Y)
	switch msg.Action {
	case tea.MouseActionPress:
		switch msg.Button {
		case tea.MouseButtonLeft:
			m.cal.PointerDown(x, y)
		case tea.MouseButtonWheelUp:
			if !m.cal.Busy() {
				m.cal.Prev()
			}
		case tea.MouseButtonWheelDown:
			if !m.cal.Busy() {
				m.cal.Next()
			}
		}
	case tea.MouseActionMotion:
		m.cal.PointerMove(x, y)
	case tea.MouseActionRelease:
		m.cal.PointerUp(x, y)
	}
}

// handleKey returns a command only for keys that end the program.
func (m *Model) handleKey(msg tea.KeyMsg) tea.Cmd {
	key := msg.String()
	if key == "ctrl+c" {
		return tea.Quit
	}
	if m.cal.SearchExpanded() {
		m.handleSearchKey(msg)
		return nil
	}
	switch key {
	case "q":
		return tea.Quit
	case "left", "h", "p":
		m.cal.Prev()
	case "right", "l", "n":
		m.cal.Next()
	case "t":
		m.cal.Today()
	case "m":
		m.cal.SetViewMode(dategrid.ViewMonth)
	case "w":
		m.cal.SetViewMode(dategrid.ViewWeek)
	case "d":
		m.cal.SetViewMode(dategrid.ViewDay)
	case "a":
		m.cal.SetViewMode(dategrid.ViewAgenda)
	case "/":
		m.cal.ToggleSearch()
	case "esc":
		if m.cal.Busy() {
			m.cal.CancelInteraction()
		} else {
			m.cal.ClearSearch()
		}
	case "D":
		m.dragOn = !m.dragOn
		m.cal.SetDragDrop(m.dragOn)
		m.status = "Drag and drop " + onOff(m.dragOn)
	case "R":
		m.resizeOn = !m.resizeOn
		m.cal.SetResize(m.resizeOn)
		m.status = "Resize " + onOff(m.resizeOn)
	case "r":
		m.queue(m.load())
	}
	return nil
}

func (m *Model) handleSearchKey(msg tea.KeyMsg) {
	term := m.cal.Search()
	switch msg.Type {
	case tea.KeyEsc:
		m.cal.ClearSearch()
	case tea.KeyEnter:
		m.cal.ToggleSearch()
	case tea.KeyBackspace:
		if r := []rune(term); len(r) > 0 {
			m.cal.SetSearch(string(r[:len(r)-1]))
		}
	case tea.KeySpace:
		m.cal.SetSearch(term + " ")
	case tea.KeyRunes:
		if len([]rune(term))+len(msg.Runes) <= maxSearchRunes {
			m.cal.SetSearch(term + string(msg.Runes))
		}
	}
}

func onOff(on bool) string {
	if on {
		return "on"
	}
	return "off"
}

func describe(ev model.CalendarEvent) string {
	var b strings.Builder
	b.WriteString(ev.Title)
	if ev.Placeable() {
		fmt.Fprintf(&b, " · %s %s-%s", ev.Start.Format("Mon Jan 2"), ev.Start.Format("15:04"), ev.EffectiveEnd().Format("15:04"))
	}
	if ev.Location != "" {
		b.WriteString(" · " + ev.Location)
	}
	if ev.StudyName != "" {
		b.WriteString(" · " + ev.StudyName)
	}
	if l := ev.Status.Label(); l != "" {
		b.WriteString(" · " + l)
	}
	if n := len(ev.Attendees); n > 0 {
		names := make([]string, 0, n)
		for _, a := range ev.Attendees {
			names = append(names, a.DisplayName())
		}
		b.WriteString(" · " + strings.Join(names, ", "))
	}
	return b.String()
}
