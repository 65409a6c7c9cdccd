package web

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"time"

	"sessioncal/internal/calview"
	"sessioncal/internal/dategrid"
	"sessioncal/internal/eventindex"
	"sessioncal/internal/ics"
	"sessioncal/internal/interact"
	appLog "sessioncal/internal/log"
	"sessioncal/internal/model"
	"sessioncal/internal/store"
)

type attendeeDTO struct {
	ID    string `json:"id,omitempty"`
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
}

// sessionDTO is the JSON view of a session.
type sessionDTO struct {
	ID              string         `json:"id"`
	Title           string         `json:"title"`
	Description     string         `json:"description,omitempty"`
	Location        string         `json:"location,omitempty"`
	StudyName       string         `json:"study_name,omitempty"`
	Status          string         `json:"status"`
	StatusLabel     string         `json:"status_label"`
	Category        model.Category `json:"category"`
	Start           *time.Time     `json:"start"`
	End             *time.Time     `json:"end"`
	DurationMinutes int            `json:"duration_minutes"`
	Attendees       []attendeeDTO  `json:"attendees"`
}

func (s *Server) toDTO(ev model.CalendarEvent) sessionDTO {
	dto := sessionDTO{
		ID:              ev.ID,
		Title:           ev.Title,
		Description:     ev.Description,
		Location:        ev.Location,
		StudyName:       ev.StudyName,
		Status:          string(ev.Status),
		StatusLabel:     ev.Status.Label(),
		Category:        ev.Category,
		DurationMinutes: ev.DurationMinutes(),
		Attendees:       make([]attendeeDTO, 0, len(ev.Attendees)),
	}
	if ev.Placeable() {
		start := ev.Start.In(s.loc)
		end := ev.EffectiveEnd().In(s.loc)
		dto.Start, dto.End = &start, &end
	}
	for _, a := range ev.Attendees {
		dto.Attendees = append(dto.Attendees, attendeeDTO{ID: a.ID, Name: a.DisplayName(), Email: a.Email})
	}
	return dto
}

type sessionsResponse struct {
	Sessions    []sessionDTO `json:"sessions"`
	Unplaceable int          `json:"unplaceable"`
	Search      string       `json:"search,omitempty"`
}

// GET /api/sessions?q=term
func (s *Server) handleSessions(w http.ResponseWriter, r *http.Request) {
	events, err := s.events(r.Context())
	if err != nil {
		appLog.Error("api sessions: list failed", err)
		writeError(w, http.StatusInternalServerError, "failed to load sessions")
		return
	}
	term := r.URL.Query().Get("q")
	idx := eventindex.New(eventindex.Filter(events, term))

	// Placed sessions come first by start, then the ones without a start
	// in store order so they can still be found and repaired.
	resp := sessionsResponse{Sessions: []sessionDTO{}, Unplaceable: idx.Unplaceable(), Search: term}
	for _, ev := range idx.Placed() {
		resp.Sessions = append(resp.Sessions, s.toDTO(ev))
	}
	for _, ev := range idx.All() {
		if !ev.Placeable() {
			resp.Sessions = append(resp.Sessions, s.toDTO(ev))
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// GET /api/sessions/{id}
func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	ev, err := s.store.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		s.storeError(w, "get", err)
		return
	}
	writeJSON(w, http.StatusOK, s.toDTO(ev))
}

// DELETE /api/sessions/{id}
func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.store.Delete(r.Context(), id); err != nil {
		s.storeError(w, "delete", err)
		return
	}
	s.Invalidate()
	appLog.Info("session deleted", "id", id)
	w.WriteHeader(http.StatusNoContent)
}

type moveRequest struct {
	// Start is an absolute RFC 3339 instant.
	Start *time.Time `json:"start,omitempty"`
	// Day (YYYY-MM-DD) moves the session to that day keeping its time of
	// day in the display zone.
	Day string `json:"day,omitempty"`
}

// POST /api/sessions/{id}/move
func (s *Server) handleMove(w http.ResponseWriter, r *http.Request) {
	if !s.cfg.Calendar.EnableDragDrop {
		writeError(w, http.StatusForbidden, "moving sessions is disabled")
		return
	}
	var req moveRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	id := r.PathValue("id")

	var newStart time.Time
	switch {
	case req.Start != nil:
		newStart = *req.Start
	case req.Day != "":
		day, err := time.ParseInLocation(time.DateOnly, req.Day, s.loc)
		if err != nil {
			writeError(w, http.StatusBadRequest, "day must be YYYY-MM-DD")
			return
		}
		cur, err := s.store.Get(r.Context(), id)
		if err != nil {
			s.storeError(w, "move", err)
			return
		}
		if !cur.Placeable() {
			writeError(w, http.StatusUnprocessableEntity, "session has no start")
			return
		}
		if dategrid.SameDay(cur.Start.In(s.loc), day) {
			writeJSON(w, http.StatusOK, s.toDTO(cur))
			return
		}
		newStart = interact.CombineDateAndClock(day, cur.Start.In(s.loc))
	default:
		writeError(w, http.StatusBadRequest, "start or day is required")
		return
	}

	ev, err := s.store.Move(r.Context(), id, newStart)
	if err != nil {
		s.storeError(w, "move", err)
		return
	}
	s.Invalidate()
	appLog.Info("session moved", "id", id, "start", ev.Start)
	writeJSON(w, http.StatusOK, s.toDTO(ev))
}

type resizeRequest struct {
	Minutes int    `json:"minutes"`
	Edge    string `json:"edge"`
}

// POST /api/sessions/{id}/resize
func (s *Server) handleResize(w http.ResponseWriter, r *http.Request) {
	if !s.cfg.Calendar.EnableResize {
		writeError(w, http.StatusForbidden, "resizing sessions is disabled")
		return
	}
	var req resizeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	edge, ok := model.ParseEdge(req.Edge)
	if !ok {
		writeError(w, http.StatusBadRequest, "edge must be start or end")
		return
	}
	cal := s.cfg.Calendar
	if req.Minutes < cal.MinEventMinutes || req.Minutes > cal.MaxEventMinutes {
		writeError(w, http.StatusUnprocessableEntity, "minutes out of range")
		return
	}

	id := r.PathValue("id")
	ev, err := s.store.Resize(r.Context(), id, req.Minutes, edge)
	if err != nil {
		s.storeError(w, "resize", err)
		return
	}
	s.Invalidate()
	appLog.Info("session resized", "id", id, "minutes", req.Minutes, "edge", edge)
	writeJSON(w, http.StatusOK, s.toDTO(ev))
}

// GET /api/sessions.ics
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	events, err := s.events(r.Context())
	if err != nil {
		appLog.Error("api export: list failed", err)
		writeError(w, http.StatusInternalServerError, "failed to load sessions")
		return
	}
	var buf bytes.Buffer
	if _, err := ics.Export(&buf, events, s.now()); err != nil {
		appLog.Error("api export: serialize failed", err)
		writeError(w, http.StatusInternalServerError, "failed to export sessions")
		return
	}
	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="sessions.ics"`)
	_, _ = w.Write(buf.Bytes())
}

var errBadAnchor = errors.New("anchor must be YYYY-MM-DD")

type cellDTO struct {
	ID       string       `json:"id"`
	Date     string       `json:"date"`
	Current  bool         `json:"current"`
	Today    bool         `json:"today"`
	Selected bool         `json:"selected"`
	Events   []sessionDTO `json:"events"`
}

type calendarResponse struct {
	Mode        string    `json:"mode"`
	Title       string    `json:"title"`
	Anchor      string    `json:"anchor"`
	Prev        string    `json:"prev"`
	Next        string    `json:"next"`
	RangeStart  time.Time `json:"range_start"`
	RangeEnd    time.Time `json:"range_end"`
	WeekStart   string    `json:"week_start"`
	Weekdays    []string  `json:"weekdays"`
	TimeZone    string    `json:"timezone"`
	Search      string    `json:"search,omitempty"`
	Matched     int       `json:"matched"`
	Unplaceable int       `json:"unplaceable"`
	CanDrag     bool      `json:"can_drag"`
	CanResize   bool      `json:"can_resize"`
	Cells       []cellDTO `json:"cells"`
}

// calendarView builds a headless view for one request from the query
// string: mode, anchor (YYYY-MM-DD), selected (YYYY-MM-DD) and q.
func (s *Server) calendarView(r *http.Request) (*calview.View, error) {
	q := r.URL.Query()
	mode, ok := dategrid.ParseViewMode(q.Get("mode"))
	if !ok {
		mode, _ = dategrid.ParseViewMode(s.cfg.Calendar.DefaultView)
	}
	var anchor time.Time
	if a := q.Get("anchor"); a != "" {
		t, err := time.ParseInLocation(time.DateOnly, a, s.loc)
		if err != nil {
			return nil, errBadAnchor
		}
		anchor = t
	}

	events, err := s.events(r.Context())
	if err != nil {
		return nil, err
	}
	cal := s.cfg.Calendar
	v := calview.New(calview.Options{
		EnableDragDrop: cal.EnableDragDrop,
		EnableResize:   cal.EnableResize,
		WeekStart:      s.cfg.FirstWeekday(),
		Mode:           mode,
		Anchor:         anchor,
		Location:       s.loc,
		Now:            s.now,
		Geometry: calview.Geometry{
			DragThreshold:   interact.DefaultDragThreshold,
			PixelsPerMinute: cal.PixelsPerMinute,
			MinMinutes:      cal.MinEventMinutes,
			MaxMinutes:      cal.MaxEventMinutes,
			SnapMinutes:     cal.SnapMinutes,
		},
	})
	v.SetEvents(events)
	v.SetSearch(q.Get("q"))
	if sel := q.Get("selected"); sel != "" {
		if t, err := time.ParseInLocation(time.DateOnly, sel, s.loc); err == nil {
			v.SelectDate(t)
		}
	}
	return v, nil
}

func (s *Server) calendarResponse(v *calview.View) calendarResponse {
	snap := v.Render()
	resp := calendarResponse{
		Mode:        snap.Mode.String(),
		Title:       snap.Title(),
		Anchor:      snap.Anchor.Format(time.DateOnly),
		Prev:        dategrid.Shift(snap.Anchor, snap.Mode, -1).Format(time.DateOnly),
		Next:        dategrid.Shift(snap.Anchor, snap.Mode, 1).Format(time.DateOnly),
		RangeStart:  snap.RangeStart,
		RangeEnd:    snap.RangeEnd,
		WeekStart:   s.cfg.WeekStart,
		TimeZone:    s.loc.String(),
		Search:      snap.Search,
		Matched:     snap.Matched,
		Unplaceable: snap.Unplaceable,
		CanDrag:     snap.CanDrag,
		CanResize:   snap.CanResize,
		Cells:       make([]cellDTO, 0, len(snap.Cells)),
	}
	for _, wd := range snap.Weekdays {
		resp.Weekdays = append(resp.Weekdays, wd.String()[:3])
	}
	for _, c := range snap.Cells {
		cell := cellDTO{
			ID:       c.ID,
			Date:     c.Date.Format(time.DateOnly),
			Current:  c.IsCurrentPeriod,
			Today:    c.IsToday,
			Selected: c.IsSelected,
			Events:   make([]sessionDTO, 0, len(c.Events)),
		}
		for _, ev := range c.Events {
			cell.Events = append(cell.Events, s.toDTO(ev))
		}
		resp.Cells = append(resp.Cells, cell)
	}
	return resp
}

// GET /api/calendar?mode=month&anchor=2026-10-01&q=term
func (s *Server) handleCalendar(w http.ResponseWriter, r *http.Request) {
	v, err := s.calendarView(r)
	if err != nil {
		s.requestError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.calendarResponse(v))
}

func (s *Server) requestError(w http.ResponseWriter, err error) {
	if errors.Is(err, errBadAnchor) {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	appLog.Error("api calendar failed", err)
	writeError(w, http.StatusInternalServerError, "failed to load sessions")
}

func (s *Server) storeError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "session not found")
	case errors.Is(err, model.ErrInvalidEvent):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	default:
		appLog.Error("api "+op+" failed", err)
		writeError(w, http.StatusInternalServerError, "failed to "+op+" session")
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return errors.New("invalid JSON body")
	}
	return nil
}

// calendarQuery rebuilds the query string for navigation links.
func calendarQuery(mode, anchor, term string) string {
	q := url.Values{}
	q.Set("mode", mode)
	q.Set("anchor", anchor)
	if term != "" {
		q.Set("q", term)
	}
	return q.Encode()
}
