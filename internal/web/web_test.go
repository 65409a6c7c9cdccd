package web

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"sessioncal/internal/config"
	"sessioncal/internal/model"
	"sessioncal/internal/store"
)

var testNow = time.Date(2026, 10, 14, 12, 0, 0, 0, time.UTC)

func newTestServer(t *testing.T, mutate func(*config.Config)) (*httptest.Server, *store.SQLiteStore) {
	t.Helper()
	db, err := store.Open(":memory:")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	st := store.NewSQLiteStore(db)

	ctx := context.Background()
	start := time.Date(2026, 10, 14, 10, 30, 0, 0, time.UTC)
	for _, ev := range []model.CalendarEvent{
		{ID: "iv", Title: "Participant interview", Location: "Lab 2", Start: start, End: start.Add(time.Hour),
			Attendees: []model.Attendee{{Name: "Ines Ortega", Email: "ines@example.org"}}},
		{ID: "fg", Title: "Focus group", Start: start.AddDate(0, 0, 2), End: start.AddDate(0, 0, 2).Add(90 * time.Minute)},
		{ID: "tbd", Title: "Not scheduled"},
	} {
		if _, err := st.Save(ctx, ev); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}

	cfg := config.DefaultConfig()
	if mutate != nil {
		mutate(cfg)
	}
	srv := httptest.NewServer(NewServer(cfg, st, WithClock(func() time.Time { return testNow })).Handler())
	t.Cleanup(srv.Close)
	return srv, st
}

func getJSON(t *testing.T, url string, v any) int {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()
	if v != nil && resp.StatusCode == http.StatusOK {
		if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
			t.Fatalf("decode: %v", err)
		}
	}
	return resp.StatusCode
}

func postJSON(t *testing.T, url, body string, v any) int {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("POST %s: %v", url, err)
	}
	defer resp.Body.Close()
	if v != nil {
		_ = json.NewDecoder(resp.Body).Decode(v)
	}
	return resp.StatusCode
}

func TestBasicAuth(t *testing.T) {
	srv, _ := newTestServer(t, func(c *config.Config) {
		c.BasicAuth = &config.BasicAuthConfig{Username: "admin", Password: "s3cret"}
	})

	if code := getJSON(t, srv.URL+"/health", nil); code != http.StatusOK {
		t.Fatalf("/health: %d", code)
	}
	if code := getJSON(t, srv.URL+"/api/sessions", nil); code != http.StatusUnauthorized {
		t.Fatalf("unauthenticated: %d", code)
	}
	req, _ := http.NewRequest(http.MethodGet, srv.URL+"/api/sessions", nil)
	req.SetBasicAuth("admin", "s3cret")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("authenticated: %d", resp.StatusCode)
	}
}

func TestSessions_Search(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	var all sessionsResponse
	getJSON(t, srv.URL+"/api/sessions", &all)
	if len(all.Sessions) != 3 || all.Unplaceable != 1 {
		t.Fatalf("all: %d sessions, %d unplaceable", len(all.Sessions), all.Unplaceable)
	}
	if all.Sessions[0].ID != "iv" || all.Sessions[1].ID != "fg" {
		t.Fatalf("placed order: %s, %s", all.Sessions[0].ID, all.Sessions[1].ID)
	}
	if tbd := all.Sessions[2]; tbd.ID != "tbd" || tbd.Start != nil || tbd.End != nil {
		t.Fatalf("unplaceable session: %+v", tbd)
	}

	var unscheduled sessionsResponse
	getJSON(t, srv.URL+"/api/sessions?q=not+scheduled", &unscheduled)
	if len(unscheduled.Sessions) != 1 || unscheduled.Sessions[0].ID != "tbd" || unscheduled.Unplaceable != 1 {
		t.Fatalf("search unplaceable: %+v", unscheduled)
	}

	var found sessionsResponse
	getJSON(t, srv.URL+"/api/sessions?q=ORTEGA", &found)
	if len(found.Sessions) != 1 || found.Sessions[0].ID != "iv" {
		t.Fatalf("search: %+v", found.Sessions)
	}
}

func TestDelete(t *testing.T) {
	srv, st := newTestServer(t, nil)

	del := func(id string) int {
		req, _ := http.NewRequest(http.MethodDelete, srv.URL+"/api/sessions/"+id, nil)
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatalf("DELETE %s: %v", id, err)
		}
		resp.Body.Close()
		return resp.StatusCode
	}

	if code := del("tbd"); code != http.StatusNoContent {
		t.Fatalf("delete: %d", code)
	}
	if code := del("tbd"); code != http.StatusNotFound {
		t.Fatalf("delete twice: %d", code)
	}
	if _, err := st.Get(context.Background(), "tbd"); err == nil {
		t.Fatal("session still stored")
	}

	var all sessionsResponse
	getJSON(t, srv.URL+"/api/sessions", &all)
	if len(all.Sessions) != 2 || all.Unplaceable != 0 {
		t.Fatalf("after delete: %d sessions, %d unplaceable", len(all.Sessions), all.Unplaceable)
	}
}

func TestCalendar_Month(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	var cal calendarResponse
	if code := getJSON(t, srv.URL+"/api/calendar?mode=month&anchor=2026-10-01", &cal); code != http.StatusOK {
		t.Fatalf("status: %d", code)
	}
	if len(cal.Cells) != 42 || cal.Title != "October 2026" || cal.Unplaceable != 1 {
		t.Fatalf("calendar: %d cells, %q, %d unplaceable", len(cal.Cells), cal.Title, cal.Unplaceable)
	}
	if cal.Prev != "2026-09-01" || cal.Next != "2026-11-01" {
		t.Fatalf("nav: %s %s", cal.Prev, cal.Next)
	}
	placed := map[string]string{}
	for _, c := range cal.Cells {
		for _, ev := range c.Events {
			placed[ev.ID] = c.Date
		}
		if c.Date == "2026-10-14" && !c.Today {
			t.Fatal("today not flagged")
		}
	}
	if placed["iv"] != "2026-10-14" || placed["fg"] != "2026-10-16" {
		t.Fatalf("placement: %v", placed)
	}

	if code := getJSON(t, srv.URL+"/api/calendar?anchor=yesterday", nil); code != http.StatusBadRequest {
		t.Fatalf("bad anchor: %d", code)
	}
}

func TestCalendar_AgendaSkipsEmptyDays(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	var cal calendarResponse
	getJSON(t, srv.URL+"/api/calendar?mode=agenda&anchor=2026-10-20", &cal)
	if len(cal.Cells) != 2 || cal.CanDrag {
		t.Fatalf("agenda: %d cells, can_drag=%v", len(cal.Cells), cal.CanDrag)
	}
}

func TestMove(t *testing.T) {
	srv, st := newTestServer(t, nil)

	var dto sessionDTO
	if code := postJSON(t, srv.URL+"/api/sessions/iv/move", `{"day":"2026-10-22"}`, &dto); code != http.StatusOK {
		t.Fatalf("move by day: %d", code)
	}
	got, _ := st.Get(context.Background(), "iv")
	if want := time.Date(2026, 10, 22, 10, 30, 0, 0, time.UTC); !got.Start.Equal(want) || got.DurationMinutes() != 60 {
		t.Fatalf("stored: %s %d", got.Start, got.DurationMinutes())
	}

	if code := postJSON(t, srv.URL+"/api/sessions/iv/move", `{"start":"2026-10-23T08:00:00Z"}`, nil); code != http.StatusOK {
		t.Fatalf("move by start: %d", code)
	}
	if code := postJSON(t, srv.URL+"/api/sessions/nope/move", `{"day":"2026-10-22"}`, nil); code != http.StatusNotFound {
		t.Fatalf("missing: %d", code)
	}
	if code := postJSON(t, srv.URL+"/api/sessions/iv/move", `{}`, nil); code != http.StatusBadRequest {
		t.Fatalf("empty body: %d", code)
	}
	if code := postJSON(t, srv.URL+"/api/sessions/tbd/move", `{"day":"2026-10-22"}`, nil); code != http.StatusUnprocessableEntity {
		t.Fatalf("unplaceable: %d", code)
	}
}

func TestMove_Disabled(t *testing.T) {
	srv, _ := newTestServer(t, func(c *config.Config) { c.Calendar.EnableDragDrop = false })
	if code := postJSON(t, srv.URL+"/api/sessions/iv/move", `{"day":"2026-10-22"}`, nil); code != http.StatusForbidden {
		t.Fatalf("disabled: %d", code)
	}
}

func TestResize(t *testing.T) {
	srv, st := newTestServer(t, nil)

	tests := []struct {
		body string
		code int
	}{
		{`{"minutes":90,"edge":"end"}`, http.StatusOK},
		{`{"minutes":5,"edge":"end"}`, http.StatusUnprocessableEntity},
		{`{"minutes":600,"edge":"end"}`, http.StatusUnprocessableEntity},
		{`{"minutes":60,"edge":"middle"}`, http.StatusBadRequest},
		{`{"minutes":"lots"}`, http.StatusBadRequest},
	}
	for _, tc := range tests {
		t.Run(tc.body, func(t *testing.T) {
			if code := postJSON(t, srv.URL+"/api/sessions/iv/resize", tc.body, nil); code != tc.code {
				t.Fatalf("got %d, want %d", code, tc.code)
			}
		})
	}
	got, _ := st.Get(context.Background(), "iv")
	if got.DurationMinutes() != 90 {
		t.Fatalf("duration: %d", got.DurationMinutes())
	}
}

func TestExport(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	resp, err := http.Get(srv.URL + "/api/sessions.ics")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/calendar") {
		t.Fatalf("content type: %q", ct)
	}
	if !strings.Contains(string(body), "UID:iv") || strings.Contains(string(body), "UID:tbd") {
		t.Fatalf("export body:\n%s", body)
	}
}

func TestCalendarPage(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	resp, err := http.Get(srv.URL + "/calendar?anchor=2026-10-01&q=interview")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	page := string(body)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status %d: %s", resp.StatusCode, page)
	}
	for _, want := range []string{`data-ready="true"`, "Participant interview", `data-cell-id="2026-10-14"`, "October 2026"} {
		if !strings.Contains(page, want) {
			t.Errorf("page missing %q", want)
		}
	}
	if strings.Contains(page, "Focus group") {
		t.Error("search term should hide other sessions")
	}

	if code := getJSON(t, srv.URL+"/static/calendar.css", nil); code != http.StatusOK {
		t.Fatalf("static: %d", code)
	}
}
