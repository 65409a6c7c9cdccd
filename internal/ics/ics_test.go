package ics

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"sessioncal/internal/model"
)

const fixture = "BEGIN:VCALENDAR\r\n" +
	"VERSION:2.0\r\n" +
	"PRODID:-//test//EN\r\n" +
	"BEGIN:VEVENT\r\n" +
	"UID:s-1@lab\r\n" +
	"DTSTAMP:20261001T000000Z\r\n" +
	"DTSTART:20261014T103000Z\r\n" +
	"DTEND:20261014T113000Z\r\n" +
	"SUMMARY:Participant interview\r\n" +
	"LOCATION:Lab 2\r\n" +
	"STATUS:CONFIRMED\r\n" +
	"CATEGORIES:research,green\r\n" +
	"ATTENDEE;CN=Ines Ortega:mailto:ines@example.org\r\n" +
	"END:VEVENT\r\n" +
	"BEGIN:VEVENT\r\n" +
	"UID:s-2@lab\r\n" +
	"DTSTAMP:20261001T000000Z\r\n" +
	"DTSTART:20261015T090000Z\r\n" +
	"DURATION:PT45M\r\n" +
	"SUMMARY:Focus group\r\n" +
	"COLOR:red\r\n" +
	"END:VEVENT\r\n" +
	"BEGIN:VEVENT\r\n" +
	"UID:s-3@lab\r\n" +
	"DTSTAMP:20261001T000000Z\r\n" +
	"SUMMARY:Not yet scheduled\r\n" +
	"END:VEVENT\r\n" +
	"BEGIN:VEVENT\r\n" +
	"DTSTAMP:20261001T000000Z\r\n" +
	"DTSTART:20261015T090000Z\r\n" +
	"SUMMARY:No uid\r\n" +
	"END:VEVENT\r\n" +
	"END:VCALENDAR\r\n"

func TestParseICS(t *testing.T) {
	events, err := ParseICS(Source{ID: "lab", Name: "Lab feed"}, []byte(fixture))
	if err != nil {
		t.Fatalf("ParseICS: %v", err)
	}
	if len(events) != 3 {
		t.Fatalf("events: got %d, want 3", len(events))
	}
	byID := map[string]model.CalendarEvent{}
	for _, ev := range events {
		byID[ev.ID] = ev
	}

	iv := byID["s-1@lab"]
	if !iv.Start.Equal(time.Date(2026, 10, 14, 10, 30, 0, 0, time.UTC)) || iv.DurationMinutes() != 60 {
		t.Fatalf("interview times: %s %d", iv.Start, iv.DurationMinutes())
	}
	if iv.Status != model.StatusConfirmed || iv.Category != model.CategorySuccess || iv.StudyName != "Lab feed" {
		t.Fatalf("interview labels: %+v", iv)
	}
	if len(iv.Attendees) != 1 || iv.Attendees[0].Name != "Ines Ortega" || iv.Attendees[0].Email != "ines@example.org" {
		t.Fatalf("attendees: %+v", iv.Attendees)
	}

	fg := byID["s-2@lab"]
	if fg.DurationMinutes() != 45 || fg.Category != model.CategoryDanger || fg.Status != model.StatusScheduled {
		t.Fatalf("focus group: %+v", fg)
	}
	if byID["s-3@lab"].Placeable() {
		t.Fatal("event without DTSTART must come back unplaceable")
	}
}

func TestParseICS_Empty(t *testing.T) {
	if _, err := ParseICS(Source{ID: "x"}, []byte("  \n")); err == nil {
		t.Fatal("expected error for empty body")
	}
}

func TestParseDuration(t *testing.T) {
	tests := []struct {
		in   string
		want time.Duration
		ok   bool
	}{
		{"PT1H30M", 90 * time.Minute, true},
		{"P1D", 24 * time.Hour, true},
		{"P1W", 7 * 24 * time.Hour, true},
		{"PT15S", 15 * time.Second, true},
		{"-PT5M", -5 * time.Minute, true},
		{"1H", 0, false},
		{"", 0, false},
	}
	for _, tc := range tests {
		t.Run(tc.in, func(t *testing.T) {
			got, ok := parseDuration(tc.in)
			if ok != tc.ok || got != tc.want {
				t.Fatalf("parseDuration(%q) = %v, %v", tc.in, got, ok)
			}
		})
	}
}

func TestExportRoundTrip(t *testing.T) {
	start := time.Date(2026, 10, 14, 10, 30, 0, 0, time.UTC)
	in := []model.CalendarEvent{
		{
			ID: "a", Title: "Usability test", Location: "Lab 2", StudyName: "Checkout",
			Status: model.StatusNoShow, Category: model.CategoryWarning,
			Start: start, End: start.Add(50 * time.Minute),
			Attendees: []model.Attendee{{Name: "Ines Ortega", Email: "ines@example.org"}},
		},
		{ID: "b", Title: "Unscheduled"},
	}
	var buf bytes.Buffer
	n, err := Export(&buf, in, start)
	if err != nil || n != 1 {
		t.Fatalf("Export: n=%d err=%v", n, err)
	}
	if !strings.Contains(buf.String(), "BEGIN:VCALENDAR") {
		t.Fatalf("not a calendar: %q", buf.String())
	}

	out, err := ParseICS(Source{ID: "rt"}, buf.Bytes())
	if err != nil || len(out) != 1 {
		t.Fatalf("ParseICS: %d %v", len(out), err)
	}
	got := out[0]
	if got.ID != "a" || got.Title != "Usability test" || got.StudyName != "Checkout" {
		t.Fatalf("identity: %+v", got)
	}
	if got.Status != model.StatusNoShow || got.Category != model.CategoryWarning {
		t.Fatalf("labels: %v %v", got.Status, got.Category)
	}
	if !got.Start.Equal(start) || got.DurationMinutes() != 50 {
		t.Fatalf("times: %s %d", got.Start, got.DurationMinutes())
	}
	if len(got.Attendees) != 1 || got.Attendees[0].Email != "ines@example.org" {
		t.Fatalf("attendees: %+v", got.Attendees)
	}
}

func TestExportRoundTrip_TextEscapes(t *testing.T) {
	start := time.Date(2026, 10, 14, 10, 30, 0, 0, time.UTC)
	in := model.CalendarEvent{
		ID:          "esc",
		Title:       `Share C:\new folder`,
		Description: "line one\nline two; ok, done",
		Location:    `Lab 2, east wing; room \n4`,
		StudyName:   `a\nb`,
		Start:       start,
		End:         start.Add(30 * time.Minute),
	}
	var buf bytes.Buffer
	if _, err := Export(&buf, []model.CalendarEvent{in}, start); err != nil {
		t.Fatalf("Export: %v", err)
	}
	out, err := ParseICS(Source{ID: "rt"}, buf.Bytes())
	if err != nil || len(out) != 1 {
		t.Fatalf("ParseICS: %d %v", len(out), err)
	}
	got := out[0]
	if got.Title != in.Title || got.Description != in.Description ||
		got.Location != in.Location || got.StudyName != in.StudyName {
		t.Fatalf("text fields changed:\n got %q %q %q %q\nwant %q %q %q %q",
			got.Title, got.Description, got.Location, got.StudyName,
			in.Title, in.Description, in.Location, in.StudyName)
	}
}

func TestParseICS_EscapedBackslash(t *testing.T) {
	body := "BEGIN:VCALENDAR\r\n" +
		"VERSION:2.0\r\n" +
		"PRODID:-//test//EN\r\n" +
		"BEGIN:VEVENT\r\n" +
		"UID:bs@lab\r\n" +
		"DTSTART:20261014T103000Z\r\n" +
		"SUMMARY:Share C:\\\\new folder\r\n" +
		"LOCATION:Lab 2\\, east\r\n" +
		"END:VEVENT\r\n" +
		"END:VCALENDAR\r\n"
	events, err := ParseICS(Source{ID: "lab"}, []byte(body))
	if err != nil || len(events) != 1 {
		t.Fatalf("ParseICS: %d %v", len(events), err)
	}
	if got := events[0].Title; got != `Share C:\new folder` {
		t.Fatalf("title: %q", got)
	}
	if got := events[0].Location; got != "Lab 2, east" {
		t.Fatalf("location: %q", got)
	}
}

func TestFetchOne_ConditionalAndFallback(t *testing.T) {
	var hits, fail atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if fail.Load() == 1 {
			http.Error(w, "down", http.StatusBadGateway)
			return
		}
		if r.Header.Get("If-None-Match") == `"v1"` {
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.Header().Set("ETag", `"v1"`)
		w.Write([]byte(fixture))
	}))
	defer srv.Close()

	f := NewFetcher(t.TempDir(), srv.Client())
	src := Source{ID: "lab", URL: srv.URL + "/feed.ics?token=secret"}
	ctx := context.Background()

	first, err := f.FetchOne(ctx, src)
	if err != nil || first.FromCache {
		t.Fatalf("first fetch: cache=%v err=%v", first.FromCache, err)
	}
	second, err := f.FetchOne(ctx, src)
	if err != nil || !second.FromCache || !bytes.Equal(second.Body, first.Body) {
		t.Fatalf("revalidated fetch: cache=%v err=%v", second.FromCache, err)
	}
	fail.Store(1)
	third, err := f.FetchOne(ctx, src)
	if err != nil || !third.FromCache {
		t.Fatalf("fallback fetch: cache=%v err=%v", third.FromCache, err)
	}
	if hits.Load() != 3 {
		t.Fatalf("hits: %d", hits.Load())
	}

	if _, err := NewFetcher(t.TempDir(), srv.Client()).FetchOne(ctx, src); err == nil {
		t.Fatal("failure without cache must be an error")
	}
}

func TestRedactURL(t *testing.T) {
	got := redactURL("https://calendar.example.com/private/abc.ics?token=xyz")
	if got != "https://calendar.example.com/...(redacted)" {
		t.Fatalf("redactURL: %q", got)
	}
	if strings.Contains(redactURL("not a url with token=1"), "token") {
		t.Fatal("leaked input")
	}
}

type fakeSink struct {
	calls map[string][]model.CalendarEvent
}

func (s *fakeSink) ReplaceSource(_ context.Context, source string, events []model.CalendarEvent) (int, error) {
	if s.calls == nil {
		s.calls = map[string][]model.CalendarEvent{}
	}
	s.calls[source] = events
	return len(events), nil
}

func TestRefreshOnce(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "lab.ics")
	if err := os.WriteFile(path, []byte(fixture), 0o600); err != nil {
		t.Fatal(err)
	}
	sink := &fakeSink{}
	updates := 0
	r := NewRefresher(NewFetcher(dir, nil), sink, []Source{
		{ID: "lab", URL: path},
		{ID: "gone", URL: filepath.Join(dir, "missing.ics")},
	}, func() { updates++ })

	n, err := r.RefreshOnce(context.Background())
	if n != 3 {
		t.Fatalf("sessions: got %d", n)
	}
	if err == nil {
		t.Fatal("missing feed should be reported")
	}
	if len(sink.calls["lab"]) != 3 {
		t.Fatalf("sink: %v", sink.calls)
	}
	if _, ok := sink.calls["gone"]; ok {
		t.Fatal("failed feed must not replace stored sessions")
	}
	if updates != 1 {
		t.Fatalf("updates: %d", updates)
	}
}

func TestRun_RejectsBadSchedule(t *testing.T) {
	r := NewRefresher(NewFetcher(t.TempDir(), nil), &fakeSink{}, nil, nil)
	if err := r.Run(context.Background(), "every now and then"); err == nil {
		t.Fatal("expected schedule error")
	}
}
