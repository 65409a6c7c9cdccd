package ics

import (
	"bytes"
	"errors"
	"regexp"
	"strconv"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"

	appLog "sessioncal/internal/log"
	"sessioncal/internal/model"
)

// Non-standard properties written by Export so a round trip keeps what
// plain iCalendar cannot express.
const (
	propStudy  ical.ComponentProperty = "X-SESSIONCAL-STUDY"
	propStatus ical.ComponentProperty = "X-SESSIONCAL-STATUS"
)

// DefaultDuration is used for timed events that carry neither DTEND nor
// DURATION.
const DefaultDuration = 30 * time.Minute

// ParseICS parses one ICS payload into calendar events.
//
//   - UID becomes the event ID; VEVENTs without one are skipped.
//   - A missing or unreadable DTSTART yields a zero Start: the event is
//     kept and shows up as unplaceable.
//   - All-day events span local midnight to midnight.
//   - Recurrence properties are ignored; only the master instance is
//     imported.
func ParseICS(src Source, body []byte) ([]model.CalendarEvent, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, errors.New("empty ICS body")
	}
	cal, err := ical.ParseCalendar(bytes.NewReader(body))
	if err != nil {
		appLog.Error("ics parse failed", err, "id", src.ID, "url", redactURL(src.URL))
		return nil, err
	}

	events := make([]model.CalendarEvent, 0, len(cal.Events()))
	skipped := 0
	for _, ve := range cal.Events() {
		ev, err := toEvent(src, ve)
		if err != nil {
			skipped++
			appLog.Debug("ics vevent skipped", "id", src.ID, "reason", err.Error())
			continue
		}
		events = append(events, ev)
	}
	appLog.Info("ics parse completed", "id", src.ID, "events", len(events), "skipped", skipped)
	return events, nil
}

func toEvent(src Source, ve *ical.VEvent) (model.CalendarEvent, error) {
	var ev model.CalendarEvent

	ev.ID = propValue(ve, ical.ComponentPropertyUniqueId)
	if ev.ID == "" {
		return ev, errors.New("missing UID")
	}
	ev.Title = propValue(ve, ical.ComponentPropertySummary)
	if ev.Title == "" {
		ev.Title = "(untitled)"
	}
	ev.Description = propValue(ve, ical.ComponentPropertyDescription)
	ev.Location = propValue(ve, ical.ComponentPropertyLocation)

	ev.StudyName = propValue(ve, propStudy)
	if ev.StudyName == "" {
		ev.StudyName = src.Name
	}
	ev.Status = parseStatus(propValue(ve, ical.ComponentPropertyStatus), propValue(ve, propStatus))
	ev.Category = parseCategory(ve)
	ev.Attendees = parseAttendees(ve)

	start, end, err := eventTimes(ve)
	if err != nil {
		appLog.Debug("ics vevent without usable start", "id", src.ID, "uid", ev.ID, "reason", err.Error())
		return ev, nil
	}
	ev.Start, ev.End = start, end
	return ev, nil
}

func eventTimes(ve *ical.VEvent) (time.Time, time.Time, error) {
	dtstart := ve.GetProperty(ical.ComponentPropertyDtStart)
	if dtstart == nil || strings.TrimSpace(dtstart.Value) == "" {
		return time.Time{}, time.Time{}, errors.New("no DTSTART")
	}
	if isDateValue(dtstart) {
		start, err := ve.GetAllDayStartAt()
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
		end, err := ve.GetAllDayEndAt()
		if err != nil || !end.After(start) {
			end = start.AddDate(0, 0, 1)
		}
		return start, end, nil
	}

	start, err := ve.GetStartAt()
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	if end, err := ve.GetEndAt(); err == nil && end.After(start) {
		return start, end, nil
	}
	if d, ok := parseDuration(propValue(ve, ical.ComponentPropertyDuration)); ok && d > 0 {
		return start, start.Add(d), nil
	}
	return start, start.Add(DefaultDuration), nil
}

func isDateValue(p *ical.IANAProperty) bool {
	if vs, ok := p.ICalParameters["VALUE"]; ok && len(vs) > 0 && strings.EqualFold(vs[0], "DATE") {
		return true
	}
	return !strings.Contains(p.Value, "T")
}

var durationRE = regexp.MustCompile(`^([+-])?P(?:(\d+)W)?(?:(\d+)D)?(?:T(?:(\d+)H)?(?:(\d+)M)?(?:(\d+)S)?)?$`)

// parseDuration reads an RFC 5545 DURATION value such as PT1H30M or P1D.
func parseDuration(v string) (time.Duration, bool) {
	m := durationRE.FindStringSubmatch(strings.ToUpper(strings.TrimSpace(v)))
	if m == nil || v == "P" {
		return 0, false
	}
	units := []time.Duration{7 * 24 * time.Hour, 24 * time.Hour, time.Hour, time.Minute, time.Second}
	var d time.Duration
	for i, unit := range units {
		if m[i+2] == "" {
			continue
		}
		n, err := strconv.Atoi(m[i+2])
		if err != nil {
			return 0, false
		}
		d += time.Duration(n) * unit
	}
	if m[1] == "-" {
		d = -d
	}
	return d, true
}

func parseStatus(std, custom string) model.SessionStatus {
	switch s := model.SessionStatus(strings.ToLower(strings.TrimSpace(custom))); s {
	case model.StatusScheduled, model.StatusConfirmed, model.StatusCompleted, model.StatusCancelled, model.StatusNoShow:
		return s
	}
	switch strings.ToUpper(strings.TrimSpace(std)) {
	case string(ical.ObjectStatusConfirmed):
		return model.StatusConfirmed
	case string(ical.ObjectStatusCancelled):
		return model.StatusCancelled
	default:
		return model.StatusScheduled
	}
}

// parseCategory takes the first CATEGORIES token naming a variant or a
// legacy palette key, then COLOR.
func parseCategory(ve *ical.VEvent) model.Category {
	for _, p := range ve.GetProperties(ical.ComponentPropertyCategories) {
		for _, tok := range strings.Split(p.Value, ",") {
			if c, ok := model.ParseCategory(tok); ok {
				return c
			}
		}
	}
	if c, ok := model.ParseCategory(propValue(ve, ical.ComponentPropertyColor)); ok {
		return c
	}
	return model.CategoryDefault
}

func parseAttendees(ve *ical.VEvent) []model.Attendee {
	var out []model.Attendee
	for _, a := range ve.Attendees() {
		email := a.Email()
		name := ""
		if cn, ok := a.ICalParameters[string(ical.ParameterCn)]; ok && len(cn) > 0 {
			name = strings.Trim(cn[0], `"`)
		}
		if email == "" && name == "" {
			continue
		}
		out = append(out, model.Attendee{ID: email, Name: name, Email: email})
	}
	return out
}

// propValue returns the trimmed value of prop. TEXT values arrive already
// unescaped by the parser.
func propValue(ve *ical.VEvent, prop ical.ComponentProperty) string {
	p := ve.GetProperty(prop)
	if p == nil {
		return ""
	}
	return strings.TrimSpace(p.Value)
}
