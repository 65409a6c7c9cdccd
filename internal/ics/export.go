package ics

import (
	"io"
	"time"

	ical "github.com/arran4/golang-ical"

	"sessioncal/internal/model"
)

const productID = "-//sessioncal//research sessions//EN"

// Export writes events as a PUBLISH calendar. Events without a start are
// left out since a VEVENT needs DTSTART.
func Export(w io.Writer, events []model.CalendarEvent, now time.Time) (int, error) {
	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId(productID)
	cal.SetXWRCalName("Research sessions")

	written := 0
	for _, ev := range events {
		if !ev.Placeable() {
			continue
		}
		ve := cal.AddEvent(ev.ID)
		ve.SetDtStampTime(now.UTC())
		ve.SetStartAt(ev.Start.UTC())
		ve.SetEndAt(ev.EffectiveEnd().UTC())
		ve.SetSummary(ev.Title)
		if ev.Description != "" {
			ve.SetDescription(ev.Description)
		}
		if ev.Location != "" {
			ve.SetLocation(ev.Location)
		}
		ve.SetProperty(ical.ComponentPropertyCategories, ev.Category.String())
		if st, ok := icalStatus(ev.Status); ok {
			ve.SetStatus(st)
		}
		if ev.Status != "" {
			ve.SetProperty(propStatus, string(ev.Status))
		}
		if ev.StudyName != "" {
			ve.SetProperty(propStudy, ev.StudyName)
		}
		for _, a := range ev.Attendees {
			if a.Email == "" {
				continue
			}
			var params []ical.PropertyParameter
			if a.Name != "" {
				params = append(params, ical.WithCN(a.Name))
			}
			ve.AddAttendee(a.Email, params...)
		}
		written++
	}
	return written, cal.SerializeTo(w)
}

func icalStatus(s model.SessionStatus) (ical.ObjectStatus, bool) {
	switch s {
	case model.StatusConfirmed, model.StatusCompleted:
		return ical.ObjectStatusConfirmed, true
	case model.StatusCancelled, model.StatusNoShow:
		return ical.ObjectStatusCancelled, true
	case model.StatusScheduled:
		return ical.ObjectStatusTentative, true
	}
	return "", false
}
