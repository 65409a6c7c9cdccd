package web

import (
	"bytes"
	"html/template"
	"net/http"
	"time"

	appLog "sessioncal/internal/log"
)

var pageFuncs = template.FuncMap{
	"clock": func(t *time.Time) string {
		if t == nil {
			return ""
		}
		return t.Format("15:04")
	},
	"query": calendarQuery,
}

var calendarPage = template.Must(template.New("calendar.html").Funcs(pageFuncs).ParseFS(embedded, "templates/calendar.html"))

type pageData struct {
	calendarResponse
	Rows  [][]cellDTO
	Modes []string
}

// GET /calendar renders the grid server side. The root element carries
// data-ready="true" once rendered, which the snapshot capture waits for.
func (s *Server) handleCalendarPage(w http.ResponseWriter, r *http.Request) {
	v, err := s.calendarView(r)
	if err != nil {
		s.requestError(w, err)
		return
	}
	data := pageData{
		calendarResponse: s.calendarResponse(v),
		Modes:            []string{"month", "week", "day", "agenda"},
	}
	switch data.Mode {
	case "month", "week":
		for i := 0; i < len(data.Cells); i += 7 {
			data.Rows = append(data.Rows, data.Cells[i:min(i+7, len(data.Cells))])
		}
	default:
		data.Rows = [][]cellDTO{data.Cells}
	}

	var buf bytes.Buffer
	if err := calendarPage.Execute(&buf, data); err != nil {
		appLog.Error("render calendar page failed", err)
		http.Error(w, "template error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}
