package web

import (
	"bytes"
	"embed"
	"html/template"
	"net/http"
	"strconv"

	appLog "weekgrid/internal/log"
	"weekgrid/internal/timeutil"
)

//go:embed templates/calendar.html
var templateFS embed.FS

var calendarTemplate = template.Must(
	template.New("calendar.html").Funcs(template.FuncMap{
		"pct": func(v float64) string { return strconv.FormatFloat(v, 'f', 3, 64) + "%" },
		"hourTop": hourOffset,
	}).ParseFS(templateFS, "templates/calendar.html"),
)

type calendarPage struct {
	Week       weekResponse
	ShowAllDay bool
	PrevDate   string
	NextDate   string
}

// handleCalendarPage renders the week grid as HTML. The root element
// carries data-ready="true" once the markup is complete, which the capture
// command waits for.
//
// GET /calendar?date=2024-06-10&nav=next
func (s *Server) handleCalendarPage(w http.ResponseWriter, r *http.Request) {
	week, err := s.resolveWeek(r.URL.Query())
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	resp, err := s.buildWeek(r.Context(), week)
	if err != nil {
		appLog.Error("calendar page failed", err, "week", week.Key())
		http.Error(w, "failed to load week", http.StatusInternalServerError)
		return
	}

	page := calendarPage{
		Week:       resp,
		ShowAllDay: s.cfg.ShowAllDay,
		PrevDate:   week.Prev().Key(),
		NextDate:   week.Next().Key(),
	}
	var buf bytes.Buffer
	if err := calendarTemplate.Execute(&buf, page); err != nil {
		appLog.Error("calendar template failed", err)
		http.Error(w, "render failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = buf.WriteTo(w)
}

// hourOffset places an hour line inside the "HH:MM" window as a CSS
// percentage.
func hourOffset(hour int, start, end string) string {
	s, ok1 := timeutil.TimeToMinutes(start)
	e, ok2 := timeutil.TimeToMinutes(end)
	if !ok1 || !ok2 || e <= s {
		return "0%"
	}
	v := float64(hour*60-s) / float64(e-s) * 100
	return strconv.FormatFloat(v, 'f', 3, 64) + "%"
}
