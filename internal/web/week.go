package web

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"weekgrid/internal/layout"
	appLog "weekgrid/internal/log"
	"weekgrid/internal/model"
	"weekgrid/internal/timeutil"
)

// weekResponse is the JSON response shape for /api/week.
type weekResponse struct {
	WeekStart   string   `json:"week_start"`
	WeekEnd     string   `json:"week_end"`
	Label       string   `json:"label"`
	Timezone    string   `json:"timezone"`
	WindowStart string   `json:"window_start"`
	WindowEnd   string   `json:"window_end"`
	Hours       []int    `json:"hours"`
	Days        []dayDTO `json:"days"`
	UpdatedAt   string   `json:"updated_at"`
}

type dayDTO struct {
	Date    string                `json:"date"`
	Weekday string                `json:"weekday"`
	Today   bool                  `json:"today"`
	Boxes   []boxDTO              `json:"boxes"`
	Untimed []model.CalendarEvent `json:"untimed"`
	Outside []model.CalendarEvent `json:"outside,omitempty"`
}

type boxDTO struct {
	Event        model.CalendarEvent `json:"event"`
	Column       int                 `json:"column"`
	TotalColumns int                 `json:"total_columns"`
	Start        string              `json:"start"`
	End          string              `json:"end"`
	Color        string              `json:"color,omitempty"`
	layout.Geometry
}

// resolveWeek picks the week from the query:
//
//	date=YYYY-MM-DD   week containing that date (default: today)
//	year=&month=      week holding the 1st of that month
//	nav=today|next|prev applied last
func (s *Server) resolveWeek(q url.Values) (layout.Week, error) {
	now := s.now().In(s.loc)
	w := layout.WeekOf(now, s.cfg.FirstWeekday())

	if d := q.Get("date"); d != "" {
		t, err := timeutil.ParseDateKey(d, s.loc)
		if err != nil {
			return layout.Week{}, fmt.Errorf("invalid date %q", d)
		}
		w = w.GoToDate(t)
	}
	if q.Get("year") != "" || q.Get("month") != "" {
		year := parseIntDefault(q.Get("year"), 0)
		month := parseIntDefault(q.Get("month"), 0)
		if year <= 0 || month < 1 || month > 12 {
			return layout.Week{}, fmt.Errorf("invalid year/month %q/%q", q.Get("year"), q.Get("month"))
		}
		w = w.GoToMonth(year, time.Month(month))
	}

	switch q.Get("nav") {
	case "":
	case "today":
		w = w.Today(now)
	case "next":
		w = w.Next()
	case "prev":
		w = w.Prev()
	default:
		return layout.Week{}, fmt.Errorf("invalid nav %q", q.Get("nav"))
	}
	return w, nil
}

// buildWeek collects the week's events and lays them out.
func (s *Server) buildWeek(ctx context.Context, w layout.Week) (weekResponse, error) {
	events, err := s.events.Events(ctx, w.Start, w.End())
	if err != nil {
		return weekResponse{}, fmt.Errorf("load events: %w", err)
	}
	toggles, err := s.toggles(ctx)
	if err != nil {
		return weekResponse{}, fmt.Errorf("load toggles: %w", err)
	}
	wl := s.engine.LayoutWeek(w, events, toggles)
	return s.weekDTO(wl), nil
}

func (s *Server) weekDTO(wl layout.WeekLayout) weekResponse {
	colors := make(map[string]string, len(s.cfg.Calendars))
	for _, c := range s.cfg.Calendars {
		colors[c.ID] = c.Color
	}
	todayKey := timeutil.DateKey(s.now().In(s.loc))

	resp := weekResponse{
		WeekStart:   wl.Week.Key(),
		WeekEnd:     timeutil.DateKey(wl.Week.End().AddDate(0, 0, -1)),
		Label:       wl.Week.Label(),
		Timezone:    s.loc.String(),
		WindowStart: timeutil.MinutesToTime(wl.Window.Start),
		WindowEnd:   timeutil.MinutesToTime(wl.Window.End),
		Hours:       wl.Window.Hours(),
		Days:        make([]dayDTO, 0, len(wl.Days)),
		UpdatedAt:   s.now().In(s.loc).Format(time.RFC3339),
	}
	for _, d := range wl.Days {
		day := dayDTO{
			Date:    d.Key,
			Weekday: d.Date.Weekday().String(),
			Today:   d.Key == todayKey,
			Boxes:   make([]boxDTO, 0, len(d.Boxes)),
			Untimed: nonNil(d.Untimed),
			Outside: d.Outside,
		}
		for _, b := range d.Boxes {
			ev := b.Event.Event()
			color := ev.Color
			if color == "" {
				color = colors[ev.CalendarID]
			}
			day.Boxes = append(day.Boxes, boxDTO{
				Event:        ev,
				Column:       b.Event.Column(),
				TotalColumns: b.Event.TotalColumns(),
				Start:        timeutil.MinutesToTime(b.Event.StartMinutes()),
				End:          timeutil.MinutesToTime(b.Event.EndMinutes()),
				Color:        color,
				Geometry:     b.Geometry,
			})
		}
		resp.Days = append(resp.Days, day)
	}
	return resp
}

func nonNil(in []model.CalendarEvent) []model.CalendarEvent {
	if in == nil {
		return []model.CalendarEvent{}
	}
	return in
}

// handleWeek returns the laid-out week.
//
// GET /api/week?date=2024-06-10&nav=next
func (s *Server) handleWeek(w http.ResponseWriter, r *http.Request) {
	week, err := s.resolveWeek(r.URL.Query())
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	key := week.Key()
	s.weekMu.RLock()
	entry, ok := s.weekCache[key]
	s.weekMu.RUnlock()
	if ok && s.now().Sub(entry.updatedAt) < weekCacheTTL {
		writeJSON(w, http.StatusOK, entry.resp)
		return
	}

	resp, err := s.buildWeek(r.Context(), week)
	if err != nil {
		appLog.Error("api week failed", err, "week", key)
		writeError(w, http.StatusInternalServerError, "failed to load week")
		return
	}

	s.weekMu.Lock()
	s.weekCache[key] = weekCacheEntry{resp: resp, updatedAt: s.now()}
	s.weekMu.Unlock()

	writeJSON(w, http.StatusOK, resp)
}

// handleCalendars lists the calendars with their effective toggle state.
func (s *Server) handleCalendars(w http.ResponseWriter, r *http.Request) {
	toggles, err := s.toggles(r.Context())
	if err != nil {
		appLog.Error("api calendars: load toggles failed", err)
		writeError(w, http.StatusInternalServerError, "failed to load calendars")
		return
	}
	cals := s.cfg.CalendarList()
	for i := range cals {
		cals[i].Selected = toggles[cals[i].ID]
	}
	writeJSON(w, http.StatusOK, cals)
}

// handleToggle flips or sets a calendar's visibility.
//
// POST /api/calendars/{id}/toggle           flips
// POST /api/calendars/{id}/toggle?selected=true|false
func (s *Server) handleToggle(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, ok := s.cfg.Calendar(id); !ok {
		writeError(w, http.StatusNotFound, "unknown calendar")
		return
	}
	if s.store == nil {
		writeError(w, http.StatusServiceUnavailable, "store not available")
		return
	}
	toggles, err := s.toggles(r.Context())
	if err != nil {
		appLog.Error("api toggle: load toggles failed", err, "id", id)
		writeError(w, http.StatusInternalServerError, "failed to load toggles")
		return
	}

	selected := !toggles[id]
	switch r.URL.Query().Get("selected") {
	case "":
	case "true", "1":
		selected = true
	case "false", "0":
		selected = false
	default:
		writeError(w, http.StatusBadRequest, "selected must be true or false")
		return
	}

	if err := s.store.SetSelected(r.Context(), id, selected); err != nil {
		appLog.Error("api toggle: persist failed", err, "id", id)
		writeError(w, http.StatusInternalServerError, "failed to save toggle")
		return
	}
	s.Invalidate()
	appLog.Info("calendar toggled", "id", id, "selected", selected)
	writeJSON(w, http.StatusOK, map[string]any{"id": id, "selected": selected})
}
