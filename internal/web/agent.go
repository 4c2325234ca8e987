package web

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"weekgrid/internal/config"
	"weekgrid/internal/layout"
	appLog "weekgrid/internal/log"
	"weekgrid/internal/model"
	"weekgrid/internal/store"
	"weekgrid/internal/timeutil"
)

const maxBodyBytes = 1 << 20

// agentEventRequest is the body of POST /api/agent-events.
type agentEventRequest struct {
	CalendarID  string       `json:"calendar_id"`
	SessionID   string       `json:"session_id"`
	Date        string       `json:"date"`
	Time        string       `json:"time"`
	EndTime     string       `json:"end_time"`
	Duration    int          `json:"duration"`
	Title       string       `json:"title"`
	Location    string       `json:"location"`
	Description string       `json:"description"`
	Color       string       `json:"color"`
	Attendees   []string     `json:"attendees"`
	Status      model.Status `json:"status"`
}

// statusRequest is the body of POST /api/agent-events/{id}/status.
type statusRequest struct {
	Status model.Status `json:"status"`
	// CalendarID moves the event. On confirmation an empty value keeps a
	// regular calendar and moves a placeholder hold to the confirmed calendar.
	CalendarID string `json:"calendar_id"`
}

type conflictsResponse struct {
	Proposal  layout.Proposal       `json:"proposal"`
	Conflicts []model.CalendarEvent `json:"conflicts"`
	Free      bool                  `json:"free"`
}

type proposalsRequest struct {
	Date      string            `json:"date"`
	Proposals []layout.Proposal `json:"proposals"`
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

// handleListAgentEvents lists agent events.
//
// GET /api/agent-events?from=YYYY-MM-DD&to=YYYY-MM-DD   half-open date range
// GET /api/agent-events?session=ID                      one scheduling session
func (s *Server) handleListAgentEvents(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeError(w, http.StatusServiceUnavailable, "store not available")
		return
	}
	q := r.URL.Query()

	var (
		events []model.CalendarEvent
		err    error
	)
	if session := q.Get("session"); session != "" {
		events, err = s.store.ListSession(r.Context(), session)
	} else {
		for _, k := range []string{"from", "to"} {
			if v := q.Get(k); v != "" {
				if _, perr := timeutil.ParseDateKey(v, s.loc); perr != nil {
					writeError(w, http.StatusBadRequest, "invalid "+k+" date")
					return
				}
			}
		}
		events, err = s.store.ListAgentEvents(r.Context(), q.Get("from"), q.Get("to"))
	}
	if err != nil {
		appLog.Error("api agent events: list failed", err)
		writeError(w, http.StatusInternalServerError, "failed to list agent events")
		return
	}
	writeJSON(w, http.StatusOK, nonNil(events))
}

// handleCreateAgentEvent stores a new hold or event. The calendar defaults to
// the pending calendar and the status to pending.
func (s *Server) handleCreateAgentEvent(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeError(w, http.StatusServiceUnavailable, "store not available")
		return
	}
	var req agentEventRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.CalendarID == "" {
		req.CalendarID = s.cfg.PendingCalendarID
	}

	created, err := s.store.CreateAgentEvent(r.Context(), model.CalendarEvent{
		CalendarID:  req.CalendarID,
		SessionID:   req.SessionID,
		Date:        req.Date,
		Time:        req.Time,
		EndTime:     req.EndTime,
		Duration:    req.Duration,
		Title:       req.Title,
		Location:    req.Location,
		Description: req.Description,
		Color:       req.Color,
		Attendees:   req.Attendees,
		Status:      req.Status,
	})
	if err != nil {
		if errors.Is(err, store.ErrInvalidEvent) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		appLog.Error("api agent events: create failed", err)
		writeError(w, http.StatusInternalServerError, "failed to create agent event")
		return
	}
	s.Invalidate()
	appLog.Info("agent event created", "id", created.ID, "calendar", created.CalendarID, "date", created.Date, "session", created.SessionID)
	writeJSON(w, http.StatusCreated, created)
}

// handleAgentStatus moves an agent event through its lifecycle. Confirming
// an event that belongs to a session cancels the session's other holds.
func (s *Server) handleAgentStatus(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeError(w, http.StatusServiceUnavailable, "store not available")
		return
	}
	id := r.PathValue("id")
	var req statusRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	var (
		ev  model.CalendarEvent
		err error
	)
	if req.Status == model.StatusConfirmed {
		ev, err = s.confirm(r.Context(), id, req.CalendarID)
	} else {
		ev, err = s.store.UpdateStatus(r.Context(), id, req.Status, req.CalendarID)
	}
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "agent event not found")
		return
	case errors.Is(err, store.ErrInvalidStatus),
		errors.Is(err, store.ErrInvalidEvent),
		errors.Is(err, config.ErrConfirmTarget):
		writeError(w, http.StatusBadRequest, err.Error())
		return
	case err != nil:
		appLog.Error("api agent events: status update failed", err, "id", id)
		writeError(w, http.StatusInternalServerError, "failed to update status")
		return
	}
	s.Invalidate()
	appLog.Info("agent event status changed", "id", id, "status", string(ev.Status), "calendar", ev.CalendarID)
	writeJSON(w, http.StatusOK, ev)
}

// confirm resolves the calendar a confirmed event lands in, so it never
// stays in a placeholder calendar, and confirms it.
func (s *Server) confirm(ctx context.Context, id, requested string) (model.CalendarEvent, error) {
	current, err := s.store.GetAgentEvent(ctx, id)
	if err != nil {
		return model.CalendarEvent{}, err
	}
	target, err := s.cfg.ConfirmCalendar(current.CalendarID, requested)
	if err != nil {
		return model.CalendarEvent{}, err
	}
	return s.store.ConfirmSession(ctx, id, target)
}

// handleConflicts checks one slot against the conflict set.
//
// GET /api/conflicts?date=2024-06-11&time=13:00&duration=60
func (s *Server) handleConflicts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	day, err := timeutil.ParseDateKey(q.Get("date"), s.loc)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid date")
		return
	}
	if _, ok := timeutil.TimeToMinutes(q.Get("time")); !ok {
		writeError(w, http.StatusBadRequest, "invalid time")
		return
	}
	p := layout.Proposal{
		Date:     q.Get("date"),
		Time:     q.Get("time"),
		Duration: parseIntDefault(q.Get("duration"), 0),
	}

	events, err := s.events.Events(r.Context(), day, day.AddDate(0, 0, 1))
	if err != nil {
		appLog.Error("api conflicts: load events failed", err)
		writeError(w, http.StatusInternalServerError, "failed to load events")
		return
	}
	toggles, err := s.toggles(r.Context())
	if err != nil {
		appLog.Error("api conflicts: load toggles failed", err)
		writeError(w, http.StatusInternalServerError, "failed to load toggles")
		return
	}

	conflicts := s.engine.ConflictsFor(p, events, toggles)
	writeJSON(w, http.StatusOK, conflictsResponse{
		Proposal:  p,
		Conflicts: nonNil(conflicts),
		Free:      len(conflicts) == 0,
	})
}

// handleProposals lays out candidate slots over a week, each with the
// events it collides with.
//
// POST /api/proposals {"date": "2024-06-10", "proposals": [...]}
func (s *Server) handleProposals(w http.ResponseWriter, r *http.Request) {
	var req proposalsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	anchor := s.now().In(s.loc)
	if req.Date != "" {
		t, err := timeutil.ParseDateKey(req.Date, s.loc)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid date")
			return
		}
		anchor = t
	}
	week := layout.WeekOf(anchor, s.cfg.FirstWeekday())

	events, err := s.events.Events(r.Context(), week.Start, week.End())
	if err != nil {
		appLog.Error("api proposals: load events failed", err)
		writeError(w, http.StatusInternalServerError, "failed to load events")
		return
	}
	toggles, err := s.toggles(r.Context())
	if err != nil {
		appLog.Error("api proposals: load toggles failed", err)
		writeError(w, http.StatusInternalServerError, "failed to load toggles")
		return
	}

	conflictSet := layout.ConflictSet(events, toggles, s.engine.Filter)
	boxes := s.engine.LayoutProposals(week, req.Proposals, conflictSet)
	if boxes == nil {
		boxes = []layout.ProposalBox{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"week_start": week.Key(),
		"proposals":  boxes,
	})
}

// handleRefresh re-reads every calendar source immediately.
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	snap, err := s.events.RefreshNow(r.Context())
	s.Invalidate()
	resp := map[string]any{}
	if snap != nil {
		resp["events"] = len(snap.Events)
		resp["updated_at"] = snap.UpdatedAt.In(s.loc).Format(time.RFC3339)
		resp["failed"] = snap.Failed
	}
	if err != nil {
		appLog.Error("api refresh incomplete", err)
		resp["error"] = err.Error()
		writeJSON(w, http.StatusBadGateway, resp)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}
