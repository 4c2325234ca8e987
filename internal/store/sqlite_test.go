package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"weekgrid/internal/layout"
	"weekgrid/internal/model"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(filepath.Join(t.TempDir(), "db", "weekgrid.db"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestCreateAndGetAgentEvent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	created, err := s.CreateAgentEvent(ctx, model.CalendarEvent{
		CalendarID: "agent-pending",
		Date:       "2024-06-10",
		Time:       "09:00",
		Duration:   30,
		Title:      "Hold: design review",
		Attendees:  []string{"ann@example.com", "bob@example.com"},
		SessionID:  "s1",
	})
	if err != nil {
		t.Fatalf("CreateAgentEvent: %v", err)
	}
	if created.ID == "" || created.Status != model.StatusPending || !created.AgentEvent {
		t.Errorf("created = %+v", created)
	}
	if len(created.Attendees) != 2 || created.Attendees[1] != "bob@example.com" {
		t.Errorf("attendees = %v", created.Attendees)
	}

	got, err := s.GetAgentEvent(ctx, created.ID)
	if err != nil || got.Title != created.Title || got.Duration != 30 {
		t.Errorf("GetAgentEvent = %+v, %v", got, err)
	}

	if _, err := s.GetAgentEvent(ctx, "nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing event error = %v", err)
	}
}

func TestCreateAgentEventValidation(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	base := model.CalendarEvent{CalendarID: "c", Date: "2024-06-10", Title: "t"}

	tests := []struct {
		name   string
		mutate func(*model.CalendarEvent)
	}{
		{"no calendar", func(e *model.CalendarEvent) { e.CalendarID = "" }},
		{"no title", func(e *model.CalendarEvent) { e.Title = "" }},
		{"bad date", func(e *model.CalendarEvent) { e.Date = "June 10" }},
		{"bad time", func(e *model.CalendarEvent) { e.Time = "9am" }},
		{"bad end", func(e *model.CalendarEvent) { e.EndTime = "25:00" }},
		{"negative duration", func(e *model.CalendarEvent) { e.Duration = -5 }},
		{"bad status", func(e *model.CalendarEvent) { e.Status = "maybe" }},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			e := base
			tc.mutate(&e)
			if _, err := s.CreateAgentEvent(ctx, e); !errors.Is(err, ErrInvalidEvent) {
				t.Errorf("err = %v, want ErrInvalidEvent", err)
			}
		})
	}
}

func TestListAgentEvents(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	for _, d := range []string{"2024-06-08", "2024-06-09", "2024-06-12", "2024-06-16"} {
		if _, err := s.CreateAgentEvent(ctx, model.CalendarEvent{CalendarID: "c", Date: d, Title: d}); err != nil {
			t.Fatal(err)
		}
	}
	got, err := s.ListAgentEvents(ctx, "2024-06-09", "2024-06-16")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0].Date != "2024-06-09" || got[1].Date != "2024-06-12" {
		t.Errorf("ListAgentEvents = %+v", got)
	}
	all, _ := s.ListAgentEvents(ctx, "", "")
	if len(all) != 4 {
		t.Errorf("unbounded list = %d", len(all))
	}

	src := s.Source()
	from := time.Date(2024, 6, 9, 0, 0, 0, 0, time.UTC)
	rows, err := src.Events(ctx, from, from.AddDate(0, 0, 7))
	if err != nil || len(rows) != 2 {
		t.Errorf("AgentSource.Events = %d rows, %v", len(rows), err)
	}
	if src.ID() != AgentSourceID {
		t.Errorf("ID = %q", src.ID())
	}
}

func TestStatusTransitions(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	var ids []string
	for _, tm := range []string{"09:00", "13:00", "16:00"} {
		e, err := s.CreateAgentEvent(ctx, model.CalendarEvent{
			CalendarID: "agent-pending", Date: "2024-06-11", Time: tm, Title: "Option " + tm, SessionID: "s1",
		})
		if err != nil {
			t.Fatal(err)
		}
		ids = append(ids, e.ID)
	}
	other, _ := s.CreateAgentEvent(ctx, model.CalendarEvent{CalendarID: "agent-pending", Date: "2024-06-11", Title: "other", SessionID: "s2"})

	confirmed, err := s.ConfirmSession(ctx, ids[1], "work")
	if err != nil {
		t.Fatalf("ConfirmSession: %v", err)
	}
	if confirmed.Status != model.StatusConfirmed || confirmed.CalendarID != "work" {
		t.Errorf("confirmed = %+v", confirmed)
	}

	session, err := s.ListSession(ctx, "s1")
	if err != nil {
		t.Fatal(err)
	}
	for _, e := range session {
		want := model.StatusCancelled
		if e.ID == ids[1] {
			want = model.StatusConfirmed
		}
		if e.Status != want {
			t.Errorf("%s status = %s, want %s", e.Time, e.Status, want)
		}
	}
	if got, _ := s.GetAgentEvent(ctx, other.ID); got.Status != model.StatusPending {
		t.Errorf("other session touched: %s", got.Status)
	}

	if _, err := s.UpdateStatus(ctx, other.ID, "bogus", ""); !errors.Is(err, ErrInvalidStatus) {
		t.Errorf("bogus status error = %v", err)
	}
	if _, err := s.UpdateStatus(ctx, "missing", model.StatusCancelled, ""); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing id error = %v", err)
	}
	updated, err := s.UpdateStatus(ctx, other.ID, model.StatusCancelled, "")
	if err != nil || updated.Status != model.StatusCancelled || updated.CalendarID != "agent-pending" {
		t.Errorf("UpdateStatus = %+v, %v", updated, err)
	}

	if err := s.DeleteAgentEvent(ctx, other.ID); err != nil {
		t.Errorf("DeleteAgentEvent: %v", err)
	}
	if err := s.DeleteAgentEvent(ctx, other.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("second delete error = %v", err)
	}
}

func TestConfirmedHoldStillConflicts(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	hold, err := s.CreateAgentEvent(ctx, model.CalendarEvent{
		CalendarID: "agent-pending", Date: "2024-06-11", Time: "10:00", Duration: 60, Title: "Hold", SessionID: "s1",
	})
	if err != nil {
		t.Fatal(err)
	}

	if _, err := s.ConfirmSession(ctx, hold.ID, ""); !errors.Is(err, ErrInvalidEvent) {
		t.Errorf("confirm without calendar error = %v", err)
	}
	if _, err := s.UpdateStatus(ctx, hold.ID, model.StatusConfirmed, ""); !errors.Is(err, ErrInvalidEvent) {
		t.Errorf("status confirmed without calendar error = %v", err)
	}
	if got, _ := s.GetAgentEvent(ctx, hold.ID); got.Status != model.StatusPending {
		t.Fatalf("rejected confirm changed status to %s", got.Status)
	}

	if _, err := s.ConfirmSession(ctx, hold.ID, "agent-confirmed"); err != nil {
		t.Fatalf("ConfirmSession: %v", err)
	}
	stored, err := s.ListAgentEvents(ctx, "2024-06-11", "2024-06-12")
	if err != nil {
		t.Fatal(err)
	}

	engine := layout.DefaultEngine("agent-pending")
	toggles := model.Toggles{"agent-pending": true, "agent-confirmed": true}
	if n := len(layout.Filter(stored, toggles, engine.Filter)); n != 1 {
		t.Errorf("display set = %d events, want 1", n)
	}
	slot := layout.Proposal{Date: "2024-06-11", Time: "10:30", Duration: 30}
	conflicts := engine.ConflictsFor(slot, stored, toggles)
	if len(conflicts) != 1 || conflicts[0].ID != hold.ID {
		t.Errorf("conflicts for 10:30 = %+v, want the confirmed event", conflicts)
	}
}

func TestToggles(t *testing.T) {
	path := filepath.Join(t.TempDir(), "weekgrid.db")
	s, err := New(path)
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	if err := s.SetSelected(ctx, "work", true); err != nil {
		t.Fatal(err)
	}
	if err := s.SetSelected(ctx, "home", true); err != nil {
		t.Fatal(err)
	}
	if err := s.SetSelected(ctx, "home", false); err != nil {
		t.Fatal(err)
	}
	if err := s.SetSelected(ctx, "", true); err == nil {
		t.Error("expected error for empty id")
	}
	s.Close()

	// Reopen to check persistence and that migrations are idempotent.
	s, err = New(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s.Close()
	got, err := s.Toggles(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || !got["work"] || got["home"] {
		t.Errorf("Toggles = %v", got)
	}

	eff, err := s.EffectiveToggles(ctx, []model.Calendar{
		{ID: "home", Selected: true},
		{ID: "gym", Selected: true},
		{ID: "work"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if eff["home"] || !eff["gym"] || !eff["work"] {
		t.Errorf("EffectiveToggles = %v", eff)
	}
}
