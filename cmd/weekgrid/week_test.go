package main

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"weekgrid/internal/layout"
	"weekgrid/internal/model"
)

func sampleWeek(t *testing.T) layout.WeekLayout {
	t.Helper()
	e := layout.DefaultEngine("agent-pending")
	w := layout.WeekOf(time.Date(2024, 6, 12, 9, 0, 0, 0, time.UTC), time.Sunday)
	events := []model.CalendarEvent{
		{ID: "a", Date: "2024-06-12", Time: "09:00", EndTime: "10:00", Title: "Standup", CalendarID: "work"},
		{ID: "b", Date: "2024-06-12", Time: "09:30", Duration: 60, Title: "Review", CalendarID: "work"},
		{ID: "c", Date: "2024-06-13", Title: "Holiday", CalendarID: "work"},
		{ID: "d", Date: "2024-06-14", Time: "05:00", Title: "Early run"},
	}
	return e.LayoutWeek(w, events, model.Toggles{"work": true})
}

func TestWriteWeekJSON(t *testing.T) {
	var buf bytes.Buffer
	if err := writeWeekJSON(&buf, sampleWeek(t)); err != nil {
		t.Fatal(err)
	}
	var got struct {
		WeekStart string        `json:"week_start"`
		Days      []weekDayJSON `json:"days"`
	}
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatal(err)
	}
	if got.WeekStart != "2024-06-09" {
		t.Errorf("week_start = %q", got.WeekStart)
	}
	if len(got.Days) != layout.DaysPerWeek {
		t.Fatalf("days = %d", len(got.Days))
	}
	wed := got.Days[3]
	if wed.Date != "2024-06-12" || len(wed.Boxes) != 2 {
		t.Fatalf("wednesday = %+v", wed)
	}
	for i, b := range wed.Boxes {
		if b.Columns != 2 || b.Column != i {
			t.Errorf("box %s column %d/%d", b.ID, b.Column, b.Columns)
		}
	}
	if wed.Boxes[1].End != "10:30" {
		t.Errorf("duration end = %q, want 10:30", wed.Boxes[1].End)
	}
	if thu := got.Days[4]; len(thu.Untimed) != 1 || thu.Untimed[0] != "Holiday" {
		t.Errorf("thursday untimed = %v", thu.Untimed)
	}
}

func TestWriteWeekTable(t *testing.T) {
	var buf bytes.Buffer
	if err := writeWeekTable(&buf, sampleWeek(t), false); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, want := range []string{"June 2024", "09:00-10:00", "[2/2]", "Review", "(outside)", "Early run"} {
		if !strings.Contains(out, want) {
			t.Errorf("table missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "Holiday") {
		t.Error("all-day events should be hidden without showAllDay")
	}

	buf.Reset()
	if err := writeWeekTable(&buf, sampleWeek(t), true); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "Holiday") {
		t.Error("all-day events missing with showAllDay")
	}
}
