package model

import (
	"testing"
	"time"
)

type row struct{ id, date, start, end string }

func rows(events []CalendarEvent) []row {
	out := make([]row, 0, len(events))
	for _, e := range events {
		out = append(out, row{e.ID, e.Date, e.Time, e.EndTime})
	}
	return out
}

func TestOccurrenceEvents(t *testing.T) {
	tests := []struct {
		name string
		occ  Occurrence
		want []row
	}{
		{
			name: "same day",
			occ: Occurrence{CalendarID: "work", UID: "u1",
				Start: time.Date(2024, 6, 10, 9, 0, 0, 0, time.UTC),
				End:   time.Date(2024, 6, 10, 10, 30, 0, 0, time.UTC)},
			want: []row{{"work/u1", "2024-06-10", "09:00", "10:30"}},
		},
		{
			name: "ends at midnight",
			occ: Occurrence{CalendarID: "work", UID: "u2", InstanceKey: "k",
				Start: time.Date(2024, 6, 10, 22, 0, 0, 0, time.UTC),
				End:   time.Date(2024, 6, 11, 0, 0, 0, 0, time.UTC)},
			want: []row{{"work/u2@k", "2024-06-10", "22:00", "24:00"}},
		},
		{
			name: "crosses midnight",
			occ: Occurrence{CalendarID: "c", UID: "u3",
				Start: time.Date(2024, 6, 10, 23, 0, 0, 0, time.UTC),
				End:   time.Date(2024, 6, 12, 1, 0, 0, 0, time.UTC)},
			want: []row{
				{"c/u3", "2024-06-10", "23:00", "24:00"},
				{"c/u3#1", "2024-06-11", "00:00", "24:00"},
				{"c/u3#2", "2024-06-12", "00:00", "01:00"},
			},
		},
		{
			name: "zero length",
			occ: Occurrence{CalendarID: "c", UID: "u4",
				Start: time.Date(2024, 6, 10, 8, 0, 0, 0, time.UTC),
				End:   time.Date(2024, 6, 10, 8, 0, 0, 0, time.UTC)},
			want: []row{{"c/u4", "2024-06-10", "08:00", ""}},
		},
		{
			name: "all day two days",
			occ: Occurrence{CalendarID: "h", UID: "trip", AllDay: true,
				Start: time.Date(2024, 6, 14, 0, 0, 0, 0, time.UTC),
				End:   time.Date(2024, 6, 16, 0, 0, 0, 0, time.UTC)},
			want: []row{{"h/trip", "2024-06-14", "", ""}, {"h/trip#1", "2024-06-15", "", ""}},
		},
		{
			name: "all day without end",
			occ: Occurrence{CalendarID: "h", UID: "day", AllDay: true,
				Start: time.Date(2024, 6, 14, 0, 0, 0, 0, time.UTC)},
			want: []row{{"h/day", "2024-06-14", "", ""}},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := rows(tc.occ.Events(time.UTC))
			if len(got) != len(tc.want) {
				t.Fatalf("got %v, want %v", got, tc.want)
			}
			for i := range got {
				if got[i] != tc.want[i] {
					t.Errorf("row %d = %v, want %v", i, got[i], tc.want[i])
				}
			}
		})
	}
}

func TestOccurrenceEventsUsesDisplayZone(t *testing.T) {
	seoul := time.FixedZone("KST", 9*3600)
	occ := Occurrence{CalendarID: "c", UID: "u",
		Start: time.Date(2024, 6, 10, 16, 0, 0, 0, time.UTC),
		End:   time.Date(2024, 6, 10, 17, 0, 0, 0, time.UTC)}
	got := occ.Events(seoul)
	if len(got) != 1 || got[0].Date != "2024-06-11" || got[0].Time != "01:00" {
		t.Errorf("got %v", rows(got))
	}
}

func TestFilterHelpers(t *testing.T) {
	cals := []Calendar{{ID: "a", Selected: true}, {ID: "b"}}
	tg := TogglesFrom(cals)
	c := tg.Clone()
	c["b"] = true
	if tg["b"] || !tg["a"] {
		t.Errorf("Clone aliased the original: %v", tg)
	}

	in := []CalendarEvent{{ID: "x", Attendees: []string{"ann"}}}
	out := CloneEvents(in)
	out[0].Attendees[0] = "bob"
	if in[0].Attendees[0] != "ann" {
		t.Error("CloneEvents aliased attendees")
	}
	if !StatusConfirmed.Graduated() || StatusPending.Graduated() || Status("maybe").Valid() {
		t.Error("status helpers disagree")
	}
}
