package layout

import (
	"testing"
	"time"

	"weekgrid/internal/timeutil"
)

func TestWeekOf(t *testing.T) {
	wed := time.Date(2024, time.June, 12, 15, 4, 0, 0, time.UTC)
	tests := []struct {
		first time.Weekday
		want  string
	}{
		{time.Sunday, "2024-06-09"},
		{time.Monday, "2024-06-10"},
		{time.Wednesday, "2024-06-12"},
		{time.Thursday, "2024-06-06"},
	}
	for _, tc := range tests {
		t.Run(tc.first.String(), func(t *testing.T) {
			w := WeekOf(wed, tc.first)
			if got := w.Key(); got != tc.want {
				t.Errorf("WeekOf(%v, %v) = %s, want %s", wed, tc.first, got, tc.want)
			}
			if w.Start.Hour() != 0 || w.Start.Weekday() != tc.first {
				t.Errorf("start %v is not midnight of a %v", w.Start, tc.first)
			}
		})
	}
}

func TestWeekNavigationRoundTrip(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Skipf("tzdata missing: %v", err)
	}
	// Weeks around both DST changes in 2024.
	starts := []time.Time{
		time.Date(2024, time.March, 3, 0, 0, 0, 0, loc),
		time.Date(2024, time.March, 10, 0, 0, 0, 0, loc),
		time.Date(2024, time.October, 27, 0, 0, 0, 0, loc),
		time.Date(2024, time.December, 29, 0, 0, 0, 0, loc),
	}
	for _, s := range starts {
		w := WeekOf(s, time.Sunday)
		if got := w.Next().Prev(); !got.Start.Equal(w.Start) {
			t.Errorf("Next().Prev() from %v = %v", w.Start, got.Start)
		}
		if got := w.Prev().Next(); !got.Start.Equal(w.Start) {
			t.Errorf("Prev().Next() from %v = %v", w.Start, got.Start)
		}
		for i, d := range w.Days() {
			if d.Hour() != 0 {
				t.Errorf("day %d of week %v is not at midnight: %v", i, w.Start, d)
			}
		}
	}
}

func TestWeekDaysAcrossDST(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Skipf("tzdata missing: %v", err)
	}
	w := WeekOf(time.Date(2024, time.March, 12, 9, 0, 0, 0, loc), time.Sunday)
	want := []string{"2024-03-10", "2024-03-11", "2024-03-12", "2024-03-13", "2024-03-14", "2024-03-15", "2024-03-16"}
	for i, d := range w.Days() {
		if got := timeutil.DateKey(d); got != want[i] {
			t.Errorf("day %d = %s, want %s", i, got, want[i])
		}
	}
}

func TestWeekGoToMonth(t *testing.T) {
	w := WeekOf(time.Date(2024, time.June, 12, 0, 0, 0, 0, time.UTC), time.Sunday)
	tests := []struct {
		year  int
		month time.Month
		want  string
	}{
		{2024, time.September, "2024-09-01"}, // the 1st is a Sunday
		{2024, time.June, "2024-05-26"},
		{2025, time.January, "2024-12-29"},
		{2024, 13, "2024-12-29"}, // normalizes to January 2025
	}
	for _, tc := range tests {
		got := w.GoToMonth(tc.year, tc.month)
		if got.Key() != tc.want {
			t.Errorf("GoToMonth(%d, %d) = %s, want %s", tc.year, tc.month, got.Key(), tc.want)
		}
		if got.FirstDay != w.FirstDay {
			t.Errorf("GoToMonth changed FirstDay to %v", got.FirstDay)
		}
	}
}

func TestWeekTodayAndContains(t *testing.T) {
	w := WeekOf(time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC), time.Monday)
	now := time.Date(2024, time.June, 16, 22, 0, 0, 0, time.UTC) // Sunday
	today := w.Today(now)
	if today.Key() != "2024-06-10" {
		t.Errorf("Today = %s, want 2024-06-10", today.Key())
	}
	if !today.Contains(now) || today.Contains(now.AddDate(0, 0, 1)) {
		t.Error("Contains disagrees with the week bounds")
	}
	if !today.ContainsKey("2024-06-10") || today.ContainsKey("2024-06-17") || today.ContainsKey("2024-06-09") {
		t.Error("ContainsKey disagrees with the week bounds")
	}
	if today.Label() != "June 2024" {
		t.Errorf("Label = %q", today.Label())
	}
}
