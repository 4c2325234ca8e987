package layout

import (
	"time"

	"weekgrid/internal/timeutil"
)

// DaysPerWeek is the number of day columns in a view.
const DaysPerWeek = 7

// Week anchors the visible seven-day range. It is a value: navigation
// methods return a new Week and never touch event data.
type Week struct {
	// Start is local midnight of the first day of the week.
	Start time.Time
	// FirstDay is the weekday the view starts on (Sunday by default).
	FirstDay time.Weekday
}

// WeekOf returns the week containing t that starts on first.
func WeekOf(t time.Time, first time.Weekday) Week {
	day := timeutil.StartOfDay(t)
	offset := (int(day.Weekday()) - int(first) + DaysPerWeek) % DaysPerWeek
	return Week{
		Start:    day.AddDate(0, 0, -offset),
		FirstDay: first,
	}
}

// Today jumps to the week containing now.
func (w Week) Today(now time.Time) Week {
	return WeekOf(now, w.FirstDay)
}

// Next shifts the week forward by seven days.
func (w Week) Next() Week {
	return Week{Start: w.Start.AddDate(0, 0, DaysPerWeek), FirstDay: w.FirstDay}
}

// Prev shifts the week back by seven days.
func (w Week) Prev() Week {
	return Week{Start: w.Start.AddDate(0, 0, -DaysPerWeek), FirstDay: w.FirstDay}
}

// GoToMonth jumps to the week holding the 1st of the given month, i.e. the
// week whose first day is on or before that date. Out-of-range months
// normalize the way time.Date does.
func (w Week) GoToMonth(year int, month time.Month) Week {
	return w.GoToDate(time.Date(year, month, 1, 0, 0, 0, 0, w.location()))
}

// GoToDate jumps to the week containing t.
func (w Week) GoToDate(t time.Time) Week {
	return WeekOf(t.In(w.location()), w.FirstDay)
}

// Days returns local midnight of each of the seven days. AddDate keeps the
// dates right across DST changes, where adding 24h would not.
func (w Week) Days() [DaysPerWeek]time.Time {
	var out [DaysPerWeek]time.Time
	for i := range DaysPerWeek {
		out[i] = w.Start.AddDate(0, 0, i)
	}
	return out
}

// End is local midnight of the day after the last day.
func (w Week) End() time.Time {
	return w.Start.AddDate(0, 0, DaysPerWeek)
}

// Contains reports whether the date key of t falls inside the week.
func (w Week) Contains(t time.Time) bool {
	return w.ContainsKey(timeutil.DateKey(t))
}

// ContainsKey reports whether a "YYYY-MM-DD" key falls inside the week.
// Keys compare correctly as strings.
func (w Week) ContainsKey(key string) bool {
	return key >= timeutil.DateKey(w.Start) && key < timeutil.DateKey(w.End())
}

// Key is the date key of the first day.
func (w Week) Key() string {
	return timeutil.DateKey(w.Start)
}

// Label is the month heading of the view, e.g. "June 2024".
func (w Week) Label() string {
	return w.Start.Format("January 2006")
}

func (w Week) location() *time.Location {
	if w.Start.IsZero() {
		return time.Local
	}
	return w.Start.Location()
}
