// Package timeutil holds the small clock/date conversions shared by the
// layout engine and the calendar sources.
package timeutil

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// MinutesPerDay is 24 hours * 60 minutes.
const MinutesPerDay = 1440

const dateKeyLayout = "2006-01-02"

// TimeToMinutes converts an "HH:MM" clock string into minutes since
// midnight. The boolean is false for empty or malformed input; callers treat
// that as "untimed". "24:00" is accepted and maps to MinutesPerDay so it can
// be used as a display window end.
func TimeToMinutes(s string) (int, bool) {
	s = strings.TrimSpace(s)
	hh, mm, found := strings.Cut(s, ":")
	if !found || hh == "" || len(mm) != 2 || len(hh) > 2 || !allDigits(hh) || !allDigits(mm) {
		return 0, false
	}
	h, err := strconv.Atoi(hh)
	if err != nil {
		return 0, false
	}
	m, err := strconv.Atoi(mm)
	if err != nil || m > 59 {
		return 0, false
	}
	if h > 24 || (h == 24 && m != 0) {
		return 0, false
	}
	return h*60 + m, true
}

// allDigits reports whether s consists of ASCII digits only. strconv.Atoi
// alone would also take a leading sign.
func allDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// MinutesToTime formats minutes since midnight as "HH:MM".
func MinutesToTime(mins int) string {
	if mins < 0 {
		mins = 0
	}
	return fmt.Sprintf("%02d:%02d", mins/60, mins%60)
}

// ClockOf returns the "HH:MM" wall-clock time of t in its own location.
func ClockOf(t time.Time) string {
	return MinutesToTime(t.Hour()*60 + t.Minute())
}

// DateKey returns "YYYY-MM-DD" built from the local calendar fields of t.
// It deliberately never converts to UTC: a 23:30 event west of UTC must stay
// on its own day.
func DateKey(t time.Time) string {
	return fmt.Sprintf("%04d-%02d-%02d", t.Year(), int(t.Month()), t.Day())
}

// ParseDateKey parses "YYYY-MM-DD" into local midnight of that day in loc.
// A nil loc means time.Local.
func ParseDateKey(s string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.Local
	}
	t, err := time.ParseInLocation(dateKeyLayout, strings.TrimSpace(s), loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse date key %q: %w", s, err)
	}
	return t, nil
}

// StartOfDay truncates t to local midnight, keeping its location.
func StartOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
