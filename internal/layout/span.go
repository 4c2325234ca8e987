package layout

import (
	"weekgrid/internal/model"
	"weekgrid/internal/timeutil"
)

// DefaultDurationMinutes is assumed for events that carry neither an end
// time nor a duration.
const DefaultDurationMinutes = 60

// span is a timed event resolved to [start, end) minutes of its day.
// index is the event's position in the input slice and breaks sort ties.
type span struct {
	event model.CalendarEvent
	start int
	end   int
	index int
}

// spanOf resolves the effective interval of e. ok is false for untimed or
// malformed start times.
func spanOf(e model.CalendarEvent, index int) (span, bool) {
	start, ok := timeutil.TimeToMinutes(e.Time)
	if !ok {
		return span{}, false
	}
	return span{
		event: e,
		start: start,
		end:   effectiveEnd(e, start),
		index: index,
	}, true
}

// effectiveEnd applies the end-time, then duration, then one-hour fallback.
// An end time that does not parse or is not after start counts as absent,
// as does a non-positive duration, so every span has positive length.
func effectiveEnd(e model.CalendarEvent, start int) int {
	if end, ok := timeutil.TimeToMinutes(e.EndTime); ok && end > start {
		return end
	}
	if e.Duration > 0 {
		return start + e.Duration
	}
	return start + DefaultDurationMinutes
}

func (s span) overlaps(o span) bool {
	return s.start < o.end && s.end > o.start
}

func (s span) duration() int {
	return s.end - s.start
}

// Overlaps reports whether two events on the same day share any time, using
// the half-open test: touching endpoints do not overlap. Untimed events
// never overlap anything. The date fields are not compared.
func Overlaps(a, b model.CalendarEvent) bool {
	sa, ok := spanOf(a, 0)
	if !ok {
		return false
	}
	sb, ok := spanOf(b, 0)
	if !ok {
		return false
	}
	return sa.overlaps(sb)
}

// EffectiveEndMinutes returns the resolved end of e in minutes since
// midnight, or false if e is untimed.
func EffectiveEndMinutes(e model.CalendarEvent) (int, bool) {
	s, ok := spanOf(e, 0)
	if !ok {
		return 0, false
	}
	return s.end, true
}
