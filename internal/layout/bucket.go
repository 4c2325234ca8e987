package layout

import (
	"sort"

	"weekgrid/internal/model"
)

// dayBucket is one day's share of the filtered events.
type dayBucket struct {
	// timed holds events starting inside the window, sorted by start with
	// input order breaking ties.
	timed []span
	// untimed holds events without a usable start time.
	untimed []model.CalendarEvent
	// outside holds timed events that start outside the window.
	outside []model.CalendarEvent
}

// bucketDay selects the events of the day identified by key.
func bucketDay(key string, events []model.CalendarEvent, w Window) dayBucket {
	var b dayBucket
	for i, e := range events {
		if e.Date != key {
			continue
		}
		s, ok := spanOf(e, i)
		if !ok {
			b.untimed = append(b.untimed, e)
			continue
		}
		if !w.Contains(s.start) {
			b.outside = append(b.outside, e)
			continue
		}
		b.timed = append(b.timed, s)
	}

	sort.SliceStable(b.timed, func(i, j int) bool {
		return b.timed[i].start < b.timed[j].start
	})
	return b
}
