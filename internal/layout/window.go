package layout

import (
	"fmt"

	"weekgrid/internal/timeutil"
)

// Window is the displayed slice of a day, [Start, End) in minutes since
// midnight.
type Window struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// DefaultWindow is 06:00 to midnight, an 18 hour span.
var DefaultWindow = Window{Start: 6 * 60, End: timeutil.MinutesPerDay}

// NewWindow builds a window and panics when End <= Start. A non-positive
// span is a caller bug, not bad event data.
func NewWindow(start, end int) Window {
	w := Window{Start: start, End: end}
	w.mustValid()
	return w
}

// ParseWindow parses "HH:MM" bounds as found in configuration files.
func ParseWindow(start, end string) (Window, error) {
	s, ok := timeutil.TimeToMinutes(start)
	if !ok {
		return Window{}, fmt.Errorf("display window: invalid start %q", start)
	}
	e, ok := timeutil.TimeToMinutes(end)
	if !ok {
		return Window{}, fmt.Errorf("display window: invalid end %q", end)
	}
	if e <= s {
		return Window{}, fmt.Errorf("display window: end %s is not after start %s", end, start)
	}
	return Window{Start: s, End: e}, nil
}

// Span returns the window length in minutes.
func (w Window) Span() int {
	w.mustValid()
	return w.End - w.Start
}

// Contains reports whether a start minute falls inside the window.
func (w Window) Contains(minute int) bool {
	return minute >= w.Start && minute < w.End
}

// Hours lists the whole hours whose grid line falls inside the window, for
// drawing the time gutter.
func (w Window) Hours() []int {
	var out []int
	for h := (w.Start + 59) / 60; h*60 < w.End; h++ {
		out = append(out, h)
	}
	return out
}

func (w Window) String() string {
	return timeutil.MinutesToTime(w.Start) + "-" + timeutil.MinutesToTime(w.End)
}

func (w Window) mustValid() {
	if w.End <= w.Start {
		panic(fmt.Sprintf("layout: display window %d-%d has non-positive span", w.Start, w.End))
	}
}
