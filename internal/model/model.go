package model

// Status is the lifecycle state of a scheduling-agent event. Events imported
// from external calendars leave it empty.
type Status string

const (
	StatusNone      Status = ""
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusCancelled Status = "cancelled"
)

// Valid reports whether s is one of the known statuses (including none).
func (s Status) Valid() bool {
	switch s {
	case StatusNone, StatusPending, StatusConfirmed, StatusCancelled:
		return true
	}
	return false
}

// Graduated reports whether an agent event has left the pending state.
func (s Status) Graduated() bool {
	return s == StatusConfirmed || s == StatusCancelled
}

// CalendarEvent is one occurrence to display. Sources produce these on every
// refresh; the layout engine treats them as read-only values.
type CalendarEvent struct {
	ID string `json:"id"`

	// Date is the local wall-clock day ("YYYY-MM-DD") the event belongs to.
	Date string `json:"date"`
	// Time is the optional start "HH:MM". Empty means untimed / all-day.
	Time string `json:"time,omitempty"`
	// EndTime is the optional explicit end "HH:MM".
	EndTime string `json:"end_time,omitempty"`
	// Duration in minutes, used when EndTime is absent. Zero means absent.
	Duration int `json:"duration,omitempty"`

	CalendarID string `json:"calendar_id,omitempty"`
	Status     Status `json:"status,omitempty"`
	AgentEvent bool   `json:"agent_event,omitempty"`
	// SessionID groups the holds and the final event of one scheduling request.
	SessionID string `json:"session_id,omitempty"`

	// Opaque payload.
	Title       string   `json:"title"`
	Location    string   `json:"location,omitempty"`
	Description string   `json:"description,omitempty"`
	Color       string   `json:"color,omitempty"`
	Attendees   []string `json:"attendees,omitempty"`
	Source      string   `json:"source,omitempty"`
}

// Timed reports whether the event carries a start time at all.
func (e CalendarEvent) Timed() bool {
	return e.Time != ""
}

// Calendar describes one logical calendar lane.
type Calendar struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Color string `json:"color,omitempty"`
	Kind  string `json:"kind"`

	Selected bool `json:"selected"`
	// Placeholder calendars hold pending agent events until they graduate.
	Placeholder bool `json:"placeholder,omitempty"`
}

// Toggles maps a calendar ID to whether it is selected for display.
type Toggles map[string]bool

// Clone returns an independent copy.
func (t Toggles) Clone() Toggles {
	out := make(Toggles, len(t))
	for k, v := range t {
		out[k] = v
	}
	return out
}

// TogglesFrom builds a toggle map from calendar descriptors.
func TogglesFrom(cals []Calendar) Toggles {
	out := make(Toggles, len(cals))
	for _, c := range cals {
		out[c.ID] = c.Selected
	}
	return out
}

// CloneEvents copies the slice header and each event's attendee slice so the
// result can be handed out without aliasing the caller's data.
func CloneEvents(in []CalendarEvent) []CalendarEvent {
	if in == nil {
		return nil
	}
	out := make([]CalendarEvent, len(in))
	for i, e := range in {
		if e.Attendees != nil {
			e.Attendees = append([]string(nil), e.Attendees...)
		}
		out[i] = e
	}
	return out
}
