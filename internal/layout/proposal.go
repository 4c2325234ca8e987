package layout

import "weekgrid/internal/model"

// Proposal is a candidate meeting slot offered by the scheduling flow. It is
// drawn as a full-width overlay on top of the grid while the user picks one.
type Proposal struct {
	Date     string `json:"date"`
	Time     string `json:"time"`
	Duration int    `json:"duration"`
	Label    string `json:"label,omitempty"`
	Color    string `json:"color,omitempty"`
}

func (p Proposal) asEvent() model.CalendarEvent {
	return model.CalendarEvent{Date: p.Date, Time: p.Time, Duration: p.Duration}
}

// ProposalBox is a proposal with its geometry and the events it would
// collide with.
type ProposalBox struct {
	Proposal  Proposal              `json:"proposal"`
	Geometry  Geometry              `json:"geometry"`
	Conflicts []model.CalendarEvent `json:"conflicts,omitempty"`
}

// Conflicts returns the timed events on p's date that overlap it.
func Conflicts(p Proposal, events []model.CalendarEvent) []model.CalendarEvent {
	probe := p.asEvent()
	if _, ok := spanOf(probe, 0); !ok {
		return nil
	}
	var out []model.CalendarEvent
	for _, e := range events {
		if e.Date != p.Date {
			continue
		}
		if Overlaps(probe, e) {
			out = append(out, e)
		}
	}
	return out
}

// ConflictsFor checks one slot against the conflict set derived from events.
func (e *Engine) ConflictsFor(p Proposal, events []model.CalendarEvent, toggles model.Toggles) []model.CalendarEvent {
	return Conflicts(p, ConflictSet(events, toggles, e.Filter))
}

// LayoutProposals projects the proposals that fall inside week. Proposals
// with a malformed time or outside the week are skipped. conflictSet is
// usually the output of ConflictSet.
func (e *Engine) LayoutProposals(w Week, proposals []Proposal, conflictSet []model.CalendarEvent) []ProposalBox {
	var out []ProposalBox
	for _, p := range proposals {
		if !w.ContainsKey(p.Date) {
			continue
		}
		s, ok := spanOf(p.asEvent(), 0)
		if !ok {
			continue
		}
		out = append(out, ProposalBox{
			Proposal:  p,
			Geometry:  projectInterval(s.start, s.end, 0, 1, e.Window, e.Geometry),
			Conflicts: Conflicts(p, conflictSet),
		})
	}
	return out
}
