package store

import (
	"context"
	"time"

	"weekgrid/internal/model"
	"weekgrid/internal/timeutil"
)

// AgentSource exposes the stored agent events as a calendar source.
type AgentSource struct {
	store *Store
}

// AgentSourceID is the provider ID of AgentSource.
const AgentSourceID = "agent-store"

// Source returns the store as a calendar source.
func (s *Store) Source() *AgentSource {
	return &AgentSource{store: s}
}

// ID returns AgentSourceID.
func (a *AgentSource) ID() string { return AgentSourceID }

// Events returns the agent events dated in [from, to), compared as local
// date keys in from's location.
func (a *AgentSource) Events(ctx context.Context, from, to time.Time) ([]model.CalendarEvent, error) {
	end := to.In(from.Location())
	toKey := timeutil.DateKey(end)
	if !timeutil.StartOfDay(end).Equal(end) {
		toKey = timeutil.DateKey(end.AddDate(0, 0, 1))
	}
	return a.store.ListAgentEvents(ctx, timeutil.DateKey(from), toKey)
}
