// Package state persists the watcher's run state: the last successful check
// time and the set of advisory IDs already dispatched.
package state

import (
	"context"
	"sort"
	"time"
)

// RunState is owned by the scheduler for the process lifetime. ProcessedIDs
// only grows; IDs are never pruned. A single set is shared across all
// sources within a cycle.
type RunState struct {
	LastCheck    time.Time
	processedIDs map[string]struct{}
}

// NewRunState creates a run state with an empty processed-ID set.
func NewRunState(lastCheck time.Time) *RunState {
	return &RunState{
		LastCheck:    lastCheck.UTC(),
		processedIDs: make(map[string]struct{}),
	}
}

// Seen reports whether the advisory ID has already been dispatched.
func (s *RunState) Seen(id string) bool {
	_, ok := s.processedIDs[id]
	return ok
}

// MarkSeen records an advisory ID as dispatched. Marking an ID twice is a
// no-op.
func (s *RunState) MarkSeen(id string) {
	s.processedIDs[id] = struct{}{}
}

// ProcessedCount returns the number of distinct processed IDs.
func (s *RunState) ProcessedCount() int {
	return len(s.processedIDs)
}

// IDs returns the processed IDs sorted for stable serialization. Order
// carries no meaning.
func (s *RunState) IDs() []string {
	ids := make([]string, 0, len(s.processedIDs))
	for id := range s.processedIDs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Store loads and saves run state. Load never fails: on any problem it
// returns a fresh state with LastCheck set to now minus the configured
// lookback. Save failures are reported to the caller, which logs and moves
// on; a lost save only risks a duplicate alert after a restart.
type Store interface {
	Load(ctx context.Context) *RunState
	Save(ctx context.Context, st *RunState) error
}
