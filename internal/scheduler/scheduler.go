// Package scheduler drives the processing pipeline on a fixed interval and
// keeps metrics and persisted state in sync after every cycle.
package scheduler

import (
	"context"
	"log/slog"
	"time"

	"cvewatch/internal/feed"
	"cvewatch/internal/metrics"
	"cvewatch/internal/processor"
	"cvewatch/internal/state"
)

// Scheduler owns the in-memory run state for the process lifetime and is the
// sole writer of the persisted state. It runs single threaded: sources are
// processed serially within a cycle.
type Scheduler struct {
	sources   []feed.Source
	processor *processor.Processor
	store     state.Store
	metrics   metrics.Recorder
	interval  time.Duration

	state *state.RunState
	now   func() time.Time
}

// New creates a scheduler over the given sources.
func New(sources []feed.Source, proc *processor.Processor, store state.Store, rec metrics.Recorder, interval time.Duration) *Scheduler {
	return &Scheduler{
		sources:   sources,
		processor: proc,
		store:     store,
		metrics:   rec,
		interval:  interval,
		now:       time.Now,
	}
}

// Tick runs one full cycle: process every source, update the per-source
// critical gauges, persist state, and advance the check boundary to the
// cycle start. A cycle always runs to completion; no step aborts it.
func (s *Scheduler) Tick(ctx context.Context) {
	if s.state == nil {
		s.state = s.store.Load(ctx)
	}

	cycleStart := s.now().UTC()
	slog.Info("Starting cycle",
		"last_check", s.state.LastCheck.Format(time.RFC3339),
	)

	totalSent := 0
	for _, src := range s.sources {
		res := s.processor.ProcessSource(ctx, src, s.state)
		s.metrics.SetCriticalCount(src.Name(), res.Critical)
		totalSent += res.Sent
	}

	s.state.LastCheck = cycleStart
	if err := s.store.Save(ctx, s.state); err != nil {
		// The in-memory set still prevents duplicates within this process;
		// the next successful save re-persists the full superset of IDs.
		slog.Error("Failed to save run state", "error", err)
	}

	slog.Info("Cycle completed",
		"sent", totalSent,
		"processed_ids", s.state.ProcessedCount(),
	)
}

// Run loads state, ticks immediately, then ticks on every interval until the
// context is cancelled. Cancellation is only observed between cycles.
func (s *Scheduler) Run(ctx context.Context) {
	s.state = s.store.Load(ctx)

	s.Tick(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("Scheduler stopped")
			return
		case <-ticker.C:
			s.Tick(ctx)
		}
	}
}
