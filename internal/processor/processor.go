// Package processor runs the fetch → dedup → classify → dispatch pipeline
// for each advisory source.
package processor

import (
	"context"
	"log/slog"

	"cvewatch/internal/feed"
	"cvewatch/internal/metrics"
	"cvewatch/internal/state"
)

// criticalScore is the CVSS boundary for the critical gauge and card tag.
const criticalScore = 9.0

// Dispatcher sends a formatted alert for one advisory.
type Dispatcher interface {
	Dispatch(ctx context.Context, adv feed.Advisory) error
}

// Observer is notified after each dispatch attempt, successful or not.
// Optional integrations (Kafka events, the Postgres archive) implement it.
type Observer interface {
	AdvisoryProcessed(ctx context.Context, adv feed.Advisory, sent bool)
}

// Result summarizes one source's share of a cycle.
type Result struct {
	Sent     int
	Critical int
}

// Processor drives the per-source pipeline.
type Processor struct {
	dispatcher Dispatcher
	metrics    metrics.Recorder
	observers  []Observer
}

// New creates a processor. Observers may be empty.
func New(dispatcher Dispatcher, rec metrics.Recorder, observers ...Observer) *Processor {
	return &Processor{
		dispatcher: dispatcher,
		metrics:    rec,
		observers:  observers,
	}
}

// ProcessSource fetches candidates from src and dispatches the unseen ones,
// mutating st in place. IDs are marked processed even when dispatch fails:
// at-most-once delivery, so a persistently broken webhook cannot cause
// repeat alerts every cycle.
func (p *Processor) ProcessSource(ctx context.Context, src feed.Source, st *state.RunState) Result {
	candidates, err := src.Fetch(ctx, st.LastCheck)
	if err != nil {
		slog.Warn("Source fetch failed, continuing with no items",
			"source", src.Name(),
			"error", err,
		)
		p.metrics.RecordFetchError(src.Name())
		return Result{}
	}

	var res Result
	for _, adv := range candidates {
		if st.Seen(adv.ID) {
			slog.Debug("Advisory already processed, skipping",
				"cve_id", adv.ID,
				"source", src.Name(),
			)
			continue
		}

		err := p.dispatcher.Dispatch(ctx, adv)
		sent := err == nil
		if err != nil {
			slog.Error("Failed to dispatch alert",
				"cve_id", adv.ID,
				"source", src.Name(),
				"error", err,
			)
		} else {
			p.metrics.RecordAlertSent(src.Name())
		}

		st.MarkSeen(adv.ID)
		res.Sent++
		if adv.Score >= criticalScore {
			res.Critical++
		}

		for _, o := range p.observers {
			o.AdvisoryProcessed(ctx, adv, sent)
		}
	}

	slog.Info("Source processed",
		"source", src.Name(),
		"candidates", len(candidates),
		"sent", res.Sent,
		"critical", res.Critical,
	)
	return res
}
