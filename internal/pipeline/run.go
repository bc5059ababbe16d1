// Package pipeline implements the incremental ingestion state machine: one
// run merges candidates from the retry queue and the source readers against
// persisted history, enriches what is new under a call budget, and produces
// the next snapshot.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/newsdigest/digest-pipeline/internal/digest"
	"github.com/newsdigest/digest-pipeline/internal/enrich"
	"github.com/newsdigest/digest-pipeline/internal/snapshot"
	"github.com/newsdigest/digest-pipeline/internal/source"
	"github.com/sirupsen/logrus"
)

// Options are the numeric policies of a run. The state-machine logic is
// identical regardless of the values chosen.
type Options struct {
	// RetentionDays bounds the archive by age. <=0 keeps history forever.
	RetentionDays int

	// MaxCallsPerRun is the hard cap on candidates submitted for enrichment
	// in one run. Candidates beyond it are deferred to the next retry queue
	// without an attempt. <=0 means no cap.
	MaxCallsPerRun int

	Orchestrator OrchestratorOptions
}

// Stats accounts for every candidate seen during a run. Every candidate
// lands in exactly one of Duplicates, Invalid, Enriched, Failed, or
// Deferred.
type Stats struct {
	Candidates int
	Duplicates int
	Invalid    int
	Enriched   int
	Failed     int
	Deferred   int
	Retained   int
}

// Runner executes one run to completion. It holds no cross-run state: all
// durable state lives in the snapshot store.
type Runner struct {
	Sources  []source.Reader
	Enricher enrich.Enricher
	Store    *snapshot.Store
	Log      *logrus.Entry
	Options  Options

	// Now is the clock; tests substitute it.
	Now func() time.Time
}

// Run executes the full pipeline once. Per-source and per-item failures are
// contained and logged; only a cancelled context or a failed snapshot write
// makes the run itself fail.
func (r *Runner) Run(ctx context.Context) (Stats, error) {
	now := time.Now()
	if r.Now != nil {
		now = r.Now()
	}
	log := r.Log.WithField("run", uuid.NewString())

	prev, err := r.Store.Load()
	if err != nil {
		// A corrupt snapshot must not block future runs: cold start.
		log.WithError(err).Warn("snapshot unreadable, starting from empty history")
		prev = digest.Snapshot{}
	}

	retained := FilterRetained(prev.Records, r.Options.RetentionDays, now, log)

	index := NewIndex()
	for _, rec := range retained {
		index.Add(rec.URL)
	}

	var stats Stats
	stats.Retained = len(retained)

	// Single combined dedup pass. Retry-queue entries are reinjected first
	// and claim their identity, so a freshly scraped duplicate of a queued
	// item is discarded in favor of the queued one, which already carries
	// prior-attempt metadata.
	var pending []digest.Candidate
	admit := func(c digest.Candidate) {
		stats.Candidates++
		if c.URL == "" {
			stats.Invalid++
			log.WithFields(logrus.Fields{"source": c.Source, "title": c.Title}).Warn("candidate without identity, skipping")
			return
		}
		if index.Contains(c.URL) {
			stats.Duplicates++
			return
		}
		index.Add(c.URL)
		pending = append(pending, c)
	}

	for _, entry := range prev.RetryQueue {
		admit(entry.Candidate)
	}
	retryPending := len(pending)

	for _, reader := range r.Sources {
		items, err := reader.Read(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return stats, ctx.Err()
			}
			log.WithError(err).WithField("source", reader.Name()).Error("source read failed, continuing with zero candidates")
			continue
		}
		log.WithFields(logrus.Fields{"source": reader.Name(), "items": len(items)}).Debug("source read")
		for _, c := range items {
			admit(c)
		}
	}

	// Quota protection: everything past the cap is deferred, not failed.
	attempts := pending
	var deferred []digest.Candidate
	if budget := r.Options.MaxCallsPerRun; budget > 0 && len(pending) > budget {
		attempts = pending[:budget]
		deferred = pending[budget:]
		log.WithFields(logrus.Fields{"cap": budget, "deferred": len(deferred)}).Info("per-run call budget reached")
	}

	log.WithFields(logrus.Fields{
		"from_retry_queue": retryPending,
		"to_attempt":       len(attempts),
		"duplicates":       stats.Duplicates,
	}).Info("candidates collected")

	orch := NewOrchestrator(r.Enricher, r.Options.Orchestrator, log)
	records, failures, err := orch.EnrichAll(ctx, attempts)
	if err != nil {
		return stats, err
	}
	stats.Enriched = len(records)
	stats.Failed = len(failures)
	stats.Deferred = len(deferred)

	nextQueue := make([]digest.RetryEntry, 0, len(failures)+len(deferred))
	for _, f := range failures {
		nextQueue = append(nextQueue, digest.RetryEntry{Candidate: f.Candidate, Attempted: true, Reason: f.Reason})
	}
	for _, c := range deferred {
		nextQueue = append(nextQueue, digest.RetryEntry{Candidate: c, Attempted: false})
	}

	next := digest.Snapshot{
		GeneratedAt: now,
		Records:     Merge(retained, records, log),
		RetryQueue:  nextQueue,
	}

	// Losing the snapshot loses all work done this run; this is the one
	// error that fails the run.
	if err := r.Store.Save(next); err != nil {
		return stats, fmt.Errorf("persist snapshot: %w", err)
	}

	report(log, next, stats)
	return stats, nil
}

func report(log *logrus.Entry, snap digest.Snapshot, stats Stats) {
	perSource := map[string]int{}
	for _, rec := range snap.Records {
		perSource[rec.Source]++
	}

	log.WithFields(logrus.Fields{
		"candidates": stats.Candidates,
		"duplicates": stats.Duplicates,
		"invalid":    stats.Invalid,
		"enriched":   stats.Enriched,
		"failed":     stats.Failed,
		"deferred":   stats.Deferred,
		"retained":   stats.Retained,
		"records":    len(snap.Records),
		"retry_next": len(snap.RetryQueue),
	}).Info("run complete")

	for name, count := range perSource {
		log.WithFields(logrus.Fields{"source": name, "records": count}).Info("archive by source")
	}
}
