package pipeline

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/newsdigest/digest-pipeline/internal/digest"
	"github.com/newsdigest/digest-pipeline/internal/enrich"
	"github.com/newsdigest/digest-pipeline/internal/util"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// Failure is a candidate that was attempted this run and did not produce a
// record. The candidate is the original, unmodified input so a later retry
// starts clean.
type Failure struct {
	Candidate digest.Candidate
	Reason    string
}

// OrchestratorOptions control in-run retry, pacing, and batching. These are
// distinct from the cross-run retry queue: MaxRetries bounds immediate
// reattempts of a single call.
type OrchestratorOptions struct {
	// BatchSize packs up to this many candidates into one enrichment call.
	// <=1 means one candidate per call.
	BatchSize int

	// MaxRetries is the in-run retry ceiling for transient failures.
	MaxRetries int

	// RequestTimeout bounds a single call attempt.
	RequestTimeout time.Duration

	// CallsPerSecond paces successive call attempts. <=0 disables pacing.
	CallsPerSecond float64

	// BackoffInitial is the first sleep before retrying a transient failure.
	BackoffInitial time.Duration
	// BackoffMax caps exponential backoff.
	BackoffMax time.Duration
	// BackoffJitterFrac applies +/- jitter to backoff sleeps (0.2 = +/-20%).
	BackoffJitterFrac float64
}

func (o OrchestratorOptions) withDefaults() OrchestratorOptions {
	if o.BatchSize <= 0 {
		o.BatchSize = 1
	}
	if o.MaxRetries < 0 {
		o.MaxRetries = 0
	}
	if o.RequestTimeout <= 0 {
		o.RequestTimeout = 120 * time.Second
	}
	if o.BackoffInitial <= 0 {
		o.BackoffInitial = 500 * time.Millisecond
	}
	if o.BackoffMax <= 0 {
		o.BackoffMax = 8 * time.Second
	}
	if o.BackoffJitterFrac <= 0 {
		o.BackoffJitterFrac = 0.2
	}
	return o
}

// Orchestrator drives enrichment calls batch by batch, sequentially. The
// external service is the bottleneck and is rate-paced, not parallelized.
type Orchestrator struct {
	enricher enrich.Enricher
	opts     OrchestratorOptions
	limiter  *rate.Limiter
	log      *logrus.Entry
}

func NewOrchestrator(enricher enrich.Enricher, opts OrchestratorOptions, log *logrus.Entry) *Orchestrator {
	opts = opts.withDefaults()
	var limiter *rate.Limiter
	if opts.CallsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.CallsPerSecond), 1)
	}
	return &Orchestrator{enricher: enricher, opts: opts, limiter: limiter, log: log}
}

// EnrichAll processes candidates and routes each to exactly one outcome:
// the returned records, or the returned failures. It only errors when the
// run context is cancelled; per-call failures never abort the run.
func (o *Orchestrator) EnrichAll(ctx context.Context, candidates []digest.Candidate) ([]digest.Record, []Failure, error) {
	if len(candidates) == 0 {
		return nil, nil, nil
	}

	batches := Partition(candidates, BatchCount(len(candidates), o.opts.BatchSize))

	var records []digest.Record
	var failures []Failure
	for _, batch := range batches {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}
		recs, fails, err := o.enrichBatch(ctx, batch)
		if err != nil {
			return nil, nil, err
		}
		records = append(records, recs...)
		failures = append(failures, fails...)
	}
	return records, failures, nil
}

func (o *Orchestrator) enrichBatch(ctx context.Context, batch []digest.Candidate) ([]digest.Record, []Failure, error) {
	items := make([]enrich.Item, len(batch))
	for i, c := range batch {
		items[i] = enrich.Item{ID: i, Title: c.Title, Body: c.Body, Kind: c.Category}
	}

	results, err := o.callWithRetry(ctx, items)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, nil, ctxErr
		}
		reason := util.RedactSecrets(err.Error())
		o.log.WithError(err).WithField("batch_size", len(batch)).Warn("enrichment call failed")
		failures := make([]Failure, len(batch))
		for i, c := range batch {
			failures[i] = Failure{Candidate: c, Reason: reason}
		}
		return nil, failures, nil
	}

	// Map returned results back to submitted items by correlation id. A
	// submitted item with no result is a failure, not a silent drop.
	byID := make(map[int]enrich.Enriched, len(results))
	for _, res := range results {
		if res.ID < 0 || res.ID >= len(batch) {
			o.log.WithField("id", res.ID).Warn("enrichment result with unknown correlation id")
			continue
		}
		if _, dup := byID[res.ID]; dup {
			continue
		}
		byID[res.ID] = res
	}

	var records []digest.Record
	var failures []Failure
	for i, c := range batch {
		res, ok := byID[i]
		if !ok {
			failures = append(failures, Failure{Candidate: c, Reason: "no result for correlation id"})
			continue
		}
		if res.Summary == "" {
			failures = append(failures, Failure{Candidate: c, Reason: "empty summary in result"})
			continue
		}
		title := res.TranslatedTitle
		if title == "" {
			title = c.Title
		}
		records = append(records, digest.Record{
			Candidate:       c,
			TranslatedTitle: title,
			Summary:         res.Summary,
		})
	}
	return records, failures, nil
}

func (o *Orchestrator) callWithRetry(ctx context.Context, items []enrich.Item) ([]enrich.Enriched, error) {
	var lastErr error
	attempts := 1 + o.opts.MaxRetries
	for attempt := 0; attempt < attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		if o.limiter != nil {
			if err := o.limiter.Wait(ctx); err != nil {
				return nil, err
			}
		}

		reqCtx, cancel := context.WithTimeout(ctx, o.opts.RequestTimeout)
		results, err := o.enricher.Enrich(reqCtx, items)
		cancel()
		if err == nil {
			return results, nil
		}
		if errors.Is(err, context.Canceled) && ctx.Err() != nil {
			return nil, ctx.Err()
		}
		lastErr = err
		if !enrich.IsTransient(err) || attempt == attempts-1 {
			return nil, err
		}

		sleep := backoffSleep(o.opts.BackoffInitial, o.opts.BackoffMax, o.opts.BackoffJitterFrac, attempt)
		o.log.WithError(err).WithField("attempt", attempt+1).WithField("sleep", sleep.String()).Debug("transient enrichment failure, backing off")
		t := time.NewTimer(sleep)
		select {
		case <-t.C:
		case <-ctx.Done():
			t.Stop()
			return nil, ctx.Err()
		}
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("enrichment did not complete")
	}
	return nil, lastErr
}

func backoffSleep(initial, max time.Duration, jitterFrac float64, attempt int) time.Duration {
	sleep := initial
	for i := 0; i < attempt && sleep < max; i++ {
		sleep *= 2
		if sleep > max {
			sleep = max
			break
		}
	}
	if jitterFrac <= 0 {
		return sleep
	}
	// Apply +/- jitterFrac.
	j := 1 + (rand.Float64()*2-1)*jitterFrac
	return time.Duration(float64(sleep) * j)
}
