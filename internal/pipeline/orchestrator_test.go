package pipeline_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/newsdigest/digest-pipeline/internal/digest"
	"github.com/newsdigest/digest-pipeline/internal/enrich"
	"github.com/newsdigest/digest-pipeline/internal/pipeline"
)

type fnEnricher struct {
	f func(ctx context.Context, items []enrich.Item) ([]enrich.Enriched, error)
}

func (e fnEnricher) Enrich(ctx context.Context, items []enrich.Item) ([]enrich.Enriched, error) {
	return e.f(ctx, items)
}

func echoAll(items []enrich.Item) []enrich.Enriched {
	out := make([]enrich.Enriched, len(items))
	for i, it := range items {
		out[i] = enrich.Enriched{ID: it.ID, TranslatedTitle: "T:" + it.Title, Summary: "S:" + it.Title}
	}
	return out
}

func fastOptions(batchSize, maxRetries int) pipeline.OrchestratorOptions {
	return pipeline.OrchestratorOptions{
		BatchSize:      batchSize,
		MaxRetries:     maxRetries,
		RequestTimeout: time.Second,
		BackoffInitial: time.Millisecond,
		BackoffMax:     2 * time.Millisecond,
	}
}

func TestEnrichAll_RetriesTransient(t *testing.T) {
	t.Parallel()

	calls := 0
	e := fnEnricher{f: func(_ context.Context, items []enrich.Item) ([]enrich.Enriched, error) {
		calls++
		if calls <= 2 {
			return nil, &enrich.TransientError{Err: errors.New("try again")}
		}
		return echoAll(items), nil
	}}

	orch := pipeline.NewOrchestrator(e, fastOptions(1, 3), quietLog())
	records, failures, err := orch.EnrichAll(context.Background(), candidates(1))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 3 {
		t.Fatalf("expected 3 calls, got %d", calls)
	}
	if len(records) != 1 || len(failures) != 0 {
		t.Fatalf("unexpected outcome: records=%d failures=%d", len(records), len(failures))
	}
}

func TestEnrichAll_DoesNotRetryPermanent(t *testing.T) {
	t.Parallel()

	calls := 0
	e := fnEnricher{f: func(_ context.Context, _ []enrich.Item) ([]enrich.Enriched, error) {
		calls++
		return nil, &enrich.PermanentError{Err: errors.New("content rejected")}
	}}

	orch := pipeline.NewOrchestrator(e, fastOptions(1, 10), quietLog())
	records, failures, err := orch.EnrichAll(context.Background(), candidates(1))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected 1 call, got %d", calls)
	}
	if len(records) != 0 || len(failures) != 1 {
		t.Fatalf("unexpected outcome: records=%d failures=%d", len(records), len(failures))
	}
	if failures[0].Reason == "" {
		t.Fatalf("expected failure reason, got %#v", failures[0])
	}
}

func TestEnrichAll_DoesNotRetryMalformedOutput(t *testing.T) {
	t.Parallel()

	calls := 0
	e := fnEnricher{f: func(_ context.Context, _ []enrich.Item) ([]enrich.Enriched, error) {
		calls++
		return nil, &enrich.MalformedOutputError{Err: errors.New("not json")}
	}}

	orch := pipeline.NewOrchestrator(e, fastOptions(1, 5), quietLog())
	_, failures, err := orch.EnrichAll(context.Background(), candidates(1))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected 1 call, got %d", calls)
	}
	if len(failures) != 1 {
		t.Fatalf("expected 1 failure, got %d", len(failures))
	}
}

func TestEnrichAll_MissingCorrelationIDsBecomeFailures(t *testing.T) {
	t.Parallel()

	e := fnEnricher{f: func(_ context.Context, items []enrich.Item) ([]enrich.Enriched, error) {
		// Respond for only 3 of the 5 submitted items.
		out := echoAll(items)
		return out[:3], nil
	}}

	orch := pipeline.NewOrchestrator(e, fastOptions(5, 0), quietLog())
	records, failures, err := orch.EnrichAll(context.Background(), candidates(5))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("expected 3 records, got %d", len(records))
	}
	if len(failures) != 2 {
		t.Fatalf("expected 2 failures, got %d", len(failures))
	}
	for _, f := range failures {
		if f.Reason != "no result for correlation id" {
			t.Fatalf("unexpected failure: %#v", f)
		}
	}
}

func TestEnrichAll_BatchSizeBoundsCalls(t *testing.T) {
	t.Parallel()

	var sizes []int
	e := fnEnricher{f: func(_ context.Context, items []enrich.Item) ([]enrich.Enriched, error) {
		sizes = append(sizes, len(items))
		return echoAll(items), nil
	}}

	orch := pipeline.NewOrchestrator(e, fastOptions(2, 0), quietLog())
	records, _, err := orch.EnrichAll(context.Background(), candidates(5))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(records) != 5 {
		t.Fatalf("expected 5 records, got %d", len(records))
	}
	if len(sizes) != 3 || sizes[0] != 2 || sizes[1] != 2 || sizes[2] != 1 {
		t.Fatalf("unexpected call sizes: %v", sizes)
	}
}

func TestEnrichAll_CancelledContextAbortsRun(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	e := fnEnricher{f: func(_ context.Context, items []enrich.Item) ([]enrich.Enriched, error) {
		cancel()
		return echoAll(items), nil
	}}

	orch := pipeline.NewOrchestrator(e, fastOptions(1, 0), quietLog())
	_, _, err := orch.EnrichAll(ctx, candidates(3))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestEnrichAll_FallsBackToOriginalTitle(t *testing.T) {
	t.Parallel()

	e := fnEnricher{f: func(_ context.Context, items []enrich.Item) ([]enrich.Enriched, error) {
		return []enrich.Enriched{{ID: 0, TranslatedTitle: "", Summary: "summary"}}, nil
	}}

	cand := digest.Candidate{URL: "https://a.example/x", Title: "Original"}
	orch := pipeline.NewOrchestrator(e, fastOptions(1, 0), quietLog())
	records, _, err := orch.EnrichAll(context.Background(), []digest.Candidate{cand})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(records) != 1 || records[0].TranslatedTitle != "Original" {
		t.Fatalf("unexpected records: %#v", records)
	}
}
