package pipeline_test

import (
	"io"
	"testing"
	"time"

	"github.com/newsdigest/digest-pipeline/internal/digest"
	"github.com/newsdigest/digest-pipeline/internal/pipeline"
	"github.com/sirupsen/logrus"
)

func quietLog() *logrus.Entry {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return logrus.NewEntry(log)
}

func recordOn(url string, published time.Time) digest.Record {
	return digest.Record{
		Candidate: digest.Candidate{URL: url, Title: url, PublishedAt: digest.DateOf(published)},
		Summary:   "s",
	}
}

func TestFilterRetained_BoundedWindow(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	records := []digest.Record{
		recordOn("https://a.example/old", now.AddDate(0, 0, -8)),
		recordOn("https://a.example/edge", now.AddDate(0, 0, -7)),
		recordOn("https://a.example/new", now.AddDate(0, 0, -2)),
	}

	got := pipeline.FilterRetained(records, 7, now, quietLog())
	if len(got) != 2 {
		t.Fatalf("expected 2 retained, got %d: %#v", len(got), got)
	}
	if got[0].URL != "https://a.example/edge" || got[1].URL != "https://a.example/new" {
		t.Fatalf("unexpected retained records: %#v", got)
	}
}

func TestFilterRetained_UnboundedKeepsOldRecords(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 8, 30, 0, 0, 0, 0, time.UTC)
	records := []digest.Record{
		recordOn("https://a.example/ancient", now.AddDate(-3, 0, 0)),
	}

	got := pipeline.FilterRetained(records, 0, now, quietLog())
	if len(got) != 1 {
		t.Fatalf("expected 1 retained, got %d", len(got))
	}
}

func TestFilterRetained_DropsUndatedHistory(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 8, 30, 0, 0, 0, 0, time.UTC)
	records := []digest.Record{
		{Candidate: digest.Candidate{URL: "https://a.example/undated"}, Summary: "s"},
		recordOn("https://a.example/dated", now),
	}

	// Undated records are dropped even with retention disabled: they cannot
	// be aged consistently across runs.
	got := pipeline.FilterRetained(records, 0, now, quietLog())
	if len(got) != 1 || got[0].URL != "https://a.example/dated" {
		t.Fatalf("unexpected retained records: %#v", got)
	}
}
