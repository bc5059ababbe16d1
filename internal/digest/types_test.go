package digest_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/newsdigest/digest-pipeline/internal/digest"
)

func TestDate_RoundTrip(t *testing.T) {
	t.Parallel()

	d := digest.DateOf(time.Date(2026, 8, 30, 23, 59, 0, 0, time.UTC))
	b, err := json.Marshal(d)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(b) != `"2026-08-30"` {
		t.Fatalf("unexpected encoding: %s", b)
	}

	var back digest.Date
	if err := json.Unmarshal(b, &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !back.Equal(d.Time) {
		t.Fatalf("round trip changed date: %v -> %v", d, back)
	}
}

func TestDate_UnmarshalToleratesGarbage(t *testing.T) {
	t.Parallel()

	for _, raw := range []string{`"not-a-date"`, `""`, `"2026/08/30"`, `null`} {
		var d digest.Date
		if err := json.Unmarshal([]byte(raw), &d); err != nil {
			t.Fatalf("unmarshal %s must not error: %v", raw, err)
		}
		if !d.IsZero() {
			t.Fatalf("unmarshal %s: expected zero date, got %v", raw, d)
		}
	}
}

func TestDate_UnmarshalAcceptsRFC3339(t *testing.T) {
	t.Parallel()

	var d digest.Date
	if err := json.Unmarshal([]byte(`"2026-08-30T06:00:00Z"`), &d); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if d.Format("2006-01-02") != "2026-08-30" {
		t.Fatalf("unexpected date: %v", d)
	}
}

func TestRecord_JSONShape(t *testing.T) {
	t.Parallel()

	rec := digest.Record{
		Candidate: digest.Candidate{
			URL:         "https://a.example/1",
			Title:       "T",
			Body:        "B",
			Source:      "Nature",
			Category:    "News",
			PublishedAt: digest.DateOf(time.Date(2026, 8, 30, 0, 0, 0, 0, time.UTC)),
		},
		TranslatedTitle: "TT",
		Summary:         "S",
	}

	b, err := json.Marshal(rec)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	// Candidate fields must flatten into the record object, not nest.
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	for _, key := range []string{"url", "title", "body", "source", "category", "published_at", "translated_title", "summary"} {
		if _, ok := m[key]; !ok {
			t.Fatalf("missing key %q in %s", key, b)
		}
	}
	if _, ok := m["media_url"]; ok {
		t.Fatalf("empty media_url should be omitted: %s", b)
	}
}
