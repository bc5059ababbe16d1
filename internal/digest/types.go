// Package digest defines the data shapes that flow through the ingestion
// pipeline and the persisted snapshot schema.
package digest

import (
	"strings"
	"time"
)

const dateLayout = "2006-01-02"

// Date is a civil date serialized as YYYY-MM-DD.
//
// Snapshots written by earlier iterations of this tool may carry dates in
// other formats or plain garbage; unmarshaling tolerates that by leaving the
// zero value, so one bad historical record cannot poison the whole load.
// Zero-dated history is dropped deterministically by the retention filter.
type Date struct {
	time.Time
}

// DateOf truncates t to its civil date.
func DateOf(t time.Time) Date {
	return Date{time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)}
}

func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte(`""`), nil
	}
	return []byte(`"` + d.Format(dateLayout) + `"`), nil
}

func (d *Date) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		d.Time = time.Time{}
		return nil
	}
	for _, layout := range []string{dateLayout, time.RFC3339} {
		if t, err := time.Parse(layout, s); err == nil {
			*d = DateOf(t)
			return nil
		}
	}
	d.Time = time.Time{}
	return nil
}

// Candidate is a freshly read, not-yet-enriched item from a source. Its URL
// is the global identity key: stable across runs for the same real-world
// item, unique across the whole archive.
type Candidate struct {
	URL         string `json:"url"`
	Title       string `json:"title"`
	Body        string `json:"body"`
	Source      string `json:"source"`
	Category    string `json:"category"`
	PublishedAt Date   `json:"published_at"`
	MediaURL    string `json:"media_url,omitempty"`
}

// Record is a Candidate plus enrichment output. Historical records loaded
// from a snapshot are structurally identical. A Record never carries a
// failure marker: candidates that failed enrichment go to the retry queue,
// not into records.
type Record struct {
	Candidate
	TranslatedTitle string `json:"translated_title"`
	Summary         string `json:"summary"`
}

// RetryEntry carries a candidate whose enrichment did not succeed this run
// into the next run. Attempted distinguishes "tried and failed" from
// "deferred past the per-run call cap without an attempt".
type RetryEntry struct {
	Candidate
	Attempted bool   `json:"attempted"`
	Reason    string `json:"reason,omitempty"`
}

// Snapshot is the sole persisted artifact: the entire cross-run state.
type Snapshot struct {
	GeneratedAt time.Time    `json:"generated_at"`
	Records     []Record     `json:"records"`
	RetryQueue  []RetryEntry `json:"retry_queue"`
}
