package pipeline

import (
	"time"

	"github.com/newsdigest/digest-pipeline/internal/digest"
	"github.com/sirupsen/logrus"
)

// FilterRetained decides which historical records survive into this run.
// days > 0 drops records whose published date is more than that many days
// before now (bounded archive); days <= 0 never drops by age (unbounded
// archive, growth bounded only by identity dedup). Records whose date could
// not be parsed at load time are always dropped: a record that cannot be
// aged cannot be retained consistently across runs.
func FilterRetained(records []digest.Record, days int, now time.Time, log *logrus.Entry) []digest.Record {
	retained := make([]digest.Record, 0, len(records))
	var dropped, undated int

	var cutoff time.Time
	if days > 0 {
		cutoff = digest.DateOf(now).AddDate(0, 0, -days)
	}

	for _, rec := range records {
		if rec.PublishedAt.IsZero() {
			undated++
			continue
		}
		if days > 0 && rec.PublishedAt.Before(cutoff) {
			dropped++
			continue
		}
		retained = append(retained, rec)
	}

	if dropped > 0 || undated > 0 {
		log.WithFields(logrus.Fields{
			"dropped_by_age":  dropped,
			"dropped_undated": undated,
			"retained":        len(retained),
		}).Info("retention filter applied")
	}
	return retained
}
