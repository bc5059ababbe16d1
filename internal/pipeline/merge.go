package pipeline

import (
	"sort"

	"github.com/newsdigest/digest-pipeline/internal/digest"
	"github.com/sirupsen/logrus"
)

// Merge combines retention-filtered history with this run's newly enriched
// records, deduplicates by identity keeping the first occurrence (history
// before new, so a historical record is never silently overwritten), and
// sorts by published date descending. The sort is stable, so same-date
// records keep their encounter order across runs.
//
// Upstream dedup should make identity collisions impossible here; seeing one
// means an invariant was violated somewhere above, so it is logged loudly
// rather than treated as a normal path.
func Merge(history, fresh []digest.Record, log *logrus.Entry) []digest.Record {
	seen := make(map[string]struct{}, len(history)+len(fresh))
	merged := make([]digest.Record, 0, len(history)+len(fresh))

	appendUnique := func(recs []digest.Record, origin string) {
		for _, rec := range recs {
			if _, dup := seen[rec.URL]; dup {
				log.WithFields(logrus.Fields{
					"url":    rec.URL,
					"origin": origin,
				}).Warn("identity collision at merge, keeping first occurrence")
				continue
			}
			seen[rec.URL] = struct{}{}
			merged = append(merged, rec)
		}
	}
	appendUnique(history, "history")
	appendUnique(fresh, "fresh")

	sort.SliceStable(merged, func(i, j int) bool {
		return merged[j].PublishedAt.Before(merged[i].PublishedAt.Time)
	})
	return merged
}
