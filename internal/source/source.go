// Package source defines the contract for components that surface candidate
// items from upstream providers.
package source

import (
	"context"

	"github.com/newsdigest/digest-pipeline/internal/digest"
)

// Reader pulls candidate items from a single source. Readers may fail on
// network or parse problems; the pipeline treats a reader error as "zero
// candidates from this source" and continues the run.
type Reader interface {
	Name() string
	Read(ctx context.Context) ([]digest.Candidate, error)
}
