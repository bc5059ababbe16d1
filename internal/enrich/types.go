// Package enrich defines the contract with the external generative text
// service that translates and summarizes items.
package enrich

import (
	"context"
	"errors"
	"net"
)

// Item is a single unit submitted for enrichment. ID is the correlation id
// echoed back in results; when several items are packed into one call, it is
// the only way to map per-item output back to its input.
type Item struct {
	ID    int    `json:"id"`
	Title string `json:"title"`
	Body  string `json:"body"`
	Kind  string `json:"kind"`
}

// Enriched is the per-item output: a translated title and a summary,
// correlated back to the submitted Item by ID.
type Enriched struct {
	ID              int    `json:"id"`
	TranslatedTitle string `json:"translated_title"`
	Summary         string `json:"summary"`
}

// Enricher performs one enrichment call for one or more items. A returned
// error applies to the whole call; items missing from a successful response
// are the caller's problem to detect via correlation ids.
type Enricher interface {
	Enrich(ctx context.Context, items []Item) ([]Enriched, error)
}

// TransientError marks a failure worth retrying within the current run
// (rate limit, upstream 5xx, network blip).
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string {
	if e == nil || e.Err == nil {
		return "transient error"
	}
	return e.Err.Error()
}

func (e *TransientError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// PermanentError marks a failure that must not be retried within this run
// (content rejection, invalid request); retrying it only burns quota. The
// candidate still goes to the cross-run retry queue.
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string {
	if e == nil || e.Err == nil {
		return "permanent error"
	}
	return e.Err.Error()
}

func (e *PermanentError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// MalformedOutputError marks a call whose response could not be parsed into
// the expected structure. Always non-retryable for the attempt: the service
// answered, it just answered garbage.
type MalformedOutputError struct {
	Err error
}

func (e *MalformedOutputError) Error() string {
	if e == nil || e.Err == nil {
		return "malformed enrichment output"
	}
	return e.Err.Error()
}

func (e *MalformedOutputError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// IsTransient reports whether err is worth an in-run retry. Permanent and
// malformed-output failures take precedence over the generic network checks.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	var pe *PermanentError
	if errors.As(err, &pe) {
		return false
	}
	var me *MalformedOutputError
	if errors.As(err, &me) {
		return false
	}
	var te *TransientError
	if errors.As(err, &te) {
		return true
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	if errors.As(err, &ne) {
		return ne.Timeout()
	}
	return false
}
