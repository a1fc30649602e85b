// Package stream provides labeled-example sources for the engine: a
// synthetic drifting generator, CSV files, HTTP-served datasets, and a
// websocket feed.
package stream

import (
	"context"

	"driftstream/internal/learner"
)

// Source delivers labeled examples until the context is canceled or the
// source is exhausted. Implementations close out when done and report
// recoverable problems on errs without stopping.
type Source interface {
	Stream(ctx context.Context, out chan<- learner.Example, errs chan<- error) error
}
