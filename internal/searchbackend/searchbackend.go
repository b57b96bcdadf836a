// Package searchbackend defines the external hybrid-search collaborator
// contract: an async source of ranked document batches. The core dataset
// builder depends only on the Backend interface; this package also
// provides a Simulated implementation for development and tests.
package searchbackend

import (
	"context"

	"github.com/foundryml/forge/internal/dataset"
)

// Batch is one chunk of scored documents returned by a Stream call.
type Batch struct {
	Documents []dataset.Document
}

// Backend streams documents matching a query. Stream sends batches on the
// returned channel until the source is exhausted or ctx is cancelled, then
// closes it; any terminal error is sent on the error channel exactly once.
// Documents arrive already ranked; the pipeline never re-ranks them.
type Backend interface {
	Stream(ctx context.Context, q dataset.Query) (<-chan Batch, <-chan error)
}
