// Package trainer defines the external trainer subroutine contract the
// worker pool invokes, plus a simulated implementation for development and
// tests. The core never depends on a concrete trainer, only this interface.
package trainer

import "context"

// Result is what a successful trainer invocation produces.
type Result struct {
	ArtifactRef string
	Metrics     map[string]float64
}

// Trainer runs one trainer invocation to completion. Implementations are
// blocking: the caller is expected to run Run on a dedicated goroutine so a
// slow trainer does not starve other concurrent invocations.
type Trainer interface {
	Run(ctx context.Context, kind, configRef, datasetRef, outputDir string) (Result, error)
}
