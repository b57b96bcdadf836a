package searchbackend

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"

	"github.com/foundryml/forge/internal/dataset"
)

// Simulated is a Backend that fabricates scored documents, rate-limited the
// way a real hybrid-search API would throttle batch delivery. It exists for
// development and integration tests; FailAfter exercises the pipeline's
// source-error-mid-stream path deterministically.
type Simulated struct {
	// BatchSize is how many documents each emitted batch carries. Defaults to 10.
	BatchSize int
	// RatePerSecond bounds how many batches are emitted per second. 0 disables limiting.
	RatePerSecond float64
	// FailAfter, if > 0, causes Stream to emit an error after this many documents.
	FailAfter int
}

// Stream fabricates up to q.TopK documents, evenly distributed across
// batches, gated by a token-bucket limiter when RatePerSecond is set.
func (s *Simulated) Stream(ctx context.Context, q dataset.Query) (<-chan Batch, <-chan error) {
	batches := make(chan Batch)
	errs := make(chan error, 1)

	batchSize := s.BatchSize
	if batchSize <= 0 {
		batchSize = 10
	}

	var limiter *rate.Limiter
	if s.RatePerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(s.RatePerSecond), 1)
	}

	go func() {
		defer close(errs)
		defer close(batches)

		emitted := 0
		for emitted < q.TopK {
			if limiter != nil {
				if err := limiter.Wait(ctx); err != nil {
					errs <- err
					return
				}
			}

			n := batchSize
			if remaining := q.TopK - emitted; n > remaining {
				n = remaining
			}

			docs := make([]dataset.Document, 0, n)
			for i := 0; i < n; i++ {
				idx := emitted + i
				if s.FailAfter > 0 && idx >= s.FailAfter {
					errs <- fmt.Errorf("simulated backend: forced failure after %d documents", s.FailAfter)
					return
				}
				docs = append(docs, fabricate(q, idx))
			}

			select {
			case batches <- Batch{Documents: docs}:
			case <-ctx.Done():
				errs <- ctx.Err()
				return
			}

			emitted += n
		}
	}()

	return batches, errs
}

func fabricate(q dataset.Query, idx int) dataset.Document {
	quality := 0.4 + 0.6*pseudoRandom(idx)
	text := q.QueryText
	if len(q.QueryVariants) > 0 {
		text = q.QueryVariants[idx%len(q.QueryVariants)]
	}
	return dataset.Document{
		DocumentID:     fmt.Sprintf("doc-%06d", idx),
		Content:        fmt.Sprintf("%s result %d body text for evaluation.", text, idx),
		Score:          1.0 - float64(idx)/float64(q.TopK+1),
		QualityScore:   quality,
		TokenCount:     int64(20 + idx%50),
		RelevanceScore: 1.0 - float64(idx)/float64(q.TopK+1),
		Source:         "simulated",
	}
}

// pseudoRandom is a deterministic, seedless stand-in for actual score
// variance so repeated simulated runs are reproducible in tests.
func pseudoRandom(idx int) float64 {
	v := (idx*2654435761 + 17) % 1000
	if v < 0 {
		v += 1000
	}
	return float64(v) / 1000.0
}
