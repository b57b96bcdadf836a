package trainer

import (
	"context"
	"fmt"
	"math/rand"
	"time"
)

// Simulated is a Trainer that fabricates a training run without invoking any
// real trainer process. It exists for development and integration tests,
// mirroring the original system's practice of running a simulated training
// loop when no real trainer is wired in.
type Simulated struct {
	// StepDuration is how long one simulated epoch takes. Defaults to 10ms.
	StepDuration time.Duration
	// Epochs is how many simulated epochs a run advances through. Defaults to 3.
	Epochs int
	// FailKinds causes any job of a listed kind to fail, for exercising the
	// trainer-failure path in tests.
	FailKinds map[string]bool
}

// Run fabricates metrics over a small number of simulated epochs, honoring
// context cancellation between epochs (the core does not require this, but
// it keeps simulated runs from outliving a cancelled caller context).
func (s *Simulated) Run(ctx context.Context, kind, configRef, datasetRef, outputDir string) (Result, error) {
	if s.FailKinds[kind] {
		return Result{}, fmt.Errorf("simulated trainer: forced failure for kind %q", kind)
	}

	step := s.StepDuration
	if step <= 0 {
		step = 10 * time.Millisecond
	}
	epochs := s.Epochs
	if epochs <= 0 {
		epochs = 3
	}

	loss := 1.0
	for epoch := 1; epoch <= epochs; epoch++ {
		select {
		case <-ctx.Done():
			return Result{}, ctx.Err()
		case <-time.After(step):
		}
		loss *= 0.7 + rand.Float64()*0.1
	}

	return Result{
		ArtifactRef: fmt.Sprintf("%s/%s/adapter.safetensors", outputDir, kind),
		Metrics: map[string]float64{
			"final_loss": loss,
			"epochs":     float64(epochs),
		},
	}, nil
}
