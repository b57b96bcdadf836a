package pool

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/foundryml/forge/internal/apierr"
	"github.com/foundryml/forge/internal/common"
	"github.com/foundryml/forge/internal/hub"
	"github.com/foundryml/forge/internal/jobs"
	"github.com/foundryml/forge/internal/store"
	"github.com/foundryml/forge/internal/trainer"
)

// fakeTrainer lets tests control per-kind success/failure and observe calls.
type fakeTrainer struct {
	mu       sync.Mutex
	calls    int
	failKind map[string]bool
	delay    time.Duration
}

func (f *fakeTrainer) Run(ctx context.Context, kind, configRef, datasetRef, outputDir string) (trainer.Result, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()

	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return trainer.Result{}, ctx.Err()
		}
	}
	if f.failKind != nil && f.failKind[kind] {
		return trainer.Result{}, errors.New("trainer failed")
	}
	return trainer.Result{ArtifactRef: "artifact/" + configRef, Metrics: map[string]float64{"loss": 0.1}}, nil
}

func newTestPool(t *testing.T, tr trainer.Trainer) (*Pool, *store.Store[jobs.Job], *hub.Hub[jobs.ProgressEvent]) {
	t.Helper()
	st := store.New(jobs.Job.Clone)
	h := hub.New[jobs.ProgressEvent](time.Second)
	logger := common.NewSilentLogger()
	p := New(st, h, tr, logger, Config{MaxConcurrent: 2, GracePeriod: 2 * time.Second})
	return p, st, h
}

func TestSubmitRunsJobToCompletion(t *testing.T) {
	tr := &fakeTrainer{}
	p, st, h := newTestPool(t, tr)
	sub := h.Register(4)

	st.Put(jobs.Job{ID: "job-1", Kind: jobs.KindLoRA, State: jobs.StatePending, ConfigRef: "cfg-1", CreatedAt: time.Now()})

	if err := p.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer p.Stop()

	if err := p.Submit("job-1"); err != nil {
		t.Fatalf("Submit() error = %v", err)
	}

	deadline := time.After(2 * time.Second)
	for {
		select {
		case ev := <-sub.Events:
			if ev.State == jobs.StateCompleted {
				got, _ := st.Get("job-1")
				if got.ArtifactRef == "" {
					t.Error("completed job has no artifact_ref")
				}
				return
			}
		case <-deadline:
			t.Fatal("job never reached Completed")
		}
	}
}

func TestSubmitNonPendingJobIsStateConflict(t *testing.T) {
	tr := &fakeTrainer{}
	p, st, _ := newTestPool(t, tr)
	st.Put(jobs.Job{ID: "job-1", State: jobs.StateRunning, CreatedAt: time.Now()})

	err := p.Submit("job-1")
	ae, ok := apierr.As(err)
	if !ok || ae.Kind != apierr.KindStateConflict {
		t.Errorf("Submit() on a running job error = %v, want state-conflict", err)
	}
}

func TestSubmitAfterStopIsRejected(t *testing.T) {
	tr := &fakeTrainer{delay: 100 * time.Millisecond}
	p, st, _ := newTestPool(t, tr)
	st.Put(jobs.Job{ID: "job-1", State: jobs.StatePending, CreatedAt: time.Now()})

	if err := p.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	p.Stop()

	err := p.Submit("job-1")
	ae, ok := apierr.As(err)
	if !ok || ae.Kind != apierr.KindStateConflict {
		t.Errorf("Submit() after Stop() error = %v, want state-conflict", err)
	}
}

func TestCancelPendingJobSucceeds(t *testing.T) {
	tr := &fakeTrainer{}
	p, st, _ := newTestPool(t, tr)
	st.Put(jobs.Job{ID: "job-1", State: jobs.StatePending, CreatedAt: time.Now()})

	cancelled, state, err := p.Cancel("job-1")
	if err != nil || !cancelled || state != jobs.StateCancelled {
		t.Errorf("Cancel() = (%v, %v, %v), want (true, cancelled, nil)", cancelled, state, err)
	}
}

func TestCancelRunningJobIsNotCancellable(t *testing.T) {
	tr := &fakeTrainer{}
	p, st, _ := newTestPool(t, tr)
	st.Put(jobs.Job{ID: "job-1", State: jobs.StateRunning, CreatedAt: time.Now()})

	cancelled, state, err := p.Cancel("job-1")
	if err != nil {
		t.Fatalf("Cancel() on a running job returned an error: %v, want no error", err)
	}
	if cancelled {
		t.Error("Cancel() on a running job cancelled = true, want false")
	}
	if state != jobs.StateRunning {
		t.Errorf("Cancel() current_state = %v, want running", state)
	}
}

func TestCancelAlreadyCancelledIsIdempotent(t *testing.T) {
	tr := &fakeTrainer{}
	p, st, _ := newTestPool(t, tr)
	st.Put(jobs.Job{ID: "job-1", State: jobs.StateCancelled, CreatedAt: time.Now()})

	cancelled, state, err := p.Cancel("job-1")
	if err != nil {
		t.Fatalf("Cancel() on an already-cancelled job returned an error: %v", err)
	}
	if cancelled {
		t.Error("Cancel() on an already-cancelled job cancelled = true, want false")
	}
	if state != jobs.StateCancelled {
		t.Errorf("Cancel() current_state = %v, want cancelled", state)
	}
}

func TestFailedTrainerRunMarksJobFailed(t *testing.T) {
	tr := &fakeTrainer{failKind: map[string]bool{string(jobs.KindLoRA): true}}
	p, st, h := newTestPool(t, tr)
	sub := h.Register(4)

	st.Put(jobs.Job{ID: "job-1", Kind: jobs.KindLoRA, State: jobs.StatePending, ConfigRef: "cfg-1", CreatedAt: time.Now()})

	if err := p.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer p.Stop()

	if err := p.Submit("job-1"); err != nil {
		t.Fatalf("Submit() error = %v", err)
	}

	deadline := time.After(2 * time.Second)
	for {
		select {
		case ev := <-sub.Events:
			if ev.State == jobs.StateFailed {
				got, _ := st.Get("job-1")
				if got.Error == "" {
					t.Error("failed job has no error text")
				}
				return
			}
		case <-deadline:
			t.Fatal("job never reached Failed")
		}
	}
}
