// Package pool implements the Worker Pool: a bounded set of concurrent
// executors that drain a FIFO queue, run trainer invocations, and publish
// state transitions. Directly grounded in jobmanager.JobManager's
// safeGo/Start/Stop/processLoop shape, generalized from a stock-index job
// queue to the trainer-kind state machine in package jobs.
package pool

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/foundryml/forge/internal/apierr"
	"github.com/foundryml/forge/internal/common"
	"github.com/foundryml/forge/internal/hub"
	"github.com/foundryml/forge/internal/jobs"
	"github.com/foundryml/forge/internal/store"
	"github.com/foundryml/forge/internal/trainer"
)

// Config controls pool sizing and shutdown behavior.
type Config struct {
	MaxConcurrent int
	QueueCapacity int
	GracePeriod   time.Duration
	// ContinuousLimit caps concurrent Continuous-kind jobs independently of
	// MaxConcurrent. 0 means unlimited (bounded only by MaxConcurrent).
	ContinuousLimit int
}

// Pool is the bounded worker pool for job execution.
type Pool struct {
	store   *store.Store[jobs.Job]
	hub     *hub.Hub[jobs.ProgressEvent]
	trainer trainer.Trainer
	logger  *common.Logger
	config  Config

	queue         chan string
	continuousSem chan struct{}

	submitMu sync.Mutex
	stateMu  sync.Mutex
	running  bool
	stopping bool

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New constructs a Pool. Call Start to begin running workers.
func New(st *store.Store[jobs.Job], h *hub.Hub[jobs.ProgressEvent], tr trainer.Trainer, logger *common.Logger, cfg Config) *Pool {
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 2
	}
	if cfg.QueueCapacity <= 0 {
		cfg.QueueCapacity = 256
	}
	if cfg.GracePeriod <= 0 {
		cfg.GracePeriod = 30 * time.Second
	}
	p := &Pool{
		store:   st,
		hub:     h,
		trainer: tr,
		logger:  logger,
		config:  cfg,
		queue:   make(chan string, cfg.QueueCapacity),
	}
	if cfg.ContinuousLimit > 0 {
		p.continuousSem = make(chan struct{}, cfg.ContinuousLimit)
	}
	return p
}

// safeGo launches a goroutine with panic recovery and logging, so one
// worker's bug never crashes the pool.
func (p *Pool) safeGo(name string, fn func()) {
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				p.logger.Error().
					Str("goroutine", name).
					Str("panic", fmt.Sprintf("%v", r)).
					Str("stack", string(debug.Stack())).
					Msg("recovered from panic in worker pool goroutine")
			}
		}()
		fn()
	}()
}

// Start spawns MaxConcurrent worker contexts. Idempotent while running.
func (p *Pool) Start() error {
	p.stateMu.Lock()
	defer p.stateMu.Unlock()
	if p.running {
		return nil
	}
	if p.stopping {
		return apierr.StateConflict("pool cannot restart after stop")
	}

	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	p.running = true

	for i := 0; i < p.config.MaxConcurrent; i++ {
		workerID := fmt.Sprintf("worker-%d", i)
		p.safeGo(workerID, func() { p.workerLoop(ctx, workerID) })
	}

	p.logger.Info().Int("max_concurrent", p.config.MaxConcurrent).Msg("worker pool started")
	return nil
}

// Stop signals all workers to exit after finishing any current job and
// waits up to GracePeriod for them to terminate. Workers still running past
// the grace period are abandoned; Stop returns regardless.
func (p *Pool) Stop() {
	p.stateMu.Lock()
	if !p.running {
		p.stateMu.Unlock()
		return
	}
	p.stopping = true
	p.cancel()
	p.stateMu.Unlock()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.logger.Info().Msg("worker pool stopped")
	case <-time.After(p.config.GracePeriod):
		p.logger.Warn().Dur("grace_period", p.config.GracePeriod).Msg("worker pool stop timed out; abandoning in-flight workers")
	}

	p.stateMu.Lock()
	p.running = false
	p.stateMu.Unlock()
}

// Submit transitions the named job Pending -> Queued and enqueues it.
// Fails with state-conflict if the job is not Pending, not-found if it does
// not exist, or shutdown-in-progress if Stop has begun.
func (p *Pool) Submit(jobID string) error {
	p.stateMu.Lock()
	stopping := p.stopping
	p.stateMu.Unlock()
	if stopping {
		return apierr.StateConflict("submit rejected: shutdown in progress")
	}

	// submitMu preserves the spec's required total order between the
	// Pending->Queued transition and the FIFO queue position: both happen
	// while holding the lock, so admission order in the store matches send
	// order into the channel even under concurrent submitters.
	p.submitMu.Lock()
	defer p.submitMu.Unlock()

	updated, err := p.store.Update(jobID, func(j jobs.Job) (jobs.Job, error) {
		if j.State != jobs.StatePending {
			return j, apierr.StateConflict("job %s is not pending (state=%s)", jobID, j.State)
		}
		j.State = jobs.StateQueued
		return j, nil
	})
	if err != nil {
		return err
	}

	p.queue <- jobID
	p.hub.Publish(jobs.EventFromJob(updated, time.Now()))
	return nil
}

// Cancel attempts to cancel a job. Pending/Queued jobs are cancelled
// immediately. Running jobs are not cancellable by the core contract.
// Terminal jobs return cancelled=false.
func (p *Pool) Cancel(jobID string) (cancelled bool, current jobs.State, err error) {
	j, ok := p.store.Get(jobID)
	if !ok {
		return false, "", apierr.NotFound("job %s not found", jobID)
	}

	if j.State != jobs.StatePending && j.State != jobs.StateQueued {
		return false, j.State, nil
	}

	updated, err := p.store.Update(jobID, func(j jobs.Job) (jobs.Job, error) {
		if j.State != jobs.StatePending && j.State != jobs.StateQueued {
			return j, apierr.StateConflict("job %s is no longer cancellable (state=%s)", jobID, j.State)
		}
		j.State = jobs.StateCancelled
		return j, nil
	})
	if err != nil {
		current, _ := p.store.Get(jobID)
		return false, current.State, nil
	}

	p.hub.Publish(jobs.EventFromJob(updated, time.Now()))
	return true, jobs.StateCancelled, nil
}

// workerLoop repeatedly awaits a queued item or a shutdown signal, whichever
// comes first, and executes jobs to terminal state.
func (p *Pool) workerLoop(ctx context.Context, workerID string) {
	for {
		select {
		case <-ctx.Done():
			return
		case jobID := <-p.queue:
			p.runOne(ctx, workerID, jobID)
		}
	}
}

func (p *Pool) runOne(ctx context.Context, workerID, jobID string) {
	j, ok := p.store.Get(jobID)
	if !ok {
		p.logger.Warn().Str("job_id", jobID).Msg("dequeued job vanished from store")
		return
	}
	if j.State == jobs.StateCancelled {
		return
	}

	if j.Kind == jobs.KindContinuous && p.continuousSem != nil {
		select {
		case p.continuousSem <- struct{}{}:
			defer func() { <-p.continuousSem }()
		case <-ctx.Done():
			return
		}
	}

	now := time.Now()
	running, err := p.store.Update(jobID, func(j jobs.Job) (jobs.Job, error) {
		if !jobs.CanTransition(j.State, jobs.StateRunning) {
			return j, apierr.StateConflict("job %s cannot start from state %s", jobID, j.State)
		}
		j.State = jobs.StateRunning
		j.StartedAt = &now
		j.WorkerID = workerID
		return j, nil
	})
	if err != nil {
		p.logger.Warn().Str("job_id", jobID).Err(err).Msg("dropping dequeued job that cannot start")
		return
	}
	p.hub.Publish(jobs.EventFromJob(running, now))

	// The trainer gets a context that Stop does not cancel, so an in-flight
	// job runs to its own end instead of being aborted by shutdown.
	result, runErr := p.trainer.Run(context.WithoutCancel(ctx), string(running.Kind), running.ConfigRef, running.DatasetRef, "output/"+jobID)

	completedAt := time.Now()
	if runErr != nil {
		failed, err := p.store.Update(jobID, func(j jobs.Job) (jobs.Job, error) {
			j.State = jobs.StateFailed
			j.Error = runErr.Error()
			j.CompletedAt = &completedAt
			return j, nil
		})
		if err != nil {
			p.logger.Error().Str("job_id", jobID).Err(err).Msg("failed to record trainer failure")
			return
		}
		p.logger.Warn().Str("job_id", jobID).Err(runErr).Msg("trainer invocation failed")
		p.hub.Publish(jobs.EventFromJob(failed, completedAt))
		return
	}

	completed, err := p.store.Update(jobID, func(j jobs.Job) (jobs.Job, error) {
		j.State = jobs.StateCompleted
		j.Metrics = result.Metrics
		j.ArtifactRef = result.ArtifactRef
		j.Progress.Percent = 100
		j.CompletedAt = &completedAt
		return j, nil
	})
	if err != nil {
		p.logger.Error().Str("job_id", jobID).Err(err).Msg("failed to record trainer success")
		return
	}
	p.hub.Publish(jobs.EventFromJob(completed, completedAt))
}
