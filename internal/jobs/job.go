// Package jobs defines the Job domain model and its state machine.
package jobs

import "time"

// Kind selects the trainer subroutine a job invokes.
type Kind string

const (
	KindLoRA       Kind = "lora"
	KindQLoRA      Kind = "qlora"
	KindContinuous Kind = "continuous"
)

// ValidKind reports whether k is one of the recognized trainer kinds.
func ValidKind(k Kind) bool {
	switch k {
	case KindLoRA, KindQLoRA, KindContinuous:
		return true
	default:
		return false
	}
}

// State is a job's position in its lifecycle.
type State string

const (
	StatePending   State = "pending"
	StateQueued    State = "queued"
	StateRunning   State = "running"
	StateCompleted State = "completed"
	StateFailed    State = "failed"
	StateCancelled State = "cancelled"
)

// Terminal reports whether s admits no further transitions.
func (s State) Terminal() bool {
	switch s {
	case StateCompleted, StateFailed, StateCancelled:
		return true
	default:
		return false
	}
}

// transitions enumerates every edge the state machine allows. No back-transitions.
var transitions = map[State]map[State]bool{
	StatePending: {StateQueued: true, StateCancelled: true},
	StateQueued:  {StateRunning: true, StateCancelled: true},
	StateRunning: {StateCompleted: true, StateFailed: true},
}

// CanTransition reports whether a job may move from 'from' to 'to'.
func CanTransition(from, to State) bool {
	edges, ok := transitions[from]
	if !ok {
		return false
	}
	return edges[to]
}

// Progress describes a job's training progress. Only meaningful while Running
// or after Completed, where percent must read 100.
type Progress struct {
	CurrentEpoch int     `json:"current_epoch"`
	TotalEpochs  int     `json:"total_epochs"`
	Percent      float64 `json:"percent"`
}

// Job is one trainer invocation tracked end to end by the orchestrator.
type Job struct {
	ID         string    `json:"id"`
	Kind       Kind      `json:"kind"`
	State      State     `json:"state"`
	ConfigRef  string    `json:"config_ref"`
	DatasetRef string    `json:"dataset_ref,omitempty"`
	Priority   int       `json:"priority"`
	Tags       []string  `json:"tags,omitempty"`
	CreatedAt  time.Time `json:"created_at"`

	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	Progress Progress `json:"progress"`

	Metrics     map[string]float64 `json:"metrics,omitempty"`
	ArtifactRef string             `json:"artifact_ref,omitempty"`
	Error       string             `json:"error,omitempty"`
	WorkerID    string             `json:"worker_id,omitempty"`
}

// RecordID implements store.Record.
func (j Job) RecordID() string { return j.ID }

// RecordCreatedAt implements store.Record.
func (j Job) RecordCreatedAt() time.Time { return j.CreatedAt }

// Clone returns a deep-enough value copy of j: slice and map fields are
// copied so callers can never mutate state held by the store through a
// returned snapshot.
func (j Job) Clone() Job {
	out := j
	if j.Tags != nil {
		out.Tags = append([]string(nil), j.Tags...)
	}
	if j.Metrics != nil {
		out.Metrics = make(map[string]float64, len(j.Metrics))
		for k, v := range j.Metrics {
			out.Metrics[k] = v
		}
	}
	if j.StartedAt != nil {
		t := *j.StartedAt
		out.StartedAt = &t
	}
	if j.CompletedAt != nil {
		t := *j.CompletedAt
		out.CompletedAt = &t
	}
	return out
}

// Totals summarizes job counts per state, used by the List Jobs API response.
type Totals struct {
	Pending   int `json:"pending"`
	Queued    int `json:"queued"`
	Running   int `json:"running"`
	Completed int `json:"completed"`
	Failed    int `json:"failed"`
	Cancelled int `json:"cancelled"`
}

// Tally builds a Totals from a slice of jobs.
func Tally(js []Job) Totals {
	var t Totals
	for _, j := range js {
		switch j.State {
		case StatePending:
			t.Pending++
		case StateQueued:
			t.Queued++
		case StateRunning:
			t.Running++
		case StateCompleted:
			t.Completed++
		case StateFailed:
			t.Failed++
		case StateCancelled:
			t.Cancelled++
		}
	}
	return t
}

// ProgressEvent is the immutable fan-out payload published on every state transition.
type ProgressEvent struct {
	JobID     string             `json:"job_id"`
	State     State              `json:"state"`
	Progress  Progress           `json:"progress"`
	Metrics   map[string]float64 `json:"metrics,omitempty"`
	Timestamp time.Time          `json:"timestamp"`
}

// EventFromJob constructs the Progress Event for a job's current state.
func EventFromJob(j Job, now time.Time) ProgressEvent {
	return ProgressEvent{
		JobID:     j.ID,
		State:     j.State,
		Progress:  j.Progress,
		Metrics:   j.Metrics,
		Timestamp: now,
	}
}
