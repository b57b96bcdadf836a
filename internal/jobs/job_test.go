package jobs

import (
	"testing"
	"time"
)

func TestCanTransition(t *testing.T) {
	cases := []struct {
		from, to State
		want     bool
	}{
		{StatePending, StateQueued, true},
		{StatePending, StateCancelled, true},
		{StatePending, StateRunning, false},
		{StateQueued, StateRunning, true},
		{StateQueued, StateCancelled, true},
		{StateRunning, StateCompleted, true},
		{StateRunning, StateFailed, true},
		{StateRunning, StateCancelled, false},
		{StateCompleted, StateRunning, false},
	}
	for _, c := range cases {
		if got := CanTransition(c.from, c.to); got != c.want {
			t.Errorf("CanTransition(%s, %s) = %v, want %v", c.from, c.to, got, c.want)
		}
	}
}

func TestStateTerminal(t *testing.T) {
	for _, s := range []State{StateCompleted, StateFailed, StateCancelled} {
		if !s.Terminal() {
			t.Errorf("%s.Terminal() = false, want true", s)
		}
	}
	for _, s := range []State{StatePending, StateQueued, StateRunning} {
		if s.Terminal() {
			t.Errorf("%s.Terminal() = true, want false", s)
		}
	}
}

func TestValidKind(t *testing.T) {
	for _, k := range []Kind{KindLoRA, KindQLoRA, KindContinuous} {
		if !ValidKind(k) {
			t.Errorf("ValidKind(%s) = false, want true", k)
		}
	}
	if ValidKind(Kind("full-finetune")) {
		t.Error("ValidKind(full-finetune) = true, want false")
	}
}

func TestJobCloneIsIndependent(t *testing.T) {
	started := time.Now()
	original := Job{
		ID:        "job-1",
		Tags:      []string{"a", "b"},
		Metrics:   map[string]float64{"loss": 0.5},
		StartedAt: &started,
	}

	clone := original.Clone()
	clone.Tags[0] = "mutated"
	clone.Metrics["loss"] = 9.9
	*clone.StartedAt = started.Add(time.Hour)

	if original.Tags[0] != "a" {
		t.Errorf("mutating clone.Tags affected original: %v", original.Tags)
	}
	if original.Metrics["loss"] != 0.5 {
		t.Errorf("mutating clone.Metrics affected original: %v", original.Metrics)
	}
	if !original.StartedAt.Equal(started) {
		t.Errorf("mutating clone.StartedAt affected original: %v", *original.StartedAt)
	}
}

func TestTally(t *testing.T) {
	list := []Job{
		{State: StatePending},
		{State: StateQueued},
		{State: StateQueued},
		{State: StateRunning},
		{State: StateCompleted},
		{State: StateFailed},
		{State: StateCancelled},
	}
	totals := Tally(list)
	want := Totals{Pending: 1, Queued: 2, Running: 1, Completed: 1, Failed: 1, Cancelled: 1}
	if totals != want {
		t.Errorf("Tally() = %+v, want %+v", totals, want)
	}
}

func TestEventFromJob(t *testing.T) {
	now := time.Now()
	j := Job{ID: "job-2", State: StateRunning, Progress: Progress{CurrentEpoch: 2, TotalEpochs: 4, Percent: 50}}
	ev := EventFromJob(j, now)
	if ev.JobID != j.ID || ev.State != j.State || ev.Progress != j.Progress || !ev.Timestamp.Equal(now) {
		t.Errorf("EventFromJob() = %+v, want fields derived from %+v at %v", ev, j, now)
	}
}
