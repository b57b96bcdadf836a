package store

import (
	"sync"
	"testing"
	"time"

	"github.com/foundryml/forge/internal/apierr"
)

type widget struct {
	ID        string
	CreatedAt time.Time
	Tags      []string
	Count     int
}

func (w widget) RecordID() string          { return w.ID }
func (w widget) RecordCreatedAt() time.Time { return w.CreatedAt }
func (w widget) Clone() widget {
	out := w
	if w.Tags != nil {
		out.Tags = append([]string(nil), w.Tags...)
	}
	return out
}

func TestPutGetRoundTrip(t *testing.T) {
	s := New(widget.Clone)
	s.Put(widget{ID: "w1", CreatedAt: time.Now(), Tags: []string{"a"}})

	got, ok := s.Get("w1")
	if !ok {
		t.Fatal("Get(w1) not found")
	}
	if got.ID != "w1" {
		t.Errorf("Get(w1).ID = %q, want w1", got.ID)
	}

	got.Tags[0] = "mutated"
	again, _ := s.Get("w1")
	if again.Tags[0] != "a" {
		t.Errorf("mutating a Get() snapshot affected the stored value: %v", again.Tags)
	}
}

func TestGetMissing(t *testing.T) {
	s := New(widget.Clone)
	if _, ok := s.Get("missing"); ok {
		t.Error("Get(missing) = ok, want not found")
	}
}

func TestUpdateMissingReturnsNotFound(t *testing.T) {
	s := New(widget.Clone)
	_, err := s.Update("missing", func(w widget) (widget, error) { return w, nil })
	ae, ok := apierr.As(err)
	if !ok || ae.Kind != apierr.KindNotFound {
		t.Errorf("Update(missing) err = %v, want apierr.NotFound", err)
	}
}

func TestUpdateAppliesMutator(t *testing.T) {
	s := New(widget.Clone)
	s.Put(widget{ID: "w1", CreatedAt: time.Now()})

	updated, err := s.Update("w1", func(w widget) (widget, error) {
		w.Count = 42
		return w, nil
	})
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if updated.Count != 42 {
		t.Errorf("Update() result Count = %d, want 42", updated.Count)
	}

	got, _ := s.Get("w1")
	if got.Count != 42 {
		t.Errorf("Get() after Update Count = %d, want 42", got.Count)
	}
}

func TestUpdateMutatorErrorAbortsWrite(t *testing.T) {
	s := New(widget.Clone)
	s.Put(widget{ID: "w1", CreatedAt: time.Now(), Count: 1})

	_, err := s.Update("w1", func(w widget) (widget, error) {
		w.Count = 999
		return w, apierr.StateConflict("not allowed")
	})
	if err == nil {
		t.Fatal("Update() error = nil, want state-conflict")
	}

	got, _ := s.Get("w1")
	if got.Count != 1 {
		t.Errorf("Update() with mutator error should not persist; Count = %d, want 1", got.Count)
	}
}

func TestConcurrentUpdatesOnSameIDSerialize(t *testing.T) {
	s := New(widget.Clone)
	s.Put(widget{ID: "w1", CreatedAt: time.Now()})

	const n = 100
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.Update("w1", func(w widget) (widget, error) {
				w.Count++
				return w, nil
			})
		}()
	}
	wg.Wait()

	got, _ := s.Get("w1")
	if got.Count != n {
		t.Errorf("Count after %d concurrent increments = %d, want %d", n, got.Count, n)
	}
}

func TestListFilterSortLimit(t *testing.T) {
	s := New(widget.Clone)
	base := time.Now()
	s.Put(widget{ID: "w1", CreatedAt: base, Count: 1})
	s.Put(widget{ID: "w2", CreatedAt: base.Add(time.Second), Count: 2})
	s.Put(widget{ID: "w3", CreatedAt: base.Add(2 * time.Second), Count: 3})

	all := s.List(nil, nil, 0)
	if len(all) != 3 {
		t.Fatalf("List(nil) len = %d, want 3", len(all))
	}
	if all[0].ID != "w3" {
		t.Errorf("List(nil) default order[0] = %s, want w3 (newest first)", all[0].ID)
	}

	even := s.List(func(w widget) bool { return w.Count%2 == 0 }, nil, 0)
	if len(even) != 1 || even[0].ID != "w2" {
		t.Errorf("List(filter) = %v, want only w2", even)
	}

	limited := s.List(nil, nil, 2)
	if len(limited) != 2 {
		t.Errorf("List(limit=2) len = %d, want 2", len(limited))
	}
}

func TestDelete(t *testing.T) {
	s := New(widget.Clone)
	s.Put(widget{ID: "w1", CreatedAt: time.Now()})
	s.Delete("w1")
	if _, ok := s.Get("w1"); ok {
		t.Error("Get(w1) after Delete = ok, want not found")
	}
	s.Delete("w1") // idempotent
}

func TestPurgeTerminal(t *testing.T) {
	s := New(widget.Clone)
	old := time.Now().Add(-time.Hour)
	s.Put(widget{ID: "old-done", CreatedAt: old, Count: 1})
	s.Put(widget{ID: "old-pending", CreatedAt: old, Count: 0})
	s.Put(widget{ID: "new-done", CreatedAt: time.Now(), Count: 1})

	isTerminal := func(w widget) bool { return w.Count == 1 }
	removed := s.PurgeTerminal(time.Now().Add(-time.Minute), isTerminal)
	if removed != 1 {
		t.Errorf("PurgeTerminal() removed = %d, want 1", removed)
	}
	if _, ok := s.Get("old-done"); ok {
		t.Error("old-done should have been purged")
	}
	if _, ok := s.Get("old-pending"); !ok {
		t.Error("old-pending should not have been purged (not terminal)")
	}
	if _, ok := s.Get("new-done"); !ok {
		t.Error("new-done should not have been purged (not old enough)")
	}
}
