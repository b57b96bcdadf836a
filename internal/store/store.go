// Package store provides the in-memory, guarded record store shared by the
// job orchestrator and the dataset builder. It is instantiated once per
// domain type rather than shared as a single struct, since jobs and dataset
// records have distinct mutation and filtering needs.
package store

import (
	"sort"
	"sync"
	"time"

	"github.com/foundryml/forge/internal/apierr"
)

// Record is the capability a type must provide to be held in a Store.
type Record interface {
	RecordID() string
	RecordCreatedAt() time.Time
}

// Mutator transitions a record, returning the updated value or an error that
// aborts the update (e.g. an invalid state transition).
type Mutator[T Record] func(T) (T, error)

// Filter reports whether a record should be included in a List result.
type Filter[T Record] func(T) bool

// entry pairs a record with the guard that serializes its mutations, so
// concurrent Update calls on the same id block on each other rather than
// racing, while updates on different ids proceed independently.
type entry[T Record] struct {
	mu    sync.Mutex
	value T
}

// Store is a generic, in-memory mapping from record id to record, guarded by
// a single RWMutex over the id index plus a per-entry mutex for mutation
// serialization. clone must return a value copy deep enough that callers can
// never observe mutation through a returned snapshot.
type Store[T Record] struct {
	mu      sync.RWMutex
	entries map[string]*entry[T]
	clone   func(T) T
}

// New constructs an empty Store. clone is required and should deep-copy any
// slice/map fields of T.
func New[T Record](clone func(T) T) *Store[T] {
	return &Store[T]{
		entries: make(map[string]*entry[T]),
		clone:   clone,
	}
}

// Put inserts or overwrites the record keyed by its RecordID.
func (s *Store[T]) Put(v T) T {
	snap := s.clone(v)
	s.mu.Lock()
	s.entries[v.RecordID()] = &entry[T]{value: snap}
	s.mu.Unlock()
	return s.clone(snap)
}

// Get returns a snapshot of the record with the given id, or false if absent.
func (s *Store[T]) Get(id string) (T, bool) {
	s.mu.RLock()
	e, ok := s.entries[id]
	s.mu.RUnlock()
	if !ok {
		var zero T
		return zero, false
	}
	e.mu.Lock()
	snap := s.clone(e.value)
	e.mu.Unlock()
	return snap, true
}

// Update applies mutate to the record with the given id under that record's
// guard, so concurrent updates on the same id serialize and observe each
// other's effects. Returns apierr.NotFound if the id is absent.
func (s *Store[T]) Update(id string, mutate Mutator[T]) (T, error) {
	s.mu.RLock()
	e, ok := s.entries[id]
	s.mu.RUnlock()
	if !ok {
		var zero T
		return zero, apierr.NotFound("record %s not found", id)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	updated, err := mutate(s.clone(e.value))
	if err != nil {
		var zero T
		return zero, err
	}
	e.value = s.clone(updated)
	return s.clone(e.value), nil
}

// Delete removes the record with the given id. No error if absent.
func (s *Store[T]) Delete(id string) {
	s.mu.Lock()
	delete(s.entries, id)
	s.mu.Unlock()
}

// List returns snapshots matching filter (nil = all), sorted by less
// (nil = created_at descending), truncated to limit (0 = unbounded).
func (s *Store[T]) List(filter Filter[T], less func(a, b T) bool, limit int) []T {
	s.mu.RLock()
	snaps := make([]T, 0, len(s.entries))
	for _, e := range s.entries {
		e.mu.Lock()
		v := s.clone(e.value)
		e.mu.Unlock()
		if filter == nil || filter(v) {
			snaps = append(snaps, v)
		}
	}
	s.mu.RUnlock()

	if less == nil {
		less = func(a, b T) bool { return a.RecordCreatedAt().After(b.RecordCreatedAt()) }
	}
	sort.Slice(snaps, func(i, j int) bool { return less(snaps[i], snaps[j]) })

	if limit > 0 && len(snaps) > limit {
		snaps = snaps[:limit]
	}
	return snaps
}

// PurgeTerminal removes every record for which isTerminal reports true and
// whose RecordCreatedAt is older than olderThan. Additive housekeeping, not
// required by any ordering or visibility guarantee.
func (s *Store[T]) PurgeTerminal(olderThan time.Time, isTerminal func(T) bool) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for id, e := range s.entries {
		e.mu.Lock()
		v := e.value
		e.mu.Unlock()
		if isTerminal(v) && v.RecordCreatedAt().Before(olderThan) {
			delete(s.entries, id)
			removed++
		}
	}
	return removed
}
