// Package hub implements a transport-agnostic Subscription Hub: fan-out of
// events to an open set of subscribers. It knows nothing about websockets or
// HTTP; a bridge package adapts it to a concrete transport. Grounded in the
// shape of a single-goroutine broadcast hub, adapted to a synchronous
// publish with a bounded per-subscriber send timeout instead of a
// best-effort async loop, since callers need publish to behave
// synchronously from their own perspective.
package hub

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Subscriber is one live listener. The hub only ever holds a relation to it
// (map entry + lookup), never extends its lifetime: the channel and its
// closing are owned by whoever registered it.
type Subscriber[T any] struct {
	Handle string
	Events chan T
}

// Hub fans events out to registered subscribers. Safe for concurrent
// register/unregister/publish. Instantiated once per event type rather than
// shared. The app creates one, for job progress events; dataset builds
// publish no events to any hub.
type Hub[T any] struct {
	mu          sync.RWMutex
	subscribers map[string]*Subscriber[T]
	sendTimeout time.Duration
}

// New constructs a Hub whose Publish will wait at most sendTimeout per
// subscriber before treating it as disconnected.
func New[T any](sendTimeout time.Duration) *Hub[T] {
	if sendTimeout <= 0 {
		sendTimeout = 5 * time.Second
	}
	return &Hub[T]{
		subscribers: make(map[string]*Subscriber[T]),
		sendTimeout: sendTimeout,
	}
}

// Register adds a subscriber with a bounded event buffer and returns its
// handle, usable for Unregister. The caller owns the returned channel and
// must keep draining it.
func (h *Hub[T]) Register(bufferSize int) *Subscriber[T] {
	if bufferSize <= 0 {
		bufferSize = 16
	}
	sub := &Subscriber[T]{
		Handle: uuid.New().String(),
		Events: make(chan T, bufferSize),
	}
	h.mu.Lock()
	h.subscribers[sub.Handle] = sub
	h.mu.Unlock()
	return sub
}

// Unregister removes a subscriber by handle. Idempotent.
func (h *Hub[T]) Unregister(handle string) {
	h.mu.Lock()
	delete(h.subscribers, handle)
	h.mu.Unlock()
}

// Publish delivers event to every subscriber registered at call time.
// Synchronous from the caller's perspective: it returns once every
// subscriber has either accepted the event or been evicted for exceeding
// sendTimeout. Iteration works over a snapshot of handles so eviction never
// mutates the map being ranged over.
func (h *Hub[T]) Publish(event T) {
	h.mu.RLock()
	snapshot := make([]*Subscriber[T], 0, len(h.subscribers))
	for _, sub := range h.subscribers {
		snapshot = append(snapshot, sub)
	}
	h.mu.RUnlock()

	var evicted []string
	for _, sub := range snapshot {
		select {
		case sub.Events <- event:
		default:
			timer := time.NewTimer(h.sendTimeout)
			select {
			case sub.Events <- event:
				timer.Stop()
			case <-timer.C:
				evicted = append(evicted, sub.Handle)
			}
		}
	}

	if len(evicted) > 0 {
		h.mu.Lock()
		for _, handle := range evicted {
			delete(h.subscribers, handle)
		}
		h.mu.Unlock()
	}
}

// Count returns the number of currently registered subscribers.
func (h *Hub[T]) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers)
}
