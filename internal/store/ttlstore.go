// Package store provides a generic in-memory key/value store with entry
// expiry and background cleanup.
package store

import (
	"sync"
	"time"
)

type entry[V any] struct {
	value     V
	expiresAt time.Time
}

func (e entry[V]) expired() bool { return time.Now().After(e.expiresAt) }

// TTLStore holds values for a bounded time. A janitor goroutine sweeps
// expired entries; an optional callback observes evictions so abandoned
// entries can be logged or counted.
type TTLStore[K comparable, V any] struct {
	mu      sync.RWMutex
	items   map[K]entry[V]
	stopCh  chan struct{}
	onEvict func(key K, value V)
}

// New creates a store whose janitor sweeps every sweepInterval. onEvict may
// be nil; it runs only for entries removed by the janitor, not by Take or
// Delete.
func New[K comparable, V any](sweepInterval time.Duration, onEvict func(key K, value V)) *TTLStore[K, V] {
	s := &TTLStore[K, V]{
		items:   make(map[K]entry[V]),
		stopCh:  make(chan struct{}),
		onEvict: onEvict,
	}
	go s.janitor(sweepInterval)
	return s
}

// Put stores a value that expires after ttl.
func (s *TTLStore[K, V]) Put(key K, value V, ttl time.Duration) {
	s.mu.Lock()
	s.items[key] = entry[V]{value: value, expiresAt: time.Now().Add(ttl)}
	s.mu.Unlock()
}

// Get returns the value for key if present and not expired.
func (s *TTLStore[K, V]) Get(key K) (V, bool) {
	s.mu.RLock()
	e, ok := s.items[key]
	s.mu.RUnlock()
	if !ok || e.expired() {
		var zero V
		return zero, false
	}
	return e.value, true
}

// Take returns the value for key and removes it in one step, so each entry
// is consumed at most once.
func (s *TTLStore[K, V]) Take(key K) (V, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.items[key]
	if !ok || e.expired() {
		var zero V
		return zero, false
	}
	delete(s.items, key)
	return e.value, true
}

// Delete removes key if present.
func (s *TTLStore[K, V]) Delete(key K) {
	s.mu.Lock()
	delete(s.items, key)
	s.mu.Unlock()
}

// Len returns the number of unexpired entries.
func (s *TTLStore[K, V]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0
	for _, e := range s.items {
		if !e.expired() {
			n++
		}
	}
	return n
}

// Close stops the janitor and drops all entries.
func (s *TTLStore[K, V]) Close() {
	close(s.stopCh)
	s.mu.Lock()
	s.items = make(map[K]entry[V])
	s.mu.Unlock()
}

func (s *TTLStore[K, V]) janitor(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.sweep()
		case <-s.stopCh:
			return
		}
	}
}

func (s *TTLStore[K, V]) sweep() {
	type evicted struct {
		key   K
		value V
	}

	s.mu.Lock()
	var dead []evicted
	for key, e := range s.items {
		if e.expired() {
			if s.onEvict != nil {
				dead = append(dead, evicted{key, e.value})
			}
			delete(s.items, key)
		}
	}
	onEvict := s.onEvict
	s.mu.Unlock()

	// Callbacks run outside the lock; they may call back into the store.
	for _, d := range dead {
		onEvict(d.key, d.value)
	}
}
