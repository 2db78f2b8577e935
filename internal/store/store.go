// Package store provides a small keyed in-memory store with an optional
// capacity bound. It backs the resolver's artifact cache.
package store

import (
	"sync"
)

// Store is a keyed store. Implementations must be safe for concurrent use.
type Store[K comparable, T any] interface {
	Get(k K) (T, bool)
	Put(k K, v T)
	Len() int
}

// MemoryStore is an in-memory Store. When capacity is positive, inserting
// beyond it evicts the oldest entry first.
type MemoryStore[K comparable, T any] struct {
	lock     sync.RWMutex
	entries  map[K]T
	order    []K
	capacity int
}

// NewMemoryStore creates a MemoryStore. A capacity of zero means unbounded.
func NewMemoryStore[K comparable, T any](capacity int) *MemoryStore[K, T] {
	return &MemoryStore[K, T]{
		entries:  make(map[K]T),
		capacity: capacity,
	}
}

func (s *MemoryStore[K, T]) Get(k K) (T, bool) {
	s.lock.RLock()
	defer s.lock.RUnlock()

	v, ok := s.entries[k]

	return v, ok
}

func (s *MemoryStore[K, T]) Put(k K, v T) {
	s.lock.Lock()
	defer s.lock.Unlock()

	if _, ok := s.entries[k]; ok {
		s.entries[k] = v

		return
	}

	if s.capacity > 0 && len(s.entries) >= s.capacity {
		oldest := s.order[0]
		s.order = s.order[1:]
		delete(s.entries, oldest)
	}

	s.entries[k] = v
	s.order = append(s.order, k)
}

func (s *MemoryStore[K, T]) Len() int {
	s.lock.RLock()
	defer s.lock.RUnlock()

	return len(s.entries)
}
