package store

import (
	"errors"
	"sync"
	"time"
)

var (
	// ErrNotFound is returned when a key is absent or has expired.
	ErrNotFound = errors.New("no cached value for key")
)

type entry[V any] struct {
	value   V
	stored  time.Time
	expires time.Time // zero = never
}

// MemoryStore is a concurrency-safe in-memory cache bounded by entry count
// and age.
type MemoryStore[V any] struct {
	mu sync.RWMutex

	data map[string]entry[V]

	// retention configuration
	maxEntries int           // max number of entries (0 = unlimited)
	ttl        time.Duration // default time to live (0 = unlimited)

	now func() time.Time
}

// NewMemoryStore creates a new MemoryStore with optional limits.
// If maxEntries is <= 0, it is treated as unlimited.
func NewMemoryStore[V any](maxEntries int, ttl time.Duration) *MemoryStore[V] {
	return &MemoryStore[V]{
		data:       make(map[string]entry[V]),
		maxEntries: maxEntries,
		ttl:        ttl,
		now:        time.Now,
	}
}

// Set stores value under key using the default TTL.
func (s *MemoryStore[V]) Set(key string, value V) {
	s.SetWithTTL(key, value, s.ttl)
}

// SetWithTTL stores value under key, evicting the oldest entry when the store
// is full.
func (s *MemoryStore[V]) SetWithTTL(key string, value V, ttl time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	e := entry[V]{value: value, stored: now}
	if ttl > 0 {
		e.expires = now.Add(ttl)
	}
	s.data[key] = e

	// Enforce retention by count.
	if s.maxEntries > 0 && len(s.data) > s.maxEntries {
		var oldestKey string
		var oldest time.Time
		for k, v := range s.data {
			if oldestKey == "" || v.stored.Before(oldest) {
				oldestKey, oldest = k, v.stored
			}
		}
		delete(s.data, oldestKey)
	}
}

// Get returns the value for key. Expired entries are removed.
func (s *MemoryStore[V]) Get(key string) (V, error) {
	var zero V

	s.mu.RLock()
	e, ok := s.data[key]
	s.mu.RUnlock()
	if !ok {
		return zero, ErrNotFound
	}

	if !e.expires.IsZero() && s.now().After(e.expires) {
		s.mu.Lock()
		if cur, ok := s.data[key]; ok && cur.stored.Equal(e.stored) {
			delete(s.data, key)
		}
		s.mu.Unlock()
		return zero, ErrNotFound
	}
	return e.value, nil
}

// Sweep drops every expired entry and reports how many were removed.
func (s *MemoryStore[V]) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	removed := 0
	for k, e := range s.data {
		if !e.expires.IsZero() && now.After(e.expires) {
			delete(s.data, k)
			removed++
		}
	}
	return removed
}

// Clear empties the store and returns the number of entries dropped.
func (s *MemoryStore[V]) Clear() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := len(s.data)
	s.data = make(map[string]entry[V])
	return n
}

// Len returns the number of stored entries, including expired ones not yet swept.
func (s *MemoryStore[V]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}
