// Package lru provides the bounded, recency-ordered in-process store used as
// the fallback tier of the two-tier cache.
//
// Entries carry their own expiry. Expired entries are never returned: they are
// removed lazily when touched by Get, and eagerly by Size and SweepExpired.
// When the store is full, the least recently used entry is evicted before a new
// key is inserted. Reads and writes both count as use.
package lru

import (
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/simplelru"
)

// DefaultCapacity is the capacity used when a non-positive capacity is given.
const DefaultCapacity = 10000

// Entry is a stored value together with its expiry.
type Entry[V any] struct {
	Value     V
	ExpiresAt time.Time
}

// Expired reports whether the entry is past its expiry at now.
func (e Entry[V]) Expired(now time.Time) bool {
	return now.After(e.ExpiresAt)
}

// Option configures a Store.
type Option func(*options)

type options struct {
	now func() time.Time
}

// WithClock replaces time.Now, mainly for tests that simulate elapsed time.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		o.now = now
	}
}

// Store is a fixed-capacity key/value table with per-entry expiry and
// least-recently-used eviction. It is safe for concurrent use.
type Store[V any] struct {
	mu        sync.Mutex
	list      *simplelru.LRU[string, Entry[V]]
	capacity  int
	now       func() time.Time
	evictions uint64
}

// New creates a Store holding at most capacity entries.
func New[V any](capacity int, opts ...Option) *Store[V] {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}

	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}

	// simplelru only rejects non-positive sizes, which are handled above.
	list, err := simplelru.NewLRU[string, Entry[V]](capacity, nil)
	if err != nil {
		panic(err)
	}

	return &Store[V]{
		list:     list,
		capacity: capacity,
		now:      o.now,
	}
}

// Get returns the value for key and marks it most recently used.
// An expired entry is deleted and reported as not found.
func (s *Store[V]) Get(key string) (V, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var zero V
	entry, ok := s.list.Get(key)
	if !ok {
		return zero, false
	}
	if entry.Expired(s.now()) {
		s.list.Remove(key)
		return zero, false
	}
	return entry.Value, true
}

// Set stores value under key for ttl, evicting the least recently used entry
// if the store is full.
func (s *Store[V]) Set(key string, value V, ttl time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Re-adding moves the key to the most recent end, same as a fresh insert.
	if s.list.Add(key, Entry[V]{Value: value, ExpiresAt: s.now().Add(ttl)}) {
		s.evictions++
	}
}

// Delete removes key and reports whether it was present.
func (s *Store[V]) Delete(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.list.Remove(key)
}

// DeletePattern removes every key matching the glob pattern and returns the
// number removed. See Match for the pattern syntax.
func (s *Store[V]) DeletePattern(pattern string) int {
	m := compileGlob(pattern)

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for _, key := range s.list.Keys() {
		if m.MatchString(key) && s.list.Remove(key) {
			removed++
		}
	}
	return removed
}

// Clear removes all entries.
func (s *Store[V]) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.list.Purge()
}

// Size sweeps expired entries and returns the number of live entries.
func (s *Store[V]) Size() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sweepLocked()
	return s.list.Len()
}

// Len returns the number of stored entries, including expired entries that
// have not been swept yet. Unlike Size it does not sweep.
func (s *Store[V]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.list.Len()
}

// SweepExpired removes expired entries and returns how many were removed.
func (s *Store[V]) SweepExpired() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.sweepLocked()
}

// Capacity returns the configured maximum number of entries.
func (s *Store[V]) Capacity() int {
	return s.capacity
}

// Evictions returns the number of entries evicted for capacity so far.
func (s *Store[V]) Evictions() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.evictions
}

// Keys returns the live keys from least to most recently used without
// changing their order.
func (s *Store[V]) Keys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sweepLocked()
	return s.list.Keys()
}

func (s *Store[V]) sweepLocked() int {
	now := s.now()
	removed := 0
	for _, key := range s.list.Keys() {
		entry, ok := s.list.Peek(key)
		if ok && entry.Expired(now) {
			s.list.Remove(key)
			removed++
		}
	}
	return removed
}
