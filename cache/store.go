package cache

import (
	"sort"
	"strings"
	"sync"
	"time"
)

// DefaultCapacity is the entry limit used when none is configured.
const DefaultCapacity = 1000

// evictFraction is the share of entries dropped when eviction must make room.
const evictFraction = 0.1

type entry struct {
	value        any
	expiresAt    time.Time // zero means never
	lastAccessed time.Time
}

func (e *entry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && !now.Before(e.expiresAt)
}

// Stats describes the store at a point in time.
type Stats struct {
	Size     int `json:"size"`
	Capacity int `json:"capacity"`
	// Expired counts entries past their TTL that have not yet been removed.
	Expired int `json:"expired"`
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithCapacity sets the maximum number of entries.
func WithCapacity(n int) StoreOption {
	return func(s *Store) {
		if n > 0 {
			s.capacity = n
		}
	}
}

// WithClock replaces time.Now as the store's clock.
func WithClock(now func() time.Time) StoreOption {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// Store is a bounded in-memory cache with per-entry TTL and approximate LRU
// eviction. Expired entries are removed lazily on access or during Evict.
// All methods are safe for concurrent use.
type Store struct {
	mu       sync.Mutex
	entries  map[string]*entry
	capacity int
	now      func() time.Time
}

// NewStore creates an empty store.
func NewStore(opts ...StoreOption) *Store {
	s := &Store{
		entries:  make(map[string]*entry),
		capacity: DefaultCapacity,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Get returns the value stored under key. An expired entry is deleted and
// reported as absent.
func (s *Store) Get(key string) (any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok {
		return nil, false
	}
	now := s.now()
	if e.expired(now) {
		delete(s.entries, key)
		return nil, false
	}
	e.lastAccessed = now
	return e.value, true
}

// Set stores value under key. A ttl <= 0 never expires. Inserting a new key
// into a full store evicts first.
func (s *Store) Set(key string, value any, ttl time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if _, exists := s.entries[key]; !exists && len(s.entries) >= s.capacity {
		s.evictLocked(now)
	}

	e := &entry{value: value, lastAccessed: now}
	if ttl > 0 {
		e.expiresAt = now.Add(ttl)
	}
	s.entries[key] = e
}

// Delete removes key.
func (s *Store) Delete(key string) {
	s.mu.Lock()
	delete(s.entries, key)
	s.mu.Unlock()
}

// Clear removes every entry.
func (s *Store) Clear() {
	s.mu.Lock()
	s.entries = make(map[string]*entry)
	s.mu.Unlock()
}

// Evict drops expired entries, then, if the store is still at capacity, the
// least recently accessed 10% (at least one).
func (s *Store) Evict() {
	s.mu.Lock()
	s.evictLocked(s.now())
	s.mu.Unlock()
}

func (s *Store) evictLocked(now time.Time) {
	for k, e := range s.entries {
		if e.expired(now) {
			delete(s.entries, k)
		}
	}
	if len(s.entries) < s.capacity {
		return
	}

	type aged struct {
		key string
		at  time.Time
	}
	list := make([]aged, 0, len(s.entries))
	for k, e := range s.entries {
		list = append(list, aged{key: k, at: e.lastAccessed})
	}
	sort.Slice(list, func(i, j int) bool { return list[i].at.Before(list[j].at) })

	n := int(float64(len(list)) * evictFraction)
	if n < 1 {
		n = 1
	}
	for _, a := range list[:n] {
		delete(s.entries, a.key)
	}
}

// Stats reports size, capacity and expired-but-present entries.
func (s *Store) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	expired := 0
	for _, e := range s.entries {
		if e.expired(now) {
			expired++
		}
	}
	return Stats{Size: len(s.entries), Capacity: s.capacity, Expired: expired}
}

// Keys returns a snapshot of the stored keys, including expired ones not yet removed.
func (s *Store) Keys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	keys := make([]string, 0, len(s.entries))
	for k := range s.entries {
		keys = append(keys, k)
	}
	return keys
}

// DeletePrefix removes every key starting with prefix and returns how many were removed.
func (s *Store) DeletePrefix(prefix string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for k := range s.entries {
		if strings.HasPrefix(k, prefix) {
			delete(s.entries, k)
			n++
		}
	}
	return n
}
