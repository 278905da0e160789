package cache

import (
	"sort"
	"strings"
	"sync"
	"time"
)

// DefaultLocalCapacity bounds the local store when no capacity is configured
const DefaultLocalCapacity = 1000

// entry is one local cache record. Entries are owned by the store and
// mutated in place on each successful read.
type entry struct {
	data         []byte
	createdAt    time.Time
	ttl          time.Duration
	hitCount     int64
	lastAccessed time.Time
}

// expired reports whether the entry's TTL has elapsed at now
func (e *entry) expired(now time.Time) bool {
	return e.ttl > 0 && now.Sub(e.createdAt) > e.ttl
}

// LocalStore is the bounded in-process tier. All mutation runs under a
// single mutex; eviction scans interleave with reads and inserts.
type LocalStore struct {
	mu       sync.Mutex
	entries  map[string]*entry
	capacity int
	onEvict  func(n int)
}

// NewLocalStore creates a local store with the given entry capacity.
// onEvict, when non-nil, is called with the number of entries removed by
// expiry or capacity eviction.
func NewLocalStore(capacity int, onEvict func(n int)) *LocalStore {
	if capacity <= 0 {
		capacity = DefaultLocalCapacity
	}
	return &LocalStore{
		entries:  make(map[string]*entry),
		capacity: capacity,
		onEvict:  onEvict,
	}
}

// Get returns the serialized value for a key. An entry whose TTL has elapsed
// is removed on the spot and reported as a miss. On a hit the entry's access
// bookkeeping is updated.
func (s *LocalStore) Get(key string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok {
		return nil, false
	}

	now := time.Now()
	if e.expired(now) {
		delete(s.entries, key)
		s.evicted(1)
		return nil, false
	}

	e.hitCount++
	e.lastAccessed = now
	return e.data, true
}

// Set inserts or overwrites an entry. When the store is at capacity it
// evicts first; exceeding capacity never fails.
func (s *LocalStore) Set(key string, data []byte, ttl time.Duration) (inserted bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, existed := s.entries[key]
	if !existed && len(s.entries) >= s.capacity {
		s.evict()
	}

	now := time.Now()
	s.entries[key] = &entry{
		data:         data,
		createdAt:    now,
		ttl:          ttl,
		lastAccessed: now,
	}
	return !existed
}

// evict makes room under the store mutex. Two phases: drop everything whose
// TTL has elapsed, then if still at capacity drop the coldest 20% of entries
// ranked by last access. Batched removal amortizes the cost; a strict LRU
// heap is not worth carrying for a bounded cache refreshed every few hundred
// keys.
func (s *LocalStore) evict() {
	now := time.Now()
	removed := 0

	for key, e := range s.entries {
		if e.expired(now) {
			delete(s.entries, key)
			removed++
		}
	}

	if len(s.entries) >= s.capacity {
		type candidate struct {
			key          string
			lastAccessed time.Time
		}
		candidates := make([]candidate, 0, len(s.entries))
		for key, e := range s.entries {
			candidates = append(candidates, candidate{key, e.lastAccessed})
		}
		sort.Slice(candidates, func(i, j int) bool {
			return candidates[i].lastAccessed.Before(candidates[j].lastAccessed)
		})

		batch := s.capacity / 5
		if batch < 1 {
			batch = 1
		}
		if batch > len(candidates) {
			batch = len(candidates)
		}
		for _, c := range candidates[:batch] {
			delete(s.entries, c.key)
			removed++
		}
	}

	s.evicted(removed)
}

// Delete removes a key, reporting whether it was present and live
func (s *LocalStore) Delete(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok {
		return false
	}
	delete(s.entries, key)
	if e.expired(time.Now()) {
		s.evicted(1)
		return false
	}
	return true
}

// Flush removes every entry and returns how many were held
func (s *LocalStore) Flush() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := len(s.entries)
	s.entries = make(map[string]*entry)
	return n
}

// DeleteContaining removes every key containing substr and returns the count.
// Local pattern matching is substring based, unlike the remote tier's glob.
func (s *LocalStore) DeleteContaining(substr string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for key := range s.entries {
		if strings.Contains(key, substr) {
			delete(s.entries, key)
			removed++
		}
	}
	return removed
}

// SweepExpired removes every expired entry in one bounded pass and returns
// the count. Called by the background maintenance job.
func (s *LocalStore) SweepExpired() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	removed := 0
	for key, e := range s.entries {
		if e.expired(now) {
			delete(s.entries, key)
			removed++
		}
	}
	s.evicted(removed)
	return removed
}

// TTLRemaining reports the remaining lifetime of a live entry
func (s *LocalStore) TTLRemaining(key string) (time.Duration, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok || e.expired(time.Now()) {
		return 0, false
	}
	if e.ttl <= 0 {
		return 0, true
	}
	return e.ttl - time.Since(e.createdAt), true
}

// SetTTL restarts a live entry's lifetime with a new TTL
func (s *LocalStore) SetTTL(key string, ttl time.Duration) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok || e.expired(time.Now()) {
		return false
	}
	e.createdAt = time.Now()
	e.ttl = ttl
	return true
}

// Len returns the number of entries currently held, expired or not
func (s *LocalStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Keys returns a snapshot of all held keys
func (s *LocalStore) Keys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	keys := make([]string, 0, len(s.entries))
	for key := range s.entries {
		keys = append(keys, key)
	}
	return keys
}

// evicted reports removals to the owner. Caller holds the mutex.
func (s *LocalStore) evicted(n int) {
	if n > 0 && s.onEvict != nil {
		s.onEvict(n)
	}
}
