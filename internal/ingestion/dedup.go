package ingestion

import (
	"sync"
)

// DedupStore suppresses re-processing of already-seen content across runs and
// across overlapping queries within one run.
type DedupStore interface {
	// CheckAndRemember atomically tests whether the hash is new and records
	// it. Returns true if the hash had not been seen before.
	CheckAndRemember(hash string) bool

	// Seen reports whether the hash has been recorded, without recording it.
	Seen(hash string) bool

	// Len returns the number of remembered hashes.
	Len() int
}

// BoundedDedupStore keeps content hashes in a fixed-capacity set with FIFO
// eviction: once the bound is reached, the oldest inserted hash is dropped.
// Eviction is approximate: re-inserting a hash does not refresh its position,
// so a long-lived duplicate can resurface after eviction.
type BoundedDedupStore struct {
	mu       sync.Mutex
	entries  map[string]struct{}
	ring     []string
	head     int
	capacity int
}

// NewBoundedDedupStore creates a dedup store holding at most capacity hashes.
func NewBoundedDedupStore(capacity int) *BoundedDedupStore {
	if capacity < 1 {
		capacity = 1
	}
	return &BoundedDedupStore{
		entries:  make(map[string]struct{}, capacity),
		ring:     make([]string, capacity),
		capacity: capacity,
	}
}

// CheckAndRemember tests and records the hash under a single lock so that
// concurrent callers cannot both observe it as new.
func (s *BoundedDedupStore) CheckAndRemember(hash string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.entries[hash]; ok {
		return false
	}

	if evicted := s.ring[s.head]; evicted != "" {
		delete(s.entries, evicted)
	}
	s.ring[s.head] = hash
	s.head = (s.head + 1) % s.capacity
	s.entries[hash] = struct{}{}
	return true
}

// Seen reports whether the hash is currently remembered.
func (s *BoundedDedupStore) Seen(hash string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.entries[hash]
	return ok
}

// Len returns the number of hashes currently held.
func (s *BoundedDedupStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}
