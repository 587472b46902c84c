package ingestion

import (
	"context"
	"sync"
	"time"

	"github.com/mentionwatch/mentionwatch/internal/models"
)

// CursorStore tracks the last-seen position per (platform, rule) pair.
// Implementations must serialize read-then-overwrite so concurrent runs
// cannot lose a cursor update.
type CursorStore interface {
	// Get returns the cursor for the pair, or nil if none exists yet.
	Get(ctx context.Context, platform models.Platform, ruleID string) (*models.FetchCursor, error)

	// Put overwrites the cursor for the pair.
	Put(ctx context.Context, cursor models.FetchCursor) error

	// Reset removes the cursor for the pair, forcing the next fetch to start
	// from scratch.
	Reset(ctx context.Context, platform models.Platform, ruleID string) error
}

type cursorKey struct {
	platform models.Platform
	ruleID   string
}

// MemoryCursorStore is the in-process CursorStore used in tests and in
// degraded (database-less) mode.
type MemoryCursorStore struct {
	mu      sync.RWMutex
	cursors map[cursorKey]models.FetchCursor
}

// NewMemoryCursorStore creates an empty in-memory cursor store.
func NewMemoryCursorStore() *MemoryCursorStore {
	return &MemoryCursorStore{
		cursors: make(map[cursorKey]models.FetchCursor),
	}
}

// Get returns a copy of the stored cursor, or nil.
func (s *MemoryCursorStore) Get(ctx context.Context, platform models.Platform, ruleID string) (*models.FetchCursor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cursor, ok := s.cursors[cursorKey{platform: platform, ruleID: ruleID}]
	if !ok {
		return nil, nil
	}
	return &cursor, nil
}

// Put overwrites the cursor for its (platform, rule) pair.
func (s *MemoryCursorStore) Put(ctx context.Context, cursor models.FetchCursor) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cursor.UpdatedAt = time.Now().UTC()
	s.cursors[cursorKey{platform: cursor.Platform, ruleID: cursor.RuleID}] = cursor
	return nil
}

// Reset deletes the cursor for the pair.
func (s *MemoryCursorStore) Reset(ctx context.Context, platform models.Platform, ruleID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.cursors, cursorKey{platform: platform, ruleID: ruleID})
	return nil
}
