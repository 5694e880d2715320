package store

import (
	"context"
	"sync"
)

// MemoryStore is an in-memory implementation of ArchiveStore.
// Useful for testing and for running without a writable cache directory.
type MemoryStore struct {
	mu       sync.RWMutex
	archives map[int64][]byte
}

// NewMemoryStore creates a new in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		archives: make(map[int64][]byte),
	}
}

// Load returns a copy of the stored archive.
func (s *MemoryStore) Load(ctx context.Context, runID int64) ([]byte, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, exists := s.archives[runID]
	if !exists {
		return nil, false, nil
	}

	result := make([]byte, len(data))
	copy(result, data)
	return result, true, nil
}

// Store saves a copy of data.
func (s *MemoryStore) Store(ctx context.Context, runID int64, data []byte) error {
	stored := make([]byte, len(data))
	copy(stored, data)

	s.mu.Lock()
	defer s.mu.Unlock()

	s.archives[runID] = stored
	return nil
}

// Close is a no-op for the memory store.
func (s *MemoryStore) Close() error {
	return nil
}
