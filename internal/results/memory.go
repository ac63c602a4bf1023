package results

import (
	"context"
	"sync"
)

// MemoryStore keeps outcomes in memory. Used by tests and by
// coordinators running without a configured result database.
type MemoryStore struct {
	mu      sync.RWMutex
	results []*Record
	errors  []*Record
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) SaveResult(ctx context.Context, rec *Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results = append(s.results, rec)
	return nil
}

func (s *MemoryStore) SaveError(ctx context.Context, rec *Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errors = append(s.errors, rec)
	return nil
}

func (s *MemoryStore) Counts(ctx context.Context) (int64, int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.results)), int64(len(s.errors)), nil
}

func (s *MemoryStore) Close() error { return nil }

// Results returns a snapshot of the success stream.
func (s *MemoryStore) Results() []*Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Record, len(s.results))
	copy(out, s.results)
	return out
}

// Errors returns a snapshot of the error stream.
func (s *MemoryStore) Errors() []*Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Record, len(s.errors))
	copy(out, s.errors)
	return out
}
