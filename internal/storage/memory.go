package storage

import (
	"context"
	"sync"

	"nota/internal/core"
)

// MemoryStore keeps the collection in process memory. Nothing survives a
// restart; it backs tests and throwaway sessions.
type MemoryStore struct {
	mu      sync.Mutex
	records []core.Record
	saves   int
}

func NewMemoryStore(seed ...core.Record) *MemoryStore {
	return &MemoryStore{records: append([]core.Record{}, seed...)}
}

// LoadAll implements Store.
func (s *MemoryStore) LoadAll(_ context.Context) ([]core.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.Record{}, s.records...), nil
}

// SaveAll implements Store.
func (s *MemoryStore) SaveAll(_ context.Context, records []core.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append([]core.Record{}, records...)
	s.saves++
	return nil
}

// Saves reports how many times SaveAll ran.
func (s *MemoryStore) Saves() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saves
}

func (s *MemoryStore) Close() error {
	return nil
}
