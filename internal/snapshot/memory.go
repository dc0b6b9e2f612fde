package snapshot

import (
	"context"
	"fmt"
	"sync"
)

// MemoryStore keeps records for the life of the process.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]Record
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]Record)}
}

func (s *MemoryStore) Driver() string { return "memory" }

func (s *MemoryStore) Save(_ context.Context, r Record) error {
	if err := r.validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	key := r.Key()
	if _, ok := s.records[key]; ok {
		return fmt.Errorf("%w: %s", ErrExists, key)
	}
	r = stamp(r)
	r.Payload = append([]byte(nil), r.Payload...)
	s.records[key] = r
	return nil
}

func (s *MemoryStore) List(_ context.Context, runID string) ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Record
	for _, r := range s.records {
		if r.RunID == runID {
			out = append(out, r)
		}
	}
	sortRecords(out)
	return out, nil
}

func (s *MemoryStore) Close() error { return nil }
