package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

// MemoryStore keeps entities as marshaled JSON in process memory. Every Get
// unmarshals a fresh copy, so a handler mutating a loaded entity never
// aliases the stored document; the write becomes visible only on Put.
type MemoryStore struct {
	mu   sync.RWMutex
	docs map[string]json.RawMessage
}

// NewMemory creates an empty in-memory store.
func NewMemory() *MemoryStore {
	return &MemoryStore{docs: make(map[string]json.RawMessage)}
}

func memKey(kind, id string) string {
	return kind + "/" + id
}

func (s *MemoryStore) Get(ctx context.Context, kind, id string, out any) (bool, error) {
	s.mu.RLock()
	raw, ok := s.docs[memKey(kind, id)]
	s.mu.RUnlock()
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return false, fmt.Errorf("failed to decode %s %s: %w", kind, id, err)
	}
	return true, nil
}

func (s *MemoryStore) Put(ctx context.Context, kind, id string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode %s %s: %w", kind, id, err)
	}
	s.mu.Lock()
	s.docs[memKey(kind, id)] = raw
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, kind, id string) error {
	s.mu.Lock()
	delete(s.docs, memKey(kind, id))
	s.mu.Unlock()
	return nil
}

// Len reports the number of stored entities.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.docs)
}
