package storage

import (
	"context"
	"slices"
	"sync"
)

type memoryStore struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// NewMemoryStore creates a Store that keeps everything in process memory.
func NewMemoryStore() Store {
	return &memoryStore{data: make(map[string][]byte)}
}

func (s *memoryStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	val, ok := s.data[key]
	if !ok {
		return nil, false, nil
	}
	return slices.Clone(val), true, nil
}

func (s *memoryStore) Set(_ context.Context, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = slices.Clone(value)
	return nil
}

func (s *memoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, key)
	return nil
}

// NewMemoryFactory hands out one memory store per owner, created on first use.
func NewMemoryFactory() Factory {
	var mu sync.Mutex
	stores := make(map[string]Store)
	return func(ownerID string) Store {
		mu.Lock()
		defer mu.Unlock()
		s, ok := stores[ownerID]
		if !ok {
			s = NewMemoryStore()
			stores[ownerID] = s
		}
		return s
	}
}
