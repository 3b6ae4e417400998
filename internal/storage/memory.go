package storage

import (
	"context"
	"sort"
	"strings"
	"sync"
)

// MemStore is an in-memory Store used in tests and ephemeral runs
type MemStore struct {
	mu    sync.RWMutex
	blobs map[string][]byte
}

// NewMemStore creates an empty in-memory store
func NewMemStore() *MemStore {
	return &MemStore{blobs: make(map[string][]byte)}
}

// Upload stores a blob, overwriting any existing entry
func (s *MemStore) Upload(_ context.Context, name string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	buf := make([]byte, len(data))
	copy(buf, data)
	s.blobs[name] = buf
	return nil
}

// Download returns a blob by name
func (s *MemStore) Download(_ context.Context, name string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.blobs[name]
	if !ok {
		return nil, ErrNotFound
	}
	return data, nil
}

// List returns the names of all blobs under the given prefix, sorted
func (s *MemStore) List(_ context.Context, prefix string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var names []string
	for name := range s.blobs {
		if strings.HasPrefix(name, prefix) {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names, nil
}
