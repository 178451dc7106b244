package artifact

import (
	"context"
	"sync"
)

// MemoryStore keeps artifacts in memory and returns mem:// locators. It backs
// tests and the mock synthesis mode.
type MemoryStore struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{objects: make(map[string][]byte)}
}

func (s *MemoryStore) Put(_ context.Context, name string, data []byte, _ string) (string, error) {
	s.mu.Lock()
	s.objects[name] = append([]byte(nil), data...)
	s.mu.Unlock()
	return "mem://" + name, nil
}

// Get returns a stored artifact, for test assertions.
func (s *MemoryStore) Get(name string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.objects[name]
	return data, ok
}
