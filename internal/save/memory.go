package save

import (
	"context"
	"sync"
)

// MemoryBackend keeps records in a map. Nothing survives the process.
type MemoryBackend struct {
	mu      sync.RWMutex
	records map[string][]byte
}

var _ Backend = (*MemoryBackend)(nil)

// NewMemoryBackend creates an empty in-process backend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{records: make(map[string][]byte)}
}

func (m *MemoryBackend) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.records[key]
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), v...), true, nil
}

func (m *MemoryBackend) Write(_ context.Context, batch Batch) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range batch.Puts {
		m.records[r.Key] = append([]byte(nil), r.Value...)
	}
	for _, k := range batch.Deletes {
		delete(m.records, k)
	}
	return nil
}

func (m *MemoryBackend) Close() error { return nil }
