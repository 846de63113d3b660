package query

import "sync"

// Cache holds the last successful value per cache key.
type Cache interface {
	Get(key string) (any, bool)
	Set(key string, value any)
	Delete(key string)
	Clear()
}

var _ Cache = (*MemoryCache)(nil)

// MemoryCache is a process-wide in-memory Cache.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]any
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: make(map[string]any)}
}

func (m *MemoryCache) Get(key string) (any, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.entries[key]
	return v, ok
}

func (m *MemoryCache) Set(key string, value any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = value
}

func (m *MemoryCache) Delete(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, key)
}

func (m *MemoryCache) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = make(map[string]any)
}

func (m *MemoryCache) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}
