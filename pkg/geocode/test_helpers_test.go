package geocode

import (
	"context"
	"sync"
)

// memCache is a map-backed Cache for tests.
type memCache struct {
	mu      sync.Mutex
	entries map[string][]Result
}

func newMemCache() *memCache {
	return &memCache{entries: make(map[string][]Result)}
}

func (m *memCache) Lookup(_ context.Context, key string) ([]Result, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.entries[key]
	return r, ok, nil
}

func (m *memCache) Store(_ context.Context, key, _ string, results []Result) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = results
	return nil
}
