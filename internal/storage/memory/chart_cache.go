package memory

import (
	"context"
	"sync"

	"treasury-charts/internal/storage"
)

// ChartCache is an in-memory implementation of storage.ChartCache.
type ChartCache struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// NewChartCache creates a new in-memory chart cache.
func NewChartCache() *ChartCache {
	return &ChartCache{data: make(map[string][]byte)}
}

// Put stores payload under key.
func (c *ChartCache) Put(_ context.Context, key string, payload []byte) error {
	if key == "" {
		return storage.ErrInvalidInput
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = append([]byte(nil), payload...)
	return nil
}

// Get returns the payload under key.
func (c *ChartCache) Get(_ context.Context, key string) ([]byte, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	payload, ok := c.data[key]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return append([]byte(nil), payload...), nil
}

// Clear drops every cached payload.
func (c *ChartCache) Clear(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data = make(map[string][]byte)
	return nil
}

var _ storage.ChartCache = (*ChartCache)(nil)
