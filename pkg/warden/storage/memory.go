package storage

import (
	"context"
	"errors"
	"maps"
	"slices"
	"sync"

	"mercator-hq/warden/pkg/warden/types"
)

// ErrClosed is returned by a closed backend.
var ErrClosed = errors.New("storage backend closed")

// MemoryBackend keeps snapshots in memory.
type MemoryBackend struct {
	mu          sync.RWMutex
	values      map[types.Key]float64
	infractions []types.Infraction
	closed      bool
}

// NewMemoryBackend creates an empty MemoryBackend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{values: make(map[types.Key]float64)}
}

// SaveValues implements Backend.
func (m *MemoryBackend) SaveValues(_ context.Context, values map[types.Key]float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}
	m.values = maps.Clone(values)
	if m.values == nil {
		m.values = make(map[types.Key]float64)
	}
	return nil
}

// LoadValues implements Backend.
func (m *MemoryBackend) LoadValues(context.Context) (map[types.Key]float64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrClosed
	}
	return maps.Clone(m.values), nil
}

// SaveInfractions implements Backend.
func (m *MemoryBackend) SaveInfractions(_ context.Context, infractions []types.Infraction) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}
	m.infractions = slices.Clone(infractions)
	return nil
}

// LoadInfractions implements Backend.
func (m *MemoryBackend) LoadInfractions(context.Context) ([]types.Infraction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrClosed
	}
	return slices.Clone(m.infractions), nil
}

// Close implements Backend.
func (m *MemoryBackend) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closed = true
	return nil
}
