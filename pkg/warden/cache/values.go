package cache

import (
	"errors"
	"fmt"
	"maps"
	"math"
	"sync"

	"mercator-hq/warden/pkg/warden/types"
)

// ErrInvalidValue is returned for NaN and infinite values.
var ErrInvalidValue = errors.New("value must be a finite number")

// ValueCache maps (policy, user) to the usage accumulated since startup.
type ValueCache struct {
	mu sync.RWMutex

	// values holds the current value per key. Keys are never removed.
	values map[types.Key]float64
}

// NewValueCache creates an empty ValueCache.
func NewValueCache() *ValueCache {
	return &ValueCache{values: make(map[types.Key]float64)}
}

// Set replaces the value for key.
func (c *ValueCache) Set(key types.Key, value float64) error {
	if err := checkFinite(value); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.values[key] = value
	return nil
}

// Accumulate adds delta to the value for key. An absent key starts from
// defaultValue. It returns the new value.
func (c *ValueCache) Accumulate(key types.Key, defaultValue, delta float64) (float64, error) {
	if err := checkFinite(delta); err != nil {
		return 0, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	current, ok := c.values[key]
	if !ok {
		current = defaultValue
	}
	next := current + delta
	if err := checkFinite(next); err != nil {
		return current, fmt.Errorf("accumulate %s: %w", key, err)
	}
	c.values[key] = next
	return next, nil
}

// Get returns the value for key.
func (c *ValueCache) Get(key types.Key) (float64, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	v, ok := c.values[key]
	return v, ok
}

// Len returns the number of keys.
func (c *ValueCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return len(c.values)
}

// Snapshot returns a copy of the cache. Later writes do not affect it.
func (c *ValueCache) Snapshot() map[types.Key]float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return maps.Clone(c.values)
}

// Restore loads persisted values. Keys already present keep their
// current value.
func (c *ValueCache) Restore(values map[types.Key]float64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for k, v := range values {
		if _, ok := c.values[k]; ok {
			continue
		}
		if checkFinite(v) != nil {
			continue
		}
		c.values[k] = v
	}
}

func checkFinite(v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return ErrInvalidValue
	}
	return nil
}
