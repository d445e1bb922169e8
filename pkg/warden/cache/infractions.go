package cache

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"mercator-hq/warden/pkg/warden/types"
)

// InfractionCache maps (policy, user) to the most recent infraction.
type InfractionCache struct {
	mu sync.RWMutex

	// entries stores private copies; callers never see the stored pointer.
	entries map[types.Key]*types.Infraction

	// now decides which timed suspensions have ended.
	now func() time.Time

	logger *slog.Logger
}

// Option configures an InfractionCache.
type Option func(*InfractionCache)

// WithClock sets the time source used for eviction.
func WithClock(now func() time.Time) Option {
	return func(c *InfractionCache) {
		c.now = now
	}
}

// WithLogger sets the logger used by the janitor.
func WithLogger(logger *slog.Logger) Option {
	return func(c *InfractionCache) {
		c.logger = logger
	}
}

// NewInfractionCache creates an empty InfractionCache.
func NewInfractionCache(opts ...Option) *InfractionCache {
	c := &InfractionCache{
		entries: make(map[types.Key]*types.Infraction),
		now:     time.Now,
		logger:  slog.Default().With("component", "infraction_cache"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Put stores inf under its key, replacing any previous entry, then evicts
// every timed suspension that has already ended. The last writer wins.
func (c *InfractionCache) Put(inf *types.Infraction) {
	if inf == nil {
		return
	}
	stored := *inf

	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[stored.Key()] = &stored
	c.sweepLocked(c.nowMillis())
}

// Get returns a copy of the entry for key.
func (c *InfractionCache) Get(key types.Key) (*types.Infraction, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	inf, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	out := *inf
	return &out, true
}

// Len returns the number of retained entries. Expired suspensions are
// swept before counting.
func (c *InfractionCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.sweepLocked(c.nowMillis())
	return len(c.entries)
}

// IsEmpty reports whether no entries are retained.
func (c *InfractionCache) IsEmpty() bool {
	return c.Len() == 0
}

// Sweep evicts ended suspensions and returns how many were removed.
func (c *InfractionCache) Sweep() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.sweepLocked(c.nowMillis())
}

// Snapshot returns copies of all retained entries.
func (c *InfractionCache) Snapshot() []types.Infraction {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.sweepLocked(c.nowMillis())
	out := make([]types.Infraction, 0, len(c.entries))
	for _, inf := range c.entries {
		out = append(out, *inf)
	}
	return out
}

// Restore loads persisted infractions without overwriting entries that
// arrived since startup.
func (c *InfractionCache) Restore(infractions []types.Infraction) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for i := range infractions {
		inf := infractions[i]
		if _, ok := c.entries[inf.Key()]; ok {
			continue
		}
		c.entries[inf.Key()] = &inf
	}
	c.sweepLocked(c.nowMillis())
}

// StartJanitor sweeps on every interval until ctx is canceled. It returns
// a channel closed when the janitor has exited.
func (c *InfractionCache) StartJanitor(ctx context.Context, interval time.Duration) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n := c.Sweep(); n > 0 {
					c.logger.Debug("evicted expired suspensions", "count", n)
				}
			}
		}
	}()
	return done
}

func (c *InfractionCache) sweepLocked(nowMillis int64) int {
	removed := 0
	for k, inf := range c.entries {
		if inf.ExpiredAt(nowMillis) {
			delete(c.entries, k)
			removed++
		}
	}
	return removed
}

func (c *InfractionCache) nowMillis() int64 {
	return c.now().UnixMilli()
}
