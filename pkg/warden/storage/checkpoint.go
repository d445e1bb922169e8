package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"mercator-hq/warden/pkg/warden/types"
)

// Checkpoint saves both caches to a backend. It implements scheduler.Task.
type Checkpoint struct {
	backend     Backend
	values      ValueSnapshotter
	infractions InfractionSnapshotter
	logger      *slog.Logger
}

// NewCheckpoint creates a Checkpoint.
func NewCheckpoint(backend Backend, values ValueSnapshotter, infractions InfractionSnapshotter, logger *slog.Logger) *Checkpoint {
	if logger == nil {
		logger = slog.Default()
	}
	return &Checkpoint{
		backend:     backend,
		values:      values,
		infractions: infractions,
		logger:      logger.With("component", "checkpoint"),
	}
}

// Run saves a snapshot of both caches.
func (c *Checkpoint) Run(ctx context.Context) error {
	start := time.Now()
	values := c.values.Snapshot()
	infractions := c.infractions.Snapshot()

	err := errors.Join(
		c.backend.SaveValues(ctx, values),
		c.backend.SaveInfractions(ctx, infractions),
	)
	if err != nil {
		return fmt.Errorf("checkpoint: %w", err)
	}

	c.logger.Debug("caches checkpointed",
		"values", len(values),
		"infractions", len(infractions),
		"duration", time.Since(start),
	)
	return nil
}

// Restore loads both snapshots from a backend.
func Restore(ctx context.Context, backend Backend) (map[types.Key]float64, []types.Infraction, error) {
	values, err := backend.LoadValues(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("restore values: %w", err)
	}
	infractions, err := backend.LoadInfractions(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("restore infractions: %w", err)
	}
	return values, infractions, nil
}
