package storage

import (
	"context"

	"mercator-hq/warden/pkg/warden/types"
)

// Backend stores cache snapshots. Implementations must be safe for
// concurrent use.
type Backend interface {
	// SaveValues replaces the stored usage values.
	SaveValues(ctx context.Context, values map[types.Key]float64) error

	// LoadValues returns the stored usage values. An empty store yields an
	// empty map.
	LoadValues(ctx context.Context) (map[types.Key]float64, error)

	// SaveInfractions replaces the stored infractions.
	SaveInfractions(ctx context.Context, infractions []types.Infraction) error

	// LoadInfractions returns the stored infractions.
	LoadInfractions(ctx context.Context) ([]types.Infraction, error)

	// Close releases resources. The backend must not be used afterwards.
	Close() error
}

// ValueSnapshotter exposes the usage cache.
type ValueSnapshotter interface {
	Snapshot() map[types.Key]float64
}

// InfractionSnapshotter exposes the infraction cache.
type InfractionSnapshotter interface {
	Snapshot() []types.Infraction
}
