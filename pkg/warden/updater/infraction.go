package updater

import (
	"context"
	"fmt"
	"log/slog"

	"mercator-hq/warden/pkg/warden/types"
)

// SuspensionFetcher reads active suspensions of a policy.
type SuspensionFetcher interface {
	GetSuspensions(ctx context.Context, policyID int64) ([]types.Infraction, error)
}

// InfractionSink stores fetched suspensions.
type InfractionSink interface {
	Put(inf *types.Infraction)
}

// PolicySet yields the policy IDs to synchronize. It is read on every run.
type PolicySet interface {
	PolicyIDs() []int64
}

// PolicyIDs adapts a fixed list to PolicySet.
type PolicyIDs []int64

// PolicyIDs implements PolicySet.
func (p PolicyIDs) PolicyIDs() []int64 {
	return p
}

// InfractionUpdater pulls suspensions into the InfractionCache.
type InfractionUpdater struct {
	policies PolicySet
	fetcher  SuspensionFetcher
	sink     InfractionSink
	observer Observer
	logger   *slog.Logger
}

// NewInfractionUpdater creates an InfractionUpdater.
func NewInfractionUpdater(policies PolicySet, fetcher SuspensionFetcher, sink InfractionSink, opts ...Option) *InfractionUpdater {
	o := newOptions(opts)
	return &InfractionUpdater{
		policies: policies,
		fetcher:  fetcher,
		sink:     sink,
		observer: o.observer,
		logger:   o.logger.With("component", "infraction_updater"),
	}
}

// Run fetches the suspensions of every tracked policy.
func (u *InfractionUpdater) Run(ctx context.Context) error {
	ids := u.policies.PolicyIDs()

	failed, stored := 0, 0
	for _, id := range ids {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		n, err := Pull(ctx, u.fetcher, u.sink, id)
		if u.observer != nil {
			u.observer.SuspensionsPulled(n, err)
		}
		if err != nil {
			failed++
			u.logger.Warn("failed to pull suspensions", "policy_id", id, "error", err)
			continue
		}
		stored += n
	}

	u.logger.Debug("suspensions pulled", "policies", len(ids), "stored", stored, "failed", failed)
	if failed > 0 {
		return fmt.Errorf("pull suspensions: %d of %d policies failed", failed, len(ids))
	}
	return nil
}

// Pull fetches the suspensions of one policy into sink and returns how
// many were stored.
func Pull(ctx context.Context, fetcher SuspensionFetcher, sink InfractionSink, policyID int64) (int, error) {
	infractions, err := fetcher.GetSuspensions(ctx, policyID)
	if err != nil {
		return 0, err
	}
	for i := range infractions {
		sink.Put(&infractions[i])
	}
	return len(infractions), nil
}
