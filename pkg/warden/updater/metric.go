package updater

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"mercator-hq/warden/pkg/warden/types"
)

// UsagePusher sends usage samples to the authority.
type UsagePusher interface {
	PushUsage(ctx context.Context, policyID int64, user string, samples map[int64]float64) error
}

// ValueSource provides the usage to report.
type ValueSource interface {
	Snapshot() map[types.Key]float64
}

// Observer is notified of per-item sync outcomes.
type Observer interface {
	UsagePushed(err error)
	SuspensionsPulled(count int, err error)
}

// MetricUpdater pushes the ValueCache to the authority.
type MetricUpdater struct {
	values   ValueSource
	pusher   UsagePusher
	observer Observer
	now      func() time.Time
	logger   *slog.Logger
}

// NewMetricUpdater creates a MetricUpdater.
func NewMetricUpdater(values ValueSource, pusher UsagePusher, opts ...Option) *MetricUpdater {
	o := newOptions(opts)
	return &MetricUpdater{
		values:   values,
		pusher:   pusher,
		observer: o.observer,
		now:      o.now,
		logger:   o.logger.With("component", "metric_updater"),
	}
}

// Run pushes one sample per cached entry.
func (u *MetricUpdater) Run(ctx context.Context) error {
	timestamp := MinuteTimestamp(u.now())
	snapshot := u.values.Snapshot()

	failed := 0
	for key, value := range snapshot {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		err := u.pusher.PushUsage(ctx, key.PolicyID, key.User, map[int64]float64{timestamp: value})
		if u.observer != nil {
			u.observer.UsagePushed(err)
		}
		if err != nil {
			failed++
			u.logger.Warn("failed to push usage",
				"policy_id", key.PolicyID,
				"user", key.User,
				"value", value,
				"error", err,
			)
		}
	}

	u.logger.Debug("usage pushed", "entries", len(snapshot), "failed", failed, "timestamp", timestamp)
	if failed > 0 {
		return fmt.Errorf("push usage: %d of %d entries failed", failed, len(snapshot))
	}
	return nil
}

// MinuteTimestamp truncates t to the minute and returns epoch milliseconds.
func MinuteTimestamp(t time.Time) int64 {
	return t.Truncate(time.Minute).UnixMilli()
}
