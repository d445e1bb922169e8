package warden

import (
	"time"

	"mercator-hq/warden/pkg/warden/events"
	"mercator-hq/warden/pkg/warden/scheduler"
	"mercator-hq/warden/pkg/warden/updater"
)

// Metrics receives the client's operational signals.
type Metrics interface {
	events.Observer
	scheduler.Observer
	updater.Observer

	UsageRecorded(policyID int64)
	SuspensionEnforced(policyID int64)
	PolicyReconciled(action string)
	StateChanged(state string)
	CacheSizes(values, infractions int)
}

// Reconciliation outcomes reported through Metrics.PolicyReconciled.
const (
	ReconcileCreated   = "created"
	ReconcileUpdated   = "updated"
	ReconcileUnchanged = "unchanged"
)

type noopMetrics struct{}

func (noopMetrics) EventReceived(string)                       {}
func (noopMetrics) EventRejected(string)                       {}
func (noopMetrics) TaskCompleted(string, time.Duration, error) {}
func (noopMetrics) TaskPanicked(string)                        {}
func (noopMetrics) UsagePushed(error)                          {}
func (noopMetrics) SuspensionsPulled(int, error)               {}
func (noopMetrics) UsageRecorded(int64)                        {}
func (noopMetrics) SuspensionEnforced(int64)                   {}
func (noopMetrics) PolicyReconciled(string)                    {}
func (noopMetrics) StateChanged(string)                        {}
func (noopMetrics) CacheSizes(int, int)                        {}
