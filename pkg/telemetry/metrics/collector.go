package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"mercator-hq/warden/pkg/config"
)

// Client states reported on the state gauge.
var states = []string{"unregistered", "registering", "registered", "unregistering"}

// Collector records Warden client metrics on a private registry.
type Collector struct {
	registry *prometheus.Registry

	usageUpdates       *prometheus.CounterVec
	suspensionsHit     *prometheus.CounterVec
	policiesReconciled *prometheus.CounterVec
	state              *prometheus.GaugeVec
	cacheEntries       *prometheus.GaugeVec

	*SyncMetrics
	*HTTPMetrics
}

// NewCollector creates a collector and registers every metric.
func NewCollector(cfg *config.MetricsConfig) *Collector {
	registry := prometheus.NewRegistry()
	opts := func(name, help string) prometheus.Opts {
		return prometheus.Opts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      name,
			Help:      help,
		}
	}

	c := &Collector{
		registry: registry,
		usageUpdates: prometheus.NewCounterVec(
			prometheus.CounterOpts(opts("usage_updates_total", "Usage updates recorded in the local cache")),
			[]string{"policy_id"},
		),
		suspensionsHit: prometheus.NewCounterVec(
			prometheus.CounterOpts(opts("suspensions_enforced_total", "Calls rejected because the user is suspended")),
			[]string{"policy_id"},
		),
		policiesReconciled: prometheus.NewCounterVec(
			prometheus.CounterOpts(opts("policies_reconciled_total", "Policies reconciled with the authority by outcome")),
			[]string{"action"},
		),
		state: prometheus.NewGaugeVec(
			prometheus.GaugeOpts(opts("state", "1 for the current registration state, 0 otherwise")),
			[]string{"state"},
		),
		cacheEntries: prometheus.NewGaugeVec(
			prometheus.GaugeOpts(opts("cache_entries", "Entries in the local caches")),
			[]string{"cache"},
		),
		SyncMetrics: newSyncMetrics(cfg),
		HTTPMetrics: newHTTPMetrics(cfg),
	}

	registry.MustRegister(
		c.usageUpdates,
		c.suspensionsHit,
		c.policiesReconciled,
		c.state,
		c.cacheEntries,
	)
	c.SyncMetrics.register(registry)
	c.HTTPMetrics.register(registry)
	c.StateChanged("unregistered")

	return c
}

// Registry returns the collector's registry.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// UsageRecorded counts a usage update.
func (c *Collector) UsageRecorded(policyID int64) {
	c.usageUpdates.WithLabelValues(strconv.FormatInt(policyID, 10)).Inc()
}

// SuspensionEnforced counts a rejected call.
func (c *Collector) SuspensionEnforced(policyID int64) {
	c.suspensionsHit.WithLabelValues(strconv.FormatInt(policyID, 10)).Inc()
}

// PolicyReconciled counts a reconciliation outcome.
func (c *Collector) PolicyReconciled(action string) {
	c.policiesReconciled.WithLabelValues(action).Inc()
}

// StateChanged moves the state gauge.
func (c *Collector) StateChanged(state string) {
	for _, s := range states {
		v := 0.0
		if s == state {
			v = 1
		}
		c.state.WithLabelValues(s).Set(v)
	}
}

// CacheSizes sets the cache gauges.
func (c *Collector) CacheSizes(values, infractions int) {
	c.cacheEntries.WithLabelValues("values").Set(float64(values))
	c.cacheEntries.WithLabelValues("infractions").Set(float64(infractions))
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

func seconds(d time.Duration) float64 {
	return d.Seconds()
}
