package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"mercator-hq/warden/pkg/config"
)

// SyncMetrics tracks the background loops and the event listener.
type SyncMetrics struct {
	events           *prometheus.CounterVec
	tasks            *prometheus.CounterVec
	taskDuration     *prometheus.HistogramVec
	taskPanics       *prometheus.CounterVec
	pushes           *prometheus.CounterVec
	suspensionsFound prometheus.Counter
}

func newSyncMetrics(cfg *config.MetricsConfig) *SyncMetrics {
	return &SyncMetrics{
		events: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "events_total",
				Help:      "Infraction notifications received by transport and result",
			},
			[]string{"transport", "result"},
		),
		tasks: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "sync_tasks_total",
				Help:      "Sync task runs by task and result",
			},
			[]string{"task", "result"},
		),
		taskDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "sync_task_duration_seconds",
				Help:      "Duration of sync task runs in seconds",
				Buckets:   cfg.SyncDurationBuckets,
			},
			[]string{"task"},
		),
		taskPanics: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "sync_task_panics_total",
				Help:      "Sync task panics; each one replaces the task instance",
			},
			[]string{"task"},
		),
		pushes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "usage_pushes_total",
				Help:      "Usage values pushed to the authority by result",
			},
			[]string{"result"},
		),
		suspensionsFound: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "suspensions_pulled_total",
				Help:      "Suspensions fetched from the authority",
			},
		),
	}
}

func (m *SyncMetrics) register(r *prometheus.Registry) {
	r.MustRegister(m.events, m.tasks, m.taskDuration, m.taskPanics, m.pushes, m.suspensionsFound)
}

// EventReceived counts an accepted notification.
func (m *SyncMetrics) EventReceived(transport string) {
	m.events.WithLabelValues(transport, "accepted").Inc()
}

// EventRejected counts a malformed notification.
func (m *SyncMetrics) EventRejected(transport string) {
	m.events.WithLabelValues(transport, "rejected").Inc()
}

// TaskCompleted records a finished task run.
func (m *SyncMetrics) TaskCompleted(name string, d time.Duration, err error) {
	m.tasks.WithLabelValues(name, result(err)).Inc()
	m.taskDuration.WithLabelValues(name).Observe(seconds(d))
}

// TaskPanicked counts a recovered panic.
func (m *SyncMetrics) TaskPanicked(name string) {
	m.taskPanics.WithLabelValues(name).Inc()
}

// UsagePushed counts one pushed value.
func (m *SyncMetrics) UsagePushed(err error) {
	m.pushes.WithLabelValues(result(err)).Inc()
}

// SuspensionsPulled counts fetched suspensions. Failed pulls are counted
// through TaskCompleted.
func (m *SyncMetrics) SuspensionsPulled(count int, err error) {
	if err == nil {
		m.suspensionsFound.Add(float64(count))
	}
}
