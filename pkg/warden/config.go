package warden

import (
	"log/slog"
	"time"

	"mercator-hq/warden/pkg/warden/events"
	"mercator-hq/warden/pkg/warden/storage"
)

// Defaults for Config.
const (
	DefaultInitialDelay    = 30 * time.Second
	DefaultSyncInterval    = 60 * time.Second
	DefaultStopTimeout     = 10 * time.Second
	DefaultJanitorInterval = time.Minute
)

// Task names registered with the scheduler.
const (
	TaskPushUsage       = "push-usage"
	TaskPullSuspensions = "pull-suspensions"
	TaskCheckpoint      = "checkpoint"
)

// Config configures a Client.
type Config struct {
	// Username and Password authenticate the session.
	Username string
	Password string

	// Listener configures the inbound event server. An empty address
	// disables it and the client relies on the pull loop alone.
	Listener events.Config

	// AdvertiseHost is the host name sent with the subscription.
	// Default: os.Hostname()
	AdvertiseHost string

	// PushInitialDelay and PushInterval schedule the usage push loop.
	// Defaults: 30s and 60s
	PushInitialDelay time.Duration
	PushInterval     time.Duration

	// PullInitialDelay and PullInterval schedule the suspension pull loop.
	// Defaults: 30s and 60s
	PullInitialDelay time.Duration
	PullInterval     time.Duration

	// StopTimeout bounds each wait during Unregister. Default: 10s
	StopTimeout time.Duration

	// JanitorInterval is how often ended suspensions are swept even
	// without new writes. Default: 1m. Negative disables the janitor.
	JanitorInterval time.Duration

	// CheckpointSchedule is a cron expression for saving the caches to
	// the storage backend. Empty saves only on Unregister.
	CheckpointSchedule string
}

func (c *Config) applyDefaults() {
	if c.PushInitialDelay <= 0 {
		c.PushInitialDelay = DefaultInitialDelay
	}
	if c.PushInterval <= 0 {
		c.PushInterval = DefaultSyncInterval
	}
	if c.PullInitialDelay <= 0 {
		c.PullInitialDelay = DefaultInitialDelay
	}
	if c.PullInterval <= 0 {
		c.PullInterval = DefaultSyncInterval
	}
	if c.StopTimeout <= 0 {
		c.StopTimeout = DefaultStopTimeout
	}
	if c.JanitorInterval == 0 {
		c.JanitorInterval = DefaultJanitorInterval
	}
}

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the client logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithMetrics reports client activity to m.
func WithMetrics(m Metrics) Option {
	return func(c *Client) {
		c.metrics = m
	}
}

// WithStorage persists the caches to backend across restarts.
func WithStorage(backend storage.Backend) Option {
	return func(c *Client) {
		c.storage = backend
	}
}

// WithClock sets the time source for suspension checks and usage
// timestamps.
func WithClock(now func() time.Time) Option {
	return func(c *Client) {
		c.now = now
	}
}
