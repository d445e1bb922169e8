package config

import "time"

// Default values for configuration fields.
const (
	// Warden defaults
	DefaultWardenTimeout         = 10 * time.Second
	DefaultWardenMaxIdleConns    = 10
	DefaultWardenIdleConnTimeout = 90 * time.Second
	DefaultWardenMaxRetries      = 3
	DefaultWardenInitialBackoff  = 200 * time.Millisecond
	DefaultWardenMaxBackoff      = 5 * time.Second

	// Listener defaults
	DefaultListenerNetwork        = "tcp"
	DefaultListenerMaxMessageSize = 64 * 1024
	DefaultListenerIdleTimeout    = 5 * time.Minute

	// Sync defaults
	DefaultSyncInitialDelay    = 30 * time.Second
	DefaultSyncInterval        = 60 * time.Second
	DefaultSyncStopTimeout     = 10 * time.Second
	DefaultSyncJanitorInterval = time.Minute

	// Storage defaults
	DefaultStorageBackend    = "none"
	DefaultSQLitePath        = "data/warden.db"
	DefaultSQLiteBusyTimeout = 5 * time.Second

	// Policies defaults
	DefaultPoliciesFile     = "./policies.yaml"
	DefaultPoliciesDebounce = 250 * time.Millisecond

	// Proxy defaults
	DefaultListenAddress   = "127.0.0.1:8080"
	DefaultUserHeader      = "X-Warden-User"
	DefaultReadTimeout     = 30 * time.Second
	DefaultWriteTimeout    = 30 * time.Second
	DefaultIdleTimeout     = 120 * time.Second
	DefaultShutdownTimeout = 30 * time.Second
	DefaultMaxHeaderBytes  = 1048576 // 1MB

	// Telemetry defaults
	DefaultLoggingLevel        = "info"
	DefaultLoggingFormat       = "json"
	DefaultLoggingBufferSize   = 10000
	DefaultPrometheusPath      = "/metrics"
	DefaultMetricsNamespace    = "warden"
	DefaultMetricsSubsystem    = "client"
	DefaultTracingSampler      = "ratio"
	DefaultTracingSamplingRate = 1.0
	DefaultTracingServiceName  = "warden-client"
	DefaultOTLPTimeout         = 10 * time.Second
	DefaultLivenessPath        = "/health"
	DefaultReadinessPath       = "/ready"
	DefaultVersionPath         = "/version"
	DefaultHealthCheckTimeout  = 5 * time.Second
)

// DefaultSyncDurationBuckets are the histogram buckets for sync tasks.
var DefaultSyncDurationBuckets = []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30}

// ApplyDefaults applies default values to a Config struct.
// It sets defaults for any fields that have zero values.
// This function is idempotent and safe to call multiple times.
func ApplyDefaults(cfg *Config) {
	applyWardenDefaults(&cfg.Warden)

	// Listener defaults
	if cfg.Listener.Network == "" {
		cfg.Listener.Network = DefaultListenerNetwork
	}
	if cfg.Listener.MaxMessageSize == 0 {
		cfg.Listener.MaxMessageSize = DefaultListenerMaxMessageSize
	}
	if cfg.Listener.IdleTimeout == 0 {
		cfg.Listener.IdleTimeout = DefaultListenerIdleTimeout
	}

	// Sync defaults
	if cfg.Sync.PushInitialDelay == 0 {
		cfg.Sync.PushInitialDelay = DefaultSyncInitialDelay
	}
	if cfg.Sync.PushInterval == 0 {
		cfg.Sync.PushInterval = DefaultSyncInterval
	}
	if cfg.Sync.PullInitialDelay == 0 {
		cfg.Sync.PullInitialDelay = DefaultSyncInitialDelay
	}
	if cfg.Sync.PullInterval == 0 {
		cfg.Sync.PullInterval = DefaultSyncInterval
	}
	if cfg.Sync.StopTimeout == 0 {
		cfg.Sync.StopTimeout = DefaultSyncStopTimeout
	}
	if cfg.Sync.JanitorInterval == 0 {
		cfg.Sync.JanitorInterval = DefaultSyncJanitorInterval
	}

	// Storage defaults
	if cfg.Storage.Backend == "" {
		cfg.Storage.Backend = DefaultStorageBackend
	}
	if cfg.Storage.SQLite.Path == "" {
		cfg.Storage.SQLite.Path = DefaultSQLitePath
	}
	if cfg.Storage.SQLite.BusyTimeout == 0 {
		cfg.Storage.SQLite.BusyTimeout = DefaultSQLiteBusyTimeout
	}

	// Policies defaults
	if cfg.Policies.File == "" {
		cfg.Policies.File = DefaultPoliciesFile
	}
	if cfg.Policies.Debounce == 0 {
		cfg.Policies.Debounce = DefaultPoliciesDebounce
	}

	applyProxyDefaults(&cfg.Proxy)
	applyTelemetryDefaults(&cfg.Telemetry)
}

func applyWardenDefaults(w *WardenConfig) {
	if w.Timeout == 0 {
		w.Timeout = DefaultWardenTimeout
	}
	if w.MaxIdleConns == 0 {
		w.MaxIdleConns = DefaultWardenMaxIdleConns
	}
	if w.IdleConnTimeout == 0 {
		w.IdleConnTimeout = DefaultWardenIdleConnTimeout
	}
	if w.MaxRetries == 0 {
		w.MaxRetries = DefaultWardenMaxRetries
	}
	if w.InitialBackoff == 0 {
		w.InitialBackoff = DefaultWardenInitialBackoff
	}
	if w.MaxBackoff == 0 {
		w.MaxBackoff = DefaultWardenMaxBackoff
	}
}

func applyProxyDefaults(p *ProxyConfig) {
	if p.ListenAddress == "" {
		p.ListenAddress = DefaultListenAddress
	}
	if p.UserHeader == "" {
		p.UserHeader = DefaultUserHeader
	}
	if p.ReadTimeout == 0 {
		p.ReadTimeout = DefaultReadTimeout
	}
	if p.WriteTimeout == 0 {
		p.WriteTimeout = DefaultWriteTimeout
	}
	if p.IdleTimeout == 0 {
		p.IdleTimeout = DefaultIdleTimeout
	}
	if p.ShutdownTimeout == 0 {
		p.ShutdownTimeout = DefaultShutdownTimeout
	}
	if p.MaxHeaderBytes == 0 {
		p.MaxHeaderBytes = DefaultMaxHeaderBytes
	}
}

func applyTelemetryDefaults(t *TelemetryConfig) {
	if t.Logging.Level == "" {
		t.Logging.Level = DefaultLoggingLevel
	}
	if t.Logging.Format == "" {
		t.Logging.Format = DefaultLoggingFormat
	}
	if t.Logging.BufferSize == 0 {
		t.Logging.BufferSize = DefaultLoggingBufferSize
	}

	if t.Metrics.Path == "" {
		t.Metrics.Path = DefaultPrometheusPath
	}
	if t.Metrics.Namespace == "" {
		t.Metrics.Namespace = DefaultMetricsNamespace
	}
	if t.Metrics.Subsystem == "" {
		t.Metrics.Subsystem = DefaultMetricsSubsystem
	}
	if len(t.Metrics.SyncDurationBuckets) == 0 {
		t.Metrics.SyncDurationBuckets = append([]float64(nil), DefaultSyncDurationBuckets...)
	}

	if t.Tracing.Sampler == "" {
		t.Tracing.Sampler = DefaultTracingSampler
	}
	if t.Tracing.SampleRatio == 0 {
		t.Tracing.SampleRatio = DefaultTracingSamplingRate
	}
	if t.Tracing.ServiceName == "" {
		t.Tracing.ServiceName = DefaultTracingServiceName
	}
	if t.Tracing.OTLP.Timeout == 0 {
		t.Tracing.OTLP.Timeout = DefaultOTLPTimeout
	}

	if t.Health.LivenessPath == "" {
		t.Health.LivenessPath = DefaultLivenessPath
	}
	if t.Health.ReadinessPath == "" {
		t.Health.ReadinessPath = DefaultReadinessPath
	}
	if t.Health.VersionPath == "" {
		t.Health.VersionPath = DefaultVersionPath
	}
	if t.Health.CheckTimeout == 0 {
		t.Health.CheckTimeout = DefaultHealthCheckTimeout
	}
}
