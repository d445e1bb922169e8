package config

import "time"

// Config is the root configuration structure for the Warden client.
type Config struct {
	// Warden configures the connection to the remote authority.
	Warden WardenConfig `yaml:"warden"`

	// Listener configures the inbound suspension notification server.
	Listener ListenerConfig `yaml:"listener"`

	// Sync configures the background push and pull loops.
	Sync SyncConfig `yaml:"sync"`

	// Storage configures persistence of the caches across restarts.
	Storage StorageConfig `yaml:"storage"`

	// Policies configures where declared policies are read from.
	Policies PoliciesConfig `yaml:"policies"`

	// Proxy configures the enforcing reverse proxy.
	Proxy ProxyConfig `yaml:"proxy"`

	// Telemetry contains logging, metrics, tracing and health configuration.
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// WardenConfig configures the HTTP client for the authority.
type WardenConfig struct {
	// Endpoint is the base URL of the Warden web services.
	Endpoint string `yaml:"endpoint"`

	// Username and Password authenticate the session.
	Username string `yaml:"username"`
	Password string `yaml:"password"`

	// Timeout bounds each HTTP request.
	// Default: 10s
	Timeout time.Duration `yaml:"timeout"`

	// MaxIdleConns is the size of the idle connection pool.
	// Default: 10
	MaxIdleConns int `yaml:"max_idle_conns"`

	// IdleConnTimeout closes pooled connections idle for longer.
	// Default: 90s
	IdleConnTimeout time.Duration `yaml:"idle_conn_timeout"`

	// MaxRetries is the number of retries for transient failures.
	// Negative disables retries.
	// Default: 3
	MaxRetries int `yaml:"max_retries"`

	// InitialBackoff and MaxBackoff bound the retry delays.
	// Defaults: 200ms and 5s
	InitialBackoff time.Duration `yaml:"initial_backoff"`
	MaxBackoff     time.Duration `yaml:"max_backoff"`
}

// ListenerConfig configures the event server.
type ListenerConfig struct {
	// Network is "tcp" or "udp".
	// Default: "tcp"
	Network string `yaml:"network"`

	// Address is the host:port to listen on. Empty disables the listener
	// and suspensions arrive through polling only.
	Address string `yaml:"address"`

	// AdvertiseHost is the host name registered with the authority.
	// Default: the machine host name
	AdvertiseHost string `yaml:"advertise_host"`

	// MaxMessageSize is the largest accepted UDP datagram in bytes.
	// Default: 65536
	MaxMessageSize int `yaml:"max_message_size"`

	// IdleTimeout closes TCP connections without traffic.
	// Default: 5m
	IdleTimeout time.Duration `yaml:"idle_timeout"`
}

// SyncConfig schedules the synchronization loops.
type SyncConfig struct {
	// PushInitialDelay and PushInterval schedule usage pushes.
	// Defaults: 30s and 60s
	PushInitialDelay time.Duration `yaml:"push_initial_delay"`
	PushInterval     time.Duration `yaml:"push_interval"`

	// PullInitialDelay and PullInterval schedule suspension pulls.
	// Defaults: 30s and 60s
	PullInitialDelay time.Duration `yaml:"pull_initial_delay"`
	PullInterval     time.Duration `yaml:"pull_interval"`

	// StopTimeout bounds each wait during shutdown.
	// Default: 10s
	StopTimeout time.Duration `yaml:"stop_timeout"`

	// JanitorInterval is how often ended suspensions are swept.
	// Default: 1m
	JanitorInterval time.Duration `yaml:"janitor_interval"`
}

// StorageConfig configures cache persistence.
type StorageConfig struct {
	// Backend is "none", "memory" or "sqlite".
	// Default: "none"
	Backend string `yaml:"backend"`

	// SQLite configures the sqlite backend.
	SQLite SQLiteConfig `yaml:"sqlite"`

	// CheckpointSchedule is a cron expression for periodic saves. Empty
	// saves only on shutdown.
	CheckpointSchedule string `yaml:"checkpoint_schedule"`
}

// SQLiteConfig contains SQLite storage configuration.
type SQLiteConfig struct {
	// Path is the database file path.
	// Default: "data/warden.db"
	Path string `yaml:"path"`

	// BusyTimeout is the time to wait for database locks.
	// Default: 5s
	BusyTimeout time.Duration `yaml:"busy_timeout"`
}

// PoliciesConfig locates the policy file.
type PoliciesConfig struct {
	// File is the YAML policy file.
	// Default: "./policies.yaml"
	File string `yaml:"file"`

	// Watch reloads and reconciles policies when the file changes.
	// Default: false
	Watch bool `yaml:"watch"`

	// Debounce is the quiet period before a change is reloaded.
	// Default: 250ms
	Debounce time.Duration `yaml:"debounce"`
}

// ProxyConfig contains configuration for the enforcing reverse proxy.
type ProxyConfig struct {
	// ListenAddress is the address and port for the proxy to listen on.
	// Default: "127.0.0.1:8080"
	ListenAddress string `yaml:"listen_address"`

	// Upstream is the URL requests are forwarded to. Empty serves only the
	// operational endpoints.
	Upstream string `yaml:"upstream"`

	// UserHeader names the request header carrying the user.
	// Default: "X-Warden-User"
	UserHeader string `yaml:"user_header"`

	// ReadTimeout is the maximum duration for reading the entire request.
	// Default: 30s
	ReadTimeout time.Duration `yaml:"read_timeout"`

	// WriteTimeout is the maximum duration before timing out writes of the
	// response.
	// Default: 30s
	WriteTimeout time.Duration `yaml:"write_timeout"`

	// IdleTimeout is the keep-alive idle timeout.
	// Default: 120s
	IdleTimeout time.Duration `yaml:"idle_timeout"`

	// ShutdownTimeout is the maximum duration to wait for graceful shutdown.
	// Default: 30s
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	// MaxHeaderBytes limits request header size.
	// Default: 1048576 (1MB)
	MaxHeaderBytes int `yaml:"max_header_bytes"`
}

// TelemetryConfig contains configuration for observability.
type TelemetryConfig struct {
	// Logging contains logging configuration.
	Logging LoggingConfig `yaml:"logging"`

	// Metrics contains metrics collection configuration.
	Metrics MetricsConfig `yaml:"metrics"`

	// Tracing contains distributed tracing configuration.
	Tracing TracingConfig `yaml:"tracing"`

	// Health contains health check configuration.
	Health HealthConfig `yaml:"health"`
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	// Level is the minimum log level to emit.
	// Options: "debug", "info", "warn", "error"
	// Default: "info"
	Level string `yaml:"level"`

	// Format controls the log output format.
	// Options: "json", "text"
	// Default: "json"
	Format string `yaml:"format"`

	// AddSource includes file and line number in log entries.
	AddSource bool `yaml:"add_source"`

	// RedactPII redacts credentials and personal data in log attributes.
	RedactPII bool `yaml:"redact_pii"`

	// BufferSize is the size of the async log buffer.
	// Default: 10000
	BufferSize int `yaml:"buffer_size"`

	// RedactPatterns contains custom redaction patterns.
	RedactPatterns []RedactPattern `yaml:"redact_patterns"`
}

// RedactPattern defines a custom redaction pattern.
type RedactPattern struct {
	// Name is a descriptive name for the pattern.
	Name string `yaml:"name"`

	// Pattern is the regular expression to match.
	Pattern string `yaml:"pattern"`

	// Replacement is the string to replace matches with.
	Replacement string `yaml:"replacement"`
}

// MetricsConfig contains metrics collection configuration.
type MetricsConfig struct {
	// Enabled controls whether metrics are collected and served.
	Enabled bool `yaml:"enabled"`

	// Path is the HTTP path for the Prometheus metrics endpoint.
	// Default: "/metrics"
	Path string `yaml:"path"`

	// Namespace is the metric name prefix.
	// Default: "warden"
	Namespace string `yaml:"namespace"`

	// Subsystem is the metric subsystem name.
	// Default: "client"
	Subsystem string `yaml:"subsystem"`

	// SyncDurationBuckets defines histogram buckets for sync task
	// duration in seconds.
	// Default: [0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30]
	SyncDurationBuckets []float64 `yaml:"sync_duration_buckets"`
}

// TracingConfig contains distributed tracing configuration.
type TracingConfig struct {
	// Enabled controls whether distributed tracing is active.
	Enabled bool `yaml:"enabled"`

	// Sampler determines the sampling strategy.
	// Options: "always", "never", "ratio"
	// Default: "ratio"
	Sampler string `yaml:"sampler"`

	// SampleRatio is the fraction of traces to sample (0.0 to 1.0).
	// Default: 1.0
	SampleRatio float64 `yaml:"sample_ratio"`

	// Endpoint is the OTLP gRPC collector endpoint, e.g. "localhost:4317".
	Endpoint string `yaml:"endpoint"`

	// ServiceName is the service name in traces.
	// Default: "warden-client"
	ServiceName string `yaml:"service_name"`

	// OTLP contains OTLP exporter specific configuration.
	OTLP OTLPConfig `yaml:"otlp"`
}

// OTLPConfig contains OTLP exporter configuration.
type OTLPConfig struct {
	// Insecure disables TLS for the OTLP connection.
	Insecure bool `yaml:"insecure"`

	// Timeout is the timeout for OTLP exports.
	// Default: 10s
	Timeout time.Duration `yaml:"timeout"`
}

// HealthConfig contains health check endpoint configuration.
type HealthConfig struct {
	// LivenessPath is the path for the liveness probe endpoint.
	// Default: "/health"
	LivenessPath string `yaml:"liveness_path"`

	// ReadinessPath is the path for the readiness probe endpoint.
	// Default: "/ready"
	ReadinessPath string `yaml:"readiness_path"`

	// VersionPath is the path for the version information endpoint.
	// Default: "/version"
	VersionPath string `yaml:"version_path"`

	// CheckTimeout is the timeout for individual health checks.
	// Default: 5s
	CheckTimeout time.Duration `yaml:"check_timeout"`
}
