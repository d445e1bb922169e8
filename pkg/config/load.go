package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "WARDEN_"

// LoadConfig loads configuration from a YAML file at the specified path.
// It applies default values, validates the configuration, and returns any errors.
// Environment variables are not consulted; use LoadConfigWithEnvOverrides
// for that.
func LoadConfig(path string) (*Config, error) {
	cfg, err := parseFile(path)
	if err != nil {
		return nil, err
	}

	ApplyDefaults(cfg)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// LoadConfigWithEnvOverrides loads configuration from a YAML file and applies
// environment variable overrides. Environment variables follow the naming
// convention WARDEN_SECTION_FIELD (e.g., WARDEN_PROXY_LISTEN_ADDRESS) and
// always take precedence over the file.
//
// The loading sequence is:
// 1. Load YAML from file
// 2. Apply default values
// 3. Apply environment variable overrides
// 4. Validate final configuration
//
// Secrets such as the password may therefore be left out of the file.
func LoadConfigWithEnvOverrides(path string) (*Config, error) {
	cfg, err := parseFile(path)
	if err != nil {
		return nil, err
	}

	ApplyDefaults(cfg)
	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

func parseFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration file %q: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse configuration file %q: %w", path, err)
	}
	return &cfg, nil
}

// envOverrides collects parse failures so a mistyped variable is reported
// instead of silently ignored.
type envOverrides struct {
	errs []FieldError
}

func (o *envOverrides) str(name string, dst *string) {
	if val, ok := os.LookupEnv(EnvPrefix + name); ok && val != "" {
		*dst = val
	}
}

func (o *envOverrides) duration(name string, dst *time.Duration) {
	val, ok := os.LookupEnv(EnvPrefix + name)
	if !ok || val == "" {
		return
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		o.fail(name, err)
		return
	}
	*dst = d
}

func (o *envOverrides) integer(name string, dst *int) {
	val, ok := os.LookupEnv(EnvPrefix + name)
	if !ok || val == "" {
		return
	}
	i, err := strconv.Atoi(val)
	if err != nil {
		o.fail(name, err)
		return
	}
	*dst = i
}

func (o *envOverrides) boolean(name string, dst *bool) {
	val, ok := os.LookupEnv(EnvPrefix + name)
	if !ok || val == "" {
		return
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		o.fail(name, err)
		return
	}
	*dst = b
}

func (o *envOverrides) float(name string, dst *float64) {
	val, ok := os.LookupEnv(EnvPrefix + name)
	if !ok || val == "" {
		return
	}
	f, err := strconv.ParseFloat(val, 64)
	if err != nil {
		o.fail(name, err)
		return
	}
	*dst = f
}

func (o *envOverrides) fail(name string, err error) {
	o.errs = append(o.errs, FieldError{
		Field:   EnvPrefix + name,
		Message: fmt.Sprintf("invalid value: %v", err),
	})
}

// applyEnvOverrides applies environment variable overrides to the configuration.
func applyEnvOverrides(cfg *Config) error {
	var o envOverrides

	// Warden overrides
	o.str("WARDEN_ENDPOINT", &cfg.Warden.Endpoint)
	o.str("WARDEN_USERNAME", &cfg.Warden.Username)
	o.str("WARDEN_PASSWORD", &cfg.Warden.Password)
	o.duration("WARDEN_TIMEOUT", &cfg.Warden.Timeout)
	o.integer("WARDEN_MAX_RETRIES", &cfg.Warden.MaxRetries)

	// Listener overrides
	o.str("LISTENER_NETWORK", &cfg.Listener.Network)
	o.str("LISTENER_ADDRESS", &cfg.Listener.Address)
	o.str("LISTENER_ADVERTISE_HOST", &cfg.Listener.AdvertiseHost)

	// Sync overrides
	o.duration("SYNC_PUSH_INITIAL_DELAY", &cfg.Sync.PushInitialDelay)
	o.duration("SYNC_PUSH_INTERVAL", &cfg.Sync.PushInterval)
	o.duration("SYNC_PULL_INITIAL_DELAY", &cfg.Sync.PullInitialDelay)
	o.duration("SYNC_PULL_INTERVAL", &cfg.Sync.PullInterval)
	o.duration("SYNC_STOP_TIMEOUT", &cfg.Sync.StopTimeout)

	// Storage overrides
	o.str("STORAGE_BACKEND", &cfg.Storage.Backend)
	o.str("STORAGE_SQLITE_PATH", &cfg.Storage.SQLite.Path)
	o.str("STORAGE_CHECKPOINT_SCHEDULE", &cfg.Storage.CheckpointSchedule)

	// Policies overrides
	o.str("POLICIES_FILE", &cfg.Policies.File)
	o.boolean("POLICIES_WATCH", &cfg.Policies.Watch)

	// Proxy overrides
	o.str("PROXY_LISTEN_ADDRESS", &cfg.Proxy.ListenAddress)
	o.str("PROXY_UPSTREAM", &cfg.Proxy.Upstream)
	o.str("PROXY_USER_HEADER", &cfg.Proxy.UserHeader)
	o.duration("PROXY_READ_TIMEOUT", &cfg.Proxy.ReadTimeout)
	o.duration("PROXY_WRITE_TIMEOUT", &cfg.Proxy.WriteTimeout)
	o.integer("PROXY_MAX_HEADER_BYTES", &cfg.Proxy.MaxHeaderBytes)

	// Telemetry overrides
	o.str("TELEMETRY_LOGGING_LEVEL", &cfg.Telemetry.Logging.Level)
	o.str("TELEMETRY_LOGGING_FORMAT", &cfg.Telemetry.Logging.Format)
	o.boolean("TELEMETRY_METRICS_ENABLED", &cfg.Telemetry.Metrics.Enabled)
	o.str("TELEMETRY_METRICS_PATH", &cfg.Telemetry.Metrics.Path)
	o.boolean("TELEMETRY_TRACING_ENABLED", &cfg.Telemetry.Tracing.Enabled)
	o.str("TELEMETRY_TRACING_ENDPOINT", &cfg.Telemetry.Tracing.Endpoint)
	o.float("TELEMETRY_TRACING_SAMPLE_RATIO", &cfg.Telemetry.Tracing.SampleRatio)

	if len(o.errs) > 0 {
		return ValidationError{Errors: o.errs}
	}
	return nil
}
