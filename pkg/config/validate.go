package config

import (
	"fmt"
	"net"
	"net/url"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// FieldError represents a validation error for a specific configuration field.
type FieldError struct {
	// Field is the dotted path to the configuration field (e.g., "proxy.listen_address").
	Field string

	// Message is a human-readable error message.
	Message string
}

// Error returns the error message for this field error.
func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationError represents one or more validation errors in a configuration.
type ValidationError struct {
	// Errors contains all validation errors found in the configuration.
	Errors []FieldError
}

// Error returns a formatted string containing all validation errors.
func (e ValidationError) Error() string {
	if len(e.Errors) == 0 {
		return "configuration validation failed"
	}
	if len(e.Errors) == 1 {
		return fmt.Sprintf("configuration validation failed: %s", e.Errors[0].Error())
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "configuration validation failed with %d errors:\n", len(e.Errors))
	for _, err := range e.Errors {
		fmt.Fprintf(&sb, "  - %s\n", err.Error())
	}
	return sb.String()
}

// HasField reports whether a field failed validation.
func (e ValidationError) HasField(field string) bool {
	for _, fe := range e.Errors {
		if fe.Field == field {
			return true
		}
	}
	return false
}

// Validate validates the entire configuration and returns a ValidationError
// if any validation rules fail. All validation errors are collected and
// returned together.
func Validate(cfg *Config) error {
	var errs []FieldError

	errs = append(errs, validateWarden(&cfg.Warden)...)
	errs = append(errs, validateListener(&cfg.Listener)...)
	errs = append(errs, validateSync(&cfg.Sync)...)
	errs = append(errs, validateStorage(&cfg.Storage)...)
	errs = append(errs, validatePolicies(&cfg.Policies)...)
	errs = append(errs, validateProxy(&cfg.Proxy)...)
	errs = append(errs, validateTelemetry(&cfg.Telemetry)...)

	if len(errs) > 0 {
		return ValidationError{Errors: errs}
	}
	return nil
}

func validateWarden(cfg *WardenConfig) []FieldError {
	var errs []FieldError

	if cfg.Endpoint == "" {
		errs = append(errs, FieldError{Field: "warden.endpoint", Message: "endpoint is required"})
	} else if u, err := url.Parse(cfg.Endpoint); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		errs = append(errs, FieldError{
			Field:   "warden.endpoint",
			Message: fmt.Sprintf("invalid endpoint %q: must be an absolute http or https URL", cfg.Endpoint),
		})
	}
	if cfg.Username == "" {
		errs = append(errs, FieldError{Field: "warden.username", Message: "username is required"})
	}
	if cfg.Timeout < 0 {
		errs = append(errs, FieldError{Field: "warden.timeout", Message: "timeout must be positive"})
	}
	if cfg.MaxIdleConns < 0 {
		errs = append(errs, FieldError{Field: "warden.max_idle_conns", Message: "max idle conns must be non-negative"})
	}
	if cfg.InitialBackoff < 0 || cfg.MaxBackoff < 0 {
		errs = append(errs, FieldError{Field: "warden.initial_backoff", Message: "backoff must be positive"})
	} else if cfg.MaxBackoff > 0 && cfg.InitialBackoff > cfg.MaxBackoff {
		errs = append(errs, FieldError{
			Field:   "warden.max_backoff",
			Message: "max backoff must not be smaller than initial backoff",
		})
	}

	return errs
}

func validateListener(cfg *ListenerConfig) []FieldError {
	var errs []FieldError

	if cfg.Network != "tcp" && cfg.Network != "udp" {
		errs = append(errs, FieldError{
			Field:   "listener.network",
			Message: fmt.Sprintf("invalid network %q: must be 'tcp' or 'udp'", cfg.Network),
		})
	}
	if cfg.Address != "" {
		if _, _, err := net.SplitHostPort(cfg.Address); err != nil {
			errs = append(errs, FieldError{
				Field:   "listener.address",
				Message: fmt.Sprintf("invalid address %q: %v", cfg.Address, err),
			})
		}
	}
	if cfg.MaxMessageSize < 0 || cfg.MaxMessageSize > 64*1024 {
		errs = append(errs, FieldError{
			Field:   "listener.max_message_size",
			Message: "max message size must be between 0 and 65536",
		})
	}

	return errs
}

func validateSync(cfg *SyncConfig) []FieldError {
	var errs []FieldError

	positive := []struct {
		field string
		value time.Duration
	}{
		{"sync.push_initial_delay", cfg.PushInitialDelay},
		{"sync.push_interval", cfg.PushInterval},
		{"sync.pull_initial_delay", cfg.PullInitialDelay},
		{"sync.pull_interval", cfg.PullInterval},
		{"sync.stop_timeout", cfg.StopTimeout},
	}
	for _, p := range positive {
		if p.value <= 0 {
			name := strings.ReplaceAll(strings.TrimPrefix(p.field, "sync."), "_", " ")
			errs = append(errs, FieldError{Field: p.field, Message: name + " must be positive"})
		}
	}

	return errs
}

func validateStorage(cfg *StorageConfig) []FieldError {
	var errs []FieldError

	switch cfg.Backend {
	case "none", "memory":
	case "sqlite":
		if cfg.SQLite.Path == "" {
			errs = append(errs, FieldError{
				Field:   "storage.sqlite.path",
				Message: "sqlite path is required when backend is 'sqlite'",
			})
		}
	default:
		errs = append(errs, FieldError{
			Field:   "storage.backend",
			Message: fmt.Sprintf("invalid backend %q: must be 'none', 'memory' or 'sqlite'", cfg.Backend),
		})
	}

	if cfg.CheckpointSchedule != "" {
		if _, err := cron.ParseStandard(cfg.CheckpointSchedule); err != nil {
			errs = append(errs, FieldError{
				Field:   "storage.checkpoint_schedule",
				Message: fmt.Sprintf("invalid cron expression: %v", err),
			})
		}
	}

	return errs
}

func validatePolicies(cfg *PoliciesConfig) []FieldError {
	var errs []FieldError

	if cfg.File == "" {
		errs = append(errs, FieldError{Field: "policies.file", Message: "policy file is required"})
	}
	if cfg.Debounce < 0 {
		errs = append(errs, FieldError{Field: "policies.debounce", Message: "debounce must be positive"})
	}

	return errs
}

func validateProxy(cfg *ProxyConfig) []FieldError {
	var errs []FieldError

	if cfg.ListenAddress == "" {
		errs = append(errs, FieldError{
			Field:   "proxy.listen_address",
			Message: "listen address is required",
		})
	}
	if cfg.Upstream != "" {
		if u, err := url.Parse(cfg.Upstream); err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, FieldError{
				Field:   "proxy.upstream",
				Message: fmt.Sprintf("invalid upstream URL %q", cfg.Upstream),
			})
		}
	}
	if cfg.ReadTimeout < 0 {
		errs = append(errs, FieldError{Field: "proxy.read_timeout", Message: "read timeout must be positive"})
	}
	if cfg.WriteTimeout < 0 {
		errs = append(errs, FieldError{Field: "proxy.write_timeout", Message: "write timeout must be positive"})
	}
	if cfg.IdleTimeout < 0 {
		errs = append(errs, FieldError{Field: "proxy.idle_timeout", Message: "idle timeout must be positive"})
	}
	if cfg.MaxHeaderBytes < 0 {
		errs = append(errs, FieldError{
			Field:   "proxy.max_header_bytes",
			Message: "max header bytes must be non-negative",
		})
	}
	if cfg.MaxHeaderBytes > 10*1024*1024 { // 10MB is excessive
		errs = append(errs, FieldError{
			Field:   "proxy.max_header_bytes",
			Message: "max header bytes exceeds reasonable limit (10MB)",
		})
	}

	return errs
}

func validateTelemetry(cfg *TelemetryConfig) []FieldError {
	var errs []FieldError

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[cfg.Logging.Level] {
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.level",
			Message: fmt.Sprintf("invalid logging level %q: must be 'debug', 'info', 'warn', or 'error'", cfg.Logging.Level),
		})
	}

	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[cfg.Logging.Format] {
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.format",
			Message: fmt.Sprintf("invalid logging format %q: must be 'json' or 'text'", cfg.Logging.Format),
		})
	}

	if cfg.Metrics.Enabled && !strings.HasPrefix(cfg.Metrics.Path, "/") {
		errs = append(errs, FieldError{
			Field:   "telemetry.metrics.path",
			Message: "metrics path must start with /",
		})
	}

	if cfg.Tracing.Enabled && cfg.Tracing.Endpoint == "" {
		errs = append(errs, FieldError{
			Field:   "telemetry.tracing.endpoint",
			Message: "tracing endpoint is required when tracing is enabled",
		})
	}
	switch cfg.Tracing.Sampler {
	case "always", "never", "ratio":
	default:
		errs = append(errs, FieldError{
			Field:   "telemetry.tracing.sampler",
			Message: fmt.Sprintf("invalid sampler %q: must be 'always', 'never' or 'ratio'", cfg.Tracing.Sampler),
		})
	}
	if cfg.Tracing.SampleRatio < 0 || cfg.Tracing.SampleRatio > 1.0 {
		errs = append(errs, FieldError{
			Field:   "telemetry.tracing.sample_ratio",
			Message: "sample ratio must be between 0.0 and 1.0",
		})
	}

	paths := []struct{ field, path string }{
		{"telemetry.health.liveness_path", cfg.Health.LivenessPath},
		{"telemetry.health.readiness_path", cfg.Health.ReadinessPath},
		{"telemetry.health.version_path", cfg.Health.VersionPath},
	}
	for _, p := range paths {
		if !strings.HasPrefix(p.path, "/") {
			errs = append(errs, FieldError{Field: p.field, Message: "path must start with /"})
		}
	}
	if cfg.Health.CheckTimeout < 0 || cfg.Health.CheckTimeout > 60*time.Second {
		errs = append(errs, FieldError{
			Field:   "telemetry.health.check_timeout",
			Message: "check timeout must be between 0 and 60s",
		})
	}

	return errs
}
