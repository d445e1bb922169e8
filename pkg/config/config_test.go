package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const minimalYAML = `
warden:
  endpoint: "http://warden.local:8080/warden-web/v1"
  username: "svc"
  password: "secret"
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "warden.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}
	return path
}

func TestApplyDefaults(t *testing.T) {
	var cfg Config
	ApplyDefaults(&cfg)

	if cfg.Sync.PushInitialDelay != 30*time.Second || cfg.Sync.PushInterval != 60*time.Second {
		t.Errorf("push schedule = %v/%v", cfg.Sync.PushInitialDelay, cfg.Sync.PushInterval)
	}
	if cfg.Sync.StopTimeout != 10*time.Second {
		t.Errorf("stop timeout = %v", cfg.Sync.StopTimeout)
	}
	if cfg.Listener.Network != "tcp" || cfg.Listener.Address != "" {
		t.Errorf("listener = %+v", cfg.Listener)
	}
	if cfg.Storage.Backend != "none" {
		t.Errorf("storage backend = %q", cfg.Storage.Backend)
	}
	if cfg.Proxy.UserHeader != "X-Warden-User" {
		t.Errorf("user header = %q", cfg.Proxy.UserHeader)
	}
	if cfg.Telemetry.Logging.Level != "info" || cfg.Telemetry.Logging.Format != "json" {
		t.Errorf("logging = %+v", cfg.Telemetry.Logging)
	}
	if cfg.Warden.MaxRetries != 3 {
		t.Errorf("max retries = %d", cfg.Warden.MaxRetries)
	}

	// Idempotent, and explicit values survive.
	cfg.Sync.PushInterval = time.Second
	ApplyDefaults(&cfg)
	if cfg.Sync.PushInterval != time.Second {
		t.Error("ApplyDefaults overwrote an explicit value")
	}
}

func TestLoadConfig(t *testing.T) {
	path := writeConfig(t, minimalYAML+`
listener:
  network: udp
  address: "0.0.0.0:7070"
sync:
  push_interval: 15s
storage:
  backend: sqlite
  checkpoint_schedule: "*/5 * * * *"
`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Warden.Username != "svc" {
		t.Errorf("username = %q", cfg.Warden.Username)
	}
	if cfg.Listener.Network != "udp" || cfg.Listener.Address != "0.0.0.0:7070" {
		t.Errorf("listener = %+v", cfg.Listener)
	}
	if cfg.Sync.PushInterval != 15*time.Second {
		t.Errorf("push interval = %v", cfg.Sync.PushInterval)
	}
	if cfg.Sync.PullInterval != DefaultSyncInterval {
		t.Errorf("pull interval = %v, want default", cfg.Sync.PullInterval)
	}
	if cfg.Storage.SQLite.Path != DefaultSQLitePath {
		t.Errorf("sqlite path = %q", cfg.Storage.SQLite.Path)
	}
}

func TestLoadConfig_Errors(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
	if _, err := LoadConfig(writeConfig(t, "warden: [")); err == nil {
		t.Error("expected error for malformed YAML")
	}

	_, err := LoadConfig(writeConfig(t, "warden:\n  endpoint: ftp://x\n"))
	var verr ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if !verr.HasField("warden.endpoint") || !verr.HasField("warden.username") {
		t.Errorf("errors = %v", verr.Errors)
	}
}

func TestLoadConfigWithEnvOverrides(t *testing.T) {
	path := writeConfig(t, `
warden:
  endpoint: "http://warden.local/v1"
  username: "svc"
`)
	t.Setenv("WARDEN_WARDEN_PASSWORD", "from-env")
	t.Setenv("WARDEN_LISTENER_ADDRESS", ":7070")
	t.Setenv("WARDEN_SYNC_PULL_INTERVAL", "5s")
	t.Setenv("WARDEN_POLICIES_WATCH", "true")
	t.Setenv("WARDEN_TELEMETRY_LOGGING_LEVEL", "debug")

	cfg, err := LoadConfigWithEnvOverrides(path)
	if err != nil {
		t.Fatalf("LoadConfigWithEnvOverrides failed: %v", err)
	}
	if cfg.Warden.Password != "from-env" {
		t.Errorf("password = %q", cfg.Warden.Password)
	}
	if cfg.Listener.Address != ":7070" {
		t.Errorf("listener address = %q", cfg.Listener.Address)
	}
	if cfg.Sync.PullInterval != 5*time.Second {
		t.Errorf("pull interval = %v", cfg.Sync.PullInterval)
	}
	if !cfg.Policies.Watch {
		t.Error("policies.watch not overridden")
	}
	if cfg.Telemetry.Logging.Level != "debug" {
		t.Errorf("logging level = %q", cfg.Telemetry.Logging.Level)
	}
}

func TestLoadConfigWithEnvOverrides_EnvSuppliesRequired(t *testing.T) {
	path := writeConfig(t, "proxy:\n  upstream: http://127.0.0.1:9000\n")
	t.Setenv("WARDEN_WARDEN_ENDPOINT", "https://warden.example.com")
	t.Setenv("WARDEN_WARDEN_USERNAME", "svc")

	if _, err := LoadConfigWithEnvOverrides(path); err != nil {
		t.Fatalf("env should satisfy required fields: %v", err)
	}
}

func TestLoadConfigWithEnvOverrides_InvalidValue(t *testing.T) {
	path := writeConfig(t, minimalYAML)
	t.Setenv("WARDEN_SYNC_PUSH_INTERVAL", "often")

	_, err := LoadConfigWithEnvOverrides(path)
	if err == nil || !strings.Contains(err.Error(), "WARDEN_SYNC_PUSH_INTERVAL") {
		t.Fatalf("expected error naming the variable, got %v", err)
	}
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		cfg := &Config{Warden: WardenConfig{Endpoint: "https://w.example.com", Username: "svc"}}
		ApplyDefaults(cfg)
		return cfg
	}

	if err := Validate(valid()); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"bad network", func(c *Config) { c.Listener.Network = "sctp" }, "listener.network"},
		{"bad listener address", func(c *Config) { c.Listener.Address = "7070" }, "listener.address"},
		{"zero interval", func(c *Config) { c.Sync.PullInterval = -time.Second }, "sync.pull_interval"},
		{"bad backend", func(c *Config) { c.Storage.Backend = "redis" }, "storage.backend"},
		{"bad cron", func(c *Config) { c.Storage.CheckpointSchedule = "every day" }, "storage.checkpoint_schedule"},
		{"bad upstream", func(c *Config) { c.Proxy.Upstream = "not a url" }, "proxy.upstream"},
		{"bad level", func(c *Config) { c.Telemetry.Logging.Level = "trace" }, "telemetry.logging.level"},
		{"tracing without endpoint", func(c *Config) { c.Telemetry.Tracing.Enabled = true }, "telemetry.tracing.endpoint"},
		{"bad ratio", func(c *Config) { c.Telemetry.Tracing.SampleRatio = 2 }, "telemetry.tracing.sample_ratio"},
		{"bad health path", func(c *Config) { c.Telemetry.Health.ReadinessPath = "ready" }, "telemetry.health.readiness_path"},
		{"backoff order", func(c *Config) { c.Warden.InitialBackoff = time.Minute }, "warden.max_backoff"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)

			var verr ValidationError
			if err := Validate(cfg); !errors.As(err, &verr) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
			if !verr.HasField(tt.field) {
				t.Errorf("missing error for %s in %v", tt.field, verr.Errors)
			}
		})
	}
}

func TestValidationErrorMessage(t *testing.T) {
	one := ValidationError{Errors: []FieldError{{Field: "a", Message: "bad"}}}
	if one.Error() != "configuration validation failed: a: bad" {
		t.Errorf("single error = %q", one.Error())
	}

	two := ValidationError{Errors: []FieldError{{Field: "a", Message: "bad"}, {Field: "b", Message: "worse"}}}
	if !strings.Contains(two.Error(), "with 2 errors") || !strings.Contains(two.Error(), "  - b: worse") {
		t.Errorf("multi error = %q", two.Error())
	}
}

func TestSingleton(t *testing.T) {
	SetConfig(nil)
	if GetConfig() != nil {
		t.Fatal("expected nil config")
	}

	func() {
		defer func() {
			if recover() == nil {
				t.Error("MustGetConfig should panic without config")
			}
		}()
		MustGetConfig()
	}()

	path := writeConfig(t, minimalYAML)
	if err := ReloadConfig(path); err != nil {
		t.Fatalf("ReloadConfig failed: %v", err)
	}
	if MustGetConfig().Warden.Username != "svc" {
		t.Error("ReloadConfig did not store the config")
	}

	if err := ReloadConfig(writeConfig(t, "warden: {}")); err == nil {
		t.Error("expected reload of invalid config to fail")
	}
	if GetConfig().Warden.Username != "svc" {
		t.Error("failed reload replaced the config")
	}
	SetConfig(nil)
}
