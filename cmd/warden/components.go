package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"go.opentelemetry.io/otel/trace"

	"mercator-hq/warden/pkg/cli"
	"mercator-hq/warden/pkg/config"
	"mercator-hq/warden/pkg/telemetry/logging"
	"mercator-hq/warden/pkg/warden"
	"mercator-hq/warden/pkg/warden/events"
	"mercator-hq/warden/pkg/warden/policyfile"
	"mercator-hq/warden/pkg/warden/remote"
	"mercator-hq/warden/pkg/warden/storage"
)

// logOutput is where command loggers write.
var logOutput io.Writer = os.Stderr

// loadConfig loads --config with environment overrides and publishes it as
// the process-wide configuration.
func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadConfigWithEnvOverrides(cfgFile)
	if err != nil {
		return nil, cli.NewConfigError("", err)
	}
	if verbose {
		cfg.Telemetry.Logging.Level = "debug"
	}
	config.SetConfig(cfg)
	return cfg, nil
}

func newLogger(cfg *config.Config) (*slog.Logger, error) {
	logCfg := logging.FromConfig(cfg.Telemetry.Logging)
	logCfg.Writer = logOutput
	logger, err := logging.New(logCfg)
	if err != nil {
		return nil, cli.NewConfigError("telemetry.logging", err)
	}
	return logger, nil
}

func loadPolicies(cfg *config.Config) (*policyfile.File, error) {
	f, err := policyfile.Load(cfg.Policies.File)
	if err != nil {
		return nil, cli.NewConfigError("policies.file", err)
	}
	return f, nil
}

func newRemote(cfg *config.WardenConfig, logger *slog.Logger, tp trace.TracerProvider) (*remote.Client, error) {
	return remote.New(remote.Config{
		Endpoint:        cfg.Endpoint,
		Timeout:         cfg.Timeout,
		MaxIdleConns:    cfg.MaxIdleConns,
		IdleConnTimeout: cfg.IdleConnTimeout,
		MaxRetries:      cfg.MaxRetries,
		InitialBackoff:  cfg.InitialBackoff,
		MaxBackoff:      cfg.MaxBackoff,
		Logger:          logger.With("component", "remote"),
		TracerProvider:  tp,
	})
}

// newBackend returns nil for the "none" backend.
func newBackend(cfg *config.StorageConfig) (storage.Backend, error) {
	switch cfg.Backend {
	case "", "none":
		return nil, nil
	case "memory":
		return storage.NewMemoryBackend(), nil
	case "sqlite":
		backend, err := storage.NewSQLiteBackend(storage.SQLiteConfig{
			Path:        cfg.SQLite.Path,
			BusyTimeout: cfg.SQLite.BusyTimeout,
		})
		if err != nil {
			return nil, err
		}
		return backend, nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}

func clientConfig(cfg *config.Config) warden.Config {
	return warden.Config{
		Username: cfg.Warden.Username,
		Password: cfg.Warden.Password,
		Listener: events.Config{
			Network:        cfg.Listener.Network,
			Address:        cfg.Listener.Address,
			MaxMessageSize: cfg.Listener.MaxMessageSize,
			IdleTimeout:    cfg.Listener.IdleTimeout,
		},
		AdvertiseHost:      cfg.Listener.AdvertiseHost,
		PushInitialDelay:   cfg.Sync.PushInitialDelay,
		PushInterval:       cfg.Sync.PushInterval,
		PullInitialDelay:   cfg.Sync.PullInitialDelay,
		PullInterval:       cfg.Sync.PullInterval,
		StopTimeout:        cfg.Sync.StopTimeout,
		JanitorInterval:    cfg.Sync.JanitorInterval,
		CheckpointSchedule: cfg.Storage.CheckpointSchedule,
	}
}
