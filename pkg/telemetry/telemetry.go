package telemetry

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"mercator-hq/warden/pkg/config"
	"mercator-hq/warden/pkg/telemetry/health"
	"mercator-hq/warden/pkg/telemetry/logging"
	"mercator-hq/warden/pkg/telemetry/metrics"
	"mercator-hq/warden/pkg/telemetry/tracing"
)

// Telemetry bundles the logger, metrics, tracer and health checker.
type Telemetry struct {
	cfg     *config.TelemetryConfig
	info    health.BuildInfo
	logger  *slog.Logger
	metrics *metrics.Collector
	tracer  *tracing.Tracer
	health  *health.Checker
}

// New builds every component. Logs go to w.
func New(cfg *config.TelemetryConfig, w io.Writer, info health.BuildInfo) (*Telemetry, error) {
	logCfg := logging.FromConfig(cfg.Logging)
	logCfg.Writer = w
	logger, err := logging.New(logCfg)
	if err != nil {
		return nil, fmt.Errorf("logging: %w", err)
	}

	tracer, err := tracing.New(&cfg.Tracing, info.Version)
	if err != nil {
		return nil, fmt.Errorf("tracing: %w", err)
	}

	t := &Telemetry{
		cfg:    cfg,
		info:   info,
		logger: logger,
		tracer: tracer,
		health: health.New(cfg.Health.CheckTimeout),
	}
	if cfg.Metrics.Enabled {
		t.metrics = metrics.NewCollector(&cfg.Metrics)
	}
	return t, nil
}

// Logger returns the root logger.
func (t *Telemetry) Logger() *slog.Logger { return t.logger }

// Metrics returns the collector, or nil when metrics are disabled.
func (t *Telemetry) Metrics() *metrics.Collector { return t.metrics }

// Tracer returns the tracer. It is never nil.
func (t *Telemetry) Tracer() *tracing.Tracer { return t.tracer }

// Health returns the health checker.
func (t *Telemetry) Health() *health.Checker { return t.health }

// Mount registers the health endpoints and, when enabled, the metrics
// endpoint on mux.
func (t *Telemetry) Mount(mux *http.ServeMux) {
	t.health.Mount(mux, t.cfg.Health, t.info)
	if t.metrics != nil {
		mux.Handle(t.cfg.Metrics.Path, t.metrics.Handler())
	}
}

// Shutdown flushes pending spans.
func (t *Telemetry) Shutdown(ctx context.Context) error {
	return t.tracer.Shutdown(ctx)
}
