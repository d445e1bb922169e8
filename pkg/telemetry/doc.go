// Package telemetry assembles the observability stack of the Warden client
// from configuration.
//
// # Components
//
//   - logging: slog loggers with credential redaction and context fields
//   - metrics: Prometheus collector implementing warden.Metrics
//   - tracing: OpenTelemetry tracer exporting over OTLP gRPC
//   - health: liveness, readiness and version endpoints
//
// # Usage
//
//	tel, err := telemetry.New(&cfg.Telemetry, os.Stderr, health.BuildInfo{Version: version})
//	if err != nil {
//	    return err
//	}
//	defer tel.Shutdown(context.Background())
//
//	client, err := warden.New(remote, wcfg,
//	    warden.WithLogger(tel.Logger()),
//	    warden.WithMetrics(tel.Metrics()),
//	)
//	tel.Health().RegisterChecks(client.HealthChecks())
//	tel.Mount(mux)
package telemetry
