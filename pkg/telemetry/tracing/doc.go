// Package tracing provides OpenTelemetry tracing for the Warden client.
//
// When enabled, spans are exported over OTLP gRPC and sampled with a
// parent-based sampler. When disabled, New returns a tracer backed by the
// noop provider, so callers never need to branch on configuration.
//
// Spans come from two places: the remote client creates one span per
// authority call (pass TracerProvider to remote.Config), and Middleware
// creates a server span per proxied request after extracting W3C trace
// context from the incoming headers.
//
//	tracer, err := tracing.New(&cfg.Telemetry.Tracing, version)
//	if err != nil {
//	    return err
//	}
//	defer tracer.Shutdown(context.Background())
//
// # Sampling
//
//	telemetry:
//	  tracing:
//	    enabled: true
//	    sampler: ratio      # always, never or ratio
//	    sample_ratio: 0.1
//	    endpoint: localhost:4317
package tracing
