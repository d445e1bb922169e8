// Package health serves liveness, readiness and version endpoints.
//
// Liveness only reports that the process is serving HTTP. Readiness runs
// every registered check concurrently, each bounded by the checker timeout,
// and answers 503 when any check fails. The Warden client contributes its
// registration and sync checks through Client.HealthChecks:
//
//	checker := health.New(cfg.Telemetry.Health.CheckTimeout)
//	checker.RegisterChecks(client.HealthChecks())
//	checker.Mount(mux, cfg.Telemetry.Health, health.BuildInfo{Version: version})
package health
