// Package metrics exposes Warden client activity as Prometheus metrics.
//
// A Collector registers its metrics on a private registry and implements
// warden.Metrics, so it can be passed straight to the client:
//
//	collector := metrics.NewCollector(&cfg.Telemetry.Metrics)
//	client, _ := warden.New(remote, wcfg, warden.WithMetrics(collector))
//	mux.Handle("/metrics", collector.Handler())
//
// # Metrics
//
//   - warden_client_usage_updates_total{policy_id}
//   - warden_client_suspensions_enforced_total{policy_id}
//   - warden_client_policies_reconciled_total{action}
//   - warden_client_state{state}
//   - warden_client_cache_entries{cache}
//   - warden_client_events_total{transport,result}
//   - warden_client_sync_tasks_total{task,result}
//   - warden_client_sync_task_duration_seconds{task}
//   - warden_client_sync_task_panics_total{task}
//   - warden_client_usage_pushes_total{result}
//   - warden_client_suspensions_pulled_total
//   - warden_client_http_requests_total{method,code}
//   - warden_client_http_request_duration_seconds{method}
package metrics
