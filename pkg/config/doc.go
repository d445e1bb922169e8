// Package config provides configuration management for the Warden client.
//
// Configuration is loaded from a YAML file, completed with defaults,
// overridden from the environment and validated:
//
//	cfg, err := config.LoadConfigWithEnvOverrides("warden.yaml")
//
// # Environment Variable Overrides
//
// Environment variables follow the naming convention WARDEN_SECTION_FIELD.
// For example:
//
//   - WARDEN_WARDEN_ENDPOINT overrides warden.endpoint
//   - WARDEN_WARDEN_PASSWORD overrides warden.password
//   - WARDEN_LISTENER_ADDRESS overrides listener.address
//   - WARDEN_TELEMETRY_LOGGING_LEVEL overrides telemetry.logging.level
//
// # Configuration Precedence
//
//  1. Default values (defined in defaults.go)
//  2. Values from YAML file
//  3. Environment variable overrides
//  4. Validation (fails fast if invalid)
//
// # Example Configuration
//
//	warden:
//	  endpoint: "https://warden.example.com/warden-web/v1"
//	  username: "svc-orders"
//	  # password comes from WARDEN_WARDEN_PASSWORD
//
//	listener:
//	  address: "0.0.0.0:7070"
//
//	policies:
//	  file: "./policies.yaml"
//	  watch: true
//
//	proxy:
//	  listen_address: "127.0.0.1:8080"
//	  upstream: "http://127.0.0.1:9000"
//
// Validation errors include field paths:
//
//	configuration validation failed with 2 errors:
//	  - warden.endpoint: endpoint is required
//	  - sync.push_interval: push interval must be positive
package config
