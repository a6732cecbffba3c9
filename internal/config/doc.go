// Package config provides 12-factor configuration management for the relay.
//
// Configuration is loaded from environment variables with defaults that
// reproduce the relay's documented behavior, so an empty environment is
// always a valid one. Nothing is persisted between runs.
//
// Configuration Sections:
//   - Relay: readiness timeout and buffer sizing policy
//   - Spawn: worker stages as child processes or in-process goroutines
//   - Logging: Log level and output format
//   - Metrics: optional live metrics endpoint and JSON run report
//
// Example Usage:
//
//	cfg := config.LoadOrDefault()
//	fmt.Printf("timeout %s, max buffer %d\n", cfg.Relay.Timeout, cfg.Relay.MaxBuffer)
//
// Environment Variables:
//   - RELAY_TIMEOUT, RELAY_MAX_BUFFER, RELAY_MIN_BUFFER
//   - RELAY_SIZING_BASE, RELAY_SIZING_OFFSET, RELAY_SPAWN
//   - LOG_LEVEL, LOG_DEV
//   - RELAY_METRICS_ADDR, RELAY_METRICS_RATE, RELAY_METRICS_BURST, RELAY_REPORT
package config
