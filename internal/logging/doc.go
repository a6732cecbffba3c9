// Package logging provides structured logging using uber/zap.
//
// Two modes are offered:
//   - Production: JSON output for machine parsing
//   - Development: Colored console output for human readability
//
// All output is written to stderr. The relay's stdout is reserved for the
// relayed byte stream and must never carry diagnostics.
//
// Example Usage:
//
//	logger := logging.NewDefault()
//	logger.Info("Relay starting", zap.Int("stages", 3))
//	logger.Error("Relay aborted", zap.Error(err))
package logging
