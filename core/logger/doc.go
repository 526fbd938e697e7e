// Package logger provides a structured logging facility based on Zap.
//
// It builds a configured logger for development (console, colored levels) or
// production (JSON) use, and integrates with the Fiber web framework.
//
// # Correlation
//
// Two helpers attach correlation ids to a logger:
//   - WithRunID tags every line of a merge run with its run_id.
//   - WithRayID extracts the RayID of an HTTP request from a Fiber context.
//
// # Configuration
//
// The package supports configuration for:
//   - Level: debug, info, warn, error
//   - Format: console or json
//
// # Usage
//
//	log, _ := logger.New(&logger.Config{Level: "info"})
//	log = logger.WithRunID(log, runID)
//	log.Info("Starting merge")
package logger
