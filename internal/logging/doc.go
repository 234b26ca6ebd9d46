// Package logging provides structured logging for the lanchat server.
//
// This package wraps zap logger with convenience functions for common logging
// patterns used throughout the server. It provides both general logging
// functions and specialized helpers for connection and frame events.
//
// # Log Levels
//
// The package supports standard log levels:
//   - Debug: Detailed debugging info (frame parsing, broadcast fan-out)
//   - Info: Normal operations (connections, rooms, state changes)
//   - Warn: Non-fatal issues (dropped sends, protocol violations)
//   - Error: Fatal issues (startup failures, critical errors)
//
// # Structured Logging
//
// All log functions use structured fields for queryability:
//
//	logging.Info("Peer connected",
//	    zap.String("remote_addr", "192.168.1.100"),
//	    zap.String("session_id", "P_x81kq2"),
//	)
//
// # Configuration
//
// Initialize logging at server startup:
//
//	if err := logging.Initialize("debug"); err != nil {
//	    log.Fatal(err)
//	}
//	defer logging.Sync()
//
// When no level is given and LANCHAT_LOG_LEVEL is unset, the logger is a
// nop: CLI commands stay silent by default.
//
// # Thread Safety
//
// All logging functions are safe for concurrent use. The underlying zap
// logger handles synchronization automatically.
package logging
