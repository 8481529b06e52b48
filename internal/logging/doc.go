// Package logging provides structured logging for the Bluetooth test harness.
//
// This package wraps a global zap logger with convenience functions for the
// logging patterns used throughout the harness. Logging is silent unless a
// level is passed explicitly or set through BTTEST_LOG_LEVEL, so the
// interactive UI is never interleaved with log output by accident.
//
// # Log Levels
//
//   - Debug: stale async settlements, unimplemented UI actions, device rows
//   - Info: mode switches, monitor lifecycle, adapter state changes
//   - Warn: rejected hardware operations (scan, enable, GATT connect)
//   - Error: startup failures, recovered handler panics
//
// # Hardware Logging
//
// Rejected hardware operations are never fatal. They are recorded with the
// operation name, the remote address when there is one, and the reason:
//
//	logging.LogHardwareRejection("gatt-connect", "AA:BB:CC:DD:EE:FF", err)
//
// # Configuration
//
// The interactive harness writes logs to a file because it owns the terminal:
//
//	if err := logging.InitializeWithOutput("debug", "/tmp/bttest.log"); err != nil {
//	    return err
//	}
//	defer logging.Sync()
//
// # Thread Safety
//
// All logging functions are safe for concurrent use. SetLogger is not, and is
// meant for test setup only.
package logging
