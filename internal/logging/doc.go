// Package logging provides a simple leveled logging interface for the
// media converter.
//
// It supports the following log levels:
//   - DEBUG: Verbose debugging information
//   - INFO: General operational messages
//   - WARN: Warning conditions
//   - ERROR: Error conditions
//   - FATAL: Fatal errors that terminate the application
//
// The level is read from DEBUG or LOG_LEVEL on first use and can be
// overridden with SetLevel.
//
// This is the operational log. The per-conversion audit trail that operators
// read and clear lives in package auditlog.
package logging
