// Package handlers provides the HTTP handlers of the admin API.
//
// It includes handlers for:
//   - Paged batch runs and full sweeps over the media library
//   - Single file conversion
//   - Reading and clearing the conversion log
//   - Reading and setting the name counter
//   - Health, liveness, readiness and version
package handlers
