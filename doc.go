// Package main provides the entry point for the Media Converter server.
//
// Media Converter turns the images of a media library into WebP, bounds their
// dimensions, renames them with a rolling three-digit counter and keeps the
// library database pointing at the new files.
//
// # Application Lifecycle
//
//  1. Memory Configuration: Sets GOMEMLIMIT from environment or cgroup limits
//  2. Configuration Loading: .env file, environment, optional YAML settings
//  3. Database Initialization: Opens the SQLite library database
//  4. Component Initialization:
//     - Conversion log
//     - Codec (libvips, falling back to the pure Go codec); startup fails if
//     WebP can not be written
//     - Name counter (sqlite, redis or memory)
//     - Optional NATS publisher for conversion events
//     - Conversion pipeline and batch driver
//     - Memory monitor pausing sweeps under pressure
//     - Metrics collector
//     - Optional cron schedule for full sweeps
//     - Optional upload watcher
//  5. HTTP Server Setup: admin API behind bearer authentication
//  6. Graceful Shutdown: Handles SIGINT/SIGTERM, stops all components cleanly
//
// # HTTP Server
//
//  1. Main Server (default port 8080):
//     - POST /api/batch, POST /api/sweep, POST /api/convert
//     - GET and DELETE /api/log
//     - GET and PUT /api/counter
//     - GET /api/version
//     - /health, /healthz, /livez, /readyz (no authentication)
//
//  2. Metrics Server (default port 9090, optional):
//     - Prometheus metrics endpoint (/metrics)
//
// See package startup for the full list of environment variables.
package main
