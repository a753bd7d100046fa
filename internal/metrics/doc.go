// Package metrics provides Prometheus instrumentation for the media converter.
//
// All metrics are registered with promauto at package init and carry the
// "media_converter_" prefix. Call InitializeMetrics once at startup so that
// every labelled series is exported from the first scrape.
//
// # Metric Categories
//
//   - HTTP: request totals, durations and in-flight requests for the admin API
//   - Database: query totals and durations by operation
//   - Conversion: attempts by source format and outcome, per-phase durations,
//     bytes saved, resizes and original-removal failures
//   - Naming: allocations, collisions and counter store failures
//   - Batch: pages, items by outcome, run durations and sweep state
//   - Audit log: append outcomes and file size
//   - Library: attachments by MIME type, refreshed by Collector
//   - Filesystem: NFS stale handle retries, fed through NewFilesystemObserver
//   - Memory: heap usage ratio, sweep pause state and GOMEMLIMIT
//   - Events: publish outcomes
//
// The metrics endpoint is served on its own port (METRICS_PORT, default
// 9090) so it can stay off the public listener.
package metrics
