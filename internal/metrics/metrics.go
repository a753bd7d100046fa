package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP metrics
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_converter_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "media_converter_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_converter_http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		},
	)
)

// Database metrics
var (
	DBQueryTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_converter_db_queries_total",
			Help: "Total number of database queries",
		},
		[]string{"operation", "status"},
	)

	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "media_converter_db_query_duration_seconds",
			Help:    "Database query duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"operation"},
	)

	DBConnectionsOpen = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_converter_db_connections_open",
			Help: "Number of open database connections",
		},
	)
)

// Conversion metrics
var (
	ConversionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_converter_conversions_total",
			Help: "Total number of conversion attempts by source format and outcome",
		},
		[]string{"format", "outcome"},
	)

	ConversionPhaseDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "media_converter_conversion_phase_duration_seconds",
			Help:    "Duration of each conversion phase in seconds",
			Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"phase"}, // "decode", "resize", "encode"
	)

	ConversionBytesSaved = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "media_converter_bytes_saved_total",
			Help: "Bytes saved by conversions (original size minus output size, never negative)",
		},
	)

	ImagesResized = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "media_converter_images_resized_total",
			Help: "Number of images downscaled to fit the maximum dimension",
		},
	)

	OriginalDeleteErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "media_converter_original_delete_errors_total",
			Help: "Number of originals that could not be removed after conversion",
		},
	)

	VideosRenamed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_converter_videos_renamed_total",
			Help: "Number of uploaded videos renamed",
		},
		[]string{"status"},
	)

	UploadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_converter_uploads_total",
			Help: "Uploads passed through the upload hook by kind",
		},
		[]string{"kind"}, // "image", "video", "other"
	)
)

// Name allocation metrics
var (
	NameAllocationsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "media_converter_name_allocations_total",
			Help: "Total number of file names allocated",
		},
	)

	NameCollisionsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "media_converter_name_collisions_total",
			Help: "Allocated names that already existed and received a random suffix",
		},
	)

	CounterPersistFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_converter_counter_persist_failures_total",
			Help: "Counter store failures that forced a best-effort in-process value",
		},
		[]string{"backend"},
	)

	CounterValue = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_converter_counter_value",
			Help: "Last observed value of the persisted name counter",
		},
	)
)

// Batch metrics
var (
	BatchPagesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "media_converter_batch_pages_total",
			Help: "Total number of batch pages processed",
		},
	)

	BatchItemsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_converter_batch_items_total",
			Help: "Batch items by outcome",
		},
		[]string{"mode", "status"}, // mode: "page", "sweep"; status: "converted", "failed", "skipped", "panic"
	)

	BatchRunDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "media_converter_batch_run_duration_seconds",
			Help:    "Duration of a batch page or sweep in seconds",
			Buckets: []float64{0.1, 0.5, 1, 5, 10, 30, 60, 300, 900},
		},
		[]string{"mode"},
	)

	SweepIsRunning = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_converter_sweep_running",
			Help: "Whether a full sweep is currently running (1 = running, 0 = idle)",
		},
	)
)

// Audit log metrics
var (
	AuditLogWrites = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_converter_audit_log_writes_total",
			Help: "Audit log appends by status",
		},
		[]string{"status"},
	)

	AuditLogSizeBytes = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_converter_audit_log_size_bytes",
			Help: "Size of the audit log file in bytes",
		},
	)
)

// Media library metrics
var (
	LibraryItemsTotal = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "media_converter_library_items",
			Help: "Number of attachments in the media library by MIME type",
		},
		[]string{"mime_type"},
	)
)

// Filesystem metrics
var (
	FilesystemRetryAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_converter_filesystem_retry_attempts_total",
			Help: "Filesystem operations retried after a stale file handle",
		},
		[]string{"operation"},
	)

	FilesystemRetryFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_converter_filesystem_retry_failures_total",
			Help: "Filesystem operations that kept failing after all retries",
		},
		[]string{"operation"},
	)

	FilesystemStaleErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_converter_filesystem_stale_errors_total",
			Help: "ESTALE errors observed by filesystem operations",
		},
		[]string{"operation"},
	)
)

// Upload watcher metrics
var (
	WatcherEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_converter_watcher_events_total",
			Help: "File system events seen by the upload watcher",
		},
		[]string{"event"}, // "create", "write", "remove", "rename", "chmod"
	)

	WatcherErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "media_converter_watcher_errors_total",
			Help: "Errors reported by the upload watcher",
		},
	)

	WatchedDirectories = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_converter_watched_directories",
			Help: "Number of upload directories being watched",
		},
	)
)

// Event metrics
var (
	EventsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_converter_events_published_total",
			Help: "Conversion events published by status",
		},
		[]string{"status"},
	)
)

// Memory metrics
var (
	MemoryUsageRatio = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_converter_memory_usage_ratio",
			Help: "Heap allocation as a fraction of the soft memory limit",
		},
	)

	MemoryPaused = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_converter_memory_paused",
			Help: "Whether sweeps are paused on memory pressure (1 = paused, 0 = running)",
		},
	)

	MemoryGoMemLimit = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_converter_go_memlimit_bytes",
			Help: "Configured Go soft memory limit in bytes",
		},
	)
)

// AppInfo exposes build information as labels on a constant gauge.
var AppInfo = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Name: "media_converter_app_info",
		Help: "Application build information",
	},
	[]string{"version", "commit", "go_version", "codec"},
)

// DBTransactionDuration tracks how long import and counter transactions stay open.
var DBTransactionDuration = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "media_converter_db_transaction_duration_seconds",
		Help:    "Database transaction duration in seconds",
		Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30},
	},
	[]string{"outcome"}, // "commit", "rollback"
)
