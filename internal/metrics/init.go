package metrics

// InitializeMetrics pre-populates all expected label combinations so that
// every metric is exported from the first Prometheus scrape.
// Call this once at startup after metric registration.
func InitializeMetrics() {
	for _, format := range []string{"jpeg", "png", "webp", "avif", "unknown"} {
		for _, outcome := range []string{"converted", "not_found", "unsupported", "decode_failed",
			"already_converted", "encode_failed", "storage_unavailable"} {
			ConversionsTotal.WithLabelValues(format, outcome)
		}
	}

	for _, phase := range []string{"decode", "resize", "encode"} {
		ConversionPhaseDuration.WithLabelValues(phase)
	}

	for _, status := range []string{"success", "error"} {
		VideosRenamed.WithLabelValues(status)
		EventsPublished.WithLabelValues(status)
		AuditLogWrites.WithLabelValues(status)
	}

	for _, kind := range []string{"image", "video", "other"} {
		UploadsTotal.WithLabelValues(kind)
	}

	for _, backend := range []string{"sqlite", "redis", "memory"} {
		CounterPersistFailures.WithLabelValues(backend)
	}

	for _, mode := range []string{"page", "sweep"} {
		BatchRunDuration.WithLabelValues(mode)
		for _, status := range []string{"converted", "failed", "skipped", "panic"} {
			BatchItemsTotal.WithLabelValues(mode, status)
		}
	}

	for _, event := range []string{"create", "write", "remove", "rename", "chmod"} {
		WatcherEventsTotal.WithLabelValues(event)
	}

	for _, op := range []string{"stat", "remove", "rename"} {
		FilesystemRetryAttempts.WithLabelValues(op)
		FilesystemRetryFailures.WithLabelValues(op)
		FilesystemStaleErrors.WithLabelValues(op)
	}

	for _, op := range []string{"initialize_schema", "insert_item", "get_item", "list_items",
		"list_all_items", "set_path", "set_title", "count_items", "counter_advance",
		"counter_current", "counter_set"} {
		DBQueryTotal.WithLabelValues(op, "success")
		DBQueryTotal.WithLabelValues(op, "error")
		DBQueryDuration.WithLabelValues(op)
	}
}
