package metrics

import "media-converter/internal/filesystem"

// filesystemObserver implements filesystem.Observer with the counters
// declared in metrics.go.
type filesystemObserver struct{}

// NewFilesystemObserver returns an observer to pass to filesystem.SetObserver.
func NewFilesystemObserver() filesystem.Observer {
	return filesystemObserver{}
}

func (filesystemObserver) ObserveRetryAttempt(op string) {
	FilesystemRetryAttempts.WithLabelValues(op).Inc()
}

func (filesystemObserver) ObserveRetryFailure(op string) {
	FilesystemRetryFailures.WithLabelValues(op).Inc()
}

func (filesystemObserver) ObserveStaleError(op string) {
	FilesystemStaleErrors.WithLabelValues(op).Inc()
}
