package filesystem

// Observer receives retry events. The metrics package provides the
// Prometheus-backed implementation so this package stays free of it.
type Observer interface {
	ObserveRetryAttempt(op string)
	ObserveRetryFailure(op string)
	ObserveStaleError(op string)
}

var defaultObserver Observer

// SetObserver sets the package-level observer. Call once at startup.
func SetObserver(o Observer) {
	defaultObserver = o
}

func observeAttempt(op string) {
	if defaultObserver != nil {
		defaultObserver.ObserveRetryAttempt(op)
	}
}

func observeFailure(op string) {
	if defaultObserver != nil {
		defaultObserver.ObserveRetryFailure(op)
	}
}

func observeStale(op string) {
	if defaultObserver != nil {
		defaultObserver.ObserveStaleError(op)
	}
}
