/*
Package filesystem wraps the file operations the converter performs on the
upload directory (stat, open, remove, rename) with retry logic for NFS
stale file handle errors.

Only ESTALE is retried. Every other error is returned on the first attempt.
Backoff starts at InitialBackoff and doubles up to MaxBackoff.

	info, err := filesystem.StatWithRetry(path, filesystem.DefaultRetryConfig())

Retry events are reported through an Observer registered with SetObserver;
the metrics package supplies the Prometheus implementation.
*/
package filesystem
