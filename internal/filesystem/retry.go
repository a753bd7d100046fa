package filesystem

import (
	"errors"
	"io/fs"
	"os"
	"syscall"
	"time"

	"media-converter/internal/logging"
)

// RetryConfig configures retry behavior for filesystem operations
type RetryConfig struct {
	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// DefaultRetryConfig returns the defaults used for network-mounted uploads.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:     3,
		InitialBackoff: 50 * time.Millisecond,
		MaxBackoff:     500 * time.Millisecond,
	}
}

// isStaleError reports whether err is an NFS stale file handle (ESTALE).
func isStaleError(err error) bool {
	if err == nil {
		return false
	}
	var errno syscall.Errno
	if errors.As(err, &errno) {
		return errno == syscall.ESTALE
	}
	return false
}

// withRetry runs fn until it succeeds, fails with a non-stale error, or the
// retry budget is spent. Backoff doubles up to MaxBackoff.
func withRetry(op, path string, config RetryConfig, fn func() error) error {
	var lastErr error
	backoff := config.InitialBackoff

	for attempt := 0; attempt <= config.MaxRetries; attempt++ {
		err := fn()
		if err == nil {
			if attempt > 0 {
				logging.Info("NFS %s succeeded on retry %d for %s", op, attempt, path)
			}
			return nil
		}

		lastErr = err
		if !isStaleError(err) {
			return err
		}

		observeStale(op)

		if attempt < config.MaxRetries {
			observeAttempt(op)
			logging.Debug("NFS %s stale file handle for %s, retrying in %v (attempt %d/%d)",
				op, path, backoff, attempt+1, config.MaxRetries)
			time.Sleep(backoff)

			backoff *= 2
			if backoff > config.MaxBackoff {
				backoff = config.MaxBackoff
			}
		}
	}

	logging.Warn("NFS %s failed after %d retries for %s: %v", op, config.MaxRetries, path, lastErr)
	observeFailure(op)
	return lastErr
}

// StatWithRetry performs os.Stat, retrying stale file handle errors.
func StatWithRetry(path string, config RetryConfig) (os.FileInfo, error) {
	var info os.FileInfo
	err := withRetry("stat", path, config, func() error {
		var statErr error
		info, statErr = os.Stat(path)
		return statErr
	})
	if err != nil {
		return nil, err
	}
	return info, nil
}

// OpenWithRetry performs os.Open, retrying stale file handle errors.
func OpenWithRetry(path string, config RetryConfig) (*os.File, error) {
	var file *os.File
	err := withRetry("open", path, config, func() error {
		var openErr error
		file, openErr = os.Open(path)
		return openErr
	})
	if err != nil {
		return nil, err
	}
	return file, nil
}

// RemoveWithRetry performs os.Remove, retrying stale file handle errors.
func RemoveWithRetry(path string, config RetryConfig) error {
	return withRetry("remove", path, config, func() error {
		return os.Remove(path)
	})
}

// RenameNoReplaceWithRetry moves oldPath to newPath without replacing an
// existing file, retrying stale file handle errors. A taken destination
// yields an error matching fs.ErrExist and leaves both files untouched.
func RenameNoReplaceWithRetry(oldPath, newPath string, config RetryConfig) error {
	return withRetry("rename", oldPath, config, func() error {
		return renameNoReplace(oldPath, newPath)
	})
}

func renameNoReplace(oldPath, newPath string) error {
	err := os.Link(oldPath, newPath)
	if err == nil {
		if err := os.Remove(oldPath); err != nil {
			_ = os.Remove(newPath)
			return err
		}
		return nil
	}
	if errors.Is(err, fs.ErrExist) || errors.Is(err, fs.ErrNotExist) {
		return err
	}

	// No hard links on this mount; check then rename.
	if _, statErr := os.Lstat(newPath); statErr == nil {
		return &os.LinkError{Op: "rename", Old: oldPath, New: newPath, Err: fs.ErrExist}
	}
	return os.Rename(oldPath, newPath)
}

// Exists reports whether path exists. Errors other than not-exist count as
// existing so callers never overwrite something they could not inspect.
func Exists(path string) bool {
	_, err := StatWithRetry(path, DefaultRetryConfig())
	return err == nil || !errors.Is(err, os.ErrNotExist)
}
