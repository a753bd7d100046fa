// Package auditlog keeps the append-only record of every conversion, rename
// and collision. Operators read and clear it through the admin API and CLI.
package auditlog

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"media-converter/internal/logging"
	"media-converter/internal/metrics"
)

// TimeFormat is the timestamp layout at the start of every line.
const TimeFormat = "2006-01-02 15:04:05"

// ErrClosed is returned by operations on a closed log.
var ErrClosed = errors.New("audit log closed")

// Sink is what the conversion core writes to.
type Sink interface {
	Append(message string)
	Appendf(format string, args ...interface{})
}

// Log is a file-backed Sink. Appends from concurrent goroutines are
// serialized and each lands as a single line.
type Log struct {
	path    string
	enabled bool

	mu     sync.Mutex
	file   *os.File
	closed bool
	now    func() time.Time
}

// Open opens (or creates) the log at path. A disabled log never touches the
// file on Append but still serves Contents and Clear.
func Open(path string, enabled bool) (*Log, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create audit log directory: %w", err)
	}

	l := &Log{path: path, enabled: enabled, now: time.Now}
	if enabled {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, fmt.Errorf("failed to open audit log: %w", err)
		}
		l.file = f
	}
	return l, nil
}

// Path returns the file backing the log.
func (l *Log) Path() string {
	return l.path
}

// Enabled reports whether appends are recorded.
func (l *Log) Enabled() bool {
	return l.enabled
}

// Append writes one timestamped line. Write failures are logged and counted,
// never returned, so auditing can not fail a conversion.
func (l *Log) Append(message string) {
	if l == nil || !l.enabled {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return
	}

	line := fmt.Sprintf("[%s] %s\n", l.now().Format(TimeFormat), message)
	if _, err := io.WriteString(l.file, line); err != nil {
		logging.Error("Failed to write audit log %s: %v", l.path, err)
		metrics.AuditLogWrites.WithLabelValues("error").Inc()
		return
	}
	metrics.AuditLogWrites.WithLabelValues("success").Inc()
}

// Appendf formats and appends a line.
func (l *Log) Appendf(format string, args ...interface{}) {
	l.Append(fmt.Sprintf(format, args...))
}

// Contents returns the whole log. A missing file reads as empty.
func (l *Log) Contents() (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	data, err := os.ReadFile(l.path)
	if errors.Is(err, os.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read audit log: %w", err)
	}
	return string(data), nil
}

// Size returns the size of the log file in bytes.
func (l *Log) Size() int64 {
	info, err := os.Stat(l.path)
	if err != nil {
		return 0
	}
	return info.Size()
}

// Clear truncates the log.
func (l *Log) Clear() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return ErrClosed
	}

	if err := os.Truncate(l.path, 0); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to clear audit log: %w", err)
	}
	logging.Info("Audit log cleared: %s", l.path)
	return nil
}

// Close releases the file handle.
func (l *Log) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return nil
	}
	l.closed = true
	if l.file != nil {
		return l.file.Close()
	}
	return nil
}

// Discard is a Sink that drops everything.
type Discard struct{}

// Append implements Sink.
func (Discard) Append(string) {}

// Appendf implements Sink.
func (Discard) Appendf(string, ...interface{}) {}
