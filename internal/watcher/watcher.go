package watcher

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"media-converter/internal/convert"
	"media-converter/internal/database"
	"media-converter/internal/logging"
	"media-converter/internal/mediatypes"
	"media-converter/internal/metrics"

	"github.com/fsnotify/fsnotify"
)

// DefaultSettle is how long a new file must stay unchanged before it is
// picked up.
const DefaultSettle = 2 * time.Second

// Registrar records a new upload in the media library.
type Registrar interface {
	InsertItem(ctx context.Context, path, mimeType, title string, parentID int64) (int64, error)
}

// Processor runs the upload hook.
type Processor interface {
	ProcessUpload(ctx context.Context, up convert.Upload) convert.Upload
}

// Options configures a Watcher. Dir, Registrar and Processor are required.
type Options struct {
	Dir       string
	Settle    time.Duration
	Registrar Registrar
	Processor Processor
	// Ignore skips files the pipeline itself produced.
	Ignore func(name string) bool
}

// Watcher feeds files dropped into an upload directory through the upload
// hook, one at a time.
type Watcher struct {
	dir       string
	settle    time.Duration
	registrar Registrar
	processor Processor
	ignore    func(name string) bool

	mu      sync.Mutex
	pending map[string]*time.Timer
	ready   chan string
	done    chan struct{}
}

// New creates a watcher for opts.Dir.
func New(opts Options) (*Watcher, error) {
	if opts.Dir == "" {
		return nil, errors.New("watcher: upload directory is required")
	}
	if opts.Registrar == nil || opts.Processor == nil {
		return nil, errors.New("watcher: registrar and processor are required")
	}
	settle := opts.Settle
	if settle <= 0 {
		settle = DefaultSettle
	}
	ignore := opts.Ignore
	if ignore == nil {
		ignore = func(string) bool { return false }
	}
	return &Watcher{
		dir:       opts.Dir,
		settle:    settle,
		registrar: opts.Registrar,
		processor: opts.Processor,
		ignore:    ignore,
		pending:   make(map[string]*time.Timer),
		ready:     make(chan string, 64),
		done:      make(chan struct{}),
	}, nil
}

// Run watches the upload directory until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		metrics.WatcherErrors.Inc()
		return err
	}
	defer func() {
		if err := fw.Close(); err != nil {
			logging.Error("failed to close upload watcher: %v", err)
		}
	}()

	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return err
	}

	watchCount := w.addDirectories(fw, w.dir)
	logging.Info("Upload watcher started on %s, watching %d directories", w.dir, watchCount)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		w.processLoop(ctx)
	}()

	defer func() {
		w.mu.Lock()
		for path, t := range w.pending {
			t.Stop()
			delete(w.pending, path)
		}
		w.mu.Unlock()
		close(w.done)
		wg.Wait()
		metrics.WatchedDirectories.Set(0)
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			w.handleEvent(fw, event)

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			logging.Error("Upload watcher error: %v", err)
			metrics.WatcherErrors.Inc()
		}
	}
}

// addDirectories adds root and every non-hidden directory below it.
func (w *Watcher) addDirectories(fw *fsnotify.Watcher, root string) int {
	watchCount := 0
	err := filepath.WalkDir(root, func(path string, entry os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !entry.IsDir() {
			return nil
		}
		if path != root && strings.HasPrefix(entry.Name(), ".") {
			return filepath.SkipDir
		}
		if addErr := fw.Add(path); addErr != nil {
			logging.Warn("failed to add path to upload watcher %s: %v", path, addErr)
			metrics.WatcherErrors.Inc()
		} else {
			watchCount++
			metrics.WatchedDirectories.Inc()
		}
		return nil
	})
	if err != nil {
		logging.Error("failed to walk upload directory %s: %v", root, err)
		metrics.WatcherErrors.Inc()
	}
	return watchCount
}

func (w *Watcher) handleEvent(fw *fsnotify.Watcher, event fsnotify.Event) {
	if strings.HasPrefix(filepath.Base(event.Name), ".") || strings.Contains(event.Name, "/.") {
		return
	}
	metrics.WatcherEventsTotal.WithLabelValues(eventType(event.Op)).Inc()

	switch {
	case event.Op&fsnotify.Create != 0:
		info, err := os.Stat(event.Name)
		if err != nil {
			return
		}
		if info.IsDir() {
			n := w.addDirectories(fw, event.Name)
			logging.Debug("Added %d new upload directories under %s", n, event.Name)
			return
		}
		w.schedule(event.Name)

	case event.Op&fsnotify.Write != 0:
		w.schedule(event.Name)

	case event.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
		w.cancel(event.Name)
	}
}

func eventType(op fsnotify.Op) string {
	switch {
	case op&fsnotify.Create != 0:
		return "create"
	case op&fsnotify.Write != 0:
		return "write"
	case op&fsnotify.Remove != 0:
		return "remove"
	case op&fsnotify.Rename != 0:
		return "rename"
	default:
		return "chmod"
	}
}

// schedule (re)starts the settle timer for path.
func (w *Watcher) schedule(path string) {
	if w.ignore(path) {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if t, ok := w.pending[path]; ok {
		t.Reset(w.settle)
		return
	}
	w.pending[path] = time.AfterFunc(w.settle, func() {
		w.mu.Lock()
		delete(w.pending, path)
		w.mu.Unlock()

		select {
		case w.ready <- path:
		case <-w.done:
		}
	})
}

func (w *Watcher) cancel(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if t, ok := w.pending[path]; ok {
		t.Stop()
		delete(w.pending, path)
	}
}

func (w *Watcher) processLoop(ctx context.Context) {
	for {
		select {
		case <-w.done:
			return
		case path := <-w.ready:
			w.handleUpload(ctx, path)
		}
	}
}

// handleUpload registers path and runs the upload hook on it.
func (w *Watcher) handleUpload(ctx context.Context, path string) {
	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		return
	}

	mimeType := mediatypes.MimeFromPath(path)
	id, err := w.registrar.InsertItem(ctx, path, mimeType, database.TitleFromPath(path), 0)
	if err != nil {
		logging.Error("Failed to register upload %s: %v", path, err)
		return
	}

	out := w.processor.ProcessUpload(ctx, convert.Upload{
		Path:         path,
		Name:         filepath.Base(path),
		MimeType:     mimeType,
		AttachmentID: id,
	})
	if out.Path != path {
		logging.Info("Upload %s stored as %s", filepath.Base(path), out.Name)
	} else {
		logging.Debug("Upload %s kept as is", filepath.Base(path))
	}
}
