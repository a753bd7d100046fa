package naming

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"path/filepath"
	"regexp"
	"strings"
	"sync"

	"media-converter/internal/auditlog"
	"media-converter/internal/filesystem"
	"media-converter/internal/logging"
	"media-converter/internal/metrics"
)

const (
	// DefaultPrefix is used when no prefix is configured.
	DefaultPrefix = "wpcm_"
	// FallbackPrefix replaces a prefix that sanitizes to nothing.
	FallbackPrefix = "file_"

	suffixLetters = "abcdefghijklmnopqrstuvwxyz"
	suffixLength  = 3
)

var (
	prefixDisallowed = regexp.MustCompile(`[^A-Za-z0-9_-]`)
	collisionSuffix  = regexp.MustCompile(`-[a-z]{3}$`)
)

// SanitizePrefix strips characters outside [A-Za-z0-9_-].
func SanitizePrefix(prefix string) string {
	return prefixDisallowed.ReplaceAllString(prefix, "")
}

// Options configures an Allocator.
type Options struct {
	Store  CounterStore
	Prefix string
	Audit  auditlog.Sink
	// Backend labels counter failures in metrics ("sqlite", "redis", "memory").
	Backend string
}

// Allocator hands out destination paths. It is safe for concurrent use as
// long as the store's Advance is atomic.
type Allocator struct {
	store   CounterStore
	prefix  string
	audit   auditlog.Sink
	backend string

	mu       sync.Mutex
	fallback int

	generated *regexp.Regexp

	exists func(path string) bool
	intn   func(n int) int
}

// NewAllocator creates an allocator. A nil store gets a MemoryCounter.
func NewAllocator(opts Options) *Allocator {
	store := opts.Store
	backend := opts.Backend
	if store == nil {
		store = NewMemoryCounter(MinCounter)
		backend = "memory"
	}
	prefix := SanitizePrefix(opts.Prefix)
	if prefix == "" {
		prefix = FallbackPrefix
	}
	audit := opts.Audit
	if audit == nil {
		audit = auditlog.Discard{}
	}
	generated := regexp.MustCompile(`^` + regexp.QuoteMeta(prefix) + `\d{3}img(-[a-z]{3})?\.[a-z0-9]+$`)
	return &Allocator{
		store:     store,
		prefix:    prefix,
		audit:     audit,
		backend:   backend,
		generated: generated,
		exists:    filesystem.Exists,
		intn:      rand.IntN,
	}
}

// Prefix returns the sanitized prefix in use.
func (a *Allocator) Prefix() string {
	return a.prefix
}

// Store returns the counter store.
func (a *Allocator) Store() CounterStore {
	return a.store
}

// BaseName formats the name for a counter value without touching the store.
func (a *Allocator) BaseName(counter int, ext string) string {
	return fmt.Sprintf("%s%03dimg.%s", a.prefix, counter, strings.TrimPrefix(strings.ToLower(ext), "."))
}

// Allocate returns a destination path in dir for extension ext. The counter
// is consumed even if the caller never writes the file. Only a cancelled
// context produces an error.
func (a *Allocator) Allocate(ctx context.Context, dir, ext string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	counter := a.advance(ctx)
	path := filepath.Join(dir, a.BaseName(counter, ext))
	metrics.NameAllocationsTotal.Inc()

	if a.exists(path) {
		suffixed := a.Suffixed(path)
		metrics.NameCollisionsTotal.Inc()
		a.audit.Appendf("File collision: %s exists, using %s", filepath.Base(path), filepath.Base(suffixed))
		logging.Debug("Name collision on %s, using %s", path, suffixed)
		path = suffixed
	}

	return path, nil
}

func (a *Allocator) advance(ctx context.Context) int {
	v, err := a.store.Advance(ctx)

	a.mu.Lock()
	defer a.mu.Unlock()

	if err != nil {
		if !errors.Is(err, ErrCounterPersist) {
			err = fmt.Errorf("%w: %w", ErrCounterPersist, err)
		}
		if a.fallback == 0 {
			v = MinCounter
		} else {
			v = Next(a.fallback)
		}
		logging.Warn("Counter store unavailable, using best-effort value %03d: %v", v, err)
		metrics.CounterPersistFailures.WithLabelValues(a.backend).Inc()
	} else {
		v = Normalize(v)
	}

	a.fallback = v
	metrics.CounterValue.Set(float64(Next(v)))
	return v
}

// Generated reports whether name looks like a name this allocator hands
// out, suffixed or not.
func (a *Allocator) Generated(name string) bool {
	return a.generated.MatchString(filepath.Base(name))
}

// Suffixed inserts a random "-xyz" suffix before the extension of path. A
// generated name that already carries a suffix gets it replaced, so names
// never stack more than one.
func (a *Allocator) Suffixed(path string) string {
	ext := filepath.Ext(path)
	stem := strings.TrimSuffix(path, ext)
	if a.Generated(path) {
		stem = collisionSuffix.ReplaceAllString(stem, "")
	}
	return stem + "-" + a.randomSuffix() + ext
}

// randomSuffix returns three distinct lowercase letters.
func (a *Allocator) randomSuffix() string {
	letters := []byte(suffixLetters)
	for i := 0; i < suffixLength; i++ {
		j := i + a.intn(len(letters)-i)
		letters[i], letters[j] = letters[j], letters[i]
	}
	return string(letters[:suffixLength])
}
