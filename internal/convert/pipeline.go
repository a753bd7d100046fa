package convert

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"media-converter/internal/auditlog"
	"media-converter/internal/events"
	"media-converter/internal/filesystem"
	"media-converter/internal/logging"
	"media-converter/internal/media"
	"media-converter/internal/metrics"
	"media-converter/internal/naming"
)

// maxEncodeAttempts bounds how often a destination taken between allocation
// and the write (encode or video rename) is re-rolled.
const maxEncodeAttempts = 3

// AttachmentStore receives the new location of converted attachments.
type AttachmentStore interface {
	SetPath(ctx context.Context, id int64, path string) error
	SetTitle(ctx context.Context, id int64, title string) error
}

// Options configures a Pipeline. Codec is required.
type Options struct {
	Settings Settings
	Codec    media.Codec
	// Counter backs the name allocator; nil keeps the counter in memory.
	Counter naming.CounterStore
	// CounterBackend labels counter failures in metrics.
	CounterBackend string
	Audit          auditlog.Sink
	Attachments    AttachmentStore
	Events         events.Publisher
	Retry          *filesystem.RetryConfig
}

// Pipeline converts single files to WebP. It is safe for concurrent use;
// all shared state lives in the allocator and the attachment store.
type Pipeline struct {
	settings    Settings
	codec       media.Codec
	names       *naming.Allocator
	audit       auditlog.Sink
	attachments AttachmentStore
	events      events.Publisher
	retry       filesystem.RetryConfig

	move func(oldPath, newPath string) error
}

// New builds a pipeline from opts.
func New(opts Options) (*Pipeline, error) {
	if opts.Codec == nil {
		return nil, errors.New("convert: codec is required")
	}
	settings := opts.Settings.Sanitize()
	audit := opts.Audit
	if audit == nil || !settings.EnableLogging {
		audit = auditlog.Discard{}
	}
	publisher := opts.Events
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	retry := filesystem.DefaultRetryConfig()
	if opts.Retry != nil {
		retry = *opts.Retry
	}

	names := naming.NewAllocator(naming.Options{
		Store:   opts.Counter,
		Prefix:  settings.FilePrefix,
		Audit:   audit,
		Backend: opts.CounterBackend,
	})

	return &Pipeline{
		settings:    settings,
		codec:       opts.Codec,
		names:       names,
		audit:       audit,
		attachments: opts.Attachments,
		events:      publisher,
		retry:       retry,
		move: func(oldPath, newPath string) error {
			return filesystem.RenameNoReplaceWithRetry(oldPath, newPath, retry)
		},
	}, nil
}

// Settings returns the sanitized settings in use.
func (p *Pipeline) Settings() Settings {
	return p.settings
}

// Names returns the allocator that names converted files.
func (p *Pipeline) Names() *naming.Allocator {
	return p.names
}

// Codec returns the codec the pipeline decodes and encodes with.
func (p *Pipeline) Codec() media.Codec {
	return p.codec
}

// Convert turns the file named by req into a WebP in the same directory.
// The source is only removed after the output has been fully written.
func (p *Pipeline) Convert(ctx context.Context, req Request) Result {
	res := p.convert(ctx, req)

	format := "unknown"
	if f := media.ParseFormat(req.DeclaredFormat); f != "" {
		format = string(f)
	} else if f := media.ParseFormat(filepath.Ext(req.Path)); f != "" {
		format = string(f)
	}
	metrics.ConversionsTotal.WithLabelValues(format, res.Kind.String()).Inc()

	return res
}

func (p *Pipeline) convert(ctx context.Context, req Request) Result {
	source := req.Path
	name := filepath.Base(source)

	info, err := filesystem.StatWithRetry(source, p.retry)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			logging.Debug("Conversion source missing: %s", source)
			return failure(source, NotFound, fmt.Errorf("%w: %s", ErrNotFound, source))
		}
		logging.Error("Failed to stat %s: %v", source, err)
		return failure(source, StorageUnavailable, fmt.Errorf("%w: %w", media.ErrStorageUnavailable, err))
	}
	if !info.Mode().IsRegular() {
		return failure(source, NotFound, fmt.Errorf("%w: %s is not a regular file", ErrNotFound, source))
	}

	format, err := media.ResolveFormat(source, req.DeclaredFormat)
	if err != nil {
		return failure(source, UnsupportedFormat, err)
	}
	if format == media.Target && !p.oversized(source) {
		return failure(source, AlreadyConverted, fmt.Errorf("%w: %s", ErrAlreadyConverted, name))
	}
	if !p.codec.Supports(format) {
		return failure(source, UnsupportedFormat, fmt.Errorf("%w: %s (%s)", media.ErrUnsupportedFormat, name, format))
	}

	start := time.Now()
	img, err := p.codec.Decode(source, format)
	metrics.ConversionPhaseDuration.WithLabelValues("decode").Observe(time.Since(start).Seconds())
	if err != nil {
		logging.Error("Failed to decode %s: %v", source, err)
		p.audit.Appendf("Failed to load image: %s", name)
		if errors.Is(err, media.ErrUnsupportedFormat) {
			return failure(source, UnsupportedFormat, err)
		}
		return failure(source, DecodeFailed, err)
	}

	r := &ownedRaster{img: img}
	defer r.release()

	start = time.Now()
	origWidth, origHeight := img.Width(), img.Height()
	resized, err := media.ResizeIfNeeded(img, p.settings.MaxDimension)
	r.img = resized
	metrics.ConversionPhaseDuration.WithLabelValues("resize").Observe(time.Since(start).Seconds())
	if err != nil {
		logging.Error("Failed to resize %s: %v", source, err)
		p.audit.Appendf("Failed to resize image: %s", name)
		return failure(source, EncodeFailed, fmt.Errorf("%w: %w", media.ErrEncode, err))
	}
	if resized.Width() != origWidth || resized.Height() != origHeight {
		metrics.ImagesResized.Inc()
		p.audit.Appendf("Resized to %dx%d", resized.Width(), resized.Height())
	}

	dest, err := p.encode(ctx, r.img, filepath.Dir(source))
	if err != nil {
		logging.Error("Failed to write WebP for %s: %v", source, err)
		p.audit.Appendf("Failed to save WebP image for: %s", name)
		if errors.Is(err, media.ErrStorageUnavailable) || errors.Is(err, media.ErrDestinationExists) {
			return failure(source, StorageUnavailable, err)
		}
		return failure(source, EncodeFailed, err)
	}

	width, height := r.img.Width(), r.img.Height()
	r.release()

	p.recordSavings(info.Size(), dest)
	p.removeOriginal(source)

	title := titleFromPath(dest)
	if req.AttachmentID != 0 && p.attachments != nil {
		p.updateAttachment(ctx, req.AttachmentID, dest, title)
	}

	p.audit.Appendf("Converted to WebP: %s -> %s", name, filepath.Base(dest))
	logging.Info("Converted %s -> %s (%dx%d)", source, dest, width, height)

	if err := p.events.PublishConverted(ctx, events.Converted{
		AttachmentID: req.AttachmentID,
		Source:       source,
		Target:       dest,
		Width:        width,
		Height:       height,
		HappenedAt:   time.Now().UTC(),
	}); err != nil {
		logging.Warn("Failed to publish conversion event for %s: %v", dest, err)
	}

	return Result{
		Success:   true,
		Kind:      OK,
		Source:    source,
		NewPath:   dest,
		NewFormat: string(media.Target),
		Title:     title,
		Width:     width,
		Height:    height,
	}
}

// oversized reports whether a WebP source exceeds the dimension bound and
// therefore needs another pass. Unreadable headers count as in bounds.
func (p *Pipeline) oversized(path string) bool {
	if p.settings.MaxDimension <= 0 {
		return false
	}
	dims, err := media.Probe(path)
	if err != nil {
		logging.Debug("Could not probe %s, leaving it alone: %v", path, err)
		return false
	}
	return dims.Width > p.settings.MaxDimension || dims.Height > p.settings.MaxDimension
}

// encode allocates a destination in dir and writes img there. A destination
// that appears between allocation and encode gets a suffixed name.
func (p *Pipeline) encode(ctx context.Context, img media.Raster, dir string) (string, error) {
	dest, err := p.names.Allocate(ctx, dir, media.Target.Extension())
	if err != nil {
		return "", fmt.Errorf("%w: %w", media.ErrStorageUnavailable, err)
	}

	start := time.Now()
	defer func() {
		metrics.ConversionPhaseDuration.WithLabelValues("encode").Observe(time.Since(start).Seconds())
	}()

	for attempt := 1; ; attempt++ {
		err = p.codec.Encode(img, dest, p.settings.Quality)
		if err == nil {
			return dest, nil
		}
		if !errors.Is(err, media.ErrDestinationExists) || attempt >= maxEncodeAttempts {
			return "", err
		}
		next := p.names.Suffixed(dest)
		p.audit.Appendf("File collision: %s exists, using %s", filepath.Base(dest), filepath.Base(next))
		dest = next
	}
}

func (p *Pipeline) removeOriginal(source string) {
	if !p.settings.DeleteOriginals {
		return
	}
	if err := filesystem.RemoveWithRetry(source, p.retry); err != nil && !errors.Is(err, fs.ErrNotExist) {
		metrics.OriginalDeleteErrors.Inc()
		logging.Warn("Failed to delete original %s: %v", source, err)
		p.audit.Appendf("Failed to delete original: %s", filepath.Base(source))
	}
}

func (p *Pipeline) updateAttachment(ctx context.Context, id int64, dest, title string) {
	if err := p.attachments.SetPath(ctx, id, dest); err != nil {
		logging.Error("Failed to update path of attachment %d: %v", id, err)
		p.audit.Appendf("Failed to update attachment %d: %v", id, err)
		return
	}
	if err := p.attachments.SetTitle(ctx, id, title); err != nil {
		logging.Warn("Failed to update title of attachment %d: %v", id, err)
	}
}

func (p *Pipeline) recordSavings(before int64, dest string) {
	info, err := os.Stat(dest)
	if err != nil {
		return
	}
	if saved := before - info.Size(); saved > 0 {
		metrics.ConversionBytesSaved.Add(float64(saved))
	}
}

// ownedRaster releases the raster it holds at most once.
type ownedRaster struct {
	img media.Raster
}

func (o *ownedRaster) release() {
	if o.img != nil {
		o.img.Release()
		o.img = nil
	}
}

func titleFromPath(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
