package batch

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"media-converter/internal/convert"
	"media-converter/internal/database"
	"media-converter/internal/logging"
	"media-converter/internal/mediatypes"
	"media-converter/internal/memory"
	"media-converter/internal/metrics"

	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

// DefaultLimit is the page size used when a caller passes none.
const DefaultLimit = 10

// ErrSweepRunning is returned when a full sweep is requested while another
// one is still in progress.
var ErrSweepRunning = errors.New("a sweep is already running")

// Store lists the media library in a stable order.
type Store interface {
	ListItems(ctx context.Context, offset, limit int) ([]database.Attachment, error)
	ListAllItems(ctx context.Context) ([]database.Attachment, error)
}

// Converter converts one file.
type Converter interface {
	Convert(ctx context.Context, req convert.Request) convert.Result
}

// Options configures a Driver. Store and Converter are required.
type Options struct {
	Store     Store
	Converter Converter
	// Limiter throttles sweeps between items. Nil means unthrottled.
	Limiter *rate.Limiter
	// Monitor pauses sweeps while memory is under pressure.
	Monitor *memory.Monitor
}

// Driver replays the conversion pipeline over the media library. Pages are
// independent of each other; the only state across calls is the offset the
// caller passes back in.
type Driver struct {
	store     Store
	converter Converter
	limiter   *rate.Limiter
	monitor   *memory.Monitor

	sweepMu sync.Mutex
}

// PageResult reports one page.
type PageResult struct {
	RunID string `json:"run_id"`
	// Processed counts successful conversions, as the polling UI expects.
	Processed  int      `json:"processed"`
	Failed     int      `json:"failed"`
	Skipped    int      `json:"skipped"`
	Fetched    int      `json:"fetched"`
	HasMore    bool     `json:"has_more"`
	NextOffset int      `json:"offset"`
	Messages   []string `json:"messages,omitempty"`
}

// SweepResult reports a full sweep.
type SweepResult struct {
	RunID     string `json:"run_id"`
	Succeeded int    `json:"success_count"`
	Failed    int    `json:"fail_count"`
	Skipped   int    `json:"skipped_count"`
	Cancelled bool   `json:"cancelled,omitempty"`
}

// ProgressFunc is called after every item of a sweep.
type ProgressFunc func(done, total int)

type outcome int

const (
	outcomeConverted outcome = iota
	outcomeFailed
	outcomeSkipped
)

func (o outcome) label() string {
	switch o {
	case outcomeConverted:
		return "converted"
	case outcomeFailed:
		return "failed"
	}
	return "skipped"
}

// New creates a driver.
func New(opts Options) (*Driver, error) {
	if opts.Store == nil || opts.Converter == nil {
		return nil, errors.New("batch: store and converter are required")
	}
	return &Driver{
		store:     opts.Store,
		converter: opts.Converter,
		limiter:   opts.Limiter,
		monitor:   opts.Monitor,
	}, nil
}

// RunPage converts up to limit items starting at offset, in ascending id
// order. Only a failure to list the page is returned as an error; item
// failures are counted. HasMore is true when the page came back full, so a
// collection that is an exact multiple of limit needs one extra empty call.
func (d *Driver) RunPage(ctx context.Context, offset, limit int) (PageResult, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	if offset < 0 {
		offset = 0
	}

	runID := uuid.NewString()
	start := time.Now()
	defer func() {
		metrics.BatchRunDuration.WithLabelValues("page").Observe(time.Since(start).Seconds())
	}()

	items, err := d.store.ListItems(ctx, offset, limit)
	if err != nil {
		return PageResult{RunID: runID}, fmt.Errorf("failed to list items at offset %d: %w", offset, err)
	}
	metrics.BatchPagesTotal.Inc()

	result := PageResult{
		RunID:      runID,
		Fetched:    len(items),
		HasMore:    len(items) == limit,
		NextOffset: offset + limit,
	}

	for _, item := range items {
		if ctx.Err() != nil {
			logging.Info("Batch %s stopped at item %d: %v", runID, item.ID, ctx.Err())
			break
		}

		res, o := d.process(ctx, "page", item)
		switch o {
		case outcomeConverted:
			result.Processed++
			result.Messages = append(result.Messages, fmt.Sprintf("%s -> %s", filepath.Base(item.Path), filepath.Base(res.NewPath)))
		case outcomeFailed:
			result.Failed++
			result.Messages = append(result.Messages, fmt.Sprintf("%s: %s", filepath.Base(item.Path), res.Reason))
		default:
			result.Skipped++
		}
	}

	logging.Info("Batch %s offset=%d limit=%d: %d converted, %d failed, %d skipped (has_more=%v)",
		runID, offset, limit, result.Processed, result.Failed, result.Skipped, result.HasMore)
	return result, nil
}

// SweepAll converts every convertible item in the library in one call. Only
// one sweep runs at a time. Cancellation is honoured between items.
func (d *Driver) SweepAll(ctx context.Context, progress ProgressFunc) (SweepResult, error) {
	if !d.sweepMu.TryLock() {
		return SweepResult{}, ErrSweepRunning
	}
	defer d.sweepMu.Unlock()

	metrics.SweepIsRunning.Set(1)
	defer metrics.SweepIsRunning.Set(0)

	runID := uuid.NewString()
	start := time.Now()
	defer func() {
		metrics.BatchRunDuration.WithLabelValues("sweep").Observe(time.Since(start).Seconds())
	}()

	items, err := d.store.ListAllItems(ctx)
	if err != nil {
		return SweepResult{RunID: runID}, fmt.Errorf("failed to list items: %w", err)
	}

	logging.Info("Sweep %s starting over %d items", runID, len(items))
	result := SweepResult{RunID: runID}

	for i, item := range items {
		if err := d.waitTurn(ctx); err != nil {
			logging.Warn("Sweep %s cancelled after %d of %d items: %v", runID, i, len(items), err)
			result.Cancelled = true
			break
		}

		_, o := d.process(ctx, "sweep", item)
		switch o {
		case outcomeConverted:
			result.Succeeded++
		case outcomeFailed:
			result.Failed++
		default:
			result.Skipped++
		}

		if progress != nil {
			progress(i+1, len(items))
		}
	}

	logging.Info("Sweep %s finished in %v: %d converted, %d failed, %d skipped",
		runID, time.Since(start).Round(time.Millisecond), result.Succeeded, result.Failed, result.Skipped)
	return result, nil
}

// Running reports whether a sweep is in progress.
func (d *Driver) Running() bool {
	if d.sweepMu.TryLock() {
		d.sweepMu.Unlock()
		return false
	}
	return true
}

// waitTurn blocks until the next sweep item may start.
func (d *Driver) waitTurn(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if d.monitor != nil && !d.monitor.WaitIfPaused(ctx) {
		return ctx.Err()
	}
	if d.limiter != nil {
		return d.limiter.Wait(ctx)
	}
	return nil
}

// process converts one item, turning a panic into a failure.
func (d *Driver) process(ctx context.Context, mode string, item database.Attachment) (res convert.Result, o outcome) {
	defer func() {
		if r := recover(); r != nil {
			logging.Error("Panic converting attachment %d (%s): %v", item.ID, item.Path, r)
			metrics.BatchItemsTotal.WithLabelValues(mode, "panic").Inc()
			res = convert.Result{Source: item.Path, Kind: convert.EncodeFailed, Reason: fmt.Sprint(r)}
			o = outcomeFailed
		}
		metrics.BatchItemsTotal.WithLabelValues(mode, o.label()).Inc()
	}()

	if !mediatypes.IsBatchConvertible(item.MimeType, item.Path) {
		return convert.Result{Source: item.Path}, outcomeSkipped
	}

	res = d.converter.Convert(ctx, convert.Request{
		Path:           item.Path,
		DeclaredFormat: item.MimeType,
		AttachmentID:   item.ID,
	})
	switch {
	case res.Success:
		return res, outcomeConverted
	case res.Kind == convert.AlreadyConverted:
		return res, outcomeSkipped
	default:
		logging.Debug("Attachment %d not converted: %s", item.ID, res.Reason)
		return res, outcomeFailed
	}
}
