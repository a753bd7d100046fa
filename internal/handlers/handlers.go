package handlers

import (
	"context"
	"errors"
	"time"

	"media-converter/internal/batch"
	"media-converter/internal/convert"
	"media-converter/internal/naming"
)

// Converter runs the pipeline on a single file.
type Converter interface {
	Convert(ctx context.Context, req convert.Request) convert.Result
}

// Batcher drives paged and full runs over the library.
type Batcher interface {
	RunPage(ctx context.Context, offset, limit int) (batch.PageResult, error)
	SweepAll(ctx context.Context, progress batch.ProgressFunc) (batch.SweepResult, error)
	Running() bool
}

// AuditLog is the conversion log as seen by operators.
type AuditLog interface {
	Contents() (string, error)
	Clear() error
}

// Library reports on the attachment store.
type Library interface {
	Ping(ctx context.Context) error
	CountItems(ctx context.Context) (int, error)
}

// Options wires the handlers. Every dependency except BaseContext is
// required.
type Options struct {
	Converter Converter
	Batcher   Batcher
	Audit     AuditLog
	Counter   naming.CounterStore
	Library   Library
	// MediaDir confines single-file conversions.
	MediaDir string
	// BaseContext outlives requests; background sweeps run under it.
	BaseContext context.Context
}

type Handlers struct {
	converter Converter
	batcher   Batcher
	audit     AuditLog
	counter   naming.CounterStore
	library   Library
	mediaDir  string
	baseCtx   context.Context
	started   time.Time
}

func New(opts Options) (*Handlers, error) {
	if opts.Converter == nil || opts.Batcher == nil || opts.Audit == nil || opts.Counter == nil || opts.Library == nil {
		return nil, errors.New("handlers: converter, batcher, audit log, counter and library are required")
	}
	baseCtx := opts.BaseContext
	if baseCtx == nil {
		baseCtx = context.Background()
	}
	return &Handlers{
		converter: opts.Converter,
		batcher:   opts.Batcher,
		audit:     opts.Audit,
		counter:   opts.Counter,
		library:   opts.Library,
		mediaDir:  opts.MediaDir,
		baseCtx:   baseCtx,
		started:   time.Now(),
	}, nil
}
