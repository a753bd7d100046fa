package convert

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"media-converter/internal/media"
	"media-converter/internal/naming"

	"github.com/stretchr/testify/require"
)

// fakeCodec hands out rasters that count their releases.
type fakeCodec struct {
	mu            sync.Mutex
	width, height int
	decodeErr     error
	scaleErr      error
	encodeErrs    []error
	beforeEncode  func(path string)
	supported     map[media.Format]bool

	created       int
	released      int
	doubleRelease int
	encoded       []string
}

func newFakeCodec(width, height int) *fakeCodec {
	return &fakeCodec{
		width:  width,
		height: height,
		supported: map[media.Format]bool{
			media.FormatJPEG: true,
			media.FormatPNG:  true,
			media.FormatWebP: true,
			media.FormatAVIF: true,
		},
	}
}

func (c *fakeCodec) Name() string                 { return "fake" }
func (c *fakeCodec) Supports(f media.Format) bool { return c.supported[f] }
func (c *fakeCodec) CanEncode() bool              { return true }

func (c *fakeCodec) Decode(path string, _ media.Format) (media.Raster, error) {
	if c.decodeErr != nil {
		return nil, c.decodeErr
	}
	return c.newRaster(c.width, c.height), nil
}

func (c *fakeCodec) Encode(img media.Raster, path string, _ int) error {
	if c.beforeEncode != nil {
		c.beforeEncode(path)
	}
	c.mu.Lock()
	var err error
	if len(c.encodeErrs) > 0 {
		err, c.encodeErrs = c.encodeErrs[0], c.encodeErrs[1:]
	}
	c.mu.Unlock()
	if err != nil {
		return err
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return fmt.Errorf("%w: %s", media.ErrDestinationExists, path)
		}
		return fmt.Errorf("%w: %w", media.ErrStorageUnavailable, err)
	}
	defer f.Close()
	if _, err := fmt.Fprintf(f, "webp %dx%d", img.Width(), img.Height()); err != nil {
		return err
	}

	c.mu.Lock()
	c.encoded = append(c.encoded, path)
	c.mu.Unlock()
	return nil
}

func (c *fakeCodec) newRaster(w, h int) *countingRaster {
	c.mu.Lock()
	c.created++
	c.mu.Unlock()
	return &countingRaster{w: w, h: h, codec: c}
}

func (c *fakeCodec) outstanding() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.created - c.released
}

type countingRaster struct {
	w, h     int
	codec    *fakeCodec
	released bool
}

func (r *countingRaster) Width() int  { return r.w }
func (r *countingRaster) Height() int { return r.h }

func (r *countingRaster) Scale(w, h int) (media.Raster, error) {
	if r.codec.scaleErr != nil {
		return nil, r.codec.scaleErr
	}
	return r.codec.newRaster(w, h), nil
}

func (r *countingRaster) Release() {
	r.codec.mu.Lock()
	defer r.codec.mu.Unlock()
	if r.released {
		r.codec.doubleRelease++
		return
	}
	r.released = true
	r.codec.released++
}

type recordingSink struct {
	mu    sync.Mutex
	lines []string
}

func (s *recordingSink) Append(msg string) {
	s.mu.Lock()
	s.lines = append(s.lines, msg)
	s.mu.Unlock()
}

func (s *recordingSink) Appendf(format string, args ...interface{}) {
	s.Append(fmt.Sprintf(format, args...))
}

func (s *recordingSink) all() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.lines...)
}

type fakeAttachments struct {
	mu     sync.Mutex
	paths  map[int64]string
	titles map[int64]string
	err    error
}

func newFakeAttachments() *fakeAttachments {
	return &fakeAttachments{paths: map[int64]string{}, titles: map[int64]string{}}
}

func (a *fakeAttachments) SetPath(_ context.Context, id int64, path string) error {
	if a.err != nil {
		return a.err
	}
	a.mu.Lock()
	a.paths[id] = path
	a.mu.Unlock()
	return nil
}

func (a *fakeAttachments) SetTitle(_ context.Context, id int64, title string) error {
	if a.err != nil {
		return a.err
	}
	a.mu.Lock()
	a.titles[id] = title
	a.mu.Unlock()
	return nil
}

type testEnv struct {
	dir         string
	codec       *fakeCodec
	counter     *naming.MemoryCounter
	audit       *recordingSink
	attachments *fakeAttachments
	pipeline    *Pipeline
}

func newTestEnv(t *testing.T, codec media.Codec, mutate func(*Settings)) *testEnv {
	t.Helper()
	env := &testEnv{
		dir:         t.TempDir(),
		counter:     naming.NewMemoryCounter(1),
		audit:       &recordingSink{},
		attachments: newFakeAttachments(),
	}
	if fc, ok := codec.(*fakeCodec); ok {
		env.codec = fc
	}

	settings := DefaultSettings()
	if mutate != nil {
		mutate(&settings)
	}

	p, err := New(Options{
		Settings:    settings,
		Codec:       codec,
		Counter:     env.counter,
		Audit:       env.audit,
		Attachments: env.attachments,
	})
	require.NoError(t, err)
	env.pipeline = p
	return env
}

func (e *testEnv) touch(t *testing.T, name string) string {
	t.Helper()
	path := filepath.Join(e.dir, name)
	require.NoError(t, os.WriteFile(path, []byte("source bytes"), 0o644))
	return path
}

func writeJPEG(t *testing.T, dir, name string, width, height int) string {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.SetNRGBA(x, y, color.NRGBA{R: uint8(x), G: uint8(y), B: 90, A: 255})
		}
	}
	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, jpeg.Encode(f, img, &jpeg.Options{Quality: 85}))
	return path
}
