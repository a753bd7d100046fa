package convert

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"regexp"
	"testing"

	"media-converter/internal/media"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSettingsSanitize(t *testing.T) {
	tests := []struct {
		name string
		in   Settings
		want Settings
	}{
		{
			name: "defaults untouched",
			in:   DefaultSettings(),
			want: DefaultSettings(),
		},
		{
			name: "quality clamped high",
			in:   Settings{Quality: 150, FilePrefix: "x_"},
			want: Settings{Quality: 100, FilePrefix: "x_"},
		},
		{
			name: "quality clamped low",
			in:   Settings{Quality: 0, MaxDimension: 800},
			want: Settings{Quality: 1, MaxDimension: 800},
		},
		{
			name: "negative dimension disables resizing",
			in:   Settings{Quality: 80, MaxDimension: -5},
			want: Settings{Quality: 80, MaxDimension: 0},
		},
		{
			name: "prefix stripped",
			in:   Settings{Quality: 80, FilePrefix: "my pics/"},
			want: Settings{Quality: 80, FilePrefix: "mypics"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.in.Sanitize())
		})
	}
}

func TestNewRequiresCodec(t *testing.T) {
	_, err := New(Options{})
	assert.Error(t, err)

	p, err := New(Options{Codec: newFakeCodec(1, 1)})
	require.NoError(t, err)
	assert.NotNil(t, p.Names())
}

func TestNewNamesFilesWithSanitizedPrefix(t *testing.T) {
	env := newTestEnv(t, newFakeCodec(10, 10), func(s *Settings) { s.FilePrefix = "my pics/" })

	res := env.pipeline.Convert(context.Background(), Request{Path: env.touch(t, "a.png")})
	require.True(t, res.Success, "conversion failed: %v", res.Err)
	assert.Equal(t, "mypics001img.webp", filepath.Base(res.NewPath))
	assert.True(t, env.pipeline.Names().Generated(res.NewPath))
	assert.False(t, env.pipeline.Names().Generated(filepath.Join(env.dir, "wpcm_001img.webp")))
}

func TestConvertJPEGEndToEnd(t *testing.T) {
	env := newTestEnv(t, media.NewNativeCodec(), nil)
	src := writeJPEG(t, env.dir, "holiday.jpg", 2000, 1000)

	res := env.pipeline.Convert(context.Background(), Request{Path: src, DeclaredFormat: "image/jpeg", AttachmentID: 7})
	require.True(t, res.Success, "conversion failed: %v", res.Err)

	assert.Equal(t, OK, res.Kind)
	assert.Equal(t, filepath.Join(env.dir, "wpcm_001img.webp"), res.NewPath)
	assert.Equal(t, "webp", res.NewFormat)
	assert.Equal(t, "wpcm_001img", res.Title)
	assert.Equal(t, 1200, res.Width)
	assert.Equal(t, 600, res.Height)

	dims, err := media.Probe(res.NewPath)
	require.NoError(t, err)
	assert.Equal(t, 1200, dims.Width)
	assert.Equal(t, 600, dims.Height)

	sniffed, err := media.Sniff(res.NewPath)
	require.NoError(t, err)
	assert.Equal(t, media.FormatWebP, sniffed)

	_, err = os.Stat(src)
	assert.True(t, errors.Is(err, os.ErrNotExist), "original should be deleted")

	assert.Equal(t, res.NewPath, env.attachments.paths[7])
	assert.Equal(t, "wpcm_001img", env.attachments.titles[7])
	assert.Contains(t, env.audit.all(), "Resized to 1200x600")
	assert.Contains(t, env.audit.all(), "Converted to WebP: holiday.jpg -> wpcm_001img.webp")

	next, err := env.counter.Current(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, next)
}

func TestConvertOversizedWebPIsReprocessed(t *testing.T) {
	codec := media.NewNativeCodec()
	env := newTestEnv(t, codec, func(s *Settings) { s.DeleteOriginals = false })

	jpg := writeJPEG(t, env.dir, "wide.jpg", 1500, 100)
	img, err := codec.Decode(jpg, media.FormatJPEG)
	require.NoError(t, err)
	big := filepath.Join(env.dir, "big.webp")
	require.NoError(t, codec.Encode(img, big, 80))
	img.Release()

	res := env.pipeline.Convert(context.Background(), Request{Path: big})
	require.True(t, res.Success, "conversion failed: %v", res.Err)
	assert.Equal(t, 1200, res.Width)
	assert.Equal(t, 80, res.Height)

	again := env.pipeline.Convert(context.Background(), Request{Path: res.NewPath})
	assert.Equal(t, AlreadyConverted, again.Kind)
	assert.ErrorIs(t, again.Err, ErrAlreadyConverted)
}

func TestConvertFailures(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		declare string
		setup   func(c *fakeCodec)
		kind    Kind
		target  error
	}{
		{name: "missing file", kind: NotFound, target: ErrNotFound},
		{name: "unknown extension", file: "notes.txt", kind: UnsupportedFormat, target: media.ErrUnsupportedFormat},
		{name: "gif has no decoder", file: "anim.gif", kind: UnsupportedFormat, target: media.ErrUnsupportedFormat},
		{name: "declared mime wins", file: "photo.jpg", declare: "image/gif", kind: UnsupportedFormat, target: media.ErrUnsupportedFormat},
		{name: "small webp", file: "done.webp", kind: AlreadyConverted, target: ErrAlreadyConverted},
		{
			name:   "corrupt source",
			file:   "broken.jpg",
			setup:  func(c *fakeCodec) { c.decodeErr = media.ErrDecode },
			kind:   DecodeFailed,
			target: media.ErrDecode,
		},
		{
			name:   "encoder rejects",
			file:   "photo.png",
			setup:  func(c *fakeCodec) { c.encodeErrs = []error{media.ErrEncode} },
			kind:   EncodeFailed,
			target: media.ErrEncode,
		},
		{
			name:   "disk unavailable",
			file:   "photo.avif",
			setup:  func(c *fakeCodec) { c.encodeErrs = []error{media.ErrStorageUnavailable} },
			kind:   StorageUnavailable,
			target: media.ErrStorageUnavailable,
		},
		{
			name:   "resize failure",
			file:   "huge.jpg",
			setup:  func(c *fakeCodec) { c.width, c.scaleErr = 5000, errors.New("out of memory") },
			kind:   EncodeFailed,
			target: media.ErrEncode,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			codec := newFakeCodec(800, 600)
			if tt.setup != nil {
				tt.setup(codec)
			}
			env := newTestEnv(t, codec, nil)

			src := filepath.Join(env.dir, "absent.jpg")
			if tt.file != "" {
				src = env.touch(t, tt.file)
			}

			res := env.pipeline.Convert(context.Background(), Request{Path: src, DeclaredFormat: tt.declare, AttachmentID: 3})

			assert.False(t, res.Success)
			assert.Equal(t, tt.kind, res.Kind)
			assert.ErrorIs(t, res.Err, tt.target)
			assert.NotEmpty(t, res.Reason)
			assert.Zero(t, codec.outstanding(), "every raster must be released")
			assert.Zero(t, codec.doubleRelease)
			assert.Empty(t, env.attachments.paths)

			if tt.file != "" {
				_, err := os.Stat(src)
				assert.NoError(t, err, "source must be left in place")
			}
			matches, err := filepath.Glob(filepath.Join(env.dir, "wpcm_*"))
			require.NoError(t, err)
			assert.Empty(t, matches, "no output may be left behind")
		})
	}
}

func TestConvertDecodeFailureKeepsCounter(t *testing.T) {
	codec := newFakeCodec(10, 10)
	codec.decodeErr = media.ErrDecode
	env := newTestEnv(t, codec, nil)

	env.pipeline.Convert(context.Background(), Request{Path: env.touch(t, "bad.png")})

	next, err := env.counter.Current(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, next)
	assert.Contains(t, env.audit.all(), "Failed to load image: bad.png")
}

func TestConvertReleasesOnceOnSuccess(t *testing.T) {
	codec := newFakeCodec(3000, 1500)
	env := newTestEnv(t, codec, nil)

	res := env.pipeline.Convert(context.Background(), Request{Path: env.touch(t, "a.jpg")})
	require.True(t, res.Success)

	assert.Equal(t, 2, codec.created, "decode plus one resized copy")
	assert.Zero(t, codec.outstanding())
	assert.Zero(t, codec.doubleRelease)
	assert.Equal(t, 1200, res.Width)
	assert.Equal(t, 600, res.Height)
}

func TestConvertRerollsTakenDestination(t *testing.T) {
	codec := newFakeCodec(100, 100)
	env := newTestEnv(t, codec, nil)

	first := true
	codec.beforeEncode = func(path string) {
		if first {
			first = false
			require.NoError(t, os.WriteFile(path, []byte("racer"), 0o644))
		}
	}

	res := env.pipeline.Convert(context.Background(), Request{Path: env.touch(t, "b.png")})
	require.True(t, res.Success, "conversion failed: %v", res.Err)

	assert.Regexp(t, regexp.MustCompile(`^wpcm_001img-[a-z]{3}\.webp$`), filepath.Base(res.NewPath))
	racer, err := os.ReadFile(filepath.Join(env.dir, "wpcm_001img.webp"))
	require.NoError(t, err)
	assert.Equal(t, "racer", string(racer), "existing file must not be overwritten")
}

func TestConvertRepeatedCollisionsKeepSingleSuffix(t *testing.T) {
	codec := newFakeCodec(100, 100)
	env := newTestEnv(t, codec, nil)

	collisions := 2
	codec.beforeEncode = func(path string) {
		if collisions > 0 {
			collisions--
			require.NoError(t, os.WriteFile(path, []byte("racer"), 0o644))
		}
	}

	res := env.pipeline.Convert(context.Background(), Request{Path: env.touch(t, "c.png")})
	require.True(t, res.Success, "conversion failed: %v", res.Err)
	assert.Regexp(t, regexp.MustCompile(`^wpcm_001img-[a-z]{3}\.webp$`), filepath.Base(res.NewPath))
}

func TestConvertKeepsOriginalWhenConfigured(t *testing.T) {
	codec := newFakeCodec(100, 100)
	env := newTestEnv(t, codec, func(s *Settings) { s.DeleteOriginals = false })
	src := env.touch(t, "keep.jpg")

	res := env.pipeline.Convert(context.Background(), Request{Path: src})
	require.True(t, res.Success)

	_, err := os.Stat(src)
	assert.NoError(t, err)
	_, err = os.Stat(res.NewPath)
	assert.NoError(t, err)
}

func TestConvertWithoutResizeBound(t *testing.T) {
	codec := newFakeCodec(4000, 3000)
	env := newTestEnv(t, codec, func(s *Settings) { s.MaxDimension = 0 })

	res := env.pipeline.Convert(context.Background(), Request{Path: env.touch(t, "c.jpg")})
	require.True(t, res.Success)
	assert.Equal(t, 4000, res.Width)
	assert.Equal(t, 3000, res.Height)
	assert.Equal(t, 1, codec.created)
	for _, line := range env.audit.all() {
		assert.NotContains(t, line, "Resized to")
	}
}

func TestConvertSucceedsWhenAttachmentUpdateFails(t *testing.T) {
	codec := newFakeCodec(100, 100)
	env := newTestEnv(t, codec, nil)
	env.attachments.err = errors.New("database is locked")

	res := env.pipeline.Convert(context.Background(), Request{Path: env.touch(t, "d.jpg"), AttachmentID: 9})
	assert.True(t, res.Success)
}

func TestConvertSequentialNames(t *testing.T) {
	codec := newFakeCodec(50, 50)
	env := newTestEnv(t, codec, nil)

	var names []string
	for _, f := range []string{"1.jpg", "2.png", "3.avif"} {
		res := env.pipeline.Convert(context.Background(), Request{Path: env.touch(t, f)})
		require.True(t, res.Success)
		names = append(names, filepath.Base(res.NewPath))
	}
	assert.Equal(t, []string{"wpcm_001img.webp", "wpcm_002img.webp", "wpcm_003img.webp"}, names)
}

func TestConvertDisabledLoggingWritesNothing(t *testing.T) {
	codec := newFakeCodec(50, 50)
	env := newTestEnv(t, codec, func(s *Settings) { s.EnableLogging = false })

	res := env.pipeline.Convert(context.Background(), Request{Path: env.touch(t, "quiet.jpg")})
	require.True(t, res.Success)
	assert.Empty(t, env.audit.all())
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "converted", OK.String())
	assert.Equal(t, "storage_unavailable", StorageUnavailable.String())
	assert.Equal(t, "unknown", Kind(99).String())
}
