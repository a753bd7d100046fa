package media

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	xwebp "golang.org/x/image/webp"
)

func TestNativeCodecSupports(t *testing.T) {
	c := NewNativeCodec()
	assert.True(t, c.Supports(FormatJPEG))
	assert.True(t, c.Supports(FormatPNG))
	assert.True(t, c.Supports(FormatWebP))
	assert.False(t, c.Supports(FormatAVIF))
	assert.False(t, c.Supports(FormatGIF))
	assert.True(t, c.CanEncode())
	require.NoError(t, CheckCapabilities(c))
}

func TestNativeCodecRoundTrip(t *testing.T) {
	dir := t.TempDir()
	src := writeJPEG(t, dir, "photo.jpg", 300, 150)
	c := NewNativeCodec()

	img, err := c.Decode(src, FormatJPEG)
	require.NoError(t, err)

	img, err = ResizeIfNeeded(img, 100)
	require.NoError(t, err)
	assert.Equal(t, 100, img.Width())
	assert.Equal(t, 50, img.Height())

	dst := filepath.Join(dir, "out.webp")
	require.NoError(t, c.Encode(img, dst, 85))
	img.Release()

	f, err := os.Open(dst)
	require.NoError(t, err)
	defer f.Close()
	cfg, err := xwebp.DecodeConfig(f)
	require.NoError(t, err)
	assert.Equal(t, 100, cfg.Width)
	assert.Equal(t, 50, cfg.Height)

	dims, err := Probe(dst)
	require.NoError(t, err)
	assert.Equal(t, 100, dims.Width)
}

func TestNativeCodecPNGWithAlpha(t *testing.T) {
	dir := t.TempDir()
	src := writePNG(t, dir, "logo.png", 40, 20, 100)
	c := NewNativeCodec()

	img, err := c.Decode(src, FormatPNG)
	require.NoError(t, err)
	defer img.Release()

	require.NoError(t, c.Encode(img, filepath.Join(dir, "logo.webp"), 90))
}

func TestNativeCodecDecodeErrors(t *testing.T) {
	dir := t.TempDir()
	c := NewNativeCodec()

	corrupt := filepath.Join(dir, "broken.png")
	require.NoError(t, os.WriteFile(corrupt, []byte("\x89PNG\r\n\x1a\ngarbage"), 0o644))
	_, err := c.Decode(corrupt, FormatPNG)
	assert.ErrorIs(t, err, ErrDecode)

	mislabeled := writePNG(t, dir, "really-png.jpg", 8, 8, 255)
	_, err = c.Decode(mislabeled, FormatJPEG)
	assert.ErrorIs(t, err, ErrDecode)

	_, err = c.Decode(filepath.Join(dir, "missing.jpg"), FormatJPEG)
	assert.ErrorIs(t, err, ErrDecode)

	_, err = c.Decode(filepath.Join(dir, "anim.gif"), FormatGIF)
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestNativeCodecEncodeExclusive(t *testing.T) {
	dir := t.TempDir()
	src := writeJPEG(t, dir, "photo.jpg", 10, 10)
	c := NewNativeCodec()

	img, err := c.Decode(src, FormatJPEG)
	require.NoError(t, err)
	defer img.Release()

	dst := filepath.Join(dir, "taken.webp")
	require.NoError(t, os.WriteFile(dst, []byte("keep me"), 0o644))

	err = c.Encode(img, dst, 85)
	assert.ErrorIs(t, err, ErrDestinationExists)
	data, _ := os.ReadFile(dst)
	assert.Equal(t, "keep me", string(data))

	err = c.Encode(img, filepath.Join(dir, "no-such-dir", "x.webp"), 85)
	assert.ErrorIs(t, err, ErrStorageUnavailable)
}

func TestEncodeRejectsForeignRaster(t *testing.T) {
	err := NewNativeCodec().Encode(&fakeRaster{w: 1, h: 1}, filepath.Join(t.TempDir(), "x.webp"), 85)
	assert.ErrorIs(t, err, ErrEncode)
}

func TestNewCodec(t *testing.T) {
	c, err := NewCodec("native")
	require.NoError(t, err)
	assert.Equal(t, "native", c.Name())

	_, err = NewCodec("imagemagick")
	assert.Error(t, err)
}
