package media

import (
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"io"
	"os"
	"path/filepath"

	"media-converter/internal/filesystem"
	"media-converter/internal/logging"

	"github.com/disintegration/imaging"
	"github.com/kolesa-team/go-webp/encoder"
	"github.com/kolesa-team/go-webp/webp"
	xwebp "golang.org/x/image/webp"
)

// NativeCodec decodes with the Go image packages and encodes WebP through
// libwebp. It has no AVIF decoder.
type NativeCodec struct{}

// NewNativeCodec returns the pure-Go decoding codec.
func NewNativeCodec() *NativeCodec {
	return &NativeCodec{}
}

// Name implements Codec.
func (c *NativeCodec) Name() string { return "native" }

// Supports implements Codec.
func (c *NativeCodec) Supports(f Format) bool {
	switch f {
	case FormatJPEG, FormatPNG, FormatWebP:
		return true
	}
	return false
}

// CanEncode implements Codec.
func (c *NativeCodec) CanEncode() bool { return true }

var nativeDecoders = map[Format]func(io.Reader) (image.Image, error){
	FormatJPEG: jpeg.Decode,
	FormatPNG:  png.Decode,
	FormatWebP: xwebp.Decode,
}

// Decode implements Codec. PNG sources are promoted to NRGBA so alpha
// survives the resize and encode.
func (c *NativeCodec) Decode(path string, format Format) (Raster, error) {
	decode, ok := nativeDecoders[format]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}

	file, err := filesystem.OpenWithRetry(path, filesystem.DefaultRetryConfig())
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecode, err)
	}
	defer func() {
		if err := file.Close(); err != nil {
			logging.Warn("failed to close image file %s: %v", path, err)
		}
	}()

	img, err := decode(file)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrDecode, filepath.Base(path), err)
	}

	if format == FormatPNG {
		img = imaging.Clone(img)
	}

	return &nativeRaster{img: img}, nil
}

// Encode implements Codec.
func (c *NativeCodec) Encode(img Raster, path string, quality int) error {
	r, ok := img.(*nativeRaster)
	if !ok || r.img == nil {
		return fmt.Errorf("%w: raster not produced by the native codec", ErrEncode)
	}

	options, err := encoder.NewLossyEncoderOptions(encoder.PresetDefault, float32(quality))
	if err != nil {
		return fmt.Errorf("%w: %w", ErrEncode, err)
	}

	// libwebp imports RGBA pixel buffers only.
	src := r.img
	switch src.(type) {
	case *image.NRGBA, *image.RGBA:
	default:
		src = imaging.Clone(src)
	}

	return writeExclusive(path, func(w io.Writer) error {
		return webp.Encode(w, src, options)
	})
}

type nativeRaster struct {
	img image.Image
}

func (r *nativeRaster) Width() int  { return r.img.Bounds().Dx() }
func (r *nativeRaster) Height() int { return r.img.Bounds().Dy() }

func (r *nativeRaster) Scale(width, height int) (Raster, error) {
	if r.img == nil {
		return nil, fmt.Errorf("raster already released")
	}
	return &nativeRaster{img: imaging.Resize(r.img, width, height, imaging.Lanczos)}, nil
}

func (r *nativeRaster) Release() {
	r.img = nil
}

// ImageDimensions holds image width and height
type ImageDimensions struct {
	Width  int
	Height int
}

// Probe returns image dimensions without decoding pixel data.
func Probe(path string) (*ImageDimensions, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	config, _, err := image.DecodeConfig(file)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecode, err)
	}

	return &ImageDimensions{Width: config.Width, Height: config.Height}, nil
}
