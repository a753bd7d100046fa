package media

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"sync"

	"media-converter/internal/logging"

	"github.com/davidbyttow/govips/v2/vips"
)

var (
	vipsInitialized bool
	vipsInitMutex   sync.Mutex
	vipsAvailable   bool

	// vipsStartup panics when libvips can not be loaded.
	vipsStartup = vips.Startup
)

// InitVips starts libvips once per process and routes its log output
// through package logging at a matching verbosity. A failed start is
// reported as an error and may be retried.
func InitVips() (err error) {
	vipsInitMutex.Lock()
	defer vipsInitMutex.Unlock()

	if vipsInitialized {
		return nil
	}

	vipsLogLevel, logHandler := vipsLogging(logging.GetLevel())
	vips.LoggingSettings(logHandler, vipsLogLevel)

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("libvips startup failed: %v", r)
		}
	}()
	vipsStartup(&vips.Config{
		ConcurrencyLevel: 1,
		MaxCacheMem:      50 * 1024 * 1024,
		MaxCacheSize:     100,
	})

	vipsInitialized = true
	vipsAvailable = true
	logging.Info("libvips initialized successfully (version: %s)", vips.Version)
	return nil
}

func vipsLogging(level logging.LogLevel) (vips.LogLevel, func(string, vips.LogLevel, string)) {
	forward := func(domain string, l vips.LogLevel, msg string) {
		switch l {
		case vips.LogLevelError, vips.LogLevelCritical:
			logging.Error("[%s] %s", domain, msg)
		case vips.LogLevelWarning:
			logging.Warn("[%s] %s", domain, msg)
		default:
			logging.Debug("[%s] %s", domain, msg)
		}
	}

	switch level {
	case logging.LevelDebug:
		return vips.LogLevelInfo, forward
	case logging.LevelWarn:
		return vips.LogLevelError, forward
	case logging.LevelError:
		return vips.LogLevelCritical, forward
	default:
		return vips.LogLevelWarning, forward
	}
}

// ShutdownVips releases libvips. It can not be started again afterwards.
func ShutdownVips() {
	vipsInitMutex.Lock()
	defer vipsInitMutex.Unlock()

	if vipsInitialized {
		vips.Shutdown()
		vipsInitialized = false
		vipsAvailable = false
		logging.Info("libvips shutdown complete")
	}
}

// IsVipsAvailable returns whether libvips is initialized and available
func IsVipsAvailable() bool {
	vipsInitMutex.Lock()
	defer vipsInitMutex.Unlock()
	return vipsAvailable
}

// VipsCodec decodes and encodes through libvips. AVIF is available when the
// linked libvips was built with libheif AVIF support.
type VipsCodec struct{}

// NewVipsCodec returns a codec backed by libvips. InitVips must succeed first.
func NewVipsCodec() (*VipsCodec, error) {
	if !IsVipsAvailable() {
		return nil, errors.New("libvips not initialized")
	}
	return &VipsCodec{}, nil
}

// Name implements Codec.
func (c *VipsCodec) Name() string { return "vips" }

// Supports implements Codec.
func (c *VipsCodec) Supports(f Format) bool {
	switch f {
	case FormatJPEG:
		return vips.IsTypeSupported(vips.ImageTypeJPEG)
	case FormatPNG:
		return vips.IsTypeSupported(vips.ImageTypePNG)
	case FormatWebP:
		return vips.IsTypeSupported(vips.ImageTypeWEBP)
	case FormatAVIF:
		return vips.IsTypeSupported(vips.ImageTypeAVIF)
	}
	return false
}

// CanEncode implements Codec.
func (c *VipsCodec) CanEncode() bool {
	return vips.IsTypeSupported(vips.ImageTypeWEBP)
}

// Decode implements Codec. The content libvips detects must agree with
// format; a PNG named .jpg fails rather than decoding by accident.
func (c *VipsCodec) Decode(path string, format Format) (Raster, error) {
	if !c.Supports(format) {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}

	ref, err := vips.LoadImageFromFile(path, vips.NewImportParams())
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrDecode, filepath.Base(path), err)
	}

	if !vipsFormatMatches(ref.Format(), format) {
		ref.Close()
		return nil, fmt.Errorf("%w: %s is not %s", ErrDecode, filepath.Base(path), format)
	}

	if format == FormatPNG {
		if err := ref.ToColorSpace(vips.InterpretationSRGB); err != nil {
			ref.Close()
			return nil, fmt.Errorf("%w: %s: %w", ErrDecode, filepath.Base(path), err)
		}
	}

	return &vipsRaster{ref: ref}, nil
}

func vipsFormatMatches(detected vips.ImageType, want Format) bool {
	switch want {
	case FormatJPEG:
		return detected == vips.ImageTypeJPEG
	case FormatPNG:
		return detected == vips.ImageTypePNG
	case FormatWebP:
		return detected == vips.ImageTypeWEBP
	case FormatAVIF:
		// libvips loads AVIF through heifload.
		return detected == vips.ImageTypeAVIF || detected == vips.ImageTypeHEIF
	}
	return false
}

// Encode implements Codec.
func (c *VipsCodec) Encode(img Raster, path string, quality int) error {
	r, ok := img.(*vipsRaster)
	if !ok || r.ref == nil {
		return fmt.Errorf("%w: raster not produced by libvips", ErrEncode)
	}

	params := vips.NewWebpExportParams()
	params.Quality = quality
	params.StripMetadata = true

	buf, _, err := r.ref.ExportWebp(params)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrEncode, err)
	}

	return writeExclusive(path, func(w io.Writer) error {
		_, err := w.Write(buf)
		return err
	})
}

type vipsRaster struct {
	ref *vips.ImageRef
}

func (r *vipsRaster) Width() int  { return r.ref.Width() }
func (r *vipsRaster) Height() int { return r.ref.Height() }

func (r *vipsRaster) Scale(width, height int) (Raster, error) {
	scaled, err := r.ref.Copy()
	if err != nil {
		return nil, err
	}
	hscale := float64(width) / float64(r.ref.Width())
	vscale := float64(height) / float64(r.ref.Height())
	if err := scaled.ResizeWithVScale(hscale, vscale, vips.KernelLanczos3); err != nil {
		scaled.Close()
		return nil, err
	}
	return &vipsRaster{ref: scaled}, nil
}

func (r *vipsRaster) Release() {
	if r.ref != nil {
		r.ref.Close()
		r.ref = nil
	}
}
