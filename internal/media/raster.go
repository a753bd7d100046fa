package media

import (
	"fmt"

	"media-converter/internal/logging"
)

// Raster is a decoded image owned by exactly one caller. Release must be
// called once the raster is no longer needed.
type Raster interface {
	Width() int
	Height() int
	// Scale returns a new raster of the given size. The receiver is left
	// untouched and still owned by the caller.
	Scale(width, height int) (Raster, error)
	Release()
}

// Codec decodes sources and encodes rasters to the target format.
type Codec interface {
	Name() string
	// Supports reports whether Decode can handle f in this process.
	Supports(f Format) bool
	// CanEncode reports whether the target format can be written.
	CanEncode() bool
	Decode(path string, format Format) (Raster, error)
	// Encode writes img to path at quality (1-100). The destination is
	// created exclusively; a partial file is removed on failure.
	Encode(img Raster, path string, quality int) error
}

// FitWithin computes the size of a w x h image bounded by maxDimension.
// A zero bound, or an image already within it, is returned unchanged with
// resized false. Otherwise the longer side becomes maxDimension and the
// shorter side is scaled by the same ratio, truncated.
func FitWithin(width, height, maxDimension int) (int, int, bool) {
	if maxDimension <= 0 || (width <= maxDimension && height <= maxDimension) {
		return width, height, false
	}
	if width <= 0 || height <= 0 {
		return width, height, false
	}

	ratio := float64(width) / float64(height)
	newWidth, newHeight := maxDimension, maxDimension
	if width > height {
		newHeight = int(float64(maxDimension) / ratio)
	} else {
		newWidth = int(float64(maxDimension) * ratio)
	}

	return max(newWidth, 1), max(newHeight, 1), true
}

// ResizeIfNeeded bounds img by maxDimension. When a resized copy is made the
// original is released and the copy returned. If scaling fails the original
// is returned, still owned by the caller, together with the error.
func ResizeIfNeeded(img Raster, maxDimension int) (Raster, error) {
	width, height, resize := FitWithin(img.Width(), img.Height(), maxDimension)
	if !resize {
		return img, nil
	}

	scaled, err := img.Scale(width, height)
	if err != nil {
		return img, fmt.Errorf("resize to %dx%d: %w", width, height, err)
	}

	logging.Debug("Resized %dx%d to %dx%d", img.Width(), img.Height(), width, height)
	img.Release()
	return scaled, nil
}
