package media

import (
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func gradient(width, height int, alpha uint8) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.SetNRGBA(x, y, color.NRGBA{R: uint8(x), G: uint8(y), B: 128, A: alpha})
		}
	}
	return img
}

func writeJPEG(t *testing.T, dir, name string, width, height int) string {
	t.Helper()
	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, jpeg.Encode(f, gradient(width, height, 255), &jpeg.Options{Quality: 90}))
	return path
}

func writePNG(t *testing.T, dir, name string, width, height int, alpha uint8) string {
	t.Helper()
	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, png.Encode(f, gradient(width, height, alpha)))
	return path
}

type fakeRaster struct {
	w, h     int
	released int
	scaleErr error
}

func (f *fakeRaster) Width() int  { return f.w }
func (f *fakeRaster) Height() int { return f.h }
func (f *fakeRaster) Release()    { f.released++ }
func (f *fakeRaster) Scale(w, h int) (Raster, error) {
	if f.scaleErr != nil {
		return nil, f.scaleErr
	}
	return &fakeRaster{w: w, h: h}, nil
}
