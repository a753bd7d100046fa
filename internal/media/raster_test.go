package media

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFitWithin(t *testing.T) {
	tests := []struct {
		name         string
		w, h, max    int
		wantW, wantH int
		wantResized  bool
	}{
		{"disabled", 5000, 3000, 0, 5000, 3000, false},
		{"within bounds", 800, 600, 1200, 800, 600, false},
		{"exactly max", 1200, 1200, 1200, 1200, 1200, false},
		{"landscape", 2000, 1000, 1200, 1200, 600, true},
		{"portrait", 1000, 2000, 1200, 600, 1200, true},
		{"square", 3000, 3000, 1200, 1200, 1200, true},
		{"truncates", 1999, 1000, 1200, 1200, 600, true},
		{"portrait truncates", 1000, 1999, 1200, 600, 1200, true},
		{"one side over", 1300, 200, 1200, 1200, 184, true},
		{"extreme aspect", 10000, 2, 100, 100, 1, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, h, resized := FitWithin(tt.w, tt.h, tt.max)
			assert.Equal(t, tt.wantW, w)
			assert.Equal(t, tt.wantH, h)
			assert.Equal(t, tt.wantResized, resized)
		})
	}
}

func TestFitWithinPreservesAspect(t *testing.T) {
	for w := 1201; w < 4000; w += 137 {
		for h := 50; h < w; h += 211 {
			nw, nh, resized := FitWithin(w, h, 1200)
			require.True(t, resized)
			assert.Equal(t, 1200, nw)
			expected := float64(h) * 1200 / float64(w)
			assert.InDelta(t, expected, float64(nh), 1.0, "%dx%d", w, h)
		}
	}
}

func TestResizeIfNeededNoop(t *testing.T) {
	img := &fakeRaster{w: 640, h: 480}

	out, err := ResizeIfNeeded(img, 0)
	require.NoError(t, err)
	assert.Same(t, img, out)

	out, err = ResizeIfNeeded(img, 1200)
	require.NoError(t, err)
	assert.Same(t, img, out)
	assert.Zero(t, img.released)
}

func TestResizeIfNeededReleasesOriginal(t *testing.T) {
	img := &fakeRaster{w: 2000, h: 1000}

	out, err := ResizeIfNeeded(img, 1200)
	require.NoError(t, err)
	assert.Equal(t, 1200, out.Width())
	assert.Equal(t, 600, out.Height())
	assert.Equal(t, 1, img.released)
	assert.Zero(t, out.(*fakeRaster).released)
}

func TestResizeIfNeededScaleFailureKeepsOriginal(t *testing.T) {
	img := &fakeRaster{w: 2000, h: 1000, scaleErr: errors.New("out of memory")}

	out, err := ResizeIfNeeded(img, 1200)
	require.Error(t, err)
	assert.Same(t, img, out)
	assert.Zero(t, img.released, "caller still owns the original")
}
