package chart

import (
	"image"
	"image/color"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"yaticker/internal/domain"
)

func seriesSpanning(span time.Duration, n int) domain.Series {
	t0 := time.Date(2024, 5, 6, 9, 30, 0, 0, time.UTC)
	s := domain.Series{Symbol: "FOO"}
	for i := 0; i < n; i++ {
		ts := t0
		if n > 1 {
			ts = t0.Add(span * time.Duration(i) / time.Duration(n-1))
		}
		s.Bars = append(s.Bars, domain.Bar{
			Timestamp: ts,
			Close:     100 + float64(i%7),
			Volume:    int64(1000 * (i + 1)),
		})
	}
	return s
}

func TestTickLayoutBoundary(t *testing.T) {
	tests := []struct {
		name string
		span time.Duration
		want string
	}{
		{"intraday", 6 * time.Hour, TimeOfDayLayout},
		{"exactly one day", 24 * time.Hour, TimeOfDayLayout},
		{"one day and a minute", 24*time.Hour + time.Minute, DayMonthLayout},
		{"five days", 5 * 24 * time.Hour, DayMonthLayout},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, TickLayout(seriesSpanning(tt.span, 10)))
		})
	}
	assert.Equal(t, TimeOfDayLayout, TickLayout(domain.Series{}))
}

func TestTightCrop(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 50, 40))
	for y := 0; y < 40; y++ {
		for x := 0; x < 50; x++ {
			img.Set(x, y, color.White)
		}
	}
	for x := 10; x < 20; x++ {
		img.Set(x, 15, color.Black)
	}

	out := TightCrop(img, 2)
	assert.Equal(t, image.Rect(0, 0, 14, 5), out.Bounds())

	// Pad is clipped to the source bounds.
	out = TightCrop(img, 100)
	assert.Equal(t, image.Rect(0, 0, 50, 40), out.Bounds())
}

func TestTightCropBlankImageUnchanged(t *testing.T) {
	img := image.NewGray(image.Rect(0, 0, 8, 8))
	for i := range img.Pix {
		img.Pix[i] = 0xff
	}
	assert.Equal(t, img, TightCrop(img, 1))
}

func TestPlotterRender(t *testing.T) {
	p := NewPlotter(true)
	s := seriesSpanning(5*24*time.Hour, 40)

	img, err := p.Render(s, SizeFromPixels(264, 116, 117), 117)
	require.NoError(t, err)
	b := img.Bounds()
	assert.Positive(t, b.Dx())
	assert.Positive(t, b.Dy())
	assert.LessOrEqual(t, b.Dx(), 264)
	assert.LessOrEqual(t, b.Dy(), 116)
}

func TestPlotterRenderSingleBar(t *testing.T) {
	_, err := NewPlotter(false).Render(seriesSpanning(0, 1), SizeFromPixels(200, 100, 100), 100)
	require.NoError(t, err)
}

func TestPlotterRenderEmpty(t *testing.T) {
	_, err := NewPlotter(false).Render(domain.Series{}, SizeFromPixels(200, 100, 100), 100)
	require.Error(t, err)
}

func TestPlotterConvergesNearTarget(t *testing.T) {
	p := NewPlotter(false)
	s := seriesSpanning(6*time.Hour, 30)
	target := SizeFromPixels(264, 116, 117)

	res, err := Converge(p.RenderFunc(s, 117), target, 117, Options{})
	if err != nil {
		// Pixel rounding can stall one pixel short; the raster must still
		// be close to the footprint.
		require.ErrorIs(t, err, ErrSizeConvergence)
	}
	require.NotNil(t, res.Image)
	b := res.Image.Bounds()
	assert.InDelta(t, 264, b.Dx(), 8)
	assert.InDelta(t, 116, b.Dy(), 8)
}
