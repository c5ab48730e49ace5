package chart

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"math"
	"time"

	gochart "github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"yaticker/internal/domain"
)

// Tick label layouts for the time axis.
const (
	TimeOfDayLayout = "15:04"
	DayMonthLayout  = "2/1"
)

// TickLayout picks the x-axis label layout for a series. A span strictly
// longer than one day is labelled by day/month, anything shorter or equal by
// time of day.
func TickLayout(s domain.Series) string {
	if s.Span() > 24*time.Hour {
		return DayMonthLayout
	}
	return TimeOfDayLayout
}

// Plotter renders a borderless close-price line chart, optionally with the
// traded volume on a secondary axis, and crops the result to its inked
// bounding box plus Pad pixels.
type Plotter struct {
	ShowVolume bool
	FontSize   float64 // tick label size in points
	Pad        int     // blank margin kept around the crop
}

// NewPlotter returns a Plotter with the panel's defaults.
func NewPlotter(showVolume bool) Plotter {
	return Plotter{ShowVolume: showVolume, FontSize: 8, Pad: 2}
}

// Render draws s with a size hint of hint inches at dpi.
func (p Plotter) Render(s domain.Series, hint Size, dpi float64) (image.Image, error) {
	if s.Empty() {
		return nil, errors.New("no bars to plot")
	}
	w, h := hint.Pixels(dpi)
	if w <= 0 || h <= 0 {
		return nil, fmt.Errorf("invalid chart size %dx%d", w, h)
	}

	xs := make([]time.Time, len(s.Bars))
	closes := make([]float64, len(s.Bars))
	volumes := make([]float64, len(s.Bars))
	for i, b := range s.Bars {
		xs[i] = b.Timestamp
		closes[i] = b.Close
		volumes[i] = float64(b.Volume)
	}
	if len(xs) == 1 {
		// A single sample has no x range; draw it as a flat segment.
		xs = append(xs, xs[0].Add(time.Minute))
		closes = append(closes, closes[0])
		volumes = append(volumes, volumes[0])
	}

	ink := drawing.ColorBlack
	tickStyle := gochart.Style{FontSize: p.FontSize, FontColor: ink}
	layout := TickLayout(s)

	ch := gochart.Chart{
		Width:  w,
		Height: h,
		DPI:    dpi,
		Background: gochart.Style{
			FillColor: drawing.ColorWhite,
			Padding:   gochart.Box{Top: 4, Left: 4, Right: 4, Bottom: 4},
		},
		Canvas: gochart.Style{FillColor: drawing.ColorWhite},
		XAxis: gochart.XAxis{
			Style:          tickStyle,
			ValueFormatter: gochart.TimeValueFormatterWithFormat(layout),
		},
		YAxis: gochart.YAxis{
			Style: tickStyle,
			Range: flatSafeRange(closes),
		},
		Series: []gochart.Series{
			gochart.TimeSeries{
				Name:    s.Symbol,
				XValues: xs,
				YValues: closes,
				Style:   gochart.Style{StrokeColor: ink, StrokeWidth: 1},
			},
		},
	}
	if p.ShowVolume {
		ch.YAxisSecondary = gochart.YAxis{Style: gochart.Style{Hidden: true}, Range: volumeRange(volumes)}
		ch.Series = append(ch.Series, gochart.TimeSeries{
			Name:    "volume",
			YAxis:   gochart.YAxisSecondary,
			XValues: xs,
			YValues: volumes,
			Style:   gochart.Style{StrokeColor: ink, StrokeWidth: 1},
		})
	}

	var buf bytes.Buffer
	if err := ch.Render(gochart.PNG, &buf); err != nil {
		return nil, fmt.Errorf("rendering chart: %w", err)
	}
	img, err := png.Decode(&buf)
	if err != nil {
		return nil, fmt.Errorf("decoding chart: %w", err)
	}
	return TightCrop(img, p.Pad), nil
}

// RenderFunc binds s and dpi so the plotter can be driven by Converge.
func (p Plotter) RenderFunc(s domain.Series, dpi float64) RenderFunc {
	return func(hint Size) (image.Image, error) {
		return p.Render(s, hint, dpi)
	}
}

// flatSafeRange widens a zero-height value range so the axis can be drawn.
func flatSafeRange(vs []float64) gochart.Range {
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, v := range vs {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	if hi > lo {
		return nil
	}
	return &gochart.ContinuousRange{Min: lo - 1, Max: hi + 1}
}

// volumeBand is the secondary axis span as a multiple of the peak volume.
const volumeBand = 4

// volumeRange scales volumes so the peak reaches a quarter of the chart
// height and the volume line stays in the bottom band.
func volumeRange(vs []float64) gochart.Range {
	top := 0.0
	for _, v := range vs {
		top = math.Max(top, v)
	}
	if top <= 0 {
		top = 1
	}
	return &gochart.ContinuousRange{Min: 0, Max: volumeBand * top}
}

// ---------------------------------------------------------------------------
// Tight bounding box
// ---------------------------------------------------------------------------

// TightCrop trims the uniform white border of img and keeps pad blank pixels
// on each side. An image with no ink is returned unchanged.
func TightCrop(img image.Image, pad int) image.Image {
	b := img.Bounds()
	box := image.Rectangle{Min: b.Max, Max: b.Min}
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			if isWhite(img.At(x, y)) {
				continue
			}
			box.Min.X = min(box.Min.X, x)
			box.Min.Y = min(box.Min.Y, y)
			box.Max.X = max(box.Max.X, x+1)
			box.Max.Y = max(box.Max.Y, y+1)
		}
	}
	if box.Empty() {
		return img
	}
	box = image.Rect(box.Min.X-pad, box.Min.Y-pad, box.Max.X+pad, box.Max.Y+pad).Intersect(b)

	out := image.NewRGBA(image.Rect(0, 0, box.Dx(), box.Dy()))
	for y := 0; y < box.Dy(); y++ {
		for x := 0; x < box.Dx(); x++ {
			out.Set(x, y, img.At(box.Min.X+x, box.Min.Y+y))
		}
	}
	return out
}

func isWhite(c color.Color) bool {
	r, g, b, a := c.RGBA()
	if a == 0 {
		return true
	}
	const near = 0xf000
	return r >= near && g >= near && b >= near
}
