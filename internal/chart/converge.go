// Package chart renders price charts and makes the plotting engine hit an
// exact pixel footprint.
//
// The plotting engine only takes a size hint: tick labels, padding and the
// tight bounding-box crop mean the raster it returns rarely matches the
// hint. Converge iterates on the hint until the realized size is within a
// tolerance of the target, or gives up.
package chart

import (
	"errors"
	"fmt"
	"image"
	"math"
)

// ErrSizeConvergence is returned when Converge cannot reach the target size.
// The accompanying Result still carries the last rendered image.
var ErrSizeConvergence = errors.New("chart size did not converge")

// Size is a width/height pair in inches.
type Size struct {
	W, H float64
}

// Pixels converts s to whole pixels at dpi.
func (s Size) Pixels(dpi float64) (int, int) {
	return int(math.Round(s.W * dpi)), int(math.Round(s.H * dpi))
}

// SizeFromPixels converts a pixel footprint to inches at dpi.
func SizeFromPixels(w, h int, dpi float64) Size {
	return Size{W: float64(w) / dpi, H: float64(h) / dpi}
}

// Measure returns the realized size of img in inches at dpi.
func Measure(img image.Image, dpi float64) Size {
	b := img.Bounds()
	return SizeFromPixels(b.Dx(), b.Dy(), dpi)
}

// RenderFunc renders a chart at the given size hint.
type RenderFunc func(hint Size) (image.Image, error)

// Options tunes Converge. Zero fields take the defaults.
type Options struct {
	Epsilon   float64 // tolerance on |dw|+|dh|, inches
	GiveUp    int     // window of non-improving deltas that ends the search
	MinPixels float64 // smallest hint, in pixels, that may be requested
}

// DefaultOptions are the settings used when Options fields are zero.
var DefaultOptions = Options{Epsilon: 0.01, GiveUp: 2, MinPixels: 10}

func (o Options) withDefaults() Options {
	if o.Epsilon <= 0 {
		o.Epsilon = DefaultOptions.Epsilon
	}
	if o.GiveUp <= 0 {
		o.GiveUp = DefaultOptions.GiveUp
	}
	if o.MinPixels <= 0 {
		o.MinPixels = DefaultOptions.MinPixels
	}
	return o
}

// Result is the outcome of Converge.
type Result struct {
	Image      image.Image // last rendered raster, also set on failure
	Hint       Size        // hint that produced Image
	Iterations int
	Deltas     []float64
}

// Converge renders repeatedly, scaling the hint on each axis by
// target/actual, until the summed absolute error drops below the tolerance.
//
// It fails with ErrSizeConvergence when the last GiveUp deltas are
// non-decreasing, or when the next hint would fall below MinPixels on either
// axis. A delta sequence that alternates up and down never trips the
// non-decreasing check, so a renderer that oscillates between two sizes
// forever will keep this loop running. Renderers are expected to be
// deterministic and contractive around the target.
func Converge(render RenderFunc, target Size, dpi float64, opts Options) (Result, error) {
	if target.W <= 0 || target.H <= 0 || dpi <= 0 {
		return Result{}, fmt.Errorf("%w: invalid target %.3fx%.3f in at %.0f dpi", ErrSizeConvergence, target.W, target.H, dpi)
	}
	opts = opts.withDefaults()

	var res Result
	hint := target
	for {
		img, err := render(hint)
		if err != nil {
			return res, fmt.Errorf("rendering at %.3fx%.3f in: %w", hint.W, hint.H, err)
		}
		res.Image = img
		res.Hint = hint
		res.Iterations++

		actual := Measure(img, dpi)
		if actual.W <= 0 || actual.H <= 0 {
			return res, fmt.Errorf("%w: empty raster", ErrSizeConvergence)
		}

		hint.W *= target.W / actual.W
		hint.H *= target.H / actual.H

		delta := math.Abs(actual.W-target.W) + math.Abs(actual.H-target.H)
		res.Deltas = append(res.Deltas, delta)

		if delta < opts.Epsilon {
			return res, nil
		}
		if stalled(res.Deltas, opts.GiveUp) {
			return res, fmt.Errorf("%w: stalled after %d renders (delta %.4f)", ErrSizeConvergence, res.Iterations, delta)
		}
		if hint.W*dpi < opts.MinPixels || hint.H*dpi < opts.MinPixels {
			return res, fmt.Errorf("%w: hint %.1fx%.1f px below floor", ErrSizeConvergence, hint.W*dpi, hint.H*dpi)
		}
	}
}

// stalled reports whether more than window deltas were recorded and the last
// window of them never decrease.
func stalled(deltas []float64, window int) bool {
	if len(deltas) <= window {
		return false
	}
	tail := deltas[len(deltas)-window:]
	for i := 1; i < len(tail); i++ {
		if tail[i] < tail[i-1] {
			return false
		}
	}
	return true
}
