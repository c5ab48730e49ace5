// Package canvas provides the monochrome drawing surface used for every
// render and the text placement helpers that lay out labels on it.
package canvas

import (
	"image"
	"image/color"
	"image/draw"
	"strings"
	"unicode/utf8"

	"golang.org/x/image/font"
	"golang.org/x/image/math/fixed"
)

// Palette is the two-entry palette of every canvas. Index 0 is white so a
// freshly allocated canvas is blank.
var Palette = color.Palette{color.White, color.Black}

// Ink is the default text fill.
var Ink color.Color = color.Black

// New allocates a white canvas of the given size.
func New(width, height int) *image.Paletted {
	return image.NewPaletted(image.Rect(0, 0, width, height), Palette)
}

// Paste copies src onto dst with src's top-left corner at pt. Pixels of src
// that fall outside dst are dropped.
func Paste(dst draw.Image, src image.Image, pt image.Point) {
	b := src.Bounds()
	r := image.Rectangle{Min: pt, Max: pt.Add(b.Size())}
	draw.Draw(dst, r, src, b.Min, draw.Src)
}

// HasInk reports whether any pixel inside r is non-white. It is mostly useful to
// assert that a region of a composed canvas has or has not been drawn on.
func HasInk(img *image.Paletted, r image.Rectangle) bool {
	r = r.Intersect(img.Bounds())
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			if img.ColorIndexAt(x, y) != 0 {
				return true
			}
		}
	}
	return false
}

// ---------------------------------------------------------------------------
// Text placement
// ---------------------------------------------------------------------------

// PlaceText draws text with the top-left corner of its first line at (x, y).
// Embedded newlines start a new line one face height lower.
func PlaceText(dst draw.Image, text string, x, y int, face Face, fill color.Color) {
	m := face.Metrics()
	ascent := m.Ascent.Ceil()
	lineHeight := m.Height.Ceil()

	d := &font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(fill),
		Face: face,
	}
	for i, line := range strings.Split(text, "\n") {
		d.Dot = fixed.P(x, y+ascent+i*lineHeight)
		d.DrawString(line)
	}
}

// TextWidth returns the advance width of text in pixels.
func TextWidth(text string, face Face) int {
	return font.MeasureString(face, text).Ceil()
}

// PlaceCenteredText centers text on dst, then shifts it by the offsets. The
// text height used for centering is the face's nominal size.
func PlaceCenteredText(dst draw.Image, text string, xOffset, yOffset int, face Face, fill color.Color) {
	b := dst.Bounds()
	x := (b.Dx()-TextWidth(text, face))/2 + xOffset
	y := (b.Dy()-face.Size)/2 + yOffset
	PlaceText(dst, text, x, y, face, fill)
}

// PlaceTextRight right-aligns text against the right edge of dst. xOffset is
// a margin adjustment added to the computed x, so negative values pull the
// text away from the edge. yOffset is the absolute top of the text.
func PlaceTextRight(dst draw.Image, text string, xOffset, yOffset int, face Face, fill color.Color) {
	b := dst.Bounds()
	x := b.Dx() - TextWidth(text, face) + xOffset
	PlaceText(dst, text, x, yOffset, face, fill)
}

// WrapOptions controls WrapAndPlaceLines.
type WrapOptions struct {
	StartY     int // vertical offset of the first line from the centered position
	LineHeight int
	Width      int // wrap width in characters
}

// DefaultWrapOptions matches the message screen layout.
var DefaultWrapOptions = WrapOptions{StartY: 20, LineHeight: 15, Width: 25}

// WrapAndPlaceLines wraps text at opts.Width characters and draws each line
// horizontally centered, the first one opts.StartY below the vertical center
// and each following line opts.LineHeight lower. It returns the number of
// lines drawn.
func WrapAndPlaceLines(dst draw.Image, text string, face Face, opts WrapOptions, fill color.Color) int {
	lines := Wrap(text, opts.Width)
	y := opts.StartY
	for _, line := range lines {
		PlaceCenteredText(dst, line, 0, y, face, fill)
		y += opts.LineHeight
	}
	return len(lines)
}

// Wrap splits text into lines of at most width characters, breaking on
// whitespace. Words longer than width are split across lines.
func Wrap(text string, width int) []string {
	if width <= 0 {
		width = 1
	}
	var (
		lines []string
		cur   strings.Builder
		n     int
	)
	flush := func() {
		if n > 0 {
			lines = append(lines, cur.String())
			cur.Reset()
			n = 0
		}
	}
	for _, word := range strings.Fields(text) {
		for utf8.RuneCountInString(word) > width {
			// Fill the current line first, then hard-break the rest.
			room := width - n
			if n > 0 {
				room--
			}
			if room <= 0 {
				flush()
				continue
			}
			head, tail := splitRunes(word, room)
			if n > 0 {
				cur.WriteByte(' ')
				n++
			}
			cur.WriteString(head)
			n += room
			flush()
			word = tail
		}
		wl := utf8.RuneCountInString(word)
		if wl == 0 {
			continue
		}
		switch {
		case n == 0:
			cur.WriteString(word)
			n = wl
		case n+1+wl <= width:
			cur.WriteByte(' ')
			cur.WriteString(word)
			n += 1 + wl
		default:
			flush()
			cur.WriteString(word)
			n = wl
		}
	}
	flush()
	return lines
}

func splitRunes(s string, n int) (string, string) {
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos], s[pos:]
		}
		i++
	}
	return s, ""
}
