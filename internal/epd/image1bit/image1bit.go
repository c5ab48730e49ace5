// Package image1bit implements a packed monochrome image in the memory
// layout e-paper controllers expect: 8 horizontal pixels per byte, the
// leftmost pixel in the most significant bit, and a set bit meaning white.
package image1bit

import (
	"image"
	"image/color"
)

// Bit is a monochrome color. On is white, Off is black.
type Bit bool

const (
	On  Bit = true
	Off Bit = false
)

// RGBA implements color.Color.
func (b Bit) RGBA() (r, g, bl, a uint32) {
	if b {
		return 0xffff, 0xffff, 0xffff, 0xffff
	}
	return 0, 0, 0, 0xffff
}

func (b Bit) String() string {
	if b {
		return "On"
	}
	return "Off"
}

func convert(c color.Color) color.Color {
	return bitOf(c)
}

// bitOf thresholds c at half luminance. Transparent pixels are white.
func bitOf(c color.Color) Bit {
	if b, ok := c.(Bit); ok {
		return b
	}
	r, g, b, a := c.RGBA()
	if a == 0 {
		return On
	}
	y := (299*r + 587*g + 114*b + 500) / 1000
	return y >= 0x8000
}

// BitModel converts colors to Bit.
var BitModel = color.ModelFunc(convert)

// HorizontalMSB is a packed 1-bit image. Rows are padded to whole bytes.
type HorizontalMSB struct {
	Pix    []byte
	Stride int
	Rect   image.Rectangle
}

// NewHorizontalMSB returns a white image with bounds r.
func NewHorizontalMSB(r image.Rectangle) *HorizontalMSB {
	w, h := r.Dx(), r.Dy()
	if w <= 0 || h <= 0 {
		return &HorizontalMSB{Rect: r}
	}
	stride := (w + 7) / 8
	img := &HorizontalMSB{
		Pix:    make([]byte, stride*h),
		Stride: stride,
		Rect:   r,
	}
	img.Fill(On)
	return img
}

// ColorModel implements image.Image.
func (i *HorizontalMSB) ColorModel() color.Model { return BitModel }

// Bounds implements image.Image.
func (i *HorizontalMSB) Bounds() image.Rectangle { return i.Rect }

// At implements image.Image.
func (i *HorizontalMSB) At(x, y int) color.Color { return i.BitAt(x, y) }

// BitAt returns the pixel at (x, y). Pixels outside the bounds are Off.
func (i *HorizontalMSB) BitAt(x, y int) Bit {
	if !(image.Point{X: x, Y: y}.In(i.Rect)) {
		return Off
	}
	offset, mask := i.pixOffset(x, y)
	return i.Pix[offset]&mask != 0
}

// Set implements draw.Image.
func (i *HorizontalMSB) Set(x, y int, c color.Color) {
	i.SetBit(x, y, bitOf(c))
}

// SetBit sets the pixel at (x, y) without color conversion.
func (i *HorizontalMSB) SetBit(x, y int, b Bit) {
	if !(image.Point{X: x, Y: y}.In(i.Rect)) {
		return
	}
	offset, mask := i.pixOffset(x, y)
	if b {
		i.Pix[offset] |= mask
	} else {
		i.Pix[offset] &^= mask
	}
}

// Fill sets every pixel to b.
func (i *HorizontalMSB) Fill(b Bit) {
	v := byte(0)
	if b {
		v = 0xff
	}
	for j := range i.Pix {
		i.Pix[j] = v
	}
}

func (i *HorizontalMSB) pixOffset(x, y int) (int, byte) {
	x -= i.Rect.Min.X
	y -= i.Rect.Min.Y
	return y*i.Stride + x/8, 0x80 >> uint(x%8)
}
