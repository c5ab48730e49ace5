package canvas

import (
	"errors"
	"fmt"
	"os"
	"sync"

	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gomedium"
	"golang.org/x/image/font/opentype"
)

// ErrFontMissing is returned when a font resource cannot be loaded or a face
// cannot be built from it.
var ErrFontMissing = errors.New("font resource missing")

// Face is a font face at a fixed pixel size. Size is the nominal height used
// by the centering helpers.
type Face struct {
	font.Face
	Size int
}

// Fonts hands out faces of a single typeface, cached per size.
type Fonts struct {
	src *opentype.Font

	mu    sync.Mutex
	faces map[int]Face
}

// LoadFonts parses the TrueType/OpenType file at path. An empty path selects
// the embedded Go Medium typeface.
func LoadFonts(path string) (*Fonts, error) {
	data := gomedium.TTF
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("%w: reading %s: %v", ErrFontMissing, path, err)
		}
		data = b
	}

	f, err := opentype.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%w: parsing %q: %v", ErrFontMissing, path, err)
	}
	return &Fonts{src: f, faces: make(map[int]Face)}, nil
}

// Face returns the face for the given pixel size.
func (f *Fonts) Face(size int) (Face, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if face, ok := f.faces[size]; ok {
		return face, nil
	}
	// At 72 DPI one point is one pixel.
	ff, err := opentype.NewFace(f.src, &opentype.FaceOptions{
		Size:    float64(size),
		DPI:     72,
		Hinting: font.HintingFull,
	})
	if err != nil {
		return Face{}, fmt.Errorf("%w: size %d: %v", ErrFontMissing, size, err)
	}
	face := Face{Face: ff, Size: size}
	f.faces[size] = face
	return face, nil
}
