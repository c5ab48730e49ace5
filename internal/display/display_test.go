package display

import (
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"fyne.io/fyne/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"yaticker/internal/domain"
)

func testCanvas() *image.Paletted {
	img := image.NewPaletted(image.Rect(0, 0, 16, 8), color.Palette{color.White, color.Black})
	img.SetColorIndex(3, 4, 1)
	return img
}

func TestCaptureSink(t *testing.T) {
	s := NewCaptureSink()
	assert.Nil(t, s.Last())

	img := testCanvas()
	require.NoError(t, s.Display(context.Background(), img))
	assert.Same(t, img, s.Last())
	assert.Equal(t, 1, s.Count())

	s.FailWith(errors.New("unplugged"))
	err := s.Display(context.Background(), testCanvas())
	require.ErrorIs(t, err, ErrSinkFailed)
	assert.Same(t, img, s.Last(), "failed display must not replace the last canvas")
	assert.Equal(t, 2, s.Count())
}

func TestFileSink(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "screen.png")
	s := NewFileSink(path, nil)

	require.NoError(t, s.Display(context.Background(), testCanvas()))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	got, err := png.Decode(f)
	require.NoError(t, err)
	assert.Equal(t, image.Pt(16, 8), got.Bounds().Size())
	r, g, b, _ := got.At(3, 4).RGBA()
	assert.Zero(t, r+g+b, "ink pixel should be black")

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp files must be cleaned up")
}

func TestFileSinkNeverFails(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "file")
	require.NoError(t, os.WriteFile(blocker, nil, 0o644))

	s := NewFileSink(filepath.Join(blocker, "screen.png"), nil)
	assert.NoError(t, s.Display(context.Background(), testCanvas()))
}

type fakePanel struct {
	calls   []string
	failOn  string
	lastImg image.Image
}

func (p *fakePanel) step(name string) error {
	p.calls = append(p.calls, name)
	if p.failOn == name {
		return errors.New(name + " failed")
	}
	return nil
}

func (p *fakePanel) Init() error  { return p.step("init") }
func (p *fakePanel) Sleep() error { return p.step("sleep") }
func (p *fakePanel) Arm() error   { return p.step("arm") }

func (p *fakePanel) Draw(_ image.Rectangle, src image.Image, _ image.Point) error {
	p.lastImg = src
	return p.step("draw")
}

func TestPanelSinkSequence(t *testing.T) {
	p := &fakePanel{}
	s := NewPanelSink(p, p, nil)

	img := testCanvas()
	require.NoError(t, s.Display(context.Background(), img))
	assert.Equal(t, []string{"init", "draw", "sleep", "arm"}, p.calls)
	assert.Same(t, img, p.lastImg)
}

func TestPanelSinkFailures(t *testing.T) {
	for _, step := range []string{"init", "draw", "sleep", "arm"} {
		t.Run(step, func(t *testing.T) {
			p := &fakePanel{failOn: step}
			err := NewPanelSink(p, p, nil).Display(context.Background(), testCanvas())
			require.ErrorIs(t, err, ErrSinkFailed)
			assert.Equal(t, step, p.calls[len(p.calls)-1], "sequence stops at the failing step")
		})
	}
}

func TestPanelSinkWithoutKeys(t *testing.T) {
	p := &fakePanel{}
	require.NoError(t, NewPanelSink(p, nil, nil).Display(context.Background(), testCanvas()))
	assert.Equal(t, []string{"init", "draw", "sleep"}, p.calls)
}

func TestKeyAction(t *testing.T) {
	tests := []struct {
		key  fyne.KeyName
		want domain.Action
		ok   bool
	}{
		{fyne.Key1, domain.ActionNext, true},
		{fyne.Key2, domain.ActionRefresh, true},
		{fyne.Key3, domain.ActionSettings, true},
		{fyne.Key4, domain.ActionReserved, true},
		{fyne.Key5, 0, false},
		{fyne.KeyEscape, 0, false},
	}
	for _, tt := range tests {
		got, ok := keyAction(tt.key)
		assert.Equal(t, tt.ok, ok, string(tt.key))
		assert.Equal(t, tt.want, got, string(tt.key))
	}
}
