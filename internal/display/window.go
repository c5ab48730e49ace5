package display

import (
	"context"
	"image"
	"log/slog"

	"fyne.io/fyne/v2"
	fynecanvas "fyne.io/fyne/v2/canvas"

	"yaticker/internal/domain"
)

var _ Sink = (*WindowSink)(nil)

// WindowSink shows canvases in a desktop window, emulating the panel. The
// number keys 1 to 4 stand in for the panel buttons.
type WindowSink struct {
	window fyne.Window
	image  *fynecanvas.Image
	log    *slog.Logger
}

// NewWindowSink creates the emulator window on app. The canvas is shown at
// width x height pixels multiplied by scale. onAction receives key presses
// and may be nil.
func NewWindowSink(app fyne.App, width, height int, scale float32, onAction func(domain.Action), logger *slog.Logger) *WindowSink {
	if logger == nil {
		logger = slog.Default()
	}
	if scale <= 0 {
		scale = 1
	}

	img := fynecanvas.NewImageFromImage(image.NewPaletted(image.Rect(0, 0, width, height), nil))
	img.FillMode = fynecanvas.ImageFillContain
	img.ScaleMode = fynecanvas.ImageScalePixels
	img.SetMinSize(fyne.NewSize(float32(width)*scale, float32(height)*scale))

	w := app.NewWindow("yaticker")
	w.SetContent(img)
	w.Resize(fyne.NewSize(float32(width)*scale, float32(height)*scale))
	w.SetFixedSize(true)

	s := &WindowSink{window: w, image: img, log: logger.With("sink", "window")}
	w.Canvas().SetOnTypedKey(func(ev *fyne.KeyEvent) {
		a, ok := keyAction(ev.Name)
		if !ok || onAction == nil {
			return
		}
		s.log.Debug("key pressed", "key", string(ev.Name), "action", a)
		onAction(a)
	})
	return s
}

// Window returns the underlying window so the caller can show it.
func (s *WindowSink) Window() fyne.Window { return s.window }

// Display replaces the window image with img.
func (s *WindowSink) Display(_ context.Context, img *image.Paletted) error {
	fyne.Do(func() {
		s.image.Image = img
		s.image.Refresh()
	})
	return nil
}

func keyAction(name fyne.KeyName) (domain.Action, bool) {
	switch name {
	case fyne.Key1:
		return domain.ActionForKey(1)
	case fyne.Key2:
		return domain.ActionForKey(2)
	case fyne.Key3:
		return domain.ActionForKey(3)
	case fyne.Key4:
		return domain.ActionForKey(4)
	}
	return 0, false
}
