package display

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"sync"
)

// Panel is the hardware a PanelSink drives. epd.Dev implements it.
type Panel interface {
	Init() error
	Draw(r image.Rectangle, src image.Image, sp image.Point) error
	Sleep() error
}

// Armer re-enables button detection after the panel has slept.
type Armer interface {
	Arm() error
}

var _ Sink = (*PanelSink)(nil)

// PanelSink shows canvases on an e-paper panel. Every Display wakes the
// panel, transfers the frame, puts it back to sleep and re-arms the keypad.
type PanelSink struct {
	mu    sync.Mutex
	panel Panel
	keys  Armer
	log   *slog.Logger
}

// NewPanelSink creates a sink for panel. keys may be nil.
func NewPanelSink(panel Panel, keys Armer, logger *slog.Logger) *PanelSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &PanelSink{panel: panel, keys: keys, log: logger.With("sink", "panel")}
}

// Display runs the init, transfer, sleep sequence for img.
func (s *PanelSink) Display(ctx context.Context, img *image.Paletted) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrSinkFailed, err)
	}
	if err := s.panel.Init(); err != nil {
		return fmt.Errorf("%w: init: %v", ErrSinkFailed, err)
	}
	if err := s.panel.Draw(img.Bounds(), img, img.Bounds().Min); err != nil {
		return fmt.Errorf("%w: draw: %v", ErrSinkFailed, err)
	}
	if err := s.panel.Sleep(); err != nil {
		return fmt.Errorf("%w: sleep: %v", ErrSinkFailed, err)
	}
	if s.keys != nil {
		if err := s.keys.Arm(); err != nil {
			return fmt.Errorf("%w: arming keys: %v", ErrSinkFailed, err)
		}
	}
	s.log.Debug("frame displayed", "size", img.Bounds().Size())
	return nil
}
