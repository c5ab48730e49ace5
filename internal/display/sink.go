// Package display holds the surfaces a composed canvas can be shown on: a
// capturing double for tests, a PNG file, a desktop window and the e-paper
// panel.
package display

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/png"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
)

// ErrSinkFailed is returned when a canvas could not be shown.
var ErrSinkFailed = errors.New("display sink failed")

// Sink shows a composed canvas. Implementations may block for the duration
// of a physical refresh. Callers never issue concurrent Display calls.
type Sink interface {
	Display(ctx context.Context, img *image.Paletted) error
}

// ---------------------------------------------------------------------------
// CaptureSink
// ---------------------------------------------------------------------------

var _ Sink = (*CaptureSink)(nil)

// CaptureSink records what it is asked to display.
type CaptureSink struct {
	mu    sync.Mutex
	last  *image.Paletted
	count int
	err   error
}

// NewCaptureSink returns an empty CaptureSink.
func NewCaptureSink() *CaptureSink { return &CaptureSink{} }

// FailWith makes subsequent Display calls return err after recording the
// attempt. A nil err restores normal behaviour.
func (s *CaptureSink) FailWith(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

// Display records img.
func (s *CaptureSink) Display(_ context.Context, img *image.Paletted) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.count++
	if s.err != nil {
		return fmt.Errorf("%w: %v", ErrSinkFailed, s.err)
	}
	s.last = img
	return nil
}

// Last returns the most recently displayed canvas, or nil.
func (s *CaptureSink) Last() *image.Paletted {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

// Count returns how many times Display was called.
func (s *CaptureSink) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.count
}

// ---------------------------------------------------------------------------
// FileSink
// ---------------------------------------------------------------------------

var _ Sink = (*FileSink)(nil)

// FileSink writes every canvas to a PNG file, replacing it atomically so a
// viewer never reads a partial image. Failures are logged, never returned.
type FileSink struct {
	path string
	log  *slog.Logger
}

// NewFileSink creates a sink writing to path.
func NewFileSink(path string, logger *slog.Logger) *FileSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &FileSink{path: path, log: logger.With("sink", "file")}
}

// Display writes img to the output file.
func (s *FileSink) Display(_ context.Context, img *image.Paletted) error {
	if err := writePNG(s.path, img); err != nil {
		s.log.Warn("writing canvas failed", "path", s.path, "error", err)
		return nil
	}
	s.log.Info("canvas written", "path", s.path, "size", img.Bounds().Size())
	return nil
}

func writePNG(path string, img image.Image) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".canvas-*.png")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := png.Encode(tmp, img); err != nil {
		tmp.Close()
		return fmt.Errorf("encoding png: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp file: %w", err)
	}
	return os.Rename(tmp.Name(), path)
}
