// Package epd drives the 2.7 inch 264x176 black and white e-paper HAT over
// SPI, and reads its four front keys.
//
// The controller addresses the panel in portrait orientation (176 columns by
// 264 rows). Dev presents it in landscape, the way the dashboard draws, and
// rotates frames on transfer.
package epd

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"time"

	"periph.io/x/conn/v3"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"

	"yaticker/internal/epd/image1bit"
)

// Controller commands.
const (
	cmdPanelSetting     = 0x00
	cmdPowerSetting     = 0x01
	cmdPowerOff         = 0x02
	cmdPowerOn          = 0x04
	cmdBoosterSoftStart = 0x06
	cmdDeepSleep        = 0x07
	cmdDataStart1       = 0x10
	cmdDisplayRefresh   = 0x12
	cmdDataStart2       = 0x13
	cmdPartialRefresh   = 0x16
	cmdPLLControl       = 0x30
	cmdVCOMInterval     = 0x50
	cmdVCMDCSetting     = 0x82
	cmdOptimize         = 0xF8
)

// Native controller geometry.
const (
	nativeWidth  = 176
	nativeHeight = 264
)

// maxTx is the largest single SPI transfer used when the port does not
// report its own limit. It matches the spidev default buffer.
const maxTx = 4096

// ErrBusyTimeout is returned when the panel stays busy past Opts.BusyTimeout.
var ErrBusyTimeout = errors.New("epd: busy timeout")

// Opts tunes timing. The zero value selects the defaults.
type Opts struct {
	BusyTimeout time.Duration // default 10s
	BusyPoll    time.Duration // default 10ms
	ResetPulse  time.Duration // default 10ms low, framed by 200ms high
}

func (o *Opts) withDefaults() Opts {
	out := Opts{BusyTimeout: 10 * time.Second, BusyPoll: 10 * time.Millisecond, ResetPulse: 10 * time.Millisecond}
	if o == nil {
		return out
	}
	if o.BusyTimeout > 0 {
		out.BusyTimeout = o.BusyTimeout
	}
	if o.BusyPoll > 0 {
		out.BusyPoll = o.BusyPoll
	}
	if o.ResetPulse > 0 {
		out.ResetPulse = o.ResetPulse
	}
	return out
}

// Dev is a handle to the panel.
type Dev struct {
	c    conn.Conn
	dc   gpio.PinOut
	rst  gpio.PinOut
	busy gpio.PinIn

	rect   image.Rectangle          // landscape, as seen by callers
	frame  *image1bit.HorizontalMSB // landscape frame being composed
	native *image1bit.HorizontalMSB // portrait frame as transferred
	blank  []byte                   // all-white previous frame

	txMax int
	opts  Opts
	sleep func(time.Duration)
	now   func() time.Time
}

// New connects to the panel on port. dc selects command or data, rst resets
// the controller and busy reads its busy line (low while busy). opts may be
// nil. New does not touch the panel; call Init before drawing.
func New(port spi.Port, dc, rst gpio.PinOut, busy gpio.PinIn, opts *Opts) (*Dev, error) {
	c, err := port.Connect(2*physic.MegaHertz, spi.Mode0, 8)
	if err != nil {
		return nil, fmt.Errorf("epd: connecting spi: %w", err)
	}
	rect := image.Rect(0, 0, nativeHeight, nativeWidth)
	native := image1bit.NewHorizontalMSB(image.Rect(0, 0, nativeWidth, nativeHeight))
	txMax := maxTx
	if l, ok := c.(conn.Limits); ok && l.MaxTxSize() > 0 {
		txMax = min(txMax, l.MaxTxSize())
	}
	blank := make([]byte, len(native.Pix))
	for i := range blank {
		blank[i] = 0xff
	}
	return &Dev{
		c:      c,
		dc:     dc,
		rst:    rst,
		busy:   busy,
		rect:   rect,
		frame:  image1bit.NewHorizontalMSB(rect),
		native: native,
		blank:  blank,
		txMax:  txMax,
		opts:   opts.withDefaults(),
		sleep:  time.Sleep,
		now:    time.Now,
	}, nil
}

// String implements conn.Resource.
func (d *Dev) String() string {
	return fmt.Sprintf("epd.Dev{%dx%d}", d.rect.Dx(), d.rect.Dy())
}

// ColorModel implements display.Drawer.
func (d *Dev) ColorModel() color.Model { return image1bit.BitModel }

// Bounds implements display.Drawer.
func (d *Dev) Bounds() image.Rectangle { return d.rect }

// Halt implements conn.Resource. It puts the panel to sleep.
func (d *Dev) Halt() error { return d.Sleep() }

// Init resets the controller and powers the panel up. It must be called
// after every Sleep.
func (d *Dev) Init() error {
	if err := d.reset(); err != nil {
		return err
	}
	seq := []struct {
		cmd  byte
		data []byte
	}{
		{cmdPowerSetting, []byte{0x03, 0x00, 0x2b, 0x2b, 0x09}},
		{cmdBoosterSoftStart, []byte{0x07, 0x07, 0x17}},
		{cmdOptimize, []byte{0x60, 0xA5}},
		{cmdOptimize, []byte{0x89, 0xA5}},
		{cmdOptimize, []byte{0x90, 0x00}},
		{cmdOptimize, []byte{0x93, 0x2A}},
		{cmdOptimize, []byte{0xA0, 0xA5}},
		{cmdOptimize, []byte{0xA1, 0x00}},
		{cmdOptimize, []byte{0x73, 0x41}},
		{cmdPartialRefresh, []byte{0x00}},
		{cmdPowerOn, nil},
	}
	for _, s := range seq {
		if err := d.send(s.cmd, s.data); err != nil {
			return err
		}
	}
	if err := d.waitIdle(); err != nil {
		return err
	}
	// Waveform LUTs are read from the controller OTP.
	if err := d.send(cmdPanelSetting, []byte{0x8F}); err != nil {
		return err
	}
	if err := d.send(cmdPLLControl, []byte{0x3A}); err != nil {
		return err
	}
	return d.send(cmdVCMDCSetting, []byte{0x12})
}

// Draw renders src onto the frame at r and refreshes the whole panel.
func (d *Dev) Draw(r image.Rectangle, src image.Image, sp image.Point) error {
	r = r.Intersect(d.rect)
	if r.Empty() {
		return nil
	}
	draw.Draw(d.frame, r, src, sp, draw.Src)
	d.rotate()

	if err := d.send(cmdDataStart1, d.blank); err != nil {
		return err
	}
	if err := d.send(cmdDataStart2, d.native.Pix); err != nil {
		return err
	}
	if err := d.send(cmdDisplayRefresh, nil); err != nil {
		return err
	}
	return d.waitIdle()
}

// Sleep powers the panel off and puts the controller in deep sleep. The
// image stays on the panel.
func (d *Dev) Sleep() error {
	if err := d.send(cmdVCOMInterval, []byte{0xF7}); err != nil {
		return err
	}
	if err := d.send(cmdPowerOff, nil); err != nil {
		return err
	}
	return d.send(cmdDeepSleep, []byte{0xA5})
}

// rotate copies the landscape frame into the portrait transfer buffer:
// landscape (x, y) lands on native (y, nativeHeight-1-x).
func (d *Dev) rotate() {
	for y := 0; y < d.rect.Dy(); y++ {
		for x := 0; x < d.rect.Dx(); x++ {
			d.native.SetBit(y, nativeHeight-1-x, d.frame.BitAt(x, y))
		}
	}
}

func (d *Dev) reset() error {
	for _, step := range []struct {
		level gpio.Level
		wait  time.Duration
	}{
		{gpio.High, 200 * time.Millisecond},
		{gpio.Low, d.opts.ResetPulse},
		{gpio.High, 200 * time.Millisecond},
	} {
		if err := d.rst.Out(step.level); err != nil {
			return fmt.Errorf("epd: driving RST: %w", err)
		}
		d.sleep(step.wait)
	}
	return nil
}

func (d *Dev) waitIdle() error {
	deadline := d.now().Add(d.opts.BusyTimeout)
	for d.busy.Read() == gpio.Low {
		if d.now().After(deadline) {
			return ErrBusyTimeout
		}
		d.sleep(d.opts.BusyPoll)
	}
	return nil
}

func (d *Dev) send(cmd byte, data []byte) error {
	if err := d.dc.Out(gpio.Low); err != nil {
		return fmt.Errorf("epd: driving DC: %w", err)
	}
	if err := d.c.Tx([]byte{cmd}, nil); err != nil {
		return fmt.Errorf("epd: command %#02x: %w", cmd, err)
	}
	if len(data) == 0 {
		return nil
	}
	if err := d.dc.Out(gpio.High); err != nil {
		return fmt.Errorf("epd: driving DC: %w", err)
	}
	for len(data) > 0 {
		n := min(len(data), d.txMax)
		if err := d.c.Tx(data[:n], nil); err != nil {
			return fmt.Errorf("epd: data for %#02x: %w", cmd, err)
		}
		data = data[n:]
	}
	return nil
}
