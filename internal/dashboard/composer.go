// Package dashboard composes the screens shown on the panel: the stock view
// (chart, price, change, volume, symbol, timestamp), the message banner and
// the settings page.
package dashboard

import (
	"errors"
	"fmt"
	"image"
	"log/slog"
	"strings"
	"time"

	"yaticker/internal/canvas"
	"yaticker/internal/chart"
	"yaticker/internal/config"
	"yaticker/internal/domain"
	"yaticker/internal/market"
	"yaticker/internal/util"
)

// Font sizes of the stock view, in pixels.
const (
	PriceFontSize  = 48
	SymbolFontSize = 20
	SmallFontSize  = 10
	BannerFontSize = 16
)

// priceXOffset shifts the price left of center so it clears the symbol.
const priceXOffset = -29

// Layout describes the panel and how the stock view uses it.
type Layout struct {
	Width       int
	Height      int
	DPI         float64
	ChartHeight int // height of the chart band at the top; 0 means Height
	ShowVolume  bool
	Currency    string
	Location    *time.Location // zone of the timestamp line; nil means UTC
}

func (l Layout) chartHeight() int {
	if l.ChartHeight <= 0 || l.ChartHeight > l.Height {
		return l.Height
	}
	return l.ChartHeight
}

func (l Layout) location() *time.Location {
	if l.Location == nil {
		return time.UTC
	}
	return l.Location
}

// Composer renders screens onto fresh canvases. It is safe to reuse across
// renders but not for concurrent use.
type Composer struct {
	layout  Layout
	fonts   *canvas.Fonts
	plotter chart.Plotter
	fit     chart.Options
	log     *slog.Logger
}

// NewComposer creates a Composer for layout drawing text with fonts.
func NewComposer(layout Layout, fonts *canvas.Fonts, logger *slog.Logger) *Composer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Composer{
		layout:  layout,
		fonts:   fonts,
		plotter: chart.NewPlotter(layout.ShowVolume),
		fit:     chart.DefaultOptions,
		log:     logger.With("component", "composer"),
	}
}

// ---------------------------------------------------------------------------
// Stock view
// ---------------------------------------------------------------------------

// Compose renders the stock view for symbol. previousClose may be nil, in
// which case the change line is left out. With ShowVolume the last bar's
// volume is labelled in the bottom left corner. An empty series yields
// market.ErrDataUnavailable and no canvas.
func (c *Composer) Compose(symbol string, s domain.Series, previousClose *float64) (*image.Paletted, error) {
	last, ok := s.Last()
	if !ok {
		return nil, fmt.Errorf("%w: no bars for %s", market.ErrDataUnavailable, symbol)
	}

	priceFace, err := c.fonts.Face(PriceFontSize)
	if err != nil {
		return nil, err
	}
	symbolFace, err := c.fonts.Face(SymbolFontSize)
	if err != nil {
		return nil, err
	}
	smallFace, err := c.fonts.Face(SmallFontSize)
	if err != nil {
		return nil, err
	}

	w, h := c.layout.Width, c.layout.Height
	img := canvas.New(w, h)

	plot, err := c.chart(symbol, s)
	if err != nil {
		return nil, err
	}
	canvas.Paste(img, plot, image.Point{})

	price := c.layout.Currency + FormatCompactNumber(last.Close)
	canvas.PlaceCenteredText(img, price, priceXOffset, (h-PriceFontSize)/2-12, priceFace, canvas.Ink)

	canvas.PlaceTextRight(img, strings.ToUpper(symbol), 0, h-PriceFontSize, symbolFace, canvas.Ink)

	if previousClose != nil {
		change := FormatChange(last.Close, *previousClose)
		canvas.PlaceTextRight(img, change, 0, h-PriceFontSize+SymbolFontSize, smallFace, canvas.Ink)
	}

	stamp := FormatStamp(last.Timestamp.In(c.layout.location()))
	canvas.PlaceCenteredText(img, stamp, 0, (h-SmallFontSize)/2, smallFace, canvas.Ink)

	if c.layout.ShowVolume {
		canvas.PlaceText(img, "Vol "+FormatVolume(float64(last.Volume)), 0, h-SmallFontSize, smallFace, canvas.Ink)
	}

	return img, nil
}

// chart fits the price chart to the chart band. A chart that does not
// converge is still used, clipped to the canvas.
func (c *Composer) chart(symbol string, s domain.Series) (image.Image, error) {
	target := chart.SizeFromPixels(c.layout.Width, c.layout.chartHeight(), c.layout.DPI)
	res, err := chart.Converge(c.plotter.RenderFunc(s, c.layout.DPI), target, c.layout.DPI, c.fit)
	if err != nil {
		if errors.Is(err, chart.ErrSizeConvergence) && res.Image != nil {
			c.log.Warn("chart size not converged, using best effort",
				"symbol", symbol,
				"iterations", res.Iterations,
				"size", res.Image.Bounds().Size(),
				"error", err,
			)
			return res.Image, nil
		}
		return nil, fmt.Errorf("charting %s: %w", symbol, err)
	}
	c.log.Debug("chart fitted", "symbol", symbol, "iterations", res.Iterations)
	return res.Image, nil
}

// ---------------------------------------------------------------------------
// Message and settings screens
// ---------------------------------------------------------------------------

// Message renders a banner: the current time at the top and text wrapped
// below the vertical center.
func (c *Composer) Message(text string, now time.Time) (*image.Paletted, error) {
	smallFace, err := c.fonts.Face(SmallFontSize)
	if err != nil {
		return nil, err
	}
	bannerFace, err := c.fonts.Face(BannerFontSize)
	if err != nil {
		return nil, err
	}

	img := canvas.New(c.layout.Width, c.layout.Height)
	canvas.PlaceText(img, FormatStamp(now.In(c.layout.location())), 95, 15, smallFace, canvas.Ink)
	canvas.WrapAndPlaceLines(img, text, bannerFace, canvas.DefaultWrapOptions, canvas.Ink)
	return img, nil
}

// SettingsInfo is what the settings page lists.
type SettingsInfo struct {
	Hostname        string
	IP              string
	Watchlist       []string
	Cycle           bool
	UpdateFrequency int
	ShowVolume      bool
	Period          string
}

// Text returns the settings page body.
func (si SettingsInfo) Text() string {
	lines := []string{
		"Yaticker info",
		"-----",
		"hostname: " + si.Hostname,
		"IP: " + si.IP,
		"-----",
		"watchlist: " + strings.Join(si.Watchlist, ", "),
		fmt.Sprintf("cycle: %t", si.Cycle),
		fmt.Sprintf("update frequency: %d", si.UpdateFrequency),
		fmt.Sprintf("show volume: %t", si.ShowVolume),
		"period: " + si.Period,
	}
	return strings.Join(lines, "\n")
}

// Settings renders the settings page.
func (c *Composer) Settings(si SettingsInfo) (*image.Paletted, error) {
	face, err := c.fonts.Face(SmallFontSize)
	if err != nil {
		return nil, err
	}
	img := canvas.New(c.layout.Width, c.layout.Height)
	canvas.PlaceText(img, si.Text(), 0, 0, face, canvas.Ink)
	return img, nil
}

// LayoutFor derives the composer layout from the loaded configuration.
func LayoutFor(cfg *config.Config) Layout {
	return Layout{
		Width:       cfg.Display.Width,
		Height:      cfg.Display.Height,
		DPI:         float64(cfg.Display.DPI),
		ChartHeight: cfg.Display.ChartHeight,
		ShowVolume:  cfg.ShowVolume,
		Currency:    cfg.Currency,
		Location:    cfg.Location(),
	}
}

// SettingsFor lists cfg and host on the settings page.
func SettingsFor(cfg *config.Config, host util.HostIdentity) SettingsInfo {
	return SettingsInfo{
		Hostname:        host.Hostname,
		IP:              host.IP,
		Watchlist:       cfg.Watchlist,
		Cycle:           cfg.Cycle,
		UpdateFrequency: cfg.UpdateFrequency,
		ShowVolume:      cfg.ShowVolume,
		Period:          cfg.Period,
	}
}
