package dashboard

import (
	"image"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"yaticker/internal/canvas"
	"yaticker/internal/config"
	"yaticker/internal/domain"
	"yaticker/internal/market"
	"yaticker/internal/util"
)

func testComposer(t *testing.T) *Composer {
	return testComposerWith(t, false)
}

func testComposerWith(t *testing.T, showVolume bool) *Composer {
	t.Helper()
	fonts, err := canvas.LoadFonts("")
	require.NoError(t, err)
	layout := Layout{
		Width:       264,
		Height:      176,
		DPI:         117,
		ChartHeight: 60,
		ShowVolume:  showVolume,
		Currency:    "$",
	}
	return NewComposer(layout, fonts, nil)
}

func inkCount(img *image.Paletted, r image.Rectangle) int {
	n := 0
	r = r.Intersect(img.Bounds())
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			if img.ColorIndexAt(x, y) != 0 {
				n++
			}
		}
	}
	return n
}

func hourlySeries(symbol string, closes ...float64) domain.Series {
	t0 := time.Date(2024, 6, 14, 13, 30, 0, 0, time.UTC)
	s := domain.Series{Symbol: symbol, Period: "5d", Interval: "1h"}
	for i, c := range closes {
		s.Bars = append(s.Bars, domain.Bar{
			Symbol:    symbol,
			Timestamp: t0.Add(time.Duration(i) * time.Hour),
			Open:      c, High: c, Low: c, Close: c,
		})
	}
	return s
}

// changeLine is the band below the symbol that holds "<delta> (<pct>%)",
// right of where the price ends.
func changeLine(img *image.Paletted) image.Rectangle {
	w, h := img.Bounds().Dx(), img.Bounds().Dy()
	top := h - PriceFontSize + SymbolFontSize + 1
	return image.Rect(w*7/10, top, w, top+SmallFontSize+2)
}

// volumeLabel is the bottom left corner, left of the timestamp.
func volumeLabel(img *image.Paletted) image.Rectangle {
	h := img.Bounds().Dy()
	return image.Rect(0, h-SmallFontSize+2, 60, h)
}

func TestComposeEmptySeries(t *testing.T) {
	c := testComposer(t)
	img, err := c.Compose("FOO", domain.Series{Symbol: "FOO"}, nil)
	require.ErrorIs(t, err, market.ErrDataUnavailable)
	assert.Nil(t, img)
}

func TestComposeWithoutPreviousClose(t *testing.T) {
	c := testComposer(t)
	img, err := c.Compose("foo", hourlySeries("FOO", 10, 11, 12), nil)
	require.NoError(t, err)

	assert.Equal(t, image.Rect(0, 0, 264, 176), img.Bounds())
	assert.True(t, canvas.HasInk(img, image.Rect(0, 0, 264, 60)), "chart band should be drawn")
	assert.False(t, canvas.HasInk(img, changeLine(img)), "no change line without a previous close")
}

func TestComposeWithPreviousClose(t *testing.T) {
	c := testComposer(t)
	for _, pc := range []float64{10, 14} {
		prev := pc
		img, err := c.Compose("FOO", hourlySeries("FOO", 10, 11, 12), &prev)
		require.NoError(t, err)
		assert.True(t, canvas.HasInk(img, changeLine(img)), "change line drawn for previous close %v", pc)
	}

	// The sign of the change line follows latest - previous.
	assert.True(t, strings.HasPrefix(FormatChange(12, 10), "+"))
	assert.True(t, strings.HasPrefix(FormatChange(12, 14), "-"))
}

func TestComposeChangeLineMatchesDelta(t *testing.T) {
	c := testComposer(t)
	face, err := c.fonts.Face(SmallFontSize)
	require.NoError(t, err)
	s := hourlySeries("FOO", 10, 11, 12)

	bare, err := c.Compose("FOO", s, nil)
	require.NoError(t, err)

	tests := []struct {
		name     string
		previous float64
		sign     string
	}{
		{"gain", 10, "+"},
		{"loss", 14, "-"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			prev := tt.previous
			img, err := c.Compose("FOO", s, &prev)
			require.NoError(t, err)

			text := FormatChange(12, tt.previous)
			require.True(t, strings.HasPrefix(text, tt.sign), "change text %q", text)

			// The composed screen is the bare one plus exactly this text.
			want := canvas.New(bare.Bounds().Dx(), bare.Bounds().Dy())
			copy(want.Pix, bare.Pix)
			canvas.PlaceTextRight(want, text, 0, want.Bounds().Dy()-PriceFontSize+SymbolFontSize, face, canvas.Ink)

			require.True(t, canvas.HasInk(want, changeLine(want)))
			b := img.Bounds()
			for y := b.Min.Y; y < b.Max.Y; y++ {
				for x := b.Min.X; x < b.Max.X; x++ {
					if img.ColorIndexAt(x, y) != want.ColorIndexAt(x, y) {
						t.Fatalf("composed screen differs from %q at (%d, %d)", text, x, y)
					}
				}
			}
		})
	}
}

func volumeSeries(symbol string, n int) domain.Series {
	t0 := time.Date(2024, 6, 10, 13, 30, 0, 0, time.UTC)
	s := domain.Series{Symbol: symbol, Period: "1mo", Interval: "1d"}
	for i := 0; i < n; i++ {
		c := 100 + float64(i%9)
		s.Bars = append(s.Bars, domain.Bar{
			Symbol:    symbol,
			Timestamp: t0.Add(time.Duration(i) * 24 * time.Hour),
			Open:      c, High: c + 1, Low: c - 1, Close: c,
			Volume: int64(1_000_000 + 250_000*(i%5)),
		})
	}
	return s
}

func TestComposeShowVolumeAddsInk(t *testing.T) {
	s := volumeSeries("FOO", 40)
	chartBand := image.Rect(0, 0, 264, 60)

	plain, err := testComposerWith(t, false).Compose("FOO", s, nil)
	require.NoError(t, err)
	withVolume, err := testComposerWith(t, true).Compose("FOO", s, nil)
	require.NoError(t, err)

	assert.Greater(t, inkCount(withVolume, chartBand), inkCount(plain, chartBand),
		"the volume line should add ink to the chart band")
}

func TestComposeVolumeLabel(t *testing.T) {
	s := volumeSeries("FOO", 10)

	plain, err := testComposerWith(t, false).Compose("FOO", s, nil)
	require.NoError(t, err)
	assert.False(t, canvas.HasInk(plain, volumeLabel(plain)))

	img, err := testComposerWith(t, true).Compose("FOO", s, nil)
	require.NoError(t, err)
	assert.True(t, canvas.HasInk(img, volumeLabel(img)), "volume label drawn")
	assert.False(t, canvas.HasInk(img, changeLine(img)), "no change line without a previous close")
}

func TestComposeDrawsSymbolRightAligned(t *testing.T) {
	c := testComposer(t)
	img, err := c.Compose("FOO", hourlySeries("FOO", 1, 2), nil)
	require.NoError(t, err)

	// The price reaches into the symbol band left of center, so only the
	// strips at either edge are checked.
	w, h := img.Bounds().Dx(), img.Bounds().Dy()
	top, bottom := h-PriceFontSize, h-PriceFontSize+SymbolFontSize
	left := image.Rect(0, top, 20, bottom)
	right := image.Rect(w-20, top, w, bottom)
	assert.True(t, canvas.HasInk(img, right))
	assert.False(t, canvas.HasInk(img, left))
}

func TestMessage(t *testing.T) {
	c := testComposer(t)
	img, err := c.Message("Key 4 pressed", time.Date(2024, 1, 3, 9, 5, 0, 0, time.UTC))
	require.NoError(t, err)

	assert.True(t, canvas.HasInk(img, image.Rect(95, 15, 264, 30)), "timestamp at the top")
	assert.True(t, canvas.HasInk(img, image.Rect(0, 88, 264, 176)), "banner text below the center")
}

func TestSettings(t *testing.T) {
	cfg := config.Default()
	si := SettingsFor(cfg, util.HostIdentity{Hostname: "ticker", IP: "10.0.0.2"})

	text := si.Text()
	assert.Contains(t, text, "hostname: ticker")
	assert.Contains(t, text, "IP: 10.0.0.2")
	assert.Contains(t, text, "watchlist: AMZN, FB, APPL")
	assert.Contains(t, text, "update frequency: 300")
	assert.Contains(t, text, "period: 5d")
	assert.Len(t, strings.Split(text, "\n"), 10)

	img, err := testComposer(t).Settings(si)
	require.NoError(t, err)
	assert.True(t, canvas.HasInk(img, image.Rect(0, 0, 264, 12)))
}

func TestLayoutFor(t *testing.T) {
	cfg := config.Default()
	cfg.Display.ChartHeight = 116
	cfg.ShowVolume = true

	l := LayoutFor(cfg)
	assert.Equal(t, 264, l.Width)
	assert.Equal(t, 176, l.Height)
	assert.Equal(t, 117.0, l.DPI)
	assert.Equal(t, 116, l.chartHeight())
	assert.True(t, l.ShowVolume)
	assert.Equal(t, cfg.Location(), l.Location)

	l.ChartHeight = 0
	assert.Equal(t, 176, l.chartHeight())
}
