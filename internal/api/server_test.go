package api

import (
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/png"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"yaticker/internal/canvas"
	"yaticker/internal/config"
	"yaticker/internal/domain"
	"yaticker/internal/engine"
	"yaticker/internal/market"
)

type fakeEngine struct {
	status engine.Status
	last   *image.Paletted
}

func (f *fakeEngine) Status() engine.Status { return f.status }
func (f *fakeEngine) LastCanvas() *image.Paletted { return f.last }

func newTestServer(t *testing.T, eng EngineView) (*Server, *market.StaticProvider) {
	t.Helper()
	p := market.NewStaticProvider()
	t0 := time.Date(2024, 6, 14, 13, 30, 0, 0, time.UTC)
	s := domain.Series{Symbol: "FOO"}
	for i, c := range []float64{10, 11, 12} {
		s.Bars = append(s.Bars, domain.Bar{
			Timestamp: t0.Add(time.Duration(i) * time.Minute),
			Open:      c - 0.5, High: c + 1, Low: c - 1, Close: c, Volume: 100,
		})
	}
	p.SetSeries(s)
	return NewServer(config.Default(), p, eng, nil), p
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	s, _ := newTestServer(t, nil)
	rec := get(t, s.Handler(), "/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"ok"`)
}

func TestTickerKeyedByTimestamp(t *testing.T) {
	s, p := newTestServer(t, nil)
	rec := get(t, s.Handler(), "/ticker/foo")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body map[string]BarJSON
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body, 3)

	first := time.Date(2024, 6, 14, 13, 30, 0, 0, time.UTC).UnixMilli()
	bar, ok := body[jsonKey(first)]
	require.True(t, ok, "missing bar at %d", first)
	assert.Equal(t, 10.0, bar.Close)
	assert.Equal(t, 9.5, bar.Open)
	assert.Equal(t, int64(100), bar.Volume)
	assert.Equal(t, 1, p.Calls("FOO"))
}

// downProvider fails every query the way a vendor outage does.
type downProvider struct{}

func (downProvider) Series(_ context.Context, symbol, _, _ string) (domain.Series, error) {
	return domain.Series{}, fmt.Errorf("%w: %w: %s: connection refused", market.ErrDataUnavailable, market.ErrUpstream, symbol)
}

func (downProvider) Summary(_ context.Context, symbol string) (domain.Summary, error) {
	return domain.Summary{}, fmt.Errorf("%w: %w: %s: connection refused", market.ErrDataUnavailable, market.ErrUpstream, symbol)
}

func TestUpstreamFailureIsBadGateway(t *testing.T) {
	s := NewServer(config.Default(), downProvider{}, nil, nil)

	rec := get(t, s.Handler(), "/ticker/FOO")
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Contains(t, rec.Body.String(), "connection refused")

	rec = get(t, s.Handler(), "/summary/FOO")
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestTickerUnknownSymbol(t *testing.T) {
	s, _ := newTestServer(t, nil)
	rec := get(t, s.Handler(), "/ticker/BAR")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "error")
}

func TestTickerRejectsBadTokens(t *testing.T) {
	s, p := newTestServer(t, nil)
	for _, path := range []string{
		"/ticker/FOO?interval=7x",
		"/ticker/FOO?period=abc",
	} {
		rec := get(t, s.Handler(), path)
		assert.Equal(t, http.StatusBadRequest, rec.Code, path)
	}
	assert.Zero(t, p.Calls("FOO"))
}

func TestStatusWithoutEngine(t *testing.T) {
	s, _ := newTestServer(t, nil)
	rec := get(t, s.Handler(), "/api/status")
	require.Equal(t, http.StatusOK, rec.Code)

	var body StatusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, config.Default().Watchlist, body.Watchlist)
	assert.Equal(t, 300, body.UpdateFrequency)
	assert.Nil(t, body.Engine)

	rec = get(t, s.Handler(), "/api/screen.png")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestStatusAndScreenWithEngine(t *testing.T) {
	img := canvas.New(8, 4)
	eng := &fakeEngine{status: engine.Status{State: "displayed", Screen: "FOO", Renders: 2}}
	s, _ := newTestServer(t, eng)

	rec := get(t, s.Handler(), "/api/screen.png")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	eng.last = img
	rec = get(t, s.Handler(), "/api/screen.png")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	decoded, err := png.Decode(rec.Body)
	require.NoError(t, err)
	assert.Equal(t, img.Bounds(), decoded.Bounds())

	rec = get(t, s.Handler(), "/api/status")
	var body StatusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.NotNil(t, body.Engine)
	assert.Equal(t, "FOO", body.Engine.Screen)
	assert.Equal(t, int64(2), body.Engine.Renders)
}

func TestCORSHeaders(t *testing.T) {
	s, _ := newTestServer(t, nil)
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("Origin", "http://example.com")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func jsonKey(ms int64) string {
	b, _ := json.Marshal(ms)
	return string(b)
}

func TestSummary(t *testing.T) {
	s, p := newTestServer(t, nil)
	p.SetPreviousClose("FOO", 9.75)

	rec := get(t, s.Handler(), "/summary/foo")
	require.Equal(t, http.StatusOK, rec.Code)
	var sum domain.Summary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &sum))
	assert.Equal(t, "FOO", sum.Symbol)
	require.NotNil(t, sum.PreviousClose)
	assert.Equal(t, 9.75, *sum.PreviousClose)
}
