package api

import (
	"encoding/json"
	"errors"
	"image/png"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"yaticker/internal/engine"
	"yaticker/internal/market"
	"yaticker/internal/util"
)

// Query defaults of the ticker endpoint.
const (
	defaultPeriod   = "1d"
	defaultInterval = "1m"
)

// BarJSON is one bar of the ticker response.
type BarJSON struct {
	Open   float64 `json:"Open"`
	High   float64 `json:"High"`
	Low    float64 `json:"Low"`
	Close  float64 `json:"Close"`
	Volume int64   `json:"Volume"`
}

// StatusResponse is the body of GET /api/status.
type StatusResponse struct {
	Watchlist       []string       `json:"watchlist"`
	Cycle           bool           `json:"cycle"`
	UpdateFrequency int            `json:"update_frequency"`
	Period          string         `json:"period"`
	Interval        string         `json:"interval"`
	ShowVolume      bool           `json:"show_volume"`
	Uptime          string         `json:"uptime"`
	Host            util.HostLoad  `json:"host"`
	Engine          *engine.Status `json:"engine,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, map[string]string{"status": "ok"})
}

// handleTicker returns the bars of a symbol keyed by their Unix time in
// milliseconds.
func (s *Server) handleTicker(w http.ResponseWriter, r *http.Request) {
	symbol := strings.ToUpper(chi.URLParam(r, "symbol"))
	if symbol == "" {
		writeError(w, http.StatusBadRequest, "symbol required")
		return
	}
	period := queryOr(r, "period", defaultPeriod)
	interval := queryOr(r, "interval", defaultInterval)
	if _, err := market.ParseInterval(interval); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if _, err := market.PeriodStart(period, time.Now()); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	series, err := s.provider.Series(r.Context(), symbol, period, interval)
	if err != nil {
		s.writeProviderError(w, symbol, err)
		return
	}

	out := make(map[string]BarJSON, len(series.Bars))
	for _, b := range series.Bars {
		out[strconv.FormatInt(b.Timestamp.UnixMilli(), 10)] = BarJSON{
			Open: b.Open, High: b.High, Low: b.Low, Close: b.Close, Volume: b.Volume,
		}
	}
	writeJSON(w, out)
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	symbol := strings.ToUpper(chi.URLParam(r, "symbol"))
	sum, err := s.provider.Summary(r.Context(), symbol)
	if err != nil {
		s.writeProviderError(w, symbol, err)
		return
	}
	writeJSON(w, sum)
}

// writeProviderError answers 404 when the vendor has no data for symbol and
// 502 when the vendor itself failed.
func (s *Server) writeProviderError(w http.ResponseWriter, symbol string, err error) {
	status := http.StatusBadGateway
	if errors.Is(err, market.ErrDataUnavailable) && !errors.Is(err, market.ErrUpstream) {
		status = http.StatusNotFound
	}
	s.log.Warn("provider query failed", "symbol", symbol, "error", err)
	writeError(w, status, err.Error())
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	resp := StatusResponse{
		Watchlist:       s.cfg.Watchlist,
		Cycle:           s.cfg.Cycle,
		UpdateFrequency: s.cfg.UpdateFrequency,
		Period:          s.cfg.Period,
		Interval:        s.cfg.Interval,
		ShowVolume:      s.cfg.ShowVolume,
		Uptime:          time.Since(s.started).Round(time.Second).String(),
		Host:            util.SampleLoad(r.Context()),
	}
	if s.engine != nil {
		st := s.engine.Status()
		resp.Engine = &st
	}
	writeJSON(w, resp)
}

// handleScreen returns the canvas currently on the display as PNG.
func (s *Server) handleScreen(w http.ResponseWriter, _ *http.Request) {
	if s.engine == nil {
		writeError(w, http.StatusNotFound, "dashboard not running")
		return
	}
	img := s.engine.LastCanvas()
	if img == nil {
		writeError(w, http.StatusNotFound, "nothing displayed yet")
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	if err := png.Encode(w, img); err != nil {
		s.log.Error("encoding screen", "error", err)
	}
}

func queryOr(r *http.Request, key, def string) string {
	if v := strings.TrimSpace(r.URL.Query().Get(key)); v != "" {
		return v
	}
	return def
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encoding JSON response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
