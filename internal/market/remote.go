package market

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"yaticker/internal/domain"
	"yaticker/pkg/yaticker"
)

var _ Provider = (*RemoteProvider)(nil)

// RemoteProvider reads series from another yaticker instance over its HTTP
// API, so several panels can share one upstream quota and cache.
type RemoteProvider struct {
	client *yaticker.Client
	log    *slog.Logger
}

// NewRemoteProvider creates a provider backed by the server at baseURL.
func NewRemoteProvider(baseURL string, logger *slog.Logger) *RemoteProvider {
	if logger == nil {
		logger = slog.Default()
	}
	return &RemoteProvider{
		client: yaticker.NewClient(baseURL),
		log:    logger.With("provider", "remote"),
	}
}

// Name returns the provider identifier.
func (p *RemoteProvider) Name() string { return "remote" }

// Series fetches the bars of symbol from the remote ticker endpoint.
func (p *RemoteProvider) Series(ctx context.Context, symbol, period, interval string) (domain.Series, error) {
	sym := strings.ToUpper(symbol)
	bars, err := p.client.Ticker(ctx, sym, period, interval)
	if err != nil {
		return domain.Series{}, remoteErr(sym, err)
	}
	out := domain.Series{Symbol: sym, Period: period, Interval: interval, Bars: make([]domain.Bar, 0, len(bars))}
	for _, b := range bars {
		out.Bars = append(out.Bars, domain.Bar{
			Symbol:    sym,
			Timestamp: b.Time,
			Open:      b.Open,
			High:      b.High,
			Low:       b.Low,
			Close:     b.Close,
			Volume:    b.Volume,
		})
	}
	if out.Empty() {
		return out, fmt.Errorf("%w: remote returned no bars for %s", ErrDataUnavailable, sym)
	}
	p.log.Debug("fetched series", "symbol", sym, "bars", len(out.Bars))
	return out, nil
}

// Summary fetches the reference information of symbol.
func (p *RemoteProvider) Summary(ctx context.Context, symbol string) (domain.Summary, error) {
	sym := strings.ToUpper(symbol)
	sum, err := p.client.Summary(ctx, sym)
	if err != nil {
		return domain.Summary{}, remoteErr(sym, err)
	}
	return domain.Summary{Symbol: sym, PreviousClose: sum.PreviousClose}, nil
}

func remoteErr(symbol string, err error) error {
	var se *yaticker.StatusError
	if errors.As(err, &se) && se.Code == http.StatusNotFound {
		return fmt.Errorf("%w: %s: %v", ErrDataUnavailable, symbol, err)
	}
	return fmt.Errorf("%w: %w: remote %s: %v", ErrDataUnavailable, ErrUpstream, symbol, err)
}
