package market

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/alpacahq/alpaca-trade-api-go/v3/alpaca"
	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"

	"yaticker/internal/domain"
	"yaticker/internal/util"
)

var _ Provider = (*AlpacaProvider)(nil)

// AlpacaProvider reads US equity bars from the Alpaca market-data API.
type AlpacaProvider struct {
	client  *marketdata.Client
	feed    string
	limiter *util.RateLimiter
	backoff time.Duration
	now     func() time.Time
	log     *slog.Logger
}

// NewAlpacaProvider creates a provider with the given credentials. dataURL
// may be empty to use the SDK default. feed is "iex" or "sip".
func NewAlpacaProvider(apiKey, apiSecret, dataURL, feed string, perMinute int, logger *slog.Logger) *AlpacaProvider {
	if logger == nil {
		logger = slog.Default()
	}
	opts := marketdata.ClientOpts{
		APIKey:    apiKey,
		APISecret: apiSecret,
	}
	if dataURL != "" {
		opts.BaseURL = dataURL
	}
	if feed == "" {
		feed = "iex"
	}

	return &AlpacaProvider{
		client:  marketdata.NewClient(opts),
		feed:    feed,
		limiter: util.NewRateLimiter(perMinute),
		backoff: time.Second,
		now:     time.Now,
		log:     logger.With("provider", "alpaca"),
	}
}

// Name returns the provider identifier.
func (p *AlpacaProvider) Name() string { return "alpaca" }

// Series fetches the bars of symbol for period at interval.
func (p *AlpacaProvider) Series(ctx context.Context, symbol, period, interval string) (domain.Series, error) {
	sym := strings.ToUpper(symbol)
	end := p.now()
	start, err := PeriodStart(period, end)
	if err != nil {
		return domain.Series{}, err
	}
	iv, err := ParseInterval(interval)
	if err != nil {
		return domain.Series{}, err
	}
	tf, err := timeFrame(iv)
	if err != nil {
		return domain.Series{}, err
	}

	bars, err := p.getBars(ctx, sym, tf, start, end)
	if err != nil {
		return domain.Series{}, err
	}
	out := domain.Series{Symbol: sym, Period: period, Interval: interval, Bars: bars}
	if out.Empty() {
		return domain.Series{}, fmt.Errorf("%w: alpaca returned no bars for %s", ErrDataUnavailable, sym)
	}
	p.log.Debug("fetched series", "symbol", sym, "period", period, "interval", interval, "bars", len(bars))
	return out, nil
}

// Summary derives the previous close from the last two daily bars.
func (p *AlpacaProvider) Summary(ctx context.Context, symbol string) (domain.Summary, error) {
	sym := strings.ToUpper(symbol)
	end := p.now()
	bars, err := p.getBars(ctx, sym, marketdata.OneDay, end.AddDate(0, 0, -10), end)
	if err != nil {
		return domain.Summary{}, err
	}
	sum := domain.Summary{Symbol: sym}
	if pc, ok := previousClose(bars, end); ok {
		sum.PreviousClose = &pc
	}
	return sum, nil
}

func (p *AlpacaProvider) getBars(ctx context.Context, symbol string, tf marketdata.TimeFrame, start, end time.Time) ([]domain.Bar, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	var raw []marketdata.Bar
	err := util.Retry(ctx, 3, p.backoff, func() error {
		var err error
		raw, err = p.client.GetBars(symbol, marketdata.GetBarsRequest{
			TimeFrame: tf,
			Start:     start,
			End:       end,
			Feed:      p.feed,
		})
		if rejected(err) {
			return util.Permanent(err)
		}
		return err
	})
	if err != nil {
		if rejected(err) {
			return nil, fmt.Errorf("%w: alpaca %s: %v", ErrDataUnavailable, symbol, err)
		}
		return nil, fmt.Errorf("%w: %w: alpaca %s: %v", ErrDataUnavailable, ErrUpstream, symbol, err)
	}

	bars := make([]domain.Bar, 0, len(raw))
	for _, b := range raw {
		bars = append(bars, domain.Bar{
			Symbol:    symbol,
			Timestamp: b.Timestamp,
			Open:      b.Open,
			High:      b.High,
			Low:       b.Low,
			Close:     b.Close,
			Volume:    int64(b.Volume),
			VWAP:      b.VWAP,
		})
	}
	return bars, nil
}

// rejected reports whether Alpaca refused the request itself, such as bad
// credentials or an unknown symbol. Throttling is not a rejection.
func rejected(err error) bool {
	var apiErr *alpaca.APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	return apiErr.StatusCode >= 400 && apiErr.StatusCode < 500 && apiErr.StatusCode != http.StatusTooManyRequests
}

// previousClose picks the close of the last completed session before the
// day of now. Daily bars are stamped at midnight of their session.
func previousClose(bars []domain.Bar, now time.Time) (float64, bool) {
	y, m, d := now.UTC().Date()
	today := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	for i := len(bars) - 1; i >= 0; i-- {
		if bars[i].Timestamp.Before(today) {
			return bars[i].Close, true
		}
	}
	return 0, false
}

func timeFrame(iv Interval) (marketdata.TimeFrame, error) {
	switch iv.Unit {
	case UnitMinute:
		return marketdata.NewTimeFrame(iv.N, marketdata.Min), nil
	case UnitHour:
		return marketdata.NewTimeFrame(iv.N, marketdata.Hour), nil
	case UnitDay:
		return marketdata.NewTimeFrame(iv.N, marketdata.Day), nil
	case UnitWeek:
		return marketdata.NewTimeFrame(iv.N, marketdata.Week), nil
	case UnitMonth:
		return marketdata.NewTimeFrame(iv.N, marketdata.Month), nil
	}
	return marketdata.TimeFrame{}, fmt.Errorf("unsupported interval unit %q", iv.Unit)
}
