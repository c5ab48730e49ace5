package market

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	yfclient "github.com/wnjoon/go-yfinance/pkg/client"
	"github.com/wnjoon/go-yfinance/pkg/models"
	"github.com/wnjoon/go-yfinance/pkg/ticker"

	"yaticker/internal/domain"
	"yaticker/internal/util"
)

var _ Provider = (*YahooProvider)(nil)

// YahooProvider reads chart history and quote summaries from Yahoo Finance.
type YahooProvider struct {
	limiter  *util.RateLimiter
	attempts int
	backoff  time.Duration
	log      *slog.Logger
}

// NewYahooProvider creates a provider limited to perMinute upstream calls.
func NewYahooProvider(perMinute int, logger *slog.Logger) *YahooProvider {
	if logger == nil {
		logger = slog.Default()
	}
	return &YahooProvider{
		limiter:  util.NewRateLimiter(perMinute),
		attempts: 3,
		backoff:  time.Second,
		log:      logger.With("provider", "yahoo"),
	}
}

// Name returns the provider identifier.
func (p *YahooProvider) Name() string { return "yahoo" }

// Series fetches the bars of symbol for period at interval.
func (p *YahooProvider) Series(ctx context.Context, symbol, period, interval string) (domain.Series, error) {
	out := domain.Series{Symbol: strings.ToUpper(symbol), Period: period, Interval: interval}

	err := p.call(ctx, func() error {
		t, err := ticker.New(out.Symbol)
		if err != nil {
			return fmt.Errorf("creating ticker: %w", err)
		}
		defer t.Close()

		bars, err := t.History(models.HistoryParams{
			Period:     period,
			Interval:   interval,
			AutoAdjust: true,
		})
		if err != nil {
			return fmt.Errorf("history: %w", err)
		}

		out.Bars = out.Bars[:0]
		for _, b := range bars {
			out.Bars = append(out.Bars, domain.Bar{
				Symbol:    out.Symbol,
				Timestamp: b.Date,
				Open:      b.Open,
				High:      b.High,
				Low:       b.Low,
				Close:     b.Close,
				Volume:    int64(b.Volume),
			})
		}
		return nil
	})
	if err != nil {
		return domain.Series{}, yahooErr(out.Symbol, "history", err)
	}
	if out.Empty() {
		return domain.Series{}, fmt.Errorf("%w: yahoo returned no bars for %s", ErrDataUnavailable, out.Symbol)
	}
	p.log.Debug("fetched series", "symbol", out.Symbol, "period", period, "interval", interval, "bars", len(out.Bars))
	return out, nil
}

// Summary fetches the previous close of symbol. A zero previous close is
// reported as absent.
func (p *YahooProvider) Summary(ctx context.Context, symbol string) (domain.Summary, error) {
	sum := domain.Summary{Symbol: strings.ToUpper(symbol)}

	err := p.call(ctx, func() error {
		t, err := ticker.New(sum.Symbol)
		if err != nil {
			return fmt.Errorf("creating ticker: %w", err)
		}
		defer t.Close()

		info, err := t.Info()
		if err != nil {
			return fmt.Errorf("info: %w", err)
		}
		if info != nil && info.RegularMarketPreviousClose > 0 {
			pc := info.RegularMarketPreviousClose
			sum.PreviousClose = &pc
		}
		return nil
	})
	if err != nil {
		return domain.Summary{}, yahooErr(sum.Symbol, "summary", err)
	}
	return sum, nil
}

// call throttles and retries fn. Answers saying the symbol has no data are
// not retried.
func (p *YahooProvider) call(ctx context.Context, fn func() error) error {
	return util.Retry(ctx, p.attempts, p.backoff, func() error {
		if err := p.limiter.Wait(ctx); err != nil {
			return err
		}
		err := fn()
		if noSymbolData(err) {
			return util.Permanent(err)
		}
		return err
	})
}

// noSymbolData reports whether err is Yahoo answering that it has nothing
// for the symbol.
func noSymbolData(err error) bool {
	return yfclient.IsNotFoundError(err) || yfclient.IsInvalidSymbolError(err) || yfclient.IsNoDataError(err)
}

func yahooErr(symbol, op string, err error) error {
	if noSymbolData(err) {
		return fmt.Errorf("%w: yahoo %s %s: %v", ErrDataUnavailable, op, symbol, err)
	}
	return fmt.Errorf("%w: %w: yahoo %s %s: %v", ErrDataUnavailable, ErrUpstream, op, symbol, err)
}
