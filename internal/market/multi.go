package market

import (
	"context"
	"errors"
	"fmt"

	"yaticker/internal/domain"
)

var _ Provider = (*MultiProvider)(nil)

// MultiProvider asks each provider in turn and returns the first success.
type MultiProvider struct {
	providers []Provider
}

// NewMultiProvider chains providers in priority order.
func NewMultiProvider(providers ...Provider) *MultiProvider {
	return &MultiProvider{providers: providers}
}

// Series returns the first non-empty series.
func (m *MultiProvider) Series(ctx context.Context, symbol, period, interval string) (domain.Series, error) {
	if len(m.providers) == 0 {
		return domain.Series{}, errors.New("no market providers configured")
	}
	var lastErr error
	for _, p := range m.providers {
		s, err := p.Series(ctx, symbol, period, interval)
		if err == nil && !s.Empty() {
			return s, nil
		}
		if err := ctx.Err(); err != nil {
			return domain.Series{}, err
		}
		lastErr = err
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("%w: all providers returned no bars for %s", ErrDataUnavailable, symbol)
	}
	return domain.Series{}, lastErr
}

// Summary returns the first summary that carries a previous close, or the
// last successful one if none does.
func (m *MultiProvider) Summary(ctx context.Context, symbol string) (domain.Summary, error) {
	if len(m.providers) == 0 {
		return domain.Summary{}, errors.New("no market providers configured")
	}
	var (
		fallback *domain.Summary
		lastErr  error
	)
	for _, p := range m.providers {
		sum, err := p.Summary(ctx, symbol)
		if err != nil {
			lastErr = err
			continue
		}
		if sum.PreviousClose != nil {
			return sum, nil
		}
		if fallback == nil {
			fallback = &sum
		}
	}
	if fallback != nil {
		return *fallback, nil
	}
	return domain.Summary{}, lastErr
}
