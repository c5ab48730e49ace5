package market

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"yaticker/internal/domain"
	"yaticker/internal/store"
)

// CacheStore is the persistence a CachedProvider needs.
type CacheStore interface {
	store.SeriesStore
	store.SummaryStore
}

var _ Provider = (*CachedProvider)(nil)

// CachedProvider serves series and summaries from a store while they are
// younger than the TTL and refreshes them from the wrapped provider
// otherwise. When the upstream fails, a stale snapshot is served instead of
// an error.
type CachedProvider struct {
	next  Provider
	store CacheStore
	ttl   time.Duration
	now   func() time.Time
	log   *slog.Logger
}

// NewCachedProvider wraps next with a store-backed cache.
func NewCachedProvider(next Provider, st CacheStore, ttl time.Duration, logger *slog.Logger) *CachedProvider {
	if logger == nil {
		logger = slog.Default()
	}
	return &CachedProvider{
		next:  next,
		store: st,
		ttl:   ttl,
		now:   time.Now,
		log:   logger.With("provider", "cache"),
	}
}

// Series returns a cached series when fresh, otherwise fetches and stores it.
func (c *CachedProvider) Series(ctx context.Context, symbol, period, interval string) (domain.Series, error) {
	key := store.SeriesKey{Symbol: strings.ToUpper(symbol), Period: period, Interval: interval}

	snap, cacheErr := c.store.GetSeries(ctx, key)
	if cacheErr == nil && c.fresh(snap.FetchedAt) && !snap.Series.Empty() {
		return snap.Series, nil
	}
	if cacheErr != nil && !errors.Is(cacheErr, store.ErrNotFound) {
		c.log.Warn("cache read failed", "symbol", key.Symbol, "error", cacheErr)
	}

	s, err := c.next.Series(ctx, symbol, period, interval)
	if err != nil {
		if cacheErr == nil && !snap.Series.Empty() {
			c.log.Warn("upstream failed, serving stale series",
				"symbol", key.Symbol,
				"age", c.now().Sub(snap.FetchedAt).Round(time.Second),
				"error", err,
			)
			return snap.Series, nil
		}
		return domain.Series{}, err
	}

	if err := c.store.PutSeries(ctx, s, c.now()); err != nil {
		c.log.Warn("cache write failed", "symbol", key.Symbol, "error", err)
	}
	return s, nil
}

// Summary returns a cached summary when fresh, otherwise fetches and stores
// it.
func (c *CachedProvider) Summary(ctx context.Context, symbol string) (domain.Summary, error) {
	sym := strings.ToUpper(symbol)

	sum, fetched, cacheErr := c.store.GetSummary(ctx, sym)
	if cacheErr == nil && c.fresh(fetched) {
		return sum, nil
	}

	got, err := c.next.Summary(ctx, symbol)
	if err != nil {
		if cacheErr == nil {
			c.log.Warn("upstream failed, serving stale summary", "symbol", sym, "error", err)
			return sum, nil
		}
		return domain.Summary{}, err
	}

	if err := c.store.PutSummary(ctx, got, c.now()); err != nil {
		c.log.Warn("cache write failed", "symbol", sym, "error", err)
	}
	return got, nil
}

// Prune drops series snapshots older than maxAge.
func (c *CachedProvider) Prune(ctx context.Context, maxAge time.Duration) (int64, error) {
	return c.store.DeleteBefore(ctx, c.now().Add(-maxAge))
}

func (c *CachedProvider) fresh(fetchedAt time.Time) bool {
	return c.now().Sub(fetchedAt) < c.ttl
}
