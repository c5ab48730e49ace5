// Package app assembles the dashboard from configuration: the market-data
// provider chain with its cache, the composer and the engine, plus the
// startup sequence shared by every front end.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"yaticker/internal/canvas"
	"yaticker/internal/config"
	"yaticker/internal/dashboard"
	"yaticker/internal/display"
	"yaticker/internal/engine"
	"yaticker/internal/market"
	"yaticker/internal/store"
	"yaticker/internal/util"
)

// Messages shown by the startup sequence.
const (
	WelcomeMessage = "Welcome to Yaticker"
	OfflineMessage = "No internet connection"
)

const (
	connectURL     = "http://www.google.com/"
	connectTimeout = 3 * time.Second
	offlineRetry   = 30 * time.Second
	cacheMaxAge    = 7 * 24 * time.Hour
)

// App holds the long-lived collaborators built from a configuration.
type App struct {
	Config   *config.Config
	Provider market.Provider
	Composer *dashboard.Composer

	cache   *store.SQLiteStore
	network bool
	online  func(ctx context.Context) bool
	retry   time.Duration
	base    *slog.Logger
	log     *slog.Logger
}

// New builds the provider chain and the composer for cfg. The caller must
// Close the App to release the cache database.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}
	a := &App{
		Config: cfg,
		online: func(ctx context.Context) bool { return util.IsConnected(ctx, connectURL, connectTimeout) },
		retry:  offlineRetry,
		base:   logger,
		log:    logger.With("component", "app"),
	}

	var providers []market.Provider
	for _, name := range cfg.Provider.Sources {
		p, err := newSource(strings.ToLower(strings.TrimSpace(name)), cfg, logger)
		if err != nil {
			return nil, err
		}
		if _, demo := p.(*market.DemoProvider); !demo {
			a.network = true
		}
		providers = append(providers, p)
	}
	if len(providers) == 0 {
		return nil, errors.New("no market data source configured")
	}
	var provider market.Provider = market.NewMultiProvider(providers...)

	if cfg.Cache.Path != "" {
		st, err := openCache(cfg.Cache.Path)
		if err != nil {
			return nil, err
		}
		a.cache = st
		cached := market.NewCachedProvider(provider, st, cfg.CacheTTL(), logger)
		if n, err := cached.Prune(ctx, cacheMaxAge); err != nil {
			a.log.Warn("pruning cache", "error", err)
		} else if n > 0 {
			a.log.Info("pruned cache", "entries", n)
		}
		provider = cached
	}
	a.Provider = provider

	fonts, err := canvas.LoadFonts(cfg.Display.FontPath)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.Composer = dashboard.NewComposer(dashboard.LayoutFor(cfg), fonts, logger)
	return a, nil
}

func newSource(name string, cfg *config.Config, logger *slog.Logger) (market.Provider, error) {
	switch name {
	case "yahoo":
		return market.NewYahooProvider(cfg.Provider.RateLimitPerMin, logger), nil
	case "alpaca":
		if cfg.Alpaca.APIKey == "" || cfg.Alpaca.APISecret == "" {
			return nil, errors.New("alpaca source needs api_key and api_secret")
		}
		return market.NewAlpacaProvider(cfg.Alpaca.APIKey, cfg.Alpaca.APISecret,
			cfg.Alpaca.DataURL, cfg.Alpaca.Feed, cfg.Provider.RateLimitPerMin, logger), nil
	case "remote":
		if cfg.Provider.RemoteURL == "" {
			return nil, errors.New("remote source needs provider.remote_url")
		}
		return market.NewRemoteProvider(cfg.Provider.RemoteURL, logger), nil
	case "demo":
		return market.NewDemoProvider(), nil
	default:
		return nil, fmt.Errorf("unknown market data source %q", name)
	}
}

func openCache(path string) (*store.SQLiteStore, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("creating cache directory: %w", err)
		}
	}
	st, err := store.NewSQLiteStore(path)
	if err != nil {
		return nil, fmt.Errorf("opening cache: %w", err)
	}
	return st, nil
}

// Engine creates a dashboard engine that draws to sink.
func (a *App) Engine(sink display.Sink) *engine.Engine {
	return engine.New(a.Config, a.Provider, a.Composer, sink, a.base)
}

// Close releases the cache database, if any.
func (a *App) Close() error {
	if a.cache == nil {
		return nil
	}
	return a.cache.Close()
}

// Start greets, waits for the network when a networked source is configured,
// and then runs the dashboard until ctx is done. With cycling disabled the
// current symbol is shown once and the engine keeps serving key presses.
func (a *App) Start(ctx context.Context, eng *engine.Engine) error {
	_ = eng.ShowMessage(ctx, WelcomeMessage)

	if err := a.waitOnline(ctx, eng); err != nil {
		return quiet(err)
	}
	if err := eng.Run(ctx); err != nil {
		return quiet(err)
	}
	return quiet(eng.Listen(ctx))
}

func (a *App) waitOnline(ctx context.Context, eng *engine.Engine) error {
	if !a.network || a.online(ctx) {
		return nil
	}
	a.log.Warn("network unreachable, waiting", "url", connectURL)
	_ = eng.ShowMessage(ctx, OfflineMessage)

	ticker := time.NewTicker(a.retry)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if a.online(ctx) {
				a.log.Info("network reachable")
				return nil
			}
		}
	}
}

// quiet maps a cancelled context to a clean exit.
func quiet(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
