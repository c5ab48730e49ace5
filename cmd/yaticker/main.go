package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"golang.org/x/term"

	"yaticker/internal/api"
	"yaticker/internal/app"
	"yaticker/internal/config"
	"yaticker/internal/dashboard"
	"yaticker/internal/display"
	"yaticker/internal/domain"
	"yaticker/internal/engine"
	"yaticker/internal/util"
)

func main() {
	cfgPath := flag.String("config", envOr("YATICKER_CONFIG", "config.yaml"), "path to the YAML configuration")
	tickers := flag.String("tickers", "AMZN", "comma separated list of symbols to print")
	period := flag.String("period", "7d", "lookback period")
	interval := flag.String("interval", "5m", "bar interval")
	serve := flag.Bool("serve", false, "serve the HTTP API instead of printing")
	dash := flag.Bool("dashboard", false, "run the dashboard, writing each screen to -png")
	pngPath := flag.String("png", "yaticker.png", "output file of -dashboard")
	flag.Parse()

	if err := run(*cfgPath, *tickers, *period, *interval, *serve, *dash, *pngPath); err != nil {
		fmt.Fprintln(os.Stderr, "yaticker:", err)
		os.Exit(1)
	}
}

func run(cfgPath, tickers, period, interval string, serve, dash bool, pngPath string) error {
	cfg, err := config.Load(cfgPath)
	if err != nil && !errors.Is(err, config.ErrLoadFailed) {
		return err
	}
	logger := util.NewLogger(cfg.Logging.Level, cfg.Logging.Format)
	util.SetDefault(logger)
	if err != nil {
		logger.Warn("using default configuration", "error", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	switch {
	case dash:
		eng := a.Engine(display.NewFileSink(pngPath, logger))
		if serve {
			go serveAPI(ctx, a, eng, logger)
		}
		stop := readKeys(cancel, eng, logger)
		defer stop()
		logger.Info("dashboard running", "png", pngPath)
		return a.Start(ctx, eng)

	case serve:
		return api.NewServer(cfg, a.Provider, nil, logger).ListenAndServe(ctx)

	default:
		return printBars(ctx, a, config.SplitSymbols(tickers), period, interval)
	}
}

func serveAPI(ctx context.Context, a *app.App, eng *engine.Engine, logger *slog.Logger) {
	if err := api.NewServer(a.Config, a.Provider, eng, logger).ListenAndServe(ctx); err != nil {
		logger.Error("http server", "error", err)
	}
}

// printBars writes one table per symbol. A symbol without data is reported
// and skipped; the run fails only if no symbol printed.
func printBars(ctx context.Context, a *app.App, symbols []string, period, interval string) error {
	if len(symbols) == 0 {
		return errors.New("no tickers given")
	}
	printed := 0
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', tabwriter.AlignRight)
	for _, sym := range symbols {
		s, err := a.Provider.Series(ctx, sym, period, interval)
		if err != nil {
			slog.Error("fetching series", "symbol", sym, "error", err)
			continue
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t\t\t\t\n", s.Symbol, period, interval)
		fmt.Fprintln(w, "Time\tOpen\tHigh\tLow\tClose\tVolume\t")
		for _, b := range s.Bars {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t\n",
				b.Timestamp.In(a.Config.Location()).Format("2006-01-02 15:04"),
				dashboard.FormatPrice(b.Open), dashboard.FormatPrice(b.High),
				dashboard.FormatPrice(b.Low), dashboard.FormatPrice(b.Close),
				dashboard.FormatInt(int(b.Volume)))
		}
		fmt.Fprintln(w, "\t\t\t\t\t\t")
		printed++
	}
	if err := w.Flush(); err != nil {
		return err
	}
	if printed == 0 {
		return errors.New("no data for any ticker")
	}
	return nil
}

// readKeys maps terminal keys 1-4 to dashboard actions and q to quit. It is
// a no-op when stdin is not a terminal.
func readKeys(quit context.CancelFunc, eng *engine.Engine, logger *slog.Logger) (restore func()) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return func() {}
	}
	state, err := term.MakeRaw(fd)
	if err != nil {
		logger.Warn("raw mode unavailable, keys disabled", "error", err)
		return func() {}
	}

	go func() {
		buf := make([]byte, 1)
		for {
			n, err := os.Stdin.Read(buf)
			if err != nil || n == 0 {
				return
			}
			switch c := buf[0]; {
			case c == 'q' || c == 'Q' || c == 3: // 3 is Ctrl-C in raw mode
				quit()
				return
			case c >= '1' && c <= '4':
				if a, ok := domain.ActionForKey(int(c - '0')); ok {
					eng.Trigger(a)
				}
			}
		}
	}()
	return func() { _ = term.Restore(fd, state) }
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
