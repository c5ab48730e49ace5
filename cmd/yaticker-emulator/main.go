package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"fyne.io/fyne/v2"
	fyneapp "fyne.io/fyne/v2/app"

	"yaticker/internal/api"
	"yaticker/internal/app"
	"yaticker/internal/config"
	"yaticker/internal/display"
	"yaticker/internal/domain"
	"yaticker/internal/engine"
	"yaticker/internal/util"
)

func main() {
	cfgPath := flag.String("config", envOr("YATICKER_CONFIG", "config.yaml"), "path to the YAML configuration")
	pngPath := flag.String("png", "", "write screens to this PNG file instead of opening a window")
	scale := flag.Float64("scale", 2, "window zoom factor")
	press := flag.String("press", "", "comma separated actions (next, refresh, settings, reserved) to trigger after startup")
	serve := flag.Bool("serve", false, "also serve the HTTP API")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil && !errors.Is(err, config.ErrLoadFailed) {
		fmt.Fprintln(os.Stderr, "yaticker-emulator:", err)
		os.Exit(1)
	}
	logger := util.NewLogger(cfg.Logging.Level, cfg.Logging.Format)
	util.SetDefault(logger)
	if err != nil {
		logger.Warn("using default configuration", "error", err)
	}

	script, err := parseActions(*press)
	if err != nil {
		logger.Error("invalid -press", "error", err)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	dash, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("building dashboard", "error", err)
		os.Exit(1)
	}
	defer dash.Close()

	if *pngPath != "" {
		eng := dash.Engine(display.NewFileSink(*pngPath, logger))
		start(ctx, dash, eng, script, *serve, logger)
		if err := dash.Start(ctx, eng); err != nil {
			logger.Error("dashboard stopped", "error", err)
		}
		return
	}

	fa := fyneapp.New()
	var eng *engine.Engine
	ws := display.NewWindowSink(fa, cfg.Display.Width, cfg.Display.Height, float32(*scale), func(a domain.Action) {
		eng.Trigger(a)
	}, logger)
	eng = dash.Engine(ws)
	start(ctx, dash, eng, script, *serve, logger)

	go func() {
		if err := dash.Start(ctx, eng); err != nil {
			logger.Error("dashboard stopped", "error", err)
		}
		fyne.Do(fa.Quit)
	}()
	ws.Window().SetOnClosed(cancel)
	ws.Window().ShowAndRun()
}

// start launches the optional HTTP API and the scripted key presses.
func start(ctx context.Context, dash *app.App, eng *engine.Engine, script []domain.Action, serve bool, logger *slog.Logger) {
	if serve {
		go func() {
			if err := api.NewServer(dash.Config, dash.Provider, eng, logger).ListenAndServe(ctx); err != nil {
				logger.Error("http server", "error", err)
			}
		}()
	}
	if len(script) == 0 {
		return
	}
	go func() {
		t := time.NewTicker(2 * time.Second)
		defer t.Stop()
		for _, a := range script {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				if !eng.Trigger(a) {
					logger.Warn("scripted press dropped", "action", a)
				}
			}
		}
	}()
}

func parseActions(s string) ([]domain.Action, error) {
	var out []domain.Action
	for _, part := range strings.Split(s, ",") {
		if strings.TrimSpace(part) == "" {
			continue
		}
		a, err := domain.ParseAction(part)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
