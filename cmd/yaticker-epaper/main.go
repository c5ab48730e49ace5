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

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/host/v3"

	"yaticker/internal/api"
	"yaticker/internal/app"
	"yaticker/internal/config"
	"yaticker/internal/display"
	"yaticker/internal/domain"
	"yaticker/internal/epd"
	"yaticker/internal/util"
)

func main() {
	cfgPath := flag.String("config", envOr("YATICKER_CONFIG", "config.yaml"), "path to the YAML configuration")
	serve := flag.Bool("serve", false, "also serve the HTTP API")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil && !errors.Is(err, config.ErrLoadFailed) {
		fmt.Fprintln(os.Stderr, "yaticker-epaper:", err)
		os.Exit(1)
	}
	logger := util.NewLogger(cfg.Logging.Level, cfg.Logging.Format)
	util.SetDefault(logger)
	if err != nil {
		logger.Warn("using default configuration", "error", err)
	}

	if err := run(cfg, *serve, logger); err != nil {
		logger.Error("yaticker-epaper failed", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, serve bool, logger *slog.Logger) error {
	if _, err := host.Init(); err != nil {
		return fmt.Errorf("initializing host drivers: %w", err)
	}

	port, err := spireg.Open(cfg.Panel.SPIPort)
	if err != nil {
		return fmt.Errorf("opening %s: %w", cfg.Panel.SPIPort, err)
	}
	defer port.Close()

	dc, err := pin(cfg.Panel.DCPin)
	if err != nil {
		return err
	}
	rst, err := pin(cfg.Panel.RSTPin)
	if err != nil {
		return err
	}
	busy, err := pin(cfg.Panel.BusyPin)
	if err != nil {
		return err
	}
	if err := busy.In(gpio.PullUp, gpio.NoEdge); err != nil {
		return fmt.Errorf("configuring busy pin: %w", err)
	}

	var keys []gpio.PinIn
	for _, name := range cfg.Panel.KeyPins {
		p, err := pin(name)
		if err != nil {
			return err
		}
		keys = append(keys, p)
	}

	dev, err := epd.New(port, dc, rst, busy, nil)
	if err != nil {
		return err
	}
	keypad := epd.NewKeypad(keys, cfg.Debounce())
	if err := keypad.Arm(); err != nil {
		return err
	}
	logger.Info("panel ready", "device", dev.String(), "spi", cfg.Panel.SPIPort)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	dash, err := app.New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer dash.Close()

	eng := dash.Engine(display.NewPanelSink(dev, keypad, logger))

	go func() {
		if err := keypad.Watch(ctx, func(a domain.Action) { eng.Trigger(a) }); err != nil && ctx.Err() == nil {
			logger.Error("keypad stopped", "error", err)
		}
	}()
	if serve {
		go func() {
			if err := api.NewServer(cfg, dash.Provider, eng, logger).ListenAndServe(ctx); err != nil {
				logger.Error("http server", "error", err)
			}
		}()
	}

	return dash.Start(ctx, eng)
}

func pin(name string) (gpio.PinIO, error) {
	p := gpioreg.ByName(name)
	if p == nil {
		return nil, fmt.Errorf("unknown gpio %q", name)
	}
	return p, nil
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
