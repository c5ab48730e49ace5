package config

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write temp file: %v", err)
	}
	return path
}

// clearEnv unsets every variable applyEnvOverrides reads for the duration
// of the test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"YATICKER_WATCHLIST", "YATICKER_PERIOD", "YATICKER_INTERVAL", "YATICKER_TIMEZONE",
		"YATICKER_UPDATE_FREQUENCY", "YATICKER_CACHE_PATH", "YATICKER_REMOTE_URL",
		"ALPACA_API_KEY", "ALPACA_API_SECRET", "ALPACA_DATA_URL",
		"APCA_API_KEY_ID", "APCA_API_SECRET_KEY", "LOG_LEVEL",
	} {
		t.Setenv(k, "")
	}
}

func TestLoadFile(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, `
watchlist:
  - MSFT
  - TSLA
cycle: false
updatefrequency: 60
showvolume: true
period: 1mo
display:
  chartheight: 116
provider:
  sources: [yahoo, alpaca]
cache:
  path: /tmp/yaticker/cache.db
alpaca:
  api_key: "test-key"
  api_secret: "test-secret"
logging:
  level: "debug"
  format: "json"
something_else: ignored
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}

	// -- Dashboard --
	if want := []string{"MSFT", "TSLA"}; !reflect.DeepEqual(cfg.Watchlist, want) {
		t.Errorf("Watchlist = %v, want %v", cfg.Watchlist, want)
	}
	if cfg.Cycle {
		t.Error("Cycle = true, want false")
	}
	if cfg.UpdateFrequency != 60 {
		t.Errorf("UpdateFrequency = %d, want %d", cfg.UpdateFrequency, 60)
	}
	if cfg.Refresh() != time.Minute {
		t.Errorf("Refresh() = %v, want %v", cfg.Refresh(), time.Minute)
	}
	if !cfg.ShowVolume {
		t.Error("ShowVolume = false, want true")
	}
	if cfg.Period != "1mo" {
		t.Errorf("Period = %q, want %q", cfg.Period, "1mo")
	}

	// -- Keys absent from the file keep their defaults --
	if cfg.Interval != "1h" {
		t.Errorf("Interval = %q, want default %q", cfg.Interval, "1h")
	}
	if cfg.Display.Width != 264 || cfg.Display.Height != 176 || cfg.Display.DPI != 117 {
		t.Errorf("Display = %+v, want 264x176 at 117 dpi", cfg.Display)
	}
	if cfg.Display.ChartHeight != 116 {
		t.Errorf("Display.ChartHeight = %d, want %d", cfg.Display.ChartHeight, 116)
	}
	if cfg.Timezone != "Asia/Singapore" {
		t.Errorf("Timezone = %q, want %q", cfg.Timezone, "Asia/Singapore")
	}

	// -- Provider / cache / alpaca --
	if want := []string{"yahoo", "alpaca"}; !reflect.DeepEqual(cfg.Provider.Sources, want) {
		t.Errorf("Provider.Sources = %v, want %v", cfg.Provider.Sources, want)
	}
	if cfg.Cache.Path != "/tmp/yaticker/cache.db" {
		t.Errorf("Cache.Path = %q, want %q", cfg.Cache.Path, "/tmp/yaticker/cache.db")
	}
	if cfg.Alpaca.APIKey != "test-key" {
		t.Errorf("Alpaca.APIKey = %q, want %q", cfg.Alpaca.APIKey, "test-key")
	}
	if cfg.Alpaca.Feed != "iex" {
		t.Errorf("Alpaca.Feed = %q, want default %q", cfg.Alpaca.Feed, "iex")
	}

	// -- Logging --
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q, want %q", cfg.Logging.Level, "debug")
	}
	if cfg.Logging.Format != "json" {
		t.Errorf("Logging.Format = %q, want %q", cfg.Logging.Format, "json")
	}
}

func TestLoadMissingFileFallsBackToDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if !errors.Is(err, ErrLoadFailed) {
		t.Fatalf("Load() error = %v, want ErrLoadFailed", err)
	}
	if cfg == nil {
		t.Fatal("Load() returned nil config alongside ErrLoadFailed")
	}

	def := Default()
	if !reflect.DeepEqual(cfg.Watchlist, def.Watchlist) {
		t.Errorf("Watchlist = %v, want %v", cfg.Watchlist, def.Watchlist)
	}
	if !cfg.Cycle || cfg.UpdateFrequency != 300 || cfg.ShowVolume || cfg.Period != "5d" {
		t.Errorf("dashboard defaults not applied: %+v", cfg)
	}
}

func TestLoadMalformedFileFallsBackToDefaults(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, "watchlist: [MSFT\ncycle: ::: nope")

	cfg, err := Load(path)
	if !errors.Is(err, ErrLoadFailed) {
		t.Fatalf("Load() error = %v, want ErrLoadFailed", err)
	}
	if !reflect.DeepEqual(cfg.Watchlist, Default().Watchlist) {
		t.Errorf("Watchlist = %v, want defaults", cfg.Watchlist)
	}
}

func TestLoadEmptyPathUsesDefaults(t *testing.T) {
	clearEnv(t)
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load(\"\") returned error: %v", err)
	}
	if cfg.Display.Width != 264 {
		t.Errorf("Display.Width = %d, want 264", cfg.Display.Width)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	clearEnv(t)
	tests := map[string]string{
		"zero frequency":   "updatefrequency: 0",
		"negative width":   "display:\n  width: -1",
		"empty watchlist":  "watchlist: []",
		"chart too tall":   "display:\n  chartheight: 500",
		"zero dpi":         "display:\n  dpi: 0",
		"blank symbol":     "watchlist: ['']",
		"negative debounce": "debouncems: -5",
	}
	for name, content := range tests {
		t.Run(name, func(t *testing.T) {
			cfg, err := Load(writeConfig(t, content))
			if err == nil {
				t.Fatalf("Load() accepted %q: %+v", content, cfg)
			}
			if errors.Is(err, ErrLoadFailed) {
				t.Errorf("Load() error = %v, want a validation error", err)
			}
		})
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, `
alpaca:
  api_key: "yaml-key"
  api_secret: "yaml-secret"
period: 5d
`)

	t.Setenv("ALPACA_API_KEY", "env-key")
	t.Setenv("YATICKER_WATCHLIST", "nvda, amd,,")
	t.Setenv("YATICKER_PERIOD", "1y")
	t.Setenv("YATICKER_UPDATE_FREQUENCY", "30")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}

	if cfg.Alpaca.APIKey != "env-key" {
		t.Errorf("Alpaca.APIKey = %q, want %q (env override)", cfg.Alpaca.APIKey, "env-key")
	}
	// api_secret should remain from YAML since no env override was set.
	if cfg.Alpaca.APISecret != "yaml-secret" {
		t.Errorf("Alpaca.APISecret = %q, want %q (from YAML)", cfg.Alpaca.APISecret, "yaml-secret")
	}
	if want := []string{"NVDA", "AMD"}; !reflect.DeepEqual(cfg.Watchlist, want) {
		t.Errorf("Watchlist = %v, want %v (env override)", cfg.Watchlist, want)
	}
	if cfg.Period != "1y" {
		t.Errorf("Period = %q, want %q (env override)", cfg.Period, "1y")
	}
	if cfg.UpdateFrequency != 30 {
		t.Errorf("UpdateFrequency = %d, want 30 (env override)", cfg.UpdateFrequency)
	}

	// The canonical SDK variable wins over ALPACA_API_KEY.
	t.Setenv("APCA_API_KEY_ID", "apca-key")
	cfg, err = Load(path)
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}
	if cfg.Alpaca.APIKey != "apca-key" {
		t.Errorf("Alpaca.APIKey = %q, want %q", cfg.Alpaca.APIKey, "apca-key")
	}
}

func TestLocationFallsBackToUTC(t *testing.T) {
	cfg := Default()
	cfg.Timezone = "Mars/Olympus_Mons"
	if cfg.Location() != time.UTC {
		t.Errorf("Location() = %v, want UTC", cfg.Location())
	}
}
