package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// ErrLoadFailed wraps the reason a configuration file could not be used.
// Load still returns a usable default configuration alongside it.
var ErrLoadFailed = errors.New("config load failed")

// ---------------------------------------------------------------------------
// Configuration structs
// ---------------------------------------------------------------------------

// Config is the top-level configuration of the dashboard.
type Config struct {
	// Dashboard keys.
	Watchlist       []string `yaml:"watchlist"`
	Cycle           bool     `yaml:"cycle"`
	UpdateFrequency int      `yaml:"updatefrequency"` // seconds between symbols
	ShowVolume      bool     `yaml:"showvolume"`
	Period          string   `yaml:"period"`
	Interval        string   `yaml:"interval"`
	Timezone        string   `yaml:"timezone"`
	Currency        string   `yaml:"currency"`
	DebounceMS      int      `yaml:"debouncems"`

	Display  Display  `yaml:"display"`
	Provider Provider `yaml:"provider"`
	Cache    Cache    `yaml:"cache"`
	Alpaca   Alpaca   `yaml:"alpaca"`
	Server   Server   `yaml:"server"`
	Logging  Logging  `yaml:"logging"`
	Panel    Panel    `yaml:"panel"`
}

// Display describes the target surface.
type Display struct {
	Width       int    `yaml:"width"`
	Height      int    `yaml:"height"`
	DPI         int    `yaml:"dpi"`
	ChartHeight int    `yaml:"chartheight"`
	FontPath    string `yaml:"fontpath"`
}

// Provider selects the market-data vendors. Sources are tried in order.
// RemoteURL is the base URL of another yaticker server, used by the
// "remote" source.
type Provider struct {
	Sources         []string `yaml:"sources"`
	RateLimitPerMin int      `yaml:"rate_limit_per_min"`
	RemoteURL       string   `yaml:"remote_url"`
}

// Cache configures the SQLite market-data cache. An empty path disables it.
type Cache struct {
	Path       string `yaml:"path"`
	TTLSeconds int    `yaml:"ttl_seconds"`
}

// Alpaca holds credentials and endpoints for the Alpaca market-data API.
type Alpaca struct {
	APIKey    string `yaml:"api_key"`
	APISecret string `yaml:"api_secret"`
	DataURL   string `yaml:"data_url"`
	Feed      string `yaml:"feed"`
}

// Server holds the HTTP listener configuration.
type Server struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// Logging configures the application logger.
type Logging struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Panel names the SPI port and GPIO lines of the e-paper HAT.
type Panel struct {
	SPIPort string   `yaml:"spi_port"`
	DCPin   string   `yaml:"dc_pin"`
	RSTPin  string   `yaml:"rst_pin"`
	BusyPin string   `yaml:"busy_pin"`
	KeyPins []string `yaml:"key_pins"`
}

// Addr returns the host:port listen address.
func (s Server) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// Refresh returns the auto-cycle period.
func (c *Config) Refresh() time.Duration {
	return time.Duration(c.UpdateFrequency) * time.Second
}

// Debounce returns the minimum spacing of accepted key presses.
func (c *Config) Debounce() time.Duration {
	return time.Duration(c.DebounceMS) * time.Millisecond
}

// CacheTTL returns how long cached market data stays fresh.
func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.Cache.TTLSeconds) * time.Second
}

// Location resolves Timezone, falling back to UTC when it is unknown.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// ---------------------------------------------------------------------------
// Defaults
// ---------------------------------------------------------------------------

// Default returns the configuration used for every key the file leaves out.
func Default() *Config {
	return &Config{
		Watchlist:       []string{"AMZN", "FB", "APPL"},
		Cycle:           true,
		UpdateFrequency: 300,
		ShowVolume:      false,
		Period:          "5d",
		Interval:        "1h",
		Timezone:        "Asia/Singapore",
		Currency:        "$",
		DebounceMS:      200,
		Display: Display{
			Width:  264,
			Height: 176,
			DPI:    117,
		},
		Provider: Provider{
			Sources:         []string{"yahoo"},
			RateLimitPerMin: 60,
		},
		Cache: Cache{TTLSeconds: 120},
		Alpaca: Alpaca{
			Feed: "iex",
		},
		Server: Server{
			Host: "127.0.0.1",
			Port: 8080,
		},
		Logging: Logging{
			Level:  "info",
			Format: "text",
		},
		Panel: Panel{
			SPIPort: "SPI0.0",
			DCPin:   "GPIO25",
			RSTPin:  "GPIO17",
			BusyPin: "GPIO24",
			KeyPins: []string{"GPIO5", "GPIO6", "GPIO13", "GPIO19"},
		},
	}
}

// ---------------------------------------------------------------------------
// Loading
// ---------------------------------------------------------------------------

// Load reads the YAML configuration file at path over the defaults and then
// applies environment variable overrides. A .env file in the working
// directory is loaded first if present.
//
// A missing or malformed file is not fatal: Load returns the defaults (with
// environment overrides) together with an error wrapping ErrLoadFailed, and
// callers are expected to log it and carry on. Any other error means the
// resulting configuration is invalid.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg := Default()
	var loadErr error
	if path != "" {
		if err := decodeFile(path, cfg); err != nil {
			cfg = Default()
			loadErr = fmt.Errorf("%w: %s: %v", ErrLoadFailed, path, err)
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, loadErr
}

func decodeFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	// Unknown keys are ignored.
	return yaml.Unmarshal(data, cfg)
}

// Validate checks the invariants the dashboard relies on.
func (c *Config) Validate() error {
	var problems []string
	if len(c.Watchlist) == 0 {
		problems = append(problems, "watchlist must not be empty")
	}
	for i, s := range c.Watchlist {
		if strings.TrimSpace(s) == "" {
			problems = append(problems, fmt.Sprintf("watchlist[%d] is blank", i))
		}
	}
	if c.UpdateFrequency <= 0 {
		problems = append(problems, "updatefrequency must be positive")
	}
	if c.Display.Width <= 0 || c.Display.Height <= 0 {
		problems = append(problems, "display width and height must be positive")
	}
	if c.Display.DPI <= 0 {
		problems = append(problems, "display dpi must be positive")
	}
	if c.Display.ChartHeight < 0 || c.Display.ChartHeight > c.Display.Height {
		problems = append(problems, "display chartheight must be between 0 and height")
	}
	if c.DebounceMS < 0 {
		problems = append(problems, "debouncems must not be negative")
	}
	if c.Period == "" || c.Interval == "" {
		problems = append(problems, "period and interval must be set")
	}
	if len(problems) > 0 {
		return fmt.Errorf("invalid config: %s", strings.Join(problems, "; "))
	}
	return nil
}

// applyEnvOverrides checks well-known environment variables and overrides the
// corresponding configuration fields when they are set.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("YATICKER_WATCHLIST"); v != "" {
		cfg.Watchlist = SplitSymbols(v)
	}
	if v := os.Getenv("YATICKER_PERIOD"); v != "" {
		cfg.Period = v
	}
	if v := os.Getenv("YATICKER_INTERVAL"); v != "" {
		cfg.Interval = v
	}
	if v := os.Getenv("YATICKER_TIMEZONE"); v != "" {
		cfg.Timezone = v
	}
	if v := os.Getenv("YATICKER_UPDATE_FREQUENCY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.UpdateFrequency = n
		}
	}
	if v := os.Getenv("YATICKER_CACHE_PATH"); v != "" {
		cfg.Cache.Path = v
	}
	if v := os.Getenv("YATICKER_REMOTE_URL"); v != "" {
		cfg.Provider.RemoteURL = v
	}

	if v := os.Getenv("ALPACA_API_KEY"); v != "" {
		cfg.Alpaca.APIKey = v
	}
	if v := os.Getenv("ALPACA_API_SECRET"); v != "" {
		cfg.Alpaca.APISecret = v
	}
	if v := os.Getenv("ALPACA_DATA_URL"); v != "" {
		cfg.Alpaca.DataURL = v
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}

	// Standard Alpaca env vars (highest priority, canonical names used by the SDK).
	if v := os.Getenv("APCA_API_KEY_ID"); v != "" {
		cfg.Alpaca.APIKey = v
	}
	if v := os.Getenv("APCA_API_SECRET_KEY"); v != "" {
		cfg.Alpaca.APISecret = v
	}
}

// SplitSymbols parses a comma-separated symbol list, upper-casing entries
// and dropping blanks.
func SplitSymbols(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.ToUpper(strings.TrimSpace(part)); p != "" {
			out = append(out, p)
		}
	}
	return out
}
