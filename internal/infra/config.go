package infra

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds every setting for the pipeline. Loaded from YAML, then
// sensitive values are overridden from environment variables.
type Config struct {
	App struct {
		Name    string `yaml:"name"`
		Version string `yaml:"version"`
	} `yaml:"app"`

	Market struct {
		Symbols         []string `yaml:"symbols"`
		PollIntervalSec int      `yaml:"poll_interval_sec"`
		StaleAfterSec   int      `yaml:"stale_after_sec"`
		RequestTimeout  int      `yaml:"request_timeout_sec"`

		Sources struct {
			BinanceURL       string `yaml:"binance_url"`
			CryptoCompareURL string `yaml:"cryptocompare_url"`
			CoinGeckoURL     string `yaml:"coingecko_url"`
		} `yaml:"sources"`
	} `yaml:"market"`

	Stream struct {
		URL          string `yaml:"url"`
		BaseDelayMS  int    `yaml:"base_delay_ms"`
		MaxAttempts  int    `yaml:"max_attempts"`
		ReadTimeout  int    `yaml:"read_timeout_sec"`
		PingInterval int    `yaml:"ping_interval_sec"`
	} `yaml:"stream"`

	Alerts struct {
		CheckIntervalSec int `yaml:"check_interval_sec"`
	} `yaml:"alerts"`

	Storage struct {
		DBPath     string `yaml:"db_path"`
		RemoteURL  string `yaml:"remote_url"`
		UserID     string `yaml:"user_id"`
		UserSecret string `yaml:"user_secret"`
	} `yaml:"storage"`

	Logging struct {
		Level string `yaml:"level"`
	} `yaml:"logging"`
}

// DefaultConfig returns a config with the documented defaults applied.
func DefaultConfig() *Config {
	var cfg Config
	cfg.App.Name = AppName
	cfg.Market.Symbols = []string{"BTC", "ETH"}
	cfg.Market.PollIntervalSec = 5
	cfg.Market.StaleAfterSec = 10
	cfg.Market.RequestTimeout = 10
	cfg.Market.Sources.BinanceURL = "https://api.binance.com/api/v3/ticker/24hr"
	cfg.Market.Sources.CryptoCompareURL = "https://min-api.cryptocompare.com/data/pricemulti"
	cfg.Market.Sources.CoinGeckoURL = "https://api.coingecko.com/api/v3/simple/price"
	cfg.Stream.URL = "wss://stream.binance.com:9443/stream"
	cfg.Stream.BaseDelayMS = 1000
	cfg.Stream.MaxAttempts = 5
	cfg.Stream.ReadTimeout = 60
	cfg.Stream.PingInterval = 30
	cfg.Alerts.CheckIntervalSec = 10
	cfg.Logging.Level = "info"
	return &cfg
}

// LoadConfig reads and parses the config file, applies env overrides
// and validates the result. A missing file is not an error; defaults
// plus environment variables form a complete configuration.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, err
	}
	if err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, err
		}
	}

	overrideWithEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks configuration validity.
func (c *Config) Validate() error {
	if len(c.Market.Symbols) == 0 {
		return fmt.Errorf("at least one market symbol is required")
	}
	if c.Market.PollIntervalSec <= 0 {
		return fmt.Errorf("poll interval must be positive")
	}
	if c.Stream.URL == "" || (!strings.HasPrefix(c.Stream.URL, "ws://") && !strings.HasPrefix(c.Stream.URL, "wss://")) {
		return fmt.Errorf("invalid stream URL: %s", c.Stream.URL)
	}
	if c.Stream.MaxAttempts <= 0 {
		return fmt.Errorf("stream max attempts must be positive")
	}
	// Floor the alert check interval to bound API load from the
	// backup poller's stale-price fallback fetches.
	if c.Alerts.CheckIntervalSec < 5 {
		c.Alerts.CheckIntervalSec = 5
	}
	return nil
}

// PollInterval returns the aggregator polling interval.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Market.PollIntervalSec) * time.Second
}

// StaleAfter returns the freshness threshold for ticker data.
func (c *Config) StaleAfter() time.Duration {
	return time.Duration(c.Market.StaleAfterSec) * time.Second
}

// CheckInterval returns the alert monitor interval.
func (c *Config) CheckInterval() time.Duration {
	return time.Duration(c.Alerts.CheckIntervalSec) * time.Second
}

// RemoteEnabled reports whether the per-user remote store tier is
// configured. Without it, persistence is local only.
func (c *Config) RemoteEnabled() bool {
	return c.Storage.RemoteURL != "" && c.Storage.UserID != "" && c.Storage.UserSecret != ""
}

// overrideWithEnv applies env vars over file values. Env wins so that
// user credentials never need to live in the config file.
func overrideWithEnv(cfg *Config) {
	if v := os.Getenv("COINFOX_REMOTE_URL"); v != "" {
		cfg.Storage.RemoteURL = v
	}
	if v := os.Getenv("COINFOX_USER_ID"); v != "" {
		cfg.Storage.UserID = v
	}
	if v := os.Getenv("COINFOX_USER_SECRET"); v != "" {
		cfg.Storage.UserSecret = v
	}
	if v := os.Getenv("COINFOX_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}
