package config

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

// Config is the top-level application configuration
type Config struct {
	Logging   LoggingConfig   `toml:"logging"`
	Directory DirectoryConfig `toml:"directory"`
	Catalog   CatalogConfig   `toml:"catalog"`
	Playback  PlaybackConfig  `toml:"playback"`
	Storage   StorageConfig   `toml:"storage"`
}

// LoggingConfig controls log output
type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// DirectoryConfig configures the remote station directory client
type DirectoryConfig struct {
	BaseURL     string `toml:"base_url"`
	TimeoutSecs int    `toml:"timeout_secs"`
	UserAgent   string `toml:"user_agent"`
}

// Timeout returns the request timeout as a duration
func (c DirectoryConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSecs) * time.Second
}

// CatalogConfig configures the station record store
type CatalogConfig struct {
	// InitialLimit is how many top-voted stations to load into the light index
	InitialLimit int `toml:"initial_limit"`
}

// PlaybackConfig configures the playback session controller
type PlaybackConfig struct {
	LoadTimeoutSecs int `toml:"load_timeout_secs"`
	RetryDelayMs    int `toml:"retry_delay_ms"`
	MaxRetries      int `toml:"max_retries"`
}

// LoadTimeout returns the stream load timeout as a duration
func (c PlaybackConfig) LoadTimeout() time.Duration {
	return time.Duration(c.LoadTimeoutSecs) * time.Second
}

// RetryDelay returns the delay before the single fallback retry
func (c PlaybackConfig) RetryDelay() time.Duration {
	return time.Duration(c.RetryDelayMs) * time.Millisecond
}

// StorageConfig configures local persistence
type StorageConfig struct {
	// Path to the sqlite database file; empty means in-memory only
	Path string `toml:"path"`
}

// Default returns the built-in configuration defaults
func Default() *Config {
	return &Config{
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
		Directory: DirectoryConfig{
			BaseURL:     "https://de1.api.radio-browser.info/json",
			TimeoutSecs: 15,
			UserAgent:   "radioatlas/1.0",
		},
		Catalog: CatalogConfig{
			InitialLimit: 5000,
		},
		Playback: PlaybackConfig{
			LoadTimeoutSecs: 10,
			RetryDelayMs:    1500,
			MaxRetries:      1,
		},
		Storage: StorageConfig{
			Path: "radioatlas.db",
		},
	}
}

// Load reads the TOML config at path, applying defaults for missing values.
// A missing file is not an error; defaults are returned.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		return cfg, nil
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.Directory.BaseURL == "" {
		return fmt.Errorf("directory.base_url must not be empty")
	}
	if c.Directory.TimeoutSecs <= 0 {
		return fmt.Errorf("directory.timeout_secs must be positive")
	}
	if c.Catalog.InitialLimit <= 0 {
		return fmt.Errorf("catalog.initial_limit must be positive")
	}
	if c.Playback.LoadTimeoutSecs <= 0 {
		return fmt.Errorf("playback.load_timeout_secs must be positive")
	}
	if c.Playback.MaxRetries < 0 {
		return fmt.Errorf("playback.max_retries must not be negative")
	}
	return nil
}
