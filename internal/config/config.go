package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Spawn modes.
const (
	SpawnProcess = "process"
	SpawnInline  = "inline"
)

// Config holds all application configuration.
type Config struct {
	Relay   RelayConfig
	Spawn   SpawnConfig
	Logging LogConfig
	Metrics MetricsConfig
}

// RelayConfig holds coordinator and buffer sizing configuration.
type RelayConfig struct {
	Timeout      time.Duration `envconfig:"RELAY_TIMEOUT" default:"60s"`
	MaxBuffer    int           `envconfig:"RELAY_MAX_BUFFER" default:"131071"`
	MinBuffer    int           `envconfig:"RELAY_MIN_BUFFER" default:"64"`
	SizingBase   int           `envconfig:"RELAY_SIZING_BASE" default:"3"`
	SizingOffset int           `envconfig:"RELAY_SIZING_OFFSET" default:"4"`
}

// SpawnConfig selects how worker stages are run.
type SpawnConfig struct {
	Mode string `envconfig:"RELAY_SPAWN" default:"process"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"LOG_LEVEL" default:"info"`
	Development bool   `envconfig:"LOG_DEV" default:"false"`
}

// MetricsConfig holds metrics exposure configuration.
type MetricsConfig struct {
	Addr   string `envconfig:"RELAY_METRICS_ADDR" default:""`
	Rate   int    `envconfig:"RELAY_METRICS_RATE" default:"10"`
	Burst  int    `envconfig:"RELAY_METRICS_BURST" default:"20"`
	Report bool   `envconfig:"RELAY_REPORT" default:"false"`
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadOrDefault loads configuration from environment or returns default.
func LoadOrDefault() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// Default returns default configuration.
func Default() *Config {
	return &Config{
		Relay: RelayConfig{
			Timeout:      60 * time.Second,
			MaxBuffer:    128*1024 - 1,
			MinBuffer:    64,
			SizingBase:   3,
			SizingOffset: 4,
		},
		Spawn: SpawnConfig{
			Mode: SpawnProcess,
		},
		Logging: LogConfig{
			Level:       "info",
			Development: false,
		},
		Metrics: MetricsConfig{
			Rate:  10,
			Burst: 20,
		},
	}
}

// Validate checks that the configuration describes a runnable relay.
func (c *Config) Validate() error {
	if c.Relay.Timeout <= 0 {
		return fmt.Errorf("invalid RELAY_TIMEOUT %s: must be positive", c.Relay.Timeout)
	}
	if c.Relay.MinBuffer < 1 {
		return fmt.Errorf("invalid RELAY_MIN_BUFFER %d: must be at least 1", c.Relay.MinBuffer)
	}
	if c.Relay.MaxBuffer < c.Relay.MinBuffer {
		return fmt.Errorf("invalid RELAY_MAX_BUFFER %d: below RELAY_MIN_BUFFER %d", c.Relay.MaxBuffer, c.Relay.MinBuffer)
	}
	if c.Relay.SizingBase < 1 {
		return fmt.Errorf("invalid RELAY_SIZING_BASE %d: must be at least 1", c.Relay.SizingBase)
	}
	switch c.Spawn.Mode {
	case SpawnProcess, SpawnInline:
	default:
		return fmt.Errorf("invalid RELAY_SPAWN %q: want %q or %q", c.Spawn.Mode, SpawnProcess, SpawnInline)
	}
	return nil
}
