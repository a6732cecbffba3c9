package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	// Relay config
	assert.Equal(t, 60*time.Second, cfg.Relay.Timeout)
	assert.Equal(t, 131071, cfg.Relay.MaxBuffer)
	assert.Equal(t, 64, cfg.Relay.MinBuffer)
	assert.Equal(t, 3, cfg.Relay.SizingBase)
	assert.Equal(t, 4, cfg.Relay.SizingOffset)

	assert.Equal(t, SpawnProcess, cfg.Spawn.Mode)

	// Logging config
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.False(t, cfg.Logging.Development)

	// Metrics disabled
	assert.Empty(t, cfg.Metrics.Addr)
	assert.Equal(t, 10, cfg.Metrics.Rate)
	assert.Equal(t, 20, cfg.Metrics.Burst)
	assert.False(t, cfg.Metrics.Report)

	assert.NoError(t, cfg.Validate())
}

func TestLoadMatchesDefault(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, Default(), cfg)
}

func TestLoadWithEnvironmentVariables(t *testing.T) {
	envVars := map[string]string{
		"RELAY_TIMEOUT":       "250ms",
		"RELAY_MAX_BUFFER":    "4096",
		"RELAY_MIN_BUFFER":    "16",
		"RELAY_SIZING_BASE":   "2",
		"RELAY_SIZING_OFFSET": "6",
		"RELAY_SPAWN":         "inline",
		"LOG_LEVEL":           "debug",
		"LOG_DEV":             "true",
		"RELAY_METRICS_ADDR":  "127.0.0.1:9102",
		"RELAY_METRICS_RATE":  "0",
		"RELAY_REPORT":        "true",
	}
	for key, value := range envVars {
		t.Setenv(key, value)
	}

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 250*time.Millisecond, cfg.Relay.Timeout)
	assert.Equal(t, 4096, cfg.Relay.MaxBuffer)
	assert.Equal(t, 16, cfg.Relay.MinBuffer)
	assert.Equal(t, 2, cfg.Relay.SizingBase)
	assert.Equal(t, 6, cfg.Relay.SizingOffset)
	assert.Equal(t, SpawnInline, cfg.Spawn.Mode)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.True(t, cfg.Logging.Development)
	assert.Equal(t, "127.0.0.1:9102", cfg.Metrics.Addr)
	assert.Zero(t, cfg.Metrics.Rate)
	assert.True(t, cfg.Metrics.Report)
}

func TestLoadWithPartialEnvironmentVariables(t *testing.T) {
	t.Setenv("RELAY_TIMEOUT", "5s")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 5*time.Second, cfg.Relay.Timeout)

	// Defaults still apply
	assert.Equal(t, 131071, cfg.Relay.MaxBuffer)
	assert.Equal(t, SpawnProcess, cfg.Spawn.Mode)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		errMsg string
	}{
		{
			name:   "zero timeout",
			mutate: func(c *Config) { c.Relay.Timeout = 0 },
			errMsg: "RELAY_TIMEOUT",
		},
		{
			name:   "zero floor",
			mutate: func(c *Config) { c.Relay.MinBuffer = 0 },
			errMsg: "RELAY_MIN_BUFFER",
		},
		{
			name:   "cap below floor",
			mutate: func(c *Config) { c.Relay.MaxBuffer = 10; c.Relay.MinBuffer = 20 },
			errMsg: "RELAY_MAX_BUFFER",
		},
		{
			name:   "zero base",
			mutate: func(c *Config) { c.Relay.SizingBase = 0 },
			errMsg: "RELAY_SIZING_BASE",
		},
		{
			name:   "unknown spawn mode",
			mutate: func(c *Config) { c.Spawn.Mode = "thread" },
			errMsg: "RELAY_SPAWN",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)

			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestLoadOrDefaultOnInvalidEnvironment(t *testing.T) {
	t.Setenv("RELAY_TIMEOUT", "forever")

	_, err := Load()
	assert.Error(t, err)

	cfg := LoadOrDefault()
	assert.Equal(t, Default(), cfg)
}
