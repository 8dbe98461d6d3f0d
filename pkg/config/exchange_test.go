package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kislikjeka/moneyledger/pkg/config"
)

const sampleExchange = `
default_calculator: median
sources:
  - key: bcv
    fetcher: bcv
    pairs: [USD/VES, EUR/VES]
    schedule:
      interval: 30m
      fallback_interval: 6h
      run_timeout: 45s
      window:
        start: "08:00"
        end: "18:00"
        timezone: UTC
        weekdays: [mon, fri]
  - key: p2p
    fetcher: binance_p2p
    pairs: [USDT/VES]
    calculators:
      "usdt/ves": best_price
    options:
      max_pages: 3
`

func TestParseExchangeConfig(t *testing.T) {
	cfg, err := config.ParseExchangeConfig([]byte(sampleExchange))
	require.NoError(t, err)
	require.Len(t, cfg.Sources, 2)

	bcv, ok := cfg.Source("bcv")
	require.True(t, ok)
	assert.Equal(t, 30*time.Minute, bcv.Schedule.Interval)
	assert.Equal(t, 6*time.Hour, bcv.Schedule.FallbackInterval)
	assert.Equal(t, 45*time.Second, bcv.Schedule.RunTimeout)

	assert.Equal(t, map[string]string{"bcv": "bcv", "p2p": "binance_p2p"}, cfg.Fetchers())
	assert.Equal(t, map[string]map[string]string{"p2p": {"USDT/VES": "best_price"}}, cfg.CalculatorNames())

	p2p, _ := cfg.Source("p2p")
	assert.Equal(t, 3, p2p.Options["max_pages"])
}

func TestLoadExchangeConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "exchange.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleExchange), 0o600))

	cfg, err := config.LoadExchangeConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "median", cfg.DefaultCalculator)

	_, err = config.LoadExchangeConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestExchangeConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{"missing key", "sources: [{fetcher: bcv, pairs: [USD/VES]}]", "source key is required"},
		{"duplicate key", "sources: [{key: a, fetcher: x, pairs: [A/B]}, {key: a, fetcher: x, pairs: [A/B]}]", "duplicate source key"},
		{"missing fetcher", "sources: [{key: a, pairs: [A/B]}]", "fetcher is required"},
		{"no pairs", "sources: [{key: a, fetcher: x}]", "at least one pair"},
		{"bad pair", "sources: [{key: a, fetcher: x, pairs: [USDVES]}]", "invalid pair"},
		{"window without interval", `sources: [{key: a, fetcher: x, pairs: [A/B], schedule: {window: {start: "08:00", end: "09:00"}}}]`, "window requires an interval"},
		{"inverted window", `sources: [{key: a, fetcher: x, pairs: [A/B], schedule: {interval: 1m, window: {start: "18:00", end: "08:00"}}}]`, "end must be after start"},
		{"unknown weekday", `sources: [{key: a, fetcher: x, pairs: [A/B], schedule: {interval: 1m, window: {start: "08:00", end: "09:00", weekdays: [someday]}}}]`, "unknown weekday"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := config.ParseExchangeConfig([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestResolvedWindow_Contains(t *testing.T) {
	w, err := (&config.Window{Start: "08:00", End: "18:00", Timezone: "UTC", Weekdays: []string{"mon", "fri"}}).Resolve()
	require.NoError(t, err)

	monday := time.Date(2026, 10, 12, 0, 0, 0, 0, time.UTC)
	tests := []struct {
		name string
		at   time.Time
		want bool
	}{
		{"monday morning", monday.Add(9 * time.Hour), true},
		{"at start", monday.Add(8 * time.Hour), true},
		{"at end", monday.Add(18 * time.Hour), false},
		{"before start", monday.Add(7*time.Hour + 59*time.Minute), false},
		{"tuesday", monday.Add(24*time.Hour + 9*time.Hour), false},
		{"friday", monday.Add(4*24*time.Hour + 12*time.Hour), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, w.Contains(tt.at))
		})
	}
}

func TestConfig_Validate(t *testing.T) {
	secret := "0123456789abcdef0123456789abcdef"
	tests := []struct {
		name    string
		cfg     config.Config
		wantErr bool
	}{
		{"postgres with url", config.Config{Storage: config.StoragePostgres, DatabaseURL: "postgres://x", JWTSecret: secret, DefaultCurrency: "USD", RateLimitRPS: 1}, false},
		{"postgres without url", config.Config{Storage: config.StoragePostgres, JWTSecret: secret, DefaultCurrency: "USD", RateLimitRPS: 1}, true},
		{"memory without url", config.Config{Storage: config.StorageMemory, JWTSecret: secret, DefaultCurrency: "USD", RateLimitRPS: 1}, false},
		{"memory in production", config.Config{Storage: config.StorageMemory, Env: "production", JWTSecret: secret, DefaultCurrency: "USD", RateLimitRPS: 1}, true},
		{"unknown storage", config.Config{Storage: "sqlite", JWTSecret: secret, DefaultCurrency: "USD", RateLimitRPS: 1}, true},
		{"short secret", config.Config{Storage: config.StorageMemory, JWTSecret: "short", DefaultCurrency: "USD", RateLimitRPS: 1}, true},
		{"bad currency", config.Config{Storage: config.StorageMemory, JWTSecret: secret, DefaultCurrency: "DOLLAR", RateLimitRPS: 1}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestResolvedWindow_NextStart(t *testing.T) {
	w, err := (&config.Window{Start: "08:00", End: "18:00", Weekdays: []string{"mon", "fri"}}).Resolve()
	require.NoError(t, err)

	monday := time.Date(2026, 10, 12, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, monday.Add(8*time.Hour), w.NextStart(monday.Add(time.Hour)))
	assert.Equal(t, monday.AddDate(0, 0, 4).Add(8*time.Hour), w.NextStart(monday.Add(8*time.Hour)), "strictly after")
	assert.Equal(t, monday.AddDate(0, 0, 7).Add(8*time.Hour), w.NextStart(monday.AddDate(0, 0, 4).Add(19*time.Hour)))
}
