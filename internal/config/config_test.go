package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/newthinker/quantlab/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func validConfig() *Config {
	cfg := Defaults()
	cfg.Data.Symbols = []string{"AAPL"}
	return cfg
}

func TestLoad_FromFile(t *testing.T) {
	path := writeConfig(t, `
data:
  source: file
  symbols: [AAPL, MSFT]
  path: /tmp/bars
  start: "2020-01-01"
  end: "2021-01-01"

pipeline:
  parallel: true
  indicators:
    - name: ema
      params:
        window: 20

model:
  intercept: 0.001
  weights:
    ema_20: 0.5
  lag: 1

signal:
  threshold: 0.002

backtest:
  flip_policy: flat

storage:
  type: localfs
  path: /tmp/quantlab
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "file", cfg.Data.Source)
	assert.Equal(t, []string{"AAPL", "MSFT"}, cfg.Data.Symbols)
	assert.Equal(t, "1d", cfg.Data.Interval, "unset keys keep defaults")
	assert.True(t, cfg.Pipeline.Parallel)
	require.Len(t, cfg.Pipeline.Indicators, 1, "configured indicators replace the defaults")
	assert.Equal(t, "ema", cfg.Pipeline.Indicators[0].Name)
	assert.Equal(t, 20.0, cfg.Pipeline.Indicators[0].Params["window"])
	assert.Equal(t, map[string]float64{"ema_20": 0.5}, cfg.Model.Weights)
	assert.Equal(t, 1, cfg.Model.Lag)
	assert.Equal(t, 0.002, cfg.Signal.Threshold)
	assert.Equal(t, "flat", cfg.Backtest.FlipPolicy)
	assert.Equal(t, 252, cfg.Backtest.PeriodsPerYear)
	assert.Equal(t, "/tmp/quantlab", cfg.Storage.Path)

	assert.NoError(t, cfg.Validate())
}

func TestLoad_DefaultIndicators(t *testing.T) {
	cfg, err := Load(writeConfig(t, "data:\n  symbols: [SPY]\n"))
	require.NoError(t, err)
	assert.Equal(t, Defaults().Pipeline.Indicators, cfg.Pipeline.Indicators)
}

func TestLoad_EnvExpansion(t *testing.T) {
	t.Setenv("QUANTLAB_TEST_SECRET", "s3cr3t")
	path := writeConfig(t, `
data:
  symbols: [SPY]
storage:
  type: s3
  s3:
    bucket: artifacts
    secret_key: ${QUANTLAB_TEST_SECRET}
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "s3cr3t", cfg.Storage.S3.SecretKey)
	assert.Equal(t, "s3", cfg.Storage.Archive().Backend)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.True(t, errors.Is(err, core.ErrConfigInvalid))
}

func TestDefaults(t *testing.T) {
	cfg := Defaults()

	assert.Equal(t, "yahoo", cfg.Data.Source)
	assert.Equal(t, "close", cfg.Pipeline.PriceColumn)
	assert.Len(t, cfg.Pipeline.Indicators, 3)
	assert.Equal(t, "reverse", cfg.Backtest.FlipPolicy)
	assert.Equal(t, "localfs", cfg.Storage.Type)
	assert.False(t, cfg.Metrics.Enabled)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr *core.Error
	}{
		{
			name:   "valid config",
			mutate: func(*Config) {},
		},
		{
			name:    "no symbols",
			mutate:  func(c *Config) { c.Data.Symbols = nil },
			wantErr: core.ErrConfigInvalid,
		},
		{
			name:    "unknown source",
			mutate:  func(c *Config) { c.Data.Source = "bloomberg" },
			wantErr: core.ErrConfigInvalid,
		},
		{
			name:    "negative threshold",
			mutate:  func(c *Config) { c.Signal.Threshold = -0.1 },
			wantErr: core.ErrConfigInvalid,
		},
		{
			name:    "negative lag",
			mutate:  func(c *Config) { c.Model.Lag = -1 },
			wantErr: core.ErrConfigInvalid,
		},
		{
			name:    "bad flip policy",
			mutate:  func(c *Config) { c.Backtest.FlipPolicy = "sideways" },
			wantErr: core.ErrConfigInvalid,
		},
		{
			name:    "zero periods per year",
			mutate:  func(c *Config) { c.Backtest.PeriodsPerYear = 0 },
			wantErr: core.ErrConfigInvalid,
		},
		{
			name:    "malformed start date",
			mutate:  func(c *Config) { c.Data.Start = "01/02/2020" },
			wantErr: core.ErrConfigInvalid,
		},
		{
			name: "start after end",
			mutate: func(c *Config) {
				c.Data.Start = "2021-01-01"
				c.Data.End = "2020-01-01"
			},
			wantErr: core.ErrConfigInvalid,
		},
		{
			name: "unknown indicator",
			mutate: func(c *Config) {
				c.Pipeline.Indicators[0].Name = "ichimoku"
			},
			wantErr: core.ErrConfigInvalid,
		},
		{
			name:    "unknown model",
			mutate:  func(c *Config) { c.Model.Type = "forest" },
			wantErr: core.ErrConfigInvalid,
		},
		{
			name: "crossover without slow column",
			mutate: func(c *Config) {
				c.Model.Type = "crossover"
				c.Model.Fast = "sma_10"
			},
			wantErr: core.ErrConfigMissing,
		},
		{
			name:    "s3 without bucket",
			mutate:  func(c *Config) { c.Storage.Type = "s3" },
			wantErr: core.ErrConfigMissing,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
		})
	}
}

func TestDataConfig_Range(t *testing.T) {
	d := DataConfig{Start: "2020-03-01"}

	start, err := d.StartTime()
	require.NoError(t, err)
	require.True(t, start.IsSome())
	assert.Equal(t, 2020, start.Unwrap().Year())

	end, err := d.EndTime()
	require.NoError(t, err)
	assert.True(t, end.IsNone())
}
