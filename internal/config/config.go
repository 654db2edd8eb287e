package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/moznion/go-optional"
	"github.com/newthinker/quantlab/internal/backtest"
	"github.com/newthinker/quantlab/internal/core"
	"github.com/newthinker/quantlab/internal/pipeline"
	"github.com/newthinker/quantlab/internal/storage/archive"
	"github.com/spf13/viper"
)

// DateLayout is the layout of data.start and data.end.
const DateLayout = "2006-01-02"

type Config struct {
	Data     DataConfig     `mapstructure:"data"`
	Pipeline PipelineConfig `mapstructure:"pipeline"`
	Model    ModelConfig    `mapstructure:"model"`
	Signal   SignalConfig   `mapstructure:"signal"`
	Backtest BacktestConfig `mapstructure:"backtest"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
	Log      LogConfig      `mapstructure:"log"`
}

// DataConfig selects where bars come from.
type DataConfig struct {
	Source   string   `mapstructure:"source" validate:"oneof=yahoo file"`
	Symbols  []string `mapstructure:"symbols" validate:"required,min=1,dive,required"`
	Path     string   `mapstructure:"path"` // bar file directory for the file source
	BaseURL  string   `mapstructure:"base_url"`
	Start    string   `mapstructure:"start"`
	End      string   `mapstructure:"end"`
	Interval string   `mapstructure:"interval" validate:"required"`
}

type PipelineConfig struct {
	PriceColumn string          `mapstructure:"price_column" validate:"required"`
	Parallel    bool            `mapstructure:"parallel"`
	Indicators  []pipeline.Spec `mapstructure:"indicators"`
}

// ModelConfig selects the predictor. A linear model uses intercept and
// weights; a crossover compares the fast and slow columns. Viper folds map
// keys to lower case, so weights must name lower-case columns.
type ModelConfig struct {
	Type      string             `mapstructure:"type" validate:"oneof=linear crossover"`
	Intercept float64            `mapstructure:"intercept"`
	Weights   map[string]float64 `mapstructure:"weights"`
	Fast      string             `mapstructure:"fast"`
	Slow      string             `mapstructure:"slow"`
	Lag       int                `mapstructure:"lag" validate:"gte=0"`
}

type SignalConfig struct {
	Threshold float64 `mapstructure:"threshold" validate:"gte=0"`
}

type BacktestConfig struct {
	PriceColumn    string `mapstructure:"price_column" validate:"required"`
	FlipPolicy     string `mapstructure:"flip_policy" validate:"omitempty,oneof=reverse flat through_flat"`
	PeriodsPerYear int    `mapstructure:"periods_per_year" validate:"gt=0"`
}

type StorageConfig struct {
	Type string   `mapstructure:"type" validate:"oneof=localfs s3"`
	Path string   `mapstructure:"path"` // For localfs
	S3   S3Config `mapstructure:"s3"`   // For S3
}

type S3Config struct {
	Bucket    string `mapstructure:"bucket"`
	Endpoint  string `mapstructure:"endpoint"`
	Region    string `mapstructure:"region"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	Prefix    string `mapstructure:"prefix"`
}

// MetricsConfig holds metrics configuration.
type MetricsConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Textfile string `mapstructure:"textfile"`
}

type LogConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level" validate:"omitempty,oneof=debug info warn error"`
}

// Load reads configuration from file. Keys missing from the file keep
// their Defaults values.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)

	// Support environment variable overrides
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		return nil, core.WrapError(core.ErrConfigInvalid, fmt.Errorf("reading config: %w", err))
	}

	// Expand environment variables in string values
	for _, key := range v.AllKeys() {
		val := v.GetString(key)
		if strings.HasPrefix(val, "${") && strings.HasSuffix(val, "}") {
			envKey := strings.TrimSuffix(strings.TrimPrefix(val, "${"), "}")
			v.Set(key, os.Getenv(envKey))
		}
	}

	cfg := Defaults()
	// Decoding into a non-empty slice overwrites element-wise and would keep
	// trailing defaults.
	cfg.Pipeline.Indicators = nil
	if err := v.Unmarshal(cfg); err != nil {
		return nil, core.WrapError(core.ErrConfigInvalid, fmt.Errorf("unmarshaling config: %w", err))
	}
	if len(cfg.Pipeline.Indicators) == 0 {
		cfg.Pipeline.Indicators = pipeline.DefaultSpecs()
	}

	return cfg, nil
}

// Defaults returns a config with sensible defaults
func Defaults() *Config {
	return &Config{
		Data: DataConfig{
			Source:   "yahoo",
			Path:     "data",
			Interval: "1d",
		},
		Pipeline: PipelineConfig{
			PriceColumn: "close",
			Indicators:  pipeline.DefaultSpecs(),
		},
		Model: ModelConfig{
			Type: "linear",
			Lag:  1,
		},
		Backtest: BacktestConfig{
			PriceColumn:    "close",
			FlipPolicy:     "reverse",
			PeriodsPerYear: backtest.DefaultPeriodsPerYear,
		},
		Storage: StorageConfig{
			Type: "localfs",
			Path: "output",
		},
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return core.WrapError(core.ErrConfigInvalid, err)
	}

	start, err := c.Data.StartTime()
	if err != nil {
		return err
	}
	end, err := c.Data.EndTime()
	if err != nil {
		return err
	}
	if start.IsSome() && end.IsSome() && !start.Unwrap().Before(end.Unwrap()) {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("data.start %s must be before data.end %s", c.Data.Start, c.Data.End))
	}

	if _, err := backtest.ParseFlipPolicy(c.Backtest.FlipPolicy); err != nil {
		return core.WrapError(core.ErrConfigInvalid, err)
	}

	if _, err := pipeline.Build(c.Pipeline.PriceColumn, c.Pipeline.Indicators); err != nil {
		return core.WrapError(core.ErrConfigInvalid, err)
	}

	if c.Model.Type == "crossover" && (c.Model.Fast == "" || c.Model.Slow == "") {
		return core.WrapError(core.ErrConfigMissing,
			fmt.Errorf("model.fast and model.slow required when type is crossover"))
	}

	if c.Storage.Type == "s3" && c.Storage.S3.Bucket == "" {
		return core.WrapError(core.ErrConfigMissing,
			fmt.Errorf("storage.s3.bucket required when type is s3"))
	}

	return nil
}

// StartTime parses data.start; an empty value means unbounded.
func (d DataConfig) StartTime() (optional.Option[time.Time], error) {
	return parseDate("data.start", d.Start)
}

// EndTime parses data.end; an empty value means unbounded.
func (d DataConfig) EndTime() (optional.Option[time.Time], error) {
	return parseDate("data.end", d.End)
}

func parseDate(key, s string) (optional.Option[time.Time], error) {
	if s == "" {
		return optional.None[time.Time](), nil
	}
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return nil, core.WrapError(core.ErrConfigInvalid, fmt.Errorf("%s: %w", key, err))
	}
	return optional.Some(t), nil
}

// Archive converts the storage section for archive.New.
func (s StorageConfig) Archive() archive.Config {
	return archive.Config{
		Backend: s.Type,
		Path:    s.Path,
		S3: archive.S3Config{
			Bucket:    s.S3.Bucket,
			Endpoint:  s.S3.Endpoint,
			Region:    s.S3.Region,
			AccessKey: s.S3.AccessKey,
			SecretKey: s.S3.SecretKey,
			Prefix:    s.S3.Prefix,
		},
	}
}
