// Package config handles configuration loading and validation.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/mihcharts/chartcore/internal/pipeline"
	"github.com/mihcharts/chartcore/internal/types"
	"github.com/mihcharts/chartcore/pkg/indicator"
)

// Config represents the full application configuration.
type Config struct {
	Data       DataConfig       `yaml:"data"`
	Indicators IndicatorsConfig `yaml:"indicators"`
	Metrics    MetricsConfig    `yaml:"metrics"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// DataConfig identifies the bar series to operate on.
type DataConfig struct {
	Path     string `yaml:"path"` // sqlite store path
	Symbol   string `yaml:"symbol"`
	Interval string `yaml:"interval"`
}

// IndicatorsConfig selects and parameterizes the indicators.
type IndicatorsConfig struct {
	HeikenAshi HeikenAshiConfig `yaml:"heiken_ashi"`
	Bands      BandsConfig      `yaml:"bands"`
	Sequential SequentialConfig `yaml:"sequential"`
}

// HeikenAshiConfig controls the Heiken-Ashi transform.
type HeikenAshiConfig struct {
	Enabled bool `yaml:"enabled"`
	// AsSource feeds the transformed series into the other
	// indicators instead of the raw one.
	AsSource bool `yaml:"as_source"`
}

// BandsConfig holds volatility band settings.
type BandsConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Period      int    `yaml:"period"`
	MAType      string `yaml:"ma_type"` // sma | ema
	Multipliers []int  `yaml:"multipliers"`
}

// SequentialConfig holds sequential state machine settings.
type SequentialConfig struct {
	Enabled           bool `yaml:"enabled"`
	FlipLookback      int  `yaml:"flip_lookback"`
	SetupTarget       int  `yaml:"setup_target"`
	CountdownTarget   int  `yaml:"countdown_target"`
	CountdownLookback int  `yaml:"countdown_lookback"`
	QualifierBar      int  `yaml:"qualifier_bar"`
}

// MetricsConfig holds metrics settings.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Port    int    `yaml:"port"`
	Path    string `yaml:"path"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug | info | warn | error
}

// Default returns a configuration with all indicators enabled at
// their standard parameters.
func Default() *Config {
	return &Config{
		Data: DataConfig{Path: "chartcore.db", Interval: "1d"},
		Indicators: IndicatorsConfig{
			HeikenAshi: HeikenAshiConfig{Enabled: true},
			Bands: BandsConfig{
				Enabled:     true,
				Period:      20,
				MAType:      "sma",
				Multipliers: []int{2},
			},
			Sequential: SequentialConfig{
				Enabled:           true,
				FlipLookback:      4,
				SetupTarget:       9,
				CountdownTarget:   13,
				CountdownLookback: 2,
				QualifierBar:      8,
			},
		},
		Metrics: MetricsConfig{Port: 9090, Path: "/metrics"},
		Logging: LoggingConfig{Level: "info"},
	}
}

// Load loads configuration from a YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	return LoadFromBytes(data)
}

// LoadFromBytes loads configuration from YAML bytes. Environment
// variables in the file are expanded before parsing.
func LoadFromBytes(data []byte) (*Config, error) {
	expanded := os.ExpandEnv(string(data))

	cfg := Default()
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	var errs []string

	if c.Data.Path == "" {
		errs = append(errs, "data.path is required")
	}
	if c.Data.Interval == "" {
		errs = append(errs, "data.interval is required")
	}

	if c.Indicators.Bands.Enabled {
		if err := c.Indicators.Bands.toBandConfig().Validate(); err != nil {
			errs = append(errs, fmt.Sprintf("indicators.bands: %v", err))
		}
	}
	if c.Indicators.Sequential.Enabled {
		if err := c.Indicators.Sequential.toSequentialConfig().Validate(); err != nil {
			errs = append(errs, fmt.Sprintf("indicators.sequential: %v", err))
		}
	}
	if !c.Indicators.HeikenAshi.Enabled && c.Indicators.HeikenAshi.AsSource {
		errs = append(errs, "indicators.heiken_ashi.as_source requires enabled: true")
	}
	if !c.Indicators.HeikenAshi.Enabled && !c.Indicators.Bands.Enabled && !c.Indicators.Sequential.Enabled {
		errs = append(errs, "at least one indicator must be enabled")
	}

	if c.Metrics.Enabled {
		if c.Metrics.Port <= 0 || c.Metrics.Port > 65535 {
			errs = append(errs, "metrics.port must be a valid port")
		}
		if c.Metrics.Path == "" {
			errs = append(errs, "metrics.path is required")
		}
	}

	switch c.Logging.Level {
	case "", "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Sprintf("logging.level '%s' is not supported", c.Logging.Level))
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %s", types.ErrInvalidConfig, strings.Join(errs, "; "))
	}

	return nil
}

// Requests builds the pipeline request set for the enabled indicators.
func (c *Config) Requests() []pipeline.Request {
	src := pipeline.SourceRaw
	if c.Indicators.HeikenAshi.AsSource {
		src = pipeline.SourceHeikenAshi
	}

	var reqs []pipeline.Request
	if c.Indicators.HeikenAshi.Enabled {
		reqs = append(reqs, pipeline.HeikenAshiRequest())
	}
	if c.Indicators.Bands.Enabled {
		reqs = append(reqs, pipeline.BandsRequest(src, c.Indicators.Bands.toBandConfig()))
	}
	if c.Indicators.Sequential.Enabled {
		reqs = append(reqs, pipeline.SequentialRequest(src, c.Indicators.Sequential.toSequentialConfig()))
	}
	return reqs
}

// SlogLevel maps the configured level to a slog.Level.
func (l LoggingConfig) SlogLevel() slog.Level {
	switch l.Level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

func (b BandsConfig) toBandConfig() indicator.BandConfig {
	return indicator.BandConfig{
		Period:      b.Period,
		MAKind:      indicator.MAKind(b.MAType),
		Multipliers: b.Multipliers,
	}
}

func (s SequentialConfig) toSequentialConfig() indicator.SequentialConfig {
	return indicator.SequentialConfig{
		FlipLookback:      s.FlipLookback,
		SetupTarget:       s.SetupTarget,
		CountdownTarget:   s.CountdownTarget,
		CountdownLookback: s.CountdownLookback,
		QualifierBar:      s.QualifierBar,
	}
}
