// Package config loads application configuration from config.yaml, MSI_*
// environment variables, and defaults, and initializes the global logger.
package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store    StoreConfig    `yaml:"store" mapstructure:"store"`
	Ingest   IngestConfig   `yaml:"ingest" mapstructure:"ingest"`
	Analysis AnalysisConfig `yaml:"analysis" mapstructure:"analysis"`
	Server   ServerConfig   `yaml:"server" mapstructure:"server"`
	Export   ExportConfig   `yaml:"export" mapstructure:"export"`
	Log      LogConfig      `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string     `yaml:"driver" mapstructure:"driver"` // "sqlite" or "postgres"
	Path        string     `yaml:"path" mapstructure:"path"`     // sqlite file path
	DatabaseURL string     `yaml:"database_url" mapstructure:"database_url"`
	Pool        PoolConfig `yaml:"pool" mapstructure:"pool"`
}

// PoolConfig holds optional Postgres connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// IngestConfig configures the CSV ingestion boundary.
type IngestConfig struct {
	DefaultCategory string `yaml:"default_category" mapstructure:"default_category"` // used when files lack a category column
	TrimSpace       bool   `yaml:"trim_space" mapstructure:"trim_space"`
	LazyQuotes      bool   `yaml:"lazy_quotes" mapstructure:"lazy_quotes"`
}

// AnalysisConfig holds the signal-engine policy constants. The exact
// window length, thresholds, and score weightings are policy, not derived,
// so they are all exposed here.
type AnalysisConfig struct {
	// Window is the trailing number of weeks of defined relative change
	// required for the correlation term. Valid range 4-8.
	Window int `yaml:"window" mapstructure:"window"`
	// AnomalyWindow is the trailing window for rolling mean/std.
	AnomalyWindow int `yaml:"anomaly_window" mapstructure:"anomaly_window"`
	// AnomalyCap caps the |z| magnitude before normalization.
	AnomalyCap float64 `yaml:"anomaly_cap" mapstructure:"anomaly_cap"`

	ModerateThreshold   float64 `yaml:"moderate_threshold" mapstructure:"moderate_threshold"`
	StrongThreshold     float64 `yaml:"strong_threshold" mapstructure:"strong_threshold"`
	VeryStrongThreshold float64 `yaml:"very_strong_threshold" mapstructure:"very_strong_threshold"`

	// Wave acceptance rule and propagation horizon, in timeline weeks.
	WaveMinUnits int `yaml:"wave_min_units" mapstructure:"wave_min_units"`
	WaveMinSpan  int `yaml:"wave_min_span" mapstructure:"wave_min_span"`
	WaveHorizon  int `yaml:"wave_horizon" mapstructure:"wave_horizon"`

	// Hotspot component weights (rescaled components, normalized by sum).
	HotspotPeakWeight      float64 `yaml:"hotspot_peak_weight" mapstructure:"hotspot_peak_weight"`
	HotspotFrequencyWeight float64 `yaml:"hotspot_frequency_weight" mapstructure:"hotspot_frequency_weight"`
	HotspotSpreadWeight    float64 `yaml:"hotspot_spread_weight" mapstructure:"hotspot_spread_weight"`

	// MaxConcurrency bounds the parallel per-unit scoring phase.
	MaxConcurrency int `yaml:"max_concurrency" mapstructure:"max_concurrency"`
}

// ServerConfig configures the read-only results API.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
	RateLimit      float64  `yaml:"rate_limit" mapstructure:"rate_limit"` // requests per second
	RateBurst      int      `yaml:"rate_burst" mapstructure:"rate_burst"`
}

// ExportConfig configures workbook export.
type ExportConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// LogConfig configures the zap logger.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"` // "json" or "console"
}

// Load reads configuration from config.yaml (optional), environment, and
// defaults.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("MSI")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.path", "msi.db")
	v.SetDefault("ingest.trim_space", true)
	v.SetDefault("ingest.lazy_quotes", false)
	v.SetDefault("analysis.window", 4)
	v.SetDefault("analysis.anomaly_window", 4)
	v.SetDefault("analysis.anomaly_cap", 3.0)
	v.SetDefault("analysis.moderate_threshold", 0.15)
	v.SetDefault("analysis.strong_threshold", 0.3)
	v.SetDefault("analysis.very_strong_threshold", 0.5)
	v.SetDefault("analysis.wave_min_units", 3)
	v.SetDefault("analysis.wave_min_span", 3)
	v.SetDefault("analysis.wave_horizon", 6)
	v.SetDefault("analysis.hotspot_peak_weight", 0.4)
	v.SetDefault("analysis.hotspot_frequency_weight", 0.3)
	v.SetDefault("analysis.hotspot_spread_weight", 0.3)
	v.SetDefault("analysis.max_concurrency", 8)
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.rate_limit", 20.0)
	v.SetDefault("server.rate_burst", 40)
	v.SetDefault("export.path", "msi_results.xlsx")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
}

// Validate checks the policy constants for internal consistency.
func (c *Config) Validate() error {
	a := c.Analysis
	if a.Window < 4 || a.Window > 8 {
		return eris.Errorf("config: analysis.window %d outside valid range 4-8", a.Window)
	}
	if a.AnomalyWindow < 2 {
		return eris.Errorf("config: analysis.anomaly_window %d too small", a.AnomalyWindow)
	}
	if a.AnomalyCap <= 0 {
		return eris.Errorf("config: analysis.anomaly_cap must be positive, got %g", a.AnomalyCap)
	}
	if !(a.ModerateThreshold < a.StrongThreshold && a.StrongThreshold < a.VeryStrongThreshold) {
		return eris.Errorf("config: thresholds must be ordered moderate < strong < very_strong, got %g/%g/%g",
			a.ModerateThreshold, a.StrongThreshold, a.VeryStrongThreshold)
	}
	if a.WaveMinUnits < 1 || a.WaveMinSpan < 1 || a.WaveHorizon < 1 {
		return eris.New("config: wave parameters must be positive")
	}
	if a.HotspotPeakWeight+a.HotspotFrequencyWeight+a.HotspotSpreadWeight <= 0 {
		return eris.New("config: hotspot weights must not all be zero")
	}
	if a.MaxConcurrency < 1 {
		return eris.Errorf("config: analysis.max_concurrency must be at least 1, got %d", a.MaxConcurrency)
	}
	switch c.Store.Driver {
	case "sqlite", "postgres":
	default:
		return eris.Errorf("config: unknown store driver %q", c.Store.Driver)
	}
	return nil
}

// InitLogger sets up the global zap logger from the log config.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
