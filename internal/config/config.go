// Package config loads pipeline configuration from file and environment and
// installs the global logger.
package config

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/draftroom/stats-cli/internal/resilience"
)

// Config holds the full application configuration.
type Config struct {
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Snapshots SnapshotConfig  `yaml:"snapshots" mapstructure:"snapshots"`
	Fetch     FetchConfig     `yaml:"fetch" mapstructure:"fetch"`
	Retry     RetryConfig     `yaml:"retry" mapstructure:"retry"`
	Quality   QualityConfig   `yaml:"quality" mapstructure:"quality"`
	Batch     BatchConfig     `yaml:"batch" mapstructure:"batch"`
	Providers ProvidersConfig `yaml:"providers" mapstructure:"providers"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the relational store holding the run log and the
// crosswalk reference data.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"` // "postgres" or "sqlite"
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	SQLitePath  string `yaml:"sqlite_path" mapstructure:"sqlite_path"`
}

// SnapshotConfig configures the immutable snapshot store.
type SnapshotConfig struct {
	// Root is a local directory or an s3://bucket/prefix URI.
	Root string `yaml:"root" mapstructure:"root"`
	// S3Region applies when Root is an object-storage URI.
	S3Region string `yaml:"s3_region" mapstructure:"s3_region"`
}

// FetchConfig configures provider downloads.
type FetchConfig struct {
	UserAgent   string             `yaml:"user_agent" mapstructure:"user_agent"`
	TimeoutSecs int                `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	RateLimits  map[string]float64 `yaml:"rate_limits" mapstructure:"rate_limits"` // host -> req/s
	DefaultRate float64            `yaml:"default_rate" mapstructure:"default_rate"`
	TempDir     string             `yaml:"temp_dir" mapstructure:"temp_dir"`
}

// Timeout returns the per-fetch timeout.
func (f FetchConfig) Timeout() time.Duration {
	if f.TimeoutSecs <= 0 {
		return 30 * time.Second
	}
	return time.Duration(f.TimeoutSecs) * time.Second
}

// RetryConfig holds the operational retry knobs. These are configuration,
// never hard-coded constants.
type RetryConfig struct {
	MaxAttempts      int     `yaml:"max_attempts" mapstructure:"max_attempts"`
	InitialBackoffMs int     `yaml:"initial_backoff_ms" mapstructure:"initial_backoff_ms"`
	MaxBackoffMs     int     `yaml:"max_backoff_ms" mapstructure:"max_backoff_ms"`
	Multiplier       float64 `yaml:"multiplier" mapstructure:"multiplier"`
	JitterFraction   float64 `yaml:"jitter_fraction" mapstructure:"jitter_fraction"`
}

// Resilience converts the config values to a resilience.RetryConfig.
func (r RetryConfig) Resilience() resilience.RetryConfig {
	cfg := resilience.Defaults()
	if r.MaxAttempts > 0 {
		cfg.MaxAttempts = r.MaxAttempts
	}
	if r.InitialBackoffMs > 0 {
		cfg.InitialBackoff = time.Duration(r.InitialBackoffMs) * time.Millisecond
	}
	if r.MaxBackoffMs > 0 {
		cfg.MaxBackoff = time.Duration(r.MaxBackoffMs) * time.Millisecond
	}
	if r.Multiplier > 0 {
		cfg.Multiplier = r.Multiplier
	}
	if r.JitterFraction >= 0 {
		cfg.JitterFraction = r.JitterFraction
	}
	return cfg
}

// QualityConfig configures the quality gate.
type QualityConfig struct {
	// Strict fails batches containing columns outside the contract instead
	// of tolerating them with a warning.
	Strict bool `yaml:"strict" mapstructure:"strict"`
	// MinKeyCoverage is the minimum fraction of rows with fully non-null
	// primary-key columns.
	MinKeyCoverage float64 `yaml:"min_key_coverage" mapstructure:"min_key_coverage"`
}

// BatchConfig configures batch runs over all registered datasets.
type BatchConfig struct {
	Concurrency int `yaml:"concurrency" mapstructure:"concurrency"`
}

// ProvidersConfig holds per-provider endpoints and credentials.
type ProvidersConfig struct {
	Statsfeed StatsfeedConfig `yaml:"statsfeed" mapstructure:"statsfeed"`
	LeagueHQ  LeagueHQConfig  `yaml:"leaguehq" mapstructure:"leaguehq"`
	Valuator  ValuatorConfig  `yaml:"valuator" mapstructure:"valuator"`
	Commish   CommishConfig   `yaml:"commish" mapstructure:"commish"`
}

// StatsfeedConfig configures the statistics feed provider.
type StatsfeedConfig struct {
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
	APIKey  string `yaml:"api_key" mapstructure:"api_key"`
}

// LeagueHQConfig configures the roster/league platform provider.
type LeagueHQConfig struct {
	BaseURL  string `yaml:"base_url" mapstructure:"base_url"`
	LeagueID string `yaml:"league_id" mapstructure:"league_id"`
}

// ValuatorConfig configures the market-valuation feed provider.
type ValuatorConfig struct {
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// CommishConfig configures the commissioner spreadsheet provider.
type CommishConfig struct {
	URL      string `yaml:"url" mapstructure:"url"` // ftp:// location of the workbook
	Sheet    string `yaml:"sheet" mapstructure:"sheet"`
	User     string `yaml:"user" mapstructure:"user"`
	Password string `yaml:"password" mapstructure:"password"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	v.SetEnvPrefix("STATS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.sqlite_path", "stats.db")
	v.SetDefault("snapshots.root", "snapshots")
	v.SetDefault("snapshots.s3_region", "us-east-1")
	v.SetDefault("fetch.timeout_secs", 30)
	v.SetDefault("fetch.default_rate", 10)
	v.SetDefault("fetch.temp_dir", "/tmp/stats-cli")
	v.SetDefault("retry.max_attempts", 3)
	v.SetDefault("retry.initial_backoff_ms", 500)
	v.SetDefault("retry.max_backoff_ms", 30000)
	v.SetDefault("retry.multiplier", 2.0)
	v.SetDefault("retry.jitter_fraction", 0.25)
	v.SetDefault("quality.strict", false)
	v.SetDefault("quality.min_key_coverage", 0.95)
	v.SetDefault("batch.concurrency", 4)
	v.SetDefault("providers.statsfeed.base_url", "https://api.statsfeed.example.com")
	v.SetDefault("providers.leaguehq.base_url", "https://www.leaguehq.example.com/api")
	v.SetDefault("providers.valuator.base_url", "https://feed.valuator.example.com")
	v.SetDefault("providers.commish.sheet", "Draft")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// InitLogger initializes the global zap logger.
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
