// Package config loads and validates catalog builder configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all configuration knobs loaded via Viper.
type Config struct {
	SDMX      SDMXConfig      `mapstructure:"sdmx"`
	Quota     QuotaConfig     `mapstructure:"quota"`
	Extractor ExtractorConfig `mapstructure:"extractor"`
	Storage   StorageConfig   `mapstructure:"storage"`
	History   HistoryConfig   `mapstructure:"history"`
	Notify    NotifyConfig    `mapstructure:"notify"`
	Server    ServerConfig    `mapstructure:"server"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// SDMXConfig points at the remote SDMX REST service.
type SDMXConfig struct {
	BaseURL                 string `mapstructure:"base_url"`
	UserAgent               string `mapstructure:"user_agent"`
	TimeoutSeconds          int    `mapstructure:"timeout_seconds"`
	DirectoryTimeoutSeconds int    `mapstructure:"directory_timeout_seconds"`
}

// QuotaConfig governs the request budget on the structure endpoint.
type QuotaConfig struct {
	Limit         int     `mapstructure:"limit"`
	WindowMinutes int     `mapstructure:"window_minutes"`
	PaceRPS       float64 `mapstructure:"pace_rps"`
}

// ExtractorConfig tunes the extraction run.
type ExtractorConfig struct {
	TransientRetries int `mapstructure:"transient_retries"`
	RetryBackoffMs   int `mapstructure:"retry_backoff_ms"`
}

// StorageConfig selects where the catalog, checkpoint and failure log live.
type StorageConfig struct {
	// Provider is "local" or "gcs".
	Provider       string `mapstructure:"provider"`
	CatalogPath    string `mapstructure:"catalog_path"`
	CheckpointPath string `mapstructure:"checkpoint_path"`
	FailureLogPath string `mapstructure:"failure_log_path"`
	// ExecutionLogPath is the zap file tee scanned by the rate-limited
	// retry mode.
	ExecutionLogPath string `mapstructure:"execution_log_path"`
	GCSBucket        string `mapstructure:"gcs_bucket"`
	GCSObject        string `mapstructure:"gcs_object"`
}

// HistoryConfig controls the optional Postgres attempt history.
type HistoryConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	DSN      string `mapstructure:"dsn"`
	Table    string `mapstructure:"table"`
	MaxConns int32  `mapstructure:"max_conns"`
}

// NotifyConfig controls the optional Pub/Sub completion notifier.
type NotifyConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	ProjectID string `mapstructure:"project_id"`
	TopicName string `mapstructure:"topic_name"`
}

// ServerConfig controls the status API server.
type ServerConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("CATALOG")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("sdmx.base_url", "https://sdmx.oecd.org/public/rest")
	v.SetDefault("sdmx.user_agent", "catalogbuilder/0.1")
	v.SetDefault("sdmx.timeout_seconds", 30)
	v.SetDefault("sdmx.directory_timeout_seconds", 60)
	v.SetDefault("quota.limit", 60)
	v.SetDefault("quota.window_minutes", 60)
	v.SetDefault("quota.pace_rps", 1.0)
	v.SetDefault("extractor.transient_retries", 2)
	v.SetDefault("extractor.retry_backoff_ms", 1000)
	v.SetDefault("storage.provider", "local")
	v.SetDefault("storage.catalog_path", "oecd_catalog.json")
	v.SetDefault("storage.checkpoint_path", "checkpoint.json")
	v.SetDefault("storage.failure_log_path", "failed_items.jsonl")
	v.SetDefault("storage.execution_log_path", "catalogbuilder.log")
	v.SetDefault("history.table", "extraction_history")
	v.SetDefault("server.enabled", false)
	v.SetDefault("server.port", 8080)
	v.SetDefault("logging.development", true)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.SDMX.BaseURL == "" {
		return fmt.Errorf("sdmx.base_url is required")
	}
	if c.Quota.Limit <= 0 {
		return fmt.Errorf("quota.limit must be > 0")
	}
	if c.Quota.WindowMinutes <= 0 {
		return fmt.Errorf("quota.window_minutes must be > 0")
	}
	if c.SDMX.TimeoutSeconds <= 0 {
		return fmt.Errorf("sdmx.timeout_seconds must be > 0")
	}
	switch c.Storage.Provider {
	case "local":
		if c.Storage.CatalogPath == "" {
			return fmt.Errorf("storage.catalog_path is required")
		}
	case "gcs":
		if c.Storage.GCSBucket == "" {
			return fmt.Errorf("storage.gcs_bucket is required for the gcs provider")
		}
	default:
		return fmt.Errorf("unknown storage.provider %q", c.Storage.Provider)
	}
	if c.History.Enabled && c.History.DSN == "" {
		return fmt.Errorf("history.dsn must be set when history is enabled")
	}
	if c.Notify.Enabled && (c.Notify.ProjectID == "" || c.Notify.TopicName == "") {
		return fmt.Errorf("notify.project_id and notify.topic_name must be set when notify is enabled")
	}
	if c.Server.Enabled && c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	return nil
}

// QuotaWindow converts the configured window into a duration.
func (c Config) QuotaWindow() time.Duration {
	return time.Duration(c.Quota.WindowMinutes) * time.Minute
}

// RequestTimeout converts the structure request timeout into a duration.
func (c Config) RequestTimeout() time.Duration {
	return time.Duration(c.SDMX.TimeoutSeconds) * time.Second
}

// DirectoryTimeout converts the directory request timeout into a duration.
func (c Config) DirectoryTimeout() time.Duration {
	return time.Duration(c.SDMX.DirectoryTimeoutSeconds) * time.Second
}

// RetryBackoff converts the transient retry backoff into a duration.
func (c Config) RetryBackoff() time.Duration {
	return time.Duration(c.Extractor.RetryBackoffMs) * time.Millisecond
}
