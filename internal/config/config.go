// Package config loads and validates crawler configuration via Viper.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix namespaces environment overrides, e.g. STAFFCRAWLER_DB_DSN.
const EnvPrefix = "STAFFCRAWLER"

// Output sink kinds.
const (
	SinkFile     = "file"
	SinkPostgres = "postgres"
	SinkBlob     = "blob"
	SinkNone     = "none"
)

// Blob providers for the blob sink.
const (
	BlobLocal  = "local"
	BlobMemory = "memory"
	BlobGCS    = "gcs"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Crawler    CrawlerConfig    `mapstructure:"crawler"`
	HTTP       HTTPConfig       `mapstructure:"http"`
	Headless   HeadlessConfig   `mapstructure:"headless"`
	Reference  ReferenceConfig  `mapstructure:"reference"`
	Checkpoint CheckpointConfig `mapstructure:"checkpoint"`
	Output     OutputConfig     `mapstructure:"output"`
	DB         DBConfig         `mapstructure:"db"`
	PubSub     PubSubConfig     `mapstructure:"pubsub"`
	Metrics    MetricsConfig    `mapstructure:"metrics"`
	Logging    LoggingConfig    `mapstructure:"logging"`
}

// CrawlerConfig governs run mode and politeness.
type CrawlerConfig struct {
	UserAgent string `mapstructure:"user_agent"`
	// Concurrent selects the worker-pool mode over the sequential default.
	Concurrent bool `mapstructure:"concurrent"`
	Workers    int  `mapstructure:"workers"`
	// Save is false in debug mode: the pipeline runs without persisting.
	Save bool `mapstructure:"save"`
	// RateLimitPerHost is requests per second per host; 0 disables limiting.
	RateLimitPerHost float64 `mapstructure:"rate_limit_per_host"`
}

// HTTPConfig configures the static fetcher.
type HTTPConfig struct {
	TimeoutSeconds int `mapstructure:"timeout_seconds"`
}

// HeadlessConfig configures the headless rendering subsystem.
type HeadlessConfig struct {
	Enabled       bool   `mapstructure:"enabled"`
	MaxParallel   int    `mapstructure:"max_parallel"`
	NavTimeoutSec int    `mapstructure:"nav_timeout_seconds"`
	SettleSeconds int    `mapstructure:"settle_seconds"`
	UserAgent     string `mapstructure:"user_agent"`
	// DetectShells renders tableless directory pages that look script-built.
	DetectShells bool `mapstructure:"detect_shells"`
}

// ReferenceConfig locates the seed dataset.
type ReferenceConfig struct {
	Path  string `mapstructure:"path"`
	State string `mapstructure:"state"`
}

// CheckpointConfig sets the cursor and error log files.
type CheckpointConfig struct {
	Path       string `mapstructure:"path"`
	ErrorsPath string `mapstructure:"errors_path"`
}

// OutputConfig selects and configures the record sink.
type OutputConfig struct {
	Sink         string `mapstructure:"sink"`
	FilePath     string `mapstructure:"file_path"`
	BlobProvider string `mapstructure:"blob_provider"`
	BlobDir      string `mapstructure:"blob_dir"`
	GCSBucket    string `mapstructure:"gcs_bucket"`
	Prefix       string `mapstructure:"prefix"`
}

// DBConfig controls access to the relational database.
type DBConfig struct {
	DSN      string `mapstructure:"dsn"`
	MaxConns int32  `mapstructure:"max_conns"`
}

// PubSubConfig holds metadata for publish-subscribe notifications.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	TopicName string `mapstructure:"topic_name"`
}

// MetricsConfig controls the status/metrics HTTP listener.
type MetricsConfig struct {
	// Addr is the listen address; empty disables the listener.
	Addr string `mapstructure:"addr"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
}

// Load builds a Config from defaults, a config file and STAFFCRAWLER_* environment
// variables. With an empty path it looks for staffcrawler.{yaml,json,toml} in the
// working directory, /etc/staffcrawler and ~/.staffcrawler; no file is not an error.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	} else {
		// config.json is the checkpoint file, so the searched name differs.
		v.SetConfigName("staffcrawler")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/staffcrawler/")
		v.AddConfigPath("$HOME/.staffcrawler")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return Config{}, fmt.Errorf("read config: %w", err)
			}
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
	v.SetDefault("crawler.user_agent", "Mozilla/5.0")
	v.SetDefault("crawler.concurrent", false)
	v.SetDefault("crawler.workers", 20)
	v.SetDefault("crawler.save", true)
	v.SetDefault("crawler.rate_limit_per_host", 0)
	v.SetDefault("http.timeout_seconds", 15)
	v.SetDefault("headless.enabled", true)
	v.SetDefault("headless.max_parallel", 2)
	v.SetDefault("headless.nav_timeout_seconds", 45)
	v.SetDefault("headless.settle_seconds", 5)
	v.SetDefault("headless.user_agent", "")
	v.SetDefault("headless.detect_shells", true)
	v.SetDefault("reference.path", "data.xlsx")
	v.SetDefault("reference.state", "Alabama")
	v.SetDefault("checkpoint.path", "config.json")
	v.SetDefault("checkpoint.errors_path", "errors.json")
	v.SetDefault("output.sink", SinkFile)
	v.SetDefault("output.file_path", "results.json")
	v.SetDefault("output.blob_provider", BlobLocal)
	v.SetDefault("output.blob_dir", "output")
	v.SetDefault("output.prefix", "staff")
	v.SetDefault("db.max_conns", 4)
	v.SetDefault("pubsub.topic_name", "")
	v.SetDefault("metrics.addr", "")
	v.SetDefault("logging.development", true)
	v.SetDefault("logging.level", "info")
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Crawler.Workers <= 0 {
		return fmt.Errorf("crawler.workers must be > 0")
	}
	if c.Crawler.RateLimitPerHost < 0 {
		return fmt.Errorf("crawler.rate_limit_per_host must be >= 0")
	}
	if c.HTTP.TimeoutSeconds <= 0 {
		return fmt.Errorf("http.timeout_seconds must be > 0")
	}
	if c.Headless.Enabled && c.Headless.MaxParallel <= 0 {
		return fmt.Errorf("headless.max_parallel must be > 0 when headless is enabled")
	}
	if c.Headless.SettleSeconds < 0 {
		return fmt.Errorf("headless.settle_seconds must be >= 0")
	}
	if c.Reference.Path == "" {
		return fmt.Errorf("reference.path is required")
	}
	if c.Checkpoint.Path == "" || c.Checkpoint.ErrorsPath == "" {
		return fmt.Errorf("checkpoint.path and checkpoint.errors_path are required")
	}
	switch c.Output.Sink {
	case SinkFile:
		if c.Output.FilePath == "" {
			return fmt.Errorf("output.file_path is required for the file sink")
		}
	case SinkPostgres:
		if c.DB.DSN == "" {
			return fmt.Errorf("db.dsn is required for the postgres sink")
		}
	case SinkBlob:
		if err := c.Output.validateBlob(); err != nil {
			return err
		}
	case SinkNone:
	default:
		return fmt.Errorf("unknown output.sink %q", c.Output.Sink)
	}
	if c.PubSub.TopicName != "" && c.PubSub.ProjectID == "" {
		return fmt.Errorf("pubsub.project_id must be set when pubsub.topic_name is set")
	}
	return nil
}

func (o OutputConfig) validateBlob() error {
	switch o.BlobProvider {
	case BlobLocal:
		if o.BlobDir == "" {
			return fmt.Errorf("output.blob_dir is required for the local blob provider")
		}
	case BlobGCS:
		if o.GCSBucket == "" {
			return fmt.Errorf("output.gcs_bucket is required for the gcs blob provider")
		}
	case BlobMemory:
	default:
		return fmt.Errorf("unknown output.blob_provider %q", o.BlobProvider)
	}
	return nil
}

// FetchTimeout is the static fetch timeout.
func (c Config) FetchTimeout() time.Duration {
	return time.Duration(c.HTTP.TimeoutSeconds) * time.Second
}

// NavigationTimeout is the headless navigation timeout.
func (c Config) NavigationTimeout() time.Duration {
	return time.Duration(c.Headless.NavTimeoutSec) * time.Second
}

// SettleDelay is how long the renderer waits after the page is ready.
func (c Config) SettleDelay() time.Duration {
	return time.Duration(c.Headless.SettleSeconds) * time.Second
}
