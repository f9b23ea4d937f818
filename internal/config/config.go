// Package config loads and validates service configuration via Viper.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/JakeFAU/site-summarizer/internal/crawler"
)

// Render engines.
const (
	EngineChromedp = "chromedp"
	EngineColly    = "colly"
	EngineAuto     = "auto"
)

// Storage backends.
const (
	BackendLocal  = "local"
	BackendMemory = "memory"
	BackendGCS    = "gcs"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Logging    LoggingConfig    `mapstructure:"logging"`
	Telemetry  TelemetryConfig  `mapstructure:"telemetry"`
	Crawler    CrawlerConfig    `mapstructure:"crawler"`
	Render     RenderConfig     `mapstructure:"render"`
	Summarizer SummarizerConfig `mapstructure:"summarizer"`
	Storage    StorageConfig    `mapstructure:"storage"`
	DB         DBConfig         `mapstructure:"db"`
	PubSub     PubSubConfig     `mapstructure:"pubsub"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	RequestTimeout  time.Duration `mapstructure:"request_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	// MaxDepth caps the depth a /scrape caller may request.
	MaxDepth int `mapstructure:"max_depth"`
	// APIKey, when set, is required on /scrape, /download and /v1 routes.
	APIKey string `mapstructure:"api_key"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
}

// TelemetryConfig controls trace context propagation.
type TelemetryConfig struct {
	ServiceName string  `mapstructure:"service_name"`
	SampleRatio float64 `mapstructure:"sample_ratio"`
}

// CrawlerConfig governs the crawl engine.
type CrawlerConfig struct {
	Workers         int           `mapstructure:"workers"`
	DefaultDepth    int           `mapstructure:"default_depth"`
	QueueCapacity   int           `mapstructure:"queue_capacity"`
	UserAgent       string        `mapstructure:"user_agent"`
	ExcludePatterns []string      `mapstructure:"exclude_patterns"`
	MinDelay        time.Duration `mapstructure:"min_delay"`
	MaxDelay        time.Duration `mapstructure:"max_delay"`
	DomainQPS       float64       `mapstructure:"domain_qps"`
	DomainBurst     int           `mapstructure:"domain_burst"`
	// ProgressLog logs every crawl progress event.
	ProgressLog     bool          `mapstructure:"progress_log"`
}

// RenderConfig configures page rendering.
type RenderConfig struct {
	Engine         string        `mapstructure:"engine"`
	Timeout        time.Duration `mapstructure:"timeout"`
	MaxParallel    int           `mapstructure:"max_parallel"`
	BlockResources bool          `mapstructure:"block_resources"`
	Headless       bool          `mapstructure:"headless"`
	// PromotionThreshold is the body length under which the auto engine
	// re-renders a static page in the browser.
	PromotionThreshold int `mapstructure:"promotion_threshold"`
}

// SummarizerConfig configures the LLM summarizer.
type SummarizerConfig struct {
	Enabled       bool    `mapstructure:"enabled"`
	APIKey        string  `mapstructure:"api_key"`
	Model         string  `mapstructure:"model"`
	BaseURL       string  `mapstructure:"base_url"`
	MaxInputChars int     `mapstructure:"max_input_chars"`
	Temperature   float32 `mapstructure:"temperature"`
}

// StorageConfig selects where reports are written.
type StorageConfig struct {
	Backend   string `mapstructure:"backend"`
	BaseDir   string `mapstructure:"base_dir"`
	GCSBucket string `mapstructure:"gcs_bucket"`
	Prefix    string `mapstructure:"prefix"`
}

// DBConfig controls the optional Postgres run history.
type DBConfig struct {
	DSN      string `mapstructure:"dsn"`
	Table    string `mapstructure:"table"`
	MaxConns int32  `mapstructure:"max_conns"`
}

// PubSubConfig holds metadata for report-ready notifications.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	TopicName string `mapstructure:"topic_name"`

	// ProgressTopic receives batched crawl progress events when set.
	ProgressTopic string `mapstructure:"progress_topic"`
}

// Load builds a Config from defaults, a config file and the environment.
// Without path, a file named config.{yaml,toml,json} is looked up in the
// working directory, /etc/sitesummarizer and $HOME/.sitesummarizer.
// Environment variables use the CRAWLER_ prefix with "." replaced by "_",
// e.g. CRAWLER_SERVER_PORT. OPENAI_API_KEY is honored for the summarizer key.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("CRAWLER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.BindEnv("summarizer.api_key", "CRAWLER_SUMMARIZER_API_KEY", "OPENAI_API_KEY"); err != nil {
		return Config{}, fmt.Errorf("bind env: %w", err)
	}

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/sitesummarizer/")
		v.AddConfigPath("$HOME/.sitesummarizer")
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
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.request_timeout", 15*time.Minute)
	v.SetDefault("server.shutdown_timeout", 15*time.Second)
	v.SetDefault("server.max_depth", 5)
	v.SetDefault("logging.development", true)
	v.SetDefault("logging.level", "")
	v.SetDefault("telemetry.service_name", "site-summarizer")
	v.SetDefault("telemetry.sample_ratio", 0.1)
	v.SetDefault("crawler.workers", 3)
	v.SetDefault("crawler.default_depth", 1)
	v.SetDefault("crawler.queue_capacity", 0)
	v.SetDefault("crawler.user_agent", "site-summarizer/0.1 (+https://github.com/JakeFAU/site-summarizer)")
	v.SetDefault("crawler.exclude_patterns", crawler.DefaultExclusionPatterns)
	v.SetDefault("crawler.min_delay", time.Second)
	v.SetDefault("crawler.max_delay", 2*time.Second)
	v.SetDefault("crawler.domain_qps", 0)
	v.SetDefault("crawler.domain_burst", 1)
	v.SetDefault("crawler.progress_log", false)
	v.SetDefault("render.engine", EngineChromedp)
	v.SetDefault("render.timeout", 60*time.Second)
	v.SetDefault("render.max_parallel", 3)
	v.SetDefault("render.block_resources", true)
	v.SetDefault("render.headless", true)
	v.SetDefault("render.promotion_threshold", 0)
	v.SetDefault("summarizer.enabled", true)
	v.SetDefault("summarizer.model", "gpt-4o-mini")
	v.SetDefault("summarizer.max_input_chars", 4000)
	v.SetDefault("summarizer.temperature", 0.3)
	v.SetDefault("storage.backend", BackendLocal)
	v.SetDefault("storage.base_dir", "outputs")
	v.SetDefault("db.table", "crawl_runs")
	v.SetDefault("db.max_conns", 4)

	// Keys without a meaningful default still need registering so that
	// AutomaticEnv overrides reach Unmarshal.
	for _, key := range []string{
		"server.api_key",
		"summarizer.base_url",
		"storage.gcs_bucket",
		"storage.prefix",
		"db.dsn",
		"pubsub.project_id",
		"pubsub.topic_name",
		"pubsub.progress_topic",
	} {
		v.SetDefault(key, "")
	}
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Server.MaxDepth < 0 {
		return fmt.Errorf("server.max_depth must be >= 0")
	}
	if c.Crawler.Workers <= 0 {
		return fmt.Errorf("crawler.workers must be > 0")
	}
	if c.Crawler.DefaultDepth < 0 {
		return fmt.Errorf("crawler.default_depth must be >= 0")
	}
	if c.Crawler.QueueCapacity < 0 {
		return fmt.Errorf("crawler.queue_capacity must be >= 0")
	}
	if c.Crawler.MinDelay < 0 || c.Crawler.MaxDelay < c.Crawler.MinDelay {
		return fmt.Errorf("crawler.max_delay must be >= crawler.min_delay >= 0")
	}
	if _, err := crawler.NewExclusionRuleset(c.Crawler.ExcludePatterns); err != nil {
		return fmt.Errorf("crawler.exclude_patterns: %w", err)
	}
	switch c.Render.Engine {
	case EngineChromedp, EngineColly, EngineAuto:
	default:
		return fmt.Errorf("render.engine must be one of %s, %s, %s", EngineChromedp, EngineColly, EngineAuto)
	}
	if c.Render.MaxParallel < 0 {
		return fmt.Errorf("render.max_parallel must be >= 0")
	}
	if c.Summarizer.Temperature < 0 {
		return fmt.Errorf("summarizer.temperature must be >= 0")
	}
	if c.Summarizer.Enabled && c.Summarizer.APIKey == "" {
		return fmt.Errorf("summarizer.api_key (or OPENAI_API_KEY) must be set when the summarizer is enabled")
	}
	switch c.Storage.Backend {
	case BackendLocal:
		if c.Storage.BaseDir == "" {
			return fmt.Errorf("storage.base_dir is required for the local backend")
		}
	case BackendGCS:
		if c.Storage.GCSBucket == "" {
			return fmt.Errorf("storage.gcs_bucket is required for the gcs backend")
		}
	case BackendMemory:
	default:
		return fmt.Errorf("storage.backend must be one of %s, %s, %s", BackendLocal, BackendMemory, BackendGCS)
	}
	if (c.PubSub.TopicName != "" || c.PubSub.ProgressTopic != "") && c.PubSub.ProjectID == "" {
		return fmt.Errorf("pubsub.project_id is required when a pubsub topic is set")
	}
	return nil
}

// EngineConfig converts the crawler section into crawler.EngineConfig.
func (c Config) EngineConfig() crawler.EngineConfig {
	patterns := c.Crawler.ExcludePatterns
	if patterns == nil {
		patterns = []string{}
	}
	return crawler.EngineConfig{
		Workers:         c.Crawler.Workers,
		QueueCapacity:   c.Crawler.QueueCapacity,
		MinDelay:        c.Crawler.MinDelay,
		MaxDelay:        c.Crawler.MaxDelay,
		ExcludePatterns: patterns,
	}
}
