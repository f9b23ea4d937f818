package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/site-summarizer/internal/crawler"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadWithFileOverrides(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	path := writeConfig(t, `
server:
  port: 9090
  max_depth: 3
logging:
  development: false
  level: warn
crawler:
  workers: 6
  default_depth: 2
  queue_capacity: 500
  user_agent: real-agent
  exclude_patterns: ["/private", "\\.pdf$"]
  min_delay: 250ms
  max_delay: 1s
  domain_qps: 2.5
render:
  engine: auto
  timeout: 30s
  max_parallel: 2
  block_resources: false
  promotion_threshold: 800
summarizer:
  api_key: sk-file
  model: gpt-4o
storage:
  backend: gcs
  gcs_bucket: reports-bucket
  prefix: reports
db:
  dsn: postgres://localhost/crawl
pubsub:
  project_id: proj
  topic_name: reports-ready
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 3, cfg.Server.MaxDepth)
	assert.False(t, cfg.Logging.Development)
	assert.Equal(t, "warn", cfg.Logging.Level)
	assert.Equal(t, 6, cfg.Crawler.Workers)
	assert.Equal(t, 2, cfg.Crawler.DefaultDepth)
	assert.Equal(t, []string{"/private", `\.pdf$`}, cfg.Crawler.ExcludePatterns)
	assert.Equal(t, 250*time.Millisecond, cfg.Crawler.MinDelay)
	assert.Equal(t, time.Second, cfg.Crawler.MaxDelay)
	assert.InDelta(t, 2.5, cfg.Crawler.DomainQPS, 0.0001)
	assert.Equal(t, EngineAuto, cfg.Render.Engine)
	assert.Equal(t, 30*time.Second, cfg.Render.Timeout)
	assert.False(t, cfg.Render.BlockResources)
	assert.Equal(t, 800, cfg.Render.PromotionThreshold)
	assert.Equal(t, "sk-file", cfg.Summarizer.APIKey)
	assert.Equal(t, "gpt-4o", cfg.Summarizer.Model)
	assert.Equal(t, BackendGCS, cfg.Storage.Backend)
	assert.Equal(t, "reports-bucket", cfg.Storage.GCSBucket)
	assert.Equal(t, "crawl_runs", cfg.DB.Table)
	assert.Equal(t, "reports-ready", cfg.PubSub.TopicName)

	ec := cfg.EngineConfig()
	assert.Equal(t, 6, ec.Workers)
	assert.Equal(t, 500, ec.QueueCapacity)
	assert.Equal(t, cfg.Crawler.ExcludePatterns, ec.ExcludePatterns)
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-env")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 8000, cfg.Server.Port)
	assert.Equal(t, 3, cfg.Crawler.Workers)
	assert.Equal(t, 1, cfg.Crawler.DefaultDepth)
	assert.Equal(t, time.Second, cfg.Crawler.MinDelay)
	assert.Equal(t, 2*time.Second, cfg.Crawler.MaxDelay)
	assert.Equal(t, crawler.DefaultExclusionPatterns, cfg.Crawler.ExcludePatterns)
	assert.Equal(t, EngineChromedp, cfg.Render.Engine)
	assert.Equal(t, 60*time.Second, cfg.Render.Timeout)
	assert.True(t, cfg.Render.BlockResources)
	assert.Equal(t, "gpt-4o-mini", cfg.Summarizer.Model)
	assert.Equal(t, 4000, cfg.Summarizer.MaxInputChars)
	assert.InDelta(t, 0.3, cfg.Summarizer.Temperature, 0.0001)
	assert.Equal(t, "sk-env", cfg.Summarizer.APIKey)
	assert.Equal(t, BackendLocal, cfg.Storage.Backend)
	assert.Equal(t, "outputs", cfg.Storage.BaseDir)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("CRAWLER_SERVER_PORT", "7070")
	t.Setenv("CRAWLER_RENDER_ENGINE", "colly")
	t.Setenv("CRAWLER_SUMMARIZER_ENABLED", "false")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 7070, cfg.Server.Port)
	assert.Equal(t, EngineColly, cfg.Render.Engine)
	assert.False(t, cfg.Summarizer.Enabled)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func validConfig() Config {
	return Config{
		Server:     ServerConfig{Port: 8000, MaxDepth: 5},
		Crawler:    CrawlerConfig{Workers: 3, MinDelay: time.Second, MaxDelay: 2 * time.Second},
		Render:     RenderConfig{Engine: EngineChromedp},
		Summarizer: SummarizerConfig{Enabled: false},
		Storage:    StorageConfig{Backend: BackendMemory},
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"port", func(c *Config) { c.Server.Port = 0 }},
		{"workers", func(c *Config) { c.Crawler.Workers = 0 }},
		{"negative depth", func(c *Config) { c.Crawler.DefaultDepth = -1 }},
		{"delay range", func(c *Config) { c.Crawler.MaxDelay = c.Crawler.MinDelay - 1 }},
		{"bad pattern", func(c *Config) { c.Crawler.ExcludePatterns = []string{"("} }},
		{"engine", func(c *Config) { c.Render.Engine = "lynx" }},
		{"api key", func(c *Config) { c.Summarizer.Enabled = true }},
		{"temperature", func(c *Config) { c.Summarizer.Temperature = -0.1 }},
		{"backend", func(c *Config) { c.Storage.Backend = "s3" }},
		{"local dir", func(c *Config) { c.Storage.Backend = BackendLocal }},
		{"gcs bucket", func(c *Config) { c.Storage.Backend = BackendGCS }},
		{"pubsub project", func(c *Config) { c.PubSub.TopicName = "t" }},
	}
	require.NoError(t, validConfig().Validate())
	zeroTemp := validConfig()
	zeroTemp.Summarizer.Temperature = 0
	require.NoError(t, zeroTemp.Validate())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := validConfig()
			tt.mutate(&cfg)
			require.Error(t, cfg.Validate())
		})
	}
}

func TestEngineConfigKeepsEmptyPatterns(t *testing.T) {
	t.Parallel()

	cfg := validConfig()
	ec := cfg.EngineConfig()
	require.NotNil(t, ec.ExcludePatterns)
	assert.Empty(t, ec.ExcludePatterns)
}
