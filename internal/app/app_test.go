package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/site-summarizer/internal/config"
	"github.com/JakeFAU/site-summarizer/internal/storage/local"
	"github.com/JakeFAU/site-summarizer/internal/storage/memory"
)

func testConfig(t *testing.T) config.Config {
	t.Helper()
	return config.Config{
		Server:    config.ServerConfig{Port: 8000, MaxDepth: 3, RequestTimeout: time.Minute},
		Telemetry: config.TelemetryConfig{ServiceName: "test", SampleRatio: 0},
		Crawler: config.CrawlerConfig{
			Workers:         2,
			DefaultDepth:    1,
			ExcludePatterns: []string{"/login"},
			DomainQPS:       5,
			DomainBurst:     1,
		},
		Render:     config.RenderConfig{Engine: config.EngineColly, Timeout: 5 * time.Second},
		Summarizer: config.SummarizerConfig{Enabled: false},
		Storage:    config.StorageConfig{Backend: config.BackendMemory},
	}
}

func TestNewBuildsServices(t *testing.T) {
	a, err := New(context.Background(), testConfig(t), zap.NewNop())
	require.NoError(t, err)
	defer func() { require.NoError(t, a.Close()) }()

	require.NotNil(t, a.Engine())
	require.NotNil(t, a.Pipeline())
	assert.IsType(t, &memory.BlobStore{}, a.Blobs())
	assert.IsType(t, &memory.RunStore{}, a.Runs())
	assert.Equal(t, []string{"/login"}, a.Engine().ExclusionRules().Patterns())

	rec := httptest.NewRecorder()
	a.NewServer().Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestNewLocalStorageAndBrowserEngines(t *testing.T) {
	for _, engine := range []string{config.EngineChromedp, config.EngineAuto} {
		t.Run(engine, func(t *testing.T) {
			cfg := testConfig(t)
			cfg.Render.Engine = engine
			cfg.Storage = config.StorageConfig{Backend: config.BackendLocal, BaseDir: t.TempDir()}

			a, err := New(context.Background(), cfg, nil)
			require.NoError(t, err)
			assert.IsType(t, &local.BlobStore{}, a.Blobs())
			require.NoError(t, a.Close())
		})
	}
}

func TestNewWithProgressLog(t *testing.T) {
	cfg := testConfig(t)
	cfg.Crawler.ProgressLog = true

	a, err := New(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)
	// Tracing plus the progress hub.
	assert.Len(t, a.closers, 2)
	require.NoError(t, a.Close())
}

func TestNewFailsOnBadDSN(t *testing.T) {
	cfg := testConfig(t)
	cfg.DB.DSN = "postgres://user@%zz/db"

	_, err := New(context.Background(), cfg, nil)
	require.Error(t, err)
}

func TestNewFailsWithoutSummarizerKey(t *testing.T) {
	cfg := testConfig(t)
	cfg.Summarizer.Enabled = true

	_, err := New(context.Background(), cfg, nil)
	require.Error(t, err)
}

func TestCloseRunsInReverseOrder(t *testing.T) {
	a := &App{}
	var order []int
	a.onClose(func() error { order = append(order, 1); return nil })
	a.onClose(func() error { order = append(order, 2); return assert.AnError })

	err := a.Close()
	require.ErrorIs(t, err, assert.AnError)
	assert.Equal(t, []int{2, 1}, order)
	require.NoError(t, a.Close())
}
