// Package app builds and holds the long-lived services of the process, acting
// as a dependency injection container for the CLI commands.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	gcsclient "cloud.google.com/go/storage"
	"go.uber.org/zap"

	"github.com/JakeFAU/site-summarizer/internal/api"
	"github.com/JakeFAU/site-summarizer/internal/clock/system"
	"github.com/JakeFAU/site-summarizer/internal/config"
	"github.com/JakeFAU/site-summarizer/internal/crawler"
	"github.com/JakeFAU/site-summarizer/internal/extract"
	collyfetcher "github.com/JakeFAU/site-summarizer/internal/fetcher/colly"
	"github.com/JakeFAU/site-summarizer/internal/fetcher/headless"
	"github.com/JakeFAU/site-summarizer/internal/fetcher/hybrid"
	"github.com/JakeFAU/site-summarizer/internal/hash/sha256"
	"github.com/JakeFAU/site-summarizer/internal/headless/detector"
	"github.com/JakeFAU/site-summarizer/internal/id/uuid"
	"github.com/JakeFAU/site-summarizer/internal/pipeline"
	"github.com/JakeFAU/site-summarizer/internal/policy/ratelimit"
	"github.com/JakeFAU/site-summarizer/internal/progress"
	"github.com/JakeFAU/site-summarizer/internal/publisher/pubsub"
	"github.com/JakeFAU/site-summarizer/internal/storage/gcs"
	"github.com/JakeFAU/site-summarizer/internal/storage/local"
	"github.com/JakeFAU/site-summarizer/internal/storage/memory"
	"github.com/JakeFAU/site-summarizer/internal/storage/postgres"
	"github.com/JakeFAU/site-summarizer/internal/summarize"
	"github.com/JakeFAU/site-summarizer/internal/telemetry"
)

// App holds the shared services built from configuration.
type App struct {
	cfg    config.Config
	logger *zap.Logger

	engine   *crawler.Engine
	pipeline *pipeline.Service
	blobs    crawler.BlobStore
	runs     crawler.RunStore

	closers []func() error
}

// Logger returns the process logger.
func (a *App) Logger() *zap.Logger {
	return a.logger
}

// Config returns the configuration the App was built from.
func (a *App) Config() config.Config {
	return a.cfg
}

// Engine returns the crawl engine.
func (a *App) Engine() *crawler.Engine {
	return a.engine
}

// Pipeline returns the crawl and report pipeline.
func (a *App) Pipeline() *pipeline.Service {
	return a.pipeline
}

// Blobs returns the report blob store.
func (a *App) Blobs() crawler.BlobStore {
	return a.blobs
}

// Runs returns the run history store.
func (a *App) Runs() crawler.RunStore {
	return a.runs
}

// NewServer builds the HTTP API on top of the App's services.
func (a *App) NewServer() *api.Server {
	return api.NewServer(a.pipeline, a.blobs, a.runs, api.Config{
		DefaultDepth:   a.cfg.Crawler.DefaultDepth,
		MaxDepth:       a.cfg.Server.MaxDepth,
		RequestTimeout: a.cfg.Server.RequestTimeout,
		APIKey:         a.cfg.Server.APIKey,
	}, a.logger)
}

// New builds every service named by cfg. It fails fast when a configured
// backend cannot be initialized; partially built services are closed.
func New(ctx context.Context, cfg config.Config, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &App{cfg: cfg, logger: logger}
	if err := a.init(ctx); err != nil {
		if cerr := a.Close(); cerr != nil {
			logger.Warn("Cleanup after failed init", zap.Error(cerr))
		}
		return nil, err
	}
	return a, nil
}

func (a *App) init(ctx context.Context) error {
	a.logger.Info("Initializing application services...")

	tp, err := telemetry.InitTracerProvider(ctx, a.cfg.Telemetry.ServiceName, a.cfg.Telemetry.SampleRatio)
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	a.onClose(func() error { return tp.Shutdown(context.Background()) })

	publisher, err := a.buildPublisher(ctx)
	if err != nil {
		return err
	}
	renderer, err := a.buildRenderer()
	if err != nil {
		return err
	}
	extractor := extract.New()
	opts := []crawler.Option{crawler.WithLogger(a.logger)}
	if hub := a.buildProgressHub(publisher); hub != nil {
		opts = append(opts, crawler.WithProgress(hub))
	}
	if a.cfg.Crawler.DomainQPS > 0 {
		opts = append(opts, crawler.WithDomainLimiter(ratelimit.New(ratelimit.Config{
			DefaultRPS:   a.cfg.Crawler.DomainQPS,
			DefaultBurst: a.cfg.Crawler.DomainBurst,
		})))
	}
	a.engine, err = crawler.NewEngine(a.cfg.EngineConfig(), renderer, extractor, extractor, opts...)
	if err != nil {
		return fmt.Errorf("init crawl engine: %w", err)
	}

	summarizer, err := a.buildSummarizer()
	if err != nil {
		return err
	}
	if a.blobs, err = a.buildBlobStore(ctx); err != nil {
		return err
	}
	if a.runs, err = a.buildRunStore(ctx); err != nil {
		return err
	}

	deps := pipeline.Deps{
		Crawler:    a.engine,
		Summarizer: summarizer,
		Blobs:      a.blobs,
		Runs:       a.runs,
		Hasher:     sha256.NewPrefixed(),
		Clock:      system.New(),
		IDs:        uuid.New(),
	}
	if publisher != nil {
		deps.Publisher = publisher
	}
	a.pipeline, err = pipeline.New(deps, pipeline.Config{Topic: a.cfg.PubSub.TopicName}, a.logger)
	if err != nil {
		return fmt.Errorf("init pipeline: %w", err)
	}

	a.logger.Info("Application services initialized",
		zap.String("render_engine", a.cfg.Render.Engine),
		zap.String("storage_backend", a.cfg.Storage.Backend),
		zap.Bool("summarizer", a.cfg.Summarizer.Enabled),
		zap.Bool("postgres", a.cfg.DB.DSN != ""),
		zap.Bool("pubsub", publisher != nil),
	)
	return nil
}

func (a *App) buildRenderer() (crawler.Renderer, error) {
	static := func() crawler.Renderer {
		return collyfetcher.New(collyfetcher.Config{
			UserAgent: a.cfg.Crawler.UserAgent,
			Timeout:   a.cfg.Render.Timeout,
		})
	}
	browser := func() (*headless.Renderer, error) {
		r, err := headless.NewChromedp(headless.Config{
			MaxParallel:       a.cfg.Render.MaxParallel,
			UserAgent:         a.cfg.Crawler.UserAgent,
			NavigationTimeout: a.cfg.Render.Timeout,
			BlockResources:    a.cfg.Render.BlockResources,
			Headless:          a.cfg.Render.Headless,
		}, a.logger)
		if err != nil {
			return nil, fmt.Errorf("init headless renderer: %w", err)
		}
		a.onClose(func() error {
			r.Close()
			return nil
		})
		return r, nil
	}

	switch a.cfg.Render.Engine {
	case config.EngineColly:
		return static(), nil
	case config.EngineAuto:
		b, err := browser()
		if err != nil {
			return nil, err
		}
		return hybrid.New(static(), b, detector.NewHeuristic(a.cfg.Render.PromotionThreshold), a.logger), nil
	default:
		return browser()
	}
}

func (a *App) buildSummarizer() (crawler.Summarizer, error) {
	if !a.cfg.Summarizer.Enabled {
		a.logger.Warn("Summarizer disabled; summaries will be placeholders")
		return summarize.Disabled{}, nil
	}
	s, err := summarize.NewOpenAI(summarize.Config{
		APIKey:        a.cfg.Summarizer.APIKey,
		Model:         a.cfg.Summarizer.Model,
		BaseURL:       a.cfg.Summarizer.BaseURL,
		MaxInputChars: a.cfg.Summarizer.MaxInputChars,
		Temperature:   a.cfg.Summarizer.Temperature,
	}, a.logger)
	if err != nil {
		return nil, fmt.Errorf("init summarizer: %w", err)
	}
	return s, nil
}

func (a *App) buildBlobStore(ctx context.Context) (crawler.BlobStore, error) {
	switch a.cfg.Storage.Backend {
	case config.BackendMemory:
		return memory.NewBlobStore(), nil
	case config.BackendGCS:
		client, err := gcsclient.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("create gcs client: %w", err)
		}
		a.onClose(client.Close)
		store, err := gcs.New(client, gcs.Config{Bucket: a.cfg.Storage.GCSBucket, Prefix: a.cfg.Storage.Prefix})
		if err != nil {
			return nil, fmt.Errorf("init gcs blob store: %w", err)
		}
		return store, nil
	default:
		store, err := local.New(local.Config{BaseDir: a.cfg.Storage.BaseDir})
		if err != nil {
			return nil, fmt.Errorf("init local blob store: %w", err)
		}
		return store, nil
	}
}

func (a *App) buildRunStore(ctx context.Context) (crawler.RunStore, error) {
	if a.cfg.DB.DSN == "" {
		return memory.NewRunStore(), nil
	}
	store, err := postgres.NewRunStore(ctx, postgres.RunStoreConfig{
		DSN:      a.cfg.DB.DSN,
		Table:    a.cfg.DB.Table,
		MaxConns: a.cfg.DB.MaxConns,
	})
	if err != nil {
		return nil, fmt.Errorf("init postgres run store: %w", err)
	}
	a.onClose(func() error {
		store.Close()
		return nil
	})
	if err := store.EnsureSchema(ctx); err != nil {
		return nil, fmt.Errorf("ensure run schema: %w", err)
	}
	return store, nil
}

func (a *App) buildPublisher(ctx context.Context) (*pubsub.Publisher, error) {
	if a.cfg.PubSub.TopicName == "" && a.cfg.PubSub.ProgressTopic == "" {
		return nil, nil
	}
	p, err := pubsub.Dial(ctx, a.cfg.PubSub.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("init pubsub publisher: %w", err)
	}
	a.onClose(p.Close)
	return p, nil
}

// buildProgressHub returns nil when no progress sink is configured.
func (a *App) buildProgressHub(publisher *pubsub.Publisher) *progress.Hub {
	var sinks []progress.Sink
	if a.cfg.Crawler.ProgressLog {
		sinks = append(sinks, progress.NewLogSink(a.logger.Named("progress")))
	}
	if publisher != nil && a.cfg.PubSub.ProgressTopic != "" {
		sinks = append(sinks, progress.NewPublishSink(publisher, a.cfg.PubSub.ProgressTopic))
	}
	if len(sinks) == 0 {
		return nil
	}
	hub := progress.NewHub(progress.Config{Logger: a.logger}, sinks...)
	a.onClose(func() error {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return hub.Close(ctx)
	})
	return hub
}

func (a *App) onClose(fn func() error) {
	a.closers = append(a.closers, fn)
}

// Close releases services in reverse construction order.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
