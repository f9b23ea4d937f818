package crawler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/JakeFAU/site-summarizer/internal/metrics"
	"github.com/JakeFAU/site-summarizer/internal/progress"
	"golang.org/x/sync/errgroup"
)

const defaultWorkers = 3

// EngineConfig holds the settings for a crawl engine. It is decoupled from
// Viper so the engine can be built and tested on its own.
type EngineConfig struct {
	Workers       int
	QueueCapacity int
	MinDelay      time.Duration
	MaxDelay      time.Duration
	// ExcludePatterns are regular expressions matched against candidate URLs.
	// Nil selects DefaultExclusionPatterns; an empty slice disables exclusion.
	ExcludePatterns []string
}

// DefaultEngineConfig returns three workers with a one to two second
// politeness delay and the default exclusion patterns.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		Workers:  defaultWorkers,
		MinDelay: time.Second,
		MaxDelay: 2 * time.Second,
	}
}

// Option customizes an Engine.
type Option func(*Engine)

// WithLogger sets the engine logger.
func WithLogger(logger *zap.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithDomainLimiter throttles renders per host after the politeness delay.
func WithDomainLimiter(limiter DomainLimiter) Option {
	return func(e *Engine) {
		e.limiter = limiter
	}
}

// WithPauser replaces the timer used for politeness delays.
func WithPauser(p Pauser) Option {
	return func(e *Engine) {
		if p != nil {
			e.pauser = p
		}
	}
}

// WithProgress streams crawl and page milestones to emitter.
func WithProgress(emitter progress.Emitter) Option {
	return func(e *Engine) {
		if emitter != nil {
			e.progress = emitter
		}
	}
}

// Engine runs depth-bounded, deduplicating crawls of a single site.
// One Engine may run several crawls concurrently; each crawl owns its own
// frontier, visited set and results.
type Engine struct {
	cfg       EngineConfig
	rules     ExclusionRuleset
	renderer  Renderer
	extractor Extractor
	links     LinkEnumerator
	limiter   DomainLimiter
	pauser    Pauser
	progress  progress.Emitter
	logger    *zap.Logger

	statsMu   sync.Mutex
	lastStats Stats
}

// NewEngine wires a crawl engine from its collaborators.
func NewEngine(
	cfg EngineConfig,
	renderer Renderer,
	extractor Extractor,
	links LinkEnumerator,
	opts ...Option,
) (*Engine, error) {
	if renderer == nil || extractor == nil || links == nil {
		return nil, errors.New("crawler: renderer, extractor and link enumerator are required")
	}
	if cfg.Workers <= 0 {
		cfg.Workers = defaultWorkers
	}
	if cfg.MinDelay < 0 || cfg.MaxDelay < cfg.MinDelay {
		return nil, fmt.Errorf("crawler: invalid politeness delay range [%s, %s]", cfg.MinDelay, cfg.MaxDelay)
	}
	patterns := cfg.ExcludePatterns
	if patterns == nil {
		patterns = DefaultExclusionPatterns
	}
	rules, err := NewExclusionRuleset(patterns)
	if err != nil {
		return nil, fmt.Errorf("crawler: %w", err)
	}
	e := &Engine{
		cfg:       cfg,
		rules:     rules,
		renderer:  renderer,
		extractor: extractor,
		links:     links,
		pauser:    &timerPauseController{},
		progress:  progress.Discard{},
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = e.logger.Named("crawler")
	return e, nil
}

// ExclusionRules returns the compiled exclusion ruleset.
func (e *Engine) ExclusionRules() ExclusionRuleset {
	return e.rules
}

// Stats returns the counters of the most recently finished crawl.
func (e *Engine) Stats() Stats {
	e.statsMu.Lock()
	defer e.statsMu.Unlock()
	return e.lastStats
}

// crawlRun is the state owned by a single Crawl call.
type crawlRun struct {
	id         string
	seed       string
	rootDomain string
	maxDepth   int
	frontier   *Frontier
	visited    *VisitedSet
	results    *ResultSet

	claimed         atomic.Int64
	duplicates      atomic.Int64
	fetchFailures   atomic.Int64
	extractFailures atomic.Int64
	enqueued        atomic.Int64
	shed            atomic.Int64
}

func (r *crawlRun) stats(elapsed time.Duration) Stats {
	return Stats{
		Claimed:         r.claimed.Load(),
		Duplicates:      r.duplicates.Load(),
		FetchFailures:   r.fetchFailures.Load(),
		ExtractFailures: r.extractFailures.Load(),
		Extracted:       int64(r.results.Len()),
		Enqueued:        r.enqueued.Load(),
		Shed:            r.shed.Load(),
		Elapsed:         elapsed,
	}
}

// Crawl visits seedURL and every admitted page reachable from it within
// maxDepth link hops, returning the extracted records in completion order.
//
// Page-level failures are logged and skipped. The error is non-nil only for a
// coordination failure (wrapping ErrCoordination) or when ctx ends before the
// crawl drains; partial results are returned in both cases.
func (e *Engine) Crawl(ctx context.Context, seedURL string, maxDepth int) ([]PageRecord, error) {
	start := time.Now()
	run := &crawlRun{
		id:         uuid.NewString(),
		seed:       seedURL,
		rootDomain: strings.ToLower(Authority(seedURL)),
		maxDepth:   maxDepth,
		frontier:   NewFrontier(e.cfg.QueueCapacity),
		visited:    NewVisitedSet(),
		results:    &ResultSet{},
	}
	logger := e.logger.With(
		zap.String("crawl_id", run.id),
		zap.String("seed", seedURL),
		zap.Int("max_depth", maxDepth),
	)

	if run.rootDomain == "" || !AdmitSeed(seedURL, maxDepth) {
		logger.Info("Seed URL rejected by admission policy")
		e.recordStats(run.stats(time.Since(start)))
		return []PageRecord{}, nil
	}
	if err := run.frontier.Push(CrawlTask{URL: seedURL, Depth: 0}); err != nil {
		return []PageRecord{}, fmt.Errorf("%w: push seed: %w", ErrCoordination, err)
	}
	run.enqueued.Add(1)

	logger.Info("Crawl started", zap.Int("workers", e.cfg.Workers))
	e.emit(run, progress.Event{Stage: progress.StageCrawlStart})
	g, gctx := errgroup.WithContext(ctx)
	for id := range e.cfg.Workers {
		g.Go(func() error {
			return e.runWorker(gctx, run, id)
		})
	}

	drained := false
	select {
	case <-run.frontier.Drained():
		drained = true
	case <-gctx.Done():
	}
	run.frontier.Close()
	workerErr := g.Wait()

	elapsed := time.Since(start)
	stats := run.stats(elapsed)
	e.recordStats(stats)
	metrics.ObserveCrawlDuration(elapsed)
	pages := run.results.Snapshot()
	done := progress.Event{Stage: progress.StageCrawlDone, Dur: elapsed, Pages: len(pages)}
	if workerErr != nil {
		done.Note = workerErr.Error()
	} else if !drained && ctx.Err() != nil {
		done.Note = ctx.Err().Error()
	}
	e.emit(run, done)

	switch {
	case workerErr != nil:
		logger.Error("Crawl aborted", zap.Error(workerErr), zap.Any("stats", stats))
		return pages, workerErr
	case !drained && ctx.Err() != nil:
		logger.Warn("Crawl cancelled", zap.Error(ctx.Err()), zap.Any("stats", stats))
		return pages, fmt.Errorf("crawl cancelled: %w", ctx.Err())
	}
	logger.Info("Crawl finished",
		zap.Int("pages", len(pages)),
		zap.Duration("elapsed", elapsed),
		zap.Any("stats", stats),
	)
	return pages, nil
}

// emit stamps evt with the crawl identity and hands it to the progress
// emitter.
func (e *Engine) emit(run *crawlRun, evt progress.Event) {
	evt.CrawlID = run.id
	evt.Seed = run.seed
	evt.TS = time.Now().UTC()
	e.progress.Emit(evt)
}

func (e *Engine) recordStats(s Stats) {
	e.statsMu.Lock()
	e.lastStats = s
	e.statsMu.Unlock()
}
