// Package pipeline runs a crawl end to end: crawl, summarize every page,
// write the summary and full reports, record the run and announce it.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/JakeFAU/site-summarizer/internal/crawler"
	"github.com/JakeFAU/site-summarizer/internal/metrics"
	"github.com/JakeFAU/site-summarizer/internal/report"
	"github.com/JakeFAU/site-summarizer/internal/telemetry"
)

// MarkdownContentType is used for every report object.
const MarkdownContentType = "text/markdown; charset=utf-8"

// ErrNoContent means the crawl finished without a single extracted page.
var ErrNoContent = errors.New("no content scraped; check URL or JS restrictions")

// Crawler is the part of crawler.Engine the pipeline drives.
type Crawler interface {
	Crawl(ctx context.Context, seedURL string, maxDepth int) ([]crawler.PageRecord, error)
	ExclusionRules() crawler.ExclusionRuleset
}

// Deps are the collaborators of a Service. Runs and Publisher are optional.
type Deps struct {
	Crawler    Crawler
	Summarizer crawler.Summarizer
	Blobs      crawler.BlobStore
	Runs       crawler.RunStore
	Publisher  crawler.Publisher
	Hasher     crawler.Hasher
	Clock      crawler.Clock
	IDs        crawler.IDGenerator
}

// Config controls optional pipeline behavior.
type Config struct {
	// Topic receives a ReportReadyEvent after every successful run. Empty
	// disables publishing.
	Topic string
}

// Result describes the artifacts of a successful run.
type Result struct {
	RunID       string `json:"run_id"`
	SummaryFile string `json:"summary_file"`
	ReportFile  string `json:"report_file"`
	SummaryURI  string `json:"summary_uri"`
	ReportURI   string `json:"report_uri"`
	Pages       int    `json:"pages"`
}

// ReportReadyEvent is published once both reports are stored.
type ReportReadyEvent struct {
	RunID       string    `json:"run_id"`
	SeedURL     string    `json:"seed_url"`
	Pages       int       `json:"pages"`
	SummaryFile string    `json:"summary_file"`
	ReportFile  string    `json:"report_file"`
	SummaryHash string    `json:"summary_hash"`
	FinishedAt  time.Time `json:"finished_at"`
}

// Service runs the crawl and report pipeline.
type Service struct {
	deps   Deps
	cfg    Config
	logger *zap.Logger
}

// New validates deps and builds a Service.
func New(deps Deps, cfg Config, logger *zap.Logger) (*Service, error) {
	switch {
	case deps.Crawler == nil:
		return nil, errors.New("pipeline: crawler is required")
	case deps.Summarizer == nil:
		return nil, errors.New("pipeline: summarizer is required")
	case deps.Blobs == nil:
		return nil, errors.New("pipeline: blob store is required")
	case deps.Hasher == nil || deps.Clock == nil || deps.IDs == nil:
		return nil, errors.New("pipeline: hasher, clock and id generator are required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{deps: deps, cfg: cfg, logger: logger.Named("pipeline")}, nil
}

// Run crawls seedURL to maxDepth and writes the summary and full reports.
// A crawl that yields no pages returns ErrNoContent. Summarization failures
// are written into the summary report instead of failing the run.
func (s *Service) Run(ctx context.Context, seedURL string, maxDepth int) (Result, error) {
	ctx, span := telemetry.Tracer("pipeline").Start(ctx, "pipeline.Run")
	defer span.End()
	span.SetAttributes(attribute.String("seed_url", seedURL), attribute.Int("max_depth", maxDepth))

	res, err := s.run(ctx, seedURL, maxDepth)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		metrics.ObserveReportRun(runStatus(err))
		return Result{}, err
	}
	metrics.ObserveReportRun("success")
	return res, nil
}

func (s *Service) run(ctx context.Context, seedURL string, maxDepth int) (Result, error) {
	runID, err := s.deps.IDs.NewID()
	if err != nil {
		return Result{}, fmt.Errorf("run id: %w", err)
	}
	logger := s.logger.With(zap.String("run_id", runID), zap.String("seed", seedURL))
	startedAt := s.deps.Clock.Now()

	pages, err := s.deps.Crawler.Crawl(ctx, seedURL, maxDepth)
	if err != nil {
		return Result{}, fmt.Errorf("crawl %s: %w", seedURL, err)
	}
	if len(pages) == 0 {
		logger.Warn("Crawl produced no pages")
		return Result{}, ErrNoContent
	}

	entries, err := s.summarize(ctx, pages, logger)
	if err != nil {
		return Result{}, err
	}

	summaryDoc := report.SummaryReport(seedURL, entries)
	fullDoc := report.FullReport(report.Metadata{
		SourceURL:        seedURL,
		CrawledAt:        startedAt,
		Depth:            maxDepth,
		ExcludedPatterns: s.deps.Crawler.ExclusionRules().Patterns(),
	}, pages)

	summaryFile, summaryURI, err := s.store(ctx, "summary", summaryDoc)
	if err != nil {
		return Result{}, err
	}
	reportFile, reportURI, err := s.store(ctx, "report", fullDoc)
	if err != nil {
		return Result{}, err
	}
	logger.Info("Reports written",
		zap.String("summary_uri", summaryURI),
		zap.String("report_uri", reportURI),
		zap.Int("pages", len(pages)),
	)

	summaryHash, err := s.deps.Hasher.Hash([]byte(summaryDoc))
	if err != nil {
		return Result{}, fmt.Errorf("hash summary: %w", err)
	}
	finishedAt := s.deps.Clock.Now()
	s.recordRun(ctx, crawler.RunRecord{
		ID:          runID,
		SeedURL:     seedURL,
		MaxDepth:    maxDepth,
		Pages:       len(pages),
		SummaryFile: summaryFile,
		ReportFile:  reportFile,
		SummaryHash: summaryHash,
		StartedAt:   startedAt,
		FinishedAt:  finishedAt,
	}, logger)
	s.publish(ctx, ReportReadyEvent{
		RunID:       runID,
		SeedURL:     seedURL,
		Pages:       len(pages),
		SummaryFile: summaryFile,
		ReportFile:  reportFile,
		SummaryHash: summaryHash,
		FinishedAt:  finishedAt,
	}, logger)

	return Result{
		RunID:       runID,
		SummaryFile: summaryFile,
		ReportFile:  reportFile,
		SummaryURI:  summaryURI,
		ReportURI:   reportURI,
		Pages:       len(pages),
	}, nil
}

// summarize runs the summarizer over each page in crawl order.
func (s *Service) summarize(ctx context.Context, pages []crawler.PageRecord, logger *zap.Logger) ([]report.SummaryEntry, error) {
	entries := make([]report.SummaryEntry, 0, len(pages))
	for i, page := range pages {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("summarize cancelled: %w", err)
		}
		logger.Info("Summarizing", zap.Int("page", i+1), zap.String("title", page.Title))
		summary, err := s.deps.Summarizer.Summarize(ctx, report.PageMarkdown(i+1, page))
		if err != nil {
			logger.Warn("Failed to summarize page", zap.String("url", page.URL), zap.Error(err))
			summary = "Error summarizing this page: " + err.Error()
		}
		entries = append(entries, report.SummaryEntry{Title: page.Title, Summary: summary})
	}
	return entries, nil
}

func (s *Service) store(ctx context.Context, kind, doc string) (string, string, error) {
	token, err := s.deps.IDs.NewHexID()
	if err != nil {
		return "", "", fmt.Errorf("%s file name: %w", kind, err)
	}
	name := kind + "_" + token + ".md"
	uri, err := s.deps.Blobs.PutObject(ctx, name, MarkdownContentType, strings.NewReader(doc))
	if err != nil {
		return "", "", fmt.Errorf("write %s: %w", name, err)
	}
	return name, uri, nil
}

// recordRun is best effort: the reports already exist when it runs.
func (s *Service) recordRun(ctx context.Context, run crawler.RunRecord, logger *zap.Logger) {
	if s.deps.Runs == nil {
		return
	}
	if err := s.deps.Runs.RecordRun(ctx, run); err != nil {
		logger.Warn("Failed to record crawl run", zap.Error(err))
	}
}

func (s *Service) publish(ctx context.Context, event ReportReadyEvent, logger *zap.Logger) {
	if s.deps.Publisher == nil || s.cfg.Topic == "" {
		return
	}
	id, err := s.deps.Publisher.Publish(ctx, s.cfg.Topic, event)
	if err != nil {
		logger.Warn("Failed to publish report event", zap.String("topic", s.cfg.Topic), zap.Error(err))
		return
	}
	logger.Debug("Report event published", zap.String("message_id", id))
}

func runStatus(err error) string {
	switch {
	case errors.Is(err, ErrNoContent):
		return "no_content"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "cancelled"
	default:
		return "error"
	}
}
