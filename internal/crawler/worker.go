package crawler

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/JakeFAU/site-summarizer/internal/metrics"
	"github.com/JakeFAU/site-summarizer/internal/progress"
)

// runWorker pops tasks until the frontier closes or ctx ends. It returns an
// error only for coordination failures.
func (e *Engine) runWorker(ctx context.Context, run *crawlRun, id int) error {
	logger := e.logger.With(zap.Int("worker", id))
	for {
		task, err := run.frontier.Pop(ctx)
		if err != nil {
			if errors.Is(err, ErrFrontierClosed) || ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("%w: pop: %w", ErrCoordination, err)
		}

		e.processTask(ctx, run, task, logger)

		if err := run.frontier.Done(); err != nil {
			return fmt.Errorf("%w: %w", ErrCoordination, err)
		}
	}
}

// processTask handles one frontier task. Panics are contained so a single
// bad page cannot take the worker down.
func (e *Engine) processTask(ctx context.Context, run *crawlRun, task CrawlTask, logger *zap.Logger) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("Task panicked",
				zap.String("url", task.URL),
				zap.Any("panic", r),
				zap.Stack("stack"),
			)
			metrics.ObservePage(task.URL, "panic", 0)
		}
	}()

	if task.Depth > run.maxDepth {
		metrics.ObserveDiscard("depth")
		return
	}
	if !run.visited.TryClaim(NormalizeURL(task.URL)) {
		run.duplicates.Add(1)
		metrics.ObserveDiscard("duplicate")
		return
	}
	run.claimed.Add(1)

	metrics.IncActiveWorkers()
	defer metrics.DecActiveWorkers()

	delay := politenessDelay(e.cfg.MinDelay, e.cfg.MaxDelay)
	if delay > 0 {
		metrics.ObservePolitenessDelay(delay)
		e.pauser.Pause(ctx, delay)
	}
	if e.limiter != nil {
		if err := e.limiter.Wait(ctx, task.URL); err != nil {
			logger.Debug("Rate limiter wait aborted", zap.String("url", task.URL), zap.Error(err))
			return
		}
	}

	logger.Info("Crawling", zap.String("url", task.URL), zap.Int("depth", task.Depth))
	page, err := e.renderer.Fetch(ctx, task.URL)
	if err != nil {
		err = fmt.Errorf("%w: %w", ErrFetch, err)
		run.fetchFailures.Add(1)
		metrics.ObservePage(task.URL, "fetch_error", 0)
		logger.Warn("Failed to render page", zap.String("url", task.URL), zap.Error(err))
		e.emit(run, progress.Event{
			Stage: progress.StagePageFailed,
			URL:   task.URL,
			Depth: task.Depth,
			Note:  err.Error(),
		})
		return
	}
	defer func() {
		if err := page.Close(); err != nil {
			logger.Debug("Failed to release render session", zap.String("url", task.URL), zap.Error(err))
		}
	}()

	record, err := e.extractor.Extract(ctx, page)
	if err != nil {
		err = fmt.Errorf("%w: %w", ErrExtract, err)
		run.extractFailures.Add(1)
		metrics.ObservePage(task.URL, "extract_error", len(page.HTML))
		logger.Warn("Failed to extract page", zap.String("url", task.URL), zap.Error(err))
		e.emit(run, progress.Event{
			Stage: progress.StagePageFailed,
			URL:   task.URL,
			Depth: task.Depth,
			Note:  err.Error(),
		})
	} else {
		run.results.Append(record)
		metrics.ObservePage(task.URL, "success", len(page.HTML))
		e.emit(run, progress.Event{
			Stage:       progress.StagePageDone,
			URL:         task.URL,
			Depth:       task.Depth,
			Bytes:       int64(len(page.HTML)),
			StatusClass: progress.ClassifyStatus(page.StatusCode),
			Dur:         page.Duration,
		})
	}

	e.enqueueChildren(ctx, run, task, page, logger)
}

func (e *Engine) enqueueChildren(
	ctx context.Context,
	run *crawlRun,
	parent CrawlTask,
	page *RenderedPage,
	logger *zap.Logger,
) {
	hrefs, err := e.links.Links(ctx, page)
	if err != nil {
		logger.Warn("Failed to enumerate links", zap.String("url", parent.URL), zap.Error(err))
		return
	}
	childDepth := parent.Depth + 1
	base := page.BaseURL()
	for _, href := range hrefs {
		candidate, err := ResolveLink(base, href)
		if err != nil {
			continue
		}
		if !ShouldAdmit(candidate, childDepth, run.rootDomain, run.visited, run.maxDepth, e.rules) {
			continue
		}
		switch err := run.frontier.Push(CrawlTask{URL: candidate, Depth: childDepth}); {
		case err == nil:
			run.enqueued.Add(1)
		case errors.Is(err, ErrFrontierFull):
			run.shed.Add(1)
			metrics.ObserveDiscard("shed")
			logger.Warn("Frontier full, dropping link", zap.String("url", candidate))
		default:
			// Closed: the crawl is shutting down.
			return
		}
	}
}
