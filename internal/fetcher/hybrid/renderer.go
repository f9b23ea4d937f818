// Package hybrid renders pages statically first and promotes them to a
// browser only when the static response looks client-rendered.
package hybrid

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/JakeFAU/site-summarizer/internal/crawler"
)

// Detector decides whether a static page needs JavaScript rendering.
type Detector interface {
	ShouldPromote(page *crawler.RenderedPage) bool
}

// Renderer chains a static and a headless renderer.
type Renderer struct {
	static   crawler.Renderer
	headless crawler.Renderer
	detector Detector
	logger   *zap.Logger
}

// New builds a hybrid renderer.
func New(static, headless crawler.Renderer, detector Detector, logger *zap.Logger) *Renderer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Renderer{
		static:   static,
		headless: headless,
		detector: detector,
		logger:   logger.Named("hybrid"),
	}
}

// Fetch tries the static renderer and falls back to the headless one when the
// static fetch fails or the detector asks for promotion.
func (r *Renderer) Fetch(ctx context.Context, rawURL string) (*crawler.RenderedPage, error) {
	page, err := r.static.Fetch(ctx, rawURL)
	if err == nil && !r.detector.ShouldPromote(page) {
		return page, nil
	}
	if err != nil {
		r.logger.Debug("Static fetch failed, promoting", zap.String("url", rawURL), zap.Error(err))
	} else {
		r.logger.Debug("Promoting to headless", zap.String("url", rawURL))
		if closeErr := page.Close(); closeErr != nil {
			r.logger.Debug("Failed to release static page", zap.Error(closeErr))
		}
	}

	rendered, herr := r.headless.Fetch(ctx, rawURL)
	if herr != nil {
		return nil, fmt.Errorf("headless fallback: %w", herr)
	}
	return rendered, nil
}
