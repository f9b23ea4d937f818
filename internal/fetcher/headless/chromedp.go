// Package headless contains renderers that execute JavaScript via browsers.
package headless

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/fetch"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/JakeFAU/site-summarizer/internal/crawler"
)

const defaultNavigationTimeout = 60 * time.Second

// ErrRendererDisabled is returned by Fetch after the renderer has been closed.
var ErrRendererDisabled = errors.New("headless renderer disabled")

const anchorHrefsJS = `Array.from(document.querySelectorAll('a[href]')).map(a => a.href)`

// Config controls the behavior of the headless renderer.
type Config struct {
	MaxParallel       int
	UserAgent         string
	NavigationTimeout time.Duration
	BlockResources    bool
	Headless          bool
}

// Renderer implements crawler.Renderer using chromedp and headless Chrome.
// A single browser is started on first use; every Fetch opens its own tab
// that stays alive until the returned page is closed.
type Renderer struct {
	cfg     Config
	logger  *zap.Logger
	limiter chan struct{}

	mu            sync.Mutex
	closed        bool
	allocCancel   context.CancelFunc
	browserCtx    context.Context
	browserCancel context.CancelFunc
}

// NewChromedp creates a headless renderer backed by chromedp.
func NewChromedp(cfg Config, logger *zap.Logger) (*Renderer, error) {
	if cfg.MaxParallel < 0 {
		return nil, fmt.Errorf("max parallel must be >= 0")
	}
	if cfg.NavigationTimeout <= 0 {
		cfg.NavigationTimeout = defaultNavigationTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	var limiter chan struct{}
	if cfg.MaxParallel > 0 {
		limiter = make(chan struct{}, cfg.MaxParallel)
	}
	return &Renderer{
		cfg:     cfg,
		logger:  logger.Named("headless"),
		limiter: limiter,
	}, nil
}

// Close shuts down the browser. Pages still open lose their tab.
func (r *Renderer) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	if r.browserCancel != nil {
		r.browserCancel()
		r.browserCancel = nil
	}
	if r.allocCancel != nil {
		r.allocCancel()
		r.allocCancel = nil
	}
	r.browserCtx = nil
}

// Fetch navigates a fresh tab to rawURL and returns the rendered DOM along
// with the absolute hrefs of every anchor on the page. The tab and its
// parallelism slot are released by RenderedPage.Close.
func (r *Renderer) Fetch(ctx context.Context, rawURL string) (*crawler.RenderedPage, error) {
	browserCtx, err := r.browser()
	if err != nil {
		return nil, err
	}
	if err := r.acquire(ctx); err != nil {
		return nil, err
	}

	tabCtx, cancelTab := chromedp.NewContext(browserCtx)
	release := func() error {
		cancelTab()
		r.release()
		return nil
	}
	// The first Run allocates the tab; it must not carry the navigation timeout
	// or the tab would close when the timeout fires.
	if err := chromedp.Run(tabCtx); err != nil {
		_ = release()
		return nil, fmt.Errorf("open tab: %w", err)
	}

	taskCtx, cancelTask := context.WithTimeout(tabCtx, r.navTimeout())
	defer cancelTask()
	stopForward := forwardCancel(ctx, cancelTask)
	defer stopForward()

	meta := newResponseMeta()
	chromedp.ListenTarget(tabCtx, func(ev any) {
		switch e := ev.(type) {
		case *network.EventResponseReceived:
			meta.capture(e)
		case *fetch.EventRequestPaused:
			go r.failRequest(tabCtx, e.RequestID)
		}
	})

	start := time.Now()
	snap, err := r.runHeadless(taskCtx, rawURL)
	if err != nil {
		_ = release()
		return nil, fmt.Errorf("render %s: %w", rawURL, err)
	}

	status, finalURL := meta.snapshotWithFallbacks(rawURL, snap.location)
	page := crawler.NewRenderedPage(rawURL, finalURL, status, []byte(snap.html), release)
	page.Links = snap.links
	page.Duration = time.Since(start)
	return page, nil
}

type snapshot struct {
	html     string
	location string
	links    []string
}

func (r *Renderer) runHeadless(ctx context.Context, rawURL string) (snapshot, error) {
	var snap snapshot
	actions := []chromedp.Action{
		r.networkSetupAction(),
		chromedp.Navigate(rawURL),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Location(&snap.location),
		chromedp.OuterHTML("html", &snap.html, chromedp.ByQuery),
		chromedp.Evaluate(anchorHrefsJS, &snap.links),
	}
	if err := chromedp.Run(ctx, actions...); err != nil {
		return snapshot{}, fmt.Errorf("chromedp run: %w", err)
	}
	return snap, nil
}

func (r *Renderer) networkSetupAction() chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		if err := network.Enable().Do(ctx); err != nil {
			return fmt.Errorf("enable network domain: %w", err)
		}
		if r.cfg.UserAgent != "" {
			if err := emulation.SetUserAgentOverride(r.cfg.UserAgent).Do(ctx); err != nil {
				return fmt.Errorf("set user-agent: %w", err)
			}
		}
		if r.cfg.BlockResources {
			if err := fetch.Enable().WithPatterns(blockedResourcePatterns()).Do(ctx); err != nil {
				return fmt.Errorf("enable request interception: %w", err)
			}
		}
		return nil
	})
}

// blockedResourcePatterns pauses image, font and media requests so they can
// be failed before hitting the network.
func blockedResourcePatterns() []*fetch.RequestPattern {
	return []*fetch.RequestPattern{
		{URLPattern: "*", ResourceType: network.ResourceTypeImage},
		{URLPattern: "*", ResourceType: network.ResourceTypeFont},
		{URLPattern: "*", ResourceType: network.ResourceTypeMedia},
	}
}

func (r *Renderer) failRequest(tabCtx context.Context, id fetch.RequestID) {
	c := chromedp.FromContext(tabCtx)
	if c == nil || c.Target == nil {
		return
	}
	execCtx := cdp.WithExecutor(tabCtx, c.Target)
	if err := fetch.FailRequest(id, network.ErrorReasonBlockedByClient).Do(execCtx); err != nil {
		r.logger.Debug("Failed to block sub-resource", zap.Error(err))
	}
}

func (r *Renderer) browser() (context.Context, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil, ErrRendererDisabled
	}
	if r.browserCtx != nil {
		return r.browserCtx, nil
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", r.cfg.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("hide-scrollbars", true),
		chromedp.Flag("enable-automation", false),
	)
	if r.cfg.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(r.cfg.UserAgent))
	}
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)
	if err := chromedp.Run(browserCtx); err != nil {
		browserCancel()
		allocCancel()
		return nil, fmt.Errorf("chromedp warmup: %w", err)
	}
	r.logger.Info("Headless browser started", zap.Int("max_parallel", r.cfg.MaxParallel))
	r.allocCancel = allocCancel
	r.browserCtx = browserCtx
	r.browserCancel = browserCancel
	return browserCtx, nil
}

func (r *Renderer) acquire(ctx context.Context) error {
	if r.limiter == nil {
		return nil
	}
	select {
	case r.limiter <- struct{}{}:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("headless slot wait canceled: %w", ctx.Err())
	}
}

func (r *Renderer) release() {
	if r.limiter == nil {
		return
	}
	select {
	case <-r.limiter:
	default:
	}
}

func (r *Renderer) navTimeout() time.Duration {
	if r.cfg.NavigationTimeout > 0 {
		return r.cfg.NavigationTimeout
	}
	return defaultNavigationTimeout
}

// forwardCancel cancels the task when the caller's context ends. The browser
// context tree is separate from the caller's, so cancellation does not
// propagate on its own.
func forwardCancel(parent context.Context, cancel context.CancelFunc) func() {
	if parent == nil {
		return func() {}
	}
	done := make(chan struct{})
	go func() {
		select {
		case <-parent.Done():
			cancel()
		case <-done:
		}
	}()
	return func() { close(done) }
}

type responseMeta struct {
	mu     sync.RWMutex
	status int
	url    string
}

func newResponseMeta() *responseMeta {
	return &responseMeta{}
}

// capture keeps the first document response; later documents are iframes.
func (m *responseMeta) capture(event *network.EventResponseReceived) {
	if event.Type != network.ResourceTypeDocument || event.Response == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.status != 0 {
		return
	}
	m.status = int(event.Response.Status)
	m.url = event.Response.URL
}

func (m *responseMeta) snapshotWithFallbacks(requestURL, location string) (int, string) {
	m.mu.RLock()
	status, url := m.status, m.url
	m.mu.RUnlock()

	switch {
	case location != "":
		url = location
	case url != "":
	default:
		url = requestURL
	}
	if status == 0 {
		status = http.StatusOK
	}
	return status, url
}
