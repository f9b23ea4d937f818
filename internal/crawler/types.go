package crawler

import (
	"sync"
	"time"
)

// CrawlTask is one (URL, depth) pair waiting in the frontier.
type CrawlTask struct {
	URL   string
	Depth int
}

// PageRecord is the structured content extracted from one rendered page.
type PageRecord struct {
	URL            string   `json:"url"`
	Title          string   `json:"title"`
	Description    string   `json:"description"`
	H1             string   `json:"h1"`
	H2             []string `json:"h2_headings"`
	H3             []string `json:"h3_headings"`
	ContentPreview string   `json:"content_preview"`
}

// RenderedPage is the handle a Renderer returns for a fetched page. The page
// owns a render session (a browser tab for headless rendering) until Close is
// called.
type RenderedPage struct {
	URL        string
	FinalURL   string
	StatusCode int
	HTML       []byte
	// Links holds absolute hrefs when the renderer enumerated them itself.
	Links    []string
	Duration time.Duration

	release   func() error
	closeOnce sync.Once
	closeErr  error
}

// NewRenderedPage wraps a fetched document and the function that tears down
// its render session.
func NewRenderedPage(url, finalURL string, status int, html []byte, release func() error) *RenderedPage {
	return &RenderedPage{
		URL:        url,
		FinalURL:   finalURL,
		StatusCode: status,
		HTML:       html,
		release:    release,
	}
}

// BaseURL is the URL relative links on the page resolve against.
func (p *RenderedPage) BaseURL() string {
	if p.FinalURL != "" {
		return p.FinalURL
	}
	return p.URL
}

// Close releases the render session. It is safe to call more than once.
func (p *RenderedPage) Close() error {
	if p == nil {
		return nil
	}
	p.closeOnce.Do(func() {
		if p.release != nil {
			p.closeErr = p.release()
		}
	})
	return p.closeErr
}

// Stats summarizes what happened during one crawl.
type Stats struct {
	Claimed         int64         `json:"claimed"`
	Duplicates      int64         `json:"duplicates"`
	FetchFailures   int64         `json:"fetch_failures"`
	ExtractFailures int64         `json:"extract_failures"`
	Extracted       int64         `json:"extracted"`
	Enqueued        int64         `json:"enqueued"`
	Shed            int64         `json:"shed"`
	Elapsed         time.Duration `json:"elapsed"`
}
