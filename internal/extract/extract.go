// Package extract turns rendered HTML into page records and link lists.
package extract

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/JakeFAU/site-summarizer/internal/crawler"
)

const (
	// NotAvailable fills description and H1 when the page has none.
	NotAvailable = "N/A"
	// NoPreview is the content preview when no paragraph qualifies.
	NoPreview = "No content preview available."

	previewCandidates = 3
	previewMinChars   = 50
	previewSelector   = "main p, article p, section p"
)

// HTML implements crawler.Extractor and crawler.LinkEnumerator with goquery.
type HTML struct{}

// New returns an HTML extractor.
func New() *HTML {
	return &HTML{}
}

// Extract parses the page and collects its title, description, headings and
// a short content preview.
func (h *HTML) Extract(_ context.Context, page *crawler.RenderedPage) (crawler.PageRecord, error) {
	doc, err := parse(page)
	if err != nil {
		return crawler.PageRecord{}, err
	}

	rec := crawler.PageRecord{
		URL:            page.URL,
		Title:          strings.TrimSpace(doc.Find("title").First().Text()),
		Description:    NotAvailable,
		H1:             NotAvailable,
		H2:             headingTexts(doc, "h2"),
		H3:             headingTexts(doc, "h3"),
		ContentPreview: NoPreview,
	}
	if content, ok := doc.Find(`meta[name="description"]`).First().Attr("content"); ok {
		rec.Description = strings.TrimSpace(content)
	}
	if h1 := strings.TrimSpace(doc.Find("h1").First().Text()); h1 != "" {
		rec.H1 = h1
	}
	paragraphs := doc.Find(previewSelector)
	paragraphs.Slice(0, min(previewCandidates, paragraphs.Length())).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		text := strings.TrimSpace(s.Text())
		if len(text) > previewMinChars {
			rec.ContentPreview = text
			return false
		}
		return true
	})
	return rec, nil
}

// Links returns the hrefs on the page. Pages rendered by a browser already
// carry absolute hrefs; otherwise anchors are read from the HTML.
func (h *HTML) Links(_ context.Context, page *crawler.RenderedPage) ([]string, error) {
	if page == nil {
		return nil, fmt.Errorf("nil page")
	}
	if page.Links != nil {
		return page.Links, nil
	}
	doc, err := parse(page)
	if err != nil {
		return nil, err
	}
	var links []string
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		if href, ok := s.Attr("href"); ok {
			links = append(links, href)
		}
	})
	return links, nil
}

func parse(page *crawler.RenderedPage) (*goquery.Document, error) {
	if page == nil {
		return nil, fmt.Errorf("nil page")
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page.HTML))
	if err != nil {
		return nil, fmt.Errorf("parse html for %s: %w", page.URL, err)
	}
	return doc, nil
}

func headingTexts(doc *goquery.Document, selector string) []string {
	sel := doc.Find(selector)
	out := make([]string, 0, sel.Length())
	sel.Each(func(_ int, s *goquery.Selection) {
		out = append(out, strings.TrimSpace(s.Text()))
	})
	return out
}
