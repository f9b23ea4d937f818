// Package detector decides when a statically fetched page needs a browser.
package detector

import (
	"bytes"
	"net/http"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/JakeFAU/site-summarizer/internal/crawler"
)

const (
	defaultBodyLengthThreshold = 2048
	scriptCoveragePercent      = 25
)

// spaSelectors match the mount points and attributes client-side frameworks
// leave in an unrendered shell.
var spaSelectors = []string{
	"#__next",
	"script#__NEXT_DATA__",
	"#root",
	"#app",
	"[data-reactroot]",
	"[ng-version]",
	"[data-server-rendered]",
}

var noscriptHints = []string{
	"enable javascript",
	"javascript is required",
	"javascript to run this app",
}

// Heuristic implements a handful of rule-based promotions.
type Heuristic struct {
	BodyLengthThreshold int
}

// NewHeuristic creates a new detector.
func NewHeuristic(threshold int) *Heuristic {
	if threshold <= 0 {
		threshold = defaultBodyLengthThreshold
	}
	return &Heuristic{BodyLengthThreshold: threshold}
}

// ShouldPromote reports whether page looks like a client-rendered shell whose
// content only appears after JavaScript runs.
func (h *Heuristic) ShouldPromote(page *crawler.RenderedPage) bool {
	if page == nil || page.StatusCode != http.StatusOK {
		return false
	}
	body := page.HTML
	if len(bytes.TrimSpace(body)) == 0 {
		return true
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return true
	}
	switch {
	case len(body) < h.BodyLengthThreshold && scriptCoverage(doc, len(body)) >= scriptCoveragePercent:
		return true
	case hasSPAMarker(doc):
		return true
	default:
		return noscriptWarns(doc)
	}
}

// scriptCoverage returns the share of the document, in percent, taken up by
// script elements.
func scriptCoverage(doc *goquery.Document, total int) int {
	if total == 0 {
		return 0
	}
	covered := 0
	doc.Find("script").Each(func(_ int, s *goquery.Selection) {
		html, err := goquery.OuterHtml(s)
		if err != nil {
			return
		}
		covered += len(html)
	})
	return covered * 100 / total
}

func hasSPAMarker(doc *goquery.Document) bool {
	for _, sel := range spaSelectors {
		if doc.Find(sel).Length() > 0 {
			return true
		}
	}
	return false
}

func noscriptWarns(doc *goquery.Document) bool {
	warns := false
	doc.Find("noscript").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		text := strings.ToLower(s.Text())
		for _, hint := range noscriptHints {
			if strings.Contains(text, hint) {
				warns = true
				return false
			}
		}
		return true
	})
	return warns
}
