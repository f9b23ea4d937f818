// Package report renders crawl results as markdown documents.
package report

import (
	"bytes"
	"strconv"
	"strings"
	"time"

	"github.com/nao1215/markdown"

	"github.com/JakeFAU/site-summarizer/internal/crawler"
)

const crawlDateLayout = "2006-01-02 15:04:05"

// Metadata describes the crawl a full report was produced from.
type Metadata struct {
	SourceURL        string
	CrawledAt        time.Time
	Depth            int
	ExcludedPatterns []string
}

// SummaryEntry pairs a page title with its generated summary.
type SummaryEntry struct {
	Title   string
	Summary string
}

// PageMarkdown renders one page record as the n-th (1-based) page section.
func PageMarkdown(n int, page crawler.PageRecord) string {
	var buf bytes.Buffer
	md := markdown.NewMarkdown(&buf)
	writePage(md, n, page)
	return md.String()
}

func writePage(md *markdown.Markdown, n int, page crawler.PageRecord) {
	md.H2(pageHeading(n, page.Title))
	md.PlainTextf("**URL**: <%s>", page.URL)
	md.PlainTextf("**Title**: %s", page.Title)
	md.PlainTextf("**Description**: %s", page.Description)
	md.PlainText("")
	md.H3("Main Headings")
	md.H4("H1: " + page.H1)
	if len(page.H2) > 0 {
		md.H4("H2:")
		md.BulletList(page.H2...)
	}
	if len(page.H3) > 0 {
		md.H4("H3:")
		md.BulletList(page.H3...)
	}
	md.PlainText("")
	md.H3("Content Preview")
	for _, line := range strings.Split(page.ContentPreview, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		md.Blockquote(line)
	}
}

// FullReport renders the crawl metadata followed by every page section.
func FullReport(meta Metadata, pages []crawler.PageRecord) string {
	var buf bytes.Buffer
	md := markdown.NewMarkdown(&buf)

	md.H1(crawler.Authority(meta.SourceURL) + " - Website Content Analysis")
	md.PlainText("")
	md.H2("Crawl Metadata")
	md.BulletList(
		"**Source URL**: "+meta.SourceURL,
		"**Crawl Date**: "+meta.CrawledAt.Format(crawlDateLayout),
		"**Total Pages Crawled**: "+strconv.Itoa(len(pages)),
		"**Crawl Depth**: "+strconv.Itoa(meta.Depth),
		"**Excluded Patterns**: "+strings.Join(meta.ExcludedPatterns, ", "),
	)
	md.PlainText("")
	md.HorizontalRule()
	md.PlainText("")

	for i, page := range pages {
		writePage(md, i+1, page)
		md.PlainText("")
		md.HorizontalRule()
		md.PlainText("")
	}
	return md.String()
}

// SummaryReport renders one summary section per page under a seed heading.
func SummaryReport(seedURL string, entries []SummaryEntry) string {
	var buf bytes.Buffer
	md := markdown.NewMarkdown(&buf)

	md.H1(seedURL + " - Website Summaries")
	md.PlainText("")
	for i, e := range entries {
		md.H2(pageHeading(i+1, e.Title))
		md.PlainText("")
		md.PlainText("**Summary:**")
		md.PlainText(e.Summary)
		md.PlainText("")
		md.HorizontalRule()
	}
	return md.String()
}

func pageHeading(n int, title string) string {
	return "Page " + strconv.Itoa(n) + ": " + title
}
