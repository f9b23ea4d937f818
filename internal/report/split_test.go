package report

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/site-summarizer/internal/crawler"
)

func TestSplitPages(t *testing.T) {
	t.Parallel()

	md := "# site\n\nintro\n## Page 1: Home\nbody one\n## Page 2: About\nbody two\n"
	blocks := SplitPages(md)
	require.Len(t, blocks, 2)
	assert.Equal(t, "## Page 1: Home\nbody one", blocks[0])
	assert.Equal(t, "## Page 2: About\nbody two", blocks[1])
}

func TestSplitPagesIgnoresInlineMarkers(t *testing.T) {
	t.Parallel()

	md := "## Page 1: Home\nsee ## Page 9: not a heading\n"
	blocks := SplitPages(md)
	require.Len(t, blocks, 1)
	assert.Empty(t, SplitPages("no pages here"))
}

func TestExtractTitleAndBody(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		block     string
		wantTitle string
		wantBody  string
	}{
		{"heading", "## Page 3: Pricing  \nplans", "Page 3: Pricing", "plans"},
		{"no heading", "just text", "Untitled", "just text"},
		{"heading without body", "## Page 1: Home", "Untitled", "## Page 1: Home"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			title, body := ExtractTitleAndBody(tt.block)
			assert.Equal(t, tt.wantTitle, title)
			assert.Equal(t, tt.wantBody, body)
		})
	}
}

func TestSectionsKeepsUntitledPages(t *testing.T) {
	t.Parallel()

	pages := []crawler.PageRecord{
		{URL: "https://example.com/", Title: "Home"},
		{URL: "https://example.com/blank", Title: ""},
		{URL: "https://example.com/c", Title: "C"},
	}
	md := FullReport(Metadata{SourceURL: "https://example.com/", CrawledAt: time.Unix(0, 0).UTC(), Depth: 1}, pages)

	sections := Sections(md)
	require.Len(t, sections, 3)
	assert.Equal(t, "Page 1: Home", sections[0].Title)
	assert.Equal(t, "Page 2:", sections[1].Title)
	assert.Contains(t, sections[1].Body, "https://example.com/blank")
	assert.NotContains(t, sections[0].Body, "https://example.com/blank")
	assert.Equal(t, "Page 3: C", sections[2].Title)
}
