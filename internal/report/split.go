package report

import (
	"regexp"
	"strings"
)

var (
	// Titles may be empty, so nothing is required after the colon.
	pageStart  = regexp.MustCompile(`(?m)^## Page \d+:`)
	pageHeader = regexp.MustCompile(`^## (Page \d+:[^\n]*)\n`)
)

// Section is one page block of a rendered report.
type Section struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

// SplitPages cuts a report into its "## Page N: Title" blocks. Text before
// the first page heading is dropped.
func SplitPages(md string) []string {
	starts := pageStart.FindAllStringIndex(md, -1)
	blocks := make([]string, 0, len(starts))
	for i, loc := range starts {
		end := len(md)
		if i+1 < len(starts) {
			end = starts[i+1][0]
		}
		blocks = append(blocks, strings.TrimSuffix(md[loc[0]:end], "\n"))
	}
	return blocks
}

// ExtractTitleAndBody splits a page block into its "Page N: Title" heading and
// the remaining body. Blocks without a heading are titled "Untitled".
func ExtractTitleAndBody(block string) (string, string) {
	m := pageHeader.FindStringSubmatch(block)
	if m == nil {
		return "Untitled", block
	}
	return strings.TrimSpace(m[1]), block[len(m[0]):]
}

// Sections splits a report into titled page sections.
func Sections(md string) []Section {
	blocks := SplitPages(md)
	out := make([]Section, 0, len(blocks))
	for _, b := range blocks {
		title, body := ExtractTitleAndBody(b)
		out = append(out, Section{Title: title, Body: body})
	}
	return out
}
