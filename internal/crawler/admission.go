package crawler

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

// DefaultExclusionPatterns are the URL patterns skipped unless configured
// otherwise. They keep crawls on product and content pages.
var DefaultExclusionPatterns = []string{
	`/login`, `/signup`, `/help`, `/docs`, `/support`, `/blog`, `/community`,
	`/pricing`, `/terms`, `/privacy`, `/cookie-policy`, `/contact`, `/careers`,
	`#`, `\?`, `/events`, `/webinars`, `/resources`, `/case-studies`,
	`/integrations`, `/developers`, `/status`, `/sitemap`, `/feed`,
}

// ExclusionRuleset is an ordered set of patterns applied to the raw URL.
type ExclusionRuleset struct {
	rules []*regexp.Regexp
}

// NewExclusionRuleset compiles patterns, skipping blank entries.
func NewExclusionRuleset(patterns []string) (ExclusionRuleset, error) {
	rules := make([]*regexp.Regexp, 0, len(patterns))
	for _, raw := range patterns {
		if strings.TrimSpace(raw) == "" {
			continue
		}
		re, err := regexp.Compile(raw)
		if err != nil {
			return ExclusionRuleset{}, fmt.Errorf("compile exclusion pattern %q: %w", raw, err)
		}
		rules = append(rules, re)
	}
	return ExclusionRuleset{rules: rules}, nil
}

// MustExclusionRuleset is NewExclusionRuleset for patterns known to compile.
func MustExclusionRuleset(patterns []string) ExclusionRuleset {
	rs, err := NewExclusionRuleset(patterns)
	if err != nil {
		panic(err)
	}
	return rs
}

// Matches reports whether any rule matches rawURL.
func (r ExclusionRuleset) Matches(rawURL string) bool {
	for _, re := range r.rules {
		if re.MatchString(rawURL) {
			return true
		}
	}
	return false
}

// Patterns returns the source of each rule in order.
func (r ExclusionRuleset) Patterns() []string {
	out := make([]string, len(r.rules))
	for i, re := range r.rules {
		out[i] = re.String()
	}
	return out
}

// VisitedView is the read-only side of the visited set used by admission.
type VisitedView interface {
	Seen(key string) bool
}

// ShouldAdmit decides whether candidateURL may enter the frontier. It never
// mutates visited; claiming happens when a worker pops the task.
//
// The domain check is a substring test on the candidate's authority, so
// subdomains of rootDomain are admitted, and so is any host that merely
// contains it.
func ShouldAdmit(
	candidateURL string,
	candidateDepth int,
	rootDomain string,
	visited VisitedView,
	maxDepth int,
	rules ExclusionRuleset,
) bool {
	u, err := url.Parse(strings.TrimSpace(candidateURL))
	if err != nil {
		return false
	}
	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return false
	}
	if u.Host == "" || !strings.Contains(strings.ToLower(u.Host), strings.ToLower(rootDomain)) {
		return false
	}
	if visited != nil && visited.Seen(NormalizeURL(candidateURL)) {
		return false
	}
	if candidateDepth > maxDepth {
		return false
	}
	return !rules.Matches(candidateURL)
}

// AdmitSeed is the admission check for the crawl's starting URL. Only the
// scheme and authority are checked; exclusion rules apply to discovered links,
// so a seed such as https://example.com/docs or one carrying a query string
// still starts a crawl.
func AdmitSeed(seedURL string, maxDepth int) bool {
	if maxDepth < 0 {
		return false
	}
	u, err := url.Parse(strings.TrimSpace(seedURL))
	if err != nil {
		return false
	}
	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return false
	}
	return u.Host != ""
}
