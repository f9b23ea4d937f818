package crawler

import (
	"fmt"
	"net/url"
	"strings"
)

// NormalizeURL returns the dedup key for a URL: scheme, authority and path
// with the query string and fragment dropped. Scheme and host are lowercased
// and an empty path becomes "/". The function is total: input that does not
// parse is reduced to its prefix before any '?' or '#'.
func NormalizeURL(rawURL string) string {
	trimmed := strings.TrimSpace(rawURL)
	u, err := url.Parse(trimmed)
	if err != nil || u.Opaque != "" {
		if i := strings.IndexAny(trimmed, "?#"); i >= 0 {
			return trimmed[:i]
		}
		return trimmed
	}
	path := u.EscapedPath()
	if path == "" {
		path = "/"
	}
	return strings.ToLower(u.Scheme) + "://" + strings.ToLower(u.Host) + path
}

// ResolveLink resolves href against the page it was found on.
func ResolveLink(base, href string) (string, error) {
	href = strings.TrimSpace(href)
	if href == "" {
		return "", fmt.Errorf("empty href")
	}
	baseURL, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("parse base url: %w", err)
	}
	ref, err := url.Parse(href)
	if err != nil {
		return "", fmt.Errorf("parse href: %w", err)
	}
	return baseURL.ResolveReference(ref).String(), nil
}

// Authority returns the host[:port] of a URL, or "" when it does not parse.
func Authority(rawURL string) string {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return ""
	}
	return u.Host
}
