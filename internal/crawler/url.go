package crawler

import (
	"fmt"
	"net/url"
	"strings"
)

// DefaultBaseURL is the content host used when none is configured.
const DefaultBaseURL = "https://en.wikipedia.org"

// ArticlePathPrefix is the path prefix every article-namespace link carries.
const ArticlePathPrefix = "/wiki/"

// RandomArticlePath is the endpoint that redirects to a random article.
const RandomArticlePath = ArticlePathPrefix + "Special:Random"

// NormalizeURL standardizes an article locator so identical articles compare
// equal. It lowercases the scheme and host, removes default ports and drops
// the fragment. The path is left untouched because article names are case
// sensitive.
func NormalizeURL(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("parse url: %w", err)
	}

	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)

	if u.Scheme == "http" && strings.HasSuffix(u.Host, ":80") {
		u.Host = strings.TrimSuffix(u.Host, ":80")
	}
	if u.Scheme == "https" && strings.HasSuffix(u.Host, ":443") {
		u.Host = strings.TrimSuffix(u.Host, ":443")
	}

	u.Fragment = ""
	u.RawFragment = ""

	return u.String(), nil
}

// titleEscaper escapes only the characters that would otherwise end the path
// component, so title-built locators match the hrefs found in article markup.
var titleEscaper = strings.NewReplacer("%", "%25", "?", "%3F", "#", "%23")

// ResolveHref turns an href found in article markup into an absolute locator.
func ResolveHref(base *url.URL, href string) (string, error) {
	ref, err := url.Parse(href)
	if err != nil {
		return "", fmt.Errorf("parse href: %w", err)
	}
	if base == nil {
		return NormalizeURL(ref.String())
	}
	return NormalizeURL(base.ResolveReference(ref).String())
}

// TitleFromLocator derives a display title from the trailing path segment of a
// locator: underscores become spaces, then percent escapes are decoded. A
// malformed escape leaves the underscore-replaced segment as is.
func TitleFromLocator(locator string) string {
	segment := locator
	if u, err := url.Parse(locator); err == nil && u.Path != "" {
		segment = u.EscapedPath()
	}
	if idx := strings.LastIndex(segment, "/"); idx >= 0 {
		segment = segment[idx+1:]
	}
	segment = strings.ReplaceAll(segment, "_", " ")
	decoded, err := url.PathUnescape(segment)
	if err != nil {
		return segment
	}
	return decoded
}

// ArticleFromTitle builds an ArticleRef from either a full http(s) URL or a
// plain article title, which is resolved against base.
func ArticleFromTitle(base string, titleOrURL string) (ArticleRef, error) {
	raw := strings.TrimSpace(titleOrURL)
	if raw == "" {
		return ArticleRef{}, fmt.Errorf("article title is empty")
	}
	if strings.HasPrefix(raw, "http://") || strings.HasPrefix(raw, "https://") {
		locator, err := NormalizeURL(raw)
		if err != nil {
			return ArticleRef{}, err
		}
		return NewArticleRef(locator), nil
	}
	if base == "" {
		base = DefaultBaseURL
	}
	name := titleEscaper.Replace(strings.ReplaceAll(raw, " ", "_"))
	locator, err := NormalizeURL(strings.TrimRight(base, "/") + ArticlePathPrefix + name)
	if err != nil {
		return ArticleRef{}, err
	}
	return ArticleRef{Locator: locator, Title: raw}, nil
}
