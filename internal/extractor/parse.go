package extractor

import (
	"bytes"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/JakeFAU/wikipath-crawler/internal/crawler"
)

// Stage names the step of the fallback cascade that produced a link.
type Stage string

// Cascade stages in the order they are tried.
const (
	StageNone         Stage = "none"
	StageParagraph    Stage = "paragraph"
	StageList         Stage = "list"
	StageAnyParagraph Stage = "any_paragraph"
)

const (
	titleSelector     = "h1#firstHeading"
	contentSelector   = "div#mw-content-text"
	leadSelector      = "div.mw-parser-output > p"
	listItemSelector  = "div.mw-parser-output > ul > li, div.mw-parser-output > ol > li"
	paragraphSelector = "p"
	anchorSelector    = "a[href]"
)

var skippedAncestorClasses = map[string]struct{}{
	"infobox":         {},
	"sidebar":         {},
	"metadata":        {},
	"navbox":          {},
	"vertical-navbox": {},
	"hatnote":         {},
}

var excludedNamespaces = []string{
	"File:", "Wikipedia:", "Help:", "Template:",
	"Category:", "Portal:", "Talk:", "Special:",
}

// Result is the outcome of parsing one article body.
type Result struct {
	Title string
	Next  *crawler.ArticleRef
	Stage Stage
}

// Parse extracts the display title and first qualifying link from an article
// body. It has no side effects: the same input always yields the same Result.
// A body without the primary content container yields crawler.ErrNoContent.
func Parse(locator string, body []byte) (Result, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return Result{}, fmt.Errorf("parse article markup: %w", err)
	}

	res := Result{Title: pageTitle(doc, locator), Stage: StageNone}

	content := doc.Find(contentSelector).First()
	if content.Length() == 0 {
		return res, fmt.Errorf("%s: %w", locator, crawler.ErrNoContent)
	}

	base, err := url.Parse(locator)
	if err != nil {
		return res, fmt.Errorf("parse locator: %w", err)
	}

	href, stage := firstLink(content)
	if stage == StageNone {
		return res, nil
	}
	next, err := crawler.ResolveHref(base, href)
	if err != nil {
		return res, fmt.Errorf("resolve %q: %w", href, err)
	}
	ref := crawler.NewArticleRef(next)
	res.Next = &ref
	res.Stage = stage
	return res, nil
}

func pageTitle(doc *goquery.Document, locator string) string {
	if title := strings.TrimSpace(doc.Find(titleSelector).First().Text()); title != "" {
		return title
	}
	return crawler.TitleFromLocator(locator)
}

// firstLink runs the fallback cascade over the content container.
func firstLink(content *goquery.Selection) (string, Stage) {
	for _, p := range leadParagraphs(content).EachIter() {
		if strings.TrimSpace(p.Text()) == "" || insideChrome(p) {
			continue
		}
		for _, a := range p.Find(anchorSelector).EachIter() {
			href := a.AttrOr("href", "")
			if !IsArticleLink(href) {
				continue
			}
			if insideParentheses(a.Get(0)) {
				continue
			}
			return href, StageParagraph
		}
	}

	if href, ok := firstValidAnchor(content.Find(listItemSelector)); ok {
		return href, StageList
	}
	if href, ok := firstValidAnchor(content.Find(paragraphSelector)); ok {
		return href, StageAnyParagraph
	}
	return "", StageNone
}

// leadParagraphs prefers parser-output paragraphs, then direct children of the
// container, then any paragraph at all.
func leadParagraphs(content *goquery.Selection) *goquery.Selection {
	if ps := content.Find(leadSelector); ps.Length() > 0 {
		return ps
	}
	if ps := content.ChildrenFiltered(paragraphSelector); ps.Length() > 0 {
		return ps
	}
	return content.Find(paragraphSelector)
}

func firstValidAnchor(blocks *goquery.Selection) (string, bool) {
	for _, block := range blocks.EachIter() {
		for _, a := range block.Find(anchorSelector).EachIter() {
			if href := a.AttrOr("href", ""); IsArticleLink(href) {
				return href, true
			}
		}
	}
	return "", false
}

// insideChrome reports whether any ancestor carries an infobox, sidebar or
// similar non-lead class.
func insideChrome(s *goquery.Selection) bool {
	for n := s.Get(0).Parent; n != nil; n = n.Parent {
		if n.Type != html.ElementNode {
			continue
		}
		for _, attr := range n.Attr {
			if attr.Key != "class" {
				continue
			}
			for _, class := range strings.Fields(attr.Val) {
				if _, ok := skippedAncestorClasses[class]; ok {
					return true
				}
			}
		}
	}
	return false
}

// IsArticleLink reports whether href targets an article-namespace page.
func IsArticleLink(href string) bool {
	if !strings.HasPrefix(href, crawler.ArticlePathPrefix) {
		return false
	}
	if strings.Contains(href, ":") {
		for _, ns := range excludedNamespaces {
			if strings.Contains(href, ns) {
				return false
			}
		}
	}
	return !strings.Contains(href, "#") && !strings.Contains(href, "(disambiguation)")
}

// insideParentheses scans the anchor's preceding siblings and reports whether
// more parentheses were opened than closed. Only text that collapses to a
// single string is counted, so markup nested more than one branch deep is
// invisible to the scan. This is a textual approximation of nesting.
func insideParentheses(anchor *html.Node) bool {
	var open, closed int
	for sib := anchor.PrevSibling; sib != nil; sib = sib.PrevSibling {
		text, ok := singleString(sib)
		if !ok {
			continue
		}
		open += strings.Count(text, "(")
		closed += strings.Count(text, ")")
	}
	return open > closed
}

// singleString returns the text a node reduces to when it is a text node or an
// element whose only descendants form a single-child chain ending in text.
func singleString(n *html.Node) (string, bool) {
	switch n.Type {
	case html.TextNode, html.CommentNode:
		return n.Data, n.Data != ""
	case html.ElementNode:
		if n.FirstChild != nil && n.FirstChild == n.LastChild {
			return singleString(n.FirstChild)
		}
	}
	return "", false
}
