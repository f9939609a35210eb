package crawler

import (
	"encoding/json"
	"strings"
)

// Path is a sealed, non-empty, ordered sequence of articles. Consecutive
// elements are joined by a first-link edge. A Path is immutable; accessors
// hand out copies.
type Path struct {
	articles []ArticleRef
}

// Len returns the number of articles in the path.
func (p Path) Len() int {
	return len(p.articles)
}

// Steps returns the number of edges followed.
func (p Path) Steps() int {
	if len(p.articles) == 0 {
		return 0
	}
	return len(p.articles) - 1
}

// IsZero reports whether the path was never built.
func (p Path) IsZero() bool {
	return len(p.articles) == 0
}

// At returns the i-th article.
func (p Path) At(i int) ArticleRef {
	return p.articles[i]
}

// Start returns the first article.
func (p Path) Start() ArticleRef {
	if len(p.articles) == 0 {
		return ArticleRef{}
	}
	return p.articles[0]
}

// End returns the last article.
func (p Path) End() ArticleRef {
	if len(p.articles) == 0 {
		return ArticleRef{}
	}
	return p.articles[len(p.articles)-1]
}

// Articles returns a copy of the path's articles.
func (p Path) Articles() []ArticleRef {
	return append([]ArticleRef(nil), p.articles...)
}

// Locators returns the locator of each article in order.
func (p Path) Locators() []string {
	out := make([]string, len(p.articles))
	for i, a := range p.articles {
		out[i] = a.Locator
	}
	return out
}

// Titles returns the display title of each article in order.
func (p Path) Titles() []string {
	out := make([]string, len(p.articles))
	for i, a := range p.articles {
		out[i] = a.DisplayTitle()
	}
	return out
}

// SeenTitles returns every title under which the path's articles may have been
// recorded: the resolved title and the locator-derived one, de-duplicated.
func (p Path) SeenTitles() []string {
	seen := make(map[string]struct{}, len(p.articles)*2)
	out := make([]string, 0, len(p.articles)*2)
	add := func(t string) {
		if t == "" {
			return
		}
		if _, ok := seen[t]; ok {
			return
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	for _, a := range p.articles {
		add(a.Title)
		add(TitleFromLocator(a.Locator))
	}
	return out
}

// IndexOf returns the position of the first article with locator, or -1.
func (p Path) IndexOf(locator string) int {
	return indexOf(p.articles, locator)
}

func (p Path) String() string {
	return strings.Join(p.Titles(), " -> ")
}

// MarshalJSON renders the path as its article list.
func (p Path) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.articles)
}

// PathBuilder grows a path one article at a time until it is sealed.
type PathBuilder struct {
	articles []ArticleRef
	sealed   bool
}

// NewPathBuilder starts a path at start.
func NewPathBuilder(start ArticleRef) *PathBuilder {
	return &PathBuilder{articles: []ArticleRef{start}}
}

// Append adds next to the tail. It panics once the builder is sealed.
func (b *PathBuilder) Append(next ArticleRef) {
	b.mustBeOpen()
	b.articles = append(b.articles, next)
}

// SetTitle records the resolved title of the article at i.
func (b *PathBuilder) SetTitle(i int, title string) {
	b.mustBeOpen()
	b.articles[i].Title = title
}

// Tail returns the last article.
func (b *PathBuilder) Tail() ArticleRef {
	return b.articles[len(b.articles)-1]
}

// Len returns the current number of articles.
func (b *PathBuilder) Len() int {
	return len(b.articles)
}

// Steps returns the number of edges followed so far.
func (b *PathBuilder) Steps() int {
	return len(b.articles) - 1
}

// IndexOf returns the position of the first article with locator, or -1.
func (b *PathBuilder) IndexOf(locator string) int {
	return indexOf(b.articles, locator)
}

// Slice returns a copy of articles[from:].
func (b *PathBuilder) Slice(from int) []ArticleRef {
	return append([]ArticleRef(nil), b.articles[from:]...)
}

// Seal freezes the builder and returns the immutable Path.
func (b *PathBuilder) Seal() Path {
	b.mustBeOpen()
	b.sealed = true
	return Path{articles: append([]ArticleRef(nil), b.articles...)}
}

func (b *PathBuilder) mustBeOpen() {
	if b.sealed {
		panic("crawler: path builder used after Seal")
	}
}

// PathOf builds a sealed path from articles; mainly for tests and stores
// rehydrating rows.
func PathOf(articles ...ArticleRef) Path {
	return Path{articles: append([]ArticleRef(nil), articles...)}
}

func indexOf(articles []ArticleRef, locator string) int {
	for i, a := range articles {
		if a.Locator == locator {
			return i
		}
	}
	return -1
}
