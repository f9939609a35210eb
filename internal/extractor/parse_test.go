package extractor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/wikipath-crawler/internal/crawler"
)

const startLocator = "https://en.wikipedia.org/wiki/Start"

func article(title, content string) []byte {
	return []byte(`<!DOCTYPE html><html><body>` +
		`<h1 id="firstHeading"><span class="mw-page-title-main">` + title + `</span></h1>` +
		`<div id="mw-content-text">` + content + `</div>` +
		`</body></html>`)
}

func lead(inner string) string {
	return `<div class="mw-parser-output">` + inner + `</div>`
}

func TestParseSkipsParentheticalLink(t *testing.T) {
	t.Parallel()
	body := article("A thing", lead(
		`<p>A thing (see <a href="/wiki/B">B</a>) relates to <a href="/wiki/C">C</a>.</p>`,
	))

	res, err := Parse(startLocator, body)
	require.NoError(t, err)
	require.Equal(t, "A thing", res.Title)
	require.NotNil(t, res.Next)
	require.Equal(t, "https://en.wikipedia.org/wiki/C", res.Next.Locator)
	require.Equal(t, "C", res.Next.Title)
	require.Equal(t, StageParagraph, res.Stage)
}

func TestParseCountsSingleStringElements(t *testing.T) {
	t.Parallel()
	body := article("Go", lead(
		`<p><b>Go</b> (<a href="/wiki/Lang">lang</a>) is a <a href="/wiki/Programming_language">programming language</a>.</p>`,
	))

	res, err := Parse(startLocator, body)
	require.NoError(t, err)
	require.NotNil(t, res.Next)
	require.Equal(t, "https://en.wikipedia.org/wiki/Programming_language", res.Next.Locator)
	require.Equal(t, "Programming language", res.Next.Title)
}

func TestParseIgnoresMultiChildSiblings(t *testing.T) {
	t.Parallel()
	// The span has several children so its parenthesis is not counted.
	body := article("X", lead(
		`<p>Word <span>(<i>x</i>, y</span> <a href="/wiki/D">D</a></p>`,
	))

	res, err := Parse(startLocator, body)
	require.NoError(t, err)
	require.NotNil(t, res.Next)
	require.Equal(t, "https://en.wikipedia.org/wiki/D", res.Next.Locator)
}

func TestParseFallsBackToListItems(t *testing.T) {
	t.Parallel()
	body := article("Index", lead(
		`<p>See <a href="/wiki/File:Map.png">map</a> and <a href="/wiki/Help:Contents">help</a>.</p>`+
			`<ul><li><a href="/wiki/L">L</a></li></ul>`,
	))

	res, err := Parse(startLocator, body)
	require.NoError(t, err)
	require.NotNil(t, res.Next)
	require.Equal(t, "https://en.wikipedia.org/wiki/L", res.Next.Locator)
	require.Equal(t, StageList, res.Stage)
}

func TestParseFallsBackToAnyParagraph(t *testing.T) {
	t.Parallel()
	body := article("Boxed", lead(
		`<table class="infobox"><tr><td><p><a href="/wiki/Inside">inside</a></p></td></tr></table>`+
			`<p>No links here.</p>`,
	))

	res, err := Parse(startLocator, body)
	require.NoError(t, err)
	require.NotNil(t, res.Next)
	require.Equal(t, "https://en.wikipedia.org/wiki/Inside", res.Next.Locator)
	require.Equal(t, StageAnyParagraph, res.Stage)
}

func TestParseSkipsChromeParagraphs(t *testing.T) {
	t.Parallel()
	body := article("Plain",
		`<div class="hatnote"><p><a href="/wiki/Hat">hat</a></p></div>`+
			`<div><p>Body <a href="/wiki/Real">real</a></p></div>`,
	)

	res, err := Parse(startLocator, body)
	require.NoError(t, err)
	require.NotNil(t, res.Next)
	require.Equal(t, "https://en.wikipedia.org/wiki/Real", res.Next.Locator)
	require.Equal(t, StageParagraph, res.Stage)
}

func TestParseNoLink(t *testing.T) {
	t.Parallel()
	body := article("Stub", lead(`<p>Nothing to follow.</p>`))

	res, err := Parse(startLocator, body)
	require.NoError(t, err)
	require.Nil(t, res.Next)
	require.Equal(t, StageNone, res.Stage)
	require.Equal(t, "Stub", res.Title)
}

func TestParseTitleFallsBackToLocator(t *testing.T) {
	t.Parallel()
	body := []byte(`<html><body><div id="mw-content-text">` + lead(`<p><a href="/wiki/Next">n</a></p>`) + `</div></body></html>`)

	res, err := Parse("https://en.wikipedia.org/wiki/Caf%C3%A9_society", body)
	require.NoError(t, err)
	require.Equal(t, "Café society", res.Title)
}

func TestParseMissingContent(t *testing.T) {
	t.Parallel()
	body := []byte(`<html><body><h1 id="firstHeading">Broken</h1></body></html>`)

	res, err := Parse(startLocator, body)
	require.ErrorIs(t, err, crawler.ErrNoContent)
	require.Equal(t, "Broken", res.Title)
	require.Nil(t, res.Next)
}

func TestParseIsIdempotent(t *testing.T) {
	t.Parallel()
	body := article("A thing", lead(
		`<p>A thing (see <a href="/wiki/B">B</a>) relates to <a href="/wiki/C">C</a>.</p>`,
	))

	first, err := Parse(startLocator, body)
	require.NoError(t, err)
	second, err := Parse(startLocator, body)
	require.NoError(t, err)
	require.Equal(t, first, second)
}

func TestIsArticleLink(t *testing.T) {
	t.Parallel()
	cases := map[string]bool{
		"/wiki/Philosophy":                  true,
		"/wiki/Go_(programming_language)":   true,
		"/wiki/Star_Wars:_Episode_IV":       true,
		"/wiki/File:Map.png":                false,
		"/wiki/Wikipedia:About":             false,
		"/wiki/Help:Contents":               false,
		"/wiki/Template:Infobox":            false,
		"/wiki/Category:Philosophy":         false,
		"/wiki/Portal:Science":              false,
		"/wiki/Talk:Philosophy":             false,
		"/wiki/Special:Random":              false,
		"/wiki/Philosophy#History":          false,
		"/wiki/Mercury_(disambiguation)":    false,
		"/w/index.php?title=Philosophy":     false,
		"https://en.wikipedia.org/wiki/Foo": false,
		"#cite_note-1":                      false,
	}
	for href, want := range cases {
		assert.Equal(t, want, IsArticleLink(href), href)
	}
}
