package scraper

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConvert_ContentRegionPriority(t *testing.T) {
	html := `<html><head><title>Site - Page</title></head><body>
<h1>Lärmschutzverordnung</h1>
<div class="sidebar">navigation junk</div>
<div class="document-content">
<h2>§ 1 Zweck</h2>
<p>Diese Verordnung regelt den Schutz vor Lärm.</p>
</div>
</body></html>`

	c := NewConverter()
	result, err := c.Convert([]byte(html), "https://example.com/doc")
	require.NoError(t, err)

	assert.Equal(t, "Lärmschutzverordnung", result.Title)
	assert.Contains(t, result.Markdown, "Diese Verordnung regelt den Schutz vor Lärm.")
	assert.NotContains(t, result.Markdown, "navigation junk")
}

func TestConvert_ArticleFallback(t *testing.T) {
	html := `<html><body>
<nav>menu</nav>
<article><p>Body text of the statute.</p></article>
</body></html>`

	c := NewConverter()
	result, err := c.Convert([]byte(html), "https://example.com/doc")
	require.NoError(t, err)

	assert.Contains(t, result.Markdown, "Body text of the statute.")
	assert.NotContains(t, result.Markdown, "menu")
}

func TestConvert_WholeBodyStripsChrome(t *testing.T) {
	html := `<html><body>
<nav><a href="/">home</a></nav>
<script>alert("x")</script>
<div class="breadcrumb">you are here</div>
<p>Actual paragraph content survives.</p>
<footer>imprint</footer>
</body></html>`

	c := NewConverter()
	result, err := c.Convert([]byte(html), "https://example.com/doc")
	require.NoError(t, err)

	assert.Contains(t, result.Markdown, "Actual paragraph content survives.")
	assert.NotContains(t, result.Markdown, "alert")
	assert.NotContains(t, result.Markdown, "you are here")
	assert.NotContains(t, result.Markdown, "imprint")
}

func TestConvert_TitlePreference(t *testing.T) {
	c := NewConverter()

	// h1 beats title
	withH1 := `<html><head><title>page title</title></head><body><h1>Heading One</h1><p>x</p></body></html>`
	result, err := c.Convert([]byte(withH1), "https://example.com/a")
	require.NoError(t, err)
	assert.Equal(t, "Heading One", result.Title)

	// h2 beats title when no h1
	withH2 := `<html><head><title>page title</title></head><body><h2>Heading Two</h2><p>x</p></body></html>`
	result, err = c.Convert([]byte(withH2), "https://example.com/b")
	require.NoError(t, err)
	assert.Equal(t, "Heading Two", result.Title)

	// title as last resort
	titleOnly := `<html><head><title>Just The Title</title></head><body><p>x</p></body></html>`
	result, err = c.Convert([]byte(titleOnly), "https://example.com/c")
	require.NoError(t, err)
	assert.Equal(t, "Just The Title", result.Title)
}

func TestCleanMarkdown(t *testing.T) {
	messy := "# Title\n\n\n\n\n\nBody   \nline two\t\n"
	cleaned := cleanMarkdown(messy)

	assert.NotContains(t, cleaned, "\n\n\n\n")
	assert.NotContains(t, cleaned, "Body   \n")
	assert.Contains(t, cleaned, "# Title")
}

func TestExtractMarkdownTitle(t *testing.T) {
	assert.Equal(t, "Heading", extractMarkdownTitle("text\n# Heading\nmore"))
	assert.Equal(t, "", extractMarkdownTitle("no heading here"))
}
