package scraper

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const indexPage = `<html><body>
<nav><a href="/help">Help pages</a></nav>
<ul>
  <li><a href="/bsbe/document/abg">Abgeordnetenhausgesetz</a></li>
  <li><a href="/bsbe/document/aso">Allgemeines Sicherheits- und Ordnungsgesetz</a></li>
  <li><a href="/bsbe/document/azv">Arbeitszeitverordnung</a></li>
  <li><a href="/bsbe/document/bau">Bauordnung</a></li>
  <li><a href="/bsbe/document/abg#fragment">Abgeordnetenhausgesetz</a></li>
  <li><a href="/bsbe/search?page=2">A</a></li>
  <li><a href="/bsbe/browse/all">Alle anzeigen (browse)</a></li>
</ul>
</body></html>`

func TestDiscoverLinks_LetterFilter(t *testing.T) {
	links, err := DiscoverLinks([]byte(indexPage), "https://gesetze.berlin.de/bsbe/search?letter=A", LinkFilter{
		Letter:      "A",
		MinTitleLen: 3,
	})
	require.NoError(t, err)

	// "Bauordnung" fails the letter filter, "A" is too short, the
	// browse link is navigation, and the fragment duplicate collapses.
	require.Len(t, links, 3)
	assert.Equal(t, "Abgeordnetenhausgesetz", links[0].Title)
	assert.Equal(t, "https://gesetze.berlin.de/bsbe/document/abg", links[0].URL)
	assert.Equal(t, "https://gesetze.berlin.de/bsbe/document/aso", links[1].URL)
	assert.Equal(t, "https://gesetze.berlin.de/bsbe/document/azv", links[2].URL)
}

func TestDiscoverLinks_NoLetterAcceptsAll(t *testing.T) {
	links, err := DiscoverLinks([]byte(indexPage), "https://gesetze.berlin.de/", LinkFilter{
		MinTitleLen: 3,
	})
	require.NoError(t, err)

	titles := make([]string, 0, len(links))
	for _, l := range links {
		titles = append(titles, l.Title)
	}
	assert.Contains(t, titles, "Bauordnung")
	assert.NotContains(t, titles, "Help pages")
	assert.NotContains(t, titles, "Alle anzeigen (browse)")
}

func TestDiscoverLinks_NavigationFilterUsesURL(t *testing.T) {
	// A navigation URL with a plausible document title must be dropped,
	// while a document whose title happens to contain a nav keyword must
	// survive as long as its URL is clean.
	page := `<html><body>
<a href="/bsbe/browse?id=7">Abgabengesetz Berlin</a>
<a href="/bsbe/document/imv">Indexmietenverordnung</a>
</body></html>`

	links, err := DiscoverLinks([]byte(page), "https://gesetze.berlin.de/", LinkFilter{
		MinTitleLen: 3,
	})
	require.NoError(t, err)

	require.Len(t, links, 1)
	assert.Equal(t, "Indexmietenverordnung", links[0].Title)
	assert.Equal(t, "https://gesetze.berlin.de/bsbe/document/imv", links[0].URL)
}

func TestDiscoverLinks_CaseInsensitiveLetter(t *testing.T) {
	page := `<a href="/doc/1">ärztekammergesetz</a>`
	links, err := DiscoverLinks([]byte(page), "https://example.com/", LinkFilter{
		Letter:      "Ä",
		MinTitleLen: 3,
	})
	require.NoError(t, err)
	require.Len(t, links, 1)
}

func TestDiscoverLinks_AllowPatterns(t *testing.T) {
	links, err := DiscoverLinks([]byte(indexPage), "https://gesetze.berlin.de/", LinkFilter{
		MinTitleLen:   3,
		AllowPatterns: []string{"bsbe/document/*"},
	})
	require.NoError(t, err)

	require.NotEmpty(t, links)
	for _, l := range links {
		assert.Contains(t, l.URL, "/bsbe/document/")
	}
}

func TestDiscoverLinks_EmptyPage(t *testing.T) {
	links, err := DiscoverLinks([]byte("<html><body></body></html>"), "https://example.com/", LinkFilter{})
	require.NoError(t, err)
	assert.Empty(t, links)
}
