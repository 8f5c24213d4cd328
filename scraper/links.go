package scraper

import (
	"bytes"
	"fmt"
	"net/url"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/bmatcuk/doublestar/v4"

	"github.com/c360studio/lexingest/source/weburl"
)

// navKeywords mark navigation chrome URLs on index pages. They are
// matched against the link URL, not its text, so a document title like
// "Indexmietenverordnung" is not a false positive.
var navKeywords = []string{"browse", "search", "help", "index"}

// LinkFilter narrows which anchors on an index page count as document
// candidates.
type LinkFilter struct {
	// Letter restricts candidates to titles starting with this letter,
	// case-insensitively. Empty accepts any title.
	Letter string

	// MinTitleLen drops short link texts that are almost always
	// pagination or chrome. Zero means no minimum.
	MinTitleLen int

	// AllowPatterns are doublestar globs matched against the URL path.
	// Empty means any path is allowed.
	AllowPatterns []string
}

// DocumentLink is a candidate document discovered on an index page.
type DocumentLink struct {
	Title string
	URL   string
}

// DiscoverLinks extracts candidate document links from an index page.
// Hrefs are resolved against baseURL and canonicalized; anchors whose
// text is too short or fails the letter filter, and URLs that look like
// navigation, are dropped. Duplicate URLs keep only their first
// occurrence.
func DiscoverLinks(body []byte, baseURL string, filter LinkFilter) ([]DocumentLink, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse index page: %w", err)
	}

	var links []DocumentLink
	seen := make(map[string]bool)

	doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		href, ok := sel.Attr("href")
		if !ok || href == "" {
			return
		}

		title := strings.TrimSpace(sel.Text())
		if !filter.acceptTitle(title) {
			return
		}

		canonical, err := weburl.Canonicalize(baseURL, href)
		if err != nil {
			return
		}
		if !filter.acceptURL(canonical) {
			return
		}
		if seen[canonical] {
			return
		}
		seen[canonical] = true

		links = append(links, DocumentLink{Title: title, URL: canonical})
	})

	return links, nil
}

// acceptTitle applies the letter and length filters to the link text.
func (f LinkFilter) acceptTitle(title string) bool {
	if title == "" {
		return false
	}
	if f.MinTitleLen > 0 && utf8.RuneCountInString(title) <= f.MinTitleLen {
		return false
	}

	if f.Letter != "" {
		first, _ := utf8.DecodeRuneInString(title)
		want, _ := utf8.DecodeRuneInString(f.Letter)
		if unicode.ToLower(first) != unicode.ToLower(want) {
			return false
		}
	}

	return true
}

// acceptURL applies the navigation blocklist and the allow globs to
// the canonicalized URL.
func (f LinkFilter) acceptURL(rawURL string) bool {
	lower := strings.ToLower(rawURL)
	for _, kw := range navKeywords {
		if strings.Contains(lower, kw) {
			return false
		}
	}

	if len(f.AllowPatterns) == 0 {
		return true
	}

	parsed, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	path := strings.TrimPrefix(parsed.Path, "/")

	for _, pattern := range f.AllowPatterns {
		if ok, err := doublestar.Match(pattern, path); err == nil && ok {
			return true
		}
	}
	return false
}
