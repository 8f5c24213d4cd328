package scraper

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/JohannesKaufmann/html-to-markdown/plugin"
	"github.com/go-shiori/go-readability"
	"golang.org/x/net/html"
)

// Pre-compiled regexes for HTML cleanup and markdown normalization.
var (
	scriptRe         = regexp.MustCompile(`(?is)<script[^>]*>.*?</script>`)
	styleRe          = regexp.MustCompile(`(?is)<style[^>]*>.*?</style>`)
	excessiveLinesRe = regexp.MustCompile(`\n{4,}`)
)

// contentClasses are candidate content-region class names, in priority
// order, matching the markup of the legal-document source.
var contentClasses = []string{"document-content", "content"}

// strippedTags are removed before falling back to whole-body conversion.
var strippedTags = []string{
	"nav", "header", "footer", "aside", "script", "style", "noscript",
	"iframe", "object", "embed", "form", "input", "button",
}

// strippedClasses are navigation/chrome class names removed before
// whole-body conversion.
var strippedClasses = []string{
	"nav", "navbar", "navigation", "sidebar", "menu", "toc",
	"footer", "header", "breadcrumb", "search",
}

// ConvertResult contains the result of HTML to text conversion.
type ConvertResult struct {
	Title    string
	Markdown string
}

// Converter normalizes fetched legal-document pages to markdown text.
type Converter struct {
	converter *md.Converter
}

// NewConverter creates a new HTML to markdown converter.
func NewConverter() *Converter {
	converter := md.NewConverter("", true, nil)
	converter.Use(plugin.GitHubFlavored())

	return &Converter{
		converter: converter,
	}
}

// Convert transforms an HTML page into title plus normalized markdown.
// It selects the best candidate content region, converts it to markdown,
// and degrades to readability extraction and finally whole-page text
// rather than failing: extraction problems must not abort a crawl.
func (c *Converter) Convert(htmlContent []byte, pageURL string) (*ConvertResult, error) {
	title := extractTitle(htmlContent)

	region := extractContentRegion(htmlContent)

	markdown, err := c.converter.ConvertString(region)
	if err != nil {
		return nil, fmt.Errorf("convert HTML: %w", err)
	}
	markdown = cleanMarkdown(markdown)

	// Thin results usually mean script-built pages; readability can
	// often still pull the article body out.
	if markdown == "" {
		if text, rTitle := readabilityExtract(htmlContent, pageURL); text != "" {
			markdown = cleanMarkdown(text)
			if title == "" {
				title = rTitle
			}
		}
	}

	if title == "" {
		title = extractMarkdownTitle(markdown)
	}

	return &ConvertResult{
		Title:    title,
		Markdown: markdown,
	}, nil
}

// readabilityExtract runs readability article extraction as a fallback.
func readabilityExtract(content []byte, pageURL string) (text, title string) {
	parsedURL, err := url.Parse(pageURL)
	if err != nil {
		parsedURL = &url.URL{}
	}
	article, err := readability.FromReader(strings.NewReader(string(content)), parsedURL)
	if err != nil {
		return "", ""
	}
	return strings.TrimSpace(article.TextContent), article.Title
}

// extractTitle extracts the document title, preferring headings over the
// page <title> since index chrome often pollutes the latter.
func extractTitle(content []byte) string {
	doc, err := html.Parse(strings.NewReader(string(content)))
	if err != nil {
		return ""
	}

	for _, tag := range []string{"h1", "h2", "title"} {
		if node := findElement(doc, tag); node != nil {
			if text := strings.TrimSpace(nodeText(node)); text != "" {
				return text
			}
		}
	}
	return ""
}

// extractContentRegion selects the main content area from HTML.
func extractContentRegion(content []byte) string {
	doc, err := html.Parse(strings.NewReader(string(content)))
	if err != nil {
		// Fall back to basic cleanup if parsing fails
		return basicHTMLCleanup(string(content))
	}

	for _, class := range contentClasses {
		if node := findElementByClass(doc, "div", class); node != nil {
			return renderNode(node)
		}
	}

	for _, tag := range []string{"article", "main"} {
		if node := findElement(doc, tag); node != nil {
			return renderNode(node)
		}
	}

	// No dedicated content region: strip chrome and use the body.
	removeElements(doc, strippedTags)
	removeByClass(doc, strippedClasses)

	if body := findElement(doc, "body"); body != nil {
		return renderNode(body)
	}

	return string(content)
}

// findElement finds the first element with the given tag name.
func findElement(n *html.Node, tag string) *html.Node {
	var result *html.Node
	var find func(*html.Node)
	find = func(node *html.Node) {
		if result != nil {
			return
		}
		if node.Type == html.ElementNode && node.Data == tag {
			result = node
			return
		}
		for c := node.FirstChild; c != nil; c = c.NextSibling {
			find(c)
		}
	}
	find(n)
	return result
}

// findElementByClass finds the first element with the given tag carrying
// the given class.
func findElementByClass(n *html.Node, tag, class string) *html.Node {
	var result *html.Node
	var find func(*html.Node)
	find = func(node *html.Node) {
		if result != nil {
			return
		}
		if node.Type == html.ElementNode && node.Data == tag && hasClass(node, class) {
			result = node
			return
		}
		for c := node.FirstChild; c != nil; c = c.NextSibling {
			find(c)
		}
	}
	find(n)
	return result
}

// hasClass checks whether a node's class attribute contains class.
func hasClass(n *html.Node, class string) bool {
	for _, a := range n.Attr {
		if a.Key == "class" {
			for _, c := range strings.Fields(a.Val) {
				if strings.EqualFold(c, class) {
					return true
				}
			}
		}
	}
	return false
}

// nodeText collects the text content of a node and its children.
func nodeText(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(node *html.Node) {
		if node.Type == html.TextNode {
			sb.WriteString(node.Data)
		}
		for c := node.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return sb.String()
}

// removeElements removes all elements with the given tag names.
func removeElements(n *html.Node, tags []string) {
	tagSet := make(map[string]bool)
	for _, tag := range tags {
		tagSet[tag] = true
	}

	var toRemove []*html.Node
	var collect func(*html.Node)
	collect = func(node *html.Node) {
		if node.Type == html.ElementNode && tagSet[node.Data] {
			toRemove = append(toRemove, node)
			return
		}
		for c := node.FirstChild; c != nil; c = c.NextSibling {
			collect(c)
		}
	}
	collect(n)

	for _, node := range toRemove {
		if node.Parent != nil {
			node.Parent.RemoveChild(node)
		}
	}
}

// removeByClass removes elements that have any of the given class names.
func removeByClass(n *html.Node, classes []string) {
	classSet := make(map[string]bool)
	for _, class := range classes {
		classSet[strings.ToLower(class)] = true
	}

	var toRemove []*html.Node
	var collect func(*html.Node)
	collect = func(node *html.Node) {
		if node.Type == html.ElementNode {
			for _, a := range node.Attr {
				if a.Key == "class" {
					for _, c := range strings.Fields(strings.ToLower(a.Val)) {
						if classSet[c] {
							toRemove = append(toRemove, node)
							return
						}
					}
				}
			}
		}
		for c := node.FirstChild; c != nil; c = c.NextSibling {
			collect(c)
		}
	}
	collect(n)

	for _, node := range toRemove {
		if node.Parent != nil {
			node.Parent.RemoveChild(node)
		}
	}
}

// renderNode renders a node and its children back to an HTML string.
func renderNode(n *html.Node) string {
	var sb strings.Builder
	html.Render(&sb, n)
	return sb.String()
}

// basicHTMLCleanup strips scripts and styles when parsing fails.
func basicHTMLCleanup(content string) string {
	content = scriptRe.ReplaceAllString(content, "")
	content = styleRe.ReplaceAllString(content, "")
	return content
}

// cleanMarkdown cleans up converted markdown.
func cleanMarkdown(content string) string {
	content = excessiveLinesRe.ReplaceAllString(content, "\n\n\n")

	lines := strings.Split(content, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, " \t")
	}
	content = strings.Join(lines, "\n")

	return strings.TrimSpace(content)
}

// extractMarkdownTitle extracts the first H1 heading from markdown.
func extractMarkdownTitle(content string) string {
	for _, line := range strings.Split(content, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "# ") {
			return strings.TrimSpace(trimmed[2:])
		}
	}
	return ""
}
