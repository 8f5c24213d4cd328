package scraper

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/c360studio/lexingest/source"
)

// CrawlConfig holds crawl orchestration configuration.
type CrawlConfig struct {
	// IndexURLTemplate is the per-partition index page URL. A "{letter}"
	// placeholder is replaced with the partition key.
	IndexURLTemplate string

	// MaxPerLetter bounds how many candidates are fetched per partition.
	// Zero means no bound.
	MaxPerLetter int

	// MinTitleLen and AllowPatterns are passed through to link discovery.
	MinTitleLen   int
	AllowPatterns []string
}

// Crawler drives partition-by-partition document collection: it fetches
// each partition's index page, discovers candidate links, and scrapes
// each candidate into a RawDocument. Failures for one candidate or one
// partition are logged and skipped, never aborting the run.
type Crawler struct {
	fetcher   *Fetcher
	converter *Converter
	config    CrawlConfig
	logger    *slog.Logger
}

// NewCrawler creates a crawl orchestrator. The fetcher's statistics
// accumulator collects counters for the whole run.
func NewCrawler(fetcher *Fetcher, converter *Converter, cfg CrawlConfig, logger *slog.Logger) *Crawler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Crawler{
		fetcher:   fetcher,
		converter: converter,
		config:    cfg,
		logger:    logger,
	}
}

// Stats returns the statistics accumulator for this crawler's run.
func (c *Crawler) Stats() *source.CrawlStats {
	return c.fetcher.Stats()
}

// Crawl collects documents for the given partition letters in order.
// Documents keep discovery order within a partition and partition order
// across the call. Per-partition and per-document failures are absorbed;
// the only error returned is context cancellation.
func (c *Crawler) Crawl(ctx context.Context, letters []string, maxPerLetter int) ([]source.RawDocument, error) {
	if maxPerLetter == 0 {
		maxPerLetter = c.config.MaxPerLetter
	}

	var docs []source.RawDocument
	for _, letter := range letters {
		if err := ctx.Err(); err != nil {
			return docs, err
		}

		letterDocs, err := c.crawlLetter(ctx, letter, maxPerLetter)
		if err != nil {
			if ctx.Err() != nil {
				return docs, ctx.Err()
			}
			c.logger.Warn("Partition crawl failed", "letter", letter, "error", err)
			continue
		}
		docs = append(docs, letterDocs...)
	}

	c.logger.Info("Crawl complete",
		"letters", len(letters),
		"documents", len(docs),
		"stats", c.Stats().Snapshot())

	return docs, nil
}

// crawlLetter collects documents for one partition.
func (c *Crawler) crawlLetter(ctx context.Context, letter string, maxPerLetter int) ([]source.RawDocument, error) {
	indexURL := strings.ReplaceAll(c.config.IndexURLTemplate, "{letter}", letter)

	page, err := c.fetcher.Fetch(ctx, indexURL)
	if err != nil {
		return nil, fmt.Errorf("fetch index page: %w", err)
	}

	links, err := DiscoverLinks(page.Body, indexURL, LinkFilter{
		Letter:        letter,
		MinTitleLen:   c.config.MinTitleLen,
		AllowPatterns: c.config.AllowPatterns,
	})
	if err != nil {
		return nil, fmt.Errorf("discover links: %w", err)
	}

	for range links {
		c.Stats().RecordDocumentFound()
	}

	if maxPerLetter > 0 && len(links) > maxPerLetter {
		c.logger.Info("Truncating partition candidates",
			"letter", letter, "found", len(links), "max", maxPerLetter)
		links = links[:maxPerLetter]
	}

	var docs []source.RawDocument
	for _, link := range links {
		if err := ctx.Err(); err != nil {
			return docs, err
		}

		doc, err := c.ScrapeDocument(ctx, link.URL)
		if err != nil {
			c.logger.Warn("Skipping document", "url", link.URL, "error", err)
			continue
		}
		if doc.Title == "" {
			doc.Title = link.Title
		}
		docs = append(docs, *doc)
	}

	c.logger.Info("Partition crawled", "letter", letter, "documents", len(docs))
	return docs, nil
}

// ScrapeDocument fetches one document page and converts it into a
// RawDocument with normalized content, content hash, and document type.
func (c *Crawler) ScrapeDocument(ctx context.Context, pageURL string) (*source.RawDocument, error) {
	page, err := c.fetcher.Fetch(ctx, pageURL)
	if err != nil {
		return nil, err
	}

	result, err := c.converter.Convert(page.Body, pageURL)
	if err != nil {
		return nil, fmt.Errorf("convert page: %w", err)
	}
	if result.Markdown == "" {
		return nil, fmt.Errorf("no content extracted from %s", pageURL)
	}

	return &source.RawDocument{
		Title:       result.Title,
		URL:         pageURL,
		Content:     result.Markdown,
		ContentHash: source.ContentHash(result.Markdown),
		DocType:     source.ClassifyDocType(result.Title),
		ScrapedAt:   time.Now().UTC(),
	}, nil
}
