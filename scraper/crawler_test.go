package scraper

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360studio/lexingest/source"
)

// newCrawlTestServer serves an index page with n document links for
// letter T plus the linked document pages. Documents listed in broken
// return 500.
func newCrawlTestServer(t *testing.T, n int, broken map[int]bool) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/index/", func(w http.ResponseWriter, r *http.Request) {
		var sb strings.Builder
		sb.WriteString("<html><body><ul>")
		for i := 1; i <= n; i++ {
			fmt.Fprintf(&sb, `<li><a href="/doc/%d">Testgesetz Nummer %d</a></li>`, i, i)
		}
		sb.WriteString("</ul></body></html>")
		_, _ = w.Write([]byte(sb.String()))
	})
	mux.HandleFunc("/doc/", func(w http.ResponseWriter, r *http.Request) {
		var id int
		_, _ = fmt.Sscanf(r.URL.Path, "/doc/%d", &id)
		if broken[id] {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		fmt.Fprintf(w, `<html><body><h1>Testgesetz Nummer %d</h1>
<div class="document-content"><p>Inhalt des Gesetzes Nummer %d.</p></div>
</body></html>`, id, id)
	})

	return httptest.NewServer(mux)
}

// newTestCrawler wires a crawler against a test server with instant sleeps.
func newTestCrawler(srv *httptest.Server, maxPerLetter int) *Crawler {
	cfg := DefaultFetchConfig()
	cfg.MaxRetries = 0
	f, _ := newTestFetcher(cfg)

	return NewCrawler(f, NewConverter(), CrawlConfig{
		IndexURLTemplate: srv.URL + "/index/{letter}",
		MaxPerLetter:     maxPerLetter,
		MinTitleLen:      3,
	}, nil)
}

func TestCrawl_PartitionTruncation(t *testing.T) {
	srv := newCrawlTestServer(t, 20, nil)
	defer srv.Close()

	c := newTestCrawler(srv, 5)
	docs, err := c.Crawl(context.Background(), []string{"T"}, 5)
	require.NoError(t, err)

	// 20 candidates discovered, exactly 5 fetched.
	assert.Len(t, docs, 5)

	snap := c.Stats().Snapshot()
	assert.Equal(t, 20, snap.DocumentsFound)
	// Index page plus 5 document pages.
	assert.Equal(t, 6, snap.PagesFetched)
}

func TestCrawl_DocumentFields(t *testing.T) {
	srv := newCrawlTestServer(t, 2, nil)
	defer srv.Close()

	c := newTestCrawler(srv, 0)
	docs, err := c.Crawl(context.Background(), []string{"T"}, 0)
	require.NoError(t, err)
	require.Len(t, docs, 2)

	doc := docs[0]
	assert.Equal(t, "Testgesetz Nummer 1", doc.Title)
	assert.Equal(t, srv.URL+"/doc/1", doc.URL)
	assert.Contains(t, doc.Content, "Inhalt des Gesetzes Nummer 1.")
	assert.Equal(t, source.ContentHash(doc.Content), doc.ContentHash)
	assert.Equal(t, source.DocTypeLaw, doc.DocType)
	assert.False(t, doc.ScrapedAt.IsZero())
}

func TestCrawl_FailedDocumentSkipped(t *testing.T) {
	srv := newCrawlTestServer(t, 4, map[int]bool{2: true})
	defer srv.Close()

	c := newTestCrawler(srv, 0)
	docs, err := c.Crawl(context.Background(), []string{"T"}, 0)
	require.NoError(t, err)

	// Document 2 fails and is skipped without aborting the partition.
	require.Len(t, docs, 3)
	for _, doc := range docs {
		assert.NotEqual(t, srv.URL+"/doc/2", doc.URL)
	}
	assert.Equal(t, 1, c.Stats().Snapshot().Errors)
}

func TestCrawl_FailedPartitionSkipped(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/index/A", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	mux.HandleFunc("/index/B", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html><body><a href="/doc/1">Bundesgesetz Eins</a></body></html>`))
	})
	mux.HandleFunc("/doc/1", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html><body><h1>Bundesgesetz Eins</h1><article><p>Text.</p></article></body></html>`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := newTestCrawler(srv, 0)
	docs, err := c.Crawl(context.Background(), []string{"A", "B"}, 0)
	require.NoError(t, err)

	// Partition A fails, partition B still contributes.
	require.Len(t, docs, 1)
	assert.Equal(t, "Bundesgesetz Eins", docs[0].Title)
}

func TestCrawl_Cancellation(t *testing.T) {
	srv := newCrawlTestServer(t, 20, nil)
	defer srv.Close()

	c := newTestCrawler(srv, 0)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.Crawl(ctx, []string{"T"}, 0)
	assert.ErrorIs(t, err, context.Canceled)
}
