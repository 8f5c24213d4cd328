// Package scraper implements the fetch pipeline: rate-limited retrieval
// with retry, HTML normalization, link discovery, and crawl orchestration.
package scraper

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/c360studio/lexingest/source"
	"github.com/c360studio/lexingest/source/weburl"
)

// FetchConfig holds fetcher configuration.
type FetchConfig struct {
	// Timeout is the per-request bound.
	Timeout time.Duration

	// Delay is the politeness delay applied after every successful fetch,
	// and the base for exponential backoff.
	Delay time.Duration

	// MaxRetries is the number of retry attempts after the first failure.
	MaxRetries int

	// UserAgent is the User-Agent header for HTTP requests.
	UserAgent string

	// AcceptLanguage is the Accept-Language header; the crawl target
	// serves German legal texts.
	AcceptLanguage string

	// MaxContentSize is the maximum response body size in bytes.
	MaxContentSize int64
}

// DefaultFetchConfig returns polite crawl defaults.
func DefaultFetchConfig() FetchConfig {
	return FetchConfig{
		Timeout:        30 * time.Second,
		Delay:          2 * time.Second,
		MaxRetries:     3,
		UserAgent:      "lexingest/1.0 (legal document indexer)",
		AcceptLanguage: "de-DE,de;q=0.9,en;q=0.5",
		MaxContentSize: 10 * 1024 * 1024,
	}
}

// FetchResult contains a successfully fetched page.
type FetchResult struct {
	Body        []byte
	ContentType string
	StatusCode  int
}

// statusError reports a non-OK HTTP status.
type statusError struct {
	Code int
}

func (e *statusError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.Code, http.StatusText(e.Code))
}

// Fetcher performs rate-limited, retried HTTP GETs and records
// fetch statistics.
type Fetcher struct {
	client *http.Client
	config FetchConfig
	stats  *source.CrawlStats
	logger *slog.Logger

	// validate gates the URL safety check; the local fetcher turns it
	// off so loopback targets work.
	validate bool

	// sleep is swapped out in tests to avoid real backoff waits.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewFetcher creates a fetcher recording into stats.
func NewFetcher(cfg FetchConfig, stats *source.CrawlStats, logger *slog.Logger) *Fetcher {
	if logger == nil {
		logger = slog.Default()
	}
	if stats == nil {
		stats = source.NewCrawlStats()
	}

	dialer := &net.Dialer{
		Timeout:   10 * time.Second,
		KeepAlive: 30 * time.Second,
	}

	// Validate resolved IPs to prevent DNS rebinding: an index page can
	// link to a hostname that resolves into a private range.
	safeDialContext := func(ctx context.Context, network, addr string) (net.Conn, error) {
		host, port, err := net.SplitHostPort(addr)
		if err != nil {
			return nil, fmt.Errorf("invalid address: %w", err)
		}

		ips, err := net.DefaultResolver.LookupIPAddr(ctx, host)
		if err != nil {
			return nil, fmt.Errorf("DNS lookup failed: %w", err)
		}

		for _, ipAddr := range ips {
			if weburl.IsPrivateIP(ipAddr.IP) {
				return nil, fmt.Errorf("connection to private IP %s is not allowed", ipAddr.IP)
			}
		}

		for _, ipAddr := range ips {
			connAddr := net.JoinHostPort(ipAddr.IP.String(), port)
			conn, err := dialer.DialContext(ctx, network, connAddr)
			if err == nil {
				return conn, nil
			}
		}

		return nil, fmt.Errorf("failed to connect to any resolved IP")
	}

	transport := &http.Transport{
		DialContext:           safeDialContext,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: cfg.Timeout,
		MaxIdleConns:          10,
		IdleConnTimeout:       90 * time.Second,
	}

	return &Fetcher{
		client: &http.Client{
			Transport: transport,
			Timeout:   cfg.Timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 5 {
					return fmt.Errorf("too many redirects (max 5)")
				}
				if err := weburl.ValidateURL(req.URL.String()); err != nil {
					return fmt.Errorf("redirect blocked: %w", err)
				}
				return nil
			},
		},
		config:   cfg,
		stats:    stats,
		logger:   logger,
		validate: true,
		sleep:    sleepContext,
	}
}

// NewLocalFetcher creates a fetcher without the private-IP dial guard
// and URL safety check, for tests and local mirrors.
func NewLocalFetcher(cfg FetchConfig, stats *source.CrawlStats, logger *slog.Logger) *Fetcher {
	f := NewFetcher(cfg, stats, logger)
	f.client = &http.Client{Timeout: cfg.Timeout}
	f.validate = false
	return f
}

// Stats returns the statistics accumulator this fetcher records into.
func (f *Fetcher) Stats() *source.CrawlStats {
	return f.stats
}

// Fetch retrieves a URL, retrying transient failures with exponential
// backoff. Wait time before retry n (0-based) is 2^n times the configured
// delay. Every failed attempt counts an error, every wait counts a retry,
// and a success counts a fetched page followed by the politeness delay.
// After MaxRetries are exhausted the last error is returned; the caller
// decides whether to skip or abort.
func (f *Fetcher) Fetch(ctx context.Context, urlStr string) (*FetchResult, error) {
	var lastErr error

	for attempt := 0; attempt <= f.config.MaxRetries; attempt++ {
		if attempt > 0 {
			wait := time.Duration(1<<(attempt-1)) * f.config.Delay
			f.logger.Info("Retrying fetch", "url", urlStr, "attempt", attempt, "wait", wait)
			f.stats.RecordRetry()
			if err := f.sleep(ctx, wait); err != nil {
				return nil, err
			}
		}

		if err := ctx.Err(); err != nil {
			return nil, err
		}

		result, err := f.fetchOnce(ctx, urlStr)
		if err == nil {
			f.stats.RecordPageFetched()
			// Politeness delay throttles the caller's next request.
			if serr := f.sleep(ctx, f.config.Delay); serr != nil {
				return result, nil
			}
			return result, nil
		}

		lastErr = err
		f.stats.RecordError()
		f.logger.Warn("Fetch failed", "url", urlStr, "attempt", attempt, "error", err)

		if !isRetryable(err) {
			break
		}
	}

	return nil, fmt.Errorf("fetch %s: %w", urlStr, lastErr)
}

// fetchOnce performs a single GET with validation, headers, and a
// size-limited body read.
func (f *Fetcher) fetchOnce(ctx context.Context, urlStr string) (*FetchResult, error) {
	if f.validate {
		if err := weburl.ValidateURL(urlStr); err != nil {
			return nil, err
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, urlStr, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("User-Agent", f.config.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", f.config.AcceptLanguage)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &statusError{Code: resp.StatusCode}
	}

	limitReader := io.LimitReader(resp.Body, f.config.MaxContentSize+1)
	body, err := io.ReadAll(limitReader)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	if int64(len(body)) > f.config.MaxContentSize {
		return nil, fmt.Errorf("content too large (exceeds %d bytes)", f.config.MaxContentSize)
	}

	return &FetchResult{
		Body:        body,
		ContentType: resp.Header.Get("Content-Type"),
		StatusCode:  resp.StatusCode,
	}, nil
}

// isRetryable classifies failures: network errors, timeouts, 429, and
// 5xx-class statuses are transient; other statuses and URL validation
// failures are permanent.
func isRetryable(err error) bool {
	var se *statusError
	if errors.As(err, &se) {
		return se.Code == http.StatusTooManyRequests || se.Code >= 500
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var ne net.Error
	if errors.As(err, &ne) {
		return true
	}
	return false
}

// sleepContext sleeps for d unless ctx is cancelled first.
func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
