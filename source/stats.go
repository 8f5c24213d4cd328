package source

import "sync"

// CrawlStats accumulates counters for one crawl run. The fetcher and
// orchestrator mutate it during the run; reporting code reads a Snapshot
// after the run completes. Safe for concurrent use so fetch workers can
// share one instance.
type CrawlStats struct {
	mu             sync.Mutex
	pagesFetched   int
	documentsFound int
	errors         int
	retries        int
}

// NewCrawlStats creates an empty stats accumulator for one run.
func NewCrawlStats() *CrawlStats {
	return &CrawlStats{}
}

// RecordPageFetched counts one successful fetch.
func (s *CrawlStats) RecordPageFetched() {
	s.mu.Lock()
	s.pagesFetched++
	s.mu.Unlock()
}

// RecordDocumentFound counts one discovered candidate document.
func (s *CrawlStats) RecordDocumentFound() {
	s.mu.Lock()
	s.documentsFound++
	s.mu.Unlock()
}

// RecordError counts one failed fetch attempt.
func (s *CrawlStats) RecordError() {
	s.mu.Lock()
	s.errors++
	s.mu.Unlock()
}

// RecordRetry counts one retry wait.
func (s *CrawlStats) RecordRetry() {
	s.mu.Lock()
	s.retries++
	s.mu.Unlock()
}

// CrawlStatsSnapshot is a point-in-time copy of crawl counters.
type CrawlStatsSnapshot struct {
	PagesFetched   int `json:"pages_fetched"`
	DocumentsFound int `json:"documents_found"`
	Errors         int `json:"errors"`
	Retries        int `json:"retries"`

	// SuccessRate is PagesFetched / (PagesFetched + Errors) as a
	// percentage, 0 when nothing was attempted.
	SuccessRate float64 `json:"success_rate"`
}

// Snapshot returns a consistent copy of the counters.
func (s *CrawlStats) Snapshot() CrawlStatsSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := CrawlStatsSnapshot{
		PagesFetched:   s.pagesFetched,
		DocumentsFound: s.documentsFound,
		Errors:         s.errors,
		Retries:        s.retries,
	}
	if total := s.pagesFetched + s.errors; total > 0 {
		snap.SuccessRate = float64(s.pagesFetched) / float64(total) * 100
	}
	return snap
}

// BatchSaveStats aggregates the outcome of one batch save call.
type BatchSaveStats struct {
	// Saved is the number of newly inserted documents.
	Saved int `json:"saved"`

	// Duplicates is the number of documents matching an existing URL or
	// content hash; they resolve to the existing record without insert.
	Duplicates int `json:"duplicates"`

	// Errors is the number of documents whose save failed.
	Errors int `json:"errors"`
}
