package crawlingester

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/c360studio/semstreams/natsclient"

	"github.com/c360studio/lexingest/scraper"
	"github.com/c360studio/lexingest/source"
	"github.com/c360studio/lexingest/storage"
)

// docStoredSubjectPrefix is the subject prefix for stored document events.
const docStoredSubjectPrefix = "docs.stored."

// Handler executes crawl requests: it runs the crawl, persists the
// results with dedup, publishes stored-document events, and records
// the run as a crawl job.
type Handler struct {
	config     Config
	store      *storage.Store
	natsClient *natsclient.Client
	logger     *slog.Logger
}

// NewHandler creates a crawl request handler.
func NewHandler(config Config, store *storage.Store, nc *natsclient.Client, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		config:     config,
		store:      store,
		natsClient: nc,
		logger:     logger,
	}
}

// HandleCrawl runs one crawl request end to end. Per-document failures
// are absorbed into the job's statistics; the returned error covers only
// request-level problems (cancellation, job persistence).
func (h *Handler) HandleCrawl(ctx context.Context, req source.CrawlRequest) (*storage.CrawlJob, error) {
	if len(req.Letters) == 0 {
		return nil, fmt.Errorf("crawl request has no letters")
	}

	job := storage.NewCrawlJob(req.Letters, req.MaxPerLetter, req.RequestedBy)
	if req.JobID != "" {
		job.ID = req.JobID
	}
	if err := h.store.SaveCrawlJob(ctx, job); err != nil {
		return nil, fmt.Errorf("save crawl job: %w", err)
	}

	// Statistics are scoped to one run, so the fetch pipeline is built
	// fresh per request.
	fetcher := scraper.NewFetcher(h.config.FetchConfig(), source.NewCrawlStats(), h.logger)
	crawler := scraper.NewCrawler(fetcher, scraper.NewConverter(), h.config.CrawlConfig(), h.logger)

	docs, err := crawler.Crawl(ctx, req.Letters, req.MaxPerLetter)
	if err != nil {
		job.Fail(err)
		if saveErr := h.store.SaveCrawlJob(ctx, job); saveErr != nil {
			h.logger.Error("Failed to record failed crawl job", "job_id", job.ID, "error", saveErr)
		}
		return job, err
	}

	saveStats := h.saveAndPublish(ctx, docs, job.ID)

	job.Complete(crawler.Stats().Snapshot(), saveStats)
	if err := h.store.SaveCrawlJob(ctx, job); err != nil {
		return job, fmt.Errorf("save crawl job: %w", err)
	}

	h.logger.Info("Crawl job completed",
		"job_id", job.ID,
		"saved", saveStats.Saved,
		"duplicates", saveStats.Duplicates,
		"errors", saveStats.Errors)

	return job, nil
}

// saveAndPublish persists each document independently and publishes a
// stored event for every fresh insert. Duplicates and per-document
// errors only affect counters.
func (h *Handler) saveAndPublish(ctx context.Context, docs []source.RawDocument, jobID string) source.BatchSaveStats {
	var stats source.BatchSaveStats

	for _, raw := range docs {
		id, created, err := h.store.SaveDocument(ctx, raw)
		if err != nil {
			stats.Errors++
			h.logger.Warn("Failed to save document", "url", raw.URL, "error", err)
			continue
		}
		if !created {
			stats.Duplicates++
			h.logger.Debug("Duplicate document", "id", id, "url", raw.URL)
			continue
		}

		stats.Saved++
		if err := h.publishStored(ctx, id, raw.URL, jobID); err != nil {
			h.logger.Warn("Failed to publish stored event", "id", id, "error", err)
		}
	}

	return stats
}

// publishStored emits a DocumentStoredEvent for downstream chunking.
func (h *Handler) publishStored(ctx context.Context, docID, url, jobID string) error {
	event := source.DocumentStoredEvent{
		DocumentID: docID,
		URL:        url,
		JobID:      jobID,
		StoredAt:   time.Now().UTC(),
	}
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal stored event: %w", err)
	}
	return h.natsClient.PublishToStream(ctx, docStoredSubjectPrefix+docID, data)
}
