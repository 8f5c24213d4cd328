package docchunker

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/c360studio/lexingest/source/chunker"
	"github.com/c360studio/lexingest/storage"
)

// Handler chunks a stored document and persists the result.
type Handler struct {
	store           *storage.Store
	chunker         *chunker.Chunker
	defaultStrategy string
	logger          *slog.Logger
}

// NewHandler creates a chunking handler. Returns an error for invalid
// chunker configuration.
func NewHandler(store *storage.Store, cfg chunker.Config, defaultStrategy string, logger *slog.Logger) (*Handler, error) {
	ch, err := chunker.New(cfg)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		store:           store,
		chunker:         ch,
		defaultStrategy: defaultStrategy,
		logger:          logger,
	}, nil
}

// ChunkDocument loads a document, splits it with the given strategy
// (falling back to the handler default), stores the chunks, and marks
// the document processed. The run is recorded as a processing job.
func (h *Handler) ChunkDocument(ctx context.Context, docID, strategy string) (*storage.ProcessingJob, error) {
	if strategy == "" {
		strategy = h.defaultStrategy
	}

	job := storage.NewProcessingJob(docID, strategy)
	if err := h.store.SaveProcessingJob(ctx, job); err != nil {
		return nil, fmt.Errorf("save processing job: %w", err)
	}

	count, err := h.chunkAndStore(ctx, docID, strategy)
	if err != nil {
		job.Fail(err)
		if saveErr := h.store.SaveProcessingJob(ctx, job); saveErr != nil {
			h.logger.Error("Failed to record failed processing job", "job_id", job.ID, "error", saveErr)
		}
		return job, err
	}

	job.Complete(count)
	if err := h.store.SaveProcessingJob(ctx, job); err != nil {
		return job, fmt.Errorf("save processing job: %w", err)
	}

	h.logger.Info("Document chunked",
		"document_id", docID,
		"strategy", strategy,
		"chunks", count)

	return job, nil
}

// chunkAndStore performs the load, split, persist, mark sequence.
func (h *Handler) chunkAndStore(ctx context.Context, docID, strategy string) (int, error) {
	doc, err := h.store.GetDocument(ctx, docID)
	if err != nil {
		return 0, fmt.Errorf("load document: %w", err)
	}

	chunks := h.chunker.ChunkDocument(doc.Content, docID, strategy)
	if len(chunks) == 0 {
		// Empty content produces no chunks; the document is still
		// marked processed so it leaves the backlog.
		h.logger.Warn("Document produced no chunks", "document_id", docID)
	}

	count, err := h.store.InsertChunks(ctx, docID, chunks)
	if err != nil {
		return count, fmt.Errorf("insert chunks: %w", err)
	}

	if err := h.store.MarkProcessed(ctx, docID); err != nil {
		return count, fmt.Errorf("mark processed: %w", err)
	}

	return count, nil
}
