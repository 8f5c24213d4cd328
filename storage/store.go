// Package storage persists documents, chunks, and jobs in NATS JetStream
// KV buckets. Each Put/Get is atomic at single-call granularity; callers
// get explicit errors, never silent no-ops.
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/c360studio/semstreams/natsclient"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/c360studio/lexingest/source"
	"github.com/c360studio/lexingest/source/weburl"
)

// KV bucket names.
const (
	DocumentsBucket = "LEX_DOCUMENTS"
	ChunksBucket    = "LEX_CHUNKS"
	JobsBucket      = "LEX_JOBS"
)

// Index key prefixes inside the documents bucket. Document records live
// under their "doc.<slug>" ID; index entries map URL and content-hash
// digests back to that ID.
const (
	urlIndexPrefix  = "url."
	hashIndexPrefix = "hash."
)

// Store is the storage handle for the ingestion pipeline. It is created
// once at process start and passed to every component that needs it.
type Store struct {
	documents jetstream.KeyValue
	chunks    jetstream.KeyValue
	jobs      jetstream.KeyValue
	logger    *slog.Logger
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithLogger sets the logger for the store.
func WithLogger(logger *slog.Logger) StoreOption {
	return func(s *Store) {
		s.logger = logger
	}
}

// NewStore creates the storage handle, provisioning the KV buckets.
// The context is used for bucket creation only.
func NewStore(ctx context.Context, nc *natsclient.Client, opts ...StoreOption) (*Store, error) {
	if nc == nil {
		return nil, fmt.Errorf("NATS client required")
	}

	s := &Store{
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}

	js, err := nc.JetStream()
	if err != nil {
		return nil, fmt.Errorf("get jetstream: %w", err)
	}

	// CreateOrUpdateKeyValue is idempotent and handles race conditions
	s.documents, err = js.CreateOrUpdateKeyValue(ctx, jetstream.KeyValueConfig{
		Bucket:      DocumentsBucket,
		Description: "Ingested legal documents with URL and content-hash indexes",
	})
	if err != nil {
		return nil, fmt.Errorf("create/update documents bucket: %w", err)
	}

	s.chunks, err = js.CreateOrUpdateKeyValue(ctx, jetstream.KeyValueConfig{
		Bucket:      ChunksBucket,
		Description: "Text chunks derived from ingested documents",
	})
	if err != nil {
		return nil, fmt.Errorf("create/update chunks bucket: %w", err)
	}

	s.jobs, err = js.CreateOrUpdateKeyValue(ctx, jetstream.KeyValueConfig{
		Bucket:      JobsBucket,
		Description: "Crawl and processing job records",
	})
	if err != nil {
		return nil, fmt.Errorf("create/update jobs bucket: %w", err)
	}

	return s, nil
}

// urlIndexKey derives the index key for a URL. URLs contain characters
// KV keys forbid, so the key carries a digest of the URL instead.
func urlIndexKey(rawURL string) string {
	return urlIndexPrefix + source.ContentHash(rawURL)[:16]
}

// hashIndexKey derives the index key for a content hash.
func hashIndexKey(contentHash string) string {
	return hashIndexPrefix + contentHash
}

// FindByURLOrHash looks up a stored document by URL or content hash.
// Either match counts: the document is the same if its address or its
// content has been seen. Returns ErrNotFound when neither matches.
func (s *Store) FindByURLOrHash(ctx context.Context, rawURL, contentHash string) (*source.Document, error) {
	for _, key := range []string{urlIndexKey(rawURL), hashIndexKey(contentHash)} {
		entry, err := s.documents.Get(ctx, key)
		if err != nil {
			if errors.Is(err, jetstream.ErrKeyNotFound) {
				continue
			}
			return nil, fmt.Errorf("lookup index %s: %w", key, err)
		}
		return s.GetDocument(ctx, string(entry.Value()))
	}
	return nil, ErrNotFound
}

// GetDocument retrieves a document by its ID.
func (s *Store) GetDocument(ctx context.Context, docID string) (*source.Document, error) {
	entry, err := s.documents.Get(ctx, docID)
	if err != nil {
		if errors.Is(err, jetstream.ErrKeyNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get document: %w", err)
	}

	var doc source.Document
	if err := json.Unmarshal(entry.Value(), &doc); err != nil {
		return nil, fmt.Errorf("unmarshal document: %w", err)
	}
	return &doc, nil
}

// SaveDocument persists a raw document unless its URL or content hash is
// already stored. A duplicate is not an error: the existing ID comes back
// with created=false, an insert comes back with created=true.
func (s *Store) SaveDocument(ctx context.Context, raw source.RawDocument) (id string, created bool, err error) {
	existing, err := s.FindByURLOrHash(ctx, raw.URL, raw.ContentHash)
	if err == nil {
		return existing.ID, false, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return "", false, err
	}

	now := time.Now().UTC()
	doc := source.Document{
		ID:          weburl.GenerateDocID(raw.URL),
		Title:       raw.Title,
		URL:         raw.URL,
		DocType:     raw.DocType,
		Content:     raw.Content,
		ContentHash: raw.ContentHash,
		ScrapedAt:   raw.ScrapedAt,
		CreatedAt:   now,
	}

	data, err := json.Marshal(doc)
	if err != nil {
		return "", false, fmt.Errorf("marshal document: %w", err)
	}

	if _, err := s.documents.Put(ctx, doc.ID, data); err != nil {
		return "", false, fmt.Errorf("put document: %w", err)
	}

	// Index writes after the record write: a crash in between leaves an
	// unindexed document, which a re-crawl resolves to a fresh insert
	// under the same deterministic ID.
	if _, err := s.documents.Put(ctx, urlIndexKey(raw.URL), []byte(doc.ID)); err != nil {
		return "", false, fmt.Errorf("put url index: %w", err)
	}
	if _, err := s.documents.Put(ctx, hashIndexKey(raw.ContentHash), []byte(doc.ID)); err != nil {
		return "", false, fmt.Errorf("put hash index: %w", err)
	}

	return doc.ID, true, nil
}

// SaveBatch persists a batch of raw documents. Each document is saved
// independently: duplicates resolve to their existing record, and a
// persistence error for one document is logged and counted without
// aborting the rest.
func (s *Store) SaveBatch(ctx context.Context, docs []source.RawDocument) source.BatchSaveStats {
	var stats source.BatchSaveStats

	for _, raw := range docs {
		id, created, err := s.SaveDocument(ctx, raw)
		if err != nil {
			stats.Errors++
			s.logger.Warn("Failed to save document", "url", raw.URL, "error", err)
			continue
		}
		if created {
			stats.Saved++
			s.logger.Debug("Document saved", "id", id, "url", raw.URL)
		} else {
			stats.Duplicates++
			s.logger.Debug("Duplicate document", "id", id, "url", raw.URL)
		}
	}

	return stats
}

// chunkKey builds the chunk record key. The zero-padded index keeps
// lexicographic key order equal to chunk order.
func chunkKey(docID string, index int) string {
	return fmt.Sprintf("%s.%06d", docID, index)
}

// InsertChunks stores a document's chunks, replacing any previous set.
// The old set is deleted first so a re-chunk that produces fewer chunks
// leaves no stale records behind. Returns the number of chunks written.
func (s *Store) InsertChunks(ctx context.Context, docID string, chunks []source.TextChunk) (int, error) {
	if !weburl.ValidateDocID(docID) {
		return 0, fmt.Errorf("invalid document ID: %s", docID)
	}

	if err := s.deleteChunks(ctx, docID); err != nil {
		return 0, err
	}

	for i, chunk := range chunks {
		chunk.Metadata.DocumentID = docID
		data, err := json.Marshal(chunk)
		if err != nil {
			return i, fmt.Errorf("marshal chunk %d: %w", chunk.ChunkIndex, err)
		}
		if _, err := s.chunks.Put(ctx, chunkKey(docID, chunk.ChunkIndex), data); err != nil {
			return i, fmt.Errorf("put chunk %d: %w", chunk.ChunkIndex, err)
		}
	}

	return len(chunks), nil
}

// deleteChunks removes every stored chunk of a document.
func (s *Store) deleteChunks(ctx context.Context, docID string) error {
	keys, err := s.chunks.Keys(ctx)
	if err != nil {
		if errors.Is(err, jetstream.ErrNoKeysFound) {
			return nil
		}
		return fmt.Errorf("list chunk keys: %w", err)
	}

	prefix := docID + "."
	for _, key := range keys {
		if !strings.HasPrefix(key, prefix) {
			continue
		}
		if err := s.chunks.Delete(ctx, key); err != nil && !errors.Is(err, jetstream.ErrKeyNotFound) {
			return fmt.Errorf("delete chunk %s: %w", key, err)
		}
	}
	return nil
}

// ChunksFor retrieves all chunks of a document in index order.
func (s *Store) ChunksFor(ctx context.Context, docID string) ([]source.TextChunk, error) {
	keys, err := s.chunks.Keys(ctx)
	if err != nil {
		if errors.Is(err, jetstream.ErrNoKeysFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("list chunk keys: %w", err)
	}

	prefix := docID + "."
	var chunks []source.TextChunk

	for _, key := range keys {
		if !strings.HasPrefix(key, prefix) {
			continue
		}
		entry, err := s.chunks.Get(ctx, key)
		if err != nil {
			// ErrKeyDeleted is expected during concurrent access
			if !errors.Is(err, jetstream.ErrKeyDeleted) && !errors.Is(err, jetstream.ErrKeyNotFound) {
				s.logger.Warn("Failed to get chunk", "key", key, "error", err)
			}
			continue
		}

		var chunk source.TextChunk
		if err := json.Unmarshal(entry.Value(), &chunk); err != nil {
			s.logger.Warn("Failed to unmarshal chunk", "key", key, "error", err)
			continue
		}
		chunks = append(chunks, chunk)
	}

	sort.Slice(chunks, func(i, j int) bool {
		return chunks[i].ChunkIndex < chunks[j].ChunkIndex
	})
	return chunks, nil
}

// MarkProcessed flags a document as chunked.
func (s *Store) MarkProcessed(ctx context.Context, docID string) error {
	doc, err := s.GetDocument(ctx, docID)
	if err != nil {
		return err
	}

	doc.Processed = true
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal document: %w", err)
	}
	if _, err := s.documents.Put(ctx, docID, data); err != nil {
		return fmt.Errorf("put document: %w", err)
	}
	return nil
}

// CountDocuments returns the number of stored documents.
func (s *Store) CountDocuments(ctx context.Context) (int, error) {
	keys, err := s.documents.Keys(ctx)
	if err != nil {
		if errors.Is(err, jetstream.ErrNoKeysFound) {
			return 0, nil
		}
		return 0, fmt.Errorf("list document keys: %w", err)
	}

	count := 0
	for _, key := range keys {
		if strings.HasPrefix(key, "doc.") {
			count++
		}
	}
	return count, nil
}

// CountChunks returns the number of stored chunks across all documents.
func (s *Store) CountChunks(ctx context.Context) (int, error) {
	keys, err := s.chunks.Keys(ctx)
	if err != nil {
		if errors.Is(err, jetstream.ErrNoKeysFound) {
			return 0, nil
		}
		return 0, fmt.Errorf("list chunk keys: %w", err)
	}
	return len(keys), nil
}

// RecentDocuments returns up to limit documents, newest first.
func (s *Store) RecentDocuments(ctx context.Context, limit int) ([]source.Document, error) {
	docs, err := s.listDocuments(ctx)
	if err != nil {
		return nil, err
	}

	sort.Slice(docs, func(i, j int) bool {
		return docs[i].CreatedAt.After(docs[j].CreatedAt)
	})
	if limit > 0 && len(docs) > limit {
		docs = docs[:limit]
	}
	return docs, nil
}

// UnprocessedDocuments returns up to limit documents that have not been
// chunked yet, oldest first so backlog drains in arrival order.
func (s *Store) UnprocessedDocuments(ctx context.Context, limit int) ([]source.Document, error) {
	docs, err := s.listDocuments(ctx)
	if err != nil {
		return nil, err
	}

	var pending []source.Document
	for _, doc := range docs {
		if !doc.Processed {
			pending = append(pending, doc)
		}
	}

	sort.Slice(pending, func(i, j int) bool {
		return pending[i].CreatedAt.Before(pending[j].CreatedAt)
	})
	if limit > 0 && len(pending) > limit {
		pending = pending[:limit]
	}
	return pending, nil
}

// listDocuments loads every document record, skipping index entries.
func (s *Store) listDocuments(ctx context.Context) ([]source.Document, error) {
	keys, err := s.documents.Keys(ctx)
	if err != nil {
		if errors.Is(err, jetstream.ErrNoKeysFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("list document keys: %w", err)
	}

	var docs []source.Document
	for _, key := range keys {
		if !strings.HasPrefix(key, "doc.") {
			continue
		}
		entry, err := s.documents.Get(ctx, key)
		if err != nil {
			if !errors.Is(err, jetstream.ErrKeyDeleted) && !errors.Is(err, jetstream.ErrKeyNotFound) {
				s.logger.Warn("Failed to get document", "key", key, "error", err)
			}
			continue
		}

		var doc source.Document
		if err := json.Unmarshal(entry.Value(), &doc); err != nil {
			s.logger.Warn("Failed to unmarshal document", "key", key, "error", err)
			continue
		}
		docs = append(docs, doc)
	}
	return docs, nil
}
