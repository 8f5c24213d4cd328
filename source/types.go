// Package source provides the core types for legal-document ingestion.
package source

import (
	"strings"
	"time"
)

// DocType classifies a legal document.
type DocType string

// Document type values.
const (
	DocTypeLaw       DocType = "law"
	DocTypeOrdinance DocType = "ordinance"
	DocTypeUnknown   DocType = "unknown"
)

// ClassifyDocType derives a document type from its title.
// The source publishes German legal texts, so both German and English
// markers are recognized.
func ClassifyDocType(title string) DocType {
	lower := strings.ToLower(title)
	switch {
	case strings.Contains(lower, "verordnung") || strings.Contains(lower, "ordinance"):
		return DocTypeOrdinance
	case strings.Contains(lower, "gesetz") || strings.Contains(lower, "law"):
		return DocTypeLaw
	default:
		return DocTypeUnknown
	}
}

// RawDocument is a fetched, normalized page before persistence.
// ContentHash is always the digest of exactly the Content field.
type RawDocument struct {
	// Title is the extracted document title.
	Title string `json:"title"`

	// URL is the canonical absolute document URL.
	URL string `json:"url"`

	// Content is the normalized markdown text.
	Content string `json:"content"`

	// ContentHash is the lowercase hex SHA-256 digest of Content.
	ContentHash string `json:"content_hash"`

	// DocType classifies the document.
	DocType DocType `json:"doc_type"`

	// ScrapedAt is when the page was fetched.
	ScrapedAt time.Time `json:"scraped_at"`
}

// Document is a persisted document record.
type Document struct {
	// ID is the storage identifier.
	ID string `json:"id"`

	// Title is the document title.
	Title string `json:"title"`

	// URL is the canonical document URL.
	URL string `json:"url"`

	// DocType classifies the document.
	DocType DocType `json:"doc_type"`

	// Content is the normalized markdown text.
	Content string `json:"content"`

	// ContentHash is the lowercase hex SHA-256 digest of Content.
	ContentHash string `json:"content_hash"`

	// Processed indicates the document has been chunked.
	Processed bool `json:"processed"`

	// EmbeddingGenerated indicates downstream embedding completion.
	// Embedding itself happens outside this pipeline.
	EmbeddingGenerated bool `json:"embedding_generated"`

	// ScrapedAt is when the page was fetched.
	ScrapedAt time.Time `json:"scraped_at"`

	// CreatedAt is when the record was stored.
	CreatedAt time.Time `json:"created_at"`
}

// ChunkMetadata describes a chunk's position within its document.
// Word-window chunks carry positions; paragraph chunks carry ParagraphCount.
type ChunkMetadata struct {
	// WordCount is the number of words in the chunk text.
	WordCount int `json:"word_count"`

	// DocumentID is the parent document identifier.
	DocumentID string `json:"document_id,omitempty"`

	// StartPosition is the word offset of the window start.
	StartPosition int `json:"start_position"`

	// EndPosition is the exclusive word offset of the window end.
	EndPosition int `json:"end_position"`

	// TotalWords is the word count of the whole document.
	TotalWords int `json:"total_words,omitempty"`

	// ParagraphCount is the number of paragraphs folded into the chunk.
	ParagraphCount int `json:"paragraph_count,omitempty"`

	// IsComplete marks a single chunk covering the entire document.
	IsComplete bool `json:"is_complete,omitempty"`
}

// TextChunk is one bounded text window derived from a document.
type TextChunk struct {
	// Text is the chunk content.
	Text string `json:"text"`

	// ChunkIndex is the 0-based position in emission order,
	// contiguous within one chunking call.
	ChunkIndex int `json:"chunk_index"`

	// Metadata carries word counts and positions.
	Metadata ChunkMetadata `json:"metadata"`
}

// CrawlRequest asks the crawl-ingester to run a crawl.
type CrawlRequest struct {
	// JobID identifies the crawl job record; generated when empty.
	JobID string `json:"job_id,omitempty"`

	// Letters are the alphabetic index partitions to crawl.
	Letters []string `json:"letters"`

	// MaxPerLetter bounds the number of documents fetched per letter.
	MaxPerLetter int `json:"max_per_letter"`

	// RequestedBy identifies the requester for job tracking.
	RequestedBy string `json:"requested_by,omitempty"`
}

// DocumentStoredEvent announces a newly stored document to the chunking stage.
type DocumentStoredEvent struct {
	// DocumentID is the stored document identifier.
	DocumentID string `json:"document_id"`

	// URL is the document URL, for logging.
	URL string `json:"url"`

	// JobID links the event to the originating crawl job, if any.
	JobID string `json:"job_id,omitempty"`

	// StoredAt is when the document was persisted.
	StoredAt time.Time `json:"stored_at"`
}

// ChunkDocumentRequest asks the doc-chunker to process a stored document.
type ChunkDocumentRequest struct {
	// DocumentID is the stored document identifier.
	DocumentID string `json:"document_id"`

	// Strategy selects the chunking strategy ("words" or "paragraphs").
	// Empty uses the component default.
	Strategy string `json:"strategy,omitempty"`

	// JobID links the request to a processing job record, if any.
	JobID string `json:"job_id,omitempty"`
}
