// Package chunker splits document text into bounded, overlapping word
// windows for retrieval indexing.
package chunker

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/c360studio/lexingest/source"
)

// Chunking strategy names accepted by ChunkDocument.
const (
	StrategyWords      = "words"
	StrategyParagraphs = "paragraphs"
)

// Pre-compiled normalization regexes.
var (
	hspaceRe    = regexp.MustCompile(`[ \t]+`)
	lineEdgeRe  = regexp.MustCompile(` *\n *`)
	blankRunsRe = regexp.MustCompile(`\n{3,}`)
)

// Config holds chunking configuration. All sizes are in words.
type Config struct {
	// ChunkSize is the target window size.
	ChunkSize int

	// ChunkOverlap is the number of words shared between consecutive windows.
	ChunkOverlap int

	// MinChunkSize is the smallest window emitted mid-document; undersized
	// intermediate windows fold into the following one.
	MinChunkSize int
}

// DefaultConfig returns sensible chunking defaults.
func DefaultConfig() Config {
	return Config{
		ChunkSize:    500,
		ChunkOverlap: 50,
		MinChunkSize: 100,
	}
}

// Validate checks if the configuration is valid.
func (c Config) Validate() error {
	if c.ChunkSize <= 0 {
		return fmt.Errorf("ChunkSize must be positive, got %d", c.ChunkSize)
	}
	if c.ChunkOverlap < 0 {
		return fmt.Errorf("ChunkOverlap must be non-negative, got %d", c.ChunkOverlap)
	}
	if c.ChunkOverlap >= c.ChunkSize {
		return fmt.Errorf("ChunkOverlap (%d) must be less than ChunkSize (%d)", c.ChunkOverlap, c.ChunkSize)
	}
	if c.MinChunkSize <= 0 {
		return fmt.Errorf("MinChunkSize must be positive, got %d", c.MinChunkSize)
	}
	if c.MinChunkSize > c.ChunkSize {
		return fmt.Errorf("MinChunkSize (%d) must not exceed ChunkSize (%d)", c.MinChunkSize, c.ChunkSize)
	}
	return nil
}

// Chunker splits documents into chunks.
type Chunker struct {
	config Config
}

// New creates a new Chunker with the given configuration.
// Returns an error if the configuration is invalid.
func New(cfg Config) (*Chunker, error) {
	if cfg.ChunkSize == 0 {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Chunker{config: cfg}, nil
}

// MustNew creates a new Chunker, panicking on invalid config.
// Use for known-good configurations.
func MustNew(cfg Config) *Chunker {
	c, err := New(cfg)
	if err != nil {
		panic(err)
	}
	return c
}

// NewDefault creates a Chunker with default configuration.
func NewDefault() *Chunker {
	return MustNew(DefaultConfig())
}

// CleanText normalizes whitespace: runs of spaces and tabs collapse to a
// single space, blank-line runs collapse to one blank line, and the result
// is trimmed. Idempotent, so stored and re-chunked text normalizes the same.
func CleanText(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	text = hspaceRe.ReplaceAllString(text, " ")
	text = lineEdgeRe.ReplaceAllString(text, "\n")
	text = blankRunsRe.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}

// ChunkDocument splits text using the named strategy.
// Unknown strategy names fall back to the word-window strategy.
func (c *Chunker) ChunkDocument(text, docID, strategy string) []source.TextChunk {
	if strategy == StrategyParagraphs {
		return c.ChunkByParagraphs(text, docID)
	}
	return c.ChunkByWords(text, docID)
}

// ChunkByWords splits text into overlapping word windows.
//
// Documents at or below ChunkSize words come back as a single complete
// chunk. Larger documents are windowed with a step of ChunkSize−ChunkOverlap;
// an undersized window that is not the final one folds into the next window
// instead of being emitted. Empty or whitespace-only text yields no chunks.
func (c *Chunker) ChunkByWords(text, docID string) []source.TextChunk {
	cleaned := CleanText(text)
	words := strings.Fields(cleaned)

	if len(words) == 0 {
		return nil
	}

	if len(words) <= c.config.ChunkSize {
		return []source.TextChunk{{
			Text:       cleaned,
			ChunkIndex: 0,
			Metadata: source.ChunkMetadata{
				WordCount:     len(words),
				DocumentID:    docID,
				StartPosition: 0,
				EndPosition:   len(words),
				TotalWords:    len(words),
				IsComplete:    true,
			},
		}}
	}

	var chunks []source.TextChunk
	step := c.config.ChunkSize - c.config.ChunkOverlap
	start := 0
	index := 0

	for start < len(words) {
		end := start + c.config.ChunkSize
		if end > len(words) {
			end = len(words)
		}
		window := words[start:end]

		// Fold an undersized intermediate window into the next one.
		// Skipped windows advance the cursor but consume no index.
		if len(window) < c.config.MinChunkSize && start+c.config.ChunkSize < len(words) {
			start += step
			continue
		}

		chunks = append(chunks, source.TextChunk{
			Text:       strings.Join(window, " "),
			ChunkIndex: index,
			Metadata: source.ChunkMetadata{
				WordCount:     len(window),
				DocumentID:    docID,
				StartPosition: start,
				EndPosition:   end,
				TotalWords:    len(words),
			},
		})
		index++
		start += step
	}

	return chunks
}

// ChunkByParagraphs groups whole paragraphs into chunks of at most
// ChunkSize words. A single paragraph exceeding ChunkSize is windowed by
// ChunkByWords on its own, with the sub-chunks renumbered to continue the
// running index. Empty or whitespace-only text yields no chunks.
func (c *Chunker) ChunkByParagraphs(text, docID string) []source.TextChunk {
	cleaned := CleanText(text)
	if cleaned == "" {
		return nil
	}

	paragraphs := strings.Split(cleaned, "\n\n")

	var chunks []source.TextChunk
	var buffer []string
	bufferWords := 0
	index := 0

	flush := func() {
		if len(buffer) == 0 {
			return
		}
		chunks = append(chunks, source.TextChunk{
			Text:       strings.Join(buffer, "\n\n"),
			ChunkIndex: index,
			Metadata: source.ChunkMetadata{
				WordCount:      bufferWords,
				DocumentID:     docID,
				ParagraphCount: len(buffer),
			},
		})
		index++
		buffer = nil
		bufferWords = 0
	}

	for _, para := range paragraphs {
		paraWords := len(strings.Fields(para))
		if paraWords == 0 {
			continue
		}

		// A single oversized paragraph is windowed on its own.
		if paraWords > c.config.ChunkSize {
			flush()
			for _, sub := range c.ChunkByWords(para, docID) {
				sub.ChunkIndex = index
				chunks = append(chunks, sub)
				index++
			}
			continue
		}

		if bufferWords+paraWords <= c.config.ChunkSize {
			buffer = append(buffer, para)
			bufferWords += paraWords
			continue
		}

		flush()
		buffer = []string{para}
		bufferWords = paraWords
	}

	flush()
	return chunks
}
