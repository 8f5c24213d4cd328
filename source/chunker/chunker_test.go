package chunker

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// words builds a space-joined sequence w1..wN.
func words(n int) string {
	parts := make([]string, n)
	for i := range parts {
		parts[i] = fmt.Sprintf("w%d", i+1)
	}
	return strings.Join(parts, " ")
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr bool
	}{
		{
			name:    "valid defaults",
			config:  DefaultConfig(),
			wantErr: false,
		},
		{
			name:    "zero chunk size",
			config:  Config{ChunkSize: 0, ChunkOverlap: 0, MinChunkSize: 1},
			wantErr: true,
		},
		{
			name:    "negative overlap",
			config:  Config{ChunkSize: 10, ChunkOverlap: -1, MinChunkSize: 2},
			wantErr: true,
		},
		{
			name:    "overlap equals chunk size",
			config:  Config{ChunkSize: 10, ChunkOverlap: 10, MinChunkSize: 2},
			wantErr: true,
		},
		{
			name:    "min exceeds chunk size",
			config:  Config{ChunkSize: 10, ChunkOverlap: 3, MinChunkSize: 11},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestNew_InvalidConfigFailsFast(t *testing.T) {
	_, err := New(Config{ChunkSize: 10, ChunkOverlap: 15, MinChunkSize: 2})
	require.Error(t, err)

	assert.Panics(t, func() {
		MustNew(Config{ChunkSize: 10, ChunkOverlap: 15, MinChunkSize: 2})
	})
}

func TestCleanText_Idempotent(t *testing.T) {
	inputs := []string{
		"hello   world",
		"a\r\nb\rc",
		"line one  \n\n\n\n  line two",
		"  \t mixed \t whitespace \n  here  ",
		"",
		"already clean",
	}

	for _, input := range inputs {
		once := CleanText(input)
		twice := CleanText(once)
		assert.Equal(t, once, twice, "CleanText should be idempotent for %q", input)
	}
}

func TestCleanText_Normalization(t *testing.T) {
	assert.Equal(t, "a b", CleanText("a   \t b"))
	assert.Equal(t, "a\nb", CleanText("a  \n  b"))
	assert.Equal(t, "a\n\nb", CleanText("a\n\n\n\n\nb"))
	assert.Equal(t, "a\nb", CleanText("a\r\nb"))
}

func TestChunkByWords_EmptyInput(t *testing.T) {
	c := NewDefault()

	assert.Empty(t, c.ChunkByWords("", "doc.test"))
	assert.Empty(t, c.ChunkByWords("   \n\t  ", "doc.test"))
}

func TestChunkByWords_SmallDocumentShortCircuit(t *testing.T) {
	c := MustNew(Config{ChunkSize: 500, ChunkOverlap: 50, MinChunkSize: 100})

	text := words(300)
	chunks := c.ChunkByWords(text, "doc.test")

	require.Len(t, chunks, 1)
	assert.Equal(t, 0, chunks[0].ChunkIndex)
	assert.True(t, chunks[0].Metadata.IsComplete)
	assert.Equal(t, 300, chunks[0].Metadata.WordCount)
	assert.Equal(t, 300, chunks[0].Metadata.TotalWords)
	assert.Equal(t, 0, chunks[0].Metadata.StartPosition)
	assert.Equal(t, 300, chunks[0].Metadata.EndPosition)
	assert.Equal(t, "doc.test", chunks[0].Metadata.DocumentID)
}

func TestChunkByWords_OverlapPositions(t *testing.T) {
	c := MustNew(Config{ChunkSize: 10, ChunkOverlap: 3, MinChunkSize: 2})

	chunks := c.ChunkByWords(words(25), "doc.test")

	// Step is 7, so windows start at 0, 7, 14, 21 with the last end
	// clamped to 25.
	require.Len(t, chunks, 4)
	starts := []int{0, 7, 14, 21}
	for i, chunk := range chunks {
		assert.Equal(t, starts[i], chunk.Metadata.StartPosition)
		assert.Equal(t, 25, chunk.Metadata.TotalWords)
	}
	assert.Equal(t, 25, chunks[3].Metadata.EndPosition)
	assert.Equal(t, 4, chunks[3].Metadata.WordCount)
}

func TestChunkByWords_IndexContiguity(t *testing.T) {
	c := MustNew(Config{ChunkSize: 10, ChunkOverlap: 3, MinChunkSize: 2})

	for _, n := range []int{1, 9, 10, 11, 25, 100, 137} {
		chunks := c.ChunkByWords(words(n), "doc.test")
		require.NotEmpty(t, chunks, "n=%d", n)
		for i, chunk := range chunks {
			assert.Equal(t, i, chunk.ChunkIndex, "n=%d", n)
		}
	}
}

func TestChunkByWords_Coverage(t *testing.T) {
	cfg := Config{ChunkSize: 10, ChunkOverlap: 3, MinChunkSize: 2}
	c := MustNew(cfg)

	text := words(47)
	chunks := c.ChunkByWords(text, "doc.test")
	require.NotEmpty(t, chunks)

	// Dropping each window's overlap-duplicated leading words and
	// concatenating reconstructs the normalized input.
	var rebuilt []string
	prevEnd := 0
	for _, chunk := range chunks {
		ws := strings.Fields(chunk.Text)
		skip := prevEnd - chunk.Metadata.StartPosition
		require.GreaterOrEqual(t, skip, 0)
		rebuilt = append(rebuilt, ws[skip:]...)
		prevEnd = chunk.Metadata.EndPosition
	}
	assert.Equal(t, CleanText(text), strings.Join(rebuilt, " "))
}

func TestChunkByWords_WordCountMatchesText(t *testing.T) {
	c := MustNew(Config{ChunkSize: 20, ChunkOverlap: 5, MinChunkSize: 4})

	chunks := c.ChunkByWords(words(63), "doc.test")
	require.NotEmpty(t, chunks)

	for _, chunk := range chunks {
		assert.Equal(t, chunk.Metadata.WordCount, len(strings.Fields(chunk.Text)))
		assert.Equal(t, chunk.Metadata.EndPosition-chunk.Metadata.StartPosition, chunk.Metadata.WordCount)
	}
}

func TestChunkDocument_StrategyDispatch(t *testing.T) {
	c := NewDefault()
	text := "para one here.\n\npara two here."

	byWords := c.ChunkDocument(text, "doc.test", StrategyWords)
	byParas := c.ChunkDocument(text, "doc.test", StrategyParagraphs)
	fallback := c.ChunkDocument(text, "doc.test", "bogus")

	require.Len(t, byParas, 1)
	assert.Equal(t, 2, byParas[0].Metadata.ParagraphCount)

	// Unknown strategies fall back to words.
	require.Len(t, byWords, 1)
	assert.Equal(t, byWords[0].Text, fallback[0].Text)
	assert.True(t, fallback[0].Metadata.IsComplete)
}

func TestChunkByParagraphs_EmptyInput(t *testing.T) {
	c := NewDefault()

	assert.Empty(t, c.ChunkByParagraphs("", "doc.test"))
	assert.Empty(t, c.ChunkByParagraphs("\n\n\n", "doc.test"))
}

func TestChunkByParagraphs_GroupsUnderLimit(t *testing.T) {
	c := MustNew(Config{ChunkSize: 10, ChunkOverlap: 3, MinChunkSize: 2})

	// Paragraphs of 4 words each; three fit within 10 words two at a time.
	text := "a b c d\n\ne f g h\n\ni j k l"
	chunks := c.ChunkByParagraphs(text, "doc.test")

	require.Len(t, chunks, 2)
	assert.Equal(t, 0, chunks[0].ChunkIndex)
	assert.Equal(t, 2, chunks[0].Metadata.ParagraphCount)
	assert.Equal(t, 8, chunks[0].Metadata.WordCount)
	assert.Equal(t, 1, chunks[1].ChunkIndex)
	assert.Equal(t, 1, chunks[1].Metadata.ParagraphCount)
	assert.Equal(t, 4, chunks[1].Metadata.WordCount)
	assert.Contains(t, chunks[0].Text, "\n\n")
}

func TestChunkByParagraphs_OversizedParagraphRenumbered(t *testing.T) {
	c := MustNew(Config{ChunkSize: 10, ChunkOverlap: 3, MinChunkSize: 2})

	text := "a b c\n\n" + words(25) + "\n\nx y z"
	chunks := c.ChunkByParagraphs(text, "doc.test")

	// Leading paragraph, four word-windows from the oversized paragraph,
	// then the trailing paragraph. Indices stay contiguous throughout.
	require.Len(t, chunks, 6)
	for i, chunk := range chunks {
		assert.Equal(t, i, chunk.ChunkIndex)
	}
	assert.Equal(t, 1, chunks[0].Metadata.ParagraphCount)
	assert.Equal(t, 25, chunks[1].Metadata.TotalWords)
	assert.Equal(t, 1, chunks[5].Metadata.ParagraphCount)
}
