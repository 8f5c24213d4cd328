package docchunker

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMessage_StoredEvent(t *testing.T) {
	data := []byte(`{"document_id":"doc.example-com-page","url":"https://example.com/page","job_id":"abc"}`)

	docID, strategy, err := parseMessage("docs.stored.doc.example-com-page", data)
	require.NoError(t, err)
	assert.Equal(t, "doc.example-com-page", docID)
	// Stored events carry no strategy; the handler default applies.
	assert.Equal(t, "", strategy)
}

func TestParseMessage_ChunkRequest(t *testing.T) {
	data := []byte(`{"document_id":"doc.example-com-page","strategy":"paragraphs"}`)

	docID, strategy, err := parseMessage("docs.chunk.request", data)
	require.NoError(t, err)
	assert.Equal(t, "doc.example-com-page", docID)
	assert.Equal(t, "paragraphs", strategy)
}

func TestParseMessage_MissingDocumentID(t *testing.T) {
	_, _, err := parseMessage("docs.stored.x", []byte(`{"url":"https://example.com"}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "document_id")

	_, _, err = parseMessage("docs.chunk.request", []byte(`{"strategy":"words"}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "document_id")
}

func TestParseMessage_MalformedPayload(t *testing.T) {
	_, _, err := parseMessage("docs.stored.x", []byte(`not json`))
	assert.Error(t, err)

	_, _, err = parseMessage("docs.chunk.request", []byte(`{`))
	assert.Error(t, err)
}

func TestParseMessage_UnexpectedSubject(t *testing.T) {
	_, _, err := parseMessage("docs.deleted.x", []byte(`{}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unexpected subject")
}
