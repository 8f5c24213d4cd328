package storage

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/c360studio/lexingest/source"
)

func TestURLIndexKey(t *testing.T) {
	key := urlIndexKey("https://gesetze.berlin.de/bsbe/document/abc?x=1")

	// Raw URLs contain characters KV keys forbid; the key carries a
	// fixed-length digest instead.
	assert.True(t, strings.HasPrefix(key, urlIndexPrefix))
	assert.Len(t, key, len(urlIndexPrefix)+16)
	assert.NotContains(t, key, "/")
	assert.NotContains(t, key, ":")

	// Deterministic, and distinct URLs get distinct keys.
	assert.Equal(t, key, urlIndexKey("https://gesetze.berlin.de/bsbe/document/abc?x=1"))
	assert.NotEqual(t, key, urlIndexKey("https://gesetze.berlin.de/bsbe/document/xyz"))
}

func TestHashIndexKey(t *testing.T) {
	hash := source.ContentHash("some document body")
	key := hashIndexKey(hash)

	assert.Equal(t, hashIndexPrefix+hash, key)
}

func TestChunkKey(t *testing.T) {
	// Zero padding keeps lexicographic key order equal to chunk order.
	assert.Equal(t, "doc.example-com-page.000000", chunkKey("doc.example-com-page", 0))
	assert.Equal(t, "doc.example-com-page.000042", chunkKey("doc.example-com-page", 42))
	assert.Less(t, chunkKey("doc.x", 9), chunkKey("doc.x", 10))
	assert.Less(t, chunkKey("doc.x", 99), chunkKey("doc.x", 100))
}
