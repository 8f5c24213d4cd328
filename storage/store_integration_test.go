//go:build integration

package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/c360studio/semstreams/natsclient"

	"github.com/c360studio/lexingest/source"
)

func newIntegrationStore(t *testing.T) (context.Context, *Store) {
	t.Helper()
	tc := natsclient.NewTestClient(t, natsclient.WithJetStream())
	ctx := context.Background()

	store, err := NewStore(ctx, tc.Client)
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	return ctx, store
}

func rawDoc(title, url, content string) source.RawDocument {
	return source.RawDocument{
		Title:       title,
		URL:         url,
		Content:     content,
		ContentHash: source.ContentHash(content),
		DocType:     source.DocTypeLaw,
		ScrapedAt:   time.Now().UTC(),
	}
}

func TestStore_SaveDocument_DedupByURLAndHash(t *testing.T) {
	ctx, store := newIntegrationStore(t)

	id, created, err := store.SaveDocument(ctx, rawDoc(
		"Abgabengesetz", "https://gesetze.berlin.de/bsbe/document/abg", "Inhalt des Abgabengesetzes"))
	if err != nil {
		t.Fatalf("Failed to save document: %v", err)
	}
	if !created {
		t.Fatal("Expected first save to insert")
	}

	// Same URL, different content: the URL index wins.
	dupID, dupCreated, err := store.SaveDocument(ctx, rawDoc(
		"Abgabengesetz (neu)", "https://gesetze.berlin.de/bsbe/document/abg", "Geänderter Inhalt"))
	if err != nil {
		t.Fatalf("Failed to save URL duplicate: %v", err)
	}
	if dupCreated {
		t.Error("Expected URL duplicate to resolve, not insert")
	}
	if dupID != id {
		t.Errorf("Expected duplicate to resolve to %q, got %q", id, dupID)
	}

	// Different URL, same content: the hash index wins.
	dupID, dupCreated, err = store.SaveDocument(ctx, rawDoc(
		"Abgabengesetz (Spiegel)", "https://gesetze.berlin.de/bsbe/mirror/abg", "Inhalt des Abgabengesetzes"))
	if err != nil {
		t.Fatalf("Failed to save content duplicate: %v", err)
	}
	if dupCreated {
		t.Error("Expected content duplicate to resolve, not insert")
	}
	if dupID != id {
		t.Errorf("Expected duplicate to resolve to %q, got %q", id, dupID)
	}

	count, err := store.CountDocuments(ctx)
	if err != nil {
		t.Fatalf("Failed to count documents: %v", err)
	}
	if count != 1 {
		t.Errorf("Expected 1 stored document, got %d", count)
	}
}

func TestStore_FindByURLOrHash(t *testing.T) {
	ctx, store := newIntegrationStore(t)

	raw := rawDoc("Bauordnung", "https://gesetze.berlin.de/bsbe/document/bau", "Inhalt der Bauordnung")
	id, _, err := store.SaveDocument(ctx, raw)
	if err != nil {
		t.Fatalf("Failed to save document: %v", err)
	}

	byURL, err := store.FindByURLOrHash(ctx, raw.URL, "no-such-hash")
	if err != nil {
		t.Fatalf("Failed to find by URL: %v", err)
	}
	if byURL.ID != id {
		t.Errorf("Expected URL lookup to return %q, got %q", id, byURL.ID)
	}

	byHash, err := store.FindByURLOrHash(ctx, "https://example.com/other", raw.ContentHash)
	if err != nil {
		t.Fatalf("Failed to find by hash: %v", err)
	}
	if byHash.ID != id {
		t.Errorf("Expected hash lookup to return %q, got %q", id, byHash.ID)
	}

	_, err = store.FindByURLOrHash(ctx, "https://example.com/other", "no-such-hash")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound for unknown document, got %v", err)
	}
}

func TestStore_SaveBatch_CountsDuplicates(t *testing.T) {
	ctx, store := newIntegrationStore(t)

	seed := rawDoc("Arbeitszeitverordnung", "https://gesetze.berlin.de/bsbe/document/azv", "Inhalt der AZV")
	if _, _, err := store.SaveDocument(ctx, seed); err != nil {
		t.Fatalf("Failed to seed document: %v", err)
	}

	batch := []source.RawDocument{
		rawDoc("Allgemeines Sicherheitsgesetz", "https://gesetze.berlin.de/bsbe/document/asog", "Inhalt des ASOG"),
		rawDoc("Arbeitszeitverordnung", "https://gesetze.berlin.de/bsbe/document/azv", "Inhalt der AZV, Stand neu"),
		rawDoc("Berliner Hochschulgesetz", "https://gesetze.berlin.de/bsbe/document/berlhg", "Inhalt des BerlHG"),
	}

	stats := store.SaveBatch(ctx, batch)
	if stats.Saved != 2 {
		t.Errorf("Expected 2 saved, got %d", stats.Saved)
	}
	if stats.Duplicates != 1 {
		t.Errorf("Expected 1 duplicate, got %d", stats.Duplicates)
	}
	if stats.Errors != 0 {
		t.Errorf("Expected 0 errors, got %d", stats.Errors)
	}

	count, err := store.CountDocuments(ctx)
	if err != nil {
		t.Fatalf("Failed to count documents: %v", err)
	}
	if count != 3 {
		t.Errorf("Expected 3 stored documents, got %d", count)
	}
}

func TestStore_InsertChunks_ReplacesPreviousSet(t *testing.T) {
	ctx, store := newIntegrationStore(t)

	docID := "doc.gesetze-berlin-de-bsbe-document-abg"
	first := []source.TextChunk{
		{Text: "erster Abschnitt", ChunkIndex: 0},
		{Text: "zweiter Abschnitt", ChunkIndex: 1},
		{Text: "dritter Abschnitt", ChunkIndex: 2},
	}
	if _, err := store.InsertChunks(ctx, docID, first); err != nil {
		t.Fatalf("Failed to insert chunks: %v", err)
	}

	// Re-chunking with a coarser strategy yields fewer chunks; the old
	// higher-index records must not survive.
	second := []source.TextChunk{
		{Text: "erster und zweiter Abschnitt", ChunkIndex: 0},
		{Text: "dritter Abschnitt", ChunkIndex: 1},
	}
	n, err := store.InsertChunks(ctx, docID, second)
	if err != nil {
		t.Fatalf("Failed to re-insert chunks: %v", err)
	}
	if n != 2 {
		t.Fatalf("Expected 2 chunks written, got %d", n)
	}

	got, err := store.ChunksFor(ctx, docID)
	if err != nil {
		t.Fatalf("Failed to read chunks: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("Expected 2 chunks after re-chunk, got %d", len(got))
	}
	for i, chunk := range got {
		if chunk.ChunkIndex != i {
			t.Errorf("Expected contiguous index %d, got %d", i, chunk.ChunkIndex)
		}
		if chunk.Text != second[i].Text {
			t.Errorf("Expected chunk %d text %q, got %q", i, second[i].Text, chunk.Text)
		}
	}
}
