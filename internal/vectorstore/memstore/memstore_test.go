package memstore

import (
	"context"
	"testing"
	"time"

	"ttrpg-ingest/internal/vectorstore"
)

func freshStore(t *testing.T) *MemoryStore {
	t.Helper()
	s := NewMemoryStore().WithEnv(t.Name())
	t.Cleanup(func() {
		_, _ = s.DeleteAll(context.Background())
	})
	return s
}

func TestUpsertIsReplaceByID(t *testing.T) {
	s := freshStore(t)
	ctx := context.Background()

	doc := vectorstore.Document{ChunkID: "c1", Content: "paladin smite", Environment: s.env, UpdatedAt: time.Now()}
	if _, err := s.UpsertDocuments(ctx, []vectorstore.Document{doc}); err != nil {
		t.Fatalf("UpsertDocuments: %v", err)
	}
	doc.Content = "paladin smite evil"
	if _, err := s.UpsertDocuments(ctx, []vectorstore.Document{doc}); err != nil {
		t.Fatalf("UpsertDocuments (replace): %v", err)
	}

	n, err := s.CountDocuments(ctx)
	if err != nil {
		t.Fatalf("CountDocuments: %v", err)
	}
	if n != 1 {
		t.Fatalf("CountDocuments = %d, want 1 after replace-by-id upsert", n)
	}
}

func TestDeleteBySourceHash(t *testing.T) {
	s := freshStore(t)
	ctx := context.Background()

	docs := []vectorstore.Document{
		{ChunkID: "a", Content: "x", Environment: s.env, SourceHash: "hash1"},
		{ChunkID: "b", Content: "y", Environment: s.env, SourceHash: "hash2"},
	}
	if _, err := s.UpsertDocuments(ctx, docs); err != nil {
		t.Fatalf("UpsertDocuments: %v", err)
	}

	removed, err := s.DeleteBySourceHash(ctx, "hash1")
	if err != nil {
		t.Fatalf("DeleteBySourceHash: %v", err)
	}
	if removed != 1 {
		t.Fatalf("removed = %d, want 1", removed)
	}

	n, err := s.CountDocumentsForSource(ctx, "hash1")
	if err != nil {
		t.Fatalf("CountDocumentsForSource: %v", err)
	}
	if n != 0 {
		t.Fatalf("CountDocumentsForSource(hash1) = %d, want 0 after delete", n)
	}
}

func TestQueryLexicalScoring(t *testing.T) {
	s := freshStore(t)
	ctx := context.Background()

	docs := []vectorstore.Document{
		{ChunkID: "a", Content: "the paladin smites evil with holy fire", Environment: s.env},
		{ChunkID: "b", Content: "a completely unrelated sentence about cooking", Environment: s.env},
	}
	if _, err := s.UpsertDocuments(ctx, docs); err != nil {
		t.Fatalf("UpsertDocuments: %v", err)
	}

	results, err := s.Query(ctx, nil, 5, map[string]interface{}{"query_text": "paladin holy"})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(results) == 0 || results[0].ChunkID != "a" {
		t.Fatalf("expected chunk 'a' to rank first, got %+v", results)
	}
}
