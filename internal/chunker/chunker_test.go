package chunker

import (
	"strings"
	"testing"

	"ttrpg-ingest/internal/models"
)

func TestNormalizeLeavesSmallChunksUntouched(t *testing.T) {
	chunks := []models.Chunk{{ChunkID: "c1", Content: "short content"}}
	out := Normalize(chunks, DefaultConfig)
	if len(out) != 1 || out[0].Content != "short content" {
		t.Fatalf("expected chunk to pass through unchanged, got %+v", out)
	}
}

func TestNormalizeSplitsOversizedChunk(t *testing.T) {
	content := strings.Repeat("word ", 200)
	chunks := []models.Chunk{{ChunkID: "c1", Content: content}}
	out := Normalize(chunks, DefaultConfig)
	if len(out) < 2 {
		t.Fatalf("expected oversized chunk to split into multiple children, got %d", len(out))
	}
	for _, c := range out {
		if len(c.Content) > DefaultConfig.HardCap {
			t.Fatalf("child exceeds hard cap: %d chars", len(c.Content))
		}
		if c.ParentChunkID != "c1" {
			t.Fatalf("expected parent_chunk_id c1, got %q", c.ParentChunkID)
		}
	}
}

func TestMergeSmallNeighborsCombinesUndersizedPair(t *testing.T) {
	chunks := []models.Chunk{
		{ChunkID: "a", Content: strings.Repeat("x", 50)},
		{ChunkID: "b", Content: strings.Repeat("y", 50)},
	}
	out := mergeSmallNeighbors(chunks, DefaultConfig)
	if len(out) != 1 {
		t.Fatalf("expected two small chunks to merge into one, got %d", len(out))
	}
}

func TestDeduplicateKeepsFirstAndMergesPageSpan(t *testing.T) {
	chunks := []models.Chunk{
		{ChunkID: "a", Content: "same content", PageSpan: "1"},
		{ChunkID: "b", Content: "same content", PageSpan: "2"},
		{ChunkID: "c", Content: "different content", PageSpan: "3"},
	}
	out := Deduplicate(chunks)
	if len(out) != 2 {
		t.Fatalf("expected 2 unique chunks, got %d", len(out))
	}
	if out[0].PageSpan != "1,2" {
		t.Fatalf("expected merged page span '1,2', got %q", out[0].PageSpan)
	}
}

func TestConfidenceScoreCapsAtOne(t *testing.T) {
	if got := ConfidenceScore(strings.Repeat("a", 5000)); got != 1 {
		t.Fatalf("expected confidence capped at 1, got %f", got)
	}
	if got := ConfidenceScore(strings.Repeat("a", 1000)); got != 0.5 {
		t.Fatalf("expected confidence 0.5 for 1000 chars, got %f", got)
	}
}

func TestVectorIDTruncatesHashTo12(t *testing.T) {
	hash := ChunkHashSHA256("hello world")
	id := VectorID("job_123", hash)
	if !strings.HasPrefix(id, "job_123_v_") {
		t.Fatalf("unexpected vector id format: %q", id)
	}
	if len(id) != len("job_123_v_")+12 {
		t.Fatalf("expected 12-char hash suffix, got id %q", id)
	}
}

func TestExtractEntitiesFindsClassNames(t *testing.T) {
	entities := ExtractEntities("The Wizard cast a spell near the Temple of Doom.")
	found := false
	for _, e := range entities {
		if e == "Wizard" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected Wizard among entities, got %v", entities)
	}
	if len(entities) > maxEntities {
		t.Fatalf("expected at most %d entities, got %d", maxEntities, len(entities))
	}
}

func TestExtractKeywordsIncludesFixedVocabHits(t *testing.T) {
	keywords := ExtractKeywords("The spell deals damage and requires magic to cast.")
	found := false
	for _, k := range keywords {
		if k == "spell" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected 'spell' among keywords, got %v", keywords)
	}
}

func TestExtractKeywordsCapsAtFifteen(t *testing.T) {
	var sb strings.Builder
	for i := 0; i < 30; i++ {
		sb.WriteString("uniqueword")
		sb.WriteString(strings.Repeat("z", i%5))
		sb.WriteString(" repeated repeated ")
	}
	keywords := ExtractKeywords(sb.String())
	if len(keywords) > maxKeywords {
		t.Fatalf("expected at most %d keywords, got %d", maxKeywords, len(keywords))
	}
}
