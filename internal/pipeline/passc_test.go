package pipeline

import (
	"path/filepath"
	"testing"

	"ttrpg-ingest/internal/atomicfile"
	"ttrpg-ingest/internal/models"
)

func TestCollectionNameIncludesEnv(t *testing.T) {
	if got := collectionName("prod"); got != "ttrpg_chunks_prod" {
		t.Fatalf("collectionName(prod) = %q", got)
	}
}

func TestTocPathForCapsAtTwoLevels(t *testing.T) {
	got := tocPathFor([]string{"Chapter 3", "Combat", "Grappling"})
	if got != "Chapter 3 > Combat" {
		t.Fatalf("tocPathFor = %q, want capped at 2 levels", got)
	}
}

func TestTocPathForEmptyTitles(t *testing.T) {
	if got := tocPathFor(nil); got != "" {
		t.Fatalf("tocPathFor(nil) = %q, want empty", got)
	}
}

func TestLoadExtractionUnitsFallsBackToWholeDocument(t *testing.T) {
	dir := t.TempDir()
	units := loadExtractionUnits(dir, 42)
	if len(units) != 1 || units[0].pageStart != 1 || units[0].pageEnd != 42 {
		t.Fatalf("expected a single whole-document unit, got %+v", units)
	}
}

func TestLoadExtractionUnitsReadsSplitIndex(t *testing.T) {
	dir := t.TempDir()
	index := models.SplitIndex{Parts: []models.SplitPart{
		{PageStart: 1, PageEnd: 10, SectionTitles: []string{"Intro"}},
		{PageStart: 11, PageEnd: 20, SectionTitles: []string{"Combat"}},
	}}
	if err := atomicfile.WriteJSON(filepath.Join(dir, "split_index.json"), index); err != nil {
		t.Fatalf("seed split index: %v", err)
	}

	units := loadExtractionUnits(dir, 20)
	if len(units) != 2 {
		t.Fatalf("expected 2 units from split index, got %d", len(units))
	}
	if units[1].pageStart != 11 || units[1].pageEnd != 20 {
		t.Fatalf("unexpected second unit: %+v", units[1])
	}
}

func TestChunkMetadataMapAndPayloadRoundTripFields(t *testing.T) {
	c := models.Chunk{
		ChunkID: "c1", Content: "hello", SectionID: "sec1", TocPath: "A > B",
		ElementType: "text", PageNumber: 5, Stage: models.StageRaw,
		Metadata: models.ChunkMetadata{PartIndex: 1, PageRange: "1-2", ExtractionMethod: "text_fallback", ElementIndex: 3},
	}

	meta := chunkMetadataMap(c)
	if meta["part_index"] != 1 || meta["extraction_method"] != "text_fallback" {
		t.Fatalf("unexpected metadata map: %+v", meta)
	}

	payload := chunkPayload(c)
	if payload["chunk_id"] != "c1" || payload["toc_path"] != "A > B" {
		t.Fatalf("unexpected payload: %+v", payload)
	}
}
