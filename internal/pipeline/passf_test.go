package pipeline

import (
	"os"
	"path/filepath"
	"testing"

	"ttrpg-ingest/internal/models"
)

func TestComposeRunSummaryReadsRoundTrippedPassResults(t *testing.T) {
	m := &models.Manifest{
		PassResults: map[models.Pass]interface{}{
			models.PassA: map[string]interface{}{"dictionary_entries": float64(12)},
			models.PassB: map[string]interface{}{"split_performed": true, "parts_created": float64(3)},
			models.PassC: map[string]interface{}{"chunks_extracted": float64(40)},
			models.PassD: map[string]interface{}{"chunks_vectorized": float64(38)},
			models.PassE: map[string]interface{}{
				"graph_nodes": float64(10), "graph_edges": float64(9),
				"cross_references": float64(4), "dictionary_updates": float64(2),
			},
		},
	}

	summary := composeRunSummary(m, true)

	if summary.DictionaryEntriesCreated != 12 {
		t.Fatalf("DictionaryEntriesCreated = %d, want 12", summary.DictionaryEntriesCreated)
	}
	if !summary.SplitPerformed || summary.PartsCreated != 3 {
		t.Fatalf("split fields wrong: %+v", summary)
	}
	if summary.ChunksExtracted != 40 {
		t.Fatalf("ChunksExtracted = %d, want 40", summary.ChunksExtracted)
	}
	if summary.ChunksVectorized != 38 {
		t.Fatalf("ChunksVectorized = %d, want 38", summary.ChunksVectorized)
	}
	if summary.GraphNodes != 10 || summary.GraphEdges != 9 || summary.CrossReferences != 4 || summary.DictionaryUpdates != 2 {
		t.Fatalf("graph fields wrong: %+v", summary)
	}
	if !summary.CompletionStatus.AllPassesCompleted {
		t.Fatalf("expected AllPassesCompleted true")
	}
}

func TestComposeRunSummaryHandlesMissingPasses(t *testing.T) {
	m := &models.Manifest{PassResults: map[models.Pass]interface{}{}}
	summary := composeRunSummary(m, false)
	if summary.ChunksExtracted != 0 || summary.CompletionStatus.AllPassesCompleted {
		t.Fatalf("expected zero-value summary for a manifest with no pass results, got %+v", summary)
	}
}

func TestSweepTempFilesMovesAndPurges(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "artifact.json.tmp123"), []byte("{}"), 0o644); err != nil {
		t.Fatalf("seed temp file: %v", err)
	}

	moved, deleted, purged, err := sweepTempFiles(dir)
	if err != nil {
		t.Fatalf("sweepTempFiles: %v", err)
	}
	if moved != 1 {
		t.Fatalf("moved = %d, want 1", moved)
	}
	if deleted != 1 || purged != 1 {
		t.Fatalf("deleted/purged = %d/%d, want 1/1", deleted, purged)
	}

	if _, err := os.Stat(filepath.Join(dir, "partial", "artifact.json.tmp123")); !os.IsNotExist(err) {
		t.Fatalf("expected the purged temp file to be gone")
	}
}

func TestRemoveEmptyDirsOnlyRemovesEmptyOnes(t *testing.T) {
	dir := t.TempDir()
	emptyDir := filepath.Join(dir, "empty")
	nonEmptyDir := filepath.Join(dir, "nonempty")
	if err := os.MkdirAll(emptyDir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.MkdirAll(nonEmptyDir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(nonEmptyDir, "keep.txt"), []byte("x"), 0o644); err != nil {
		t.Fatalf("seed file: %v", err)
	}

	removed := removeEmptyDirs(dir)
	if removed != 1 {
		t.Fatalf("removed = %d, want 1", removed)
	}
	if _, err := os.Stat(emptyDir); !os.IsNotExist(err) {
		t.Fatalf("expected empty dir removed")
	}
	if _, err := os.Stat(nonEmptyDir); err != nil {
		t.Fatalf("expected non-empty dir to survive: %v", err)
	}
}
