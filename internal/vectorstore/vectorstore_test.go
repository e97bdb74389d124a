package vectorstore

import (
	"strings"
	"testing"
)

func TestSplitOversizedContentUnderLimit(t *testing.T) {
	parts := SplitOversizedContent("chunk_1", "short content")
	if len(parts) != 1 || parts[0].ChunkID != "chunk_1" {
		t.Fatalf("expected single unsplit part, got %+v", parts)
	}
}

func TestSplitOversizedContentOverLimit(t *testing.T) {
	content := strings.Repeat("a", 8000)
	parts := SplitOversizedContent("chunk_2", content)
	if len(parts) < 2 {
		t.Fatalf("expected multiple parts for 8000-byte content, got %d", len(parts))
	}
	if parts[0].ChunkID != "chunk_2" {
		t.Fatalf("first part should reuse original chunk_id, got %s", parts[0].ChunkID)
	}
	if parts[1].ChunkID != "chunk_2-part2" {
		t.Fatalf("second part should be chunk_2-part2, got %s", parts[1].ChunkID)
	}
	for _, p := range parts {
		if len(p.Content) > maxContentBytes {
			t.Fatalf("part %s exceeds max content bytes: %d", p.ChunkID, len(p.Content))
		}
	}
}
