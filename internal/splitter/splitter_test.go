package splitter

import (
	"testing"

	"ttrpg-ingest/internal/models"
)

func TestTocSplitCandidatesPrefersLevelTwo(t *testing.T) {
	toc := []models.TocEntry{
		{Title: "Ch1", Page: 1, Level: 1},
		{Title: "1.1", Page: 2, Level: 2},
		{Title: "1.1.1", Page: 3, Level: 3},
	}
	got := tocSplitCandidates(toc)
	if len(got) != 2 {
		t.Fatalf("expected 2 shallow entries, got %d", len(got))
	}
}

func TestTocSplitCandidatesFallsBackToFirstTen(t *testing.T) {
	var toc []models.TocEntry
	for i := 0; i < 15; i++ {
		toc = append(toc, models.TocEntry{Title: "x", Page: i + 1, Level: 3})
	}
	got := tocSplitCandidates(toc)
	if len(got) != 10 {
		t.Fatalf("expected 10 entries when no level-2 exists, got %d", len(got))
	}
}

func TestFixedSizePartsMinimumFloor(t *testing.T) {
	parts := fixedSizeParts(80)
	if len(parts) == 0 {
		t.Fatalf("expected at least one part")
	}
	for i, p := range parts {
		pages := p.PageEnd - p.PageStart + 1
		if pages > 50 || (i < len(parts)-1 && pages != 50) {
			t.Fatalf("expected part size floor of 50 pages, got %d", pages)
		}
	}
}

func TestTocGuidedPartsRespectsBoundaryRule(t *testing.T) {
	sections := []models.TocEntry{
		{Title: "Intro", Page: 1, Level: 1},
		{Title: "Chapter 2", Page: 40, Level: 1},
	}
	parts := tocGuidedParts(sections, 60)
	if len(parts) != 2 {
		t.Fatalf("expected a split at page 40 (delta 39 >= 30), got %d parts", len(parts))
	}
	if parts[0].PageStart != 1 || parts[0].PageEnd != 39 {
		t.Fatalf("unexpected first part bounds: %+v", parts[0])
	}
	if parts[1].PageStart != 40 || parts[1].PageEnd != 60 {
		t.Fatalf("unexpected second part bounds: %+v", parts[1])
	}
}

func TestTocGuidedPartsNoSplitUnderThreshold(t *testing.T) {
	sections := []models.TocEntry{
		{Title: "Intro", Page: 1, Level: 1},
		{Title: "Next", Page: 10, Level: 1},
	}
	parts := tocGuidedParts(sections, 20)
	if len(parts) != 1 {
		t.Fatalf("expected no split when delta < 30, got %d parts", len(parts))
	}
}

func TestMergeSmallPartsFoldsIntoPredecessor(t *testing.T) {
	parts := []Part{
		{Name: "part_001", PageStart: 1, PageEnd: 40},
		{Name: "part_002", PageStart: 41, PageEnd: 45},
	}
	merged := mergeSmallParts(parts)
	if len(merged) != 1 {
		t.Fatalf("expected small trailing part merged into predecessor, got %d parts", len(merged))
	}
	if merged[0].PageEnd != 45 {
		t.Fatalf("expected merged part to extend to page 45, got %d", merged[0].PageEnd)
	}
}

func TestMergeSmallPartsKeepsFirstPartIfSmall(t *testing.T) {
	parts := []Part{
		{Name: "part_001", PageStart: 1, PageEnd: 5},
	}
	merged := mergeSmallParts(parts)
	if len(merged) != 1 {
		t.Fatalf("expected single small first part left as-is, got %d", len(merged))
	}
}
