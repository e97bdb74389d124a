package pipeline

import (
	"strings"
	"testing"

	"ttrpg-ingest/internal/models"
)

func TestCategorizeMatchesKeyword(t *testing.T) {
	cat, ok := categorize("Evocation Spells", 3)
	if !ok || cat != models.CategorySpells {
		t.Fatalf("categorize(spells) = %v, %v", cat, ok)
	}

	cat, ok = categorize("Fighter Class Options", 3)
	if !ok || cat != models.CategoryClasses {
		t.Fatalf("categorize(classes) = %v, %v", cat, ok)
	}
}

func TestCategorizeFallsBackToGeneralAtShallowLevel(t *testing.T) {
	cat, ok := categorize("Appendix", 1)
	if !ok || cat != models.CategoryGeneral {
		t.Fatalf("expected a shallow unmatched entry to fall back to general, got %v, %v", cat, ok)
	}
}

func TestCategorizeRejectsDeepUnmatchedEntry(t *testing.T) {
	_, ok := categorize("Appendix", 4)
	if ok {
		t.Fatalf("expected a deep unmatched entry to be rejected")
	}
}

func TestSeedTermsFromTocSkipsUncategorizedDeepEntries(t *testing.T) {
	entries := []models.TocEntry{
		{Title: "Fireball", Page: 10, Level: 2, SectionID: "s1"},
		{Title: "Credits", Page: 400, Level: 4, SectionID: "s2"},
	}

	terms := seedTermsFromToc(entries, "rulebook.pdf")
	if len(terms) != 1 {
		t.Fatalf("expected 1 term, got %d", len(terms))
	}
	if terms[0].Term != "Fireball" {
		t.Fatalf("term = %q, want Fireball", terms[0].Term)
	}
	if !strings.Contains(terms[0].Definition, "Fireball from rulebook.pdf, page 10") {
		t.Fatalf("definition = %q", terms[0].Definition)
	}
	if len(terms[0].Sources) != 1 || terms[0].Sources[0].Method != "toc_extraction" {
		t.Fatalf("expected a single toc_extraction source, got %+v", terms[0].Sources)
	}
}

func TestTocTextSampleCapsAtLimit(t *testing.T) {
	entries := make([]models.TocEntry, tocTextSampleEntries+10)
	for i := range entries {
		entries[i] = models.TocEntry{Title: "Entry", Page: i + 1}
	}

	sample := tocTextSample(entries)
	if got := strings.Count(sample, "Entry"); got != tocTextSampleEntries {
		t.Fatalf("expected sample capped at %d entries, got %d", tocTextSampleEntries, got)
	}
}
