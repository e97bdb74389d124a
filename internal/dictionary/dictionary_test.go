package dictionary

import (
	"testing"

	"ttrpg-ingest/internal/models"
)

func TestDedupeByNormalizedTermKeepsLastOccurrence(t *testing.T) {
	terms := []models.DictTerm{
		{Term: "Fireball", Definition: "first"},
		{Term: "fireball", Definition: "second"},
		{Term: "Magic Missile", Definition: "third"},
	}
	deduped := dedupeByNormalizedTerm(terms)
	if len(deduped) != 2 {
		t.Fatalf("len(deduped) = %d, want 2", len(deduped))
	}
	for _, d := range deduped {
		if models.NormalizeTerm(d.Term) == "fireball" && d.Definition != "second" {
			t.Fatalf("expected last occurrence 'second' to win, got %q", d.Definition)
		}
	}
}

func TestUpsertTermsSimulateMode(t *testing.T) {
	s := &Store{Simulate: true}
	n, err := s.UpsertTerms(nil, []models.DictTerm{
		{Term: "Rage", Definition: "d1"},
		{Term: "rage", Definition: "d2"},
	})
	if err != nil {
		t.Fatalf("UpsertTerms: %v", err)
	}
	if n != 1 {
		t.Fatalf("UpsertTerms count = %d, want 1", n)
	}
}

func TestGetTermCountSimulateMode(t *testing.T) {
	s := &Store{Simulate: true}
	n, err := s.GetTermCount(nil)
	if err != nil {
		t.Fatalf("GetTermCount: %v", err)
	}
	if n != 0 {
		t.Fatalf("GetTermCount = %d, want 0 in simulate mode", n)
	}
}
