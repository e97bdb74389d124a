package pipeline

import (
	"testing"
	"time"

	"ttrpg-ingest/internal/models"
)

func TestDictionaryTermsFromCrossReferencesDedupesElements(t *testing.T) {
	refs := []models.CrossReference{
		{SourceElement: "Fireball", TargetElement: "Wizard", RefType: "spell_to_class"},
		{SourceElement: "Fireball", TargetElement: "Sorcerer", RefType: "spell_to_class"},
	}

	terms := dictionaryTermsFromCrossReferences(refs, time.Unix(0, 0))
	if len(terms) != 3 {
		t.Fatalf("expected 3 distinct elements (Fireball, Wizard, Sorcerer), got %d: %+v", len(terms), terms)
	}

	seen := map[string]bool{}
	for _, term := range terms {
		if seen[term.Term] {
			t.Fatalf("expected no duplicate terms, saw %q twice", term.Term)
		}
		seen[term.Term] = true
		if len(term.Sources) != 1 || term.Sources[0].Method != "graph_extraction" {
			t.Fatalf("unexpected source for %q: %+v", term.Term, term.Sources)
		}
	}
}

func TestDictionaryTermsFromCrossReferencesSkipsEmptyElements(t *testing.T) {
	refs := []models.CrossReference{{SourceElement: "", TargetElement: ""}}
	terms := dictionaryTermsFromCrossReferences(refs, time.Unix(0, 0))
	if len(terms) != 0 {
		t.Fatalf("expected no terms from empty elements, got %d", len(terms))
	}
}
