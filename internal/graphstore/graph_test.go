package graphstore

import (
	"testing"
	"time"

	"ttrpg-ingest/internal/models"
)

func sampleChunks() []models.Chunk {
	return []models.Chunk{
		{
			ChunkID: "job_1_c_0_0001", SectionID: "part_0_section_0",
			TocPath: "Spells > Evocation", Content: "A Fighter may cast Fireball in combat.",
		},
		{
			ChunkID: "job_1_c_0_0002", SectionID: "part_0_section_0",
			TocPath: "Spells > Evocation", Content: "The Rogue relies on Sneak Attack for extra damage.",
		},
	}
}

func TestBuildProducesSectionAndChunkNodes(t *testing.T) {
	result := Build(sampleChunks(), time.Unix(0, 0))

	var sectionNodes, chunkNodes int
	for _, n := range result.Snapshot.Nodes {
		switch n.NodeType {
		case models.NodeSection:
			sectionNodes++
		case models.NodeChunk:
			chunkNodes++
		}
	}
	if sectionNodes < 1 {
		t.Fatalf("expected at least one section node")
	}
	if chunkNodes != 2 {
		t.Fatalf("expected 2 chunk nodes, got %d", chunkNodes)
	}
}

func TestBuildEnrichesChunksToGraphStage(t *testing.T) {
	result := Build(sampleChunks(), time.Unix(0, 0))
	for _, c := range result.EnrichedChunks {
		if c.Stage != models.StageGraphEnriched {
			t.Fatalf("chunk %s stage = %s, want graph_enriched", c.ChunkID, c.Stage)
		}
		if c.GraphUpdatedAt == nil {
			t.Fatalf("chunk %s missing graph_updated_at", c.ChunkID)
		}
	}
}

func TestBuildHierarchyEdgesForMultiPartTocPath(t *testing.T) {
	result := Build(sampleChunks(), time.Unix(0, 0))
	found := false
	for _, e := range result.Snapshot.Edges {
		if e.EdgeType == models.EdgeHierarchy {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected a hierarchy edge for toc_path %q", "Spells > Evocation")
	}
}

func TestExtractCrossReferencesFindsSpellClassPair(t *testing.T) {
	refs := extractCrossReferences(sampleChunks())
	var found bool
	for _, r := range refs {
		if r.TargetElement == "Fighter" && r.RefType == string(models.EdgeSpellToClass) {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected a spell-to-class cross-reference targeting Fighter, got %+v", refs)
	}
}

func TestBuildAliasMapOnlyAboveConfidenceThreshold(t *testing.T) {
	refs := []models.CrossReference{
		{SourceElement: "Fireball", TargetElement: "Fighter", Confidence: 0.9},
		{SourceElement: "LowConfidence", TargetElement: "Rogue", Confidence: 0.3},
	}
	aliases := buildAliasMap(refs)
	if _, ok := aliases["Fireball"]; !ok {
		t.Fatalf("expected Fireball to have aliases above threshold")
	}
	if _, ok := aliases["LowConfidence"]; ok {
		t.Fatalf("did not expect LowConfidence below threshold to produce an alias entry")
	}
}

func TestDictionaryCategoryClassifiesKnownClass(t *testing.T) {
	if DictionaryCategory("Fighter") != models.CategoryClasses {
		t.Fatalf("expected Fighter to classify as classes")
	}
	if DictionaryCategory("Fireball Spell") != models.CategorySpells {
		t.Fatalf("expected Fireball Spell to classify as spells")
	}
	if DictionaryCategory("Unknown Thing") != models.CategoryGeneral {
		t.Fatalf("expected unrecognised element to fall back to general")
	}
}

func TestElementHashIsDeterministicAndShort(t *testing.T) {
	h1 := ElementHash("Fireball")
	h2 := ElementHash("Fireball")
	if h1 != h2 {
		t.Fatalf("ElementHash not deterministic: %s != %s", h1, h2)
	}
	if len(h1) != 12 {
		t.Fatalf("ElementHash length = %d, want 12", len(h1))
	}
}
