package models

import "time"

// Stage marks which pass last wrote a chunk.
type Stage string

const (
	StageRaw            Stage = "raw"
	StageVectorized      Stage = "vectorized"
	StageGraphEnriched   Stage = "graph_enriched"
)

// ChunkMetadata carries the part/page/extraction provenance a chunk was
// produced with.
type ChunkMetadata struct {
	PartIndex        int    `json:"part_index"`
	PageRange        string `json:"page_range,omitempty"`
	ExtractionMethod string `json:"extraction_method,omitempty"`
	ElementIndex     int    `json:"element_index,omitempty"`
}

// Coordinates is the optional bounding-box metadata an extractor may
// attach to an element.
type Coordinates struct {
	X1 float64 `json:"x1"`
	Y1 float64 `json:"y1"`
	X2 float64 `json:"x2"`
	Y2 float64 `json:"y2"`
}

// Chunk is the single evolving record that progresses through
// raw -> vectorized -> graph_enriched. Fields unused at a given stage are
// simply left at their zero value; JSON `omitempty` keeps early-stage
// documents compact.
type Chunk struct {
	ChunkID     string         `json:"chunk_id"`
	Content     string         `json:"content"`
	Stage       Stage          `json:"stage"`
	SourceID    string         `json:"source_id"`
	SectionID   string         `json:"section_id"`
	PageSpan    string         `json:"page_span,omitempty"`
	TocPath     string         `json:"toc_path,omitempty"`
	ElementType string         `json:"element_type,omitempty"`
	PageNumber  int            `json:"page_number,omitempty"`
	Coordinates *Coordinates   `json:"coordinates,omitempty"`
	Metadata    ChunkMetadata  `json:"metadata"`

	// Pass D additions.
	Embedding       []float32 `json:"embedding,omitempty"`
	EmbeddingModel  string    `json:"embedding_model,omitempty"`
	Entities        []string  `json:"entities,omitempty"`
	Keywords        []string  `json:"keywords,omitempty"`
	ChunkHash       string    `json:"chunk_hash,omitempty"`
	VectorID        string    `json:"vector_id,omitempty"`
	ConfidenceScore float64   `json:"confidence_score,omitempty"`
	ParentChunkID   string    `json:"parent_chunk_id,omitempty"`
	UpdatedAt       *time.Time `json:"updated_at,omitempty"`

	// Pass E additions.
	GraphRefs      []string   `json:"graph_refs,omitempty"`
	TocLineage     []string   `json:"toc_lineage,omitempty"`
	RelatedIDs     []string   `json:"related_ids,omitempty"`
	GraphUpdatedAt *time.Time `json:"graph_updated_at,omitempty"`
}

// MinContentLength is the content-length invariant IsValid checks; Pass C
// and Pass D (enrichment eligibility) apply the same 50-character floor.
const MinContentLength = 50

// IsValid reports whether the chunk satisfies the content-length and
// stage invariants from the data model.
func (c *Chunk) IsValid() bool {
	if len(c.Content) < MinContentLength {
		return false
	}
	switch c.Stage {
	case StageRaw, StageVectorized, StageGraphEnriched:
		return true
	default:
		return false
	}
}
