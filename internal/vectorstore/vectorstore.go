// Package vectorstore defines the pluggable backend abstraction every
// pass upserts chunks through: an in-memory map for tests, a remote
// document-DB style backend (Qdrant), and a wide-column backend
// (Cassandra). All three share the Store interface and the chunk-size
// guardrail applied before any backend ever sees a document.
package vectorstore

import (
	"context"
	"fmt"
	"time"
)

// Document is the persistence shape every backend stores and queries
// over, per spec §4.12.
type Document struct {
	ChunkID          string                 `json:"chunk_id"`
	Content          string                 `json:"content"`
	Metadata         map[string]interface{} `json:"metadata,omitempty"`
	Environment      string                 `json:"environment"`
	Stage            string                 `json:"stage"`
	SourceHash       string                 `json:"source_hash,omitempty"`
	SourceFile       string                 `json:"source_file,omitempty"`
	Embedding        []float32              `json:"embedding,omitempty"`
	EmbeddingModel   string                 `json:"embedding_model,omitempty"`
	VectorID         string                 `json:"vector_id,omitempty"`
	UpdatedAt        time.Time              `json:"updated_at"`
	LoadedAt         time.Time              `json:"loaded_at"`
	Payload          map[string]interface{} `json:"payload,omitempty"`
}

// SourceChunkCount is one row of GetSourcesWithChunkCounts.
type SourceChunkCount struct {
	SourceHash  string    `json:"source_hash"`
	SourceFile  string    `json:"source_file"`
	ChunkCount  int       `json:"chunk_count"`
	LastUpdated time.Time `json:"last_updated"`
}

// SourceCounts is the aggregate result of GetSourcesWithChunkCounts.
type SourceCounts struct {
	Status       string             `json:"status"`
	Sources      []SourceChunkCount `json:"sources"`
	TotalSources int                `json:"total_sources"`
	TotalChunks  int                `json:"total_chunks"`
}

// QueryResult is one scored hit returned by Query.
type QueryResult struct {
	ChunkID    string                 `json:"chunk_id"`
	Content    string                 `json:"content"`
	Metadata   map[string]interface{} `json:"metadata,omitempty"`
	Score      float64                `json:"score"`
	SourceFile string                 `json:"source_file,omitempty"`
}

// Store is the narrow ten-method backend interface every vector-store
// implementation exposes.
type Store interface {
	EnsureSchema(ctx context.Context) error
	InsertDocuments(ctx context.Context, docs []Document) (int, error)
	UpsertDocuments(ctx context.Context, docs []Document) (int, error)
	DeleteAll(ctx context.Context) (int, error)
	DeleteBySourceHash(ctx context.Context, hash string) (int, error)
	CountDocuments(ctx context.Context) (int, error)
	CountDocumentsForSource(ctx context.Context, hash string) (int, error)
	GetSourcesWithChunkCounts(ctx context.Context) (SourceCounts, error)
	Query(ctx context.Context, vector []float32, topK int, filters map[string]interface{}) ([]QueryResult, error)
	Close() error
}

// maxContentBytes is the UTF-8 byte-length guardrail applied at upsert.
const maxContentBytes = 7000

// splitTargetChars is the soft target used when a content string must be
// split to satisfy maxContentBytes.
const splitTargetChars = 400

// ContentPart is one split segment produced by SplitOversizedContent.
type ContentPart struct {
	ChunkID string
	Content string
}

// SplitOversizedContent implements the chunk-size guardrail from
// spec §4.12: split content so no part exceeds maxContentBytes UTF-8
// bytes, reusing chunkID for part 1 and "{chunkID}-part{n}" thereafter.
// Splitting targets splitTargetChars runes per part, halving the target
// when a segment still exceeds the byte cap.
func SplitOversizedContent(chunkID, content string) []ContentPart {
	if len(content) <= maxContentBytes {
		return []ContentPart{{ChunkID: chunkID, Content: content}}
	}

	runes := []rune(content)
	target := splitTargetChars
	var parts []ContentPart
	partNum := 1

	for len(runes) > 0 {
		n := target
		if n > len(runes) {
			n = len(runes)
		}
		segment := string(runes[:n])
		for len(segment) > maxContentBytes && n > 1 {
			n = n / 2
			if n < 1 {
				n = 1
			}
			segment = string(runes[:n])
		}

		id := chunkID
		if partNum > 1 {
			id = fmt.Sprintf("%s-part%d", chunkID, partNum)
		}
		parts = append(parts, ContentPart{ChunkID: id, Content: segment})

		runes = runes[n:]
		partNum++
	}
	return parts
}

// Config bundles the environment-variable-sourced settings every backend
// constructor needs; unused fields are simply ignored by a given backend.
type Config struct {
	Environment string

	QdrantAddr       string
	QdrantCollection string
	RequireCreds     bool
	Simulate         bool
	Insecure         bool
	ScanLimit        int

	CassandraContactPoints []string
	CassandraPort          int
	CassandraKeyspace      string
	CassandraTable         string
	CassandraUsername      string
	CassandraPassword      string
	CassandraConsistency   string
	CassandraScanLimit     int
}
