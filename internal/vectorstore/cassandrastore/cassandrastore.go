// Package cassandrastore is the wide-column vector-store backend: a
// keyspace/table holding one row per chunk with embeddings packed as
// little-endian float32 blobs, queried by a bounded scan plus in-process
// cosine/lexical scoring since Cassandra itself has no native vector
// index. Grounded on github.com/gocql/gocql, the standard Go Cassandra
// driver referenced across the retrieval pack's manifests; no example
// repo ships a full wide-column store, so this package follows the
// schema and scan/rank description in spec §4.12 directly.
package cassandrastore

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/gocql/gocql"

	"ttrpg-ingest/internal/vectorstore"
)

// Store is the Cassandra-backed Store implementation.
type Store struct {
	session   *gocql.Session
	keyspace  string
	table     string
	scanLimit int
}

// Config bundles the connection settings needed to construct a Store.
type Config struct {
	ContactPoints []string
	Port          int
	Keyspace      string
	Table         string
	Username      string
	Password      string
	Consistency   string
	ScanLimit     int
}

// New opens a gocql session against the configured cluster and keyspace.
// It creates nothing: EnsureSchema creates the table and its indexes, and
// the keyspace must already exist.
func New(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.Table == "" {
		cfg.Table = "chunks"
	}
	if cfg.ScanLimit <= 0 {
		cfg.ScanLimit = 2000
	}

	cluster := gocql.NewCluster(cfg.ContactPoints...)
	if cfg.Port > 0 {
		cluster.Port = cfg.Port
	}
	if cfg.Username != "" {
		cluster.Authenticator = gocql.PasswordAuthenticator{Username: cfg.Username, Password: cfg.Password}
	}
	cluster.Consistency = parseConsistency(cfg.Consistency)
	cluster.Keyspace = cfg.Keyspace

	session, err := cluster.CreateSession()
	if err != nil {
		return nil, fmt.Errorf("cassandrastore: create session: %w", err)
	}

	return &Store{
		session:   session,
		keyspace:  cfg.Keyspace,
		table:     cfg.Table,
		scanLimit: cfg.ScanLimit,
	}, nil
}

func parseConsistency(name string) gocql.Consistency {
	switch strings.ToUpper(name) {
	case "ONE":
		return gocql.One
	case "QUORUM":
		return gocql.Quorum
	case "ALL":
		return gocql.All
	case "LOCAL_QUORUM":
		return gocql.LocalQuorum
	default:
		return gocql.Quorum
	}
}

func (s *Store) EnsureSchema(ctx context.Context) error {
	createTable := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		chunk_id text PRIMARY KEY,
		environment text,
		stage text,
		content text,
		payload text,
		source_hash text,
		source_file text,
		embedding blob,
		embedding_model text,
		vector_id text,
		updated_at timestamp,
		loaded_at timestamp
	)`, s.table)
	if err := s.session.Query(createTable).WithContext(ctx).Exec(); err != nil {
		return fmt.Errorf("cassandrastore: create table %s: %w", s.table, err)
	}

	for _, col := range []string{"source_hash", "environment", "stage"} {
		idxName := fmt.Sprintf("%s_%s_idx", s.table, col)
		stmt := fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s ON %s (%s)", idxName, s.table, col)
		if err := s.session.Query(stmt).WithContext(ctx).Exec(); err != nil {
			return fmt.Errorf("cassandrastore: create index %s: %w", idxName, err)
		}
	}
	return nil
}

func (s *Store) InsertDocuments(ctx context.Context, docs []vectorstore.Document) (int, error) {
	return s.UpsertDocuments(ctx, docs)
}

// UpsertDocuments writes one row per document; an INSERT with the same
// primary key (chunk_id) overwrites in place, which is Cassandra's native
// replace-by-key semantics.
func (s *Store) UpsertDocuments(ctx context.Context, docs []vectorstore.Document) (int, error) {
	stmt := fmt.Sprintf(`INSERT INTO %s
		(chunk_id, environment, stage, content, payload, source_hash, source_file,
		 embedding, embedding_model, vector_id, updated_at, loaded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, s.table)

	written := 0
	for _, d := range docs {
		payloadJSON := encodeMetadata(d.Metadata)
		err := s.session.Query(stmt,
			d.ChunkID, d.Environment, d.Stage, d.Content, payloadJSON, d.SourceHash, d.SourceFile,
			packEmbedding(d.Embedding), d.EmbeddingModel, d.VectorID, d.UpdatedAt, d.LoadedAt,
		).WithContext(ctx).Exec()
		if err != nil {
			return written, fmt.Errorf("cassandrastore: upsert chunk %s: %w", d.ChunkID, err)
		}
		written++
	}
	return written, nil
}

func (s *Store) DeleteAll(ctx context.Context) (int, error) {
	n, err := s.CountDocuments(ctx)
	if err != nil {
		return 0, err
	}
	if err := s.session.Query(fmt.Sprintf("TRUNCATE %s", s.table)).WithContext(ctx).Exec(); err != nil {
		return 0, fmt.Errorf("cassandrastore: truncate %s: %w", s.table, err)
	}
	return n, nil
}

// DeleteBySourceHash scans by source_hash and deletes one row at a time,
// since no materialised view is assumed per spec §4.12.
func (s *Store) DeleteBySourceHash(ctx context.Context, hash string) (int, error) {
	if hash == "" {
		return 0, nil
	}
	iter := s.session.Query(fmt.Sprintf("SELECT chunk_id FROM %s WHERE source_hash = ? ALLOW FILTERING", s.table), hash).WithContext(ctx).Iter()

	var chunkID string
	deleteStmt := fmt.Sprintf("DELETE FROM %s WHERE chunk_id = ?", s.table)
	removed := 0
	for iter.Scan(&chunkID) {
		if err := s.session.Query(deleteStmt, chunkID).WithContext(ctx).Exec(); err != nil {
			_ = iter.Close()
			return removed, fmt.Errorf("cassandrastore: delete chunk %s: %w", chunkID, err)
		}
		removed++
	}
	if err := iter.Close(); err != nil {
		return removed, fmt.Errorf("cassandrastore: scan source_hash %s: %w", hash, err)
	}
	return removed, nil
}

func (s *Store) CountDocuments(ctx context.Context) (int, error) {
	var count int
	if err := s.session.Query(fmt.Sprintf("SELECT COUNT(*) FROM %s", s.table)).WithContext(ctx).Scan(&count); err != nil {
		return 0, fmt.Errorf("cassandrastore: count: %w", err)
	}
	return count, nil
}

func (s *Store) CountDocumentsForSource(ctx context.Context, hash string) (int, error) {
	if hash == "" {
		return 0, nil
	}
	var count int
	stmt := fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE source_hash = ? ALLOW FILTERING", s.table)
	if err := s.session.Query(stmt, hash).WithContext(ctx).Scan(&count); err != nil {
		return 0, fmt.Errorf("cassandrastore: count for source %s: %w", hash, err)
	}
	return count, nil
}

func (s *Store) GetSourcesWithChunkCounts(ctx context.Context) (vectorstore.SourceCounts, error) {
	iter := s.session.Query(fmt.Sprintf("SELECT source_hash, source_file, updated_at FROM %s LIMIT ?", s.table), s.scanLimit).WithContext(ctx).Iter()

	counts := map[string]*vectorstore.SourceChunkCount{}
	var hash, file string
	var updatedAt time.Time
	for iter.Scan(&hash, &file, &updatedAt) {
		key := file
		if key == "" {
			key = hash
		}
		if key == "" {
			key = "unknown"
		}
		entry, ok := counts[key]
		if !ok {
			entry = &vectorstore.SourceChunkCount{SourceHash: hash, SourceFile: file}
			counts[key] = entry
		}
		entry.ChunkCount++
		if updatedAt.After(entry.LastUpdated) {
			entry.LastUpdated = updatedAt
		}
	}
	if err := iter.Close(); err != nil {
		return vectorstore.SourceCounts{}, fmt.Errorf("cassandrastore: scan sources: %w", err)
	}

	result := vectorstore.SourceCounts{Status: "ok"}
	for _, v := range counts {
		result.Sources = append(result.Sources, *v)
		result.TotalChunks += v.ChunkCount
	}
	result.TotalSources = len(result.Sources)
	return result, nil
}

// Query scans environment+stage (bounded by scanLimit), decodes each
// row's packed embedding, and ranks by cosine similarity, falling back to
// lexical overlap when the query carries no vector.
func (s *Store) Query(ctx context.Context, vec []float32, topK int, filters map[string]interface{}) ([]vectorstore.QueryResult, error) {
	env, _ := filters["environment"].(string)
	stage, _ := filters["stage"].(string)

	stmt := fmt.Sprintf("SELECT chunk_id, content, source_file, embedding, payload FROM %s WHERE environment = ? AND stage = ? LIMIT ? ALLOW FILTERING", s.table)
	iter := s.session.Query(stmt, env, stage, s.scanLimit).WithContext(ctx).Iter()

	var chunkID, content, sourceFile, payloadJSON string
	var embeddingBlob []byte
	var results []vectorstore.QueryResult
	queryText, _ := filters["query_text"].(string)

	for iter.Scan(&chunkID, &content, &sourceFile, &embeddingBlob, &payloadJSON) {
		embedding := unpackEmbedding(embeddingBlob)
		var score float64
		if len(vec) > 0 && len(embedding) > 0 {
			score = cosineSimilarity(vec, embedding)
		} else {
			score = lexicalOverlap(queryText, content)
		}
		if score <= 0 {
			continue
		}
		results = append(results, vectorstore.QueryResult{
			ChunkID:    chunkID,
			Content:    content,
			Metadata:   decodeMetadata(payloadJSON),
			Score:      score,
			SourceFile: sourceFile,
		})
	}
	if err := iter.Close(); err != nil {
		return nil, fmt.Errorf("cassandrastore: query scan: %w", err)
	}

	sort.Slice(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	if topK < 1 {
		topK = 1
	}
	if len(results) > topK {
		results = results[:topK]
	}
	return results, nil
}

func (s *Store) Close() error {
	s.session.Close()
	return nil
}

// packEmbedding serialises a []float32 into a little-endian byte blob.
func packEmbedding(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

func unpackEmbedding(buf []byte) []float32 {
	n := len(buf) / 4
	out := make([]float32, n)
	for i := 0; i < n; i++ {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
	}
	return out
}

func encodeMetadata(m map[string]interface{}) string {
	var sb strings.Builder
	sb.WriteString("{")
	first := true
	for k, v := range m {
		if !first {
			sb.WriteString(",")
		}
		first = false
		fmt.Fprintf(&sb, "%q:%q", k, fmt.Sprint(v))
	}
	sb.WriteString("}")
	return sb.String()
}

func decodeMetadata(raw string) map[string]interface{} {
	// Minimal flat-object decode; the payload column stores only string
	// values, so a handwritten scan avoids pulling in a JSON codec for
	// this one backend-internal format.
	m := map[string]interface{}{}
	raw = strings.TrimSpace(raw)
	raw = strings.TrimPrefix(raw, "{")
	raw = strings.TrimSuffix(raw, "}")
	if raw == "" {
		return m
	}
	for _, pair := range strings.Split(raw, ",") {
		kv := strings.SplitN(pair, ":", 2)
		if len(kv) != 2 {
			continue
		}
		key := strings.Trim(kv[0], `"`)
		val := strings.Trim(kv[1], `"`)
		m[key] = val
	}
	return m
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(b) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

func lexicalOverlap(query, content string) float64 {
	if query == "" || content == "" {
		return 0
	}
	q := tokenSet(query)
	c := tokenSet(content)
	if len(q) == 0 || len(c) == 0 {
		return 0
	}
	overlap := 0
	for t := range q {
		if c[t] {
			overlap++
		}
	}
	return float64(overlap) / float64(len(q))
}

func tokenSet(s string) map[string]bool {
	set := map[string]bool{}
	for _, tok := range strings.Fields(strings.ToLower(s)) {
		set[tok] = true
	}
	return set
}
