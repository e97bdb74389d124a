// Package dictionary is the shared dictionary-store adapter: upsert and
// count operations over named terms, deduplicated by normalised key.
// Grounded on the teacher's internal/database/postgres.go for the
// pgxpool connection/query style, extended here with the two-step
// insert-then-set-union-sources upsert pattern described by the original
// pipeline's dictionary_initializer.py / dictionary_loader.py division of
// labor (see DESIGN.md).
package dictionary

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sort"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/time/rate"

	"ttrpg-ingest/internal/models"
)

// Store is the Postgres-backed dictionary adapter.
type Store struct {
	Pool *pgxpool.Pool

	// Simulate, when true, skips real database calls and logs "would
	// upsert N" instead, matching the backend-unavailable fallback in
	// spec §4.11.
	Simulate bool

	// BatchSize and InterBatchDelay implement the rate-limited batch
	// upsert the spec requires.
	BatchSize       int
	InterBatchDelay time.Duration
}

// New connects to Postgres and returns a Store. When connStr is empty the
// store runs in simulation mode.
func New(ctx context.Context, connStr string) (*Store, error) {
	s := &Store{BatchSize: 20, InterBatchDelay: 100 * time.Millisecond}
	if connStr == "" {
		s.Simulate = true
		return s, nil
	}

	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		return nil, fmt.Errorf("dictionary: connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("dictionary: ping: %w", err)
	}
	s.Pool = pool
	return s, nil
}

// Initialize creates the dictionary_terms table if it doesn't exist.
func (s *Store) Initialize(ctx context.Context) error {
	if s.Simulate {
		return nil
	}
	_, err := s.Pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS dictionary_terms (
			normalized_term TEXT PRIMARY KEY,
			term TEXT NOT NULL,
			definition TEXT NOT NULL,
			category TEXT NOT NULL,
			sources JSONB NOT NULL DEFAULT '[]',
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("dictionary: create table: %w", err)
	}
	return nil
}

// UpsertTerms deduplicates terms within the batch by normalised key
// (last occurrence wins), then writes each in batches of BatchSize with
// an inter-batch delay, using the two-step insert-if-absent then
// set-union-append-sources pattern. Returns the count of distinct terms
// upserted.
func (s *Store) UpsertTerms(ctx context.Context, terms []models.DictTerm) (int, error) {
	deduped := dedupeByNormalizedTerm(terms)
	if s.Simulate {
		log.Printf("dictionary: would upsert %d", len(deduped))
		return len(deduped), nil
	}

	batchSize := s.BatchSize
	if batchSize <= 0 {
		batchSize = 20
	}

	// Inter-batch pacing uses a rate.Limiter (one token per InterBatchDelay)
	// rather than a bare time.Sleep, so the same backoff primitive covers
	// both this adapter and the vector-store batch upserts in
	// internal/pipeline.
	var limiter *rate.Limiter
	if s.InterBatchDelay > 0 {
		limiter = rate.NewLimiter(rate.Every(s.InterBatchDelay), 1)
		limiter.Allow() // consume the initial burst token so the first Wait actually paces
	}

	upserted := 0
	for start := 0; start < len(deduped); start += batchSize {
		end := start + batchSize
		if end > len(deduped) {
			end = len(deduped)
		}
		batch := deduped[start:end]

		for _, term := range batch {
			if err := s.upsertOne(ctx, term); err != nil {
				return upserted, err
			}
			upserted++
		}

		if end < len(deduped) && limiter != nil {
			limiter.Wait(ctx)
		}
	}
	return upserted, nil
}

// upsertOne performs the two-step pattern: insert-if-absent with empty
// sources, then append this call's sources via a JSONB set union.
func (s *Store) upsertOne(ctx context.Context, term models.DictTerm) error {
	key := models.NormalizeTerm(term.Term)
	now := time.Now()

	_, err := s.Pool.Exec(ctx, `
		INSERT INTO dictionary_terms (normalized_term, term, definition, category, sources, created_at, updated_at)
		VALUES ($1, $2, $3, $4, '[]'::jsonb, $5, $5)
		ON CONFLICT (normalized_term) DO NOTHING
	`, key, term.Term, term.Definition, string(term.Category), now)
	if err != nil {
		return fmt.Errorf("dictionary: insert-if-absent %s: %w", key, err)
	}

	sourcesJSON, err := json.Marshal(term.Sources)
	if err != nil {
		return fmt.Errorf("dictionary: marshal sources for %s: %w", key, err)
	}

	_, err = s.Pool.Exec(ctx, `
		UPDATE dictionary_terms
		SET sources = (
			SELECT jsonb_agg(DISTINCT elem)
			FROM jsonb_array_elements(sources || $2::jsonb) AS elem
		),
		updated_at = $3
		WHERE normalized_term = $1
	`, key, sourcesJSON, now)
	if err != nil {
		return fmt.Errorf("dictionary: append sources for %s: %w", key, err)
	}
	return nil
}

// GetTermCount returns the total number of distinct terms.
func (s *Store) GetTermCount(ctx context.Context) (int, error) {
	if s.Simulate {
		return 0, nil
	}
	var count int
	err := s.Pool.QueryRow(ctx, `SELECT COUNT(*) FROM dictionary_terms`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("dictionary: count terms: %w", err)
	}
	return count, nil
}

// GetTerm fetches one term by its normalised key. Returns (nil, nil) when
// not found.
func (s *Store) GetTerm(ctx context.Context, term string) (*models.DictTerm, error) {
	if s.Simulate {
		return nil, nil
	}
	key := models.NormalizeTerm(term)

	var rec models.DictTerm
	var category string
	var sourcesJSON []byte
	err := s.Pool.QueryRow(ctx, `
		SELECT term, definition, category, sources, created_at, updated_at
		FROM dictionary_terms WHERE normalized_term = $1
	`, key).Scan(&rec.Term, &rec.Definition, &category, &sourcesJSON, &rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("dictionary: get term %s: %w", key, err)
	}
	rec.Category = models.DictCategory(category)
	if err := json.Unmarshal(sourcesJSON, &rec.Sources); err != nil {
		return nil, fmt.Errorf("dictionary: unmarshal sources for %s: %w", key, err)
	}
	return &rec, nil
}

// Close releases the connection pool.
func (s *Store) Close() {
	if s.Pool != nil {
		s.Pool.Close()
	}
}

// dedupeByNormalizedTerm collapses duplicates within a batch to the last
// occurrence, keyed by normalised term, and returns them sorted by key so
// upsert order is deterministic.
func dedupeByNormalizedTerm(terms []models.DictTerm) []models.DictTerm {
	byKey := make(map[string]models.DictTerm, len(terms))
	var order []string
	for _, t := range terms {
		key := models.NormalizeTerm(t.Term)
		if _, exists := byKey[key]; !exists {
			order = append(order, key)
		}
		byKey[key] = t
	}
	sort.Strings(order)

	result := make([]models.DictTerm, 0, len(order))
	for _, key := range order {
		result = append(result, byKey[key])
	}
	return result
}
