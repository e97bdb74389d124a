package pipeline

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"golang.org/x/time/rate"

	"ttrpg-ingest/internal/atomicfile"
	"ttrpg-ingest/internal/chunker"
	"ttrpg-ingest/internal/embedding"
	"ttrpg-ingest/internal/manifest"
	"ttrpg-ingest/internal/models"
	"ttrpg-ingest/internal/vectorstore"
)

// passDUpsertBatchSize and passDUpsertPause are spec §4.6 step 8's batch
// upsert parameters.
const (
	passDUpsertBatchSize = 50
	passDUpsertPause     = 100 * time.Millisecond
)

// ProcessPassD normalises chunk sizes, deduplicates, embeds, and
// extracts entities/keywords, upserting the result with stage="vectorized".
func ProcessPassD(ctx context.Context, jobDir, jobID, env string, embedder embedding.Embedder, cfg chunker.Config, modelDim int, abortOnIncompatible bool, store vectorstore.Store, log interface {
	Warnf(string, ...interface{})
}) (*models.PassDResult, error) {
	start := time.Now()
	result := &models.PassDResult{}

	if embedder != nil && abortOnIncompatible && embedder.Dimension() != modelDim {
		err := fmt.Errorf("pipeline: pass D embedding dimension %d does not match configured MODEL_DIM %d", embedder.Dimension(), modelDim)
		result.Error = err.Error()
		return result, err
	}

	rawPath := filepath.Join(jobDir, fmt.Sprintf("%s_pass_c_raw_chunks.jsonl", jobID))
	raw, malformed := loadChunksJSONL(rawPath)
	if malformed > 0 && log != nil {
		log.Warnf("pass D: skipped %d malformed lines in %s", malformed, rawPath)
	}

	normalized := chunker.Normalize(raw, cfg)
	deduped := chunker.Deduplicate(normalized)

	enriched := make([]models.Chunk, 0, len(deduped))
	entitiesTotal, keywordsTotal := 0, 0
	now := time.Now()
	for _, c := range deduped {
		if len(c.Content) < minChunkContentLen {
			continue
		}
		ec := enrichChunk(c, embedder, modelDim, now, log)
		entitiesTotal += len(ec.Entities)
		keywordsTotal += len(ec.Keywords)
		enriched = append(enriched, ec)
	}

	vectorsPath := filepath.Join(jobDir, fmt.Sprintf("%s_pass_d_vectors.jsonl", jobID))
	if err := writeChunksJSONL(vectorsPath, enriched); err != nil {
		result.Error = err.Error()
		return result, fmt.Errorf("pipeline: pass D write vectors: %w", err)
	}

	merged := len(normalized) - len(deduped)
	report := models.EnrichmentReport{
		OriginalChunks:     len(raw),
		NormalizedChunks:   len(normalized),
		DeduplicatedChunks: len(deduped),
		MergedFragments:    merged,
		VectorizedChunks:   len(enriched),
		EntitiesExtracted:  entitiesTotal,
		KeywordsExtracted:  keywordsTotal,
		DeduplicationRatio: ratio(merged, len(normalized)),
		NormalizationRatio: ratio(len(normalized), len(raw)),
		ProcessingTimeMs:   time.Since(start).Milliseconds(),
	}
	if err := atomicfile.WriteJSON(filepath.Join(jobDir, "enrichment_report.json"), report); err != nil {
		result.Error = err.Error()
		return result, fmt.Errorf("pipeline: pass D write report: %w", err)
	}

	loaded := 0
	if store != nil && len(enriched) > 0 {
		var err error
		loaded, err = upsertInBatches(ctx, store, enriched, env, jobID, jobDir, passDUpsertBatchSize, passDUpsertPause, log)
		if err != nil && log != nil {
			log.Warnf("pass D: batch upsert encountered errors, reporting partial success: %v", err)
		}
	}

	result.ChunksVectorized = len(enriched)
	result.ChunksLoaded = loaded
	result.ProcessingTimeMs = time.Since(start).Milliseconds()
	result.Success = true

	m, err := manifest.Load(jobDir)
	if err != nil {
		return result, fmt.Errorf("pipeline: pass D load manifest: %w", err)
	}
	m.MarkCompleted(models.PassD, result)
	if err := manifest.RecordArtifact(m, jobDir, filepath.Base(vectorsPath)); err != nil {
		return result, fmt.Errorf("pipeline: pass D record vectors artifact: %w", err)
	}
	if err := manifest.RecordArtifact(m, jobDir, "enrichment_report.json"); err != nil {
		return result, fmt.Errorf("pipeline: pass D record report artifact: %w", err)
	}
	if err := manifest.Save(jobDir, m); err != nil {
		return result, fmt.Errorf("pipeline: pass D save manifest: %w", err)
	}

	return result, nil
}

func ratio(numerator, denominator int) float64 {
	if denominator == 0 {
		return 0
	}
	return float64(numerator) / float64(denominator)
}

func loadChunksJSONL(path string) (chunks []models.Chunk, malformed int) {
	lines, err := atomicfile.ReadLines(path)
	if err != nil {
		return nil, 0
	}
	for _, line := range lines {
		var c models.Chunk
		if err := atomicfile.UnmarshalJSONLine(line, &c); err != nil {
			malformed++
			continue
		}
		chunks = append(chunks, c)
	}
	return chunks, malformed
}

const embeddingModelName = "text-embedding-3-small"

func enrichChunk(c models.Chunk, embedder embedding.Embedder, targetDim int, now time.Time, log interface {
	Warnf(string, ...interface{})
}) models.Chunk {
	var vec []float32
	if embedder != nil {
		v, err := embedder.Embed(c.Content)
		if err != nil {
			if log != nil {
				log.Warnf("pass D: embedding failed for %s, substituting zero vector: %v", c.ChunkID, err)
			}
			vec = embedding.ZeroVector(targetDim)
		} else {
			vec = v
		}
	} else {
		vec = embedding.ZeroVector(targetDim)
	}

	hash := chunker.ChunkHashSHA256(c.Content)
	c.Embedding = vec
	c.EmbeddingModel = embeddingModelName
	c.Entities = chunker.ExtractEntities(c.Content)
	c.Keywords = chunker.ExtractKeywords(c.Content)
	c.ChunkHash = hash
	c.VectorID = chunker.VectorID(c.SourceID, hash)
	c.ConfidenceScore = chunker.ConfidenceScore(c.Content)
	c.Stage = models.StageVectorized
	updated := now
	c.UpdatedAt = &updated
	return c
}

// upsertInBatches replaces chunks in store in fixed-size batches with a
// pause between batches, per spec §4.6 step 8 / §4.7 step 6. Batch
// failures are logged and counted but never abort the pass.
func upsertInBatches(ctx context.Context, store vectorstore.Store, chunks []models.Chunk, env, jobID, jobDir string, batchSize int, pause time.Duration, log interface {
	Warnf(string, ...interface{})
}) (int, error) {
	src := sourceFromJobDir(jobDir)

	limiter := rate.NewLimiter(rate.Every(pause), 1)
	limiter.Allow()

	loaded := 0
	var firstErr error
	for start := 0; start < len(chunks); start += batchSize {
		end := start + batchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		docs := chunksToDocuments(chunks[start:end], env, src)
		n, err := store.UpsertDocuments(ctx, docs)
		loaded += n
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			if log != nil {
				log.Warnf("batch upsert [%d:%d] failed: %v", start, end, err)
			}
		}
		if end < len(chunks) {
			limiter.Wait(ctx)
		}
	}
	return loaded, firstErr
}

// sourceFromJobDir is a best-effort source-hash/file pair derived from
// the manifest already on disk, used so batch upserts can stamp
// source_hash/source_file without re-reading the PDF.
type sourceIdentity struct {
	hash string
	file string
}

func sourceFromJobDir(jobDir string) sourceIdentity {
	m, err := manifest.Load(jobDir)
	if err != nil {
		return sourceIdentity{}
	}
	return sourceIdentity{hash: m.SourceInfo.SHA256, file: m.SourceFile}
}

func chunksToDocuments(chunks []models.Chunk, env string, src sourceIdentity) []vectorstore.Document {
	now := time.Now()
	var docs []vectorstore.Document
	for _, c := range chunks {
		for _, part := range vectorstore.SplitOversizedContent(c.ChunkID, c.Content) {
			docs = append(docs, vectorstore.Document{
				ChunkID:        part.ChunkID,
				Content:        part.Content,
				Metadata:       chunkMetadataMap(c),
				Environment:    env,
				Stage:          string(c.Stage),
				SourceHash:     src.hash,
				SourceFile:     src.file,
				Embedding:      c.Embedding,
				EmbeddingModel: c.EmbeddingModel,
				VectorID:       c.VectorID,
				UpdatedAt:      now,
				LoadedAt:       now,
				Payload:        chunkPayload(c),
			})
		}
	}
	return docs
}
