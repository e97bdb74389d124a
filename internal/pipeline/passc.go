package pipeline

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"ttrpg-ingest/internal/atomicfile"
	"ttrpg-ingest/internal/extractor"
	"ttrpg-ingest/internal/manifest"
	"ttrpg-ingest/internal/models"
	"ttrpg-ingest/internal/vectorstore"
)

// extractionUnit is one page range Pass C processes independently,
// either a Pass B split part or, when no split occurred, the whole
// document.
type extractionUnit struct {
	index         int
	pageStart     int
	pageEnd       int
	sectionTitles []string
}

// ProcessPassC extracts section-aware raw chunks and upserts them with
// stage="raw". There is no bundled PDF-partitioning library in the
// retrieval pack (github.com/ledongthuc/pdf is read-only plain text), so
// this always takes the spec's documented fallback path: paragraph
// splitting on blank-line boundaries, element_type="text",
// extraction_method="text_fallback" (see DESIGN.md).
func ProcessPassC(ctx context.Context, pdfPath, jobDir, jobID, env string, store vectorstore.Store) (*models.PassCResult, error) {
	start := time.Now()
	result := &models.PassCResult{ExtractionMethod: "text_fallback", CollectionName: collectionName(env)}

	doc, err := extractor.Open(pdfPath)
	if err != nil {
		result.Error = err.Error()
		return result, fmt.Errorf("pipeline: pass C open: %w", err)
	}

	units := loadExtractionUnits(jobDir, doc.PageCount())
	result.PartsProcessed = len(units)

	var chunks []models.Chunk
	for _, u := range units {
		chunks = append(chunks, extractUnit(doc, jobID, u)...)
	}
	result.ChunksExtracted = len(chunks)

	artifactName := fmt.Sprintf("%s_pass_c_raw_chunks.jsonl", jobID)
	if err := writeChunksJSONL(filepath.Join(jobDir, artifactName), chunks); err != nil {
		result.Error = err.Error()
		return result, fmt.Errorf("pipeline: pass C write artifact: %w", err)
	}

	loaded := 0
	if store != nil && len(chunks) > 0 {
		loaded, err = upsertChunks(ctx, store, chunks, env, jobID, pdfPath)
		if err != nil {
			result.Error = err.Error()
			return result, fmt.Errorf("pipeline: pass C upsert: %w", err)
		}
	}
	result.ChunksLoaded = loaded
	result.ProcessingTimeMs = time.Since(start).Milliseconds()
	result.Success = true

	m, err := manifest.Load(jobDir)
	if err != nil {
		return result, fmt.Errorf("pipeline: pass C load manifest: %w", err)
	}
	m.MarkCompleted(models.PassC, result)
	if err := manifest.RecordArtifact(m, jobDir, artifactName); err != nil {
		return result, fmt.Errorf("pipeline: pass C record artifact: %w", err)
	}
	if err := manifest.Save(jobDir, m); err != nil {
		return result, fmt.Errorf("pipeline: pass C save manifest: %w", err)
	}

	return result, nil
}

func collectionName(env string) string {
	return fmt.Sprintf("ttrpg_chunks_%s", env)
}

// loadExtractionUnits reads split_index.json if present; otherwise the
// unit is the whole document.
func loadExtractionUnits(jobDir string, totalPages int) []extractionUnit {
	var index models.SplitIndex
	path := filepath.Join(jobDir, "split_index.json")
	if atomicfile.Exists(path) {
		if err := atomicfile.ReadJSON(path, &index); err == nil && len(index.Parts) > 0 {
			units := make([]extractionUnit, 0, len(index.Parts))
			for i, p := range index.Parts {
				units = append(units, extractionUnit{
					index: i, pageStart: p.PageStart, pageEnd: p.PageEnd, sectionTitles: p.SectionTitles,
				})
			}
			return units
		}
	}
	return []extractionUnit{{index: 0, pageStart: 1, pageEnd: totalPages, sectionTitles: []string{"Complete Document"}}}
}

const minChunkContentLen = 50

func extractUnit(doc *extractor.Document, jobID string, u extractionUnit) []models.Chunk {
	tocPath := tocPathFor(u.sectionTitles)
	seq := 0
	var chunks []models.Chunk

	for page := u.pageStart; page <= u.pageEnd; page++ {
		for _, para := range extractor.Paragraphs(doc.PageText(page)) {
			if len(strings.TrimSpace(para)) < minChunkContentLen {
				continue
			}
			chunks = append(chunks, models.Chunk{
				ChunkID:     fmt.Sprintf("%s_c_%d_%04d", jobID, u.index, seq),
				Content:     para,
				Stage:       models.StageRaw,
				SourceID:    jobID,
				SectionID:   fmt.Sprintf("part_%d_section_%d", u.index, seq),
				PageSpan:    fmt.Sprintf("%d-%d", u.pageStart, u.pageEnd),
				TocPath:     tocPath,
				ElementType: "text",
				PageNumber:  page,
				Metadata: models.ChunkMetadata{
					PartIndex:        u.index,
					PageRange:        fmt.Sprintf("%d-%d", u.pageStart, u.pageEnd),
					ExtractionMethod: "text_fallback",
					ElementIndex:     seq,
				},
			})
			seq++
		}
	}
	return chunks
}

func tocPathFor(titles []string) string {
	if len(titles) == 0 {
		return ""
	}
	n := len(titles)
	if n > 2 {
		n = 2
	}
	return strings.Join(titles[:n], " > ")
}

func writeChunksJSONL(path string, chunks []models.Chunk) error {
	items := make([]interface{}, len(chunks))
	for i, c := range chunks {
		items[i] = c
	}
	return atomicfile.WriteJSONLines(path, items)
}

// upsertChunks converts chunks to vector-store documents, splitting any
// oversized content per spec §4.12, and upserts them.
func upsertChunks(ctx context.Context, store vectorstore.Store, chunks []models.Chunk, env, jobID, pdfPath string) (int, error) {
	src, err := models.LoadSource(pdfPath)
	if err != nil {
		return 0, err
	}
	hash, err := src.ContentHash()
	if err != nil {
		return 0, err
	}

	now := time.Now()
	var docs []vectorstore.Document
	for _, c := range chunks {
		for _, part := range vectorstore.SplitOversizedContent(c.ChunkID, c.Content) {
			docs = append(docs, vectorstore.Document{
				ChunkID:     part.ChunkID,
				Content:     part.Content,
				Metadata:    chunkMetadataMap(c),
				Environment: env,
				Stage:       string(c.Stage),
				SourceHash:  hash,
				SourceFile:  src.Filename,
				UpdatedAt:   now,
				LoadedAt:    now,
				Payload:     chunkPayload(c),
			})
		}
	}
	return store.UpsertDocuments(ctx, docs)
}

func chunkMetadataMap(c models.Chunk) map[string]interface{} {
	return map[string]interface{}{
		"part_index":        c.Metadata.PartIndex,
		"page_range":        c.Metadata.PageRange,
		"extraction_method": c.Metadata.ExtractionMethod,
		"element_index":     c.Metadata.ElementIndex,
		"section_id":        c.SectionID,
		"source_hash":       "",
	}
}

func chunkPayload(c models.Chunk) map[string]interface{} {
	return map[string]interface{}{
		"chunk_id":     c.ChunkID,
		"content":      c.Content,
		"section_id":   c.SectionID,
		"toc_path":     c.TocPath,
		"element_type": c.ElementType,
		"page_number":  c.PageNumber,
		"stage":        string(c.Stage),
	}
}
